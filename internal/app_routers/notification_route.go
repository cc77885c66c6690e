package approuters

import (
	"Circlet/internal/configuration"

	"github.com/gin-gonic/gin"
)

func NotificationRouters(router *gin.RouterGroup, container *configuration.Container) {
	notificationRoute := router.Group("/notifications")
	{
		notificationRoute.GET("", container.NotificationHandler.List)
		notificationRoute.GET("/unread-count", container.NotificationHandler.UnreadCount)
		notificationRoute.GET("/stats", container.NotificationHandler.Stats)
		notificationRoute.POST("", container.NotificationHandler.Create)
		notificationRoute.PUT("/read-all", container.NotificationHandler.MarkAllRead)
		notificationRoute.PUT("/:id/read", container.NotificationHandler.MarkRead)
		notificationRoute.DELETE("/:id", container.NotificationHandler.Delete)
	}
}
