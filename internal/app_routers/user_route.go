package approuters

import (
	"Circlet/internal/configuration"

	"github.com/gin-gonic/gin"
)

func UserRouters(router *gin.RouterGroup, container *configuration.Container) {
	userRoute := router.Group("/users")
	{
		userRoute.GET("/online", container.PresenceHandler.GetOnlineUsers)
		userRoute.GET("/online-status/:userId", container.PresenceHandler.GetOnlineStatus)
	}
}
