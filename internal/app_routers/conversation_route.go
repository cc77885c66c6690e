package approuters

import (
	"Circlet/internal/configuration"

	"github.com/gin-gonic/gin"
)

func ConversationRouters(router *gin.RouterGroup, container *configuration.Container) {
	router.POST("/messages", container.ConversationHandler.SendMessage)

	conversationRoute := router.Group("/conversations")
	{
		conversationRoute.GET("/:conversationId/messages", container.ConversationHandler.GetMessages)
		conversationRoute.PUT("/:conversationId/read", container.ConversationHandler.MarkRead)
	}
}
