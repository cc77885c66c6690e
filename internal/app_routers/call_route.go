package approuters

import (
	"Circlet/internal/configuration"

	"github.com/gin-gonic/gin"
)

func CallRouters(router *gin.RouterGroup, container *configuration.Container) {
	callRoute := router.Group("/calls")
	{
		callRoute.GET("/active", container.CallHandler.GetActiveCalls)
		callRoute.GET("/history", container.CallHandler.GetCallHistory)
	}
}
