package router

import (
	"github.com/gin-gonic/gin"

	"squarebot.dev/unfurlbot/internal/http/handler"
)

func EventRouter(router *gin.RouterGroup, handler *handler.SlackEventHandler) {
	router.POST("/slack", handler.HandleEvent)
}
