package router

import (
	"github.com/gin-gonic/gin"

	"squarebot.dev/unfurlbot/internal/http/handler"
)

type RouterConfig struct {
	// Prefix is the URL path prefix the app is served under, e.g. "/unfurlbot".
	Prefix string
}

func SetupRoutes(router *gin.Engine, cfg RouterConfig, meta *handler.MetaHandler, slackEvents *handler.SlackEventHandler) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	app := router.Group(cfg.Prefix)
	{
		app.GET("/", meta.Index)
		app.GET("/schemas/slack-message", meta.SlackMessageSchema)

		EventRouter(app.Group("/events"), slackEvents)
	}
}
