package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invopop/jsonschema"

	"squarebot.dev/unfurlbot/core/config"
	"squarebot.dev/unfurlbot/internal/http/dto"
)

// MetaHandler serves application metadata and the published event schema.
type MetaHandler struct {
	cfg    *config.Config
	schema *jsonschema.Schema
}

func NewMetaHandler(cfg *config.Config) *MetaHandler {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	return &MetaHandler{
		cfg:    cfg,
		schema: reflector.Reflect(&dto.SlackMessageEvent{}),
	}
}

func (h *MetaHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        h.cfg.Name,
		"environment": h.cfg.Env,
	})
}

// SlackMessageSchema returns the JSON schema that inbound Slack message
// events are validated against. Producers can fetch it to validate their
// payloads before posting.
func (h *MetaHandler) SlackMessageSchema(c *gin.Context) {
	c.JSON(http.StatusOK, h.schema)
}
