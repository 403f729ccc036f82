package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"squarebot.dev/unfurlbot/common/id"
	"squarebot.dev/unfurlbot/core/config"
	"squarebot.dev/unfurlbot/internal/domain"
	"squarebot.dev/unfurlbot/internal/http/dto"
	"squarebot.dev/unfurlbot/internal/queue"
)

// SlackEventHandler accepts Slack message events from the ingest webhook
// and enqueues them on the inbound stream. Unfurling itself happens
// asynchronously in the worker.
type SlackEventHandler struct {
	producer queue.Producer
	appID    string
}

func NewSlackEventHandler(producer queue.Producer, slackCfg config.SlackConfig) *SlackEventHandler {
	return &SlackEventHandler{
		producer: producer,
		appID:    slackCfg.AppID,
	}
}

func (h *SlackEventHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	var event dto.SlackMessageEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if event.Channel == "" || event.TS == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel and ts are required"})
		return
	}

	sentAt, err := domain.ParseSlackTS(event.TS)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ts"})
		return
	}

	msg := domain.Message{
		Channel:  event.Channel,
		TS:       event.TS,
		ThreadTS: event.ThreadTS,
		UserID:   event.User,
		Text:     event.Text,
		SentAt:   sentAt,
		// Anything sent by a bot (ourselves included) must never
		// trigger an unfurl; mark it here so the flag survives the
		// trip through the stream.
		IsBot: event.BotID != "" || (event.AppID != "" && event.AppID == h.appID),
	}

	eventID := id.New()
	if err := h.producer.Enqueue(ctx, queue.EventMessage{EventID: eventID, Event: msg}); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue slack event",
			"error", err,
			"channel", event.Channel)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue event"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "event_id": eventID})
}
