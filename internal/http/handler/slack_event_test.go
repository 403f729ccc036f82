package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"squarebot.dev/unfurlbot/common/id"
	"squarebot.dev/unfurlbot/core/config"
	"squarebot.dev/unfurlbot/internal/http/handler"
	"squarebot.dev/unfurlbot/internal/queue"
)

func TestHandler(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Handler Suite")
}

type mockProducer struct {
	enqueueFn func(ctx context.Context, msg queue.EventMessage) error

	enqueued []queue.EventMessage
}

func (m *mockProducer) Enqueue(ctx context.Context, msg queue.EventMessage) error {
	m.enqueued = append(m.enqueued, msg)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, msg)
	}
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}

var _ = Describe("SlackEventHandler", func() {
	var (
		router   *gin.Engine
		producer *mockProducer
	)

	post := func(body map[string]any) *httptest.ResponseRecorder {
		payload, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())

		req := httptest.NewRequest(http.MethodPost, "/events/slack", bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		Expect(id.Init(9)).To(Succeed())

		gin.SetMode(gin.TestMode)
		router = gin.New()
		producer = &mockProducer{}

		h := handler.NewSlackEventHandler(producer, config.SlackConfig{AppID: "A999"})
		router.POST("/events/slack", h.HandleEvent)
	})

	It("enqueues a valid message event", func() {
		w := post(map[string]any{
			"channel": "C123",
			"ts":      "1712345678.000200",
			"user":    "U456",
			"text":    "DM-1234 needs a look",
		})

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(producer.enqueued).To(HaveLen(1))

		msg := producer.enqueued[0]
		Expect(msg.EventID).NotTo(BeZero())
		Expect(msg.Event.Channel).To(Equal("C123"))
		Expect(msg.Event.Text).To(Equal("DM-1234 needs a look"))
		Expect(msg.Event.IsBot).To(BeFalse())
	})

	It("preserves the thread timestamp", func() {
		w := post(map[string]any{
			"channel":   "C123",
			"ts":        "1712345678.000200",
			"thread_ts": "1712345000.000100",
			"text":      "DM-1",
		})

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(producer.enqueued[0].Event.ThreadTS).NotTo(BeNil())
		Expect(*producer.enqueued[0].Event.ThreadTS).To(Equal("1712345000.000100"))
	})

	It("marks bot messages", func() {
		w := post(map[string]any{
			"channel": "C123",
			"ts":      "1712345678.000200",
			"text":    "automated",
			"bot_id":  "B123",
		})

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(producer.enqueued[0].Event.IsBot).To(BeTrue())
	})

	It("marks messages from our own app", func() {
		w := post(map[string]any{
			"channel": "C123",
			"ts":      "1712345678.000200",
			"text":    "our own reply",
			"app_id":  "A999",
		})

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(producer.enqueued[0].Event.IsBot).To(BeTrue())
	})

	It("does not mark messages from other apps", func() {
		w := post(map[string]any{
			"channel": "C123",
			"ts":      "1712345678.000200",
			"text":    "someone else's app",
			"app_id":  "A111",
		})

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(producer.enqueued[0].Event.IsBot).To(BeFalse())
	})

	It("rejects events without channel or ts", func() {
		w := post(map[string]any{"text": "hello"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(producer.enqueued).To(BeEmpty())
	})

	It("rejects an unparseable timestamp", func() {
		w := post(map[string]any{
			"channel": "C123",
			"ts":      "not-a-ts",
			"text":    "hello",
		})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 500 when the enqueue fails", func() {
		producer.enqueueFn = func(ctx context.Context, msg queue.EventMessage) error {
			return errors.New("stream unavailable")
		}

		w := post(map[string]any{
			"channel": "C123",
			"ts":      "1712345678.000200",
			"text":    "DM-1",
		})
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
