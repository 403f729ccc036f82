package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"squarebot.dev/unfurlbot/common/logger"
	"squarebot.dev/unfurlbot/internal/domain"
)

type ConsumerConfig struct {
	Stream       string        // Redis stream carrying inbound Slack events
	Group        string        // Redis consumer group name
	Consumer     string        // Redis consumer name
	DLQStream    string        // dead letter stream for poisoned messages
	BatchSize    int64         // messages to read per batch
	Block        time.Duration // how long to block waiting for new messages
	MaxAttempts  int           // retry attempts before moving to the DLQ
	RequeueDelay time.Duration // delay before retrying failed messages
}

// Message is one inbound Slack event read from the stream.
type Message struct {
	ID      string // Redis stream message ID
	EventID int64  // ingest-assigned event ID
	Attempt int
	Event   domain.Message
	Raw     redis.XMessage
}

// MessageProcessor processes a queue message.
type MessageProcessor func(ctx context.Context, msg Message) error

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
	}

	if err := consumer.ensureGroup(context.Background()); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Starting the group at "0" instead of "$" means a recreated group
	// still sees messages that were already in the stream.
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "unfurlbot.queue.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// ">" reads only messages not yet delivered to any consumer;
		// stale pending messages are handled by the reclaimer.
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			parsed, parseErr := ParseMessage(msg)
			if parseErr != nil {
				// A message we cannot parse will never parse; ack it
				// and park it on the DLQ instead of looping.
				slog.ErrorContext(ctx, "failed to parse message, sending to DLQ",
					"error", parseErr,
					"raw_message_id", msg.ID,
					"stream", c.cfg.Stream)
				_ = c.SendDLQ(ctx, Message{ID: msg.ID, Raw: msg}, parseErr.Error())
				continue
			}
			messages = append(messages, parsed)
		}
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read messages from stream",
			"count", len(messages),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}

	slog.DebugContext(ctx, "message acknowledged", "stream", c.cfg.Stream)
	return nil
}

func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for requeue: %w", err)
	}

	values := messageValues(msg, msg.Attempt+1)
	if errMsg != "" {
		values["last_error"] = errMsg
	}

	if c.cfg.RequeueDelay > 0 {
		time.Sleep(c.cfg.RequeueDelay)
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "message requeued for retry",
		"next_attempt", msg.Attempt+1,
		"reason", errMsg)
	return nil
}

func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for dlq: %w", err)
	}

	var values map[string]any
	if len(msg.Raw.Values) > 0 && msg.EventID == 0 {
		// Unparseable message: forward the raw fields untouched.
		values = msg.Raw.Values
	} else {
		values = messageValues(msg, msg.Attempt)
	}
	values["error"] = errMsg

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DLQStream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	slog.ErrorContext(ctx, "message sent to DLQ",
		"final_error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

// ParseMessage decodes the stream fields of one inbound Slack event.
func ParseMessage(msg redis.XMessage) (Message, error) {
	channel, err := requireString(msg.Values, "channel")
	if err != nil {
		return Message{}, err
	}
	text, err := requireString(msg.Values, "text")
	if err != nil {
		return Message{}, err
	}
	ts, err := requireString(msg.Values, "ts")
	if err != nil {
		return Message{}, err
	}

	sentAt, err := domain.ParseSlackTS(ts)
	if err != nil {
		return Message{}, err
	}

	event := domain.Message{
		Channel: channel,
		TS:      ts,
		Text:    text,
		SentAt:  sentAt,
		UserID:  optionalString(msg.Values, "user"),
	}

	if threadTS := optionalString(msg.Values, "thread_ts"); threadTS != "" {
		event.ThreadTS = &threadTS
	}
	if isBot := optionalString(msg.Values, "is_bot"); isBot == "1" || isBot == "true" {
		event.IsBot = true
	}

	eventID, err := optionalInt64(msg.Values, "event_id")
	if err != nil {
		return Message{}, err
	}

	attempt, err := optionalInt(msg.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	return Message{
		ID:      msg.ID,
		EventID: eventID,
		Attempt: attempt,
		Event:   event,
		Raw:     msg,
	}, nil
}

func requireString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func optionalString(values map[string]any, key string) string {
	raw, ok := values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}

func optionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func optionalInt64(values map[string]any, key string) (int64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func messageValues(msg Message, attempt int) map[string]any {
	values := map[string]any{
		"channel": msg.Event.Channel,
		"ts":      msg.Event.TS,
		"text":    msg.Event.Text,
		"attempt": attempt,
	}

	if msg.EventID != 0 {
		values["event_id"] = msg.EventID
	}
	if msg.Event.UserID != "" {
		values["user"] = msg.Event.UserID
	}
	if msg.Event.ThreadTS != nil && *msg.Event.ThreadTS != "" {
		values["thread_ts"] = *msg.Event.ThreadTS
	}
	if msg.Event.IsBot {
		values["is_bot"] = "1"
	}

	return values
}
