package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"squarebot.dev/unfurlbot/internal/domain"
)

// EventMessage is one inbound Slack event to enqueue on the stream.
type EventMessage struct {
	EventID int64
	Event   domain.Message
}

type Producer interface {
	Enqueue(ctx context.Context, msg EventMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg EventMessage) error {
	fields := messageValues(Message{EventID: msg.EventID, Event: msg.Event}, 1)

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued slack event", "event_id", msg.EventID, "channel", msg.Event.Channel)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
