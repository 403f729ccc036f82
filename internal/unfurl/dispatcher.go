package unfurl

import (
	"context"
	"log/slog"

	"squarebot.dev/unfurlbot/common/logger"
	"squarebot.dev/unfurlbot/internal/domain"
)

// Dispatcher fans one inbound message out to every registered domain
// pipeline. Domains run independently: a panic or failure in one domain
// never prevents the others from running, and Dispatch never reports an
// error to the transport layer.
type Dispatcher struct {
	pipelines []*Pipeline
}

func NewDispatcher(pipelines ...*Pipeline) *Dispatcher {
	return &Dispatcher{pipelines: pipelines}
}

// Dispatch evaluates one message against all domains. Messages from bots
// and apps are ignored outright so automated senders (ourselves included)
// cannot trigger reply loops.
func (d *Dispatcher) Dispatch(ctx context.Context, msg domain.Message) {
	if msg.IsBot {
		slog.DebugContext(ctx, "ignoring message from automated sender")
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Channel:  logger.Ptr(msg.Channel),
		ThreadTS: msg.ThreadTS,
	})

	for _, p := range d.pipelines {
		d.runDomain(ctx, p, msg)
	}
}

func (d *Dispatcher) runDomain(ctx context.Context, p *Pipeline, msg domain.Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic in domain pipeline",
				"domain", p.domain.Name(),
				"panic", r)
		}
	}()
	p.Process(ctx, msg)
}
