package unfurl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"squarebot.dev/unfurlbot/common/logger"
	"squarebot.dev/unfurlbot/core/config"
	"squarebot.dev/unfurlbot/internal/domain"
)

// Pipeline runs the shared per-token orchestration for one domain:
// staleness gate, debounce gate, enrich, format, send, record. Domains
// plug in behavior through the Domain interface but cannot change this
// ordering.
type Pipeline struct {
	domain Domain
	store  DebounceStore
	sender ReplySender
	cfg    config.UnfurlConfig

	// now is swapped in tests to control the staleness clock.
	now func() time.Time
}

func NewPipeline(d Domain, store DebounceStore, sender ReplySender, cfg config.UnfurlConfig) *Pipeline {
	return &Pipeline{
		domain: d,
		store:  store,
		sender: sender,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Process evaluates one message against this pipeline's domain. Each token
// is an independent attempt: a failure on one token never stops the rest.
func (p *Pipeline) Process(ctx context.Context, msg domain.Message) {
	tokens := p.domain.ExtractTokens(msg.Text)
	if len(tokens) == 0 {
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Domain: logger.Ptr(p.domain.Name()),
	})

	for _, token := range tokens {
		p.processToken(ctx, msg, token)
	}
}

func (p *Pipeline) processToken(ctx context.Context, msg domain.Message, token string) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Token: logger.Ptr(token)})

	// Staleness gate. SentAt is upstream-asserted and untrusted; an old
	// (or replayed) message must not re-trigger fresh unfurls.
	age := p.now().Sub(msg.SentAt)
	if age > p.cfg.StalenessWindow {
		slog.InfoContext(ctx, "skipping token from stale message",
			"age", age,
			"staleness_window", p.cfg.StalenessWindow)
		return
	}

	scope := Scope{
		Channel:  msg.Channel,
		ThreadTS: msg.ThreadTS,
		Domain:   p.domain.Name(),
		Token:    token,
	}

	// Debounce gate. Fail closed on store errors: without the store we
	// cannot honor the at-most-once guarantee, so we skip rather than
	// risk a duplicate reply.
	seen, err := p.store.WasRecentlyUnfurled(ctx, scope)
	if err != nil {
		slog.ErrorContext(ctx, "debounce check failed, skipping unfurl",
			"error", errors.Join(ErrDebounceStoreUnavailable, err))
		return
	}
	if seen {
		slog.DebugContext(ctx, "token recently unfurled, skipping")
		return
	}

	enrichment, err := p.domain.Enrich(ctx, token)
	if err != nil {
		// No debounce write: a failed lookup stays retryable on the
		// next message mentioning the same token.
		slog.WarnContext(ctx, "enrichment failed",
			"error", err,
			"retryable", true)
		return
	}

	reply, err := p.domain.Format(msg, token, enrichment)
	if err != nil {
		slog.ErrorContext(ctx, "formatting reply failed", "error", err)
		return
	}

	if err := p.sender.PostMessage(ctx, reply); err != nil {
		slog.ErrorContext(ctx, "posting reply failed",
			"error", errors.Join(ErrSendFailed, err))
	}

	// Recorded after any send attempt, success or failure. A send that
	// failed once is not retried against a fast-repeating message
	// stream: one attempt per scope per window.
	if err := p.store.Record(ctx, scope); err != nil {
		slog.ErrorContext(ctx, "recording debounce entry failed",
			"error", errors.Join(ErrDebounceStoreUnavailable, err))
	}
}
