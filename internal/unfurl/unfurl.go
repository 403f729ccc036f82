// Package unfurl implements the dispatch pipeline that turns inbound chat
// messages into at-most-one enriched reply per token per debounce window.
package unfurl

import (
	"context"
	"errors"

	"squarebot.dev/unfurlbot/internal/domain"
	"squarebot.dev/unfurlbot/internal/slack"
)

// Enrichment is the domain-specific summary fetched for a token. Each
// domain produces its own concrete type and consumes it again in Format.
type Enrichment any

// Domain is the per-domain unfurler contract. Implementations must be safe
// for concurrent use; ExtractTokens must be pure and deterministic.
type Domain interface {
	// Name identifies the domain (e.g. "jira"). It is part of the
	// debounce scope, so it must be stable across releases.
	Name() string

	// ExtractTokens returns the candidate tokens found in the message
	// text, deduplicated and in sorted order. No I/O, no side effects.
	ExtractTokens(text string) []string

	// Enrich fetches the remote summary for a token. Any remote failure
	// (not found, timeout, transport error) is reported as an error
	// wrapping ErrEnrichmentUnavailable.
	Enrich(ctx context.Context, token string) (Enrichment, error)

	// Format builds the reply for a token and its enrichment.
	Format(msg domain.Message, token string, enrichment Enrichment) (*slack.Message, error)
}

// Scope identifies one unfurl for debouncing: the same token in the same
// channel and thread is only replied to once per window. A nil ThreadTS is
// a distinct scope from any concrete thread, not a wildcard.
type Scope struct {
	Channel  string
	ThreadTS *string
	Domain   string
	Token    string
}

// DebounceStore records which scopes were recently unfurled. The store
// owns expiry; callers never re-check age themselves.
type DebounceStore interface {
	// WasRecentlyUnfurled reports whether a live record exists for the
	// scope. A store failure must surface as an error, never as false:
	// failing open would silently defeat the dedup guarantee.
	WasRecentlyUnfurled(ctx context.Context, scope Scope) (bool, error)

	// Record writes the scope with the configured TTL. Re-recording the
	// same scope resets the expiry (refresh-on-write).
	Record(ctx context.Context, scope Scope) error
}

// ReplySender posts a formatted reply to the chat platform.
type ReplySender interface {
	PostMessage(ctx context.Context, msg *slack.Message) error
}

// Error taxonomy of the pipeline. None of these escalate past the single
// (domain, token) unit they occurred in; they are logged as structured
// events and the pipeline moves on.
var (
	// ErrEnrichmentUnavailable marks a failed remote lookup. No debounce
	// record is written, so the token stays retryable on its next mention.
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")

	// ErrSendFailed marks a failed reply post. The debounce record is
	// still written: one attempt per window, even a failed one.
	ErrSendFailed = errors.New("reply send failed")

	// ErrDebounceStoreUnavailable marks a store read/write failure. The
	// pipeline fails closed and skips the unfurl.
	ErrDebounceStoreUnavailable = errors.New("debounce store unavailable")
)
