package unfurl

import (
	"context"

	"squarebot.dev/unfurlbot/internal/domain"
	"squarebot.dev/unfurlbot/internal/slack"
)

type mockDomain struct {
	name            string
	extractTokensFn func(text string) []string
	enrichFn        func(ctx context.Context, token string) (Enrichment, error)
	formatFn        func(msg domain.Message, token string, enrichment Enrichment) (*slack.Message, error)

	enrichCalls []string
}

func (m *mockDomain) Name() string {
	if m.name != "" {
		return m.name
	}
	return "mock"
}

func (m *mockDomain) ExtractTokens(text string) []string {
	if m.extractTokensFn != nil {
		return m.extractTokensFn(text)
	}
	return nil
}

func (m *mockDomain) Enrich(ctx context.Context, token string) (Enrichment, error) {
	m.enrichCalls = append(m.enrichCalls, token)
	if m.enrichFn != nil {
		return m.enrichFn(ctx, token)
	}
	return "enrichment:" + token, nil
}

func (m *mockDomain) Format(msg domain.Message, token string, enrichment Enrichment) (*slack.Message, error) {
	if m.formatFn != nil {
		return m.formatFn(msg, token, enrichment)
	}
	return &slack.Message{Text: token, Channel: msg.Channel}, nil
}

type mockStore struct {
	wasRecentlyUnfurledFn func(ctx context.Context, scope Scope) (bool, error)
	recordFn              func(ctx context.Context, scope Scope) error

	recorded []Scope
}

func (m *mockStore) WasRecentlyUnfurled(ctx context.Context, scope Scope) (bool, error) {
	if m.wasRecentlyUnfurledFn != nil {
		return m.wasRecentlyUnfurledFn(ctx, scope)
	}
	return false, nil
}

func (m *mockStore) Record(ctx context.Context, scope Scope) error {
	m.recorded = append(m.recorded, scope)
	if m.recordFn != nil {
		return m.recordFn(ctx, scope)
	}
	return nil
}

type mockSender struct {
	postMessageFn func(ctx context.Context, msg *slack.Message) error

	sent []*slack.Message
}

func (m *mockSender) PostMessage(ctx context.Context, msg *slack.Message) error {
	m.sent = append(m.sent, msg)
	if m.postMessageFn != nil {
		return m.postMessageFn(ctx, msg)
	}
	return nil
}
