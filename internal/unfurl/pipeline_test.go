package unfurl

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"squarebot.dev/unfurlbot/core/config"
	"squarebot.dev/unfurlbot/internal/domain"
	"squarebot.dev/unfurlbot/internal/slack"
)

func TestUnfurl(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Unfurl Suite")
}

var keyRe = regexp.MustCompile(`\bDM-\d+`)

var _ = Describe("Pipeline", func() {
	var (
		md       *mockDomain
		st       *mockStore
		snd      *mockSender
		pipeline *Pipeline
		now      time.Time
	)

	newMessage := func(text string, sentAt time.Time) domain.Message {
		return domain.Message{
			Channel: "C123",
			TS:      domain.FormatSlackTS(sentAt),
			Text:    text,
			SentAt:  sentAt,
		}
	}

	BeforeEach(func() {
		now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		md = &mockDomain{
			name: "jira",
			extractTokensFn: func(text string) []string {
				return keyRe.FindAllString(text, -1)
			},
		}
		st = &mockStore{}
		snd = &mockSender{}

		pipeline = NewPipeline(md, st, snd, config.UnfurlConfig{
			DebounceWindow:  300 * time.Second,
			StalenessWindow: 600 * time.Second,
		})
		pipeline.now = func() time.Time { return now }
	})

	It("sends one reply per extracted token and records each scope", func() {
		pipeline.Process(context.Background(), newMessage("DM-1 and DM-2", now))

		Expect(snd.sent).To(HaveLen(2))
		Expect(st.recorded).To(HaveLen(2))
		Expect(st.recorded[0].Token).To(Equal("DM-1"))
		Expect(st.recorded[1].Token).To(Equal("DM-2"))
	})

	It("does nothing when no tokens are found", func() {
		pipeline.Process(context.Background(), newMessage("nothing to see", now))

		Expect(md.enrichCalls).To(BeEmpty())
		Expect(snd.sent).To(BeEmpty())
		Expect(st.recorded).To(BeEmpty())
	})

	It("suppresses tokens already inside the debounce window", func() {
		st.wasRecentlyUnfurledFn = func(ctx context.Context, scope Scope) (bool, error) {
			return scope.Token == "DM-1", nil
		}

		pipeline.Process(context.Background(), newMessage("DM-1 DM-2", now))

		Expect(snd.sent).To(HaveLen(1))
		Expect(snd.sent[0].Text).To(Equal("DM-2"))
		Expect(st.recorded).To(HaveLen(1))
	})

	It("replies at most once across rapid repeat mentions", func() {
		live := map[string]bool{}
		st.wasRecentlyUnfurledFn = func(ctx context.Context, scope Scope) (bool, error) {
			return live[scope.Token], nil
		}
		st.recordFn = func(ctx context.Context, scope Scope) error {
			live[scope.Token] = true
			return nil
		}

		pipeline.Process(context.Background(), newMessage("DM-1", now))
		pipeline.Process(context.Background(), newMessage("DM-1 again", now.Add(10*time.Second)))

		Expect(snd.sent).To(HaveLen(1))
	})

	It("skips tokens from stale messages without touching the store", func() {
		old := now.Add(-15 * time.Minute)
		pipeline.Process(context.Background(), newMessage("DM-1", old))

		Expect(md.enrichCalls).To(BeEmpty())
		Expect(snd.sent).To(BeEmpty())
		Expect(st.recorded).To(BeEmpty())
	})

	It("fails closed when the debounce check errors", func() {
		st.wasRecentlyUnfurledFn = func(ctx context.Context, scope Scope) (bool, error) {
			return false, errors.New("connection refused")
		}

		pipeline.Process(context.Background(), newMessage("DM-1", now))

		Expect(md.enrichCalls).To(BeEmpty())
		Expect(snd.sent).To(BeEmpty())
	})

	It("leaves failed enrichments retryable by not recording them", func() {
		failing := true
		md.enrichFn = func(ctx context.Context, token string) (Enrichment, error) {
			if failing {
				return nil, ErrEnrichmentUnavailable
			}
			return "ok", nil
		}

		pipeline.Process(context.Background(), newMessage("DM-1", now))
		Expect(snd.sent).To(BeEmpty())
		Expect(st.recorded).To(BeEmpty())

		failing = false
		pipeline.Process(context.Background(), newMessage("DM-1 again", now.Add(time.Minute)))
		Expect(snd.sent).To(HaveLen(1))
		Expect(st.recorded).To(HaveLen(1))
	})

	It("records the scope even when the send fails", func() {
		snd.postMessageFn = func(ctx context.Context, msg *slack.Message) error {
			return errors.New("rate limited")
		}

		pipeline.Process(context.Background(), newMessage("DM-1", now))
		Expect(snd.sent).To(HaveLen(1))
		Expect(st.recorded).To(HaveLen(1))
	})

	It("scopes the debounce to the thread", func() {
		thread := "1709294400.000100"
		msg := newMessage("DM-1", now)
		msg.ThreadTS = &thread

		pipeline.Process(context.Background(), msg)

		Expect(st.recorded).To(HaveLen(1))
		Expect(st.recorded[0].ThreadTS).To(Equal(&thread))
		Expect(st.recorded[0].Domain).To(Equal("jira"))
		Expect(st.recorded[0].Channel).To(Equal("C123"))
	})

	It("continues with remaining tokens after one token fails", func() {
		md.enrichFn = func(ctx context.Context, token string) (Enrichment, error) {
			if token == "DM-1" {
				return nil, ErrEnrichmentUnavailable
			}
			return "ok", nil
		}

		pipeline.Process(context.Background(), newMessage("DM-1 DM-2", now))

		Expect(snd.sent).To(HaveLen(1))
		Expect(snd.sent[0].Text).To(Equal("DM-2"))
	})
})

var _ = Describe("Dispatcher", func() {
	var (
		md  *mockDomain
		st  *mockStore
		snd *mockSender
		d   *Dispatcher
		now time.Time
	)

	BeforeEach(func() {
		now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		md = &mockDomain{
			name: "jira",
			extractTokensFn: func(text string) []string {
				return keyRe.FindAllString(text, -1)
			},
		}
		st = &mockStore{}
		snd = &mockSender{}

		p := NewPipeline(md, st, snd, config.UnfurlConfig{
			DebounceWindow:  300 * time.Second,
			StalenessWindow: 600 * time.Second,
		})
		p.now = func() time.Time { return now }
		d = NewDispatcher(p)
	})

	It("ignores messages from bots", func() {
		d.Dispatch(context.Background(), domain.Message{
			Channel: "C123",
			Text:    "DM-1",
			SentAt:  now,
			IsBot:   true,
		})

		Expect(snd.sent).To(BeEmpty())
	})

	It("survives a panicking domain", func() {
		md.extractTokensFn = func(text string) []string {
			panic("boom")
		}

		Expect(func() {
			d.Dispatch(context.Background(), domain.Message{
				Channel: "C123",
				Text:    "DM-1",
				SentAt:  now,
			})
		}).NotTo(Panic())
	})
})
