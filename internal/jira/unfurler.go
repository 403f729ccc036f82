package jira

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"squarebot.dev/unfurlbot/core/config"
	"squarebot.dev/unfurlbot/internal/domain"
	"squarebot.dev/unfurlbot/internal/slack"
	"squarebot.dev/unfurlbot/internal/unfurl"
)

const domainName = "jira"

var (
	fencedCodeRe = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`.*?`")
	urlRe        = regexp.MustCompile(`https?://\S+`)
)

// Unfurler is the Jira issue-key domain: it detects issue keys in message
// text and formats issue summaries into Block Kit replies.
type Unfurler struct {
	client       *Client
	browsePrefix string // canonical "view issue" URL prefix, e.g. https://jira.example.org/browse/
	keyPattern   *regexp.Regexp
}

func NewUnfurler(client *Client, cfg config.JiraConfig) *Unfurler {
	u := &Unfurler{
		client:       client,
		browsePrefix: cfg.RootURL + "/browse/",
	}

	projects := cfg.ProjectKeys()
	if len(projects) > 0 {
		escaped := make([]string, len(projects))
		for i, p := range projects {
			escaped[i] = regexp.QuoteMeta(p)
		}
		u.keyPattern = regexp.MustCompile(`\b(?:` + strings.Join(escaped, "|") + `)-\d+`)
	}

	return u
}

func (u *Unfurler) Name() string {
	return domainName
}

// ExtractTokens finds issue keys in message text. The cleanup steps run in
// a fixed order because each one changes what later steps can match:
// fenced code blocks, then inline code, then the canonical browse-URL
// prefix (leaving the bare key behind so the generic URL pass cannot eat
// it), then the legacy tickets/DM- path form, then all remaining URLs.
func (u *Unfurler) ExtractTokens(text string) []string {
	if u.keyPattern == nil || text == "" {
		return nil
	}

	text = fencedCodeRe.ReplaceAllString(text, "")
	text = inlineCodeRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, u.browsePrefix, "")
	// Narrow compatibility rule for the one project whose keys circulate
	// as "tickets/DM-NNN" paths. Deliberately not generalized.
	text = strings.ReplaceAll(text, "tickets/DM-", "DM-")
	text = urlRe.ReplaceAllString(text, "")

	matches := u.keyPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var keys []string
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		keys = append(keys, m)
	}
	sort.Strings(keys)
	return keys
}

func (u *Unfurler) Enrich(ctx context.Context, token string) (unfurl.Enrichment, error) {
	summary, err := u.client.GetIssue(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", unfurl.ErrEnrichmentUnavailable, err)
	}
	return summary, nil
}

// Format builds the threaded Block Kit reply for one issue. The reply is
// anchored to the triggering message's thread, or starts a thread on the
// message itself.
func (u *Unfurler) Format(msg domain.Message, token string, enrichment unfurl.Enrichment) (*slack.Message, error) {
	summary, ok := enrichment.(*IssueSummary)
	if !ok {
		return nil, fmt.Errorf("unexpected enrichment type %T for %s", enrichment, token)
	}

	threadTS := msg.TS
	if msg.ThreadTS != nil && *msg.ThreadTS != "" {
		threadTS = *msg.ThreadTS
	}

	fields := []slack.TextObject{
		{Text: "*Status*\n" + summary.StatusLabel},
		{Text: "*Reporter*\n" + summary.ReporterName},
	}
	if summary.AssigneeName != nil {
		fields = append(fields, slack.TextObject{Text: "*Assignee*\n" + *summary.AssigneeName})
	}
	fields = append(fields, slack.TextObject{
		Text: "*Created*\n" + summary.DateCreated.Format("2006-01-02"),
	})
	if summary.DateResolved != nil {
		fields = append(fields, slack.TextObject{
			Text: "*Resolved*\n" + summary.DateResolved.Format("2006-01-02"),
		})
	}

	blocks := []slack.Block{
		slack.SectionBlock{
			Text: slack.TextObject{
				Text: fmt.Sprintf("*%s: %s*\n%s", summary.Key, summary.Summary, summary.Homepage),
			},
			Fields: fields,
		},
	}
	if summary.Description != nil && *summary.Description != "" {
		blocks = append(blocks, slack.ContextBlock{
			Elements: []slack.TextObject{{Text: *summary.Description}},
		})
	}

	return &slack.Message{
		Text:     fmt.Sprintf("%s: %s (%s)", summary.Key, summary.Summary, summary.Homepage),
		Blocks:   blocks,
		Channel:  msg.Channel,
		ThreadTS: &threadTS,
		Mrkdwn:   true,
	}, nil
}
