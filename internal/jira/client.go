package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"squarebot.dev/unfurlbot/core/config"
)

// IssueSummary is the normalized view of a Jira issue used for unfurls.
// Constructed once per lookup; immutable afterwards.
type IssueSummary struct {
	Key          string
	Summary      string
	StatusLabel  string // plain text: statuses are site-configurable
	DateCreated  time.Time
	DateResolved *time.Time
	Description  *string
	ReporterName string
	AssigneeName *string
	Homepage     string // <jira root>/browse/<key>
}

// Client fetches issues through the Jira Data Proxy.
// Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	proxyURL   string
	rootURL    string
	token      string
	timeout    time.Duration
}

func NewClient(cfg config.JiraConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		proxyURL:   cfg.ProxyURL,
		rootURL:    cfg.RootURL,
		token:      cfg.Token,
		timeout:    cfg.Timeout,
	}
}

// GetIssue fetches one issue by key, e.g. "DM-1234".
func (c *Client) GetIssue(ctx context.Context, key string) (*IssueSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/rest/api/2/issue/%s", c.proxyURL, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building jira request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching jira issue %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jira returned status %d for issue %s", resp.StatusCode, key)
	}

	var raw issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding jira issue %s: %w", key, err)
	}

	return c.mapToSummary(raw)
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary        string  `json:"summary"`
		Description    *string `json:"description"`
		Created        string  `json:"created"`
		ResolutionDate *string `json:"resolutiondate"`
		Status         struct {
			Name string `json:"name"`
		} `json:"status"`
		Reporter struct {
			DisplayName string `json:"displayName"`
		} `json:"reporter"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
	} `json:"fields"`
}

func (c *Client) mapToSummary(raw issueResponse) (*IssueSummary, error) {
	created, err := parseJiraTime(raw.Fields.Created)
	if err != nil {
		return nil, fmt.Errorf("issue %s: %w", raw.Key, err)
	}

	var resolved *time.Time
	if raw.Fields.ResolutionDate != nil && *raw.Fields.ResolutionDate != "" {
		t, err := parseJiraTime(*raw.Fields.ResolutionDate)
		if err != nil {
			return nil, fmt.Errorf("issue %s: %w", raw.Key, err)
		}
		resolved = &t
	}

	var assignee *string
	if raw.Fields.Assignee != nil {
		assignee = &raw.Fields.Assignee.DisplayName
	}

	return &IssueSummary{
		Key:          raw.Key,
		Summary:      raw.Fields.Summary,
		StatusLabel:  raw.Fields.Status.Name,
		DateCreated:  created,
		DateResolved: resolved,
		Description:  raw.Fields.Description,
		ReporterName: raw.Fields.Reporter.DisplayName,
		AssigneeName: assignee,
		Homepage:     fmt.Sprintf("%s/browse/%s", c.rootURL, raw.Key),
	}, nil
}

// Jira emits RFC 3339-like timestamps with a compact zone offset
// ("2024-01-15T10:30:00.000+0000"); some deployments use a colon.
var jiraTimeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
}

func parseJiraTime(s string) (time.Time, error) {
	for _, layout := range jiraTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing jira timestamp %q", s)
}
