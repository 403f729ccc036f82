package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"squarebot.dev/unfurlbot/core/config"
)

// Client posts messages through the Slack Web API.
// Safe for concurrent use; the underlying http.Client pools connections.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(cfg config.SlackConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
	}
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// PostMessage sends a Block Kit message via chat.postMessage. An HTTP-level
// failure and an ok:false API response are both returned as errors; the
// caller decides what a failed send means.
func (c *Client) PostMessage(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg.Payload())
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack api returned status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decoding slack response: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("slack api error: %s", parsed.Error)
	}

	slog.DebugContext(ctx, "slack message posted", "channel", msg.Channel)
	return nil
}
