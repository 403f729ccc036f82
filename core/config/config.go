package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env    string
	Name   string
	Port   string
	Prefix string

	OTel     OTelConfig
	Pipeline PipelineConfig
	Slack    SlackConfig
	Jira     JiraConfig
	Unfurl   UnfurlConfig
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// PipelineConfig describes the Redis stream that carries inbound Slack
// message events and the consumer group that drains it.
type PipelineConfig struct {
	RedisURL      string
	RedisStream   string
	RedisGroup    string
	RedisDLQ      string
	RedisConsumer string
}

type SlackConfig struct {
	Token   string // bot token used for chat.postMessage
	AppID   string // our own app ID, used to suppress self-replies
	BaseURL string // Slack Web API base URL, overridable for tests
}

type JiraConfig struct {
	ProxyURL string // Jira Data Proxy base URL, no trailing slash
	RootURL  string // Jira root URL used for link detection, no trailing slash
	Projects string // comma-separated project key prefixes
	Token    string // bearer token for the proxy
	Timeout  time.Duration
}

// UnfurlConfig holds the gating windows of the unfurl pipeline.
type UnfurlConfig struct {
	// DebounceWindow is how long the same token stays suppressed in the
	// same channel/thread after a reply attempt.
	DebounceWindow time.Duration
	// StalenessWindow is the maximum age of a triggering message. Older
	// messages (replays, backlog drains) are ignored.
	StalenessWindow time.Duration
}

func Load() (Config, error) {
	if getEnv("UNFURLBOT_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:    getEnv("UNFURLBOT_ENV", "development"),
		Name:   getEnv("UNFURLBOT_NAME", "unfurlbot"),
		Port:   getEnv("PORT", "8080"),
		Prefix: getEnv("UNFURLBOT_PATH_PREFIX", "/unfurlbot"),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "unfurlbot"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Pipeline: PipelineConfig{
			RedisURL:      getEnv("UNFURLBOT_REDIS_URL", "redis://localhost:6379/0"),
			RedisStream:   getEnv("UNFURLBOT_REDIS_STREAM", "squarebot.message"),
			RedisGroup:    getEnv("UNFURLBOT_REDIS_CONSUMER_GROUP", "unfurlbot"),
			RedisDLQ:      getEnv("UNFURLBOT_REDIS_DLQ_STREAM", "squarebot.message.dlq"),
			RedisConsumer: getEnv("UNFURLBOT_REDIS_CONSUMER_NAME", "unfurlbot-1"),
		},
		Slack: SlackConfig{
			Token:   getEnv("UNFURLBOT_SLACK_TOKEN", ""),
			AppID:   getEnv("UNFURLBOT_SLACK_APP_ID", ""),
			BaseURL: getEnv("UNFURLBOT_SLACK_BASE_URL", "https://slack.com/api"),
		},
		Jira: JiraConfig{
			ProxyURL: strings.TrimSuffix(getEnv("UNFURLBOT_JIRA_PROXY_URL", ""), "/"),
			RootURL:  strings.TrimSuffix(getEnv("UNFURLBOT_JIRA_ROOT_URL", "https://jira.lsstcorp.org"), "/"),
			Projects: getEnv("UNFURLBOT_JIRA_PROJECTS", "DM,RFC"),
			Token:    getEnv("UNFURLBOT_JIRA_TOKEN", ""),
			Timeout:  getEnvDuration("UNFURLBOT_JIRA_TIMEOUT", 20*time.Second),
		},
		Unfurl: UnfurlConfig{
			DebounceWindow:  getEnvDuration("UNFURLBOT_SLACK_DEBOUNCE_TIME", 300*time.Second),
			StalenessWindow: getEnvDuration("UNFURLBOT_MESSAGE_STALENESS_TIME", 600*time.Second),
		},
	}

	if cfg.Slack.Token == "" {
		return Config{}, fmt.Errorf("UNFURLBOT_SLACK_TOKEN is required")
	}
	if cfg.Jira.ProxyURL == "" {
		return Config{}, fmt.Errorf("UNFURLBOT_JIRA_PROXY_URL is required")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// ProjectKeys returns the configured Jira project prefixes, trimmed,
// deduplicated and sorted.
func (c JiraConfig) ProjectKeys() []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, p := range strings.Split(c.Projects, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		keys = append(keys, p)
	}
	sort.Strings(keys)
	return keys
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvDuration reads a duration either as a Go duration string ("20s")
// or as a bare number of seconds ("20"), matching how deployments have
// historically set these values.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
