package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"squarebot.dev/unfurlbot/internal/unfurl"
)

// RedisDebounceStore records unfurled scopes as TTL keys. Redis owns
// expiry; a key that still exists means the scope was unfurled within the
// window. Writes refresh the TTL (refresh-on-write).
type RedisDebounceStore struct {
	client *redis.Client
	window time.Duration
}

func NewRedisDebounceStore(client *redis.Client, window time.Duration) *RedisDebounceStore {
	return &RedisDebounceStore{
		client: client,
		window: window,
	}
}

func (s *RedisDebounceStore) WasRecentlyUnfurled(ctx context.Context, scope unfurl.Scope) (bool, error) {
	n, err := s.client.Exists(ctx, DebounceKey(scope)).Result()
	if err != nil {
		return false, fmt.Errorf("checking debounce key: %w", err)
	}
	return n > 0, nil
}

func (s *RedisDebounceStore) Record(ctx context.Context, scope unfurl.Scope) error {
	recordedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.Set(ctx, DebounceKey(scope), recordedAt, s.window).Err(); err != nil {
		return fmt.Errorf("writing debounce key: %w", err)
	}
	return nil
}

// DebounceKey serializes a scope into a Redis key. Tokens are free-form
// text and get hex-encoded so they cannot carry key-separator characters;
// Slack channel IDs and thread timestamps have a colon-free alphabet and
// are embedded as-is. A message outside a thread omits the trailing
// segment entirely, which can never collide with a real thread timestamp.
func DebounceKey(scope unfurl.Scope) string {
	token := hex.EncodeToString([]byte(scope.Token))
	key := fmt.Sprintf("unfurl:slack:%s:%s:%s", scope.Domain, scope.Channel, token)
	if scope.ThreadTS != nil && *scope.ThreadTS != "" {
		key += ":" + *scope.ThreadTS
	}
	return key
}
