package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Message is one inbound Slack chat event to evaluate for unfurling.
// It is immutable once constructed and is not retained after dispatch.
type Message struct {
	Channel  string
	TS       string  // the message's own Slack timestamp, used as a thread anchor
	ThreadTS *string // parent message timestamp when the message is threaded
	UserID   string
	Text     string
	// SentAt is the origin-asserted send time. It comes from upstream and
	// is untrusted; the staleness gate treats it as input, never as truth
	// about wall-clock ordering.
	SentAt time.Time
	// IsBot is true when the message was produced by an app or bot user.
	// Bot messages are never unfurled, to avoid reply loops.
	IsBot bool
}

// ParseSlackTS converts a Slack message timestamp ("1712345678.000200")
// into a time.Time. The fractional part is a sequence number but its
// integer portion is still microseconds since the epoch.
func ParseSlackTS(ts string) (time.Time, error) {
	parts := strings.SplitN(ts, ".", 2)
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing slack timestamp %q: %w", ts, err)
	}
	var micros int64
	if len(parts) == 2 && parts[1] != "" {
		micros, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing slack timestamp %q: %w", ts, err)
		}
	}
	return time.Unix(secs, micros*int64(time.Microsecond)).UTC(), nil
}

// FormatSlackTS renders a time back into Slack's seconds.microseconds form.
func FormatSlackTS(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}
