package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs
// within a context.
type LogFields struct {
	Channel   *string // Slack channel ID of the triggering message
	ThreadTS  *string // Slack thread timestamp, if the message is threaded
	Domain    *string // unfurl domain name (e.g. "jira")
	Token     *string // token being unfurled (e.g. an issue key)
	MessageID *string // Redis stream message ID
	Component string  // component name, e.g. "unfurlbot.worker"
}

// WithLogFields enriches context with structured log fields. Multiple calls
// merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context. Returns empty LogFields
// if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, incoming LogFields) LogFields {
	result := existing

	if incoming.Channel != nil {
		result.Channel = incoming.Channel
	}
	if incoming.ThreadTS != nil {
		result.ThreadTS = incoming.ThreadTS
	}
	if incoming.Domain != nil {
		result.Domain = incoming.Domain
	}
	if incoming.Token != nil {
		result.Token = incoming.Token
	}
	if incoming.MessageID != nil {
		result.MessageID = incoming.MessageID
	}
	if incoming.Component != "" {
		result.Component = incoming.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value, for setting LogFields
// inline.
func Ptr[T any](v T) *T {
	return &v
}
