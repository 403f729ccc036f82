package dto

// SlackMessageEvent is the wire shape of one inbound Slack message event
// posted to the ingest endpoint. Its JSON schema is published at
// /schemas/slack-message for producers to validate against.
type SlackMessageEvent struct {
	Channel  string  `json:"channel" jsonschema:"required,description=Slack channel ID the message was posted in"`
	TS       string  `json:"ts" jsonschema:"required,description=Slack message timestamp (seconds.microseconds)"`
	ThreadTS *string `json:"thread_ts,omitempty" jsonschema:"description=Parent message timestamp when the message is in a thread"`
	User     string  `json:"user,omitempty" jsonschema:"description=Slack user ID of the sender"`
	Text     string  `json:"text" jsonschema:"required,description=Raw message text"`
	BotID    string  `json:"bot_id,omitempty" jsonschema:"description=Set when the message was sent by a bot"`
	AppID    string  `json:"app_id,omitempty" jsonschema:"description=Slack app ID of the sender when sent by an app"`
}
