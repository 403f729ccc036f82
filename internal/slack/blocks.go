package slack

import "strings"

// Slack rejects the whole message when any text block exceeds its limit,
// so every free-text field is truncated before transmission.
const (
	// MaxTextLength applies to message fallback text and section text.
	MaxTextLength = 3000
	// MaxFieldLength applies to the side fields of a section block.
	MaxFieldLength = 2000
)

// TextObject is a composition text object inside a Block Kit block.
// https://api.slack.com/reference/messaging/composition-objects#text
type TextObject struct {
	Text string
	// Type is "mrkdwn" or "plain_text". Empty means "mrkdwn".
	Type string
	// Verbatim disables linkification and mention parsing. Only applied
	// to mrkdwn text.
	Verbatim bool
}

func (t TextObject) payload(maxLength int) map[string]any {
	typ := t.Type
	if typ == "" {
		typ = "mrkdwn"
	}
	data := map[string]any{
		"type": typ,
		"text": FormatAndTruncate(t.Text, maxLength),
	}
	if typ == "mrkdwn" {
		data["verbatim"] = t.Verbatim
	}
	return data
}

// Block is a Block Kit layout block.
type Block interface {
	payload() map[string]any
}

// SectionBlock is a text section with up to ten optional two-column fields.
type SectionBlock struct {
	Text   TextObject
	Fields []TextObject
}

func (b SectionBlock) payload() map[string]any {
	data := map[string]any{
		"type": "section",
		"text": b.Text.payload(MaxTextLength),
	}
	if len(b.Fields) > 0 {
		fields := make([]map[string]any, 0, len(b.Fields))
		for _, f := range b.Fields {
			fields = append(fields, f.payload(MaxFieldLength))
		}
		data["fields"] = fields
	}
	return data
}

// ContextBlock renders its elements as small muted text.
type ContextBlock struct {
	Elements []TextObject
}

func (b ContextBlock) payload() map[string]any {
	elements := make([]map[string]any, 0, len(b.Elements))
	for _, e := range b.Elements {
		elements = append(elements, e.payload(MaxTextLength))
	}
	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

// Message is an outbound Block Kit message. Text is the fallback used for
// notifications and accessibility when blocks are present.
type Message struct {
	Text     string
	Blocks   []Block
	Channel  string
	ThreadTS *string
	Mrkdwn   bool
}

// Payload converts the message into the chat.postMessage body.
func (m *Message) Payload() map[string]any {
	blocks := make([]map[string]any, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		blocks = append(blocks, b.payload())
	}

	data := map[string]any{
		"text":   FormatAndTruncate(m.Text, MaxTextLength),
		"mrkdwn": m.Mrkdwn,
		"blocks": blocks,
	}
	if m.ThreadTS != nil && *m.ThreadTS != "" {
		data["thread_ts"] = *m.ThreadTS
	}
	if m.Channel != "" {
		data["channel"] = m.Channel
	}
	return data
}

const truncationSuffix = " [...]"

// FormatAndTruncate prepares a string for a Slack text field: it trims
// surrounding whitespace, escapes &, < and > (ampersand first, so entities
// are not double-escaped), and truncates to maxLength characters. The cut
// happens at the last newline before the limit when one exists, otherwise
// at the character boundary, and the literal " [...]" suffix marks the cut.
func FormatAndTruncate(s string, maxLength int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")

	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	cut := maxLength - len(truncationSuffix)
	head := runes[:cut]
	for i := len(head) - 1; i >= 0; i-- {
		if head[i] == '\n' {
			return string(head[:i]) + truncationSuffix
		}
	}
	return string(head) + truncationSuffix
}
