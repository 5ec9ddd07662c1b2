package domain

import "time"

// TimestampLayout matches the ISO-8601 form produced by JavaScript's
// Date.prototype.toISOString so persisted blobs stay interchangeable.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Settings are the four free-text fields interpolated into synthesized replies.
type Settings struct {
	Scene         string `json:"scene"`
	Behavior      string `json:"behavior"`
	PartnerInfo   string `json:"partnerInfo"`
	CustomSetting string `json:"customSetting"`
}

// IsEmpty reports whether every field is the empty string.
func (s Settings) IsEmpty() bool {
	return s.Scene == "" && s.Behavior == "" && s.PartnerInfo == "" && s.CustomSetting == ""
}

// LastMessage is the denormalized preview of the newest message.
type LastMessage struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Conversation is a named thread of messages persisted as part of a user's list.
type Conversation struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Avatar      string       `json:"avatar"`
	Note        string       `json:"note"`
	Settings    Settings     `json:"settings"`
	Messages    []Message    `json:"messages"`
	CreatedAt   string       `json:"createdAt"`
	LastMessage *LastMessage `json:"lastMessage"`
}

// Clone returns a deep copy so callers cannot reach the owner's slices or pointers.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return out
}

// Summary is the list-preview row for a conversation.
type Summary struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Avatar      string       `json:"avatar"`
	Note        string       `json:"note"`
	LastMessage *LastMessage `json:"lastMessage"`
	Active      bool         `json:"active"`
}

// FormatTimestamp renders t in TimestampLayout (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
