package domain

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is a single entry in a conversation's history.
type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    Sender `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// Preview returns the LastMessage view of m.
func (m Message) Preview() *LastMessage {
	return &LastMessage{Text: m.Text, Timestamp: m.Timestamp}
}
