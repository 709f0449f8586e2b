package model

// MessageKind distinguishes participant messages from server notices.
type MessageKind string

const (
	MessageKindMessage MessageKind = "message"
	MessageKindSystem  MessageKind = "system"
)

// Message is an immutable entry in a conversation log.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`

	// From is empty for system-authored messages.
	From      string      `json:"from,omitempty"`
	Text      string      `json:"text"`
	Kind      MessageKind `json:"kind"`
	Timestamp int64       `json:"timestamp"`
	Sequence  uint64      `json:"sequence"`
}

// IsSystem reports whether the message was authored by the server.
func (m *Message) IsSystem() bool {
	return m.From == ""
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	From string `json:"from" validate:"required,max=128"`
	Text string `json:"text" validate:"required"`
}

// SendMessageResponse is the response after sending a message.
type SendMessageResponse struct {
	Message *Message `json:"message"`
}
