package model

// EventType tags the payload carried by an Event.
type EventType string

const (
	EventTypeHello        EventType = "hello"
	EventTypeConversation EventType = "conversation"
	EventTypeMessage      EventType = "message"
	EventTypeUser         EventType = "user"
	EventTypeSystem       EventType = "system"
)

// Event is a notification delivered to live feeds. Only the fields belonging
// to Type are set.
type Event struct {
	Type EventType `json:"type"`

	// hello, user
	IdentityID string `json:"identity_id,omitempty"`

	// user
	Name string `json:"name,omitempty"`

	// conversation
	Conversation *Conversation `json:"conversation,omitempty"`

	// message
	ConversationID string   `json:"conversation_id,omitempty"`
	Message        *Message `json:"message,omitempty"`

	// system
	Text string `json:"text,omitempty"`
}

// HelloEvent is sent first on every live feed.
func HelloEvent(identityID string) Event {
	return Event{Type: EventTypeHello, IdentityID: identityID}
}

// ConversationEvent carries a full conversation snapshot.
func ConversationEvent(c Conversation) Event {
	return Event{Type: EventTypeConversation, Conversation: &c}
}

// MessageEvent carries an appended message.
func MessageEvent(m Message) Event {
	return Event{Type: EventTypeMessage, ConversationID: m.ConversationID, Message: &m}
}

// UserEvent announces a display name change.
func UserEvent(identityID, name string) Event {
	return Event{Type: EventTypeUser, IdentityID: identityID, Name: name}
}

// SystemEvent carries a server-originated notice.
func SystemEvent(text string) Event {
	return Event{Type: EventTypeSystem, Text: text}
}

// Key returns the entity the event is about, used for journal subjects.
func (e Event) Key() string {
	switch e.Type {
	case EventTypeHello, EventTypeUser:
		return e.IdentityID
	case EventTypeConversation:
		if e.Conversation != nil {
			return e.Conversation.ID
		}
	case EventTypeMessage:
		return e.ConversationID
	}
	return "all"
}
