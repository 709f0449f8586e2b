package model

// Conversation is a two-party channel with an append-only message log.
type Conversation struct {
	ID           string              `json:"id"`
	Participants map[string]Identity `json:"participants"`
	Messages     []Message           `json:"messages"`
	CreatedAt    int64               `json:"created_at"`
	UpdatedAt    int64               `json:"updated_at"`
}

// HasParticipant reports whether identityID is one of the two participants.
func (c *Conversation) HasParticipant(identityID string) bool {
	_, ok := c.Participants[identityID]
	return ok
}

// Clone returns a deep copy safe to hand to other goroutines.
func (c *Conversation) Clone() Conversation {
	out := Conversation{
		ID:           c.ID,
		Participants: make(map[string]Identity, len(c.Participants)),
		Messages:     make([]Message, len(c.Messages)),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	for id, p := range c.Participants {
		out.Participants[id] = p
	}
	copy(out.Messages, c.Messages)
	return out
}

// ConnectRequest is the request to open a conversation between two identities.
type ConnectRequest struct {
	From string `json:"from" validate:"required,max=128"`
	To   string `json:"to" validate:"required,max=128"`
}

// ListConversationsResponse is the response for listing an identity's conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
