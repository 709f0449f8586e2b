// Package service provides the in-memory relay: identities, conversations,
// live subscriptions and the orchestration between them.
package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/capitalize-ai/relay/internal/model"
	"github.com/capitalize-ai/relay/pkg/logger"
)

// EventPublisher delivers an event to the live observers of one identity.
type EventPublisher interface {
	Publish(identityID string, event model.Event) int
}

// conversationEntry guards one conversation. Appends to the same
// conversation are serialized on mu; unrelated conversations do not contend.
type conversationEntry struct {
	mu   sync.Mutex
	conv model.Conversation
}

// ConversationStore owns conversations and their message logs.
type ConversationStore struct {
	identities *IdentityRegistry
	publisher  EventPublisher
	logger     *logger.Logger
	now        func() time.Time

	conversations map[string]*conversationEntry
	byIdentity    map[string][]string
	mu            sync.RWMutex
}

// NewConversationStore creates a store resolving participants through
// identities and announcing changes through publisher.
func NewConversationStore(identities *IdentityRegistry, publisher EventPublisher, log *logger.Logger) *ConversationStore {
	return &ConversationStore{
		identities:    identities,
		publisher:     publisher,
		logger:        logger.OrGlobal(log).Component("conversations"),
		now:           time.Now,
		conversations: make(map[string]*conversationEntry),
		byIdentity:    make(map[string][]string),
	}
}

// ConversationID derives the conversation id for an unordered pair of
// identities. ConversationID(a, b) == ConversationID(b, a).
func ConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	sum := sha256.Sum256([]byte(a + "\x00" + b))
	return "dm_" + hex.EncodeToString(sum[:16])
}

// Ensure returns the conversation between idA and idB, creating it on first
// use. created reports whether this call created it; only the creating call
// publishes the conversation event.
func (s *ConversationStore) Ensure(idA, idB string) (conv model.Conversation, created bool, err error) {
	if idA == idB {
		return model.Conversation{}, false, invalidf("cannot open a conversation with yourself")
	}
	a, ok := s.identities.Get(idA)
	if !ok {
		return model.Conversation{}, false, invalidf("unknown identity %q", idA)
	}
	b, ok := s.identities.Get(idB)
	if !ok {
		return model.Conversation{}, false, invalidf("unknown identity %q", idB)
	}

	id := ConversationID(idA, idB)

	s.mu.RLock()
	entry, exists := s.conversations[id]
	s.mu.RUnlock()
	if exists {
		return s.snapshot(entry), false, nil
	}

	s.mu.Lock()
	if entry, exists = s.conversations[id]; exists {
		s.mu.Unlock()
		return s.snapshot(entry), false, nil
	}

	now := s.now().UnixMilli()
	entry = &conversationEntry{
		conv: model.Conversation{
			ID:           id,
			Participants: map[string]model.Identity{a.ID: a, b.ID: b},
			Messages:     []model.Message{},
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	// Hold the entry until the creation event is out so that no message
	// event for this conversation can overtake it.
	entry.mu.Lock()
	s.conversations[id] = entry
	s.byIdentity[a.ID] = append(s.byIdentity[a.ID], id)
	s.byIdentity[b.ID] = append(s.byIdentity[b.ID], id)
	s.mu.Unlock()

	conv = entry.conv.Clone()
	s.publishLocked(&entry.conv, model.ConversationEvent(conv))
	entry.mu.Unlock()

	s.logger.Info("conversation created",
		zap.String("conversation_id", id),
		zap.Strings("participants", []string{a.ID, b.ID}),
	)

	return conv, true, nil
}

// Append adds a message to a conversation. A nil author appends a
// system-authored message.
func (s *ConversationStore) Append(conversationID string, author *model.Identity, text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, invalidf("message text is empty")
	}

	entry, err := s.entry(conversationID)
	if err != nil {
		return model.Message{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	msg := model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Text:           text,
		Kind:           model.MessageKindSystem,
	}
	if author != nil {
		if !entry.conv.HasParticipant(author.ID) {
			return model.Message{}, invalidf("identity %q is not a participant of %s", author.ID, conversationID)
		}
		msg.From = author.ID
		msg.Kind = model.MessageKindMessage
	}

	msg.Timestamp = max(s.now().UnixMilli(), entry.conv.UpdatedAt)
	msg.Sequence = uint64(len(entry.conv.Messages)) + 1

	entry.conv.Messages = append(entry.conv.Messages, msg)
	entry.conv.UpdatedAt = msg.Timestamp

	s.publishLocked(&entry.conv, model.MessageEvent(msg))

	return msg, nil
}

// Get returns a snapshot of one conversation.
func (s *ConversationStore) Get(conversationID string) (model.Conversation, error) {
	entry, err := s.entry(conversationID)
	if err != nil {
		return model.Conversation{}, err
	}
	return s.snapshot(entry), nil
}

// ListForIdentity returns snapshots of every conversation identityID takes
// part in, in creation order.
func (s *ConversationStore) ListForIdentity(identityID string) []model.Conversation {
	s.mu.RLock()
	entries := make([]*conversationEntry, 0, len(s.byIdentity[identityID]))
	for _, id := range s.byIdentity[identityID] {
		entries = append(entries, s.conversations[id])
	}
	s.mu.RUnlock()

	return lo.Map(entries, func(entry *conversationEntry, _ int) model.Conversation {
		return s.snapshot(entry)
	})
}

// Len returns the number of conversations.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

func (s *ConversationStore) entry(conversationID string) (*conversationEntry, error) {
	s.mu.RLock()
	entry, ok := s.conversations[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, notFoundf("conversation %q", conversationID)
	}
	return entry, nil
}

// snapshot copies the conversation and refreshes participant names, which
// may have changed since creation.
func (s *ConversationStore) snapshot(entry *conversationEntry) model.Conversation {
	entry.mu.Lock()
	conv := entry.conv.Clone()
	entry.mu.Unlock()

	for id := range conv.Participants {
		if ident, ok := s.identities.Get(id); ok {
			conv.Participants[id] = ident
		}
	}
	return conv
}

// publishLocked fans event out to both participants. Callers hold entry.mu.
func (s *ConversationStore) publishLocked(conv *model.Conversation, event model.Event) {
	if s.publisher == nil {
		return
	}
	for _, id := range lo.Keys(conv.Participants) {
		s.publisher.Publish(id, event)
	}
}
