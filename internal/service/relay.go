package service

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/relay/internal/model"
	"github.com/capitalize-ai/relay/pkg/logger"
	"github.com/capitalize-ai/relay/pkg/metrics"
	"github.com/capitalize-ai/relay/pkg/tracing"
)

// EventJournal records relay events outside the process. Recording must not
// block on the network.
type EventJournal interface {
	Record(ctx context.Context, event model.Event) error
}

// RelayService validates requests, mutates the stores and pushes the
// resulting events to live feeds.
type RelayService struct {
	identities    *IdentityRegistry
	conversations *ConversationStore
	subscriptions *SubscriptionRegistry
	journal       EventJournal
	logger        *logger.Logger
	tracer        trace.Tracer

	// feedGate makes "subscribe + snapshot" atomic with respect to
	// "mutate + publish". Mutations share the read side, so they only
	// contend with each other through the per-conversation locks.
	feedGate sync.RWMutex
}

// NewRelayService wires the relay. journal may be nil.
func NewRelayService(
	identities *IdentityRegistry,
	conversations *ConversationStore,
	subscriptions *SubscriptionRegistry,
	journal EventJournal,
	log *logger.Logger,
) *RelayService {
	return &RelayService{
		identities:    identities,
		conversations: conversations,
		subscriptions: subscriptions,
		journal:       journal,
		logger:        logger.OrGlobal(log).Component("relay"),
		tracer:        tracing.Tracer(),
	}
}

// RegisterOrUpdateIdentity creates the identity or, when name is not blank,
// updates its display name.
func (s *RelayService) RegisterOrUpdateIdentity(ctx context.Context, id, name string) (ident model.Identity, err error) {
	_, span := s.tracer.Start(ctx, "relay.RegisterOrUpdateIdentity",
		trace.WithAttributes(attribute.String("identity.id", id)))
	defer func() { endSpan(span, err) }()

	if err := validateID("identity id", id); err != nil {
		return model.Identity{}, err
	}
	return s.identities.Upsert(id, SanitizeName(name)), nil
}

// RenameIdentity changes the display name of an existing identity and tells
// that identity's own live feeds.
func (s *RelayService) RenameIdentity(ctx context.Context, id, name string) (ident model.Identity, err error) {
	ctx, span := s.tracer.Start(ctx, "relay.RenameIdentity",
		trace.WithAttributes(attribute.String("identity.id", id)))
	defer func() { endSpan(span, err) }()

	if err := validateID("identity id", id); err != nil {
		return model.Identity{}, err
	}
	name = SanitizeName(name)
	if name == "" {
		name = DefaultName
	}

	s.feedGate.RLock()
	ident, err = s.identities.Rename(id, name)
	if err == nil {
		s.subscriptions.Publish(id, model.UserEvent(ident.ID, ident.Name))
	}
	s.feedGate.RUnlock()
	if err != nil {
		return model.Identity{}, err
	}

	s.record(ctx, model.UserEvent(ident.ID, ident.Name))
	return ident, nil
}

// Identity looks up a registered identity.
func (s *RelayService) Identity(ctx context.Context, id string) (model.Identity, error) {
	if err := validateID("identity id", id); err != nil {
		return model.Identity{}, err
	}
	ident, ok := s.identities.Get(id)
	if !ok {
		return model.Identity{}, notFoundf("identity %q", id)
	}
	return ident, nil
}

// Connect returns the conversation between fromID and toID, creating it the
// first time either side asks.
func (s *RelayService) Connect(ctx context.Context, fromID, toID string) (conv model.Conversation, err error) {
	ctx, span := s.tracer.Start(ctx, "relay.Connect",
		trace.WithAttributes(
			attribute.String("identity.from", fromID),
			attribute.String("identity.to", toID),
		))
	defer func() { endSpan(span, err) }()

	if err := validateID("from", fromID); err != nil {
		return model.Conversation{}, err
	}
	if err := validateID("to", toID); err != nil {
		return model.Conversation{}, err
	}
	if fromID == toID {
		return model.Conversation{}, invalidf("cannot open a conversation with yourself")
	}

	s.feedGate.RLock()
	conv, created, err := s.conversations.Ensure(fromID, toID)
	s.feedGate.RUnlock()
	if err != nil {
		return model.Conversation{}, err
	}

	span.SetAttributes(
		attribute.String("conversation.id", conv.ID),
		attribute.Bool("conversation.created", created),
	)
	if created {
		metrics.ConversationsTotal.Inc()
		s.record(ctx, model.ConversationEvent(conv))
	}
	return conv, nil
}

// Conversation returns a snapshot of one conversation.
func (s *RelayService) Conversation(ctx context.Context, conversationID string) (model.Conversation, error) {
	if err := validateID("conversation id", conversationID); err != nil {
		return model.Conversation{}, err
	}
	return s.conversations.Get(conversationID)
}

// Conversations returns identityID's conversations, most recently updated
// first.
func (s *RelayService) Conversations(ctx context.Context, identityID string) ([]model.Conversation, error) {
	if _, err := s.Identity(ctx, identityID); err != nil {
		return nil, err
	}
	return sortByRecency(s.conversations.ListForIdentity(identityID)), nil
}

// SendMessage appends text from fromID to a conversation.
func (s *RelayService) SendMessage(ctx context.Context, conversationID, fromID, text string) (msg model.Message, err error) {
	ctx, span := s.tracer.Start(ctx, "relay.SendMessage",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("identity.from", fromID),
		))
	defer func() { endSpan(span, err) }()

	if err := validateID("conversation id", conversationID); err != nil {
		return model.Message{}, err
	}
	if err := validateID("from", fromID); err != nil {
		return model.Message{}, err
	}
	text = SanitizeText(text)
	if text == "" {
		return model.Message{}, invalidf("message text is empty")
	}

	author, ok := s.identities.Get(fromID)
	if !ok {
		return model.Message{}, notFoundf("identity %q", fromID)
	}

	return s.append(ctx, conversationID, &author, text)
}

// PostNotice appends a system-authored message to a conversation.
func (s *RelayService) PostNotice(ctx context.Context, conversationID, text string) (msg model.Message, err error) {
	ctx, span := s.tracer.Start(ctx, "relay.PostNotice",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer func() { endSpan(span, err) }()

	if err := validateID("conversation id", conversationID); err != nil {
		return model.Message{}, err
	}
	text = SanitizeText(text)
	if text == "" {
		return model.Message{}, invalidf("notice text is empty")
	}
	return s.append(ctx, conversationID, nil, text)
}

// Announce pushes a system event to every open live feed and returns how
// many feeds accepted it.
func (s *RelayService) Announce(ctx context.Context, text string) int {
	event := model.SystemEvent(text)
	delivered := s.subscriptions.Broadcast(event)
	s.record(ctx, event)

	s.logger.Info("announcement sent", zap.Int("delivered", delivered))
	return delivered
}

// OpenLiveFeed registers a live feed for identityID. The feed first yields a
// hello event and one conversation event per existing conversation, then
// every event published afterwards. Cancel ctx or call Close to end it.
func (s *RelayService) OpenLiveFeed(ctx context.Context, identityID string) (feed *Feed, err error) {
	_, span := s.tracer.Start(ctx, "relay.OpenLiveFeed",
		trace.WithAttributes(attribute.String("identity.id", identityID)))
	defer func() { endSpan(span, err) }()

	if err := validateID("identity id", identityID); err != nil {
		return nil, err
	}
	if _, ok := s.identities.Get(identityID); !ok {
		return nil, notFoundf("identity %q", identityID)
	}

	// Anything published after Subscribe is not yet in the snapshot and
	// anything in the snapshot was published before Subscribe.
	s.feedGate.Lock()
	sub := s.subscriptions.Subscribe(identityID)
	snapshot := s.conversations.ListForIdentity(identityID)
	s.feedGate.Unlock()

	initial := make([]model.Event, 0, len(snapshot)+1)
	initial = append(initial, model.HelloEvent(identityID))
	initial = append(initial, lo.Map(sortByRecency(snapshot), func(conv model.Conversation, _ int) model.Event {
		return model.ConversationEvent(conv)
	})...)

	span.SetAttributes(attribute.Int("snapshot.conversations", len(snapshot)))
	s.logger.Debug("live feed opened",
		zap.String("identity_id", identityID),
		zap.String("sub_id", sub.ID()),
		zap.Int("conversations", len(snapshot)),
	)

	return startFeed(ctx, s.subscriptions, sub, initial), nil
}

func (s *RelayService) append(ctx context.Context, conversationID string, author *model.Identity, text string) (model.Message, error) {
	s.feedGate.RLock()
	msg, err := s.conversations.Append(conversationID, author, text)
	s.feedGate.RUnlock()
	if err != nil {
		return model.Message{}, err
	}

	metrics.MessagesTotal.WithLabelValues(string(msg.Kind)).Inc()
	s.record(ctx, model.MessageEvent(msg))
	return msg, nil
}

func (s *RelayService) record(ctx context.Context, event model.Event) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, event); err != nil {
		metrics.JournalPublishErrors.Inc()
		s.logger.Warn("failed to journal event",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func sortByRecency(convs []model.Conversation) []model.Conversation {
	slices.SortStableFunc(convs, func(a, b model.Conversation) int {
		if c := cmp.Compare(b.UpdatedAt, a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return convs
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
