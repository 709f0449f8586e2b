package service

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/relay/internal/model"
	"github.com/capitalize-ai/relay/pkg/logger"
	"github.com/capitalize-ai/relay/pkg/metrics"
)

// DefaultSubscriberBuffer is the per-subscriber event buffer.
const DefaultSubscriberBuffer = 64

// Subscriber is one live observer of an identity. Its channel is closed
// when the subscriber is removed from the registry.
type Subscriber struct {
	id         string
	identityID string
	events     chan model.Event
}

// ID returns the unique subscriber id.
func (s *Subscriber) ID() string { return s.id }

// IdentityID returns the identity this subscriber observes.
func (s *Subscriber) IdentityID() string { return s.identityID }

// Events returns the channel events are delivered on.
func (s *Subscriber) Events() <-chan model.Event { return s.events }

// SubscriptionRegistry maps identities to their live observers. Nothing in
// it outlives the process.
type SubscriptionRegistry struct {
	bufferSize int
	logger     *logger.Logger

	subscribers map[string]map[string]*Subscriber // identityID -> subID -> subscriber
	closed      bool
	mu          sync.RWMutex
}

// NewSubscriptionRegistry creates a registry whose subscribers buffer up to
// bufferSize events. A non-positive size uses DefaultSubscriberBuffer.
func NewSubscriptionRegistry(bufferSize int, log *logger.Logger) *SubscriptionRegistry {
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriberBuffer
	}
	return &SubscriptionRegistry{
		bufferSize:  bufferSize,
		logger:      logger.OrGlobal(log).Component("subscriptions"),
		subscribers: make(map[string]map[string]*Subscriber),
	}
}

// Subscribe registers a new observer for identityID. After Close the
// returned subscriber is already closed.
func (r *SubscriptionRegistry) Subscribe(identityID string) *Subscriber {
	sub := &Subscriber{
		id:         uuid.New().String(),
		identityID: identityID,
		events:     make(chan model.Event, r.bufferSize),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		close(sub.events)
		return sub
	}
	if _, ok := r.subscribers[identityID]; !ok {
		r.subscribers[identityID] = make(map[string]*Subscriber)
	}
	r.subscribers[identityID][sub.id] = sub

	r.logger.Debug("subscriber added",
		zap.String("identity_id", identityID),
		zap.String("sub_id", sub.id),
	)
	return sub
}

// Unsubscribe removes sub and closes its channel. Removing a subscriber
// that is already gone is a no-op; the result reports whether this call
// removed it.
func (r *SubscriptionRegistry) Unsubscribe(sub *Subscriber) bool {
	if sub == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.subscribers[sub.identityID]
	if !ok {
		return false
	}
	if _, exists := subs[sub.id]; !exists {
		return false
	}

	delete(subs, sub.id)
	close(sub.events)
	if len(subs) == 0 {
		delete(r.subscribers, sub.identityID)
	}

	r.logger.Debug("subscriber removed",
		zap.String("identity_id", sub.identityID),
		zap.String("sub_id", sub.id),
	)
	return true
}

// Publish delivers event to every observer of identityID and returns how
// many accepted it. Delivery never blocks: an observer whose buffer is full
// misses the event but stays registered. With no observers the event is
// dropped.
func (r *SubscriptionRegistry) Publish(identityID string, event model.Event) int {
	// Sends happen under the read lock so Unsubscribe cannot close a
	// channel mid-send. They are non-blocking, so the lock is short.
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.deliverLocked(r.subscribers[identityID], event)
}

// Broadcast delivers event to every registered observer.
func (r *SubscriptionRegistry) Broadcast(event model.Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, subs := range r.subscribers {
		delivered += r.deliverLocked(subs, event)
	}
	return delivered
}

// Count returns the number of observers of identityID.
func (r *SubscriptionRegistry) Count(identityID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers[identityID])
}

// Close removes and closes every subscriber. Later subscriptions are
// closed immediately.
func (r *SubscriptionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for identityID, subs := range r.subscribers {
		for subID, sub := range subs {
			close(sub.events)
			delete(subs, subID)
		}
		delete(r.subscribers, identityID)
	}
	r.closed = true

	r.logger.Debug("subscription registry closed")
}

func (r *SubscriptionRegistry) deliverLocked(subs map[string]*Subscriber, event model.Event) int {
	delivered := 0
	for _, sub := range subs {
		select {
		case sub.events <- event:
			delivered++
			metrics.RecordDelivery(string(event.Type), true)
		default:
			metrics.RecordDelivery(string(event.Type), false)
			r.logger.Debug("dropped event for slow subscriber",
				zap.String("identity_id", sub.identityID),
				zap.String("sub_id", sub.id),
				zap.String("event_type", string(event.Type)),
			)
		}
	}
	return delivered
}
