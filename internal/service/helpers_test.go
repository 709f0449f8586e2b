package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/relay/internal/model"
	"github.com/capitalize-ai/relay/pkg/logger"
)

type testRelay struct {
	*RelayService
	identities    *IdentityRegistry
	conversations *ConversationStore
	subscriptions *SubscriptionRegistry
	journal       *recordingJournal
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	log := logger.NewNop()

	identities := NewIdentityRegistry(log)
	subscriptions := NewSubscriptionRegistry(256, log)
	conversations := NewConversationStore(identities, subscriptions, log)
	journal := &recordingJournal{}
	t.Cleanup(subscriptions.Close)

	return &testRelay{
		RelayService:  NewRelayService(identities, conversations, subscriptions, journal, log),
		identities:    identities,
		conversations: conversations,
		subscriptions: subscriptions,
		journal:       journal,
	}
}

func (r *testRelay) register(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := r.RegisterOrUpdateIdentity(context.Background(), id, id)
		require.NoError(t, err)
	}
}

type recordingJournal struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (j *recordingJournal) Record(_ context.Context, event model.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.events = append(j.events, event)
	return nil
}

func (j *recordingJournal) types() []model.EventType {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]model.EventType, 0, len(j.events))
	for _, e := range j.events {
		out = append(out, e.Type)
	}
	return out
}

// next reads one event or fails the test after a second.
func next(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed while waiting for event")
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return model.Event{}
	}
}

// assertQuiet fails if an event arrives within a short window.
func assertQuiet(t *testing.T, ch <-chan model.Event) {
	t.Helper()
	select {
	case event, ok := <-ch:
		if ok {
			t.Fatalf("unexpected %s event", event.Type)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

// drain collects events until none arrive for a short window.
func drain(ch <-chan model.Event) []model.Event {
	var out []model.Event
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-time.After(200 * time.Millisecond):
			return out
		}
	}
}
