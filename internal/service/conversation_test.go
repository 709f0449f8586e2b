package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/relay/internal/model"
	"github.com/capitalize-ai/relay/pkg/logger"
)

func newTestStore(t *testing.T, ids ...string) (*ConversationStore, *SubscriptionRegistry) {
	t.Helper()
	log := logger.NewNop()

	identities := NewIdentityRegistry(log)
	for _, id := range ids {
		identities.Upsert(id, id)
	}
	subs := NewSubscriptionRegistry(256, log)
	t.Cleanup(subs.Close)

	return NewConversationStore(identities, subs, log), subs
}

func TestConversationID_IsSymmetric(t *testing.T) {
	assert.Equal(t, ConversationID("alpha", "beta"), ConversationID("beta", "alpha"))
	assert.NotEqual(t, ConversationID("alpha", "beta"), ConversationID("alpha", "gamma"))

	// Separator characters in ids cannot make two pairs collide.
	assert.NotEqual(t, ConversationID("a:b", "c"), ConversationID("a", "b:c"))
}

func TestConversationStore_EnsureIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t, "alpha", "beta")

	first, created, err := store.Ensure("alpha", "beta")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, first.Participants, 2)
	assert.Empty(t, first.Messages)
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)

	second, created, err := store.Ensure("beta", "alpha")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Participants, second.Participants)
	assert.Equal(t, 1, store.Len())
}

func TestConversationStore_EnsureRejectsSelfAndUnknown(t *testing.T) {
	store, _ := newTestStore(t, "alpha")

	_, _, err := store.Ensure("alpha", "alpha")
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, _, err = store.Ensure("alpha", "ghost")
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	assert.Equal(t, 0, store.Len())
}

func TestConversationStore_EnsurePublishesCreationToBothSides(t *testing.T) {
	store, subs := newTestStore(t, "alpha", "beta")
	alpha := subs.Subscribe("alpha")
	beta := subs.Subscribe("beta")

	conv, _, err := store.Ensure("alpha", "beta")
	require.NoError(t, err)

	for _, sub := range []*Subscriber{alpha, beta} {
		event := next(t, sub.Events())
		assert.Equal(t, model.EventTypeConversation, event.Type)
		assert.Equal(t, conv.ID, event.Conversation.ID)
	}

	// A repeat Ensure publishes nothing.
	_, _, err = store.Ensure("beta", "alpha")
	require.NoError(t, err)
	assertQuiet(t, alpha.Events())
}

func TestConversationStore_ConcurrentEnsureCreatesOnce(t *testing.T) {
	store, subs := newTestStore(t, "alpha", "beta")
	alpha := subs.Subscribe("alpha")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[string]bool{}
	)
	for i := range 50 {
		wg.Go(func() {
			a, b := "alpha", "beta"
			if i%2 == 0 {
				a, b = b, a
			}
			conv, c, err := store.Ensure(a, b)
			assert.NoError(t, err)

			mu.Lock()
			defer mu.Unlock()
			ids[conv.ID] = true
			if c {
				created++
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, store.Len())
	assert.Len(t, drain(alpha.Events()), 1, "exactly one conversation event")
}

func TestConversationStore_AppendOrdersMessages(t *testing.T) {
	store, _ := newTestStore(t, "alpha", "beta")
	alpha, _ := store.identities.Get("alpha")

	conv, _, err := store.Ensure("alpha", "beta")
	require.NoError(t, err)

	// A clock that goes backwards must not produce decreasing timestamps.
	base := time.UnixMilli(conv.UpdatedAt)
	ticks := []time.Time{base.Add(time.Second), base, base, base.Add(-time.Hour), base.Add(2 * time.Second)}
	i := 0
	store.now = func() time.Time {
		tick := ticks[i%len(ticks)]
		i++
		return tick
	}

	for range ticks {
		_, err := store.Append(conv.ID, &alpha, "hello")
		require.NoError(t, err)
	}

	got, err := store.Get(conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, len(ticks))

	for i := 1; i < len(got.Messages); i++ {
		prev, cur := got.Messages[i-1], got.Messages[i]
		assert.GreaterOrEqual(t, cur.Timestamp, prev.Timestamp)
		assert.Equal(t, prev.Sequence+1, cur.Sequence)
		assert.NotEqual(t, prev.ID, cur.ID)
	}
	assert.Equal(t, got.Messages[len(got.Messages)-1].Timestamp, got.UpdatedAt)
}

func TestConversationStore_AppendValidation(t *testing.T) {
	store, _ := newTestStore(t, "alpha", "beta", "gamma")
	gamma, _ := store.identities.Get("gamma")
	alpha, _ := store.identities.Get("alpha")

	conv, _, err := store.Ensure("alpha", "beta")
	require.NoError(t, err)

	_, err = store.Append(conv.ID, &alpha, "   \n\t")
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = store.Append(conv.ID, &gamma, "let me in")
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = store.Append("dm_missing", &alpha, "hello")
	assert.True(t, errors.Is(err, ErrNotFound))

	got, err := store.Get(conv.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
	assert.Equal(t, conv.UpdatedAt, got.UpdatedAt)
}

func TestConversationStore_AppendSystemMessage(t *testing.T) {
	store, subs := newTestStore(t, "alpha", "beta")
	conv, _, err := store.Ensure("alpha", "beta")
	require.NoError(t, err)
	beta := subs.Subscribe("beta")

	msg, err := store.Append(conv.ID, nil, "conversation archived soon")
	require.NoError(t, err)
	assert.True(t, msg.IsSystem())
	assert.Equal(t, model.MessageKindSystem, msg.Kind)

	event := next(t, beta.Events())
	assert.Equal(t, model.EventTypeMessage, event.Type)
	assert.Equal(t, msg, *event.Message)
}

func TestConversationStore_ConcurrentAppendsKeepEveryMessage(t *testing.T) {
	store, _ := newTestStore(t, "alpha", "beta")
	alpha, _ := store.identities.Get("alpha")
	beta, _ := store.identities.Get("beta")

	conv, _, err := store.Ensure("alpha", "beta")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 100 {
		author := alpha
		if i%2 == 1 {
			author = beta
		}
		wg.Go(func() {
			_, err := store.Append(conv.ID, &author, "ping")
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	got, err := store.Get(conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 100)
	for i, msg := range got.Messages {
		assert.Equal(t, uint64(i+1), msg.Sequence)
		if i > 0 {
			assert.GreaterOrEqual(t, msg.Timestamp, got.Messages[i-1].Timestamp)
		}
	}
	assert.Equal(t, got.Messages[99].Timestamp, got.UpdatedAt)
}

func TestConversationStore_SnapshotsAreIsolatedAndCurrent(t *testing.T) {
	store, _ := newTestStore(t, "alpha", "beta")
	alpha, _ := store.identities.Get("alpha")

	conv, _, err := store.Ensure("alpha", "beta")
	require.NoError(t, err)
	_, err = store.Append(conv.ID, &alpha, "first")
	require.NoError(t, err)

	snap, err := store.Get(conv.ID)
	require.NoError(t, err)
	snap.Messages[0].Text = "tampered"
	delete(snap.Participants, "beta")

	_, err = store.identities.Rename("beta", "Beta Prime")
	require.NoError(t, err)

	again, err := store.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", again.Messages[0].Text)
	assert.Equal(t, "Beta Prime", again.Participants["beta"].Name)
}

func TestConversationStore_ListForIdentity(t *testing.T) {
	store, _ := newTestStore(t, "alpha", "beta", "gamma")

	ab, _, err := store.Ensure("alpha", "beta")
	require.NoError(t, err)
	ag, _, err := store.Ensure("gamma", "alpha")
	require.NoError(t, err)
	_, _, err = store.Ensure("beta", "gamma")
	require.NoError(t, err)

	ids := func(convs []model.Conversation) []string {
		out := make([]string, 0, len(convs))
		for _, c := range convs {
			out = append(out, c.ID)
		}
		return out
	}

	assert.ElementsMatch(t, []string{ab.ID, ag.ID}, ids(store.ListForIdentity("alpha")))
	assert.Len(t, store.ListForIdentity("beta"), 2)
	assert.Empty(t, store.ListForIdentity("nobody"))
}
