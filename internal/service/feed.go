package service

import (
	"context"

	"github.com/capitalize-ai/relay/internal/model"
	"github.com/capitalize-ai/relay/pkg/metrics"
)

// Feed is an open live feed for one identity. Events yields the hello
// event, the conversation snapshot, then incremental events, and is closed
// when the feed ends.
type Feed struct {
	identityID string
	sub        *Subscriber
	registry   *SubscriptionRegistry

	events chan model.Event
	cancel context.CancelFunc
	done   chan struct{}
}

func startFeed(ctx context.Context, registry *SubscriptionRegistry, sub *Subscriber, initial []model.Event) *Feed {
	ctx, cancel := context.WithCancel(ctx)
	f := &Feed{
		identityID: sub.IdentityID(),
		sub:        sub,
		registry:   registry,
		events:     make(chan model.Event),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	metrics.IncrementLiveFeeds()
	go f.run(ctx, initial)
	return f
}

// IdentityID returns the identity the feed observes.
func (f *Feed) IdentityID() string { return f.identityID }

// Events returns the ordered event stream.
func (f *Feed) Events() <-chan model.Event { return f.events }

// Done is closed once the feed has stopped and unregistered.
func (f *Feed) Done() <-chan struct{} { return f.done }

// Close ends the feed and waits for cleanup. Safe to call more than once
// and concurrently with context cancellation.
func (f *Feed) Close() {
	f.cancel()
	<-f.done
}

func (f *Feed) run(ctx context.Context, initial []model.Event) {
	defer func() {
		f.registry.Unsubscribe(f.sub)
		f.cancel()
		close(f.events)
		metrics.DecrementLiveFeeds()
		close(f.done)
	}()

	for _, event := range initial {
		if !f.send(ctx, event) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-f.sub.Events():
			if !ok {
				return
			}
			if !f.send(ctx, event) {
				return
			}
		}
	}
}

func (f *Feed) send(ctx context.Context, event model.Event) bool {
	select {
	case f.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
