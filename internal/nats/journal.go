package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/relay/internal/model"
)

const (
	// StreamName is the name of the journal stream.
	StreamName = "RELAY_EVENTS"

	// SubjectPrefix is the prefix for all journal subjects.
	SubjectPrefix = "relay"
)

// Entry is one journaled event.
type Entry struct {
	ID         string      `json:"id"`
	RecordedAt time.Time   `json:"recorded_at"`
	Event      model.Event `json:"event"`
}

// Journal mirrors relay events into a JetStream stream for archival
// consumers. It is write-only: the relay never reads it back.
type Journal struct {
	client *Client
	now    func() time.Time
}

// NewJournal creates a journal on top of an established client.
func NewJournal(client *Client) *Journal {
	return &Journal{client: client, now: time.Now}
}

// EnsureStream creates the journal stream if it does not exist.
func (j *Journal) EnsureStream(ctx context.Context) error {
	js := j.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Duplicates:  2 * time.Minute,
		Description: "Relay identity, conversation and message events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Record publishes event asynchronously. Acknowledgement failures are
// reported through the client's async error handler.
func (j *Journal) Record(_ context.Context, event model.Event) error {
	entry := Entry{
		ID:         uuid.Must(uuid.NewV7()).String(),
		RecordedAt: j.now().UTC(),
		Event:      event,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := j.client.JetStream().PublishAsync(EventSubject(event), data, jetstream.WithMsgID(entry.ID)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// EventSubject returns the subject an event is journaled under:
// relay.<type>.<key>.
func EventSubject(event model.Event) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, event.Type, subjectToken(event.Key()))
}

// subjectToken makes an arbitrary client-supplied id usable as a single
// subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '.' || r == '*' || r == '>':
			return '_'
		case r <= ' ' || r == 0x7f:
			return '_'
		}
		return r
	}, s)
}
