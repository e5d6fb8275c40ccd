// Package events publishes domain events emitted by the cart, session and
// checkout components. Publishing is best effort: a failed publish is
// logged and never fails the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	CartUpdated          Type = "cart.updated"
	CartCleared          Type = "cart.cleared"
	SessionAuthenticated Type = "session.authenticated"
	SessionLoggedOut     Type = "session.logged_out"
	OrderSubmitted       Type = "order.submitted"
)

// AnonymousKey partitions events raised without an authenticated user.
const AnonymousKey = "anonymous"

type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	UserID     string          `json:"user_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Key is the partition key for e.
func (e Event) Key() string {
	if e.UserID == "" {
		return AnonymousKey
	}
	return e.UserID
}

// NewEvent stamps an event with a fresh id and the current time. A payload
// that does not marshal is dropped.
func NewEvent(t Type, userID string, payload any) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Payload = data
		}
	}
	return ev
}

// Publisher is implemented by event sinks.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// Emit publishes ev and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to publish event",
			"event_type", string(ev.Type),
			"event_id", ev.ID,
			"error", err)
	}
}
