// Package events publishes domain events (status changes, participant and
// invitation changes) for downstream consumers such as the notification
// delivery workers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ExchangeCreated       = "exchange.created"
	ExchangeStatusChanged = "exchange.status_changed"
	ExchangeDeleted       = "exchange.deleted"
	ParticipantAdded      = "participant.added"
	ParticipantUpdated    = "participant.updated"
	ParticipantRemoved    = "participant.removed"
	InvitationSent        = "invitation.sent"
	InvitationAccepted    = "invitation.accepted"
	TaskAssigned          = "task.assigned"
	DocumentUploaded      = "document.uploaded"
	EntitySyncCompleted   = "entity_sync.completed"
)

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	ExchangeID string         `json:"exchange_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// New stamps an event with an id and the current time.
func New(eventType, exchangeID, actorID string, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ExchangeID: exchangeID,
		ActorID:    actorID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Key partitions events so that one exchange's events stay ordered.
func (e Event) Key() string {
	if e.ExchangeID != "" {
		return e.ExchangeID
	}
	return e.ID
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
