package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ActionExchangeCreated       = "exchange.created"
	ActionExchangeUpdated       = "exchange.updated"
	ActionExchangeDeleted       = "exchange.deleted"
	ActionExchangeStatusChanged = "exchange.status_changed"
	ActionParticipantAdded      = "participant.added"
	ActionParticipantUpdated    = "participant.updated"
	ActionParticipantRemoved    = "participant.removed"
	ActionInvitationSent        = "invitation.sent"
	ActionInvitationCancelled   = "invitation.cancelled"
	ActionInvitationAccepted    = "invitation.accepted"
	ActionTaskCreated           = "task.created"
	ActionTaskUpdated           = "task.updated"
	ActionTaskDeleted           = "task.deleted"
	ActionDocumentUploaded      = "document.uploaded"
	ActionDocumentDownloaded    = "document.downloaded"
	ActionDocumentDeleted       = "document.deleted"
	ActionUserUpdated           = "user.updated"
	ActionNotificationCreated   = "notification.created"
	ActionNotificationRead      = "notification.read"
	ActionNotificationReadAll   = "notification.read_all"
	ActionNotificationArchived  = "notification.archived"
	ActionNotificationDeleted   = "notification.deleted"
	ActionEntitySync            = "entity_sync.run"
)

const (
	EntityExchange     = "exchange"
	EntityParticipant  = "participant"
	EntityInvitation   = "invitation"
	EntityTask         = "task"
	EntityDocument     = "document"
	EntityUser         = "user"
	EntityNotification = "notification"
)

// Entry is one immutable audit record.
type Entry struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	Action     string         `gorm:"not null;index" json:"action"`
	EntityType string         `gorm:"not null" json:"entity_type"`
	EntityID   string         `gorm:"not null" json:"entity_id"`
	ExchangeID *string        `gorm:"type:uuid;index" json:"exchange_id"`
	ActorID    *string        `gorm:"type:uuid;index" json:"actor_id"`
	IPAddress  *string        `json:"ip_address"`
	UserAgent  *string        `json:"user_agent"`
	Details    map[string]any `gorm:"serializer:json;type:jsonb" json:"details" casing:"passthrough"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Entry) TableName() string {
	return "audit_logs"
}

type ListFilter struct {
	EntityType string
	EntityID   string
	ExchangeID string
	ActorID    string
	Limit      int
	Offset     int
}

// Meta is the request information every entry carries.
type Meta struct {
	ActorID   string
	IPAddress string
	UserAgent string
}

type metaKey struct{}

func WithMeta(ctx context.Context, meta Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

func MetaFromContext(ctx context.Context) Meta {
	meta, _ := ctx.Value(metaKey{}).(Meta)
	return meta
}

// NewEntry builds an entry stamped with the request meta found in ctx.
// exchangeID may be empty for entries that are not scoped to an exchange.
func NewEntry(ctx context.Context, action, entityType, entityID, exchangeID string, details map[string]any) Entry {
	meta := MetaFromContext(ctx)
	return Entry{
		ID:         uuid.NewString(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ExchangeID: optional(exchangeID),
		ActorID:    optional(meta.ActorID),
		IPAddress:  optional(meta.IPAddress),
		UserAgent:  optional(meta.UserAgent),
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
