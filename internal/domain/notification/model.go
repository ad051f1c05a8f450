package notification

import "time"

type Category string

const (
	CategorySystem   Category = "system"
	CategoryExchange Category = "exchange"
	CategoryTask     Category = "task"
	CategoryDocument Category = "document"
	CategoryMessage  Category = "message"
	CategoryDeadline Category = "deadline"
)

func IsCategory(value string) bool {
	switch Category(value) {
	case CategorySystem, CategoryExchange, CategoryTask, CategoryDocument, CategoryMessage, CategoryDeadline:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func IsPriority(value string) bool {
	switch Priority(value) {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Notification struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string         `gorm:"type:uuid;not null;index" json:"user_id"`
	ExchangeID *string        `gorm:"type:uuid" json:"exchange_id"`
	Title      string         `gorm:"not null" json:"title"`
	Message    string         `gorm:"not null" json:"message"`
	Category   Category       `gorm:"type:varchar(16);not null" json:"category"`
	Priority   Priority       `gorm:"type:varchar(16);not null" json:"priority"`
	Link       *string        `json:"link"`
	Metadata   map[string]any `gorm:"serializer:json;type:jsonb" json:"metadata" casing:"passthrough"`
	ReadAt     *time.Time     `json:"read_at"`
	ArchivedAt *time.Time     `json:"archived_at"`
	ExpiresAt  *time.Time     `json:"expires_at"`
	CreatedBy  *string        `gorm:"type:uuid" json:"created_by"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

type ListFilter struct {
	UserID          string
	UnreadOnly      bool
	IncludeArchived bool
	Now             time.Time
	Limit           int
	Offset          int
}

type CreateInput struct {
	UserID     string
	ExchangeID *string
	Title      string
	Message    string
	Category   string
	Priority   string
	Link       *string
	Metadata   map[string]any
	ExpiresAt  *time.Time
}

type TemplateInput struct {
	TemplateKey string
	UserIDs     []string
	ExchangeID  *string
	Variables   map[string]string
	Link        *string
}

// BatchResult reports the outcome of one item of a batch create.
type BatchResult struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}
