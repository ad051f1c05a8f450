package task

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusReview     Status = "Review"
	StatusBlocked    Status = "Blocked"
	StatusCompleted  Status = "Completed"
)

var Statuses = []Status{StatusPending, StatusInProgress, StatusReview, StatusBlocked, StatusCompleted}

// NormalizeStatus accepts any casing with or without separators
// ("in_progress", "IN PROGRESS").
func NormalizeStatus(value string) (Status, bool) {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.TrimSpace(value)))
	for _, s := range Statuses {
		if strings.ToLower(string(s)) == key {
			return s, true
		}
	}
	if key == "todo" || key == "open" {
		return StatusPending, true
	}
	if key == "done" || key == "complete" {
		return StatusCompleted, true
	}
	return "", false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func NormalizePriority(value string) (Priority, bool) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(value))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, true
	case "normal":
		return PriorityMedium, true
	default:
		return "", false
	}
}

// AssignAll assigns a task to every participant of its exchange.
const AssignAll = "ALL"

type Task struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	ExchangeID  string         `gorm:"type:uuid;not null;index" json:"exchange_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description *string        `json:"description"`
	Status      Status         `gorm:"type:varchar(32);not null" json:"status"`
	Priority    Priority       `gorm:"type:varchar(16);not null" json:"priority"`
	DueDate     *time.Time     `gorm:"type:date" json:"due_date"`
	AssignedTo  *string        `gorm:"type:varchar(64)" json:"assigned_to"`
	CompletedAt *time.Time     `json:"completed_at"`
	CreatedBy   string         `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Task) TableName() string {
	return "tasks"
}

// AssignedUser returns the assignee when the task is assigned to one user.
func (t *Task) AssignedUser() (string, bool) {
	if t.AssignedTo == nil || *t.AssignedTo == "" || *t.AssignedTo == AssignAll {
		return "", false
	}
	return *t.AssignedTo, true
}

type ListFilter struct {
	ExchangeID string
	Status     string
	AssignedTo string
	Limit      int
	Offset     int
}

type CreateInput struct {
	Title       string
	Description *string
	Status      string
	Priority    string
	DueDate     *time.Time
	AssignedTo  *string
}

type UpdateInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
	ClearDue    bool
	AssignedTo  *string
}
