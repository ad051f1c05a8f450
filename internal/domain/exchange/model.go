package exchange

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusDraft      Status = "Draft"
	StatusPending    Status = "Pending"
	Status45D        Status = "45D"
	Status180D       Status = "180D"
	StatusCompleted  Status = "Completed"
	StatusTerminated Status = "Terminated"
	StatusOnHold     Status = "OnHold"
)

var Statuses = []Status{StatusDraft, StatusPending, Status45D, Status180D, StatusCompleted, StatusTerminated, StatusOnHold}

// legacyStatuses maps the spellings written by older clients and imports
// (already lowercased with separators removed) to the canonical status.
var legacyStatuses = map[string]Status{
	"draft":                StatusDraft,
	"new":                  StatusDraft,
	"pending":              StatusPending,
	"open":                 StatusPending,
	"45d":                  Status45D,
	"45day":                Status45D,
	"45days":               Status45D,
	"identification":       Status45D,
	"identificationperiod": Status45D,
	"180d":                 Status180D,
	"180day":               Status180D,
	"180days":              Status180D,
	"exchangeperiod":       Status180D,
	"completed":            StatusCompleted,
	"complete":             StatusCompleted,
	"closed":               StatusCompleted,
	"terminated":           StatusTerminated,
	"cancelled":            StatusTerminated,
	"canceled":             StatusTerminated,
	"onhold":               StatusOnHold,
	"hold":                 StatusOnHold,
	"paused":               StatusOnHold,
}

// NormalizeStatus maps a stored or requested status to its canonical form.
func NormalizeStatus(value string) (Status, bool) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	status, ok := legacyStatuses[key]
	return status, ok
}

// Variants returns every stored spelling that normalizes to s, including s.
func (s Status) Variants() []string {
	out := []string{string(s)}
	seen := map[string]struct{}{string(s): {}}
	for key, status := range legacyStatuses {
		if status != s {
			continue
		}
		for _, v := range []string{key, strings.ToUpper(key)} {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	for _, v := range []string{strings.ToUpper(string(s)), strings.ToLower(string(s))} {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusTerminated
}

const (
	TypeDelayed      = "delayed"
	TypeReverse      = "reverse"
	TypeImprovement  = "improvement"
	TypeSimultaneous = "simultaneous"
)

var exchangeTypes = map[string]struct{}{
	TypeDelayed: {}, TypeReverse: {}, TypeImprovement: {}, TypeSimultaneous: {},
}

func IsExchangeType(value string) bool {
	_, ok := exchangeTypes[value]
	return ok
}

const (
	SyncStatusPending   = "pending"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

type Property struct {
	Address     string   `json:"address"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	Zip         string   `json:"zip,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Description string   `json:"description,omitempty"`
}

func (p *Property) Present() bool {
	return p != nil && strings.TrimSpace(p.Address) != ""
}

type Exchange struct {
	ID                     string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name                   string         `gorm:"not null" json:"name"`
	ExchangeNumber         *string        `json:"exchange_number"`
	Status                 Status         `gorm:"type:varchar(32);not null" json:"status"`
	PreviousStatus         *Status        `gorm:"type:varchar(32)" json:"previous_status"`
	StatusChangedAt        *time.Time     `json:"status_changed_at"`
	ExchangeType           string         `gorm:"type:varchar(32);not null" json:"exchange_type"`
	ExchangeValue          *float64       `gorm:"type:numeric(14,2)" json:"exchange_value"`
	CoordinatorID          *string        `gorm:"type:uuid" json:"coordinator_id"`
	ClientID               *string        `gorm:"type:uuid" json:"client_id"`
	RelinquishedProperty   *Property      `gorm:"serializer:json;type:jsonb" json:"relinquished_property"`
	ReplacementProperty    *Property      `gorm:"serializer:json;type:jsonb" json:"replacement_property"`
	StartDate              *time.Time     `gorm:"type:date" json:"start_date"`
	CloseOfEscrowDate      *time.Time     `gorm:"type:date" json:"close_of_escrow_date"`
	ProceedsReceivedDate   *time.Time     `gorm:"type:date" json:"proceeds_received_date"`
	IdentificationDeadline *time.Time     `gorm:"type:date" json:"identification_deadline"`
	CompletionDeadline     *time.Time     `gorm:"type:date" json:"completion_deadline"`
	PPMatterID             *string        `json:"pp_matter_id"`
	PPData                 map[string]any `gorm:"serializer:json;type:jsonb" json:"pp_data,omitempty" casing:"passthrough"`
	EntitySyncStatus       *string        `json:"entity_sync_status"`
	EntitySyncedAt         *time.Time     `json:"entity_synced_at"`
	EntitySyncError        *string        `json:"entity_sync_error,omitempty"`
	Metadata               map[string]any `gorm:"serializer:json;type:jsonb" json:"metadata" casing:"passthrough"`
	Version                int            `gorm:"not null;default:1" json:"version"`
	CreatedBy              *string        `gorm:"type:uuid" json:"created_by"`
	CreatedAt              time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`
}

// CurrentStatus is the canonical form of the stored status.
func (e *Exchange) CurrentStatus() (Status, bool) {
	return NormalizeStatus(string(e.Status))
}

type ListFilter struct {
	ViewerID string
	All      bool
	Status   string
	Search   string
	Limit    int
	Offset   int
}

type Page struct {
	Items  []Exchange `json:"items"`
	Total  int64      `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

type CreateInput struct {
	Name                 string
	ExchangeNumber       *string
	ExchangeType         string
	ExchangeValue        *float64
	CoordinatorID        *string
	ClientID             *string
	RelinquishedProperty *Property
	ReplacementProperty  *Property
	StartDate            *time.Time
	CloseOfEscrowDate    *time.Time
	ProceedsReceivedDate *time.Time
	PPMatterID           *string
	Metadata             map[string]any
}

type UpdateInput struct {
	Name                 *string
	ExchangeNumber       *string
	ExchangeType         *string
	ExchangeValue        *float64
	CoordinatorID        *string
	ClientID             *string
	RelinquishedProperty *Property
	ReplacementProperty  *Property
	StartDate            *time.Time
	CloseOfEscrowDate    *time.Time
	ProceedsReceivedDate *time.Time
	PPMatterID           *string
	Metadata             map[string]any
	Status               *string
}

// StatusChange is what a successful transition writes.
type StatusChange struct {
	To             Status
	PreviousStatus *Status
	ChangedAt      time.Time
}

type TransitionInput struct {
	To     string
	Reason string
}
