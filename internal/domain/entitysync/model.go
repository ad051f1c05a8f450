package entitysync

import "time"

// Candidate source fields inside an exchange's mirrored matter.
const (
	SourceAccount  = "account_ref"
	SourceContacts = "contacts"
	SourceUsers    = "assigned_to_users"
)

const (
	ActionMatchedUser    = "matched_user"
	ActionMatchedContact = "matched_contact"
	ActionCreatedContact = "created_contact"
	ActionSkipped        = "skipped"
	ActionFailed         = "failed"
)

// Candidate is one person found in a matter.
type Candidate struct {
	Source    string
	PPID      string
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Company   string
	Raw       map[string]any
}

func (c Candidate) Name() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

type EntityResult struct {
	Source    string `json:"source"`
	PPID      string `json:"pp_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Action    string `json:"action"`
	MatchedID string `json:"matched_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ExchangeResult struct {
	ExchangeID string         `json:"exchange_id"`
	Success    bool           `json:"success"`
	Refreshed  bool           `json:"refreshed"`
	Entities   []EntityResult `json:"entities"`
	Error      string         `json:"error,omitempty"`
}

type BulkOptions struct {
	Limit         int
	SkipCompleted bool
}

type BulkResult struct {
	Processed int              `json:"processed"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []ExchangeResult `json:"results"`
}

// StatusSummary counts exchanges per entity sync status. Exchanges that were
// never synced are counted under "never".
type StatusSummary struct {
	Counts     map[string]int64 `json:"counts"`
	Total      int64            `json:"total"`
	LastSyncAt *time.Time       `json:"last_sync_at"`
}

// MatchedRecord is a user or contact found by PracticePanther id or email.
type MatchedRecord struct {
	ID          string
	PPContactID *string
}

type ContactInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string
	PPID      string
	Raw       map[string]any
}
