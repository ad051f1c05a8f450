package invitation

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Invitation is an offer to join an exchange. Only the hash of its token is
// stored; the token itself is handed out once, when the invitation is sent.
type Invitation struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	ExchangeID string     `gorm:"type:uuid;not null;index" json:"exchange_id"`
	Email      *string    `json:"email"`
	Phone      *string    `json:"phone"`
	Role       string     `gorm:"type:varchar(32);not null" json:"role"`
	Message    *string    `json:"message"`
	TokenHash  string     `gorm:"not null;uniqueIndex" json:"-"`
	Status     Status     `gorm:"type:varchar(16);not null" json:"status"`
	InvitedBy  string     `gorm:"type:uuid;not null" json:"invited_by"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at"`
	AcceptedBy *string    `gorm:"type:uuid" json:"accepted_by"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Invitation) TableName() string {
	return "invitations"
}

func (i *Invitation) Expired(now time.Time) bool {
	return i.Status == StatusExpired || (i.Status == StatusPending && !now.Before(i.ExpiresAt))
}

// Sent is returned to the sender only. Token is the secret for the accept link.
type Sent struct {
	Invitation
	Token string `json:"token"`
}

// Preview is what an invitee sees before signing in.
type Preview struct {
	ID           string    `json:"id"`
	ExchangeID   string    `json:"exchange_id"`
	ExchangeName string    `json:"exchange_name"`
	Role         string    `json:"role"`
	Email        *string   `json:"email"`
	Message      *string   `json:"message"`
	Status       Status    `json:"status"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type SendInput struct {
	Email   *string
	Phone   *string
	Role    string
	Message *string
}

// Transition is a compare-and-swap on an invitation's status.
type Transition struct {
	From       Status
	To         Status
	AcceptedAt *time.Time
	AcceptedBy *string
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
