package participant

import (
	"time"

	"exchange-hub-go/internal/domain/permission"
	"gorm.io/gorm"
)

// Participant links a user or a contact to an exchange with a role and
// optional per-capability overrides.
type Participant struct {
	ID          string               `gorm:"type:uuid;primaryKey" json:"id"`
	ExchangeID  string               `gorm:"type:uuid;not null;index" json:"exchange_id"`
	UserID      *string              `gorm:"type:uuid" json:"user_id"`
	ContactID   *string              `gorm:"type:uuid" json:"contact_id"`
	Role        string               `gorm:"type:varchar(32);not null" json:"role"`
	Permissions permission.Overrides `gorm:"serializer:json;type:jsonb" json:"permissions" casing:"passthrough"`
	AddedBy     *string              `gorm:"type:uuid" json:"added_by"`
	CreatedAt   time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt       `gorm:"index" json:"-"`
}

func (Participant) TableName() string {
	return "exchange_participants"
}

func (p *Participant) Elevated() bool {
	role, ok := permission.NormalizeRole(p.Role)
	return ok && role.Elevated()
}

// View is a participant joined with the display fields of its user or contact.
type View struct {
	Participant
	Name  string `json:"name"`
	Email string `json:"email"`
	Kind  string `json:"kind"`
}

type AddInput struct {
	UserID      *string
	ContactID   *string
	Role        string
	Permissions permission.Overrides
}

type UpdateInput struct {
	Role        *string
	Permissions permission.Overrides
	// ClearPermissions drops every stored override.
	ClearPermissions bool
}
