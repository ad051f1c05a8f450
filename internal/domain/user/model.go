package user

import (
	"strings"
	"time"

	"exchange-hub-go/internal/domain/permission"
)

const DefaultRole = permission.RoleClient

type User struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string         `gorm:"not null" json:"email"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Phone       *string        `json:"phone"`
	AvatarURL   *string        `json:"avatar_url"`
	Role        string         `gorm:"type:varchar(32);not null" json:"role"`
	IsActive    bool           `gorm:"not null" json:"is_active"`
	PPContactID *string        `json:"pp_contact_id"`
	PPData      map[string]any `gorm:"serializer:json;type:jsonb" json:"pp_data,omitempty" casing:"passthrough"`
	LastLoginAt *time.Time     `json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Subject is the user as seen by the permission resolver. Unrecognised
// stored roles are kept verbatim and therefore grant nothing.
func (u *User) Subject() permission.Subject {
	role, ok := permission.NormalizeRole(u.Role)
	if !ok {
		role = permission.Role(u.Role)
	}
	return permission.Subject{UserID: u.ID, Role: role}
}

// Contact is a person known to an exchange who has no login.
type Contact struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Email       *string        `json:"email"`
	Phone       *string        `json:"phone"`
	Company     *string        `json:"company"`
	PPContactID *string        `json:"pp_contact_id"`
	PPData      map[string]any `gorm:"serializer:json;type:jsonb" json:"pp_data,omitempty" casing:"passthrough"`
	Source      string         `gorm:"type:varchar(32);not null" json:"source"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	ContactSourceManual          = "manual"
	ContactSourcePracticePanther = "practice_panther"
)

// AuthUser is what the auth middleware knows about the caller.
type AuthUser struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

type ListFilter struct {
	Role   string
	Search string
	Limit  int
	Offset int
}

type UpdateInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Role      *string
	IsActive  *bool
}

// SplitName breaks a display name into first and last name.
func SplitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
