package user

import (
	"context"
	"strings"
	"time"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/domain/audit"
	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID, exchangeID string, details map[string]any)
}

type Service struct {
	repo  Repository
	audit Auditor
	log   logger.Logger
}

func NewService(repo Repository, auditor Auditor, log logger.Logger) *Service {
	return &Service{repo: repo, audit: auditor, log: log}
}

// SyncFromAuth records the authenticated caller and returns the stored user
// with its role. New users start as clients.
func (s *Service) SyncFromAuth(ctx context.Context, authUser AuthUser) (*User, error) {
	if strings.TrimSpace(authUser.ID) == "" {
		return nil, ErrUserIDRequired
	}

	first, last := SplitName(authUser.Name)
	now := time.Now().UTC()
	user := User{
		ID:          authUser.ID,
		Email:       strings.ToLower(strings.TrimSpace(authUser.Email)),
		FirstName:   first,
		LastName:    last,
		Role:        string(DefaultRole),
		IsActive:    true,
		LastLoginAt: &now,
	}
	if authUser.AvatarURL != "" {
		user.AvatarURL = &authUser.AvatarURL
	}

	stored, err := s.repo.UpsertFromAuth(ctx, &user)
	if err != nil {
		return nil, apperror.Upstream("user_sync_failed", err)
	}
	return stored, nil
}

func (s *Service) Get(ctx context.Context, actor permission.Subject, id string) (*User, error) {
	if !actor.IsAdmin() && actor.UserID != id {
		return nil, ErrNotSelf
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, actor permission.Subject, filter ListFilter) ([]User, int64, error) {
	if err := permission.RequireRole(actor, permission.RoleAdmin); err != nil {
		return nil, 0, err
	}
	if filter.Role != "" {
		role, ok := permission.NormalizeRole(filter.Role)
		if !ok {
			return nil, 0, apperror.Invalid("role", "unknown role")
		}
		filter.Role = string(role)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	filter.Search = strings.TrimSpace(filter.Search)

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.Upstream("user_list_failed", err)
	}
	return users, total, nil
}

// Update lets users edit their own name and phone. Role and active status
// are admin-only.
func (s *Service) Update(ctx context.Context, actor permission.Subject, id string, input UpdateInput) (*User, error) {
	if !actor.IsAdmin() {
		if actor.UserID != id {
			return nil, ErrNotSelf
		}
		if input.Role != nil || input.IsActive != nil {
			return nil, ErrAdminFieldsForbidden
		}
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.FirstName != nil {
		fields["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		fields["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.Phone != nil {
		phone := strings.TrimSpace(*input.Phone)
		if phone == "" {
			fields["phone"] = nil
		} else {
			fields["phone"] = phone
		}
	}
	if input.Role != nil {
		role, ok := permission.NormalizeRole(*input.Role)
		if !ok {
			return nil, apperror.Invalid("role", "unknown role")
		}
		fields["role"] = string(role)
	}
	if input.IsActive != nil {
		if !*input.IsActive && actor.UserID == id {
			return nil, ErrCannotDeactivateSelf
		}
		fields["is_active"] = *input.IsActive
	}

	if len(fields) > 0 {
		if err := s.repo.Update(ctx, id, fields); err != nil {
			return nil, apperror.Upstream("user_update_failed", err)
		}
		details := make(map[string]any, len(fields))
		for k, v := range fields {
			if k != "phone" {
				details[k] = v
			}
		}
		s.audit.Record(ctx, audit.ActionUserUpdated, audit.EntityUser, id, "", details)
	}
	return s.repo.GetByID(ctx, id)
}

// PromoteFromInvitation applies an invitation's role to a user who still
// carries the default role. Admin is never granted this way.
func (s *Service) PromoteFromInvitation(ctx context.Context, userID string, role permission.Role) error {
	if role == DefaultRole || role == permission.RoleAdmin {
		return nil
	}
	changed, err := s.repo.SetRoleIfDefault(ctx, userID, string(role))
	if err != nil {
		return apperror.Upstream("user_role_update_failed", err)
	}
	if changed {
		logger.FromContext(ctx, s.log).Info("users.promote: role set from invitation", "user_id", userID, "role", role)
	}
	return nil
}

// EnsureActive rejects deactivated accounts.
func EnsureActive(u *User) error {
	if u == nil {
		return ErrUserNotFound
	}
	if !u.IsActive {
		return ErrUserInactive
	}
	return nil
}
