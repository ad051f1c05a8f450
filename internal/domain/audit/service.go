package audit

import (
	"context"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/pkg/logger"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type Permissions interface {
	Require(ctx context.Context, subject permission.Subject, exchangeID string, capability permission.Capability) (permission.Effective, error)
}

type Service struct {
	repo        Repository
	permissions Permissions
	log         logger.Logger
}

func NewService(repo Repository, permissions Permissions, log logger.Logger) *Service {
	return &Service{repo: repo, permissions: permissions, log: log}
}

// Record appends an entry. Failures are logged and swallowed: the action the
// entry describes has already happened.
func (s *Service) Record(ctx context.Context, action, entityType, entityID, exchangeID string, details map[string]any) {
	entry := NewEntry(ctx, action, entityType, entityID, exchangeID, details)
	if err := s.repo.Append(ctx, &entry); err != nil {
		logger.FromContext(ctx, s.log).InternalError("audit.record: append failed", err,
			"action", action, "entity_type", entityType, "entity_id", entityID)
	}
}

// List returns entries across the system. Admin only.
func (s *Service) List(ctx context.Context, actor permission.Subject, filter ListFilter) ([]Entry, error) {
	if err := permission.RequireRole(actor, permission.RoleAdmin); err != nil {
		return nil, err
	}
	filter.Limit = clampLimit(filter.Limit)
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperror.Upstream("audit_list_failed", err)
	}
	return entries, nil
}

func (s *Service) ListForExchange(ctx context.Context, actor permission.Subject, exchangeID string, filter ListFilter) ([]Entry, error) {
	if _, err := s.permissions.Require(ctx, actor, exchangeID, permission.CanViewAudit); err != nil {
		return nil, err
	}
	filter.ExchangeID = exchangeID
	filter.Limit = clampLimit(filter.Limit)
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperror.Upstream("audit_list_failed", err)
	}
	return entries, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
