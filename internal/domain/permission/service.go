package permission

import (
	"context"
	"fmt"
	"time"

	"exchange-hub-go/pkg/logger"
)

// Subject is the authenticated caller as seen by the resolver.
type Subject struct {
	UserID string
	Role   Role
}

func (s Subject) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Assignment is a caller's standing on one exchange. An empty Role means the
// caller's global role applies.
type Assignment struct {
	Role      string
	Overrides Overrides
}

// AssignmentSource looks up the caller's participant record. It returns
// (nil, nil) when the caller is not on the exchange.
type AssignmentSource interface {
	FindAssignment(ctx context.Context, exchangeID, userID string) (*Assignment, error)
}

type Service struct {
	table       *Table
	assignments AssignmentSource
	cache       Cache
	cacheTTL    time.Duration
	log         logger.Logger
}

func NewService(table *Table, assignments AssignmentSource, cache Cache, cacheTTL time.Duration, log logger.Logger) *Service {
	if table == nil {
		table = DefaultTable()
	}
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{
		table:       table,
		assignments: assignments,
		cache:       cache,
		cacheTTL:    cacheTTL,
		log:         log,
	}
}

func (s *Service) Table() *Table {
	return s.table
}

// ResolveForExchange returns the caller's effective permissions on one
// exchange. A failed participant lookup degrades to the role defaults and is
// logged; it is never returned to the caller.
func (s *Service) ResolveForExchange(ctx context.Context, subject Subject, exchangeID string) Effective {
	if subject.IsAdmin() {
		effective := s.table.Resolve(RoleAdmin, nil)
		effective.IsParticipant = true
		return effective
	}

	if cached, ok := s.cache.Get(ctx, exchangeID, subject.UserID); ok {
		return *cached
	}

	assignment, err := s.assignments.FindAssignment(ctx, exchangeID, subject.UserID)
	if err != nil {
		logger.FromContext(ctx, s.log).InternalError("permissions.resolve: participant lookup failed, using role defaults", err,
			"exchange_id", exchangeID, "user_id", subject.UserID, "role", subject.Role)
		effective := s.table.Resolve(subject.Role, nil)
		effective.Source = SourceFallback
		return effective
	}

	if assignment == nil {
		return s.table.Resolve(subject.Role, nil)
	}

	role := subject.Role
	if parsed, ok := NormalizeRole(assignment.Role); ok && parsed != RoleAdmin {
		role = parsed
	}

	effective := s.table.Resolve(role, assignment.Overrides)
	effective.IsParticipant = true
	s.cache.Set(ctx, exchangeID, subject.UserID, effective, s.cacheTTL)
	return effective
}

// Require resolves and checks one capability. Callers that are not on the
// exchange are rejected unless the lookup itself failed.
func (s *Service) Require(ctx context.Context, subject Subject, exchangeID string, capability Capability) (Effective, error) {
	effective := s.ResolveForExchange(ctx, subject, exchangeID)
	if !effective.IsParticipant && effective.Source != SourceFallback {
		return effective, ErrNoExchangeAccess
	}
	if capability != "" && !effective.Can(capability) {
		return effective, fmt.Errorf("%s: %w", capability, ErrPermissionDenied)
	}
	return effective, nil
}

// RequireAccess checks only that the caller can see the exchange.
func (s *Service) RequireAccess(ctx context.Context, subject Subject, exchangeID string) (Effective, error) {
	return s.Require(ctx, subject, exchangeID, "")
}

// Invalidate drops the cached permissions of one participant.
func (s *Service) Invalidate(ctx context.Context, exchangeID, userID string) {
	s.cache.Delete(ctx, exchangeID, userID)
}

// InvalidateExchange drops every cached entry of an exchange.
func (s *Service) InvalidateExchange(ctx context.Context, exchangeID string) {
	s.cache.DeleteExchange(ctx, exchangeID)
}

// RequireRole rejects callers whose global role is not in roles.
func RequireRole(subject Subject, roles ...Role) error {
	for _, role := range roles {
		if subject.Role == role {
			return nil
		}
	}
	if len(roles) == 1 && roles[0] == RoleAdmin {
		return ErrAdminOnly
	}
	return ErrPermissionDenied
}
