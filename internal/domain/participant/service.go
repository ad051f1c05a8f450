package participant

import (
	"context"
	"errors"
	"strings"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/domain/audit"
	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/internal/events"
	"exchange-hub-go/pkg/logger"
	"github.com/google/uuid"
)

type Permissions interface {
	Require(ctx context.Context, subject permission.Subject, exchangeID string, capability permission.Capability) (permission.Effective, error)
	Invalidate(ctx context.Context, exchangeID, userID string)
}

type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID, exchangeID string, details map[string]any)
}

type Service struct {
	repo        Repository
	permissions Permissions
	publisher   events.Publisher
	audit       Auditor
	log         logger.Logger
}

func NewService(repo Repository, permissions Permissions, publisher events.Publisher, auditor Auditor, log logger.Logger) *Service {
	return &Service{
		repo:        repo,
		permissions: permissions,
		publisher:   publisher,
		audit:       auditor,
		log:         log,
	}
}

func (s *Service) List(ctx context.Context, actor permission.Subject, exchangeID string) ([]View, error) {
	if _, err := s.permissions.Require(ctx, actor, exchangeID, permission.CanViewParticipants); err != nil {
		return nil, err
	}
	views, err := s.repo.List(ctx, exchangeID)
	if err != nil {
		return nil, apperror.Upstream("participant_list_failed", err)
	}
	return views, nil
}

func (s *Service) Add(ctx context.Context, actor permission.Subject, exchangeID string, input AddInput) (*Participant, error) {
	if _, err := s.permissions.Require(ctx, actor, exchangeID, permission.CanAddParticipants); err != nil {
		return nil, err
	}

	userID := trimmed(input.UserID)
	contactID := trimmed(input.ContactID)
	if (userID == nil) == (contactID == nil) {
		return nil, ErrSubjectRequired
	}
	var errs apperror.Collector
	for field, value := range map[string]*string{"user_id": userID, "contact_id": contactID} {
		if value == nil {
			continue
		}
		if _, err := uuid.Parse(*value); err != nil {
			errs.Add(field, "must be a uuid")
		}
	}
	validateOverrides(&errs, input.Permissions)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	role, err := s.grantableRole(actor, input.Role)
	if err != nil {
		return nil, err
	}

	participant := Participant{
		ID:          uuid.NewString(),
		ExchangeID:  exchangeID,
		UserID:      userID,
		ContactID:   contactID,
		Role:        string(role),
		Permissions: compact(input.Permissions),
		AddedBy:     &actor.UserID,
	}
	if err := s.repo.Create(ctx, &participant); err != nil {
		if errors.Is(err, ErrDuplicateParticipant) {
			return nil, err
		}
		return nil, apperror.Upstream("participant_create_failed", err)
	}

	s.afterChange(ctx, &participant, audit.ActionParticipantAdded, events.ParticipantAdded, actor.UserID, map[string]any{
		"role": participant.Role,
	})
	return &participant, nil
}

// Update changes a participant's role and/or permission overrides. Overrides
// are merged key by key; a null value clears that key.
func (s *Service) Update(ctx context.Context, actor permission.Subject, exchangeID, id string, input UpdateInput) (*Participant, error) {
	if _, err := s.permissions.Require(ctx, actor, exchangeID, permission.CanManageParticipants); err != nil {
		return nil, err
	}
	var errs apperror.Collector
	validateOverrides(&errs, input.Permissions)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	var nextRole *permission.Role
	if input.Role != nil {
		role, err := s.grantableRole(actor, *input.Role)
		if err != nil {
			return nil, err
		}
		nextRole = &role
	}

	var result Participant
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.LockExchange(ctx, exchangeID); err != nil {
			return err
		}
		current, err := tx.Get(ctx, exchangeID, id)
		if err != nil {
			return err
		}

		if nextRole != nil {
			if current.Elevated() && !nextRole.Elevated() {
				if err := ensureAnotherElevated(ctx, tx, exchangeID); err != nil {
					return err
				}
			}
			current.Role = string(*nextRole)
		}
		switch {
		case input.ClearPermissions:
			current.Permissions = nil
		case input.Permissions != nil:
			current.Permissions = merge(current.Permissions, input.Permissions)
		}

		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		result = *current
		return nil
	})
	if err != nil {
		return nil, wrapUpstream("participant_update_failed", err)
	}

	s.afterChange(ctx, &result, audit.ActionParticipantUpdated, events.ParticipantUpdated, actor.UserID, map[string]any{
		"role":        result.Role,
		"permissions": result.Permissions,
	})
	return &result, nil
}

// Remove soft-deletes a participant and drops any implicit coordinator or
// client standing the user had on the exchange. The last admin or
// coordinator of an exchange cannot be removed.
func (s *Service) Remove(ctx context.Context, actor permission.Subject, exchangeID, id string) error {
	if _, err := s.permissions.Require(ctx, actor, exchangeID, permission.CanManageParticipants); err != nil {
		return err
	}

	var removed Participant
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.LockExchange(ctx, exchangeID); err != nil {
			return err
		}
		current, err := tx.Get(ctx, exchangeID, id)
		if err != nil {
			return err
		}
		if current.Elevated() {
			if err := ensureAnotherElevated(ctx, tx, exchangeID); err != nil {
				return err
			}
		}
		removed = *current
		if err := tx.SoftDelete(ctx, id); err != nil {
			return err
		}
		if current.UserID != nil {
			return tx.ReleaseExchangeRoles(ctx, exchangeID, *current.UserID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLastElevatedParticipant) {
			logger.FromContext(ctx, s.log).BusinessError("participants.remove: last elevated participant", err,
				"exchange_id", exchangeID, "participant_id", id)
		}
		return wrapUpstream("participant_remove_failed", err)
	}

	s.afterChange(ctx, &removed, audit.ActionParticipantRemoved, events.ParticipantRemoved, actor.UserID, nil)
	return nil
}

// Join adds userID to the exchange unless they already are a participant.
// Used when an invitation is accepted.
func (s *Service) Join(ctx context.Context, exchangeID, userID string, role permission.Role, addedBy string) (*Participant, error) {
	existing, err := s.repo.FindByUser(ctx, exchangeID, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrParticipantNotFound) {
		return nil, apperror.Upstream("participant_lookup_failed", err)
	}

	participant := Participant{
		ID:         uuid.NewString(),
		ExchangeID: exchangeID,
		UserID:     &userID,
		Role:       string(role),
	}
	if addedBy != "" {
		participant.AddedBy = &addedBy
	}
	if err := s.repo.Create(ctx, &participant); err != nil {
		if errors.Is(err, ErrDuplicateParticipant) {
			return s.repo.FindByUser(ctx, exchangeID, userID)
		}
		return nil, apperror.Upstream("participant_create_failed", err)
	}

	s.afterChange(ctx, &participant, audit.ActionParticipantAdded, events.ParticipantAdded, userID, map[string]any{
		"role":   participant.Role,
		"source": "invitation",
	})
	return &participant, nil
}

func (s *Service) grantableRole(actor permission.Subject, value string) (permission.Role, error) {
	role, ok := permission.NormalizeRole(value)
	if !ok {
		return "", ErrInvalidRole
	}
	if role == permission.RoleAdmin && !actor.IsAdmin() {
		return "", ErrAdminGrantForbidden
	}
	return role, nil
}

func (s *Service) afterChange(ctx context.Context, p *Participant, action, eventType, actorID string, details map[string]any) {
	if p.UserID != nil {
		s.permissions.Invalidate(ctx, p.ExchangeID, *p.UserID)
	}
	if s.audit != nil {
		s.audit.Record(ctx, action, audit.EntityParticipant, p.ID, p.ExchangeID, details)
	}
	if s.publisher != nil {
		payload := map[string]any{"participant_id": p.ID, "role": p.Role}
		if p.UserID != nil {
			payload["user_id"] = *p.UserID
		}
		if err := s.publisher.Publish(ctx, events.New(eventType, p.ExchangeID, actorID, payload)); err != nil {
			logger.FromContext(ctx, s.log).InternalError("participants.publish: publish failed", err, "event_type", eventType)
		}
	}
}

func ensureAnotherElevated(ctx context.Context, tx Repository, exchangeID string) error {
	count, err := tx.CountElevated(ctx, exchangeID)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastElevatedParticipant
	}
	return nil
}

func validateOverrides(errs *apperror.Collector, overrides permission.Overrides) {
	for capability := range overrides {
		if !permission.IsCapability(string(capability)) {
			errs.Add("permissions."+string(capability), "unknown capability")
		}
	}
}

// compact drops unset keys so only explicit overrides are stored.
func compact(overrides permission.Overrides) permission.Overrides {
	if len(overrides) == 0 {
		return nil
	}
	out := make(permission.Overrides, len(overrides))
	for capability, value := range overrides {
		if value != nil {
			v := *value
			out[capability] = &v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func merge(current, patch permission.Overrides) permission.Overrides {
	out := make(permission.Overrides, len(current)+len(patch))
	for capability, value := range current {
		if value != nil {
			v := *value
			out[capability] = &v
		}
	}
	for capability, value := range patch {
		if value == nil {
			delete(out, capability)
			continue
		}
		v := *value
		out[capability] = &v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func wrapUpstream(code string, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Upstream(code, err)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
