package exchange

import (
	"context"
	"sort"
	"strings"
	"time"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/domain/audit"
	"exchange-hub-go/internal/domain/participant"
	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/internal/events"
	"exchange-hub-go/pkg/logger"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type TimeSource func() time.Time

type Permissions interface {
	Require(ctx context.Context, subject permission.Subject, exchangeID string, capability permission.Capability) (permission.Effective, error)
	RequireAccess(ctx context.Context, subject permission.Subject, exchangeID string) (permission.Effective, error)
	InvalidateExchange(ctx context.Context, exchangeID string)
}

// Notifier fans a templated notification out to an exchange's participants.
type Notifier interface {
	NotifyExchange(ctx context.Context, exchangeID, excludeUserID, templateKey string, vars map[string]string) error
}

type Service struct {
	repo        Repository
	permissions Permissions
	publisher   events.Publisher
	notifier    Notifier
	log         logger.Logger
	now         TimeSource
}

func NewService(repo Repository, permissions Permissions, publisher events.Publisher, notifier Notifier, log logger.Logger) *Service {
	return &Service{
		repo:        repo,
		permissions: permissions,
		publisher:   publisher,
		notifier:    notifier,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context, actor permission.Subject, filter ListFilter) (*Page, error) {
	filter.ViewerID = actor.UserID
	filter.All = actor.IsAdmin()
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Status != "" {
		status, ok := NormalizeStatus(filter.Status)
		if !ok {
			return nil, apperror.Invalid("status", "unknown status")
		}
		filter.Status = string(status)
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperror.Upstream("exchange_list_failed", err)
	}
	if !actor.Role.Elevated() {
		for i := range items {
			items[i].PPData = nil
		}
	}
	return &Page{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Get returns the exchange with the fields the caller may not see removed.
func (s *Service) Get(ctx context.Context, actor permission.Subject, id string) (*Exchange, permission.Effective, error) {
	exchange, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, permission.Effective{}, err
	}
	effective, err := s.permissions.RequireAccess(ctx, actor, id)
	if err != nil {
		return nil, effective, err
	}
	redact(exchange, effective)
	return exchange, effective, nil
}

func (s *Service) Create(ctx context.Context, actor permission.Subject, input CreateInput) (*Exchange, error) {
	if err := permission.RequireRole(actor, permission.RoleAdmin, permission.RoleCoordinator); err != nil {
		return nil, ErrCreateForbidden
	}

	var errs apperror.Collector
	name := strings.TrimSpace(input.Name)
	if name == "" {
		errs.Add("name", "name is required")
	}
	exchangeType := strings.ToLower(strings.TrimSpace(input.ExchangeType))
	if exchangeType == "" {
		exchangeType = TypeDelayed
	}
	if !IsExchangeType(exchangeType) {
		errs.Add("exchange_type", "unknown exchange type")
	}
	if input.ExchangeValue != nil && *input.ExchangeValue < 0 {
		errs.Add("exchange_value", "exchange value cannot be negative")
	}
	validateID(&errs, "coordinator_id", input.CoordinatorID)
	validateID(&errs, "client_id", input.ClientID)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	coordinatorID := input.CoordinatorID
	if coordinatorID == nil && actor.Role == permission.RoleCoordinator {
		coordinatorID = &actor.UserID
	}

	exchange := Exchange{
		ID:                   uuid.NewString(),
		Name:                 name,
		ExchangeNumber:       trimmed(input.ExchangeNumber),
		Status:               StatusDraft,
		ExchangeType:         exchangeType,
		ExchangeValue:        input.ExchangeValue,
		CoordinatorID:        coordinatorID,
		ClientID:             input.ClientID,
		RelinquishedProperty: input.RelinquishedProperty,
		ReplacementProperty:  input.ReplacementProperty,
		StartDate:            dateOnly(input.StartDate),
		CloseOfEscrowDate:    dateOnly(input.CloseOfEscrowDate),
		ProceedsReceivedDate: dateOnly(input.ProceedsReceivedDate),
		PPMatterID:           trimmed(input.PPMatterID),
		Metadata:             input.Metadata,
		Version:              1,
		CreatedBy:            &actor.UserID,
	}
	exchange.ApplyDeadlines()

	err := s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.Create(ctx, &exchange); err != nil {
			return err
		}
		if coordinatorID != nil {
			if err := tx.AddParticipant(ctx, newParticipant(exchange.ID, *coordinatorID, permission.RoleCoordinator, actor.UserID)); err != nil {
				return err
			}
		}
		if input.ClientID != nil && (coordinatorID == nil || *input.ClientID != *coordinatorID) {
			if err := tx.AddParticipant(ctx, newParticipant(exchange.ID, *input.ClientID, permission.RoleClient, actor.UserID)); err != nil {
				return err
			}
		}
		entry := audit.NewEntry(ctx, audit.ActionExchangeCreated, audit.EntityExchange, exchange.ID, exchange.ID, map[string]any{
			"name":   exchange.Name,
			"status": exchange.Status,
		})
		return tx.AppendAudit(ctx, &entry)
	})
	if err != nil {
		return nil, apperror.Upstream("exchange_create_failed", err)
	}

	logger.FromContext(ctx, s.log).Info("exchanges.create: exchange created", "exchange_id", exchange.ID, "actor_id", actor.UserID)
	s.publish(ctx, events.New(events.ExchangeCreated, exchange.ID, actor.UserID, map[string]any{"name": exchange.Name}))
	return &exchange, nil
}

func (s *Service) Update(ctx context.Context, actor permission.Subject, id string, input UpdateInput) (*Exchange, error) {
	if input.Status != nil {
		return nil, ErrStatusNotUpdatable
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	effective, err := s.permissions.Require(ctx, actor, id, permission.CanEdit)
	if err != nil {
		return nil, err
	}

	datesChanged := input.StartDate != nil || input.CloseOfEscrowDate != nil || input.ProceedsReceivedDate != nil
	if input.ExchangeValue != nil && !effective.Can(permission.CanEditFinancial) {
		return nil, apperror.Forbidden(permission.ErrPermissionDenied.Code, "editing the exchange value requires can_edit_financial")
	}
	if datesChanged && !effective.Can(permission.CanEditTimeline) {
		return nil, apperror.Forbidden(permission.ErrPermissionDenied.Code, "editing exchange dates requires can_edit_timeline")
	}

	var errs apperror.Collector
	fields := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			errs.Add("name", "name is required")
		}
		fields["name"] = name
	}
	if input.ExchangeNumber != nil {
		fields["exchange_number"] = trimmed(input.ExchangeNumber)
	}
	if input.ExchangeType != nil {
		exchangeType := strings.ToLower(strings.TrimSpace(*input.ExchangeType))
		if !IsExchangeType(exchangeType) {
			errs.Add("exchange_type", "unknown exchange type")
		}
		fields["exchange_type"] = exchangeType
	}
	if input.ExchangeValue != nil {
		if *input.ExchangeValue < 0 {
			errs.Add("exchange_value", "exchange value cannot be negative")
		}
		fields["exchange_value"] = *input.ExchangeValue
	}
	if input.CoordinatorID != nil {
		validateID(&errs, "coordinator_id", input.CoordinatorID)
		fields["coordinator_id"] = *input.CoordinatorID
	}
	if input.ClientID != nil {
		validateID(&errs, "client_id", input.ClientID)
		fields["client_id"] = *input.ClientID
	}
	if input.RelinquishedProperty != nil {
		fields["relinquished_property"] = input.RelinquishedProperty
	}
	if input.ReplacementProperty != nil {
		fields["replacement_property"] = input.ReplacementProperty
	}
	if input.PPMatterID != nil {
		fields["pp_matter_id"] = trimmed(input.PPMatterID)
	}
	if input.Metadata != nil {
		fields["metadata"] = input.Metadata
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if datesChanged {
		next := *current
		if input.StartDate != nil {
			next.StartDate = dateOnly(input.StartDate)
			fields["start_date"] = next.StartDate
		}
		if input.CloseOfEscrowDate != nil {
			next.CloseOfEscrowDate = dateOnly(input.CloseOfEscrowDate)
			fields["close_of_escrow_date"] = next.CloseOfEscrowDate
		}
		if input.ProceedsReceivedDate != nil {
			next.ProceedsReceivedDate = dateOnly(input.ProceedsReceivedDate)
			fields["proceeds_received_date"] = next.ProceedsReceivedDate
		}
		next.ApplyDeadlines()
		fields["identification_deadline"] = next.IdentificationDeadline
		fields["completion_deadline"] = next.CompletionDeadline
	}
	if len(fields) == 0 {
		redact(current, effective)
		return current, nil
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		ok, err := tx.UpdateFields(ctx, id, current.Version, fields)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentModification
		}
		entry := audit.NewEntry(ctx, audit.ActionExchangeUpdated, audit.EntityExchange, id, id, map[string]any{
			"fields": fieldNames(fields),
		})
		return tx.AppendAudit(ctx, &entry)
	})
	if err != nil {
		if apperror.IsKind(err, apperror.KindConflict) {
			return nil, err
		}
		return nil, apperror.Upstream("exchange_update_failed", err)
	}

	if input.CoordinatorID != nil || input.ClientID != nil {
		s.permissions.InvalidateExchange(ctx, id)
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	redact(updated, effective)
	return updated, nil
}

// Delete soft-deletes the exchange. Admin only.
func (s *Service) Delete(ctx context.Context, actor permission.Subject, id string) error {
	if err := permission.RequireRole(actor, permission.RoleAdmin); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	err := s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.SoftDelete(ctx, id); err != nil {
			return err
		}
		entry := audit.NewEntry(ctx, audit.ActionExchangeDeleted, audit.EntityExchange, id, id, nil)
		return tx.AppendAudit(ctx, &entry)
	})
	if err != nil {
		return apperror.Upstream("exchange_delete_failed", err)
	}

	s.permissions.InvalidateExchange(ctx, id)
	s.publish(ctx, events.New(events.ExchangeDeleted, id, actor.UserID, nil))
	return nil
}

// Permissions returns the caller's effective permissions and tabs.
func (s *Service) Permissions(ctx context.Context, actor permission.Subject, id string) (permission.Effective, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return permission.Effective{}, err
	}
	return s.permissions.RequireAccess(ctx, actor, id)
}

func (s *Service) Transitions(ctx context.Context, actor permission.Subject, id string) (Status, []TransitionOption, error) {
	exchange, _, err := s.Get(ctx, actor, id)
	if err != nil {
		return "", nil, err
	}
	current, _ := exchange.CurrentStatus()
	return current, Transitions(exchange), nil
}

func (s *Service) ValidateTransition(ctx context.Context, actor permission.Subject, id, target string) (Validation, error) {
	exchange, _, err := s.Get(ctx, actor, id)
	if err != nil {
		return Validation{}, err
	}
	return ValidateTransition(exchange, target), nil
}

// ExecuteTransition re-validates and writes the new status together with its
// audit entry. The write only lands if nobody changed the exchange since it
// was read.
func (s *Service) ExecuteTransition(ctx context.Context, actor permission.Subject, id string, input TransitionInput) (*Exchange, error) {
	log := logger.FromContext(ctx, s.log)

	exchange, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	effective, err := s.permissions.Require(ctx, actor, id, permission.CanEdit)
	if err != nil {
		return nil, err
	}

	validation := ValidateTransition(exchange, input.To)
	if !validation.Valid {
		log.BusinessError("exchanges.transition: transition rejected", ErrTransitionRejected,
			"exchange_id", id, "from", validation.From, "to", validation.To, "failed_conditions", validation.FailedConditions)
		return nil, transitionRejected(validation)
	}

	change := PlanChange(validation, s.now)
	reason := strings.TrimSpace(input.Reason)
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		ok, err := tx.SwapStatus(ctx, id, exchange.Status, exchange.Version, change)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStatusConflict
		}
		entry := audit.NewEntry(ctx, audit.ActionExchangeStatusChanged, audit.EntityExchange, id, id, map[string]any{
			"from_status": validation.From,
			"to_status":   validation.To,
			"reason":      reason,
		})
		return tx.AppendAudit(ctx, &entry)
	})
	if err != nil {
		if apperror.IsKind(err, apperror.KindConflict) {
			log.BusinessError("exchanges.transition: lost race", err, "exchange_id", id, "version", exchange.Version)
			return nil, err
		}
		return nil, apperror.Upstream("exchange_transition_failed", err)
	}

	log.Info("exchanges.transition: status changed", "exchange_id", id, "from", validation.From, "to", validation.To, "actor_id", actor.UserID)

	s.publish(ctx, events.New(events.ExchangeStatusChanged, id, actor.UserID, map[string]any{
		"from_status": validation.From,
		"to_status":   validation.To,
		"reason":      reason,
	}))
	if s.notifier != nil {
		vars := map[string]string{
			"ExchangeName": exchange.Name,
			"FromStatus":   string(validation.From),
			"ToStatus":     string(validation.To),
		}
		if err := s.notifier.NotifyExchange(ctx, id, actor.UserID, "exchange_status_changed", vars); err != nil {
			log.InternalError("exchanges.transition: notify participants failed", err, "exchange_id", id)
		}
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	redact(updated, effective)
	return updated, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.FromContext(ctx, s.log).InternalError("exchanges.publish: publish failed", err, "event_type", event.Type, "exchange_id", event.ExchangeID)
	}
}

// redact drops the fields the caller's permissions do not cover.
func redact(e *Exchange, effective permission.Effective) {
	if !effective.Can(permission.CanViewPPData) {
		e.PPData = nil
	}
	if !effective.Can(permission.CanViewFinancial) {
		e.ExchangeValue = nil
	}
}

func newParticipant(exchangeID, userID string, role permission.Role, addedBy string) *participant.Participant {
	return &participant.Participant{
		ID:         uuid.NewString(),
		ExchangeID: exchangeID,
		UserID:     &userID,
		Role:       string(role),
		AddedBy:    &addedBy,
	}
}

func validateID(errs *apperror.Collector, field string, value *string) {
	if value == nil {
		return
	}
	if _, err := uuid.Parse(*value); err != nil {
		errs.Add(field, "must be a uuid")
	}
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

func dateOnly(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	d := CalendarDate(*value)
	return &d
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
