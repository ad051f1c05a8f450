package task

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/domain/audit"
	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/internal/events"
	"exchange-hub-go/pkg/logger"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
	maxTitleLength   = 255
)

type Permissions interface {
	Require(ctx context.Context, subject permission.Subject, exchangeID string, capability permission.Capability) (permission.Effective, error)
}

type Notifier interface {
	NotifyUser(ctx context.Context, userID, exchangeID, templateKey string, vars map[string]string) error
}

type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID, exchangeID string, details map[string]any)
}

type Service struct {
	repo        Repository
	permissions Permissions
	notifier    Notifier
	publisher   events.Publisher
	audit       Auditor
	log         logger.Logger
	now         func() time.Time
}

func NewService(repo Repository, permissions Permissions, notifier Notifier, publisher events.Publisher, auditor Auditor, log logger.Logger) *Service {
	return &Service{
		repo:        repo,
		permissions: permissions,
		notifier:    notifier,
		publisher:   publisher,
		audit:       auditor,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context, actor permission.Subject, exchangeID string, filter ListFilter) ([]Task, int64, error) {
	if _, err := s.permissions.Require(ctx, actor, exchangeID, permission.CanViewTasks); err != nil {
		return nil, 0, err
	}
	filter.ExchangeID = exchangeID
	if filter.Status != "" {
		status, ok := NormalizeStatus(filter.Status)
		if !ok {
			return nil, 0, apperror.Invalid("status", "unknown status")
		}
		filter.Status = string(status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.Upstream("task_list_failed", err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, actor permission.Subject, id string) (*Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.permissions.Require(ctx, actor, t.ExchangeID, permission.CanViewTasks); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Create(ctx context.Context, actor permission.Subject, exchangeID string, input CreateInput) (*Task, error) {
	effective, err := s.permissions.Require(ctx, actor, exchangeID, permission.CanCreateTasks)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	var errs apperror.Collector
	if len(title) > maxTitleLength {
		errs.Add("title", "is too long")
	}
	status := StatusPending
	if input.Status != "" {
		var ok bool
		if status, ok = NormalizeStatus(input.Status); !ok {
			errs.Add("status", "unknown status")
		}
	}
	priority := PriorityMedium
	if input.Priority != "" {
		var ok bool
		if priority, ok = NormalizePriority(input.Priority); !ok {
			errs.Add("priority", "unknown priority")
		}
	}
	assignee, assigneeErr := normalizeAssignee(input.AssignedTo)
	if assigneeErr != "" {
		errs.Add("assigned_to", assigneeErr)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	if assignee != nil && !effective.Can(permission.CanAssignTasks) {
		return nil, fmt.Errorf("assign task: %w", permission.ErrPermissionDenied)
	}

	t := Task{
		ID:          uuid.NewString(),
		ExchangeID:  exchangeID,
		Title:       title,
		Description: trimmed(input.Description),
		Status:      status,
		Priority:    priority,
		DueDate:     dateOnly(input.DueDate),
		AssignedTo:  assignee,
		CreatedBy:   actor.UserID,
	}
	if status == StatusCompleted {
		now := s.now()
		t.CompletedAt = &now
	}
	if err := s.repo.Create(ctx, &t); err != nil {
		return nil, apperror.Upstream("task_create_failed", err)
	}

	s.record(ctx, audit.ActionTaskCreated, &t, map[string]any{"title": t.Title, "assigned_to": t.AssignedTo})
	s.assigned(ctx, &t, actor.UserID)
	return &t, nil
}

// Update edits a task. Changing the assignee needs can_assign_tasks. Moving to
// Completed stamps completed_at; moving away clears it.
func (s *Service) Update(ctx context.Context, actor permission.Subject, id string, input UpdateInput) (*Task, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	effective, err := s.permissions.Require(ctx, actor, current.ExchangeID, permission.CanEditTasks)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	var errs apperror.Collector
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		switch {
		case title == "":
			errs.Add("title", "is required")
		case len(title) > maxTitleLength:
			errs.Add("title", "is too long")
		default:
			fields["title"] = title
		}
	}
	if input.Description != nil {
		fields["description"] = trimmed(input.Description)
	}
	if input.Priority != nil {
		if priority, ok := NormalizePriority(*input.Priority); ok {
			fields["priority"] = string(priority)
		} else {
			errs.Add("priority", "unknown priority")
		}
	}
	if input.Status != nil {
		status, ok := NormalizeStatus(*input.Status)
		if !ok {
			errs.Add("status", "unknown status")
		} else if status != current.Status {
			fields["status"] = string(status)
			if status == StatusCompleted {
				fields["completed_at"] = s.now()
			} else if current.Status == StatusCompleted {
				fields["completed_at"] = nil
			}
		}
	}
	switch {
	case input.ClearDue:
		fields["due_date"] = nil
	case input.DueDate != nil:
		fields["due_date"] = dateOnly(input.DueDate)
	}
	reassigned := false
	if input.AssignedTo != nil {
		assignee, msg := normalizeAssignee(input.AssignedTo)
		if msg != "" {
			errs.Add("assigned_to", msg)
		} else if !sameAssignee(current.AssignedTo, assignee) {
			if !effective.Can(permission.CanAssignTasks) {
				return nil, fmt.Errorf("assign task: %w", permission.ErrPermissionDenied)
			}
			fields["assigned_to"] = assignee
			reassigned = true
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return current, nil
	}

	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, apperror.Upstream("task_update_failed", err)
	}
	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.ActionTaskUpdated, updated, map[string]any{"fields": fieldNames(fields)})
	if reassigned {
		s.assigned(ctx, updated, actor.UserID)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor permission.Subject, id string) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.permissions.Require(ctx, actor, current.ExchangeID, permission.CanEditTasks); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return apperror.Upstream("task_delete_failed", err)
	}
	s.record(ctx, audit.ActionTaskDeleted, current, map[string]any{"title": current.Title})
	return nil
}

func (s *Service) assigned(ctx context.Context, t *Task, actorID string) {
	if t.AssignedTo == nil {
		return
	}
	if s.publisher != nil {
		payload := map[string]any{"task_id": t.ID, "assigned_to": *t.AssignedTo, "title": t.Title}
		if err := s.publisher.Publish(ctx, events.New(events.TaskAssigned, t.ExchangeID, actorID, payload)); err != nil {
			logger.FromContext(ctx, s.log).InternalError("tasks.publish: publish failed", err, "task_id", t.ID)
		}
	}
	userID, ok := t.AssignedUser()
	if !ok || userID == actorID || s.notifier == nil {
		return
	}
	vars := map[string]string{"TaskTitle": t.Title}
	if t.DueDate != nil {
		vars["DueDate"] = t.DueDate.Format(time.DateOnly)
	}
	if err := s.notifier.NotifyUser(ctx, userID, t.ExchangeID, "task_assigned", vars); err != nil {
		logger.FromContext(ctx, s.log).InternalError("tasks.notify: notify failed", err, "task_id", t.ID)
	}
}

func (s *Service) record(ctx context.Context, action string, t *Task, details map[string]any) {
	if s.audit != nil {
		s.audit.Record(ctx, action, audit.EntityTask, t.ID, t.ExchangeID, details)
	}
}

// normalizeAssignee returns the stored form of an assignee and a validation
// message when it is neither a user id, ALL, nor empty.
func normalizeAssignee(value *string) (*string, string) {
	v := trimmed(value)
	if v == nil {
		return nil, ""
	}
	if strings.EqualFold(*v, AssignAll) {
		all := AssignAll
		return &all, ""
	}
	if _, err := uuid.Parse(*v); err != nil {
		return nil, "must be a user id or ALL"
	}
	return v, ""
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func fieldNames(fields map[string]any) []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
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
