package notification

import (
	"context"
	"strings"
	"time"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/domain/audit"
	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/pkg/logger"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxBatchSize     = 500
	maxTitleLength   = 255
)

type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID, exchangeID string, details map[string]any)
}

type Service struct {
	repo      Repository
	templates *Templates
	audit     Auditor
	log       logger.Logger
	now       func() time.Time
}

func NewService(repo Repository, templates *Templates, auditor Auditor, log logger.Logger) *Service {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Service{
		repo:      repo,
		templates: templates,
		audit:     auditor,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns the caller's notifications, newest first. Expired
// notifications are never returned.
func (s *Service) List(ctx context.Context, actor permission.Subject, filter ListFilter) ([]Notification, int64, error) {
	filter.UserID = actor.UserID
	filter.Now = s.now()
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.Upstream("notification_list_failed", err)
	}
	return items, total, nil
}

func (s *Service) UnreadCount(ctx context.Context, actor permission.Subject) (int64, error) {
	count, err := s.repo.CountUnread(ctx, actor.UserID, s.now())
	if err != nil {
		return 0, apperror.Upstream("notification_count_failed", err)
	}
	return count, nil
}

func (s *Service) Create(ctx context.Context, actor permission.Subject, input CreateInput) (*Notification, error) {
	if err := permission.RequireRole(actor, permission.RoleAdmin, permission.RoleCoordinator); err != nil {
		return nil, err
	}
	n, err := s.build(actor, input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, apperror.Upstream("notification_create_failed", err)
	}
	s.recordCreated(ctx, n, nil)
	return n, nil
}

// CreateBatch validates and stores each item independently. A failed item
// does not stop the others.
func (s *Service) CreateBatch(ctx context.Context, actor permission.Subject, inputs []CreateInput) ([]BatchResult, error) {
	if err := permission.RequireRole(actor, permission.RoleAdmin, permission.RoleCoordinator); err != nil {
		return nil, err
	}
	if len(inputs) > maxBatchSize {
		return nil, ErrBatchTooLarge
	}

	results := make([]BatchResult, len(inputs))
	for i, input := range inputs {
		results[i].Index = i
		n, err := s.build(actor, input)
		if err == nil {
			err = s.repo.Create(ctx, n)
		}
		if err != nil {
			results[i].Error = apperror.From(err).Message
			if !apperror.IsKind(err, apperror.KindValidation) {
				results[i].Error = "failed to create notification"
				logger.FromContext(ctx, s.log).InternalError("notifications.batch: item failed", err, "index", i)
			}
			continue
		}
		results[i].Success = true
		results[i].ID = n.ID
		s.recordCreated(ctx, n, map[string]any{"batch_index": i})
	}
	return results, nil
}

// CreateFromTemplate renders one template for each recipient.
func (s *Service) CreateFromTemplate(ctx context.Context, actor permission.Subject, input TemplateInput) ([]Notification, error) {
	if err := permission.RequireRole(actor, permission.RoleAdmin, permission.RoleCoordinator); err != nil {
		return nil, err
	}
	recipients := uniqueIDs(input.UserIDs, "")
	if len(recipients) == 0 {
		return nil, ErrRecipientsRequired
	}
	var errs apperror.Collector
	for _, id := range recipients {
		if _, err := uuid.Parse(id); err != nil {
			errs.Add("user_ids", "must contain user ids")
			break
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	items, err := s.render(input.TemplateKey, recipients, input.ExchangeID, input.Variables, input.Link, &actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateMany(ctx, items); err != nil {
		return nil, apperror.Upstream("notification_create_failed", err)
	}
	for i := range items {
		s.recordCreated(ctx, &items[i], map[string]any{"template": input.TemplateKey})
	}
	return items, nil
}

func (s *Service) MarkRead(ctx context.Context, actor permission.Subject, id string) error {
	ok, err := s.repo.MarkRead(ctx, actor.UserID, id, s.now())
	if err := ownedResult(ok, err, "notification_update_failed"); err != nil {
		return err
	}
	s.record(ctx, audit.ActionNotificationRead, id, nil)
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, actor permission.Subject) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, actor.UserID, s.now())
	if err != nil {
		return 0, apperror.Upstream("notification_update_failed", err)
	}
	if count > 0 {
		s.record(ctx, audit.ActionNotificationReadAll, actor.UserID, map[string]any{"count": count})
	}
	return count, nil
}

func (s *Service) Archive(ctx context.Context, actor permission.Subject, id string) error {
	ok, err := s.repo.Archive(ctx, actor.UserID, id, s.now())
	if err := ownedResult(ok, err, "notification_update_failed"); err != nil {
		return err
	}
	s.record(ctx, audit.ActionNotificationArchived, id, nil)
	return nil
}

func (s *Service) Delete(ctx context.Context, actor permission.Subject, id string) error {
	ok, err := s.repo.Delete(ctx, actor.UserID, id)
	if err := ownedResult(ok, err, "notification_delete_failed"); err != nil {
		return err
	}
	s.record(ctx, audit.ActionNotificationDeleted, id, nil)
	return nil
}

// NotifyUser renders a template for one user on behalf of the system.
func (s *Service) NotifyUser(ctx context.Context, userID, exchangeID, templateKey string, vars map[string]string) error {
	items, err := s.render(templateKey, []string{userID}, optional(exchangeID), vars, nil, nil)
	if err != nil {
		return err
	}
	if err := s.repo.CreateMany(ctx, items); err != nil {
		return apperror.Upstream("notification_create_failed", err)
	}
	return nil
}

// NotifyExchange renders a template for every participant of an exchange
// except excludeUserID, usually the user who caused the change.
func (s *Service) NotifyExchange(ctx context.Context, exchangeID, excludeUserID, templateKey string, vars map[string]string) error {
	recipients, err := s.repo.ExchangeRecipients(ctx, exchangeID)
	if err != nil {
		return apperror.Upstream("notification_recipients_failed", err)
	}
	recipients = uniqueIDs(recipients, excludeUserID)
	if len(recipients) == 0 {
		return nil
	}
	items, err := s.render(templateKey, recipients, &exchangeID, vars, nil, nil)
	if err != nil {
		return err
	}
	if err := s.repo.CreateMany(ctx, items); err != nil {
		return apperror.Upstream("notification_create_failed", err)
	}
	logger.FromContext(ctx, s.log).Debug("notifications.fanout: notified participants",
		"exchange_id", exchangeID, "template", templateKey, "recipients", len(items))
	return nil
}

func (s *Service) Templates() []string {
	return s.templates.Keys()
}

func (s *Service) render(key string, userIDs []string, exchangeID *string, vars map[string]string, link, createdBy *string) ([]Notification, error) {
	tmpl, ok := s.templates.Get(key)
	if !ok {
		return nil, ErrUnknownTemplate
	}
	rendered, err := tmpl.Render(vars)
	if err != nil {
		return nil, apperror.Validation("template_render_failed", err.Error())
	}

	metadata := map[string]any{"template": key}
	items := make([]Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		items = append(items, Notification{
			ID:         uuid.NewString(),
			UserID:     userID,
			ExchangeID: exchangeID,
			Title:      rendered.Title,
			Message:    rendered.Message,
			Category:   rendered.Category,
			Priority:   rendered.Priority,
			Link:       link,
			Metadata:   metadata,
			CreatedBy:  createdBy,
			CreatedAt:  s.now(),
		})
	}
	return items, nil
}

func (s *Service) build(actor permission.Subject, input CreateInput) (*Notification, error) {
	var errs apperror.Collector
	userID := strings.TrimSpace(input.UserID)
	if _, err := uuid.Parse(userID); err != nil {
		errs.Add("user_id", "must be a user id")
	}
	title := strings.TrimSpace(input.Title)
	switch {
	case title == "":
		errs.Add("title", "is required")
	case len(title) > maxTitleLength:
		errs.Add("title", "is too long")
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		errs.Add("message", "is required")
	}
	category := CategorySystem
	if input.Category != "" {
		if !IsCategory(input.Category) {
			errs.Add("category", "unknown category")
		}
		category = Category(input.Category)
	}
	priority := PriorityNormal
	if input.Priority != "" {
		if !IsPriority(input.Priority) {
			errs.Add("priority", "unknown priority")
		}
		priority = Priority(input.Priority)
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(s.now()) {
		errs.Add("expires_at", "must be in the future")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	createdBy := actor.UserID
	return &Notification{
		ID:         uuid.NewString(),
		UserID:     userID,
		ExchangeID: input.ExchangeID,
		Title:      title,
		Message:    message,
		Category:   category,
		Priority:   priority,
		Link:       input.Link,
		Metadata:   input.Metadata,
		ExpiresAt:  input.ExpiresAt,
		CreatedBy:  &createdBy,
		CreatedAt:  s.now(),
	}, nil
}

// recordCreated audits a notification a staff member created. System
// notifications ride on the audit entry of the change that caused them.
func (s *Service) recordCreated(ctx context.Context, n *Notification, details map[string]any) {
	if s.audit == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}
	details["user_id"] = n.UserID
	details["category"] = n.Category
	exchangeID := ""
	if n.ExchangeID != nil {
		exchangeID = *n.ExchangeID
	}
	s.audit.Record(ctx, audit.ActionNotificationCreated, audit.EntityNotification, n.ID, exchangeID, details)
}

func (s *Service) record(ctx context.Context, action, entityID string, details map[string]any) {
	if s.audit != nil {
		s.audit.Record(ctx, action, audit.EntityNotification, entityID, "", details)
	}
}

func ownedResult(ok bool, err error, code string) error {
	if err != nil {
		return apperror.Upstream(code, err)
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func uniqueIDs(ids []string, exclude string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
