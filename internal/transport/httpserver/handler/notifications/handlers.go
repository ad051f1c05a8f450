package notifications

import (
	"context"
	"net/http"

	notificationdomain "exchange-hub-go/internal/domain/notification"
	"exchange-hub-go/internal/domain/permission"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	"exchange-hub-go/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const defaultPageSize = 50

type Service interface {
	List(ctx context.Context, actor permission.Subject, filter notificationdomain.ListFilter) ([]notificationdomain.Notification, int64, error)
	UnreadCount(ctx context.Context, actor permission.Subject) (int64, error)
	Create(ctx context.Context, actor permission.Subject, input notificationdomain.CreateInput) (*notificationdomain.Notification, error)
	CreateBatch(ctx context.Context, actor permission.Subject, inputs []notificationdomain.CreateInput) ([]notificationdomain.BatchResult, error)
	CreateFromTemplate(ctx context.Context, actor permission.Subject, input notificationdomain.TemplateInput) ([]notificationdomain.Notification, error)
	MarkRead(ctx context.Context, actor permission.Subject, id string) error
	MarkAllRead(ctx context.Context, actor permission.Subject) (int64, error)
	Archive(ctx context.Context, actor permission.Subject, id string) error
	Delete(ctx context.Context, actor permission.Subject, id string) error
	Templates() []string
}

type Handlers struct {
	Notifications Service
	log           logger.Logger
}

func New(notifications Service, log logger.Logger) *Handlers {
	return &Handlers{Notifications: notifications, log: log}
}

type createRequest struct {
	UserID     string              `json:"user_id"`
	ExchangeID *string             `json:"exchange_id"`
	Title      string              `json:"title"`
	Message    string              `json:"message"`
	Category   string              `json:"category"`
	Priority   string              `json:"priority"`
	Link       *string             `json:"link"`
	Metadata   map[string]any      `json:"metadata"`
	ExpiresAt  *commonhandler.Date `json:"expires_at"`
}

func (req createRequest) input() notificationdomain.CreateInput {
	return notificationdomain.CreateInput{
		UserID:     req.UserID,
		ExchangeID: req.ExchangeID,
		Title:      req.Title,
		Message:    req.Message,
		Category:   req.Category,
		Priority:   req.Priority,
		Link:       req.Link,
		Metadata:   req.Metadata,
		ExpiresAt:  req.ExpiresAt.Ptr(),
	}
}

type batchRequest struct {
	Notifications []createRequest `json:"notifications"`
}

type templateRequest struct {
	TemplateKey string            `json:"template_key"`
	UserIDs     []string          `json:"user_ids"`
	ExchangeID  *string           `json:"exchange_id"`
	Variables   map[string]string `json:"variables"`
	Link        *string           `json:"link"`
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	limit, offset, err := commonhandler.Page(r, defaultPageSize)
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	query := r.URL.Query()
	unreadOnly, err := commonhandler.ParseBoolParam(query.Get("unread_only"), false)
	if err != nil {
		commonhandler.WriteErrorCode(w, http.StatusBadRequest, "invalid_unread_only", "unread_only must be a boolean")
		return
	}
	includeArchived, err := commonhandler.ParseBoolParam(query.Get("include_archived"), false)
	if err != nil {
		commonhandler.WriteErrorCode(w, http.StatusBadRequest, "invalid_include_archived", "include_archived must be a boolean")
		return
	}

	items, total, err := h.Notifications.List(r.Context(), actor, notificationdomain.ListFilter{
		UnreadOnly:      unreadOnly,
		IncludeArchived: includeArchived,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"notifications": items, "total": total})
}

func (h *Handlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	count, err := h.Notifications.UnreadCount(r.Context(), actor)
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"unread_count": count})
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := commonhandler.DecodeJSON(r, &req); err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	created, err := h.Notifications.Create(r.Context(), actor, req.input())
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusCreated, map[string]any{"notification": created})
}

// CreateBatch answers 200 even when some items failed; each result carries
// its own success flag.
func (h *Handlers) CreateBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if err := commonhandler.DecodeJSON(r, &req); err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	inputs := make([]notificationdomain.CreateInput, 0, len(req.Notifications))
	for _, item := range req.Notifications {
		inputs = append(inputs, item.input())
	}
	results, err := h.Notifications.CreateBatch(r.Context(), actor, inputs)
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	var created int
	for _, result := range results {
		if result.Success {
			created++
		}
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{
		"results": results,
		"created": created,
		"failed":  len(results) - created,
	})
}

func (h *Handlers) CreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req templateRequest
	if err := commonhandler.DecodeJSON(r, &req); err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	items, err := h.Notifications.CreateFromTemplate(r.Context(), actor, notificationdomain.TemplateInput{
		TemplateKey: req.TemplateKey,
		UserIDs:     req.UserIDs,
		ExchangeID:  req.ExchangeID,
		Variables:   req.Variables,
		Link:        req.Link,
	})
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusCreated, map[string]any{"notifications": items})
}

func (h *Handlers) Templates(w http.ResponseWriter, r *http.Request) {
	if _, ok := commonhandler.Actor(w, r); !ok {
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"templates": h.Notifications.Templates()})
}

func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Notifications.MarkRead, "notification marked read")
}

func (h *Handlers) Archive(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Notifications.Archive, "notification archived")
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Notifications.Delete, "notification deleted")
}

func (h *Handlers) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	count, err := h.Notifications.MarkAllRead(r.Context(), actor)
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"updated": count})
}

func (h *Handlers) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, permission.Subject, string) error, message string) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"message": message})
}
