package tasks

import (
	"context"
	"net/http"
	"strings"

	"exchange-hub-go/internal/domain/permission"
	taskdomain "exchange-hub-go/internal/domain/task"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	"exchange-hub-go/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const defaultPageSize = 100

type Service interface {
	List(ctx context.Context, actor permission.Subject, exchangeID string, filter taskdomain.ListFilter) ([]taskdomain.Task, int64, error)
	Get(ctx context.Context, actor permission.Subject, id string) (*taskdomain.Task, error)
	Create(ctx context.Context, actor permission.Subject, exchangeID string, input taskdomain.CreateInput) (*taskdomain.Task, error)
	Update(ctx context.Context, actor permission.Subject, id string, input taskdomain.UpdateInput) (*taskdomain.Task, error)
	Delete(ctx context.Context, actor permission.Subject, id string) error
}

type Handlers struct {
	Tasks Service
	log   logger.Logger
}

func New(tasks Service, log logger.Logger) *Handlers {
	return &Handlers{Tasks: tasks, log: log}
}

type createTaskRequest struct {
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	Status      string              `json:"status"`
	Priority    string              `json:"priority"`
	DueDate     *commonhandler.Date `json:"due_date"`
	AssignedTo  *string             `json:"assigned_to"`
}

type updateTaskRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Status      *string             `json:"status"`
	Priority    *string             `json:"priority"`
	DueDate     *commonhandler.Date `json:"due_date"`
	ClearDue    bool                `json:"clear_due_date"`
	AssignedTo  *string             `json:"assigned_to"`
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
	items, total, err := h.Tasks.List(r.Context(), actor, chi.URLParam(r, "id"), taskdomain.ListFilter{
		Status:     strings.TrimSpace(query.Get("status")),
		AssignedTo: strings.TrimSpace(query.Get("assigned_to")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"tasks": items, "total": total})
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := commonhandler.DecodeJSON(r, &req); err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	created, err := h.Tasks.Create(r.Context(), actor, chi.URLParam(r, "id"), taskdomain.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate.Ptr(),
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusCreated, map[string]any{"task": created})
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	item, err := h.Tasks.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"task": item})
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := commonhandler.DecodeJSON(r, &req); err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	updated, err := h.Tasks.Update(r.Context(), actor, chi.URLParam(r, "id"), taskdomain.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate.Ptr(),
		ClearDue:    req.ClearDue,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"task": updated})
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	if err := h.Tasks.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"message": "task deleted"})
}
