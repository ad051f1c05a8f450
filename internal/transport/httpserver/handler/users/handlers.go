package users

import (
	"context"
	"net/http"
	"strings"

	"exchange-hub-go/internal/domain/permission"
	userdomain "exchange-hub-go/internal/domain/user"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	"exchange-hub-go/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const defaultPageSize = 50

type Service interface {
	Get(ctx context.Context, actor permission.Subject, id string) (*userdomain.User, error)
	List(ctx context.Context, actor permission.Subject, filter userdomain.ListFilter) ([]userdomain.User, int64, error)
	Update(ctx context.Context, actor permission.Subject, id string, input userdomain.UpdateInput) (*userdomain.User, error)
}

type Handlers struct {
	Users Service
	log   logger.Logger
}

func New(users Service, log logger.Logger) *Handlers {
	return &Handlers{Users: users, log: log}
}

type updateRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Role      *string `json:"role"`
	IsActive  *bool   `json:"is_active"`
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
	items, total, err := h.Users.List(r.Context(), actor, userdomain.ListFilter{
		Role:   strings.TrimSpace(query.Get("role")),
		Search: strings.TrimSpace(query.Get("search")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"users": items, "total": total})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	commonhandler.AuthMe(w, r)
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	found, err := h.Users.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"user": found})
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := commonhandler.DecodeJSON(r, &req); err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	updated, err := h.Users.Update(r.Context(), actor, chi.URLParam(r, "id"), userdomain.UpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      req.Role,
		IsActive:  req.IsActive,
	})
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"user": updated})
}
