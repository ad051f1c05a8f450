package admin

import (
	"context"
	"net/http"
	"strings"

	auditdomain "exchange-hub-go/internal/domain/audit"
	entitysyncdomain "exchange-hub-go/internal/domain/entitysync"
	"exchange-hub-go/internal/domain/permission"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	"exchange-hub-go/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const defaultAuditPageSize = 100

type EntitySync interface {
	SyncExchange(ctx context.Context, exchangeID string) (*entitysyncdomain.ExchangeResult, error)
	Bulk(ctx context.Context, opts entitysyncdomain.BulkOptions) (*entitysyncdomain.BulkResult, error)
	Status(ctx context.Context) (*entitysyncdomain.StatusSummary, error)
}

type AuditLog interface {
	List(ctx context.Context, actor permission.Subject, filter auditdomain.ListFilter) ([]auditdomain.Entry, error)
}

// Handlers serves the admin-only routes. The router puts them behind
// middleware.RequireAdmin.
type Handlers struct {
	Sync  EntitySync
	Audit AuditLog
	log   logger.Logger
}

func New(sync EntitySync, audit AuditLog, log logger.Logger) *Handlers {
	return &Handlers{Sync: sync, Audit: audit, log: log}
}

type bulkRequest struct {
	Limit         int   `json:"limit"`
	SkipCompleted *bool `json:"skip_completed"`
}

func (h *Handlers) SyncExchange(w http.ResponseWriter, r *http.Request) {
	result, err := h.Sync.SyncExchange(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"result": result})
}

// Bulk accepts an empty body; skip_completed defaults to true.
func (h *Handlers) Bulk(w http.ResponseWriter, r *http.Request) {
	req := bulkRequest{}
	if r.ContentLength != 0 {
		if err := commonhandler.DecodeJSON(r, &req); err != nil {
			commonhandler.WriteError(w, r, h.log, err)
			return
		}
	}
	skip := true
	if req.SkipCompleted != nil {
		skip = *req.SkipCompleted
	}
	result, err := h.Sync.Bulk(r.Context(), entitysyncdomain.BulkOptions{Limit: req.Limit, SkipCompleted: skip})
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{
		"processed": result.Processed,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"results":   result.Results,
	})
}

func (h *Handlers) SyncStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Sync.Status(r.Context())
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"status": summary})
}

func (h *Handlers) AuditLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	limit, offset, err := commonhandler.Page(r, defaultAuditPageSize)
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	query := r.URL.Query()
	entries, err := h.Audit.List(r.Context(), actor, auditdomain.ListFilter{
		EntityType: strings.TrimSpace(query.Get("entity_type")),
		EntityID:   strings.TrimSpace(query.Get("entity_id")),
		ExchangeID: strings.TrimSpace(query.Get("exchange_id")),
		ActorID:    strings.TrimSpace(query.Get("actor")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"audit_logs": entries})
}
