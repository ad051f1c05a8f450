package exchanges

import (
	"net/http"
	"strings"

	auditdomain "exchange-hub-go/internal/domain/audit"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	limit, offset, err := commonhandler.Page(r, defaultPageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	query := r.URL.Query()
	entries, err := h.Audit.ListForExchange(r.Context(), actor, chi.URLParam(r, "id"), auditdomain.ListFilter{
		EntityType: strings.TrimSpace(query.Get("entity_type")),
		EntityID:   strings.TrimSpace(query.Get("entity_id")),
		ActorID:    strings.TrimSpace(query.Get("actor")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"audit_logs": entries})
}
