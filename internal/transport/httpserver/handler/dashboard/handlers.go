package dashboard

import (
	"context"
	"net/http"

	dashboarddomain "exchange-hub-go/internal/domain/dashboard"
	"exchange-hub-go/internal/domain/permission"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	"exchange-hub-go/pkg/logger"
)

type Service interface {
	Summary(ctx context.Context, actor permission.Subject) (dashboarddomain.Summary, error)
}

type Handlers struct {
	Dashboard Service
	log       logger.Logger
}

func New(dashboard Service, log logger.Logger) *Handlers {
	return &Handlers{Dashboard: dashboard, log: log}
}

func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	summary, err := h.Dashboard.Summary(r.Context(), actor)
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"summary": summary})
}
