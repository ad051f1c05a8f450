package common

import (
	"context"
	"net/http"
	"time"

	"exchange-hub-go/pkg/logger"
)

// Check is one readiness check, such as a database ping.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Health struct {
	checks []Check
	log    logger.Logger
}

func NewHealth(log logger.Logger, checks ...Check) *Health {
	return &Health{checks: checks, log: log}
}

func (h *Health) Live(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, http.StatusOK, map[string]any{"status": "ok"})
}

// Ready pings every dependency and reports each one.
func (h *Health) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			logger.FromContext(r.Context(), h.log).Error("health.ready: dependency down", "dependency", check.Name, "error", err)
			results[check.Name] = "down"
			healthy = false
			continue
		}
		results[check.Name] = "ok"
	}

	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"error":   "not_ready",
			"checks":  results,
		})
		return
	}
	WriteSuccess(w, r, http.StatusOK, map[string]any{"status": "ok", "checks": results})
}
