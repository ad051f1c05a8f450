package middleware

import (
	"net/http"

	"exchange-hub-go/internal/domain/audit"
	"exchange-hub-go/pkg/logger"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger puts a logger carrying the request id into the context.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scoped := log.With("request_id", chimw.GetReqID(r.Context()))
			next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), scoped)))
		})
	}
}

// AuditMeta stamps the caller, address and user agent onto the context for
// audit entries. It runs after authentication.
func AuditMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := audit.Meta{
			IPAddress: r.RemoteAddr,
			UserAgent: r.UserAgent(),
		}
		if user, ok := UserFromContext(r.Context()); ok {
			meta.ActorID = user.ID
		}
		next.ServeHTTP(w, r.WithContext(audit.WithMeta(r.Context(), meta)))
	})
}
