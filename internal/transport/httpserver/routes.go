package httpserver

import (
	"net/http"

	"exchange-hub-go/internal/config"
	"exchange-hub-go/internal/transport/httpserver/handler"
	authmw "exchange-hub-go/internal/transport/httpserver/middleware"
	"exchange-hub-go/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg config.Config, handlers *handler.Handlers, users authmw.UserSyncer, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(authmw.RequestLogger(log))
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(authmw.NewCORS(cfg.CORSOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health.Live)
		r.Get("/health/ready", handlers.Health.Ready)
		r.Get("/invitations/{ref}", handlers.Invitations.Preview)

		auth := authmw.NewSupabaseAuth(cfg.Supabase, users, log)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Use(authmw.AuditMeta)

			r.Get("/auth/me", handlers.Users.Me)
			r.Get("/users/me", handlers.Users.Me)
			r.Get("/users", handlers.Users.List)
			r.Get("/users/{id}", handlers.Users.Get)
			r.Patch("/users/{id}", handlers.Users.Update)

			r.Get("/dashboard", handlers.Dashboard.Summary)

			r.Get("/exchanges", handlers.Exchanges.ListExchanges)
			r.Post("/exchanges", handlers.Exchanges.CreateExchange)
			r.Route("/exchanges/{id}", func(r chi.Router) {
				r.Get("/", handlers.Exchanges.GetExchange)
				r.Put("/", handlers.Exchanges.UpdateExchange)
				r.Delete("/", handlers.Exchanges.DeleteExchange)

				r.Get("/permissions", handlers.Exchanges.Permissions)
				r.Get("/transitions", handlers.Exchanges.Transitions)
				r.Post("/validate-transition", handlers.Exchanges.ValidateTransition)
				r.Post("/transition", handlers.Exchanges.ExecuteTransition)

				r.Get("/participants", handlers.Exchanges.ListParticipants)
				r.Post("/participants", handlers.Exchanges.AddParticipant)
				r.Patch("/participants/{participantID}", handlers.Exchanges.UpdateParticipant)
				r.Delete("/participants/{participantID}", handlers.Exchanges.RemoveParticipant)

				r.Get("/invitations", handlers.Invitations.List)
				r.Post("/invitations", handlers.Invitations.Send)

				r.Get("/tasks", handlers.Tasks.List)
				r.Post("/tasks", handlers.Tasks.Create)

				r.Get("/documents", handlers.Documents.List)
				r.Post("/documents", handlers.Documents.Upload)

				r.Get("/audit-logs", handlers.Exchanges.ListAuditLogs)
			})

			r.Delete("/invitations/{ref}", handlers.Invitations.Cancel)
			r.Post("/invitations/{ref}/accept", handlers.Invitations.Accept)

			r.Get("/tasks/{id}", handlers.Tasks.Get)
			r.Put("/tasks/{id}", handlers.Tasks.Update)
			r.Delete("/tasks/{id}", handlers.Tasks.Delete)

			r.Get("/documents/{id}/download", handlers.Documents.Download)
			r.Delete("/documents/{id}", handlers.Documents.Delete)

			r.Get("/notifications", handlers.Notifications.List)
			r.Post("/notifications", handlers.Notifications.Create)
			r.Get("/notifications/unread-count", handlers.Notifications.UnreadCount)
			r.Get("/notifications/templates", handlers.Notifications.Templates)
			r.Post("/notifications/batch", handlers.Notifications.CreateBatch)
			r.Post("/notifications/template", handlers.Notifications.CreateFromTemplate)
			r.Post("/notifications/read-all", handlers.Notifications.MarkAllRead)
			r.Patch("/notifications/{id}/read", handlers.Notifications.MarkRead)
			r.Patch("/notifications/{id}/archive", handlers.Notifications.Archive)
			r.Delete("/notifications/{id}", handlers.Notifications.Delete)

			r.Route("/admin", func(r chi.Router) {
				r.Use(authmw.RequireAdmin)
				r.Post("/entity-sync/exchanges/{id}", handlers.Admin.SyncExchange)
				r.Post("/entity-sync/bulk", handlers.Admin.Bulk)
				r.Get("/entity-sync/status", handlers.Admin.SyncStatus)
				r.Get("/audit-logs", handlers.Admin.AuditLogs)
			})
		})
	})

	return r
}
