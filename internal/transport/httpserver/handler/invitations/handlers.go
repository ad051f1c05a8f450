package invitations

import (
	"context"
	"net/http"

	invitationdomain "exchange-hub-go/internal/domain/invitation"
	participantdomain "exchange-hub-go/internal/domain/participant"
	"exchange-hub-go/internal/domain/permission"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	"exchange-hub-go/internal/transport/httpserver/middleware"
	"exchange-hub-go/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type Service interface {
	Send(ctx context.Context, actor permission.Subject, exchangeID string, input invitationdomain.SendInput) (*invitationdomain.Sent, error)
	List(ctx context.Context, actor permission.Subject, exchangeID string) ([]invitationdomain.Invitation, error)
	Cancel(ctx context.Context, actor permission.Subject, id string) error
	Preview(ctx context.Context, token string) (*invitationdomain.Preview, error)
	Accept(ctx context.Context, actor permission.Subject, email, token string) (*participantdomain.Participant, error)
}

type Handlers struct {
	Invitations Service
	log         logger.Logger
}

func New(invitations Service, log logger.Logger) *Handlers {
	return &Handlers{Invitations: invitations, log: log}
}

type sendRequest struct {
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Role    string  `json:"role"`
	Message *string `json:"message"`
}

func (h *Handlers) Send(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req sendRequest
	if err := commonhandler.DecodeJSON(r, &req); err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	sent, err := h.Invitations.Send(r.Context(), actor, chi.URLParam(r, "id"), invitationdomain.SendInput{
		Email:   req.Email,
		Phone:   req.Phone,
		Role:    req.Role,
		Message: req.Message,
	})
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusCreated, map[string]any{"invitation": sent})
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	items, err := h.Invitations.List(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"invitations": items})
}

func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	if err := h.Invitations.Cancel(r.Context(), actor, chi.URLParam(r, "ref")); err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"message": "invitation cancelled"})
}

// Preview is public: the token is the credential.
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.Invitations.Preview(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"invitation": preview})
}

func (h *Handlers) Accept(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		commonhandler.WriteErrorCode(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}
	joined, err := h.Invitations.Accept(r.Context(), user.Subject(), user.Email, chi.URLParam(r, "ref"))
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"participant": joined})
}
