package exchanges

import (
	"net/http"

	participantdomain "exchange-hub-go/internal/domain/participant"
	"exchange-hub-go/internal/domain/permission"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	"github.com/go-chi/chi/v5"
)

type addParticipantRequest struct {
	UserID      *string              `json:"user_id"`
	ContactID   *string              `json:"contact_id"`
	Role        string               `json:"role"`
	Permissions permission.Overrides `json:"permissions"`
}

type updateParticipantRequest struct {
	Role             *string              `json:"role"`
	Permissions      permission.Overrides `json:"permissions"`
	ClearPermissions bool                 `json:"clear_permissions"`
}

func (h *Handlers) ListParticipants(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	items, err := h.Participants.List(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"participants": items})
}

func (h *Handlers) AddParticipant(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req addParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.Participants.Add(r.Context(), actor, chi.URLParam(r, "id"), participantdomain.AddInput{
		UserID:      req.UserID,
		ContactID:   req.ContactID,
		Role:        req.Role,
		Permissions: req.Permissions,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, map[string]any{"participant": created})
}

func (h *Handlers) UpdateParticipant(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req updateParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.Participants.Update(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "participantID"), participantdomain.UpdateInput{
		Role:             req.Role,
		Permissions:      req.Permissions,
		ClearPermissions: req.ClearPermissions,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"participant": updated})
}

func (h *Handlers) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	if err := h.Participants.Remove(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "participantID")); err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"message": "participant removed"})
}
