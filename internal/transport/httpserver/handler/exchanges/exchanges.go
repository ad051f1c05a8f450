package exchanges

import (
	"net/http"
	"strings"

	exchangedomain "exchange-hub-go/internal/domain/exchange"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	"github.com/go-chi/chi/v5"
)

const defaultPageSize = 50

type exchangeRequest struct {
	Name                 *string                  `json:"name"`
	ExchangeNumber       *string                  `json:"exchange_number"`
	ExchangeType         *string                  `json:"exchange_type"`
	ExchangeValue        *float64                 `json:"exchange_value"`
	CoordinatorID        *string                  `json:"coordinator_id"`
	ClientID             *string                  `json:"client_id"`
	RelinquishedProperty *exchangedomain.Property `json:"relinquished_property"`
	ReplacementProperty  *exchangedomain.Property `json:"replacement_property"`
	StartDate            *commonhandler.Date      `json:"start_date"`
	CloseOfEscrowDate    *commonhandler.Date      `json:"close_of_escrow_date"`
	ProceedsReceivedDate *commonhandler.Date      `json:"proceeds_received_date"`
	PPMatterID           *string                  `json:"pp_matter_id"`
	Metadata             map[string]any           `json:"metadata"`
	Status               *string                  `json:"status"`
}

type transitionRequest struct {
	ToStatus string `json:"to_status"`
	Reason   string `json:"reason"`
}

func (h *Handlers) ListExchanges(w http.ResponseWriter, r *http.Request) {
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
	page, err := h.Exchanges.List(r.Context(), actor, exchangedomain.ListFilter{
		Status: strings.TrimSpace(query.Get("status")),
		Search: strings.TrimSpace(query.Get("search")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{
		"exchanges": page.Items,
		"total":     page.Total,
		"limit":     page.Limit,
		"offset":    page.Offset,
	})
}

func (h *Handlers) CreateExchange(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req exchangeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	input := exchangedomain.CreateInput{
		Name:                 deref(req.Name),
		ExchangeNumber:       req.ExchangeNumber,
		ExchangeType:         deref(req.ExchangeType),
		ExchangeValue:        req.ExchangeValue,
		CoordinatorID:        req.CoordinatorID,
		ClientID:             req.ClientID,
		RelinquishedProperty: req.RelinquishedProperty,
		ReplacementProperty:  req.ReplacementProperty,
		StartDate:            req.StartDate.Ptr(),
		CloseOfEscrowDate:    req.CloseOfEscrowDate.Ptr(),
		ProceedsReceivedDate: req.ProceedsReceivedDate.Ptr(),
		PPMatterID:           req.PPMatterID,
		Metadata:             req.Metadata,
	}
	created, err := h.Exchanges.Create(r.Context(), actor, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, map[string]any{"exchange": created})
}

func (h *Handlers) GetExchange(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	ex, effective, err := h.Exchanges.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"exchange": ex, "permissions": effective})
}

func (h *Handlers) UpdateExchange(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req exchangeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	input := exchangedomain.UpdateInput{
		Name:                 req.Name,
		ExchangeNumber:       req.ExchangeNumber,
		ExchangeType:         req.ExchangeType,
		ExchangeValue:        req.ExchangeValue,
		CoordinatorID:        req.CoordinatorID,
		ClientID:             req.ClientID,
		RelinquishedProperty: req.RelinquishedProperty,
		ReplacementProperty:  req.ReplacementProperty,
		StartDate:            req.StartDate.Ptr(),
		CloseOfEscrowDate:    req.CloseOfEscrowDate.Ptr(),
		ProceedsReceivedDate: req.ProceedsReceivedDate.Ptr(),
		PPMatterID:           req.PPMatterID,
		Metadata:             req.Metadata,
		Status:               req.Status,
	}
	updated, err := h.Exchanges.Update(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"exchange": updated})
}

func (h *Handlers) DeleteExchange(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	if err := h.Exchanges.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"message": "exchange deleted"})
}

func (h *Handlers) Permissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	effective, err := h.Exchanges.Permissions(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{
		"role":           effective.Role,
		"permissions":    effective.Permissions,
		"tabs":           effective.Tabs,
		"source":         effective.Source,
		"is_participant": effective.IsParticipant,
	})
}

func (h *Handlers) Transitions(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	current, options, err := h.Exchanges.Transitions(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"current_status": current, "transitions": options})
}

func (h *Handlers) ValidateTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.Exchanges.ValidateTransition(r.Context(), actor, chi.URLParam(r, "id"), req.ToStatus)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"validation": result})
}

func (h *Handlers) ExecuteTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.Exchanges.ExecuteTransition(r.Context(), actor, chi.URLParam(r, "id"), exchangedomain.TransitionInput{
		To:     req.ToStatus,
		Reason: req.Reason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"exchange": updated})
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
