package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/domain/audit"
	"exchange-hub-go/internal/domain/exchange"
	"exchange-hub-go/internal/domain/notification"
	"exchange-hub-go/internal/domain/participant"
	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/internal/domain/user"
	"exchange-hub-go/pkg/casing"
	"exchange-hub-go/pkg/logger"
)

// CaseHeader selects the key casing of a response. Requests are accepted in
// either casing.
const CaseHeader = "X-Case"

const maxJSONBody = 1 << 20

// Schema lists the fields whose contents are never re-cased. Template
// variables are caller-named, so they pass through too.
var Schema = casing.NewSchema(append(casing.FromModels(
	exchange.Exchange{},
	participant.Participant{},
	notification.Notification{},
	audit.Entry{},
	user.User{},
	user.Contact{},
	permission.Effective{},
).Keys(), "variables")...)

type errorEnvelope struct {
	Success bool                  `json:"success"`
	Error   string                `json:"error"`
	Message string                `json:"message,omitempty"`
	Details []apperror.FieldError `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteSuccess writes {"success": true, ...payload}. Keys are camelCased when
// the caller asked for it with the X-Case header.
func WriteSuccess(w http.ResponseWriter, r *http.Request, status int, payload map[string]any) {
	body := make(map[string]any, len(payload)+1)
	for key, value := range payload {
		body[key] = value
	}
	body["success"] = true

	if !wantsCamel(r) {
		writeJSON(w, status, body)
		return
	}
	generic, err := toGeneric(body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, status, Schema.ToCamel(generic))
}

// WriteError maps err onto the error envelope. Internal and upstream failures
// are logged in full and answered with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	appErr := apperror.From(err)
	log = logger.FromContext(r.Context(), log)

	switch appErr.Kind {
	case apperror.KindInternal, apperror.KindUpstream:
		log.InternalError("http: request failed", err, "method", r.Method, "path", r.URL.Path)
		writeJSON(w, appErr.Status(), errorEnvelope{Error: appErr.Code, Message: "internal error"})
		return
	default:
		log.BusinessError("http: request rejected", err, "method", r.Method, "path", r.URL.Path)
	}

	writeJSON(w, appErr.Status(), errorEnvelope{
		Error:   appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

// WriteErrorCode writes an error envelope without going through apperror.
func WriteErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, code, message)
}

// DecodeJSON reads a JSON object in snake_case or camelCase into dst.
// Unknown fields are rejected.
func DecodeJSON(r *http.Request, dst interface{}) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody+1))
	if err != nil {
		return apperror.Validation("invalid_json", "could not read request body")
	}
	if len(raw) > maxJSONBody {
		return apperror.Validation("body_too_large", "request body too large")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return apperror.Validation("invalid_json", "request body is required")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return apperror.Validation("invalid_json", "malformed JSON")
	}
	normalized, err := json.Marshal(Schema.ToSnake(generic))
	if err != nil {
		return apperror.Validation("invalid_json", "malformed JSON")
	}

	strict := json.NewDecoder(bytes.NewReader(normalized))
	strict.DisallowUnknownFields()
	if err := strict.Decode(dst); err != nil {
		return apperror.Validation("invalid_json", describeDecodeError(err))
	}
	return nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s has the wrong type", typeErr.Field)
	}
	if msg := err.Error(); strings.HasPrefix(msg, "json: unknown field ") {
		return "unknown field " + strings.TrimPrefix(msg, "json: unknown field ")
	}
	return "malformed JSON"
}

func wantsCamel(r *http.Request) bool {
	return r != nil && strings.EqualFold(strings.TrimSpace(r.Header.Get(CaseHeader)), "camel")
}

func toGeneric(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
