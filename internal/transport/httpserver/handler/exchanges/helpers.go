package exchanges

import (
	"net/http"

	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
)

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	commonhandler.WriteError(w, r, h.log, err)
}

func respond(w http.ResponseWriter, r *http.Request, status int, payload map[string]any) {
	commonhandler.WriteSuccess(w, r, status, payload)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return commonhandler.DecodeJSON(r, dst)
}
