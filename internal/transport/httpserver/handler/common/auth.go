package common

import (
	"net/http"

	"exchange-hub-go/internal/transport/httpserver/middleware"
)

// AuthMe returns the stored account of the caller.
func AuthMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}
	WriteSuccess(w, r, http.StatusOK, map[string]any{"user": user})
}
