package common

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/internal/transport/httpserver/middleware"
)

const dateLayout = "2006-01-02"

// Date accepts "2006-01-02" or RFC 3339 in request bodies.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	parsed, err := ParseDate(value)
	if err != nil {
		return err
	}
	d.Time = parsed
	return nil
}

// Ptr returns nil for a nil Date.
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if parsed, err := time.Parse(dateLayout, value); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	return parsed.UTC(), nil
}

func ParseIntParam(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid int")
	}
	return parsed, nil
}

func ParseBoolParam(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

// Page reads limit and offset from the query string.
func Page(r *http.Request, defaultLimit int) (int, int, error) {
	query := r.URL.Query()
	limit, err := ParseIntParam(query.Get("limit"), defaultLimit)
	if err != nil {
		return 0, 0, apperror.Invalid("limit", "limit must be a non-negative integer")
	}
	offset, err := ParseIntParam(query.Get("offset"), 0)
	if err != nil {
		return 0, 0, apperror.Invalid("offset", "offset must be a non-negative integer")
	}
	return limit, offset, nil
}

// Actor returns the authenticated caller or writes a 401.
func Actor(w http.ResponseWriter, r *http.Request) (permission.Subject, bool) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return permission.Subject{}, false
	}
	return subject, true
}
