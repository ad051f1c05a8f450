package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exchange-hub-go/internal/config"
	userdomain "exchange-hub-go/internal/domain/user"
	"exchange-hub-go/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

type fakeSyncer struct {
	seen     []userdomain.AuthUser
	role     string
	inactive bool
}

func (f *fakeSyncer) SyncFromAuth(_ context.Context, authUser userdomain.AuthUser) (*userdomain.User, error) {
	f.seen = append(f.seen, authUser)
	role := f.role
	if role == "" {
		role = "client"
	}
	return &userdomain.User{ID: authUser.ID, Email: authUser.Email, Role: role, IsActive: !f.inactive}, nil
}

func signed(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func protected(auth *SupabaseAuth) http.Handler {
	return auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": user.ID, "role": user.Role})
	}))
}

func call(handler http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/exchanges", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestLocalJWTVerification(t *testing.T) {
	syncer := &fakeSyncer{}
	auth := NewSupabaseAuth(config.SupabaseConfig{JWTSecret: testSecret}, syncer, logger.Discard())
	handler := protected(auth)

	valid := signed(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           "user-1",
		"email":         "casey@firm.test",
		"exp":           time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]any{"full_name": "Casey Coordinator"},
	})
	rec := call(handler, valid)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(syncer.seen) != 1 || syncer.seen[0].Name != "Casey Coordinator" || syncer.seen[0].Email != "casey@firm.test" {
		t.Fatalf("unexpected synced user %+v", syncer.seen)
	}

	cases := map[string]string{
		"missing":    "",
		"expired":    signed(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}),
		"no expiry":  signed(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}),
		"no subject": signed(t, jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}),
		"wrong alg":  signed(t, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()}),
		"garbage":    "not-a-jwt",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			rec := call(handler, token)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			var body map[string]any
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			if body["success"] != false || body["error"] != "invalid_token" {
				t.Fatalf("unexpected envelope %v", body)
			}
		})
	}
}

func TestRemoteVerification(t *testing.T) {
	supabase := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "user-2",
			"email":         "jane@example.com",
			"user_metadata": map[string]any{"name": "Jane Client"},
		})
	}))
	defer supabase.Close()

	syncer := &fakeSyncer{}
	auth := NewSupabaseAuth(config.SupabaseConfig{URL: supabase.URL + "/", PublishableKey: "anon"}, syncer, logger.Discard())
	handler := protected(auth)

	if rec := call(handler, "good"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if syncer.seen[0].ID != "user-2" || syncer.seen[0].Name != "Jane Client" {
		t.Fatalf("unexpected user %+v", syncer.seen[0])
	}
	if rec := call(handler, "bad"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSkipAuthAndInactiveUsers(t *testing.T) {
	syncer := &fakeSyncer{}
	auth := NewSupabaseAuth(config.SupabaseConfig{SkipAuth: true, MockUserID: "mock-1", MockUserEmail: "dev@local"}, syncer, logger.Discard())
	if rec := call(protected(auth), ""); rec.Code != http.StatusOK {
		t.Fatalf("expected mock user to pass, got %d", rec.Code)
	}

	unconfigured := NewSupabaseAuth(config.SupabaseConfig{SkipAuth: true}, syncer, logger.Discard())
	if rec := call(protected(unconfigured), ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without a mock user id, got %d", rec.Code)
	}

	inactive := NewSupabaseAuth(config.SupabaseConfig{SkipAuth: true, MockUserID: "mock-1"}, &fakeSyncer{inactive: true}, logger.Discard())
	if rec := call(protected(inactive), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a deactivated user, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := RequireAdmin(ok)

	for role, want := range map[string]int{"admin": http.StatusNoContent, "coordinator": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/audit-logs", nil)
		req = req.WithContext(WithUser(req.Context(), &userdomain.User{ID: "u", Role: role, IsActive: true}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("%s: expected %d, got %d", role, want, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/audit-logs", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a user, got %d", rec.Code)
	}
}
