package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/config"
	"exchange-hub-go/internal/domain/permission"
	userdomain "exchange-hub-go/internal/domain/user"
	"exchange-hub-go/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

var (
	errInvalidToken      = apperror.Unauthenticated("invalid_token", "invalid token")
	errAuthNotConfigured = apperror.New(apperror.KindInternal, "auth_not_configured", "auth not configured")
)

// UserSyncer records the authenticated caller and returns the stored user.
type UserSyncer interface {
	SyncFromAuth(ctx context.Context, authUser userdomain.AuthUser) (*userdomain.User, error)
}

type SupabaseAuth struct {
	baseURL   string
	apiKey    string
	jwtSecret []byte
	client    *http.Client
	users     UserSyncer
	skipAuth  bool
	mockUser  userdomain.AuthUser
	log       logger.Logger
}

type contextKey int

const (
	userKey contextKey = iota
)

type userResponse struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Sub          string                 `json:"sub"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	User         struct {
		ID  string `json:"id"`
		Sub string `json:"sub"`
	} `json:"user"`
}

type supabaseClaims struct {
	jwt.RegisteredClaims
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

func NewSupabaseAuth(cfg config.SupabaseConfig, users UserSyncer, log logger.Logger) *SupabaseAuth {
	baseURL := strings.TrimRight(cfg.URL, "/")
	timeout := cfg.AuthTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &SupabaseAuth{
		baseURL:   baseURL,
		apiKey:    cfg.PublishableKey,
		jwtSecret: []byte(cfg.JWTSecret),
		client: &http.Client{
			Timeout: timeout,
		},
		users:    users,
		skipAuth: cfg.SkipAuth,
		mockUser: userdomain.AuthUser{
			ID:    strings.TrimSpace(cfg.MockUserID),
			Email: strings.TrimSpace(cfg.MockUserEmail),
			Name:  strings.TrimSpace(cfg.MockUserName),
		},
		log: log,
	}
}

// Middleware authenticates the bearer token, syncs the caller into users and
// rejects deactivated accounts.
func (a *SupabaseAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authUser, err := a.authenticate(r)
		if err != nil {
			a.reject(w, r, err)
			return
		}

		stored, err := a.users.SyncFromAuth(r.Context(), authUser)
		if err != nil {
			a.reject(w, r, err)
			return
		}
		if err := userdomain.EnsureActive(stored); err != nil {
			a.reject(w, r, err)
			return
		}

		ctx := WithUser(r.Context(), stored)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx, a.log).With("user_id", stored.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *SupabaseAuth) authenticate(r *http.Request) (userdomain.AuthUser, error) {
	if a.skipAuth {
		if a.mockUser.ID == "" {
			return userdomain.AuthUser{}, errAuthNotConfigured
		}
		return a.mockUser, nil
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return userdomain.AuthUser{}, errInvalidToken
	}
	if len(a.jwtSecret) > 0 {
		return a.verifyLocal(token)
	}
	if a.baseURL == "" || a.apiKey == "" {
		return userdomain.AuthUser{}, errAuthNotConfigured
	}
	return a.verifyRemote(r.Context(), token)
}

func (a *SupabaseAuth) verifyLocal(raw string) (userdomain.AuthUser, error) {
	var claims supabaseClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return a.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil || claims.Subject == "" {
		return userdomain.AuthUser{}, errInvalidToken
	}
	return userdomain.AuthUser{
		ID:        claims.Subject,
		Email:     claims.Email,
		Name:      displayName(claims.UserMetadata),
		AvatarURL: stringFromMap(claims.UserMetadata, "avatar_url"),
	}, nil
}

func (a *SupabaseAuth) verifyRemote(ctx context.Context, token string) (userdomain.AuthUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return userdomain.AuthUser{}, errInvalidToken
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return userdomain.AuthUser{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return userdomain.AuthUser{}, errInvalidToken
	}

	var payload userResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return userdomain.AuthUser{}, errInvalidToken
	}

	userID := firstNonEmpty(payload.ID, payload.Sub, payload.User.ID, payload.User.Sub)
	if userID == "" {
		return userdomain.AuthUser{}, errInvalidToken
	}
	return userdomain.AuthUser{
		ID:        userID,
		Email:     payload.Email,
		Name:      displayName(payload.UserMetadata),
		AvatarURL: stringFromMap(payload.UserMetadata, "avatar_url"),
	}, nil
}

func (a *SupabaseAuth) reject(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.From(err)
	log := logger.FromContext(r.Context(), a.log)
	switch appErr.Kind {
	case apperror.KindUnauthenticated, apperror.KindAuthorization:
		log.BusinessError("auth: request rejected", err, "path", r.URL.Path)
	default:
		log.InternalError("auth: authentication failed", err, "path", r.URL.Path)
	}
	writeError(w, appErr.Status(), appErr.Code, appErr.Message)
}

// RequireAdmin rejects callers whose stored role is not admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := SubjectFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
			return
		}
		if !subject.IsAdmin() {
			writeError(w, http.StatusForbidden, permission.ErrAdminOnly.Code, permission.ErrAdminOnly.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(value string) (string, bool) {
	parts := strings.Fields(value)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func WithUser(ctx context.Context, user *userdomain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) (*userdomain.User, bool) {
	user, ok := ctx.Value(userKey).(*userdomain.User)
	if !ok || user == nil || user.ID == "" {
		return nil, false
	}
	return user, true
}

func SubjectFromContext(ctx context.Context) (permission.Subject, bool) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return permission.Subject{}, false
	}
	return user.Subject(), true
}

func displayName(metadata map[string]interface{}) string {
	return firstNonEmpty(stringFromMap(metadata, "name"), stringFromMap(metadata, "full_name"))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   code,
		"message": message,
	})
}

func stringFromMap(values map[string]interface{}, key string) string {
	if values == nil {
		return ""
	}
	value, ok := values[key]
	if !ok {
		return ""
	}
	parsed, ok := value.(string)
	if !ok {
		return ""
	}
	return parsed
}
