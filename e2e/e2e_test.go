//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"exchange-hub-go/internal/config"
	"exchange-hub-go/internal/db"
	auditdomain "exchange-hub-go/internal/domain/audit"
	dashboarddomain "exchange-hub-go/internal/domain/dashboard"
	documentdomain "exchange-hub-go/internal/domain/document"
	entitysyncdomain "exchange-hub-go/internal/domain/entitysync"
	exchangedomain "exchange-hub-go/internal/domain/exchange"
	invitationdomain "exchange-hub-go/internal/domain/invitation"
	notificationdomain "exchange-hub-go/internal/domain/notification"
	participantdomain "exchange-hub-go/internal/domain/participant"
	"exchange-hub-go/internal/domain/permission"
	taskdomain "exchange-hub-go/internal/domain/task"
	userdomain "exchange-hub-go/internal/domain/user"
	"exchange-hub-go/internal/events"
	"exchange-hub-go/internal/repository/inmemory"
	auditrepo "exchange-hub-go/internal/repository/postgres/audit"
	dashboardrepo "exchange-hub-go/internal/repository/postgres/dashboard"
	documentrepo "exchange-hub-go/internal/repository/postgres/document"
	entitysyncrepo "exchange-hub-go/internal/repository/postgres/entitysync"
	exchangerepo "exchange-hub-go/internal/repository/postgres/exchange"
	invitationrepo "exchange-hub-go/internal/repository/postgres/invitation"
	notificationrepo "exchange-hub-go/internal/repository/postgres/notification"
	participantrepo "exchange-hub-go/internal/repository/postgres/participant"
	taskrepo "exchange-hub-go/internal/repository/postgres/task"
	userrepo "exchange-hub-go/internal/repository/postgres/user"
	"exchange-hub-go/internal/transport/httpserver"
	"exchange-hub-go/internal/transport/httpserver/handler"
	"exchange-hub-go/internal/transport/httpserver/handler/admin"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	dashboardhandler "exchange-hub-go/internal/transport/httpserver/handler/dashboard"
	documenthandler "exchange-hub-go/internal/transport/httpserver/handler/documents"
	exchangehandler "exchange-hub-go/internal/transport/httpserver/handler/exchanges"
	invitationhandler "exchange-hub-go/internal/transport/httpserver/handler/invitations"
	notificationhandler "exchange-hub-go/internal/transport/httpserver/handler/notifications"
	taskhandler "exchange-hub-go/internal/transport/httpserver/handler/tasks"
	userhandler "exchange-hub-go/internal/transport/httpserver/handler/users"
	"exchange-hub-go/pkg/logger"
	"gorm.io/gorm"
)

const (
	coordinatorID = "11111111-1111-4111-8111-111111111111"
	clientID      = "22222222-2222-4222-8222-222222222222"
	outsiderID    = "33333333-3333-4333-8333-333333333333"
)

type testEnv struct {
	server     *httptest.Server
	authServer *httptest.Server
	db         *gorm.DB
}

func setupE2E(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("E2E_DB_DSN")
	if dsn == "" {
		t.Skip("E2E_DB_DSN not set; skipping e2e tests")
	}

	authServer := newAuthServer(t)
	log := logger.Discard()

	cfg := config.Config{
		DB:             config.DBConfig{DSN: dsn},
		RequestTimeout: 10 * time.Second,
		Supabase: config.SupabaseConfig{
			URL:            authServer.URL,
			PublishableKey: "test-key",
			AuthTimeout:    2 * time.Second,
		},
	}

	dbConn, err := db.NewPostgres(cfg.DB, log)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	if err := db.Migrate(dbConn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := cleanDB(dbConn); err != nil {
		t.Fatalf("clean db: %v", err)
	}

	publisher := events.NewLogPublisher(log)
	participants := participantrepo.NewPostgres(dbConn)
	permissions := permission.NewService(permission.DefaultTable(), participantdomain.NewAssignmentSource(participants), inmemory.NewInMemoryPermissionCache(), time.Minute, log)
	audit := auditdomain.NewService(auditrepo.NewPostgres(dbConn), permissions, log)
	users := userdomain.NewService(userrepo.NewPostgres(dbConn), audit, log)
	notifications := notificationdomain.NewService(notificationrepo.NewPostgres(dbConn), nil, audit, log)
	participantService := participantdomain.NewService(participants, permissions, publisher, audit, log)
	exchanges := exchangedomain.NewService(exchangerepo.NewPostgres(dbConn), permissions, publisher, notifications, log)
	invitations := invitationdomain.NewService(invitationrepo.NewPostgres(dbConn), invitationdomain.Deps{
		Permissions:  permissions,
		Participants: participantService,
		Users:        users,
		Notifier:     notifications,
		Publisher:    publisher,
		Auditor:      audit,
	}, time.Hour, log)
	tasks := taskdomain.NewService(taskrepo.NewPostgres(dbConn), permissions, notifications, publisher, audit, log)
	documents := documentdomain.NewService(documentrepo.NewPostgres(dbConn), nil, permissions, notifications, publisher, audit, documentdomain.Options{}, log)
	entitySync := entitysyncdomain.NewService(entitysyncrepo.NewPostgres(dbConn), nil, publisher, audit, entitysyncdomain.Options{}, log)

	handlers := &handler.Handlers{
		Health:        commonhandler.NewHealth(log, commonhandler.Check{Name: "postgres", Ping: func(ctx context.Context) error { return db.Ping(ctx, dbConn) }}),
		Exchanges:     exchangehandler.New(exchanges, participantService, audit, log),
		Invitations:   invitationhandler.New(invitations, log),
		Tasks:         taskhandler.New(tasks, log),
		Documents:     documenthandler.New(documents, log),
		Notifications: notificationhandler.New(notifications, log),
		Users:         userhandler.New(users, log),
		Admin:         admin.New(entitySync, audit, log),
		Dashboard:     dashboardhandler.New(dashboarddomain.NewService(dashboardrepo.NewPostgres(dbConn), dashboarddomain.Config{CacheTTL: -1}, log), log),
	}

	router := httpserver.NewRouter(cfg, handlers, users, log)
	server := httptest.NewServer(router)

	return &testEnv{server: server, authServer: authServer, db: dbConn}
}

func (e *testEnv) Close() {
	e.server.Close()
	e.authServer.Close()
	sqlDB, err := e.db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}

// newAuthServer accepts any token and treats it as the user id.
func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if token == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    token,
			"email": token[:8] + "@example.com",
			"user_metadata": map[string]interface{}{
				"name": "User " + token[:8],
			},
		})
	}))
}

func cleanDB(dbConn *gorm.DB) error {
	return dbConn.WithContext(context.Background()).Exec(
		"TRUNCATE TABLE audit_logs, notifications, documents, tasks, invitations, exchange_participants, exchanges, contacts, users CASCADE",
	).Error
}

func (e *testEnv) setRole(t *testing.T, userID, role string) {
	t.Helper()
	if err := e.db.Exec("UPDATE users SET role = ? WHERE id = ?", role, userID).Error; err != nil {
		t.Fatalf("set role: %v", err)
	}
}

func requestJSON(t *testing.T, client *http.Client, method, url, token string, payload interface{}) (*http.Response, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode response %q: %v", raw, err)
	}
	return resp, decoded
}

func expectStatus(t *testing.T, resp *http.Response, body map[string]any, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected %d, got %d: %v", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func TestE2EHealthAndAuth(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, body := requestJSON(t, client, http.MethodGet, env.server.URL+"/api/health", "", nil)
	expectStatus(t, resp, body, http.StatusOK)

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/users/me", "", nil)
	expectStatus(t, resp, body, http.StatusUnauthorized)

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/users/me", clientID, nil)
	expectStatus(t, resp, body, http.StatusOK)
	me := body["user"].(map[string]any)
	if me["id"] != clientID || me["role"] != "client" || me["first_name"] != "User" {
		t.Fatalf("unexpected user %v", me)
	}
}

func TestE2EExchangeLifecycle(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()
	client := &http.Client{Timeout: 5 * time.Second}
	base := env.server.URL + "/api"

	requestJSON(t, client, http.MethodGet, base+"/users/me", coordinatorID, nil)
	requestJSON(t, client, http.MethodGet, base+"/users/me", clientID, nil)
	requestJSON(t, client, http.MethodGet, base+"/users/me", outsiderID, nil)
	env.setRole(t, coordinatorID, "coordinator")

	resp, body := requestJSON(t, client, http.MethodPost, base+"/exchanges", clientID, map[string]any{"name": "Nope"})
	expectStatus(t, resp, body, http.StatusForbidden)

	resp, body = requestJSON(t, client, http.MethodPost, base+"/exchanges", coordinatorID, map[string]any{
		"name":                 "Maple Street",
		"exchangeType":         "delayed",
		"clientId":             clientID,
		"closeOfEscrowDate":    "2024-01-01",
		"relinquishedProperty": map[string]any{"address": "1 Maple St"},
	})
	expectStatus(t, resp, body, http.StatusCreated)
	exchange := body["exchange"].(map[string]any)
	id := exchange["id"].(string)
	if exchange["status"] != "Draft" || !strings.HasPrefix(exchange["identification_deadline"].(string), "2024-02-15") ||
		!strings.HasPrefix(exchange["completion_deadline"].(string), "2024-06-29") {
		t.Fatalf("unexpected exchange %v", exchange)
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/exchanges/"+id, outsiderID, nil)
	expectStatus(t, resp, body, http.StatusForbidden)

	resp, body = requestJSON(t, client, http.MethodGet, base+"/exchanges/"+id+"/permissions", clientID, nil)
	expectStatus(t, resp, body, http.StatusOK)
	if body["permissions"].(map[string]any)["can_edit"] != false {
		t.Fatalf("client must not edit: %v", body)
	}

	for _, to := range []string{"Pending", "45D"} {
		resp, body = requestJSON(t, client, http.MethodPost, base+"/exchanges/"+id+"/transition", coordinatorID, map[string]any{"to_status": to})
		expectStatus(t, resp, body, http.StatusOK)
	}
	resp, body = requestJSON(t, client, http.MethodPost, base+"/exchanges/"+id+"/validate-transition", coordinatorID, map[string]any{"to_status": "Draft"})
	expectStatus(t, resp, body, http.StatusOK)
	if body["validation"].(map[string]any)["valid"] != false {
		t.Fatalf("45D -> Draft must be rejected: %v", body)
	}
	resp, body = requestJSON(t, client, http.MethodPost, base+"/exchanges/"+id+"/transition", clientID, map[string]any{"to_status": "180D"})
	expectStatus(t, resp, body, http.StatusForbidden)

	resp, body = requestJSON(t, client, http.MethodGet, base+"/exchanges/"+id+"/participants", coordinatorID, nil)
	expectStatus(t, resp, body, http.StatusOK)
	participants := body["participants"].([]any)
	if len(participants) != 2 {
		t.Fatalf("expected coordinator and client participants, got %v", participants)
	}
	var coordinatorParticipant string
	for _, raw := range participants {
		p := raw.(map[string]any)
		if p["user_id"] == coordinatorID {
			coordinatorParticipant = p["id"].(string)
		}
	}
	if coordinatorParticipant == "" {
		t.Fatalf("coordinator not enrolled: %v", participants)
	}

	resp, body = requestJSON(t, client, http.MethodDelete, base+"/exchanges/"+id+"/participants/"+coordinatorParticipant, coordinatorID, nil)
	expectStatus(t, resp, body, http.StatusConflict)

	resp, body = requestJSON(t, client, http.MethodPost, base+"/exchanges/"+id+"/tasks", coordinatorID, map[string]any{
		"title":       "Collect 8824",
		"due_date":    "2024-02-01",
		"assigned_to": clientID,
	})
	expectStatus(t, resp, body, http.StatusCreated)

	resp, body = requestJSON(t, client, http.MethodGet, base+"/notifications", clientID, nil)
	expectStatus(t, resp, body, http.StatusOK)
	if body["total"].(float64) < 1 {
		t.Fatalf("expected the client to be notified, got %v", body)
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/dashboard", clientID, nil)
	expectStatus(t, resp, body, http.StatusOK)
	summary := body["summary"].(map[string]any)
	if summary["total_exchanges"] != float64(1) || summary["tasks"].(map[string]any)["open"] != float64(1) {
		t.Fatalf("unexpected dashboard %v", summary)
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/exchanges/"+id+"/audit-logs", coordinatorID, nil)
	expectStatus(t, resp, body, http.StatusOK)
	if len(body["audit_logs"].([]any)) == 0 {
		t.Fatalf("expected audit entries")
	}
}

func TestE2EParticipantRemoval(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()
	client := &http.Client{Timeout: 5 * time.Second}
	base := env.server.URL + "/api"

	requestJSON(t, client, http.MethodGet, base+"/users/me", coordinatorID, nil)
	requestJSON(t, client, http.MethodGet, base+"/users/me", clientID, nil)
	env.setRole(t, coordinatorID, "coordinator")

	resp, body := requestJSON(t, client, http.MethodPost, base+"/exchanges", coordinatorID, map[string]any{
		"name":     "Birch Lane",
		"clientId": clientID,
	})
	expectStatus(t, resp, body, http.StatusCreated)
	id := body["exchange"].(map[string]any)["id"].(string)

	resp, body = requestJSON(t, client, http.MethodGet, base+"/exchanges/"+id+"/participants", coordinatorID, nil)
	expectStatus(t, resp, body, http.StatusOK)
	ids := map[string]string{}
	for _, raw := range body["participants"].([]any) {
		p := raw.(map[string]any)
		if userID, ok := p["user_id"].(string); ok {
			ids[userID] = p["id"].(string)
		}
	}
	if ids[coordinatorID] == "" || ids[clientID] == "" {
		t.Fatalf("expected coordinator and client enrolled, got %v", ids)
	}

	resp, body = requestJSON(t, client, http.MethodDelete, base+"/exchanges/"+id+"/participants/"+ids[clientID], coordinatorID, nil)
	expectStatus(t, resp, body, http.StatusOK)
	resp, body = requestJSON(t, client, http.MethodGet, base+"/exchanges/"+id, clientID, nil)
	expectStatus(t, resp, body, http.StatusForbidden)

	var clientColumn *string
	if err := env.db.Raw("SELECT client_id FROM exchanges WHERE id = ?", id).Scan(&clientColumn).Error; err != nil {
		t.Fatalf("read client column: %v", err)
	}
	if clientColumn != nil {
		t.Fatalf("expected client column cleared, got %s", *clientColumn)
	}

	// A second coordinator stored with a legacy spelling still counts.
	if err := env.db.Exec("UPDATE exchange_participants SET role = 'Exchange Coordinator', deleted_at = NULL WHERE id = ?", ids[clientID]).Error; err != nil {
		t.Fatalf("restore participant: %v", err)
	}
	resp, body = requestJSON(t, client, http.MethodDelete, base+"/exchanges/"+id+"/participants/"+ids[coordinatorID], coordinatorID, nil)
	expectStatus(t, resp, body, http.StatusOK)
}
