package practicepanther

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"exchange-hub-go/internal/config"
	"exchange-hub-go/pkg/logger"
)

type fakePP struct {
	mu            sync.Mutex
	issued        int
	refreshTokens []string
	valid         string
	matterStatus  int
}

func (f *fakePP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == tokenPath:
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("client_id") != "cid" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.refreshTokens = append(f.refreshTokens, r.PostForm.Get("refresh_token"))
		f.issued++
		f.valid = fmt.Sprintf("access-%d", f.issued)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"bearer","expires_in":3600,"refresh_token":"refresh-%d"}`, f.valid, f.issued)
	case r.URL.Path == matterPath+"m-1":
		if r.Header.Get("Authorization") != "Bearer "+f.valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.matterStatus != 0 {
			w.WriteHeader(f.matterStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"m-1","account_ref":{"id":501,"display_name":"Jane Client"}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(config.PracticePantherConfig{
		BaseURL:      srv.URL + "/",
		ClientID:     "cid",
		ClientSecret: "secret",
		RefreshToken: "refresh-0",
		Timeout:      5 * time.Second,
	}, logger.Discard())
}

func TestGetMatterReusesToken(t *testing.T) {
	fake := &fakePP{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	client := newTestClient(t, srv)

	for i := 0; i < 2; i++ {
		matter, err := client.GetMatter(context.Background(), "m-1")
		if err != nil {
			t.Fatalf("get matter: %v", err)
		}
		if matter["id"] != "m-1" {
			t.Fatalf("unexpected matter %v", matter)
		}
	}
	if fake.issued != 1 {
		t.Fatalf("expected one token exchange, got %d", fake.issued)
	}
}

func TestGetMatterRefreshesOnceAfter401(t *testing.T) {
	fake := &fakePP{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	client := newTestClient(t, srv)

	if _, err := client.GetMatter(context.Background(), "m-1"); err != nil {
		t.Fatalf("get matter: %v", err)
	}

	// Server-side revocation: the cached token no longer works.
	fake.mu.Lock()
	fake.valid = "revoked"
	fake.mu.Unlock()

	if _, err := client.GetMatter(context.Background(), "m-1"); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if fake.issued != 2 {
		t.Fatalf("expected a second token exchange, got %d", fake.issued)
	}
	if fake.refreshTokens[1] != "refresh-1" {
		t.Fatalf("expected rotated refresh token, got %v", fake.refreshTokens)
	}
}

func TestGetMatterErrors(t *testing.T) {
	fake := &fakePP{matterStatus: http.StatusBadGateway}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	client := newTestClient(t, srv)

	_, err := client.GetMatter(context.Background(), "m-1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status error, got %v", err)
	}
	if _, err := client.GetMatter(context.Background(), "missing"); !errors.Is(err, ErrMatterNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
