// Package practicepanther reads matters from the PracticePanther API.
package practicepanther

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"exchange-hub-go/internal/config"
	"exchange-hub-go/pkg/logger"
	"golang.org/x/oauth2"
)

const (
	tokenPath  = "/oauth/token"
	matterPath = "/api/v2/matters/"
	maxBody    = 4 << 20
)

var (
	ErrMatterNotFound = errors.New("practicepanther: matter not found")
	ErrUnauthorized   = errors.New("practicepanther: unauthorized")
)

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("practicepanther: unexpected status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  *tokenSource
	log     logger.Logger
}

func NewClient(cfg config.PracticePantherConfig, log logger.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	httpClient := &http.Client{Timeout: cfg.Timeout}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  baseURL + tokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		tokens:  &tokenSource{config: oauthCfg, refreshToken: cfg.RefreshToken, http: httpClient},
		log:     log,
	}
}

// GetMatter fetches one matter as raw JSON. A 401 forces one token refresh
// and one retry.
func (c *Client) GetMatter(ctx context.Context, matterID string) (map[string]any, error) {
	endpoint := c.baseURL + matterPath + url.PathEscape(matterID)

	var matter map[string]any
	err := c.getJSON(ctx, endpoint, &matter)
	if errors.Is(err, ErrUnauthorized) {
		logger.FromContext(ctx, c.log).Warn("practicepanther.matter: token rejected, refreshing", "matter_id", matterID)
		c.tokens.invalidate()
		err = c.getJSON(ctx, endpoint, &matter)
	}
	if err != nil {
		return nil, err
	}
	return matter, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	token, err := c.tokens.token(ctx)
	if err != nil {
		return fmt.Errorf("practicepanther: obtain token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	token.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("practicepanther: request: %w", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBody)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrMatterNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("practicepanther: decode response: %w", err)
	}
	return nil
}

// tokenSource caches the access token and keeps the latest refresh token,
// since PracticePanther may rotate it on every refresh.
type tokenSource struct {
	mu           sync.Mutex
	config       *oauth2.Config
	refreshToken string
	current      *oauth2.Token
	http         *http.Client
}

func (s *tokenSource) token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Valid() {
		return s.current, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)
	seed := &oauth2.Token{RefreshToken: s.refreshToken}
	fresh, err := s.config.TokenSource(ctx, seed).Token()
	if err != nil {
		return nil, err
	}
	if fresh.RefreshToken != "" {
		s.refreshToken = fresh.RefreshToken
	}
	s.current = fresh
	return fresh, nil
}

func (s *tokenSource) invalidate() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}
