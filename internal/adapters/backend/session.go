package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultSessionCookie is the cookie the backend uses for its own session.
const DefaultSessionCookie = "session"

// SessionBridge forwards the backend session cookie to the backend's auth
// endpoints so the browser never talks to the backend origin directly.
type SessionBridge struct {
	http       *http.Client
	baseURL    string
	cookieName string
	observers  []Observer
}

// NewSessionBridge creates a SessionBridge. An empty cookieName uses DefaultSessionCookie.
func NewSessionBridge(httpClient *http.Client, baseURL, cookieName string, observers ...Observer) *SessionBridge {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	return &SessionBridge{
		http:       httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookieName: cookieName,
		observers:  observers,
	}
}

// CookieName returns the backend session cookie name.
func (b *SessionBridge) CookieName() string { return b.cookieName }

// Me returns the backend's JSON description of the session owner.
// POST: ErrNotAuthenticated when cookie is empty
func (b *SessionBridge) Me(ctx context.Context, cookie string) (json.RawMessage, error) {
	if cookie == "" {
		return nil, ErrNotAuthenticated
	}
	body, err := b.call(ctx, http.MethodGet, "/auth/me", cookie, "")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("auth/me: invalid JSON response")
	}
	return json.RawMessage(body), nil
}

// Logout asks the backend to clear its session cookie. Either credential may be empty.
func (b *SessionBridge) Logout(ctx context.Context, cookie, token string) error {
	_, err := b.call(ctx, http.MethodPost, "/auth/logout", cookie, token)
	return err
}

func (b *SessionBridge) call(ctx context.Context, method, path, cookie, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: b.cookieName, Value: cookie})
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := b.http.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	for _, o := range b.observers {
		o.ObserveUpstream("auth", method, status, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("auth %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read auth response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{
			Service:    "auth",
			Method:     method,
			URL:        b.baseURL + path,
			StatusCode: resp.StatusCode,
			Message:    extractMessage(data),
		}
	}
	return data, nil
}
