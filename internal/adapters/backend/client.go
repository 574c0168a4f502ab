// Package backend contains the authenticated REST clients for the gym's
// backend services.
package backend

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of an upstream body is read.
var maxResponseBytes int64 = 10 << 20

// TenantHeader carries the gym identifier on every upstream request.
const TenantHeader = "X-Tenant-ID"

type credentialsKey struct{}

// Credentials authenticate upstream calls made on behalf of a user.
type Credentials struct {
	Token    string
	TenantID string
}

// WithCredentials returns a context carrying c.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// CredentialsFrom extracts credentials set by WithCredentials.
// The second result is false when no usable token is present.
func CredentialsFrom(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(Credentials)
	return c, ok && c.Token != ""
}

// Observer receives timing for every upstream call.
type Observer interface {
	ObserveUpstream(service, method string, status int, d time.Duration)
}

// Client performs authenticated JSON requests.
// Identical concurrent reads, and identical concurrent writes from the same
// credentials, share a single upstream request.
type Client struct {
	http      *http.Client
	observers []Observer
	sf        singleflight.Group
}

// NewClient creates a Client. A nil httpClient gets DefaultTimeout.
func NewClient(httpClient *http.Client, observers ...Observer) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{http: httpClient, observers: observers}
}

// request describes one upstream call.
type request struct {
	service     string
	method      string
	url         string
	body        []byte
	contentType string
	dedupe      bool
}

// do executes req and decodes a JSON response into out (when non-nil).
// PRE: ctx carries Credentials
// POST: ErrNotAuthenticated without a network call when no token is present;
// *RequestError for non-2xx responses
func (c *Client) do(ctx context.Context, req request, out any) error {
	creds, ok := CredentialsFrom(ctx)
	if !ok {
		return ErrNotAuthenticated
	}

	if !req.dedupe {
		body, err := c.roundTrip(ctx, creds, req)
		if err != nil {
			return err
		}
		return decode(body, out)
	}

	// The shared call outlives any single caller; each caller still stops
	// waiting when its own ctx is done.
	key := flightKey(creds, req)
	ch := c.sf.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTimeout)
		defer cancel()
		return c.roundTrip(flightCtx, creds, req)
	})
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s %s %s: %w", req.service, req.method, req.url, ctx.Err())
	case res := <-ch:
		if res.Shared {
			slog.Debug("upstream_shared", "service", req.service, "method", req.method, "url", req.url)
		}
		if res.Err != nil {
			return res.Err
		}
		return decode(res.Val.([]byte), out)
	}
}

func (c *Client) roundTrip(ctx context.Context, creds Credentials, req request) ([]byte, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.service, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+creds.Token)
	httpReq.Header.Set("Accept", "application/json")
	if creds.TenantID != "" {
		httpReq.Header.Set(TenantHeader, creds.TenantID)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.observe(req.service, req.method, status, time.Since(start))
	if err != nil {
		slog.Warn("upstream_failed", "service", req.service, "method", req.method, "url", req.url, "error", err.Error())
		return nil, fmt.Errorf("%s %s %s: %w", req.service, req.method, req.url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.service, err)
	}
	if int64(len(data)) > maxResponseBytes {
		slog.Warn("upstream_too_large", "service", req.service, "method", req.method, "url", req.url, "limit", maxResponseBytes)
		return nil, fmt.Errorf("%s %s %s: %w", req.service, req.method, req.url, ErrResponseTooLarge)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Info("upstream_error", "service", req.service, "method", req.method, "url", req.url, "status", resp.StatusCode)
		return nil, &RequestError{
			Service:    req.service,
			Method:     req.method,
			URL:        req.url,
			StatusCode: resp.StatusCode,
			Message:    extractMessage(data),
		}
	}
	return data, nil
}

func (c *Client) observe(service, method string, status int, d time.Duration) {
	for _, o := range c.observers {
		o.ObserveUpstream(service, method, status, d)
	}
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func flightKey(creds Credentials, req request) string {
	h := sha256.New()
	h.Write([]byte(creds.Token))
	h.Write([]byte{0})
	h.Write([]byte(creds.TenantID))
	h.Write([]byte{0})
	h.Write(req.body)
	return req.method + " " + req.url + " " + hex.EncodeToString(h.Sum(nil))
}
