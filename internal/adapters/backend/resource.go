package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Encoder serialises a record for create and update requests.
type Encoder[T any] func(v T) (body []byte, contentType string, err error)

// JSONEncoder is the default Encoder.
func JSONEncoder[T any](v T) ([]byte, string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	return b, "application/json", nil
}

// ResourceConfig describes one backend collection endpoint.
type ResourceConfig struct {
	Name         string // service name used in logs and metrics
	BaseURL      string
	Path         string // collection path, e.g. "/members"
	UpdateMethod string // http.MethodPatch or http.MethodPut
}

// Resource is the CRUD client for one entity type.
type Resource[T any] struct {
	client *Client
	cfg    ResourceConfig
	encode Encoder[T]
}

// NewResource creates a Resource. A nil encode uses JSONEncoder.
func NewResource[T any](client *Client, cfg ResourceConfig, encode Encoder[T]) *Resource[T] {
	if cfg.UpdateMethod == "" {
		cfg.UpdateMethod = http.MethodPatch
	}
	if encode == nil {
		encode = JSONEncoder[T]
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Resource[T]{client: client, cfg: cfg, encode: encode}
}

// Name returns the configured service name.
func (r *Resource[T]) Name() string { return r.cfg.Name }

func (r *Resource[T]) collectionURL() string {
	return r.cfg.BaseURL + r.cfg.Path
}

func (r *Resource[T]) itemURL(id string) string {
	return r.collectionURL() + "/" + url.PathEscape(id)
}

// List fetches every record.
func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	var raw json.RawMessage
	err := r.client.do(ctx, request{
		service: r.cfg.Name,
		method:  http.MethodGet,
		url:     r.collectionURL(),
		dedupe:  true,
	}, &raw)
	if err != nil {
		return nil, err
	}
	items := []T{}
	if err := unwrap(raw, &items); err != nil {
		return nil, fmt.Errorf("%s list: %w", r.cfg.Name, err)
	}
	return items, nil
}

// Get fetches one record.
func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	var raw json.RawMessage
	err := r.client.do(ctx, request{
		service: r.cfg.Name,
		method:  http.MethodGet,
		url:     r.itemURL(id),
		dedupe:  true,
	}, &raw)
	if err != nil {
		return out, err
	}
	if err := unwrap(raw, &out); err != nil {
		return out, fmt.Errorf("%s get: %w", r.cfg.Name, err)
	}
	return out, nil
}

// Create posts v and returns the stored record.
// If the service answers with an empty body, v is returned unchanged.
func (r *Resource[T]) Create(ctx context.Context, v T) (T, error) {
	return r.write(ctx, http.MethodPost, r.collectionURL(), v, true)
}

// Update sends v for id with the configured method and returns the stored record.
func (r *Resource[T]) Update(ctx context.Context, id string, v T) (T, error) {
	return r.write(ctx, r.cfg.UpdateMethod, r.itemURL(id), v, false)
}

// Patch sends a partial document for id.
func (r *Resource[T]) Patch(ctx context.Context, id string, fields map[string]any) (T, error) {
	var out T
	body, err := json.Marshal(fields)
	if err != nil {
		return out, err
	}
	var raw json.RawMessage
	err = r.client.do(ctx, request{
		service:     r.cfg.Name,
		method:      http.MethodPatch,
		url:         r.itemURL(id),
		body:        body,
		contentType: "application/json",
	}, &raw)
	if err != nil {
		return out, err
	}
	if err := unwrap(raw, &out); err != nil {
		return out, fmt.Errorf("%s patch: %w", r.cfg.Name, err)
	}
	return out, nil
}

// Delete removes id.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.client.do(ctx, request{
		service: r.cfg.Name,
		method:  http.MethodDelete,
		url:     r.itemURL(id),
	}, nil)
}

func (r *Resource[T]) write(ctx context.Context, method, target string, v T, dedupe bool) (T, error) {
	body, contentType, err := r.encode(v)
	if err != nil {
		return v, fmt.Errorf("%s encode: %w", r.cfg.Name, err)
	}
	var raw json.RawMessage
	err = r.client.do(ctx, request{
		service:     r.cfg.Name,
		method:      method,
		url:         target,
		body:        body,
		contentType: contentType,
		dedupe:      dedupe,
	}, &raw)
	if err != nil {
		return v, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return v, nil
	}
	var out T
	if err := unwrap(raw, &out); err != nil {
		return v, fmt.Errorf("%s %s: %w", r.cfg.Name, strings.ToLower(method), err)
	}
	return out, nil
}

// unwrap decodes raw into out, accepting either a bare value or one wrapped
// in a {"data": ...} envelope.
func unwrap(raw json.RawMessage, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if json.Unmarshal(trimmed, &env) == nil && len(env.Data) > 0 {
			trimmed = env.Data
		}
	}
	return json.Unmarshal(trimmed, out)
}
