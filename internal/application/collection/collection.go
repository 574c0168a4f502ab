// Package collection holds the list state behind each CRUD page: the records
// last fetched from a backend service, whether a fetch is in flight, and the
// message key of the last failure.
package collection

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"gymdesk/internal/adapters/backend"
)

// Keyed is implemented by every record a collection can hold.
type Keyed interface {
	Key() string
}

// Source is the REST surface a collection is backed by.
// backend.Resource satisfies it.
type Source[T Keyed] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, v T) (T, error)
	Update(ctx context.Context, id string, v T) (T, error)
	Delete(ctx context.Context, id string) error
}

// Collection is the cached list of one resource for the lifetime of a request.
// All methods are safe for concurrent use.
type Collection[T Keyed] struct {
	src Source[T]

	mu      sync.Mutex
	items   []T
	loading bool
	loaded  bool
	errKey  string
	err     error
}

// New creates an empty collection over src.
func New[T Keyed](src Source[T]) *Collection[T] {
	return &Collection[T]{src: src, items: []T{}}
}

// Items returns a copy of the cached records.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of cached records.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Loading reports whether a fetch is in flight.
func (c *Collection[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Loaded reports whether at least one fetch has completed successfully.
func (c *Collection[T]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Error returns the translation key describing the last failure, or "".
func (c *Collection[T]) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errKey
}

// Err returns the last failure, or nil.
func (c *Collection[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Find returns the cached record with id.
func (c *Collection[T]) Find(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if it.Key() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Load fetches the full list. Without credentials in ctx it does nothing:
// items stay empty and no error is recorded.
func (c *Collection[T]) Load(ctx context.Context) error {
	if _, ok := backend.CredentialsFrom(ctx); !ok {
		return nil
	}
	return c.fetch(ctx)
}

// Refresh refetches the full list, replacing the cache.
func (c *Collection[T]) Refresh(ctx context.Context) error {
	return c.fetch(ctx)
}

func (c *Collection[T]) fetch(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	items, err := c.src.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.fail(err)
		return err
	}
	if items == nil {
		items = []T{}
	}
	c.items = items
	c.loaded = true
	c.clear()
	return nil
}

// Create sends v and inserts the returned record. A cached record with the
// same key is replaced, so the record appears exactly once.
func (c *Collection[T]) Create(ctx context.Context, v T) (T, error) {
	created, err := c.src.Create(ctx, v)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.fail(err)
		return created, err
	}
	c.items = upsert(c.items, created)
	c.clear()
	return created, nil
}

// Update sends v for id and splices the returned record in place.
func (c *Collection[T]) Update(ctx context.Context, id string, v T) (T, error) {
	updated, err := c.src.Update(ctx, id, v)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.fail(err)
		return updated, err
	}
	if updated.Key() == "" || updated.Key() != id {
		// The service answered without an id; keep the cached key.
		c.items = replaceAt(c.items, id, updated)
	} else {
		c.items = upsert(c.items, updated)
	}
	c.clear()
	return updated, nil
}

// Delete removes id upstream and then from the cache.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	err := c.src.Delete(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil && !backend.IsNotFound(err) {
		c.fail(err)
		return err
	}
	c.items = remove(c.items, id)
	c.clear()
	return nil
}

// fail records err. Caller holds c.mu.
func (c *Collection[T]) fail(err error) {
	c.err = err
	c.errKey = backend.MessageKey(err)
	if !errors.Is(err, backend.ErrNotAuthenticated) && !errors.Is(err, context.Canceled) {
		slog.Warn("collection_error", "error", err.Error())
	}
}

// clear resets the error state. Caller holds c.mu.
func (c *Collection[T]) clear() {
	c.err = nil
	c.errKey = ""
}

func upsert[T Keyed](items []T, v T) []T {
	key := v.Key()
	out := make([]T, 0, len(items)+1)
	replaced := false
	for _, it := range items {
		if key != "" && it.Key() == key {
			if !replaced {
				out = append(out, v)
				replaced = true
			}
			continue
		}
		out = append(out, it)
	}
	if !replaced {
		out = append(out, v)
	}
	return out
}

func replaceAt[T Keyed](items []T, id string, v T) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i, it := range out {
		if it.Key() == id {
			out[i] = v
		}
	}
	return out
}

func remove[T Keyed](items []T, id string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.Key() != id {
			out = append(out, it)
		}
	}
	return out
}
