// Package realtime streams the dashboard metrics document to browsers.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Source delivers a tenant's raw metrics document on every change.
// Subscribe blocks until ctx is cancelled (returning nil) or the
// subscription fails.
type Source interface {
	Subscribe(ctx context.Context, tenantID string, fn func(data map[string]any)) error
}

// TenantPlaceholder is replaced by the tenant ID in document paths.
const TenantPlaceholder = "{tenant}"

// DefaultTenant stands in for sessions that carry no tenant, as local
// accounts on a single-site install do.
const DefaultTenant = "default"

func tenantKey(tenantID string) string {
	if tenantID == "" {
		return DefaultTenant
	}
	return tenantID
}

// FirestoreConfig locates the metrics document.
type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
	// Collection and Document name the metrics document. At least one of
	// them contains TenantPlaceholder so each gym reads its own document.
	Collection string
	Document   string
}

// Enabled reports whether a project is configured.
func (c FirestoreConfig) Enabled() bool {
	return c.ProjectID != "" && c.Collection != "" && c.Document != ""
}

// Validate checks the document path is scoped per tenant.
func (c FirestoreConfig) Validate() error {
	if !strings.Contains(c.Collection+"/"+c.Document, TenantPlaceholder) {
		return fmt.Errorf("firestore document path %s/%s must contain %s", c.Collection, c.Document, TenantPlaceholder)
	}
	return nil
}

// Path returns the collection path and document ID for tenantID.
func (c FirestoreConfig) Path(tenantID string) (collection, document string, err error) {
	tenant := tenantKey(tenantID)
	if strings.Contains(tenant, "/") {
		return "", "", fmt.Errorf("invalid tenant ID %q", tenantID)
	}
	return strings.ReplaceAll(c.Collection, TenantPlaceholder, tenant),
		strings.ReplaceAll(c.Document, TenantPlaceholder, tenant), nil
}

// FirestoreSource watches each tenant's metrics document.
type FirestoreSource struct {
	client *firestore.Client
	cfg    FirestoreConfig
}

// NewFirestoreSource connects to Firestore.
func NewFirestoreSource(ctx context.Context, cfg FirestoreConfig) (*FirestoreSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreSource{client: client, cfg: cfg}, nil
}

// Subscribe streams tenantID's document snapshots into fn. A missing
// document is delivered as nil data.
func (s *FirestoreSource) Subscribe(ctx context.Context, tenantID string, fn func(map[string]any)) error {
	collection, document, err := s.cfg.Path(tenantID)
	if err != nil {
		return err
	}
	coll := s.client.Collection(collection)
	if coll == nil {
		return fmt.Errorf("invalid firestore collection path %q", collection)
	}
	it := coll.Doc(document).Snapshots(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("firestore snapshot: %w", err)
		}
		if !snap.Exists() {
			fn(nil)
			continue
		}
		fn(snap.Data())
	}
}

// Close releases the Firestore client.
func (s *FirestoreSource) Close() error {
	return s.client.Close()
}

// StaticSource delivers one fixed document per tenant and then waits for
// cancellation. Tenants without a document receive nil data.
type StaticSource struct {
	Docs map[string]map[string]any
}

// Subscribe implements Source.
func (s StaticSource) Subscribe(ctx context.Context, tenantID string, fn func(map[string]any)) error {
	fn(s.Docs[tenantKey(tenantID)])
	<-ctx.Done()
	return nil
}
