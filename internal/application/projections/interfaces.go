// Package projections builds the read models rendered by pages from one or
// more backend services.
package projections

import (
	"context"

	"gymdesk/internal/domain/access"
	"gymdesk/internal/domain/dashboard"
)

// Lister is the read side of a backend resource. backend.Resource satisfies it.
type Lister[T any] interface {
	List(ctx context.Context) ([]T, error)
}

// AccessSource lists access logs and alerts. backend.NFC satisfies it.
type AccessSource interface {
	Logs(ctx context.Context) ([]access.Log, error)
	Alerts(ctx context.Context) ([]access.Alert, error)
}

// LiveSnapshot exposes a tenant's latest realtime dashboard snapshot. realtime.Hub satisfies it.
type LiveSnapshot interface {
	Latest(tenantID string) (dashboard.Snapshot, bool)
}
