package projections

import (
	"context"
	"time"

	"gymdesk/internal/adapters/backend"
	"gymdesk/internal/domain/access"
	"gymdesk/internal/domain/dashboard"
)

// Monday.
var fixedNow = time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)

func testNow() time.Time { return fixedNow }

func signedIn() context.Context {
	return backend.WithCredentials(context.Background(), backend.Credentials{Token: "tok", TenantID: "gym-1"})
}

type stubLister[T any] struct {
	items []T
	err   error
}

func (s stubLister[T]) List(ctx context.Context) ([]T, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out, nil
}

type stubAccess struct {
	logs      []access.Log
	alerts    []access.Alert
	logsErr   error
	alertsErr error
}

func (s stubAccess) Logs(ctx context.Context) ([]access.Log, error) {
	return append([]access.Log(nil), s.logs...), s.logsErr
}

func (s stubAccess) Alerts(ctx context.Context) ([]access.Alert, error) {
	return append([]access.Alert(nil), s.alerts...), s.alertsErr
}

// stubLive holds a snapshot for one tenant.
type stubLive struct {
	tenant string
	snap   dashboard.Snapshot
}

func (s stubLive) Latest(tenantID string) (dashboard.Snapshot, bool) {
	if tenantID != s.tenant {
		return dashboard.Snapshot{}, false
	}
	return s.snap, true
}

func upstreamErr(status int) error {
	return &backend.RequestError{Service: "members", Method: "GET", URL: "http://svc/members", StatusCode: status}
}
