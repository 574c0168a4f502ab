package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gymdesk/internal/domain/dashboard"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// fakeSource replays documents pushed onto a tenant's docs channel and
// fails when errs yields.
type fakeSource struct {
	mu      sync.Mutex
	calls   map[string]int
	docs    map[string]chan map[string]any
	errs    chan error
	stopped chan string
}

func newFakeSource(tenants ...string) *fakeSource {
	f := &fakeSource{
		calls:   map[string]int{},
		docs:    map[string]chan map[string]any{},
		errs:    make(chan error, 4),
		stopped: make(chan string, 8),
	}
	for _, t := range tenants {
		f.docs[t] = make(chan map[string]any, 4)
	}
	return f
}

func (f *fakeSource) Subscribe(ctx context.Context, tenantID string, fn func(map[string]any)) error {
	f.mu.Lock()
	f.calls[tenantID]++
	docs := f.docs[tenantID]
	f.mu.Unlock()
	defer func() {
		select {
		case f.stopped <- tenantID:
		default:
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-f.errs:
			return err
		case d := <-docs:
			fn(d)
		}
	}
}

func (f *fakeSource) Calls(tenantID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tenantID]
}

func sampleDoc() map[string]any {
	return map[string]any{
		"daily_activity": map[string]any{
			"2026-03-14": int64(12),
			"2026-03-12": int64(4),
			"2026-03-13": int64(9),
		},
		"monthly_revenue": map[string]any{"2026-03": 1520.5, "2026-02": 900.0},
		"access_events": map[string]any{
			"e1": map[string]any{"name": "Ana", "status": "granted", "entry_time": "2026-03-15T08:00:00Z"},
			"e2": map[string]any{"name": "Luis", "status": "denied", "entry_time": "2026-03-15T09:30:00Z"},
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func receive(t *testing.T, ch <-chan dashboard.Snapshot) dashboard.Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return dashboard.Snapshot{}
	}
}

// TestHub_PublishesShapedSnapshot verifies documents are reshaped before fan-out.
func TestHub_PublishesShapedSnapshot(t *testing.T) {
	src := newFakeSource("gym-1")
	h := NewHub(HubDeps{Source: src, Now: func() time.Time { return fixedNow }})
	defer h.Close()

	ch, unsub := h.Subscribe("gym-1")
	defer unsub()
	src.docs["gym-1"] <- sampleDoc()

	snap := receive(t, ch)
	if len(snap.DailyActivity) != 3 || snap.DailyActivity[0].Date != "2026-03-12" {
		t.Errorf("DailyActivity = %+v", snap.DailyActivity)
	}
	if snap.CurrentMonthRevenue != 1520.5 {
		t.Errorf("CurrentMonthRevenue = %v", snap.CurrentMonthRevenue)
	}
	if len(snap.AccessEvents) != 2 || snap.AccessEvents[0].Name != "Luis" {
		t.Errorf("AccessEvents = %+v", snap.AccessEvents)
	}
	if _, ok := h.Latest("gym-1"); !ok {
		t.Error("Latest reports no data after publish")
	}
}

// TestHub_TenantsAreIsolated verifies one gym never sees another gym's document.
func TestHub_TenantsAreIsolated(t *testing.T) {
	src := newFakeSource("gym-1", "gym-2")
	h := NewHub(HubDeps{Source: src, Now: func() time.Time { return fixedNow }})
	defer h.Close()

	ch1, unsub1 := h.Subscribe("gym-1")
	defer unsub1()
	ch2, unsub2 := h.Subscribe("gym-2")
	defer unsub2()

	src.docs["gym-1"] <- sampleDoc()
	if snap := receive(t, ch1); snap.CurrentMonthRevenue != 1520.5 {
		t.Errorf("gym-1 revenue = %v", snap.CurrentMonthRevenue)
	}
	select {
	case snap := <-ch2:
		t.Fatalf("gym-2 received gym-1 snapshot: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
	if _, ok := h.Latest("gym-2"); ok {
		t.Error("gym-2 should have no data yet")
	}

	src.docs["gym-2"] <- map[string]any{"monthly_revenue": map[string]any{"2026-03": 80.0}}
	if snap := receive(t, ch2); snap.CurrentMonthRevenue != 80.0 || len(snap.AccessEvents) != 0 {
		t.Errorf("gym-2 snapshot = %+v", snap)
	}
	if snap, _ := h.Latest("gym-1"); snap.CurrentMonthRevenue != 1520.5 {
		t.Errorf("gym-1 latest overwritten: %v", snap.CurrentMonthRevenue)
	}
}

// TestHub_LastViewerStopsSubscription verifies feeds are reference counted.
func TestHub_LastViewerStopsSubscription(t *testing.T) {
	src := newFakeSource("gym-1")
	h := NewHub(HubDeps{Source: src})
	defer h.Close()

	_, unsubA := h.Subscribe("gym-1")
	_, unsubB := h.Subscribe("gym-1")
	waitFor(t, func() bool { return src.Calls("gym-1") == 1 })
	if h.Subscribers("gym-1") != 2 || h.Feeds() != 1 {
		t.Fatalf("subscribers = %d, feeds = %d", h.Subscribers("gym-1"), h.Feeds())
	}

	unsubA()
	if h.Feeds() != 1 {
		t.Error("feed stopped while a viewer remains")
	}
	unsubB()
	unsubB()
	if h.Feeds() != 0 {
		t.Errorf("feeds = %d after last viewer left", h.Feeds())
	}
	select {
	case tenant := <-src.stopped:
		if tenant != "gym-1" {
			t.Errorf("stopped %q", tenant)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not cancelled")
	}

	_, unsubC := h.Subscribe("gym-1")
	defer unsubC()
	waitFor(t, func() bool { return src.Calls("gym-1") == 2 })
}

// TestHub_EmptyTenantUsesDefault verifies sessions without a tenant share the default feed.
func TestHub_EmptyTenantUsesDefault(t *testing.T) {
	src := newFakeSource(DefaultTenant)
	h := NewHub(HubDeps{Source: src})
	defer h.Close()

	_, unsub := h.Subscribe("")
	defer unsub()
	waitFor(t, func() bool { return src.Calls(DefaultTenant) == 1 })
	if h.Subscribers(DefaultTenant) != 1 {
		t.Errorf("subscribers = %d", h.Subscribers(DefaultTenant))
	}
}

// TestHub_ResubscribesAfterError verifies the retry loop.
func TestHub_ResubscribesAfterError(t *testing.T) {
	src := newFakeSource("gym-1")
	h := NewHub(HubDeps{Source: src, RetryDelay: 10 * time.Millisecond})
	defer h.Close()

	_, unsub := h.Subscribe("gym-1")
	defer unsub()
	src.errs <- errors.New("stream reset")
	waitFor(t, func() bool { return src.Calls("gym-1") >= 2 })
}

// TestHub_RunStopsFeedsOnCancel verifies Run returns and stops subscriptions when its context ends.
func TestHub_RunStopsFeedsOnCancel(t *testing.T) {
	src := newFakeSource("gym-1")
	h := NewHub(HubDeps{Source: src})
	_, unsub := h.Subscribe("gym-1")
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if h.Feeds() != 0 {
		t.Errorf("feeds = %d after Run returned", h.Feeds())
	}
}

// TestHub_SlowSubscriberGetsNewest verifies a full buffer is replaced, not blocked.
func TestHub_SlowSubscriberGetsNewest(t *testing.T) {
	h := NewHub(HubDeps{Source: newFakeSource(), Now: func() time.Time { return fixedNow }})
	defer h.Close()
	ch, unsub := h.Subscribe("gym-1")
	defer unsub()

	h.mu.Lock()
	f := h.feeds["gym-1"]
	h.mu.Unlock()
	h.publish(f, map[string]any{"monthly_revenue": map[string]any{"2026-03": 1.0}})
	h.publish(f, map[string]any{"monthly_revenue": map[string]any{"2026-03": 2.0}})

	snap := <-ch
	if snap.CurrentMonthRevenue != 2.0 {
		t.Errorf("CurrentMonthRevenue = %v, want newest", snap.CurrentMonthRevenue)
	}
}

// TestHub_ServeTenant streams a tenant's snapshots over a websocket.
func TestHub_ServeTenant(t *testing.T) {
	src := newFakeSource("gym-1")
	h := NewHub(HubDeps{Source: src, Now: func() time.Time { return fixedNow }})
	defer h.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeTenant(w, r, r.URL.Query().Get("tenant"))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"?tenant=gym-1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return h.Subscribers("gym-1") == 1 })

	src.docs["gym-1"] <- sampleDoc()
	var snap dashboard.Snapshot
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.CurrentMonth != "2026-03" || snap.CurrentMonthRevenue != 1520.5 {
		t.Errorf("snapshot = %+v", snap)
	}

	conn.Close()
	waitFor(t, func() bool { return h.Feeds() == 0 })
}

// TestStaticSource delivers each tenant its own document once.
func TestStaticSource(t *testing.T) {
	src := StaticSource{Docs: map[string]map[string]any{"gym-1": sampleDoc()}}
	for _, tc := range []struct {
		tenant  string
		wantDoc bool
	}{
		{"gym-1", true},
		{"gym-2", false},
	} {
		ctx, cancel := context.WithCancel(context.Background())
		var got []map[string]any
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		err := src.Subscribe(ctx, tc.tenant, func(d map[string]any) { got = append(got, d) })
		if err != nil || len(got) != 1 {
			t.Fatalf("%s: Subscribe = %v, deliveries = %d", tc.tenant, err, len(got))
		}
		if (got[0] != nil) != tc.wantDoc {
			t.Errorf("%s: document = %v", tc.tenant, got[0])
		}
	}
}

// TestFirestoreConfig_Path verifies the document path is templated per tenant.
func TestFirestoreConfig_Path(t *testing.T) {
	cfg := FirestoreConfig{ProjectID: "p", Collection: "gyms/{tenant}/metrics", Document: "dashboard"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	coll, doc, err := cfg.Path("gym-2")
	if err != nil || coll != "gyms/gym-2/metrics" || doc != "dashboard" {
		t.Errorf("Path = %q %q %v", coll, doc, err)
	}
	if coll, _, _ := cfg.Path(""); coll != "gyms/default/metrics" {
		t.Errorf("empty tenant path = %q", coll)
	}
	if _, _, err := cfg.Path("gym/../other"); err == nil {
		t.Error("tenant with a slash should be rejected")
	}
	if err := (FirestoreConfig{Collection: "metrics", Document: "dashboard"}).Validate(); err == nil {
		t.Error("untemplated path should be rejected")
	}
}
