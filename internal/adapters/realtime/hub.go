package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gymdesk/internal/domain/dashboard"
)

// DefaultRetryDelay is the wait before resubscribing after a failure.
const DefaultRetryDelay = 5 * time.Second

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// HubDeps holds injectable dependencies for Hub.
type HubDeps struct {
	Source     Source
	Now        func() time.Time
	RetryDelay time.Duration
	// CheckOrigin overrides the websocket same-origin check.
	CheckOrigin func(r *http.Request) bool
}

// Hub keeps one subscription per tenant with connected viewers and fans
// shaped snapshots out to that tenant's websocket clients only.
// A tenant's subscription starts with its first viewer and stops with its last.
type Hub struct {
	src        Source
	now        func() time.Time
	retryDelay time.Duration
	upgrader   websocket.Upgrader

	base context.Context
	stop context.CancelFunc

	mu    sync.Mutex
	feeds map[string]*feed
}

// feed is one tenant's subscription. Fields are guarded by Hub.mu.
type feed struct {
	tenant  string
	cancel  context.CancelFunc
	latest  dashboard.Snapshot
	hasData bool
	subs    map[chan dashboard.Snapshot]struct{}
}

// NewHub creates a Hub. Subscriptions run until Close or until the context
// passed to Run ends.
func NewHub(deps HubDeps) *Hub {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.RetryDelay <= 0 {
		deps.RetryDelay = DefaultRetryDelay
	}
	base, stop := context.WithCancel(context.Background())
	return &Hub{
		src:        deps.Source,
		now:        deps.Now,
		retryDelay: deps.RetryDelay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     deps.CheckOrigin,
		},
		base:  base,
		stop:  stop,
		feeds: make(map[string]*feed),
	}
}

// Run blocks until ctx is cancelled and then stops every subscription.
func (h *Hub) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-h.base.Done():
	}
	h.Close()
}

// Close stops every subscription.
func (h *Hub) Close() {
	h.stop()
	h.mu.Lock()
	defer h.mu.Unlock()
	for tenant, f := range h.feeds {
		f.cancel()
		delete(h.feeds, tenant)
	}
}

// run keeps one tenant's subscription alive until ctx is cancelled.
func (h *Hub) run(ctx context.Context, f *feed) {
	for {
		err := h.src.Subscribe(ctx, f.tenant, func(data map[string]any) { h.publish(f, data) })
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Error("realtime_subscription_failed", "tenant", f.tenant, "error", err.Error(), "retry_in", h.retryDelay.String())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(h.retryDelay):
		}
	}
}

// publish reshapes data and delivers it to the feed's subscribers. Slow
// subscribers only ever see the newest snapshot.
func (h *Hub) publish(f *feed, data map[string]any) {
	snap := dashboard.FromDocument(data, h.now())

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.feeds[f.tenant] != f {
		return
	}
	f.latest = snap
	f.hasData = true
	for ch := range f.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Latest returns the tenant's most recent snapshot and whether any data has
// arrived. Tenants without viewers have no data.
func (h *Hub) Latest(tenantID string) (dashboard.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.feeds[tenantKey(tenantID)]
	if !ok || !f.hasData {
		return dashboard.FromDocument(nil, h.now()), false
	}
	return f.latest, true
}

// Subscribe registers a listener for tenantID, starting the tenant's
// subscription if needed. The returned cancel func must be called.
func (h *Hub) Subscribe(tenantID string) (<-chan dashboard.Snapshot, func()) {
	tenant := tenantKey(tenantID)
	ch := make(chan dashboard.Snapshot, 1)

	h.mu.Lock()
	f, ok := h.feeds[tenant]
	if !ok {
		ctx, cancel := context.WithCancel(h.base)
		f = &feed{tenant: tenant, cancel: cancel, subs: make(map[chan dashboard.Snapshot]struct{})}
		h.feeds[tenant] = f
		go h.run(ctx, f)
	}
	f.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(f.subs, ch)
		if len(f.subs) == 0 && h.feeds[tenant] == f {
			f.cancel()
			delete(h.feeds, tenant)
		}
	}
}

// Subscribers returns the number of connected listeners for tenantID.
func (h *Hub) Subscribers(tenantID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if f, ok := h.feeds[tenantKey(tenantID)]; ok {
		return len(f.subs)
	}
	return 0
}

// Feeds returns the number of running tenant subscriptions.
func (h *Hub) Feeds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.feeds)
}

// ServeTenant upgrades the connection and streams tenantID's snapshots as JSON.
func (h *Hub) ServeTenant(w http.ResponseWriter, r *http.Request, tenantID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("realtime_upgrade_failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ch, cancel := h.Subscribe(tenantID)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if snap, ok := h.Latest(tenantID); ok {
		if err := writeSnapshot(conn, snap); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case snap := <-ch:
			if err := writeSnapshot(conn, snap); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap dashboard.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
