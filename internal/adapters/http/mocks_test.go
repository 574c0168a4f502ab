package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"gymdesk/internal/adapters/backend"
	"gymdesk/internal/adapters/email"
	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/metrics"
	accountStore "gymdesk/internal/adapters/storage/account"
	"gymdesk/internal/domain/account"
	"gymdesk/internal/domain/identity"
	"gymdesk/internal/domain/session"
)

// fixedNow is a Monday.
var fixedNow = time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)

// collections served by fakeBackend, longest first so item paths match.
var collections = []string{
	"/memberships-plans", "/user-memberships", "/reservations", "/promotions",
	"/access/alerts", "/access/logs", "/products", "/personal", "/members", "/classes",
}

// fakeBackend is an in-memory stand-in for every backend microservice.
type fakeBackend struct {
	mu       sync.Mutex
	records  map[string][]map[string]any
	fail     map[string]int
	requests []string
	auth     []string
	nextID   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{records: map[string][]map[string]any{}, fail: map[string]int{}}
}

// seed adds records to a collection. Each record needs an "id".
func (b *fakeBackend) seed(coll string, docs ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[coll] = append(b.records[coll], docs...)
}

func (b *fakeBackend) all(coll string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.records[coll]...)
}

func (b *fakeBackend) saw(call string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.requests {
		if r == call {
			return true
		}
	}
	return false
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, r.Method+" "+r.URL.Path)
	b.auth = append(b.auth, r.Header.Get("Authorization"))
	if r.Header.Get("Authorization") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing token"})
		return
	}

	switch {
	case r.URL.Path == "/nfc/pairing-codes" && r.Method == http.MethodPost:
		var body struct {
			MemberID string `json:"member_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, map[string]any{
			"code": "ABC123", "member_id": body.MemberID, "expires_at": fixedNow.Add(15 * time.Minute),
		})
		return
	case strings.HasPrefix(r.URL.Path, "/nfc/pairings/") && r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
		return
	}

	for _, coll := range collections {
		if r.URL.Path != coll && !strings.HasPrefix(r.URL.Path, coll+"/") {
			continue
		}
		if status := b.fail[coll]; status != 0 {
			writeJSON(w, status, map[string]string{"message": "upstream exploded"})
			return
		}
		id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, coll), "/")
		b.serveCollection(w, r, coll, id)
		return
	}
	http.NotFound(w, r)
}

func (b *fakeBackend) serveCollection(w http.ResponseWriter, r *http.Request, coll, id string) {
	docs := b.records[coll]
	idx := -1
	for i, d := range docs {
		if d["id"] == id {
			idx = i
		}
	}
	var body map[string]any
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
	}

	switch {
	case id == "" && r.Method == http.MethodGet:
		sorted := append([]map[string]any(nil), docs...)
		sort.SliceStable(sorted, func(i, j int) bool { return fmt.Sprint(sorted[i]["id"]) < fmt.Sprint(sorted[j]["id"]) })
		writeJSON(w, http.StatusOK, sorted)
	case id == "" && r.Method == http.MethodPost:
		b.nextID++
		body["id"] = fmt.Sprintf("new-%d", b.nextID)
		b.records[coll] = append(docs, body)
		writeJSON(w, http.StatusCreated, body)
	case idx < 0:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
	case r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, docs[idx])
	case r.Method == http.MethodPut:
		body["id"] = id
		docs[idx] = body
		writeJSON(w, http.StatusOK, body)
	case r.Method == http.MethodPatch:
		for k, v := range body {
			docs[idx][k] = v
		}
		writeJSON(w, http.StatusOK, docs[idx])
	case r.Method == http.MethodDelete:
		b.records[coll] = append(docs[:idx], docs[idx+1:]...)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// fakeAccounts is an in-memory local account store.
type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]account.Account
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[email]
	if !ok {
		return account.Account{}, accountStore.ErrNotFound
	}
	return a, nil
}

func (f *fakeAccounts) Save(_ context.Context, a account.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[a.Email] = a
	return nil
}

// fakeBridge records backend session calls.
type fakeBridge struct {
	me        json.RawMessage
	meErr     error
	loggedOut []string
}

func (f *fakeBridge) CookieName() string { return backend.DefaultSessionCookie }

func (f *fakeBridge) Me(_ context.Context, cookie string) (json.RawMessage, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return f.me, nil
}

func (f *fakeBridge) Logout(_ context.Context, cookie, _ string) error {
	f.loggedOut = append(f.loggedOut, cookie)
	return nil
}

const testPassword = "correct horse battery"

// testEnv is a fully wired web handler over a fake backend.
type testEnv struct {
	handler  http.Handler
	backend  *fakeBackend
	sessions *middleware.MemorySessionStore
	accounts *fakeAccounts
	sender   *email.RecordingSender
	bridge   *fakeBridge
	perf     *perf.Collector
}

// newTestEnv wires NewMux over a fake backend. opts adjust Deps before the
// handler is built.
func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	be := newFakeBackend()
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)

	m := metrics.New()
	collector := perf.NewCollector(100)
	client := backend.NewClient(srv.Client(), m, collector)
	svc := backend.NewServices(client, backend.Endpoints{
		Members: srv.URL, Classes: srv.URL, Plans: srv.URL, Products: srv.URL,
		Promotions: srv.URL, Personal: srv.URL, Reservations: srv.URL,
		UserMemberships: srv.URL, NFC: srv.URL, Auth: srv.URL,
	})

	env := &testEnv{
		backend:  be,
		sessions: middleware.NewMemorySessionStore(),
		accounts: &fakeAccounts{accounts: map[string]account.Account{}},
		sender:   &email.RecordingSender{},
		bridge:   &fakeBridge{me: json.RawMessage(`{"id":"u-1"}`)},
		perf:     collector,
	}
	deps := Deps{
		Services: svc,
		Sessions: env.sessions,
		Accounts: env.accounts,
		Bridge:   env.bridge,
		Metrics:  m,
		Perf:     collector,
		Sender:   env.sender,
		CSRFKey:  []byte("0123456789abcdef0123456789abcdef"),
		DevToken: "dev-token",
		Limiter:  middleware.NewRateLimiter(10000, time.Second),
		Now:      func() time.Time { return fixedNow },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h, err := NewMux(deps)
	if err != nil {
		t.Fatalf("NewMux: %v", err)
	}
	env.handler = h
	return env
}

// signIn stores a session for a gym-1 user with role and returns its token.
func (e *testEnv) signIn(t *testing.T, role, email string) string {
	t.Helper()
	return e.signInTenant(t, role, email, "gym-1")
}

// signInTenant is signIn for a user of tenantID.
func (e *testEnv) signInTenant(t *testing.T, role, email, tenantID string) string {
	t.Helper()
	token := "tok-" + role + "-" + email
	user := identity.User{ID: "kc-" + role, Email: email, Name: "Test " + role, Role: role, TenantID: tenantID}
	if err := e.sessions.Save(context.Background(), session.New(token, user, time.Now())); err != nil {
		t.Fatalf("save session: %v", err)
	}
	return token
}

// newJSONRequest builds a JSON API request. Mutating requests carry a JSON
// content type so they are exempt from CSRF.
func newJSONRequest(method, target, body, token string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Accept", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	}
	return req
}

// newFormRequest builds a browser form post without a CSRF token.
func newFormRequest(target, form, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form))
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	}
	return req
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) jsonRequest(method, target, body, token string) *httptest.ResponseRecorder {
	return serve(e, newJSONRequest(method, target, body, token))
}

// pageRequest fetches a page the way a browser does.
func (e *testEnv) pageRequest(target, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func findCookie(rec *httptest.ResponseRecorder, name string) (*http.Cookie, bool) {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

var errBridgeDown = errors.New("bridge down")
