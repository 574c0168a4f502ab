package browser_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	"gymdesk/internal/adapters/backend"
	web "gymdesk/internal/adapters/http"
	"gymdesk/internal/adapters/storage"
	accountStore "gymdesk/internal/adapters/storage/account"
	sessionStore "gymdesk/internal/adapters/storage/session"
	"gymdesk/internal/application/orchestrators"
)

const (
	adminEmail    = "admin@test.gym"
	adminPassword = "browser-test-pass"
)

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL string
	Backend *fakeServices
	PW      *playwright.Playwright
	Browser playwright.Browser
}

// skipUnlessEnabled skips browser tests unless GYM_BROWSER_TESTS=1.
func skipUnlessEnabled(t *testing.T) {
	t.Helper()
	if testing.Short() || os.Getenv("GYM_BROWSER_TESTS") != "1" {
		t.Skip("browser tests run with GYM_BROWSER_TESTS=1")
	}
}

// newTestApp wires the app over a temp SQLite DB and a fake backend, then starts Chromium.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	skipUnlessEnabled(t)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	if err := storage.MigrateDB(db, dbPath); err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}

	accounts := accountStore.NewSQLiteStore(db)
	if _, err := orchestrators.ExecuteSeedDevAdmin(context.Background(), orchestrators.SeedDevAdminInput{
		Email: adminEmail, Password: adminPassword, Name: "Admin",
	}, orchestrators.SeedDevAdminDeps{AccountStore: accounts, GenerateID: uuid.NewString, Now: time.Now}); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	fake := newFakeServices()
	upstream := httptest.NewServer(fake)
	e := upstream.URL
	services := backend.NewServices(backend.NewClient(upstream.Client()), backend.Endpoints{
		Members: e, Classes: e, Plans: e, Products: e, Promotions: e,
		Personal: e, Reservations: e, UserMemberships: e, NFC: e, Auth: e,
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	handler, err := web.NewMux(web.Deps{
		Services:       services,
		Sessions:       sessionStore.NewSQLiteStore(db),
		Accounts:       accounts,
		CSRFKey:        []byte("browser-test-csrf-key-32-bytes!!"),
		TrustedOrigins: []string{fmt.Sprintf("127.0.0.1:%d", port)},
		DevToken:       "browser-token",
	})
	if err != nil {
		t.Fatalf("NewMux: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(listener)

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		upstream.Close()
		db.Close()
	})

	return &testApp{
		BaseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		Backend: fake,
		PW:      pw,
		Browser: browser,
	}
}

// newPage creates a new browser page (tab).
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// login signs in with the seeded local admin.
func (a *testApp) login(t *testing.T, page playwright.Page) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/login"); err != nil {
		t.Fatalf("failed to navigate to login: %v", err)
	}
	if err := page.Locator("input[name=email]").Fill(adminEmail); err != nil {
		t.Fatalf("failed to fill email: %v", err)
	}
	if err := page.Locator("input[name=password]").Fill(adminPassword); err != nil {
		t.Fatalf("failed to fill password: %v", err)
	}
	if err := page.Locator("form[action='/login'] button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click login: %v", err)
	}
	if err := page.WaitForURL(a.BaseURL+"/dashboard", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("login did not redirect to dashboard: %v", err)
	}
}

// fakeServices serves every backend collection from memory.
type fakeServices struct {
	mu      sync.Mutex
	records map[string][]map[string]any
	nextID  int
}

func newFakeServices() *fakeServices {
	return &fakeServices{records: map[string][]map[string]any{}}
}

func (f *fakeServices) seed(coll string, docs ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[coll] = append(f.records[coll], docs...)
}

func (f *fakeServices) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	path := strings.TrimPrefix(r.URL.Path, "/")
	coll, id := path, ""
	if strings.HasPrefix(path, "access/") {
		coll = path
	} else if i := strings.Index(path, "/"); i >= 0 {
		coll, id = path[:i], path[i+1:]
	}

	switch {
	case id == "" && r.Method == http.MethodGet:
		docs := f.records[coll]
		if docs == nil {
			docs = []map[string]any{}
		}
		json.NewEncoder(w).Encode(docs)
	case id == "" && r.Method == http.MethodPost:
		var doc map[string]any
		json.NewDecoder(r.Body).Decode(&doc)
		f.nextID++
		doc["id"] = fmt.Sprintf("b-%d", f.nextID)
		f.records[coll] = append(f.records[coll], doc)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(doc)
	case id != "" && r.Method == http.MethodDelete:
		docs := f.records[coll]
		for i, d := range docs {
			if d["id"] == id {
				f.records[coll] = append(docs[:i:i], docs[i+1:]...)
				break
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "not found"})
	}
}
