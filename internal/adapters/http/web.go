package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"gymdesk/internal/adapters/backend"
	"gymdesk/internal/adapters/email"
	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/i18n"
	"gymdesk/internal/adapters/metrics"
	"gymdesk/internal/adapters/storage/preference"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/domain/dashboard"
	"gymdesk/internal/domain/identity"
	"gymdesk/internal/domain/session"
)

// IdentityProvider is the OIDC provider used for sign-in. keycloak.Provider satisfies it.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
	Verify(raw string) (*identity.Claims, error)
	EndSessionURL(idTokenHint string) string
}

// SessionBridge proxies the backend's own session cookie. backend.SessionBridge satisfies it.
type SessionBridge interface {
	CookieName() string
	Me(ctx context.Context, cookie string) (json.RawMessage, error)
	Logout(ctx context.Context, cookie, token string) error
}

// LiveDashboard serves each tenant's realtime dashboard feed. realtime.Hub satisfies it.
type LiveDashboard interface {
	ServeTenant(w http.ResponseWriter, r *http.Request, tenantID string)
	Latest(tenantID string) (dashboard.Snapshot, bool)
}

// Deps holds everything the web layer talks to.
type Deps struct {
	Services    backend.Services
	Sessions    middleware.SessionStore
	Accounts    orchestrators.AccountStoreForLogin // local sign-in; used when Provider is nil
	Preferences preference.Store                   // optional
	Provider    IdentityProvider                   // optional
	Bridge      SessionBridge                      // optional
	Live        LiveDashboard                      // optional
	Metrics     *metrics.Metrics                   // optional
	Perf        *perf.Collector
	Sender      email.Sender // optional
	Translator  *i18n.Translator

	CSRFKey        []byte
	SecureCookies  bool
	TrustedOrigins []string
	// DevToken is sent upstream for local accounts.
	DevToken string
	Limiter  *middleware.RateLimiter
	Now      func() time.Time
}

type server struct {
	Deps
	pages *renderer
}

// NewMux wires HTTP handlers for the app.
func NewMux(deps Deps) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errors.New("web: session store is required")
	}
	if deps.Provider == nil && deps.Accounts == nil {
		return nil, errors.New("web: either an identity provider or an account store is required")
	}
	if len(deps.CSRFKey) != 32 {
		return nil, fmt.Errorf("web: CSRF key must be 32 bytes, got %d", len(deps.CSRFKey))
	}
	if deps.Translator == nil {
		tr, err := i18n.New()
		if err != nil {
			return nil, err
		}
		deps.Translator = tr
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Perf == nil {
		deps.Perf = perf.NewCollector(perf.DefaultRingSize)
	}
	if deps.Limiter == nil {
		deps.Limiter = middleware.NewRateLimiter(DefaultRateLimitPerSecond, time.Second)
	}
	pages, err := newRenderer(deps.Translator)
	if err != nil {
		return nil, err
	}
	s := &server{Deps: deps, pages: pages}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var inner http.Handler = mux
	if s.Metrics != nil {
		inner = s.Metrics.Instrument(mux)
	}

	authCfg := middleware.AuthConfig{Sessions: s.Sessions, DevToken: s.DevToken, Now: s.Now}
	if s.Provider != nil {
		authCfg.Refresh = func(ctx context.Context, sess session.Session) (session.Session, error) {
			return orchestrators.ExecuteRefreshSession(ctx, sess, orchestrators.RefreshSessionDeps{
				Provider: s.Provider,
				Events:   s.events(),
			})
		}
	}
	var prefs middleware.LocalePreferences
	if s.Preferences != nil {
		prefs = s.Preferences
	}

	// Timing -> RateLimit -> SecurityHeaders -> Auth -> Locale -> CSRF -> Mux
	return middleware.Chain(inner,
		middleware.CSRF(middleware.CSRFConfig{
			AuthKey:        s.CSRFKey,
			Secure:         s.SecureCookies,
			TrustedOrigins: s.TrustedOrigins,
		}),
		middleware.Locale(prefs),
		middleware.Auth(authCfg),
		middleware.SecurityHeaders,
		middleware.RateLimit(s.Limiter),
		middleware.Timing(s.Perf),
	), nil
}

// DefaultRateLimitPerSecond is the per-IP request budget.
const DefaultRateLimitPerSecond = 20

func (s *server) registerRoutes(mux *http.ServeMux) {
	staff := middleware.RequireRole(identity.RoleAdmin, identity.RoleStaff)
	admin := middleware.RequireRole(identity.RoleAdmin)
	client := middleware.RequireRole(identity.RoleMember)

	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /healthz", handleHealth)

	// Authentication
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /auth/callback", s.handleAuthCallback)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("POST /api/session/clear", s.handleSessionClear)
	mux.HandleFunc("GET /api/me", s.handleMe)
	mux.HandleFunc("POST /locale", s.handleSetLocale)

	// Staff dashboard
	mux.Handle("GET /dashboard", staff(http.HandlerFunc(s.handleDashboard)))
	if s.Live != nil {
		mux.Handle("GET /ws/dashboard", staff(http.HandlerFunc(s.handleLiveDashboard)))
	}
	s.registerResources(mux, staff)
	mux.Handle("GET /access", staff(http.HandlerFunc(s.handleAccess)))
	mux.Handle("POST /access/pair", staff(http.HandlerFunc(s.handlePair)))
	mux.Handle("POST /access/unpair", staff(http.HandlerFunc(s.handleUnpair)))
	mux.Handle("POST /access/alerts/{id}/resolve", staff(http.HandlerFunc(s.handleResolveAlert)))
	mux.Handle("GET /reports", staff(http.HandlerFunc(s.handleReports)))
	mux.Handle("GET /reports/summary.pdf", staff(http.HandlerFunc(s.handleReportPDF)))
	mux.Handle("GET /admin/perf", admin(http.HandlerFunc(s.handlePerf)))

	// Member portal
	mux.Handle("GET /client", client(http.HandlerFunc(s.handleClientDashboard)))
	mux.Handle("GET /client/profile", client(http.HandlerFunc(s.handleClientProfile)))
	mux.Handle("POST /client/profile", client(http.HandlerFunc(s.handleUpdateProfile)))
	mux.Handle("GET /client/schedule", client(http.HandlerFunc(s.handleClientSchedule)))
	mux.Handle("POST /client/reservations", client(http.HandlerFunc(s.handleReserve)))
	mux.Handle("POST /client/reservations/{id}/cancel", client(http.HandlerFunc(s.handleCancelOwnReservation)))

	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}
}

// handleHome sends the browser to the home page of its role.
func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, identity.HomePath(sess.Role), http.StatusSeeOther)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// events returns the auth event recorder, or nil when metrics are off.
func (s *server) events() orchestrators.AuthEventRecorder {
	if s.Metrics == nil {
		return nil
	}
	return s.Metrics
}
