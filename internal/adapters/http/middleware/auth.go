package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"gymdesk/internal/adapters/backend"
	"gymdesk/internal/domain/identity"
	"gymdesk/internal/domain/session"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const sessionContextKey contextKey = "session"

// SessionCookieName is the cookie carrying the server session token.
const SessionCookieName = "gym_session"

// SessionStore persists sessions between requests.
type SessionStore interface {
	Save(ctx context.Context, s session.Session) error
	Get(ctx context.Context, token string) (session.Session, error)
	Delete(ctx context.Context, token string) error
}

// TokenRefresher exchanges a session's refresh token for new upstream tokens.
type TokenRefresher func(ctx context.Context, s session.Session) (session.Session, error)

// MemorySessionStore is an in-memory SessionStore, used in tests and when no
// database path is configured.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
	now      func() time.Time
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]session.Session),
		now:      time.Now,
	}
}

// Save stores s under its token.
// PRE: s.Validate() == nil
func (ms *MemorySessionStore) Save(_ context.Context, s session.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sessions[s.Token] = s
	return nil
}

// Get retrieves a session by token.
// POST: session.ErrNotFound for unknown or expired tokens
func (ms *MemorySessionStore) Get(_ context.Context, token string) (session.Session, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	s, ok := ms.sessions[token]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	if s.IsExpired(ms.now()) {
		delete(ms.sessions, token)
		return session.Session{}, session.ErrNotFound
	}
	return s, nil
}

// Delete removes a session by token.
func (ms *MemorySessionStore) Delete(_ context.Context, token string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, token)
	return nil
}

// NewSession builds a session for user with a fresh random token.
func NewSession(user identity.User, now time.Time) (session.Session, error) {
	token, err := generateToken()
	if err != nil {
		return session.Session{}, err
	}
	return session.New(token, user, now), nil
}

// AuthConfig configures the Auth middleware.
type AuthConfig struct {
	Sessions SessionStore
	// Refresh renews upstream tokens that are about to expire. Optional.
	Refresh TokenRefresher
	// DevToken is sent upstream for sessions without an access token.
	DevToken string
	Now      func() time.Time
}

// Auth returns middleware that loads the session from the cookie, puts it in
// the context and attaches backend credentials.
// It does NOT block unauthenticated requests; RequireAuth and RequireRole do that.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			sess, err := cfg.Sessions.Get(ctx, cookie.Value)
			if err != nil {
				if !errors.Is(err, session.ErrNotFound) {
					slog.Error("session_lookup_failed", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if cfg.Refresh != nil && sess.NeedsRefresh(now()) {
				refreshed, err := cfg.Refresh(ctx, sess)
				if err != nil {
					slog.Warn("auth_event", "event", "token_refresh_failed", "user_id", sess.UserID, "error", err)
					if err := cfg.Sessions.Delete(ctx, sess.Token); err != nil {
						slog.Error("session_delete_failed", "user_id", sess.UserID, "error", err)
					}
					ClearSessionCookie(w)
					next.ServeHTTP(w, r)
					return
				}
				if err := cfg.Sessions.Save(ctx, refreshed); err != nil {
					slog.Error("session_save_failed", "error", err)
				}
				sess = refreshed
			}
			next.ServeHTTP(w, r.WithContext(withSession(ctx, sess, cfg.DevToken)))
		})
	}
}

func withSession(ctx context.Context, s session.Session, devToken string) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, s)
	token := s.AccessToken
	if token == "" {
		token = devToken
	}
	return backend.WithCredentials(ctx, backend.Credentials{Token: token, TenantID: s.TenantID})
}

// RequireAuth returns middleware that blocks unauthenticated requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetSessionFromContext(r.Context()); !ok {
			unauthenticated(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns middleware that blocks requests from users without one of the specified roles.
// Browsers signed in with another role are sent to their own home page.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := GetSessionFromContext(r.Context())
			if !ok {
				unauthenticated(w, r)
				return
			}
			if !roleSet[sess.Role] {
				if wantsHTML(r) && r.Method == http.MethodGet {
					http.Redirect(w, r, identity.HomePath(sess.Role), http.StatusSeeOther)
					return
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// wantsHTML reports whether the client is a browser navigating pages.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return accept == "" || containsMediaType(accept, "text/html")
}

// GetSessionFromContext extracts the session from the request context.
func GetSessionFromContext(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(session.Session)
	return s, ok
}

// GetUserFromContext returns the signed-in user, if any.
func GetUserFromContext(ctx context.Context) (identity.User, bool) {
	s, ok := GetSessionFromContext(ctx)
	if !ok {
		return identity.User{}, false
	}
	return s.User(), true
}

// SetSessionCookie sets the session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode, // survives the redirect back from the identity provider
		Path:     "/",
		MaxAge:   int(session.Lifetime.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	ClearCookie(w, SessionCookieName)
}

// ClearCookie expires the root-path cookie called name.
func ClearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

// IsRole checks if the current session has one of the given roles.
func IsRole(ctx context.Context, roles ...string) bool {
	s, ok := GetSessionFromContext(ctx)
	if !ok {
		return false
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin checks if the current session is an admin.
func IsAdmin(ctx context.Context) bool {
	return IsRole(ctx, identity.RoleAdmin)
}

// IsStaff checks if the current session may use the staff dashboard.
func IsStaff(ctx context.Context) bool {
	return IsRole(ctx, identity.RoleAdmin, identity.RoleStaff)
}

// ContextWithSession returns a context with the given session and its
// backend credentials set.
// Intended for use in tests.
func ContextWithSession(ctx context.Context, s session.Session) context.Context {
	return withSession(ctx, s, "")
}

// GenerateToken returns 32 random bytes, hex encoded.
func GenerateToken() (string, error) {
	return generateToken()
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
