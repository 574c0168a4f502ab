package web

import (
	"errors"
	"net/http"
	"strings"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/domain/identity"
	"gymdesk/internal/domain/session"
)

// stateCookieName carries the OIDC state between /login and /auth/callback.
const stateCookieName = "gym_oauth_state"

const stateCookieMaxAge = 10 * 60

// handleLoginPage starts the OIDC flow, or shows the local sign-in form when
// no identity provider is configured.
func (s *server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
		http.Redirect(w, r, identity.HomePath(sess.Role), http.StatusSeeOther)
		return
	}
	if s.Provider == nil {
		s.render(w, r, "login.html", http.StatusOK, nil)
		return
	}
	state, err := middleware.GenerateToken()
	if err != nil {
		internalError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth/callback",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.Provider.AuthCodeURL(state), http.StatusFound)
}

// handleLogin handles POST /login for local accounts.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.Provider != nil || s.Accounts == nil {
		http.NotFound(w, r)
		return
	}
	input := orchestrators.LoginInput{}
	if isJSONBody(r) {
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input.Email = r.FormValue("email")
		input.Password = r.FormValue("password")
	}

	sess, err := orchestrators.ExecuteLogin(r.Context(), input, orchestrators.LoginDeps{
		AccountStore: s.Accounts,
		Sessions:     s.Sessions,
		Events:       s.events(),
		NewToken:     middleware.GenerateToken,
		Now:          s.Now,
	})
	if err != nil {
		status, key := http.StatusInternalServerError, "errors.generic"
		switch {
		case errors.Is(err, orchestrators.ErrInvalidCredentials):
			status, key = http.StatusUnauthorized, "auth.invalid"
		case errors.Is(err, orchestrators.ErrAccountLocked):
			status, key = http.StatusLocked, "auth.locked"
		default:
			internalError(w, err)
			return
		}
		if isHTMLRequest(r) {
			s.render(w, r, "login.html", status, map[string]any{"Error": s.t(r, key), "Email": input.Email})
			return
		}
		writeJSON(w, status, map[string]string{"error": s.t(r, key)})
		return
	}
	s.signedIn(w, r, sess)
}

// handleAuthCallback completes the OIDC authorization-code flow.
func (s *server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.Provider == nil {
		http.NotFound(w, r)
		return
	}
	expected := ""
	if c, err := r.Cookie(stateCookieName); err == nil {
		expected = c.Value
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/auth/callback", MaxAge: -1, HttpOnly: true})

	q := r.URL.Query()
	sess, err := orchestrators.ExecuteOIDCLogin(r.Context(), orchestrators.OIDCLoginInput{
		Code:          q.Get("code"),
		State:         q.Get("state"),
		ExpectedState: expected,
		ProviderError: q.Get("error"),
	}, orchestrators.OIDCLoginDeps{
		Provider: s.Provider,
		Sessions: s.Sessions,
		Events:   s.events(),
		NewToken: middleware.GenerateToken,
		Now:      s.Now,
	})
	if err != nil {
		status, key := http.StatusUnauthorized, "errors.generic"
		if errors.Is(err, orchestrators.ErrStateMismatch) || errors.Is(err, orchestrators.ErrMissingCode) {
			status, key = http.StatusBadRequest, "auth.state_mismatch"
		}
		s.render(w, r, "login.html", status, map[string]any{"Error": s.t(r, key), "Retry": true})
		return
	}
	s.signedIn(w, r, sess)
}

// signedIn sets the session cookie and sends the user to their home page.
func (s *server) signedIn(w http.ResponseWriter, r *http.Request, sess session.Session) {
	middleware.SetSessionCookie(w, sess.Token, s.SecureCookies)
	home := identity.HomePath(sess.Role)
	if isJSONBody(r) && !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, map[string]any{"user": sess.User(), "redirect": home})
		return
	}
	http.Redirect(w, r, home, http.StatusSeeOther)
}

// handleLogout handles POST /logout.
// The session cookie is cleared before the redirect target is computed.
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	input := orchestrators.LogoutInput{Session: sess, SignedIn: ok}
	deps := orchestrators.LogoutDeps{
		Sessions:    s.Sessions,
		ClearCookie: func() { s.clearSessionCookies(w) },
		Events:      s.events(),
	}
	if s.Bridge != nil {
		deps.Backend = s.Bridge
		if c, err := r.Cookie(s.Bridge.CookieName()); err == nil {
			input.BackendCookie = c.Value
		}
	}
	if s.Provider != nil {
		deps.Provider = s.Provider
	}

	target := orchestrators.ExecuteLogout(r.Context(), input, deps)
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, map[string]string{"redirect": target})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleSessionClear handles POST /api/session/clear.
func (s *server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// clearSessionCookies expires our session cookie and the backend cookie
// that /api/me forwards.
func (s *server) clearSessionCookies(w http.ResponseWriter) {
	middleware.ClearSessionCookie(w)
	if s.Bridge != nil {
		middleware.ClearCookie(w, s.Bridge.CookieName())
	}
}

// handleMe forwards the backend session cookie to the backend's /auth/me.
func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	if s.Bridge == nil {
		http.NotFound(w, r)
		return
	}
	c, err := r.Cookie(s.Bridge.CookieName())
	if err != nil || c.Value == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": s.t(r, "errors.not_authenticated")})
		return
	}
	body, err := s.Bridge.Me(r.Context(), c.Value)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// handleSetLocale handles POST /locale. An empty locale toggles.
func (s *server) handleSetLocale(w http.ResponseWriter, r *http.Request) {
	requested := ""
	if isJSONBody(r) {
		var body struct {
			Locale string `json:"locale"`
		}
		if err := strictDecode(r, &body); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		requested = body.Locale
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		requested = r.FormValue("locale")
	}

	input := orchestrators.SetLocaleInput{Current: localeOf(r), Requested: strings.TrimSpace(requested)}
	if user, ok := middleware.GetUserFromContext(r.Context()); ok {
		input.UserID = user.ID
	}
	var prefs orchestrators.LocalePreferenceSetter
	if s.Preferences != nil {
		prefs = s.Preferences
	}
	locale, err := orchestrators.ExecuteSetLocale(r.Context(), input, prefs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.SetLocaleCookie(w, locale)

	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, map[string]string{"locale": locale})
		return
	}
	http.Redirect(w, r, safeReturnPath(r.FormValue("return_to")), http.StatusSeeOther)
}

// safeReturnPath accepts only same-site absolute paths.
func safeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}
