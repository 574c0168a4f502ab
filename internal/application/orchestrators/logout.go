package orchestrators

import (
	"context"
	"log/slog"

	"gymdesk/internal/domain/session"
)

// SessionDeleter removes a stored session.
type SessionDeleter interface {
	Delete(ctx context.Context, token string) error
}

// BackendSessionClearer asks the backend to drop its own session cookie.
// backend.SessionBridge satisfies it.
type BackendSessionClearer interface {
	Logout(ctx context.Context, cookie, token string) error
}

// EndSessionProvider builds the identity provider's logout URL.
type EndSessionProvider interface {
	EndSessionURL(idTokenHint string) string
}

// LogoutInput carries the state being torn down.
type LogoutInput struct {
	Session       session.Session
	SignedIn      bool
	BackendCookie string // value of the backend's own session cookie, if present
}

// LogoutDeps holds dependencies for Logout.
type LogoutDeps struct {
	Sessions SessionDeleter
	// ClearCookie removes the session cookie from the response.
	ClearCookie func()
	Backend     BackendSessionClearer // optional
	Provider    EndSessionProvider    // optional; nil means local accounts
	Events      AuthEventRecorder
}

// ExecuteLogout signs the user out and returns where to send the browser.
// PRE: none; logging out twice is harmless
// POST: server session deleted and cookie cleared before the redirect target is returned
// INVARIANT: a failed backend call does not roll back the local sign-out
func ExecuteLogout(ctx context.Context, input LogoutInput, deps LogoutDeps) string {
	if input.SignedIn {
		if err := deps.Sessions.Delete(ctx, input.Session.Token); err != nil {
			slog.Error("session_delete_failed", "user_id", input.Session.UserID, "error", err)
		}
	}
	deps.ClearCookie()

	if deps.Backend != nil && (input.BackendCookie != "" || input.Session.AccessToken != "") {
		if err := deps.Backend.Logout(ctx, input.BackendCookie, input.Session.AccessToken); err != nil {
			slog.Warn("backend_logout_failed", "user_id", input.Session.UserID, "error", err)
		}
	}

	if input.SignedIn {
		authEvent(deps.Events, "logout", "user_id", input.Session.UserID)
	}
	if deps.Provider != nil {
		return deps.Provider.EndSessionURL(input.Session.IDToken)
	}
	return "/login"
}
