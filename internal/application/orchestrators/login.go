package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gymdesk/internal/domain/account"
	"gymdesk/internal/domain/session"
)

// AccountStoreForLogin defines the store interface needed by Login.
type AccountStoreForLogin interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// SessionSaver stores a newly created session.
type SessionSaver interface {
	Save(ctx context.Context, s session.Session) error
}

// AuthEventRecorder counts authentication events. metrics.Metrics satisfies it.
type AuthEventRecorder interface {
	AuthEvent(event string)
}

// LoginInput carries input for the local login orchestrator.
type LoginInput struct {
	Email    string
	Password string
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	AccountStore AccountStoreForLogin
	Sessions     SessionSaver
	Events       AuthEventRecorder
	NewToken     func() (string, error)
	Now          func() time.Time
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is locked due to too many failed attempts")
)

// ExecuteLogin validates local credentials and opens a session.
// PRE: Valid email and password provided
// POST: Returns the stored session on success, records failed login on failure
// INVARIANT: Account must not be locked
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (session.Session, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" || input.Password == "" {
		return session.Session{}, ErrInvalidCredentials
	}
	now := deps.Now()

	acct, err := deps.AccountStore.GetByEmail(ctx, email)
	if err != nil {
		authEvent(deps.Events, "login_failed", "email", email, "reason", "not_found")
		return session.Session{}, ErrInvalidCredentials
	}

	if acct.IsLocked(now) {
		authEvent(deps.Events, "login_blocked", "email", email, "reason", "locked")
		return session.Session{}, ErrAccountLocked
	}

	if err := acct.CheckPassword(input.Password); err != nil {
		acct.RecordFailedLogin(now)
		if err := deps.AccountStore.Save(ctx, acct); err != nil {
			slog.Error("account_save_failed", "account_id", acct.ID, "error", err)
		}
		authEvent(deps.Events, "login_failed", "email", email, "reason", "wrong_password", "failed_logins", acct.FailedLogins)
		return session.Session{}, ErrInvalidCredentials
	}

	if acct.FailedLogins > 0 {
		acct.ResetFailedLogins()
		if err := deps.AccountStore.Save(ctx, acct); err != nil {
			slog.Error("account_save_failed", "account_id", acct.ID, "error", err)
		}
	}

	token, err := deps.NewToken()
	if err != nil {
		return session.Session{}, err
	}
	sess := session.New(token, acct.User(), now)
	if err := deps.Sessions.Save(ctx, sess); err != nil {
		return session.Session{}, err
	}

	authEvent(deps.Events, "login_success", "email", email, "role", acct.Role, "method", "local")
	return sess, nil
}

// authEvent logs an auth_event line and counts it when a recorder is set.
func authEvent(rec AuthEventRecorder, event string, attrs ...any) {
	slog.Info("auth_event", append([]any{"event", event}, attrs...)...)
	if rec != nil {
		rec.AuthEvent(event)
	}
}
