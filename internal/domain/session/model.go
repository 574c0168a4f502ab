// Package session models the server-side login session referenced by the
// session cookie.
package session

import (
	"errors"
	"time"

	"gymdesk/internal/domain/identity"
)

// Lifetime bounds a session regardless of token refreshes.
const Lifetime = 24 * time.Hour

// RefreshSkew refreshes access tokens slightly before they expire.
const RefreshSkew = 30 * time.Second

// Domain errors
var (
	ErrEmptyToken  = errors.New("session token cannot be empty")
	ErrEmptyUserID = errors.New("session user ID cannot be empty")
	ErrInvalidRole = errors.New("session role is not recognised")
	ErrNotFound    = errors.New("session not found")
)

// Session is one signed-in browser.
type Session struct {
	Token    string
	UserID   string
	Email    string
	Name     string
	Role     string
	TenantID string

	// Upstream credentials. Empty for local accounts without a dev token.
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenExpiry  time.Time

	CreatedAt time.Time
	ExpiresAt time.Time
}

// New builds a session for user that expires Lifetime after now.
func New(token string, user identity.User, now time.Time) Session {
	return Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		TenantID:  user.TenantID,
		CreatedAt: now,
		ExpiresAt: now.Add(Lifetime),
	}
}

// Validate checks if the Session has valid data.
// PRE: Session struct is populated
// POST: Returns nil if valid, error otherwise
func (s *Session) Validate() error {
	if s.Token == "" {
		return ErrEmptyToken
	}
	if s.UserID == "" {
		return ErrEmptyUserID
	}
	if !identity.IsValidRole(s.Role) {
		return ErrInvalidRole
	}
	return nil
}

// IsExpired reports whether the session can no longer be used.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// NeedsRefresh reports whether the access token is about to expire and a
// refresh token is available.
func (s *Session) NeedsRefresh(now time.Time) bool {
	if s.RefreshToken == "" || s.TokenExpiry.IsZero() {
		return false
	}
	return !now.Add(RefreshSkew).Before(s.TokenExpiry)
}

// User returns the principal the session belongs to.
func (s *Session) User() identity.User {
	return identity.User{
		ID:       s.UserID,
		Email:    s.Email,
		Name:     s.Name,
		Role:     s.Role,
		TenantID: s.TenantID,
	}
}

// IsStaff reports whether the session may use the staff dashboard.
func (s *Session) IsStaff() bool {
	return identity.IsStaff(s.Role)
}
