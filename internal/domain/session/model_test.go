package session

import (
	"testing"
	"time"

	"gymdesk/internal/domain/identity"
)

var now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

// TestNew_SetsExpiry verifies New copies the user and sets the lifetime.
func TestNew_SetsExpiry(t *testing.T) {
	s := New("tok", identity.User{ID: "u1", Email: "a@b.c", Role: identity.RoleStaff, TenantID: "gym-1"}, now)
	if s.ExpiresAt != now.Add(Lifetime) {
		t.Errorf("ExpiresAt = %v", s.ExpiresAt)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if !s.IsStaff() || s.User().TenantID != "gym-1" {
		t.Errorf("user = %+v", s.User())
	}
}

// TestValidate covers each required field.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       Session
		wantErr error
	}{
		{"no token", Session{UserID: "u", Role: identity.RoleMember}, ErrEmptyToken},
		{"no user", Session{Token: "t", Role: identity.RoleMember}, ErrEmptyUserID},
		{"bad role", Session{Token: "t", UserID: "u", Role: "coach"}, ErrInvalidRole},
		{"valid", Session{Token: "t", UserID: "u", Role: identity.RoleMember}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.s.Validate(); err != tt.wantErr {
				t.Errorf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestIsExpired verifies the boundary is exclusive.
func TestIsExpired(t *testing.T) {
	s := Session{ExpiresAt: now}
	if !s.IsExpired(now) {
		t.Error("session should be expired at ExpiresAt")
	}
	if s.IsExpired(now.Add(-time.Second)) {
		t.Error("session should be valid before ExpiresAt")
	}
	if (&Session{}).IsExpired(now) {
		t.Error("zero ExpiresAt never expires")
	}
}

// TestNeedsRefresh verifies the skew window and refresh-token requirement.
func TestNeedsRefresh(t *testing.T) {
	s := Session{RefreshToken: "rt", TokenExpiry: now.Add(time.Minute)}
	if s.NeedsRefresh(now) {
		t.Error("token valid for a minute should not refresh")
	}
	if !s.NeedsRefresh(now.Add(45 * time.Second)) {
		t.Error("token inside skew window should refresh")
	}
	s.RefreshToken = ""
	if s.NeedsRefresh(now.Add(time.Hour)) {
		t.Error("no refresh token means no refresh")
	}
}
