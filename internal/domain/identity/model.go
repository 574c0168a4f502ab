// Package identity holds the typed view of identity-provider tokens and the
// application user derived from them.
package identity

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Application roles, in decreasing order of privilege.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleMember = "member"
)

// Realm roles recognised in tokens, mapped to application roles.
var realmRoleMap = map[string]string{
	"admin":        RoleAdmin,
	"gym-admin":    RoleAdmin,
	"owner":        RoleAdmin,
	"staff":        RoleStaff,
	"trainer":      RoleStaff,
	"receptionist": RoleStaff,
	"member":       RoleMember,
	"client":       RoleMember,
}

var rolePriority = map[string]int{RoleAdmin: 3, RoleStaff: 2, RoleMember: 1}

// Domain errors
var (
	ErrMissingSubject = errors.New("token has no subject")
	ErrMissingEmail   = errors.New("token has no email claim")
	ErrMissingExpiry  = errors.New("token has no expiry")
)

// RealmAccess mirrors the realm_access claim.
type RealmAccess struct {
	Roles []string `json:"roles"`
}

// Claims is the decoded access-token schema.
type Claims struct {
	jwt.RegisteredClaims
	Email             string      `json:"email"`
	EmailVerified     bool        `json:"email_verified"`
	Name              string      `json:"name"`
	PreferredUsername string      `json:"preferred_username"`
	RealmAccess       RealmAccess `json:"realm_access"`
	TenantID          string      `json:"gym_id"`
}

// Validate checks the claims this application relies on.
// Signature, expiry and issuer are checked by the token parser.
// PRE: claims were decoded from a verified token
// POST: Returns nil when Subject, Email and ExpiresAt are present
func (c *Claims) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return ErrMissingSubject
	}
	if !strings.Contains(c.Email, "@") {
		return ErrMissingEmail
	}
	if c.ExpiresAt == nil {
		return ErrMissingExpiry
	}
	return nil
}

// Role derives the application role from realm-role membership.
// The most privileged recognised role wins; no recognised role means member.
func (c *Claims) Role() string {
	best := RoleMember
	for _, r := range c.RealmAccess.Roles {
		mapped, ok := realmRoleMap[strings.ToLower(r)]
		if ok && rolePriority[mapped] > rolePriority[best] {
			best = mapped
		}
	}
	return best
}

// DisplayName picks the friendliest available name.
func (c *Claims) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.PreferredUsername != "":
		return c.PreferredUsername
	default:
		return c.Email
	}
}

// User is the authenticated principal for a request.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id,omitempty"`
}

// UserFromClaims builds the application user.
// PRE: claims.Validate() returned nil
func UserFromClaims(c *Claims) User {
	return User{
		ID:       c.Subject,
		Email:    c.Email,
		Name:     c.DisplayName(),
		Role:     c.Role(),
		TenantID: c.TenantID,
	}
}

// IsStaff reports whether role may use the staff dashboard.
func IsStaff(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

// HomePath returns the landing page for role.
func HomePath(role string) string {
	if IsStaff(role) {
		return "/dashboard"
	}
	return "/client"
}

// IsValidRole reports whether role is an application role.
func IsValidRole(role string) bool {
	_, ok := rolePriority[role]
	return ok
}
