package personal

import (
	"errors"
	"strings"
)

// Role constants (closed set).
const (
	RoleAdmin        = "admin"
	RoleTrainer      = "trainer"
	RoleReceptionist = "receptionist"
	RoleMaintenance  = "maintenance"
	RoleManager      = "manager"
)

// ValidRoles contains all valid staff roles.
var ValidRoles = []string{RoleAdmin, RoleTrainer, RoleReceptionist, RoleMaintenance, RoleManager}

// Access level constants (closed set).
const (
	AccessFull       = "full"
	AccessLimited    = "limited"
	AccessRestricted = "restricted"
)

// ValidAccessLevels contains all valid access levels.
var ValidAccessLevels = []string{AccessFull, AccessLimited, AccessRestricted}

// Domain errors
var (
	ErrEmptyName          = errors.New("staff name cannot be empty")
	ErrInvalidRole        = errors.New("role is not recognised")
	ErrInvalidAccessLevel = errors.New("access level must be 'full', 'limited', or 'restricted'")
)

// Personal is a staff member.
type Personal struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Schedule    string `json:"schedule"`
	AccessLevel string `json:"access_level"`
}

// Key returns the record identifier.
func (p Personal) Key() string { return p.ID }

// Validate checks if the staff record has valid data.
func (p *Personal) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if !contains(ValidRoles, p.Role) {
		return ErrInvalidRole
	}
	if !contains(ValidAccessLevels, p.AccessLevel) {
		return ErrInvalidAccessLevel
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
