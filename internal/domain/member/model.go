package member

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength = 100
)

// Status values as stored by the members service.
const (
	StatusActive    = "activo"
	StatusInactive  = "inactivo"
	StatusSuspended = "suspendido"

	// FilterAll is the pseudo-status that disables status filtering.
	FilterAll = "all"
)

// ValidStatuses contains all valid status values.
var ValidStatuses = []string{StatusActive, StatusInactive, StatusSuspended}

// Domain errors
var (
	ErrEmptyName     = errors.New("member name cannot be empty")
	ErrNameTooLong   = errors.New("member name cannot exceed 100 characters")
	ErrInvalidEmail  = errors.New("member email must be valid")
	ErrInvalidStatus = errors.New("status must be 'activo', 'inactivo', or 'suspendido'")
	ErrInvalidJoin   = errors.New("join date must be YYYY-MM-DD")
)

// Member is a gym member as exchanged with the members service.
type Member struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	NFCID    string `json:"nfc_id,omitempty"`
	Status   string `json:"status"`
	JoinDate string `json:"join_date,omitempty"`
}

// Key returns the record identifier.
func (m Member) Key() string { return m.ID }

// Validate checks if the Member has valid data.
// PRE: Member struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: Email must contain '@', Name must not be empty
func (m *Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	if len(m.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if !strings.Contains(m.Email, "@") {
		return ErrInvalidEmail
	}
	if !IsValidStatus(m.Status) {
		return ErrInvalidStatus
	}
	if m.JoinDate != "" {
		if _, err := time.Parse("2006-01-02", m.JoinDate); err != nil {
			return ErrInvalidJoin
		}
	}
	return nil
}

// IsActive returns true if the member is currently active.
// INVARIANT: Status field is not mutated
func (m *Member) IsActive() bool {
	return m.Status == StatusActive
}

// HasNFC reports whether a card or wristband is paired with the member.
func (m *Member) HasNFC() bool {
	return strings.TrimSpace(m.NFCID) != ""
}

// IsValidStatus reports whether s is one of the closed set of statuses.
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// FilterByStatus returns the members whose status equals status.
// An empty status or FilterAll returns the full set.
// POST: input slice is not modified; order is preserved
func FilterByStatus(members []Member, status string) []Member {
	if status == "" || status == FilterAll {
		out := make([]Member, len(members))
		copy(out, members)
		return out
	}
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out
}

// Search returns the members whose name or email contains q (case-insensitive).
func Search(members []Member, q string) []Member {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return members
	}
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if strings.Contains(strings.ToLower(m.Name), q) || strings.Contains(strings.ToLower(m.Email), q) {
			out = append(out, m)
		}
	}
	return out
}

// CountByStatus tallies members per status.
func CountByStatus(members []Member) map[string]int {
	counts := make(map[string]int, len(ValidStatuses))
	for _, s := range ValidStatuses {
		counts[s] = 0
	}
	for _, m := range members {
		counts[m.Status]++
	}
	return counts
}

// FindByEmail returns the first member whose email matches (case-insensitive).
func FindByEmail(members []Member, email string) (Member, bool) {
	for _, m := range members {
		if strings.EqualFold(m.Email, email) {
			return m, true
		}
	}
	return Member{}, false
}
