package access

import (
	"errors"
	"sort"
	"time"
)

// Access log status constants
const (
	StatusGranted = "granted"
	StatusDenied  = "denied"
)

// Domain errors
var (
	ErrEmptyMemberID  = errors.New("member ID cannot be empty")
	ErrAlreadyPaired  = errors.New("member already has a paired NFC device")
	ErrNotPaired      = errors.New("member has no paired NFC device")
	ErrCodeExpired    = errors.New("pairing code has expired")
	ErrAlreadyResolve = errors.New("alert is already resolved")
)

// Log is a single NFC access attempt.
type Log struct {
	ID         string    `json:"id"`
	MemberID   string    `json:"member_id"`
	MemberName string    `json:"member_name"`
	NFCID      string    `json:"nfc_id"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
}

// Key returns the record identifier.
func (l Log) Key() string { return l.ID }

// IsGranted reports whether access was allowed.
func (l Log) IsGranted() bool { return l.Status == StatusGranted }

// Alert is a security notification raised by the access-control service.
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Resolved  bool      `json:"resolved"`
}

// Key returns the record identifier.
func (a Alert) Key() string { return a.ID }

// Resolve marks the alert as handled.
// PRE: alert is unresolved
func (a *Alert) Resolve() error {
	if a.Resolved {
		return ErrAlreadyResolve
	}
	a.Resolved = true
	return nil
}

// PairingCode is a one-time code used to associate an NFC device with a member.
type PairingCode struct {
	Code      string    `json:"code"`
	MemberID  string    `json:"member_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the code can no longer be used.
func (c PairingCode) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// SortNewestFirst orders logs by timestamp descending.
func SortNewestFirst(logs []Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
}

// Unresolved returns alerts that still need attention, newest first.
func Unresolved(alerts []Alert) []Alert {
	var out []Alert
	for _, a := range alerts {
		if !a.Resolved {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// DeniedCount returns how many attempts in logs were denied.
func DeniedCount(logs []Log) int {
	n := 0
	for _, l := range logs {
		if l.Status == StatusDenied {
			n++
		}
	}
	return n
}
