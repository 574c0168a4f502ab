package usermembership

import (
	"errors"
	"strings"
	"time"
)

// Status constants
const (
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Domain errors
var (
	ErrEmptyUserID    = errors.New("user ID cannot be empty")
	ErrEmptyPlanID    = errors.New("plan ID cannot be empty")
	ErrInvalidDates   = errors.New("dates must be YYYY-MM-DD")
	ErrEndBeforeStart = errors.New("end date must not be before start date")
	ErrInvalidStatus  = errors.New("status must be 'active', 'expired', or 'cancelled'")
)

// UserMembership links a user to a membership plan for a period.
type UserMembership struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id"`
	PlanID    string `json:"plan_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
}

// Key returns the record identifier.
func (m UserMembership) Key() string { return m.ID }

// Validate checks if the membership has valid data.
func (m *UserMembership) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(m.PlanID) == "" {
		return ErrEmptyPlanID
	}
	start, err := time.Parse("2006-01-02", m.StartDate)
	if err != nil {
		return ErrInvalidDates
	}
	end, err := time.Parse("2006-01-02", m.EndDate)
	if err != nil {
		return ErrInvalidDates
	}
	if end.Before(start) {
		return ErrEndBeforeStart
	}
	switch m.Status {
	case StatusActive, StatusExpired, StatusCancelled:
	default:
		return ErrInvalidStatus
	}
	return nil
}

// DaysRemaining returns whole days until the end date (0 when past or unparseable).
func (m *UserMembership) DaysRemaining(now time.Time) int {
	end, err := time.Parse("2006-01-02", m.EndDate)
	if err != nil {
		return 0
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(end.Sub(today).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// IsCurrent reports whether the membership is active and covers now.
func (m *UserMembership) IsCurrent(now time.Time) bool {
	d := now.Format("2006-01-02")
	return m.Status == StatusActive && d >= m.StartDate && d <= m.EndDate
}

// EndDateFor computes the end date for a plan starting on start.
func EndDateFor(start time.Time, durationMonths int) string {
	return start.AddDate(0, durationMonths, -1).Format("2006-01-02")
}
