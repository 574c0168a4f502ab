package reservation

import (
	"errors"
	"strings"
	"time"
)

// Status constants
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusAttended  = "attended"
)

// Domain errors
var (
	ErrEmptyUserID      = errors.New("user ID cannot be empty")
	ErrEmptyClassID     = errors.New("class ID cannot be empty")
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
	ErrInvalidStatus    = errors.New("status must be 'confirmed', 'cancelled', or 'attended'")
	ErrAlreadyCancelled = errors.New("reservation is already cancelled")
	ErrAlreadyAttended  = errors.New("attended reservations cannot be cancelled")
)

// Reservation links a user to a class session on a date.
type Reservation struct {
	ID         string `json:"id,omitempty"`
	UserID     string `json:"user_id"`
	ClassID    string `json:"class_id"`
	SessionDay string `json:"session_day,omitempty"`
	Date       string `json:"date"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// Key returns the record identifier.
func (r Reservation) Key() string { return r.ID }

// Validate checks if the Reservation has valid data.
func (r *Reservation) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(r.ClassID) == "" {
		return ErrEmptyClassID
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return ErrInvalidDate
	}
	switch r.Status {
	case StatusConfirmed, StatusCancelled, StatusAttended:
	default:
		return ErrInvalidStatus
	}
	return nil
}

// Cancel marks the reservation cancelled.
// PRE: reservation is confirmed
// POST: Status is cancelled
func (r *Reservation) Cancel() error {
	switch r.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusAttended:
		return ErrAlreadyAttended
	}
	r.Status = StatusCancelled
	return nil
}

// IsUpcoming reports whether a confirmed reservation falls on or after today.
func (r *Reservation) IsUpcoming(now time.Time) bool {
	return r.Status == StatusConfirmed && r.Date >= now.Format("2006-01-02")
}

// ForUser returns the reservations belonging to userID.
func ForUser(all []Reservation, userID string) []Reservation {
	var out []Reservation
	for _, r := range all {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// CountConfirmed returns how many confirmed reservations exist for classID on date.
func CountConfirmed(all []Reservation, classID, date string) int {
	n := 0
	for _, r := range all {
		if r.ClassID == classID && r.Date == date && r.Status == StatusConfirmed {
			n++
		}
	}
	return n
}
