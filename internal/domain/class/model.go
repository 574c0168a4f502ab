package class

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Day of week constants
const (
	Monday    = "monday"
	Tuesday   = "tuesday"
	Wednesday = "wednesday"
	Thursday  = "thursday"
	Friday    = "friday"
	Saturday  = "saturday"
	Sunday    = "sunday"
)

// ValidDays contains all valid day values, in week order.
var ValidDays = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Status constants
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// Domain errors
var (
	ErrEmptyName        = errors.New("class name cannot be empty")
	ErrEmptyInstructor  = errors.New("instructor cannot be empty")
	ErrInvalidCapacity  = errors.New("capacity must be greater than zero")
	ErrInvalidStatus    = errors.New("status must be 'active' or 'cancelled'")
	ErrInvalidDay       = errors.New("day must be a valid day of the week")
	ErrInvalidTime      = errors.New("session times must be HH:MM")
	ErrEndBeforeStart   = errors.New("session must end after it starts")
	ErrOverlapping      = errors.New("sessions on the same day cannot overlap")
	ErrAlreadyCancelled = errors.New("class is already cancelled")
)

// Session is one recurring weekly slot of a class.
type Session struct {
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Class is a group class as exchanged with the classes service.
type Class struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Instructor  string    `json:"instructor"`
	Capacity    int       `json:"capacity"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	Sessions    []Session `json:"sessions"`
}

// Key returns the record identifier.
func (c Class) Key() string { return c.ID }

// Validate checks if the Class has valid data.
// PRE: Class struct is populated
// POST: Returns nil if valid, error otherwise
// INVARIANT: Sessions on the same day never overlap
func (c *Class) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(c.Instructor) == "" {
		return ErrEmptyInstructor
	}
	if c.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if c.Status != StatusActive && c.Status != StatusCancelled {
		return ErrInvalidStatus
	}
	for _, s := range c.Sessions {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	for i := range c.Sessions {
		for j := i + 1; j < len(c.Sessions); j++ {
			if c.Sessions[i].overlaps(c.Sessions[j]) {
				return ErrOverlapping
			}
		}
	}
	return nil
}

// Cancel marks the class as cancelled.
// PRE: Class is active
// POST: Status is cancelled
func (c *Class) Cancel() error {
	if c.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	c.Status = StatusCancelled
	return nil
}

// IsActive returns true if the class is running.
func (c *Class) IsActive() bool {
	return c.Status == StatusActive
}

// SessionsOn returns the class sessions scheduled on day, in stored order.
func (c *Class) SessionsOn(day string) []Session {
	var out []Session
	for _, s := range c.Sessions {
		if s.Day == day {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks a single session.
func (s Session) Validate() error {
	if !IsValidDay(s.Day) {
		return ErrInvalidDay
	}
	start, end, err := s.bounds()
	if err != nil {
		return err
	}
	if !end.After(start) {
		return ErrEndBeforeStart
	}
	return nil
}

// DurationMinutes returns the session length in minutes.
// PRE: StartTime and EndTime are in HH:MM format
func (s Session) DurationMinutes() (int, error) {
	start, end, err := s.bounds()
	if err != nil {
		return 0, err
	}
	return int(end.Sub(start).Minutes()), nil
}

func (s Session) bounds() (time.Time, time.Time, error) {
	start, err := time.Parse("15:04", s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q", ErrInvalidTime, s.StartTime)
	}
	end, err := time.Parse("15:04", s.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q", ErrInvalidTime, s.EndTime)
	}
	return start, end, nil
}

func (s Session) overlaps(o Session) bool {
	if s.Day != o.Day {
		return false
	}
	// HH:MM strings compare chronologically.
	return s.StartTime < o.EndTime && o.StartTime < s.EndTime
}

// IsValidDay reports whether day is a lowercase English weekday name.
func IsValidDay(day string) bool {
	for _, d := range ValidDays {
		if d == day {
			return true
		}
	}
	return false
}

// DayOf returns the weekday constant for t.
func DayOf(t time.Time) string {
	// time.Sunday == 0
	return ValidDays[(int(t.Weekday())+6)%7]
}
