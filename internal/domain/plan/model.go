package plan

import (
	"errors"
	"strings"
)

// Domain errors
var (
	ErrEmptyName       = errors.New("plan name cannot be empty")
	ErrInvalidDuration = errors.New("duration must be at least one month")
	ErrNegativePrice   = errors.New("price cannot be negative")
	ErrInvalidCapacity = errors.New("capacity cannot be negative")
)

// MembershipPlan is a purchasable membership offering.
type MembershipPlan struct {
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Capacity       int      `json:"capacity"`
	DurationMonths int      `json:"duration_months"`
	Price          float64  `json:"price"`
	Services       []string `json:"services"`
}

// Key returns the record identifier.
func (p MembershipPlan) Key() string { return p.ID }

// Validate checks if the plan has valid data.
// PRE: MembershipPlan struct is populated
// POST: Returns nil if valid, error otherwise
func (p *MembershipPlan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.DurationMonths < 1 {
		return ErrInvalidDuration
	}
	if p.Price < 0 {
		return ErrNegativePrice
	}
	if p.Capacity < 0 {
		return ErrInvalidCapacity
	}
	return nil
}

// MonthlyPrice returns the price spread over the plan duration.
func (p *MembershipPlan) MonthlyPrice() float64 {
	if p.DurationMonths < 1 {
		return p.Price
	}
	return p.Price / float64(p.DurationMonths)
}

// ParseServices splits a comma or newline separated list, dropping blanks.
func ParseServices(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if s := strings.TrimSpace(f); s != "" {
			out = append(out, s)
		}
	}
	return out
}
