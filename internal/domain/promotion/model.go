package promotion

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Discount type constants
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
	DiscountFreeMonth  = "free_month"
)

// Applicability scope constants
const (
	AppliesToAll         = "all"
	AppliesToMemberships = "memberships"
	AppliesToProducts    = "products"
	AppliesToClasses     = "classes"
)

// Status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusExpired  = "expired"
)

// Domain errors
var (
	ErrEmptyName        = errors.New("promotion name cannot be empty")
	ErrInvalidDates     = errors.New("dates must be YYYY-MM-DD")
	ErrEndBeforeStart   = errors.New("end date must not be before start date")
	ErrInvalidType      = errors.New("discount type must be 'percentage', 'fixed', or 'free_month'")
	ErrInvalidValue     = errors.New("discount value is out of range")
	ErrInvalidAppliesTo = errors.New("applies_to is not recognised")
	ErrInvalidStatus    = errors.New("status must be 'active', 'inactive', or 'expired'")
	ErrInvalidCode      = errors.New("promo code may only contain letters, digits, '-' and '_'")
)

// Promotion is a discount campaign.
type Promotion struct {
	ID            string  `json:"id,omitempty"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
	PromoCode     string  `json:"promo_code,omitempty"`
	AutoApply     bool    `json:"auto_apply"`
	AppliesTo     string  `json:"applies_to"`
	Status        string  `json:"status"`
}

// Key returns the record identifier.
func (p Promotion) Key() string { return p.ID }

// Validate checks if the Promotion has valid data.
// PRE: Promotion struct is populated
// POST: Returns nil if valid, error otherwise
// INVARIANT: percentage discounts lie in (0, 100]
func (p *Promotion) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	start, err := time.Parse("2006-01-02", p.StartDate)
	if err != nil {
		return ErrInvalidDates
	}
	end, err := time.Parse("2006-01-02", p.EndDate)
	if err != nil {
		return ErrInvalidDates
	}
	if end.Before(start) {
		return ErrEndBeforeStart
	}
	switch p.DiscountType {
	case DiscountPercentage:
		if p.DiscountValue <= 0 || p.DiscountValue > 100 {
			return ErrInvalidValue
		}
	case DiscountFixed:
		if p.DiscountValue <= 0 {
			return ErrInvalidValue
		}
	case DiscountFreeMonth:
	default:
		return ErrInvalidType
	}
	switch p.AppliesTo {
	case AppliesToAll, AppliesToMemberships, AppliesToProducts, AppliesToClasses:
	default:
		return ErrInvalidAppliesTo
	}
	if p.Status != StatusActive && p.Status != StatusInactive && p.Status != StatusExpired {
		return ErrInvalidStatus
	}
	for _, r := range p.PromoCode {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return ErrInvalidCode
		}
	}
	return nil
}

// IsActiveOn reports whether the promotion is active and date falls in range.
func (p *Promotion) IsActiveOn(date time.Time) bool {
	if p.Status != StatusActive {
		return false
	}
	d := date.Format("2006-01-02")
	return d >= p.StartDate && d <= p.EndDate
}

// Apply returns price after the discount, rounded to cents and never negative.
func (p *Promotion) Apply(price float64) float64 {
	var out float64
	switch p.DiscountType {
	case DiscountPercentage:
		pct := math.Min(p.DiscountValue, 100)
		out = price * (1 - pct/100)
	case DiscountFixed:
		out = price - p.DiscountValue
	case DiscountFreeMonth:
		out = 0
	default:
		out = price
	}
	if out < 0 {
		out = 0
	}
	return math.Round(out*100) / 100
}

// Covers reports whether the promotion applies to the given scope.
func (p *Promotion) Covers(scope string) bool {
	return p.AppliesTo == AppliesToAll || p.AppliesTo == scope
}

// ActiveOn returns promotions active on date.
func ActiveOn(promos []Promotion, date time.Time) []Promotion {
	var out []Promotion
	for _, p := range promos {
		if p.IsActiveOn(date) {
			out = append(out, p)
		}
	}
	return out
}
