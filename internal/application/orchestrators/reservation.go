package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gymdesk/internal/domain/class"
	"gymdesk/internal/domain/reservation"
)

// Reservation errors
var (
	ErrDateInPast      = errors.New("cannot reserve a date in the past")
	ErrClassNotActive  = errors.New("class is not active")
	ErrNoSessionOnDay  = errors.New("class has no session on that day")
	ErrAlreadyReserved = errors.New("you already have a reservation for this class on that date")
	ErrClassFull       = errors.New("class is full")
	ErrNotYourBooking  = errors.New("reservation belongs to another user")
)

// ClassGetter loads one class.
type ClassGetter interface {
	Get(ctx context.Context, id string) (class.Class, error)
}

// ReservationService is the reservations resource surface.
type ReservationService interface {
	List(ctx context.Context) ([]reservation.Reservation, error)
	Get(ctx context.Context, id string) (reservation.Reservation, error)
	Create(ctx context.Context, r reservation.Reservation) (reservation.Reservation, error)
	Update(ctx context.Context, id string, r reservation.Reservation) (reservation.Reservation, error)
}

// ReserveClassInput carries input for ReserveClass.
type ReserveClassInput struct {
	UserID  string
	ClassID string
	Date    string // YYYY-MM-DD
}

// ReserveClassDeps holds dependencies for ReserveClass.
type ReserveClassDeps struct {
	Classes      ClassGetter
	Reservations ReservationService
	Now          func() time.Time
}

// ExecuteReserveClass books a place in a class session.
// PRE: UserID, ClassID and Date are set
// POST: a confirmed reservation exists for the user, class and date
// INVARIANT: confirmed reservations for a class and date never exceed its capacity
func ExecuteReserveClass(ctx context.Context, input ReserveClassInput, deps ReserveClassDeps) (reservation.Reservation, error) {
	r := reservation.Reservation{
		UserID:  input.UserID,
		ClassID: input.ClassID,
		Date:    input.Date,
		Status:  reservation.StatusConfirmed,
	}
	if err := r.Validate(); err != nil {
		return reservation.Reservation{}, err
	}
	now := deps.Now()
	date, _ := time.ParseInLocation("2006-01-02", input.Date, now.Location())
	if date.Before(startOfDay(now)) {
		return reservation.Reservation{}, ErrDateInPast
	}

	c, err := deps.Classes.Get(ctx, input.ClassID)
	if err != nil {
		return reservation.Reservation{}, err
	}
	if !c.IsActive() {
		return reservation.Reservation{}, ErrClassNotActive
	}
	day := class.DayOf(date)
	if len(c.SessionsOn(day)) == 0 {
		return reservation.Reservation{}, ErrNoSessionOnDay
	}

	existing, err := deps.Reservations.List(ctx)
	if err != nil {
		return reservation.Reservation{}, err
	}
	for _, e := range reservation.ForUser(existing, input.UserID) {
		if e.ClassID == input.ClassID && e.Date == input.Date && e.Status == reservation.StatusConfirmed {
			return reservation.Reservation{}, ErrAlreadyReserved
		}
	}
	if reservation.CountConfirmed(existing, input.ClassID, input.Date) >= c.Capacity {
		return reservation.Reservation{}, ErrClassFull
	}

	r.SessionDay = day
	r.CreatedAt = now.UTC().Format(time.RFC3339)
	created, err := deps.Reservations.Create(ctx, r)
	if err != nil {
		return reservation.Reservation{}, err
	}
	slog.Info("reservation_event", "event", "reserved", "user_id", input.UserID, "class_id", input.ClassID, "date", input.Date)
	return created, nil
}

// CancelReservationInput carries input for CancelReservation.
type CancelReservationInput struct {
	ReservationID string
	UserID        string
	MemberID      string // the caller's member record, if linked
	// Staff may cancel anyone's reservation.
	Staff bool
}

// ExecuteCancelReservation cancels a confirmed reservation.
// PRE: ReservationID is set
// POST: the reservation status is cancelled
func ExecuteCancelReservation(ctx context.Context, input CancelReservationInput, reservations ReservationService) (reservation.Reservation, error) {
	r, err := reservations.Get(ctx, input.ReservationID)
	if err != nil {
		return reservation.Reservation{}, err
	}
	owner := r.UserID == input.UserID || (input.MemberID != "" && r.UserID == input.MemberID)
	if !input.Staff && !owner {
		return reservation.Reservation{}, ErrNotYourBooking
	}
	if err := r.Cancel(); err != nil {
		return reservation.Reservation{}, err
	}
	updated, err := reservations.Update(ctx, r.ID, r)
	if err != nil {
		return reservation.Reservation{}, err
	}
	slog.Info("reservation_event", "event", "cancelled", "reservation_id", r.ID, "user_id", input.UserID)
	return updated, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
