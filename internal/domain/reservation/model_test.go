package reservation

import (
	"testing"
	"time"
)

// TestReservationValidation tests validation of Reservation.
func TestReservationValidation(t *testing.T) {
	ok := Reservation{UserID: "u1", ClassID: "c1", Date: "2026-10-20", Status: StatusConfirmed}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid reservation rejected: %v", err)
	}
	bad := ok
	bad.Date = "mañana"
	if err := bad.Validate(); err != ErrInvalidDate {
		t.Errorf("Validate() = %v, want ErrInvalidDate", err)
	}
	bad = ok
	bad.ClassID = ""
	if err := bad.Validate(); err != ErrEmptyClassID {
		t.Errorf("Validate() = %v, want ErrEmptyClassID", err)
	}
}

// TestCancel verifies cancellation transitions.
func TestCancel(t *testing.T) {
	r := Reservation{Status: StatusConfirmed}
	if err := r.Cancel(); err != nil || r.Status != StatusCancelled {
		t.Fatalf("Cancel() = %v, status %s", err, r.Status)
	}
	if err := r.Cancel(); err != ErrAlreadyCancelled {
		t.Errorf("second Cancel() = %v", err)
	}
	attended := Reservation{Status: StatusAttended}
	if err := attended.Cancel(); err != ErrAlreadyAttended {
		t.Errorf("Cancel() on attended = %v", err)
	}
}

// TestCountConfirmed verifies only confirmed rows for the class/date count.
func TestCountConfirmed(t *testing.T) {
	all := []Reservation{
		{ClassID: "c1", Date: "2026-10-20", Status: StatusConfirmed},
		{ClassID: "c1", Date: "2026-10-20", Status: StatusCancelled},
		{ClassID: "c1", Date: "2026-10-21", Status: StatusConfirmed},
		{ClassID: "c2", Date: "2026-10-20", Status: StatusConfirmed},
	}
	if got := CountConfirmed(all, "c1", "2026-10-20"); got != 1 {
		t.Errorf("CountConfirmed = %d, want 1", got)
	}
}

// TestIsUpcoming verifies today counts as upcoming.
func TestIsUpcoming(t *testing.T) {
	now := time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)
	if !(&Reservation{Date: "2026-10-19", Status: StatusConfirmed}).IsUpcoming(now) {
		t.Error("today's reservation should be upcoming")
	}
	if (&Reservation{Date: "2026-10-18", Status: StatusConfirmed}).IsUpcoming(now) {
		t.Error("yesterday's reservation should not be upcoming")
	}
}
