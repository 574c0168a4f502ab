package projections

import (
	"testing"

	"gymdesk/internal/domain/class"
	"gymdesk/internal/domain/reservation"
)

func scheduleDeps() GetScheduleDeps {
	return GetScheduleDeps{
		Classes: stubLister[class.Class]{items: []class.Class{
			{ID: "c1", Name: "Yoga", Capacity: 2, Status: class.StatusActive, Sessions: []class.Session{
				{Day: class.Wednesday, StartTime: "18:00", EndTime: "19:00"},
				{Day: class.Monday, StartTime: "18:00", EndTime: "19:00"},
			}},
			{ID: "c2", Name: "Spin", Capacity: 10, Status: class.StatusActive, Sessions: []class.Session{
				{Day: class.Monday, StartTime: "07:00", EndTime: "08:00"},
			}},
			{ID: "c3", Name: "Boxing", Capacity: 10, Status: class.StatusCancelled, Sessions: []class.Session{
				{Day: class.Tuesday, StartTime: "07:00", EndTime: "08:00"},
			}},
		}},
		Reservations: stubLister[reservation.Reservation]{items: []reservation.Reservation{
			{ID: "r1", UserID: "user-1", ClassID: "c1", Date: "2026-03-18", Status: reservation.StatusConfirmed},
			{ID: "r2", UserID: "user-2", ClassID: "c1", Date: "2026-03-18", Status: reservation.StatusConfirmed},
			{ID: "r3", UserID: "user-1", ClassID: "c2", Date: "2026-03-16", Status: reservation.StatusCancelled},
		}},
		Now: testNow,
	}
}

func TestQueryGetSchedule_GroupsByWeekday(t *testing.T) {
	days, err := QueryGetSchedule(signedIn(), GetScheduleQuery{OwnerIDs: []string{"user-1"}}, scheduleDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("days = %d, want 2 (cancelled classes hidden)", len(days))
	}
	if days[0].Day != class.Monday || days[0].Date != "2026-03-16" {
		t.Errorf("first day = %s %s", days[0].Day, days[0].Date)
	}
	if days[1].Day != class.Wednesday || days[1].Date != "2026-03-18" {
		t.Errorf("second day = %s %s", days[1].Day, days[1].Date)
	}
	if mon := days[0].Entries; len(mon) != 2 || mon[0].Class.ID != "c2" || mon[1].Class.ID != "c1" {
		t.Errorf("monday not ordered by start time: %+v", mon)
	}
}

func TestQueryGetSchedule_MarksOwnReservationAndCapacity(t *testing.T) {
	days, err := QueryGetSchedule(signedIn(), GetScheduleQuery{OwnerIDs: []string{"user-1"}}, scheduleDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wed := days[1].Entries[0]
	if wed.ReservationID != "r1" {
		t.Errorf("ReservationID = %q, want r1", wed.ReservationID)
	}
	if wed.Booked != 2 || !wed.Full {
		t.Errorf("Booked = %d Full = %v, want 2 true", wed.Booked, wed.Full)
	}
	spin := days[0].Entries[0]
	if spin.ReservationID != "" {
		t.Error("cancelled reservation should not mark the entry")
	}
}

func TestNextDates_IncludesToday(t *testing.T) {
	dates := nextDates(fixedNow)
	if dates[class.Monday] != "2026-03-16" {
		t.Errorf("monday = %s", dates[class.Monday])
	}
	if dates[class.Sunday] != "2026-03-22" {
		t.Errorf("sunday = %s", dates[class.Sunday])
	}
}
