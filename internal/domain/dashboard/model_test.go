package dashboard

import (
	"testing"
	"time"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// TestFromDocument_NilDocument verifies a missing document yields empty lists.
func TestFromDocument_NilDocument(t *testing.T) {
	snap := FromDocument(nil, now)
	if snap.AccessEvents == nil || snap.DailyActivity == nil {
		t.Fatal("expected non-nil empty slices")
	}
	if snap.CurrentMonth != "2026-10" || snap.CurrentMonthRevenue != 0 {
		t.Errorf("unexpected month fields: %s %v", snap.CurrentMonth, snap.CurrentMonthRevenue)
	}
}

// TestFromDocument_DailyActivityAscending verifies ascending date order regardless of map order.
func TestFromDocument_DailyActivityAscending(t *testing.T) {
	// Map iteration order is randomised; repeat to exercise different orders.
	for i := 0; i < 20; i++ {
		snap := FromDocument(map[string]any{
			FieldDailyActivity: map[string]any{
				"2026-10-18": int64(40),
				"2026-09-30": float64(12),
				"2026-10-02": "7",
				"2026-10-19": 3,
				"total":      99,
			},
		}, now)
		want := []string{"2026-09-30", "2026-10-02", "2026-10-18", "2026-10-19"}
		if len(snap.DailyActivity) != len(want) {
			t.Fatalf("got %d days, want %d", len(snap.DailyActivity), len(want))
		}
		for j, d := range snap.DailyActivity {
			if d.Date != want[j] {
				t.Fatalf("DailyActivity[%d] = %s, want %s", j, d.Date, want[j])
			}
		}
		if snap.TotalVisits() != 62 {
			t.Errorf("TotalVisits = %d, want 62", snap.TotalVisits())
		}
	}
}

// TestFromDocument_AccessEventsDescending verifies newest-first ordering across time encodings.
func TestFromDocument_AccessEventsDescending(t *testing.T) {
	snap := FromDocument(map[string]any{
		FieldAccessEvents: map[string]any{
			"e1": map[string]any{"name": "Ana", "status": "granted", "entry_time": "2026-10-19T08:00:00Z"},
			"e2": map[string]any{"name": "Luis", "status": "denied", "entry_time": now.Add(-time.Hour)},
			"e3": map[string]any{"name": "Sofía", "status": "granted", "entry_time": "2026-10-19 07:15"},
			"e4": map[string]any{"name": "Raúl", "status": "granted", "entry_time": float64(now.Add(-30 * time.Minute).UnixMilli())},
			"e5": map[string]any{"name": "Sin hora", "status": "granted"},
			"e6": "not a map",
		},
	}, now)
	want := []string{"e4", "e2", "e1", "e3", "e5"}
	if len(snap.AccessEvents) != len(want) {
		t.Fatalf("got %d events, want %d", len(snap.AccessEvents), len(want))
	}
	for i, ev := range snap.AccessEvents {
		if ev.ID != want[i] {
			t.Errorf("AccessEvents[%d] = %s, want %s", i, ev.ID, want[i])
		}
	}
	if snap.AccessEvents[1].Status != "denied" || snap.AccessEvents[1].Name != "Luis" {
		t.Errorf("fields not copied: %+v", snap.AccessEvents[1])
	}
}

// TestFromDocument_CurrentMonthRevenue verifies lookup by formatted year-month key.
func TestFromDocument_CurrentMonthRevenue(t *testing.T) {
	snap := FromDocument(map[string]any{
		FieldMonthlyRevenue: map[string]any{
			"2026-09": 51000.5,
			"2026-10": int64(48250),
		},
	}, now)
	if snap.CurrentMonthRevenue != 48250 {
		t.Errorf("CurrentMonthRevenue = %v, want 48250", snap.CurrentMonthRevenue)
	}

	snap = FromDocument(map[string]any{
		FieldMonthlyRevenue: map[string]any{"2026-09": 1.0},
	}, now)
	if snap.CurrentMonthRevenue != 0 {
		t.Errorf("missing month should give 0, got %v", snap.CurrentMonthRevenue)
	}
}

// TestSnapshotWindows verifies LastDays and RecentEvents bounds.
func TestSnapshotWindows(t *testing.T) {
	s := Snapshot{
		DailyActivity: []DayActivity{{Date: "a"}, {Date: "b"}, {Date: "c"}},
		AccessEvents:  []AccessEvent{{ID: "1"}, {ID: "2"}},
	}
	if got := s.LastDays(2); len(got) != 2 || got[0].Date != "b" {
		t.Errorf("LastDays(2) = %+v", got)
	}
	if got := s.RecentEvents(5); len(got) != 2 {
		t.Errorf("RecentEvents(5) = %+v", got)
	}
}
