// Package dashboard reshapes the realtime metrics document into the lists
// and figures rendered by the staff dashboard.
package dashboard

import (
	"sort"
	"strconv"
	"time"
)

// Top-level document fields.
const (
	FieldAccessEvents   = "access_events"
	FieldDailyActivity  = "daily_activity"
	FieldMonthlyRevenue = "monthly_revenue"
)

// Access event fields.
const (
	eventName      = "name"
	eventMemberID  = "member_id"
	eventStatus    = "status"
	eventEntryTime = "entry_time"
)

// DateLayout is the key format of the per-day activity map.
const DateLayout = "2006-01-02"

// MonthLayout is the key format of the per-month revenue map.
const MonthLayout = "2006-01"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// AccessEvent is one entry from the access_events map.
type AccessEvent struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"member_id,omitempty"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	EntryTime time.Time `json:"entry_time"`
}

// DayActivity is the visit count for one calendar day.
type DayActivity struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Snapshot is the shaped form of one realtime document version.
type Snapshot struct {
	AccessEvents        []AccessEvent `json:"access_events"`
	DailyActivity       []DayActivity `json:"daily_activity"`
	CurrentMonth        string        `json:"current_month"`
	CurrentMonthRevenue float64       `json:"current_month_revenue"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// FromDocument flattens the nested maps of a realtime document.
// PRE: data is the raw document (nil for a missing document)
// POST: AccessEvents sorted by entry time descending (unparseable times last);
// DailyActivity sorted by date ascending with non-date keys dropped;
// CurrentMonthRevenue is the revenue under now's year-month key, 0 if absent
func FromDocument(data map[string]any, now time.Time) Snapshot {
	snap := Snapshot{
		AccessEvents:  []AccessEvent{},
		DailyActivity: []DayActivity{},
		CurrentMonth:  now.Format(MonthLayout),
		UpdatedAt:     now,
	}
	if data == nil {
		return snap
	}
	snap.AccessEvents = accessEvents(asMap(data[FieldAccessEvents]))
	snap.DailyActivity = dailyActivity(asMap(data[FieldDailyActivity]))
	if rev, ok := asFloat(asMap(data[FieldMonthlyRevenue])[snap.CurrentMonth]); ok {
		snap.CurrentMonthRevenue = rev
	}
	return snap
}

// TotalVisits sums the per-day activity counts.
func (s Snapshot) TotalVisits() int64 {
	var n int64
	for _, d := range s.DailyActivity {
		n += d.Count
	}
	return n
}

// LastDays returns at most n trailing entries of DailyActivity.
func (s Snapshot) LastDays(n int) []DayActivity {
	if n <= 0 || len(s.DailyActivity) <= n {
		return s.DailyActivity
	}
	return s.DailyActivity[len(s.DailyActivity)-n:]
}

// RecentEvents returns at most n of the newest access events.
func (s Snapshot) RecentEvents(n int) []AccessEvent {
	if n <= 0 || len(s.AccessEvents) <= n {
		return s.AccessEvents
	}
	return s.AccessEvents[:n]
}

func accessEvents(m map[string]any) []AccessEvent {
	events := make([]AccessEvent, 0, len(m))
	for id, raw := range m {
		fields := asMap(raw)
		if fields == nil {
			continue
		}
		ev := AccessEvent{
			ID:       id,
			MemberID: asString(fields[eventMemberID]),
			Name:     asString(fields[eventName]),
			Status:   asString(fields[eventStatus]),
		}
		ev.EntryTime, _ = asTime(fields[eventEntryTime])
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i].EntryTime, events[j].EntryTime
		switch {
		case a.IsZero() != b.IsZero():
			return b.IsZero()
		case !a.Equal(b):
			return a.After(b)
		default:
			return events[i].ID < events[j].ID
		}
	})
	return events
}

func dailyActivity(m map[string]any) []DayActivity {
	type dated struct {
		day DayActivity
		t   time.Time
	}
	rows := make([]dated, 0, len(m))
	for key, raw := range m {
		t, err := time.Parse(DateLayout, key)
		if err != nil {
			continue
		}
		count, _ := asFloat(raw)
		rows = append(rows, dated{day: DayActivity{Date: key, Count: int64(count)}, t: t})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].t.Before(rows[j].t) })
	out := make([]DayActivity, len(rows))
	for i, r := range rows {
		out[i] = r.day
	}
	return out
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	// Numeric values are epoch milliseconds.
	if ms, ok := asFloat(v); ok && ms > 0 {
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return time.Time{}, false
}
