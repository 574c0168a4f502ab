package projections

import (
	"context"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"gymdesk/internal/domain/class"
	"gymdesk/internal/domain/reservation"
)

// GetScheduleQuery carries query parameters.
type GetScheduleQuery struct {
	// OwnerIDs identify the viewer's reservations (identity user and member record).
	OwnerIDs []string
}

// GetScheduleDeps holds dependencies for GetSchedule.
type GetScheduleDeps struct {
	Classes      Lister[class.Class]
	Reservations Lister[reservation.Reservation]
	Now          func() time.Time
}

// ScheduleEntry is one class session on the coming occurrence of its weekday.
type ScheduleEntry struct {
	Class         class.Class
	Session       class.Session
	Booked        int
	Full          bool
	ReservationID string // the viewer's confirmed reservation, if any
}

// ScheduleDay groups the sessions of one weekday.
type ScheduleDay struct {
	Day     string
	Date    string // next occurrence, today included
	Entries []ScheduleEntry
}

// QueryGetSchedule groups active classes by weekday for the coming week.
// POST: days run Monday..Sunday and omit days without sessions;
// entries within a day are ordered by start time
func QueryGetSchedule(ctx context.Context, query GetScheduleQuery, deps GetScheduleDeps) ([]ScheduleDay, error) {
	var classes []class.Class
	var reservations []reservation.Reservation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { classes, err = deps.Classes.List(gctx); return })
	g.Go(func() (err error) { reservations, err = deps.Reservations.List(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := deps.Now()
	dates := nextDates(now)
	byDay := make(map[string][]ScheduleEntry)
	for _, c := range classes {
		if !c.IsActive() {
			continue
		}
		for _, s := range c.Sessions {
			date := dates[s.Day]
			booked := reservation.CountConfirmed(reservations, c.ID, date)
			entry := ScheduleEntry{Class: c, Session: s, Booked: booked, Full: booked >= c.Capacity}
			for _, r := range reservations {
				if r.ClassID == c.ID && r.Date == date && r.Status == reservation.StatusConfirmed && slices.Contains(query.OwnerIDs, r.UserID) {
					entry.ReservationID = r.ID
					break
				}
			}
			byDay[s.Day] = append(byDay[s.Day], entry)
		}
	}

	var out []ScheduleDay
	for _, day := range class.ValidDays {
		entries := byDay[day]
		if len(entries) == 0 {
			continue
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Session.StartTime < entries[j].Session.StartTime
		})
		out = append(out, ScheduleDay{Day: day, Date: dates[day], Entries: entries})
	}
	return out, nil
}

// nextDates maps each weekday to its next date on or after now.
func nextDates(now time.Time) map[string]string {
	out := make(map[string]string, 7)
	for i := 0; i < 7; i++ {
		d := now.AddDate(0, 0, i)
		out[class.DayOf(d)] = d.Format("2006-01-02")
	}
	return out
}
