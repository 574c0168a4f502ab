package projections

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"gymdesk/internal/domain/class"
	"gymdesk/internal/domain/identity"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/reservation"
	"gymdesk/internal/domain/usermembership"
)

// GetClientDashboardDeps holds dependencies for GetClientDashboard.
type GetClientDashboardDeps struct {
	Members         Lister[member.Member]
	UserMemberships Lister[usermembership.UserMembership]
	Plans           Lister[plan.MembershipPlan]
	Reservations    Lister[reservation.Reservation]
	Classes         Lister[class.Class]
	Now             func() time.Time
}

// MembershipLine is one of the member's memberships with its plan.
type MembershipLine struct {
	Membership    usermembership.UserMembership
	PlanName      string
	DaysRemaining int
}

// ReservationLine is an upcoming reservation with its class.
type ReservationLine struct {
	Reservation reservation.Reservation
	ClassName   string
	Location    string
	StartTime   string
}

// ClientDashboard is the member portal home page.
type ClientDashboard struct {
	Member      member.Member
	HasMember   bool
	Memberships []MembershipLine
	Upcoming    []ReservationLine
}

// QueryGetClientDashboard gathers the signed-in member's memberships and
// upcoming reservations.
// PRE: user is the signed-in principal
// POST: Memberships holds only current memberships, soonest expiry first;
// Upcoming holds confirmed reservations from today on, soonest first
func QueryGetClientDashboard(ctx context.Context, user identity.User, deps GetClientDashboardDeps) (ClientDashboard, error) {
	var (
		members      []member.Member
		memberships  []usermembership.UserMembership
		plans        []plan.MembershipPlan
		reservations []reservation.Reservation
		classes      []class.Class
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { members, err = deps.Members.List(gctx); return })
	g.Go(func() (err error) { memberships, err = deps.UserMemberships.List(gctx); return })
	g.Go(func() (err error) { plans, err = deps.Plans.List(gctx); return })
	g.Go(func() (err error) { reservations, err = deps.Reservations.List(gctx); return })
	g.Go(func() (err error) { classes, err = deps.Classes.List(gctx); return })
	if err := g.Wait(); err != nil {
		return ClientDashboard{}, err
	}

	now := deps.Now()
	out := ClientDashboard{}
	out.Member, out.HasMember = member.FindByEmail(members, user.Email)
	// Membership and reservation records reference the identity user or the member record.
	owner := func(id string) bool { return id == user.ID || (out.HasMember && id == out.Member.ID) }

	planNames := make(map[string]string, len(plans))
	for _, p := range plans {
		planNames[p.ID] = p.Name
	}
	for _, m := range memberships {
		if !owner(m.UserID) || !m.IsCurrent(now) {
			continue
		}
		out.Memberships = append(out.Memberships, MembershipLine{
			Membership:    m,
			PlanName:      planNames[m.PlanID],
			DaysRemaining: m.DaysRemaining(now),
		})
	}
	sort.SliceStable(out.Memberships, func(i, j int) bool {
		return out.Memberships[i].DaysRemaining < out.Memberships[j].DaysRemaining
	})

	byID := make(map[string]class.Class, len(classes))
	for _, c := range classes {
		byID[c.ID] = c
	}
	for _, r := range reservations {
		if !owner(r.UserID) || !r.IsUpcoming(now) {
			continue
		}
		line := ReservationLine{Reservation: r}
		if c, ok := byID[r.ClassID]; ok {
			line.ClassName = c.Name
			line.Location = c.Location
			if sessions := c.SessionsOn(r.SessionDay); len(sessions) > 0 {
				line.StartTime = sessions[0].StartTime
			}
		}
		out.Upcoming = append(out.Upcoming, line)
	}
	sort.SliceStable(out.Upcoming, func(i, j int) bool {
		a, b := out.Upcoming[i], out.Upcoming[j]
		if a.Reservation.Date != b.Reservation.Date {
			return a.Reservation.Date < b.Reservation.Date
		}
		return a.StartTime < b.StartTime
	})
	return out, nil
}
