package projections

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"gymdesk/internal/adapters/i18n"
	"gymdesk/internal/adapters/report"
	"gymdesk/internal/domain/access"
	"gymdesk/internal/domain/class"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/product"
	"gymdesk/internal/domain/promotion"
	"gymdesk/internal/domain/reservation"
	"gymdesk/internal/domain/usermembership"
)

// ExpiringSoonDays is the window for memberships flagged as expiring.
const ExpiringSoonDays = 7

// GetReportSummaryDeps holds dependencies for GetReportSummary.
type GetReportSummaryDeps struct {
	Members         Lister[member.Member]
	Classes         Lister[class.Class]
	Plans           Lister[plan.MembershipPlan]
	Products        Lister[product.Product]
	Promotions      Lister[promotion.Promotion]
	Reservations    Lister[reservation.Reservation]
	UserMemberships Lister[usermembership.UserMembership]
	Access          AccessSource
	Now             func() time.Time
}

// ReportSummary aggregates figures across every service.
type ReportSummary struct {
	GeneratedAt time.Time

	MembersByStatus map[string]int
	MembersTotal    int

	ActiveClasses    int
	CancelledClasses int
	WeeklySessions   int

	Plans        int
	AvgPlanPrice float64

	Products        int
	LowStock        int
	Expired         int
	InventoryCost   float64
	InventoryRetail float64

	ActivePromotions int

	ReservationsByStatus map[string]int

	ActiveMemberships int
	ExpiringSoon      int

	AccessGranted int
	AccessDenied  int
	OpenAlerts    int
}

// QueryGetReportSummary loads every service concurrently and aggregates.
// PRE: ctx carries backend credentials
// POST: any upstream failure fails the whole report
func QueryGetReportSummary(ctx context.Context, deps GetReportSummaryDeps) (ReportSummary, error) {
	var (
		members      []member.Member
		classes      []class.Class
		plans        []plan.MembershipPlan
		products     []product.Product
		promos       []promotion.Promotion
		reservations []reservation.Reservation
		memberships  []usermembership.UserMembership
		logs         []access.Log
		alerts       []access.Alert
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { members, err = deps.Members.List(gctx); return })
	g.Go(func() (err error) { classes, err = deps.Classes.List(gctx); return })
	g.Go(func() (err error) { plans, err = deps.Plans.List(gctx); return })
	g.Go(func() (err error) { products, err = deps.Products.List(gctx); return })
	g.Go(func() (err error) { promos, err = deps.Promotions.List(gctx); return })
	g.Go(func() (err error) { reservations, err = deps.Reservations.List(gctx); return })
	g.Go(func() (err error) { memberships, err = deps.UserMemberships.List(gctx); return })
	g.Go(func() (err error) { logs, err = deps.Access.Logs(gctx); return })
	g.Go(func() (err error) { alerts, err = deps.Access.Alerts(gctx); return })
	if err := g.Wait(); err != nil {
		return ReportSummary{}, err
	}

	now := deps.Now()
	s := ReportSummary{
		GeneratedAt:          now,
		MembersByStatus:      member.CountByStatus(members),
		MembersTotal:         len(members),
		Plans:                len(plans),
		Products:             len(products),
		LowStock:             len(product.LowStock(products)),
		ActivePromotions:     len(promotion.ActiveOn(promos, now)),
		ReservationsByStatus: map[string]int{},
		AccessDenied:         access.DeniedCount(logs),
		OpenAlerts:           len(access.Unresolved(alerts)),
	}
	s.AccessGranted = len(logs) - s.AccessDenied

	for _, c := range classes {
		if c.IsActive() {
			s.ActiveClasses++
			s.WeeklySessions += len(c.Sessions)
		} else {
			s.CancelledClasses++
		}
	}
	if len(plans) > 0 {
		total := 0.0
		for _, p := range plans {
			total += p.Price
		}
		s.AvgPlanPrice = total / float64(len(plans))
	}
	for _, p := range products {
		if p.IsExpired(now) {
			s.Expired++
		}
		s.InventoryCost += p.PurchasePrice * float64(p.Stock)
		s.InventoryRetail += p.SalePrice * float64(p.Stock)
	}
	for _, r := range reservations {
		s.ReservationsByStatus[r.Status]++
	}
	for _, m := range memberships {
		if !m.IsCurrent(now) {
			continue
		}
		s.ActiveMemberships++
		if m.DaysRemaining(now) <= ExpiringSoonDays {
			s.ExpiringSoon++
		}
	}
	return s, nil
}

// Document lays the summary out for PDF export in locale.
func (s ReportSummary) Document(t func(locale, key string, args ...any) string, locale string) report.Summary {
	money := func(v float64) string { return i18n.FormatMoney(locale, v) }
	count := func(n int) string { return fmt.Sprintf("%d", n) }
	members := report.Section{Heading: t(locale, "nav.members")}
	for _, status := range member.ValidStatuses {
		members.Rows = append(members.Rows, report.Row{Label: t(locale, "status."+status), Value: count(s.MembersByStatus[status])})
	}
	members.Rows = append(members.Rows, report.Row{Label: t(locale, "reports.total"), Value: count(s.MembersTotal)})

	reservations := report.Section{Heading: t(locale, "nav.reservations")}
	for _, status := range []string{reservation.StatusConfirmed, reservation.StatusAttended, reservation.StatusCancelled} {
		reservations.Rows = append(reservations.Rows, report.Row{Label: t(locale, "status."+status), Value: count(s.ReservationsByStatus[status])})
	}

	return report.Summary{
		Title:     t(locale, "reports.title"),
		Subtitle:  t(locale, "reports.generated", s.GeneratedAt.Format("2006-01-02 15:04")),
		EmptyText: t(locale, "reports.empty"),
		Sections: []report.Section{
			members,
			{Heading: t(locale, "nav.classes"), Rows: []report.Row{
				{Label: t(locale, "reports.active_classes"), Value: count(s.ActiveClasses)},
				{Label: t(locale, "reports.cancelled_classes"), Value: count(s.CancelledClasses)},
				{Label: t(locale, "reports.weekly_sessions"), Value: count(s.WeeklySessions)},
			}},
			{Heading: t(locale, "nav.plans"), Rows: []report.Row{
				{Label: t(locale, "reports.total"), Value: count(s.Plans)},
				{Label: t(locale, "reports.avg_price"), Value: money(s.AvgPlanPrice)},
				{Label: t(locale, "reports.active_memberships"), Value: count(s.ActiveMemberships)},
				{Label: t(locale, "reports.expiring_soon"), Value: count(s.ExpiringSoon)},
			}},
			{Heading: t(locale, "nav.products"), Rows: []report.Row{
				{Label: t(locale, "reports.total"), Value: count(s.Products)},
				{Label: t(locale, "reports.low_stock"), Value: count(s.LowStock)},
				{Label: t(locale, "reports.expired"), Value: count(s.Expired)},
				{Label: t(locale, "reports.inventory_cost"), Value: money(s.InventoryCost)},
				{Label: t(locale, "reports.inventory_retail"), Value: money(s.InventoryRetail)},
			}},
			{Heading: t(locale, "nav.promotions"), Rows: []report.Row{
				{Label: t(locale, "reports.active_promotions"), Value: count(s.ActivePromotions)},
			}},
			reservations,
			{Heading: t(locale, "nav.access"), Rows: []report.Row{
				{Label: t(locale, "reports.access_granted"), Value: count(s.AccessGranted)},
				{Label: t(locale, "reports.access_denied"), Value: count(s.AccessDenied)},
				{Label: t(locale, "reports.open_alerts"), Value: count(s.OpenAlerts)},
			}},
		},
	}
}
