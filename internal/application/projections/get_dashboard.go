package projections

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gymdesk/internal/adapters/backend"
	"gymdesk/internal/domain/access"
	"gymdesk/internal/domain/dashboard"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/product"
	"gymdesk/internal/domain/promotion"
)

// GetDashboardDeps holds dependencies for GetDashboard.
type GetDashboardDeps struct {
	Members    Lister[member.Member]
	Products   Lister[product.Product]
	Promotions Lister[promotion.Promotion]
	Access     AccessSource
	Live       LiveSnapshot // optional
	Now        func() time.Time
}

// DashboardView is the staff dashboard read model.
type DashboardView struct {
	Live             dashboard.Snapshot
	LiveAvailable    bool
	MemberCounts     map[string]int
	ActiveMembers    int
	LowStock         []product.Product
	ActivePromotions []promotion.Promotion
	OpenAlerts       []access.Alert
	RecentLogs       []access.Log
	DeniedToday      int
	// Failed maps a section name to the translation key of its error.
	Failed map[string]string
}

const recentLogLimit = 10

// QueryGetDashboard loads every dashboard section concurrently.
// PRE: ctx carries backend credentials
// POST: sections that failed are listed in Failed and left empty;
// a missing sign-in aborts the whole query with backend.ErrNotAuthenticated
func QueryGetDashboard(ctx context.Context, deps GetDashboardDeps) (DashboardView, error) {
	creds, ok := backend.CredentialsFrom(ctx)
	if !ok {
		return DashboardView{}, backend.ErrNotAuthenticated
	}
	now := deps.Now()
	view := DashboardView{Failed: map[string]string{}}
	if deps.Live != nil {
		view.Live, view.LiveAvailable = deps.Live.Latest(creds.TenantID)
	}

	var mu sync.Mutex
	section := func(name string, load func() error) func() error {
		return func() error {
			err := load()
			if err == nil {
				return nil
			}
			if backend.IsUnauthorized(err) {
				return err
			}
			mu.Lock()
			view.Failed[name] = backend.MessageKey(err)
			mu.Unlock()
			return nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(section("members", func() error {
		members, err := deps.Members.List(gctx)
		if err != nil {
			return err
		}
		counts := member.CountByStatus(members)
		mu.Lock()
		view.MemberCounts = counts
		view.ActiveMembers = counts[member.StatusActive]
		mu.Unlock()
		return nil
	}))
	g.Go(section("products", func() error {
		products, err := deps.Products.List(gctx)
		if err != nil {
			return err
		}
		low := product.LowStock(products)
		mu.Lock()
		view.LowStock = low
		mu.Unlock()
		return nil
	}))
	g.Go(section("promotions", func() error {
		promos, err := deps.Promotions.List(gctx)
		if err != nil {
			return err
		}
		active := promotion.ActiveOn(promos, now)
		mu.Lock()
		view.ActivePromotions = active
		mu.Unlock()
		return nil
	}))
	g.Go(section("alerts", func() error {
		alerts, err := deps.Access.Alerts(gctx)
		if err != nil {
			return err
		}
		open := access.Unresolved(alerts)
		mu.Lock()
		view.OpenAlerts = open
		mu.Unlock()
		return nil
	}))
	g.Go(section("logs", func() error {
		logs, err := deps.Access.Logs(gctx)
		if err != nil {
			return err
		}
		access.SortNewestFirst(logs)
		today := now.Format("2006-01-02")
		denied := 0
		for _, l := range logs {
			if !l.IsGranted() && l.Timestamp.In(now.Location()).Format("2006-01-02") == today {
				denied++
			}
		}
		mu.Lock()
		view.RecentLogs = logs[:min(len(logs), recentLogLimit)]
		view.DeniedToday = denied
		mu.Unlock()
		return nil
	}))

	if err := g.Wait(); err != nil {
		return DashboardView{}, err
	}
	return view, nil
}
