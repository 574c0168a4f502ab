package projections

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gymdesk/internal/domain/access"
	"gymdesk/internal/domain/class"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/product"
	"gymdesk/internal/domain/promotion"
	"gymdesk/internal/domain/reservation"
	"gymdesk/internal/domain/usermembership"
)

func reportDeps() GetReportSummaryDeps {
	return GetReportSummaryDeps{
		Members: stubLister[member.Member]{items: []member.Member{
			{ID: "m1", Status: member.StatusActive},
			{ID: "m2", Status: member.StatusActive},
			{ID: "m3", Status: member.StatusInactive},
		}},
		Classes: stubLister[class.Class]{items: []class.Class{
			{ID: "c1", Status: class.StatusActive, Sessions: []class.Session{{Day: class.Monday}, {Day: class.Friday}}},
			{ID: "c2", Status: class.StatusCancelled, Sessions: []class.Session{{Day: class.Tuesday}}},
		}},
		Plans: stubLister[plan.MembershipPlan]{items: []plan.MembershipPlan{
			{ID: "p1", Price: 30},
			{ID: "p2", Price: 50},
		}},
		Products: stubLister[product.Product]{items: []product.Product{
			{ID: "x1", PurchasePrice: 10, SalePrice: 20, Stock: 3, MinStock: 5, Status: product.StatusActive},
			{ID: "x2", PurchasePrice: 2, SalePrice: 4, Stock: 10, MinStock: 1, Status: product.StatusActive, ExpirationDate: "2026-01-01"},
		}},
		Promotions: stubLister[promotion.Promotion]{items: []promotion.Promotion{
			{ID: "pr1", Status: promotion.StatusActive, StartDate: "2026-03-01", EndDate: "2026-03-31"},
		}},
		Reservations: stubLister[reservation.Reservation]{items: []reservation.Reservation{
			{ID: "r1", Status: reservation.StatusConfirmed},
			{ID: "r2", Status: reservation.StatusConfirmed},
			{ID: "r3", Status: reservation.StatusCancelled},
		}},
		UserMemberships: stubLister[usermembership.UserMembership]{items: []usermembership.UserMembership{
			{ID: "u1", StartDate: "2026-03-01", EndDate: "2026-03-20", Status: usermembership.StatusActive},
			{ID: "u2", StartDate: "2026-01-01", EndDate: "2026-12-31", Status: usermembership.StatusActive},
			{ID: "u3", StartDate: "2025-01-01", EndDate: "2025-02-01", Status: usermembership.StatusExpired},
		}},
		Access: stubAccess{
			logs: []access.Log{
				{ID: "l1", Status: access.StatusGranted},
				{ID: "l2", Status: access.StatusGranted},
				{ID: "l3", Status: access.StatusDenied},
			},
			alerts: []access.Alert{{ID: "a1"}},
		},
		Now: testNow,
	}
}

func TestQueryGetReportSummary_Aggregates(t *testing.T) {
	s, err := QueryGetReportSummary(signedIn(), reportDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checks := []struct {
		name      string
		got, want any
	}{
		{"MembersTotal", s.MembersTotal, 3},
		{"active members", s.MembersByStatus[member.StatusActive], 2},
		{"ActiveClasses", s.ActiveClasses, 1},
		{"CancelledClasses", s.CancelledClasses, 1},
		{"WeeklySessions", s.WeeklySessions, 2},
		{"AvgPlanPrice", s.AvgPlanPrice, 40.0},
		{"LowStock", s.LowStock, 1},
		{"Expired", s.Expired, 1},
		{"InventoryCost", s.InventoryCost, 50.0},
		{"InventoryRetail", s.InventoryRetail, 100.0},
		{"ActivePromotions", s.ActivePromotions, 1},
		{"confirmed reservations", s.ReservationsByStatus[reservation.StatusConfirmed], 2},
		{"ActiveMemberships", s.ActiveMemberships, 2},
		{"ExpiringSoon", s.ExpiringSoon, 1},
		{"AccessGranted", s.AccessGranted, 2},
		{"AccessDenied", s.AccessDenied, 1},
		{"OpenAlerts", s.OpenAlerts, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if !s.GeneratedAt.Equal(fixedNow) {
		t.Errorf("GeneratedAt = %v", s.GeneratedAt)
	}
}

func TestQueryGetReportSummary_AnyFailureFails(t *testing.T) {
	deps := reportDeps()
	deps.Access = stubAccess{alertsErr: upstreamErr(500)}
	if _, err := QueryGetReportSummary(signedIn(), deps); err == nil {
		t.Fatal("expected error")
	}
}

func TestReportSummary_Document(t *testing.T) {
	s, err := QueryGetReportSummary(signedIn(), reportDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := func(locale, key string, args ...any) string {
		if len(args) > 0 {
			return locale + ":" + key + ":" + fmt.Sprint(args...)
		}
		return locale + ":" + key
	}

	doc := s.Document(tr, "en")
	if doc.Title != "en:reports.title" {
		t.Errorf("Title = %q", doc.Title)
	}
	if !strings.Contains(doc.Subtitle, fixedNow.Format("2006-01-02 15:04")) {
		t.Errorf("Subtitle = %q", doc.Subtitle)
	}
	if len(doc.Sections) != 7 {
		t.Fatalf("Sections = %d, want 7", len(doc.Sections))
	}
	members := doc.Sections[0]
	if members.Heading != "en:nav.members" || len(members.Rows) != len(member.ValidStatuses)+1 {
		t.Errorf("members section = %+v", members)
	}
	if members.Rows[0].Value != "2" {
		t.Errorf("active members row = %+v", members.Rows[0])
	}
}

func TestReportSummary_DocumentEmpty(t *testing.T) {
	doc := ReportSummary{GeneratedAt: time.Unix(0, 0).UTC()}.Document(func(l, k string, _ ...any) string { return k }, "es")
	if doc.EmptyText != "reports.empty" {
		t.Errorf("EmptyText = %q", doc.EmptyText)
	}
}
