package web

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/report"
	"gymdesk/internal/application/collection"
	"gymdesk/internal/application/listutil"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/access"
	"gymdesk/internal/domain/member"
)

// handleDashboard handles GET /dashboard.
func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	deps := projections.GetDashboardDeps{
		Members:    s.Services.Members,
		Products:   s.Services.Products,
		Promotions: s.Services.Promotions,
		Access:     s.Services.NFC,
		Now:        s.Now,
	}
	if s.Live != nil {
		deps.Live = s.Live
	}
	view, err := projections.QueryGetDashboard(r.Context(), deps)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, view)
		return
	}
	failed := make(map[string]string, len(view.Failed))
	for section, key := range view.Failed {
		failed[section] = s.t(r, key)
	}
	s.render(w, r, "dashboard.html", http.StatusOK, map[string]any{
		"View":       view,
		"Failed":     failed,
		"Visits":     view.Live.LastDays(7),
		"LiveFeed":   s.Live != nil,
		"RecentLive": view.Live.RecentEvents(10),
	})
}

// handleLiveDashboard handles GET /ws/dashboard for the signed-in user's gym.
func (s *server) handleLiveDashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	s.Live.ServeTenant(w, r, sess.TenantID)
}

// accessLogLimit caps the log rows on the access page.
const accessLogLimit = 50

// accessView loads logs, alerts and the member picker for the access page.
func (s *server) accessView(r *http.Request) (map[string]any, error) {
	ctx := r.Context()
	logs, err := s.Services.NFC.Logs(ctx)
	if err != nil {
		return nil, err
	}
	alerts, err := s.Services.NFC.Alerts(ctx)
	if err != nil {
		return nil, err
	}
	members := collection.New(s.Services.Members)
	if err := members.Load(ctx); err != nil {
		return nil, err
	}

	lp := listutil.ParseListParams(r.URL.Query(), "status")
	if st := lp.Filters["status"]; st != "" {
		kept := logs[:0]
		for _, l := range logs {
			if l.Status == st {
				kept = append(kept, l)
			}
		}
		logs = kept
	}
	access.SortNewestFirst(logs)
	lp.PerPage = accessLogLimit
	page, info := listutil.Paginate(logs, lp.PageParams)

	return map[string]any{
		"Logs":       page,
		"Page":       info,
		"ListParams": lp,
		"Denied":     access.DeniedCount(logs),
		"Alerts":     access.Unresolved(alerts),
		"Members":    member.FilterByStatus(members.Items(), member.FilterAll),
	}, nil
}

// handleAccess handles GET /access.
func (s *server) handleAccess(w http.ResponseWriter, r *http.Request) {
	data, err := s.accessView(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, map[string]any{"logs": data["Logs"], "alerts": data["Alerts"], "page": data["Page"]})
		return
	}
	s.render(w, r, "access.html", http.StatusOK, data)
}

// handlePair handles POST /access/pair.
func (s *server) handlePair(w http.ResponseWriter, r *http.Request) {
	input := orchestrators.GeneratePairingCodeInput{Locale: localeOf(r)}
	if isJSONBody(r) {
		var body struct {
			MemberID string `json:"member_id"`
		}
		if err := strictDecode(r, &body); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		input.MemberID = body.MemberID
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input.MemberID = r.FormValue("member_id")
	}

	deps := orchestrators.GeneratePairingCodeDeps{
		NFC:       s.Services.NFC,
		Members:   s.Services.Members,
		Translate: s.Translator.T,
	}
	if s.Sender != nil {
		deps.Sender = s.Sender
	}
	result, err := orchestrators.ExecuteGeneratePairingCode(r.Context(), input, deps)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"code":       result.Code.Code,
			"member_id":  result.Code.MemberID,
			"expires_at": result.Code.ExpiresAt,
			"emailed":    result.Emailed,
		})
		return
	}
	data, err := s.accessView(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data["Pairing"] = result
	s.render(w, r, "access.html", http.StatusOK, data)
}

// handleUnpair handles POST /access/unpair.
func (s *server) handleUnpair(w http.ResponseWriter, r *http.Request) {
	memberID := ""
	if isJSONBody(r) {
		var body struct {
			MemberID string `json:"member_id"`
		}
		if err := strictDecode(r, &body); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		memberID = body.MemberID
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		memberID = r.FormValue("member_id")
	}
	if err := orchestrators.ExecuteUnpairMember(r.Context(), memberID, s.Services.NFC); err != nil {
		s.fail(w, r, err)
		return
	}
	if isHTMLRequest(r) {
		http.Redirect(w, r, "/access?ok=saved", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResolveAlert handles POST /access/alerts/{id}/resolve.
func (s *server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.Services.NFC.ResolveAlert(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	if isHTMLRequest(r) {
		http.Redirect(w, r, "/access?ok=saved", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) reportSummary(r *http.Request) (projections.ReportSummary, error) {
	svc := s.Services
	return projections.QueryGetReportSummary(r.Context(), projections.GetReportSummaryDeps{
		Members:         svc.Members,
		Classes:         svc.Classes,
		Plans:           svc.Plans,
		Products:        svc.Products,
		Promotions:      svc.Promotions,
		Reservations:    svc.Reservations,
		UserMemberships: svc.UserMemberships,
		Access:          svc.NFC,
		Now:             s.Now,
	})
}

// handleReports handles GET /reports.
func (s *server) handleReports(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reportSummary(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, summary)
		return
	}
	s.render(w, r, "reports.html", http.StatusOK, map[string]any{
		"Summary":  summary,
		"Document": summary.Document(s.Translator.T, localeOf(r)),
	})
}

// handleReportPDF handles GET /reports/summary.pdf.
func (s *server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reportSummary(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteSummaryPDF(&buf, summary.Document(s.Translator.T, localeOf(r))); err != nil {
		internalError(w, err)
		return
	}
	name := fmt.Sprintf("report-%s.pdf", summary.GeneratedAt.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	_, _ = buf.WriteTo(w)
}

// DefaultPerfWindow is how far back the perf page looks by default.
const DefaultPerfWindow = time.Hour

const perfTopN = 10

// handlePerf handles GET /admin/perf.
func (s *server) handlePerf(w http.ResponseWriter, r *http.Request) {
	window := DefaultPerfWindow
	if d, err := time.ParseDuration(r.URL.Query().Get("window")); err == nil && d > 0 {
		window = d
	}
	snap := s.Perf.Snapshot(s.Now().Add(-window), perfTopN)
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	s.render(w, r, "perf.html", http.StatusOK, map[string]any{
		"Snapshot": snap,
		"Window":   window.String(),
		"Kinds": []struct {
			Key   string
			Stats perf.KindStats
		}{
			{"perf.slowest_requests", snap.Requests},
			{"perf.slowest_queries", snap.Queries},
			{"perf.slowest_upstream", snap.Upstream},
		},
	})
}
