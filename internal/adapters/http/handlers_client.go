package web

import (
	"errors"
	"net/http"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/identity"
)

// clientUser returns the signed-in member, answering 401 when there is none.
func (s *server) clientUser(w http.ResponseWriter, r *http.Request) (identity.User, bool) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
	return user, ok
}

// ownMemberID returns the member record ID linked to user's email, or "".
func (s *server) ownMemberID(r *http.Request, user identity.User) (string, error) {
	m, err := orchestrators.FindOwnMember(r.Context(), user.Email, s.Services.Members)
	if errors.Is(err, orchestrators.ErrNoMemberRecord) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// handleClientDashboard handles GET /client.
func (s *server) handleClientDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := s.clientUser(w, r)
	if !ok {
		return
	}
	svc := s.Services
	view, err := projections.QueryGetClientDashboard(r.Context(), user, projections.GetClientDashboardDeps{
		Members:         svc.Members,
		UserMemberships: svc.UserMemberships,
		Plans:           svc.Plans,
		Reservations:    svc.Reservations,
		Classes:         svc.Classes,
		Now:             s.Now,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, view)
		return
	}
	s.render(w, r, "client.html", http.StatusOK, map[string]any{"View": view})
}

// handleClientProfile handles GET /client/profile.
func (s *server) handleClientProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := s.clientUser(w, r)
	if !ok {
		return
	}
	m, err := orchestrators.FindOwnMember(r.Context(), user.Email, s.Services.Members)
	linked := err == nil
	if err != nil && !errors.Is(err, orchestrators.ErrNoMemberRecord) {
		s.fail(w, r, err)
		return
	}
	if !isHTMLRequest(r) {
		if !linked {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
		return
	}
	s.render(w, r, "client_profile.html", http.StatusOK, map[string]any{
		"Member": m,
		"Linked": linked,
	})
}

// handleUpdateProfile handles POST /client/profile.
func (s *server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := s.clientUser(w, r)
	if !ok {
		return
	}
	input := orchestrators.UpdateProfileInput{Email: user.Email}
	if isJSONBody(r) {
		var body struct {
			Name string `json:"name"`
		}
		if err := strictDecode(r, &body); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		input.Name = body.Name
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input.Name = r.FormValue("name")
	}

	updated, err := orchestrators.ExecuteUpdateProfile(r.Context(), input, s.Services.Members)
	if err != nil {
		if isHTMLRequest(r) && !errors.Is(err, orchestrators.ErrNoMemberRecord) {
			status, msg := s.describeError(r, err)
			s.render(w, r, "client_profile.html", status, map[string]any{
				"Member": map[string]string{"Name": input.Name, "Email": user.Email},
				"Linked": true,
				"Error":  msg,
			})
			return
		}
		s.fail(w, r, err)
		return
	}
	if isHTMLRequest(r) {
		http.Redirect(w, r, "/client/profile?ok=profile", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleClientSchedule handles GET /client/schedule.
func (s *server) handleClientSchedule(w http.ResponseWriter, r *http.Request) {
	user, ok := s.clientUser(w, r)
	if !ok {
		return
	}
	owners := []string{user.ID}
	memberID, err := s.ownMemberID(r, user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if memberID != "" {
		owners = append(owners, memberID)
	}
	days, err := projections.QueryGetSchedule(r.Context(), projections.GetScheduleQuery{OwnerIDs: owners}, projections.GetScheduleDeps{
		Classes:      s.Services.Classes,
		Reservations: s.Services.Reservations,
		Now:          s.Now,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, days)
		return
	}
	s.render(w, r, "client_schedule.html", http.StatusOK, map[string]any{"Days": days})
}

// handleReserve handles POST /client/reservations.
func (s *server) handleReserve(w http.ResponseWriter, r *http.Request) {
	user, ok := s.clientUser(w, r)
	if !ok {
		return
	}
	var input orchestrators.ReserveClassInput
	if isJSONBody(r) {
		var body struct {
			ClassID string `json:"class_id"`
			Date    string `json:"date"`
		}
		if err := strictDecode(r, &body); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		input.ClassID, input.Date = body.ClassID, body.Date
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input.ClassID, input.Date = r.FormValue("class_id"), r.FormValue("date")
	}

	memberID, err := s.ownMemberID(r, user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	input.UserID = user.ID
	if memberID != "" {
		input.UserID = memberID
	}

	created, err := orchestrators.ExecuteReserveClass(r.Context(), input, orchestrators.ReserveClassDeps{
		Classes:      s.Services.Classes,
		Reservations: s.Services.Reservations,
		Now:          s.Now,
	})
	if err != nil {
		s.fail(w, r, badInput(err))
		return
	}
	if isHTMLRequest(r) {
		http.Redirect(w, r, "/client/schedule?ok=reserved", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleCancelOwnReservation handles POST /client/reservations/{id}/cancel.
func (s *server) handleCancelOwnReservation(w http.ResponseWriter, r *http.Request) {
	user, ok := s.clientUser(w, r)
	if !ok {
		return
	}
	memberID, err := s.ownMemberID(r, user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := orchestrators.ExecuteCancelReservation(r.Context(), orchestrators.CancelReservationInput{
		ReservationID: r.PathValue("id"),
		UserID:        user.ID,
		MemberID:      memberID,
	}, s.Services.Reservations)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if isHTMLRequest(r) {
		http.Redirect(w, r, "/client?ok=saved", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
