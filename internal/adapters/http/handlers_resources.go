package web

import (
	"net/http"
	"net/url"

	"gymdesk/internal/application/collection"
	"gymdesk/internal/application/listutil"
	"gymdesk/internal/domain/class"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/personal"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/product"
	"gymdesk/internal/domain/promotion"
	"gymdesk/internal/domain/reservation"
	"gymdesk/internal/domain/usermembership"
)

// resourcePage serves the list and CRUD routes of one backend resource.
// HTML forms post to /{path}, /{path}/{id} and /{path}/{id}/delete; JSON
// clients use POST, PUT|PATCH and DELETE.
type resourcePage[T collection.Keyed] struct {
	s        *server
	path     string // e.g. "/members"
	template string
	source   collection.Source[T]
	// decodeForm reads a record from an HTML form submission.
	decodeForm func(r *http.Request) (T, error)
	validate   func(v T) error
	// view loads col and returns the list page data. Nil lists every record.
	view func(r *http.Request, col *collection.Collection[T]) map[string]any
}

func (p *resourcePage[T]) register(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	mux.Handle("GET "+p.path, guard(http.HandlerFunc(p.list)))
	mux.Handle("POST "+p.path, guard(http.HandlerFunc(p.create)))
	mux.Handle("POST "+p.path+"/{id}", guard(http.HandlerFunc(p.update)))
	mux.Handle("PUT "+p.path+"/{id}", guard(http.HandlerFunc(p.update)))
	mux.Handle("PATCH "+p.path+"/{id}", guard(http.HandlerFunc(p.update)))
	mux.Handle("POST "+p.path+"/{id}/delete", guard(http.HandlerFunc(p.remove)))
	mux.Handle("DELETE "+p.path+"/{id}", guard(http.HandlerFunc(p.remove)))
}

// listData loads col and builds the page data.
func (p *resourcePage[T]) listData(r *http.Request, col *collection.Collection[T]) map[string]any {
	if p.view != nil {
		return p.view(r, col)
	}
	_ = col.Load(r.Context())
	lp := listutil.ParseListParams(r.URL.Query())
	items, page := listutil.Paginate(col.Items(), lp.PageParams)
	return map[string]any{
		"Items":      items,
		"Page":       page,
		"ListParams": lp,
		"ErrorKey":   col.Error(),
	}
}

func (p *resourcePage[T]) list(w http.ResponseWriter, r *http.Request) {
	col := collection.New(p.source)
	data := p.listData(r, col)
	if !isHTMLRequest(r) {
		if err := col.Err(); err != nil {
			p.s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, data)
		return
	}
	if key, _ := data["ErrorKey"].(string); key != "" {
		data["Error"] = p.s.t(r, key)
	}
	p.s.render(w, r, p.template, http.StatusOK, data)
}

// read decodes a record from a JSON body or a form and validates it.
func (p *resourcePage[T]) read(r *http.Request) (T, error) {
	var v T
	var err error
	if isJSONBody(r) {
		err = strictDecode(r, &v)
	} else {
		v, err = p.decodeForm(r)
	}
	if err != nil {
		return v, badInput(err)
	}
	if err := p.validate(v); err != nil {
		return v, badInput(err)
	}
	return v, nil
}

func (p *resourcePage[T]) create(w http.ResponseWriter, r *http.Request) {
	v, err := p.read(r)
	if err != nil {
		p.failed(w, r, nil, err)
		return
	}
	col := collection.New(p.source)
	created, err := col.Create(r.Context(), v)
	if err != nil {
		p.failed(w, r, col, err)
		return
	}
	p.done(w, r, http.StatusCreated, "created", created)
}

func (p *resourcePage[T]) update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, err := p.read(r)
	if err != nil {
		p.failed(w, r, nil, err)
		return
	}
	col := collection.New(p.source)
	updated, err := col.Update(r.Context(), id, v)
	if err != nil {
		p.failed(w, r, col, err)
		return
	}
	p.done(w, r, http.StatusOK, "saved", updated)
}

func (p *resourcePage[T]) remove(w http.ResponseWriter, r *http.Request) {
	col := collection.New(p.source)
	if err := col.Delete(r.Context(), r.PathValue("id")); err != nil {
		p.failed(w, r, col, err)
		return
	}
	if isHTMLRequest(r) {
		http.Redirect(w, r, p.path+"?ok=deleted", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p *resourcePage[T]) done(w http.ResponseWriter, r *http.Request, status int, marker string, v T) {
	if isHTMLRequest(r) {
		http.Redirect(w, r, p.path+"?ok="+url.QueryEscape(marker), http.StatusSeeOther)
		return
	}
	writeJSON(w, status, v)
}

// failed re-renders the list page with the error for browsers.
func (p *resourcePage[T]) failed(w http.ResponseWriter, r *http.Request, col *collection.Collection[T], err error) {
	if !isHTMLRequest(r) {
		p.s.fail(w, r, err)
		return
	}
	status, msg := p.s.describeError(r, err)
	if col == nil {
		col = collection.New(p.source)
	}
	// The page reloads from the query string only.
	data := p.listData(r, col)
	data["Error"] = msg
	p.s.render(w, r, p.template, status, data)
}

// registerResources wires the CRUD pages for every staff-managed resource.
func (s *server) registerResources(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	svc := s.Services
	(&resourcePage[member.Member]{
		s: s, path: "/members", template: "members.html",
		source: svc.Members, decodeForm: decodeMemberForm,
		validate: func(m member.Member) error { return m.Validate() },
		view:     s.memberListView,
	}).register(mux, guard)
	(&resourcePage[class.Class]{
		s: s, path: "/classes", template: "classes.html",
		source: svc.Classes, decodeForm: decodeClassForm,
		validate: func(c class.Class) error { return c.Validate() },
	}).register(mux, guard)
	(&resourcePage[plan.MembershipPlan]{
		s: s, path: "/plans", template: "plans.html",
		source: svc.Plans, decodeForm: decodePlanForm,
		validate: func(p plan.MembershipPlan) error { return p.Validate() },
	}).register(mux, guard)
	(&resourcePage[product.Product]{
		s: s, path: "/products", template: "products.html",
		source: svc.Products, decodeForm: s.decodeProductEdit,
		validate: func(p product.Product) error { return p.Validate() },
		view:     s.productListView,
	}).register(mux, guard)
	(&resourcePage[promotion.Promotion]{
		s: s, path: "/promotions", template: "promotions.html",
		source: svc.Promotions, decodeForm: decodePromotionForm,
		validate: func(p promotion.Promotion) error { return p.Validate() },
		view:     s.promotionListView,
	}).register(mux, guard)
	(&resourcePage[personal.Personal]{
		s: s, path: "/personal", template: "personal.html",
		source: svc.Personal, decodeForm: decodePersonalForm,
		validate: func(p personal.Personal) error { return p.Validate() },
	}).register(mux, guard)
	(&resourcePage[reservation.Reservation]{
		s: s, path: "/reservations", template: "reservations.html",
		source: svc.Reservations, decodeForm: decodeReservationForm,
		validate: func(r reservation.Reservation) error { return r.Validate() },
		view:     s.reservationListView,
	}).register(mux, guard)
	(&resourcePage[usermembership.UserMembership]{
		s: s, path: "/user-memberships", template: "user_memberships.html",
		source: svc.UserMemberships, decodeForm: s.decodeUserMembershipForm,
		validate: func(m usermembership.UserMembership) error { return m.Validate() },
		view:     s.userMembershipListView,
	}).register(mux, guard)
}
