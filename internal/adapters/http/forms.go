package web

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"gymdesk/internal/application/collection"
	"gymdesk/internal/application/listutil"
	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/class"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/personal"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/product"
	"gymdesk/internal/domain/promotion"
	"gymdesk/internal/domain/reservation"
	"gymdesk/internal/domain/usermembership"
)

// maxFormBytes bounds a multipart product form: the image plus its fields.
const maxFormBytes = product.MaxImageBytes + 1<<20

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxFormBytes)
	}
	return r.ParseForm()
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

func formInt(r *http.Request, key string) (int, error) {
	raw := formValue(r, key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number", key)
	}
	return n, nil
}

func formFloat(r *http.Request, key string) (float64, error) {
	raw := strings.ReplaceAll(formValue(r, key), ",", ".")
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return f, nil
}

func decodeMemberForm(r *http.Request) (member.Member, error) {
	if err := parseForm(r); err != nil {
		return member.Member{}, err
	}
	return member.Member{
		Name:     formValue(r, "name"),
		Email:    formValue(r, "email"),
		NFCID:    formValue(r, "nfc_id"),
		Status:   formValue(r, "status"),
		JoinDate: formValue(r, "join_date"),
	}, nil
}

// decodeClassForm reads sessions from the parallel session_day,
// session_start and session_end fields, keeping their order.
func decodeClassForm(r *http.Request) (class.Class, error) {
	if err := parseForm(r); err != nil {
		return class.Class{}, err
	}
	capacity, err := formInt(r, "capacity")
	if err != nil {
		return class.Class{}, err
	}
	c := class.Class{
		Name:        formValue(r, "name"),
		Description: formValue(r, "description"),
		Instructor:  formValue(r, "instructor"),
		Capacity:    capacity,
		Location:    formValue(r, "location"),
		Status:      formValue(r, "status"),
		Sessions:    []class.Session{},
	}
	days := r.Form["session_day"]
	starts := r.Form["session_start"]
	ends := r.Form["session_end"]
	if len(starts) != len(days) || len(ends) != len(days) {
		return c, errors.New("every session needs a day, a start and an end")
	}
	for i, day := range days {
		if day == "" && starts[i] == "" && ends[i] == "" {
			continue
		}
		c.Sessions = append(c.Sessions, class.Session{Day: day, StartTime: starts[i], EndTime: ends[i]})
	}
	return c, nil
}

func decodePlanForm(r *http.Request) (plan.MembershipPlan, error) {
	if err := parseForm(r); err != nil {
		return plan.MembershipPlan{}, err
	}
	capacity, err := formInt(r, "capacity")
	if err != nil {
		return plan.MembershipPlan{}, err
	}
	months, err := formInt(r, "duration_months")
	if err != nil {
		return plan.MembershipPlan{}, err
	}
	price, err := formFloat(r, "price")
	if err != nil {
		return plan.MembershipPlan{}, err
	}
	return plan.MembershipPlan{
		Name:           formValue(r, "name"),
		Description:    formValue(r, "description"),
		Capacity:       capacity,
		DurationMonths: months,
		Price:          price,
		Services:       plan.ParseServices(r.FormValue("services")),
	}, nil
}

func decodeProductForm(r *http.Request) (product.Product, error) {
	if err := parseForm(r); err != nil {
		return product.Product{}, err
	}
	p := product.Product{
		Name:           formValue(r, "name"),
		SKU:            formValue(r, "sku"),
		Category:       formValue(r, "category"),
		ExpirationDate: formValue(r, "expiration_date"),
		Supplier:       formValue(r, "supplier"),
		Status:         formValue(r, "status"),
	}
	var err error
	if p.PurchasePrice, err = formFloat(r, "purchase_price"); err != nil {
		return p, err
	}
	if p.SalePrice, err = formFloat(r, "sale_price"); err != nil {
		return p, err
	}
	if p.Stock, err = formInt(r, "stock"); err != nil {
		return p, err
	}
	if p.MinStock, err = formInt(r, "min_stock"); err != nil {
		return p, err
	}
	if r.MultipartForm != nil {
		if file, _, ferr := r.FormFile("image"); ferr == nil {
			defer file.Close()
			raw, err := io.ReadAll(io.LimitReader(file, product.MaxImageBytes+1))
			if err != nil {
				return p, err
			}
			if len(raw) > product.MaxImageBytes {
				return p, product.ErrImageTooLarge
			}
			if len(raw) > 0 {
				p.Image = base64.StdEncoding.EncodeToString(raw)
			}
		}
	}
	return p, nil
}

// decodeProductEdit keeps the stored image when an edit uploads none.
func (s *server) decodeProductEdit(r *http.Request) (product.Product, error) {
	p, err := decodeProductForm(r)
	if err != nil || p.Image != "" || r.PathValue("id") == "" {
		return p, err
	}
	current, err := s.Services.Products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return p, err
	}
	p.Image = current.Image
	return p, nil
}

func decodePromotionForm(r *http.Request) (promotion.Promotion, error) {
	if err := parseForm(r); err != nil {
		return promotion.Promotion{}, err
	}
	value, err := formFloat(r, "discount_value")
	if err != nil {
		return promotion.Promotion{}, err
	}
	return promotion.Promotion{
		Name:          formValue(r, "name"),
		Description:   formValue(r, "description"),
		StartDate:     formValue(r, "start_date"),
		EndDate:       formValue(r, "end_date"),
		DiscountType:  formValue(r, "discount_type"),
		DiscountValue: value,
		PromoCode:     strings.ToUpper(formValue(r, "promo_code")),
		AutoApply:     r.FormValue("auto_apply") != "",
		AppliesTo:     formValue(r, "applies_to"),
		Status:        formValue(r, "status"),
	}, nil
}

func decodePersonalForm(r *http.Request) (personal.Personal, error) {
	if err := parseForm(r); err != nil {
		return personal.Personal{}, err
	}
	return personal.Personal{
		Name:        formValue(r, "name"),
		Role:        formValue(r, "role"),
		Schedule:    formValue(r, "schedule"),
		AccessLevel: formValue(r, "access_level"),
	}, nil
}

func decodeReservationForm(r *http.Request) (reservation.Reservation, error) {
	if err := parseForm(r); err != nil {
		return reservation.Reservation{}, err
	}
	res := reservation.Reservation{
		UserID:     formValue(r, "user_id"),
		ClassID:    formValue(r, "class_id"),
		SessionDay: formValue(r, "session_day"),
		Date:       formValue(r, "date"),
		Status:     formValue(r, "status"),
	}
	if res.SessionDay == "" {
		if d, err := time.Parse("2006-01-02", res.Date); err == nil {
			res.SessionDay = class.DayOf(d)
		}
	}
	return res, nil
}

// decodeUserMembershipForm fills a missing end date from the plan duration.
func (s *server) decodeUserMembershipForm(r *http.Request) (usermembership.UserMembership, error) {
	if err := parseForm(r); err != nil {
		return usermembership.UserMembership{}, err
	}
	m := usermembership.UserMembership{
		UserID:    formValue(r, "user_id"),
		PlanID:    formValue(r, "plan_id"),
		StartDate: formValue(r, "start_date"),
		EndDate:   formValue(r, "end_date"),
		Status:    formValue(r, "status"),
	}
	if m.EndDate == "" && m.PlanID != "" {
		start, err := time.Parse("2006-01-02", m.StartDate)
		if err != nil {
			return m, usermembership.ErrInvalidDates
		}
		p, err := s.Services.Plans.Get(r.Context(), m.PlanID)
		if err != nil {
			return m, err
		}
		m.EndDate = usermembership.EndDateFor(start, p.DurationMonths)
	}
	return m, nil
}

// memberListView applies the status filter, search and pagination.
func (s *server) memberListView(r *http.Request, col *collection.Collection[member.Member]) map[string]any {
	lp := listutil.ParseListParams(r.URL.Query(), "status")
	result := projections.QueryGetMemberList(r.Context(), projections.GetMemberListQuery{ListParams: lp}, col)
	return map[string]any{
		"Items":          result.Members,
		"Page":           result.Page,
		"Counts":         result.Counts,
		"Total":          result.Total,
		"ListParams":     lp,
		"Status":         projections.GetMemberListQuery{ListParams: lp}.Status(),
		"Statuses":       member.ValidStatuses,
		"PerPageOptions": listutil.PerPageOptions,
		"ErrorKey":       result.ErrorKey,
	}
}

// productListView adds low-stock and expiry flags.
func (s *server) productListView(r *http.Request, col *collection.Collection[product.Product]) map[string]any {
	_ = col.Load(r.Context())
	lp := listutil.ParseListParams(r.URL.Query(), "category")
	now := s.Now()
	var rows []productRow
	for _, p := range col.Items() {
		if c := lp.Filters["category"]; c != "" && p.Category != c {
			continue
		}
		if q := strings.ToLower(lp.Search); q != "" &&
			!strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.SKU), q) {
			continue
		}
		rows = append(rows, productRow{Product: p, LowStock: p.IsLowStock(), Expired: p.IsExpired(now), Margin: p.Margin()})
	}
	page, info := listutil.Paginate(rows, lp.PageParams)
	return map[string]any{
		"Items":      page,
		"Page":       info,
		"ListParams": lp,
		"Categories": product.ValidCategories,
		"NewProduct": productRow{Product: product.Product{Category: product.CategoryOther, Status: product.StatusActive}},
		"LowStock":   len(product.LowStock(col.Items())),
		"ErrorKey":   col.Error(),
	}
}

type productRow struct {
	product.Product
	LowStock bool    `json:"low_stock"`
	Expired  bool    `json:"expired"`
	Margin   float64 `json:"margin"`
}

// DefaultPreviewPrice is the base price of the promotion preview column.
const DefaultPreviewPrice = 100.0

// promotionListView adds the discounted price preview for ?base=.
func (s *server) promotionListView(r *http.Request, col *collection.Collection[promotion.Promotion]) map[string]any {
	_ = col.Load(r.Context())
	base := DefaultPreviewPrice
	if v, err := strconv.ParseFloat(r.URL.Query().Get("base"), 64); err == nil && v >= 0 {
		base = v
	}
	now := s.Now()
	rows := make([]promotionRow, 0, col.Len())
	for _, p := range col.Items() {
		rows = append(rows, promotionRow{Promotion: p, Active: p.IsActiveOn(now), Preview: p.Apply(base)})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].StartDate > rows[j].StartDate })
	blank := promotion.Promotion{
		DiscountType: promotion.DiscountPercentage,
		AppliesTo:    promotion.AppliesToAll,
		Status:       promotion.StatusActive,
	}
	return map[string]any{
		"Items":        rows,
		"PreviewBase":  base,
		"NewPromotion": blank,
		"ErrorKey":     col.Error(),
	}
}

type promotionRow struct {
	promotion.Promotion
	Active  bool    `json:"active"`
	Preview float64 `json:"preview"`
}

// reservationListView filters by status and date.
func (s *server) reservationListView(r *http.Request, col *collection.Collection[reservation.Reservation]) map[string]any {
	_ = col.Load(r.Context())
	lp := listutil.ParseListParams(r.URL.Query(), "status", "date")
	var rows []reservation.Reservation
	for _, res := range col.Items() {
		if st := lp.Filters["status"]; st != "" && res.Status != st {
			continue
		}
		if d := lp.Filters["date"]; d != "" && res.Date != d {
			continue
		}
		rows = append(rows, res)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date > rows[j].Date })
	page, info := listutil.Paginate(rows, lp.PageParams)
	return map[string]any{
		"Items":      page,
		"Page":       info,
		"ListParams": lp,
		"ErrorKey":   col.Error(),
	}
}

// userMembershipListView adds days remaining and the plan names.
func (s *server) userMembershipListView(r *http.Request, col *collection.Collection[usermembership.UserMembership]) map[string]any {
	_ = col.Load(r.Context())
	plans := collection.New(s.Services.Plans)
	_ = plans.Load(r.Context())
	names := make(map[string]string, plans.Len())
	for _, p := range plans.Items() {
		names[p.ID] = p.Name
	}
	now := s.Now()
	lp := listutil.ParseListParams(r.URL.Query(), "status")
	var rows []userMembershipRow
	for _, m := range col.Items() {
		if st := lp.Filters["status"]; st != "" && m.Status != st {
			continue
		}
		rows = append(rows, userMembershipRow{UserMembership: m, PlanName: names[m.PlanID], DaysRemaining: m.DaysRemaining(now)})
	}
	page, info := listutil.Paginate(rows, lp.PageParams)
	errKey := col.Error()
	if errKey == "" {
		errKey = plans.Error()
	}
	return map[string]any{
		"Items":      page,
		"Page":       info,
		"ListParams": lp,
		"Plans":      plans.Items(),
		"ErrorKey":   errKey,
	}
}

type userMembershipRow struct {
	usermembership.UserMembership
	PlanName      string `json:"plan_name"`
	DaysRemaining int    `json:"days_remaining"`
}
