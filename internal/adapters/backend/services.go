package backend

import (
	"net/http"

	"gymdesk/internal/domain/class"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/personal"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/product"
	"gymdesk/internal/domain/promotion"
	"gymdesk/internal/domain/reservation"
	"gymdesk/internal/domain/usermembership"
)

// Endpoints holds the base URL of each backend service.
type Endpoints struct {
	Members         string
	Classes         string
	Plans           string
	Products        string
	Promotions      string
	Personal        string
	Reservations    string
	UserMemberships string
	NFC             string
	Auth            string
}

// Services bundles one client per backend resource.
type Services struct {
	Members         *Resource[member.Member]
	Classes         *Resource[class.Class]
	Plans           *Resource[plan.MembershipPlan]
	Products        *Resource[product.Product]
	Promotions      *Resource[promotion.Promotion]
	Personal        *Resource[personal.Personal]
	Reservations    *Resource[reservation.Reservation]
	UserMemberships *Resource[usermembership.UserMembership]
	NFC             *NFC
}

// NewServices wires every resource client onto c.
func NewServices(c *Client, e Endpoints) Services {
	return Services{
		Members: NewResource[member.Member](c, ResourceConfig{
			Name: "members", BaseURL: e.Members, Path: "/members", UpdateMethod: http.MethodPatch,
		}, nil),
		Classes: NewResource[class.Class](c, ResourceConfig{
			Name: "classes", BaseURL: e.Classes, Path: "/classes", UpdateMethod: http.MethodPut,
		}, nil),
		Plans: NewResource[plan.MembershipPlan](c, ResourceConfig{
			Name: "plans", BaseURL: e.Plans, Path: "/memberships-plans", UpdateMethod: http.MethodPut,
		}, nil),
		Products: NewProductResource(c, e.Products),
		Promotions: NewResource[promotion.Promotion](c, ResourceConfig{
			Name: "promotions", BaseURL: e.Promotions, Path: "/promotions", UpdateMethod: http.MethodPatch,
		}, nil),
		Personal: NewResource[personal.Personal](c, ResourceConfig{
			Name: "personal", BaseURL: e.Personal, Path: "/personal", UpdateMethod: http.MethodPut,
		}, nil),
		Reservations: NewResource[reservation.Reservation](c, ResourceConfig{
			Name: "reservations", BaseURL: e.Reservations, Path: "/reservations", UpdateMethod: http.MethodPatch,
		}, nil),
		UserMemberships: NewResource[usermembership.UserMembership](c, ResourceConfig{
			Name: "user_memberships", BaseURL: e.UserMemberships, Path: "/user-memberships", UpdateMethod: http.MethodPatch,
		}, nil),
		NFC: NewNFC(c, e.NFC),
	}
}
