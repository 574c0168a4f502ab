package product

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func validProduct() Product {
	return Product{
		Name:          "Proteína Whey",
		SKU:           "WHEY-01",
		Category:      CategorySupplements,
		PurchasePrice: 400,
		SalePrice:     650,
		Stock:         10,
		MinStock:      3,
		Status:        StatusActive,
	}
}

// TestProductValidation tests validation of Product.
func TestProductValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Product)
		wantErr error
	}{
		{name: "valid", mutate: func(p *Product) {}},
		{name: "unknown category", mutate: func(p *Product) { p.Category = "food" }, wantErr: ErrInvalidCategory},
		{name: "missing sku", mutate: func(p *Product) { p.SKU = "" }, wantErr: ErrEmptySKU},
		{name: "negative stock", mutate: func(p *Product) { p.Stock = -1 }, wantErr: ErrNegativeStock},
		{name: "bad expiry", mutate: func(p *Product) { p.ExpirationDate = "next week" }, wantErr: ErrInvalidExpiry},
		{name: "bad image", mutate: func(p *Product) { p.Image = "!!!" }, wantErr: ErrInvalidImage},
		{name: "data uri image", mutate: func(p *Product) {
			p.Image = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))
		}},
		{name: "image too large", mutate: func(p *Product) {
			p.Image = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", MaxImageBytes+1)))
		}, wantErr: ErrImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct()
			tt.mutate(&p)
			if err := p.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestIsExpired verifies the date comparison boundaries.
func TestIsExpired(t *testing.T) {
	p := validProduct()
	p.ExpirationDate = "2026-10-19"
	if p.IsExpired(time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)) {
		t.Error("product should not be expired on its expiration date")
	}
	if !p.IsExpired(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)) {
		t.Error("product should be expired the day after")
	}
}

// TestLowStock verifies only active products at threshold are reported.
func TestLowStock(t *testing.T) {
	a := validProduct()
	a.ID, a.Stock = "a", 3
	b := validProduct()
	b.ID, b.Stock = "b", 4
	c := validProduct()
	c.ID, c.Stock, c.Status = "c", 0, StatusDiscontinued
	got := LowStock([]Product{a, b, c})
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("LowStock = %+v, want only a", got)
	}
}
