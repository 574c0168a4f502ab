package product

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Category constants (closed set).
const (
	CategorySupplements = "supplements"
	CategoryBeverages   = "beverages"
	CategoryApparel     = "apparel"
	CategoryEquipment   = "equipment"
	CategoryAccessories = "accessories"
	CategoryOther       = "other"
)

// ValidCategories contains all valid category values.
var ValidCategories = []string{CategorySupplements, CategoryBeverages, CategoryApparel, CategoryEquipment, CategoryAccessories, CategoryOther}

// Status constants
const (
	StatusActive       = "active"
	StatusInactive     = "inactive"
	StatusDiscontinued = "discontinued"
)

// MaxImageBytes bounds the decoded size of an inline product image.
const MaxImageBytes = 2 << 20

// Domain errors
var (
	ErrEmptyName       = errors.New("product name cannot be empty")
	ErrEmptySKU        = errors.New("sku cannot be empty")
	ErrInvalidCategory = errors.New("category is not recognised")
	ErrInvalidStatus   = errors.New("status must be 'active', 'inactive', or 'discontinued'")
	ErrNegativePrice   = errors.New("prices cannot be negative")
	ErrNegativeStock   = errors.New("stock levels cannot be negative")
	ErrInvalidExpiry   = errors.New("expiration date must be YYYY-MM-DD")
	ErrInvalidImage    = errors.New("image must be base64 encoded")
	ErrImageTooLarge   = errors.New("image exceeds 2MB")
)

// Product is an inventory item sold at the gym store.
type Product struct {
	ID             string  `json:"id,omitempty"`
	Name           string  `json:"name"`
	SKU            string  `json:"sku"`
	Category       string  `json:"category"`
	PurchasePrice  float64 `json:"purchase_price"`
	SalePrice      float64 `json:"sale_price"`
	Stock          int     `json:"stock"`
	MinStock       int     `json:"min_stock"`
	ExpirationDate string  `json:"expiration_date,omitempty"`
	Supplier       string  `json:"supplier,omitempty"`
	Status         string  `json:"status"`
	Image          string  `json:"image,omitempty"` // base64, optional
}

// Key returns the record identifier.
func (p Product) Key() string { return p.ID }

// Validate checks if the Product has valid data.
// PRE: Product struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(p.SKU) == "" {
		return ErrEmptySKU
	}
	if !IsValidCategory(p.Category) {
		return ErrInvalidCategory
	}
	if p.Status != StatusActive && p.Status != StatusInactive && p.Status != StatusDiscontinued {
		return ErrInvalidStatus
	}
	if p.PurchasePrice < 0 || p.SalePrice < 0 {
		return ErrNegativePrice
	}
	if p.Stock < 0 || p.MinStock < 0 {
		return ErrNegativeStock
	}
	if p.ExpirationDate != "" {
		if _, err := time.Parse("2006-01-02", p.ExpirationDate); err != nil {
			return ErrInvalidExpiry
		}
	}
	if p.Image != "" {
		raw, err := base64.StdEncoding.DecodeString(stripDataURI(p.Image))
		if err != nil {
			return ErrInvalidImage
		}
		if len(raw) > MaxImageBytes {
			return ErrImageTooLarge
		}
	}
	return nil
}

// IsLowStock reports whether stock has reached the reorder threshold.
func (p *Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// IsExpired reports whether the product is past its expiration date.
func (p *Product) IsExpired(now time.Time) bool {
	if p.ExpirationDate == "" {
		return false
	}
	exp, err := time.Parse("2006-01-02", p.ExpirationDate)
	if err != nil {
		return false
	}
	return now.Format("2006-01-02") > exp.Format("2006-01-02")
}

// Margin returns the sale margin per unit.
func (p *Product) Margin() float64 {
	return p.SalePrice - p.PurchasePrice
}

// ImageBytes decodes the inline image, if any.
func (p *Product) ImageBytes() ([]byte, error) {
	if p.Image == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(stripDataURI(p.Image))
}

// IsValidCategory reports whether c is a known category.
func IsValidCategory(c string) bool {
	for _, v := range ValidCategories {
		if v == c {
			return true
		}
	}
	return false
}

// LowStock returns the products at or below their reorder threshold.
func LowStock(products []Product) []Product {
	var out []Product
	for _, p := range products {
		if p.IsLowStock() && p.Status == StatusActive {
			out = append(out, p)
		}
	}
	return out
}

func stripDataURI(s string) string {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		return s[i+len(";base64,"):]
	}
	return s
}
