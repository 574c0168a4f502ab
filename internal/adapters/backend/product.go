package backend

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"gymdesk/internal/domain/product"
)

// NewProductResource creates the products client. Records carrying an image
// are sent as multipart/form-data with the image as a file part.
func NewProductResource(client *Client, baseURL string) *Resource[product.Product] {
	return NewResource(client, ResourceConfig{
		Name:         "products",
		BaseURL:      baseURL,
		Path:         "/products",
		UpdateMethod: http.MethodPatch,
	}, EncodeProduct)
}

// EncodeProduct encodes p as JSON, or as a multipart form when p.Image is set.
func EncodeProduct(p product.Product) ([]byte, string, error) {
	if p.Image == "" {
		return JSONEncoder(p)
	}
	img, err := p.ImageBytes()
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := []struct{ name, value string }{
		{"name", p.Name},
		{"sku", p.SKU},
		{"category", p.Category},
		{"purchase_price", strconv.FormatFloat(p.PurchasePrice, 'f', -1, 64)},
		{"sale_price", strconv.FormatFloat(p.SalePrice, 'f', -1, 64)},
		{"stock", strconv.Itoa(p.Stock)},
		{"min_stock", strconv.Itoa(p.MinStock)},
		{"expiration_date", p.ExpirationDate},
		{"supplier", p.Supplier},
		{"status", p.Status},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="product"`)
	h.Set("Content-Type", http.DetectContentType(img))
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
