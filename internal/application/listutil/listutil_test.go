package listutil

import (
	"net/url"
	"reflect"
	"testing"
)

// TestParseListParams verifies defaults, validation and filter whitelisting.
func TestParseListParams(t *testing.T) {
	tests := []struct {
		name        string
		q           url.Values
		wantPage    int
		wantPerPage int
		wantFilters map[string]string
	}{
		{"defaults", url.Values{}, 1, DefaultPerPage, map[string]string{}},
		{"valid", url.Values{"page": {"3"}, "per_page": {"50"}}, 3, 50, map[string]string{}},
		{"invalid per_page", url.Values{"per_page": {"25"}, "page": {"-2"}}, 1, DefaultPerPage, map[string]string{}},
		{"filters", url.Values{"status": {"activo"}, "evil": {"x"}}, 1, DefaultPerPage, map[string]string{"status": "activo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseListParams(tt.q, "status")
			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
				t.Errorf("page = %d/%d, want %d/%d", p.Page, p.PerPage, tt.wantPage, tt.wantPerPage)
			}
			if !reflect.DeepEqual(p.Filters, tt.wantFilters) {
				t.Errorf("filters = %v, want %v", p.Filters, tt.wantFilters)
			}
		})
	}
}

// TestPaginate verifies page slicing and clamping.
func TestPaginate(t *testing.T) {
	items := make([]int, 45)
	for i := range items {
		items[i] = i + 1
	}

	page, info := Paginate(items, PageParams{Page: 3, PerPage: 20})
	if len(page) != 5 || page[0] != 41 || info.TotalPages != 3 {
		t.Errorf("page 3 = %v, info = %+v", page, info)
	}
	if info.StartRow() != 41 || info.EndRow() != 45 || info.HasNext() || !info.HasPrev() {
		t.Errorf("rows %d-%d next=%v prev=%v", info.StartRow(), info.EndRow(), info.HasNext(), info.HasPrev())
	}

	page, info = Paginate(items, PageParams{Page: 99, PerPage: 20})
	if info.Page != 3 || len(page) != 5 {
		t.Errorf("clamped page = %d, len = %d", info.Page, len(page))
	}

	empty, info := Paginate([]int{}, PageParams{Page: 2, PerPage: 10})
	if len(empty) != 0 || info.Page != 1 || info.StartRow() != 0 || info.ShowPagination() {
		t.Errorf("empty info = %+v", info)
	}
}

// TestPageNumbers verifies the five-button window.
func TestPageNumbers(t *testing.T) {
	tests := []struct {
		page, total int
		want        []int
	}{
		{1, 100, []int{1, 2, 3, 4, 5}},
		{6, 200, []int{4, 5, 6, 7, 8}},
		{10, 200, []int{6, 7, 8, 9, 10}},
		{1, 30, []int{1, 2}},
	}
	for _, tt := range tests {
		got := NewPageInfo(tt.page, 20, tt.total).PageNumbers()
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("page %d of %d rows = %v, want %v", tt.page, tt.total, got, tt.want)
		}
	}
}

// TestQuery verifies links keep the active filters.
func TestQuery(t *testing.T) {
	p := ParseListParams(url.Values{"q": {"ana"}, "status": {"activo"}}, "status")
	if got := p.Query(2); got != "page=2&q=ana&status=activo" {
		t.Errorf("Query(2) = %q", got)
	}
	if got := p.Query(1); got != "q=ana&status=activo" {
		t.Errorf("Query(1) = %q", got)
	}
}
