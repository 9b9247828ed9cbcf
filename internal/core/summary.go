package core

import (
	"strconv"
	"strings"
)

// SortField names a sortable record column.
type SortField string

const (
	SortDateUsed     SortField = "date_used"
	SortSiteLocation SortField = "site_location"
	SortMaterialName SortField = "material_name"
	SortMaterialType SortField = "material_type"
	SortQuantity     SortField = "quantity"
	SortCostPerUnit  SortField = "cost_per_unit"
	SortTotalCost    SortField = "total_cost"
	SortCreatedAt    SortField = "created_at"
)

// SortFields lists the accepted sort_by values in display order.
var SortFields = []SortField{
	SortDateUsed, SortSiteLocation, SortMaterialName, SortMaterialType,
	SortQuantity, SortCostPerUnit, SortTotalCost, SortCreatedAt,
}

// ParseSortField returns the field for s, falling back to SortDateUsed.
func ParseSortField(s string) (SortField, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range SortFields {
		if string(f) == s {
			return f, true
		}
	}
	return SortDateUsed, false
}

// RecordFilter narrows and orders a record listing.
// Empty string fields and zero dates mean "no constraint".
type RecordFilter struct {
	Site         string // case-insensitive substring of site_location
	Material     string // case-insensitive substring of material_name
	MaterialType string // case-insensitive substring of material_type
	DateFrom     Date   // inclusive
	DateTo       Date   // inclusive
	SortBy       SortField
	Ascending    bool
	Limit        int // 0 = unlimited
}

// IsEmpty reports whether the filter constrains nothing.
func (f RecordFilter) IsEmpty() bool {
	return f.Site == "" && f.Material == "" && f.MaterialType == "" &&
		f.DateFrom.IsZero() && f.DateTo.IsZero()
}

// Key is a stable cache key for the filter.
func (f RecordFilter) Key() string {
	order := "desc"
	if f.Ascending {
		order = "asc"
	}
	return strings.Join([]string{
		strings.ToLower(f.Site),
		strings.ToLower(f.Material),
		strings.ToLower(f.MaterialType),
		f.DateFrom.String(),
		f.DateTo.String(),
		string(f.SortBy),
		order,
		strconv.Itoa(f.Limit),
	}, "|")
}

// Overview is the headline block of the home page.
type Overview struct {
	TotalCost Money
	Entries   int
	Sites     int
}

// FilterOptions holds the distinct values offered in filter dropdowns and form datalists.
type FilterOptions struct {
	Sites         []string
	MaterialTypes []string
	Units         []string
	Suppliers     []string
}
