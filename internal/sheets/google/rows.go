package google

import (
	"strconv"
	"strings"
	"time"

	"materials/internal/core"
)

// lastColumn is the final column of the mirror layout (12 columns).
const lastColumn = "L"

var headerRow = []interface{}{
	"ID", "Date Used", "Site Location", "Material Type", "Material Name",
	"Quantity", "Unit", "Cost Per Unit", "Total Cost", "Supplier", "Notes", "Created At",
}

// recordRow lays out a record in mirror column order. Amounts are plain
// decimals so USER_ENTERED parses them as numbers.
func recordRow(r core.MaterialRecord) []interface{} {
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []interface{}{
		r.ID,
		r.DateUsed.String(),
		r.SiteLocation,
		r.MaterialType,
		r.MaterialName,
		r.Quantity.Decimal(),
		r.Unit,
		r.CostPerUnit.Decimal(),
		r.TotalCost.Decimal(),
		r.Supplier,
		r.Notes,
		created,
	}
}

// rowNumber extracts the first row number from an A1 range such as
// "Materials!A7:L7". It returns false when the range has no row.
func rowNumber(a1 string) (int, bool) {
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	if i := strings.Index(a1, ":"); i >= 0 {
		a1 = a1[:i]
	}
	start := strings.IndexFunc(a1, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(a1[start:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// quoteSheet wraps sheet names containing spaces or quotes for A1 notation.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}
