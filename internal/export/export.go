// Package export serialises material records to downloadable files.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"materials/internal/core"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// filenamePrefix is followed by the export date, YYYYMMDD.
const filenamePrefix = "construction_materials_"

// Columns is the header row shared by every format.
var Columns = []string{
	"Date Used",
	"Site Location",
	"Material Type",
	"Material Name",
	"Quantity",
	"Unit",
	"Cost Per Unit",
	"Total Cost",
	"Supplier",
	"Notes",
	"Created At",
}

// ParseFormat accepts csv and xlsx, plus the excel and spreadsheet aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel", "spreadsheet":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

func (f Format) Extension() string {
	return string(f)
}

// Filename names the attachment after the export date.
func (f Format) Filename(now time.Time) string {
	return filenamePrefix + now.Format("20060102") + "." + f.Extension()
}

// Write serialises records in format f.
func Write(w io.Writer, f Format, records []core.MaterialRecord) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatXLSX:
		return WriteXLSX(w, records)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// Row renders a record as text cells in Columns order.
func Row(r core.MaterialRecord) []string {
	return []string{
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
		createdAt(r),
	}
}

func createdAt(r core.MaterialRecord) string {
	if r.CreatedAt.IsZero() {
		return ""
	}
	return r.CreatedAt.UTC().Format(time.RFC3339)
}
