package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"materials/internal/core"
)

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []core.MaterialRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(csvRow(r)); err != nil {
			return fmt.Errorf("write csv row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// csvRow quotes cells a spreadsheet would otherwise evaluate as formulas.
func csvRow(r core.MaterialRecord) []string {
	row := Row(r)
	for i, cell := range row {
		row[i] = escapeFormula(cell)
	}
	return row
}

func escapeFormula(cell string) string {
	if cell != "" && strings.ContainsRune("=+-@\t\r", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}
