package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"materials/internal/analytics"
	"materials/internal/core"
)

const (
	dataSheet    = "Materials"
	summarySheet = "Summary"
)

// WriteXLSX writes a workbook with the records on one sheet and per-site totals on another.
func WriteXLSX(w io.Writer, records []core.MaterialRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("create money style: %w", err)
	}

	if err := writeHeader(f, dataSheet, Columns, headerStyle); err != nil {
		return err
	}
	for i, r := range records {
		row := []interface{}{
			r.DateUsed.String(),
			r.SiteLocation,
			r.MaterialType,
			r.MaterialName,
			r.Quantity.Float(),
			r.Unit,
			r.CostPerUnit.Float(),
			r.TotalCost.Float(),
			r.Supplier,
			r.Notes,
			createdAt(r),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(dataSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r.ID, err)
		}
	}
	if len(records) > 0 {
		first, _ := excelize.CoordinatesToCellName(7, 2)
		last, _ := excelize.CoordinatesToCellName(8, len(records)+1)
		if err := f.SetCellStyle(dataSheet, first, last, moneyStyle); err != nil {
			return fmt.Errorf("style money cells: %w", err)
		}
	}
	_ = f.SetColWidth(dataSheet, "A", "K", 18)
	_ = f.SetPanes(dataSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if err := writeSummary(f, records, headerStyle, moneyStyle); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, cols []string, style int) error {
	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}

func writeSummary(f *excelize.File, records []core.MaterialRecord, headerStyle, moneyStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeHeader(f, summarySheet, []string{"Site Location", "Entries", "Total Cost"}, headerStyle); err != nil {
		return err
	}

	sites := analytics.BySite(records)
	for i, b := range sites {
		row := []interface{}{b.Label, b.Count, b.Total.Float()}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	totalRow := len(sites) + 2
	total := []interface{}{"Total", len(records), analytics.Total(records).Float()}
	cell, _ := excelize.CoordinatesToCellName(1, totalRow)
	if err := f.SetSheetRow(summarySheet, cell, &total); err != nil {
		return fmt.Errorf("write summary total: %w", err)
	}

	first, _ := excelize.CoordinatesToCellName(3, 2)
	last, _ := excelize.CoordinatesToCellName(3, totalRow)
	if err := f.SetCellStyle(summarySheet, first, last, moneyStyle); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	_ = f.SetColWidth(summarySheet, "A", "C", 20)
	return nil
}
