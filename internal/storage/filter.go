package storage

import (
	"context"
	"strings"

	"materials/internal/core"
)

// Sort columns are whitelisted; user input never reaches the ORDER BY clause.
var sortColumns = map[core.SortField]string{
	core.SortDateUsed:     "date_used",
	core.SortSiteLocation: "site_location COLLATE NOCASE",
	core.SortMaterialName: "material_name COLLATE NOCASE",
	core.SortMaterialType: "material_type COLLATE NOCASE",
	core.SortQuantity:     "quantity_milli",
	core.SortCostPerUnit:  "cost_per_unit_cents",
	core.SortTotalCost:    "total_cost_cents",
	core.SortCreatedAt:    "created_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// buildListQuery turns a filter into a SELECT over materials and its arguments.
func buildListQuery(f core.RecordFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)

	if s := strings.TrimSpace(f.Site); s != "" {
		where = append(where, `site_location LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(s))
	}
	if s := strings.TrimSpace(f.Material); s != "" {
		where = append(where, `material_name LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(s))
	}
	if s := strings.TrimSpace(f.MaterialType); s != "" {
		where = append(where, `material_type LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(s))
	}
	if !f.DateFrom.IsZero() {
		where = append(where, "date_used >= ?")
		args = append(args, f.DateFrom.String())
	}
	if !f.DateTo.IsZero() {
		where = append(where, "date_used <= ?")
		args = append(args, f.DateTo.String())
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(materialColumns)
	b.WriteString("\nFROM materials")
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = sortColumns[core.SortDateUsed]
	}
	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}
	b.WriteString("\nORDER BY ")
	b.WriteString(col)
	b.WriteString(" ")
	b.WriteString(dir)
	b.WriteString(", id ")
	b.WriteString(dir)

	if f.Limit > 0 {
		b.WriteString("\nLIMIT ?")
		args = append(args, f.Limit)
	}

	return b.String(), args
}

// ListMaterials runs a filtered, sorted listing.
func (q *Queries) ListMaterials(ctx context.Context, f core.RecordFilter) ([]Material, error) {
	query, args := buildListQuery(f)
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanMaterials(rows)
}
