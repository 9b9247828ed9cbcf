package http

import (
	"errors"
	"net/url"
	"testing"

	"materials/internal/core"
)

func TestParseRecordForm(t *testing.T) {
	form := url.Values{
		"material_name": {"  Cement\x00 "},
		"site_location": {"Site A"},
		"quantity":      {"2,5"},
		"unit":          {"bags"},
		"cost_per_unit": {"19.99"},
		"date_used":     {"2024-03-01"},
		"notes":         {"line one\nline two"},
	}
	rec, values, errs := parseRecordForm(form)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if rec.MaterialName != "Cement" || values[core.FieldMaterialName] != "Cement" {
		t.Errorf("material name = %q / %q", rec.MaterialName, values[core.FieldMaterialName])
	}
	if rec.Quantity.Milli != 2500 || rec.CostPerUnit.Cents != 1999 {
		t.Errorf("quantity/cost = %d/%d", rec.Quantity.Milli, rec.CostPerUnit.Cents)
	}
	if rec.DateUsed.String() != "2024-03-01" {
		t.Errorf("date = %s", rec.DateUsed)
	}
	if rec.Notes != "line one\nline two" {
		t.Errorf("notes = %q", rec.Notes)
	}
	if rec.TotalCost.Cents != 0 {
		t.Error("parser must not set the total")
	}
}

func TestParseRecordFormErrors(t *testing.T) {
	tests := []struct {
		name   string
		form   url.Values
		fields []string
	}{
		{"negative quantity", url.Values{"quantity": {"-1"}}, []string{core.FieldQuantity}},
		{"bad cost", url.Values{"cost_per_unit": {"12.3.4"}}, []string{core.FieldCostPerUnit}},
		{"bad date", url.Values{"date_used": {"01/03/2024"}}, []string{core.FieldDateUsed}},
		{"empty values are not parse errors", url.Values{"quantity": {""}, "date_used": {""}}, nil},
		{"all three", url.Values{"quantity": {"x"}, "cost_per_unit": {"-2"}, "date_used": {"soon"}},
			[]string{core.FieldCostPerUnit, core.FieldDateUsed, core.FieldQuantity}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, errs := parseRecordForm(tt.form)
			got := errs.Fields()
			if len(got) != len(tt.fields) {
				t.Fatalf("fields = %v, want %v", got, tt.fields)
			}
			for i := range got {
				if got[i] != tt.fields[i] {
					t.Fatalf("fields = %v, want %v", got, tt.fields)
				}
			}
		})
	}
}

func TestMergeValidation(t *testing.T) {
	rec, _, parseErrs := parseRecordForm(url.Values{
		"material_name": {"Cement"},
		"quantity":      {"-3"},
		"unit":          {"bags"},
		"cost_per_unit": {"10"},
		"date_used":     {"2024-03-01"},
	})
	msgs := fieldMessages(mergeValidation(rec, parseErrs))
	if msgs[core.FieldQuantity] != "Quantity must be a positive number." {
		t.Errorf("quantity message = %q", msgs[core.FieldQuantity])
	}
	if msgs[core.FieldSiteLocation] != "Site location is required." {
		t.Errorf("site message = %q", msgs[core.FieldSiteLocation])
	}
	if _, ok := msgs[core.FieldMaterialName]; ok {
		t.Error("valid field reported")
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		want     core.RecordFilter
		warnings int
	}{
		{
			name:  "defaults",
			query: "",
			want:  core.RecordFilter{SortBy: core.SortDateUsed},
		},
		{
			name:  "all fields",
			query: "site=North&material=cem&material_type=Binder&date_from=2024-01-01&date_to=2024-01-31&sort_by=total_cost&sort_order=ASC",
			want: core.RecordFilter{
				Site: "North", Material: "cem", MaterialType: "Binder",
				DateFrom: core.NewDate(2024, 1, 1), DateTo: core.NewDate(2024, 1, 31),
				SortBy: core.SortTotalCost, Ascending: true,
			},
		},
		{
			name:     "bad dates are dropped with warnings",
			query:    "date_from=yesterday&date_to=2024-02-30",
			want:     core.RecordFilter{SortBy: core.SortDateUsed},
			warnings: 2,
		},
		{
			name:     "inverted range warns",
			query:    "date_from=2024-02-01&date_to=2024-01-01",
			want:     core.RecordFilter{DateFrom: core.NewDate(2024, 2, 1), DateTo: core.NewDate(2024, 1, 1), SortBy: core.SortDateUsed},
			warnings: 1,
		},
		{
			name:  "unknown sort falls back",
			query: "sort_by=id%3B+drop+table&sort_order=sideways",
			want:  core.RecordFilter{SortBy: core.SortDateUsed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			got, _, warnings := parseFilter(q)
			if got.Key() != tt.want.Key() {
				t.Errorf("filter = %+v, want %+v", got, tt.want)
			}
			if len(warnings) != tt.warnings {
				t.Errorf("warnings = %v, want %d", warnings, tt.warnings)
			}
		})
	}
}

func TestFilterValuesQuery(t *testing.T) {
	_, fv, _ := parseFilter(url.Values{"site": {"Site A"}, "date_from": {"bad"}})
	if got := fv.Query(); got != "site=Site+A&sort_by=date_used&sort_order=desc" {
		t.Errorf("Query() = %q", got)
	}
}

func TestFriendlyMessageFallback(t *testing.T) {
	if got := friendlyMessage(core.FieldNotes, errors.New("notes too long")); got != "Notes too long." {
		t.Errorf("got %q", got)
	}
}
