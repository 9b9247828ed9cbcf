package http

import (
	"errors"
	"net/url"
	"strings"

	"materials/internal/core"
)

// recordFormFields are the inputs of the add form, in display order.
var recordFormFields = []string{
	core.FieldMaterialName,
	core.FieldMaterialType,
	core.FieldSiteLocation,
	core.FieldQuantity,
	core.FieldUnit,
	core.FieldCostPerUnit,
	core.FieldDateUsed,
	core.FieldSupplier,
	core.FieldNotes,
}

// parseRecordForm reads the add form. Values are returned as submitted so the
// form can be re-rendered; errs holds fields that could not be parsed at all.
// Range and presence checks are left to MaterialRecord.Validate.
func parseRecordForm(form url.Values) (rec core.MaterialRecord, values map[string]string, errs core.ValidationErrors) {
	values = make(map[string]string, len(recordFormFields))
	for _, k := range recordFormFields {
		values[k] = sanitizeInput(form.Get(k))
	}

	rec = core.MaterialRecord{
		MaterialName: values[core.FieldMaterialName],
		MaterialType: values[core.FieldMaterialType],
		SiteLocation: values[core.FieldSiteLocation],
		Unit:         values[core.FieldUnit],
		Supplier:     values[core.FieldSupplier],
		Notes:        values[core.FieldNotes],
	}

	if v := values[core.FieldQuantity]; v != "" {
		q, err := core.ParseQuantity(v)
		if err != nil {
			errs.Add(core.FieldQuantity, err)
		}
		rec.Quantity = q
	}
	if v := values[core.FieldCostPerUnit]; v != "" {
		m, err := core.ParseMoney(v)
		if err != nil {
			errs.Add(core.FieldCostPerUnit, err)
		}
		rec.CostPerUnit = m
	}
	if v := values[core.FieldDateUsed]; v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			errs.Add(core.FieldDateUsed, err)
		}
		rec.DateUsed = d
	}
	return rec, values, errs
}

// mergeValidation appends the remaining field problems of rec to parse errors,
// so one response lists everything that is wrong.
func mergeValidation(rec core.MaterialRecord, parseErrs core.ValidationErrors) core.ValidationErrors {
	rec.Normalize()
	_ = rec.ComputeTotal()
	var verrs core.ValidationErrors
	if err := rec.Validate(); errors.As(err, &verrs) {
		return append(parseErrs, verrs...)
	}
	return parseErrs
}

// fieldMessages turns validation errors into one readable message per field.
func fieldMessages(errs core.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		if _, ok := out[fe.Field]; !ok {
			out[fe.Field] = friendlyMessage(fe.Field, fe.Err)
		}
	}
	return out
}

func friendlyMessage(field string, err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidQuantity):
		return "Quantity must be a positive number."
	case errors.Is(err, core.ErrInvalidAmount):
		if field == core.FieldTotalCost {
			return "Total cost could not be computed."
		}
		return "Cost per unit must be a positive amount."
	case errors.Is(err, core.ErrAmountOverflow):
		return "Quantity times cost per unit is too large."
	case errors.Is(err, core.ErrInvalidDate):
		return "Enter a valid date (YYYY-MM-DD)."
	case errors.Is(err, core.ErrEmptyMaterial):
		return "Material name is required."
	case errors.Is(err, core.ErrEmptySite):
		return "Site location is required."
	case errors.Is(err, core.ErrEmptyUnit):
		return "Unit is required."
	default:
		msg := err.Error()
		return strings.ToUpper(msg[:1]) + msg[1:] + "."
	}
}

// filterValues echoes the filter inputs back into forms and links.
type filterValues struct {
	Site         string
	Material     string
	MaterialType string
	DateFrom     string
	DateTo       string
	SortBy       string
	SortOrder    string
}

// Query encodes the non-empty filter inputs.
func (v filterValues) Query() string {
	q := url.Values{}
	set := func(k, val string) {
		if val != "" {
			q.Set(k, val)
		}
	}
	set("site", v.Site)
	set("material", v.Material)
	set("material_type", v.MaterialType)
	set("date_from", v.DateFrom)
	set("date_to", v.DateTo)
	set("sort_by", v.SortBy)
	set("sort_order", v.SortOrder)
	return q.Encode()
}

// parseFilter maps query parameters to a RecordFilter. Malformed dates are
// ignored and reported in warnings; unknown sort fields fall back to date_used.
func parseFilter(q url.Values) (core.RecordFilter, filterValues, []string) {
	v := filterValues{
		Site:         sanitizeInput(q.Get("site")),
		Material:     sanitizeInput(q.Get("material")),
		MaterialType: sanitizeInput(q.Get("material_type")),
		DateFrom:     strings.TrimSpace(q.Get("date_from")),
		DateTo:       strings.TrimSpace(q.Get("date_to")),
	}
	f := core.RecordFilter{
		Site:         v.Site,
		Material:     v.Material,
		MaterialType: v.MaterialType,
	}
	var warnings []string

	if v.DateFrom != "" {
		d, err := core.ParseDate(v.DateFrom)
		if err != nil {
			warnings = append(warnings, "Ignoring invalid start date \""+v.DateFrom+"\"; use YYYY-MM-DD.")
			v.DateFrom = ""
		} else {
			f.DateFrom = d
		}
	}
	if v.DateTo != "" {
		d, err := core.ParseDate(v.DateTo)
		if err != nil {
			warnings = append(warnings, "Ignoring invalid end date \""+v.DateTo+"\"; use YYYY-MM-DD.")
			v.DateTo = ""
		} else {
			f.DateTo = d
		}
	}
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateFrom.After(f.DateTo.Time) {
		warnings = append(warnings, "Start date is after end date; no records can match.")
	}

	f.SortBy, _ = core.ParseSortField(q.Get("sort_by"))
	v.SortBy = string(f.SortBy)
	if strings.EqualFold(strings.TrimSpace(q.Get("sort_order")), "asc") {
		f.Ascending = true
		v.SortOrder = "asc"
	} else {
		v.SortOrder = "desc"
	}
	return f, v, warnings
}
