package core

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// CurrencySymbol prefixes formatted money amounts.
const CurrencySymbol = "₹"

// DateLayout is the wire and storage format for dates.
const DateLayout = "2006-01-02"

const (
	maxNameLen  = 200
	maxNotesLen = 1000
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Quantity is measured in thousandths of a unit.
	Quantity struct {
		Milli int64
	}

	// MaterialRecord is one logged use of a material at a site.
	MaterialRecord struct {
		ID           int64
		MaterialName string
		MaterialType string
		SiteLocation string
		Quantity     Quantity
		Unit         string
		CostPerUnit  Money
		TotalCost    Money // always Quantity × CostPerUnit
		DateUsed     Date
		Supplier     string
		Notes        string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidDecimal   = errors.New("invalid decimal number")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrAmountOverflow   = errors.New("amount too large")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyMaterial    = errors.New("empty material name")
	ErrEmptySite        = errors.New("empty site location")
	ErrEmptyUnit        = errors.New("empty unit")
	ErrTotalMismatch    = errors.New("total cost does not match quantity × cost per unit")
	ErrRecordNotFound   = errors.New("record not found")
	errFieldTooLong     = errors.New("too long")
	errNotesTooLong     = errors.New("notes too long (max 1000 characters)")
	errDateInFarFuture  = errors.New("date is too far in the future")
	errDateInFarPast    = errors.New("date is too far in the past")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey renders the date as YYYY-MM.
func (d Date) MonthKey() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if d.Year() < 1900 {
		return errDateInFarPast
	}
	if d.After(time.Now().AddDate(1, 0, 0)) {
		return errDateInFarFuture
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (q Quantity) Validate() error {
	if q.Milli <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// ComputeTotal fills TotalCost from Quantity and CostPerUnit.
func (r *MaterialRecord) ComputeTotal() error {
	total, err := r.Quantity.Times(r.CostPerUnit)
	if err != nil {
		return err
	}
	r.TotalCost = total
	return nil
}

// Normalize trims free-text fields.
func (r *MaterialRecord) Normalize() {
	r.MaterialName = strings.TrimSpace(r.MaterialName)
	r.MaterialType = strings.TrimSpace(r.MaterialType)
	r.SiteLocation = strings.TrimSpace(r.SiteLocation)
	r.Unit = strings.TrimSpace(r.Unit)
	r.Supplier = strings.TrimSpace(r.Supplier)
	r.Notes = strings.TrimSpace(r.Notes)
}

// tooLong counts characters, not bytes.
func tooLong(s string, max int) bool {
	return utf8.RuneCountInString(s) > max
}

// Validate checks every field and returns all problems as ValidationErrors.
func (r MaterialRecord) Validate() error {
	var errs ValidationErrors

	if r.MaterialName == "" {
		errs.Add(FieldMaterialName, ErrEmptyMaterial)
	} else if tooLong(r.MaterialName, maxNameLen) {
		errs.Add(FieldMaterialName, errFieldTooLong)
	}
	if tooLong(r.MaterialType, maxNameLen) {
		errs.Add(FieldMaterialType, errFieldTooLong)
	}
	if r.SiteLocation == "" {
		errs.Add(FieldSiteLocation, ErrEmptySite)
	} else if tooLong(r.SiteLocation, maxNameLen) {
		errs.Add(FieldSiteLocation, errFieldTooLong)
	}
	if err := r.Quantity.Validate(); err != nil {
		errs.Add(FieldQuantity, err)
	}
	if r.Unit == "" {
		errs.Add(FieldUnit, ErrEmptyUnit)
	} else if tooLong(r.Unit, maxNameLen) {
		errs.Add(FieldUnit, errFieldTooLong)
	}
	if err := r.CostPerUnit.Validate(); err != nil {
		errs.Add(FieldCostPerUnit, err)
	}
	if err := r.DateUsed.Validate(); err != nil {
		errs.Add(FieldDateUsed, err)
	}
	if tooLong(r.Supplier, maxNameLen) {
		errs.Add(FieldSupplier, errFieldTooLong)
	}
	if tooLong(r.Notes, maxNotesLen) {
		errs.Add(FieldNotes, errNotesTooLong)
	}

	if len(errs) == 0 {
		want, err := r.Quantity.Times(r.CostPerUnit)
		if err != nil {
			errs.Add(FieldTotalCost, err)
		} else if want != r.TotalCost {
			errs.Add(FieldTotalCost, ErrTotalMismatch)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Form field names shared by validation, the add form and exports.
const (
	FieldMaterialName = "material_name"
	FieldMaterialType = "material_type"
	FieldSiteLocation = "site_location"
	FieldQuantity     = "quantity"
	FieldUnit         = "unit"
	FieldCostPerUnit  = "cost_per_unit"
	FieldTotalCost    = "total_cost"
	FieldDateUsed     = "date_used"
	FieldSupplier     = "supplier"
	FieldNotes        = "notes"
)

// FieldError ties a validation failure to a form field.
type FieldError struct {
	Field string
	Err   error
}

// ValidationErrors collects every invalid field of a record.
type ValidationErrors []FieldError

func (v *ValidationErrors) Add(field string, err error) {
	*v = append(*v, FieldError{Field: field, Err: err})
}

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, fe := range v {
		msgs = append(msgs, fe.Field+": "+fe.Err.Error())
	}
	return "invalid record: " + strings.Join(msgs, "; ")
}

// ByField returns the first message for each field.
func (v ValidationErrors) ByField() map[string]string {
	out := make(map[string]string, len(v))
	for _, fe := range v {
		if _, ok := out[fe.Field]; !ok {
			out[fe.Field] = fe.Err.Error()
		}
	}
	return out
}

// Unwrap exposes the field errors to errors.Is.
func (v ValidationErrors) Unwrap() []error {
	out := make([]error, len(v))
	for i, fe := range v {
		out[i] = fe.Err
	}
	return out
}

// Fields returns the invalid field names in sorted order.
func (v ValidationErrors) Fields() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, fe := range v {
		if _, ok := seen[fe.Field]; ok {
			continue
		}
		seen[fe.Field] = struct{}{}
		out = append(out, fe.Field)
	}
	sort.Strings(out)
	return out
}
