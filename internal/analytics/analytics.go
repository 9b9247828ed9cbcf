// Package analytics aggregates material records for the dashboard.
//
// Every function is pure over a slice of records; callers decide which
// records to load and whether to cache the result.
package analytics

import (
	"errors"
	"sort"

	"materials/internal/core"
)

// Chart names served by the dashboard and the JSON chart endpoint.
const (
	ChartCostBySite           = "cost_by_site"
	ChartCostOverTime         = "cost_over_time"
	ChartMaterialDistribution = "material_distribution"
	ChartMonthlySpending      = "monthly_spending"
)

// ChartNames lists the charts in display order.
var ChartNames = []string{
	ChartCostBySite,
	ChartCostOverTime,
	ChartMaterialDistribution,
	ChartMonthlySpending,
}

// UnspecifiedType labels records with no material type.
const UnspecifiedType = "Unspecified"

// NotAvailable is shown for summary values that have no data.
const NotAvailable = "N/A"

var ErrUnknownChart = errors.New("unknown chart")

// Bucket is one aggregated group.
type Bucket struct {
	Label string
	Total core.Money
	Count int
	// Width is Total relative to the largest bucket in the same group, 0-100.
	Width int
}

// Summary is the headline block of the dashboard.
type Summary struct {
	Entries              int
	TotalCost            core.Money
	AverageCost          core.Money
	MostExpensiveSite    string
	MostUsedMaterialType string
	FirstDate            core.Date
	LastDate             core.Date
}

// DateRange renders "first to last", or N/A without data.
func (s Summary) DateRange() string {
	if s.Entries == 0 {
		return NotAvailable
	}
	return s.FirstDate.String() + " to " + s.LastDate.String()
}

// Dashboard is everything the dashboard page renders.
type Dashboard struct {
	Summary        Summary
	BySite         []Bucket
	ByMaterial     []Bucket
	ByMaterialType []Bucket
	Monthly        []Bucket
	Cumulative     []Bucket
}

// Build computes the full dashboard for records.
func Build(records []core.MaterialRecord) Dashboard {
	return Dashboard{
		Summary:        Summarize(records),
		BySite:         BySite(records),
		ByMaterial:     ByMaterial(records),
		ByMaterialType: ByMaterialType(records),
		Monthly:        Monthly(records),
		Cumulative:     Cumulative(records),
	}
}

// Series is the JSON shape consumed by the chart script.
type Series struct {
	Name   string    `json:"name"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Chart returns the named chart series.
func (d Dashboard) Chart(name string) (Series, error) {
	var buckets []Bucket
	switch name {
	case ChartCostBySite:
		buckets = d.BySite
	case ChartCostOverTime:
		buckets = d.Cumulative
	case ChartMaterialDistribution:
		buckets = d.ByMaterialType
	case ChartMonthlySpending:
		buckets = d.Monthly
	default:
		return Series{}, ErrUnknownChart
	}

	s := Series{
		Name:   name,
		Labels: make([]string, len(buckets)),
		Values: make([]float64, len(buckets)),
	}
	for i, b := range buckets {
		s.Labels[i] = b.Label
		s.Values[i] = b.Total.Float()
	}
	return s, nil
}

// Total sums TotalCost over records.
func Total(records []core.MaterialRecord) core.Money {
	var sum int64
	for _, r := range records {
		sum += r.TotalCost.Cents
	}
	return core.Money{Cents: sum}
}

func BySite(records []core.MaterialRecord) []Bucket {
	return GroupBy(records, func(r core.MaterialRecord) string { return r.SiteLocation })
}

func ByMaterial(records []core.MaterialRecord) []Bucket {
	return GroupBy(records, func(r core.MaterialRecord) string { return r.MaterialName })
}

func ByMaterialType(records []core.MaterialRecord) []Bucket {
	return GroupBy(records, materialType)
}

// GroupBy sums cost per key, largest total first; ties are ordered by label.
func GroupBy(records []core.MaterialRecord, key func(core.MaterialRecord) string) []Bucket {
	index := map[string]int{}
	var out []Bucket
	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Bucket{Label: k})
		}
		out[i].Total.Cents += r.TotalCost.Cents
		out[i].Count++
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Label < out[j].Label
	})
	return withWidths(out)
}

// Monthly sums cost per YYYY-MM in chronological order.
func Monthly(records []core.MaterialRecord) []Bucket {
	out := GroupBy(records, func(r core.MaterialRecord) string { return r.DateUsed.MonthKey() })
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Cumulative returns the running cost total at the end of each distinct date.
func Cumulative(records []core.MaterialRecord) []Bucket {
	sorted := make([]core.MaterialRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].DateUsed.Equal(sorted[j].DateUsed.Time) {
			return sorted[i].DateUsed.Before(sorted[j].DateUsed.Time)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var (
		out     []Bucket
		running int64
		count   int
	)
	for _, r := range sorted {
		running += r.TotalCost.Cents
		count++
		label := r.DateUsed.String()
		if n := len(out); n > 0 && out[n-1].Label == label {
			out[n-1].Total.Cents = running
			out[n-1].Count = count
			continue
		}
		out = append(out, Bucket{Label: label, Total: core.Money{Cents: running}, Count: count})
	}
	return withWidths(out)
}

// Summarize computes the dashboard headline figures.
func Summarize(records []core.MaterialRecord) Summary {
	s := Summary{
		Entries:              len(records),
		MostExpensiveSite:    NotAvailable,
		MostUsedMaterialType: NotAvailable,
	}
	if len(records) == 0 {
		return s
	}

	s.TotalCost = Total(records)
	n := int64(len(records))
	s.AverageCost = core.Money{Cents: (s.TotalCost.Cents + n/2) / n}

	if sites := BySite(records); len(sites) > 0 {
		s.MostExpensiveSite = sites[0].Label
	}
	s.MostUsedMaterialType = mostFrequentType(records)

	s.FirstDate, s.LastDate = records[0].DateUsed, records[0].DateUsed
	for _, r := range records[1:] {
		if r.DateUsed.Before(s.FirstDate.Time) {
			s.FirstDate = r.DateUsed
		}
		if r.DateUsed.After(s.LastDate.Time) {
			s.LastDate = r.DateUsed
		}
	}
	return s
}

// mostFrequentType returns the most common non-empty material type,
// preferring the alphabetically first on ties.
func mostFrequentType(records []core.MaterialRecord) string {
	counts := map[string]int{}
	for _, r := range records {
		if r.MaterialType != "" {
			counts[r.MaterialType]++
		}
	}
	best, bestCount := NotAvailable, 0
	for t, c := range counts {
		if c > bestCount || (c == bestCount && t < best) {
			best, bestCount = t, c
		}
	}
	return best
}

func materialType(r core.MaterialRecord) string {
	if r.MaterialType == "" {
		return UnspecifiedType
	}
	return r.MaterialType
}

func withWidths(buckets []Bucket) []Bucket {
	var max int64
	for _, b := range buckets {
		if b.Total.Cents > max {
			max = b.Total.Cents
		}
	}
	if max == 0 {
		return buckets
	}
	for i := range buckets {
		buckets[i].Width = int(buckets[i].Total.Cents * 100 / max)
	}
	return buckets
}
