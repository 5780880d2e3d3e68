package dataset

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/healthfusion/nutriwaste/internal/nutrient"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Weekly aggregation methods
const (
	MethodSum  = "sum"
	MethodMean = "mean"
)

// AggregateDaily sums item records per calendar date, ordered by date
func AggregateDaily(items []ItemRecord) []NutrientRow {
	byDate := make(map[time.Time]*NutrientRow)
	for _, it := range items {
		d := NewDate(it.Date)
		row, ok := byDate[d.Time]
		if !ok {
			row = &NutrientRow{Date: d}
			byDate[d.Time] = row
		}
		row.add(NutrientRow{
			Carbohydrates: it.Carbohydrates,
			Fiber:         it.Fiber,
			Protein:       it.Protein,
			Fat:           it.Fat,
		})
	}

	daily := make([]NutrientRow, 0, len(byDate))
	for _, row := range byDate {
		daily = append(daily, *row)
	}
	sort.Slice(daily, func(i, j int) bool {
		return daily[i].Date.Before(daily[j].Date.Time)
	})
	return daily
}

// WeekEnding returns the Sunday that closes the week containing t
func WeekEnding(t time.Time) time.Time {
	d := NewDate(t).Time
	offset := (7 - int(d.Weekday())) % 7
	return d.AddDate(0, 0, offset)
}

// ResampleWeekly sums daily rows into weeks ending on Sunday. Every week from
// the first to the last is present, empty weeks hold zeros.
func ResampleWeekly(daily []NutrientRow) []NutrientRow {
	if len(daily) == 0 {
		return nil
	}

	first, last := daily[0].Date.Time, daily[0].Date.Time
	for _, r := range daily {
		if r.Date.Before(first) {
			first = r.Date.Time
		}
		if r.Date.After(last) {
			last = r.Date.Time
		}
	}

	start, end := WeekEnding(first), WeekEnding(last)
	weeks := int(end.Sub(start).Hours()/24)/7 + 1

	weekly := make([]NutrientRow, weeks)
	for i := range weekly {
		weekly[i].Date = Date{start.AddDate(0, 0, 7*i)}
	}
	for _, r := range daily {
		idx := int(WeekEnding(r.Date.Time).Sub(start).Hours()/24) / 7
		weekly[idx].add(r)
	}
	return weekly
}

// ISOWeekStart returns the Monday starting ISO week (year, week)
func ISOWeekStart(year, week int) time.Time {
	// January 4th always falls in ISO week 1
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset)
	return monday.AddDate(0, 0, 7*(week-1))
}

// AggregateISOWeeks groups daily rows by ISO calendar week using sum or mean
func AggregateISOWeeks(daily []NutrientRow, method string) ([]ISOWeekRow, error) {
	if method != MethodSum && method != MethodMean {
		return nil, fmt.Errorf("%w: %q, use %q or %q", ErrInvalidMethod, method, MethodSum, MethodMean)
	}

	type key struct{ year, week int }
	groups := make(map[key][]NutrientRow)
	var keys []key
	for _, r := range daily {
		y, w := r.Date.ISOWeek()
		k := key{y, w}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].week < keys[j].week
	})

	out := make([]ISOWeekRow, 0, len(keys))
	for _, k := range keys {
		var total NutrientRow
		rows := groups[k]
		for _, r := range rows {
			total.add(r)
		}
		if method == MethodMean {
			n := float64(len(rows))
			total.Carbohydrates /= n
			total.Fiber /= n
			total.Protein /= n
			total.Fat /= n
		}
		start := ISOWeekStart(k.year, k.week)
		out = append(out, ISOWeekRow{
			Year:          k.year,
			Week:          k.week,
			WeekStart:     Date{start},
			WeekEnd:       Date{start.AddDate(0, 0, 6)},
			Carbohydrates: total.Carbohydrates,
			Fiber:         total.Fiber,
			Protein:       total.Protein,
			Fat:           total.Fat,
		})
	}
	return out, nil
}

// ColumnStats summarises one aggregated column
type ColumnStats struct {
	Column string
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
	Total  float64
}

// WeeklyReport describes an ISO-week aggregation run
type WeeklyReport struct {
	GeneratedAt  time.Time
	DailyRecords int
	Method       string
	FirstWeek    [2]time.Time
	LastWeek     [2]time.Time
	TotalWeeks   int
	Columns      []ColumnStats
}

// BuildWeeklyReport computes per-column statistics over an ISO-week aggregate
func BuildWeeklyReport(weeks []ISOWeekRow, dailyRecords int, method string) (*WeeklyReport, error) {
	if len(weeks) == 0 {
		return nil, ErrEmptySeries
	}

	report := &WeeklyReport{
		GeneratedAt:  time.Now(),
		DailyRecords: dailyRecords,
		Method:       method,
		FirstWeek:    [2]time.Time{weeks[0].WeekStart.Time, weeks[0].WeekEnd.Time},
		LastWeek:     [2]time.Time{weeks[len(weeks)-1].WeekStart.Time, weeks[len(weeks)-1].WeekEnd.Time},
		TotalWeeks:   len(weeks),
	}

	for _, n := range nutrient.All() {
		values := make([]float64, len(weeks))
		for i, w := range weeks {
			values[i] = isoValue(w, n)
		}
		report.Columns = append(report.Columns, describe(n.String(), values))
	}
	return report, nil
}

func isoValue(w ISOWeekRow, n nutrient.Nutrient) float64 {
	return NutrientRow{Carbohydrates: w.Carbohydrates, Fiber: w.Fiber, Protein: w.Protein, Fat: w.Fat}.Value(n)
}

func describe(column string, values []float64) ColumnStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	cs := ColumnStats{
		Column: column,
		Mean:   stat.Mean(values, nil),
		Median: median(sorted),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Total:  floats.Sum(values),
	}
	if len(values) > 1 {
		cs.StdDev = stat.StdDev(values, nil)
	}
	return cs
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Render writes the report as plain text
func (r *WeeklyReport) Render(w io.Writer) error {
	var err error
	p := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	p("Weekly Nutrient Waste Statistics Report\n")
	p("=======================================\n\n")
	p("Report generated at: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	p("Data source: %d daily records\n", r.DailyRecords)
	p("Aggregation method: %s\n\n", r.Method)

	p("Temporal Coverage:\n")
	p("- First week: %s to %s\n", r.FirstWeek[0].Format(DateLayout), r.FirstWeek[1].Format(DateLayout))
	p("- Last week:  %s to %s\n", r.LastWeek[0].Format(DateLayout), r.LastWeek[1].Format(DateLayout))
	p("- Total weeks: %d\n\n", r.TotalWeeks)

	p("Aggregated Metrics Summary:\n")
	for _, c := range r.Columns {
		p("\n%s:\n", c.Column)
		p("  Mean:    %.2f\n", c.Mean)
		p("  Median:  %.2f\n", c.Median)
		p("  Std Dev: %.2f\n", c.StdDev)
		p("  Minimum: %.2f\n", c.Min)
		p("  Maximum: %.2f\n", c.Max)
		p("  Total:   %.2f\n", c.Total)
	}
	p("\nNote: weeks follow ISO numbering (Monday is the first day)\n")
	return err
}

// WriteWeeklyReport renders the report to path
func WriteWeeklyReport(path string, r *WeeklyReport) error {
	return WriteAtomic(path, func(f *os.File) error {
		return r.Render(f)
	})
}
