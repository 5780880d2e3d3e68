// Package dataset loads the raw stock exports and reads and writes every
// intermediate CSV stage of the pipeline.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/healthfusion/nutriwaste/internal/nutrient"
)

// DateLayout is the layout used for every date written by the pipeline
const DateLayout = "2006-01-02"

var (
	// ErrEmptySeries is returned when an operation needs at least one row
	ErrEmptySeries = errors.New("empty series")
	// ErrInsufficientRows is returned when a series is too short for the requested window
	ErrInsufficientRows = errors.New("insufficient rows")
	// ErrInvalidMethod is returned for an unsupported weekly aggregation method
	ErrInvalidMethod = errors.New("invalid aggregation method")
)

// MissingColumnsError lists required columns absent from an input file
type MissingColumnsError struct {
	File    string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.File, strings.Join(e.Missing, ", "))
}

// Date is a calendar date that serialises as YYYY-MM-DD
type Date struct {
	time.Time
}

// NewDate truncates t to midnight UTC
func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// MarshalCSV implements gocsv.TypeMarshaller
func (d Date) MarshalCSV() (string, error) {
	return d.Format(DateLayout), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller. A trailing time of day is ignored.
func (d *Date) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// MarshalJSON renders the date as a YYYY-MM-DD string
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

// UnmarshalJSON parses a YYYY-MM-DD string written by MarshalJSON
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid date %s: %w", b, err)
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Optional is a float cell that may be blank
type Optional struct {
	Value float64
	Valid bool
}

// Some returns a populated Optional
func Some(v float64) Optional {
	return Optional{Value: v, Valid: true}
}

// MarshalCSV implements gocsv.TypeMarshaller
func (o Optional) MarshalCSV() (string, error) {
	if !o.Valid {
		return "", nil
	}
	return strconv.FormatFloat(o.Value, 'f', -1, 64), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller
func (o *Optional) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		*o = Optional{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*o = Some(v)
	return nil
}

// MarshalJSON renders blank cells as null
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON reads a number, or null for a blank cell
func (o *Optional) UnmarshalJSON(b []byte) error {
	var v *float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == nil {
		*o = Optional{}
		return nil
	}
	*o = Some(*v)
	return nil
}

// ItemRecord is one row of the raw item export
type ItemRecord struct {
	Date          time.Time
	Description   string
	Quantity      float64
	Carbohydrates float64
	Fiber         float64
	Protein       float64
	Fat           float64
}

// Nutrient returns the value of the given nutrient column
func (r ItemRecord) Nutrient(n nutrient.Nutrient) float64 {
	switch n {
	case nutrient.Carbohydrates:
		return r.Carbohydrates
	case nutrient.Fiber:
		return r.Fiber
	case nutrient.Protein:
		return r.Protein
	case nutrient.Fat:
		return r.Fat
	}
	return 0
}

// StockRecord is one row of the raw stock quantity export
type StockRecord struct {
	Description string  `csv:"item description"`
	Quantity    float64 `csv:"quantity"`
}

// NutrientRow holds the four nutrient totals for one date or week
type NutrientRow struct {
	Date          Date    `csv:"date" json:"date"`
	Carbohydrates float64 `csv:"carbohydrates" json:"carbohydrates"`
	Fiber         float64 `csv:"fiber" json:"fiber"`
	Protein       float64 `csv:"protein" json:"protein"`
	Fat           float64 `csv:"fat" json:"fat"`
}

// Value returns the total of the given nutrient
func (r NutrientRow) Value(n nutrient.Nutrient) float64 {
	switch n {
	case nutrient.Carbohydrates:
		return r.Carbohydrates
	case nutrient.Fiber:
		return r.Fiber
	case nutrient.Protein:
		return r.Protein
	case nutrient.Fat:
		return r.Fat
	}
	return 0
}

func (r *NutrientRow) add(o NutrientRow) {
	r.Carbohydrates += o.Carbohydrates
	r.Fiber += o.Fiber
	r.Protein += o.Protein
	r.Fat += o.Fat
}

// Point is a single observation of one nutrient series
type Point struct {
	Date  time.Time
	Value float64
}

// Series extracts one nutrient column as an ordered series
func Series(rows []NutrientRow, n nutrient.Nutrient) []Point {
	points := make([]Point, len(rows))
	for i, r := range rows {
		points[i] = Point{Date: r.Date.Time, Value: r.Value(n)}
	}
	return points
}

// LagRow is one supervised example: the current value, the N previous values
// (Lags[0] is one week back) and the prediction target.
type LagRow struct {
	Date   time.Time
	Value  float64
	Lags   []float64
	Target float64
}

// ForecastRow is one line of a training forecast file
type ForecastRow struct {
	Date           Date     `csv:"date" json:"date"`
	Actual         float64  `csv:"actual" json:"actual"`
	PredictedTrain Optional `csv:"predicted_train" json:"predicted_train"`
	PredictedTest  Optional `csv:"predicted_test" json:"predicted_test"`
}

// FutureRow is one step of a rolled-out forecast
type FutureRow struct {
	Week       int     `csv:"week" json:"week"`
	Date       Date    `csv:"date" json:"date"`
	Prediction float64 `csv:"prediction" json:"prediction"`
}

// ScoreRow is one line of a model scores file
type ScoreRow struct {
	Nutrient  string  `csv:"nutrient" json:"nutrient"`
	TrainMSE  float64 `csv:"train_mse" json:"train_mse"`
	TrainRMSE float64 `csv:"train_rmse" json:"train_rmse"`
	TestMSE   float64 `csv:"test_mse" json:"test_mse"`
	TestRMSE  float64 `csv:"test_rmse" json:"test_rmse"`
}

// ISOWeekRow is one ISO calendar week of the supplementary weekly report
type ISOWeekRow struct {
	Year          int     `csv:"year"`
	Week          int     `csv:"week"`
	WeekStart     Date    `csv:"week_start"`
	WeekEnd       Date    `csv:"week_end"`
	Carbohydrates float64 `csv:"carbohydrates"`
	Fiber         float64 `csv:"fiber"`
	Protein       float64 `csv:"protein"`
	Fat           float64 `csv:"fat"`
}

// ItemTotal is an item description with an aggregated amount
type ItemTotal struct {
	Description string  `json:"description"`
	Total       float64 `json:"total"`
}
