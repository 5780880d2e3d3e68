package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

// Required column sets, after header normalisation
var (
	ItemColumns  = []string{"date", "item description", "quantity", "carbohydrates", "fiber", "protein", "fat"}
	StockColumns = []string{"item description", "quantity"}
)

// Day-first layouts accepted for raw item dates
var itemDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02/01/06",
	"2/1/06",
	"2006-01-02",
	"2006-01-02 15:04:05",
}

type rawItem struct {
	Date          string  `csv:"date"`
	Description   string  `csv:"item description"`
	Quantity      float64 `csv:"quantity"`
	Carbohydrates float64 `csv:"carbohydrates"`
	Fiber         float64 `csv:"fiber"`
	Protein       float64 `csv:"protein"`
	Fat           float64 `csv:"fat"`
}

// recordReader feeds already-read records to gocsv
type recordReader struct {
	records [][]string
	pos     int
}

func (r *recordReader) Read() ([]string, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	rec := r.records[r.pos]
	r.pos++
	return rec, nil
}

func (r *recordReader) ReadAll() ([][]string, error) {
	rest := r.records[r.pos:]
	r.pos = len(r.records)
	return rest, nil
}

// readNormalized reads a CSV file, lowercases and trims its header and checks
// that every required column is present.
func readNormalized(path string, required []string) (*recordReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return decodeNormalized(f, filepath.Base(path), required)
}

func decodeNormalized(in io.Reader, name string, required []string) (*recordReader, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", name, gocsv.ErrEmptyCSVFile)
	}

	present := make(map[string]bool, len(records[0]))
	for i, h := range records[0] {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		records[0][i] = h
		present[h] = true
	}

	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{File: name, Missing: missing}
	}

	return &recordReader{records: records}, nil
}

// ValidateColumns checks an uploaded CSV against a required column set
func ValidateColumns(in io.Reader, name string, required []string) error {
	_, err := decodeNormalized(in, name, required)
	return err
}

// LoadItems reads the raw item export. Rows whose date cannot be parsed are dropped.
func LoadItems(path string) ([]ItemRecord, error) {
	rr, err := readNormalized(path, ItemColumns)
	if err != nil {
		return nil, err
	}

	var raw []rawItem
	if err := gocsv.UnmarshalCSV(rr, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	items := make([]ItemRecord, 0, len(raw))
	for _, r := range raw {
		date, ok := parseItemDate(r.Date)
		if !ok {
			continue
		}
		items = append(items, ItemRecord{
			Date:          date,
			Description:   strings.TrimSpace(r.Description),
			Quantity:      r.Quantity,
			Carbohydrates: r.Carbohydrates,
			Fiber:         r.Fiber,
			Protein:       r.Protein,
			Fat:           r.Fat,
		})
	}
	return items, nil
}

// LoadStock reads the raw stock quantity export
func LoadStock(path string) ([]StockRecord, error) {
	rr, err := readNormalized(path, StockColumns)
	if err != nil {
		return nil, err
	}

	var stock []StockRecord
	if err := gocsv.UnmarshalCSV(rr, &stock); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	for i := range stock {
		stock[i].Description = strings.TrimSpace(stock[i].Description)
	}
	return stock, nil
}

func parseItemDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range itemDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t).Time, true
		}
	}
	return time.Time{}, false
}

func readRows[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []T
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return rows, nil
}

func writeRows[T any](path string, rows []T) error {
	return WriteAtomic(path, func(f *os.File) error {
		return gocsv.MarshalFile(&rows, f)
	})
}

// WriteAtomic writes through a temp file in the target directory and renames
// it into place. The target directory is created if missing.
func WriteAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}

// WriteFileAtomic replaces path with data
func WriteFileAtomic(path string, data []byte) error {
	return WriteAtomic(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// ReadNutrientRows reads a daily or weekly nutrient file
func ReadNutrientRows(path string) ([]NutrientRow, error) {
	return readRows[NutrientRow](path)
}

// WriteNutrientRows writes a daily or weekly nutrient file
func WriteNutrientRows(path string, rows []NutrientRow) error {
	return writeRows(path, rows)
}

// ReadForecast reads a training forecast file
func ReadForecast(path string) ([]ForecastRow, error) {
	return readRows[ForecastRow](path)
}

// WriteForecast writes a training forecast file
func WriteForecast(path string, rows []ForecastRow) error {
	return writeRows(path, rows)
}

// ReadFuture reads a rolled-out forecast file
func ReadFuture(path string) ([]FutureRow, error) {
	return readRows[FutureRow](path)
}

// WriteFuture writes a rolled-out forecast file
func WriteFuture(path string, rows []FutureRow) error {
	return writeRows(path, rows)
}

// ReadScores reads a model scores file
func ReadScores(path string) ([]ScoreRow, error) {
	return readRows[ScoreRow](path)
}

// WriteScores writes a model scores file
func WriteScores(path string, rows []ScoreRow) error {
	return writeRows(path, rows)
}

// WriteISOWeeks writes the ISO-week aggregate
func WriteISOWeeks(path string, rows []ISOWeekRow) error {
	return writeRows(path, rows)
}

// LagHeader returns the lagged file header for a value column and lag count
func LagHeader(column string, n int) []string {
	header := make([]string, 0, n+3)
	header = append(header, "date", column)
	for k := 1; k <= n; k++ {
		header = append(header, fmt.Sprintf("lag_%d", k))
	}
	return append(header, "target")
}

// WriteLagged writes lag rows under the given value column name
func WriteLagged(path, column string, rows []LagRow) error {
	n := 0
	if len(rows) > 0 {
		n = len(rows[0].Lags)
	}

	return WriteAtomic(path, func(f *os.File) error {
		w := gocsv.DefaultCSVWriter(f)
		if err := w.Write(LagHeader(column, n)); err != nil {
			return err
		}
		for _, r := range rows {
			rec := make([]string, 0, n+3)
			rec = append(rec, r.Date.Format(DateLayout), formatFloat(r.Value))
			for _, v := range r.Lags {
				rec = append(rec, formatFloat(v))
			}
			rec = append(rec, formatFloat(r.Target))
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

// ReadLagged reads a lagged file written by WriteLagged. Lag columns are
// discovered from the header in lag_1..lag_N order.
func ReadLagged(path, column string) ([]LagRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	maps, err := gocsv.CSVToMaps(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if len(maps) == 0 {
		return nil, nil
	}

	n := 0
	for {
		if _, ok := maps[0][fmt.Sprintf("lag_%d", n+1)]; !ok {
			break
		}
		n++
	}
	if n == 0 {
		return nil, &MissingColumnsError{File: filepath.Base(path), Missing: []string{"lag_1"}}
	}

	rows := make([]LagRow, 0, len(maps))
	for i, m := range maps {
		var d Date
		if err := d.UnmarshalCSV(m["date"]); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		row := LagRow{Date: d.Time, Lags: make([]float64, n)}
		if row.Value, err = parseFloat(m[column]); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		for k := 0; k < n; k++ {
			if row.Lags[k], err = parseFloat(m[fmt.Sprintf("lag_%d", k+1)]); err != nil {
				return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
			}
		}
		if row.Target, err = parseFloat(m["target"]); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
