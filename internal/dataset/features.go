package dataset

import (
	"fmt"
	"sort"
)

// BuildLagFeatures turns a series into supervised rows with n lags. The first
// n points have no complete history and are dropped, so len(series)-n rows
// are returned with Lags[k-1] equal to the value k steps earlier.
func BuildLagFeatures(series []Point, n int) ([]LagRow, error) {
	if n < 1 {
		return nil, fmt.Errorf("lag count must be positive, got %d", n)
	}
	if len(series) <= n {
		return nil, fmt.Errorf("%w: %d points for %d lags", ErrInsufficientRows, len(series), n)
	}

	rows := make([]LagRow, 0, len(series)-n)
	for i := n; i < len(series); i++ {
		lags := make([]float64, n)
		for k := 1; k <= n; k++ {
			lags[k-1] = series[i-k].Value
		}
		rows = append(rows, LagRow{
			Date:   series[i].Date,
			Value:  series[i].Value,
			Lags:   lags,
			Target: series[i].Value,
		})
	}
	return rows, nil
}

// SplitTail keeps the last k rows as the test set, preserving order
func SplitTail(rows []LagRow, k int) (train, test []LagRow, err error) {
	if k < 1 {
		return nil, nil, fmt.Errorf("test size must be positive, got %d", k)
	}
	if len(rows) <= k {
		return nil, nil, fmt.Errorf("%w: %d rows cannot hold %d test rows", ErrInsufficientRows, len(rows), k)
	}
	cut := len(rows) - k
	return rows[:cut], rows[cut:], nil
}

// Matrix returns the lag features and targets of rows
func Matrix(rows []LagRow) ([][]float64, []float64) {
	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		X[i] = r.Lags
		y[i] = r.Target
	}
	return X, y
}

// TopWastedItems ranks items by total nutrient waste, where each record
// contributes (carbohydrates+fiber+protein+fat)*quantity.
func TopWastedItems(items []ItemRecord, n int) []ItemTotal {
	totals := make(map[string]float64)
	for _, it := range items {
		totals[it.Description] += (it.Carbohydrates + it.Fiber + it.Protein + it.Fat) * it.Quantity
	}
	return topN(totals, n)
}

// TopStockItems ranks items by summed stock quantity
func TopStockItems(stock []StockRecord, n int) []ItemTotal {
	totals := make(map[string]float64)
	for _, s := range stock {
		totals[s.Description] += s.Quantity
	}
	return topN(totals, n)
}

func topN(totals map[string]float64, n int) []ItemTotal {
	out := make([]ItemTotal, 0, len(totals))
	for desc, total := range totals {
		out = append(out, ItemTotal{Description: desc, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Description < out[j].Description
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
