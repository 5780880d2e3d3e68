package charts

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/healthfusion/nutriwaste/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", path)
}

func week(i int) dataset.Date {
	return dataset.Date{Time: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*i)}
}

func TestForecastChart(t *testing.T) {
	rows := []dataset.ForecastRow{
		{Date: week(0), Actual: 10, PredictedTrain: dataset.Some(9)},
		{Date: week(1), Actual: 12, PredictedTrain: dataset.Some(11.5)},
		{Date: week(2), Actual: 11, PredictedTest: dataset.Some(12)},
		{Date: week(3), Actual: 14, PredictedTest: dataset.Some(13)},
	}

	path := filepath.Join(t.TempDir(), "forecast", "fat_lstm_forecast.png")
	require.NoError(t, Forecast(path, "Fat - LSTM", rows))
	assertPNG(t, path)

	assert.ErrorIs(t, Forecast(path, "empty", nil), ErrNoData)
}

func TestFutureChart(t *testing.T) {
	history := []dataset.Point{
		{Date: week(0).Time, Value: 5},
		{Date: week(1).Time, Value: 6},
	}
	future := []dataset.FutureRow{
		{Week: 1, Date: week(2), Prediction: 6.5},
		{Week: 2, Date: week(3), Prediction: 7},
	}

	path := filepath.Join(t.TempDir(), "fiber_xgboost_future.png")
	require.NoError(t, Future(path, "Fiber - XGBoost", history, future))
	assertPNG(t, path)

	assert.ErrorIs(t, Future(path, "x", history, nil), ErrNoData)
}

func TestBarCharts(t *testing.T) {
	items := []dataset.ItemTotal{
		{Description: "Rice", Total: 40},
		{Description: "Beans", Total: 25},
		{Description: "Bread", Total: 5},
	}
	dir := t.TempDir()

	waste := filepath.Join(dir, "top_wasted_items.png")
	require.NoError(t, TopWasted(waste, items))
	assertPNG(t, waste)

	stock := filepath.Join(dir, "stock_analysis.png")
	require.NoError(t, Stock(stock, items))
	assertPNG(t, stock)

	assert.ErrorIs(t, Stock(stock, nil), ErrNoData)
}
