package services

import (
	"fmt"
	"path/filepath"

	"github.com/healthfusion/nutriwaste/internal/config"
	"github.com/healthfusion/nutriwaste/internal/nutrient"
)

// File names shared by the pipeline and the dashboard
const (
	DailyFile       = "daily_nutrient_waste.csv"
	WeeklyFile      = "weekly_nutrient_waste.csv"
	WeeklyStatsFile = "weekly_stats.txt"
	TopWastedChart  = "top_wasted_items.png"
	StockChart      = "stock_analysis.png"
)

// Layout resolves every pipeline artifact path from the data config
type Layout struct {
	data *config.DataConfig
}

// NewLayout creates a Layout over cfg
func NewLayout(cfg *config.DataConfig) Layout {
	return Layout{data: cfg}
}

func (l Layout) Items() string { return l.data.ItemsPath() }
func (l Layout) Stock() string { return l.data.StockPath() }
func (l Layout) Daily() string { return filepath.Join(l.data.Interim(), DailyFile) }
func (l Layout) Weekly() string {
	return filepath.Join(l.data.Processed(), WeeklyFile)
}

func (l Layout) ISOWeekly(method string) string {
	return filepath.Join(l.data.Processed(), fmt.Sprintf("weekly_iso_%s.csv", method))
}

func (l Layout) WeeklyStats() string {
	return filepath.Join(l.data.Processed(), WeeklyStatsFile)
}

func (l Layout) Lagged(n nutrient.Nutrient) string {
	return filepath.Join(l.data.Engineered(), fmt.Sprintf("%s_lagged.csv", n))
}

// SplitPart returns the train or test file of a nutrient
func (l Layout) SplitPart(n nutrient.Nutrient, part string) string {
	return filepath.Join(l.data.Split(), fmt.Sprintf("%s_%s.csv", n, part))
}

func (l Layout) Forecast(n nutrient.Nutrient, a nutrient.Algorithm) string {
	return filepath.Join(l.data.Forecast(), fmt.Sprintf("%s_%s_forecast.csv", n, a))
}

func (l Layout) Future(n nutrient.Nutrient, a nutrient.Algorithm) string {
	return filepath.Join(l.data.Forecast(), fmt.Sprintf("%s_%s_future.csv", n, a))
}

func (l Layout) Scores(a nutrient.Algorithm) string {
	return filepath.Join(l.data.Forecast(), fmt.Sprintf("%s_model_scores.csv", a))
}

// ForecastChartName is the PNG name of a training forecast chart
func ForecastChartName(n nutrient.Nutrient, a nutrient.Algorithm) string {
	return fmt.Sprintf("%s_%s_forecast.png", n, a)
}

// FutureChartName is the PNG name of a future forecast chart
func FutureChartName(n nutrient.Nutrient, a nutrient.Algorithm) string {
	return fmt.Sprintf("%s_%s_future.png", n, a)
}

func (l Layout) ForecastChart(n nutrient.Nutrient, a nutrient.Algorithm) string {
	return filepath.Join(l.data.Forecast(), ForecastChartName(n, a))
}

func (l Layout) FutureChart(n nutrient.Nutrient, a nutrient.Algorithm) string {
	return filepath.Join(l.data.Forecast(), FutureChartName(n, a))
}

func (l Layout) Graph(name string) string {
	return filepath.Join(l.data.Graphs(), name)
}

// ChartDirs lists the directories charts are served from, in lookup order
func (l Layout) ChartDirs() []string {
	return []string{l.data.Graphs(), l.data.Forecast()}
}

// RawFile returns the raw path for an upload name
func (l Layout) RawFile(name string) string {
	return filepath.Join(l.data.Raw(), name)
}
