// Package charts renders the pipeline's PNG charts with gonum/plot.
package charts

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/healthfusion/nutriwaste/internal/dataset"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when a chart would have nothing to draw
var ErrNoData = errors.New("no data to plot")

const dateFormat = "2006-01-02"

var (
	colorActual = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorTrain  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	colorTest   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorFuture = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	colorWaste  = color.RGBA{R: 255, G: 99, B: 71, A: 255}
	colorStock  = color.RGBA{R: 135, G: 206, B: 235, A: 255}
)

// Size of every saved chart
var (
	Width  = 10 * vg.Inch
	Height = 6 * vg.Inch
)

func newTimePlot(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: dateFormat}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, c color.Color, dashed bool) error {
	if len(pts) == 0 {
		return nil
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("failed to build %s series: %w", name, err)
	}
	line.Color = c
	line.Width = vg.Points(1.5)
	if dashed {
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	}
	points.Color = c
	points.Radius = vg.Points(2)

	p.Add(line, points)
	p.Legend.Add(name, line, points)
	return nil
}

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	if err := p.Save(Width, Height, path); err != nil {
		return fmt.Errorf("failed to save chart %s: %w", path, err)
	}
	return nil
}

// Forecast draws actual values against the train and test predictions
func Forecast(path, title string, rows []dataset.ForecastRow) error {
	if len(rows) == 0 {
		return ErrNoData
	}

	var actual, train, test plotter.XYs
	for _, r := range rows {
		x := float64(r.Date.Unix())
		actual = append(actual, plotter.XY{X: x, Y: r.Actual})
		if r.PredictedTrain.Valid {
			train = append(train, plotter.XY{X: x, Y: r.PredictedTrain.Value})
		}
		if r.PredictedTest.Valid {
			test = append(test, plotter.XY{X: x, Y: r.PredictedTest.Value})
		}
	}

	p := newTimePlot(title, "Waste")
	if err := addLine(p, "Actual", actual, colorActual, false); err != nil {
		return err
	}
	if err := addLine(p, "Predicted (train)", train, colorTrain, true); err != nil {
		return err
	}
	if err := addLine(p, "Predicted (test)", test, colorTest, true); err != nil {
		return err
	}
	return save(p, path)
}

// Future draws recent actuals followed by the rolled-out forecast
func Future(path, title string, history []dataset.Point, future []dataset.FutureRow) error {
	if len(future) == 0 {
		return ErrNoData
	}

	var past, ahead plotter.XYs
	for _, h := range history {
		past = append(past, plotter.XY{X: float64(h.Date.Unix()), Y: h.Value})
	}
	if len(past) > 0 {
		// connect the forecast to the last known week
		ahead = append(ahead, past[len(past)-1])
	}
	for _, f := range future {
		ahead = append(ahead, plotter.XY{X: float64(f.Date.Unix()), Y: f.Prediction})
	}

	p := newTimePlot(title, "Predicted waste")
	if err := addLine(p, "Actual", past, colorActual, false); err != nil {
		return err
	}
	if err := addLine(p, "Forecast", ahead, colorFuture, true); err != nil {
		return err
	}
	return save(p, path)
}

// Bar draws one bar per item in the given order
func Bar(path, title, xlabel, ylabel string, items []dataset.ItemTotal, c color.Color) error {
	if len(items) == 0 {
		return ErrNoData
	}

	values := make(plotter.Values, len(items))
	names := make([]string, len(items))
	for i, it := range items {
		values[i] = it.Total
		names[i] = it.Description
	}

	bars, err := plotter.NewBarChart(values, vg.Points(28))
	if err != nil {
		return fmt.Errorf("failed to build bars: %w", err)
	}
	bars.Color = c
	bars.LineStyle.Width = vg.Length(0)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid(), bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter

	return save(p, path)
}

// TopWasted draws the items with the largest nutrient waste
func TopWasted(path string, items []dataset.ItemTotal) error {
	return Bar(path, fmt.Sprintf("Top %d Wasted Items by Nutrient Waste", len(items)),
		"Item Description", "Total Nutrient Waste", items, colorWaste)
}

// Stock draws the most stocked items and names the highest and lowest in the title
func Stock(path string, items []dataset.ItemTotal) error {
	if len(items) == 0 {
		return ErrNoData
	}
	highest, lowest := items[0], items[len(items)-1]
	title := fmt.Sprintf("Top %d Stocked Items (highest: %s %.0f, lowest: %s %.0f)",
		len(items), highest.Description, highest.Total, lowest.Description, lowest.Total)
	return Bar(path, title, "Item Description", "Total Quantity", items, colorStock)
}
