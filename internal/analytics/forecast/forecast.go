// Package forecast evaluates fitted regressors on lag windows and rolls them
// forward to produce multi-step forecasts.
package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/healthfusion/nutriwaste/internal/dataset"
)

// DefaultHorizon is the number of weeks rolled out by default
const DefaultHorizon = 8

// ErrEmptyWindow is returned when a rollout starts without history
var ErrEmptyWindow = errors.New("empty lag window")

// Predictor is the part of a regressor the forecasting code needs
type Predictor interface {
	Predict(x []float64) (float64, error)
}

// Score holds the accuracy of a model on its train and test rows
type Score struct {
	TrainMSE  float64 `json:"train_mse"`
	TrainRMSE float64 `json:"train_rmse"`
	TestMSE   float64 `json:"test_mse"`
	TestRMSE  float64 `json:"test_rmse"`
	TestMAE   float64 `json:"test_mae"`
	TestMAPE  float64 `json:"test_mape"` // Mean Absolute Percentage Error
}

// Evaluation holds in-sample and out-of-sample predictions
type Evaluation struct {
	TrainPredictions []float64
	TestPredictions  []float64
	Score            Score
}

// Rollout forecasts horizon steps ahead from window, which holds the most
// recent values first (lag_1..lag_N). After each step the prediction is
// pushed to the front and the oldest lag falls off the end.
func Rollout(model Predictor, window []float64, horizon int) ([]float64, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}
	if horizon < 1 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}

	current := append([]float64(nil), window...)
	out := make([]float64, 0, horizon)
	for step := 0; step < horizon; step++ {
		next, err := model.Predict(current)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step+1, err)
		}
		out = append(out, next)

		copy(current[1:], current[:len(current)-1])
		current[0] = next
	}
	return out, nil
}

// NextWindow returns the lag window that follows row: its target becomes
// lag_1 and every older lag shifts one place back.
func NextWindow(row dataset.LagRow) []float64 {
	n := len(row.Lags)
	if n == 0 {
		return nil
	}
	window := make([]float64, n)
	window[0] = row.Target
	copy(window[1:], row.Lags[:n-1])
	return window
}

// Future rolls model forward from the last lag row and dates each step one
// week after the previous one
func Future(model Predictor, last dataset.LagRow, horizon int) ([]dataset.FutureRow, error) {
	values, err := Rollout(model, NextWindow(last), horizon)
	if err != nil {
		return nil, err
	}
	rows := make([]dataset.FutureRow, len(values))
	for i, v := range values {
		rows[i] = dataset.FutureRow{
			Week:       i + 1,
			Date:       dataset.NewDate(last.Date.AddDate(0, 0, 7*(i+1))),
			Prediction: v,
		}
	}
	return rows, nil
}

// Evaluate predicts the train and test rows and scores both
func Evaluate(model Predictor, train, test []dataset.LagRow) (*Evaluation, error) {
	trainPred, err := predictRows(model, train)
	if err != nil {
		return nil, fmt.Errorf("train predictions: %w", err)
	}
	testPred, err := predictRows(model, test)
	if err != nil {
		return nil, fmt.Errorf("test predictions: %w", err)
	}

	trainY, testY := targets(train), targets(test)
	score := Score{
		TrainMSE: CalculateMSE(trainY, trainPred),
		TestMSE:  CalculateMSE(testY, testPred),
		TestMAE:  CalculateMAE(testY, testPred),
		TestMAPE: CalculateMAPE(testY, testPred),
	}
	score.TrainRMSE = math.Sqrt(score.TrainMSE)
	score.TestRMSE = math.Sqrt(score.TestMSE)

	return &Evaluation{TrainPredictions: trainPred, TestPredictions: testPred, Score: score}, nil
}

// ForecastRows merges actuals and predictions into the training forecast layout
func ForecastRows(train, test []dataset.LagRow, eval *Evaluation) []dataset.ForecastRow {
	rows := make([]dataset.ForecastRow, 0, len(train)+len(test))
	for i, r := range train {
		rows = append(rows, dataset.ForecastRow{
			Date:           dataset.NewDate(r.Date),
			Actual:         r.Target,
			PredictedTrain: dataset.Some(eval.TrainPredictions[i]),
		})
	}
	for i, r := range test {
		rows = append(rows, dataset.ForecastRow{
			Date:          dataset.NewDate(r.Date),
			Actual:        r.Target,
			PredictedTest: dataset.Some(eval.TestPredictions[i]),
		})
	}
	return rows
}

func predictRows(model Predictor, rows []dataset.LagRow) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, r := range rows {
		v, err := model.Predict(r.Lags)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func targets(rows []dataset.LagRow) []float64 {
	y := make([]float64, len(rows))
	for i, r := range rows {
		y[i] = r.Target
	}
	return y
}
