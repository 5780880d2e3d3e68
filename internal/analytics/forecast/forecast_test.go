package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/healthfusion/nutriwaste/internal/analytics/regression"
	"github.com/healthfusion/nutriwaste/internal/dataset"
)

var testBaseTime = time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)

// linearModel predicts a weighted sum of the window plus a bias
type linearModel struct {
	weights []float64
	bias    float64
}

func (m linearModel) Predict(x []float64) (float64, error) {
	if len(x) != len(m.weights) {
		return 0, regression.ErrFeatureMismatch
	}
	out := m.bias
	for i, w := range m.weights {
		out += w * x[i]
	}
	return out, nil
}

type failingModel struct{}

func (failingModel) Predict([]float64) (float64, error) {
	return 0, errors.New("boom")
}

func TestCalculateMetrics(t *testing.T) {
	actual := []float64{1, 2, 3, 4}
	predicted := []float64{1, 3, 1, 4}

	mse := CalculateMSE(actual, predicted)
	if math.Abs(mse-1.25) > 1e-12 {
		t.Errorf("Expected MSE 1.25, got %v", mse)
	}
	if rmse := CalculateRMSE(actual, predicted); rmse != math.Sqrt(mse) {
		t.Errorf("RMSE %v is not sqrt(MSE) %v", rmse, math.Sqrt(mse))
	}
	if mae := CalculateMAE(actual, predicted); math.Abs(mae-0.75) > 1e-12 {
		t.Errorf("Expected MAE 0.75, got %v", mae)
	}

	// (0 + 0.5 + 2/3 + 0) / 4 * 100
	if mape := CalculateMAPE(actual, predicted); math.Abs(mape-29.1666666667) > 1e-6 {
		t.Errorf("Expected MAPE ~29.17, got %v", mape)
	}

	if CalculateMSE(actual, predicted[:2]) != 0 {
		t.Error("Expected 0 for mismatched lengths")
	}
	if CalculateMAPE([]float64{0, 0}, []float64{1, 1}) != 0 {
		t.Error("Expected 0 MAPE when every actual is zero")
	}
}

func TestRolloutMatchesHandRecursion(t *testing.T) {
	model := linearModel{weights: []float64{0.5, 0.25, 0.125, 0.125}, bias: 1}
	window := []float64{8, 4, 2, 1}

	got, err := Rollout(model, window, DefaultHorizon)
	if err != nil {
		t.Fatalf("Rollout failed: %v", err)
	}
	if len(got) != DefaultHorizon {
		t.Fatalf("Expected %d predictions, got %d", DefaultHorizon, len(got))
	}

	w := []float64{8, 4, 2, 1}
	for step := 0; step < DefaultHorizon; step++ {
		want := 1 + 0.5*w[0] + 0.25*w[1] + 0.125*w[2] + 0.125*w[3]
		if math.Abs(got[step]-want) > 1e-12 {
			t.Errorf("Step %d: expected %v, got %v", step+1, want, got[step])
		}
		w = []float64{want, w[0], w[1], w[2]}
	}

	if window[0] != 8 || window[3] != 1 {
		t.Error("Rollout must not modify the caller's window")
	}
}

func TestRolloutErrors(t *testing.T) {
	if _, err := Rollout(linearModel{}, nil, 8); !errors.Is(err, ErrEmptyWindow) {
		t.Errorf("Expected ErrEmptyWindow, got %v", err)
	}
	if _, err := Rollout(linearModel{weights: []float64{1}}, []float64{1}, 0); err == nil {
		t.Error("Expected error for zero horizon")
	}
	if _, err := Rollout(failingModel{}, []float64{1}, 3); err == nil {
		t.Error("Expected model error to propagate")
	}
}

func TestNextWindow(t *testing.T) {
	row := dataset.LagRow{Target: 10, Lags: []float64{9, 8, 7, 6}}
	got := NextWindow(row)
	want := []float64{10, 9, 8, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}

	if NextWindow(dataset.LagRow{}) != nil {
		t.Error("Expected nil window for a row without lags")
	}
}

func TestFutureDatesAdvanceWeekly(t *testing.T) {
	last := dataset.LagRow{Date: testBaseTime, Target: 5, Lags: []float64{5, 5}}
	rows, err := Future(linearModel{weights: []float64{1, 0}}, last, 3)
	if err != nil {
		t.Fatalf("Future failed: %v", err)
	}
	for i, r := range rows {
		if r.Week != i+1 {
			t.Errorf("Expected week %d, got %d", i+1, r.Week)
		}
		if want := testBaseTime.AddDate(0, 0, 7*(i+1)); !r.Date.Equal(want) {
			t.Errorf("Expected date %v, got %v", want, r.Date)
		}
		if r.Prediction != 5 {
			t.Errorf("Expected persistence forecast 5, got %v", r.Prediction)
		}
	}
}

func lagRows(values []float64, n int) []dataset.LagRow {
	points := make([]dataset.Point, len(values))
	for i, v := range values {
		points[i] = dataset.Point{Date: testBaseTime.AddDate(0, 0, 7*i), Value: v}
	}
	rows, _ := dataset.BuildLagFeatures(points, n)
	return rows
}

func TestEvaluateAndForecastRows(t *testing.T) {
	rows := lagRows([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 2)
	train, test, err := dataset.SplitTail(rows, 3)
	if err != nil {
		t.Fatal(err)
	}

	// lag_1 + 1 is exact on a unit ramp
	model := linearModel{weights: []float64{1, 0}, bias: 1}
	eval, err := Evaluate(model, train, test)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if eval.Score.TrainRMSE != 0 || eval.Score.TestRMSE != 0 {
		t.Errorf("Expected perfect scores, got %+v", eval.Score)
	}
	if len(eval.TestPredictions) != 3 {
		t.Errorf("Expected 3 test predictions, got %d", len(eval.TestPredictions))
	}

	frows := ForecastRows(train, test, eval)
	if len(frows) != len(rows) {
		t.Fatalf("Expected %d forecast rows, got %d", len(rows), len(frows))
	}
	for i, r := range frows {
		inTrain := i < len(train)
		if r.PredictedTrain.Valid != inTrain || r.PredictedTest.Valid == inTrain {
			t.Errorf("Row %d has wrong prediction columns populated", i)
		}
	}

	biased := linearModel{weights: []float64{1, 0}, bias: 3}
	eval, err = Evaluate(biased, train, test)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(eval.Score.TestMSE-4) > 1e-9 || eval.Score.TestRMSE != math.Sqrt(eval.Score.TestMSE) {
		t.Errorf("Unexpected biased scores %+v", eval.Score)
	}
}

func TestRolloutWithFittedForest(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 20 + 5*math.Sin(float64(i)/2)
	}
	rows := lagRows(values, 4)
	X, y := dataset.Matrix(rows)

	rf := regression.NewRandomForest(regression.ForestParams{NEstimators: 10}, 42)
	if err := rf.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	preds, err := Rollout(rf, NextWindow(rows[len(rows)-1]), DefaultHorizon)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range preds {
		if p < 15 || p > 25 {
			t.Errorf("Forest prediction %v outside the training range", p)
		}
	}
}
