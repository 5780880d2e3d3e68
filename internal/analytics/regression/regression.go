// Package regression provides the supervised regressors trained on lag
// windows: a random forest, gradient-boosted trees and an LSTM network.
package regression

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotFitted is returned when predicting with a model that was never trained
	ErrNotFitted = errors.New("model is not fitted")
	// ErrFeatureMismatch is returned when an input row has the wrong width
	ErrFeatureMismatch = errors.New("feature count mismatch")
	// ErrEmptyTrainingSet is returned when Fit receives no rows
	ErrEmptyTrainingSet = errors.New("empty training set")
)

// Regressor is a model mapping a fixed-width feature row to one value
type Regressor interface {
	// Name returns the algorithm name
	Name() string
	// Fit trains the model on rows X and targets y
	Fit(X [][]float64, y []float64) error
	// Predict returns the prediction for a single row
	Predict(x []float64) (float64, error)
	// PredictBatch returns one prediction per row
	PredictBatch(X [][]float64) ([]float64, error)
	// Params reports the hyperparameters the model was built with
	Params() map[string]interface{}

	json.Marshaler
	json.Unmarshaler
}

// ForestParams configures the random forest
type ForestParams struct {
	NEstimators    int
	MaxDepth       int // 0 grows trees until leaves are pure
	MinSamplesLeaf int
}

// BoostingParams configures gradient boosting
type BoostingParams struct {
	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	Lambda          float64
	MinChildSamples int
}

// LSTMParams configures the recurrent network
type LSTMParams struct {
	Units           int
	Epochs          int
	BatchSize       int
	LearningRate    float64
	ValidationSplit float64
	Patience        int
}

// Params bundles the hyperparameters of every algorithm
type Params struct {
	Seed     int64
	Forest   ForestParams
	Boosting BoostingParams
	LSTM     LSTMParams
}

// DefaultParams returns the default hyperparameters
func DefaultParams() Params {
	return Params{
		Seed: 42,
		Forest: ForestParams{
			NEstimators:    100,
			MinSamplesLeaf: 1,
		},
		Boosting: BoostingParams{
			NEstimators:     100,
			LearningRate:    0.1,
			MaxDepth:        6,
			Lambda:          1,
			MinChildSamples: 1,
		},
		LSTM: LSTMParams{
			Units:           50,
			Epochs:          100,
			BatchSize:       4,
			LearningRate:    0.001,
			ValidationSplit: 0.2,
			Patience:        10,
		},
	}
}

// Factory builds an unfitted regressor
type Factory func(p Params) Regressor

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterRegressor adds a factory to the registry
func RegisterRegressor(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// NewRegressor returns a fresh regressor by algorithm name
func NewRegressor(name string, p Params) (Regressor, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown regressor: %s", name)
	}
	return factory(p), nil
}

// ListRegressors returns the registered algorithm names, sorted
func ListRegressors() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// checkTrainingSet validates shapes and returns the feature width
func checkTrainingSet(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%d rows but %d targets", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: rows have no features", ErrFeatureMismatch)
	}
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d features, expected %d", ErrFeatureMismatch, i, len(row), width)
		}
	}
	return width, nil
}

func checkRow(x []float64, width int) error {
	if width == 0 {
		return ErrNotFitted
	}
	if len(x) != width {
		return fmt.Errorf("%w: got %d features, expected %d", ErrFeatureMismatch, len(x), width)
	}
	return nil
}

func predictAll(r Regressor, X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		v, err := r.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
