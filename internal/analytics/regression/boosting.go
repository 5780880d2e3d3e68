package regression

import (
	"encoding/json"
	"fmt"

	"github.com/YuminosukeSato/scigo/sklearn/lightgbm"
	"gonum.org/v1/gonum/mat"
)

// maxBoostingLeaves caps the leaf budget derived from MaxDepth
const maxBoostingLeaves = 1 << 12

// GradientBoosting fits squared-loss boosted trees through the LightGBM
// regressor. Boosting starts from the mean target and trees grow depth-wise
// up to MaxDepth with L2-regularised leaf weights.
type GradientBoosting struct {
	params BoostingParams
	seed   int64
	model  *lightgbm.LGBMRegressor
	width  int
}

// NewGradientBoosting creates an unfitted booster
func NewGradientBoosting(p BoostingParams, seed int64) *GradientBoosting {
	if p.NEstimators < 1 {
		p.NEstimators = 100
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
	if p.MaxDepth < 1 {
		p.MaxDepth = 6
	}
	if p.Lambda < 0 {
		p.Lambda = 0
	}
	if p.MinChildSamples < 1 {
		p.MinChildSamples = 1
	}
	return &GradientBoosting{params: p, seed: seed}
}

func init() {
	RegisterRegressor("xgboost", func(p Params) Regressor {
		return NewGradientBoosting(p.Boosting, p.Seed)
	})
}

// Name returns the algorithm name
func (m *GradientBoosting) Name() string {
	return "xgboost"
}

// Params reports the boosting hyperparameters
func (m *GradientBoosting) Params() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      m.params.NEstimators,
		"learning_rate":     m.params.LearningRate,
		"max_depth":         m.params.MaxDepth,
		"lambda":            m.params.Lambda,
		"min_child_samples": m.params.MinChildSamples,
		"seed":              m.seed,
	}
}

func (m *GradientBoosting) newRegressor() *lightgbm.LGBMRegressor {
	leaves := maxBoostingLeaves
	if m.params.MaxDepth < 12 {
		leaves = 1 << m.params.MaxDepth
	}
	r := lightgbm.NewLGBMRegressor().
		WithNumIterations(m.params.NEstimators).
		WithLearningRate(m.params.LearningRate).
		WithMaxDepth(m.params.MaxDepth).
		WithNumLeaves(leaves).
		WithRandomState(int(m.seed)).
		WithDeterministic(true)
	r.RegLambda = m.params.Lambda
	r.MinChildSamples = m.params.MinChildSamples
	return r
}

// Fit runs the boosting rounds
func (m *GradientBoosting) Fit(X [][]float64, y []float64) error {
	width, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}

	target := make([]float64, len(y))
	copy(target, y)

	r := m.newRegressor()
	if err := r.Fit(denseRows(X, width), mat.NewDense(len(y), 1, target)); err != nil {
		return fmt.Errorf("boosting: %w", err)
	}

	m.model = r
	m.width = width
	return nil
}

// Predict returns the boosted prediction for one row
func (m *GradientBoosting) Predict(x []float64) (float64, error) {
	out, err := m.PredictBatch([][]float64{x})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// PredictBatch predicts every row of X in one pass
func (m *GradientBoosting) PredictBatch(X [][]float64) ([]float64, error) {
	if m.model == nil {
		return nil, ErrNotFitted
	}
	for i, x := range X {
		if err := checkRow(x, m.width); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	if len(X) == 0 {
		return []float64{}, nil
	}

	pred, err := m.model.Predict(denseRows(X, m.width))
	if err != nil {
		return nil, fmt.Errorf("boosting: %w", err)
	}
	out := make([]float64, len(X))
	for i := range out {
		out[i] = pred.At(i, 0)
	}
	return out, nil
}

// denseRows copies row-major features into a matrix
func denseRows(X [][]float64, width int) *mat.Dense {
	data := make([]float64, 0, len(X)*width)
	for _, row := range X {
		data = append(data, row...)
	}
	return mat.NewDense(len(X), width, data)
}

type boostingState struct {
	Params    BoostingParams  `json:"params"`
	Seed      int64           `json:"seed"`
	Width     int             `json:"width"`
	InitScore float64         `json:"init_score"`
	Trees     json.RawMessage `json:"trees,omitempty"`
}

// MarshalJSON serialises the fitted booster. The tree dump does not carry
// the initial score, so it is stored alongside.
func (m *GradientBoosting) MarshalJSON() ([]byte, error) {
	s := boostingState{Params: m.params, Seed: m.seed, Width: m.width}
	if m.model != nil {
		trees, err := m.model.Model.ToJSON()
		if err != nil {
			return nil, err
		}
		s.Trees = trees
		s.InitScore = m.model.Model.InitScore
	}
	return json.Marshal(s)
}

// UnmarshalJSON restores a booster written by MarshalJSON
func (m *GradientBoosting) UnmarshalJSON(data []byte) error {
	var s boostingState
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	m.params, m.seed, m.width, m.model = s.Params, s.Seed, s.Width, nil
	if len(s.Trees) == 0 {
		return nil
	}

	r := m.newRegressor()
	if err := r.LoadModelFromJSON(s.Trees); err != nil {
		return err
	}
	r.Model.InitScore = s.InitScore
	r.Model.LearningRate = s.Params.LearningRate
	r.Predictor.SetDeterministic(true)
	m.model = r
	return nil
}
