package regression

import (
	"encoding/json"
	"math/rand"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// RandomForest averages CART trees grown on bootstrap samples
type RandomForest struct {
	params ForestParams
	seed   int64
	trees  []*regressionTree
	width  int
}

// NewRandomForest creates an unfitted forest
func NewRandomForest(p ForestParams, seed int64) *RandomForest {
	if p.NEstimators < 1 {
		p.NEstimators = 100
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return &RandomForest{params: p, seed: seed}
}

func init() {
	RegisterRegressor("random_forest", func(p Params) Regressor {
		return NewRandomForest(p.Forest, p.Seed)
	})
}

// Name returns the algorithm name
func (m *RandomForest) Name() string {
	return "random_forest"
}

// Params reports the forest hyperparameters
func (m *RandomForest) Params() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     m.params.NEstimators,
		"max_depth":        m.params.MaxDepth,
		"min_samples_leaf": m.params.MinSamplesLeaf,
		"seed":             m.seed,
	}
}

// Fit grows every tree. Bootstrap samples are drawn up front from the seeded
// source so the result does not depend on goroutine scheduling.
func (m *RandomForest) Fit(X [][]float64, y []float64) error {
	width, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(m.seed))
	samples := make([][]int, m.params.NEstimators)
	for t := range samples {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = rng.Intn(len(X))
		}
		samples[t] = idx
	}

	trees := make([]*regressionTree, m.params.NEstimators)
	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < runtime.GOMAXPROCS(0); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range work {
				trees[t] = growTree(X, y, samples[t], m.params.MaxDepth, m.params.MinSamplesLeaf)
			}
		}()
	}
	for t := range samples {
		work <- t
	}
	close(work)
	wg.Wait()

	m.trees = trees
	m.width = width
	return nil
}

// Predict averages the tree outputs
func (m *RandomForest) Predict(x []float64) (float64, error) {
	if err := checkRow(x, m.width); err != nil {
		return 0, err
	}
	votes := make([]float64, len(m.trees))
	for i, t := range m.trees {
		votes[i] = t.predict(x)
	}
	return stat.Mean(votes, nil), nil
}

// PredictBatch predicts every row of X
func (m *RandomForest) PredictBatch(X [][]float64) ([]float64, error) {
	return predictAll(m, X)
}

type forestState struct {
	Params ForestParams      `json:"params"`
	Seed   int64             `json:"seed"`
	Width  int               `json:"width"`
	Trees  []*regressionTree `json:"trees"`
}

// MarshalJSON serialises the fitted forest
func (m *RandomForest) MarshalJSON() ([]byte, error) {
	return json.Marshal(forestState{Params: m.params, Seed: m.seed, Width: m.width, Trees: m.trees})
}

// UnmarshalJSON restores a forest written by MarshalJSON
func (m *RandomForest) UnmarshalJSON(data []byte) error {
	var s forestState
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	m.params, m.seed, m.width, m.trees = s.Params, s.Seed, s.Width, s.Trees
	return nil
}
