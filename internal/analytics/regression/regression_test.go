package regression

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepData returns x = 0..n-1 with y = 0 below the midpoint and 10 above
func stepData(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		X[i] = []float64{float64(i)}
		if i >= n/2 {
			y[i] = 10
		}
	}
	return X, y
}

// laggedSine builds lag windows (most recent first) over a smooth series
func laggedSine(n, lags int) ([][]float64, []float64) {
	series := make([]float64, n+lags)
	for i := range series {
		series[i] = 50 + 10*math.Sin(float64(i)/3)
	}
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		t := i + lags
		row := make([]float64, lags)
		for k := 1; k <= lags; k++ {
			row[k-1] = series[t-k]
		}
		X[i] = row
		y[i] = series[t]
	}
	return X, y
}

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

func smallParams() Params {
	p := DefaultParams()
	p.Forest.NEstimators = 20
	p.Boosting.NEstimators = 60
	p.LSTM.Units = 8
	p.LSTM.Epochs = 40
	return p
}

func TestRegressorRegistry(t *testing.T) {
	for _, name := range []string{"random_forest", "xgboost", "lstm"} {
		r, err := NewRegressor(name, DefaultParams())
		require.NoError(t, err, name)
		assert.Equal(t, name, r.Name())
		assert.NotEmpty(t, r.Params())
	}

	assert.Equal(t, []string{"lstm", "random_forest", "xgboost"}, ListRegressors())

	_, err := NewRegressor("svm", DefaultParams())
	assert.Error(t, err)
}

func TestRegistryReturnsFreshInstances(t *testing.T) {
	a, err := NewRegressor("random_forest", DefaultParams())
	require.NoError(t, err)
	b, err := NewRegressor("random_forest", DefaultParams())
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestUnfittedModels(t *testing.T) {
	for _, name := range ListRegressors() {
		r, err := NewRegressor(name, DefaultParams())
		require.NoError(t, err)
		_, err = r.Predict([]float64{1, 2, 3, 4})
		assert.ErrorIs(t, err, ErrNotFitted, name)
	}
}

func TestFitValidation(t *testing.T) {
	r := NewRandomForest(ForestParams{NEstimators: 2}, 1)

	assert.ErrorIs(t, r.Fit(nil, nil), ErrEmptyTrainingSet)
	assert.Error(t, r.Fit([][]float64{{1}}, []float64{1, 2}))
	assert.ErrorIs(t, r.Fit([][]float64{{1, 2}, {3}}, []float64{1, 2}), ErrFeatureMismatch)
}

func TestFeatureMismatchAfterFit(t *testing.T) {
	X, y := laggedSine(20, 4)
	for _, name := range ListRegressors() {
		r, err := NewRegressor(name, smallParams())
		require.NoError(t, err)
		require.NoError(t, r.Fit(X, y))

		_, err = r.Predict([]float64{1, 2})
		assert.ErrorIs(t, err, ErrFeatureMismatch, name)
	}
}

func TestTreeFitsStepFunction(t *testing.T) {
	X, y := stepData(20)
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}

	tree := growTree(X, y, idx, 0, 1)
	for i, x := range X {
		assert.Equal(t, y[i], tree.predict(x))
	}
	assert.Equal(t, 1, tree.depth())
}

func TestTreeRespectsMaxDepth(t *testing.T) {
	X, y := laggedSine(40, 4)
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}

	tree := growTree(X, y, idx, 3, 1)
	assert.LessOrEqual(t, tree.depth(), 3)
}

func TestSplitPoint(t *testing.T) {
	assert.Equal(t, 1.5, splitPoint(1, 2))

	lo := 1.0
	hi := math.Nextafter(lo, 2)
	got := splitPoint(lo, hi)
	assert.GreaterOrEqual(t, got, lo)
	assert.Less(t, got, hi)
}

func TestTreeSplitsAdjacentFloats(t *testing.T) {
	lo := 0.1
	hi := math.Nextafter(lo, 1)
	X := [][]float64{{lo}, {lo}, {hi}, {hi}}
	y := []float64{0, 0, 10, 10}

	tree := growTree(X, y, []int{0, 1, 2, 3}, 0, 1)
	assert.Equal(t, 0.0, tree.predict([]float64{lo}))
	assert.Equal(t, 10.0, tree.predict([]float64{hi}))
	assert.Equal(t, 1, tree.depth())
}

func TestRandomForestStepFunction(t *testing.T) {
	X, y := stepData(20)
	rf := NewRandomForest(ForestParams{NEstimators: 30, MinSamplesLeaf: 1}, 42)
	require.NoError(t, rf.Fit(X, y))

	low, err := rf.Predict([]float64{0})
	require.NoError(t, err)
	high, err := rf.Predict([]float64{19})
	require.NoError(t, err)

	assert.Equal(t, 0.0, low)
	assert.Equal(t, 10.0, high)
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y := laggedSine(30, 4)

	a := NewRandomForest(ForestParams{NEstimators: 10}, 42)
	b := NewRandomForest(ForestParams{NEstimators: 10}, 42)
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	pa, err := a.PredictBatch(X)
	require.NoError(t, err)
	pb, err := b.PredictBatch(X)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestGradientBoostingStepFunction(t *testing.T) {
	X, y := stepData(40)
	gb := NewGradientBoosting(BoostingParams{NEstimators: 100, LearningRate: 0.1, MaxDepth: 6, Lambda: 1}, 42)
	require.NoError(t, gb.Fit(X, y))

	low, err := gb.Predict([]float64{0})
	require.NoError(t, err)
	high, err := gb.Predict([]float64{39})
	require.NoError(t, err)

	assert.InDelta(t, 0.0, low, 0.5)
	assert.InDelta(t, 10.0, high, 0.5)
}

func TestGradientBoostingLagWindows(t *testing.T) {
	X, y := laggedSine(40, 4)
	gb := NewGradientBoosting(BoostingParams{NEstimators: 100, LearningRate: 0.1, MaxDepth: 6, Lambda: 1}, 42)
	require.NoError(t, gb.Fit(X, y))

	preds, err := gb.PredictBatch(X)
	require.NoError(t, err)
	require.Len(t, preds, len(y))

	var sse, sst float64
	mean := 50.0
	for i := range y {
		sse += (y[i] - preds[i]) * (y[i] - preds[i])
		sst += (y[i] - mean) * (y[i] - mean)
	}
	assert.Less(t, sse, sst/2)
}

func TestGradientBoostingConstantTarget(t *testing.T) {
	X, _ := laggedSine(12, 4)
	y := make([]float64, len(X))
	for i := range y {
		y[i] = 7
	}
	gb := NewGradientBoosting(BoostingParams{NEstimators: 5}, 42)
	require.NoError(t, gb.Fit(X, y))

	p, err := gb.Predict(X[3])
	require.NoError(t, err)
	assert.InDelta(t, 7.0, p, 1e-9)
}

func TestGradientBoostingDefaults(t *testing.T) {
	gb := NewGradientBoosting(BoostingParams{}, 42)
	params := gb.Params()
	assert.Equal(t, 100, params["n_estimators"])
	assert.Equal(t, 0.1, params["learning_rate"])
	assert.Equal(t, 6, params["max_depth"])
	assert.Equal(t, 1, params["min_child_samples"])
	assert.Equal(t, int64(42), params["seed"])

	out, err := gb.PredictBatch(nil)
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.Nil(t, out)
}

func TestGradientBoostingSeededRefit(t *testing.T) {
	X, y := laggedSine(30, 4)
	p := smallParams().Boosting

	a := NewGradientBoosting(p, 7)
	require.NoError(t, a.Fit(X, y))
	b := NewGradientBoosting(p, 7)
	require.NoError(t, b.Fit(X, y))

	want, err := a.PredictBatch(X)
	require.NoError(t, err)
	got, err := b.PredictBatch(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLSTMReducesTrainingLoss(t *testing.T) {
	X, y := laggedSine(30, 4)
	m := NewLSTM(smallParams().LSTM, 42)
	require.NoError(t, m.Fit(X, y))

	losses := m.LossHistory()
	require.NotEmpty(t, losses)
	assert.Less(t, losses[len(losses)-1], losses[0])

	preds, err := m.PredictBatch(X)
	require.NoError(t, err)
	for _, p := range preds {
		assert.False(t, math.IsNaN(p))
	}
}

func TestLSTMGradientMatchesFiniteDifference(t *testing.T) {
	m := NewLSTM(LSTMParams{Units: 3}, 7)
	m.steps = 3
	w := m.initWeights(newTestRand())
	seq := []float64{0.2, 0.5, 0.9}
	target := 0.4

	loss := func(w []float64) float64 {
		out, _ := m.forward(w, seq)
		return (out - target) * (out - target)
	}

	out, states := m.forward(w, seq)
	grad := make([]float64, len(w))
	m.backward(w, states, 2*(out-target), grad)

	const eps = 1e-6
	for i := range w {
		orig := w[i]
		w[i] = orig + eps
		up := loss(w)
		w[i] = orig - eps
		down := loss(w)
		w[i] = orig
		assert.InDelta(t, (up-down)/(2*eps), grad[i], 1e-5, "weight %d", i)
	}
}

func TestModelsRoundTripJSON(t *testing.T) {
	X, y := laggedSine(24, 4)
	for _, name := range ListRegressors() {
		r, err := NewRegressor(name, smallParams())
		require.NoError(t, err)
		require.NoError(t, r.Fit(X, y))

		data, err := json.Marshal(r)
		require.NoError(t, err)

		restored, err := NewRegressor(name, DefaultParams())
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, restored))

		want, err := r.PredictBatch(X)
		require.NoError(t, err)
		got, err := restored.PredictBatch(X)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
		assert.Equal(t, r.Params(), restored.Params(), name)
	}
}

func TestMinMaxScaler(t *testing.T) {
	s := fitMinMax([][]float64{{2, 4}}, []float64{6})
	assert.Equal(t, 0.0, s.scale(2))
	assert.Equal(t, 1.0, s.scale(6))
	assert.Equal(t, 4.0, s.unscale(s.scale(4)))

	flat := fitMinMax([][]float64{{3}}, []float64{3})
	assert.Equal(t, 0.0, flat.scale(3))
	assert.Equal(t, 3.0, flat.unscale(0))
}
