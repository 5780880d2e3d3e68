package regression

import (
	"encoding/json"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Gate order inside the weight layout
const (
	gateInput = iota
	gateForget
	gateCell
	gateOutput
	numGates
)

// LSTM is a single recurrent layer followed by a linear output unit. Each
// feature of a row is one time step, fed in column order. The cell and
// output activations are ReLU, the gates are sigmoids.
type LSTM struct {
	params  LSTMParams
	seed    int64
	steps   int
	weights []float64
	scaler  minMaxScaler
	losses  []float64
}

// NewLSTM creates an unfitted network
func NewLSTM(p LSTMParams, seed int64) *LSTM {
	d := DefaultParams().LSTM
	if p.Units < 1 {
		p.Units = d.Units
	}
	if p.Epochs < 1 {
		p.Epochs = d.Epochs
	}
	if p.BatchSize < 1 {
		p.BatchSize = d.BatchSize
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.ValidationSplit < 0 || p.ValidationSplit >= 1 {
		p.ValidationSplit = d.ValidationSplit
	}
	if p.Patience < 1 {
		p.Patience = d.Patience
	}
	return &LSTM{params: p, seed: seed}
}

func init() {
	RegisterRegressor("lstm", func(p Params) Regressor {
		return NewLSTM(p.LSTM, p.Seed)
	})
}

// Name returns the algorithm name
func (m *LSTM) Name() string {
	return "lstm"
}

// Params reports the network hyperparameters
func (m *LSTM) Params() map[string]interface{} {
	return map[string]interface{}{
		"units":            m.params.Units,
		"epochs":           m.params.Epochs,
		"batch_size":       m.params.BatchSize,
		"learning_rate":    m.params.LearningRate,
		"validation_split": m.params.ValidationSplit,
		"patience":         m.params.Patience,
		"seed":             m.seed,
	}
}

// LossHistory returns the mean training loss of each completed epoch
func (m *LSTM) LossHistory() []float64 {
	return m.losses
}

// layout maps gate/unit indices into the flat weight vector:
// input kernel, recurrent kernel, gate bias, dense kernel, dense bias.
type layout struct{ h int }

func (l layout) wx(g, u int) int    { return g*l.h + u }
func (l layout) wh(g, u, v int) int { return numGates*l.h + (g*l.h+u)*l.h + v }
func (l layout) b(g, u int) int     { return numGates*l.h + numGates*l.h*l.h + g*l.h + u }
func (l layout) wd(u int) int       { return 2*numGates*l.h + numGates*l.h*l.h + u }
func (l layout) bd() int            { return 2*numGates*l.h + numGates*l.h*l.h + l.h }
func (l layout) size() int          { return l.bd() + 1 }

type cellState struct {
	x            float64
	hPrev, cPrev []float64
	gates        [numGates][]float64
	zCell        []float64
	c, h         []float64
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func relu(z float64) float64 {
	if z > 0 {
		return z
	}
	return 0
}

func reluGrad(z float64) float64 {
	if z > 0 {
		return 1
	}
	return 0
}

// initWeights follows the usual recurrent initialisation: glorot-uniform
// kernels, orthogonal recurrent blocks and a forget-gate bias of one.
func (m *LSTM) initWeights(rng *rand.Rand) []float64 {
	l := layout{m.params.Units}
	h := l.h
	w := make([]float64, l.size())

	limit := math.Sqrt(6 / float64(1+numGates*h))
	for g := 0; g < numGates; g++ {
		for u := 0; u < h; u++ {
			w[l.wx(g, u)] = (rng.Float64()*2 - 1) * limit
		}
	}

	for g := 0; g < numGates; g++ {
		data := make([]float64, h*h)
		for i := range data {
			data[i] = rng.NormFloat64()
		}
		var qr mat.QR
		qr.Factorize(mat.NewDense(h, h, data))
		var q mat.Dense
		qr.QTo(&q)
		for u := 0; u < h; u++ {
			for v := 0; v < h; v++ {
				w[l.wh(g, u, v)] = q.At(u, v)
			}
		}
	}

	for u := 0; u < h; u++ {
		w[l.b(gateForget, u)] = 1
	}

	limit = math.Sqrt(6 / float64(h+1))
	for u := 0; u < h; u++ {
		w[l.wd(u)] = (rng.Float64()*2 - 1) * limit
	}
	return w
}

func (m *LSTM) forward(w, seq []float64) (float64, []cellState) {
	l := layout{m.params.Units}
	h := make([]float64, l.h)
	c := make([]float64, l.h)
	states := make([]cellState, len(seq))

	for t, x := range seq {
		st := cellState{x: x, hPrev: h, cPrev: c, zCell: make([]float64, l.h)}
		for g := range st.gates {
			st.gates[g] = make([]float64, l.h)
		}
		st.c = make([]float64, l.h)
		st.h = make([]float64, l.h)

		for u := 0; u < l.h; u++ {
			var z [numGates]float64
			for g := 0; g < numGates; g++ {
				z[g] = w[l.wx(g, u)]*x + w[l.b(g, u)] + floats.Dot(w[l.wh(g, u, 0):l.wh(g, u, 0)+l.h], h)
			}
			st.gates[gateInput][u] = sigmoid(z[gateInput])
			st.gates[gateForget][u] = sigmoid(z[gateForget])
			st.zCell[u] = z[gateCell]
			st.gates[gateCell][u] = relu(z[gateCell])
			st.gates[gateOutput][u] = sigmoid(z[gateOutput])

			st.c[u] = st.gates[gateForget][u]*c[u] + st.gates[gateInput][u]*st.gates[gateCell][u]
			st.h[u] = st.gates[gateOutput][u] * relu(st.c[u])
		}
		states[t] = st
		h, c = st.h, st.c
	}

	out := w[l.bd()] + floats.Dot(w[l.wd(0):l.wd(0)+l.h], h)
	return out, states
}

// backward accumulates dLoss/dw into grad by backpropagation through time
func (m *LSTM) backward(w []float64, states []cellState, dy float64, grad []float64) {
	l := layout{m.params.Units}
	last := states[len(states)-1]

	dh := make([]float64, l.h)
	for u := 0; u < l.h; u++ {
		grad[l.wd(u)] += dy * last.h[u]
		dh[u] = dy * w[l.wd(u)]
	}
	grad[l.bd()] += dy

	dc := make([]float64, l.h)
	var dz [numGates][]float64
	for g := range dz {
		dz[g] = make([]float64, l.h)
	}

	for t := len(states) - 1; t >= 0; t-- {
		st := states[t]
		dcPrev := make([]float64, l.h)
		dhPrev := make([]float64, l.h)

		for u := 0; u < l.h; u++ {
			i, f := st.gates[gateInput][u], st.gates[gateForget][u]
			g, o := st.gates[gateCell][u], st.gates[gateOutput][u]

			dO := dh[u] * relu(st.c[u])
			dcu := dc[u] + dh[u]*o*reluGrad(st.c[u])

			dz[gateInput][u] = dcu * g * i * (1 - i)
			dz[gateForget][u] = dcu * st.cPrev[u] * f * (1 - f)
			dz[gateCell][u] = dcu * i * reluGrad(st.zCell[u])
			dz[gateOutput][u] = dO * o * (1 - o)
			dcPrev[u] = dcu * f
		}

		for g := 0; g < numGates; g++ {
			for u := 0; u < l.h; u++ {
				d := dz[g][u]
				if d == 0 {
					continue
				}
				grad[l.wx(g, u)] += d * st.x
				grad[l.b(g, u)] += d
				row := l.wh(g, u, 0)
				floats.AddScaled(grad[row:row+l.h], d, st.hPrev)
				floats.AddScaled(dhPrev, d, w[row:row+l.h])
			}
		}
		dh, dc = dhPrev, dcPrev
	}
}

// adam implements the Adam update rule
type adam struct {
	lr, beta1, beta2, eps float64
	m, v                  []float64
	t                     int
}

func newAdam(size int, lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7, m: make([]float64, size), v: make([]float64, size)}
}

func (a *adam) step(w, grad []float64) {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, g := range grad {
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		w[i] -= a.lr * (a.m[i] / bc1) / (math.Sqrt(a.v[i]/bc2) + a.eps)
	}
}

func (m *LSTM) meanLoss(w []float64, X [][]float64, y []float64) float64 {
	if len(X) == 0 {
		return 0
	}
	sum := 0.0
	for i, x := range X {
		out, _ := m.forward(w, x)
		d := out - y[i]
		sum += d * d
	}
	return sum / float64(len(X))
}

// Fit trains with mini-batch Adam on min-max scaled data. The trailing
// ValidationSplit fraction of rows is held out; training stops once the
// validation loss has not improved for Patience epochs and the best
// weights are kept.
func (m *LSTM) Fit(X [][]float64, y []float64) error {
	width, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}

	m.scaler = fitMinMax(X, y)
	Xs := make([][]float64, len(X))
	ys := make([]float64, len(y))
	for i := range X {
		Xs[i] = m.scaler.scaleRow(X[i])
		ys[i] = m.scaler.scale(y[i])
	}

	splitAt := int(float64(len(Xs)) * (1 - m.params.ValidationSplit))
	if splitAt < 1 {
		splitAt = len(Xs)
	}
	trainX, trainY := Xs[:splitAt], ys[:splitAt]
	valX, valY := Xs[splitAt:], ys[splitAt:]

	rng := rand.New(rand.NewSource(m.seed))
	m.steps = width
	w := m.initWeights(rng)
	opt := newAdam(len(w), m.params.LearningRate)
	grad := make([]float64, len(w))

	order := make([]int, len(trainX))
	for i := range order {
		order[i] = i
	}

	best := math.Inf(1)
	bestW := append([]float64(nil), w...)
	wait := 0
	m.losses = m.losses[:0]

	for epoch := 0; epoch < m.params.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		epochLoss := 0.0
		for start := 0; start < len(order); start += m.params.BatchSize {
			end := start + m.params.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]

			floats.Scale(0, grad)
			for _, i := range batch {
				out, states := m.forward(w, trainX[i])
				diff := out - trainY[i]
				epochLoss += diff * diff
				m.backward(w, states, 2*diff/float64(len(batch)), grad)
			}
			opt.step(w, grad)
		}
		epochLoss /= float64(len(order))
		m.losses = append(m.losses, epochLoss)

		monitor := epochLoss
		if len(valX) > 0 {
			monitor = m.meanLoss(w, valX, valY)
		}
		if monitor < best {
			best = monitor
			copy(bestW, w)
			wait = 0
			continue
		}
		wait++
		if wait >= m.params.Patience {
			break
		}
	}

	m.weights = bestW
	return nil
}

// Predict runs the network on one row and maps the output back to the
// original scale
func (m *LSTM) Predict(x []float64) (float64, error) {
	if m.weights == nil {
		return 0, ErrNotFitted
	}
	if err := checkRow(x, m.steps); err != nil {
		return 0, err
	}
	out, _ := m.forward(m.weights, m.scaler.scaleRow(x))
	return m.scaler.unscale(out), nil
}

// PredictBatch predicts every row of X
func (m *LSTM) PredictBatch(X [][]float64) ([]float64, error) {
	return predictAll(m, X)
}

type lstmState struct {
	Params  LSTMParams   `json:"params"`
	Seed    int64        `json:"seed"`
	Steps   int          `json:"steps"`
	Scaler  minMaxScaler `json:"scaler"`
	Weights []float64    `json:"weights"`
}

// MarshalJSON serialises the trained weights and scaler
func (m *LSTM) MarshalJSON() ([]byte, error) {
	return json.Marshal(lstmState{
		Params:  m.params,
		Seed:    m.seed,
		Steps:   m.steps,
		Scaler:  m.scaler,
		Weights: m.weights,
	})
}

// UnmarshalJSON restores a network written by MarshalJSON
func (m *LSTM) UnmarshalJSON(data []byte) error {
	var s lstmState
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	m.params, m.seed, m.steps, m.scaler, m.weights = s.Params, s.Seed, s.Steps, s.Scaler, s.Weights
	return nil
}
