package regression

import (
	"math"
)

// minMaxScaler maps the observed value range onto [0, 1]. Lags and targets
// come from the same series so a single range covers both.
type minMaxScaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func fitMinMax(X [][]float64, y []float64) minMaxScaler {
	s := minMaxScaler{Min: math.Inf(1), Max: math.Inf(-1)}
	observe := func(v float64) {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	for _, row := range X {
		for _, v := range row {
			observe(v)
		}
	}
	for _, v := range y {
		observe(v)
	}
	return s
}

func (s minMaxScaler) span() float64 {
	return s.Max - s.Min
}

func (s minMaxScaler) scale(v float64) float64 {
	if s.span() == 0 {
		return 0
	}
	return (v - s.Min) / s.span()
}

func (s minMaxScaler) unscale(v float64) float64 {
	return v*s.span() + s.Min
}

func (s minMaxScaler) scaleRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = s.scale(v)
	}
	return out
}
