package nutrient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Nutrient
	}{
		{"carbohydrates", Carbohydrates},
		{" Fiber ", Fiber},
		{"PROTEIN", Protein},
		{"fat", Fat},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := Parse("sugar")
	assert.True(t, errors.Is(err, ErrUnknownNutrient))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Carbohydrates", Carbohydrates.Title())
	assert.Equal(t, "", Nutrient("").Title())
}

func TestParseAlgorithm(t *testing.T) {
	for _, in := range []string{"random_forest", "Random Forest", "random-forest"} {
		a, err := ParseAlgorithm(in)
		require.NoError(t, err, in)
		assert.Equal(t, RandomForest, a)
	}

	a, err := ParseAlgorithm("XGBoost")
	require.NoError(t, err)
	assert.Equal(t, XGBoost, a)

	_, err = ParseAlgorithm("svm")
	assert.True(t, errors.Is(err, ErrUnknownAlgorithm))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Random Forest", RandomForest.DisplayName())
	assert.Equal(t, "LSTM", LSTM.DisplayName())
	assert.Equal(t, "custom", Algorithm("custom").DisplayName())
}
