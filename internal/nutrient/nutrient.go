// Package nutrient defines the nutrient series and regression algorithms the
// pipeline and dashboard are keyed on.
package nutrient

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownNutrient is returned when a nutrient name cannot be parsed
	ErrUnknownNutrient = errors.New("unknown nutrient")
	// ErrUnknownAlgorithm is returned when an algorithm name cannot be parsed
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)

// Nutrient identifies one wasted-nutrient series
type Nutrient string

const (
	Carbohydrates Nutrient = "carbohydrates"
	Fiber         Nutrient = "fiber"
	Protein       Nutrient = "protein"
	Fat           Nutrient = "fat"
)

// All returns every nutrient in pipeline order
func All() []Nutrient {
	return []Nutrient{Carbohydrates, Fiber, Protein, Fat}
}

// Parse converts a user supplied name into a Nutrient
func Parse(s string) (Nutrient, error) {
	n := Nutrient(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range All() {
		if n == known {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNutrient, s)
}

// String returns the column name of the nutrient
func (n Nutrient) String() string {
	return string(n)
}

// Title returns the capitalized nutrient name used in chart titles
func (n Nutrient) Title() string {
	if n == "" {
		return ""
	}
	s := string(n)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Algorithm identifies a regression approach
type Algorithm string

const (
	RandomForest Algorithm = "random_forest"
	XGBoost      Algorithm = "xgboost"
	LSTM         Algorithm = "lstm"
)

var displayNames = map[Algorithm]string{
	RandomForest: "Random Forest",
	XGBoost:      "XGBoost",
	LSTM:         "LSTM",
}

// Algorithms returns every supported algorithm
func Algorithms() []Algorithm {
	return []Algorithm{RandomForest, XGBoost, LSTM}
}

// ParseAlgorithm accepts either the identifier ("random_forest") or the
// display name ("Random Forest")
func ParseAlgorithm(s string) (Algorithm, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	for _, a := range Algorithms() {
		if key == string(a) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// String returns the algorithm identifier
func (a Algorithm) String() string {
	return string(a)
}

// DisplayName returns the human readable algorithm name
func (a Algorithm) DisplayName() string {
	if name, ok := displayNames[a]; ok {
		return name
	}
	return string(a)
}
