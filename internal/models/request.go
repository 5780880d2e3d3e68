package models

// Query parameter sets accepted by the dashboard API.
// Nutrient and algorithm names are checked by the services, which know the
// aliases; validation here only covers presence and ranges.

// SelectionQuery selects one nutrient and one algorithm
type SelectionQuery struct {
	Nutrient  string `query:"nutrient" validate:"required"`
	Algorithm string `query:"algorithm" validate:"required"`
}

// NutrientQuery selects one nutrient
type NutrientQuery struct {
	Nutrient string `query:"nutrient" validate:"required"`
}

// AlgorithmQuery selects one algorithm
type AlgorithmQuery struct {
	Algorithm string `query:"algorithm" validate:"required"`
}

// HistoryQuery selects the score history of one model
type HistoryQuery struct {
	Nutrient  string `query:"nutrient" validate:"required"`
	Algorithm string `query:"algorithm" validate:"required"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

// ChartParams identifies a chart file
type ChartParams struct {
	Name string `params:"name" validate:"required,max=128"`
}
