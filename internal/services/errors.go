// Package services provides the business logic layer between handlers, the CLI and
// the stores. Services encapsulate pipeline orchestration and dashboard reads.
package services

import (
	"errors"
	"fmt"
	"os"

	"github.com/healthfusion/nutriwaste/internal/dataset"
	"github.com/healthfusion/nutriwaste/internal/modelstore"
	"github.com/healthfusion/nutriwaste/internal/nutrient"
)

// Error codes returned to callers
const (
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidNutrient  = "INVALID_NUTRIENT"
	CodeInvalidAlgorithm = "INVALID_ALGORITHM"
	CodeInvalidFile      = "INVALID_FILE"
	CodeMissingColumns   = "MISSING_COLUMNS"
	CodePipelineFailed   = "PIPELINE_FAILED"
	CodeHistoryDisabled  = "HISTORY_DISABLED"
	CodeInternal         = "INTERNAL_ERROR"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`

	cause error
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error, if any
func (e *ServiceError) Unwrap() error {
	return e.cause
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// stageError classifies err raised while running stage
func stageError(stage string, err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}

	details := map[string]interface{}{"stage": stage}

	var mc *dataset.MissingColumnsError
	switch {
	case errors.As(err, &mc):
		details["file"] = mc.File
		details["missing"] = mc.Missing
		return &ServiceError{Code: CodeMissingColumns, Message: err.Error(), Details: details, cause: err}
	case errors.Is(err, os.ErrNotExist), errors.Is(err, modelstore.ErrModelNotFound):
		return &ServiceError{
			Code:    CodeNotFound,
			Message: fmt.Sprintf("%s: required input is missing: %v", stage, err),
			Details: details,
			cause:   err,
		}
	}

	return &ServiceError{
		Code:    CodePipelineFailed,
		Message: fmt.Sprintf("%s failed: %v", stage, err),
		Details: details,
		cause:   err,
	}
}

func notFound(what, path string) *ServiceError {
	return NewServiceErrorWithDetails(CodeNotFound, what+" not found", map[string]interface{}{"path": path})
}

// ParseNutrient converts a request value into a Nutrient
func ParseNutrient(s string) (nutrient.Nutrient, error) {
	n, err := nutrient.Parse(s)
	if err != nil {
		return "", &ServiceError{
			Code:    CodeInvalidNutrient,
			Message: fmt.Sprintf("invalid nutrient %q", s),
			Details: map[string]interface{}{"allowed": nutrient.All()},
			cause:   err,
		}
	}
	return n, nil
}

// ParseAlgorithm converts a request value into an Algorithm
func ParseAlgorithm(s string) (nutrient.Algorithm, error) {
	a, err := nutrient.ParseAlgorithm(s)
	if err != nil {
		return "", &ServiceError{
			Code:    CodeInvalidAlgorithm,
			Message: fmt.Sprintf("invalid algorithm %q", s),
			Details: map[string]interface{}{"allowed": nutrient.Algorithms()},
			cause:   err,
		}
	}
	return a, nil
}

// ParseAlgorithms expands "all" (or empty) into every algorithm
func ParseAlgorithms(s string) ([]nutrient.Algorithm, error) {
	if s == "" || s == "all" {
		return nutrient.Algorithms(), nil
	}
	a, err := ParseAlgorithm(s)
	if err != nil {
		return nil, err
	}
	return []nutrient.Algorithm{a}, nil
}
