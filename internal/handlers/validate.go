package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/healthfusion/nutriwaste/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator. Field errors are reported with
// the query or path parameter name.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"query", "params", "form"} {
				if name := strings.Split(f.Tag.Get(tag), ",")[0]; name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	})
	return validate
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// validationError converts validator output into an error response body
func validationError(err error) models.ErrorDetail {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return models.ErrorDetail{Code: "VALIDATION_ERROR", Message: err.Error()}
	}

	messages := make([]string, len(fieldErrs))
	fields := make([]map[string]interface{}, len(fieldErrs))
	for i, fe := range fieldErrs {
		messages[i] = fieldMessage(fe)
		fields[i] = map[string]interface{}{
			"field": fe.Field(),
			"tag":   fe.Tag(),
		}
	}
	return models.ErrorDetail{
		Code:    "VALIDATION_ERROR",
		Message: strings.Join(messages, "; "),
		Details: map[string]interface{}{"fields": fields},
	}
}

// bindQuery parses and validates the query string into out. A non-nil
// result describes why the request is rejected.
func bindQuery(c *fiber.Ctx, out interface{}) *models.ErrorDetail {
	if err := c.QueryParser(out); err != nil {
		return &models.ErrorDetail{
			Code:    "INVALID_REQUEST",
			Message: "Failed to parse query parameters",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}
	return checkStruct(out)
}

// bindParams parses and validates route parameters into out
func bindParams(c *fiber.Ctx, out interface{}) *models.ErrorDetail {
	if err := c.ParamsParser(out); err != nil {
		return &models.ErrorDetail{
			Code:    "INVALID_REQUEST",
			Message: "Failed to parse path parameters",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}
	return checkStruct(out)
}

func checkStruct(out interface{}) *models.ErrorDetail {
	if err := getValidator().Struct(out); err != nil {
		detail := validationError(err)
		return &detail
	}
	return nil
}

func badRequest(c *fiber.Ctx, detail *models.ErrorDetail) error {
	detail.Path = c.Path()
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: *detail})
}
