package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/healthfusion/nutriwaste/internal/logging"
	"github.com/healthfusion/nutriwaste/internal/models"
)

// errorCode turns an HTTP status into an upper snake case code,
// e.g. 413 becomes REQUEST_ENTITY_TOO_LARGE
func errorCode(status int) string {
	msg := utils.StatusMessage(status)
	if msg == "" {
		return "ERROR"
	}
	msg = strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(msg)
	return strings.ToUpper(msg)
}

// ErrorHandler returns the fallback error handler for errors that escape the handlers
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		}

		fields := []interface{}{
			"path", c.Path(),
			"method", c.Method(),
			"status", status,
			"error", err,
		}
		if status >= fiber.StatusInternalServerError {
			logger.WithContext(c.UserContext()).Error("Request error", fields...)
		} else {
			logger.WithContext(c.UserContext()).Warn("Request rejected", fields...)
		}

		return c.Status(status).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    errorCode(status),
				Message: message,
				Path:    c.Path(),
			},
		})
	}
}
