package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/healthfusion/nutriwaste/internal/logging"
	"github.com/healthfusion/nutriwaste/internal/models"
	"github.com/healthfusion/nutriwaste/internal/services"
)

// Version reported by the health endpoint
const Version = "1.0.0"

// Handler contains all HTTP handlers
type Handler struct {
	logger    *logging.Logger
	dashboard *services.DashboardService
}

// New creates a new handler instance
func New(logger *logging.Logger, dashboard *services.DashboardService) *Handler {
	return &Handler{
		logger:    logger,
		dashboard: dashboard,
	}
}

// statusFor maps a service error code to an HTTP status
func statusFor(code string) int {
	switch code {
	case services.CodeNotFound:
		return fiber.StatusNotFound
	case services.CodeInvalidNutrient, services.CodeInvalidAlgorithm, services.CodeInvalidFile:
		return fiber.StatusBadRequest
	case services.CodeMissingColumns:
		return fiber.StatusUnprocessableEntity
	case services.CodeHistoryDisabled:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as an error response
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		status := statusFor(svcErr.Code)
		if status >= fiber.StatusInternalServerError {
			h.logger.WithContext(c.UserContext()).Error("Request failed", "path", c.Path(), "code", svcErr.Code, "error", err)
		}
		return c.Status(status).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    svcErr.Code,
				Message: svcErr.Message,
				Path:    c.Path(),
				Details: svcErr.Details,
			},
		})
	}

	h.logger.WithContext(c.UserContext()).Error("Request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    services.CodeInternal,
			Message: err.Error(),
			Path:    c.Path(),
		},
	})
}
