package handlers

import (
	"io"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/healthfusion/nutriwaste/internal/models"
	"github.com/healthfusion/nutriwaste/internal/services"
)

// Overview lists nutrients, algorithms and available charts
// GET /v1/overview
func (h *Handler) Overview(c *fiber.Ctx) error {
	out, err := h.dashboard.Overview(c.UserContext())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(out)
}

// Predictions returns the training forecast of one nutrient and algorithm
// GET /v1/predictions?nutrient=&algorithm=
func (h *Handler) Predictions(c *fiber.Ctx) error {
	var q models.SelectionQuery
	if detail := bindQuery(c, &q); detail != nil {
		return badRequest(c, detail)
	}
	n, err := services.ParseNutrient(q.Nutrient)
	if err != nil {
		return h.respondError(c, err)
	}
	a, err := services.ParseAlgorithm(q.Algorithm)
	if err != nil {
		return h.respondError(c, err)
	}

	out, err := h.dashboard.Predictions(c.UserContext(), n, a)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(out)
}

// Forecast returns the rolled-out future forecast
// GET /v1/forecast?nutrient=&algorithm=
func (h *Handler) Forecast(c *fiber.Ctx) error {
	var q models.SelectionQuery
	if detail := bindQuery(c, &q); detail != nil {
		return badRequest(c, detail)
	}
	n, err := services.ParseNutrient(q.Nutrient)
	if err != nil {
		return h.respondError(c, err)
	}
	a, err := services.ParseAlgorithm(q.Algorithm)
	if err != nil {
		return h.respondError(c, err)
	}

	out, err := h.dashboard.FutureForecast(c.UserContext(), n, a)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(out)
}

// Compare returns every algorithm's future forecast for a nutrient
// GET /v1/compare?nutrient=
func (h *Handler) Compare(c *fiber.Ctx) error {
	var q models.NutrientQuery
	if detail := bindQuery(c, &q); detail != nil {
		return badRequest(c, detail)
	}
	n, err := services.ParseNutrient(q.Nutrient)
	if err != nil {
		return h.respondError(c, err)
	}

	out, err := h.dashboard.Compare(c.UserContext(), n)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(out)
}

// BestModel returns the algorithm with the lowest test RMSE
// GET /v1/best?nutrient=
func (h *Handler) BestModel(c *fiber.Ctx) error {
	var q models.NutrientQuery
	if detail := bindQuery(c, &q); detail != nil {
		return badRequest(c, detail)
	}
	n, err := services.ParseNutrient(q.Nutrient)
	if err != nil {
		return h.respondError(c, err)
	}

	out, err := h.dashboard.BestModel(c.UserContext(), n)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(out)
}

// Scores returns an algorithm's score file
// GET /v1/scores?algorithm=
func (h *Handler) Scores(c *fiber.Ctx) error {
	var q models.AlgorithmQuery
	if detail := bindQuery(c, &q); detail != nil {
		return badRequest(c, detail)
	}
	a, err := services.ParseAlgorithm(q.Algorithm)
	if err != nil {
		return h.respondError(c, err)
	}

	rows, err := h.dashboard.Scores(c.UserContext(), a)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(models.ListResponse{Items: rows, Count: len(rows)})
}

// ScoreHistory returns recorded scores of one model, newest first
// GET /v1/scores/history?nutrient=&algorithm=&limit=
func (h *Handler) ScoreHistory(c *fiber.Ctx) error {
	var q models.HistoryQuery
	if detail := bindQuery(c, &q); detail != nil {
		return badRequest(c, detail)
	}
	n, err := services.ParseNutrient(q.Nutrient)
	if err != nil {
		return h.respondError(c, err)
	}
	a, err := services.ParseAlgorithm(q.Algorithm)
	if err != nil {
		return h.respondError(c, err)
	}

	scores, err := h.dashboard.ScoreHistory(c.UserContext(), n, a, q.Limit)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(models.ListResponse{Items: scores, Count: len(scores)})
}

// Chart serves a rendered PNG
// GET /v1/charts/:name
func (h *Handler) Chart(c *fiber.Ctx) error {
	var p models.ChartParams
	if detail := bindParams(c, &p); detail != nil {
		return badRequest(c, detail)
	}

	path, err := h.dashboard.ChartPath(p.Name)
	if err != nil {
		return h.respondError(c, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return h.respondError(c, err)
	}
	c.Type("png")
	return c.SendFile(abs)
}

// Upload stores a raw CSV after checking its columns
// POST /v1/upload (multipart field "file")
func (h *Handler) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, &models.ErrorDetail{
			Code:    "INVALID_REQUEST",
			Message: "multipart field \"file\" is required",
		})
	}

	f, err := fh.Open()
	if err != nil {
		return h.respondError(c, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return h.respondError(c, err)
	}

	out, err := h.dashboard.Upload(c.UserContext(), fh.Filename, content)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}
