package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/healthfusion/nutriwaste/internal/config"
	"github.com/healthfusion/nutriwaste/internal/dataset"
	"github.com/healthfusion/nutriwaste/internal/logging"
	"github.com/healthfusion/nutriwaste/internal/modelstore"
	"github.com/healthfusion/nutriwaste/internal/nutrient"
	"github.com/healthfusion/nutriwaste/internal/scorestore"
)

// DashboardService serves the files written by the pipeline
type DashboardService struct {
	logger  *logging.Logger
	cfg     *config.Config
	layout  Layout
	models  *modelstore.Store
	history *scorestore.Store
	cache   *fileCache
}

// NewDashboardService creates a new DashboardService. history may be nil.
func NewDashboardService(logger *logging.Logger, cfg *config.Config, models *modelstore.Store, history *scorestore.Store) *DashboardService {
	return &DashboardService{
		logger:  logger,
		cfg:     cfg,
		layout:  NewLayout(&cfg.Data),
		models:  models,
		history: history,
		cache:   newFileCache(),
	}
}

// NutrientInfo names a selectable nutrient
type NutrientInfo struct {
	ID    nutrient.Nutrient `json:"id"`
	Title string            `json:"title"`
}

// AlgorithmInfo names a selectable algorithm
type AlgorithmInfo struct {
	ID   nutrient.Algorithm `json:"id"`
	Name string             `json:"name"`
}

// Overview lists the selectors and the charts currently available
type Overview struct {
	Nutrients      []NutrientInfo        `json:"nutrients"`
	Algorithms     []AlgorithmInfo       `json:"algorithms"`
	Charts         []string              `json:"charts"`
	TopWastedChart string                `json:"top_wasted_chart,omitempty"`
	StockChart     string                `json:"stock_chart,omitempty"`
	Models         []modelstore.Metadata `json:"models"`
}

// Prediction is the training forecast of one nutrient and algorithm
type Prediction struct {
	Nutrient      nutrient.Nutrient     `json:"nutrient"`
	Algorithm     nutrient.Algorithm    `json:"algorithm"`
	AlgorithmName string                `json:"algorithm_name"`
	Series        []dataset.ForecastRow `json:"series"`
	Score         *dataset.ScoreRow     `json:"score,omitempty"`
	NextWeeks     []dataset.FutureRow   `json:"next_weeks"`
	Chart         string                `json:"chart,omitempty"`
}

// FutureForecast is the rolled-out forecast of one nutrient and algorithm
type FutureForecast struct {
	Nutrient      nutrient.Nutrient   `json:"nutrient"`
	Algorithm     nutrient.Algorithm  `json:"algorithm"`
	AlgorithmName string              `json:"algorithm_name"`
	Rows          []dataset.FutureRow `json:"rows"`
	Chart         string              `json:"chart,omitempty"`
}

// Comparison holds the future forecasts of every algorithm for a nutrient
type Comparison struct {
	Nutrient  nutrient.Nutrient                          `json:"nutrient"`
	Forecasts map[nutrient.Algorithm][]dataset.FutureRow `json:"forecasts"`
	Missing   []nutrient.Algorithm                       `json:"missing,omitempty"`
}

// Candidate is one algorithm considered for the best model
type Candidate struct {
	Algorithm nutrient.Algorithm `json:"algorithm"`
	TestRMSE  float64            `json:"test_rmse"`
}

// BestModel is the algorithm with the lowest test RMSE for a nutrient
type BestModel struct {
	Nutrient      nutrient.Nutrient  `json:"nutrient"`
	Algorithm     nutrient.Algorithm `json:"algorithm"`
	AlgorithmName string             `json:"algorithm_name"`
	Score         dataset.ScoreRow   `json:"score"`
	Candidates    []Candidate        `json:"candidates"`
}

// UploadResult describes a stored upload
type UploadResult struct {
	File  string `json:"file"`
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// Overview returns the selectors and available charts
func (s *DashboardService) Overview(ctx context.Context) (*Overview, error) {
	out := &Overview{}
	for _, n := range nutrient.All() {
		out.Nutrients = append(out.Nutrients, NutrientInfo{ID: n, Title: n.Title()})
	}
	for _, a := range nutrient.Algorithms() {
		out.Algorithms = append(out.Algorithms, AlgorithmInfo{ID: a, Name: a.DisplayName()})
	}

	chartSet := make(map[string]bool)
	for _, dir := range s.layout.ChartDirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, NewServiceError(CodeInternal, fmt.Sprintf("failed to list charts: %v", err))
		}
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".png") {
				chartSet[e.Name()] = true
			}
		}
	}
	for name := range chartSet {
		out.Charts = append(out.Charts, name)
	}
	sort.Strings(out.Charts)

	if chartSet[TopWastedChart] {
		out.TopWastedChart = TopWastedChart
	}
	if chartSet[StockChart] {
		out.StockChart = StockChart
	}

	models, err := s.models.List()
	if err != nil {
		s.log(ctx).Warn("Failed to list models", "error", err)
	}
	if models == nil {
		models = []modelstore.Metadata{}
	}
	out.Models = models

	return out, nil
}

// Predictions returns the training forecast, its score and the test-period table
func (s *DashboardService) Predictions(ctx context.Context, n nutrient.Nutrient, a nutrient.Algorithm) (*Prediction, error) {
	path := s.layout.Forecast(n, a)
	rows, err := cachedRead(s.cache, path, dataset.ReadForecast)
	if err != nil {
		return nil, s.readError("forecast", path, err)
	}

	out := &Prediction{
		Nutrient:      n,
		Algorithm:     a,
		AlgorithmName: a.DisplayName(),
		Series:        rows,
		NextWeeks:     []dataset.FutureRow{},
	}
	for _, r := range rows {
		if r.PredictedTest.Valid {
			out.NextWeeks = append(out.NextWeeks, dataset.FutureRow{
				Week:       len(out.NextWeeks) + 1,
				Date:       r.Date,
				Prediction: r.PredictedTest.Value,
			})
		}
	}

	if score, err := s.scoreFor(n, a); err == nil {
		out.Score = score
	} else if !isNotFound(err) {
		return nil, err
	}
	if s.exists(s.layout.ForecastChart(n, a)) {
		out.Chart = ForecastChartName(n, a)
	}

	s.log(ctx).Debug("Predictions served", "nutrient", n, "algorithm", a, "rows", len(rows))
	return out, nil
}

// FutureForecast returns the rolled-out forecast written by the pipeline
func (s *DashboardService) FutureForecast(ctx context.Context, n nutrient.Nutrient, a nutrient.Algorithm) (*FutureForecast, error) {
	path := s.layout.Future(n, a)
	rows, err := cachedRead(s.cache, path, dataset.ReadFuture)
	if err != nil {
		return nil, s.readError("future forecast", path, err)
	}

	out := &FutureForecast{Nutrient: n, Algorithm: a, AlgorithmName: a.DisplayName(), Rows: rows}
	if s.exists(s.layout.FutureChart(n, a)) {
		out.Chart = FutureChartName(n, a)
	}
	return out, nil
}

// Compare returns the future forecast of every algorithm that has one
func (s *DashboardService) Compare(ctx context.Context, n nutrient.Nutrient) (*Comparison, error) {
	out := &Comparison{Nutrient: n, Forecasts: make(map[nutrient.Algorithm][]dataset.FutureRow)}
	for _, a := range nutrient.Algorithms() {
		f, err := s.FutureForecast(ctx, n, a)
		if err != nil {
			if isNotFound(err) {
				out.Missing = append(out.Missing, a)
				continue
			}
			return nil, err
		}
		out.Forecasts[a] = f.Rows
	}

	if len(out.Forecasts) == 0 {
		return nil, NewServiceErrorWithDetails(CodeNotFound,
			fmt.Sprintf("no future forecasts for %s", n),
			map[string]interface{}{"nutrient": n})
	}
	return out, nil
}

// BestModel picks the algorithm with the lowest test RMSE for n
func (s *DashboardService) BestModel(ctx context.Context, n nutrient.Nutrient) (*BestModel, error) {
	var best *BestModel
	var candidates []Candidate

	for _, a := range nutrient.Algorithms() {
		score, err := s.scoreFor(n, a)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		candidates = append(candidates, Candidate{Algorithm: a, TestRMSE: score.TestRMSE})
		if best == nil || score.TestRMSE < best.Score.TestRMSE {
			best = &BestModel{Nutrient: n, Algorithm: a, AlgorithmName: a.DisplayName(), Score: *score}
		}
	}

	if best == nil {
		return nil, NewServiceErrorWithDetails(CodeNotFound,
			fmt.Sprintf("no scores for %s", n),
			map[string]interface{}{"nutrient": n})
	}
	best.Candidates = candidates

	s.log(ctx).Debug("Best model selected", "nutrient", n, "algorithm", best.Algorithm, "test_rmse", best.Score.TestRMSE)
	return best, nil
}

// Scores returns the score file of an algorithm
func (s *DashboardService) Scores(ctx context.Context, a nutrient.Algorithm) ([]dataset.ScoreRow, error) {
	path := s.layout.Scores(a)
	rows, err := cachedRead(s.cache, path, dataset.ReadScores)
	if err != nil {
		return nil, s.readError("scores", path, err)
	}
	return rows, nil
}

// ScoreHistory returns the recorded scores of a model, newest first
func (s *DashboardService) ScoreHistory(ctx context.Context, n nutrient.Nutrient, a nutrient.Algorithm, limit int) ([]scorestore.Score, error) {
	if s.history == nil {
		return nil, NewServiceError(CodeHistoryDisabled, "score history is disabled")
	}
	scores, err := s.history.History(ctx, n, a, limit)
	if err != nil {
		s.log(ctx).Error("Score history query failed", "nutrient", n, "algorithm", a, "error", err)
		return nil, &ServiceError{Code: CodeInternal, Message: "failed to query score history", cause: err}
	}
	if scores == nil {
		scores = []scorestore.Score{}
	}
	return scores, nil
}

// Upload validates a raw CSV and stores it under the raw directory.
// name must match the configured item list or stock file.
func (s *DashboardService) Upload(ctx context.Context, name string, content []byte) (*UploadResult, error) {
	base := filepath.Base(strings.TrimSpace(name))

	var target string
	var required []string
	switch {
	case strings.EqualFold(base, s.cfg.Data.ItemsFile):
		target, required = s.cfg.Data.ItemsFile, dataset.ItemColumns
	case strings.EqualFold(base, s.cfg.Data.StockFile):
		target, required = s.cfg.Data.StockFile, dataset.StockColumns
	default:
		return nil, NewServiceErrorWithDetails(CodeInvalidFile,
			fmt.Sprintf("unexpected file %q", name),
			map[string]interface{}{"allowed": []string{s.cfg.Data.ItemsFile, s.cfg.Data.StockFile}})
	}

	if err := dataset.ValidateColumns(bytes.NewReader(content), target, required); err != nil {
		var mc *dataset.MissingColumnsError
		if errors.As(err, &mc) {
			return nil, &ServiceError{
				Code:    CodeMissingColumns,
				Message: err.Error(),
				Details: map[string]interface{}{"file": target, "missing": mc.Missing},
				cause:   err,
			}
		}
		return nil, &ServiceError{Code: CodeInvalidFile, Message: err.Error(), cause: err}
	}

	path := s.layout.RawFile(target)
	if err := dataset.WriteFileAtomic(path, content); err != nil {
		s.log(ctx).Error("Failed to store upload", "file", target, "error", err)
		return nil, &ServiceError{Code: CodeInternal, Message: "failed to store upload", cause: err}
	}

	s.log(ctx).Info("Upload stored", "file", target, "bytes", len(content))
	return &UploadResult{File: target, Path: path, Bytes: len(content)}, nil
}

// ChartPath resolves a chart name to a file in one of the chart directories.
// Only bare PNG file names are accepted.
func (s *DashboardService) ChartPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) ||
		strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".png") {
		return "", NewServiceErrorWithDetails(CodeInvalidFile,
			fmt.Sprintf("invalid chart name %q", name),
			map[string]interface{}{"name": name})
	}

	for _, dir := range s.layout.ChartDirs() {
		path := filepath.Join(dir, name)
		if s.exists(path) {
			return path, nil
		}
	}
	return "", NewServiceErrorWithDetails(CodeNotFound,
		fmt.Sprintf("chart %s not found", name),
		map[string]interface{}{"name": name})
}

func (s *DashboardService) scoreFor(n nutrient.Nutrient, a nutrient.Algorithm) (*dataset.ScoreRow, error) {
	path := s.layout.Scores(a)
	rows, err := cachedRead(s.cache, path, dataset.ReadScores)
	if err != nil {
		return nil, s.readError("scores", path, err)
	}
	for i := range rows {
		if strings.EqualFold(strings.TrimSpace(rows[i].Nutrient), n.String()) {
			row := rows[i]
			return &row, nil
		}
	}
	return nil, notFound(fmt.Sprintf("%s score for %s", a, n), path)
}

func (s *DashboardService) readError(what, path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return notFound(what, path)
	}
	s.logger.Error("Failed to read pipeline output", "path", path, "error", err)
	return &ServiceError{
		Code:    CodeInternal,
		Message: fmt.Sprintf("failed to read %s", what),
		Details: map[string]interface{}{"path": path},
		cause:   err,
	}
}

func (s *DashboardService) exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s *DashboardService) log(ctx context.Context) *logging.Logger {
	return s.logger.WithContext(ctx)
}

func isNotFound(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Code == CodeNotFound
}
