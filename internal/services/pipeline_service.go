package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/healthfusion/nutriwaste/internal/analytics/forecast"
	"github.com/healthfusion/nutriwaste/internal/analytics/regression"
	"github.com/healthfusion/nutriwaste/internal/charts"
	"github.com/healthfusion/nutriwaste/internal/config"
	"github.com/healthfusion/nutriwaste/internal/dataset"
	"github.com/healthfusion/nutriwaste/internal/logging"
	"github.com/healthfusion/nutriwaste/internal/modelstore"
	"github.com/healthfusion/nutriwaste/internal/nutrient"
	"github.com/healthfusion/nutriwaste/internal/scorestore"
)

const (
	topWastedCount = 10
	topStockCount  = 10
	futureHistory  = 12 // actual weeks drawn before a future forecast
)

// PipelineService runs the offline stages that produce the dashboard's files
type PipelineService struct {
	logger  *logging.Logger
	cfg     *config.Config
	layout  Layout
	models  *modelstore.Store
	history *scorestore.Store
}

// NewPipelineService creates a new PipelineService. history may be nil.
func NewPipelineService(logger *logging.Logger, cfg *config.Config, models *modelstore.Store, history *scorestore.Store) *PipelineService {
	return &PipelineService{
		logger:  logger,
		cfg:     cfg,
		layout:  NewLayout(&cfg.Data),
		models:  models,
		history: history,
	}
}

// PreprocessResult summarises the preprocessing stage
type PreprocessResult struct {
	Items      int    `json:"items"`
	Days       int    `json:"days"`
	Weeks      int    `json:"weeks"`
	DailyPath  string `json:"daily_path"`
	WeeklyPath string `json:"weekly_path"`
}

// TrainResult is the outcome of fitting one nutrient
type TrainResult struct {
	RunID        string             `json:"run_id"`
	Nutrient     nutrient.Nutrient  `json:"nutrient"`
	Algorithm    nutrient.Algorithm `json:"algorithm"`
	TrainRows    int                `json:"train_rows"`
	TestRows     int                `json:"test_rows"`
	Score        forecast.Score     `json:"score"`
	ModelPath    string             `json:"model_path"`
	ForecastPath string             `json:"forecast_path"`
}

// FutureResult is the rolled-out forecast of one nutrient
type FutureResult struct {
	Nutrient  nutrient.Nutrient   `json:"nutrient"`
	Algorithm nutrient.Algorithm  `json:"algorithm"`
	Rows      []dataset.FutureRow `json:"rows"`
	Path      string              `json:"path"`
	Chart     string              `json:"chart"`
}

// Preprocess aggregates the raw item list into daily and weekly nutrient files
func (s *PipelineService) Preprocess(ctx context.Context) (*PreprocessResult, error) {
	start := time.Now()

	items, err := dataset.LoadItems(s.layout.Items())
	if err != nil {
		return nil, stageError("preprocess", err)
	}
	if len(items) == 0 {
		return nil, stageError("preprocess", fmt.Errorf("%s: %w", s.layout.Items(), dataset.ErrEmptySeries))
	}

	daily := dataset.AggregateDaily(items)
	if err := dataset.WriteNutrientRows(s.layout.Daily(), daily); err != nil {
		return nil, stageError("preprocess", err)
	}
	weekly := dataset.ResampleWeekly(daily)
	if err := dataset.WriteNutrientRows(s.layout.Weekly(), weekly); err != nil {
		return nil, stageError("preprocess", err)
	}

	s.log(ctx).Info("Preprocessing completed",
		"items", len(items),
		"days", len(daily),
		"weeks", len(weekly),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &PreprocessResult{
		Items:      len(items),
		Days:       len(daily),
		Weeks:      len(weekly),
		DailyPath:  s.layout.Daily(),
		WeeklyPath: s.layout.Weekly(),
	}, nil
}

// WeeklyReport aggregates the daily file into ISO weeks and writes its statistics
func (s *PipelineService) WeeklyReport(ctx context.Context, method string) (*dataset.WeeklyReport, error) {
	if method == "" {
		method = s.cfg.Training.WeeklyMethod
	}

	daily, err := dataset.ReadNutrientRows(s.layout.Daily())
	if err != nil {
		return nil, stageError("report", err)
	}
	weeks, err := dataset.AggregateISOWeeks(daily, method)
	if err != nil {
		if errors.Is(err, dataset.ErrInvalidMethod) {
			return nil, NewServiceErrorWithDetails(CodePipelineFailed, err.Error(),
				map[string]interface{}{"stage": "report", "allowed": []string{dataset.MethodSum, dataset.MethodMean}})
		}
		return nil, stageError("report", err)
	}
	if err := dataset.WriteISOWeeks(s.layout.ISOWeekly(method), weeks); err != nil {
		return nil, stageError("report", err)
	}

	report, err := dataset.BuildWeeklyReport(weeks, len(daily), method)
	if err != nil {
		return nil, stageError("report", err)
	}
	if err := dataset.WriteWeeklyReport(s.layout.WeeklyStats(), report); err != nil {
		return nil, stageError("report", err)
	}

	s.log(ctx).Info("Weekly report written", "method", method, "weeks", len(weeks), "path", s.layout.WeeklyStats())
	return report, nil
}

// GenerateLags writes one lagged feature file per nutrient
func (s *PipelineService) GenerateLags(ctx context.Context) (map[nutrient.Nutrient]int, error) {
	weekly, err := dataset.ReadNutrientRows(s.layout.Weekly())
	if err != nil {
		return nil, stageError("lags", err)
	}

	counts := make(map[nutrient.Nutrient]int, len(nutrient.All()))
	for _, n := range nutrient.All() {
		rows, err := dataset.BuildLagFeatures(dataset.Series(weekly, n), s.cfg.Training.Lags)
		if err != nil {
			return nil, stageError("lags", fmt.Errorf("%s: %w", n, err))
		}
		if err := dataset.WriteLagged(s.layout.Lagged(n), n.String(), rows); err != nil {
			return nil, stageError("lags", err)
		}
		counts[n] = len(rows)
	}

	s.log(ctx).Info("Lag features generated", "lags", s.cfg.Training.Lags, "weeks", len(weekly))
	return counts, nil
}

// Split writes the chronological train/test split of every lag file
func (s *PipelineService) Split(ctx context.Context) error {
	for _, n := range nutrient.All() {
		train, test, err := s.loadSplit(n)
		if err != nil {
			return stageError("split", err)
		}
		if err := dataset.WriteLagged(s.layout.SplitPart(n, "train"), n.String(), train); err != nil {
			return stageError("split", err)
		}
		if err := dataset.WriteLagged(s.layout.SplitPart(n, "test"), n.String(), test); err != nil {
			return stageError("split", err)
		}
		s.log(ctx).Info("Split written", "nutrient", n, "train_rows", len(train), "test_rows", len(test))
	}
	return nil
}

func (s *PipelineService) loadSplit(n nutrient.Nutrient) (train, test []dataset.LagRow, err error) {
	rows, err := dataset.ReadLagged(s.layout.Lagged(n), n.String())
	if err != nil {
		return nil, nil, err
	}
	return dataset.SplitTail(rows, s.cfg.Training.TestWeeks)
}

// Params converts the training config into regressor hyperparameters
func Params(tc config.TrainingConfig) regression.Params {
	return regression.Params{
		Seed: tc.Seed,
		Forest: regression.ForestParams{
			NEstimators:    tc.RandomForest.NEstimators,
			MaxDepth:       tc.RandomForest.MaxDepth,
			MinSamplesLeaf: tc.RandomForest.MinSamplesLeaf,
		},
		Boosting: regression.BoostingParams{
			NEstimators:     tc.XGBoost.NEstimators,
			LearningRate:    tc.XGBoost.LearningRate,
			MaxDepth:        tc.XGBoost.MaxDepth,
			Lambda:          tc.XGBoost.Lambda,
			MinChildSamples: tc.XGBoost.MinChildSamples,
		},
		LSTM: regression.LSTMParams{
			Units:           tc.LSTM.Units,
			Epochs:          tc.LSTM.Epochs,
			BatchSize:       tc.LSTM.BatchSize,
			LearningRate:    tc.LSTM.LearningRate,
			ValidationSplit: tc.LSTM.ValidationSplit,
			Patience:        tc.LSTM.Patience,
		},
	}
}

// Train fits one model per nutrient, persists it with its forecast file and
// writes the algorithm's score file
func (s *PipelineService) Train(ctx context.Context, algo nutrient.Algorithm) ([]TrainResult, error) {
	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	start := time.Now()

	var (
		results []TrainResult
		scores  []dataset.ScoreRow
	)
	for _, n := range nutrient.All() {
		if err := ctx.Err(); err != nil {
			return nil, stageError("train", err)
		}
		res, err := s.trainOne(ctx, n, algo)
		if err != nil {
			s.log(ctx).Error("Training failed", "nutrient", n, "algorithm", algo, "error", err)
			return nil, stageError("train", fmt.Errorf("%s/%s: %w", n, algo, err))
		}
		res.RunID = runID
		results = append(results, *res)
		scores = append(scores, scoreRow(n, res.Score))
	}

	if err := dataset.WriteScores(s.layout.Scores(algo), scores); err != nil {
		return nil, stageError("train", err)
	}
	s.recordHistory(ctx, runID, algo, results)

	s.log(ctx).Info("Training completed",
		"algorithm", algo,
		"models", len(results),
		"scores", s.layout.Scores(algo),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

func (s *PipelineService) trainOne(ctx context.Context, n nutrient.Nutrient, algo nutrient.Algorithm) (*TrainResult, error) {
	train, test, err := s.loadSplit(n)
	if err != nil {
		return nil, err
	}

	model, err := regression.NewRegressor(algo.String(), Params(s.cfg.Training))
	if err != nil {
		return nil, err
	}
	X, y := dataset.Matrix(train)
	if err := model.Fit(X, y); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	eval, err := forecast.Evaluate(model, train, test)
	if err != nil {
		return nil, err
	}

	meta, err := s.models.Save(n, algo, s.cfg.Training.Lags, model)
	if err != nil {
		return nil, err
	}
	path := s.layout.Forecast(n, algo)
	if err := dataset.WriteForecast(path, forecast.ForecastRows(train, test, eval)); err != nil {
		return nil, err
	}

	s.log(ctx).Info("Model trained",
		"nutrient", n,
		"algorithm", algo,
		"train_rmse", eval.Score.TrainRMSE,
		"test_rmse", eval.Score.TestRMSE,
	)

	return &TrainResult{
		Nutrient:     n,
		Algorithm:    algo,
		TrainRows:    len(train),
		TestRows:     len(test),
		Score:        eval.Score,
		ModelPath:    meta.Path,
		ForecastPath: path,
	}, nil
}

func scoreRow(n nutrient.Nutrient, sc forecast.Score) dataset.ScoreRow {
	return dataset.ScoreRow{
		Nutrient:  n.String(),
		TrainMSE:  sc.TrainMSE,
		TrainRMSE: sc.TrainRMSE,
		TestMSE:   sc.TestMSE,
		TestRMSE:  sc.TestRMSE,
	}
}

// recordHistory is best effort: the score files are the source of truth
func (s *PipelineService) recordHistory(ctx context.Context, runID string, algo nutrient.Algorithm, results []TrainResult) {
	if s.history == nil {
		return
	}
	for _, r := range results {
		err := s.history.Record(ctx, runID, scorestore.Score{
			Nutrient:  r.Nutrient,
			Algorithm: algo,
			TrainMSE:  r.Score.TrainMSE,
			TrainRMSE: r.Score.TrainRMSE,
			TestMSE:   r.Score.TestMSE,
			TestRMSE:  r.Score.TestRMSE,
		})
		if err != nil {
			s.log(ctx).Warn("Failed to record score history", "nutrient", r.Nutrient, "error", err)
		}
	}
}

// Forecast rolls every persisted model of algo forward over the configured horizon
func (s *PipelineService) Forecast(ctx context.Context, algo nutrient.Algorithm) ([]FutureResult, error) {
	horizon := s.cfg.Training.Horizon
	if horizon < 1 {
		horizon = forecast.DefaultHorizon
	}

	var results []FutureResult
	for _, n := range nutrient.All() {
		model, meta, err := s.models.Load(n, algo)
		if err != nil {
			return nil, stageError("forecast", fmt.Errorf("%s/%s: %w", n, algo, err))
		}
		rows, err := dataset.ReadLagged(s.layout.Lagged(n), n.String())
		if err != nil {
			return nil, stageError("forecast", err)
		}
		if len(rows) == 0 {
			return nil, stageError("forecast", fmt.Errorf("%s: %w", n, dataset.ErrEmptySeries))
		}
		last := rows[len(rows)-1]
		if len(last.Lags) != meta.Lags {
			return nil, stageError("forecast", fmt.Errorf("%s/%s: model expects %d lags, file has %d: %w",
				n, algo, meta.Lags, len(last.Lags), regression.ErrFeatureMismatch))
		}

		future, err := forecast.Future(model, last, horizon)
		if err != nil {
			return nil, stageError("forecast", fmt.Errorf("%s/%s: %w", n, algo, err))
		}
		path := s.layout.Future(n, algo)
		if err := dataset.WriteFuture(path, future); err != nil {
			return nil, stageError("forecast", err)
		}

		chart := s.layout.FutureChart(n, algo)
		title := fmt.Sprintf("%s Waste - %d Week Forecast (%s)", n.Title(), horizon, algo.DisplayName())
		if err := charts.Future(chart, title, recentActuals(rows, futureHistory), future); err != nil {
			return nil, stageError("forecast", err)
		}

		s.log(ctx).Info("Forecast written", "nutrient", n, "algorithm", algo, "weeks", len(future), "path", path)
		results = append(results, FutureResult{Nutrient: n, Algorithm: algo, Rows: future, Path: path, Chart: chart})
	}
	return results, nil
}

func recentActuals(rows []dataset.LagRow, n int) []dataset.Point {
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	points := make([]dataset.Point, len(rows))
	for i, r := range rows {
		points[i] = dataset.Point{Date: r.Date, Value: r.Value}
	}
	return points
}

// Score re-evaluates the persisted models of algo and rewrites its score file
func (s *PipelineService) Score(ctx context.Context, algo nutrient.Algorithm) ([]dataset.ScoreRow, error) {
	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)

	var (
		rows    []dataset.ScoreRow
		results []TrainResult
	)
	for _, n := range nutrient.All() {
		model, _, err := s.models.Load(n, algo)
		if err != nil {
			return nil, stageError("score", fmt.Errorf("%s/%s: %w", n, algo, err))
		}
		train, test, err := s.loadSplit(n)
		if err != nil {
			return nil, stageError("score", err)
		}
		eval, err := forecast.Evaluate(model, train, test)
		if err != nil {
			return nil, stageError("score", fmt.Errorf("%s/%s: %w", n, algo, err))
		}
		rows = append(rows, scoreRow(n, eval.Score))
		results = append(results, TrainResult{Nutrient: n, Algorithm: algo, Score: eval.Score})
	}

	if err := dataset.WriteScores(s.layout.Scores(algo), rows); err != nil {
		return nil, stageError("score", err)
	}
	s.recordHistory(ctx, runID, algo, results)

	s.log(ctx).Info("Models scored", "algorithm", algo, "path", s.layout.Scores(algo))
	return rows, nil
}

// Charts renders every chart whose input exists. Missing inputs are skipped
// with a warning; the rendered paths are returned.
func (s *PipelineService) Charts(ctx context.Context) ([]string, error) {
	var rendered []string

	for _, algo := range nutrient.Algorithms() {
		for _, n := range nutrient.All() {
			rows, err := dataset.ReadForecast(s.layout.Forecast(n, algo))
			if errors.Is(err, os.ErrNotExist) {
				s.log(ctx).Warn("Forecast file missing, skipping chart", "nutrient", n, "algorithm", algo)
				continue
			}
			if err != nil {
				return rendered, stageError("charts", err)
			}
			path := s.layout.ForecastChart(n, algo)
			title := fmt.Sprintf("%s Waste Forecast (%s)", n.Title(), algo.DisplayName())
			if err := charts.Forecast(path, title, rows); err != nil {
				if errors.Is(err, charts.ErrNoData) {
					s.log(ctx).Warn("Forecast file empty, skipping chart", "nutrient", n, "algorithm", algo)
					continue
				}
				return rendered, stageError("charts", err)
			}
			rendered = append(rendered, path)
		}
	}

	items, err := dataset.LoadItems(s.layout.Items())
	if errors.Is(err, os.ErrNotExist) {
		s.log(ctx).Warn("Item list missing, skipping waste chart", "path", s.layout.Items())
	} else if err != nil {
		return rendered, stageError("charts", err)
	} else if path, err := s.renderBar(s.layout.Graph(TopWastedChart), dataset.TopWastedItems(items, topWastedCount), charts.TopWasted); err != nil {
		return rendered, err
	} else if path != "" {
		rendered = append(rendered, path)
	}

	stock, err := dataset.LoadStock(s.layout.Stock())
	if errors.Is(err, os.ErrNotExist) {
		s.log(ctx).Warn("Stock file missing, skipping stock chart", "path", s.layout.Stock())
	} else if err != nil {
		return rendered, stageError("charts", err)
	} else if path, err := s.renderBar(s.layout.Graph(StockChart), dataset.TopStockItems(stock, topStockCount), charts.Stock); err != nil {
		return rendered, err
	} else if path != "" {
		rendered = append(rendered, path)
	}

	s.log(ctx).Info("Charts rendered", "count", len(rendered))
	return rendered, nil
}

func (s *PipelineService) renderBar(path string, items []dataset.ItemTotal, draw func(string, []dataset.ItemTotal) error) (string, error) {
	if err := draw(path, items); err != nil {
		if errors.Is(err, charts.ErrNoData) {
			return "", nil
		}
		return "", stageError("charts", err)
	}
	return path, nil
}

func (s *PipelineService) log(ctx context.Context) *logging.Logger {
	return s.logger.WithContext(ctx)
}

// RunAll runs every stage in order and stops at the first failure
func (s *PipelineService) RunAll(ctx context.Context, algos []nutrient.Algorithm) error {
	if err := s.cfg.EnsureDirectories(); err != nil {
		return stageError("setup", err)
	}
	if _, err := s.Preprocess(ctx); err != nil {
		return err
	}
	if _, err := s.WeeklyReport(ctx, ""); err != nil {
		return err
	}
	if _, err := s.GenerateLags(ctx); err != nil {
		return err
	}
	if err := s.Split(ctx); err != nil {
		return err
	}
	for _, algo := range algos {
		if _, err := s.Train(ctx, algo); err != nil {
			return err
		}
		if _, err := s.Forecast(ctx, algo); err != nil {
			return err
		}
	}
	_, err := s.Charts(ctx)
	return err
}
