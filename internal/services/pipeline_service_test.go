package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/healthfusion/nutriwaste/internal/compression"
	"github.com/healthfusion/nutriwaste/internal/config"
	"github.com/healthfusion/nutriwaste/internal/dataset"
	"github.com/healthfusion/nutriwaste/internal/logging"
	"github.com/healthfusion/nutriwaste/internal/modelstore"
	"github.com/healthfusion/nutriwaste/internal/nutrient"
	"github.com/healthfusion/nutriwaste/internal/scorestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Data.BaseDir = t.TempDir()
	cfg.Training.RandomForest.NEstimators = 5
	cfg.Training.XGBoost.NEstimators = 10
	cfg.Training.LSTM.Units = 4
	cfg.Training.LSTM.Epochs = 3
	cfg.History.Enabled = false
	require.NoError(t, cfg.EnsureDirectories())
	return cfg
}

// writeItems writes an item list covering the given number of weeks from Monday 1 Jan 2024
func writeItems(t *testing.T, cfg *config.Config, weeks int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,Item Description,Quantity,Carbohydrates,Fiber,Protein,Fat\n")
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < weeks*7; i += 2 {
		d := start.AddDate(0, 0, i)
		fmt.Fprintf(&b, "%s,Rice,%d,%d,1,%d,0.5\n", d.Format("02/01/2006"), 1+i%3, 10+i%7, 2+i%5)
	}
	b.WriteString("bad-date,Beans,1,1,1,1,1\n")
	require.NoError(t, os.WriteFile(cfg.Data.ItemsPath(), []byte(b.String()), 0644))
}

func writeStock(t *testing.T, cfg *config.Config) {
	t.Helper()
	content := "Item Description,Quantity\nRice,40\nBeans,12\nBread,7\n"
	require.NoError(t, os.WriteFile(cfg.Data.StockPath(), []byte(content), 0644))
}

func newPipeline(t *testing.T, cfg *config.Config, history *scorestore.Store) (*PipelineService, *modelstore.Store) {
	t.Helper()
	models, err := modelstore.New(cfg.Data.Models(), compression.Snappy)
	require.NoError(t, err)
	return NewPipelineService(logging.NewNop(), cfg, models, history), models
}

func requireServiceError(t *testing.T, err error, code string) *ServiceError {
	t.Helper()
	var se *ServiceError
	require.True(t, errors.As(err, &se), "expected ServiceError, got %v", err)
	assert.Equal(t, code, se.Code)
	return se
}

func TestPipelineRunAll(t *testing.T) {
	cfg := testConfig(t)
	writeItems(t, cfg, 40)
	writeStock(t, cfg)

	history, err := scorestore.Open(filepath.Join(cfg.Data.BaseDir, "history.db"))
	require.NoError(t, err)
	defer history.Close()

	svc, models := newPipeline(t, cfg, history)
	algos, err := ParseAlgorithms("all")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.RunAll(ctx, algos))

	layout := NewLayout(&cfg.Data)
	assert.FileExists(t, layout.Daily())
	assert.FileExists(t, layout.Weekly())
	assert.FileExists(t, layout.ISOWeekly("sum"))
	assert.FileExists(t, layout.WeeklyStats())
	assert.FileExists(t, layout.Graph(TopWastedChart))
	assert.FileExists(t, layout.Graph(StockChart))

	for _, n := range nutrient.All() {
		assert.FileExists(t, layout.Lagged(n))
		assert.FileExists(t, layout.SplitPart(n, "train"))
		assert.FileExists(t, layout.SplitPart(n, "test"))

		for _, a := range algos {
			assert.True(t, models.Exists(n, a), "%s/%s model", n, a)
			assert.FileExists(t, layout.ForecastChart(n, a))
			assert.FileExists(t, layout.FutureChart(n, a))

			future, err := dataset.ReadFuture(layout.Future(n, a))
			require.NoError(t, err)
			require.Len(t, future, cfg.Training.Horizon)
			assert.Equal(t, 1, future[0].Week)
			assert.Equal(t, 7*24*time.Hour, future[1].Date.Sub(future[0].Date.Time))

			rows, err := dataset.ReadForecast(layout.Forecast(n, a))
			require.NoError(t, err)
			var tested int
			for _, r := range rows {
				assert.NotEqual(t, r.PredictedTrain.Valid, r.PredictedTest.Valid)
				if r.PredictedTest.Valid {
					tested++
				}
			}
			assert.Equal(t, cfg.Training.TestWeeks, tested)
		}
	}

	for _, a := range algos {
		scores, err := dataset.ReadScores(layout.Scores(a))
		require.NoError(t, err)
		require.Len(t, scores, len(nutrient.All()))
		for _, s := range scores {
			assert.InDelta(t, math.Sqrt(s.TestMSE), s.TestRMSE, 1e-9)
			assert.InDelta(t, math.Sqrt(s.TrainMSE), s.TrainRMSE, 1e-9)
		}

		latest, err := history.Latest(ctx, a)
		require.NoError(t, err)
		assert.Len(t, latest, len(nutrient.All()))
	}
}

func TestPipelineGenerateLagsDropsWarmup(t *testing.T) {
	cfg := testConfig(t)
	writeItems(t, cfg, 20)
	svc, _ := newPipeline(t, cfg, nil)
	ctx := context.Background()

	res, err := svc.Preprocess(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Weeks)

	counts, err := svc.GenerateLags(ctx)
	require.NoError(t, err)
	for _, n := range nutrient.All() {
		assert.Equal(t, res.Weeks-cfg.Training.Lags, counts[n])
	}
}

func TestPipelineStagesReportMissingInputs(t *testing.T) {
	cfg := testConfig(t)
	svc, _ := newPipeline(t, cfg, nil)
	ctx := context.Background()

	_, err := svc.Preprocess(ctx)
	se := requireServiceError(t, err, CodeNotFound)
	assert.Equal(t, "preprocess", se.Details["stage"])

	_, err = svc.GenerateLags(ctx)
	requireServiceError(t, err, CodeNotFound)

	_, err = svc.Forecast(ctx, nutrient.LSTM)
	requireServiceError(t, err, CodeNotFound)
	assert.ErrorIs(t, err, modelstore.ErrModelNotFound)
}

func TestPipelinePreprocessMissingColumns(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Data.ItemsPath(), []byte("date,quantity\n01/01/2024,1\n"), 0644))
	svc, _ := newPipeline(t, cfg, nil)

	_, err := svc.Preprocess(context.Background())
	se := requireServiceError(t, err, CodeMissingColumns)
	assert.Contains(t, se.Details["missing"], "fat")
}

func TestPipelineTrainNeedsEnoughRows(t *testing.T) {
	cfg := testConfig(t)
	writeItems(t, cfg, 10)
	svc, _ := newPipeline(t, cfg, nil)
	ctx := context.Background()

	_, err := svc.Preprocess(ctx)
	require.NoError(t, err)
	_, err = svc.GenerateLags(ctx)
	require.NoError(t, err)

	_, err = svc.Train(ctx, nutrient.RandomForest)
	requireServiceError(t, err, CodePipelineFailed)
	assert.ErrorIs(t, err, dataset.ErrInsufficientRows)
}

func TestPipelineWeeklyReportRejectsMethod(t *testing.T) {
	cfg := testConfig(t)
	writeItems(t, cfg, 4)
	svc, _ := newPipeline(t, cfg, nil)
	ctx := context.Background()

	_, err := svc.Preprocess(ctx)
	require.NoError(t, err)

	report, err := svc.WeeklyReport(ctx, "mean")
	require.NoError(t, err)
	assert.Equal(t, "mean", report.Method)

	_, err = svc.WeeklyReport(ctx, "median")
	requireServiceError(t, err, CodePipelineFailed)
}

func TestPipelineChartsSkipsMissingInputs(t *testing.T) {
	cfg := testConfig(t)
	svc, _ := newPipeline(t, cfg, nil)

	rendered, err := svc.Charts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rendered)
}

func TestPipelineScoreRewritesScores(t *testing.T) {
	cfg := testConfig(t)
	writeItems(t, cfg, 30)
	svc, _ := newPipeline(t, cfg, nil)
	ctx := context.Background()

	_, err := svc.Preprocess(ctx)
	require.NoError(t, err)
	_, err = svc.GenerateLags(ctx)
	require.NoError(t, err)
	trained, err := svc.Train(ctx, nutrient.XGBoost)
	require.NoError(t, err)
	require.Len(t, trained, len(nutrient.All()))
	assert.NotEmpty(t, trained[0].RunID)

	layout := NewLayout(&cfg.Data)
	require.NoError(t, os.Remove(layout.Scores(nutrient.XGBoost)))

	rows, err := svc.Score(ctx, nutrient.XGBoost)
	require.NoError(t, err)
	require.Len(t, rows, len(nutrient.All()))
	for i, r := range rows {
		assert.Equal(t, trained[i].Nutrient.String(), r.Nutrient)
		assert.InDelta(t, trained[i].Score.TestRMSE, r.TestRMSE, 1e-9)
	}
	assert.FileExists(t, layout.Scores(nutrient.XGBoost))
}

func TestParseHelpers(t *testing.T) {
	n, err := ParseNutrient(" Fat ")
	require.NoError(t, err)
	assert.Equal(t, nutrient.Fat, n)

	_, err = ParseNutrient("sugar")
	requireServiceError(t, err, CodeInvalidNutrient)
	assert.ErrorIs(t, err, nutrient.ErrUnknownNutrient)

	_, err = ParseAlgorithm("svm")
	requireServiceError(t, err, CodeInvalidAlgorithm)

	algos, err := ParseAlgorithms("")
	require.NoError(t, err)
	assert.Equal(t, nutrient.Algorithms(), algos)

	algos, err = ParseAlgorithms("lstm")
	require.NoError(t, err)
	assert.Equal(t, []nutrient.Algorithm{nutrient.LSTM}, algos)
}
