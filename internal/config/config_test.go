package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "default config should be valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid http port",
			mutate:  func(c *Config) { c.Server.HTTPPort = 0 },
			wantErr: true,
		},
		{
			name:    "missing base dir",
			mutate:  func(c *Config) { c.Data.BaseDir = "" },
			wantErr: true,
		},
		{
			name:    "missing forecast dir",
			mutate:  func(c *Config) { c.Data.ForecastDir = "" },
			wantErr: true,
		},
		{
			name:    "unknown model compression",
			mutate:  func(c *Config) { c.Data.ModelCompression = "zstd" },
			wantErr: true,
		},
		{
			name:    "zero lags",
			mutate:  func(c *Config) { c.Training.Lags = 0 },
			wantErr: true,
		},
		{
			name:    "invalid weekly method",
			mutate:  func(c *Config) { c.Training.WeeklyMethod = "median" },
			wantErr: true,
		},
		{
			name:    "learning rate out of range",
			mutate:  func(c *Config) { c.Training.XGBoost.LearningRate = 0 },
			wantErr: true,
		},
		{
			name:    "zero boosting min child samples",
			mutate:  func(c *Config) { c.Training.XGBoost.MinChildSamples = 0 },
			wantErr: true,
		},
		{
			name:    "validation split of one",
			mutate:  func(c *Config) { c.Training.LSTM.ValidationSplit = 1 },
			wantErr: true,
		},
		{
			name:    "history enabled without path",
			mutate:  func(c *Config) { c.History.Path = "" },
			wantErr: true,
		},
		{
			name:    "history disabled without path",
			mutate:  func(c *Config) { c.History.Enabled = false; c.History.Path = "" },
			wantErr: false,
		},
		{
			name:    "invalid logging level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: true,
		},
		{
			name:    "invalid logging format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  http_port: 9000
data:
  base_dir: /srv/nutri
training:
  lags: 6
  xgboost:
    learning_rate: 0.05
logging:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "/srv/nutri", cfg.Data.BaseDir)
	assert.Equal(t, 6, cfg.Training.Lags)
	assert.Equal(t, 0.05, cfg.Training.XGBoost.LearningRate)
	// untouched keys fall back to defaults
	assert.Equal(t, 8, cfg.Training.Horizon)
	assert.Equal(t, 100, cfg.Training.RandomForest.NEstimators)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("training:\n  lags: 0\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Training.Lags)
	assert.Equal(t, 1, cfg.Training.XGBoost.MinChildSamples)
	assert.False(t, cfg.IsDevelopment())
}

func TestDataPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Data.BaseDir = "/project"
	cfg.Data.GraphsDir = "/abs/graphs"

	assert.Equal(t, filepath.Join("/project", "data", "raw", "Item_FullList.csv"), cfg.Data.ItemsPath())
	assert.Equal(t, "/abs/graphs", cfg.Data.Graphs())
	assert.Equal(t, filepath.Join("/project", "data", "history.db"), cfg.HistoryPath())
	assert.Len(t, cfg.Data.StageDirs(), 8)
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Data.BaseDir = t.TempDir()

	require.NoError(t, cfg.EnsureDirectories())
	for _, dir := range cfg.Data.StageDirs() {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestGetServerAddress(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "0.0.0.0:8501", cfg.GetServerAddress())
}
