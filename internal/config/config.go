package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Data     DataConfig     `mapstructure:"data"`
	Training TrainingConfig `mapstructure:"training"`
	History  HistoryConfig  `mapstructure:"history"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents dashboard server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	BodyLimit       int           `mapstructure:"body_limit"`       // Max upload size in bytes
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // Graceful shutdown window
}

// DataConfig describes the on-disk layout of pipeline stages.
// Stage directories are relative to BaseDir unless absolute.
type DataConfig struct {
	BaseDir       string `mapstructure:"base_dir"`
	RawDir        string `mapstructure:"raw_dir"`
	InterimDir    string `mapstructure:"interim_dir"`
	ProcessedDir  string `mapstructure:"processed_dir"`
	EngineeredDir string `mapstructure:"engineered_dir"`
	SplitDir      string `mapstructure:"split_dir"`
	ForecastDir   string `mapstructure:"forecast_dir"`
	ModelsDir     string `mapstructure:"models_dir"`
	GraphsDir     string `mapstructure:"graphs_dir"`
	ItemsFile     string `mapstructure:"items_file"` // Raw item list inside RawDir
	StockFile     string `mapstructure:"stock_file"` // Raw stock quantities inside RawDir

	ModelCompression string `mapstructure:"model_compression"` // snappy or none
}

// TrainingConfig holds lag, split and per-algorithm parameters
type TrainingConfig struct {
	Lags         int                `mapstructure:"lags"`       // Lag window size (N)
	TestWeeks    int                `mapstructure:"test_weeks"` // Held-out tail rows
	Horizon      int                `mapstructure:"horizon"`    // Weeks rolled forward
	Seed         int64              `mapstructure:"seed"`
	WeeklyMethod string             `mapstructure:"weekly_method"` // sum or mean for the ISO week report
	RandomForest RandomForestConfig `mapstructure:"random_forest"`
	XGBoost      XGBoostConfig      `mapstructure:"xgboost"`
	LSTM         LSTMConfig         `mapstructure:"lstm"`
}

// RandomForestConfig parameters for the tree ensemble
type RandomForestConfig struct {
	NEstimators    int `mapstructure:"n_estimators"`
	MaxDepth       int `mapstructure:"max_depth"` // 0 means unlimited
	MinSamplesLeaf int `mapstructure:"min_samples_leaf"`
}

// XGBoostConfig parameters for gradient boosted trees
type XGBoostConfig struct {
	NEstimators     int     `mapstructure:"n_estimators"`
	LearningRate    float64 `mapstructure:"learning_rate"`
	MaxDepth        int     `mapstructure:"max_depth"`
	Lambda          float64 `mapstructure:"lambda"`
	MinChildSamples int     `mapstructure:"min_child_samples"`
}

// LSTMConfig parameters for the recurrent model
type LSTMConfig struct {
	Units           int     `mapstructure:"units"`
	Epochs          int     `mapstructure:"epochs"`
	BatchSize       int     `mapstructure:"batch_size"`
	LearningRate    float64 `mapstructure:"learning_rate"`
	ValidationSplit float64 `mapstructure:"validation_split"`
	Patience        int     `mapstructure:"patience"`
}

// HistoryConfig controls the SQLite score history
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AuthConfig represents authentication configuration for uploads
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"api_keys"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Data.Validate(); err != nil {
		return fmt.Errorf("data config: %w", err)
	}

	if err := c.Training.Validate(); err != nil {
		return fmt.Errorf("training config: %w", err)
	}

	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}
	if c.BodyLimit < 0 {
		return fmt.Errorf("body_limit cannot be negative")
	}
	return nil
}

// Validate validates the data layout
func (c *DataConfig) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir is required")
	}
	dirs := map[string]string{
		"raw_dir":        c.RawDir,
		"interim_dir":    c.InterimDir,
		"processed_dir":  c.ProcessedDir,
		"engineered_dir": c.EngineeredDir,
		"split_dir":      c.SplitDir,
		"forecast_dir":   c.ForecastDir,
		"models_dir":     c.ModelsDir,
		"graphs_dir":     c.GraphsDir,
	}
	for name, dir := range dirs {
		if dir == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if c.ItemsFile == "" {
		return fmt.Errorf("items_file is required")
	}
	if c.ModelCompression != "snappy" && c.ModelCompression != "none" {
		return fmt.Errorf("model_compression must be 'snappy' or 'none'")
	}
	return nil
}

// Validate validates training configuration
func (c *TrainingConfig) Validate() error {
	if c.Lags < 1 {
		return fmt.Errorf("training.lags must be at least 1")
	}
	if c.TestWeeks < 1 {
		return fmt.Errorf("training.test_weeks must be at least 1")
	}
	if c.Horizon < 1 {
		return fmt.Errorf("training.horizon must be at least 1")
	}
	if c.WeeklyMethod != "sum" && c.WeeklyMethod != "mean" {
		return fmt.Errorf("training.weekly_method must be 'sum' or 'mean'")
	}

	if c.RandomForest.NEstimators < 1 {
		return fmt.Errorf("training.random_forest.n_estimators must be at least 1")
	}
	if c.RandomForest.MinSamplesLeaf < 1 {
		return fmt.Errorf("training.random_forest.min_samples_leaf must be at least 1")
	}

	if c.XGBoost.NEstimators < 1 {
		return fmt.Errorf("training.xgboost.n_estimators must be at least 1")
	}
	if c.XGBoost.LearningRate <= 0 || c.XGBoost.LearningRate > 1 {
		return fmt.Errorf("training.xgboost.learning_rate must be in (0, 1]")
	}
	if c.XGBoost.MaxDepth < 1 {
		return fmt.Errorf("training.xgboost.max_depth must be at least 1")
	}
	if c.XGBoost.MinChildSamples < 1 {
		return fmt.Errorf("training.xgboost.min_child_samples must be at least 1")
	}

	if c.LSTM.Units < 1 {
		return fmt.Errorf("training.lstm.units must be at least 1")
	}
	if c.LSTM.Epochs < 1 {
		return fmt.Errorf("training.lstm.epochs must be at least 1")
	}
	if c.LSTM.BatchSize < 1 {
		return fmt.Errorf("training.lstm.batch_size must be at least 1")
	}
	if c.LSTM.ValidationSplit < 0 || c.LSTM.ValidationSplit >= 1 {
		return fmt.Errorf("training.lstm.validation_split must be in [0, 1)")
	}

	return nil
}

// Validate validates history configuration
func (c *HistoryConfig) Validate() error {
	if c.Enabled && c.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
