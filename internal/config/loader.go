package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/nutriwaste")
	}

	setDefaults(v)

	// NUTRIWASTE_TRAINING_LAGS overrides training.lags
	v.SetEnvPrefix("NUTRIWASTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout.String())

	v.SetDefault("data.base_dir", d.Data.BaseDir)
	v.SetDefault("data.raw_dir", d.Data.RawDir)
	v.SetDefault("data.interim_dir", d.Data.InterimDir)
	v.SetDefault("data.processed_dir", d.Data.ProcessedDir)
	v.SetDefault("data.engineered_dir", d.Data.EngineeredDir)
	v.SetDefault("data.split_dir", d.Data.SplitDir)
	v.SetDefault("data.forecast_dir", d.Data.ForecastDir)
	v.SetDefault("data.models_dir", d.Data.ModelsDir)
	v.SetDefault("data.graphs_dir", d.Data.GraphsDir)
	v.SetDefault("data.items_file", d.Data.ItemsFile)
	v.SetDefault("data.stock_file", d.Data.StockFile)
	v.SetDefault("data.model_compression", d.Data.ModelCompression)

	v.SetDefault("training.lags", d.Training.Lags)
	v.SetDefault("training.test_weeks", d.Training.TestWeeks)
	v.SetDefault("training.horizon", d.Training.Horizon)
	v.SetDefault("training.seed", d.Training.Seed)
	v.SetDefault("training.weekly_method", d.Training.WeeklyMethod)
	v.SetDefault("training.random_forest.n_estimators", d.Training.RandomForest.NEstimators)
	v.SetDefault("training.random_forest.max_depth", d.Training.RandomForest.MaxDepth)
	v.SetDefault("training.random_forest.min_samples_leaf", d.Training.RandomForest.MinSamplesLeaf)
	v.SetDefault("training.xgboost.n_estimators", d.Training.XGBoost.NEstimators)
	v.SetDefault("training.xgboost.learning_rate", d.Training.XGBoost.LearningRate)
	v.SetDefault("training.xgboost.max_depth", d.Training.XGBoost.MaxDepth)
	v.SetDefault("training.xgboost.lambda", d.Training.XGBoost.Lambda)
	v.SetDefault("training.xgboost.min_child_samples", d.Training.XGBoost.MinChildSamples)
	v.SetDefault("training.lstm.units", d.Training.LSTM.Units)
	v.SetDefault("training.lstm.epochs", d.Training.LSTM.Epochs)
	v.SetDefault("training.lstm.batch_size", d.Training.LSTM.BatchSize)
	v.SetDefault("training.lstm.learning_rate", d.Training.LSTM.LearningRate)
	v.SetDefault("training.lstm.validation_split", d.Training.LSTM.ValidationSplit)
	v.SetDefault("training.lstm.patience", d.Training.LSTM.Patience)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)

	v.SetDefault("auth.enabled", d.Auth.Enabled)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			HTTPPort:        8501,
			BodyLimit:       16 * 1024 * 1024,
			ShutdownTimeout: 10 * time.Second,
		},
		Data: DataConfig{
			BaseDir:       ".",
			RawDir:        "data/raw",
			InterimDir:    "data/interim",
			ProcessedDir:  "data/processed",
			EngineeredDir: "data/engineered",
			SplitDir:      "data/split",
			ForecastDir:   "data/forecast",
			ModelsDir:     "models",
			GraphsDir:     "graphs",
			ItemsFile:     "Item_FullList.csv",
			StockFile:     "Item_Quantity.csv",

			ModelCompression: "snappy",
		},
		Training: TrainingConfig{
			Lags:         4,
			TestWeeks:    8,
			Horizon:      8,
			Seed:         42,
			WeeklyMethod: "sum",
			RandomForest: RandomForestConfig{
				NEstimators:    100,
				MinSamplesLeaf: 1,
			},
			XGBoost: XGBoostConfig{
				NEstimators:     100,
				LearningRate:    0.1,
				MaxDepth:        6,
				Lambda:          1,
				MinChildSamples: 1,
			},
			LSTM: LSTMConfig{
				Units:           50,
				Epochs:          100,
				BatchSize:       4,
				LearningRate:    0.001,
				ValidationSplit: 0.2,
				Patience:        10,
			},
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "data/history.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
