package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/healthfusion/nutriwaste/internal/compression"
	"github.com/healthfusion/nutriwaste/internal/config"
	"github.com/healthfusion/nutriwaste/internal/logging"
	"github.com/healthfusion/nutriwaste/internal/modelstore"
	"github.com/healthfusion/nutriwaste/internal/scorestore"
	"github.com/healthfusion/nutriwaste/internal/services"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
)

// app holds what every subcommand needs once the config is loaded
type app struct {
	configPath string
	cfg        *config.Config
	logger     *logging.Logger
	history    *scorestore.Store
	pipeline   *services.PipelineService
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetGlobal(logger)

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	codec, err := compression.ParseAlgorithm(cfg.Data.ModelCompression)
	if err != nil {
		return err
	}
	models, err := modelstore.New(cfg.Data.Models(), codec)
	if err != nil {
		return err
	}

	if cfg.History.Enabled {
		a.history, err = scorestore.Open(cfg.HistoryPath())
		if err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.logger = logger
	a.pipeline = services.NewPipelineService(logger, cfg, models, a.history)
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	if a.history != nil {
		return a.history.Close()
	}
	return nil
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:                "pipeline",
		Short:              "Nutrient waste forecasting pipeline",
		Version:            fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to configuration file")

	root.AddCommand(
		preprocessCmd(a),
		reportCmd(a),
		lagsCmd(a),
		splitCmd(a),
		trainCmd(a),
		forecastCmd(a),
		scoreCmd(a),
		chartsCmd(a),
		allCmd(a),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		if a.logger != nil {
			a.logger.Error("Pipeline failed", "error", err)
		}
		os.Exit(1)
	}
}
