package main

import (
	"github.com/healthfusion/nutriwaste/internal/nutrient"
	"github.com/healthfusion/nutriwaste/internal/services"
	"github.com/spf13/cobra"
)

func preprocessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess",
		Short: "Aggregate the raw item list into daily and weekly nutrient files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.pipeline.Preprocess(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("%d items -> %d days -> %d weeks\n", res.Items, res.Days, res.Weeks)
			return nil
		},
	}
}

func reportCmd(a *app) *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate the daily file into ISO weeks and write summary statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.pipeline.WeeklyReport(cmd.Context(), method)
			if err != nil {
				return err
			}
			return report.Render(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&method, "method", "", "Aggregation method: sum or mean (defaults to training.weekly_method)")
	return cmd
}

func lagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lags",
		Short: "Build lag feature files for every nutrient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			counts, err := a.pipeline.GenerateLags(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range nutrient.All() {
				cmd.Printf("%-14s %d rows\n", n, counts[n])
			}
			return nil
		},
	}
}

func splitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "split",
		Short: "Write the chronological train/test split of every lag file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.pipeline.Split(cmd.Context())
		},
	}
}

// algorithmFlag registers --algorithm and returns a resolver for it
func algorithmFlag(cmd *cobra.Command) func() ([]nutrient.Algorithm, error) {
	var name string
	cmd.Flags().StringVar(&name, "algorithm", "all", "random_forest, xgboost, lstm or all")
	return func() ([]nutrient.Algorithm, error) {
		return services.ParseAlgorithms(name)
	}
}

func trainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit one model per nutrient and write forecasts and scores",
		Args:  cobra.NoArgs,
	}
	algorithms := algorithmFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		algos, err := algorithms()
		if err != nil {
			return err
		}
		for _, algo := range algos {
			results, err := a.pipeline.Train(cmd.Context(), algo)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				continue
			}
			cmd.Printf("%s (run %s)\n", algo.DisplayName(), results[0].RunID)
			for _, r := range results {
				cmd.Printf("  %-14s train RMSE %.4f  test RMSE %.4f\n", r.Nutrient, r.Score.TrainRMSE, r.Score.TestRMSE)
			}
		}
		return nil
	}
	return cmd
}

func forecastCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Roll the trained models forward and write future forecasts",
		Args:  cobra.NoArgs,
	}
	algorithms := algorithmFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		algos, err := algorithms()
		if err != nil {
			return err
		}
		for _, algo := range algos {
			results, err := a.pipeline.Forecast(cmd.Context(), algo)
			if err != nil {
				return err
			}
			for _, r := range results {
				if len(r.Rows) == 0 {
					continue
				}
				last := r.Rows[len(r.Rows)-1]
				cmd.Printf("%-14s %-14s %d weeks, week %d: %.4f\n", algo, r.Nutrient, len(r.Rows), last.Week, last.Prediction)
			}
		}
		return nil
	}
	return cmd
}

func scoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Re-score the persisted models against the lag files",
		Args:  cobra.NoArgs,
	}
	algorithms := algorithmFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		algos, err := algorithms()
		if err != nil {
			return err
		}
		for _, algo := range algos {
			rows, err := a.pipeline.Score(cmd.Context(), algo)
			if err != nil {
				return err
			}
			cmd.Println(algo.DisplayName())
			for _, r := range rows {
				cmd.Printf("  %-14s MSE %.4f  RMSE %.4f\n", r.Nutrient, r.TestMSE, r.TestRMSE)
			}
		}
		return nil
	}
	return cmd
}

func chartsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "charts",
		Short: "Render every chart whose input exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := a.pipeline.Charts(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range paths {
				cmd.Println(p)
			}
			return nil
		},
	}
}

func allCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run every stage in order",
		Args:  cobra.NoArgs,
	}
	algorithms := algorithmFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		algos, err := algorithms()
		if err != nil {
			return err
		}
		if err := a.pipeline.RunAll(cmd.Context(), algos); err != nil {
			return err
		}
		cmd.Printf("pipeline finished for %d algorithm(s)\n", len(algos))
		return nil
	}
	return cmd
}
