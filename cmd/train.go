package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/funil-digital/leadscore/internal/training"
)

var (
	trainDataset   string
	trainOutputDir string
	trainSeed      int64
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train, select, and persist the scoring models",
	Long: `Runs the two-round grid search over both model families (logistic
regression and random forest), evaluates the finalists on held-out splits,
elects a champion via the cascading tie-break, and writes both artifacts plus
the selection report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("train"); err != nil {
			return err
		}

		trainCfg := training.Config{
			DatasetPath: cfg.Train.DatasetPath,
			OutputDir:   cfg.Train.OutputDir,
			Seed:        cfg.Train.RandomSeed,
			Tiebreak: training.Thresholds{
				ROCAUC: cfg.Train.Tiebreak.ROCAUC,
				PRAUC:  cfg.Train.Tiebreak.PRAUC,
				Brier:  cfg.Train.Tiebreak.Brier,
			},
		}
		if trainDataset != "" {
			trainCfg.DatasetPath = trainDataset
		}
		if trainOutputDir != "" {
			trainCfg.OutputDir = trainOutputDir
		}
		if trainSeed != 0 {
			trainCfg.Seed = trainSeed
		}

		result, err := training.Run(ctx, trainCfg)
		if err != nil {
			return err
		}

		fmt.Printf("winner: %s (runner-up: %s)\n", result.Report.Winner, result.Report.RunnerUp)
		for _, reason := range result.Report.SelectionReasons {
			fmt.Printf("  - %s\n", reason)
		}
		fmt.Printf("artifacts: %s, %s\n", result.BestModelPath, result.RunnerUpPath)
		fmt.Printf("report: %s\n", result.ReportPath)
		return nil
	},
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&trainDataset, "dataset", "", "training dataset CSV (default from config)")
	f.StringVar(&trainOutputDir, "output-dir", "", "artifact output directory (default from config)")
	f.Int64Var(&trainSeed, "seed", 0, "random seed (default from config)")
	rootCmd.AddCommand(trainCmd)
}
