package main

import (
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/funil-digital/leadscore/internal/store"
)

var (
	backfillOnlyMissing bool
	backfillLimit       int
	backfillDryRun      bool
	backfillWorkers     int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Re-score stored leads in bulk",
	Long: `Loads leads from the store, replays each lead's event history through
the scoring engine, and writes the refreshed score back. Useful after training
a new model or changing the rule weights.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("backfill"); err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		eng, health := buildEngine(cfg.ML)
		zap.L().Info("backfill starting",
			zap.Bool("ml_enabled", health.Enabled),
			zap.Bool("only_missing", backfillOnlyMissing),
			zap.Bool("dry_run", backfillDryRun),
			zap.Int("workers", backfillWorkers),
		)

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			OnlyMissingScore: backfillOnlyMissing,
			Limit:            backfillLimit,
		})
		if err != nil {
			return eris.Wrap(err, "backfill: list leads")
		}

		var scored, failed atomic.Int64

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(backfillWorkers)
		for _, sl := range leads {
			sl := sl
			g.Go(func() error {
				events, err := st.ListEvents(gctx, sl.Lead.ID)
				if err != nil {
					failed.Add(1)
					zap.L().Warn("backfill: list events failed",
						zap.String("lead_id", sl.Lead.ID), zap.Error(err))
					return nil
				}

				result := eng.Score(sl.Lead, events)
				if backfillDryRun {
					scored.Add(1)
					zap.L().Debug("backfill: dry run",
						zap.String("lead_id", sl.Lead.ID),
						zap.Int("score", result.Score),
						zap.String("status", string(result.Status)),
					)
					return nil
				}

				if err := st.UpdateLeadScore(gctx, sl.Lead.ID, result); err != nil {
					failed.Add(1)
					zap.L().Warn("backfill: update failed",
						zap.String("lead_id", sl.Lead.ID), zap.Error(err))
					return nil
				}
				scored.Add(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "backfill")
		}

		zap.L().Info("backfill complete",
			zap.Int("leads", len(leads)),
			zap.Int64("scored", scored.Load()),
			zap.Int64("failed", failed.Load()),
			zap.Bool("dry_run", backfillDryRun),
		)
		return nil
	},
}

func init() {
	f := backfillCmd.Flags()
	f.BoolVar(&backfillOnlyMissing, "only-missing", true, "only score leads without a stored score")
	f.IntVar(&backfillLimit, "limit", 0, "max leads to process (0 = store default)")
	f.BoolVar(&backfillDryRun, "dry-run", false, "score without writing results back")
	f.IntVar(&backfillWorkers, "workers", 4, "concurrent scoring workers")
	rootCmd.AddCommand(backfillCmd)
}
