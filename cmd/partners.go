package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/funil-digital/leadscore/internal/partner"
	"github.com/funil-digital/leadscore/internal/store"
)

var (
	partnersRegistry string
	partnersSeed     string
	partnersLookup   string
	partnersOut      string
	partnersFileOnly bool
)

var partnersCmd = &cobra.Command{
	Use:   "partners",
	Short: "Build the partner directory from the CNPJ registry",
	Long: `Streams the national company registry, keeps establishments whose
primary or secondary CNAE appears in the seed list, joins segment descriptions
from the lookup table, and loads the matches into the store and/or a CSV file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var st store.Store
		if !partnersFileOnly {
			if err := cfg.Validate("partners"); err != nil {
				return err
			}
			var err error
			st, err = openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		var sep rune
		if cfg.Partners.Separator != "" {
			sep = rune(cfg.Partners.Separator[0])
		}

		builder := partner.NewBuilder(st, partner.Options{
			RegistryPath: partnersRegistry,
			SeedPath:     partnersSeed,
			LookupPath:   partnersLookup,
			OutPath:      partnersOut,
			States:       cfg.Partners.TargetStates,
			Separator:    sep,
			ChunkSize:    cfg.Partners.ChunkSize,
		})

		stats, err := builder.Run(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("partner directory built",
			zap.Int("rows_read", stats.RowsRead),
			zap.Int("matched", stats.Matched),
			zap.Int64("written", stats.Written),
		)
		return nil
	},
}

func init() {
	f := partnersCmd.Flags()
	f.StringVar(&partnersRegistry, "registry", "", "establishments registry CSV")
	f.StringVar(&partnersSeed, "seed", "", "seed CSV of CNAE codes to keep")
	f.StringVar(&partnersLookup, "lookup", "", "CNAE code to description lookup CSV")
	f.StringVar(&partnersOut, "out", "", "also write matches to this CSV file")
	f.BoolVar(&partnersFileOnly, "file-only", false, "skip the store and only write the CSV")
	partnersCmd.MarkFlagRequired("registry")
	partnersCmd.MarkFlagRequired("seed")
	partnersCmd.MarkFlagRequired("lookup")
	rootCmd.AddCommand(partnersCmd)
}
