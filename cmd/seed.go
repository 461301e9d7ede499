package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/quantiz/internal/config"
	"github.com/abhisek/quantiz/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate the demo item bank and store it",
	Long: `Generate the demo item bank (8 topics, cells of related items, difficulties 1-5)
and upsert it into the database. Existing items with the same ids are replaced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, _ := cmd.Flags().GetUint64("seed")
		return withStore(cmd, func(ctx context.Context, cfg config.Config, s *store.Store, logger *zap.Logger) error {
			if cmd.Flags().Changed("seed") {
				cfg.Bank.Seed = seed
			}
			bank, err := seedBank(ctx, s.ItemRepo(), cfg)
			if err != nil {
				return err
			}
			total, err := s.ItemRepo().Count(ctx)
			if err != nil {
				return fmt.Errorf("count items: %w", err)
			}
			logger.Info("seeded item bank", zap.Int("items", len(bank)), zap.Uint64("seed", cfg.Bank.Seed))
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d items (bank now holds %d).\n", len(bank), total)
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().Uint64("seed", 0, "Random seed for the generated bank (overrides config)")
}
