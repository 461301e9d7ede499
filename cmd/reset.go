package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/quantiz/internal/config"
	"github.com/abhisek/quantiz/internal/store"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete recorded test events (the item bank is kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("reset deletes every recorded session; pass --yes to confirm")
		}
		return withStore(cmd, func(ctx context.Context, _ config.Config, s *store.Store, logger *zap.Logger) error {
			if err := s.EventRepo().Reset(ctx); err != nil {
				return err
			}
			logger.Info("event log reset")
			fmt.Fprintln(cmd.OutOrStdout(), "Event log cleared.")
			return nil
		})
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "Confirm deletion")
}
