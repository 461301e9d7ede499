package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/quantiz/internal/config"
	"github.com/abhisek/quantiz/internal/store"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks <session-id>",
	Short: "Show the blocks generated for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, _ config.Config, s *store.Store, _ *zap.Logger) error {
			events, err := s.EventRepo().BlockEvents(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "No blocks found for this session.")
				return nil
			}

			fmt.Fprintf(out, "%-7s  %-19s  %-5s  %-6s  %-6s  %-8s  %s\n",
				"Attempt", "Timestamp", "Block", "Target", "Margin", "Attempts", "Items")
			fmt.Fprintln(out, strings.Repeat("─", 80))

			for _, e := range events {
				items := strings.Join(e.ItemIDs, ", ")
				if e.Insufficient {
					items = "(insufficient pool)"
				}
				fmt.Fprintf(out, "%-7d  %-19s  %-5d  %-6d  %-6d  %-8d  %s\n",
					e.Attempt,
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					e.BlockIndex+1,
					e.TargetDifficulty,
					e.Margin,
					e.Attempts,
					items,
				)
			}
			return nil
		})
	},
}
