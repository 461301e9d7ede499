package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/quantiz/internal/config"
	"github.com/abhisek/quantiz/internal/itempool"
	"github.com/abhisek/quantiz/internal/store"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Inspect the item bank",
}

var poolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items in the bank",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		limit, _ := cmd.Flags().GetInt("limit")

		return withStore(cmd, func(ctx context.Context, _ config.Config, s *store.Store, _ *zap.Logger) error {
			var (
				items []itempool.Item
				err   error
			)
			if topic != "" {
				items, err = s.ItemRepo().LoadTopic(ctx, itempool.Topic(topic))
			} else {
				items, err = s.ItemRepo().LoadItems(ctx)
			}
			if err != nil {
				return fmt.Errorf("load items: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No items found. Run `quantiz seed` to create the demo bank.")
				return nil
			}

			fmt.Fprintf(out, "%-10s  %-20s  %-8s  %-4s  %-5s  %-8s  %s\n",
				"ID", "Topic", "Cell", "Diff", "Mins", "Exposure", "Text")
			fmt.Fprintln(out, strings.Repeat("─", 90))

			shown := 0
			for _, it := range items {
				if limit > 0 && shown >= limit {
					break
				}
				text := it.Text
				if len(text) > 30 {
					text = text[:30] + "…"
				}
				fmt.Fprintf(out, "%-10s  %-20s  %-8s  %-4d  %-5.1f  %-8d  %s\n",
					it.ID, it.Topic, it.Cell, it.Difficulty, it.ExpectedMinutes, it.ExposureCount, text)
				shown++
			}
			if shown < len(items) {
				fmt.Fprintf(out, "... %d more (use --limit 0 to show all)\n", len(items)-shown)
			}
			return nil
		})
	},
}

func init() {
	poolListCmd.Flags().String("topic", "", "Only list items of this topic")
	poolListCmd.Flags().Int("limit", 50, "Maximum number of items to show (0 for all)")
	poolCmd.AddCommand(poolListCmd)
}
