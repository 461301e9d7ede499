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

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate test statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, _ config.Config, s *store.Store, _ *zap.Logger) error {
			st, err := s.EventRepo().Stats(ctx)
			if err != nil {
				return err
			}
			items, err := s.ItemRepo().Count(ctx)
			if err != nil {
				return fmt.Errorf("count items: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Items in bank:       %d\n", items)
			fmt.Fprintf(out, "Sessions started:    %d\n", st.SessionsStarted)
			fmt.Fprintf(out, "Sessions completed:  %d\n", st.SessionsCompleted)
			fmt.Fprintf(out, "Blocks generated:    %d (%d insufficient)\n", st.Blocks, st.InsufficientPools)
			fmt.Fprintf(out, "Answers:             %d (%.0f%% correct)\n", st.Answered, st.Accuracy()*100)

			if len(st.Topics) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%-20s  %-8s  %-7s  %s\n", "Topic", "Answered", "Correct", "Accuracy")
			fmt.Fprintln(out, strings.Repeat("─", 50))
			for _, t := range st.Topics {
				fmt.Fprintf(out, "%-20s  %-8d  %-7d  %.0f%%\n", t.Topic, t.Answered, t.Correct, t.Accuracy()*100)
			}
			return nil
		})
	},
}
