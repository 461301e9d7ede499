package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/quantiz/internal/app"
	"github.com/abhisek/quantiz/internal/logging"
	"github.com/abhisek/quantiz/internal/metrics"
	"github.com/abhisek/quantiz/internal/screens/block"
	"github.com/abhisek/quantiz/internal/session"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Take an adaptive test in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd)
	},
}

// runPlay opens the store, builds the engine and launches the TUI.
func runPlay(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The terminal belongs to the TUI; logs go to a file.
	if cfg.Log.File == "" {
		cfg.Log.File = logging.DefaultFile()
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	pool, err := loadPool(ctx, s.ItemRepo(), cfg, logger)
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg, pool, s.EventRepo(), metrics.New(), logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	items := s.ItemRepo()
	opts := app.Options{
		Engine: engine,
		Block: block.Options{
			SolveTimeout: cfg.Selection.SolveTimeout,
			OnComplete: func(st *session.SessionState) {
				ids := session.DeliveredItemIDs(st)
				if err := items.AddExposure(context.Background(), ids); err != nil {
					logger.Warn("update exposure counts", zap.String("session_id", st.ID), zap.Error(err))
				}
			},
		},
	}

	return app.Run(ctx, opts)
}
