package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/quantiz/internal/config"
	"github.com/abhisek/quantiz/internal/itempool"
	"github.com/abhisek/quantiz/internal/logging"
	"github.com/abhisek/quantiz/internal/metrics"
	"github.com/abhisek/quantiz/internal/selection"
	"github.com/abhisek/quantiz/internal/session"
	"github.com/abhisek/quantiz/internal/solver"
	"github.com/abhisek/quantiz/internal/store"
)

// loadConfig resolves the config from --config, the environment and the
// --db / --log-level flags, highest priority last.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DB = p
	}
	if l, _ := cmd.Flags().GetString("log-level"); l != "" {
		cfg.Log.Level = l
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openStore opens the configured database, falling back to the default
// XDG path.
func openStore(cfg config.Config) (*store.Store, error) {
	dsn := cfg.DB
	if dsn == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
		dsn = p
	} else if err := store.EnsureDir(dsn); err != nil {
		return nil, err
	}
	s, err := store.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// seedBank generates the demo bank from cfg and saves it.
func seedBank(ctx context.Context, items store.ItemRepo, cfg config.Config) ([]itempool.Item, error) {
	bank := itempool.GenerateBank(cfg.BankConfig())
	if err := items.SaveItems(ctx, bank); err != nil {
		return nil, fmt.Errorf("seed item bank: %w", err)
	}
	return bank, nil
}

// loadPool reads the item bank, seeding the demo bank on first use.
func loadPool(ctx context.Context, items store.ItemRepo, cfg config.Config, logger *zap.Logger) (*itempool.Pool, error) {
	loaded, err := items.LoadItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	if len(loaded) == 0 {
		loaded, err = seedBank(ctx, items, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("seeded demo item bank", zap.Int("items", len(loaded)))
	}
	return itempool.New(loaded)
}

// newEngine assembles solver, optimizer, relaxer and engine from cfg.
func newEngine(cfg config.Config, pool itempool.Accessor, events store.EventRepo,
	m *metrics.Collector, logger *zap.Logger) (*session.Engine, error) {
	bb := solver.NewBranchAndBound(cfg.Selection.SolverMaxNodes)
	opt := selection.NewOptimizer(bb, cfg.Weights(), cfg.Selection.RecentCellWindow)
	relaxer := selection.NewRelaxer(opt, cfg.RelaxConfig(), logger, m)
	return session.NewEngine(pool, relaxer, cfg.Settings(), events, m, logger)
}

// withStore runs fn against the configured store with a logger built from
// cfg. It is the shared setup of the maintenance commands.
func withStore(cmd *cobra.Command, fn func(context.Context, config.Config, *store.Store, *zap.Logger) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
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

	return fn(cmd.Context(), cfg, s, logger)
}
