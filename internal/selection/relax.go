package selection

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/quantiz/internal/itempool"
	"github.com/abhisek/quantiz/internal/metrics"
	"github.com/abhisek/quantiz/internal/solver"
)

// Relaxation defaults.
const (
	DefaultBaseMargin  = 2
	DefaultMaxAttempts = 5
)

// RelaxConfig controls the retry policy.
type RelaxConfig struct {
	// BaseMargin is the difficulty slack of the first attempt. Attempt k
	// uses BaseMargin + k.
	BaseMargin int

	// MaxAttempts bounds the number of optimizer calls per block.
	MaxAttempts int
}

// DefaultRelaxConfig returns the reference retry policy.
func DefaultRelaxConfig() RelaxConfig {
	return RelaxConfig{
		BaseMargin:  DefaultBaseMargin,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Attempt records one optimizer call.
type Attempt struct {
	Index  int
	Margin int
	Nodes  int
	Err    error
}

// Result is the outcome of a block generation. When Insufficient is set,
// Items is empty and every attempt failed.
type Result struct {
	Items        []itempool.Item
	Margin       int
	Objective    float64
	Attempts     []Attempt
	Insufficient bool
}

// Relaxer retries the Optimizer with a widening difficulty band.
type Relaxer struct {
	optimizer *Optimizer
	cfg       RelaxConfig
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewRelaxer creates a Relaxer. logger and m may be nil.
func NewRelaxer(opt *Optimizer, cfg RelaxConfig, logger *zap.Logger, m *metrics.Collector) *Relaxer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relaxer{optimizer: opt, cfg: cfg, logger: logger, metrics: m}
}

// Config returns the retry policy.
func (r *Relaxer) Config() RelaxConfig {
	return r.cfg
}

// Generate returns the first feasible batch across up to MaxAttempts
// widening attempts. Running out of attempts is not an error: the result is
// marked Insufficient. Only invalid requests and context cancellation are
// returned as errors.
func (r *Relaxer) Generate(ctx context.Context, req Request) (*Result, error) {
	if r.cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w: max attempts %d", ErrInvalidRequest, r.cfg.MaxAttempts)
	}
	if r.cfg.BaseMargin < 0 {
		return nil, fmt.Errorf("%w: negative base margin %d", ErrInvalidRequest, r.cfg.BaseMargin)
	}

	res := &Result{}
	for k := 0; k < r.cfg.MaxAttempts; k++ {
		req.Margin = r.cfg.BaseMargin + k
		attempt := Attempt{Index: k, Margin: req.Margin}

		sel, err := r.optimizer.Select(ctx, req)
		if err != nil {
			if errors.Is(err, ErrInvalidRequest) {
				return nil, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("generate block: %w", ctxErr)
			}
			attempt.Err = err
			res.Attempts = append(res.Attempts, attempt)

			outcome := metrics.OutcomeSolverError
			if errors.Is(err, solver.ErrInfeasible) {
				outcome = metrics.OutcomeInfeasible
			}
			r.metrics.ObserveAttempt(outcome, 0)
			r.logger.Debug("selection attempt failed",
				zap.Int("attempt", k),
				zap.Int("margin", req.Margin),
				zap.String("outcome", outcome),
				zap.Error(err))
			continue
		}

		attempt.Nodes = sel.Nodes
		res.Attempts = append(res.Attempts, attempt)
		res.Items = sel.Items
		res.Margin = req.Margin
		res.Objective = sel.Objective

		r.metrics.ObserveAttempt(metrics.OutcomeSelected, sel.Nodes)
		r.metrics.ObserveGeneration(metrics.OutcomeSelected, k+1)
		r.logger.Debug("block selected",
			zap.Int("attempt", k),
			zap.Int("margin", req.Margin),
			zap.Int("target", req.TargetDifficulty),
			zap.Float64("objective", sel.Objective),
			zap.Int("nodes", sel.Nodes),
			zap.Stringer("status", sel.Status))
		return res, nil
	}

	res.Insufficient = true
	r.metrics.ObserveGeneration(metrics.OutcomeInsufficient, r.cfg.MaxAttempts)
	r.logger.Warn("no feasible block after relaxation",
		zap.Int("attempts", r.cfg.MaxAttempts),
		zap.Int("target", req.TargetDifficulty),
		zap.Int("batch_size", req.BatchSize),
		zap.Int("attempted_items", len(req.Attempted)))
	return res, nil
}
