package selection

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/quantiz/internal/itempool"
	"github.com/abhisek/quantiz/internal/metrics"
	"github.com/abhisek/quantiz/internal/solver"
)

// flakySolver fails the first failures calls, then delegates.
type flakySolver struct {
	failures int
	calls    int
	margins  []float64
	inner    solver.Solver
}

func (f *flakySolver) Solve(ctx context.Context, p *solver.Problem) (*solver.Solution, error) {
	f.calls++
	for _, c := range p.Constraints {
		if c.Name == "difficulty_max" {
			f.margins = append(f.margins, c.RHS)
		}
	}
	if f.calls <= f.failures {
		return nil, errors.New("backend crashed")
	}
	return f.inner.Solve(ctx, p)
}

func newTestRelaxer(s solver.Solver, m *metrics.Collector) *Relaxer {
	return NewRelaxer(NewOptimizer(s, DefaultWeights(), DefaultRecentCellWindow), DefaultRelaxConfig(), nil, m)
}

func TestGenerate_FirstAttemptSucceeds(t *testing.T) {
	r := newTestRelaxer(solver.NewBranchAndBound(0), nil)
	res, err := r.Generate(context.Background(), Request{
		Pool:             tenItemPool(t),
		TargetDifficulty: 3,
		BatchSize:        3,
	})
	require.NoError(t, err)
	assert.False(t, res.Insufficient)
	assert.Len(t, res.Items, 3)
	assert.Equal(t, DefaultBaseMargin, res.Margin)
	assert.Len(t, res.Attempts, 1)
}

func TestGenerate_SolverErrorsContinue(t *testing.T) {
	fs := &flakySolver{failures: 2, inner: solver.NewBranchAndBound(0)}
	m := metrics.New()
	r := newTestRelaxer(fs, m)

	res, err := r.Generate(context.Background(), Request{
		Pool:             tenItemPool(t),
		TargetDifficulty: 3,
		BatchSize:        3,
	})
	require.NoError(t, err)
	assert.False(t, res.Insufficient)
	assert.Equal(t, 4, res.Margin)
	require.Len(t, res.Attempts, 3)
	assert.Error(t, res.Attempts[0].Err)
	assert.Error(t, res.Attempts[1].Err)
	assert.NoError(t, res.Attempts[2].Err)
	assert.Equal(t, 3, fs.calls)

	series, err := testutil.GatherAndCount(m.Registry(), "quantiz_relaxation_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "solver_error and selected outcomes")
}

func TestGenerate_MarginsWidenMonotonically(t *testing.T) {
	fs := &flakySolver{failures: 100, inner: solver.NewBranchAndBound(0)}
	r := newTestRelaxer(fs, nil)

	res, err := r.Generate(context.Background(), Request{
		Pool:             tenItemPool(t),
		TargetDifficulty: 3,
		BatchSize:        3,
	})
	require.NoError(t, err)
	assert.True(t, res.Insufficient)
	assert.Empty(t, res.Items)
	assert.Equal(t, DefaultMaxAttempts, fs.calls)
	require.Len(t, res.Attempts, DefaultMaxAttempts)
	for k, a := range res.Attempts {
		assert.Equal(t, k, a.Index)
		assert.Equal(t, DefaultBaseMargin+k, a.Margin)
	}
	assert.Equal(t, []float64{11, 12, 13, 14, 15}, fs.margins)
}

func TestGenerate_RelaxesUntilBandFits(t *testing.T) {
	// Every item is a 5, so three of them sum to 15 against a center of 9:
	// only margin 6 (attempt 4) admits a batch.
	var items []itempool.Item
	for i := 0; i < 4; i++ {
		items = append(items, itempool.Item{
			ID: fmt.Sprintf("h%d", i), Topic: itempool.Topic(fmt.Sprintf("T%d", i)),
			Cell: fmt.Sprintf("c%d", i), Difficulty: 5,
		})
	}
	pool, err := itempool.New(items)
	require.NoError(t, err)

	res, err := newTestRelaxer(solver.NewBranchAndBound(0), nil).Generate(context.Background(), Request{
		Pool:             pool,
		TargetDifficulty: 3,
		BatchSize:        3,
	})
	require.NoError(t, err)
	require.False(t, res.Insufficient)
	assert.Equal(t, 6, res.Margin)
	assert.Len(t, res.Attempts, 5)

	lo, hi := DifficultyBand(3, 3, res.Margin)
	sum := difficultySum(res.Items)
	assert.GreaterOrEqual(t, sum, lo)
	assert.LessOrEqual(t, sum, hi)
}

func TestGenerate_ExhaustedPool(t *testing.T) {
	pool := tenItemPool(t)
	attempted := make(map[string]bool)
	for _, it := range pool.All()[:8] {
		attempted[it.ID] = true
	}
	m := metrics.New()

	res, err := newTestRelaxer(solver.NewBranchAndBound(0), m).Generate(context.Background(), Request{
		Pool:             pool,
		Attempted:        attempted,
		TargetDifficulty: 3,
		BatchSize:        3,
	})
	require.NoError(t, err)
	assert.True(t, res.Insufficient)
	assert.Empty(t, res.Items)
	assert.Len(t, res.Attempts, DefaultMaxAttempts)
	for _, a := range res.Attempts {
		assert.ErrorIs(t, a.Err, ErrInfeasible)
	}
}

func TestGenerate_InvalidRequestIsNotRetried(t *testing.T) {
	fs := &flakySolver{inner: solver.NewBranchAndBound(0)}
	_, err := newTestRelaxer(fs, nil).Generate(context.Background(), Request{
		Pool:             tenItemPool(t),
		TargetDifficulty: 3,
		BatchSize:        0,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, fs.calls)
}

func TestGenerate_InvalidConfig(t *testing.T) {
	opt := NewOptimizer(solver.NewBranchAndBound(0), DefaultWeights(), DefaultRecentCellWindow)
	r := NewRelaxer(opt, RelaxConfig{BaseMargin: 2, MaxAttempts: 0}, nil, nil)
	_, err := r.Generate(context.Background(), Request{Pool: tenItemPool(t), TargetDifficulty: 3, BatchSize: 3})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGenerate_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs := &flakySolver{failures: 100, inner: solver.NewBranchAndBound(0)}

	_, err := newTestRelaxer(fs, nil).Generate(ctx, Request{
		Pool:             tenItemPool(t),
		TargetDifficulty: 3,
		BatchSize:        3,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fs.calls)
}

func TestGenerate_SessionInvariantsOnDemoBank(t *testing.T) {
	cfg := itempool.DefaultBankConfig()
	pool, err := itempool.New(itempool.GenerateBank(cfg))
	require.NoError(t, err)
	r := newTestRelaxer(solver.NewBranchAndBound(0), nil)

	attempted := make(map[string]bool)
	topicCounts := make(map[itempool.Topic]int)
	var recent []string

	for block, target := range []int{3, 4, 5, 5, 4, 2, 1} {
		window := recent[max(len(recent)-DefaultRecentCellWindow, 0):]
		res, err := r.Generate(context.Background(), Request{
			Pool:             pool,
			Attempted:        attempted,
			TargetDifficulty: target,
			BatchSize:        3,
			TopicCounts:      topicCounts,
			RecentCells:      recent,
		})
		require.NoError(t, err, "block %d", block)
		require.False(t, res.Insufficient, "block %d", block)
		require.Len(t, res.Items, 3)
		assertDistinctTopics(t, res.Items)

		lo, hi := DifficultyBand(target, 3, res.Margin)
		sum := difficultySum(res.Items)
		assert.GreaterOrEqual(t, sum, lo, "block %d", block)
		assert.LessOrEqual(t, sum, hi, "block %d", block)

		for _, it := range res.Items {
			assert.False(t, attempted[it.ID], "block %d reselected %s", block, it.ID)
			assert.NotContains(t, window, it.Cell, "block %d", block)
		}
		for _, it := range res.Items {
			attempted[it.ID] = true
			topicCounts[it.Topic]++
			recent = append(recent, it.Cell)
		}
	}
}
