// Package selection assembles test blocks by solving a small binary program
// over the eligible items, widening the difficulty band when no batch fits.
package selection

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/quantiz/internal/itempool"
	"github.com/abhisek/quantiz/internal/solver"
)

// Objective defaults.
const (
	DefaultMaxExposureWeight = 3.0
	DefaultDiversityBonus    = 2.0

	// DefaultRecentCellWindow is how many of the most recently used cells
	// are excluded from the next block.
	DefaultRecentCellWindow = 3
)

var (
	// ErrInvalidRequest is returned for requests that can never be
	// satisfied regardless of the pool, such as a non-positive batch size.
	ErrInvalidRequest = errors.New("invalid selection request")

	// ErrInfeasible is returned when no batch satisfies the constraints.
	ErrInfeasible = errors.New("no feasible batch")
)

// Weights are the tunable objective constants.
type Weights struct {
	// MaxExposure is the freshness ceiling an unexposed item scores.
	MaxExposure float64

	// DiversityBonus is split by 1 + the number of items already answered
	// from the item's topic.
	DiversityBonus float64
}

// DefaultWeights returns the reference objective weights.
func DefaultWeights() Weights {
	return Weights{
		MaxExposure:    DefaultMaxExposureWeight,
		DiversityBonus: DefaultDiversityBonus,
	}
}

// Request describes one block to assemble.
type Request struct {
	Pool      itempool.Accessor
	Attempted map[string]bool

	TargetDifficulty int
	BatchSize        int
	TopicCounts      map[itempool.Topic]int
	RecentCells      []string

	// Margin is the slack around TargetDifficulty*BatchSize.
	Margin int
}

// Selection is a feasible batch together with solver diagnostics.
type Selection struct {
	Items     []itempool.Item
	Objective float64
	Nodes     int
	Status    solver.Status
}

// Formulation is the binary program for one request. Variable i stands for
// Items[i].
type Formulation struct {
	Problem *solver.Problem
	Items   []itempool.Item

	// MinSum and MaxSum bound the difficulty total.
	MinSum, MaxSum int
}

// Optimizer formulates and solves block selection problems.
type Optimizer struct {
	solver       solver.Solver
	weights      Weights
	recentWindow int
}

// NewOptimizer creates an Optimizer. A negative recentWindow disables the
// recency exclusion.
func NewOptimizer(s solver.Solver, w Weights, recentWindow int) *Optimizer {
	return &Optimizer{solver: s, weights: w, recentWindow: recentWindow}
}

// Freshness is the objective coefficient of an item: low exposure and an
// under-represented topic both score higher.
func (o *Optimizer) Freshness(it itempool.Item, topicCounts map[itempool.Topic]int) float64 {
	return (o.weights.MaxExposure - float64(it.ExposureCount)) +
		o.weights.DiversityBonus/float64(1+topicCounts[it.Topic])
}

// DifficultyBand returns the inclusive bounds of the difficulty total. The
// lower bound never drops below 1.
func DifficultyBand(target, size, margin int) (lo, hi int) {
	center := target * size
	return max(center-margin, 1), center + margin
}

func (o *Optimizer) validate(req Request) error {
	switch {
	case req.Pool == nil:
		return fmt.Errorf("%w: no item pool", ErrInvalidRequest)
	case req.BatchSize <= 0:
		return fmt.Errorf("%w: batch size %d", ErrInvalidRequest, req.BatchSize)
	case req.Margin < 0:
		return fmt.Errorf("%w: negative margin %d", ErrInvalidRequest, req.Margin)
	}
	if lo, hi := DifficultyBand(req.TargetDifficulty, req.BatchSize, req.Margin); lo > hi {
		return fmt.Errorf("%w: difficulty band [%d,%d] is inverted", ErrInvalidRequest, lo, hi)
	}
	return nil
}

// recentCells returns the cells of the last window entries.
func (o *Optimizer) recentCells(history []string) map[string]bool {
	if o.recentWindow <= 0 || len(history) == 0 {
		return nil
	}
	start := max(len(history)-o.recentWindow, 0)
	out := make(map[string]bool, len(history)-start)
	for _, c := range history[start:] {
		out[c] = true
	}
	return out
}

// Formulate builds the binary program for req over the items eligible at
// call time.
func (o *Optimizer) Formulate(req Request) (*Formulation, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	items := itempool.Eligible(req.Pool, req.Attempted)
	n := len(items)
	p := solver.NewProblem("adaptive_block", n)

	count := make([]solver.Term, n)
	difficulty := make([]solver.Term, n)
	byTopic := make(map[itempool.Topic][]solver.Term)
	var topicOrder []itempool.Topic
	recent := o.recentCells(req.RecentCells)
	var blocked []solver.Term

	for v, it := range items {
		p.SetObjective(v, o.Freshness(it, req.TopicCounts))
		count[v] = solver.Term{Var: v, Coef: 1}
		difficulty[v] = solver.Term{Var: v, Coef: float64(it.Difficulty)}

		if _, seen := byTopic[it.Topic]; !seen {
			topicOrder = append(topicOrder, it.Topic)
		}
		byTopic[it.Topic] = append(byTopic[it.Topic], solver.Term{Var: v, Coef: 1})

		if recent[it.Cell] {
			blocked = append(blocked, solver.Term{Var: v, Coef: 1})
		}
	}

	lo, hi := DifficultyBand(req.TargetDifficulty, req.BatchSize, req.Margin)

	p.Add(solver.Constraint{Name: "count", Terms: count, Sense: solver.Equal, RHS: float64(req.BatchSize)})
	p.Add(solver.Constraint{Name: "difficulty_min", Terms: difficulty, Sense: solver.GreaterEq, RHS: float64(lo)})
	p.Add(solver.Constraint{Name: "difficulty_max", Terms: difficulty, Sense: solver.LessEq, RHS: float64(hi)})
	for _, t := range topicOrder {
		if terms := byTopic[t]; len(terms) > 1 {
			p.Add(solver.Constraint{Name: "topic_" + string(t), Terms: terms, Sense: solver.LessEq, RHS: 1})
		}
	}
	if len(blocked) > 0 {
		p.Add(solver.Constraint{Name: "recent_cells", Terms: blocked, Sense: solver.Equal, RHS: 0})
	}

	return &Formulation{Problem: p, Items: items, MinSum: lo, MaxSum: hi}, nil
}

// Select solves req and returns exactly req.BatchSize items, or an error
// wrapping ErrInfeasible. Solver errors are wrapped alongside it.
func (o *Optimizer) Select(ctx context.Context, req Request) (*Selection, error) {
	f, err := o.Formulate(req)
	if err != nil {
		return nil, err
	}

	sol, err := o.solver.Solve(ctx, f.Problem)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInfeasible, err)
	}

	picked := sol.Selected()
	if len(picked) != req.BatchSize {
		return nil, fmt.Errorf("%w: solver selected %d of %d items", ErrInfeasible, len(picked), req.BatchSize)
	}

	out := &Selection{
		Items:     make([]itempool.Item, 0, len(picked)),
		Objective: sol.Objective,
		Nodes:     sol.Nodes,
		Status:    sol.Status,
	}
	for _, v := range picked {
		out.Items = append(out.Items, f.Items[v])
	}
	return out, nil
}
