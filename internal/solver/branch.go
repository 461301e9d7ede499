package solver

import (
	"context"
	"fmt"
	"sort"
)

// DefaultMaxNodes bounds the search when no explicit budget is configured.
const DefaultMaxNodes = 2_000_000

// maxBoundTable caps the size of the per-row cardinality bound table.
const maxBoundTable = 32 << 20

const eps = 1e-9

// BranchAndBound is an exact depth-first branch-and-bound solver.
//
// Variables are branched in descending objective order (ties by index), so
// the first incumbent is the greedy choice and ties between equally good
// assignments resolve to the lowest-index variables. When the problem has a
// cardinality row (every free variable with coefficient 1, sense Equal) the
// row and objective bounds are tightened to "exactly r more picks", which
// keeps the small-batch selection problems cheap even on large pools.
type BranchAndBound struct {
	// MaxNodes bounds the number of search nodes. Zero means DefaultMaxNodes.
	MaxNodes int
}

var _ Solver = (*BranchAndBound)(nil)

// NewBranchAndBound creates a solver with the given node budget.
func NewBranchAndBound(maxNodes int) *BranchAndBound {
	return &BranchAndBound{MaxNodes: maxNodes}
}

// Solve returns an optimal assignment, the best assignment found within the
// node budget, or an error. It checks ctx periodically.
func (b *BranchAndBound) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("solve %s: %w", p.Name, err)
	}

	maxNodes := b.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	n := p.NumVars()
	fixed, err := presolve(p)
	if err != nil {
		return nil, err
	}

	order := make([]int, 0, n)
	for v := 0; v < n; v++ {
		if !fixed[v] {
			order = append(order, v)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return p.Objective[order[i]] > p.Objective[order[j]]
	})

	s, err := newSearch(ctx, p, order, maxNodes)
	if err != nil {
		return nil, err
	}
	s.dfs(0, 0, 0)

	if s.ctxErr != nil {
		return nil, fmt.Errorf("solve %s: %w", p.Name, s.ctxErr)
	}
	if !s.hasBest {
		if s.limitHit {
			return nil, &NodeLimitError{Limit: maxNodes}
		}
		return nil, ErrInfeasible
	}

	sol := &Solution{
		Status: StatusOptimal,
		Values: make([]bool, n),
		Nodes:  s.nodes,
	}
	if s.limitHit {
		sol.Status = StatusFeasible
	}
	for pos, on := range s.best {
		if on {
			v := order[pos]
			sol.Values[v] = true
			sol.Objective += p.Objective[v]
		}
	}
	return sol, nil
}

// presolve fixes to zero every variable with a positive coefficient in a
// row of non-negative coefficients bounded above by zero.
func presolve(p *Problem) ([]bool, error) {
	fixed := make([]bool, p.NumVars())
	for _, c := range p.Constraints {
		if c.Sense == GreaterEq {
			continue
		}
		nonNeg := true
		for _, t := range c.Terms {
			if t.Coef < 0 {
				nonNeg = false
				break
			}
		}
		if !nonNeg {
			continue
		}
		if c.RHS < -eps {
			return nil, fmt.Errorf("%w: constraint %s cannot be satisfied", ErrInfeasible, c.Name)
		}
		if c.RHS > eps {
			continue
		}
		for _, t := range c.Terms {
			if t.Coef > eps {
				fixed[t.Var] = true
			}
		}
	}
	return fixed, nil
}

type row struct {
	coef  []float64 // by search position
	sense Sense
	rhs   float64
}

type search struct {
	ctx      context.Context
	maxNodes int

	m    int       // free variables
	obj  []float64 // objective by position
	rows []row
	sums []float64 // running row sums

	// card is the exact number of selected variables, or -1 when unknown.
	card int

	// Cardinality bounds: sum of the j smallest / largest coefficients of a
	// row among positions >= pos.
	low, high []float64

	// Sign bounds, used without a cardinality row.
	negSuffix, posSuffix [][]float64

	objPrefix    []float64
	posObjSuffix []float64

	path     []bool
	best     []bool
	bestObj  float64
	hasBest  bool
	nodes    int
	limitHit bool
	ctxErr   error
	stopped  bool
}

func newSearch(ctx context.Context, p *Problem, order []int, maxNodes int) (*search, error) {
	m := len(order)
	posOf := make(map[int]int, m)
	for pos, v := range order {
		posOf[v] = pos
	}

	s := &search{
		ctx:      ctx,
		maxNodes: maxNodes,
		m:        m,
		obj:      make([]float64, m),
		card:     -1,
		path:     make([]bool, m),
	}
	for pos, v := range order {
		s.obj[pos] = p.Objective[v]
	}

	for _, c := range p.Constraints {
		coef := make([]float64, m)
		nonZero := false
		for _, t := range c.Terms {
			pos, free := posOf[t.Var]
			if !free {
				continue
			}
			coef[pos] += t.Coef
			if coef[pos] != 0 {
				nonZero = true
			}
		}
		if !nonZero {
			// Only fixed variables: the row sum is constantly zero.
			if !satisfied(c.Sense, 0, c.RHS) {
				return nil, fmt.Errorf("%w: constraint %s cannot be satisfied", ErrInfeasible, c.Name)
			}
			continue
		}
		r := row{coef: coef, sense: c.Sense, rhs: c.RHS}
		if s.card < 0 && isCardinality(r) {
			k := int(c.RHS + 0.5)
			if float64(k)-c.RHS > eps || c.RHS-float64(k) > eps || k < 0 {
				return nil, fmt.Errorf("%w: constraint %s requires a fractional count", ErrInfeasible, c.Name)
			}
			s.card = k
		}
		s.rows = append(s.rows, r)
	}
	s.sums = make([]float64, len(s.rows))

	if s.card >= 0 && len(s.rows)*(m+1)*(s.card+1) > maxBoundTable {
		s.card = -1
	}
	s.buildBounds()
	return s, nil
}

func isCardinality(r row) bool {
	if r.sense != Equal {
		return false
	}
	for _, c := range r.coef {
		if c != 1 {
			return false
		}
	}
	return true
}

func (s *search) buildBounds() {
	m := s.m

	s.objPrefix = make([]float64, m+1)
	for pos := 0; pos < m; pos++ {
		s.objPrefix[pos+1] = s.objPrefix[pos] + s.obj[pos]
	}
	s.posObjSuffix = make([]float64, m+1)
	for pos := m - 1; pos >= 0; pos-- {
		s.posObjSuffix[pos] = s.posObjSuffix[pos+1]
		if s.obj[pos] > 0 {
			s.posObjSuffix[pos] += s.obj[pos]
		}
	}

	if s.card < 0 {
		s.negSuffix = make([][]float64, len(s.rows))
		s.posSuffix = make([][]float64, len(s.rows))
		for ri, r := range s.rows {
			neg := make([]float64, m+1)
			pos := make([]float64, m+1)
			for i := m - 1; i >= 0; i-- {
				neg[i], pos[i] = neg[i+1], pos[i+1]
				if r.coef[i] < 0 {
					neg[i] += r.coef[i]
				} else {
					pos[i] += r.coef[i]
				}
			}
			s.negSuffix[ri] = neg
			s.posSuffix[ri] = pos
		}
		return
	}

	k := s.card
	width := k + 1
	s.low = make([]float64, len(s.rows)*(m+1)*width)
	s.high = make([]float64, len(s.rows)*(m+1)*width)
	for ri, r := range s.rows {
		smallest := make([]float64, 0, k) // ascending
		largest := make([]float64, 0, k)  // descending
		for pos := m - 1; pos >= 0; pos-- {
			c := r.coef[pos]
			smallest = insertBounded(smallest, c, k, func(a, b float64) bool { return a < b })
			largest = insertBounded(largest, c, k, func(a, b float64) bool { return a > b })

			base := (ri*(m+1) + pos) * width
			var lo, hi float64
			for j := 1; j <= k; j++ {
				if j <= len(smallest) {
					lo += smallest[j-1]
					hi += largest[j-1]
				}
				s.low[base+j] = lo
				s.high[base+j] = hi
			}
		}
	}
}

// insertBounded inserts v into the sorted slice xs, keeping at most k entries.
func insertBounded(xs []float64, v float64, k int, less func(a, b float64) bool) []float64 {
	if k == 0 {
		return xs
	}
	i := sort.Search(len(xs), func(i int) bool { return less(v, xs[i]) })
	if len(xs) == k {
		if i == k {
			return xs
		}
		copy(xs[i+1:], xs[i:k-1])
		xs[i] = v
		return xs
	}
	xs = append(xs, 0)
	copy(xs[i+1:], xs[i:])
	xs[i] = v
	return xs
}

func satisfied(sense Sense, lhs, rhs float64) bool {
	switch sense {
	case LessEq:
		return lhs <= rhs+eps
	case GreaterEq:
		return lhs >= rhs-eps
	default:
		return lhs >= rhs-eps && lhs <= rhs+eps
	}
}

// rowsFeasible reports whether every row can still be satisfied by the
// unassigned suffix starting at pos. remaining is the exact number of picks
// left, or -1 without a cardinality row.
func (s *search) rowsFeasible(pos, remaining int) bool {
	for ri, r := range s.rows {
		var minAdd, maxAdd float64
		if remaining >= 0 {
			base := (ri*(s.m+1) + pos) * (s.card + 1)
			minAdd = s.low[base+remaining]
			maxAdd = s.high[base+remaining]
		} else {
			minAdd = s.negSuffix[ri][pos]
			maxAdd = s.posSuffix[ri][pos]
		}
		cur := s.sums[ri]
		switch r.sense {
		case LessEq:
			if cur+minAdd > r.rhs+eps {
				return false
			}
		case GreaterEq:
			if cur+maxAdd < r.rhs-eps {
				return false
			}
		default:
			if cur+minAdd > r.rhs+eps || cur+maxAdd < r.rhs-eps {
				return false
			}
		}
	}
	return true
}

func (s *search) objBound(pos, remaining int) float64 {
	if remaining >= 0 {
		return s.objPrefix[pos+remaining] - s.objPrefix[pos]
	}
	return s.posObjSuffix[pos]
}

func (s *search) dfs(pos, chosen int, obj float64) {
	if s.stopped {
		return
	}
	s.nodes++
	if s.nodes > s.maxNodes {
		s.stopped = true
		s.limitHit = true
		return
	}
	if s.nodes&4095 == 0 {
		if err := s.ctx.Err(); err != nil {
			s.stopped = true
			s.ctxErr = err
			return
		}
	}

	remaining := -1
	if s.card >= 0 {
		remaining = s.card - chosen
		if remaining < 0 || s.m-pos < remaining {
			return
		}
	}
	if !s.rowsFeasible(pos, remaining) {
		return
	}
	if s.hasBest && obj+s.objBound(pos, remaining) <= s.bestObj+eps {
		return
	}
	if remaining == 0 || pos == s.m {
		// Every unassigned variable stays 0, which rowsFeasible has
		// just verified against each row.
		s.record(obj)
		return
	}

	s.assign(pos, 1)
	s.path[pos] = true
	s.dfs(pos+1, chosen+1, obj+s.obj[pos])
	s.path[pos] = false
	s.assign(pos, -1)

	s.dfs(pos+1, chosen, obj)
}

func (s *search) assign(pos int, sign float64) {
	for ri, r := range s.rows {
		if c := r.coef[pos]; c != 0 {
			s.sums[ri] += sign * c
		}
	}
}

func (s *search) record(obj float64) {
	if s.best == nil {
		s.best = make([]bool, s.m)
	}
	copy(s.best, s.path)
	s.bestObj = obj
	s.hasBest = true
}
