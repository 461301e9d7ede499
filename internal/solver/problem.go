// Package solver solves small binary integer programs: maximize a linear
// objective over 0/1 variables subject to linear constraints.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Sense is the relation of a constraint's left-hand side to its bound.
type Sense int

const (
	LessEq    Sense = iota // sum <= RHS
	GreaterEq              // sum >= RHS
	Equal                  // sum == RHS
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "=="
	}
	return fmt.Sprintf("Sense(%d)", int(s))
}

// Term is a coefficient applied to one variable.
type Term struct {
	Var  int
	Coef float64
}

// Constraint is a linear (in)equality over binary variables.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Problem is a maximization problem over NumVars binary variables.
type Problem struct {
	Name        string
	Objective   []float64
	Constraints []Constraint
}

// NewProblem creates a problem with numVars variables and a zero objective.
func NewProblem(name string, numVars int) *Problem {
	return &Problem{
		Name:      name,
		Objective: make([]float64, numVars),
	}
}

// NumVars returns the number of decision variables.
func (p *Problem) NumVars() int {
	return len(p.Objective)
}

// SetObjective sets the objective coefficient of variable v.
func (p *Problem) SetObjective(v int, coef float64) {
	p.Objective[v] = coef
}

// Add appends a constraint.
func (p *Problem) Add(c Constraint) {
	p.Constraints = append(p.Constraints, c)
}

// Validate checks variable indices and coefficients.
func (p *Problem) Validate() error {
	n := p.NumVars()
	for v, c := range p.Objective {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: objective coefficient of x%d is %v", ErrInvalidProblem, v, c)
		}
	}
	for i, c := range p.Constraints {
		if c.Sense < LessEq || c.Sense > Equal {
			return fmt.Errorf("%w: constraint %d (%s): unknown sense %d", ErrInvalidProblem, i, c.Name, c.Sense)
		}
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return fmt.Errorf("%w: constraint %d (%s): bound is %v", ErrInvalidProblem, i, c.Name, c.RHS)
		}
		for _, t := range c.Terms {
			if t.Var < 0 || t.Var >= n {
				return fmt.Errorf("%w: constraint %d (%s): variable %d out of range", ErrInvalidProblem, i, c.Name, t.Var)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("%w: constraint %d (%s): coefficient of x%d is %v", ErrInvalidProblem, i, c.Name, t.Var, t.Coef)
			}
		}
	}
	return nil
}

// Status reports the quality of a returned solution.
type Status int

const (
	// StatusOptimal means the search space was exhausted.
	StatusOptimal Status = iota
	// StatusFeasible means the node budget ran out after a feasible
	// assignment was found; it is the best one seen.
	StatusFeasible
)

func (s Status) String() string {
	if s == StatusOptimal {
		return "optimal"
	}
	return "feasible"
}

// Solution is a 0/1 assignment for every variable.
type Solution struct {
	Status    Status
	Values    []bool
	Objective float64
	Nodes     int
}

// Selected returns the indices of variables set to 1.
func (s *Solution) Selected() []int {
	var out []int
	for v, on := range s.Values {
		if on {
			out = append(out, v)
		}
	}
	return out
}

// Solver solves binary integer programs.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}

var (
	// ErrInfeasible is returned when no assignment satisfies every constraint.
	ErrInfeasible = errors.New("problem is infeasible")

	// ErrInvalidProblem is returned for malformed problems.
	ErrInvalidProblem = errors.New("invalid problem")
)

// NodeLimitError is returned when the node budget is exhausted before any
// feasible assignment was found.
type NodeLimitError struct {
	Limit int
}

func (e *NodeLimitError) Error() string {
	return fmt.Sprintf("node limit %d reached without a feasible solution", e.Limit)
}
