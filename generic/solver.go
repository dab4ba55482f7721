package generic

import "context"

// =============================================================================
// SOLVER - Pluggable integer-program capability
// =============================================================================

// SolveStatus distinguishes a proven optimum from every other outcome.
type SolveStatus string

const (
	StatusOptimal    SolveStatus = "optimal"
	StatusInfeasible SolveStatus = "infeasible"
	StatusNotOptimal SolveStatus = "not_optimal" // stopped early or numerical trouble
)

// Solution is the solver's answer for a Model. Values is only meaningful
// when Status is StatusOptimal; it is indexed like Model.Rules. Objective
// is Model.Evaluate(Values), catch-all payout included.
type Solution struct {
	Status    SolveStatus
	Values    []int64
	Objective float64
	Nodes     int
	Reason    string
}

// Solver solves a Model synchronously. The call is atomic: nothing about the
// search is observable until it returns. A returned error means the solve
// was aborted (e.g. context cancelled); an unsuccessful but completed solve
// is reported through Solution.Status instead.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, m *Model) (*Solution, error)

func (f SolverFunc) Solve(ctx context.Context, m *Model) (*Solution, error) { return f(ctx, m) }
