/*
optimizer.go - Integer-program allocation engine

PURPOSE:
  Finds the combination of whole rule applications that maximizes total
  points without over-spending any merchant. The objective is bounded
  points plus the catch-all payout on what they leave, so the integer
  optimum is the best total over every feasible combination and
  dominates any fixed-order greedy walk, whatever the catalog.

FLOW:
  1. Split bounded rules from the catch-all
  2. BuildModel: one integer variable per bounded rule, one row per
     merchant, leftover spend priced at the catch-all reward
  3. Solver.Solve (atomic, synchronous)
  4. Optimal: read counts, verify them, compute residual spend
     Otherwise: bounded rules contribute nothing, Degraded is set
  5. Catch-all on the residual (or on full spend when degraded)

DEGRADED RESULTS:
  A solve that is not proven optimal never yields a partial allocation.
  The result carries an InfeasibleOptimizationError so callers can tell
  "no rule applied" apart from "the optimizer gave up".

SEE ALSO:
  - model.go: Program construction
  - solver/: Solver implementations
  - residual.go: Catch-all evaluation
*/
package generic

import (
	"context"
	"errors"
	"fmt"
)

// Optimizer allocates rules by solving an integer program.
type Optimizer struct {
	Solver Solver
}

func NewOptimizer(solver Solver) *Optimizer {
	return &Optimizer{Solver: solver}
}

func (o *Optimizer) Strategy() Strategy { return StrategyOptimal }

// Allocate solves bounded rules jointly, with the catch-all priced in but
// applied last. Rule order only affects the order of Applications.
func (o *Optimizer) Allocate(ctx context.Context, rules []*Rule, spend Spend) (*Allocation, error) {
	bounded, catchAll, err := SplitCatchAll(rules)
	if err != nil {
		return nil, err
	}

	alloc := &Allocation{
		Strategy:     StrategyOptimal,
		Spend:        spend,
		Applications: make([]Application, 0, len(bounded)),
	}

	counts, nodes, degraded, err := o.solve(ctx, bounded, catchAll, spend)
	if err != nil {
		return nil, err
	}
	alloc.SolverNodes = nodes

	if degraded != nil {
		for _, r := range bounded {
			alloc.Applications = append(alloc.Applications, newApplication(r, 0))
		}
		alloc.Degraded = degraded
		alloc.Residual = spend
		alloc.CatchAll = ApplyCatchAll(catchAll, spend)
		return alloc.finish(), nil
	}

	residual, err := Residual(spend, bounded, counts)
	if err != nil {
		return nil, err
	}
	for j, r := range bounded {
		alloc.Applications = append(alloc.Applications, newApplication(r, counts[j]))
	}
	alloc.Residual = residual
	alloc.CatchAll = ApplyCatchAll(catchAll, residual)
	return alloc.finish(), nil
}

// solve returns per-rule counts, or a degradation reason when no proven
// optimum is available.
func (o *Optimizer) solve(ctx context.Context, bounded []*Rule, catchAll *Rule, spend Spend) ([]int64, int, *InfeasibleOptimizationError, error) {
	if len(bounded) == 0 {
		return nil, 0, nil, nil
	}
	if o.Solver == nil {
		return nil, 0, nil, errors.New("optimizer: no solver configured")
	}

	model, err := BuildModel(bounded, catchAll, spend)
	if err != nil {
		return nil, 0, nil, err
	}

	sol, err := o.Solver.Solve(ctx, model)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("solve: %w", err)
	}

	if sol.Status != StatusOptimal {
		return nil, sol.Nodes, &InfeasibleOptimizationError{Status: sol.Status, Reason: sol.Reason}, nil
	}
	if !model.Feasible(sol.Values) {
		return nil, sol.Nodes, &InfeasibleOptimizationError{
			Status: StatusNotOptimal,
			Reason: "solver returned an assignment that over-spends a merchant",
		}, nil
	}
	// Decimal check: float feasibility can hide sub-cent overdrafts
	if _, err := Residual(spend, bounded, sol.Values); err != nil {
		return nil, sol.Nodes, &InfeasibleOptimizationError{Status: StatusNotOptimal, Reason: err.Error()}, nil
	}
	return sol.Values, sol.Nodes, nil, nil
}
