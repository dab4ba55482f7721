/*
calculator.go - One calculation session, end to end

PURPOSE:
  Wires the catalog and the allocators together. Every Calculate call is
  an independent session: rules are resolved from the catalog, a fresh
  Spend snapshot is handed to the allocator, and a new Allocation is
  returned. Nothing is shared between calls.

FAIL FAST:
  Unknown rule ids and unknown strategies are rejected before any
  allocation work begins.

RULE ORDER:
  optimal: rules sorted by id (order is irrelevant to the result)
  greedy:  rules in the order requested - this IS the priority order

SEE ALSO:
  - optimizer.go, greedy.go: The two allocators
  - summary.go: Presentation projection
*/
package generic

import (
	"context"
	"fmt"
)

// Allocator turns a rule list and a spend snapshot into an Allocation.
type Allocator interface {
	Strategy() Strategy
	Allocate(ctx context.Context, rules []*Rule, spend Spend) (*Allocation, error)
}

// CalculationRequest describes one session.
type CalculationRequest struct {
	RuleIDs  []RuleID
	Spend    Spend
	Strategy Strategy
}

// Comparison holds both strategies' results for the same input.
type Comparison struct {
	Optimal *Allocation
	Greedy  *Allocation
}

// Gain is how many more points the optimizer earned.
func (c *Comparison) Gain() Points { return c.Optimal.Total - c.Greedy.Total }

// Calculator runs sessions against a fixed catalog.
type Calculator struct {
	Catalog    *Catalog
	Allocators map[Strategy]Allocator
}

// NewCalculator registers the optimizer and the greedy baseline.
func NewCalculator(catalog *Catalog, optimizer Allocator) *Calculator {
	c := &Calculator{Catalog: catalog, Allocators: make(map[Strategy]Allocator)}
	c.Register(optimizer)
	c.Register(NewGreedyAllocator())
	return c
}

// Register adds or replaces the allocator for its strategy.
func (c *Calculator) Register(a Allocator) {
	if a != nil {
		c.Allocators[a.Strategy()] = a
	}
}

// Calculate runs one session.
func (c *Calculator) Calculate(ctx context.Context, req CalculationRequest) (*Allocation, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategyOptimal
	}
	allocator, ok := c.Allocators[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	rules, err := c.resolve(strategy, req.RuleIDs)
	if err != nil {
		return nil, err
	}
	return allocator.Allocate(ctx, rules, req.Spend)
}

// Compare runs the optimizer and the greedy baseline on the same input.
// ruleIDs double as the greedy priority order.
func (c *Calculator) Compare(ctx context.Context, ruleIDs []RuleID, spend Spend) (*Comparison, error) {
	// Resolve once up front so an unknown id fails before either run
	if _, err := c.Catalog.Priority(ruleIDs...); err != nil {
		return nil, err
	}

	opt, err := c.Calculate(ctx, CalculationRequest{RuleIDs: ruleIDs, Spend: spend, Strategy: StrategyOptimal})
	if err != nil {
		return nil, err
	}
	greedy, err := c.Calculate(ctx, CalculationRequest{RuleIDs: ruleIDs, Spend: spend, Strategy: StrategyGreedy})
	if err != nil {
		return nil, err
	}
	return &Comparison{Optimal: opt, Greedy: greedy}, nil
}

func (c *Calculator) resolve(strategy Strategy, ids []RuleID) ([]*Rule, error) {
	if strategy == StrategyGreedy {
		return c.Catalog.Priority(ids...)
	}
	return c.Catalog.RuleSet(ids...)
}
