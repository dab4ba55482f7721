/*
greedy.go - Legacy priority-order allocator

PURPOSE:
  Applies rules one at a time in an explicit priority order, consuming
  as much spend as each rule can take before moving to the next one.

WHY KEEP IT?
  It is not optimal. Rules compete for the same merchant balances, so
  applying a lower-value rule first can strand spend that a higher-value
  rule would have used better. It stays as a regression baseline: the
  optimizer must never do worse.

ALGORITHM:
  For each bounded rule in priority order:
    - any required merchant missing or short   -> 0 applications
    - otherwise deduct the requirement while every balance still covers it
  The catch-all, wherever it sits in the list, is evaluated after every
  bounded rule on the remaining balances.

EXAMPLE (priority 6, 1, 7):
  spend {sportcheck: 150, tim_hortons: 50, subway: 50}
  rule 6 ($20 sportcheck) x7 -> 525, sportcheck left 10
  rule 1 needs $75 sportcheck -> 0
  catch-all floor(10 + 50 + 50) -> 110
  total 635 (the optimizer finds 1000)
*/
package generic

import "context"

// GreedyAllocator is stateless; each call works on its own Balances.
type GreedyAllocator struct{}

func NewGreedyAllocator() *GreedyAllocator { return &GreedyAllocator{} }

func (g *GreedyAllocator) Strategy() Strategy { return StrategyGreedy }

// Allocate walks rules in the given order. spend is not modified.
func (g *GreedyAllocator) Allocate(ctx context.Context, rules []*Rule, spend Spend) (*Allocation, error) {
	bounded, catchAll, err := SplitCatchAll(rules)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	balances := spend.Balances()
	alloc := &Allocation{
		Strategy:     StrategyGreedy,
		Spend:        spend,
		Applications: make([]Application, 0, len(bounded)),
	}

	for _, r := range bounded {
		times := balances.Applicable(r)
		if err := balances.Deduct(r, times); err != nil {
			return nil, err
		}
		alloc.Applications = append(alloc.Applications, newApplication(r, times))
	}

	alloc.Residual = balances.Snapshot()
	alloc.CatchAll = ApplyCatchAll(catchAll, alloc.Residual)
	return alloc.finish(), nil
}
