package generic_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rewards-engine/generic"
	"github.com/warp/rewards-engine/generic/solver"
)

// =============================================================================
// PROPERTY TESTS - Randomized invariants over many inputs
// =============================================================================

func randomSpend(t *testing.T, rng *rand.Rand) generic.Spend {
	amounts := map[generic.MerchantID]float64{}
	for _, m := range []generic.MerchantID{sc, th, sw} {
		if rng.Intn(5) > 0 {
			amounts[m] = float64(rng.Intn(25000)) / 100
		}
	}
	return spendOf(t, amounts)
}

func TestProperty_OptimalNeverBelowGreedy(t *testing.T) {
	// GIVEN: Random spends against the default rule table
	// WHEN: Comparing optimizer and greedy baseline
	// THEN: The optimizer's total is never lower

	calc := testCalculator(t)
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for i := 0; i < 300; i++ {
		s := randomSpend(t, rng)

		cmp, err := calc.Compare(ctx, allRules(), s)
		require.NoError(t, err)
		require.False(t, cmp.Optimal.IsDegraded(), "spend %v: %v", s.Map(), cmp.Optimal.Degraded)

		assert.GreaterOrEqual(t, int64(cmp.Optimal.Total), int64(cmp.Greedy.Total), "spend %v", s.Map())
	}
}

func TestProperty_NoMerchantOverspent(t *testing.T) {
	calc := testCalculator(t)
	rng := rand.New(rand.NewSource(3))
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		s := randomSpend(t, rng)

		for _, strategy := range []generic.Strategy{generic.StrategyOptimal, generic.StrategyGreedy} {
			alloc, err := calc.Calculate(ctx, generic.CalculationRequest{RuleIDs: allRules(), Spend: s, Strategy: strategy})
			require.NoError(t, err)

			for _, m := range alloc.Residual.Merchants() {
				assert.False(t, alloc.Residual.Get(m).IsNegative(), "%s at %s", strategy, m)
			}
			for _, m := range s.Merchants() {
				assert.True(t, alloc.Consumed(m).LessThanOrEqual(s.Get(m)))
			}
			// Points are whole: the catch-all floors the residual total
			require.NotNil(t, alloc.CatchAll)
			assert.Equal(t, alloc.Residual.Total().Floor().IntPart(), alloc.CatchAll.Count)
		}
	}
}

func TestProperty_Deterministic(t *testing.T) {
	calc := testCalculator(t)
	rng := rand.New(rand.NewSource(11))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		s := randomSpend(t, rng)
		req := generic.CalculationRequest{RuleIDs: allRules(), Spend: s}

		a, err := calc.Calculate(ctx, req)
		require.NoError(t, err)
		b, err := calc.Calculate(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, a.Applications, b.Applications)
		assert.Equal(t, a.Total, b.Total)
	}
}

func TestProperty_RandomCatalogs_TotalDominance(t *testing.T) {
	// GIVEN: Random rule tables, including rules that pay less per dollar
	//        than the catch-all, and random greedy priority orders
	// WHEN: Optimizing with both solvers and walking greedily
	// THEN: Both solvers agree and neither earns fewer total points than greedy

	rng := rand.New(rand.NewSource(99))
	ctx := context.Background()
	merchants := []generic.MerchantID{sc, th, sw}

	for i := 0; i < 100; i++ {
		var rules []*generic.Rule
		n := 2 + rng.Intn(4)
		for j := 0; j < n; j++ {
			var reqs []generic.Requirement
			for _, m := range merchants {
				if rng.Intn(2) == 0 {
					reqs = append(reqs, generic.Require(m, float64(10+rng.Intn(50))))
				}
			}
			if len(reqs) == 0 {
				reqs = append(reqs, generic.Require(sc, float64(10+rng.Intn(50))))
			}
			rules = append(rules, generic.MustRule(generic.RuleID(j+1), generic.Points(1+rng.Intn(300)), reqs...))
		}
		rules = append(rules, generic.MustRule(generic.RuleID(n+1), generic.Points(1+rng.Intn(3))))
		rng.Shuffle(len(rules), func(a, b int) { rules[a], rules[b] = rules[b], rules[a] })
		s := randomSpend(t, rng)

		bb, err := generic.NewOptimizer(solver.NewBranchAndBound()).Allocate(ctx, rules, s)
		require.NoError(t, err)
		en, err := generic.NewOptimizer(solver.NewEnumerator()).Allocate(ctx, rules, s)
		require.NoError(t, err)
		greedy, err := generic.NewGreedyAllocator().Allocate(ctx, rules, s)
		require.NoError(t, err)

		require.False(t, bb.IsDegraded(), "instance %d: %v", i, bb.Degraded)
		require.False(t, en.IsDegraded(), "instance %d: %v", i, en.Degraded)
		assert.Equal(t, en.Total, bb.Total, "instance %d", i)
		assert.GreaterOrEqual(t, int64(bb.Total), int64(greedy.Total), "instance %d", i)
	}
}
