package generic_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rewards-engine/generic"
	"github.com/warp/rewards-engine/generic/solver"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	sc generic.MerchantID = "sportcheck"
	th generic.MerchantID = "tim_hortons"
	sw generic.MerchantID = "subway"
)

func testRules() []*generic.Rule {
	return []*generic.Rule{
		generic.MustRule(1, 500, generic.Require(sc, 75), generic.Require(th, 25), generic.Require(sw, 25)),
		generic.MustRule(2, 300, generic.Require(sc, 75), generic.Require(th, 25)),
		generic.MustRule(3, 200, generic.Require(sc, 75)),
		generic.MustRule(4, 150, generic.Require(sc, 25), generic.Require(th, 10), generic.Require(sw, 10)),
		generic.MustRule(5, 75, generic.Require(sc, 25), generic.Require(th, 10)),
		generic.MustRule(6, 75, generic.Require(sc, 20)),
		generic.MustRule(7, 1),
	}
}

func testCatalog(t *testing.T) *generic.Catalog {
	t.Helper()
	c, err := generic.NewCatalog(testRules()...)
	require.NoError(t, err)
	return c
}

func testCalculator(t *testing.T) *generic.Calculator {
	return generic.NewCalculator(testCatalog(t), generic.NewOptimizer(solver.NewBranchAndBound()))
}

func allRules() []generic.RuleID { return []generic.RuleID{1, 2, 3, 4, 5, 6, 7} }

func spendOf(t *testing.T, amounts map[generic.MerchantID]float64) generic.Spend {
	t.Helper()
	s, err := generic.NewSpendFromFloats(amounts)
	require.NoError(t, err)
	return s
}

func calculate(t *testing.T, ids []generic.RuleID, s generic.Spend, strategy generic.Strategy) *generic.Allocation {
	t.Helper()
	alloc, err := testCalculator(t).Calculate(context.Background(), generic.CalculationRequest{
		RuleIDs:  ids,
		Spend:    s,
		Strategy: strategy,
	})
	require.NoError(t, err)
	return alloc
}

// =============================================================================
// OPTIMAL ALLOCATION TESTS
// =============================================================================

func TestOptimal_TwoTripleBundles(t *testing.T) {
	// GIVEN: Exactly twice the spend rule 1 needs
	// WHEN: Optimizing over all rules
	// THEN: Rule 1 twice, nothing left for the catch-all

	alloc := calculate(t, allRules(), spendOf(t, map[generic.MerchantID]float64{sc: 150, th: 50, sw: 50}), generic.StrategyOptimal)

	assert.Equal(t, generic.Points(1000), alloc.Total)
	assert.Equal(t, int64(2), alloc.Count(1))
	assert.Equal(t, int64(0), alloc.Count(7))
	assert.True(t, alloc.Residual.Total().IsZero())
}

func TestOptimal_LeftoverGoesToCatchAll(t *testing.T) {
	alloc := calculate(t, allRules(), spendOf(t, map[generic.MerchantID]float64{sc: 21}), generic.StrategyOptimal)

	assert.Equal(t, int64(1), alloc.Count(6))
	assert.Equal(t, int64(1), alloc.Count(7))
	assert.Equal(t, generic.Points(75), alloc.BoundedPoints)
	assert.Equal(t, generic.Points(76), alloc.Total)
}

func TestOptimal_BeatsGreedy(t *testing.T) {
	// GIVEN: Spend where greedy grabs rule 3 first
	// WHEN: Running both strategies
	// THEN: Optimal 460 (rule 4 x2, rule 6 x2, 10 leftover), greedy 370

	s := spendOf(t, map[generic.MerchantID]float64{sc: 100, th: 20, sw: 20})

	optimal := calculate(t, allRules(), s, generic.StrategyOptimal)
	greedy := calculate(t, allRules(), s, generic.StrategyGreedy)

	assert.Equal(t, generic.Points(460), optimal.Total)
	assert.Equal(t, int64(2), optimal.Count(4))
	assert.Equal(t, int64(2), optimal.Count(6))
	assert.Equal(t, int64(10), optimal.Count(7))

	assert.Equal(t, generic.Points(370), greedy.Total)
	assert.Equal(t, int64(1), greedy.Count(3))
	assert.Equal(t, int64(1), greedy.Count(4))
	assert.Equal(t, int64(20), greedy.Count(7))
}

func TestOptimal_WeakRulesNeverBeatCatchAll(t *testing.T) {
	// GIVEN: Rules paying less per dollar than the catch-all
	// WHEN: Comparing strategies
	// THEN: The optimizer leaves the spend to the catch-all; greedy does not

	tests := []struct {
		name    string
		rules   []*generic.Rule
		spend   map[generic.MerchantID]float64
		optimal generic.Points
		greedy  generic.Points
	}{
		{
			name: "single merchant",
			rules: []*generic.Rule{
				generic.MustRule(1, 1, generic.Require(sc, 60)),
				generic.MustRule(2, 2, generic.Require(sc, 100)),
				generic.MustRule(3, 1),
			},
			spend:   map[generic.MerchantID]float64{sc: 100},
			optimal: 100,
			greedy:  41,
		},
		{
			name: "fewer bounded points win on total",
			rules: []*generic.Rule{
				generic.MustRule(1, 150, generic.Require(sc, 100)),
				generic.MustRule(2, 149, generic.Require(sc, 10), generic.Require(th, 10)),
				generic.MustRule(3, 1),
			},
			spend:   map[generic.MerchantID]float64{sc: 100, th: 10},
			optimal: 239,
			greedy:  160,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog, err := generic.NewCatalog(tt.rules...)
			require.NoError(t, err)
			calc := generic.NewCalculator(catalog, generic.NewOptimizer(solver.NewBranchAndBound()))

			cmp, err := calc.Compare(context.Background(), []generic.RuleID{1, 2, 3}, spendOf(t, tt.spend))
			require.NoError(t, err)

			assert.Equal(t, tt.optimal, cmp.Optimal.Total)
			assert.Equal(t, tt.greedy, cmp.Greedy.Total)
			// Catch-all still paid last, on the true residual
			assert.Equal(t, cmp.Optimal.Residual.Total().Floor().IntPart(), cmp.Optimal.CatchAll.Count)
		})
	}
}

func TestOptimal_EmptySpend_ZeroPoints(t *testing.T) {
	alloc := calculate(t, allRules(), generic.Spend{}, generic.StrategyOptimal)

	assert.Equal(t, generic.Points(0), alloc.Total)
	for _, app := range alloc.Applications {
		assert.Equal(t, int64(0), app.Count)
	}
	assert.False(t, alloc.IsDegraded())
}

func TestOptimal_CatchAllOnly(t *testing.T) {
	alloc := calculate(t, []generic.RuleID{7}, spendOf(t, map[generic.MerchantID]float64{sc: 10.5, th: 4.75}), generic.StrategyOptimal)

	assert.Empty(t, alloc.Applications)
	require.NotNil(t, alloc.CatchAll)
	assert.Equal(t, int64(15), alloc.CatchAll.Count)
	assert.Equal(t, generic.Points(15), alloc.Total)
}

func TestOptimal_NoCatchAll_LeftoverUnrewarded(t *testing.T) {
	alloc := calculate(t, []generic.RuleID{6}, spendOf(t, map[generic.MerchantID]float64{sc: 59}), generic.StrategyOptimal)

	assert.Nil(t, alloc.CatchAll)
	assert.Equal(t, generic.Points(150), alloc.Total)
	assert.True(t, alloc.Residual.Get(sc).Equal(generic.NewAmount(19)))
}

func TestOptimal_UnrelatedMerchantCountsForCatchAll(t *testing.T) {
	alloc := calculate(t, allRules(), spendOf(t, map[generic.MerchantID]float64{sc: 20, "starbucks": 7.99}), generic.StrategyOptimal)

	assert.Equal(t, int64(1), alloc.Count(6))
	assert.Equal(t, int64(7), alloc.Count(7))
	assert.Equal(t, generic.Points(82), alloc.Total)
}

func TestOptimal_RuleOrderIrrelevant(t *testing.T) {
	s := spendOf(t, map[generic.MerchantID]float64{sc: 180, th: 45, sw: 35})

	a := calculate(t, []generic.RuleID{1, 2, 3, 4, 5, 6, 7}, s, generic.StrategyOptimal)
	b := calculate(t, []generic.RuleID{7, 6, 5, 4, 3, 2, 1}, s, generic.StrategyOptimal)

	assert.Equal(t, a.Total, b.Total)
}

// =============================================================================
// FAIL-FAST TESTS
// =============================================================================

func TestCalculate_UnknownRule_Aborts(t *testing.T) {
	calc := testCalculator(t)
	s := spendOf(t, map[generic.MerchantID]float64{sc: 100})

	for _, strategy := range []generic.Strategy{generic.StrategyOptimal, generic.StrategyGreedy} {
		t.Run(string(strategy), func(t *testing.T) {
			alloc, err := calc.Calculate(context.Background(), generic.CalculationRequest{
				RuleIDs:  []generic.RuleID{1, 99},
				Spend:    s,
				Strategy: strategy,
			})
			assert.Nil(t, alloc)
			assert.ErrorIs(t, err, generic.ErrUnknownRule)

			var unknown *generic.UnknownRuleError
			require.ErrorAs(t, err, &unknown)
			assert.Equal(t, generic.RuleID(99), unknown.ID)
		})
	}
}

func TestCalculate_UnknownStrategy(t *testing.T) {
	_, err := testCalculator(t).Calculate(context.Background(), generic.CalculationRequest{
		RuleIDs:  allRules(),
		Strategy: "fastest",
	})
	assert.ErrorIs(t, err, generic.ErrUnknownStrategy)
}

func TestCalculate_EmptyStrategyDefaultsToOptimal(t *testing.T) {
	alloc, err := testCalculator(t).Calculate(context.Background(), generic.CalculationRequest{
		RuleIDs: allRules(),
		Spend:   spendOf(t, map[generic.MerchantID]float64{sc: 100, th: 20, sw: 20}),
	})
	require.NoError(t, err)
	assert.Equal(t, generic.StrategyOptimal, alloc.Strategy)
	assert.Equal(t, generic.Points(460), alloc.Total)
}

func TestCompare_UnknownRule_FailsBeforeEitherRun(t *testing.T) {
	calls := 0
	counting := generic.SolverFunc(func(ctx context.Context, m *generic.Model) (*generic.Solution, error) {
		calls++
		return solver.NewBranchAndBound().Solve(ctx, m)
	})
	calc := generic.NewCalculator(testCatalog(t), generic.NewOptimizer(counting))

	_, err := calc.Compare(context.Background(), []generic.RuleID{1, 42}, generic.Spend{})
	assert.ErrorIs(t, err, generic.ErrUnknownRule)
	assert.Zero(t, calls)
}

// =============================================================================
// DEGRADED OPTIMIZATION TESTS
// =============================================================================

func TestOptimizer_SolverNotOptimal_FallsBackToCatchAll(t *testing.T) {
	// GIVEN: A solver that gives up
	// WHEN: Allocating
	// THEN: No bounded rule applies, the catch-all pays on the full spend,
	//       and the result says why

	giveUp := generic.SolverFunc(func(ctx context.Context, m *generic.Model) (*generic.Solution, error) {
		return &generic.Solution{Status: generic.StatusNotOptimal, Reason: "node limit 1 reached"}, nil
	})
	calc := generic.NewCalculator(testCatalog(t), generic.NewOptimizer(giveUp))

	alloc, err := calc.Calculate(context.Background(), generic.CalculationRequest{
		RuleIDs: allRules(),
		Spend:   spendOf(t, map[generic.MerchantID]float64{sc: 150, th: 50, sw: 50}),
	})
	require.NoError(t, err)

	require.True(t, alloc.IsDegraded())
	assert.ErrorIs(t, alloc.Degraded, generic.ErrInfeasibleOptimization)
	assert.Equal(t, generic.StatusNotOptimal, alloc.Degraded.Status)
	assert.Equal(t, generic.Points(0), alloc.BoundedPoints)
	assert.Equal(t, generic.Points(250), alloc.Total)
	assert.Len(t, alloc.Applications, 6)
}

func TestOptimizer_OverspendingSolution_Degraded(t *testing.T) {
	greedyLiar := generic.SolverFunc(func(ctx context.Context, m *generic.Model) (*generic.Solution, error) {
		values := make([]int64, m.NumVars())
		for j := range values {
			values[j] = 100
		}
		return &generic.Solution{Status: generic.StatusOptimal, Values: values}, nil
	})
	opt := generic.NewOptimizer(greedyLiar)

	alloc, err := opt.Allocate(context.Background(), testRules(), spendOf(t, map[generic.MerchantID]float64{sc: 30}))
	require.NoError(t, err)

	assert.True(t, alloc.IsDegraded())
	assert.Equal(t, generic.Points(30), alloc.Total)
}

func TestOptimizer_SolverError_Propagates(t *testing.T) {
	boom := errors.New("boom")
	failing := generic.SolverFunc(func(ctx context.Context, m *generic.Model) (*generic.Solution, error) {
		return nil, boom
	})

	_, err := generic.NewOptimizer(failing).Allocate(context.Background(), testRules(), spendOf(t, map[generic.MerchantID]float64{sc: 30}))
	assert.ErrorIs(t, err, boom)
}

func TestOptimizer_NoSolver_Error(t *testing.T) {
	_, err := generic.NewOptimizer(nil).Allocate(context.Background(), testRules(), generic.Spend{})
	assert.Error(t, err)
}

func TestOptimizer_TwoCatchAlls_Rejected(t *testing.T) {
	rules := []*generic.Rule{generic.MustRule(1, 1), generic.MustRule(2, 2)}

	_, err := generic.NewOptimizer(solver.NewBranchAndBound()).Allocate(context.Background(), rules, generic.Spend{})
	assert.ErrorIs(t, err, generic.ErrMultipleCatchAll)
}

// =============================================================================
// GREEDY ALLOCATION TESTS
// =============================================================================

func TestGreedy_PriorityOrderMatters(t *testing.T) {
	// GIVEN: Priority 6, 1, 7
	// WHEN: Greedy allocation on {150, 50, 50}
	// THEN: Rule 6 drains sportcheck, rule 1 never applies, 635 total

	alloc := calculate(t, []generic.RuleID{6, 1, 7}, spendOf(t, map[generic.MerchantID]float64{sc: 150, th: 50, sw: 50}), generic.StrategyGreedy)

	assert.Equal(t, int64(7), alloc.Count(6))
	assert.Equal(t, int64(0), alloc.Count(1))
	assert.Equal(t, int64(110), alloc.Count(7))
	assert.Equal(t, generic.Points(635), alloc.Total)
	assert.Equal(t, []generic.RuleID{6, 1}, []generic.RuleID{alloc.Applications[0].RuleID, alloc.Applications[1].RuleID})
}

func TestGreedy_CatchAllEvaluatedLast(t *testing.T) {
	s := spendOf(t, map[generic.MerchantID]float64{sc: 40})

	first := calculate(t, []generic.RuleID{7, 6}, s, generic.StrategyGreedy)
	last := calculate(t, []generic.RuleID{6, 7}, s, generic.StrategyGreedy)

	assert.Equal(t, generic.Points(150), first.Total)
	assert.Equal(t, last.Total, first.Total)
}

func TestGreedy_MissingMerchant_RuleSkipped(t *testing.T) {
	alloc := calculate(t, []generic.RuleID{1, 3}, spendOf(t, map[generic.MerchantID]float64{sc: 80, th: 30}), generic.StrategyGreedy)

	assert.Equal(t, int64(0), alloc.Count(1))
	assert.Equal(t, int64(1), alloc.Count(3))
}

func TestGreedy_DoesNotMutateSpend(t *testing.T) {
	s := spendOf(t, map[generic.MerchantID]float64{sc: 150, th: 50, sw: 50})
	before := s.Map()

	calculate(t, allRules(), s, generic.StrategyGreedy)

	assert.True(t, s.Equal(mustSpend(t, before)))
}

func TestGreedy_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := generic.NewGreedyAllocator().Allocate(ctx, testRules(), generic.Spend{})
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// SUMMARY TESTS
// =============================================================================

func TestSummarize_OmitsZeroCounts_CatchAllLast(t *testing.T) {
	alloc := calculate(t, allRules(), spendOf(t, map[generic.MerchantID]float64{sc: 100, th: 20, sw: 20}), generic.StrategyOptimal)

	s := generic.Summarize(alloc)

	require.Len(t, s.Lines, 3)
	assert.Equal(t, generic.RuleID(4), s.Lines[0].RuleID)
	assert.Equal(t, generic.Points(300), s.Lines[0].RunningTotal)
	assert.Equal(t, generic.RuleID(6), s.Lines[1].RuleID)
	assert.Equal(t, generic.Points(450), s.Lines[1].RunningTotal)
	assert.True(t, s.Lines[2].CatchAll)
	assert.Equal(t, generic.Points(460), s.Lines[2].RunningTotal)
	assert.Equal(t, generic.Points(460), s.GrandTotal)
	assert.False(t, s.Degraded)
}

func mustSpend(t *testing.T, m map[generic.MerchantID]decimal.Decimal) generic.Spend {
	t.Helper()
	s, err := generic.NewSpend(m)
	require.NoError(t, err)
	return s
}
