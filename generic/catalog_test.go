package generic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rewards-engine/generic"
)

// =============================================================================
// RULE VALIDATION TESTS
// =============================================================================

func TestNewRule_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		id     generic.RuleID
		reward generic.Points
		reqs   []generic.Requirement
	}{
		{"zero id", 0, 10, []generic.Requirement{generic.Require(sc, 10)}},
		{"zero reward", 1, 0, []generic.Requirement{generic.Require(sc, 10)}},
		{"zero amount", 1, 10, []generic.Requirement{generic.Require(sc, 0)}},
		{"negative amount", 1, 10, []generic.Requirement{generic.Require(sc, -5)}},
		{"empty merchant", 1, 10, []generic.Requirement{generic.Require("", 5)}},
		{"merchant twice", 1, 10, []generic.Requirement{generic.Require(sc, 5), generic.Require(sc, 6)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := generic.NewRule(tt.id, tt.reward, tt.reqs...)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, generic.ErrInvalidRule)
		})
	}
}

func TestRule_CatchAllAndCost(t *testing.T) {
	bundle := generic.MustRule(4, 150, generic.Require(sc, 25), generic.Require(th, 10), generic.Require(sw, 10))
	catchAll := generic.MustRule(7, 1)

	assert.False(t, bundle.IsCatchAll())
	assert.True(t, catchAll.IsCatchAll())
	assert.True(t, bundle.Cost().Equal(generic.NewAmount(45)))
	assert.Equal(t, []generic.MerchantID{sc, th, sw}, bundle.Merchants())
}

func TestRule_Equal_IgnoresRequirementOrder(t *testing.T) {
	a := generic.MustRule(1, 100, generic.Require(sc, 10), generic.Require(th, 5))
	b := generic.MustRule(1, 100, generic.Require(th, 5), generic.Require(sc, 10))
	c := generic.MustRule(1, 100, generic.Require(th, 5), generic.Require(sc, 11))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestNewCatalog_DuplicateID(t *testing.T) {
	_, err := generic.NewCatalog(
		generic.MustRule(1, 10, generic.Require(sc, 10)),
		generic.MustRule(1, 20, generic.Require(th, 10)),
	)
	assert.ErrorIs(t, err, generic.ErrDuplicateRule)
}

func TestNewCatalog_TwoCatchAlls(t *testing.T) {
	_, err := generic.NewCatalog(generic.MustRule(1, 1), generic.MustRule(2, 1))
	assert.ErrorIs(t, err, generic.ErrMultipleCatchAll)
}

func TestCatalog_UnknownRule(t *testing.T) {
	catalog := testCatalog(t)

	_, err := catalog.Rule(99)
	var unknown *generic.UnknownRuleError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, generic.RuleID(99), unknown.ID)
	assert.True(t, generic.IsClientError(err))
}

func TestCatalog_RuleSet_SortedAndDeduplicated(t *testing.T) {
	rules, err := testCatalog(t).RuleSet(6, 1, 6, 3)
	require.NoError(t, err)

	ids := make([]generic.RuleID, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	assert.Equal(t, []generic.RuleID{1, 3, 6}, ids)
}

func TestCatalog_Priority_KeepsFirstPosition(t *testing.T) {
	rules, err := testCatalog(t).Priority(6, 1, 6, 7)
	require.NoError(t, err)

	ids := make([]generic.RuleID, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	assert.Equal(t, []generic.RuleID{6, 1, 7}, ids)
}

func TestCatalog_UnknownIDFailsWholeCall(t *testing.T) {
	catalog := testCatalog(t)

	_, err := catalog.RuleSet(1, 2, 100)
	assert.ErrorIs(t, err, generic.ErrUnknownRule)
	_, err = catalog.Priority(100, 1)
	assert.ErrorIs(t, err, generic.ErrUnknownRule)
}

func TestCatalog_CatchAll(t *testing.T) {
	catalog := testCatalog(t)
	require.NotNil(t, catalog.CatchAll())
	assert.Equal(t, generic.RuleID(7), catalog.CatchAll().ID)
	assert.Equal(t, allRules(), catalog.IDs())
}

func TestParseRuleID(t *testing.T) {
	id, err := generic.ParseRuleID(" 4 ")
	require.NoError(t, err)
	assert.Equal(t, generic.RuleID(4), id)

	_, err = generic.ParseRuleID("four")
	assert.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	s, err := generic.ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, generic.StrategyOptimal, s)

	s, err = generic.ParseStrategy("greedy")
	require.NoError(t, err)
	assert.Equal(t, generic.StrategyGreedy, s)

	_, err = generic.ParseStrategy("random")
	assert.ErrorIs(t, err, generic.ErrUnknownStrategy)
}

func TestMustParseDecimal(t *testing.T) {
	assert.True(t, generic.MustParseDecimal("12.50").Equal(generic.MustParseDecimal("12.5")))
	assert.Panics(t, func() { generic.MustParseDecimal("12,5") })
	assert.Panics(t, func() { generic.MustParseDecimal("") })
}

func TestMustRule_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { generic.MustRule(1, -5, generic.Require(sc, 10)) })
}
