package rewards

import (
	"github.com/warp/rewards-engine/generic"
	"github.com/warp/rewards-engine/generic/solver"
)

// =============================================================================
// DEFAULT CATALOG
// =============================================================================

// Rule ids of the default catalog.
const (
	RuleTripleBundle generic.RuleID = iota + 1
	RuleSportCoffee
	RuleSportOnly
	RuleSmallTripleBundle
	RuleSmallSportCoffee
	RuleSmallSport
	RuleCatchAll
)

// Program names shipped with the default catalog.
const (
	ProgramStandard         = "standard"
	ProgramCapitalOne100    = "capital-one-100"
	ProgramCapitalOneNormal = "capital-one-normal"
)

// DefaultRules returns fresh copies of the seven default rules.
func DefaultRules() []*generic.Rule {
	return []*generic.Rule{
		generic.MustRule(RuleTripleBundle, 500,
			generic.Require(MerchantSportCheck, 75),
			generic.Require(MerchantTimHortons, 25),
			generic.Require(MerchantSubway, 25),
		).WithDescription("500 points for $75 sportcheck, $25 tim_hortons and $25 subway"),
		generic.MustRule(RuleSportCoffee, 300,
			generic.Require(MerchantSportCheck, 75),
			generic.Require(MerchantTimHortons, 25),
		).WithDescription("300 points for $75 sportcheck and $25 tim_hortons"),
		generic.MustRule(RuleSportOnly, 200,
			generic.Require(MerchantSportCheck, 75),
		).WithDescription("200 points for $75 sportcheck"),
		generic.MustRule(RuleSmallTripleBundle, 150,
			generic.Require(MerchantSportCheck, 25),
			generic.Require(MerchantTimHortons, 10),
			generic.Require(MerchantSubway, 10),
		).WithDescription("150 points for $25 sportcheck, $10 tim_hortons and $10 subway"),
		generic.MustRule(RuleSmallSportCoffee, 75,
			generic.Require(MerchantSportCheck, 25),
			generic.Require(MerchantTimHortons, 10),
		).WithDescription("75 points for $25 sportcheck and $10 tim_hortons"),
		generic.MustRule(RuleSmallSport, 75,
			generic.Require(MerchantSportCheck, 20),
		).WithDescription("75 points for $20 sportcheck"),
		generic.MustRule(RuleCatchAll, 1).
			WithDescription("1 point for every $1 spent on all other purchases"),
	}
}

// DefaultCatalog builds the catalog of DefaultRules.
func DefaultCatalog() *generic.Catalog {
	catalog, err := generic.NewCatalog(DefaultRules()...)
	if err != nil {
		panic(err) // static data
	}
	return catalog
}

// DefaultPriority is the legacy greedy order: highest reward first.
func DefaultPriority() []generic.RuleID {
	return []generic.RuleID{1, 2, 3, 4, 5, 6, 7}
}

// DefaultPrograms returns the card programs of the default catalog.
func DefaultPrograms() []Program {
	return []Program{
		{
			Name:        ProgramStandard,
			Description: "Every rule in the catalog",
			Rules:       DefaultPriority(),
		},
		{
			Name:        ProgramCapitalOne100,
			Description: "Capital One 100 card",
			Rules:       []generic.RuleID{1, 3, 5, 7},
		},
		{
			Name:        ProgramCapitalOneNormal,
			Description: "Capital One normal card",
			Rules:       []generic.RuleID{1, 3, 7},
		},
	}
}

// DefaultProgramSet validates DefaultPrograms against DefaultCatalog.
func DefaultProgramSet() *ProgramSet {
	set, err := NewProgramSet(DefaultCatalog(), DefaultPrograms()...)
	if err != nil {
		panic(err) // static data
	}
	return set
}

// NewCalculator wires a catalog to the branch-and-bound optimizer and the
// greedy baseline. nodeLimit <= 0 uses the solver default.
func NewCalculator(catalog *generic.Catalog, nodeLimit int) *generic.Calculator {
	bb := solver.NewBranchAndBound()
	if nodeLimit > 0 {
		bb.NodeLimit = nodeLimit
	}
	return generic.NewCalculator(catalog, generic.NewOptimizer(bb))
}
