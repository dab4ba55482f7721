package generic

import "github.com/shopspring/decimal"

// =============================================================================
// ALLOCATION - Result of one calculation session
// =============================================================================

// Application records how often one rule was applied.
type Application struct {
	RuleID RuleID
	Count  int64
	Reward Points
	Points Points
}

func newApplication(r *Rule, count int64) Application {
	return Application{RuleID: r.ID, Count: count, Reward: r.Reward, Points: Points(count) * r.Reward}
}

// Allocation is the immutable outcome of one session.
//
// Applications lists every bounded rule that took part, in the order the
// allocator saw them, including zero counts. CatchAll is nil when the
// session had no catch-all rule.
type Allocation struct {
	Strategy     Strategy
	Applications []Application
	CatchAll     *Application

	// Spend is the snapshot the session started from, Residual what the
	// bounded rules left behind (the catch-all does not reduce it).
	Spend    Spend
	Residual Spend

	BoundedPoints Points
	Total         Points

	// Degraded is set when the optimizer fell back to catch-all only.
	Degraded *InfeasibleOptimizationError

	// SolverNodes is the search effort reported by the solver, 0 for greedy.
	SolverNodes int
}

// Count returns how many times the rule was applied (0 if absent).
func (a *Allocation) Count(id RuleID) int64 {
	if a.CatchAll != nil && a.CatchAll.RuleID == id {
		return a.CatchAll.Count
	}
	for _, app := range a.Applications {
		if app.RuleID == id {
			return app.Count
		}
	}
	return 0
}

// IsDegraded reports whether bounded rules were skipped.
func (a *Allocation) IsDegraded() bool { return a.Degraded != nil }

// Consumed returns spend minus residual for merchant.
func (a *Allocation) Consumed(merchant MerchantID) decimal.Decimal {
	return a.Spend.Get(merchant).Sub(a.Residual.Get(merchant))
}

// finish fills the point totals from Applications and CatchAll.
func (a *Allocation) finish() *Allocation {
	var bounded Points
	for _, app := range a.Applications {
		bounded += app.Points
	}
	a.BoundedPoints = bounded
	a.Total = bounded
	if a.CatchAll != nil {
		a.Total += a.CatchAll.Points
	}
	return a
}
