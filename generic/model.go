/*
model.go - Integer-program model of rule allocation

PURPOSE:
  Translates bounded rules and a spend snapshot into a typed, solver
  independent integer program:

    variables:   x_j >= 0, integer      one per bounded rule (application count)
    constraints: sum_j req_ij * x_j <= spend_i   one row per merchant
    objective:   maximize sum_j reward_j * x_j
                 + rate * floor(budget - sum_j cost_j * x_j)

  Rows are built for every merchant that appears in any requirement. A
  merchant with no spend gets a zero limit, which pins every rule that
  needs it to zero applications.

CATCH-ALL PRICING:
  The catch-all has no variable of its own. Its payout is a function of
  the bounded counts: rate points per whole unit of what the bounded
  rules leave of the total spend (budget). Pricing it into the objective
  means the solver never buys a bounded rule that pays less than the
  catch-all would have paid for the same spend, so the optimum is the
  best total over every feasible allocation, greedy's included. The
  catch-all itself is still evaluated last, on the real residual
  (residual.go). Without a catch-all, rate is zero and the second term
  vanishes.

TIE-BREAK:
  Many allocations can earn the same points while consuming different
  amounts of spend. Among allocations with equal points the solver must
  prefer the one with the smallest total Cost. Cost is a secondary
  objective; it never overrides a points difference.

DETERMINISM:
  Variables follow rule order; rows are sorted by merchant id. The same
  inputs always produce the same model.

SEE ALSO:
  - solver.go: Solver interface consuming a Model
  - solver/: Branch-and-bound and enumeration solvers
*/
package generic

import (
	"fmt"
	"math"
	"sort"
)

// FeasibilityTolerance absorbs float noise when checking Ax <= b.
const FeasibilityTolerance = 1e-9

// Term is one (variable, coefficient) pair of a constraint row.
type Term struct {
	Var  int
	Coef float64
}

// Constraint is sum(Terms) <= Limit for one merchant.
type Constraint struct {
	Merchant MerchantID
	Terms    []Term
	Limit    float64
}

// Model is a pure integer program in inequality form.
type Model struct {
	// Rules maps variable index to the rule it counts.
	Rules []RuleID

	// Objective holds reward per application, maximized.
	Objective []float64

	// Cost holds total spend per application, minimized among ties.
	Cost []float64

	Constraints []Constraint

	// CatchAllRate is the catch-all reward per whole unit of leftover
	// spend; zero when the rule set has no catch-all.
	CatchAllRate float64

	// Budget is the total spend across every merchant, including those
	// no bounded rule uses.
	Budget float64
}

// BuildModel builds the program for bounded rules against spend, pricing
// leftover spend at catchAll's reward. catchAll may be nil. A catch-all
// among rules is an error; it never gets a variable.
func BuildModel(rules []*Rule, catchAll *Rule, spend Spend) (*Model, error) {
	m := &Model{
		Rules:     make([]RuleID, len(rules)),
		Objective: make([]float64, len(rules)),
		Cost:      make([]float64, len(rules)),
		Budget:    spend.Total().InexactFloat64(),
	}
	if catchAll != nil {
		if !catchAll.IsCatchAll() {
			return nil, &InvalidRuleError{ID: catchAll.ID, Reason: "priced as catch-all but has requirements"}
		}
		m.CatchAllRate = float64(catchAll.Reward)
	}

	rows := make(map[MerchantID][]Term)
	for j, r := range rules {
		if r.IsCatchAll() {
			return nil, &InvalidRuleError{ID: r.ID, Reason: "catch-all rule cannot be part of the integer program"}
		}
		m.Rules[j] = r.ID
		m.Objective[j] = float64(r.Reward)
		m.Cost[j] = r.Cost().InexactFloat64()
		for _, req := range r.Requirements {
			rows[req.Merchant] = append(rows[req.Merchant], Term{Var: j, Coef: req.Amount.InexactFloat64()})
		}
	}

	merchants := make([]MerchantID, 0, len(rows))
	for merchant := range rows {
		merchants = append(merchants, merchant)
	}
	sort.Slice(merchants, func(i, j int) bool { return merchants[i] < merchants[j] })

	for _, merchant := range merchants {
		m.Constraints = append(m.Constraints, Constraint{
			Merchant: merchant,
			Terms:    rows[merchant],
			Limit:    spend.Get(merchant).InexactFloat64(),
		})
	}
	return m, nil
}

func (m *Model) NumVars() int { return len(m.Rules) }

// Validate checks the structural assumptions solvers rely on.
func (m *Model) Validate() error {
	n := m.NumVars()
	if len(m.Objective) != n || len(m.Cost) != n {
		return fmt.Errorf("model: %d variables but %d objective and %d cost entries", n, len(m.Objective), len(m.Cost))
	}
	if m.CatchAllRate < 0 || math.IsNaN(m.CatchAllRate) || m.Budget < 0 || math.IsNaN(m.Budget) {
		return fmt.Errorf("model: catch-all rate %v on budget %v", m.CatchAllRate, m.Budget)
	}
	used := make([]bool, n)
	for _, c := range m.Constraints {
		if c.Limit < 0 || math.IsNaN(c.Limit) {
			return fmt.Errorf("model: merchant %s has limit %v", c.Merchant, c.Limit)
		}
		for _, t := range c.Terms {
			if t.Var < 0 || t.Var >= n {
				return fmt.Errorf("model: merchant %s references variable %d", c.Merchant, t.Var)
			}
			if t.Coef <= 0 {
				return fmt.Errorf("model: merchant %s has coefficient %v", c.Merchant, t.Coef)
			}
			used[t.Var] = true
		}
	}
	for j, ok := range used {
		if !ok {
			return fmt.Errorf("model: rule %d is unconstrained", m.Rules[j])
		}
	}
	return nil
}

// Evaluate returns the objective value of an assignment: bounded points
// plus the catch-all payout on what they leave.
func (m *Model) Evaluate(values []int64) float64 {
	return m.BoundedPoints(values) + m.LeftoverPoints(m.Consumption(values))
}

// BoundedPoints returns the points the bounded rules earn.
func (m *Model) BoundedPoints(values []int64) float64 {
	total := 0.0
	for j, v := range values {
		total += m.Objective[j] * float64(v)
	}
	return total
}

// LeftoverPoints is the catch-all payout once consumption is spent.
func (m *Model) LeftoverPoints(consumption float64) float64 {
	if m.CatchAllRate == 0 {
		return 0
	}
	left := m.Budget - consumption + FeasibilityTolerance*math.Max(1, m.Budget)
	if left < 0 {
		return 0
	}
	return m.CatchAllRate * math.Floor(left)
}

// Consumption returns the total spend an assignment consumes.
func (m *Model) Consumption(values []int64) float64 {
	total := 0.0
	for j, v := range values {
		total += m.Cost[j] * float64(v)
	}
	return total
}

// Feasible reports whether values satisfy every constraint.
func (m *Model) Feasible(values []int64) bool {
	if len(values) != m.NumVars() {
		return false
	}
	for _, v := range values {
		if v < 0 {
			return false
		}
	}
	for _, c := range m.Constraints {
		used := 0.0
		for _, t := range c.Terms {
			used += t.Coef * float64(values[t.Var])
		}
		if used > c.Limit+FeasibilityTolerance*math.Max(1, c.Limit) {
			return false
		}
	}
	return true
}

// UpperBounds returns, per variable, the most applications any single row allows.
func (m *Model) UpperBounds() []int64 {
	ub := make([]int64, m.NumVars())
	for j := range ub {
		ub[j] = -1
	}
	for _, c := range m.Constraints {
		for _, t := range c.Terms {
			n := int64(math.Floor(c.Limit/t.Coef + FeasibilityTolerance))
			if ub[t.Var] < 0 || n < ub[t.Var] {
				ub[t.Var] = n
			}
		}
	}
	for j := range ub {
		if ub[j] < 0 {
			ub[j] = 0
		}
	}
	return ub
}

// Better reports whether (points, cost) beats (bestPoints, bestCost):
// more points wins, equal points with less cost wins.
func Better(points, cost, bestPoints, bestCost float64) bool {
	const eps = 1e-6
	if points > bestPoints+eps {
		return true
	}
	if points < bestPoints-eps {
		return false
	}
	return cost < bestCost-eps
}
