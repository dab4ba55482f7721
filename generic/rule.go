/*
rule.go - Reward rule definition

PURPOSE:
  A Rule pays a fixed number of points every time its per-merchant spend
  requirements are met in full. "Spend $75 at Sport Check, $25 at Tim
  Hortons and $25 at Subway, earn 500 points" is one rule; meeting it
  twice earns 1000.

CATCH-ALL RULE:
  A rule with no requirements is the catch-all. It pays its reward per
  whole currency unit of whatever spend is left after every bounded rule
  has been allocated. It never takes part in the joint optimization.

INVARIANTS:
  - ID >= 1
  - Reward >= 1
  - Every requirement amount > 0
  - A merchant appears at most once per rule

SEE ALSO:
  - catalog.go: Rules are looked up by id
  - model.go: Bounded rules become integer-program columns
*/
package generic

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Requirement is the minimum spend at one merchant for one application.
type Requirement struct {
	Merchant MerchantID
	Amount   decimal.Decimal
}

// Require is a shorthand for building requirements from literals.
func Require(merchant MerchantID, amount float64) Requirement {
	return Requirement{Merchant: merchant, Amount: decimal.NewFromFloat(amount)}
}

// Rule is immutable after NewRule returns.
type Rule struct {
	ID           RuleID
	Requirements []Requirement
	Reward       Points
	Description  string
}

// NewRule validates and builds a rule. Requirements keep their given order.
func NewRule(id RuleID, reward Points, requirements ...Requirement) (*Rule, error) {
	if id < 1 {
		return nil, &InvalidRuleError{ID: id, Reason: "id must be >= 1"}
	}
	if reward < 1 {
		return nil, &InvalidRuleError{ID: id, Reason: "reward must be >= 1"}
	}

	seen := make(map[MerchantID]bool, len(requirements))
	reqs := make([]Requirement, 0, len(requirements))
	for _, req := range requirements {
		if req.Merchant == "" {
			return nil, &InvalidRuleError{ID: id, Reason: "requirement without merchant"}
		}
		if !req.Amount.IsPositive() {
			return nil, &InvalidRuleError{
				ID:     id,
				Reason: fmt.Sprintf("requirement for %s must be > 0, got %s", req.Merchant, req.Amount),
			}
		}
		if seen[req.Merchant] {
			return nil, &InvalidRuleError{ID: id, Reason: fmt.Sprintf("merchant %s listed twice", req.Merchant)}
		}
		seen[req.Merchant] = true
		reqs = append(reqs, req)
	}

	return &Rule{ID: id, Requirements: reqs, Reward: reward}, nil
}

// MustRule is NewRule for static tables; it panics on invalid input.
func MustRule(id RuleID, reward Points, requirements ...Requirement) *Rule {
	r, err := NewRule(id, reward, requirements...)
	if err != nil {
		panic(err)
	}
	return r
}

// WithDescription returns a copy of the rule carrying a human description.
func (r *Rule) WithDescription(desc string) *Rule {
	cp := *r
	cp.Requirements = append([]Requirement(nil), r.Requirements...)
	cp.Description = desc
	return &cp
}

// IsCatchAll reports whether the rule has no merchant requirements.
func (r *Rule) IsCatchAll() bool { return len(r.Requirements) == 0 }

// Requirement returns the amount required at merchant, if any.
func (r *Rule) Requirement(merchant MerchantID) (decimal.Decimal, bool) {
	for _, req := range r.Requirements {
		if req.Merchant == merchant {
			return req.Amount, true
		}
	}
	return decimal.Zero, false
}

// Merchants lists required merchants in requirement order.
func (r *Rule) Merchants() []MerchantID {
	out := make([]MerchantID, len(r.Requirements))
	for i, req := range r.Requirements {
		out[i] = req.Merchant
	}
	return out
}

// Cost is the total spend one application consumes across all merchants.
func (r *Rule) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, req := range r.Requirements {
		total = total.Add(req.Amount)
	}
	return total
}

// Equal compares two rules by id, reward and requirements (order-insensitive).
func (r *Rule) Equal(other *Rule) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.ID != other.ID || r.Reward != other.Reward || len(r.Requirements) != len(other.Requirements) {
		return false
	}
	for _, req := range r.Requirements {
		amt, ok := other.Requirement(req.Merchant)
		if !ok || !amt.Equal(req.Amount) {
			return false
		}
	}
	return true
}

func (r *Rule) String() string {
	if r.IsCatchAll() {
		return fmt.Sprintf("Rule %d: %d points per unit of remaining spend", r.ID, r.Reward)
	}
	parts := make([]string, len(r.Requirements))
	for i, req := range r.Requirements {
		parts[i] = fmt.Sprintf("%s %s", req.Merchant, req.Amount.String())
	}
	return fmt.Sprintf("Rule %d: %d points for every %s", r.ID, r.Reward, strings.Join(parts, ", "))
}
