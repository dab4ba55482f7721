/*
residual.go - Catch-all handling on leftover spend

PURPOSE:
  After bounded rules are allocated, whatever spend remains is paid out
  by the catch-all rule: its reward per whole currency unit of the total
  residual, summed across merchants and rounded down.

MODELING ASSUMPTION:
  The catch-all is always evaluated last, on the true residual, and never
  becomes a variable of the integer program. The optimizer does price it:
  the model's objective counts the catch-all payout each allocation would
  leave (model.go), so a bounded rule paying less per dollar than the
  catch-all is only bought when it still raises the total. Both
  strategies share this file so they apply the catch-all identically.

EXAMPLE:
  spend {sportcheck: 21}, rule 6 ($20 at sportcheck) applied once
  residual {sportcheck: 1} -> catch-all count 1 -> 1 point
*/
package generic

import "github.com/shopspring/decimal"

// Residual computes spend minus every bounded rule's consumption. It is the
// algebraic counterpart of deducting from Balances and fails with
// ErrOverAllocated if any merchant would go negative.
func Residual(spend Spend, rules []*Rule, counts []int64) (Spend, error) {
	remaining := spend.Map()
	for j, r := range rules {
		if counts[j] == 0 || r.IsCatchAll() {
			continue
		}
		n := decimal.NewFromInt(counts[j])
		for _, req := range r.Requirements {
			remaining[req.Merchant] = remaining[req.Merchant].Sub(req.Amount.Mul(n))
		}
	}
	for merchant, amt := range remaining {
		if amt.IsNegative() {
			return Spend{}, &overAllocatedError{merchant: merchant, amount: amt}
		}
	}
	return Spend{amounts: remaining}, nil
}

// ApplyCatchAll pays the catch-all rule on residual. Nil rule, nil result.
func ApplyCatchAll(rule *Rule, residual Spend) *Application {
	if rule == nil {
		return nil
	}
	app := newApplication(rule, wholeUnits(residual.Total()))
	return &app
}

type overAllocatedError struct {
	merchant MerchantID
	amount   decimal.Decimal
}

func (e *overAllocatedError) Error() string {
	return "allocation exceeds spend at " + string(e.merchant) + " by " + e.amount.Neg().String()
}

func (e *overAllocatedError) Unwrap() error { return ErrOverAllocated }
