/*
statement.go - Monthly statements

PURPOSE:
  Card rewards are computed per billing statement. A statement is one
  calendar month of transactions aggregated into a Spend snapshot, and
  each statement is allocated independently: spend never carries over
  from one month to the next.

EXAMPLE:
  statements, _ := rewards.MonthlyStatements(txs)
  for _, st := range statements {
      alloc, _ := calc.Calculate(ctx, generic.CalculationRequest{
          RuleIDs: program.Rules, Spend: st.Spend,
      })
  }
*/
package rewards

import (
	"github.com/warp/rewards-engine/generic"
)

// Statement is one month of spend.
type Statement struct {
	Period       generic.Period
	Transactions []generic.Transaction
	Spend        generic.Spend
}

// StatementPeriods returns the calendar months overlapping [from, to],
// in order. Both ends are inclusive.
func StatementPeriods(from, to generic.TimePoint) []generic.Period {
	var periods []generic.Period

	current := generic.StartOfMonth(from.Year(), from.Month())
	for current.BeforeOrEqual(to) {
		periods = append(periods, generic.MonthPeriod(current.Year(), current.Month()))
		current = current.AddMonths(1)
	}
	return periods
}

// MonthlyStatements groups transactions by calendar month, from the
// earliest month to the latest. Months without transactions are kept
// so the sequence has no gaps.
func MonthlyStatements(txs []generic.Transaction) ([]Statement, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	first, last := txs[0].At, txs[0].At
	for _, tx := range txs[1:] {
		if tx.At.Before(first) {
			first = tx.At
		}
		if tx.At.After(last) {
			last = tx.At
		}
	}

	periods := StatementPeriods(first, last)
	statements := make([]Statement, 0, len(periods))
	for _, p := range periods {
		in := p.Filter(txs)
		spend, err := generic.AggregateSpend(in)
		if err != nil {
			return nil, err
		}
		statements = append(statements, Statement{Period: p, Transactions: in, Spend: spend})
	}
	return statements, nil
}
