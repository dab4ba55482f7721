package generic

import (
	"errors"
	"time"
)

// ErrInvalidPeriod is returned when a period is malformed (end before start).
var ErrInvalidPeriod = errors.New("invalid period: end before start")

// =============================================================================
// PERIOD - The statement window spend is aggregated over
// =============================================================================

// Period is an inclusive date range [Start, End]. Rewards are computed per
// statement period; a zero Period means "all time".
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod validates and builds a period.
func NewPeriod(start, end TimePoint) (Period, error) {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// MonthPeriod is the calendar month containing year/month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// IsZero reports an unbounded period.
func (p Period) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

// Contains returns true if t is within [Start, End]. Zero bounds are open.
func (p Period) Contains(t TimePoint) bool {
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && t.After(p.End) {
		return false
	}
	return true
}

// Filter keeps the transactions that fall inside the period.
func (p Period) Filter(txs []Transaction) []Transaction {
	if p.IsZero() {
		return txs
	}
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if p.Contains(tx.At) {
			out = append(out, tx)
		}
	}
	return out
}

func (p Period) String() string {
	if p.IsZero() {
		return "[all time]"
	}
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
