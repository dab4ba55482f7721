/*
spend.go - Spend snapshots and working balances

PURPOSE:
  Spend is the immutable snapshot of what was spent at each merchant
  during the period. It is handed to an allocator and never modified.
  Balances is the mutable working copy the greedy allocator deducts
  from; it belongs to exactly one allocation run.

INVARIANTS:
  - Every amount >= 0 at every observable point
  - A balance may be driven to exactly zero, never below

SEE ALSO:
  - ledger.go: Aggregates stored transactions into Spend
  - greedy.go: Uses Balances
  - residual.go: Computes residual Spend algebraically
*/
package generic

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SPEND - Immutable snapshot
// =============================================================================

// Spend maps merchant to aggregate spend. The zero value is an empty snapshot.
type Spend struct {
	amounts map[MerchantID]decimal.Decimal
}

// NewSpend copies amounts into a snapshot. Negative amounts are rejected.
func NewSpend(amounts map[MerchantID]decimal.Decimal) (Spend, error) {
	cp := make(map[MerchantID]decimal.Decimal, len(amounts))
	for m, amt := range amounts {
		if amt.IsNegative() {
			return Spend{}, &NegativeSpendError{Merchant: m, Amount: amt.String()}
		}
		cp[m] = amt
	}
	return Spend{amounts: cp}, nil
}

// NewSpendFromFloats is NewSpend for float literals.
func NewSpendFromFloats(amounts map[MerchantID]float64) (Spend, error) {
	conv := make(map[MerchantID]decimal.Decimal, len(amounts))
	for m, v := range amounts {
		conv[m] = decimal.NewFromFloat(v)
	}
	return NewSpend(conv)
}

// AggregateSpend sums transactions per merchant.
func AggregateSpend(txs []Transaction) (Spend, error) {
	totals := make(map[MerchantID]decimal.Decimal)
	for _, tx := range txs {
		totals[tx.Merchant] = totals[tx.Merchant].Add(tx.Amount)
	}
	return NewSpend(totals)
}

// Get returns the spend at merchant, zero if absent.
func (s Spend) Get(merchant MerchantID) decimal.Decimal {
	return s.amounts[merchant]
}

// Has reports whether the merchant appears in the snapshot at all.
func (s Spend) Has(merchant MerchantID) bool {
	_, ok := s.amounts[merchant]
	return ok
}

// Merchants returns merchants in sorted order.
func (s Spend) Merchants() []MerchantID {
	out := make([]MerchantID, 0, len(s.amounts))
	for m := range s.amounts {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Total sums spend across all merchants.
func (s Spend) Total() decimal.Decimal {
	total := decimal.Zero
	for _, amt := range s.amounts {
		total = total.Add(amt)
	}
	return total
}

func (s Spend) Len() int      { return len(s.amounts) }
func (s Spend) IsEmpty() bool { return len(s.amounts) == 0 }

// Map returns a copy of the underlying amounts.
func (s Spend) Map() map[MerchantID]decimal.Decimal {
	cp := make(map[MerchantID]decimal.Decimal, len(s.amounts))
	for m, amt := range s.amounts {
		cp[m] = amt
	}
	return cp
}

// Equal compares two snapshots amount by amount. Zero and absent differ.
func (s Spend) Equal(other Spend) bool {
	if len(s.amounts) != len(other.amounts) {
		return false
	}
	for m, amt := range s.amounts {
		o, ok := other.amounts[m]
		if !ok || !o.Equal(amt) {
			return false
		}
	}
	return true
}

// Balances returns a fresh working copy.
func (s Spend) Balances() *Balances {
	return &Balances{remaining: s.Map()}
}

// =============================================================================
// BALANCES - Mutable working copy for one run
// =============================================================================

// Balances is owned by a single allocation run and is not safe for sharing.
type Balances struct {
	remaining map[MerchantID]decimal.Decimal
}

// Applicable returns how many whole times rule fits into the balances.
// A required merchant that is absent or short yields zero.
func (b *Balances) Applicable(r *Rule) int64 {
	if r.IsCatchAll() {
		return 0
	}
	var times int64 = -1
	for _, req := range r.Requirements {
		bal, ok := b.remaining[req.Merchant]
		if !ok || bal.LessThan(req.Amount) {
			return 0
		}
		q, _ := bal.QuoRem(req.Amount, 0)
		if n := q.IntPart(); times < 0 || n < times {
			times = n
		}
	}
	if times < 0 {
		return 0
	}
	return times
}

// Deduct consumes times applications of r. It refuses to go negative.
func (b *Balances) Deduct(r *Rule, times int64) error {
	if times <= 0 {
		return nil
	}
	n := decimal.NewFromInt(times)
	for _, req := range r.Requirements {
		if b.remaining[req.Merchant].LessThan(req.Amount.Mul(n)) {
			return &NegativeSpendError{Merchant: req.Merchant, Amount: b.remaining[req.Merchant].Sub(req.Amount.Mul(n)).String()}
		}
	}
	for _, req := range r.Requirements {
		b.remaining[req.Merchant] = b.remaining[req.Merchant].Sub(req.Amount.Mul(n))
	}
	return nil
}

// Total sums what is left across merchants.
func (b *Balances) Total() decimal.Decimal {
	total := decimal.Zero
	for _, amt := range b.remaining {
		total = total.Add(amt)
	}
	return total
}

// Snapshot freezes the current balances.
func (b *Balances) Snapshot() Spend {
	return Spend{amounts: (Spend{amounts: b.remaining}).Map()}
}
