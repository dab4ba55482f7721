/*
ledger.go - Append-only spend log

PURPOSE:
  The Ledger is the source of truth for what an account spent. Spend
  snapshots are always derived by aggregating transactions; there is no
  separate running total that could drift from the records.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IDEMPOTENT: Same transaction id = same transaction (no duplicates)
  3. DERIVED: SpendFor is recomputed from transactions on every call

WHY NOT KEEP TOTALS?
  A calculation must never see totals that another calculation has
  already decremented. Every session gets a freshly aggregated, immutable
  Spend and the ledger itself is never touched by allocation.

SEE ALSO:
  - store.go: Low-level persistence interface
  - spend.go: Spend snapshot
*/
package generic

import "context"

// Ledger records purchases and derives spend snapshots from them.
type Ledger interface {
	// Record adds a transaction. Fails with ErrDuplicateTransaction if the id exists.
	Record(ctx context.Context, tx Transaction) error

	// RecordBatch adds multiple transactions atomically.
	RecordBatch(ctx context.Context, txs []Transaction) error

	// Transactions returns the account's transactions within period.
	Transactions(ctx context.Context, account AccountID, period Period) ([]Transaction, error)

	// SpendFor aggregates the account's spend within period.
	SpendFor(ctx context.Context, account AccountID, period Period) (Spend, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Record(ctx context.Context, tx Transaction) error {
	if err := validateTransaction(tx); err != nil {
		return err
	}
	if tx.ID != "" {
		exists, err := l.Store.Exists(ctx, tx.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateTransaction
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) RecordBatch(ctx context.Context, txs []Transaction) error {
	// Check everything first so a bad record leaves the store untouched
	seen := make(map[TransactionID]bool, len(txs))
	for _, tx := range txs {
		if err := validateTransaction(tx); err != nil {
			return err
		}
		if tx.ID == "" {
			continue
		}
		if seen[tx.ID] {
			return ErrDuplicateTransaction
		}
		seen[tx.ID] = true
		exists, err := l.Store.Exists(ctx, tx.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateTransaction
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) Transactions(ctx context.Context, account AccountID, period Period) ([]Transaction, error) {
	if period.IsZero() {
		return l.Store.Load(ctx, account)
	}
	if period.Start.IsZero() || period.End.IsZero() {
		txs, err := l.Store.Load(ctx, account)
		if err != nil {
			return nil, err
		}
		return period.Filter(txs), nil
	}
	return l.Store.LoadRange(ctx, account, period.Start, period.End)
}

func (l *DefaultLedger) SpendFor(ctx context.Context, account AccountID, period Period) (Spend, error) {
	txs, err := l.Transactions(ctx, account, period)
	if err != nil {
		return Spend{}, err
	}
	return AggregateSpend(txs)
}

func validateTransaction(tx Transaction) error {
	if tx.Amount.IsNegative() {
		return &NegativeSpendError{Merchant: tx.Merchant, Amount: tx.Amount.String()}
	}
	return nil
}
