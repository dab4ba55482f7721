/*
store.go - Persistence interface for spend transactions

PURPOSE:
  Defines the interface between the engine and the database. The engine
  itself only needs aggregated Spend; the store keeps the raw purchases
  so spend can be re-aggregated for any statement period.

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write
  - AppendBatch(): Atomic multi-transaction write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Transaction ids are unique. Re-submitting an imported file is rejected
  with ErrDuplicateTransaction instead of double counting spend.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level ledger using Store
*/
package generic

import "context"

// Store handles persistence of spend transactions. APPEND-ONLY.
type Store interface {
	// Append persists a transaction. Fails if the id already exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple transactions atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Load returns all transactions for an account, ordered by date.
	Load(ctx context.Context, account AccountID) ([]Transaction, error)

	// LoadRange returns transactions in [from, to].
	LoadRange(ctx context.Context, account AccountID, from, to TimePoint) ([]Transaction, error)

	// Exists checks whether a transaction id is already stored.
	Exists(ctx context.Context, id TransactionID) (bool, error)
}
