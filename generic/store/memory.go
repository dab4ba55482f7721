// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/rewards-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[generic.AccountID][]generic.Transaction
	ids          map[generic.TransactionID]bool
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[generic.AccountID][]generic.Transaction),
		ids:          make(map[generic.TransactionID]bool),
	}
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID != "" && m.ids[tx.ID] {
		return generic.ErrDuplicateTransaction
	}
	m.appendLocked(tx)
	return nil
}

// AppendBatch adds multiple transactions atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check every id before the first write
	seen := make(map[generic.TransactionID]bool, len(txs))
	for _, tx := range txs {
		if tx.ID == "" {
			continue
		}
		if m.ids[tx.ID] || seen[tx.ID] {
			return generic.ErrDuplicateTransaction
		}
		seen[tx.ID] = true
	}

	for _, tx := range txs {
		m.appendLocked(tx)
	}
	return nil
}

func (m *Memory) appendLocked(tx generic.Transaction) {
	txs := m.transactions[tx.AccountID]

	// Keep each account sorted by date; equal dates keep arrival order
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].At.After(tx.At)
	})

	txs = append(txs, generic.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.transactions[tx.AccountID] = txs

	if tx.ID != "" {
		m.ids[tx.ID] = true
	}
}

func (m *Memory) Load(_ context.Context, account generic.AccountID) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Transaction, len(m.transactions[account]))
	copy(result, m.transactions[account])
	return result, nil
}

func (m *Memory) LoadRange(_ context.Context, account generic.AccountID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Transaction
	for _, tx := range m.transactions[account] {
		if from.BeforeOrEqual(tx.At) && tx.At.BeforeOrEqual(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, id generic.TransactionID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ids[id], nil
}

// Accounts lists every account with at least one transaction.
func (m *Memory) Accounts() []generic.AccountID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accounts := make([]generic.AccountID, 0, len(m.transactions))
	for account := range m.transactions {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })
	return accounts
}
