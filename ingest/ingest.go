/*
Package ingest turns raw card transaction files into generic transactions.

FILE FORMAT:
  A JSON object keyed by transaction id:

  {
    "T01": {"date": "2021-05-01", "merchant_code": "sportcheck", "amount_cents": 2100},
    "T02": {"date": "2021-05-02", "merchant_code": "tim_hortons", "amount_cents": 2500}
  }

  amount_cents must be a non-negative integer; it is converted to dollars
  with decimal arithmetic, so 2199 cents is exactly 21.99.

IDS:
  The record key becomes the transaction id, prefixed with the account
  ("acct-1:T01") when an account is given. Re-importing the same file for
  the same account is then rejected by the ledger as a duplicate.

ERRORS:
  Every failure is a *generic.IngestError naming the source and the
  offending record. Nothing is returned for a file with any bad record.
*/
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/warp/rewards-engine/generic"
)

// Record is one transaction as it appears in the file.
type Record struct {
	Date         string      `json:"date"`
	MerchantCode string      `json:"merchant_code"`
	AmountCents  json.Number `json:"amount_cents"`
}

// Options control how records become transactions.
type Options struct {
	// Source labels errors, usually the file name.
	Source string

	// Account owns every parsed transaction and prefixes ids.
	Account generic.AccountID
}

// Parse reads a transaction document. Transactions come back ordered by
// date, then id.
func Parse(r io.Reader, opts Options) ([]generic.Transaction, error) {
	source := opts.Source
	if source == "" {
		source = "input"
	}
	fail := func(record string, err error) error {
		return &generic.IngestError{Source: source, Record: record, Err: err}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fail("", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fail("", fmt.Errorf("expected an object of transactions: %w", err))
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	txs := make([]generic.Transaction, 0, len(keys))
	for _, key := range keys {
		rec, err := decodeRecord(raw[key])
		if err != nil {
			return nil, fail(key, err)
		}
		tx, err := rec.transaction(key, opts.Account)
		if err != nil {
			return nil, fail(key, err)
		}
		txs = append(txs, tx)
	}

	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].At.Equal(txs[j].At) {
			return txs[i].At.Before(txs[j].At)
		}
		return txs[i].ID < txs[j].ID
	})
	return txs, nil
}

// ParseFile is Parse on a file, labelling errors with its path.
func ParseFile(path string, account generic.AccountID) ([]generic.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &generic.IngestError{Source: path, Err: err}
	}
	defer f.Close()
	return Parse(f, Options{Source: path, Account: account})
}

// Aggregate sums transactions inside period per merchant.
func Aggregate(txs []generic.Transaction, period generic.Period) (generic.Spend, error) {
	return generic.AggregateSpend(period.Filter(txs))
}

func decodeRecord(raw json.RawMessage) (Record, error) {
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (rec Record) transaction(key string, account generic.AccountID) (generic.Transaction, error) {
	at, err := generic.ParseDate(rec.Date)
	if err != nil {
		return generic.Transaction{}, fmt.Errorf("date %q: want YYYY-MM-DD", rec.Date)
	}

	merchant := strings.TrimSpace(rec.MerchantCode)
	if merchant == "" {
		return generic.Transaction{}, fmt.Errorf("missing merchant_code")
	}

	if rec.AmountCents == "" {
		return generic.Transaction{}, fmt.Errorf("missing amount_cents")
	}
	cents, err := rec.AmountCents.Int64()
	if err != nil {
		return generic.Transaction{}, fmt.Errorf("amount_cents %s: want an integer", rec.AmountCents)
	}
	if cents < 0 {
		return generic.Transaction{}, fmt.Errorf("amount_cents %d: must not be negative", cents)
	}

	id := key
	if account != "" {
		id = string(account) + ":" + key
	}

	return generic.Transaction{
		ID:        generic.TransactionID(id),
		AccountID: account,
		Merchant:  generic.MerchantID(merchant),
		Amount:    generic.NewAmountFromCents(cents),
		At:        at,
	}, nil
}
