/*
Package generic provides the core reward allocation engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for turning
  per-merchant spend into loyalty points. A catalog of rules competes for
  the same merchant balances; the engine decides how many times each rule
  is applied so that no merchant is over-spent and total points are
  maximized.

KEY CONCEPTS IN THIS FILE (types.go):
  - MerchantID / RuleID / AccountID: Type-safe identifiers
  - Points: Whole loyalty points (never fractional)
  - Transaction: One spend record as produced by ingestion
  - Strategy: Which allocator produced a result (optimal, greedy)

DESIGN PRINCIPLES:
  1. Immutability: Spend snapshots and rules never change after construction
  2. Precision: Uses decimal.Decimal for every currency amount
  3. Type Safety: Strong typing for IDs prevents mixing merchants and rules
  4. Separation: The engine returns structured results, it never prints

USAGE:
  spend, _ := generic.NewSpendFromFloats(map[generic.MerchantID]float64{
      "sportcheck": 150, "tim_hortons": 50, "subway": 50,
  })
  calc := generic.NewCalculator(catalog, generic.NewOptimizer(solver.NewBranchAndBound()))
  alloc, err := calc.Calculate(ctx, generic.CalculationRequest{
      RuleIDs:  []generic.RuleID{1, 2, 3, 4, 5, 6, 7},
      Spend:    spend,
      Strategy: generic.StrategyOptimal,
  })

SEE ALSO:
  - rule.go: Rule definition and validation
  - catalog.go: Rule catalog and fail-fast rule-set construction
  - optimizer.go: Integer-program allocation engine
  - greedy.go: Legacy priority-order allocator
*/
package generic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// MerchantID identifies a spending category or vendor (e.g. "sportcheck").
type MerchantID string

// RuleID identifies a rule within a catalog. Valid ids are >= 1.
type RuleID int

func (id RuleID) String() string { return strconv.Itoa(int(id)) }

// ParseRuleID parses a rule id from its textual form ("7").
func ParseRuleID(s string) (RuleID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid rule id %q: %w", s, err)
	}
	return RuleID(n), nil
}

// AccountID identifies the card holder whose transactions are aggregated.
type AccountID string

type TransactionID string

// Points is a whole number of loyalty points.
type Points int64

// =============================================================================
// AMOUNTS - Currency values are always decimal
// =============================================================================

// NewAmount converts a float literal into a decimal amount.
func NewAmount(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// NewAmountFromCents converts integer cents into a dollar amount.
func NewAmountFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// MustParseDecimal is for literals in tests and fixtures. It panics on
// malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// wholeUnits returns floor(d) as an integer. Callers pass non-negative values.
func wholeUnits(d decimal.Decimal) int64 {
	return d.Floor().IntPart()
}

// =============================================================================
// TRANSACTION - One spend record
// =============================================================================

// Transaction is a single purchase as produced by the ingestion step.
// Only Merchant and Amount matter to the engine; the rest is bookkeeping.
type Transaction struct {
	ID        TransactionID
	AccountID AccountID
	Merchant  MerchantID
	Amount    decimal.Decimal
	At        TimePoint
}

// =============================================================================
// STRATEGY
// =============================================================================

// Strategy names the allocator that produced an Allocation.
type Strategy string

const (
	// StrategyOptimal solves the bounded rules as an integer program.
	StrategyOptimal Strategy = "optimal"

	// StrategyGreedy walks rules in a fixed priority order. Baseline only.
	StrategyGreedy Strategy = "greedy"
)

// ParseStrategy maps user input to a Strategy. Empty input means optimal.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyOptimal:
		return StrategyOptimal, nil
	case StrategyGreedy:
		return StrategyGreedy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}
