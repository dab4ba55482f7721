/*
errors.go - Centralized error types for the reward engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages and the API wrap these errors with additional context.

ERROR CATEGORIES:
  1. Catalog errors - Unknown or malformed rules (fatal to a session)
  2. Optimization errors - Solver did not prove optimality (non-fatal)
  3. Ingestion errors - Malformed transaction data (fatal, before rules)
  4. Store errors - Persistence failures

USAGE:
  if errors.Is(err, generic.ErrUnknownRule) {
      var unknown *generic.UnknownRuleError
      errors.As(err, &unknown)
      fmt.Println("bad rule id:", unknown.ID)
  }

SEE ALSO:
  - catalog.go: Raises UnknownRuleError
  - optimizer.go: Records InfeasibleOptimizationError on the result
  - ingest/: Raises IngestError
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownRule is returned when a requested rule id is not in the catalog.
	// The session must abort before any allocation work begins.
	ErrUnknownRule = errors.New("unknown rule")

	// ErrInvalidRule is returned when a rule violates its invariants.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrDuplicateRule is returned when a catalog contains the same id twice.
	ErrDuplicateRule = errors.New("duplicate rule id")

	// ErrMultipleCatchAll is returned when more than one rule has no requirements.
	ErrMultipleCatchAll = errors.New("more than one catch-all rule")

	// ErrInfeasibleOptimization marks a solve that did not produce a proven optimum.
	ErrInfeasibleOptimization = errors.New("optimization did not reach an optimal solution")

	// ErrNegativeSpend is returned when a spend snapshot has a negative balance.
	ErrNegativeSpend = errors.New("negative spend")

	// ErrOverAllocated is returned when an allocation consumes more than a merchant's spend.
	ErrOverAllocated = errors.New("allocation exceeds available spend")

	// ErrIngest labels every failure of the transaction ingestion step.
	ErrIngest = errors.New("ingestion failed")

	// ErrUnknownStrategy is returned for an unrecognised strategy name.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrUnknownProgram is returned when a card program is not registered.
	ErrUnknownProgram = errors.New("unknown program")

	// ErrDuplicateTransaction is returned when a transaction id already exists.
	ErrDuplicateTransaction = errors.New("duplicate transaction id")

	// ErrCalculationNotFound is returned when a stored calculation doesn't exist.
	ErrCalculationNotFound = errors.New("calculation not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnknownRuleError names the rule id that could not be resolved.
type UnknownRuleError struct {
	ID RuleID
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("unknown rule id %d: not present in catalog", e.ID)
}

func (e *UnknownRuleError) Unwrap() error {
	return ErrUnknownRule
}

// InvalidRuleError explains which invariant a rule broke.
type InvalidRuleError struct {
	ID     RuleID
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule %d: %s", e.ID, e.Reason)
}

func (e *InvalidRuleError) Unwrap() error {
	return ErrInvalidRule
}

// InfeasibleOptimizationError is attached to an Allocation when the solver
// could not prove an optimum. The allocation degrades to catch-all only.
type InfeasibleOptimizationError struct {
	Status SolveStatus
	Reason string
}

func (e *InfeasibleOptimizationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("optimization %s: bounded rules skipped", e.Status)
	}
	return fmt.Sprintf("optimization %s: %s: bounded rules skipped", e.Status, e.Reason)
}

func (e *InfeasibleOptimizationError) Unwrap() error {
	return ErrInfeasibleOptimization
}

// IngestError describes malformed source data.
type IngestError struct {
	Source string // file name or "request"
	Record string // record key, empty when the whole document is bad
	Err    error
}

func (e *IngestError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("ingest %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("ingest %s: record %s: %v", e.Source, e.Record, e.Err)
}

func (e *IngestError) Unwrap() []error {
	return []error{ErrIngest, e.Err}
}

// NegativeSpendError names the merchant with a negative balance.
type NegativeSpendError struct {
	Merchant MerchantID
	Amount   string
}

func (e *NegativeSpendError) Error() string {
	return fmt.Sprintf("negative spend for %s: %s", e.Merchant, e.Amount)
}

func (e *NegativeSpendError) Unwrap() error {
	return ErrNegativeSpend
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownRule) ||
		errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrDuplicateRule) ||
		errors.Is(err, ErrMultipleCatchAll) ||
		errors.Is(err, ErrNegativeSpend) ||
		errors.Is(err, ErrIngest) ||
		errors.Is(err, ErrUnknownStrategy) ||
		errors.Is(err, ErrUnknownProgram) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCalculationNotFound)
}

// IsConflict returns true for idempotency violations.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateTransaction)
}
