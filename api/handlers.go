/*
handlers.go - HTTP API handlers for the reward engine

PURPOSE:
  Exposes the reward engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the calculator and the ledger.

ENDPOINTS:
  Catalog:
    GET    /api/rules                              List catalog rules
    GET    /api/programs                           List card programs

  Stateless:
    POST   /api/calculate                          Allocate supplied spend
    POST   /api/compare                            Optimal vs greedy on supplied spend

  Accounts:
    POST   /api/accounts/{id}/transactions         Record purchases (batch)
    POST   /api/accounts/{id}/transactions/import  Import a card transaction file
    GET    /api/accounts/{id}/transactions         Purchase history (?from&to)
    GET    /api/accounts/{id}/spend                Aggregated spend (?from&to)
    GET    /api/accounts/{id}/statements           Monthly statements with rewards
    POST   /api/accounts/{id}/calculations         Allocate recorded spend and store it
    GET    /api/accounts/{id}/calculations         Stored calculations, newest first

  Calculations:
    GET    /api/calculations/{id}                  One stored calculation

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Ledger: Spend aggregation over the store
  - Catalog: Rules and programs (from a catalog file or the defaults)
  - Calculator: One session per request, nothing shared between calls

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Unknown rule, program or strategy, negative spend, bad input
  - 404: Calculation not found
  - 409: Duplicate transaction id
  - 500: Internal errors

  A calculation whose solver did not prove an optimum is NOT an error:
  it returns 200 with result.degraded set.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/rewards-engine/factory"
	"github.com/warp/rewards-engine/generic"
	"github.com/warp/rewards-engine/ingest"
	"github.com/warp/rewards-engine/metrics"
	"github.com/warp/rewards-engine/report"
	"github.com/warp/rewards-engine/rewards"
	"github.com/warp/rewards-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options tune a Handler. Zero values select the defaults.
type Options struct {
	DefaultStrategy generic.Strategy
	DefaultProgram  string
	SolverNodeLimit int
	Metrics         *metrics.EngineMetrics
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Ledger     generic.Ledger
	Catalog    *factory.CatalogDefinition
	Calculator *generic.Calculator
	Metrics    *metrics.EngineMetrics

	DefaultStrategy generic.Strategy
	DefaultProgram  string

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler wires a handler over store and catalog.
func NewHandler(store *sqlite.Store, catalog *factory.CatalogDefinition, opts Options) *Handler {
	h := &Handler{
		Store:           store,
		Ledger:          generic.NewLedger(store),
		Catalog:         catalog,
		Calculator:      rewards.NewCalculator(catalog.Catalog, opts.SolverNodeLimit),
		Metrics:         opts.Metrics,
		DefaultStrategy: opts.DefaultStrategy,
		DefaultProgram:  opts.DefaultProgram,
	}
	if h.DefaultStrategy == "" {
		h.DefaultStrategy = generic.StrategyOptimal
	}
	if h.DefaultProgram == "" {
		h.DefaultProgram = rewards.ProgramStandard
	}
	return h
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListRules returns every rule in the catalog, ordered by id.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules := h.Catalog.Catalog.Rules()
	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPrograms returns the card programs, ordered by name.
func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs := h.Catalog.Programs.All()
	dtos := make([]ProgramDTO, len(programs))
	for i, p := range programs {
		dtos[i] = toProgramDTO(p, h.DefaultProgram)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// STATELESS CALCULATION HANDLERS
// =============================================================================

// Calculate allocates spend supplied in the request body.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	spend, err := spendFromRequest(req.Spend)
	if err != nil {
		writeDomainError(w, "Invalid spend", err)
		return
	}
	program, ids, err := h.resolveRules(req.RuleIDs, req.Program)
	if err != nil {
		writeDomainError(w, "Invalid rule selection", err)
		return
	}
	strategy, err := h.resolveStrategy(req.Strategy)
	if err != nil {
		writeDomainError(w, "Invalid strategy", err)
		return
	}

	alloc, err := h.calculate(r.Context(), strategy, ids, spend)
	if err != nil {
		writeDomainError(w, "Calculation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, CalculationDTO{
		Program: program,
		RuleIDs: fromRuleIDs(ids),
		Spend:   toSpendMap(spend),
		Result:  report.NewDocument(generic.Summarize(alloc)),
	})
}

// Compare runs both strategies on the same spend. The rule list doubles as
// the greedy priority order.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	spend, err := spendFromRequest(req.Spend)
	if err != nil {
		writeDomainError(w, "Invalid spend", err)
		return
	}
	_, ids, err := h.resolveRules(req.RuleIDs, req.Program)
	if err != nil {
		writeDomainError(w, "Invalid rule selection", err)
		return
	}

	start := time.Now()
	cmp, err := h.Calculator.Compare(r.Context(), ids, spend)
	if err != nil {
		h.Metrics.ObserveError(generic.StrategyOptimal)
		writeDomainError(w, "Comparison failed", err)
		return
	}
	elapsed := time.Since(start)
	h.Metrics.ObserveAllocation(cmp.Optimal, elapsed)
	h.Metrics.ObserveAllocation(cmp.Greedy, elapsed)
	h.Metrics.ObserveGain(cmp.Gain())

	writeJSON(w, http.StatusOK, report.NewComparisonDocument(cmp))
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// RecordTransactions appends a batch of purchases. All or nothing.
func (h *Handler) RecordTransactions(w http.ResponseWriter, r *http.Request) {
	account := generic.AccountID(chi.URLParam(r, "id"))

	var req RecordTransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Transactions) == 0 {
		writeError(w, http.StatusBadRequest, "No transactions", nil)
		return
	}

	txs := make([]generic.Transaction, 0, len(req.Transactions))
	for i, in := range req.Transactions {
		at, err := generic.ParseDate(in.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Transaction %d: invalid date (use YYYY-MM-DD)", i), err)
			return
		}
		if in.Merchant == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Transaction %d: missing merchant", i), nil)
			return
		}
		id := generic.TransactionID("")
		if in.ID != "" {
			id = generic.TransactionID(string(account) + ":" + in.ID)
		}
		txs = append(txs, generic.Transaction{
			ID:        id,
			AccountID: account,
			Merchant:  generic.MerchantID(in.Merchant),
			Amount:    in.Amount,
			At:        at,
		})
	}

	h.record(w, r.Context(), account, txs)
}

// ImportTransactions records a card transaction file posted as the body.
func (h *Handler) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	account := generic.AccountID(chi.URLParam(r, "id"))

	txs, err := ingest.Parse(r.Body, ingest.Options{Source: "request", Account: account})
	if err != nil {
		writeDomainError(w, "Invalid transaction file", err)
		return
	}
	h.record(w, r.Context(), account, txs)
}

func (h *Handler) record(w http.ResponseWriter, ctx context.Context, account generic.AccountID, txs []generic.Transaction) {
	if err := h.Ledger.RecordBatch(ctx, txs); err != nil {
		writeDomainError(w, "Failed to record transactions", err)
		return
	}
	h.Metrics.ObserveTransactions(txs)

	// Read back so generated ids are returned
	stored, err := h.Ledger.Transactions(ctx, account, generic.Period{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"account_id": account,
		"recorded":   len(txs),
		"total":      len(stored),
	})
}

// GetTransactions returns an account's purchases in a period.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	account := generic.AccountID(chi.URLParam(r, "id"))
	period, err := periodFromQuery(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeDomainError(w, "Invalid period", err)
		return
	}

	txs, err := h.Ledger.Transactions(r.Context(), account, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSpend aggregates an account's purchases per merchant.
func (h *Handler) GetSpend(w http.ResponseWriter, r *http.Request) {
	account := generic.AccountID(chi.URLParam(r, "id"))
	period, err := periodFromQuery(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeDomainError(w, "Invalid period", err)
		return
	}

	spend, err := h.Ledger.SpendFor(r.Context(), account, period)
	if err != nil {
		writeDomainError(w, "Failed to aggregate spend", err)
		return
	}

	writeJSON(w, http.StatusOK, SpendDTO{
		AccountID: string(account),
		From:      dateOrEmpty(period.Start),
		To:        dateOrEmpty(period.End),
		Spend:     toSpendMap(spend),
		Total:     spend.Total().String(),
	})
}

// GetStatements splits an account's history into calendar months and
// allocates each month independently under the default program.
func (h *Handler) GetStatements(w http.ResponseWriter, r *http.Request) {
	account := generic.AccountID(chi.URLParam(r, "id"))
	ctx := r.Context()

	txs, err := h.Ledger.Transactions(ctx, account, generic.Period{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}
	statements, err := rewards.MonthlyStatements(txs)
	if err != nil {
		writeDomainError(w, "Failed to build statements", err)
		return
	}
	_, ids, err := h.resolveRules(nil, r.URL.Query().Get("program"))
	if err != nil {
		writeDomainError(w, "Invalid program", err)
		return
	}

	dtos := make([]StatementDTO, 0, len(statements))
	for _, st := range statements {
		alloc, err := h.calculate(ctx, generic.StrategyOptimal, ids, st.Spend)
		if err != nil {
			writeDomainError(w, "Calculation failed", err)
			return
		}
		dtos = append(dtos, StatementDTO{
			From:         st.Period.Start.String(),
			To:           st.Period.End.String(),
			Transactions: len(st.Transactions),
			Spend:        toSpendMap(st.Spend),
			Result:       report.NewDocument(generic.Summarize(alloc)),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCalculation allocates an account's recorded spend and stores the result.
func (h *Handler) CreateCalculation(w http.ResponseWriter, r *http.Request) {
	account := generic.AccountID(chi.URLParam(r, "id"))
	ctx := r.Context()

	var req AccountCalculationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := periodFromQuery(req.From, req.To)
	if err != nil {
		writeDomainError(w, "Invalid period", err)
		return
	}
	program, ids, err := h.resolveRules(req.RuleIDs, req.Program)
	if err != nil {
		writeDomainError(w, "Invalid rule selection", err)
		return
	}
	strategy, err := h.resolveStrategy(req.Strategy)
	if err != nil {
		writeDomainError(w, "Invalid strategy", err)
		return
	}

	spend, err := h.Ledger.SpendFor(ctx, account, period)
	if err != nil {
		writeDomainError(w, "Failed to aggregate spend", err)
		return
	}
	alloc, err := h.calculate(ctx, strategy, ids, spend)
	if err != nil {
		writeDomainError(w, "Calculation failed", err)
		return
	}

	rec := sqlite.NewCalculationRecord(account, program, ids, period, alloc)
	if err := h.Store.SaveCalculation(ctx, &rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save calculation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCalculationDTO(rec))
}

// ListCalculations returns an account's stored calculations, newest first.
func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	account := generic.AccountID(chi.URLParam(r, "id"))

	records, err := h.Store.ListCalculations(r.Context(), account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calculations", err)
		return
	}

	dtos := make([]CalculationDTO, len(records))
	for i, rec := range records {
		dtos[i] = toCalculationDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCalculation returns one stored calculation.
func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetCalculation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get calculation", err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(*rec))
}

// =============================================================================
// HELPERS
// =============================================================================

// calculate runs one session and records metrics for it.
func (h *Handler) calculate(ctx context.Context, strategy generic.Strategy, ids []generic.RuleID, spend generic.Spend) (*generic.Allocation, error) {
	start := time.Now()
	alloc, err := h.Calculator.Calculate(ctx, generic.CalculationRequest{
		RuleIDs:  ids,
		Spend:    spend,
		Strategy: strategy,
	})
	if err != nil {
		h.Metrics.ObserveError(strategy)
		return nil, err
	}
	h.Metrics.ObserveAllocation(alloc, time.Since(start))
	return alloc, nil
}

// resolveRules picks the rule ids for a request: explicit ids first, then
// the named program, then the default program. Unknown ids are reported
// by the calculator before any allocation work.
func (h *Handler) resolveRules(ruleIDs []int, program string) (string, []generic.RuleID, error) {
	if len(ruleIDs) > 0 {
		return "", toRuleIDs(ruleIDs), nil
	}
	name := program
	if name == "" {
		name = h.DefaultProgram
	}
	p, err := h.Catalog.Programs.Lookup(name)
	if err != nil {
		if program == "" {
			// Default program missing from a custom catalog: use every rule
			return "", h.Catalog.Catalog.IDs(), nil
		}
		return "", nil, err
	}
	return p.Name, p.Rules, nil
}

func (h *Handler) resolveStrategy(s string) (generic.Strategy, error) {
	if s == "" {
		return h.DefaultStrategy, nil
	}
	return generic.ParseStrategy(s)
}

func spendFromRequest(amounts map[string]decimal.Decimal) (generic.Spend, error) {
	conv := make(map[generic.MerchantID]decimal.Decimal, len(amounts))
	for m, v := range amounts {
		conv[generic.MerchantID(m)] = v
	}
	return generic.NewSpend(conv)
}

func periodFromQuery(from, to string) (generic.Period, error) {
	var start, end generic.TimePoint
	var err error
	if from != "" {
		if start, err = generic.ParseDate(from); err != nil {
			return generic.Period{}, fmt.Errorf("%w: from %q", generic.ErrInvalidPeriod, from)
		}
	}
	if to != "" {
		if end, err = generic.ParseDate(to); err != nil {
			return generic.Period{}, fmt.Errorf("%w: to %q", generic.ErrInvalidPeriod, to)
		}
	}
	return generic.NewPeriod(start, end)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's category.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}
	switch {
	case generic.IsNotFound(err):
		resp.Code = "not_found"
		writeJSON(w, http.StatusNotFound, resp)
	case generic.IsConflict(err):
		resp.Code = "conflict"
		writeJSON(w, http.StatusConflict, resp)
	case generic.IsClientError(err):
		resp.Code = errorCode(err)
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		resp.Code = "cancelled"
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, generic.ErrUnknownRule):
		return "unknown_rule"
	case errors.Is(err, generic.ErrUnknownProgram):
		return "unknown_program"
	case errors.Is(err, generic.ErrUnknownStrategy):
		return "unknown_strategy"
	case errors.Is(err, generic.ErrNegativeSpend):
		return "negative_spend"
	case errors.Is(err, generic.ErrIngest):
		return "invalid_transactions"
	case errors.Is(err, generic.ErrInvalidPeriod):
		return "invalid_period"
	default:
		return "invalid_request"
	}
}
