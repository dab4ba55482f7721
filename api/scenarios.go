/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  purchases. Each scenario fills one demo account whose spend shows a
  specific behavior of the engine.

AVAILABLE SCENARIOS:
  sample-statement:  The reference card statement, one month, four merchants
  bundle-shopper:    Spend that exactly fills the top bundle twice (1000 pts)
  greedy-trap:       Spend where priority order loses 90 points to the optimizer
  multi-month:       Purchases across three months, one of them empty

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Build the scenario's transactions
 3. Record them through the ledger, so the usual validation applies

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "greedy-trap"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Account endpoints to inspect the loaded data
  - ingest/ingest.go: Parses the sample statement
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/warp/rewards-engine/generic"
	"github.com/warp/rewards-engine/ingest"
	"github.com/warp/rewards-engine/rewards"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "sample-statement",
		Name:        "Sample Statement",
		Description: "One month of card purchases at Sport Check, Tim Hortons, Subway and an unlisted merchant",
		Account:     "demo-sample",
	},
	{
		ID:          "bundle-shopper",
		Name:        "Bundle Shopper",
		Description: "$150 / $50 / $50 fills the three-merchant bundle exactly twice",
		Account:     "demo-bundle",
	},
	{
		ID:          "greedy-trap",
		Name:        "Greedy Trap",
		Description: "$100 / $20 / $20 where applying rules in priority order earns 90 points less",
		Account:     "demo-trap",
	},
	{
		ID:          "multi-month",
		Name:        "Multi-Month",
		Description: "Purchases in May and July with an empty June, for monthly statements",
		Account:     "demo-months",
	},
}

// sampleStatement is a card transaction file in the ingest format.
const sampleStatement = `{
  "T01": {"date": "2021-05-09", "merchant_code": "sportcheck", "amount_cents": 21000},
  "T02": {"date": "2021-05-10", "merchant_code": "sportcheck", "amount_cents": 8700},
  "T03": {"date": "2021-05-10", "merchant_code": "tim_hortons", "amount_cents": 323},
  "T04": {"date": "2021-05-10", "merchant_code": "tim_hortons", "amount_cents": 1267},
  "T05": {"date": "2021-05-10", "merchant_code": "tim_hortons", "amount_cents": 2116},
  "T06": {"date": "2021-05-10", "merchant_code": "tim_hortons", "amount_cents": 2211},
  "T07": {"date": "2021-05-01", "merchant_code": "subway", "amount_cents": 1853},
  "T08": {"date": "2021-05-01", "merchant_code": "subway", "amount_cents": 2153},
  "T09": {"date": "2021-05-02", "merchant_code": "sportcheck", "amount_cents": 7326},
  "T10": {"date": "2021-05-13", "merchant_code": "the_bay", "amount_cents": 8701}
}`

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var scenario *ScenarioDTO
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			scenario = &scenarios[i]
		}
	}
	if scenario == nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := h.loadScenario(ctx, *scenario); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = scenario.ID

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": scenario.ID,
		"account":  scenario.Account,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, s ScenarioDTO) error {
	account := generic.AccountID(s.Account)

	var (
		txs []generic.Transaction
		err error
	)
	switch s.ID {
	case "sample-statement":
		txs, err = ingest.Parse(strings.NewReader(sampleStatement), ingest.Options{Source: s.ID, Account: account})
	case "bundle-shopper":
		txs = purchases(account, time.May, map[generic.MerchantID]string{
			rewards.MerchantSportCheck: "150", rewards.MerchantTimHortons: "50", rewards.MerchantSubway: "50",
		})
	case "greedy-trap":
		txs = purchases(account, time.May, map[generic.MerchantID]string{
			rewards.MerchantSportCheck: "100", rewards.MerchantTimHortons: "20", rewards.MerchantSubway: "20",
		})
	case "multi-month":
		txs = append(
			purchases(account, time.May, map[generic.MerchantID]string{rewards.MerchantSportCheck: "21"}),
			purchases(account, time.July, map[generic.MerchantID]string{
				rewards.MerchantSportCheck: "75", rewards.MerchantTimHortons: "25", rewards.MerchantSubway: "25",
			})...,
		)
	default:
		return fmt.Errorf("no loader for scenario %q", s.ID)
	}
	if err != nil {
		return err
	}

	if err := h.Ledger.RecordBatch(ctx, txs); err != nil {
		return err
	}
	h.Metrics.ObserveTransactions(txs)
	return nil
}

// purchases builds one purchase per merchant on the first of the month,
// in merchant order so ids are stable.
func purchases(account generic.AccountID, month time.Month, amounts map[generic.MerchantID]string) []generic.Transaction {
	spend := make(map[generic.MerchantID]bool, len(amounts))
	for m := range amounts {
		spend[m] = true
	}

	var txs []generic.Transaction
	for _, m := range rewards.KnownMerchants() {
		if !spend[m] {
			continue
		}
		txs = append(txs, generic.Transaction{
			ID:        generic.TransactionID(fmt.Sprintf("%s:%02d-%s", account, int(month), m)),
			AccountID: account,
			Merchant:  m,
			Amount:    generic.MustParseDecimal(amounts[m]),
			At:        generic.NewTimePoint(2021, month, 1),
		})
	}
	return txs
}
