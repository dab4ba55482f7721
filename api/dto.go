/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Request amounts are decimal.Decimal, which accepts both JSON numbers and
  strings ("12.50") without going through float64. Response amounts are
  strings.

TYPES:
  Catalog:      RuleDTO, RequirementDTO, ProgramDTO
  Calculation:  CalculateRequest, CalculationDTO, AccountCalculationRequest
  Ledger:       RecordTransactionsRequest, TransactionDTO, SpendDTO
  Statements:   StatementDTO
  Scenarios:    ScenarioDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - report/report.go: Document, the shape of every calculation result
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rewards-engine/generic"
	"github.com/warp/rewards-engine/report"
	"github.com/warp/rewards-engine/rewards"
	"github.com/warp/rewards-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RequirementDTO is one merchant requirement of a rule.
type RequirementDTO struct {
	Merchant string `json:"merchant"`
	Amount   string `json:"amount"`
}

// RuleDTO represents a catalog rule in API responses.
type RuleDTO struct {
	ID           int              `json:"id"`
	Reward       int64            `json:"reward"`
	Description  string           `json:"description,omitempty"`
	CatchAll     bool             `json:"catch_all,omitempty"`
	Requirements []RequirementDTO `json:"requirements"`
}

// ProgramDTO represents a card program.
type ProgramDTO struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Rules       []int  `json:"rules"`
	Default     bool   `json:"default,omitempty"`
}

// CalculateRequest is a stateless calculation on spend supplied by the client.
// RuleIDs wins over Program; with neither, the default program is used.
type CalculateRequest struct {
	Spend    map[string]decimal.Decimal `json:"spend"`
	RuleIDs  []int                      `json:"rule_ids,omitempty"`
	Program  string                     `json:"program,omitempty"`
	Strategy string                     `json:"strategy,omitempty"`
}

// AccountCalculationRequest computes on an account's recorded spend.
type AccountCalculationRequest struct {
	RuleIDs  []int  `json:"rule_ids,omitempty"`
	Program  string `json:"program,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// CalculationDTO is one calculation, stored or not.
type CalculationDTO struct {
	ID        string            `json:"id,omitempty"`
	AccountID string            `json:"account_id,omitempty"`
	Program   string            `json:"program,omitempty"`
	RuleIDs   []int             `json:"rule_ids"`
	From      string            `json:"from,omitempty"`
	To        string            `json:"to,omitempty"`
	Spend     map[string]string `json:"spend"`
	Result    report.Document   `json:"result"`
	CreatedAt string            `json:"created_at,omitempty"`
}

// TransactionInput is one purchase in a RecordTransactionsRequest.
type TransactionInput struct {
	ID       string          `json:"id,omitempty"`
	Date     string          `json:"date"`
	Merchant string          `json:"merchant"`
	Amount   decimal.Decimal `json:"amount"`
}

type RecordTransactionsRequest struct {
	Transactions []TransactionInput `json:"transactions"`
}

// TransactionDTO represents a stored purchase.
type TransactionDTO struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Merchant string `json:"merchant"`
	Amount   string `json:"amount"`
}

// SpendDTO is an aggregated spend snapshot.
type SpendDTO struct {
	AccountID string            `json:"account_id"`
	From      string            `json:"from,omitempty"`
	To        string            `json:"to,omitempty"`
	Spend     map[string]string `json:"spend"`
	Total     string            `json:"total"`
}

// StatementDTO is one month of spend with its optimal result.
type StatementDTO struct {
	From         string            `json:"from"`
	To           string            `json:"to"`
	Transactions int               `json:"transactions"`
	Spend        map[string]string `json:"spend"`
	Result       report.Document   `json:"result"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Account     string `json:"account"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRuleDTO(r *generic.Rule) RuleDTO {
	dto := RuleDTO{
		ID:           int(r.ID),
		Reward:       int64(r.Reward),
		Description:  r.Description,
		CatchAll:     r.IsCatchAll(),
		Requirements: make([]RequirementDTO, 0, len(r.Requirements)),
	}
	for _, req := range r.Requirements {
		dto.Requirements = append(dto.Requirements, RequirementDTO{
			Merchant: string(req.Merchant),
			Amount:   req.Amount.String(),
		})
	}
	return dto
}

func toProgramDTO(p rewards.Program, defaultName string) ProgramDTO {
	return ProgramDTO{
		Name:        p.Name,
		Description: p.Description,
		Rules:       fromRuleIDs(p.Rules),
		Default:     p.Name == defaultName,
	}
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:       string(tx.ID),
		Date:     tx.At.String(),
		Merchant: string(tx.Merchant),
		Amount:   tx.Amount.String(),
	}
}

func toSpendMap(s generic.Spend) map[string]string {
	out := make(map[string]string, s.Len())
	for _, m := range s.Merchants() {
		out[string(m)] = s.Get(m).String()
	}
	return out
}

func toCalculationDTO(rec sqlite.CalculationRecord) CalculationDTO {
	spend := make(map[string]string, len(rec.Spend))
	for m, v := range rec.Spend {
		spend[string(m)] = v
	}
	dto := CalculationDTO{
		ID:        rec.ID,
		AccountID: string(rec.AccountID),
		Program:   rec.Program,
		RuleIDs:   fromRuleIDs(rec.RuleIDs),
		From:      dateOrEmpty(rec.Period.Start),
		To:        dateOrEmpty(rec.Period.End),
		Spend:     spend,
		Result:    report.NewDocument(rec.Summary),
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toRuleIDs(ids []int) []generic.RuleID {
	out := make([]generic.RuleID, len(ids))
	for i, id := range ids {
		out[i] = generic.RuleID(id)
	}
	return out
}

func fromRuleIDs(ids []generic.RuleID) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

func dateOrEmpty(tp generic.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.String()
}
