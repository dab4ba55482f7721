/*
scenarios_test.go - Tests for demo scenario loading

Each scenario is loaded through the API and checked against the rewards
its account should earn.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rewards-engine/report"
)

func TestScenarios_ListAndCurrent(t *testing.T) {
	_, router := setupRouter(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(trimNewline(rec.Body.Bytes())))

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "greedy-trap"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", "")
	assert.Equal(t, "greedy-trap", decode[ScenarioDTO](t, rec).ID)
}

func TestScenarios_ExpectedRewards(t *testing.T) {
	// GIVEN: Each demo scenario
	// WHEN: Loading it and comparing strategies on the account's spend
	// THEN: The optimizer earns the documented points and never less than greedy

	tests := []struct {
		scenario string
		optimal  int64
		greedy   int64
	}{
		// 370.26 / 59.17 / 40.06 / the_bay 87.01
		{"sample-statement", 1751, 1546},
		{"bundle-shopper", 1000, 1000},
		{"greedy-trap", 460, 370},
		{"multi-month", 576, 576},
	}

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			_, router := setupRouter(t)

			rec := do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "`+tt.scenario+`"}`)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			account := decode[map[string]string](t, rec)["account"]

			rec = do(t, router, http.MethodGet, "/api/accounts/"+account+"/spend", "")
			require.Equal(t, http.StatusOK, rec.Code)
			spend := decode[SpendDTO](t, rec)

			body := `{"spend": {`
			first := true
			for m, v := range spend.Spend {
				if !first {
					body += ","
				}
				body += `"` + m + `": "` + v + `"`
				first = false
			}
			body += `}}`

			rec = do(t, router, http.MethodPost, "/api/compare", body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			doc := decode[report.ComparisonDocument](t, rec)

			assert.Equal(t, tt.optimal, doc.Optimal.Total)
			assert.Equal(t, tt.greedy, doc.Greedy.Total)
			assert.GreaterOrEqual(t, doc.Optimal.Total, doc.Greedy.Total)
		})
	}
}

func TestScenarios_LoadResetsDatabase(t *testing.T) {
	_, router := setupRouter(t)

	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "bundle-shopper"}`).Code)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "greedy-trap"}`).Code)

	rec := do(t, router, http.MethodGet, "/api/accounts/demo-bundle/transactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]TransactionDTO](t, rec))

	// Loading the same scenario twice does not collide on transaction ids
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "greedy-trap"}`).Code)
}

func TestScenarios_Unknown(t *testing.T) {
	_, router := setupRouter(t)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/scenarios/load", `not json`).Code)
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
