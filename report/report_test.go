package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rewards-engine/generic"
	"github.com/warp/rewards-engine/report"
	"github.com/warp/rewards-engine/rewards"
)

func allocate(t *testing.T, strategy generic.Strategy, amounts map[generic.MerchantID]float64) *generic.Allocation {
	t.Helper()
	spend, err := generic.NewSpendFromFloats(amounts)
	require.NoError(t, err)
	a, err := rewards.NewCalculator(rewards.DefaultCatalog(), 0).Calculate(context.Background(), generic.CalculationRequest{
		RuleIDs:  rewards.DefaultPriority(),
		Spend:    spend,
		Strategy: strategy,
	})
	require.NoError(t, err)
	return a
}

func TestParseFormat(t *testing.T) {
	f, err := report.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, report.FormatText, f)

	f, err = report.ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, report.FormatJSON, f)

	_, err = report.ParseFormat("xml")
	assert.Error(t, err)
}

func TestWrite_Text(t *testing.T) {
	// GIVEN: $21 at Sport Check
	// WHEN: Rendering the optimal summary as text
	// THEN: Rule 6 once, the catch-all marked, total 76

	a := allocate(t, generic.StrategyOptimal, map[generic.MerchantID]float64{"sportcheck": 21})

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, report.FormatText, generic.Summarize(a)))
	out := buf.String()

	assert.Contains(t, out, "Strategy: optimal")
	assert.Contains(t, out, "7*")
	assert.Contains(t, out, "Total points: 76")
	assert.NotContains(t, out, "WARNING")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	// header, strategy, rule 6, catch-all, total
	assert.Len(t, lines, 5)
}

func TestWrite_TextDegraded(t *testing.T) {
	s := generic.Summary{Strategy: generic.StrategyOptimal, GrandTotal: 5, Degraded: true, DegradedReason: "optimization not optimal"}

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, report.FormatText, s))
	assert.Contains(t, buf.String(), "WARNING: optimization not optimal")
}

func TestWrite_JSON(t *testing.T) {
	a := allocate(t, generic.StrategyOptimal, map[generic.MerchantID]float64{
		"sportcheck": 150, "tim_hortons": 50, "subway": 50,
	})

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, report.FormatJSON, generic.Summarize(a)))

	var doc report.Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "optimal", doc.Strategy)
	assert.Equal(t, int64(1000), doc.Total)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, report.Line{RuleID: 1, Count: 2, Reward: 500, Points: 1000, RunningTotal: 1000}, doc.Lines[0])
}

func TestNewDocument_EmptyHasNoNilLines(t *testing.T) {
	doc := report.NewDocument(generic.Summary{Strategy: generic.StrategyGreedy})
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"lines":[]`)
}

func TestWriteComparison(t *testing.T) {
	amounts := map[generic.MerchantID]float64{"sportcheck": 100, "tim_hortons": 20, "subway": 20}
	c := &generic.Comparison{
		Optimal: allocate(t, generic.StrategyOptimal, amounts),
		Greedy:  allocate(t, generic.StrategyGreedy, amounts),
	}

	var text bytes.Buffer
	require.NoError(t, report.WriteComparison(&text, report.FormatText, c))
	assert.Contains(t, text.String(), "Strategy: optimal")
	assert.Contains(t, text.String(), "Strategy: greedy")
	assert.Contains(t, text.String(), "Optimizer gain over greedy: 90 points")

	var js bytes.Buffer
	require.NoError(t, report.WriteComparison(&js, report.FormatJSON, c))
	var doc report.ComparisonDocument
	require.NoError(t, json.Unmarshal(js.Bytes(), &doc))
	assert.Equal(t, int64(460), doc.Optimal.Total)
	assert.Equal(t, int64(370), doc.Greedy.Total)
	assert.Equal(t, int64(90), doc.Gain)
}
