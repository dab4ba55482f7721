/*
Package report renders allocation summaries for people and machines.

PURPOSE:
  The engine returns structured results and never prints. This package
  turns a generic.Summary into a table for terminals or a JSON document
  for the API and scripts. It makes no decisions of its own.

FORMATS:
  text: one line per applied rule with a running total, then the grand total
  json: Document, stable field names

SEE ALSO:
  - generic/summary.go: The projection rendered here
*/
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/warp/rewards-engine/generic"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat maps user input to a Format. Empty input means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text or json)", s)
	}
}

// =============================================================================
// DOCUMENT - JSON shape of a summary
// =============================================================================

type Line struct {
	RuleID       int   `json:"rule_id"`
	Count        int64 `json:"count"`
	Reward       int64 `json:"reward"`
	Points       int64 `json:"points"`
	RunningTotal int64 `json:"running_total"`
	CatchAll     bool  `json:"catch_all,omitempty"`
}

type Document struct {
	Strategy       string `json:"strategy"`
	Lines          []Line `json:"lines"`
	Total          int64  `json:"total"`
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`
}

// ComparisonDocument is both strategies side by side.
type ComparisonDocument struct {
	Optimal Document `json:"optimal"`
	Greedy  Document `json:"greedy"`
	Gain    int64    `json:"gain"`
}

// NewDocument converts a summary. Lines is never nil.
func NewDocument(s generic.Summary) Document {
	doc := Document{
		Strategy:       string(s.Strategy),
		Lines:          make([]Line, 0, len(s.Lines)),
		Total:          int64(s.GrandTotal),
		Degraded:       s.Degraded,
		DegradedReason: s.DegradedReason,
	}
	for _, l := range s.Lines {
		doc.Lines = append(doc.Lines, Line{
			RuleID:       int(l.RuleID),
			Count:        l.Count,
			Reward:       int64(l.Reward),
			Points:       int64(l.Points),
			RunningTotal: int64(l.RunningTotal),
			CatchAll:     l.CatchAll,
		})
	}
	return doc
}

func NewComparisonDocument(c *generic.Comparison) ComparisonDocument {
	return ComparisonDocument{
		Optimal: NewDocument(generic.Summarize(c.Optimal)),
		Greedy:  NewDocument(generic.Summarize(c.Greedy)),
		Gain:    int64(c.Gain()),
	}
}

// =============================================================================
// RENDERERS
// =============================================================================

// Write renders one summary in the given format.
func Write(w io.Writer, format Format, s generic.Summary) error {
	if format == FormatJSON {
		return writeJSON(w, NewDocument(s))
	}
	return writeText(w, s)
}

// WriteComparison renders both strategies and the gain.
func WriteComparison(w io.Writer, format Format, c *generic.Comparison) error {
	if format == FormatJSON {
		return writeJSON(w, NewComparisonDocument(c))
	}
	if err := writeText(w, generic.Summarize(c.Optimal)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	if err := writeText(w, generic.Summarize(c.Greedy)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nOptimizer gain over greedy: %d points\n", c.Gain())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeText(w io.Writer, s generic.Summary) error {
	fmt.Fprintf(w, "Strategy: %s\n", s.Strategy)
	if s.Degraded {
		fmt.Fprintf(w, "WARNING: %s\n", s.DegradedReason)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Rule\tTimes\tReward\tPoints\tRunning total\t")
	for _, l := range s.Lines {
		rule := l.RuleID.String()
		if l.CatchAll {
			rule += "*"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t\n", rule, l.Count, l.Reward, l.Points, l.RunningTotal)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Total points: %d\n", s.GrandTotal)
	return err
}
