package generic

// =============================================================================
// SUMMARY - Presentation projection of an Allocation
// =============================================================================

// SummaryLine describes one applied rule with the running total after it.
type SummaryLine struct {
	RuleID       RuleID
	Count        int64
	Reward       Points
	Points       Points
	RunningTotal Points
	CatchAll     bool
}

// Summary is what reports render. It holds no decisions of its own.
type Summary struct {
	Strategy       Strategy
	Lines          []SummaryLine
	GrandTotal     Points
	Degraded       bool
	DegradedReason string
}

// Summarize projects an allocation: applied bounded rules in allocation
// order, the catch-all last, zero counts omitted.
func Summarize(a *Allocation) Summary {
	s := Summary{Strategy: a.Strategy}

	var running Points
	add := func(app Application, catchAll bool) {
		if app.Count == 0 {
			return
		}
		running += app.Points
		s.Lines = append(s.Lines, SummaryLine{
			RuleID:       app.RuleID,
			Count:        app.Count,
			Reward:       app.Reward,
			Points:       app.Points,
			RunningTotal: running,
			CatchAll:     catchAll,
		})
	}

	for _, app := range a.Applications {
		add(app, false)
	}
	if a.CatchAll != nil {
		add(*a.CatchAll, true)
	}

	s.GrandTotal = a.Total
	if a.Degraded != nil {
		s.Degraded = true
		s.DegradedReason = a.Degraded.Error()
	}
	return s
}
