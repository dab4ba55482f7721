package solver

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/warp/rewards-engine/generic"
)

// Enumerator searches every integer assignment depth first, largest counts
// first, pruning subtrees whose optimistic bound cannot reach the incumbent.
// Leaves are scored with Model.Evaluate, catch-all payout included.
// Exact, with no floating point LP involved, but exponential in the number
// of rules. NodeLimit guards against runaway instances.
type Enumerator struct {
	NodeLimit int
}

func NewEnumerator() *Enumerator {
	return &Enumerator{NodeLimit: 10 * DefaultNodeLimit}
}

type column struct {
	row  int
	coef float64
}

type enumeration struct {
	ctx     context.Context
	m       *generic.Model
	order   []int
	columns [][]column
	caps    []float64
	x       []int64
	best    *incumbent
	nodes   int
	limit   int
	stopped bool
	err     error
}

func (e *Enumerator) Solve(ctx context.Context, m *generic.Model) (*generic.Solution, error) {
	if err := m.Validate(); err != nil {
		return &generic.Solution{Status: generic.StatusNotOptimal, Reason: err.Error()}, nil
	}
	n := m.NumVars()
	if n == 0 {
		return &generic.Solution{Status: generic.StatusOptimal, Values: []int64{}, Objective: m.Evaluate(nil)}, nil
	}

	limit := e.NodeLimit
	if limit <= 0 {
		limit = 10 * DefaultNodeLimit
	}

	s := &enumeration{
		ctx:     ctx,
		m:       m,
		order:   make([]int, n),
		columns: make([][]column, n),
		caps:    make([]float64, len(m.Constraints)),
		x:       make([]int64, n),
		best:    newIncumbent(m),
		limit:   limit,
	}
	for i, con := range m.Constraints {
		s.caps[i] = con.Limit
		for _, t := range con.Terms {
			s.columns[t.Var] = append(s.columns[t.Var], column{row: i, coef: t.Coef})
		}
	}
	for j := range s.order {
		s.order[j] = j
	}
	sort.SliceStable(s.order, func(a, b int) bool {
		return m.Objective[s.order[a]] > m.Objective[s.order[b]]
	})

	s.search(0, 0, 0)

	if s.err != nil {
		return nil, s.err
	}
	if s.stopped {
		return &generic.Solution{
			Status:    generic.StatusNotOptimal,
			Values:    s.best.values,
			Objective: s.best.points,
			Nodes:     s.nodes,
			Reason:    fmt.Sprintf("node limit %d reached", limit),
		}, nil
	}
	return &generic.Solution{
		Status:    generic.StatusOptimal,
		Values:    s.best.values,
		Objective: s.best.points,
		Nodes:     s.nodes,
	}, nil
}

func (s *enumeration) search(k int, points, cost float64) {
	if s.stopped || s.err != nil {
		return
	}
	s.nodes++
	if s.nodes > s.limit {
		s.stopped = true
		return
	}
	if s.nodes%1024 == 0 {
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return
		}
	}

	if k == len(s.order) {
		total := points + s.m.LeftoverPoints(cost)
		if generic.Better(total, cost, s.best.points, s.best.cost) {
			copy(s.best.values, s.x)
			s.best.points = total
			s.best.cost = cost
		}
		return
	}

	// Equal points may still win on cost, so only prune strictly worse subtrees
	if points+s.optimistic(k, cost) < s.best.points-pruneTolerance {
		return
	}

	j := s.order[k]
	for v := s.maxCount(j); v >= 0; v-- {
		s.take(j, v)
		s.x[j] = v
		s.search(k+1, points+s.m.Objective[j]*float64(v), cost+s.m.Cost[j]*float64(v))
		s.take(j, -v)
	}
	s.x[j] = 0
}

func (s *enumeration) take(j int, v int64) {
	for _, c := range s.columns[j] {
		s.caps[c.row] -= c.coef * float64(v)
	}
}

// maxCount is how many times variable j still fits into every row.
func (s *enumeration) maxCount(j int) int64 {
	n := int64(-1)
	for _, c := range s.columns[j] {
		fit := int64(math.Floor(s.caps[c.row]/c.coef + generic.FeasibilityTolerance))
		if n < 0 || fit < n {
			n = fit
		}
	}
	if n < 0 {
		return 0
	}
	return n
}

// optimistic bounds the points the remaining variables and the catch-all
// can still add once cost has been consumed. Bounded points are bounded by
// the smaller of every variable at its own maximum and every row's capacity
// spent at the best points-per-unit rate among the variables charged to
// it; the catch-all adds at most its payout on the current leftover. A
// second bound prices each remaining application net of the catch-all
// payout its spend gives up.
func (s *enumeration) optimistic(k int, cost float64) float64 {
	rateAll := s.m.CatchAllRate
	independent, netted := 0.0, 0.0
	rate := make(map[int]float64)
	for _, j := range s.order[k:] {
		ub := s.maxCount(j)
		independent += s.m.Objective[j] * float64(ub)
		if gain := s.m.Objective[j] - rateAll*s.m.Cost[j]; gain > 0 {
			netted += gain * float64(ub)
		}

		// Charge j to its tightest row
		tight, tightFit := -1, math.Inf(1)
		for _, c := range s.columns[j] {
			if fit := s.caps[c.row] / c.coef; fit < tightFit {
				tight, tightFit = c.row, fit
			}
		}
		if tight < 0 {
			continue
		}
		for _, c := range s.columns[j] {
			if c.row == tight {
				if r := s.m.Objective[j] / c.coef; r > rate[tight] {
					rate[tight] = r
				}
			}
		}
	}

	byRow := 0.0
	for row, r := range rate {
		byRow += r * math.Max(s.caps[row], 0)
	}

	leftover := s.m.LeftoverPoints(cost)
	bound := math.Min(independent, byRow) + leftover
	if rateAll > 0 {
		slack := generic.FeasibilityTolerance * math.Max(1, s.m.Budget)
		bound = math.Min(bound, netted+rateAll*math.Max(s.m.Budget-cost+slack, 0))
	}
	return bound
}
