/*
Package solver provides generic.Solver implementations.

BRANCH AND BOUND (branchbound.go):
  Solves the integer program by depth-first branch and bound. Every node
  is an LP relaxation solved with gonum's simplex. Nodes are kept in the
  form

      A y + s = b - A l,   y = x - l >= 0,   s >= 0

  by shifting each variable by its branch lower bound l, so the right-hand
  side is never negative and the slack columns are always a feasible
  starting basis. Upper bounds become extra rows y_j + t_j = u_j - l_j.

CATCH-ALL COLUMN:
  When the model prices a catch-all, the LP gets one more integer column
  z, its application count, and one more row

      sum_j cost_j x_j + z <= budget

  with objective rate * z. At an integer optimum z is the floor of the
  leftover, so the LP bound covers the catch-all payout. Incumbents are
  still scored by Model.Evaluate, which recomputes the payout from x.

TIE-BREAK:
  The LP objective is reward_j - delta * cost_j with delta small enough
  that it can never outweigh a one-point difference. Among allocations
  with equal points the relaxation therefore prefers the one that
  consumes less spend, leaving more for the catch-all.

ENUMERATOR (enumerate.go):
  Exact bounded depth-first search without LP. Used for small catalogs
  and to cross-check branch and bound in tests.

SEE ALSO:
  - generic/model.go: The Model both solvers consume
  - generic/optimizer.go: Caller
*/
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/warp/rewards-engine/generic"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	// DefaultNodeLimit caps the search before it reports StatusNotOptimal.
	DefaultNodeLimit = 100000

	integralityTolerance = 1e-6
	simplexTolerance     = 1e-10
	pruneTolerance       = 1e-9
)

// errPruned marks a node whose region holds no feasible point.
var errPruned = errors.New("node infeasible")

// BranchAndBound is safe for concurrent use; each Solve owns its state.
type BranchAndBound struct {
	NodeLimit int
}

func NewBranchAndBound() *BranchAndBound {
	return &BranchAndBound{NodeLimit: DefaultNodeLimit}
}

// node bounds every variable to [lower, upper]; upper < 0 means unbounded.
type node struct {
	lower []int64
	upper []int64
}

func (nd node) clone() node {
	return node{
		lower: append([]int64(nil), nd.lower...),
		upper: append([]int64(nil), nd.upper...),
	}
}

// incumbent is the best integer assignment found so far.
type incumbent struct {
	values []int64
	points float64
	cost   float64
}

// newIncumbent starts from x = 0, which is always feasible: every
// coefficient is positive.
func newIncumbent(m *generic.Model) *incumbent {
	zero := make([]int64, m.NumVars())
	return &incumbent{values: zero, points: m.Evaluate(zero)}
}

func (in *incumbent) offer(m *generic.Model, values []int64) {
	if !m.Feasible(values) {
		return
	}
	points, cost := m.Evaluate(values), m.Consumption(values)
	if generic.Better(points, cost, in.points, in.cost) {
		in.values = append(in.values[:0], values...)
		in.points = points
		in.cost = cost
	}
}

func (b *BranchAndBound) Solve(ctx context.Context, m *generic.Model) (*generic.Solution, error) {
	if err := m.Validate(); err != nil {
		return &generic.Solution{Status: generic.StatusNotOptimal, Reason: err.Error()}, nil
	}
	n := m.NumVars()
	if n == 0 {
		return &generic.Solution{Status: generic.StatusOptimal, Values: []int64{}, Objective: m.Evaluate(nil)}, nil
	}

	limit := b.NodeLimit
	if limit <= 0 {
		limit = DefaultNodeLimit
	}
	p := newProgram(m, tieBreakWeight(m))
	best := newIncumbent(m)

	root := node{lower: make([]int64, p.cols()), upper: p.upper}
	stack := []node{root}
	nodes := 0
	var failure error

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if nodes >= limit {
			return &generic.Solution{
				Status:    generic.StatusNotOptimal,
				Values:    best.values,
				Objective: best.points,
				Nodes:     nodes,
				Reason:    fmt.Sprintf("node limit %d reached", limit),
			}, nil
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		x, bound, err := p.relax(nd)
		if errors.Is(err, errPruned) {
			continue
		}
		if err != nil {
			// The subtree is unexplored, so optimality can't be proven
			failure = err
			continue
		}
		if bound < best.points-p.delta*best.cost+pruneTolerance {
			continue
		}

		// Rounding a relaxation down keeps Ax <= b, so it is a free incumbent
		floored := make([]int64, n)
		for j := range floored {
			floored[j] = int64(math.Floor(x[j] + integralityTolerance))
		}
		best.offer(m, floored)

		j := branchVariable(x)
		if j < 0 {
			continue
		}

		split := int64(math.Floor(x[j]))
		down := nd.clone()
		down.upper[j] = split
		stack = append(stack, down)

		up := nd.clone()
		up.lower[j] = split + 1
		if up.upper[j] < 0 || up.lower[j] <= up.upper[j] {
			stack = append(stack, up)
		}
	}

	if failure != nil {
		return &generic.Solution{
			Status:    generic.StatusNotOptimal,
			Values:    best.values,
			Objective: best.points,
			Nodes:     nodes,
			Reason:    failure.Error(),
		}, nil
	}
	return &generic.Solution{
		Status:    generic.StatusOptimal,
		Values:    best.values,
		Objective: best.points,
		Nodes:     nodes,
	}, nil
}

// tieBreakWeight keeps delta * (any achievable cost) below half a point.
func tieBreakWeight(m *generic.Model) float64 {
	total := 0.0
	for _, c := range m.Constraints {
		total += c.Limit
	}
	return 0.5 / (total + 1)
}

// branchVariable picks the most fractional variable, or -1 if x is integral.
func branchVariable(x []float64) int {
	best, bestDist := -1, integralityTolerance
	for j, v := range x {
		dist := math.Abs(v - math.Round(v))
		if dist > bestDist {
			best, bestDist = j, dist
		}
	}
	return best
}

// leftoverRow labels the catch-all row in errors.
const leftoverRow generic.MerchantID = "(leftover)"

// program is the LP branch and bound works on: the model's columns with
// tie-break weights, plus the catch-all column when the model prices one.
type program struct {
	delta  float64
	weight []float64
	rows   []generic.Constraint
	upper  []int64
}

func newProgram(m *generic.Model, delta float64) *program {
	n := m.NumVars()
	p := &program{
		delta:  delta,
		weight: make([]float64, n, n+1),
		rows:   m.Constraints,
		upper:  m.UpperBounds(),
	}
	for j := range p.weight {
		p.weight[j] = m.Objective[j] - delta*m.Cost[j]
	}
	if m.CatchAllRate == 0 {
		return p
	}

	terms := make([]generic.Term, 0, n+1)
	for j := 0; j < n; j++ {
		terms = append(terms, generic.Term{Var: j, Coef: m.Cost[j]})
	}
	terms = append(terms, generic.Term{Var: n, Coef: 1})

	p.rows = append(append([]generic.Constraint(nil), m.Constraints...), generic.Constraint{
		Merchant: leftoverRow,
		Terms:    terms,
		Limit:    m.Budget,
	})
	p.weight = append(p.weight, m.CatchAllRate)
	p.upper = append(p.upper, int64(math.Floor(m.Budget+generic.FeasibilityTolerance*math.Max(1, m.Budget))))
	return p
}

func (p *program) cols() int { return len(p.weight) }

// relax solves the LP relaxation of a node. It returns x in the original
// variables (catch-all column last) and the perturbed objective value
// (maximization).
func (p *program) relax(nd node) ([]float64, float64, error) {
	n := p.cols()
	rows := len(p.rows)

	var capped []int
	for j := 0; j < n; j++ {
		if nd.upper[j] >= 0 {
			if nd.upper[j] < nd.lower[j] {
				return nil, 0, errPruned
			}
			capped = append(capped, j)
		}
	}

	r := rows + len(capped)
	cols := n + r
	A := mat.NewDense(r, cols, nil)
	b := make([]float64, r)

	for i, con := range p.rows {
		rhs := con.Limit
		for _, t := range con.Terms {
			A.Set(i, t.Var, t.Coef)
			rhs -= t.Coef * float64(nd.lower[t.Var])
		}
		if rhs < -generic.FeasibilityTolerance*math.Max(1, con.Limit) {
			return nil, 0, errPruned
		}
		b[i] = math.Max(rhs, 0)
		A.Set(i, n+i, 1)
	}
	for k, j := range capped {
		i := rows + k
		A.Set(i, j, 1)
		A.Set(i, n+i, 1)
		b[i] = float64(nd.upper[j] - nd.lower[j])
	}

	c := make([]float64, cols)
	shift := 0.0
	for j := 0; j < n; j++ {
		c[j] = -p.weight[j]
		shift += p.weight[j] * float64(nd.lower[j])
	}

	basis := make([]int, r)
	for i := range basis {
		basis[i] = n + i
	}

	optF, optX, err := simplex(c, A, b, basis)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			return nil, 0, errPruned
		}
		return nil, 0, err
	}

	x := make([]float64, n)
	for j := range x {
		x[j] = math.Max(optX[j], 0) + float64(nd.lower[j])
	}
	return x, shift - optF, nil
}

// simplex wraps lp.Simplex, which panics on malformed input.
func simplex(c []float64, A mat.Matrix, b []float64, basis []int) (optF float64, optX []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simplex: %v", r)
		}
	}()
	return lp.Simplex(c, A, b, simplexTolerance, basis)
}
