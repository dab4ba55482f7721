/*
catalog.go - Static rule catalog

PURPOSE:
  The catalog is the single configuration surface of the engine: a
  read-only table of rules keyed by id. Sessions never use the catalog
  directly; they ask it for the subset of rules they were configured
  with, and the catalog fails fast on any id it doesn't know.

FAIL FAST:
  RuleSet and Priority resolve every requested id before returning
  anything. An unknown id aborts the session with an UnknownRuleError
  naming that id. No allocation work has started at that point.

ORDERING:
  RuleSet:  Rules sorted by id. Building the same ids twice, in any
            order, yields identical rules.
  Priority: Rules in exactly the order given. The greedy allocator
            depends on this order; it is an explicit parameter.

SEE ALSO:
  - rule.go: Rule definition
  - factory/: Builds catalogs from JSON or YAML
  - rewards/catalog.go: Default catalog
*/
package generic

import (
	"fmt"
	"sort"
)

// Catalog is a read-only table of rules. Safe for concurrent reads.
type Catalog struct {
	rules    map[RuleID]*Rule
	ids      []RuleID
	catchAll RuleID
}

// NewCatalog builds a catalog. At most one catch-all rule is allowed.
func NewCatalog(rules ...*Rule) (*Catalog, error) {
	c := &Catalog{rules: make(map[RuleID]*Rule, len(rules))}
	for _, r := range rules {
		if r == nil {
			continue
		}
		if _, exists := c.rules[r.ID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateRule, r.ID)
		}
		if r.IsCatchAll() {
			if c.catchAll != 0 {
				return nil, fmt.Errorf("%w: rules %d and %d", ErrMultipleCatchAll, c.catchAll, r.ID)
			}
			c.catchAll = r.ID
		}
		c.rules[r.ID] = r
		c.ids = append(c.ids, r.ID)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return c, nil
}

// Rule looks up one rule. Returns *UnknownRuleError if absent.
func (c *Catalog) Rule(id RuleID) (*Rule, error) {
	r, ok := c.rules[id]
	if !ok {
		return nil, &UnknownRuleError{ID: id}
	}
	return r, nil
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id RuleID) bool {
	_, ok := c.rules[id]
	return ok
}

// IDs returns every rule id in ascending order.
func (c *Catalog) IDs() []RuleID {
	return append([]RuleID(nil), c.ids...)
}

// Rules returns every rule in ascending id order.
func (c *Catalog) Rules() []*Rule {
	out := make([]*Rule, len(c.ids))
	for i, id := range c.ids {
		out[i] = c.rules[id]
	}
	return out
}

func (c *Catalog) Len() int { return len(c.ids) }

// CatchAll returns the catalog's catch-all rule, or nil if it has none.
func (c *Catalog) CatchAll() *Rule {
	if c.catchAll == 0 {
		return nil
	}
	return c.rules[c.catchAll]
}

// RuleSet resolves ids into rules sorted by id. Duplicate ids collapse.
// Any unknown id fails the whole call.
func (c *Catalog) RuleSet(ids ...RuleID) ([]*Rule, error) {
	if err := c.validate(ids); err != nil {
		return nil, err
	}

	unique := make(map[RuleID]bool, len(ids))
	sorted := make([]RuleID, 0, len(ids))
	for _, id := range ids {
		if !unique[id] {
			unique[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]*Rule, len(sorted))
	for i, id := range sorted {
		out[i] = c.rules[id]
	}
	return out, nil
}

// Priority resolves ids into rules in the given order. A repeated id keeps
// its first position. Any unknown id fails the whole call.
func (c *Catalog) Priority(ids ...RuleID) ([]*Rule, error) {
	if err := c.validate(ids); err != nil {
		return nil, err
	}

	seen := make(map[RuleID]bool, len(ids))
	out := make([]*Rule, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c.rules[id])
	}
	return out, nil
}

func (c *Catalog) validate(ids []RuleID) error {
	for _, id := range ids {
		if _, ok := c.rules[id]; !ok {
			return &UnknownRuleError{ID: id}
		}
	}
	return nil
}

// SplitCatchAll separates bounded rules from the catch-all, keeping order.
func SplitCatchAll(rules []*Rule) (bounded []*Rule, catchAll *Rule, err error) {
	bounded = make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if !r.IsCatchAll() {
			bounded = append(bounded, r)
			continue
		}
		if catchAll != nil {
			return nil, nil, fmt.Errorf("%w: rules %d and %d", ErrMultipleCatchAll, catchAll.ID, r.ID)
		}
		catchAll = r
	}
	return bounded, catchAll, nil
}
