/*
Package rewards provides the card-loyalty domain on top of the generic
allocation engine.

PURPOSE:
  The generic engine knows nothing about merchants, cards or catalogs. This
  package supplies the concrete pieces a card issuer ships:
  - Merchants the default catalog references
  - The default rule catalog (seven rules, the last a catch-all)
  - Card programs: named subsets of the catalog a card is eligible for
  - Monthly statements: spend grouped by calendar month

MERCHANTS:
  sportcheck:  Sporting goods
  tim_hortons: Coffee
  subway:      Sandwiches

  Merchant ids are open strings. Spend at a merchant that no rule
  references is still counted by the catch-all.

PROGRAMS:
  standard:           Every rule, 1 through 7
  capital-one-100:    Rules 1, 3, 5 and the catch-all
  capital-one-normal: Rules 1, 3 and the catch-all

  A program's rule order doubles as its greedy priority.

SEE ALSO:
  - rules.go: Default catalog
  - factory.go: JSON presets for the factory package
  - statement.go: Monthly statement split
*/
package rewards

import (
	"fmt"
	"sort"

	"github.com/warp/rewards-engine/generic"
)

// =============================================================================
// MERCHANTS
// =============================================================================

const (
	MerchantSportCheck generic.MerchantID = "sportcheck"
	MerchantTimHortons generic.MerchantID = "tim_hortons"
	MerchantSubway     generic.MerchantID = "subway"
)

// KnownMerchants returns the merchants the default catalog references.
func KnownMerchants() []generic.MerchantID {
	return []generic.MerchantID{MerchantSportCheck, MerchantSubway, MerchantTimHortons}
}

func IsKnownMerchant(m generic.MerchantID) bool {
	for _, known := range KnownMerchants() {
		if known == m {
			return true
		}
	}
	return false
}

// =============================================================================
// PROGRAMS
// =============================================================================

// Program is a named subset of the catalog. Rules is also the greedy
// priority order for the program.
type Program struct {
	Name        string
	Description string
	Rules       []generic.RuleID
}

// ProgramSet holds programs validated against one catalog.
type ProgramSet struct {
	programs map[string]Program
	names    []string
}

// NewProgramSet validates every program against catalog: names must be
// unique and non-empty, every rule id must exist.
func NewProgramSet(catalog *generic.Catalog, programs ...Program) (*ProgramSet, error) {
	s := &ProgramSet{programs: make(map[string]Program, len(programs))}
	for _, p := range programs {
		if p.Name == "" {
			return nil, fmt.Errorf("program: empty name")
		}
		if _, dup := s.programs[p.Name]; dup {
			return nil, fmt.Errorf("program %q: defined twice", p.Name)
		}
		if len(p.Rules) == 0 {
			return nil, fmt.Errorf("program %q: no rules", p.Name)
		}
		if _, err := catalog.RuleSet(p.Rules...); err != nil {
			return nil, fmt.Errorf("program %q: %w", p.Name, err)
		}
		p.Rules = append([]generic.RuleID(nil), p.Rules...)
		s.programs[p.Name] = p
		s.names = append(s.names, p.Name)
	}
	sort.Strings(s.names)
	return s, nil
}

// Lookup returns the named program or ErrUnknownProgram.
func (s *ProgramSet) Lookup(name string) (Program, error) {
	p, ok := s.programs[name]
	if !ok {
		return Program{}, fmt.Errorf("%w: %q", generic.ErrUnknownProgram, name)
	}
	return p, nil
}

func (s *ProgramSet) Names() []string {
	return append([]string(nil), s.names...)
}

// All returns programs sorted by name.
func (s *ProgramSet) All() []Program {
	out := make([]Program, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.programs[name])
	}
	return out
}

func (s *ProgramSet) Len() int { return len(s.names) }
