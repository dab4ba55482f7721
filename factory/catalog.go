/*
Package factory provides JSON and YAML to Go catalog conversion.

PURPOSE:
  Converts catalog definitions into a validated generic.Catalog and the
  card programs built on it. This enables rule changes without code
  changes: marketing edits a file, the factory produces the Go structs.

JSON SCHEMA:
  {
    "name": "default",
    "rules": [
      {
        "id": 1,
        "reward": 500,
        "description": "500 points for $75 sportcheck, $25 tim_hortons, $25 subway",
        "requirements": [
          {"merchant": "sportcheck", "amount": 75},
          {"merchant": "tim_hortons", "amount": 25},
          {"merchant": "subway", "amount": 25}
        ]
      },
      {"id": 7, "reward": 1, "catch_all": true}
    ],
    "programs": [
      {"name": "standard", "rules": [1, 2, 3, 4, 5, 6, 7]}
    ]
  }

  YAML files use the same keys.

VALIDATION:
  - A rule must either set catch_all or list requirements, never both
  - Rule invariants are enforced by generic.NewRule
  - Program rule ids must exist in the catalog
  - Without programs, a "standard" program with every rule is added

USAGE:
  f := factory.NewCatalogFactory()
  def, err := f.LoadFile("catalog.yaml")
  def, err = f.Resolve(ctx, cfg.CatalogPath, store)
  calc := rewards.NewCalculator(def.Catalog, 0)

SEE ALSO:
  - generic/catalog.go: Catalog type definition
  - rewards/factory.go: JSON presets
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/rewards-engine/generic"
	"github.com/warp/rewards-engine/rewards"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// CatalogJSON is the file representation of a catalog.
type CatalogJSON struct {
	Name     string        `json:"name" yaml:"name"`
	Rules    []RuleJSON    `json:"rules" yaml:"rules"`
	Programs []ProgramJSON `json:"programs,omitempty" yaml:"programs,omitempty"`
}

// RuleJSON represents one rule.
type RuleJSON struct {
	ID           int               `json:"id" yaml:"id"`
	Reward       int64             `json:"reward" yaml:"reward"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	CatchAll     bool              `json:"catch_all,omitempty" yaml:"catch_all,omitempty"`
	Requirements []RequirementJSON `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}

// RequirementJSON is the spend one application needs at one merchant.
type RequirementJSON struct {
	Merchant string  `json:"merchant" yaml:"merchant"`
	Amount   float64 `json:"amount" yaml:"amount"`
}

// ProgramJSON represents a card program.
type ProgramJSON struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       []int  `json:"rules" yaml:"rules"`
}

// CatalogDefinition is the parsed, validated result.
type CatalogDefinition struct {
	Name     string
	Catalog  *generic.Catalog
	Programs *rewards.ProgramSet
}

// =============================================================================
// CATALOG FACTORY
// =============================================================================

// CatalogFactory converts catalog files to Go structs.
type CatalogFactory struct{}

func NewCatalogFactory() *CatalogFactory {
	return &CatalogFactory{}
}

// ParseCatalog parses a JSON document.
func (f *CatalogFactory) ParseCatalog(jsonStr string) (*CatalogDefinition, error) {
	var cj CatalogJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// ParseCatalogYAML parses a YAML document.
func (f *CatalogFactory) ParseCatalogYAML(yamlStr string) (*CatalogDefinition, error) {
	var cj CatalogJSON
	if err := yaml.Unmarshal([]byte(yamlStr), &cj); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	return f.FromJSON(cj)
}

// LoadFile reads a catalog file; the extension picks the format.
func (f *CatalogFactory) LoadFile(path string) (*CatalogDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return f.ParseCatalog(string(data))
	case ".yaml", ".yml":
		return f.ParseCatalogYAML(string(data))
	default:
		return nil, fmt.Errorf("catalog %s: unsupported extension %q", path, filepath.Ext(path))
	}
}

// FromJSON validates the schema and builds the catalog and its programs.
func (f *CatalogFactory) FromJSON(cj CatalogJSON) (*CatalogDefinition, error) {
	if len(cj.Rules) == 0 {
		return nil, fmt.Errorf("catalog %q: no rules", cj.Name)
	}

	rules := make([]*generic.Rule, 0, len(cj.Rules))
	for _, rj := range cj.Rules {
		r, err := parseRule(rj)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}

	catalog, err := generic.NewCatalog(rules...)
	if err != nil {
		return nil, err
	}

	programs := make([]rewards.Program, 0, len(cj.Programs))
	for _, pj := range cj.Programs {
		p := rewards.Program{Name: pj.Name, Description: pj.Description}
		for _, id := range pj.Rules {
			p.Rules = append(p.Rules, generic.RuleID(id))
		}
		programs = append(programs, p)
	}
	if len(programs) == 0 {
		programs = append(programs, rewards.Program{
			Name:        rewards.ProgramStandard,
			Description: "Every rule in the catalog",
			Rules:       catalog.IDs(),
		})
	}

	set, err := rewards.NewProgramSet(catalog, programs...)
	if err != nil {
		return nil, err
	}

	return &CatalogDefinition{Name: cj.Name, Catalog: catalog, Programs: set}, nil
}

// ToJSON converts a definition back to its file representation.
func (f *CatalogFactory) ToJSON(def *CatalogDefinition) CatalogJSON {
	cj := CatalogJSON{Name: def.Name}

	for _, r := range def.Catalog.Rules() {
		rj := RuleJSON{
			ID:          int(r.ID),
			Reward:      int64(r.Reward),
			Description: r.Description,
			CatchAll:    r.IsCatchAll(),
		}
		for _, req := range r.Requirements {
			rj.Requirements = append(rj.Requirements, RequirementJSON{
				Merchant: string(req.Merchant),
				Amount:   req.Amount.InexactFloat64(),
			})
		}
		cj.Rules = append(cj.Rules, rj)
	}

	if def.Programs != nil {
		for _, p := range def.Programs.All() {
			pj := ProgramJSON{Name: p.Name, Description: p.Description}
			for _, id := range p.Rules {
				pj.Rules = append(pj.Rules, int(id))
			}
			cj.Programs = append(cj.Programs, pj)
		}
	}
	return cj
}

// =============================================================================
// RESOLUTION
// =============================================================================

// DefaultStoredName is the name the active catalog is stored under when
// the definition carries none.
const DefaultStoredName = "default"

// CatalogStore persists catalogs by name. LoadCatalog returns nil, nil
// when nothing is stored.
type CatalogStore interface {
	SaveCatalog(ctx context.Context, name string, c *generic.Catalog) error
	LoadCatalog(ctx context.Context, name string) (*generic.Catalog, error)
}

// Resolve picks the active catalog: the file at path when set, else the
// catalog stored under DefaultStoredName, else the built-in preset. File
// and preset catalogs are written to the store.
func (f *CatalogFactory) Resolve(ctx context.Context, path string, store CatalogStore) (*CatalogDefinition, error) {
	if path != "" {
		def, err := f.LoadFile(path)
		if err != nil {
			return nil, err
		}
		name := def.Name
		if name == "" {
			name = DefaultStoredName
		}
		if err := store.SaveCatalog(ctx, name, def.Catalog); err != nil {
			return nil, fmt.Errorf("store catalog %q: %w", name, err)
		}
		return def, nil
	}

	stored, err := store.LoadCatalog(ctx, DefaultStoredName)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		programs, err := rewards.NewProgramSet(stored, rewards.DefaultPrograms()...)
		if err != nil {
			// stored rules no longer match the preset programs
			programs, err = rewards.NewProgramSet(stored, rewards.Program{
				Name:        rewards.ProgramStandard,
				Description: "Every rule in the catalog",
				Rules:       stored.IDs(),
			})
			if err != nil {
				return nil, err
			}
		}
		return &CatalogDefinition{Name: DefaultStoredName, Catalog: stored, Programs: programs}, nil
	}

	def, err := f.ParseCatalog(rewards.DefaultCatalogJSON())
	if err != nil {
		return nil, err
	}
	if err := store.SaveCatalog(ctx, DefaultStoredName, def.Catalog); err != nil {
		return nil, fmt.Errorf("store catalog %q: %w", DefaultStoredName, err)
	}
	return def, nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseRule(rj RuleJSON) (*generic.Rule, error) {
	id := generic.RuleID(rj.ID)
	if rj.CatchAll && len(rj.Requirements) > 0 {
		return nil, &generic.InvalidRuleError{ID: id, Reason: "catch-all rule cannot have requirements"}
	}
	if !rj.CatchAll && len(rj.Requirements) == 0 {
		return nil, &generic.InvalidRuleError{ID: id, Reason: "no requirements; set catch_all for a catch-all rule"}
	}

	reqs := make([]generic.Requirement, 0, len(rj.Requirements))
	for _, req := range rj.Requirements {
		reqs = append(reqs, generic.Requirement{
			Merchant: generic.MerchantID(strings.TrimSpace(req.Merchant)),
			Amount:   decimal.NewFromFloat(req.Amount),
		})
	}

	r, err := generic.NewRule(id, generic.Points(rj.Reward), reqs...)
	if err != nil {
		return nil, err
	}
	if rj.Description != "" {
		r = r.WithDescription(rj.Description)
	}
	return r, nil
}
