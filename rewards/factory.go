/*
factory.go - JSON presets for the catalog factory

These helpers render catalog definitions as JSON documents in the schema
the factory package parses. They build the JSON directly to avoid an
import cycle with the factory package.

USAGE:
  import "github.com/warp/rewards-engine/rewards"

  jsonStr := rewards.DefaultCatalogJSON()
  def, err := factory.NewCatalogFactory().ParseCatalog(jsonStr)
*/
package rewards

import (
	"encoding/json"

	"github.com/warp/rewards-engine/generic"
)

// RuleJSON returns the factory representation of one rule.
func RuleJSON(r *generic.Rule) map[string]interface{} {
	reqs := make([]map[string]interface{}, 0, len(r.Requirements))
	for _, req := range r.Requirements {
		reqs = append(reqs, map[string]interface{}{
			"merchant": string(req.Merchant),
			"amount":   req.Amount.InexactFloat64(),
		})
	}
	rj := map[string]interface{}{
		"id":     int(r.ID),
		"reward": int64(r.Reward),
	}
	if r.Description != "" {
		rj["description"] = r.Description
	}
	if r.IsCatchAll() {
		rj["catch_all"] = true
	} else {
		rj["requirements"] = reqs
	}
	return rj
}

// ProgramJSON returns the factory representation of one program.
func ProgramJSON(p Program) map[string]interface{} {
	ids := make([]int, len(p.Rules))
	for i, id := range p.Rules {
		ids[i] = int(id)
	}
	pj := map[string]interface{}{
		"name":  p.Name,
		"rules": ids,
	}
	if p.Description != "" {
		pj["description"] = p.Description
	}
	return pj
}

// CatalogJSON renders rules and programs as one catalog document.
func CatalogJSON(name string, rules []*generic.Rule, programs []Program) string {
	rj := make([]map[string]interface{}, 0, len(rules))
	for _, r := range rules {
		rj = append(rj, RuleJSON(r))
	}
	pj := make([]map[string]interface{}, 0, len(programs))
	for _, p := range programs {
		pj = append(pj, ProgramJSON(p))
	}
	doc := map[string]interface{}{
		"name":     name,
		"rules":    rj,
		"programs": pj,
	}
	b, _ := json.MarshalIndent(doc, "", "  ")
	return string(b)
}

// DefaultCatalogJSON returns the default catalog and its programs.
func DefaultCatalogJSON() string {
	return CatalogJSON("default", DefaultRules(), DefaultPrograms())
}
