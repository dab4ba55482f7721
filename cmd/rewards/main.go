/*
main.go - One-shot reward calculation from a transaction file

PURPOSE:
  Reads a transaction file, aggregates spend per merchant and prints the
  reward allocation. No database, no server: the same engine the API
  uses, driven from the command line.

COMMAND-LINE FLAGS:
  -transactions  Transaction JSON file (required)
  -rules         Comma-separated rule ids, e.g. 1,3,5,7 (greedy priority order)
  -program       Card program name, used when -rules is empty (default: standard)
  -strategy      optimal or greedy (default: optimal)
  -format        text or json (default: text)
  -compare       Print both strategies and the optimizer gain
  -monthly       One statement per calendar month instead of one total
  -from, -to     Inclusive date bounds, YYYY-MM-DD
  -catalog       Catalog file (.json, .yaml, .yml); built-in rules when empty
  -node-limit    Branch-and-bound node budget (0: solver default)

EXIT STATUS:
  0 on success, 1 on any error (message on stderr).

EXAMPLES:
  ./rewards -transactions=./statement.json
  ./rewards -transactions=./statement.json -rules=1,3,5,7 -strategy=greedy
  ./rewards -transactions=./statement.json -compare -format=json
  ./rewards -transactions=./year.json -monthly -from=2021-05-01 -to=2021-07-31

SEE ALSO:
  - ingest/ingest.go: File format
  - report/report.go: Output formats
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/warp/rewards-engine/factory"
	"github.com/warp/rewards-engine/generic"
	"github.com/warp/rewards-engine/ingest"
	"github.com/warp/rewards-engine/report"
	"github.com/warp/rewards-engine/rewards"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "rewards:", err)
		os.Exit(1)
	}
}

type options struct {
	transactions string
	rules        string
	program      string
	strategy     string
	format       string
	compare      bool
	monthly      bool
	from         string
	to           string
	catalog      string
	nodeLimit    int
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("rewards", flag.ContinueOnError)
	fs.StringVar(&o.transactions, "transactions", "", "Transaction JSON file")
	fs.StringVar(&o.rules, "rules", "", "Comma-separated rule ids")
	fs.StringVar(&o.program, "program", rewards.ProgramStandard, "Card program name")
	fs.StringVar(&o.strategy, "strategy", string(generic.StrategyOptimal), "optimal or greedy")
	fs.StringVar(&o.format, "format", string(report.FormatText), "text or json")
	fs.BoolVar(&o.compare, "compare", false, "Print both strategies and the optimizer gain")
	fs.BoolVar(&o.monthly, "monthly", false, "One statement per calendar month")
	fs.StringVar(&o.from, "from", "", "Start date (inclusive), YYYY-MM-DD")
	fs.StringVar(&o.to, "to", "", "End date (inclusive), YYYY-MM-DD")
	fs.StringVar(&o.catalog, "catalog", "", "Catalog file")
	fs.IntVar(&o.nodeLimit, "node-limit", 0, "Branch-and-bound node budget")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.transactions == "" {
		return o, errors.New("-transactions is required")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(o.format)
	if err != nil {
		return err
	}
	strategy, err := generic.ParseStrategy(o.strategy)
	if err != nil {
		return err
	}

	def, err := loadCatalog(o.catalog)
	if err != nil {
		return err
	}
	ids, err := ruleIDs(def, o.rules, o.program)
	if err != nil {
		return err
	}

	txs, err := ingest.ParseFile(o.transactions, "")
	if err != nil {
		return err
	}
	period, err := parsePeriod(o.from, o.to)
	if err != nil {
		return err
	}
	txs = period.Filter(txs)

	calc := rewards.NewCalculator(def.Catalog, o.nodeLimit)

	if !o.monthly {
		spend, err := generic.AggregateSpend(txs)
		if err != nil {
			return err
		}
		return calculate(ctx, stdout, calc, format, strategy, o.compare, ids, spend)
	}

	statements, err := rewards.MonthlyStatements(txs)
	if err != nil {
		return err
	}
	if format == report.FormatJSON {
		return monthlyJSON(ctx, stdout, calc, strategy, o.compare, ids, statements)
	}
	for i, st := range statements {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		fmt.Fprintf(stdout, "== %s ==\n", st.Period)
		if err := calculate(ctx, stdout, calc, format, strategy, o.compare, ids, st.Spend); err != nil {
			return err
		}
	}
	return nil
}

func calculate(ctx context.Context, w io.Writer, calc *generic.Calculator, format report.Format, strategy generic.Strategy, compare bool, ids []generic.RuleID, spend generic.Spend) error {
	if compare {
		cmp, err := calc.Compare(ctx, ids, spend)
		if err != nil {
			return err
		}
		return report.WriteComparison(w, format, cmp)
	}
	alloc, err := calc.Calculate(ctx, generic.CalculationRequest{RuleIDs: ids, Spend: spend, Strategy: strategy})
	if err != nil {
		return err
	}
	return report.Write(w, format, generic.Summarize(alloc))
}

type monthDocument struct {
	Period     string                     `json:"period"`
	Result     *report.Document           `json:"result,omitempty"`
	Comparison *report.ComparisonDocument `json:"comparison,omitempty"`
}

func monthlyJSON(ctx context.Context, w io.Writer, calc *generic.Calculator, strategy generic.Strategy, compare bool, ids []generic.RuleID, statements []rewards.Statement) error {
	docs := make([]monthDocument, 0, len(statements))
	for _, st := range statements {
		doc := monthDocument{Period: st.Period.String()}
		if compare {
			cmp, err := calc.Compare(ctx, ids, st.Spend)
			if err != nil {
				return err
			}
			c := report.NewComparisonDocument(cmp)
			doc.Comparison = &c
		} else {
			alloc, err := calc.Calculate(ctx, generic.CalculationRequest{RuleIDs: ids, Spend: st.Spend, Strategy: strategy})
			if err != nil {
				return err
			}
			d := report.NewDocument(generic.Summarize(alloc))
			doc.Result = &d
		}
		docs = append(docs, doc)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

func loadCatalog(path string) (*factory.CatalogDefinition, error) {
	f := factory.NewCatalogFactory()
	if path != "" {
		return f.LoadFile(path)
	}
	return f.ParseCatalog(rewards.DefaultCatalogJSON())
}

// ruleIDs returns the explicit -rules list when given, else the program's.
func ruleIDs(def *factory.CatalogDefinition, rules, program string) ([]generic.RuleID, error) {
	if strings.TrimSpace(rules) == "" {
		p, err := def.Programs.Lookup(program)
		if err != nil {
			return nil, err
		}
		return p.Rules, nil
	}
	var ids []generic.RuleID
	for _, part := range strings.Split(rules, ",") {
		id, err := generic.ParseRuleID(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parsePeriod leaves a missing bound open; with both missing the zero
// Period filters nothing.
func parsePeriod(from, to string) (generic.Period, error) {
	var start, end generic.TimePoint
	var err error
	if from != "" {
		if start, err = generic.ParseDate(from); err != nil {
			return generic.Period{}, err
		}
	}
	if to != "" {
		if end, err = generic.ParseDate(to); err != nil {
			return generic.Period{}, err
		}
	}
	return generic.NewPeriod(start, end)
}
