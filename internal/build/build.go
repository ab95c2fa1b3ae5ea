// Package build turns a run's general-ledger costs into the built ledger that
// disbursement starts from: feeder adjustment, run adjustments, model mapping,
// grouping and the final fold into the "other" cost type.
package build

import (
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gyeh/clincost/internal/ledger"
	"github.com/gyeh/clincost/internal/model"
)

// ErrUnknownMappingType is returned for a move rule whose mapping type is
// neither absolute nor fraction.
var ErrUnknownMappingType = errors.New("unknown mapping type")

// Config is the model and run configuration the engine applies.
type Config struct {
	Feeders                  map[string]model.Feeder // keyed by feeder code
	FeederAccounts           []model.FeederAccount
	FeederTotals             []model.FeederTotal
	Adjustments              []model.MoveRule
	Mapping                  []model.MoveRule
	DepartmentGroups         []model.DepartmentGroup
	DepartmentCostTypeGroups []model.DepartmentCostTypeGroup
	CostTypeGroups           []model.CostTypeGroup
}

// Result holds the three ledger snapshots the engine produces.
type Result struct {
	Adjusted  *ledger.Ledger // after feeder adjustment
	Mapped    *ledger.Ledger // after run adjustments and mapping
	Built     *ledger.Ledger // after grouping and folding
	Preserved map[string]bool
	Warnings  int
}

// Engine applies a build Config to a ledger.
type Engine struct {
	log      zerolog.Logger
	warnings int
}

// New returns an Engine that reports skipped rules on log.
func New(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "build").Logger()}
}

// Run applies cfg to a copy of costs. The input ledger is not modified.
func (e *Engine) Run(costs *ledger.Ledger, cfg *Config) (*Result, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	e.warnings = 0
	l := costs.Clone()
	preserved := make(map[string]bool)

	e.adjustFeeders(l, cfg)
	adjusted := l.Clone()

	e.applyMoves(l, "run adjustment", cfg.Adjustments, preserved)
	e.applyMoves(l, "general ledger mapping", sortByOrder(cfg.Mapping), preserved)
	mapped := l.Clone()

	e.groupDepartments(l, cfg.DepartmentGroups)
	e.groupDepartmentCostTypes(l, cfg.DepartmentCostTypeGroups, preserved)
	e.groupCostTypes(l, cfg.CostTypeGroups, preserved)
	foldOther(l, preserved)

	e.log.Info().
		Str("general_ledger", costs.Total().StringFixed(2)).
		Str("adjusted", adjusted.Total().StringFixed(2)).
		Str("mapped", mapped.Total().StringFixed(2)).
		Str("built", l.Total().StringFixed(2)).
		Int("warnings", e.warnings).
		Msg("ledger built")

	return &Result{
		Adjusted:  adjusted,
		Mapped:    mapped,
		Built:     l,
		Preserved: preserved,
		Warnings:  e.warnings,
	}, nil
}

func validate(cfg *Config) error {
	for _, rules := range [][]model.MoveRule{cfg.Adjustments, cfg.Mapping} {
		for _, r := range rules {
			if _, ok := model.ParseMoveMode(string(r.Mode)); !ok {
				return model.NewConfigError(ErrUnknownMappingType, "invalid move rule",
					"mapping_type_code", string(r.Mode),
					"from", r.From.String(), "to", r.To.String())
			}
		}
	}
	return nil
}

// adjustFeeders moves itemized cost-based feeder amounts out of the accounts
// they were booked against and into the feeder's model account.
func (e *Engine) adjustFeeders(l *ledger.Ledger, cfg *Config) {
	dest := make(map[string]model.AccountKey, len(cfg.FeederAccounts))
	for _, fa := range cfg.FeederAccounts {
		dest[fa.Feeder] = fa.To
	}
	for _, ft := range aggregateFeederTotals(cfg.FeederTotals) {
		to, ok := dest[ft.Feeder]
		if !ok {
			e.warn().Str("feeder_code", ft.Feeder).Msg("feeder not in model, itemized costs left in place")
			continue
		}
		f, ok := cfg.Feeders[ft.Feeder]
		if !ok {
			e.warn().Str("feeder_code", ft.Feeder).Msg("feeder not registered for hospital")
			continue
		}
		if !f.CostBased() {
			continue
		}
		if moved := l.MoveCosts(ft.Account, ft.Amount, to, model.MoveAbsolute); moved.IsZero() {
			e.warn().
				Str("feeder_code", ft.Feeder).
				Str("department_code", ft.Account.Department).
				Str("cost_type_code", ft.Account.CostType).
				Msg("no general ledger cost to move for feeder")
		}
	}
}

func (e *Engine) applyMoves(l *ledger.Ledger, what string, rules []model.MoveRule, preserved map[string]bool) {
	for _, r := range rules {
		preserved[r.To.CostType] = true
		mode, _ := model.ParseMoveMode(string(r.Mode))
		if moved := l.MoveCosts(r.From, r.Amount, r.To, mode); moved.IsZero() {
			e.warn().
				Str("rule", what).
				Str("from", r.From.String()).
				Str("to", r.To.String()).
				Msg("nothing to move")
		}
	}
}

// groupDepartments moves every cost type of the source department, one move
// per existing account.
func (e *Engine) groupDepartments(l *ledger.Ledger, groups []model.DepartmentGroup) {
	for _, g := range groups {
		keys := l.KeysWhere(func(k model.AccountKey) bool { return k.Department == g.FromDepartment })
		if len(keys) == 0 {
			e.warn().Str("department_code", g.FromDepartment).Msg("no costs for department")
			continue
		}
		for _, from := range keys {
			bal, _ := l.Balance(from)
			to := model.AccountKey{Department: g.ToDepartment, CostType: from.CostType}
			l.MoveCosts(from, bal, to, model.MoveAbsolute)
		}
	}
}

func (e *Engine) groupDepartmentCostTypes(l *ledger.Ledger, groups []model.DepartmentCostTypeGroup, preserved map[string]bool) {
	for _, g := range groups {
		preserved[g.ToCostType] = true
		from := model.AccountKey{Department: g.Department, CostType: g.FromCostType}
		bal, ok := l.Balance(from)
		if !ok || bal.IsZero() {
			e.warn().Str("account", from.String()).Msg("no costs for department cost type")
			continue
		}
		l.MoveCosts(from, bal, model.AccountKey{Department: g.Department, CostType: g.ToCostType}, model.MoveAbsolute)
	}
}

func (e *Engine) groupCostTypes(l *ledger.Ledger, groups []model.CostTypeGroup, preserved map[string]bool) {
	for _, g := range groups {
		preserved[g.ToCostType] = true
		keys := l.KeysWhere(func(k model.AccountKey) bool { return k.CostType == g.FromCostType })
		if len(keys) == 0 {
			e.warn().Str("cost_type_code", g.FromCostType).Msg("no costs for cost type")
			continue
		}
		for _, from := range keys {
			bal, _ := l.Balance(from)
			l.MoveCosts(from, bal, model.AccountKey{Department: from.Department, CostType: g.ToCostType}, model.MoveAbsolute)
		}
	}
}

// foldOther moves every account whose cost type is not preserved into the
// department's "other" account.
func foldOther(l *ledger.Ledger, preserved map[string]bool) {
	keys := l.KeysWhere(func(k model.AccountKey) bool {
		return k.CostType != model.OtherCostType && !preserved[k.CostType]
	})
	for _, from := range keys {
		bal, _ := l.Balance(from)
		l.MoveCosts(from, bal, model.AccountKey{Department: from.Department, CostType: model.OtherCostType}, model.MoveAbsolute)
	}
}

func (e *Engine) warn() *zerolog.Event {
	e.warnings++
	return e.log.Warn()
}

// aggregateFeederTotals sums totals per (feeder, account) in a stable order.
func aggregateFeederTotals(totals []model.FeederTotal) []model.FeederTotal {
	type key struct {
		feeder  string
		account model.AccountKey
	}
	idx := make(map[key]int)
	var out []model.FeederTotal
	for _, t := range totals {
		k := key{t.Feeder, t.Account}
		if i, ok := idx[k]; ok {
			out[i].Amount = out[i].Amount.Add(t.Amount)
			continue
		}
		idx[k] = len(out)
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Feeder != out[j].Feeder {
			return out[i].Feeder < out[j].Feeder
		}
		return out[i].Account.Less(out[j].Account)
	})
	return out
}

func sortByOrder(rules []model.MoveRule) []model.MoveRule {
	sorted := make([]model.MoveRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	return sorted
}
