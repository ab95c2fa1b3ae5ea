// Package disburse empties indirect general-ledger accounts into the accounts
// that share their attribute, weighted by attribute weight.
package disburse

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gyeh/clincost/internal/ledger"
	"github.com/gyeh/clincost/internal/model"
)

// TotalAttributePrefix marks attributes whose weight is the live total of the
// attribute row's department rather than a configured value.
const TotalAttributePrefix = "total"

var (
	ErrNegativeWeight = errors.New("general ledger attribute weight must not be negative")
	ErrDiverged       = errors.New("faulty iteration model: indirect costs cannot drain")
	ErrIterationCap   = errors.New("iteration cap reached before indirect costs drained")
)

// Outcome says how a disbursement run ended.
type Outcome int

const (
	Converged Outcome = iota
	Cascaded
	Diverged
	HitIterationCap
)

func (o Outcome) String() string {
	switch o {
	case Converged:
		return "converged"
	case Cascaded:
		return "cascaded"
	case Diverged:
		return "diverged"
	case HitIterationCap:
		return "hit_iteration_cap"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Config is the disbursement model for one run.
type Config struct {
	Rules      []model.DisbursementRule
	Attributes []model.AttributeWeight
	Overrides  []model.AttributeWeight // gl_attributes_run_adjustments

	Iterate       bool
	MaxIterations int
	Tolerance     float64
}

// Result is the disbursed ledger plus how the run ended.
type Result struct {
	Ledger          *ledger.Ledger
	Outcome         Outcome
	Iterations      int
	InitialIndirect decimal.Decimal
	Residual        decimal.Decimal
	Attributes      []model.AttributeWeight // weights after refresh and overrides
	Warnings        int
}

// Engine runs disbursement.
type Engine struct {
	log      zerolog.Logger
	warnings int
}

// New returns an Engine logging to log.
func New(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "disburse").Logger()}
}

type target struct {
	account model.AccountKey
	weight  float64
}

// Run disburses a copy of built. On Diverged or HitIterationCap the partial
// Result is returned together with an error wrapping model.ErrConfig.
func (e *Engine) Run(built *ledger.Ledger, cfg *Config) (*Result, error) {
	e.warnings = 0
	l := built.Clone()

	attrs := e.effectiveAttributes(l, cfg)
	byCode := make(map[string][]model.AttributeWeight)
	for _, a := range attrs {
		byCode[a.AttributeCode] = append(byCode[a.AttributeCode], a)
	}

	levels, levelOf := groupLevels(cfg.Rules)
	tolerance := decimal.NewFromFloat(cfg.Tolerance)
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = model.DefaultOptions().MaxIterations
	}

	res := &Result{Ledger: l, Attributes: attrs, Outcome: Cascaded}
	if cfg.Iterate {
		res.Outcome = Converged
	}
	res.InitialIndirect = residual(l, cfg.Rules)
	res.Residual = res.InitialIndirect
	e.log.Info().Str("indirect", res.InitialIndirect.StringFixed(2)).Bool("iterate", cfg.Iterate).Msg("initial indirect costs")

	var last *decimal.Decimal
	for res.Residual.GreaterThan(tolerance) {
		if res.Iterations >= maxIter {
			res.Outcome = HitIterationCap
			res.Warnings = e.warnings
			return res, model.NewConfigError(ErrIterationCap, "disbursement did not converge",
				"iterations", fmt.Sprint(res.Iterations), "residual", res.Residual.StringFixed(2))
		}
		res.Iterations++
		for _, lvl := range levels {
			for _, rule := range lvl.rules {
				if err := e.disburseAccount(l, rule, byCode[rule.AttributeCode], levelOf, cfg.Iterate); err != nil {
					res.Warnings = e.warnings
					return nil, err
				}
			}
		}
		res.Residual = residual(l, cfg.Rules)

		if !cfg.Iterate {
			break
		}
		e.log.Debug().Int("iteration", res.Iterations).Str("residual", res.Residual.StringFixed(2)).Msg("iteration complete")
		if last != nil && last.Equal(res.Residual) && res.Residual.GreaterThan(tolerance) {
			res.Outcome = Diverged
			res.Warnings = e.warnings
			return res, model.NewConfigError(ErrDiverged, "indirect costs remain in indirect accounts",
				"iterations", fmt.Sprint(res.Iterations), "residual", res.Residual.StringFixed(2))
		}
		r := res.Residual
		last = &r
	}

	res.Warnings = e.warnings
	e.log.Info().
		Str("outcome", res.Outcome.String()).
		Int("iterations", res.Iterations).
		Str("residual", res.Residual.StringFixed(2)).
		Str("disbursed", l.Total().StringFixed(2)).
		Msg("indirect costs disbursed")
	return res, nil
}

// disburseAccount splits the indirect balance of rule.Account across the
// accounts carrying its attribute. The last target takes the rounding
// remainder so the indirect account drains exactly.
func (e *Engine) disburseAccount(l *ledger.Ledger, rule model.DisbursementRule, candidates []model.AttributeWeight, levelOf map[model.AccountKey]int, iterate bool) error {
	balance, ok := l.Balance(rule.Account)
	if !ok || balance.IsZero() {
		return nil
	}

	var targets []target
	total := 0.0
	for _, c := range candidates {
		if !iterate {
			if lvl, indirect := levelOf[c.Account]; indirect && lvl <= rule.Level {
				continue
			}
		}
		if c.Weight < 0 {
			return model.NewConfigError(ErrNegativeWeight, "invalid attribute weight",
				"department_code", c.Account.Department,
				"cost_type_code", c.Account.CostType,
				"general_ledger_attribute_code", c.AttributeCode,
				"general_ledger_attribute_weight", fmt.Sprint(c.Weight))
		}
		targets = append(targets, target{account: c.Account, weight: c.Weight})
		total += c.Weight
	}
	if total == 0 {
		return nil
	}

	totalWeight := decimal.NewFromFloat(total)
	remaining := balance
	for i, t := range targets {
		share := remaining
		if i < len(targets)-1 {
			share = balance.Mul(decimal.NewFromFloat(t.weight)).Div(totalWeight).Round(ledger.Scale)
		}
		remaining = remaining.Sub(share)
		l.MoveCosts(rule.Account, share, t.account, model.MoveAbsolute)
	}
	return nil
}

// effectiveAttributes refreshes total* weights from the live ledger, then
// applies the run's overrides.
func (e *Engine) effectiveAttributes(l *ledger.Ledger, cfg *Config) []model.AttributeWeight {
	deptTotals := l.DepartmentTotals()
	attrs := make([]model.AttributeWeight, len(cfg.Attributes))
	known := make(map[string]bool)
	index := make(map[model.AttributeWeight]int)
	for i, a := range cfg.Attributes {
		if strings.HasPrefix(a.AttributeCode, TotalAttributePrefix) {
			// absent departments get a zero weight
			a.Weight = deptTotals[a.Account.Department].InexactFloat64()
		}
		attrs[i] = a
		known[a.AttributeCode] = true
		index[model.AttributeWeight{Account: a.Account, AttributeCode: a.AttributeCode}] = i
	}

	for _, o := range cfg.Overrides {
		if !known[o.AttributeCode] {
			e.warnings++
			e.log.Warn().
				Str("general_ledger_attribute_code", o.AttributeCode).
				Msg("run attribute adjustment not in model, skipped")
			continue
		}
		if i, ok := index[model.AttributeWeight{Account: o.Account, AttributeCode: o.AttributeCode}]; ok {
			attrs[i].Weight = o.Weight
		}
	}
	return attrs
}

type level struct {
	level int
	rules []model.DisbursementRule
}

// groupLevels orders rules by ascending level, keeping configuration order
// within a level.
func groupLevels(rules []model.DisbursementRule) ([]level, map[model.AccountKey]int) {
	levelOf := make(map[model.AccountKey]int, len(rules))
	byLevel := make(map[int][]model.DisbursementRule)
	for _, r := range rules {
		levelOf[r.Account] = r.Level
		byLevel[r.Level] = append(byLevel[r.Level], r)
	}
	out := make([]level, 0, len(byLevel))
	for lvl, rs := range byLevel {
		out = append(out, level{level: lvl, rules: rs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].level < out[j].level })
	return out, levelOf
}

// residual is the summed magnitude of every indirect account balance.
func residual(l *ledger.Ledger, rules []model.DisbursementRule) decimal.Decimal {
	seen := make(map[model.AccountKey]bool, len(rules))
	sum := decimal.Zero
	for _, r := range rules {
		if seen[r.Account] {
			continue
		}
		seen[r.Account] = true
		if bal, ok := l.Balance(r.Account); ok {
			sum = sum.Add(bal.Abs())
		}
	}
	return sum
}
