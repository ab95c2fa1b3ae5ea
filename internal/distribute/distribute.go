// Package distribute spreads the balance of direct general-ledger accounts
// across events by event weight.
package distribute

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gyeh/clincost/internal/ledger"
	"github.com/gyeh/clincost/internal/model"
)

// UndistributedThreshold is the smallest absolute balance reported as
// undistributed.
var UndistributedThreshold = decimal.RequireFromString("0.10")

// Config is the distribution model for one run.
type Config struct {
	Rules          []model.DistributionRule
	Feeders        map[string]model.Feeder
	FeederAccounts []model.FeederAccount
	FeederLines    []model.ItemizedCost
	Remainder      model.RemainderPolicy
}

// Result holds the event costs and what was left behind.
type Result struct {
	EventCosts    []model.EventCost
	Ledger        *ledger.Ledger
	Undistributed []model.Account
	Distributed   decimal.Decimal
	Warnings      int
}

// Engine runs distribution.
type Engine struct {
	log      zerolog.Logger
	warnings int
}

// New returns an Engine logging to log.
func New(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "distribute").Logger()}
}

// Run distributes a copy of disbursed over events.
func (e *Engine) Run(disbursed *ledger.Ledger, events []model.Event, cfg *Config) (*Result, error) {
	if _, err := model.ParseRemainderPolicy(string(cfg.Remainder)); err != nil {
		return nil, err
	}
	e.warnings = 0
	l := disbursed.Clone()
	res := &Result{Ledger: l, Distributed: decimal.Zero}

	e.feederCosts(l, cfg, res)

	byCode := make(map[string][]model.Event)
	for _, ev := range events {
		byCode[ev.DistributionCode] = append(byCode[ev.DistributionCode], ev)
	}

	for _, group := range groupRules(cfg.Rules) {
		acct := group.account
		balance, ok := l.Balance(acct)
		if !ok {
			e.warn().Str("department_code", acct.Department).Str("cost_type_code", acct.CostType).
				Msg("no account in general_ledger_disbursed")
			continue
		}
		for _, rule := range group.rules {
			rowCost := balance.Mul(decimal.NewFromFloat(rule.Fraction)).Round(ledger.Scale)
			if rowCost.IsZero() {
				continue
			}
			matched := byCode[rule.DistributionCode]
			if len(matched) == 0 {
				e.warn().Str("distribution_code", rule.DistributionCode).Str("account", acct.String()).
					Msg("no events for distribution code")
				continue
			}
			costs, ok := allocate(acct, rule.DistributionCode, rowCost, matched)
			if !ok {
				e.warn().Str("distribution_code", rule.DistributionCode).Str("account", acct.String()).
					Msg("events for distribution code have no weight")
				continue
			}
			res.EventCosts = append(res.EventCosts, costs...)
			res.Distributed = res.Distributed.Add(rowCost)
			current, _ := l.Balance(acct)
			l.Set(acct, current.Sub(rowCost))
		}
		if cfg.Remainder == model.RemainderAbsorb {
			l.Zero(acct)
		}
	}

	for _, a := range l.Rows() {
		if a.Cost.Abs().GreaterThan(UndistributedThreshold) {
			res.Undistributed = append(res.Undistributed, a)
		}
	}
	res.Warnings = e.warnings

	undistributed := decimal.Zero
	for _, a := range res.Undistributed {
		undistributed = undistributed.Add(a.Cost)
	}
	e.log.Info().
		Str("distributed", res.Distributed.StringFixed(2)).
		Str("undistributed", undistributed.StringFixed(2)).
		Int("event_costs", len(res.EventCosts)).
		Int("warnings", res.Warnings).
		Msg("costs distributed")
	return res, nil
}

// feederCosts books every cost-based feeder line directly against its event
// and zeroes the feeder's model account so the line is not distributed twice.
func (e *Engine) feederCosts(l *ledger.Ledger, cfg *Config, res *Result) {
	for _, fa := range cfg.FeederAccounts {
		if f, ok := cfg.Feeders[fa.Feeder]; ok && f.CostBased() {
			l.Zero(fa.To)
		}
	}
	for _, line := range cfg.FeederLines {
		f, ok := cfg.Feeders[line.Feeder]
		if !ok || !f.CostBased() {
			continue
		}
		res.EventCosts = append(res.EventCosts, model.EventCost{
			EventID: model.EventID{
				EventCode:     line.Feeder,
				AttributeCode: line.Feeder,
				Service:       line.Service,
				EpisodeNo:     line.EpisodeNo,
				Seq:           line.InvoiceLineNo,
				What:          line.InvoiceNo,
			},
			Account:          line.Account,
			DistributionCode: line.Feeder,
			Cost:             line.Amount,
		})
		res.Distributed = res.Distributed.Add(line.Amount)
	}
}

// allocate splits cost across events by weight. The last event takes the
// rounding remainder so the parts sum to cost exactly. ok is false when the
// events carry no weight.
func allocate(acct model.AccountKey, code string, cost decimal.Decimal, events []model.Event) ([]model.EventCost, bool) {
	total := 0.0
	for _, ev := range events {
		total += ev.Weight
	}
	if total == 0 {
		return nil, false
	}
	totalWeight := decimal.NewFromFloat(total)
	out := make([]model.EventCost, 0, len(events))
	remaining := cost
	for i, ev := range events {
		part := remaining
		if i < len(events)-1 {
			part = cost.Mul(decimal.NewFromFloat(ev.Weight)).Div(totalWeight).Round(ledger.Scale)
		}
		remaining = remaining.Sub(part)
		out = append(out, model.EventCost{
			EventID:          ev.EventID,
			Account:          acct,
			DistributionCode: code,
			Cost:             part,
		})
	}
	return out, true
}

type ruleGroup struct {
	account model.AccountKey
	rules   []model.DistributionRule
}

// groupRules groups rules by account, keeping first-seen account order.
func groupRules(rules []model.DistributionRule) []ruleGroup {
	idx := make(map[model.AccountKey]int)
	var out []ruleGroup
	for _, r := range rules {
		i, ok := idx[r.Account]
		if !ok {
			i = len(out)
			idx[r.Account] = i
			out = append(out, ruleGroup{account: r.Account})
		}
		out[i].rules = append(out[i].rules, r)
	}
	return out
}

func (e *Engine) warn() *zerolog.Event {
	e.warnings++
	return e.log.Warn()
}
