package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gyeh/clincost/internal/build"
	"github.com/gyeh/clincost/internal/db"
	"github.com/gyeh/clincost/internal/disburse"
	"github.com/gyeh/clincost/internal/events"
	"github.com/gyeh/clincost/internal/model"
	"github.com/gyeh/clincost/internal/store"
)

var ErrNegativeFraction = errors.New("distribution fraction must not be negative")

// CheckReport is the outcome of checking a model and run before costing.
// Errors stop the pipeline; warnings are only reported.
type CheckReport struct {
	Errors   []error
	Warnings []string
	Counts   map[string]int
}

// Err joins the report's errors, or returns nil.
func (r *CheckReport) Err() error {
	return errors.Join(r.Errors...)
}

func (r *CheckReport) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Check reads the configuration of key and reports what would stop or
// degrade a costing run: unknown subroutines, invalid mapping types, negative
// weights and fractions, fractions summing past one and disbursement
// attributes nothing carries.
func Check(ctx context.Context, q db.Pool, key model.RunKey) (*CheckReport, error) {
	r := &CheckReport{Counts: make(map[string]int)}

	bc, err := store.LoadBuildConfig(ctx, q, key)
	if err != nil {
		return nil, err
	}
	r.Counts["mapping"] = len(bc.Mapping)
	r.Counts["run_adjustments"] = len(bc.Adjustments)
	for _, rules := range [][]model.MoveRule{bc.Adjustments, bc.Mapping} {
		for _, m := range rules {
			if _, ok := model.ParseMoveMode(string(m.Mode)); !ok {
				r.Errors = append(r.Errors, model.NewConfigError(build.ErrUnknownMappingType, "invalid move rule",
					"mapping_type_code", string(m.Mode), "from", m.From.String()))
			}
		}
	}

	dc, err := store.LoadDisburseConfig(ctx, q, key)
	if err != nil {
		return nil, err
	}
	r.Counts["disbursement_rules"] = len(dc.Rules)
	carried := make(map[string]bool)
	for _, w := range append(dc.Attributes, dc.Overrides...) {
		carried[w.AttributeCode] = true
		if w.Weight < 0 {
			r.Errors = append(r.Errors, model.NewConfigError(disburse.ErrNegativeWeight, "negative attribute weight",
				"general_ledger_attribute_code", w.AttributeCode, "account", w.Account.String()))
		}
	}
	for _, rule := range dc.Rules {
		if !carried[rule.AttributeCode] && !strings.HasPrefix(rule.AttributeCode, disburse.TotalAttributePrefix) {
			r.warnf("disbursement of %s uses attribute %s that no account carries", rule.Account, rule.AttributeCode)
		}
	}

	attrs, err := store.LoadEventAttributes(ctx, q, key)
	if err != nil {
		return nil, err
	}
	r.Counts["event_attributes"] = len(attrs)
	for _, a := range attrs {
		if _, err := events.ParseSubroutine(a.Subroutine); err != nil {
			r.Errors = append(r.Errors, fmt.Errorf("event %s/%s: %w", a.EventCode, a.AttributeCode, err))
		}
		if a.Weight < 0 || a.Base < 0 {
			r.warnf("event %s/%s has a negative base or weight", a.EventCode, a.AttributeCode)
		}
	}

	distc, err := store.LoadDistributeConfig(ctx, q, key)
	if err != nil {
		return nil, err
	}
	r.Counts["distribution_rules"] = len(distc.Rules)
	sums := make(map[model.AccountKey]float64)
	for _, d := range distc.Rules {
		if d.Fraction < 0 {
			r.Errors = append(r.Errors, model.NewConfigError(ErrNegativeFraction, "negative distribution fraction",
				"account", d.Account.String(), "distribution_code", d.DistributionCode))
		}
		sums[d.Account] += d.Fraction
	}
	for acct, sum := range sums {
		if sum > 1+1e-9 {
			r.warnf("distribution fractions of %s sum to %.4f", acct, sum)
		}
	}

	costs, err := store.LoadLedger(ctx, q, store.GeneralLedgerCosts, key)
	if err != nil {
		return nil, err
	}
	r.Counts["general_ledger_costs"] = costs.Len()
	if costs.Len() == 0 {
		r.warnf("run %s has no general ledger costs", key.Run)
	}
	return r, nil
}
