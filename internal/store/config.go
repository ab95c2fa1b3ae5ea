package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"

	"github.com/gyeh/clincost/internal/build"
	"github.com/gyeh/clincost/internal/db"
	"github.com/gyeh/clincost/internal/disburse"
	"github.com/gyeh/clincost/internal/distribute"
	"github.com/gyeh/clincost/internal/events"
	"github.com/gyeh/clincost/internal/model"
)

// LoadBuildConfig reads the feeder, adjustment, mapping and grouping
// configuration of key.
func LoadBuildConfig(ctx context.Context, q db.Pool, key model.RunKey) (*build.Config, error) {
	cfg := &build.Config{}
	var err error

	if cfg.Feeders, err = LoadFeeders(ctx, q, key); err != nil {
		return nil, err
	}
	if cfg.FeederAccounts, err = LoadFeederAccounts(ctx, q, key); err != nil {
		return nil, err
	}
	cfg.FeederTotals, err = collect(ctx, q,
		"SELECT feeder_code, department_code, cost_type_code, sum(amount) FROM itemized_costs WHERE "+
			runScope.where()+" GROUP BY feeder_code, department_code, cost_type_code"+
			" ORDER BY feeder_code, department_code, cost_type_code",
		runScope.args(key), func(r pgx.Rows) (model.FeederTotal, error) {
			var ft model.FeederTotal
			var amount pgtype.Numeric
			if err := r.Scan(&ft.Feeder, &ft.Account.Department, &ft.Account.CostType, &amount); err != nil {
				return ft, err
			}
			ft.Amount, err = db.Decimal(amount)
			return ft, err
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: itemized cost totals")
	}

	if cfg.Adjustments, err = loadMoveRules(ctx, q, "general_ledger_run_adjustments", runScope, key); err != nil {
		return nil, err
	}
	if cfg.Mapping, err = loadMoveRules(ctx, q, "general_ledger_mapping", modelScope, key); err != nil {
		return nil, err
	}

	cfg.DepartmentGroups, err = collect(ctx, q,
		"SELECT from_department_code, to_department_code FROM department_grouping WHERE "+modelScope.where(),
		modelScope.args(key), func(r pgx.Rows) (model.DepartmentGroup, error) {
			var g model.DepartmentGroup
			return g, r.Scan(&g.FromDepartment, &g.ToDepartment)
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: department_grouping")
	}
	cfg.DepartmentCostTypeGroups, err = collect(ctx, q,
		"SELECT department_code, from_cost_type_code, to_cost_type_code FROM department_cost_type_grouping WHERE "+modelScope.where(),
		modelScope.args(key), func(r pgx.Rows) (model.DepartmentCostTypeGroup, error) {
			var g model.DepartmentCostTypeGroup
			return g, r.Scan(&g.Department, &g.FromCostType, &g.ToCostType)
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: department_cost_type_grouping")
	}
	cfg.CostTypeGroups, err = collect(ctx, q,
		"SELECT from_cost_type_code, to_cost_type_code FROM cost_type_grouping WHERE "+modelScope.where(),
		modelScope.args(key), func(r pgx.Rows) (model.CostTypeGroup, error) {
			var g model.CostTypeGroup
			return g, r.Scan(&g.FromCostType, &g.ToCostType)
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: cost_type_grouping")
	}
	return cfg, nil
}

func loadMoveRules(ctx context.Context, q db.Pool, table string, s scope, key model.RunKey) ([]model.MoveRule, error) {
	sql := "SELECT from_department_code, from_cost_type_code, to_department_code, to_cost_type_code," +
		" mapping_order, mapping_type_code, amount FROM " + table + " WHERE " + s.where() + " ORDER BY mapping_order"
	rules, err := collect(ctx, q, sql, s.args(key), func(r pgx.Rows) (model.MoveRule, error) {
		var m model.MoveRule
		var mode string
		var amount pgtype.Numeric
		if err := r.Scan(&m.From.Department, &m.From.CostType, &m.To.Department, &m.To.CostType,
			&m.Order, &mode, &amount); err != nil {
			return m, err
		}
		m.Mode = model.MoveMode(mode)
		var err error
		m.Amount, err = db.Decimal(amount)
		return m, err
	})
	if err != nil {
		return nil, eris.Wrapf(err, "store: %s", table)
	}
	return rules, nil
}

// LoadFeeders reads the hospital's feeders keyed by feeder code.
func LoadFeeders(ctx context.Context, q db.Pool, key model.RunKey) (map[string]model.Feeder, error) {
	feeders, err := collect(ctx, q, "SELECT feeder_code, feeder_type_code FROM feeders WHERE hospital_code = $1",
		[]any{key.Hospital}, func(r pgx.Rows) (model.Feeder, error) {
			var f model.Feeder
			return f, r.Scan(&f.Code, &f.TypeCode)
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: feeders")
	}
	m := make(map[string]model.Feeder, len(feeders))
	for _, f := range feeders {
		m[f.Code] = f
	}
	return m, nil
}

// LoadFeederAccounts reads the model's feeder destination accounts.
func LoadFeederAccounts(ctx context.Context, q db.Pool, key model.RunKey) ([]model.FeederAccount, error) {
	fas, err := collect(ctx, q,
		"SELECT feeder_code, new_department_code, new_cost_type_code FROM feeder_model WHERE "+modelScope.where()+" ORDER BY feeder_code",
		modelScope.args(key), func(r pgx.Rows) (model.FeederAccount, error) {
			var fa model.FeederAccount
			return fa, r.Scan(&fa.Feeder, &fa.To.Department, &fa.To.CostType)
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: feeder_model")
	}
	return fas, nil
}

// LoadItemizedCosts reads every itemized line of the run.
func LoadItemizedCosts(ctx context.Context, q db.Pool, key model.RunKey) ([]model.ItemizedCost, error) {
	lines, err := collect(ctx, q,
		"SELECT feeder_code, service_code, who, invoice_no, invoice_line_no, item_date, episode_no, what,"+
			" department_code, cost_type_code, amount FROM itemized_costs WHERE "+runScope.where()+
			" ORDER BY feeder_code, invoice_no, invoice_line_no",
		runScope.args(key), func(r pgx.Rows) (model.ItemizedCost, error) {
			var ic model.ItemizedCost
			var date *time.Time
			var amount pgtype.Numeric
			if err := r.Scan(&ic.Feeder, &ic.Service, &ic.Who, &ic.InvoiceNo, &ic.InvoiceLineNo, &date,
				&ic.EpisodeNo, &ic.What, &ic.Account.Department, &ic.Account.CostType, &amount); err != nil {
				return ic, err
			}
			if date != nil {
				ic.ItemDate = *date
			}
			var err error
			ic.Amount, err = db.Decimal(amount)
			return ic, err
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: itemized_costs")
	}
	return lines, nil
}

// LoadDisburseConfig reads the disbursement rules, attribute weights and run
// overrides of key.
func LoadDisburseConfig(ctx context.Context, q db.Pool, key model.RunKey) (*disburse.Config, error) {
	cfg := &disburse.Config{}
	var err error
	cfg.Rules, err = collect(ctx, q,
		"SELECT department_code, cost_type_code, general_ledger_attribute_code, disbursement_level"+
			" FROM general_ledger_disbursement WHERE "+modelScope.where()+
			" ORDER BY disbursement_level, department_code, cost_type_code",
		modelScope.args(key), func(r pgx.Rows) (model.DisbursementRule, error) {
			var d model.DisbursementRule
			return d, r.Scan(&d.Account.Department, &d.Account.CostType, &d.AttributeCode, &d.Level)
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: general_ledger_disbursement")
	}
	if cfg.Attributes, err = loadWeights(ctx, q, "general_ledger_attributes", modelScope, key); err != nil {
		return nil, err
	}
	if cfg.Overrides, err = loadWeights(ctx, q, "gl_attributes_run_adjustments", runScope, key); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadWeights(ctx context.Context, q db.Pool, table string, s scope, key model.RunKey) ([]model.AttributeWeight, error) {
	ws, err := collect(ctx, q,
		"SELECT department_code, cost_type_code, general_ledger_attribute_code, general_ledger_attribute_weight FROM "+
			table+" WHERE "+s.where()+" ORDER BY general_ledger_attribute_code, department_code, cost_type_code",
		s.args(key), func(r pgx.Rows) (model.AttributeWeight, error) {
			var w model.AttributeWeight
			return w, r.Scan(&w.Account.Department, &w.Account.CostType, &w.AttributeCode, &w.Weight)
		})
	if err != nil {
		return nil, eris.Wrapf(err, "store: %s", table)
	}
	return ws, nil
}

// LoadEventConfig reads the event attributes and code tables of key, plus the
// run's itemized lines for feeder events.
func LoadEventConfig(ctx context.Context, q db.Pool, key model.RunKey) (*events.Config, error) {
	cfg := &events.Config{}
	var err error
	if cfg.Attributes, err = LoadEventAttributes(ctx, q, key); err != nil {
		return nil, err
	}
	if cfg.Codes, err = LoadCodeTables(ctx, q, key); err != nil {
		return nil, err
	}
	if cfg.Feeders, err = LoadFeeders(ctx, q, key); err != nil {
		return nil, err
	}
	if cfg.FeederLines, err = LoadItemizedCosts(ctx, q, key); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEventAttributes reads the model's event_attributes rows.
func LoadEventAttributes(ctx context.Context, q db.Pool, key model.RunKey) ([]model.EventAttribute, error) {
	attrs, err := collect(ctx, q,
		"SELECT event_code, event_attribute_code, event_subroutine_name, event_what, event_where,"+
			" event_attribute_base, event_attribute_weight, event_acuity_scaling, event_aggregate"+
			" FROM event_attributes WHERE "+modelScope.where()+" ORDER BY event_code, event_attribute_code",
		modelScope.args(key), func(r pgx.Rows) (model.EventAttribute, error) {
			var a model.EventAttribute
			return a, r.Scan(&a.EventCode, &a.AttributeCode, &a.Subroutine, &a.What, &a.Where,
				&a.Base, &a.Weight, &a.AcuityScaling, &a.Aggregate)
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: event_attributes")
	}
	return attrs, nil
}

// LoadCodeTables caches the code descriptions the event builder needs.
func LoadCodeTables(ctx context.Context, q db.Pool, key model.RunKey) (*model.CodeTables, error) {
	c := model.NewCodeTables()
	hospital := []any{key.Hospital}
	for _, t := range []struct {
		sql  string
		args []any
		into map[string]string
	}{
		{"SELECT event_code, event_description FROM event_codes WHERE " + modelScope.where(), modelScope.args(key), c.EventCodes},
		{"SELECT event_attribute_code, event_attribute_description FROM event_attribute_codes WHERE " + modelScope.where(), modelScope.args(key), c.EventAttributeCodes},
		{"SELECT distribution_code, distribution_description FROM distribution_codes WHERE " + modelScope.where(), modelScope.args(key), c.DistributionCodes},
		{"SELECT ward_code, ward_description FROM wards WHERE hospital_code = $1", hospital, c.Wards},
		{"SELECT clinic_code, clinic_description FROM clinics WHERE hospital_code = $1", hospital, c.Clinics},
		{"SELECT service_code, service_description FROM services WHERE hospital_code = $1", hospital, c.Services},
	} {
		pairs, err := collect(ctx, q, t.sql, t.args, func(r pgx.Rows) ([2]string, error) {
			var p [2]string
			return p, r.Scan(&p[0], &p[1])
		})
		if err != nil {
			return nil, eris.Wrap(err, "store: code tables")
		}
		for _, p := range pairs {
			t.into[p[0]] = p[1]
		}
	}
	return c, nil
}

// InsertDistributionCodes registers codes created while building events.
// Codes that already exist are left alone.
func InsertDistributionCodes(ctx context.Context, q db.Pool, key model.RunKey, codes []model.DistributionCode) error {
	for _, c := range codes {
		if _, err := q.Exec(ctx,
			"INSERT INTO distribution_codes (hospital_code, model_code, distribution_code, distribution_description)"+
				" VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING",
			key.Hospital, key.Model, c.Code, c.Description); err != nil {
			return eris.Wrapf(err, "store: insert distribution code %s", c.Code)
		}
	}
	return nil
}

// LoadDistributeConfig reads the distribution rules and cost-based feeder
// data of key.
func LoadDistributeConfig(ctx context.Context, q db.Pool, key model.RunKey) (*distribute.Config, error) {
	cfg := &distribute.Config{}
	var err error
	cfg.Rules, err = collect(ctx, q,
		"SELECT department_code, cost_type_code, distribution_code, distribution_fraction"+
			" FROM general_ledger_distribution WHERE "+modelScope.where()+
			" ORDER BY department_code, cost_type_code, distribution_code",
		modelScope.args(key), func(r pgx.Rows) (model.DistributionRule, error) {
			var d model.DistributionRule
			return d, r.Scan(&d.Account.Department, &d.Account.CostType, &d.DistributionCode, &d.Fraction)
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: general_ledger_distribution")
	}
	if cfg.Feeders, err = LoadFeeders(ctx, q, key); err != nil {
		return nil, err
	}
	if cfg.FeederAccounts, err = LoadFeederAccounts(ctx, q, key); err != nil {
		return nil, err
	}
	if cfg.FeederLines, err = LoadItemizedCosts(ctx, q, key); err != nil {
		return nil, err
	}
	return cfg, nil
}
