package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"

	"github.com/gyeh/clincost/internal/db"
	"github.com/gyeh/clincost/internal/ledger"
	"github.com/gyeh/clincost/internal/model"
)

// Ledger tables.
const (
	GeneralLedgerCosts         = "general_ledger_costs"
	GeneralLedgerAdjusted      = "general_ledger_adjusted"
	GeneralLedgerMapped        = "general_ledger_mapped"
	GeneralLedgerBuilt         = "general_ledger_built"
	GeneralLedgerDisbursed     = "general_ledger_disbursed"
	GeneralLedgerUndistributed = "general_ledger_undistributed"
)

var ledgerColumns = []string{"hospital_code", "run_code", "model_code", "department_code", "cost_type_code", "cost"}

// LoadLedger reads a ledger table. general_ledger_costs is read by hospital
// and run; every other ledger table by the full run key.
func LoadLedger(ctx context.Context, q db.Pool, table string, key model.RunKey) (*ledger.Ledger, error) {
	s := outputScope
	if table == GeneralLedgerCosts {
		s = runScope
	}
	sql := fmt.Sprintf("SELECT department_code, cost_type_code, cost FROM %s WHERE %s", table, s.where())
	accounts, err := collect(ctx, q, sql, s.args(key), scanAccount)
	if err != nil {
		return nil, eris.Wrapf(err, "store: load %s", table)
	}
	return ledger.New(accounts), nil
}

func scanAccount(r pgx.Rows) (model.Account, error) {
	var a model.Account
	var cost pgtype.Numeric
	if err := r.Scan(&a.Department, &a.CostType, &cost); err != nil {
		return a, err
	}
	d, err := db.Decimal(cost)
	a.Cost = d
	return a, err
}

// ReplaceLedger deletes the table's rows for key and writes accounts.
func ReplaceLedger(ctx context.Context, q db.Pool, table string, key model.RunKey, accounts []model.Account) (int64, error) {
	if err := deleteOutput(ctx, q, table, key); err != nil {
		return 0, err
	}
	n, err := q.CopyFrom(ctx, pgx.Identifier{db.Schema, table}, ledgerColumns,
		pgx.CopyFromSlice(len(accounts), func(i int) ([]any, error) {
			a := accounts[i]
			return []any{key.Hospital, key.Run, key.Model, a.Department, a.CostType, db.Numeric(a.Cost)}, nil
		}))
	if err != nil {
		return 0, eris.Wrapf(err, "store: copy %s", table)
	}
	return n, nil
}

func deleteOutput(ctx context.Context, q db.Pool, table string, key model.RunKey) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", table, outputScope.where())
	if _, err := q.Exec(ctx, sql, outputScope.args(key)...); err != nil {
		return eris.Wrapf(err, "store: delete %s", table)
	}
	return nil
}
