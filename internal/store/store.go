// Package store reads and writes the costing tables in Postgres. Every
// function takes a db.Pool so it runs the same on a pool or inside a
// transaction.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/gyeh/clincost/internal/db"
	"github.com/gyeh/clincost/internal/model"
	embedsql "github.com/gyeh/clincost/internal/sql"
)

// Stage status values in pipeline_runs.
const (
	StatusComplete = "complete"
	StatusStale    = "stale"
)

var (
	ErrUnknownHospital = errors.New("hospital code not in hospitals")
	ErrUnknownModel    = errors.New("model code not in models")
	ErrUnknownRun      = errors.New("run code not in clinical_costing_runs")
)

// scope selects which part of the run key filters a table.
type scope int

const (
	runScope    scope = iota // hospital_code, run_code
	modelScope               // hospital_code, model_code
	outputScope              // hospital_code, run_code, model_code
)

func (s scope) where() string {
	switch s {
	case runScope:
		return "hospital_code = $1 AND run_code = $2"
	case modelScope:
		return "hospital_code = $1 AND model_code = $2"
	}
	return "hospital_code = $1 AND run_code = $2 AND model_code = $3"
}

func (s scope) args(key model.RunKey) []any {
	switch s {
	case runScope:
		return []any{key.Hospital, key.Run}
	case modelScope:
		return []any{key.Hospital, key.Model}
	}
	return []any{key.Hospital, key.Run, key.Model}
}

// collect runs sql and scans every row with scan.
func collect[T any](ctx context.Context, q db.Pool, sql string, args []any, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query")
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scan")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "rows")
	}
	return out, nil
}

// CheckRunKey confirms the hospital, model and run exist.
func CheckRunKey(ctx context.Context, q db.Pool, key model.RunKey) error {
	var hospital, mdl, run bool
	if err := q.QueryRow(ctx, embedsql.CheckRunKey, key.Hospital, key.Run, key.Model).Scan(&hospital, &mdl, &run); err != nil {
		return eris.Wrap(err, "store: check run key")
	}
	switch {
	case !hospital:
		return model.NewConfigError(ErrUnknownHospital, "unknown hospital", "hospital_code", key.Hospital)
	case !mdl:
		return model.NewConfigError(ErrUnknownModel, "unknown model", "model_code", key.Model)
	case !run:
		return model.NewConfigError(ErrUnknownRun, "unknown run", "hospital_code", key.Hospital, "run_code", key.Run)
	}
	return nil
}

// StageStatus returns the pipeline_runs status of stage, or "" when the stage
// has never completed.
func StageStatus(ctx context.Context, q db.Pool, key model.RunKey, stage string) (string, error) {
	var status string
	err := q.QueryRow(ctx, embedsql.StageStatus, key.Hospital, key.Run, key.Model, stage).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "store: stage status %s", stage)
	}
	return status, nil
}

// StageRecord is one pipeline_runs row.
type StageRecord struct {
	Stage       string
	State       string
	Status      string
	BatchID     string
	RowsWritten int64
	Warnings    int
	FinishedAt  time.Time
}

// CompleteStage records stage as complete and marks every later stage stale.
func CompleteStage(ctx context.Context, q db.Pool, key model.RunKey, rec StageRecord, later []string) error {
	if _, err := q.Exec(ctx, embedsql.CompleteStage,
		key.Hospital, key.Run, key.Model, rec.Stage, rec.State, rec.BatchID, rec.RowsWritten, rec.Warnings,
	); err != nil {
		return eris.Wrapf(err, "store: complete stage %s", rec.Stage)
	}
	if len(later) == 0 {
		return nil
	}
	if _, err := q.Exec(ctx, embedsql.MarkStale, key.Hospital, key.Run, key.Model, later); err != nil {
		return eris.Wrapf(err, "store: mark stages after %s stale", rec.Stage)
	}
	return nil
}

// MarkHospitalStale marks every completed stage of every run key under the
// hospital stale. Used when hospital reference data is reloaded.
func MarkHospitalStale(ctx context.Context, q db.Pool, hospital string) error {
	return markStale(ctx, q, "hospital_code = $1", hospital)
}

// MarkModelStale marks the completed stages of every run costed with the
// key's model stale.
func MarkModelStale(ctx context.Context, q db.Pool, key model.RunKey) error {
	return markStale(ctx, q, modelScope.where(), modelScope.args(key)...)
}

// MarkRunStale marks the completed stages of every model costed over the
// key's run stale.
func MarkRunStale(ctx context.Context, q db.Pool, key model.RunKey) error {
	return markStale(ctx, q, runScope.where(), runScope.args(key)...)
}

func markStale(ctx context.Context, q db.Pool, where string, args ...any) error {
	sql := "UPDATE pipeline_runs SET status = 'stale' WHERE " + where + " AND status <> 'stale'"
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return eris.Wrap(err, "store: mark stages stale")
	}
	return nil
}

// RunStates lists the pipeline_runs rows of a run key.
func RunStates(ctx context.Context, q db.Pool, key model.RunKey) ([]StageRecord, error) {
	recs, err := collect(ctx, q, embedsql.RunStates, outputScope.args(key), func(r pgx.Rows) (StageRecord, error) {
		var s StageRecord
		err := r.Scan(&s.Stage, &s.State, &s.Status, &s.BatchID, &s.RowsWritten, &s.Warnings, &s.FinishedAt)
		return s, err
	})
	if err != nil {
		return nil, eris.Wrap(err, "store: run states")
	}
	return recs, nil
}
