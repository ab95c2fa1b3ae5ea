package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/clincost/internal/db"
	"github.com/gyeh/clincost/internal/events"
	"github.com/gyeh/clincost/internal/export"
	"github.com/gyeh/clincost/internal/model"
	"github.com/gyeh/clincost/internal/parquetio"
	"github.com/gyeh/clincost/internal/pipeline"
	"github.com/gyeh/clincost/internal/store"
	"github.com/gyeh/clincost/internal/workbook"
)

const (
	testPort     = 15432
	testDB       = "clincosttest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var (
	testDSN string
	pg      *embeddedpostgres.EmbeddedPostgres
	testKey = model.RunKey{Hospital: "H1", Model: "M1", Run: "R1"}
)

func TestMain(m *testing.M) {
	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg = embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30*time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

// setupDB recreates the costing schema and loads the sample workbook.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, testDSN)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, "DROP SCHEMA IF EXISTS costing CASCADE")
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(ctx, pool, zerolog.Nop()))

	path := filepath.Join(t.TempDir(), "sample.xlsx")
	require.NoError(t, workbook.Write(path, workbook.Sample()))
	_, err = workbook.Load(ctx, pool, zerolog.Nop(), path, testKey, "")
	require.NoError(t, err)
	return pool
}

func runContext(reportDir string) model.RunContext {
	opts := model.DefaultOptions()
	opts.ReportDir = reportDir
	return model.RunContext{Key: testKey, Options: opts}
}

func sumCost(t *testing.T, pool *pgxpool.Pool, table string) decimal.Decimal {
	t.Helper()
	var s string
	err := pool.QueryRow(context.Background(),
		"SELECT COALESCE(sum(cost), 0)::text FROM "+table+" WHERE hospital_code = $1 AND run_code = $2 AND model_code = $3",
		testKey.Hospital, testKey.Run, testKey.Model).Scan(&s)
	require.NoError(t, err)
	return decimal.RequireFromString(s)
}

func count(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		"SELECT count(*) FROM "+table+" WHERE hospital_code = $1 AND run_code = $2 AND model_code = $3",
		testKey.Hospital, testKey.Run, testKey.Model).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestRunAll_SampleDataset(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	reports := t.TempDir()

	summary, err := pipeline.New(pool, zerolog.Nop(), runContext(reports)).Run(ctx, pipeline.AllStages)
	require.NoError(t, err)
	require.Len(t, summary.Stages, len(model.AllStages))

	built, err := store.LoadLedger(ctx, pool, store.GeneralLedgerBuilt, testKey)
	require.NoError(t, err)
	assert.True(t, built.Total().Equal(decimal.NewFromInt(12790)), "built total %s", built.Total())
	other, ok := built.Balance(model.AccountKey{Department: "WARD", CostType: model.OtherCostType})
	require.True(t, ok, "unpreserved cost types fold into other")
	assert.True(t, other.Equal(decimal.NewFromInt(50)))

	disbursed, err := store.LoadLedger(ctx, pool, store.GeneralLedgerDisbursed, testKey)
	require.NoError(t, err)
	_, ok = disbursed.Balance(model.AccountKey{Department: "ADMIN", CostType: "salaries"})
	assert.False(t, ok, "indirect account drained")
	ed, _ := disbursed.Balance(model.AccountKey{Department: "ED", CostType: "nursing"})
	assert.True(t, ed.Equal(decimal.NewFromInt(3250)), "ED nursing %s", ed)

	codes, err := store.LoadCodeTables(ctx, pool, testKey)
	require.NoError(t, err)
	assert.Contains(t, codes.DistributionCodes, "W1BDAY")
	assert.Contains(t, codes.DistributionCodes, "W2BDAY")

	assert.True(t, sumCost(t, pool, store.EventCosts).Equal(decimal.NewFromInt(12740)), "distributed %s", sumCost(t, pool, store.EventCosts))
	assert.True(t, sumCost(t, pool, store.GeneralLedgerUndistributed).Equal(decimal.NewFromInt(50)))

	last := summary.Stages[len(summary.Stages)-1]
	assert.True(t, last.TotalOut.Add(last.Undistributed).Equal(last.TotalIn), "distribution conserves cost")

	states, err := store.RunStates(ctx, pool, testKey)
	require.NoError(t, err)
	require.Len(t, states, len(model.AllStages))
	for _, s := range states {
		assert.Equal(t, store.StatusComplete, s.Status, s.Stage)
		assert.Len(t, s.BatchID, 36)
	}

	_, err = os.Stat(export.UndistributedPath(reports, testKey))
	assert.NoError(t, err, "undistributed report written")
}

func TestRunAll_Idempotent(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	p := pipeline.New(pool, zerolog.Nop(), runContext(""))

	_, err := p.Run(ctx, pipeline.AllStages)
	require.NoError(t, err)
	events1, costs1 := count(t, pool, store.Events), count(t, pool, store.EventCosts)
	sum1 := sumCost(t, pool, store.EventCosts)

	_, err = p.Run(ctx, pipeline.AllStages)
	require.NoError(t, err)
	assert.Equal(t, events1, count(t, pool, store.Events))
	assert.Equal(t, costs1, count(t, pool, store.EventCosts))
	assert.True(t, sum1.Equal(sumCost(t, pool, store.EventCosts)))
}

func TestRun_PrerequisiteMissing(t *testing.T) {
	pool := setupDB(t)

	_, err := pipeline.New(pool, zerolog.Nop(), runContext("")).Run(context.Background(), "disburse")
	require.Error(t, err)

	var pe *pipeline.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "disburse", pe.Phase)
	assert.ErrorIs(t, err, pipeline.ErrPrerequisite)
	assert.ErrorIs(t, err, model.ErrConfig)
}

func TestRun_RebuildMarksLaterStagesStale(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	p := pipeline.New(pool, zerolog.Nop(), runContext(""))

	_, err := p.Run(ctx, pipeline.AllStages)
	require.NoError(t, err)
	_, err = p.Run(ctx, "build")
	require.NoError(t, err)

	states, err := store.RunStates(ctx, pool, testKey)
	require.NoError(t, err)
	status := make(map[string]string)
	for _, s := range states {
		status[s.Stage] = s.Status
	}
	assert.Equal(t, store.StatusComplete, status["build"])
	assert.Equal(t, store.StatusStale, status["disburse"])
	assert.Equal(t, store.StatusStale, status["distribute"])

	_, err = p.Run(ctx, "distribute")
	assert.ErrorIs(t, err, pipeline.ErrPrerequisite)
}

func TestRun_UnknownRun(t *testing.T) {
	pool := setupDB(t)
	rc := runContext("")
	rc.Key.Run = "R9"

	_, err := pipeline.New(pool, zerolog.Nop(), rc).Run(context.Background(), "validate")
	assert.ErrorIs(t, err, store.ErrUnknownRun)
}

func TestRun_ValidateRejectsUnknownSubroutine(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	_, err := pool.Exec(ctx,
		`INSERT INTO event_attributes (hospital_code, model_code, event_code, event_attribute_code, event_subroutine_name)
		 VALUES ('H1', 'M1', 'XRAY', 'CNT', 'radiology')`)
	require.NoError(t, err)

	_, err = pipeline.New(pool, zerolog.Nop(), runContext("")).Run(ctx, pipeline.AllStages)
	require.Error(t, err)
	assert.ErrorIs(t, err, events.ErrUnknownSubroutine)

	states, err := store.RunStates(ctx, pool, testKey)
	require.NoError(t, err)
	assert.Empty(t, states, "failed stage commits nothing")
}

func TestExportEventCosts(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	_, err := pipeline.New(pool, zerolog.Nop(), runContext("")).Run(ctx, pipeline.AllStages)
	require.NoError(t, err)

	costs, err := store.LoadEventCosts(ctx, pool, testKey)
	require.NoError(t, err)
	require.NotEmpty(t, costs)

	path := filepath.Join(t.TempDir(), "costs.parquet")
	n, err := export.WriteEventCosts(path, testKey, costs)
	require.NoError(t, err)
	assert.Equal(t, int64(len(costs)), n)

	r, err := parquetio.Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, int64(len(costs)), r.NumRows())
	assert.NoError(t, export.VerifyEventCosts(path, testKey, costs))
}

func TestResolve(t *testing.T) {
	all, err := pipeline.Resolve(pipeline.AllStages)
	require.NoError(t, err)
	assert.Len(t, all, len(model.AllStages))

	_, err = pipeline.Resolve("allocate")
	assert.ErrorIs(t, err, pipeline.ErrUnknownStage)
}

func TestCheck_SampleDataset(t *testing.T) {
	pool := setupDB(t)

	report, err := pipeline.Check(context.Background(), pool, testKey)
	require.NoError(t, err)
	assert.NoError(t, report.Err())
	assert.Equal(t, 1, report.Counts["mapping"])
	assert.Equal(t, 3, report.Counts["event_attributes"])
	assert.Equal(t, 7, report.Counts["general_ledger_costs"])
}

func TestCheck_NegativeFraction(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	_, err := pool.Exec(ctx,
		`INSERT INTO general_ledger_distribution (hospital_code, model_code, department_code, cost_type_code, distribution_code, distribution_fraction)
		 VALUES ('H1', 'M1', 'LAB', 'supplies', 'THMIN', -0.5)`)
	require.NoError(t, err)

	report, err := pipeline.Check(ctx, pool, testKey)
	require.NoError(t, err)
	assert.ErrorIs(t, report.Err(), pipeline.ErrNegativeFraction)
	assert.ErrorIs(t, report.Err(), model.ErrConfig)
}

func TestReloadMarksCompletedStagesStale(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	p := pipeline.New(pool, zerolog.Nop(), runContext(""))

	_, err := p.Run(ctx, pipeline.AllStages)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "run.xlsx")
	require.NoError(t, workbook.Write(path, workbook.Sample()))
	_, err = workbook.Load(ctx, pool, zerolog.Nop(), path, testKey, workbook.ScopeRun)
	require.NoError(t, err)

	states, err := store.RunStates(ctx, pool, testKey)
	require.NoError(t, err)
	for _, s := range states {
		assert.Equal(t, store.StatusStale, s.Status, s.Stage)
	}

	_, err = p.Run(ctx, "distribute")
	assert.ErrorIs(t, err, pipeline.ErrPrerequisite)
}
