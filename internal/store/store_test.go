package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/clincost/internal/events"
	"github.com/gyeh/clincost/internal/model"
)

var testKey = model.RunKey{Hospital: "H1", Model: "M1", Run: "R1"}

func TestCheckRunKey(t *testing.T) {
	tests := []struct {
		name               string
		hospital, mdl, run bool
		want               error
	}{
		{"all present", true, true, true, nil},
		{"unknown hospital", false, true, true, ErrUnknownHospital},
		{"unknown model", true, false, true, ErrUnknownModel},
		{"unknown run", true, true, false, ErrUnknownRun},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectQuery(`SELECT`).
				WithArgs("H1", "R1", "M1").
				WillReturnRows(pgxmock.NewRows([]string{"h", "m", "r"}).AddRow(tt.hospital, tt.mdl, tt.run))

			err = CheckRunKey(context.Background(), mock, testKey)
			if tt.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.want)
				assert.ErrorIs(t, err, model.ErrConfig)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStageStatus_NeverRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT status\s+FROM pipeline_runs`).
		WithArgs("H1", "R1", "M1", "build").
		WillReturnError(pgx.ErrNoRows)

	status, err := StageStatus(context.Background(), mock, testKey, "build")
	require.NoError(t, err)
	assert.Empty(t, status)
}

func TestStageStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT status\s+FROM pipeline_runs`).
		WithArgs("H1", "R1", "M1", "disburse").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusStale))

	status, err := StageStatus(context.Background(), mock, testKey, "disburse")
	require.NoError(t, err)
	assert.Equal(t, StatusStale, status)
}

func TestCompleteStage_MarksLaterStale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := StageRecord{Stage: "disburse", State: "disbursed", BatchID: "b6a8d1a6-52a3-4fb1-9c61-7b8a3c2d5e10", RowsWritten: 12, Warnings: 1}
	later := []string{"events", "distribute"}

	mock.ExpectExec(`INSERT INTO pipeline_runs`).
		WithArgs("H1", "R1", "M1", "disburse", "disbursed", rec.BatchID, int64(12), 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE pipeline_runs\s+SET status = 'stale'`).
		WithArgs("H1", "R1", "M1", later).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	require.NoError(t, CompleteStage(context.Background(), mock, testKey, rec, later))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteStage_LastStage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := StageRecord{Stage: "distribute", State: "distributed", BatchID: "b6a8d1a6-52a3-4fb1-9c61-7b8a3c2d5e10"}

	mock.ExpectExec(`INSERT INTO pipeline_runs`).
		WithArgs("H1", "R1", "M1", "distribute", "distributed", rec.BatchID, int64(0), 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, CompleteStage(context.Background(), mock, testKey, rec, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceLedger(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM general_ledger_built`).
		WithArgs("H1", "R1", "M1").
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectCopyFrom(pgx.Identifier{"costing", GeneralLedgerBuilt}, ledgerColumns).WillReturnResult(2)

	accounts := []model.Account{
		{AccountKey: model.AccountKey{Department: "ICU", CostType: "nursing"}, Cost: decimal.RequireFromString("100.25")},
		{AccountKey: model.AccountKey{Department: "ICU", CostType: "other"}, Cost: decimal.RequireFromString("4")},
	}
	n, err := ReplaceLedger(context.Background(), mock, GeneralLedgerBuilt, testKey, accounts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceLedger_DeleteFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM general_ledger_disbursed`).WillReturnError(errors.New("relation does not exist"))

	_, err = ReplaceLedger(context.Background(), mock, GeneralLedgerDisbursed, testKey, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete general_ledger_disbursed")
}

func TestReplaceEvents(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM events`).
		WithArgs("H1", "R1", "M1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"costing", Events}, model.EventColumns()).WillReturnResult(1)

	evs := []model.Event{{
		EventID:          model.EventID{EventCode: "EDATT", AttributeCode: "MIN", Service: model.ServiceED, EpisodeNo: 1, Seq: 1},
		DistributionCode: "EDATT",
		Weight:           30,
	}}
	n, err := ReplaceEvents(context.Background(), mock, testKey, evs)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceEventCosts_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM event_costs`).
		WithArgs("H1", "R1", "M1").
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := ReplaceEventCosts(context.Background(), mock, testKey, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDistributionCodes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO distribution_codes .* ON CONFLICT DO NOTHING`).
		WithArgs("H1", "M1", "W1BDAY", "Bed days, Minutes for ward (W1) - Ward one").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = InsertDistributionCodes(context.Background(), mock, testKey, []model.DistributionCode{
		{Code: "W1BDAY", Description: "Bed days, Minutes for ward (W1) - Ward one"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadFeeders(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT feeder_code, feeder_type_code FROM feeders`).
		WithArgs("H1").
		WillReturnRows(pgxmock.NewRows([]string{"feeder_code", "feeder_type_code"}).
			AddRow("PHARM", "C").
			AddRow("PATH", "A"))

	feeders, err := LoadFeeders(context.Background(), mock, testKey)
	require.NoError(t, err)
	require.Len(t, feeders, 2)
	assert.True(t, feeders["PHARM"].CostBased())
	assert.False(t, feeders["PATH"].CostBased())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadFeederAccounts_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM feeder_model`).WillReturnError(errors.New("connection reset"))

	_, err = LoadFeederAccounts(context.Background(), mock, testKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feeder_model")
}

func TestActivitySQL(t *testing.T) {
	ward, err := events.ParseSubroutine("ipwardsday")
	require.NoError(t, err)
	got := ActivitySQL(ward.Query(), "admitting_ward_code <> 'W9'")
	assert.Equal(t,
		"SELECT episode_no, 1::bigint, admitting_ward_code, 1::double precision, acuity"+
			" FROM inpat_episode_details WHERE hospital_code = $1 AND run_code = $2"+
			" AND same_day = 1 AND (admitting_ward_code <> 'W9') ORDER BY 1, 2",
		got)

	adm, err := events.ParseSubroutine("EDadmissions")
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT episode_no, 1::bigint, ''::text, 1::double precision, NULL::double precision"+
			" FROM ed_admissions WHERE hospital_code = $1 AND run_code = $2 ORDER BY 1, 2",
		ActivitySQL(adm.Query(), "  "))
}

func TestActivityReader(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	theatre, err := events.ParseSubroutine("theatremin")
	require.NoError(t, err)

	mock.ExpectQuery(`FROM inpat_theatre_details`).
		WithArgs("H1", "R1").
		WillReturnRows(pgxmock.NewRows([]string{"episode_no", "seq", "unit", "measure", "acuity"}).
			AddRow(int64(7), int64(1), "", 95.0, nil).
			AddRow(int64(7), int64(2), "", 30.0, nil))

	rows, err := NewActivityReader(mock).Activity(context.Background(), testKey, theatre.Query(), "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[1].Seq)
	assert.InDelta(t, 95.0, rows[0].Measure, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}
