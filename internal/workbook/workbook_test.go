package workbook

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/clincost/internal/model"
)

var key = model.RunKey{Hospital: "H1", Model: "M1", Run: "R1"}

func TestRegistry_IdentityMatchesScope(t *testing.T) {
	for _, tbl := range Tables {
		switch tbl.Scope {
		case ScopeRun:
			assert.Contains(t, tbl.Identity, "run_code", tbl.Name)
		case ScopeModel:
			assert.Contains(t, tbl.Identity, "model_code", tbl.Name)
		case ScopeHospital:
			assert.Equal(t, []string{"hospital_code"}, tbl.Identity, tbl.Name)
		}
		for _, c := range tbl.Columns {
			assert.False(t, tbl.isIdentity(c.Name), "%s.%s", tbl.Name, c.Name)
		}
	}
}

func TestParse_TypesAndIdentity(t *testing.T) {
	parsed, skipped, err := Parse([]Sheet{
		sheet("general_ledger_costs", []string{"Department_Code", "cost_type_code", "cost"},
			[]string{"ICU", "drugs", "1,250.50"},
			[]string{"", "", ""},
			[]string{"WARD", "nursing", "10"}),
		sheet("event_attributes", []string{"event_code", "event_attribute_code", "event_subroutine_name", "event_acuity_scaling", "event_aggregate"},
			[]string{"BDAY", "DAYS", "ipwardbdays", "", "Y"}),
		sheet("Notes", []string{"anything"}, []string{"ignored"}),
	}, key, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Notes"}, skipped)
	require.Len(t, parsed, 2)

	event := parsed[0]
	assert.Equal(t, "event_attributes", event.Table.Name, "tables come back in registry order")
	assert.Equal(t, []any{"H1", "M1"}, event.Identity)
	row := event.Rows[0]
	assert.Equal(t, "BDAY", row[2])
	assert.Nil(t, row[5].(*float64))
	assert.Equal(t, true, row[6])

	costs := parsed[1]
	assert.Equal(t, []string{"hospital_code", "run_code", "department_code", "cost_type_code", "cost"}, costs.Columns)
	require.Len(t, costs.Rows, 2, "blank rows are skipped")
	n, ok := costs.Rows[0][4].(pgtype.Numeric)
	require.True(t, ok)
	assert.Equal(t, int64(125050), n.Int.Int64())
	assert.Equal(t, int32(-2), n.Exp)
}

func TestParse_Scope(t *testing.T) {
	parsed, skipped, err := Parse(Sample(), key, ScopeHospital)
	require.NoError(t, err)
	for _, p := range parsed {
		assert.Equal(t, ScopeHospital, p.Table.Scope)
	}
	assert.Contains(t, skipped, "general_ledger_costs")
	assert.Len(t, parsed, 5)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		sheet Sheet
		key   model.RunKey
		want  string
	}{
		{"unknown column", sheet("wards", []string{"ward_code", "colour"}), key, "column not loadable"},
		{"identity column", sheet("wards", []string{"hospital_code"}), key, "identity column"},
		{"duplicate column", sheet("wards", []string{"ward_code", "ward_code"}), key, "duplicate column"},
		{"missing run", sheet("ed_admissions", []string{"episode_no"}), model.RunKey{Hospital: "H1", Model: "M1"}, "run_code"},
		{"bad number", sheet("ed_admissions", []string{"episode_no"}, []string{"abc"}), key, "row 2 column episode_no"},
		{"required number", sheet("general_ledger_costs", []string{"department_code", "cost"}, []string{"ICU", ""}), key, "value required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse([]Sheet{tt.sheet}, tt.key, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.xlsx")
	require.NoError(t, Write(path, Sample()))

	sheets, err := Read(path)
	require.NoError(t, err)
	require.Len(t, sheets, len(Sample()))

	parsed, skipped, err := Parse(sheets, key, "")
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Len(t, parsed, len(Sample()))
}

func TestReplace_HeaderOnlyClears(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	parsed, _, err := Parse([]Sheet{sheet("wards", []string{"ward_code", "ward_description"})}, key, "")
	require.NoError(t, err)

	mock.ExpectExec(`DELETE FROM wards WHERE hospital_code = \$1`).
		WithArgs("H1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := Replace(context.Background(), mock, parsed[0])
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	path := filepath.Join(t.TempDir(), "ref.xlsx")
	require.NoError(t, Write(path, []Sheet{
		sheet("wards", []string{"ward_code", "ward_description"}, []string{"W1", "Ward one"}, []string{"W2", "Ward two"}),
		sheet("ed_admissions", []string{"episode_no"}, []string{"2001"}),
	}))

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WithArgs("workbook:" + key.String()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`DELETE FROM wards`).WithArgs("H1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"costing", "wards"}, []string{"hospital_code", "ward_code", "ward_description"}).
		WillReturnResult(2)
	mock.ExpectExec(`DELETE FROM ed_admissions`).WithArgs("H1", "R1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"costing", "ed_admissions"}, []string{"hospital_code", "run_code", "episode_no"}).
		WillReturnResult(1)
	mock.ExpectExec(`UPDATE pipeline_runs SET status = 'stale' WHERE hospital_code = \$1 AND status`).
		WithArgs("H1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 5))
	mock.ExpectCommit()

	res, err := Load(context.Background(), mock, zerolog.Nop(), path, key, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Rows["wards"])
	assert.Equal(t, int64(1), res.Rows["ed_admissions"])
	assert.Len(t, res.FileSHA256, 64)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_MarksStagesStale(t *testing.T) {
	tests := []struct {
		name  string
		sheet Sheet
		del   string
		copy  []string
		stale string
		args  []any
	}{
		{
			name:  "model table",
			sheet: sheet("event_codes", []string{"event_code", "event_description"}, []string{"BDAY", "Bed days"}),
			del:   `DELETE FROM event_codes`,
			copy:  []string{"hospital_code", "model_code", "event_code", "event_description"},
			stale: `UPDATE pipeline_runs SET status = 'stale' WHERE hospital_code = \$1 AND model_code = \$2 AND status`,
			args:  []any{"H1", "M1"},
		},
		{
			name:  "run table",
			sheet: sheet("ed_admissions", []string{"episode_no"}, []string{"2001"}),
			del:   `DELETE FROM ed_admissions`,
			copy:  []string{"hospital_code", "run_code", "episode_no"},
			stale: `UPDATE pipeline_runs SET status = 'stale' WHERE hospital_code = \$1 AND run_code = \$2 AND status`,
			args:  []any{"H1", "R1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			path := filepath.Join(t.TempDir(), "wb.xlsx")
			require.NoError(t, Write(path, []Sheet{tt.sheet}))

			mock.ExpectBegin()
			mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WithArgs("workbook:" + key.String()).
				WillReturnResult(pgxmock.NewResult("SELECT", 1))
			mock.ExpectExec(tt.del).WithArgs(tt.args...).WillReturnResult(pgxmock.NewResult("DELETE", 1))
			mock.ExpectCopyFrom(pgx.Identifier{"costing", tt.sheet.Name}, tt.copy).WillReturnResult(1)
			mock.ExpectExec(tt.stale).WithArgs(tt.args...).WillReturnResult(pgxmock.NewResult("UPDATE", 5))
			mock.ExpectCommit()

			_, err = Load(context.Background(), mock, zerolog.Nop(), path, key, "")
			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestParseScope(t *testing.T) {
	s, ok := ParseScope("model")
	assert.True(t, ok)
	assert.Equal(t, ScopeModel, s)
	_, ok = ParseScope("ward")
	assert.False(t, ok)
}
