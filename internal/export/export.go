// Package export writes run results to files: the undistributed-costs
// workbook and the event-cost Parquet export.
package export

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/gyeh/clincost/internal/model"
	"github.com/gyeh/clincost/internal/parquetio"
)

// UndistributedSheet is the sheet name of the undistributed workbook.
const UndistributedSheet = "Undistributed"

var undistributedHeader = []string{"hospital_code", "model_code", "run_code", "department_code", "cost_type_code", "cost"}

// UndistributedPath is where the undistributed workbook of key is written
// inside dir.
func UndistributedPath(dir string, key model.RunKey) string {
	return filepath.Join(dir, fmt.Sprintf("undistributed_%s_%s_%s.xlsx", key.Hospital, key.Model, key.Run))
}

// WriteUndistributed writes one row per undistributed account plus a total
// row.
func WriteUndistributed(path string, key model.RunKey, accounts []model.Account) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(UndistributedSheet)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addStrings(sheet.AddRow(), undistributedHeader...)
	total := decimal.Zero
	for _, a := range accounts {
		row := sheet.AddRow()
		addStrings(row, key.Hospital, key.Model, key.Run, a.Department, a.CostType)
		row.AddCell().SetFloat(a.Cost.Round(2).InexactFloat64())
		total = total.Add(a.Cost)
	}
	row := sheet.AddRow()
	addStrings(row, "", "", "", "total", "")
	row.AddCell().SetFloat(total.Round(2).InexactFloat64())

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// WriteEventCosts writes the event costs of key as Parquet.
func WriteEventCosts(path string, key model.RunKey, costs []model.EventCost) (int64, error) {
	rows := make([]parquetio.EventCostRow, len(costs))
	for i, c := range costs {
		rows[i] = parquetio.FromEventCost(key, c)
	}
	n, err := parquetio.Write(path, rows)
	if err != nil {
		return n, eris.Wrapf(err, "export: write %s", path)
	}
	return n, nil
}

// ErrVerify reports an export whose read-back does not match what was written.
var ErrVerify = errors.New("export verification failed")

// VerifyEventCosts reads the export at path back and checks that it holds
// the event costs of key with the same row count and total cost.
func VerifyEventCosts(path string, key model.RunKey, costs []model.EventCost) error {
	r, err := parquetio.Open(path)
	if err != nil {
		return eris.Wrapf(err, "export: verify %s", path)
	}
	defer r.Close()

	rows, err := r.ReadAll()
	if err != nil {
		return eris.Wrapf(err, "export: verify %s", path)
	}
	if len(rows) != len(costs) {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrVerify, path, len(rows), len(costs))
	}

	want, got := decimal.Zero, decimal.Zero
	for _, c := range costs {
		want = want.Add(c.Cost)
	}
	for i := range rows {
		k, c, err := rows[i].EventCost()
		if err != nil {
			return eris.Wrapf(err, "export: verify %s row %d", path, i)
		}
		if k != key {
			return fmt.Errorf("%w: row %d belongs to %s, want %s", ErrVerify, i, k, key)
		}
		got = got.Add(c.Cost)
	}
	if !got.Equal(want) {
		return fmt.Errorf("%w: %s totals %s, want %s", ErrVerify, path, got, want)
	}
	return nil
}
