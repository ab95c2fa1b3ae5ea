package workbook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/gyeh/clincost/internal/db"
	"github.com/gyeh/clincost/internal/model"
	"github.com/gyeh/clincost/internal/normalize"
)

var (
	ErrUnknownColumn = errors.New("column not loadable for table")
	ErrMissingKey    = errors.New("run key part required by table not given")
)

// Sheet is the raw text of one worksheet. The first row is the header.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Read opens an xlsx workbook and returns its sheets as text.
func Read(path string) ([]Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "workbook: open file")
	}
	sheets := make([]Sheet, 0, len(f.Sheets))
	for _, s := range f.Sheets {
		if len(s.Rows) == 0 {
			continue
		}
		sh := Sheet{Name: normalize.Text(s.Name), Header: rowToStrings(s.Rows[0])}
		for _, r := range s.Rows[1:] {
			sh.Rows = append(sh.Rows, rowToStrings(r))
		}
		sheets = append(sheets, sh)
	}
	return sheets, nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// Write saves sheets as an xlsx workbook. Every cell is written as text.
func Write(path string, sheets []Sheet) error {
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.Name)
		if err != nil {
			return eris.Wrapf(err, "workbook: add sheet %s", s.Name)
		}
		for _, rowData := range append([][]string{s.Header}, s.Rows...) {
			row := sheet.AddRow()
			for _, v := range rowData {
				row.AddCell().SetString(v)
			}
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "workbook: save %s", path)
	}
	return nil
}

// Parsed is a sheet converted to COPY rows for its table. Columns and every
// row start with the table's identity.
type Parsed struct {
	Table    *Table
	Identity []any
	Columns  []string
	Rows     [][]any
}

// Parse converts sheets into typed rows. Sheets that name no known table, or
// a table outside scope, are returned in skipped. An empty scope loads every
// table.
func Parse(sheets []Sheet, key model.RunKey, scope Scope) (parsed []Parsed, skipped []string, err error) {
	byName := make(map[string]Sheet, len(sheets))
	for _, s := range sheets {
		t, ok := TableByName(s.Name)
		if !ok || (scope != "" && t.Scope != scope) {
			skipped = append(skipped, s.Name)
			continue
		}
		byName[s.Name] = s
	}

	for i := range Tables {
		t := &Tables[i]
		s, ok := byName[t.Name]
		if !ok {
			continue
		}
		p, err := parseSheet(t, s, key)
		if err != nil {
			return nil, nil, fmt.Errorf("sheet %s: %w", s.Name, err)
		}
		parsed = append(parsed, p)
	}
	return parsed, skipped, nil
}

func parseSheet(t *Table, s Sheet, key model.RunKey) (Parsed, error) {
	ids, missing := t.identityValues(key)
	if missing != "" {
		return Parsed{}, model.NewConfigError(ErrMissingKey, "run key part missing", "table", t.Name, "column", missing)
	}

	p := Parsed{Table: t, Identity: ids, Columns: append([]string(nil), t.Identity...)}
	kinds := make([]Kind, 0, len(s.Header))
	seen := make(map[string]bool)
	for _, h := range s.Header {
		name := strings.ToLower(normalize.Text(h))
		c, ok := t.column(name)
		if !ok || seen[name] {
			reason := "column not loadable"
			switch {
			case t.isIdentity(name):
				reason = "identity column is set from the run key"
			case seen[name]:
				reason = "duplicate column"
			}
			return Parsed{}, model.NewConfigError(ErrUnknownColumn, reason, "table", t.Name, "column", name)
		}
		seen[name] = true
		p.Columns = append(p.Columns, name)
		kinds = append(kinds, c.Kind)
	}

	for i, cells := range s.Rows {
		if blank(cells) {
			continue
		}
		row := append(make([]any, 0, len(p.Columns)), ids...)
		for j, kind := range kinds {
			var cell string
			if j < len(cells) {
				cell = cells[j]
			}
			v, err := parseCell(kind, cell)
			if err != nil {
				return Parsed{}, fmt.Errorf("row %d column %s: %w", i+2, p.Columns[len(ids)+j], err)
			}
			row = append(row, v)
		}
		p.Rows = append(p.Rows, row)
	}
	return p, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if normalize.Text(c) != "" {
			return false
		}
	}
	return true
}

func parseCell(kind Kind, cell string) (any, error) {
	if normalize.Text(cell) == "" {
		switch kind {
		case Int, Float, Amount:
			return nil, errors.New("value required")
		}
	}
	switch kind {
	case Int:
		return normalize.ParseInt(cell)
	case Float:
		return normalize.ParseFloat(cell)
	case OptFloat:
		return normalize.ParseOptionalFloat(cell)
	case Amount:
		d, err := normalize.ParseDecimal(cell)
		if err != nil {
			return nil, err
		}
		return db.Numeric(d), nil
	case Bool:
		return normalize.ParseBool(cell)
	case Date:
		return normalize.ParseDate(cell)
	}
	return normalize.Text(cell), nil
}
