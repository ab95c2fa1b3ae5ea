package workbook

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/gyeh/clincost/internal/db"
	"github.com/gyeh/clincost/internal/model"
	"github.com/gyeh/clincost/internal/normalize"
	"github.com/gyeh/clincost/internal/store"
)

// LoadResult reports what a workbook load wrote.
type LoadResult struct {
	FileSHA256 string
	Rows       map[string]int64 // rows copied per table
	Skipped    []string         // sheets not loaded
}

// Load reads the workbook at path and replaces, in one transaction, the rows
// of every table it contains for the identity taken from key.
func Load(ctx context.Context, pool db.Pool, log zerolog.Logger, path string, key model.RunKey, scope Scope) (*LoadResult, error) {
	log = log.With().Str("component", "workbook").Logger()

	sha, err := normalize.FileHash(path)
	if err != nil {
		return nil, eris.Wrap(err, "workbook: hash")
	}
	sheets, err := Read(path)
	if err != nil {
		return nil, err
	}
	parsed, skipped, err := Parse(sheets, key, scope)
	if err != nil {
		return nil, err
	}
	for _, name := range skipped {
		log.Warn().Str("sheet", name).Str("scope", string(scope)).Msg("sheet skipped: not a loadable table in scope")
	}

	res := &LoadResult{FileSHA256: sha, Rows: make(map[string]int64, len(parsed)), Skipped: skipped}
	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		if err := db.AdvisoryLock(ctx, tx, "workbook:"+key.String()); err != nil {
			return err
		}
		for _, p := range parsed {
			n, err := Replace(ctx, tx, p)
			if err != nil {
				return err
			}
			res.Rows[p.Table.Name] = n
			log.Info().Str("table", p.Table.Name).Int64("rows", n).Msg("table replaced")
		}
		return invalidate(ctx, tx, key, parsed)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", path).Str("sha256", sha).Int("tables", len(parsed)).Msg("workbook loaded")
	return res, nil
}

// Replace deletes the rows sharing p's identity and copies p's rows in. A
// sheet with only a header clears the table for that identity.
func Replace(ctx context.Context, q db.Pool, p Parsed) (int64, error) {
	t := p.Table
	conds := make([]string, len(t.Identity))
	for i, col := range t.Identity {
		conds[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", t.Name, strings.Join(conds, " AND "))
	if _, err := q.Exec(ctx, sql, p.Identity...); err != nil {
		return 0, eris.Wrapf(err, "workbook: clear %s", t.Name)
	}
	if len(p.Rows) == 0 {
		return 0, nil
	}
	n, err := q.CopyFrom(ctx, pgx.Identifier{db.Schema, t.Name}, p.Columns, pgx.CopyFromRows(p.Rows))
	if err != nil {
		return 0, eris.Wrapf(err, "workbook: copy %s", t.Name)
	}
	return n, nil
}

// invalidate marks stale every completed stage that read a replaced table.
// Hospital tables feed every run key of the hospital, so they subsume the
// narrower scopes.
func invalidate(ctx context.Context, q db.Pool, key model.RunKey, parsed []Parsed) error {
	scopes := make(map[Scope]bool)
	for _, p := range parsed {
		scopes[p.Table.Scope] = true
	}
	if scopes[ScopeHospital] {
		return store.MarkHospitalStale(ctx, q, key.Hospital)
	}
	if scopes[ScopeModel] {
		if err := store.MarkModelStale(ctx, q, key); err != nil {
			return err
		}
	}
	if scopes[ScopeRun] {
		return store.MarkRunStale(ctx, q, key)
	}
	return nil
}
