package store

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/gyeh/clincost/internal/db"
	"github.com/gyeh/clincost/internal/events"
	"github.com/gyeh/clincost/internal/model"
)

// ActivityReader reads subroutine activity rows from the run's episode
// tables.
type ActivityReader struct {
	q db.Pool
}

var _ events.ActivitySource = (*ActivityReader)(nil)

// NewActivityReader returns an ActivityReader over q.
func NewActivityReader(q db.Pool) *ActivityReader {
	return &ActivityReader{q: q}
}

// Activity runs the query described by aq. where is the event's own filter
// and is ANDed onto the subroutine's.
func (a *ActivityReader) Activity(ctx context.Context, key model.RunKey, aq model.ActivityQuery, where string) ([]model.ActivityRow, error) {
	sql := ActivitySQL(aq, where)
	rows, err := collect(ctx, a.q, sql, []any{key.Hospital, key.Run}, func(r pgx.Rows) (model.ActivityRow, error) {
		var row model.ActivityRow
		return row, r.Scan(&row.EpisodeNo, &row.Seq, &row.Unit, &row.Measure, &row.Acuity)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "store: activity %s", aq.From)
	}
	return rows, nil
}

// ActivitySQL renders an ActivityQuery. Missing columns are filled with
// constants so every query scans into the same five fields.
func ActivitySQL(aq model.ActivityQuery, where string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(aq.Episode)
	b.WriteString(", ")
	b.WriteString(orConst(aq.Seq, "1::bigint"))
	b.WriteString(", ")
	b.WriteString(orConst(aq.Unit, "''::text"))
	b.WriteString(", ")
	b.WriteString(orConst(aq.Measure, "1::double precision"))
	b.WriteString(", ")
	b.WriteString(orConst(aq.Acuity, "NULL::double precision"))
	b.WriteString(" FROM ")
	b.WriteString(aq.From)
	if aq.Condition != "" {
		b.WriteString(" AND ")
		b.WriteString(aq.Condition)
	}
	if w := strings.TrimSpace(where); w != "" {
		b.WriteString(" AND (")
		b.WriteString(w)
		b.WriteString(")")
	}
	b.WriteString(" ORDER BY 1, 2")
	return b.String()
}

func orConst(col, constant string) string {
	if col == "" {
		return constant
	}
	return col
}
