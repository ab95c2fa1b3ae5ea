package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ChannelSource implements pgx.CopyFromSource by reading rows from a channel.
// This keeps COPY streaming while the producer builds rows.
type ChannelSource struct {
	ch      <-chan []any
	current []any
	err     error
}

// NewChannelSource creates a CopyFromSource backed by a channel.
func NewChannelSource(ch <-chan []any) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// Next advances to the next row. Returns false when the channel is closed.
func (s *ChannelSource) Next() bool {
	row, ok := <-s.ch
	if !ok {
		return false
	}
	s.current = row
	return true
}

// Values returns the current row's values in COPY column order.
func (s *ChannelSource) Values() ([]any, error) {
	return s.current, nil
}

// Err returns any error encountered during iteration.
func (s *ChannelSource) Err() error {
	return s.err
}

// Compile-time check that ChannelSource satisfies the interface.
var _ pgx.CopyFromSource = (*ChannelSource)(nil)

// StreamCopy COPYs n rows into table. row(i) builds the values of row i on a
// producer goroutine.
func StreamCopy(ctx context.Context, pool Pool, table pgx.Identifier, columns []string, n int, row func(i int) []any) (int64, error) {
	if n == 0 {
		return 0, nil
	}

	ch := make(chan []any, 1024)
	done := make(chan struct{})
	go func() {
		defer close(ch)
		for i := 0; i < n; i++ {
			select {
			case ch <- row(i):
			case <-done:
				return
			}
		}
	}()

	copied, err := pool.CopyFrom(ctx, table, columns, NewChannelSource(ch))
	close(done)
	// drain so the producer always exits
	for range ch {
	}
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table.Sanitize())
	}
	return copied, nil
}
