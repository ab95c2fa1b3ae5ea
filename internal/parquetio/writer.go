package parquetio

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

const writeBatchSize = 4096

// Write creates path and writes rows to it in batches.
func Write(path string, rows []EventCostRow) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create parquet file: %w", err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[EventCostRow](f)
	var written int64
	for start := 0; start < len(rows); start += writeBatchSize {
		end := min(start+writeBatchSize, len(rows))
		n, err := w.Write(rows[start:end])
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return written, fmt.Errorf("close parquet writer: %w", err)
	}
	return written, f.Close()
}
