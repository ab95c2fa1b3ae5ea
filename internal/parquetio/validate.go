package parquetio

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
)

var requiredColumns = []string{
	"hospital_code", "run_code", "model_code",
	"event_code", "episode_no", "department_code", "cost_type_code", "cost",
}

// ValidateSchema checks that the Parquet schema carries the identity and
// cost columns of an event-cost export.
func ValidateSchema(schema *parquet.Schema) error {
	columns := make(map[string]bool)
	for _, field := range schema.Fields() {
		columns[strings.ToLower(field.Name())] = true
	}

	var missing []string
	for _, col := range requiredColumns {
		if !columns[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("not an event-cost export; missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
