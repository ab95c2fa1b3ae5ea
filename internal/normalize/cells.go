// Package normalize turns workbook cell text into typed column values.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Text trims surrounding whitespace, including the non-breaking spaces
// spreadsheets like to leave behind.
func Text(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}

// Number strips thousands separators and a leading currency sign.
func Number(s string) string {
	s = Text(s)
	s = strings.TrimPrefix(s, "$")
	return strings.ReplaceAll(s, ",", "")
}

// ParseInt parses an integer cell. Spreadsheets often store integers as
// "12.0", which is accepted when the fraction is zero.
func ParseInt(s string) (int64, error) {
	n := Number(s)
	if v, err := strconv.ParseInt(n, 10, 64); err == nil {
		return v, nil
	}
	d, err := decimal.NewFromString(n)
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return d.IntPart(), nil
}

// ParseFloat parses a weight, fraction or minutes cell.
func ParseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(Number(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

// ParseOptionalFloat returns nil for an empty cell.
func ParseOptionalFloat(s string) (*float64, error) {
	if Text(s) == "" {
		return nil, nil
	}
	v, err := ParseFloat(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseDecimal parses a currency cell exactly.
func ParseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(Number(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("not an amount: %q", s)
	}
	return d, nil
}

// ParseBool accepts the usual spreadsheet spellings of a flag. An empty cell
// is false.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(Text(s)) {
	case "", "0", "n", "no", "false", "f":
		return false, nil
	case "1", "y", "yes", "true", "t":
		return true, nil
	}
	return false, fmt.Errorf("not a flag: %q", s)
}
