package db

import (
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Numeric converts a decimal to the pgx numeric type without going through
// float64.
func Numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).Set(d.Coefficient()), Exp: d.Exponent(), Valid: true}
}

// Decimal converts a scanned numeric to a decimal. NULL reads as zero.
func Decimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, eris.New("db: numeric is not a finite number")
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}
