package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostBasedFeeder is the feeder_type_code of feeders whose itemized lines
// carry real cost rather than activity.
const CostBasedFeeder = "C"

// Feeder is a source system that supplies itemized lines.
type Feeder struct {
	Code     string
	TypeCode string
}

// CostBased reports whether the feeder supplies costs.
func (f Feeder) CostBased() bool { return f.TypeCode == CostBasedFeeder }

// FeederAccount is where a model books the cost of a cost-based feeder.
type FeederAccount struct {
	Feeder string
	To     AccountKey
}

// ItemizedCost is one invoice line from a feeder.
type ItemizedCost struct {
	Feeder        string
	Service       string
	Who           string
	InvoiceNo     string
	InvoiceLineNo int64
	ItemDate      time.Time
	EpisodeNo     int64
	What          string
	Account       AccountKey
	Amount        decimal.Decimal
}

// FeederTotal is the itemized amount of one feeder booked against one account.
type FeederTotal struct {
	Feeder  string
	Account AccountKey
	Amount  decimal.Decimal
}
