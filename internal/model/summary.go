package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StageSummary captures metrics from one pipeline stage.
type StageSummary struct {
	Stage         Stage
	BatchID       string
	RowsRead      int64
	RowsWritten   int64
	Warnings      int
	TotalIn       decimal.Decimal
	TotalOut      decimal.Decimal
	Undistributed decimal.Decimal
	Duration      time.Duration
}

// RunSummary collects the stage summaries of one invocation.
type RunSummary struct {
	Key           RunKey
	Stages        []StageSummary
	DurationTotal time.Duration
}
