// Package pipeline runs the costing stages for one hospital, model and run.
// Each stage reads its inputs, computes and replaces its outputs inside one
// transaction, then records its state in pipeline_runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gyeh/clincost/internal/db"
	"github.com/gyeh/clincost/internal/export"
	"github.com/gyeh/clincost/internal/model"
	"github.com/gyeh/clincost/internal/store"
)

// AllStages is the stage argument that runs every stage in order.
const AllStages = "all"

var (
	ErrUnknownStage = errors.New("unknown stage")
	ErrPrerequisite = errors.New("prerequisite stage not complete")
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Pipeline runs stages for one RunContext.
type Pipeline struct {
	pool db.Pool
	log  zerolog.Logger
	rc   model.RunContext

	undistributed []model.Account // set by distribute for the report
}

// New returns a Pipeline for rc.
func New(pool db.Pool, log zerolog.Logger, rc model.RunContext) *Pipeline {
	return &Pipeline{
		pool: pool,
		log:  log.With().Str("run_key", rc.Key.String()).Logger(),
		rc:   rc,
	}
}

// Resolve returns the stages named by arg: one stage, or all of them.
func Resolve(arg string) ([]model.Stage, error) {
	if arg == AllStages {
		return model.AllStages, nil
	}
	s, ok := model.StageByName(arg)
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %v or %s)", ErrUnknownStage, arg, model.StageNames(), AllStages)
	}
	return []model.Stage{s}, nil
}

// Run executes the named stage, or every stage for "all". It stops at the
// first failing stage; stages already completed stay committed.
func (p *Pipeline) Run(ctx context.Context, stage string) (*model.RunSummary, error) {
	totalStart := time.Now()
	if err := p.rc.Key.Validate(); err != nil {
		return nil, &PipelineError{Phase: stage, Err: err}
	}
	stages, err := Resolve(stage)
	if err != nil {
		return nil, &PipelineError{Phase: stage, Err: err}
	}

	summary := &model.RunSummary{Key: p.rc.Key}
	for _, s := range stages {
		p.log.Info().Str("stage", s.Name).Msg("starting stage")
		ss, err := p.runStage(ctx, s)
		if err != nil {
			summary.DurationTotal = time.Since(totalStart)
			return summary, &PipelineError{Phase: s.Name, Err: err}
		}
		summary.Stages = append(summary.Stages, *ss)
		p.log.Info().
			Str("stage", s.Name).
			Str("batch_id", ss.BatchID).
			Int64("rows_read", ss.RowsRead).
			Int64("rows_written", ss.RowsWritten).
			Int("warnings", ss.Warnings).
			Str("duration", ss.Duration.String()).
			Msg("stage complete")
	}

	summary.DurationTotal = time.Since(totalStart)
	p.log.Info().
		Int("stages", len(summary.Stages)).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("costing pipeline complete")
	return summary, nil
}

// stageFunc computes one stage inside tx and fills ss.
type stageFunc func(ctx context.Context, tx pgx.Tx, ss *model.StageSummary) error

func (p *Pipeline) stageFunc(name string) stageFunc {
	switch name {
	case "validate":
		return p.validate
	case "build":
		return p.build
	case "disburse":
		return p.disburse
	case "events":
		return p.events
	case "distribute":
		return p.distribute
	}
	return nil
}

func (p *Pipeline) runStage(ctx context.Context, s model.Stage) (*model.StageSummary, error) {
	start := time.Now()
	fn := p.stageFunc(s.Name)
	if fn == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownStage, s.Name)
	}

	key := p.rc.Key
	ss := &model.StageSummary{Stage: s, BatchID: uuid.New().String()}
	p.undistributed = nil

	err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		if err := db.AdvisoryLock(ctx, tx, key.String()); err != nil {
			return err
		}
		if err := store.CheckRunKey(ctx, tx, key); err != nil {
			return err
		}
		if err := p.checkPrerequisite(ctx, tx, s); err != nil {
			return err
		}
		if err := fn(ctx, tx, ss); err != nil {
			return err
		}
		later := model.StagesAfter(s.Name)
		names := make([]string, len(later))
		for i, l := range later {
			names[i] = l.Name
		}
		return store.CompleteStage(ctx, tx, key, store.StageRecord{
			Stage:       s.Name,
			State:       s.State,
			BatchID:     ss.BatchID,
			RowsWritten: ss.RowsWritten,
			Warnings:    ss.Warnings,
		}, names)
	})
	ss.Duration = time.Since(start)
	if err != nil {
		return nil, err
	}

	if s.Name == "distribute" && p.rc.Options.ReportDir != "" {
		if err := p.writeReport(p.undistributed); err != nil {
			p.log.Warn().Err(err).Msg("undistributed report not written (non-fatal)")
		}
	}
	return ss, nil
}

// checkPrerequisite requires the stage that reaches s.Requires to be
// complete, not stale or missing.
func (p *Pipeline) checkPrerequisite(ctx context.Context, q db.Pool, s model.Stage) error {
	if s.Requires == "" {
		return nil
	}
	var prev model.Stage
	for _, st := range model.AllStages {
		if st.State == s.Requires {
			prev = st
		}
	}
	status, err := store.StageStatus(ctx, q, p.rc.Key, prev.Name)
	if err != nil {
		return err
	}
	if status != store.StatusComplete {
		if status == "" {
			status = "never run"
		}
		return model.NewConfigError(ErrPrerequisite, "stage prerequisites missing",
			"stage", s.Name, "requires", prev.Name, "status", status)
	}
	return nil
}

func (p *Pipeline) writeReport(accounts []model.Account) error {
	if err := os.MkdirAll(p.rc.Options.ReportDir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	path := export.UndistributedPath(p.rc.Options.ReportDir, p.rc.Key)
	if err := export.WriteUndistributed(path, p.rc.Key, accounts); err != nil {
		return err
	}
	p.log.Info().Str("path", path).Int("accounts", len(accounts)).Msg("undistributed report written")
	return nil
}

func sumAccounts(accounts []model.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Cost)
	}
	return total
}
