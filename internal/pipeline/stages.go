package pipeline

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/gyeh/clincost/internal/build"
	"github.com/gyeh/clincost/internal/disburse"
	"github.com/gyeh/clincost/internal/distribute"
	"github.com/gyeh/clincost/internal/events"
	"github.com/gyeh/clincost/internal/model"
	"github.com/gyeh/clincost/internal/store"
)

func (p *Pipeline) validate(ctx context.Context, tx pgx.Tx, ss *model.StageSummary) error {
	report, err := Check(ctx, tx, p.rc.Key)
	if err != nil {
		return err
	}
	for _, w := range report.Warnings {
		p.log.Warn().Str("stage", "validate").Msg(w)
	}
	ss.Warnings = len(report.Warnings)
	ss.RowsRead = int64(report.Counts["general_ledger_costs"])
	return report.Err()
}

func (p *Pipeline) build(ctx context.Context, tx pgx.Tx, ss *model.StageSummary) error {
	key := p.rc.Key
	costs, err := store.LoadLedger(ctx, tx, store.GeneralLedgerCosts, key)
	if err != nil {
		return err
	}
	cfg, err := store.LoadBuildConfig(ctx, tx, key)
	if err != nil {
		return err
	}

	res, err := build.New(p.log).Run(costs, cfg)
	if err != nil {
		return err
	}

	for _, out := range []struct {
		table string
		rows  []model.Account
	}{
		{store.GeneralLedgerAdjusted, res.Adjusted.Rows()},
		{store.GeneralLedgerMapped, res.Mapped.Rows()},
		{store.GeneralLedgerBuilt, res.Built.Rows()},
	} {
		n, err := store.ReplaceLedger(ctx, tx, out.table, key, out.rows)
		if err != nil {
			return err
		}
		ss.RowsWritten += n
	}

	ss.RowsRead = int64(costs.Len())
	ss.Warnings = res.Warnings
	ss.TotalIn = costs.Total()
	ss.TotalOut = res.Built.Total()
	return nil
}

func (p *Pipeline) disburse(ctx context.Context, tx pgx.Tx, ss *model.StageSummary) error {
	key, opts := p.rc.Key, p.rc.Options
	built, err := store.LoadLedger(ctx, tx, store.GeneralLedgerBuilt, key)
	if err != nil {
		return err
	}
	cfg, err := store.LoadDisburseConfig(ctx, tx, key)
	if err != nil {
		return err
	}
	cfg.Iterate = opts.Iterate
	cfg.MaxIterations = opts.MaxIterations
	cfg.Tolerance = opts.ResidualTolerance

	res, err := disburse.New(p.log).Run(built, cfg)
	if err != nil {
		return err
	}

	n, err := store.ReplaceLedger(ctx, tx, store.GeneralLedgerDisbursed, key, res.Ledger.Rows())
	if err != nil {
		return err
	}
	ss.RowsRead = int64(built.Len())
	ss.RowsWritten = n
	ss.Warnings = res.Warnings
	ss.TotalIn = built.Total()
	ss.TotalOut = res.Ledger.Total()
	return nil
}

func (p *Pipeline) events(ctx context.Context, tx pgx.Tx, ss *model.StageSummary) error {
	key := p.rc.Key
	cfg, err := store.LoadEventConfig(ctx, tx, key)
	if err != nil {
		return err
	}
	cfg.DefaultScaling = p.rc.Options.DefaultScaling

	res, err := events.NewBuilder(p.log, key, cfg).Build(ctx, store.NewActivityReader(tx))
	if err != nil {
		return err
	}
	if err := store.InsertDistributionCodes(ctx, tx, key, res.NewCodes); err != nil {
		return err
	}
	n, err := store.ReplaceEvents(ctx, tx, key, res.Events)
	if err != nil {
		return err
	}
	ss.RowsRead = int64(len(cfg.Attributes))
	ss.RowsWritten = n
	ss.Warnings = res.Warnings
	return nil
}

func (p *Pipeline) distribute(ctx context.Context, tx pgx.Tx, ss *model.StageSummary) error {
	key := p.rc.Key
	disbursed, err := store.LoadLedger(ctx, tx, store.GeneralLedgerDisbursed, key)
	if err != nil {
		return err
	}
	evs, err := store.LoadEvents(ctx, tx, key)
	if err != nil {
		return err
	}
	cfg, err := store.LoadDistributeConfig(ctx, tx, key)
	if err != nil {
		return err
	}
	cfg.Remainder = p.rc.Options.Remainder

	res, err := distribute.New(p.log).Run(disbursed, evs, cfg)
	if err != nil {
		return err
	}

	n, err := store.ReplaceEventCosts(ctx, tx, key, res.EventCosts)
	if err != nil {
		return err
	}
	u, err := store.ReplaceLedger(ctx, tx, store.GeneralLedgerUndistributed, key, res.Undistributed)
	if err != nil {
		return err
	}

	p.undistributed = res.Undistributed
	ss.RowsRead = int64(len(evs))
	ss.RowsWritten = n + u
	ss.Warnings = res.Warnings
	ss.TotalIn = disbursed.Total()
	ss.TotalOut = res.Distributed
	ss.Undistributed = sumAccounts(res.Undistributed)
	return nil
}
