// Package events builds the weighted clinical activity events that direct
// costs are distributed across.
package events

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gyeh/clincost/internal/model"
)

var (
	ErrUnknownDistributionCode = errors.New("distribution code not in distribution_codes")
	ErrUnknownService          = errors.New("service code not in services")
)

// ActivitySource reads the activity rows behind a subroutine. where is the
// optional extra filter configured on the event attribute.
type ActivitySource interface {
	Activity(ctx context.Context, key model.RunKey, q model.ActivityQuery, where string) ([]model.ActivityRow, error)
}

// Config is what the builder needs for one run.
type Config struct {
	Attributes     []model.EventAttribute
	Codes          *model.CodeTables
	Feeders        map[string]model.Feeder
	FeederLines    []model.ItemizedCost // itemized lines of the run, all feeders
	DefaultScaling float64
}

// Result is the events of one run plus the distribution codes created while
// building them.
type Result struct {
	Events   []model.Event
	NewCodes []model.DistributionCode
	Warnings int
}

// Plan is an event attribute with its subroutine resolved.
type Plan struct {
	model.EventAttribute
	Kind Subroutine
}

// Compile resolves the subroutine of every event attribute, failing on the
// first unknown name.
func Compile(attrs []model.EventAttribute) ([]Plan, error) {
	plans := make([]Plan, 0, len(attrs))
	for _, a := range attrs {
		kind, err := ParseSubroutine(a.Subroutine)
		if err != nil {
			return nil, fmt.Errorf("event %s/%s: %w", a.EventCode, a.AttributeCode, err)
		}
		plans = append(plans, Plan{EventAttribute: a, Kind: kind})
	}
	return plans, nil
}

// Builder builds the events of one run key.
type Builder struct {
	log      zerolog.Logger
	key      model.RunKey
	cfg      *Config
	events   []model.Event
	newCodes []model.DistributionCode
	warnings int
}

// NewBuilder returns a Builder for key. cfg.Codes is updated in place with
// any distribution codes the builder creates.
func NewBuilder(log zerolog.Logger, key model.RunKey, cfg *Config) *Builder {
	if cfg.Codes == nil {
		cfg.Codes = model.NewCodeTables()
	}
	return &Builder{
		log: log.With().Str("component", "events").Logger(),
		key: key,
		cfg: cfg,
	}
}

// Build compiles the configuration, then builds feeder events followed by
// activity events in configuration order.
func (b *Builder) Build(ctx context.Context, src ActivitySource) (*Result, error) {
	plans, err := Compile(b.cfg.Attributes)
	if err != nil {
		return nil, err
	}
	b.events, b.newCodes, b.warnings = nil, nil, 0

	if err := b.feederEvents(); err != nil {
		return nil, err
	}
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.activityEvents(ctx, src, p); err != nil {
			return nil, fmt.Errorf("event %s/%s (%s): %w", p.EventCode, p.AttributeCode, p.Kind, err)
		}
	}

	b.log.Info().
		Int("events", len(b.events)).
		Int("new_distribution_codes", len(b.newCodes)).
		Int("warnings", b.warnings).
		Msg("events built")
	return &Result{Events: b.events, NewCodes: b.newCodes, Warnings: b.warnings}, nil
}

// feederEvents turns every itemized line of a non cost-based feeder into an
// event of weight 1, distributed on the feeder code.
func (b *Builder) feederEvents() error {
	for _, line := range b.cfg.FeederLines {
		f, ok := b.cfg.Feeders[line.Feeder]
		if !ok || f.CostBased() {
			continue
		}
		if err := b.checkService(line.Service); err != nil {
			return fmt.Errorf("feeder %s invoice %s: %w", line.Feeder, line.InvoiceNo, err)
		}
		b.events = append(b.events, model.Event{
			EventID: model.EventID{
				EventCode:     line.Feeder,
				AttributeCode: line.Feeder,
				Service:       line.Service,
				EpisodeNo:     line.EpisodeNo,
				Seq:           line.InvoiceLineNo,
				What:          line.InvoiceNo,
			},
			DistributionCode: line.Feeder,
			Weight:           1,
		})
	}
	return nil
}

func (b *Builder) activityEvents(ctx context.Context, src ActivitySource, p Plan) error {
	if err := b.checkService(p.Kind.Service()); err != nil {
		return err
	}
	unit := p.Kind.Unit()
	if unit == NoUnit || p.Aggregate {
		if err := b.checkCode(p.EventCode); err != nil {
			return err
		}
	}

	rows, err := src.Activity(ctx, b.key, p.Kind.Query(), p.Where)
	if err != nil {
		return fmt.Errorf("read activity: %w", err)
	}

	scaling := b.cfg.DefaultScaling
	if p.AcuityScaling != nil {
		scaling = *p.AcuityScaling
	}

	if p.Aggregate {
		b.aggregate(p, rows, scaling)
		return nil
	}

	for _, r := range rows {
		code := p.EventCode
		if unit != NoUnit {
			if r.Unit == "" {
				b.warn().Int64("episode_no", r.EpisodeNo).Str("event_code", p.EventCode).Msg("activity row has no ward or clinic, skipped")
				continue
			}
			code = r.Unit + p.EventCode
			b.registerUnitCode(code, p, unit, r.Unit)
		}
		b.events = append(b.events, model.Event{
			EventID:          b.id(p, r.EpisodeNo, r.Seq),
			DistributionCode: code,
			Weight:           Weight(p.Base, measure(p.Kind, r), adjustedAcuity(r, scaling), p.Weight),
		})
	}
	return nil
}

// aggregate builds one event per episode from the summed, acuity-adjusted
// measures of its rows.
func (b *Builder) aggregate(p Plan, rows []model.ActivityRow, scaling float64) {
	sums := make(map[int64]float64)
	var episodes []int64
	for _, r := range rows {
		if _, ok := sums[r.EpisodeNo]; !ok {
			episodes = append(episodes, r.EpisodeNo)
		}
		sums[r.EpisodeNo] += measure(p.Kind, r) * adjustedAcuity(r, scaling)
	}
	sort.Slice(episodes, func(i, j int) bool { return episodes[i] < episodes[j] })
	for _, ep := range episodes {
		b.events = append(b.events, model.Event{
			EventID:          b.id(p, ep, 1),
			DistributionCode: p.EventCode,
			Weight:           (p.Base + sums[ep]) * p.Weight,
		})
	}
}

func (b *Builder) id(p Plan, episode, seq int64) model.EventID {
	if seq == 0 {
		seq = 1
	}
	return model.EventID{
		EventCode:     p.EventCode,
		AttributeCode: p.AttributeCode,
		Service:       p.Kind.Service(),
		EpisodeNo:     episode,
		Seq:           seq,
		What:          p.What,
	}
}

func (b *Builder) checkCode(code string) error {
	if _, ok := b.cfg.Codes.DistributionCodes[code]; !ok {
		return model.NewConfigError(ErrUnknownDistributionCode, "missing distribution code",
			"distribution_code", code)
	}
	return nil
}

func (b *Builder) checkService(service string) error {
	if _, ok := b.cfg.Codes.Services[service]; !ok {
		return model.NewConfigError(ErrUnknownService, "invalid service code",
			"service_code", service)
	}
	return nil
}

// registerUnitCode adds a ward or clinic distribution code to the cache the
// first time it is seen.
func (b *Builder) registerUnitCode(code string, p Plan, kind UnitKind, unit string) {
	codes := b.cfg.Codes
	if _, ok := codes.DistributionCodes[code]; ok {
		return
	}
	desc := codes.EventCodes[p.EventCode] + ", " + codes.EventAttributeCodes[p.AttributeCode]
	switch kind {
	case WardUnit:
		if name, ok := codes.Wards[unit]; ok {
			desc += fmt.Sprintf(" for ward (%s) - %s", unit, name)
		}
	case ClinicUnit:
		if name, ok := codes.Clinics[unit]; ok {
			desc += fmt.Sprintf(" for clinic (%s) - %s", unit, name)
		}
	}
	codes.DistributionCodes[code] = desc
	b.newCodes = append(b.newCodes, model.DistributionCode{Code: code, Description: desc})
	b.log.Debug().Str("distribution_code", code).Str("description", desc).Msg("distribution code created")
}

func (b *Builder) warn() *zerolog.Event {
	b.warnings++
	return b.log.Warn()
}

func measure(kind Subroutine, r model.ActivityRow) float64 {
	if kind.CountBased() {
		return 1
	}
	return r.Measure
}

// adjustedAcuity scales a row's acuity. A row without acuity counts as 1
// and is not scaled.
func adjustedAcuity(r model.ActivityRow, scaling float64) float64 {
	if r.Acuity == nil {
		return 1
	}
	return AdjustAcuity(*r.Acuity, scaling)
}
