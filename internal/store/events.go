package store

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"

	"github.com/gyeh/clincost/internal/db"
	"github.com/gyeh/clincost/internal/model"
)

// Event tables.
const (
	Events     = "events"
	EventCosts = "event_costs"
)

// EventCostColumns is the COPY column order of costing.event_costs.
var EventCostColumns = []string{
	"hospital_code", "run_code", "model_code",
	"event_code", "event_attribute_code", "service_code", "episode_no", "event_seq", "event_what",
	"department_code", "cost_type_code", "distribution_code", "cost",
}

// ReplaceEvents deletes the run key's events and streams evs into
// costing.events.
func ReplaceEvents(ctx context.Context, q db.Pool, key model.RunKey, evs []model.Event) (int64, error) {
	if err := deleteOutput(ctx, q, Events, key); err != nil {
		return 0, err
	}
	return db.StreamCopy(ctx, q, pgx.Identifier{db.Schema, Events}, model.EventColumns(), len(evs),
		func(i int) []any { return evs[i].CopyValues(key) })
}

// LoadEvents reads the run key's events in episode order.
func LoadEvents(ctx context.Context, q db.Pool, key model.RunKey) ([]model.Event, error) {
	evs, err := collect(ctx, q,
		"SELECT event_code, event_attribute_code, service_code, episode_no, event_seq, event_what,"+
			" distribution_code, event_weight FROM events WHERE "+outputScope.where()+
			" ORDER BY event_code, event_attribute_code, service_code, episode_no, event_seq",
		outputScope.args(key), func(r pgx.Rows) (model.Event, error) {
			var e model.Event
			return e, r.Scan(&e.EventCode, &e.AttributeCode, &e.Service, &e.EpisodeNo, &e.Seq, &e.What,
				&e.DistributionCode, &e.Weight)
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: load events")
	}
	return evs, nil
}

// ReplaceEventCosts deletes the run key's event costs and streams costs into
// costing.event_costs.
func ReplaceEventCosts(ctx context.Context, q db.Pool, key model.RunKey, costs []model.EventCost) (int64, error) {
	if err := deleteOutput(ctx, q, EventCosts, key); err != nil {
		return 0, err
	}
	return db.StreamCopy(ctx, q, pgx.Identifier{db.Schema, EventCosts}, EventCostColumns, len(costs),
		func(i int) []any {
			c := &costs[i]
			return []any{
				key.Hospital, key.Run, key.Model,
				c.EventCode, c.AttributeCode, c.Service, c.EpisodeNo, c.Seq, c.What,
				c.Account.Department, c.Account.CostType, c.DistributionCode, db.Numeric(c.Cost),
			}
		})
}

// LoadEventCosts reads the run key's event costs.
func LoadEventCosts(ctx context.Context, q db.Pool, key model.RunKey) ([]model.EventCost, error) {
	costs, err := collect(ctx, q,
		"SELECT "+strings.Join(EventCostColumns[3:], ", ")+" FROM event_costs WHERE "+outputScope.where()+
			" ORDER BY department_code, cost_type_code, distribution_code, event_code, event_attribute_code, episode_no, event_seq",
		outputScope.args(key), func(r pgx.Rows) (model.EventCost, error) {
			var c model.EventCost
			var cost pgtype.Numeric
			if err := r.Scan(&c.EventCode, &c.AttributeCode, &c.Service, &c.EpisodeNo, &c.Seq, &c.What,
				&c.Account.Department, &c.Account.CostType, &c.DistributionCode, &cost); err != nil {
				return c, err
			}
			var err error
			c.Cost, err = db.Decimal(cost)
			return c, err
		})
	if err != nil {
		return nil, eris.Wrap(err, "store: load event costs")
	}
	return costs, nil
}
