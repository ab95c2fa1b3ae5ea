package model

import "github.com/shopspring/decimal"

// Service codes used by the activity-based events.
const (
	ServiceInpatient = "Inpat"
	ServiceED        = "ED"
	ServiceClinic    = "Clinic"
)

// EventID is the identity shared by an event and the costs allocated to it.
type EventID struct {
	EventCode     string
	AttributeCode string
	Service       string
	EpisodeNo     int64
	Seq           int64
	What          string
}

// Event is a weighted unit of clinical activity.
type Event struct {
	EventID
	DistributionCode string
	Weight           float64
}

// EventColumns returns the ordered column names for COPY into costing.events.
func EventColumns() []string {
	return []string{
		"hospital_code",
		"run_code",
		"model_code",
		"event_code",
		"event_attribute_code",
		"service_code",
		"episode_no",
		"event_seq",
		"event_what",
		"distribution_code",
		"event_weight",
	}
}

// CopyValues returns the event values in the same order as EventColumns(),
// suitable for pgx CopyFromSource.
func (e *Event) CopyValues(key RunKey) []any {
	return []any{
		key.Hospital,
		key.Run,
		key.Model,
		e.EventCode,
		e.AttributeCode,
		e.Service,
		e.EpisodeNo,
		e.Seq,
		e.What,
		e.DistributionCode,
		e.Weight,
	}
}

// EventCost is cost allocated from one account to one event.
type EventCost struct {
	EventID
	Account          AccountKey
	DistributionCode string
	Cost             decimal.Decimal
}

// EventAttribute is one row of the model's event_attributes table: which
// subroutine builds the events and how their weight is computed.
type EventAttribute struct {
	EventCode     string
	AttributeCode string
	Subroutine    string
	What          string
	Where         string // extra SQL filter appended to the activity query
	Base          float64
	Weight        float64
	AcuityScaling *float64
	Aggregate     bool
}

// ActivityQuery describes where a subroutine reads its activity rows.
// From must filter on hospital_code = $1 and run_code = $2.
type ActivityQuery struct {
	From      string
	Episode   string
	Seq       string // empty means every row is sequence 1
	Unit      string // ward or clinic column; empty for non-unit events
	Measure   string // empty means a count of 1 per row
	Acuity    string // empty means acuity 1
	Condition string // fixed extra condition, e.g. same_day = 1
}

// ActivityRow is one source row returned for an ActivityQuery.
type ActivityRow struct {
	EpisodeNo int64
	Seq       int64
	Unit      string
	Measure   float64
	Acuity    *float64
}
