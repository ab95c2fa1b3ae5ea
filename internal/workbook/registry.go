// Package workbook loads configuration and activity tables from xlsx
// workbooks. Each sheet is named after the table it fills.
package workbook

import (
	"slices"

	"github.com/gyeh/clincost/internal/model"
)

// Kind is how a cell is parsed before it is copied into Postgres.
type Kind int

const (
	Text Kind = iota
	Int
	Float
	OptFloat
	Amount
	Bool
	Date
)

// Column is one loadable column of a table.
type Column struct {
	Name string
	Kind Kind
}

// Scope names the part of the run key a table is keyed by.
type Scope string

const (
	ScopeHospital Scope = "hospital"
	ScopeModel    Scope = "model"
	ScopeRun      Scope = "run"
)

// ParseScope accepts the --scope flag. An empty value selects every scope.
func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case "", ScopeHospital, ScopeModel, ScopeRun:
		return Scope(s), true
	}
	return "", false
}

// Table describes one loadable table. Identity columns are filled from the
// run key rather than the sheet, and every row with the same identity is
// replaced on load.
type Table struct {
	Name     string
	Scope    Scope
	Identity []string
	Columns  []Column
}

func (t *Table) column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (t *Table) isIdentity(name string) bool {
	return slices.Contains(t.Identity, name)
}

// identityValues returns the key values of t's identity columns, or the name
// of the first one the key leaves empty.
func (t *Table) identityValues(key model.RunKey) ([]any, string) {
	vals := make([]any, len(t.Identity))
	for i, col := range t.Identity {
		var v string
		switch col {
		case "hospital_code":
			v = key.Hospital
		case "model_code":
			v = key.Model
		case "run_code":
			v = key.Run
		}
		if v == "" {
			return nil, col
		}
		vals[i] = v
	}
	return vals, ""
}

func cols(kind Kind, names ...string) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		out[i] = Column{Name: n, Kind: kind}
	}
	return out
}

func concat(groups ...[]Column) []Column {
	var out []Column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var (
	hospitalID = []string{"hospital_code"}
	modelID    = []string{"hospital_code", "model_code"}
	runID      = []string{"hospital_code", "run_code"}

	moveColumns = concat(
		cols(Text, "from_department_code", "from_cost_type_code", "to_department_code", "to_cost_type_code"),
		cols(Int, "mapping_order"),
		cols(Text, "mapping_type_code"),
		cols(Amount, "amount"),
	)
	weightColumns = concat(
		cols(Text, "department_code", "cost_type_code", "general_ledger_attribute_code"),
		cols(Float, "general_ledger_attribute_weight"),
	)
	episodeOnly = cols(Int, "episode_no")
)

// Tables lists every table a workbook may fill, in load order.
var Tables = []Table{
	{Name: "hospitals", Scope: ScopeHospital, Identity: hospitalID, Columns: cols(Text, "hospital_name")},
	{Name: "models", Scope: ScopeModel, Identity: []string{"model_code"}, Columns: cols(Text, "model_description")},
	{Name: "clinical_costing_runs", Scope: ScopeRun, Identity: runID, Columns: cols(Text, "run_description")},
	{Name: "services", Scope: ScopeHospital, Identity: hospitalID, Columns: cols(Text, "service_code", "service_description")},
	{Name: "feeders", Scope: ScopeHospital, Identity: hospitalID, Columns: cols(Text, "feeder_code", "feeder_type_code", "feeder_description")},
	{Name: "wards", Scope: ScopeHospital, Identity: hospitalID, Columns: cols(Text, "ward_code", "ward_description")},
	{Name: "clinics", Scope: ScopeHospital, Identity: hospitalID, Columns: cols(Text, "clinic_code", "clinic_description")},

	{Name: "feeder_model", Scope: ScopeModel, Identity: modelID,
		Columns: cols(Text, "feeder_code", "new_department_code", "new_cost_type_code")},
	{Name: "general_ledger_mapping", Scope: ScopeModel, Identity: modelID, Columns: moveColumns},
	{Name: "department_grouping", Scope: ScopeModel, Identity: modelID,
		Columns: cols(Text, "from_department_code", "to_department_code")},
	{Name: "department_cost_type_grouping", Scope: ScopeModel, Identity: modelID,
		Columns: cols(Text, "department_code", "from_cost_type_code", "to_cost_type_code")},
	{Name: "cost_type_grouping", Scope: ScopeModel, Identity: modelID,
		Columns: cols(Text, "from_cost_type_code", "to_cost_type_code")},
	{Name: "general_ledger_disbursement", Scope: ScopeModel, Identity: modelID,
		Columns: concat(cols(Text, "department_code", "cost_type_code", "general_ledger_attribute_code"), cols(Int, "disbursement_level"))},
	{Name: "general_ledger_attributes", Scope: ScopeModel, Identity: modelID, Columns: weightColumns},
	{Name: "general_ledger_distribution", Scope: ScopeModel, Identity: modelID,
		Columns: concat(cols(Text, "department_code", "cost_type_code", "distribution_code"), cols(Float, "distribution_fraction"))},
	{Name: "event_codes", Scope: ScopeModel, Identity: modelID, Columns: cols(Text, "event_code", "event_description")},
	{Name: "event_attribute_codes", Scope: ScopeModel, Identity: modelID,
		Columns: cols(Text, "event_attribute_code", "event_attribute_description")},
	{Name: "event_attributes", Scope: ScopeModel, Identity: modelID, Columns: concat(
		cols(Text, "event_code", "event_attribute_code", "event_subroutine_name", "event_what", "event_where"),
		cols(Float, "event_attribute_base", "event_attribute_weight"),
		cols(OptFloat, "event_acuity_scaling"),
		cols(Bool, "event_aggregate"),
	)},
	{Name: "distribution_codes", Scope: ScopeModel, Identity: modelID,
		Columns: cols(Text, "distribution_code", "distribution_description")},

	{Name: "general_ledger_costs", Scope: ScopeRun, Identity: runID,
		Columns: concat(cols(Text, "department_code", "cost_type_code"), cols(Amount, "cost"))},
	{Name: "general_ledger_run_adjustments", Scope: ScopeRun, Identity: runID, Columns: moveColumns},
	{Name: "gl_attributes_run_adjustments", Scope: ScopeRun, Identity: runID, Columns: weightColumns},
	{Name: "itemized_costs", Scope: ScopeRun, Identity: runID, Columns: concat(
		cols(Text, "feeder_code", "service_code", "who", "invoice_no"),
		cols(Int, "invoice_line_no"),
		cols(Date, "item_date"),
		cols(Int, "episode_no"),
		cols(Text, "what", "department_code", "cost_type_code"),
		cols(Amount, "amount"),
	)},
	{Name: "ed_episode_details", Scope: ScopeRun, Identity: runID, Columns: concat(
		episodeOnly, cols(Float, "attend_min", "seen_min", "treat_min"), cols(OptFloat, "acuity"))},
	{Name: "ed_admissions", Scope: ScopeRun, Identity: runID, Columns: episodeOnly},
	{Name: "ed_discharges", Scope: ScopeRun, Identity: runID, Columns: episodeOnly},
	{Name: "clinic_activity_details", Scope: ScopeRun, Identity: runID, Columns: concat(
		episodeOnly, cols(Text, "clinic_code"), cols(Float, "attend_min"), cols(OptFloat, "acuity"))},
	{Name: "inpat_episode_details", Scope: ScopeRun, Identity: runID, Columns: concat(
		episodeOnly, cols(Text, "admitting_ward_code"), cols(Int, "same_day"), cols(OptFloat, "acuity"))},
	{Name: "inpat_admissions", Scope: ScopeRun, Identity: runID, Columns: episodeOnly},
	{Name: "inpat_discharges", Scope: ScopeRun, Identity: runID, Columns: episodeOnly},
	{Name: "inpat_patient_location", Scope: ScopeRun, Identity: runID, Columns: concat(
		episodeOnly, cols(Int, "location_seq"), cols(Text, "ward_code"),
		cols(Float, "ward_days", "ward_hours"), cols(OptFloat, "acuity"))},
	{Name: "inpat_theatre_details", Scope: ScopeRun, Identity: runID, Columns: concat(
		episodeOnly, cols(Int, "surgery_seq"), cols(Float, "theatre_mins", "anaesthetic_mins"),
		cols(OptFloat, "theatre_acuity"))},
}

// TableByName returns the registered table called name.
func TableByName(name string) (*Table, bool) {
	for i := range Tables {
		if Tables[i].Name == name {
			return &Tables[i], true
		}
	}
	return nil, false
}
