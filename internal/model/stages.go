package model

// Stage is one step of the costing pipeline.
type Stage struct {
	Name     string   // CLI name, e.g. "disburse"
	State    string   // pipeline_runs state reached when the stage completes
	Requires string   // state that must be complete before the stage runs
	Outputs  []string // tables the stage replaces for its run key
}

// AllStages lists the pipeline stages in execution order.
var AllStages = []Stage{
	{Name: "validate", State: "validated"},
	{Name: "build", State: "mapped", Requires: "validated",
		Outputs: []string{"general_ledger_adjusted", "general_ledger_mapped", "general_ledger_built"}},
	{Name: "disburse", State: "disbursed", Requires: "mapped",
		Outputs: []string{"general_ledger_disbursed"}},
	{Name: "events", State: "events_built", Requires: "disbursed",
		Outputs: []string{"events"}},
	{Name: "distribute", State: "distributed", Requires: "events_built",
		Outputs: []string{"event_costs", "general_ledger_undistributed"}},
}

// StageNames returns the stage names in execution order.
func StageNames() []string {
	names := make([]string, len(AllStages))
	for i, s := range AllStages {
		names[i] = s.Name
	}
	return names
}

// StageByName returns the Stage with the given name, or ok=false.
func StageByName(name string) (Stage, bool) {
	for _, s := range AllStages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// StagesAfter returns the stages that follow the named stage.
func StagesAfter(name string) []Stage {
	for i, s := range AllStages {
		if s.Name == name {
			return AllStages[i+1:]
		}
	}
	return nil
}
