package workbook

func sheet(name string, header []string, rows ...[]string) Sheet {
	return Sheet{Name: name, Header: header, Rows: rows}
}

// Sample returns a small but complete costing dataset: reference codes, a
// model and one run of ledger, feeder and activity data. It backs the
// mkfixture command and the end-to-end tests.
func Sample() []Sheet {
	return []Sheet{
		sheet("hospitals", []string{"hospital_name"}, []string{"Demo Hospital"}),
		sheet("models", []string{"model_description"}, []string{"Demo costing model"}),
		sheet("clinical_costing_runs", []string{"run_description"}, []string{"Demo run"}),
		sheet("services", []string{"service_code", "service_description"},
			[]string{"Inpat", "Inpatient"},
			[]string{"ED", "Emergency department"},
			[]string{"Clinic", "Outpatient clinic"}),
		sheet("feeders", []string{"feeder_code", "feeder_type_code", "feeder_description"},
			[]string{"PHARM", "C", "Pharmacy dispensing"},
			[]string{"PATH", "A", "Pathology tests"}),
		sheet("wards", []string{"ward_code", "ward_description"},
			[]string{"W1", "Ward one"},
			[]string{"W2", "Ward two"}),
		sheet("clinics", []string{"clinic_code", "clinic_description"},
			[]string{"C1", "Clinic one"}),

		sheet("feeder_model", []string{"feeder_code", "new_department_code", "new_cost_type_code"},
			[]string{"PHARM", "PHARMACY", "drugs"},
			[]string{"PATH", "PATHOL", "supplies"}),
		sheet("general_ledger_mapping", []string{
			"from_department_code", "from_cost_type_code", "to_department_code", "to_cost_type_code",
			"mapping_order", "mapping_type_code", "amount"},
			[]string{"ICU", "drugs", "WARD", "drugs", "1", "F", "1"}),
		sheet("department_grouping", []string{"from_department_code", "to_department_code"},
			[]string{"PATHOL", "LAB"}),
		sheet("cost_type_grouping", []string{"from_cost_type_code", "to_cost_type_code"},
			[]string{"salary", "salaries"},
			[]string{"nursing", "nursing"},
			[]string{"drugs", "drugs"},
			[]string{"supplies", "supplies"}),
		sheet("general_ledger_disbursement", []string{
			"department_code", "cost_type_code", "general_ledger_attribute_code", "disbursement_level"},
			[]string{"ADMIN", "salaries", "FTE", "1"}),
		sheet("general_ledger_attributes", []string{
			"department_code", "cost_type_code", "general_ledger_attribute_code", "general_ledger_attribute_weight"},
			[]string{"ED", "nursing", "FTE", "1"},
			[]string{"WARD", "nursing", "FTE", "3"}),
		sheet("general_ledger_distribution", []string{
			"department_code", "cost_type_code", "distribution_code", "distribution_fraction"},
			[]string{"ED", "nursing", "EDATT", "1"},
			[]string{"WARD", "nursing", "W1BDAY", "0.5"},
			[]string{"WARD", "nursing", "W2BDAY", "0.5"},
			[]string{"WARD", "drugs", "W1BDAY", "1"},
			[]string{"THEATRE", "salaries", "THMIN", "1"},
			[]string{"LAB", "supplies", "PATH", "1"}),
		sheet("event_codes", []string{"event_code", "event_description"},
			[]string{"EDATT", "ED attendance"},
			[]string{"BDAY", "Bed days"},
			[]string{"THMIN", "Theatre time"}),
		sheet("event_attribute_codes", []string{"event_attribute_code", "event_attribute_description"},
			[]string{"MIN", "Minutes"},
			[]string{"DAYS", "Days"}),
		sheet("event_attributes", []string{
			"event_code", "event_attribute_code", "event_subroutine_name", "event_what", "event_where",
			"event_attribute_base", "event_attribute_weight", "event_acuity_scaling", "event_aggregate"},
			[]string{"EDATT", "MIN", "EDattendmin", "", "", "0", "1", "1", "N"},
			[]string{"BDAY", "DAYS", "ipwardbdays", "", "", "0", "1", "", "N"},
			[]string{"THMIN", "MIN", "theatremin", "", "", "0", "1", "", "N"}),
		sheet("distribution_codes", []string{"distribution_code", "distribution_description"},
			[]string{"EDATT", "ED attendance minutes"},
			[]string{"THMIN", "Theatre minutes"},
			[]string{"PATH", "Pathology tests"}),

		sheet("general_ledger_costs", []string{"department_code", "cost_type_code", "cost"},
			[]string{"ADMIN", "salary", "1000.00"},
			[]string{"ED", "nursing", "3000.00"},
			[]string{"WARD", "nursing", "6000.00"},
			[]string{"WARD", "stationery", "50.00"},
			[]string{"ICU", "drugs", "500.00"},
			[]string{"THEATRE", "salary", "2000.00"},
			[]string{"PATHOL", "supplies", "240.00"}),
		sheet("general_ledger_run_adjustments", []string{
			"from_department_code", "from_cost_type_code", "to_department_code", "to_cost_type_code",
			"mapping_order", "mapping_type_code", "amount"},
			[]string{"ICU", "drugs", "WARD", "drugs", "1", "A", "50"}),
		sheet("itemized_costs", []string{
			"feeder_code", "service_code", "who", "invoice_no", "invoice_line_no", "item_date",
			"episode_no", "what", "department_code", "cost_type_code", "amount"},
			[]string{"PHARM", "Inpat", "dispensary", "P100", "1", "2024-03-02", "1001", "antibiotics", "ICU", "drugs", "200.00"},
			[]string{"PHARM", "Inpat", "dispensary", "P100", "2", "2024-03-04", "1002", "analgesia", "ICU", "drugs", "100.00"},
			[]string{"PATH", "Inpat", "lab", "L1", "1", "2024-03-02", "1001", "FBC", "PATHOL", "supplies", "30.00"},
			[]string{"PATH", "Inpat", "lab", "L1", "2", "", "1003", "UEC", "PATHOL", "supplies", "30.00"}),
		sheet("ed_episode_details", []string{"episode_no", "attend_min", "seen_min", "treat_min", "acuity"},
			[]string{"2001", "60", "10", "40", "1"},
			[]string{"2002", "120", "20", "90", "2"}),
		sheet("inpat_episode_details", []string{"episode_no", "admitting_ward_code", "same_day", "acuity"},
			[]string{"1001", "W1", "0", ""},
			[]string{"1002", "W2", "0", ""},
			[]string{"1003", "W1", "1", ""}),
		sheet("inpat_patient_location", []string{"episode_no", "location_seq", "ward_code", "ward_days", "ward_hours", "acuity"},
			[]string{"1001", "1", "W1", "3", "72", ""},
			[]string{"1001", "2", "W2", "2", "48", ""},
			[]string{"1002", "1", "W2", "4", "96", ""}),
		sheet("inpat_theatre_details", []string{"episode_no", "surgery_seq", "theatre_mins", "anaesthetic_mins", "theatre_acuity"},
			[]string{"1001", "1", "90", "60", ""},
			[]string{"1002", "1", "30", "20", ""}),
	}
}
