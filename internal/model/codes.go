package model

// CodeTables caches the descriptions of the code sets the event builder
// needs. It belongs to one RunContext.
type CodeTables struct {
	EventCodes          map[string]string
	EventAttributeCodes map[string]string
	DistributionCodes   map[string]string
	Wards               map[string]string
	Clinics             map[string]string
	Services            map[string]string
}

// NewCodeTables returns empty, ready-to-fill code tables.
func NewCodeTables() *CodeTables {
	return &CodeTables{
		EventCodes:          make(map[string]string),
		EventAttributeCodes: make(map[string]string),
		DistributionCodes:   make(map[string]string),
		Wards:               make(map[string]string),
		Clinics:             make(map[string]string),
		Services:            make(map[string]string),
	}
}

// DistributionCode is a code registered while building events.
type DistributionCode struct {
	Code        string
	Description string
}
