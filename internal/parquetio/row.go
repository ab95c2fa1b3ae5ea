package parquetio

import (
	"github.com/shopspring/decimal"

	"github.com/gyeh/clincost/internal/model"
)

// EventCostRow is one event cost in the Parquet export. Cost is the decimal
// text so the export keeps the ledger's exact value.
type EventCostRow struct {
	HospitalCode       string  `parquet:"hospital_code"`
	RunCode            string  `parquet:"run_code"`
	ModelCode          string  `parquet:"model_code"`
	EventCode          string  `parquet:"event_code"`
	EventAttributeCode string  `parquet:"event_attribute_code"`
	ServiceCode        string  `parquet:"service_code"`
	EpisodeNo          int64   `parquet:"episode_no"`
	EventSeq           int64   `parquet:"event_seq"`
	EventWhat          string  `parquet:"event_what"`
	DepartmentCode     string  `parquet:"department_code"`
	CostTypeCode       string  `parquet:"cost_type_code"`
	DistributionCode   string  `parquet:"distribution_code"`
	Cost               string  `parquet:"cost"`
	CostApprox         float64 `parquet:"cost_approx"`
}

// FromEventCost converts an allocated cost to its export row.
func FromEventCost(key model.RunKey, c model.EventCost) EventCostRow {
	return EventCostRow{
		HospitalCode:       key.Hospital,
		RunCode:            key.Run,
		ModelCode:          key.Model,
		EventCode:          c.EventCode,
		EventAttributeCode: c.AttributeCode,
		ServiceCode:        c.Service,
		EpisodeNo:          c.EpisodeNo,
		EventSeq:           c.Seq,
		EventWhat:          c.What,
		DepartmentCode:     c.Account.Department,
		CostTypeCode:       c.Account.CostType,
		DistributionCode:   c.DistributionCode,
		Cost:               c.Cost.String(),
		CostApprox:         c.Cost.InexactFloat64(),
	}
}

// EventCost converts the row back, returning its run key alongside.
func (r *EventCostRow) EventCost() (model.RunKey, model.EventCost, error) {
	cost, err := decimal.NewFromString(r.Cost)
	if err != nil {
		return model.RunKey{}, model.EventCost{}, err
	}
	key := model.RunKey{Hospital: r.HospitalCode, Model: r.ModelCode, Run: r.RunCode}
	return key, model.EventCost{
		EventID: model.EventID{
			EventCode:     r.EventCode,
			AttributeCode: r.EventAttributeCode,
			Service:       r.ServiceCode,
			EpisodeNo:     r.EpisodeNo,
			Seq:           r.EventSeq,
			What:          r.EventWhat,
		},
		Account:          model.AccountKey{Department: r.DepartmentCode, CostType: r.CostTypeCode},
		DistributionCode: r.DistributionCode,
		Cost:             cost,
	}, nil
}
