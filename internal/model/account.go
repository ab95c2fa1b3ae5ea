package model

import "github.com/shopspring/decimal"

// OtherCostType is the cost type that unpreserved cost types fold into.
const OtherCostType = "other"

// AccountKey identifies a general-ledger account within one run.
type AccountKey struct {
	Department string
	CostType   string
}

// Less orders keys by department, then cost type.
func (k AccountKey) Less(o AccountKey) bool {
	if k.Department != o.Department {
		return k.Department < o.Department
	}
	return k.CostType < o.CostType
}

func (k AccountKey) String() string {
	return k.Department + "/" + k.CostType
}

// Account is one general-ledger balance.
type Account struct {
	AccountKey
	Cost decimal.Decimal
}

// MoveMode says how the amount of a MoveRule is read.
type MoveMode string

const (
	MoveAbsolute MoveMode = "A" // amount is a currency value
	MoveFraction MoveMode = "F" // amount is a fraction of the current source balance
)

// ParseMoveMode accepts the mapping_type_code values of the model tables.
// An empty code is treated as absolute.
func ParseMoveMode(code string) (MoveMode, bool) {
	switch MoveMode(code) {
	case MoveAbsolute, "":
		return MoveAbsolute, true
	case MoveFraction:
		return MoveFraction, true
	}
	return "", false
}

// MoveRule moves cost between two accounts. It backs both the run
// adjustments and the model's general-ledger mapping.
type MoveRule struct {
	From   AccountKey
	To     AccountKey
	Order  int
	Mode   MoveMode
	Amount decimal.Decimal
}

// DepartmentGroup moves every cost type of one department into another.
type DepartmentGroup struct {
	FromDepartment string
	ToDepartment   string
}

// DepartmentCostTypeGroup renames one cost type within one department.
type DepartmentCostTypeGroup struct {
	Department   string
	FromCostType string
	ToCostType   string
}

// CostTypeGroup renames a cost type across all departments.
type CostTypeGroup struct {
	FromCostType string
	ToCostType   string
}

// DisbursementRule marks an account as indirect. Its balance is pushed to the
// accounts carrying AttributeCode.
type DisbursementRule struct {
	Account       AccountKey
	AttributeCode string
	Level         int
}

// AttributeWeight is the share an account receives of any indirect balance
// disbursed on AttributeCode.
type AttributeWeight struct {
	Account       AccountKey
	AttributeCode string
	Weight        float64
}

// DistributionRule sends a fraction of an account's balance to the events
// carrying DistributionCode.
type DistributionRule struct {
	Account          AccountKey
	DistributionCode string
	Fraction         float64
}
