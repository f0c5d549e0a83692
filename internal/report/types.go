package report

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// BudgetStatus classifies a variance. Zero variance is UnderBudget.
type BudgetStatus string

const (
	OverBudget  BudgetStatus = "over_budget"
	UnderBudget BudgetStatus = "under_budget"
)

// StatusFor returns OverBudget only when variance is strictly positive.
func StatusFor(variance decimal.Decimal) BudgetStatus {
	if variance.IsPositive() {
		return OverBudget
	}
	return UnderBudget
}

// Percent is a percentage that may be undefined, e.g. a share of zero income.
// The undefined value renders as "n/a" and marshals to JSON null.
type Percent struct {
	decimal.NullDecimal
}

var hundred = decimal.NewFromInt(100)

// Undefined is the sentinel for a percentage that cannot be computed.
var Undefined = Percent{}

// PercentOf returns part/whole*100 rounded to one decimal, or Undefined when whole is zero.
func PercentOf(part, whole decimal.Decimal) Percent {
	if whole.IsZero() {
		return Undefined
	}
	return Percent{decimal.NewNullDecimal(part.Div(whole).Mul(hundred).Round(1))}
}

func (p Percent) String() string {
	if !p.Valid {
		return "n/a"
	}
	return p.Decimal.StringFixed(1) + "%"
}

func (p Percent) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.Decimal.Round(1).InexactFloat64())
}

type BudgetActualRow struct {
	Month    int
	Category string
	Budget   decimal.Decimal
	Actual   decimal.Decimal
}

type VarianceRow struct {
	Month    int
	Category string
	Budget   decimal.Decimal
	Actual   decimal.Decimal
	Variance decimal.Decimal
	Status   BudgetStatus
}

type CategorySpend struct {
	Category           string
	Spent              decimal.Decimal
	PctOfIncome        Percent
	PctOfTotalExpenses Percent
}

// Breakdown is the income/expense split for one user across all periods.
type Breakdown struct {
	Username      string
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	Categories    []CategorySpend
}

// Savings is income left after expenses. Negative when overspent.
func (b Breakdown) Savings() decimal.Decimal {
	return b.TotalIncome.Sub(b.TotalExpenses)
}

func (b Breakdown) Empty() bool {
	return b.TotalIncome.IsZero() && len(b.Categories) == 0
}

type DetailRow struct {
	Category          string
	Budgeted          decimal.Decimal
	ActualSpent       decimal.Decimal
	Variance          decimal.Decimal
	PctOfIncome       Percent
	BudgetPctOfIncome Percent
}

// Summary is one month of income against realized expenses.
type Summary struct {
	Year        int
	Month       int
	Income      decimal.Decimal
	Expenses    decimal.Decimal
	Saving      decimal.Decimal
	SavingsRate Percent
}

type GoalRow struct {
	GoalType string
	Target   decimal.Decimal
	Current  decimal.Decimal
	Date     string
	Percent  Percent
}
