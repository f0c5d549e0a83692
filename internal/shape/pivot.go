package shape

import (
	"sort"

	"fintrack/internal/core"
)

// MonthlyPivot aligns ledger income and expense totals on the months present.
type MonthlyPivot struct {
	Months  []string // "2006-01", ascending
	Income  []core.Money
	Expense []core.Money
}

func (p MonthlyPivot) Empty() bool { return len(p.Months) == 0 }

// IncomeVsExpense pivots month x type totals. Types other than income and expense
// are ignored; a month with only one of them is zero filled for the other.
func IncomeVsExpense(totals []core.MonthTypeTotal) MonthlyPivot {
	index := map[string]int{}
	var months []string
	for _, t := range totals {
		if t.Type != core.TypeIncome && t.Type != core.TypeExpense {
			continue
		}
		if _, ok := index[t.Month]; !ok {
			index[t.Month] = 0
			months = append(months, t.Month)
		}
	}
	sort.Strings(months)
	for i, m := range months {
		index[m] = i
	}

	p := MonthlyPivot{
		Months:  months,
		Income:  make([]core.Money, len(months)),
		Expense: make([]core.Money, len(months)),
	}
	for _, t := range totals {
		i, ok := index[t.Month]
		if !ok {
			continue
		}
		switch t.Type {
		case core.TypeIncome:
			p.Income[i].Cents += t.Amount.Cents
		case core.TypeExpense:
			p.Expense[i].Cents += t.Amount.Cents
		}
	}
	return p
}
