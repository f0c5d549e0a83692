// Package shape turns flat report rows into the structures each chart draws from.
package shape

import (
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/report"
)

// GroupedSeries holds one budget and one actual series per category, all aligned
// on Months. A (month, category) pair missing from the rows is zero.
type GroupedSeries struct {
	Months     []int
	Categories []CategorySeries
}

type CategorySeries struct {
	Category string
	Budget   []decimal.Decimal
	Actual   []decimal.Decimal
}

type VarianceSeries struct {
	Months     []int
	Categories []CategoryVariance
}

type CategoryVariance struct {
	Category string
	Variance []decimal.Decimal
	Status   []report.BudgetStatus
}

func (g GroupedSeries) Empty() bool  { return len(g.Months) == 0 }
func (v VarianceSeries) Empty() bool { return len(v.Months) == 0 }

// axes collects the sorted distinct months and categories and the index of each month.
func axes(n int, key func(i int) (int, string)) ([]int, []string, map[int]int) {
	monthSet := map[int]struct{}{}
	catSet := map[string]struct{}{}
	for i := 0; i < n; i++ {
		m, c := key(i)
		monthSet[m] = struct{}{}
		catSet[c] = struct{}{}
	}

	months := make([]int, 0, len(monthSet))
	for m := range monthSet {
		months = append(months, m)
	}
	sort.Ints(months)

	cats := make([]string, 0, len(catSet))
	for c := range catSet {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	index := make(map[int]int, len(months))
	for i, m := range months {
		index[m] = i
	}
	return months, cats, index
}

func zeros(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.Zero
	}
	return out
}

// GroupedBudgetActual aligns budget and actual per category on every month present.
func GroupedBudgetActual(rows []report.BudgetActualRow) GroupedSeries {
	months, cats, index := axes(len(rows), func(i int) (int, string) {
		return rows[i].Month, rows[i].Category
	})

	byCat := make(map[string]*CategorySeries, len(cats))
	out := GroupedSeries{Months: months, Categories: make([]CategorySeries, len(cats))}
	for i, c := range cats {
		out.Categories[i] = CategorySeries{Category: c, Budget: zeros(len(months)), Actual: zeros(len(months))}
		byCat[c] = &out.Categories[i]
	}

	for _, r := range rows {
		s := byCat[r.Category]
		j := index[r.Month]
		s.Budget[j] = s.Budget[j].Add(r.Budget)
		s.Actual[j] = s.Actual[j].Add(r.Actual)
	}
	return out
}

// GroupedVariance aligns variance per category on every month present. Filled
// gaps have zero variance and are therefore UnderBudget.
func GroupedVariance(rows []report.VarianceRow) VarianceSeries {
	months, cats, index := axes(len(rows), func(i int) (int, string) {
		return rows[i].Month, rows[i].Category
	})

	byCat := make(map[string]*CategoryVariance, len(cats))
	out := VarianceSeries{Months: months, Categories: make([]CategoryVariance, len(cats))}
	for i, c := range cats {
		cv := CategoryVariance{Category: c, Variance: zeros(len(months)), Status: make([]report.BudgetStatus, len(months))}
		for j := range cv.Status {
			cv.Status[j] = report.UnderBudget
		}
		out.Categories[i] = cv
		byCat[c] = &out.Categories[i]
	}

	for _, r := range rows {
		s := byCat[r.Category]
		j := index[r.Month]
		s.Variance[j] = s.Variance[j].Add(r.Variance)
		s.Status[j] = report.StatusFor(s.Variance[j])
	}
	return out
}
