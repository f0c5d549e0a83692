package report

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/analytics"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestEngine(t *testing.T) (*Engine, *analytics.Store) {
	t.Helper()
	store, err := analytics.Open(context.Background(), filepath.Join(t.TempDir(), "analytics.db"))
	if err != nil {
		t.Fatalf("analytics.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewEngine(FromStore(store)), store
}

// seedLydia loads the January 2025 scenario: 20000 income, rent on budget and food 500 over.
func seedLydia(t *testing.T, store *analytics.Store) {
	t.Helper()
	ctx := context.Background()
	w := store.Writer()
	jan := date(2025, time.January, 1)

	if err := w.AddIncome(ctx, analytics.IncomeRecord{
		Username: "lydia", Date: jan, IncomeAfterTax: dec("20000"), AdditionalIncome: dec("0"), Household: "single",
	}); err != nil {
		t.Fatalf("AddIncome: %v", err)
	}
	for _, e := range []analytics.ExpenseRecord{
		{Username: "lydia", Category: "rent", Date: jan, Budget: dec("8000"), Actual: decimal.NewNullDecimal(dec("8000"))},
		{Username: "lydia", Category: "food", Date: jan, Budget: dec("2000"), Actual: decimal.NewNullDecimal(dec("2500"))},
	} {
		if err := w.AddUserExpense(ctx, e); err != nil {
			t.Fatalf("AddUserExpense: %v", err)
		}
	}
}

func TestMonthlyVariance_LydiaScenario(t *testing.T) {
	engine, store := newTestEngine(t)
	seedLydia(t, store)

	rows, err := engine.MonthlyVariance(context.Background(), "lydia", 2025)
	if err != nil {
		t.Fatalf("MonthlyVariance: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}

	want := map[string]struct {
		variance string
		status   BudgetStatus
	}{
		"rent": {"0", UnderBudget},
		"food": {"500", OverBudget},
	}
	for _, r := range rows {
		w, ok := want[r.Category]
		if !ok {
			t.Errorf("unexpected category %q", r.Category)
			continue
		}
		if !r.Variance.Equal(dec(w.variance)) {
			t.Errorf("%s: variance = %s, want %s", r.Category, r.Variance, w.variance)
		}
		if r.Status != w.status {
			t.Errorf("%s: status = %s, want %s", r.Category, r.Status, w.status)
		}
		if r.Month != 1 {
			t.Errorf("%s: month = %d, want 1", r.Category, r.Month)
		}
	}
	if rows[0].Category != "food" || rows[1].Category != "rent" {
		t.Errorf("rows must be ordered by month then category, got %s, %s", rows[0].Category, rows[1].Category)
	}
}

func TestIncomeExpenseBreakdown_LydiaScenario(t *testing.T) {
	engine, store := newTestEngine(t)
	seedLydia(t, store)

	b, err := engine.IncomeExpenseBreakdown(context.Background(), "lydia")
	if err != nil {
		t.Fatalf("IncomeExpenseBreakdown: %v", err)
	}
	if !b.TotalIncome.Equal(dec("20000")) {
		t.Errorf("total income = %s, want 20000", b.TotalIncome)
	}
	if !b.TotalExpenses.Equal(dec("10500")) {
		t.Errorf("total expenses = %s, want 10500", b.TotalExpenses)
	}
	if !b.Savings().Equal(dec("9500")) {
		t.Errorf("savings = %s, want 9500", b.Savings())
	}

	var food CategorySpend
	for _, c := range b.Categories {
		if c.Category == "food" {
			food = c
		}
	}
	if !food.PctOfIncome.Valid || !food.PctOfIncome.Decimal.Equal(dec("12.5")) {
		t.Errorf("food pct of income = %s, want 12.5%%", food.PctOfIncome)
	}
	if !food.PctOfTotalExpenses.Valid || !food.PctOfTotalExpenses.Decimal.Equal(dec("23.8")) {
		t.Errorf("food pct of expenses = %s, want 23.8%%", food.PctOfTotalExpenses)
	}
}

func TestMonthlyVariance_MatchesBudgetVsActual(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	w := store.Writer()

	entries := []analytics.ExpenseRecord{
		{Username: "ana", Category: "rent", Date: date(2025, time.January, 1), Budget: dec("900.10"), Actual: decimal.NewNullDecimal(dec("900.10"))},
		{Username: "ana", Category: "rent", Date: date(2025, time.January, 15), Budget: dec("0.20"), Actual: decimal.NewNullDecimal(dec("0.10"))},
		{Username: "ana", Category: "fun", Date: date(2025, time.February, 1), Budget: dec("120.33"), Actual: decimal.NewNullDecimal(dec("99.99"))},
		{Username: "ana", Category: "fun", Date: date(2025, time.March, 1), Budget: dec("50"), Actual: decimal.NullDecimal{}},
		{Username: "ana", Category: "rent", Date: date(2024, time.December, 1), Budget: dec("800"), Actual: decimal.NewNullDecimal(dec("800"))},
	}
	for _, e := range entries {
		if err := w.AddUserExpense(ctx, e); err != nil {
			t.Fatalf("AddUserExpense: %v", err)
		}
	}

	base, err := engine.MonthlyBudgetVsActual(ctx, "ana", 2025)
	if err != nil {
		t.Fatalf("MonthlyBudgetVsActual: %v", err)
	}
	variance, err := engine.MonthlyVariance(ctx, "ana", 2025)
	if err != nil {
		t.Fatalf("MonthlyVariance: %v", err)
	}
	if len(base) != 3 || len(variance) != len(base) {
		t.Fatalf("expected 3 rows in both, got %d and %d", len(base), len(variance))
	}

	for i := range base {
		if base[i].Month != variance[i].Month || base[i].Category != variance[i].Category {
			t.Fatalf("row %d keys differ: %+v vs %+v", i, base[i], variance[i])
		}
		if !base[i].Actual.Sub(base[i].Budget).Equal(variance[i].Variance) {
			t.Errorf("row %d: actual-budget = %s, variance = %s", i, base[i].Actual.Sub(base[i].Budget), variance[i].Variance)
		}
	}

	if !base[0].Budget.Equal(dec("900.30")) || !base[0].Actual.Equal(dec("900.20")) {
		t.Errorf("January rent should sum both rows, got budget %s actual %s", base[0].Budget, base[0].Actual)
	}
	if !base[2].Actual.IsZero() {
		t.Errorf("unrealized actual must count as zero, got %s", base[2].Actual)
	}
}

func TestMonthlyBudgetVsActual_NoData(t *testing.T) {
	engine, store := newTestEngine(t)
	seedLydia(t, store)
	ctx := context.Background()

	for _, tc := range []struct {
		name     string
		username string
		year     int
	}{
		{"unknown user", "nobody", 2025},
		{"other year", "lydia", 2019},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := engine.MonthlyBudgetVsActual(ctx, tc.username, tc.year)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rows == nil || len(rows) != 0 {
				t.Errorf("expected empty non-nil slice, got %#v", rows)
			}
		})
	}
}

func TestDetailedBreakdownTable_ZeroIncomeSentinel(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	err := store.Writer().AddUserExpense(ctx, analytics.ExpenseRecord{
		Username: "noincome", Category: "rent", Date: date(2025, time.May, 1),
		Budget: dec("100"), Actual: decimal.NewNullDecimal(dec("120")),
	})
	if err != nil {
		t.Fatal(err)
	}

	rows, err := engine.DetailedBreakdownTable(ctx, "noincome")
	if err != nil {
		t.Fatalf("DetailedBreakdownTable: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.PctOfIncome.Valid || r.BudgetPctOfIncome.Valid {
		t.Errorf("percentages must be undefined with zero income, got %s and %s", r.PctOfIncome, r.BudgetPctOfIncome)
	}
	if r.PctOfIncome.String() != "n/a" {
		t.Errorf("undefined percent should render n/a, got %q", r.PctOfIncome.String())
	}
	if !r.Variance.Equal(dec("20")) {
		t.Errorf("variance = %s, want 20", r.Variance)
	}

	b, err := engine.IncomeExpenseBreakdown(ctx, "noincome")
	if err != nil {
		t.Fatal(err)
	}
	if b.Categories[0].PctOfIncome.Valid {
		t.Error("breakdown pct of income must be undefined with zero income")
	}
	if !b.Categories[0].PctOfTotalExpenses.Valid {
		t.Error("pct of total expenses is defined when expenses are non-zero")
	}
}

func TestDetailedBreakdownTable_Lydia(t *testing.T) {
	engine, store := newTestEngine(t)
	seedLydia(t, store)

	rows, err := engine.DetailedBreakdownTable(context.Background(), "lydia")
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		category, variance, pct, budgetPct string
	}{
		{"food", "500", "12.5", "10"},
		{"rent", "0", "40", "40"},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i, w := range want {
		r := rows[i]
		if r.Category != w.category {
			t.Errorf("row %d: category %s, want %s", i, r.Category, w.category)
		}
		if !r.Variance.Equal(dec(w.variance)) {
			t.Errorf("%s: variance %s, want %s", w.category, r.Variance, w.variance)
		}
		if !r.PctOfIncome.Decimal.Equal(dec(w.pct)) {
			t.Errorf("%s: pct of income %s, want %s", w.category, r.PctOfIncome, w.pct)
		}
		if !r.BudgetPctOfIncome.Decimal.Equal(dec(w.budgetPct)) {
			t.Errorf("%s: budget pct of income %s, want %s", w.category, r.BudgetPctOfIncome, w.budgetPct)
		}
	}
}

func TestOperations_Idempotent(t *testing.T) {
	engine, store := newTestEngine(t)
	seedLydia(t, store)
	ctx := context.Background()

	ops := map[string]func() (any, error){
		"variance":  func() (any, error) { return engine.MonthlyVariance(ctx, "lydia", 2025) },
		"breakdown": func() (any, error) { return engine.IncomeExpenseBreakdown(ctx, "lydia") },
		"detail":    func() (any, error) { return engine.DetailedBreakdownTable(ctx, "lydia") },
		"users":     func() (any, error) { return engine.LookupAllUsers(ctx) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			first, err := op()
			if err != nil {
				t.Fatal(err)
			}
			second, err := op()
			if err != nil {
				t.Fatal(err)
			}
			a, _ := json.Marshal(first)
			b, _ := json.Marshal(second)
			if string(a) != string(b) {
				t.Errorf("outputs differ:\n%s\n%s", a, b)
			}
		})
	}

	if store.InUse() != 0 {
		t.Errorf("handles leaked: %d connections still in use", store.InUse())
	}
}

func TestLookups_Alphabetical(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	w := store.Writer()

	for _, u := range []string{"zoe", "lydia", "marco"} {
		if _, err := w.EnsureUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	for _, c := range []string{"transport", "food", "rent"} {
		if _, err := w.EnsureExpenseCategory(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	users, err := engine.LookupAllUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(users, []string{"lydia", "marco", "zoe"}) {
		t.Errorf("users = %v", users)
	}
	cats, err := engine.LookupExpenseCategories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cats, []string{"food", "rent", "transport"}) {
		t.Errorf("categories = %v", cats)
	}
}

func TestMonthSummary(t *testing.T) {
	engine, store := newTestEngine(t)
	seedLydia(t, store)
	ctx := context.Background()

	s, err := engine.MonthSummary(ctx, "lydia", 2025, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Saving.Equal(dec("9500")) {
		t.Errorf("saving = %s, want 9500", s.Saving)
	}
	if s.SavingsRate.String() != "47.5%" {
		t.Errorf("savings rate = %s, want 47.5%%", s.SavingsRate)
	}

	empty, err := engine.MonthSummary(ctx, "lydia", 2025, 2)
	if err != nil {
		t.Fatal(err)
	}
	if empty.SavingsRate.Valid {
		t.Error("savings rate must be undefined for a month without income")
	}
}

func TestGoalProgress(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	w := store.Writer()

	for _, g := range []analytics.GoalRecord{
		{Username: "lydia", GoalType: "savings", Target: dec("1000"), Current: dec("250"), Date: date(2025, time.February, 1)},
		{Username: "lydia", GoalType: "retirement", Target: dec("50000"), Current: dec("100"), Date: date(2025, time.January, 1)},
	} {
		if err := w.AddGoalProgress(ctx, g); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := engine.GoalProgress(ctx, "lydia")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].GoalType != "retirement" {
		t.Fatalf("expected retirement first by date, got %+v", rows)
	}
	if rows[1].Percent.String() != "25.0%" {
		t.Errorf("savings percent = %s, want 25.0%%", rows[1].Percent)
	}
}

type failingSource struct{ err error }

func (f failingSource) Acquire(context.Context) (Querier, error) { return nil, f.err }

func TestEngine_SourceFailure(t *testing.T) {
	boom := errors.New("disk unplugged")
	engine := NewEngine(failingSource{err: boom})

	if _, err := engine.MonthlyVariance(context.Background(), "lydia", 2025); !errors.Is(err, boom) {
		t.Errorf("expected wrapped source error, got %v", err)
	}
	if _, err := NewEngine(nil).LookupAllUsers(context.Background()); err == nil {
		t.Error("expected error without a source")
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		part, whole string
		want        string
		json        string
	}{
		{"2500", "20000", "12.5%", "12.5"},
		{"1", "3", "33.3%", "33.3"},
		{"5", "0", "n/a", "null"},
		{"-50", "200", "-25.0%", "-25"},
	}
	for _, tt := range tests {
		p := PercentOf(dec(tt.part), dec(tt.whole))
		if p.String() != tt.want {
			t.Errorf("PercentOf(%s, %s) = %s, want %s", tt.part, tt.whole, p, tt.want)
		}
		b, err := json.Marshal(p)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tt.json {
			t.Errorf("json(%s/%s) = %s, want %s", tt.part, tt.whole, b, tt.json)
		}
	}
}
