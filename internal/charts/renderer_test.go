package charts

import (
	"context"
	"errors"
	"html"
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/report"
)

type fakeReports struct {
	budget    []report.BudgetActualRow
	variance  []report.VarianceRow
	breakdown report.Breakdown
	detail    []report.DetailRow
	summary   report.Summary
	goals     []report.GoalRow
	err       error
}

func (f *fakeReports) MonthlyBudgetVsActual(context.Context, string, int) ([]report.BudgetActualRow, error) {
	return f.budget, f.err
}
func (f *fakeReports) MonthlyVariance(context.Context, string, int) ([]report.VarianceRow, error) {
	return f.variance, f.err
}
func (f *fakeReports) IncomeExpenseBreakdown(context.Context, string) (report.Breakdown, error) {
	return f.breakdown, f.err
}
func (f *fakeReports) DetailedBreakdownTable(context.Context, string) ([]report.DetailRow, error) {
	return f.detail, f.err
}
func (f *fakeReports) MonthSummary(context.Context, string, int, int) (report.Summary, error) {
	return f.summary, f.err
}
func (f *fakeReports) GoalProgress(context.Context, string) ([]report.GoalRow, error) {
	return f.goals, f.err
}

type fakeLedger struct {
	totals     core.TypeTotals
	categories []core.CategoryAmount
	monthly    []core.MonthTypeTotal
	err        error
}

func (f *fakeLedger) TotalsByType(context.Context, int64) (core.TypeTotals, error) {
	if f.totals == nil {
		return core.NewTypeTotals(), f.err
	}
	return f.totals, f.err
}

func (f *fakeLedger) CategoryTotals(context.Context, int64, core.TransactionType) ([]core.CategoryAmount, error) {
	return f.categories, f.err
}
func (f *fakeLedger) MonthlyTypeTotals(context.Context, int64, int) ([]core.MonthTypeTotal, error) {
	return f.monthly, f.err
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newRenderer(t *testing.T, rep Reports, led Ledger) *Renderer {
	t.Helper()
	r, err := NewRenderer(rep, led)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

var params = Params{Username: "lydia", OwnerID: 1, Year: 2025, Month: 1}

// assertFragment checks the output is one closed section.
func assertFragment(t *testing.T, out string) {
	t.Helper()
	if !strings.HasPrefix(out, "<section") || !strings.HasSuffix(out, "</section>") {
		t.Errorf("fragment is not a single section: %q", out)
	}
	if strings.Count(out, "<section") != strings.Count(out, "</section>") {
		t.Errorf("unbalanced section tags: %q", out)
	}
}

func TestRenderer_Placeholders(t *testing.T) {
	r := newRenderer(t, &fakeReports{}, &fakeLedger{})
	ctx := context.Background()

	tests := []struct {
		widget string
		want   string
	}{
		{WidgetBudgetVsActual, "No budget vs actual data available for this user."},
		{WidgetVariance, "No variance data available."},
		{WidgetSunburst, "No income or expense data available for this user."},
		{WidgetBreakdown, "No expense data available for this user."},
		{WidgetGoals, "No goal progress recorded yet."},
		{WidgetRadar, "No data for radar chart."},
		{WidgetIncomeVsExpense, "No data for chart."},
		{WidgetLedgerTotals, "No ledger transactions yet."},
	}
	for _, tt := range tests {
		t.Run(tt.widget, func(t *testing.T) {
			out, ok := r.Render(ctx, tt.widget, params)
			if !ok {
				t.Fatalf("widget %s not found", tt.widget)
			}
			s := string(out)
			assertFragment(t, s)
			if !strings.Contains(s, `class="placeholder"`) || !strings.Contains(s, tt.want) {
				t.Errorf("expected placeholder %q, got %s", tt.want, s)
			}
		})
	}
}

func TestRenderer_ErrorsBecomePlaceholders(t *testing.T) {
	boom := errors.New(`connection refused <db>`)
	r := newRenderer(t, &fakeReports{err: boom}, &fakeLedger{err: boom})
	ctx := context.Background()

	for _, w := range Widgets() {
		t.Run(w, func(t *testing.T) {
			out, _ := r.Render(ctx, w, params)
			s := string(out)
			assertFragment(t, s)
			if !strings.Contains(s, "Error generating") {
				t.Errorf("expected diagnostic, got %s", s)
			}
			if strings.Contains(s, "<db>") {
				t.Errorf("diagnostic must be escaped: %s", s)
			}
			if !strings.Contains(s, "connection refused &lt;db&gt;") {
				t.Errorf("expected escaped error text, got %s", s)
			}
		})
	}
}

func TestRenderer_UnknownWidget(t *testing.T) {
	r := newRenderer(t, &fakeReports{}, nil)
	if _, ok := r.Render(context.Background(), "nope", params); ok {
		t.Error("expected unknown widget to be rejected")
	}
}

var figureAttr = regexp.MustCompile(`data-figure="([^"]*)"`)

func figureOf(t *testing.T, out string) string {
	t.Helper()
	m := figureAttr.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no data-figure attribute in %s", out)
	}
	return html.UnescapeString(m[1])
}

func TestRenderer_VarianceColors(t *testing.T) {
	r := newRenderer(t, &fakeReports{variance: []report.VarianceRow{
		{Month: 1, Category: "food", Budget: d("2000"), Actual: d("2500"), Variance: d("500"), Status: report.OverBudget},
		{Month: 1, Category: "rent", Budget: d("8000"), Actual: d("8000"), Variance: d("0"), Status: report.UnderBudget},
	}}, nil)

	fig := figureOf(t, string(r.Variance(context.Background(), params)))

	for _, want := range []string{`"name":"Food"`, `"name":"Rent"`, `"x":["Jan"]`, `"y":[500]`, colorOver, colorUnder} {
		if !strings.Contains(fig, want) {
			t.Errorf("figure missing %s: %s", want, fig)
		}
	}
}

func TestRenderer_SunburstFullTree(t *testing.T) {
	r := newRenderer(t, &fakeReports{breakdown: report.Breakdown{
		TotalIncome:   d("1000"),
		TotalExpenses: d("600"),
		Categories:    []report.CategorySpend{{Category: "rent", Spent: d("600")}},
	}}, nil)

	fig := figureOf(t, string(r.Sunburst(context.Background(), params)))

	if !strings.Contains(fig, `"values":[1000,600,400,600]`) {
		t.Errorf("unexpected sunburst values: %s", fig)
	}
	if !strings.Contains(fig, `"parents":["","Total Income","Total Income","Expenses"]`) {
		t.Errorf("unexpected parents: %s", fig)
	}
}

func TestRenderer_SunburstOverspent(t *testing.T) {
	r := newRenderer(t, &fakeReports{breakdown: report.Breakdown{
		TotalIncome:   d("1000"),
		TotalExpenses: d("1500"),
		Categories: []report.CategorySpend{
			{Category: "food", Spent: d("500")},
			{Category: "rent", Spent: d("1000")},
		},
	}}, nil)

	fig := figureOf(t, string(r.Sunburst(context.Background(), params)))

	// Rooted at expenses: no negative sector and no child above its parent.
	if !strings.Contains(fig, `"values":[1500,500,1000]`) {
		t.Errorf("unexpected sunburst values: %s", fig)
	}
	if !strings.Contains(fig, `"parents":["","Expenses","Expenses"]`) {
		t.Errorf("unexpected parents: %s", fig)
	}
	if strings.Contains(fig, "-500") || strings.Contains(fig, "Total Income") {
		t.Errorf("overspent figure still carries the income root: %s", fig)
	}
	if !strings.Contains(fig, `"title":"Overspent by 500.00 DKK"`) {
		t.Errorf("missing deficit title: %s", fig)
	}
}

func TestRenderer_SunburstZeroIncome(t *testing.T) {
	r := newRenderer(t, &fakeReports{breakdown: report.Breakdown{
		TotalIncome:   d("0"),
		TotalExpenses: d("80"),
		Categories:    []report.CategorySpend{{Category: "food", Spent: d("80")}},
	}}, nil)

	fig := figureOf(t, string(r.Sunburst(context.Background(), params)))

	if !strings.Contains(fig, `"values":[80,80]`) || !strings.Contains(fig, "Overspent by 80.00 DKK") {
		t.Errorf("unexpected figure: %s", fig)
	}
}

func TestRenderer_LedgerTotals(t *testing.T) {
	totals := core.NewTypeTotals()
	totals[core.TypeIncome] = core.Money{Cents: 250000}
	totals[core.TypeExpense] = core.Money{Cents: 123450}
	r := newRenderer(t, &fakeReports{}, &fakeLedger{totals: totals})

	out := string(r.LedgerTotals(context.Background(), params))

	assertFragment(t, out)
	for _, want := range []string{
		"<th>Income</th><td class=\"num\">2500.00</td>",
		"<th>Expense</th><td class=\"num\">1234.50</td>",
		"<th>Loan</th><td class=\"num\">0.00</td>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("totals missing %s: %s", want, out)
		}
	}
	if i, e := strings.Index(out, "Income"), strings.Index(out, "Investment"); i > e {
		t.Errorf("types out of order: %s", out)
	}
}

func TestRenderer_LedgerTotalsWithoutLedger(t *testing.T) {
	r := newRenderer(t, &fakeReports{}, nil)
	if out := string(r.LedgerTotals(context.Background(), params)); !strings.Contains(out, "Ledger not available.") {
		t.Errorf("expected placeholder, got %s", out)
	}
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"":        "",
		"food":    "Food",
		"élan":    "Élan",
		"økonomi": "Økonomi",
		"Rent":    "Rent",
	}
	for in, want := range tests {
		got := titleCase(in)
		if got != want || !utf8.ValidString(got) {
			t.Errorf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderer_RadarClosesLoop(t *testing.T) {
	r := newRenderer(t, &fakeReports{}, &fakeLedger{categories: []core.CategoryAmount{
		{Name: "food", Amount: core.Money{Cents: 10000}},
		{Name: "rent", Amount: core.Money{Cents: 80000}},
	}})

	fig := figureOf(t, string(r.Radar(context.Background(), params)))

	if !strings.Contains(fig, `"theta":["food","rent","food"]`) {
		t.Errorf("radar not closed: %s", fig)
	}
	if !strings.Contains(fig, `"r":[100,800,100]`) {
		t.Errorf("unexpected radii: %s", fig)
	}
}

func TestRenderer_BreakdownTableSentinel(t *testing.T) {
	r := newRenderer(t, &fakeReports{detail: []report.DetailRow{
		{Category: "rent", Budgeted: d("100"), ActualSpent: d("120"), Variance: d("20")},
	}}, nil)

	out := string(r.BreakdownTable(context.Background(), params))

	assertFragment(t, out)
	if !strings.Contains(out, "n/a") {
		t.Errorf("undefined percentages should render n/a: %s", out)
	}
	if !strings.Contains(out, "120.00") || !strings.Contains(out, `class="num over"`) {
		t.Errorf("unexpected table: %s", out)
	}
}

func TestRenderer_OneFailureDoesNotAffectOthers(t *testing.T) {
	rep := &fakeReports{budget: []report.BudgetActualRow{{Month: 2, Category: "rent", Budget: d("1"), Actual: d("1")}}}
	r := newRenderer(t, rep, &fakeLedger{err: errors.New("ledger down")})
	ctx := context.Background()

	radar := string(r.Radar(ctx, params))
	budget := string(r.BudgetVsActual(ctx, params))

	if !strings.Contains(radar, "Error generating radar chart: ledger down") {
		t.Errorf("radar should carry the ledger error: %s", radar)
	}
	if !strings.Contains(budget, "data-figure=") {
		t.Errorf("budget chart should still render: %s", budget)
	}
}
