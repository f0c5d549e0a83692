// Package charts renders dashboard widgets as self-contained HTML fragments.
//
// A widget never fails: missing data and query errors both become a placeholder
// fragment carrying a readable diagnostic, so one broken widget leaves the rest of
// the dashboard intact.
package charts

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/report"
	"fintrack/internal/shape"
)

//go:embed templates/*.html
var templateFS embed.FS

// Reports is the slice of the report engine the widgets read from.
type Reports interface {
	MonthlyBudgetVsActual(ctx context.Context, username string, year int) ([]report.BudgetActualRow, error)
	MonthlyVariance(ctx context.Context, username string, year int) ([]report.VarianceRow, error)
	IncomeExpenseBreakdown(ctx context.Context, username string) (report.Breakdown, error)
	DetailedBreakdownTable(ctx context.Context, username string) ([]report.DetailRow, error)
	MonthSummary(ctx context.Context, username string, year, month int) (report.Summary, error)
	GoalProgress(ctx context.Context, username string) ([]report.GoalRow, error)
}

// Ledger is the slice of the live ledger the widgets read from.
type Ledger interface {
	TotalsByType(ctx context.Context, ownerID int64) (core.TypeTotals, error)
	CategoryTotals(ctx context.Context, ownerID int64, typ core.TransactionType) ([]core.CategoryAmount, error)
	MonthlyTypeTotals(ctx context.Context, ownerID int64, year int) ([]core.MonthTypeTotal, error)
}

// Params scopes a widget to one user and period. Username addresses the analytics
// snapshot, OwnerID the ledger.
type Params struct {
	Username string
	OwnerID  int64
	Year     int
	Month    int
}

// Widget names, in dashboard order.
const (
	WidgetSummary         = "summary"
	WidgetBudgetVsActual  = "budget-vs-actual"
	WidgetVariance        = "variance"
	WidgetSunburst        = "sunburst"
	WidgetBreakdown       = "breakdown"
	WidgetGoals           = "goals"
	WidgetRadar           = "radar"
	WidgetIncomeVsExpense = "income-vs-expense"
	WidgetLedgerTotals    = "ledger-totals"
)

var widgetOrder = []string{
	WidgetSummary,
	WidgetBudgetVsActual,
	WidgetVariance,
	WidgetSunburst,
	WidgetBreakdown,
	WidgetGoals,
	WidgetRadar,
	WidgetIncomeVsExpense,
	WidgetLedgerTotals,
}

// Widgets lists every widget name in dashboard order.
func Widgets() []string {
	return append([]string(nil), widgetOrder...)
}

type Renderer struct {
	reports Reports
	ledger  Ledger
	tmpl    *template.Template
}

func NewRenderer(reports Reports, ledger Ledger) (*Renderer, error) {
	tmpl, err := template.New("charts").Funcs(template.FuncMap{
		"money": formatDecimal,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse chart templates: %w", err)
	}
	return &Renderer{reports: reports, ledger: ledger, tmpl: tmpl}, nil
}

// Render dispatches to the named widget. ok is false for an unknown name.
func (r *Renderer) Render(ctx context.Context, name string, p Params) (html template.HTML, ok bool) {
	switch name {
	case WidgetSummary:
		return r.Summary(ctx, p), true
	case WidgetBudgetVsActual:
		return r.BudgetVsActual(ctx, p), true
	case WidgetVariance:
		return r.Variance(ctx, p), true
	case WidgetSunburst:
		return r.Sunburst(ctx, p), true
	case WidgetBreakdown:
		return r.BreakdownTable(ctx, p), true
	case WidgetGoals:
		return r.GoalProgress(ctx, p), true
	case WidgetRadar:
		return r.Radar(ctx, p), true
	case WidgetIncomeVsExpense:
		return r.IncomeVsExpense(ctx, p), true
	case WidgetLedgerTotals:
		return r.LedgerTotals(ctx, p), true
	}
	return "", false
}

// section is the data every widget template receives.
type section struct {
	Name        string
	Title       string
	Figure      string
	Placeholder string
	Body        any
}

func (r *Renderer) BudgetVsActual(ctx context.Context, p Params) template.HTML {
	const name, title = WidgetBudgetVsActual, "Budget vs Actual Expenses"
	rows, err := r.reports.MonthlyBudgetVsActual(ctx, p.Username, p.Year)
	if err != nil {
		return r.failed(ctx, name, title, "budget vs actual chart", err)
	}
	if len(rows) == 0 {
		return r.placeholder(ctx, name, title, "No budget vs actual data available for this user.")
	}

	g := shape.GroupedBudgetActual(rows)
	x := monthLabels(g.Months)
	fig := Figure{Layout: Layout{
		Title:   fmt.Sprintf("Budget vs Actual %d", p.Year),
		BarMode: "group",
		Height:  400,
		XAxis:   &Axis{Title: "Month"},
		YAxis:   &Axis{Title: "Amount (" + currency + ")"},
	}}
	for _, c := range g.Categories {
		fig.Data = append(fig.Data,
			Trace{Type: "bar", Name: titleCase(c.Category) + " budget", X: x, Y: floats(c.Budget)},
			Trace{Type: "bar", Name: titleCase(c.Category) + " actual", X: x, Y: floats(c.Actual)},
		)
	}
	return r.chart(ctx, name, title, fig)
}

func (r *Renderer) Variance(ctx context.Context, p Params) template.HTML {
	const name, title = WidgetVariance, "Monthly Budget Variance"
	rows, err := r.reports.MonthlyVariance(ctx, p.Username, p.Year)
	if err != nil {
		return r.failed(ctx, name, title, "variance chart", err)
	}
	if len(rows) == 0 {
		return r.placeholder(ctx, name, title, "No variance data available.")
	}

	v := shape.GroupedVariance(rows)
	x := monthLabels(v.Months)
	fig := Figure{Layout: Layout{
		Title:  "Red = Over Budget | Green = Under Budget",
		Height: 400,
		XAxis:  &Axis{Title: "Month"},
		YAxis:  &Axis{Title: "Variance (" + currency + ")"},
	}}
	for _, c := range v.Categories {
		colors := make([]string, len(c.Status))
		for i, s := range c.Status {
			colors[i] = colorUnder
			if s == report.OverBudget {
				colors[i] = colorOver
			}
		}
		fig.Data = append(fig.Data, Trace{
			Type: "bar", Name: titleCase(c.Category), X: x, Y: floats(c.Variance),
			Marker: &Marker{Color: colors},
		})
	}
	return r.chart(ctx, name, title, fig)
}

func (r *Renderer) Sunburst(ctx context.Context, p Params) template.HTML {
	const name, title = WidgetSunburst, "Where the Income Goes"
	b, err := r.reports.IncomeExpenseBreakdown(ctx, p.Username)
	if err != nil {
		return r.failed(ctx, name, title, "income breakdown chart", err)
	}
	if b.Empty() {
		return r.placeholder(ctx, name, title, "No income or expense data available for this user.")
	}

	tree := shape.Hierarchy(b)
	if err := tree.Check(shape.DefaultTolerance); err != nil {
		return r.failed(ctx, name, title, "income breakdown chart", err)
	}

	// A sunburst cannot hold a child larger than its parent or a negative
	// sector, so an overspent user gets the expense subtree and the deficit.
	nodes, figTitle := tree.Nodes, ""
	if savings := b.Savings(); savings.IsNegative() {
		nodes = expenseSubtree(tree)
		figTitle = fmt.Sprintf("Overspent by %s %s", formatDecimal(savings.Neg()), currency)
	}

	t := Trace{Type: "sunburst", BranchValues: "total"}
	for _, n := range nodes {
		t.IDs = append(t.IDs, n.ID)
		t.Labels = append(t.Labels, n.Label)
		t.Parents = append(t.Parents, n.Parent)
		t.Values = append(t.Values, n.Value.InexactFloat64())
	}
	fig := Figure{Data: []Trace{t}, Layout: Layout{
		Title:  figTitle,
		Height: 450,
		Margin: map[string]int{"l": 0, "r": 0, "t": 30, "b": 0},
	}}
	return r.chart(ctx, name, title, fig)
}

// expenseSubtree re-roots the tree at the expenses node.
func expenseSubtree(tree shape.Tree) []shape.Node {
	var out []shape.Node
	for _, n := range tree.Nodes {
		switch {
		case n.ID == shape.ExpensesLabel:
			n.Parent = ""
			out = append(out, n)
		case n.Parent == shape.ExpensesLabel:
			out = append(out, n)
		}
	}
	return out
}

type breakdownBody struct {
	Rows []report.DetailRow
}

func (r *Renderer) BreakdownTable(ctx context.Context, p Params) template.HTML {
	const name, title = WidgetBreakdown, "Detailed Breakdown"
	rows, err := r.reports.DetailedBreakdownTable(ctx, p.Username)
	if err != nil {
		return r.failed(ctx, name, title, "breakdown table", err)
	}
	if len(rows) == 0 {
		return r.placeholder(ctx, name, title, "No expense data available for this user.")
	}
	return r.render(ctx, "breakdown_table", section{Name: name, Title: title, Body: breakdownBody{Rows: rows}})
}

func (r *Renderer) GoalProgress(ctx context.Context, p Params) template.HTML {
	const name, title = WidgetGoals, "Goal Progress"
	rows, err := r.reports.GoalProgress(ctx, p.Username)
	if err != nil {
		return r.failed(ctx, name, title, "goal progress", err)
	}
	if len(rows) == 0 {
		return r.placeholder(ctx, name, title, "No goal progress recorded yet.")
	}
	return r.render(ctx, "goal_table", section{Name: name, Title: title, Body: rows})
}

func (r *Renderer) Summary(ctx context.Context, p Params) template.HTML {
	const name, title = WidgetSummary, "This Month"
	s, err := r.reports.MonthSummary(ctx, p.Username, p.Year, p.Month)
	if err != nil {
		return r.failed(ctx, name, title, "monthly summary", err)
	}
	return r.render(ctx, "summary_card", section{Name: name, Title: title, Body: s})
}

func (r *Renderer) Radar(ctx context.Context, p Params) template.HTML {
	const name, title = WidgetRadar, "Expense by Category"
	if r.ledger == nil {
		return r.placeholder(ctx, name, title, "Ledger not available.")
	}
	totals, err := r.ledger.CategoryTotals(ctx, p.OwnerID, core.TypeExpense)
	if err != nil {
		return r.failed(ctx, name, title, "radar chart", err)
	}

	labels := make([]string, len(totals))
	values := make([]decimal.Decimal, len(totals))
	for i, t := range totals {
		labels[i] = t.Name
		values[i] = t.Amount.Decimal()
	}
	loop, err := shape.ClosedLoop(labels, values)
	if errors.Is(err, shape.ErrEmptySeries) {
		return r.placeholder(ctx, name, title, "No data for radar chart.")
	}
	if err != nil {
		return r.failed(ctx, name, title, "radar chart", err)
	}

	radius := floats(loop.Values)
	maxVal := 0.0
	for _, v := range radius {
		if v > maxVal {
			maxVal = v
		}
	}
	fig := Figure{
		Data: []Trace{{
			Type: "scatterpolar", Name: "Expense Categories", R: radius, Theta: loop.Labels,
			Fill: "toself", Marker: &Marker{Color: colorRadar},
		}},
		Layout: Layout{
			Polar:      &Polar{RadialAxis: RadialAxis{Visible: true, Range: []float64{0, maxVal * 1.2}}},
			ShowLegend: boolPtr(false),
			Height:     400,
			Margin:     map[string]int{"l": 20, "r": 20, "t": 30, "b": 20},
		},
	}
	return r.chart(ctx, name, title, fig)
}

func (r *Renderer) IncomeVsExpense(ctx context.Context, p Params) template.HTML {
	const name, title = WidgetIncomeVsExpense, "Monthly Income vs Expenses"
	if r.ledger == nil {
		return r.placeholder(ctx, name, title, "Ledger not available.")
	}
	totals, err := r.ledger.MonthlyTypeTotals(ctx, p.OwnerID, p.Year)
	if err != nil {
		return r.failed(ctx, name, title, "income vs expense chart", err)
	}
	pivot := shape.IncomeVsExpense(totals)
	if pivot.Empty() {
		return r.placeholder(ctx, name, title, "No data for chart.")
	}

	fig := Figure{
		Data: []Trace{
			{Type: "bar", Name: "Income", X: pivot.Months, Y: moneyFloats(pivot.Income)},
			{Type: "bar", Name: "Expense", X: pivot.Months, Y: moneyFloats(pivot.Expense)},
		},
		Layout: Layout{
			BarMode: "group",
			XAxis:   &Axis{Title: "Month"},
			YAxis:   &Axis{Title: "Amount"},
		},
	}
	return r.chart(ctx, name, title, fig)
}

type typeTotal struct {
	Type   string
	Amount core.Money
}

// LedgerTotals lists the owner's all-time ledger total for every transaction type.
func (r *Renderer) LedgerTotals(ctx context.Context, p Params) template.HTML {
	const name, title = WidgetLedgerTotals, "Ledger Totals"
	if r.ledger == nil {
		return r.placeholder(ctx, name, title, "Ledger not available.")
	}
	totals, err := r.ledger.TotalsByType(ctx, p.OwnerID)
	if err != nil {
		return r.failed(ctx, name, title, "ledger totals", err)
	}

	rows := make([]typeTotal, 0, len(core.TransactionTypes()))
	empty := true
	for _, typ := range core.TransactionTypes() {
		m := totals[typ]
		if m.Cents != 0 {
			empty = false
		}
		rows = append(rows, typeTotal{Type: titleCase(string(typ)), Amount: m})
	}
	if empty {
		return r.placeholder(ctx, name, title, "No ledger transactions yet.")
	}
	return r.render(ctx, "totals_table", section{Name: name, Title: title, Body: rows})
}

func (r *Renderer) chart(ctx context.Context, name, title string, fig Figure) template.HTML {
	js, err := fig.JSON()
	if err != nil {
		return r.failed(ctx, name, title, "chart", err)
	}
	return r.render(ctx, "chart_section", section{Name: name, Title: title, Figure: js})
}

func (r *Renderer) placeholder(ctx context.Context, name, title, msg string) template.HTML {
	return r.render(ctx, "placeholder_section", section{Name: name, Title: title, Placeholder: msg})
}

func (r *Renderer) failed(ctx context.Context, name, title, what string, err error) template.HTML {
	slog.ErrorContext(ctx, "Widget failed", "widget", name, "error", err)
	return r.placeholder(ctx, name, title, fmt.Sprintf("Error generating %s: %v", what, err))
}

// render executes a section template. A template failure still yields a
// well-formed fragment.
func (r *Renderer) render(ctx context.Context, tmpl string, data section) template.HTML {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, tmpl, data); err != nil {
		slog.ErrorContext(ctx, "Widget template failed", "widget", data.Name, "template", tmpl, "error", err)
		return template.HTML(`<section class="widget" id="widget-` + template.HTMLEscapeString(data.Name) +
			`"><div class="placeholder">Error rendering widget.</div></section>`)
	}
	return template.HTML(buf.String())
}

func formatDecimal(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
