// Package report runs the analytical queries behind the dashboard widgets.
//
// Every operation acquires its own store handle and releases it before returning,
// so the Engine itself holds no connection and is safe for concurrent use.
package report

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/analytics"
)

// Querier is a scoped read handle on the analytics store.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Close() error
}

// Source hands out one Querier per operation.
type Source interface {
	Acquire(ctx context.Context) (Querier, error)
}

type storeSource struct {
	store *analytics.Store
}

// FromStore adapts an analytics store to a Source.
func FromStore(s *analytics.Store) Source {
	return storeSource{store: s}
}

func (s storeSource) Acquire(ctx context.Context) (Querier, error) {
	h, err := s.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return h, nil
}

type Engine struct {
	src Source
}

func NewEngine(src Source) *Engine {
	return &Engine{src: src}
}

// money normalizes a summed NUMERIC column to cents precision.
func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func (e *Engine) acquire(ctx context.Context, op string) (Querier, error) {
	if e == nil || e.src == nil {
		return nil, fmt.Errorf("%s: no analytics source configured", op)
	}
	q, err := e.src.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return q, nil
}

// MonthlyBudgetVsActual sums budget and actual per (month, category) for one user
// and year. An unrealized actual counts as zero. No rows yields an empty slice.
func (e *Engine) MonthlyBudgetVsActual(ctx context.Context, username string, year int) (rows []BudgetActualRow, err error) {
	q, err := e.acquire(ctx, "monthly budget vs actual")
	if err != nil {
		return nil, err
	}
	defer closeHandle(q, &err)

	rs, err := q.QueryContext(ctx, `
		SELECT ue.month, e.category,
		       COALESCE(SUM(ue.budget_amount), 0),
		       COALESCE(SUM(COALESCE(ue.actual_amount, 0)), 0)
		FROM user_expenses ue
		JOIN users u ON u.id = ue.user_id
		JOIN expenses e ON e.id = ue.expenses_id
		WHERE u.username = ? AND ue.year = ?
		GROUP BY ue.month, e.category
		ORDER BY ue.month, e.category`, username, year)
	if err != nil {
		return nil, fmt.Errorf("monthly budget vs actual: %w", err)
	}
	defer rs.Close()

	rows = []BudgetActualRow{}
	for rs.Next() {
		var r BudgetActualRow
		if err := rs.Scan(&r.Month, &r.Category, &r.Budget, &r.Actual); err != nil {
			return nil, fmt.Errorf("scan budget vs actual: %w", err)
		}
		r.Budget, r.Actual = money(r.Budget), money(r.Actual)
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("monthly budget vs actual: %w", err)
	}
	return rows, nil
}

// MonthlyVariance is MonthlyBudgetVsActual with actual-minus-budget and its status.
func (e *Engine) MonthlyVariance(ctx context.Context, username string, year int) ([]VarianceRow, error) {
	base, err := e.MonthlyBudgetVsActual(ctx, username, year)
	if err != nil {
		return nil, err
	}
	out := make([]VarianceRow, 0, len(base))
	for _, r := range base {
		v := r.Actual.Sub(r.Budget)
		out = append(out, VarianceRow{
			Month:    r.Month,
			Category: r.Category,
			Budget:   r.Budget,
			Actual:   r.Actual,
			Variance: v,
			Status:   StatusFor(v),
		})
	}
	return out, nil
}

// IncomeExpenseBreakdown totals a user's income and realized spending across all
// periods. Percentages are Undefined when their denominator is zero.
func (e *Engine) IncomeExpenseBreakdown(ctx context.Context, username string) (b Breakdown, err error) {
	q, err := e.acquire(ctx, "income expense breakdown")
	if err != nil {
		return Breakdown{}, err
	}
	defer closeHandle(q, &err)

	b.Username = username
	b.TotalIncome, err = totalIncome(ctx, q, username)
	if err != nil {
		return Breakdown{}, err
	}

	rs, err := q.QueryContext(ctx, `
		SELECT e.category, COALESCE(SUM(COALESCE(ue.actual_amount, 0)), 0)
		FROM user_expenses ue
		JOIN users u ON u.id = ue.user_id
		JOIN expenses e ON e.id = ue.expenses_id
		WHERE u.username = ?
		GROUP BY e.category
		ORDER BY e.category`, username)
	if err != nil {
		return Breakdown{}, fmt.Errorf("category spend: %w", err)
	}
	defer rs.Close()

	b.Categories = []CategorySpend{}
	b.TotalExpenses = decimal.Zero
	for rs.Next() {
		var c CategorySpend
		if err := rs.Scan(&c.Category, &c.Spent); err != nil {
			return Breakdown{}, fmt.Errorf("scan category spend: %w", err)
		}
		c.Spent = money(c.Spent)
		b.TotalExpenses = b.TotalExpenses.Add(c.Spent)
		b.Categories = append(b.Categories, c)
	}
	if err := rs.Err(); err != nil {
		return Breakdown{}, fmt.Errorf("category spend: %w", err)
	}

	for i := range b.Categories {
		b.Categories[i].PctOfIncome = PercentOf(b.Categories[i].Spent, b.TotalIncome)
		b.Categories[i].PctOfTotalExpenses = PercentOf(b.Categories[i].Spent, b.TotalExpenses)
	}
	return b, nil
}

// DetailedBreakdownTable returns per-category budget, spend and shares of income.
func (e *Engine) DetailedBreakdownTable(ctx context.Context, username string) (rows []DetailRow, err error) {
	q, err := e.acquire(ctx, "detailed breakdown")
	if err != nil {
		return nil, err
	}
	defer closeHandle(q, &err)

	income, err := totalIncome(ctx, q, username)
	if err != nil {
		return nil, err
	}

	rs, err := q.QueryContext(ctx, `
		SELECT e.category,
		       COALESCE(SUM(ue.budget_amount), 0),
		       COALESCE(SUM(COALESCE(ue.actual_amount, 0)), 0)
		FROM user_expenses ue
		JOIN users u ON u.id = ue.user_id
		JOIN expenses e ON e.id = ue.expenses_id
		WHERE u.username = ?
		GROUP BY e.category
		ORDER BY e.category`, username)
	if err != nil {
		return nil, fmt.Errorf("detailed breakdown: %w", err)
	}
	defer rs.Close()

	rows = []DetailRow{}
	for rs.Next() {
		var r DetailRow
		if err := rs.Scan(&r.Category, &r.Budgeted, &r.ActualSpent); err != nil {
			return nil, fmt.Errorf("scan detailed breakdown: %w", err)
		}
		r.Budgeted, r.ActualSpent = money(r.Budgeted), money(r.ActualSpent)
		r.Variance = r.ActualSpent.Sub(r.Budgeted)
		r.PctOfIncome = PercentOf(r.ActualSpent, income)
		r.BudgetPctOfIncome = PercentOf(r.Budgeted, income)
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("detailed breakdown: %w", err)
	}
	return rows, nil
}

// MonthSummary compares one month's income with its realized expenses.
func (e *Engine) MonthSummary(ctx context.Context, username string, year, month int) (s Summary, err error) {
	q, err := e.acquire(ctx, "month summary")
	if err != nil {
		return Summary{}, err
	}
	defer closeHandle(q, &err)

	s = Summary{Year: year, Month: month}
	err = q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(i.income_after_tax + i.additional_income), 0)
		FROM income i
		JOIN users u ON u.id = i.user_id
		WHERE u.username = ? AND i.year = ? AND i.month = ?`, username, year, month).Scan(&s.Income)
	if err != nil {
		return Summary{}, fmt.Errorf("month income: %w", err)
	}
	err = q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(COALESCE(ue.actual_amount, 0)), 0)
		FROM user_expenses ue
		JOIN users u ON u.id = ue.user_id
		WHERE u.username = ? AND ue.year = ? AND ue.month = ?`, username, year, month).Scan(&s.Expenses)
	if err != nil {
		return Summary{}, fmt.Errorf("month expenses: %w", err)
	}

	s.Income, s.Expenses = money(s.Income), money(s.Expenses)
	s.Saving = s.Income.Sub(s.Expenses)
	s.SavingsRate = PercentOf(s.Saving, s.Income)
	return s, nil
}

// GoalProgress lists every goal snapshot for a user, oldest first.
func (e *Engine) GoalProgress(ctx context.Context, username string) (rows []GoalRow, err error) {
	q, err := e.acquire(ctx, "goal progress")
	if err != nil {
		return nil, err
	}
	defer closeHandle(q, &err)

	rs, err := q.QueryContext(ctx, `
		SELECT g.type, gp.goal_target, gp.current_amount, gp.date
		FROM goal_progress gp
		JOIN users u ON u.id = gp.user_id
		JOIN goal g ON g.id = gp.goal_id
		WHERE u.username = ?
		ORDER BY gp.date, g.type`, username)
	if err != nil {
		return nil, fmt.Errorf("goal progress: %w", err)
	}
	defer rs.Close()

	rows = []GoalRow{}
	for rs.Next() {
		var r GoalRow
		if err := rs.Scan(&r.GoalType, &r.Target, &r.Current, &r.Date); err != nil {
			return nil, fmt.Errorf("scan goal progress: %w", err)
		}
		r.Target, r.Current = money(r.Target), money(r.Current)
		r.Percent = PercentOf(r.Current, r.Target)
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("goal progress: %w", err)
	}
	return rows, nil
}

// LookupAllUsers returns every analytics username, alphabetically.
func (e *Engine) LookupAllUsers(ctx context.Context) ([]string, error) {
	return e.lookup(ctx, "lookup users", "SELECT username FROM users ORDER BY username")
}

// LookupExpenseCategories returns every expense category, alphabetically.
func (e *Engine) LookupExpenseCategories(ctx context.Context) ([]string, error) {
	return e.lookup(ctx, "lookup categories", "SELECT category FROM expenses ORDER BY category")
}

func (e *Engine) lookup(ctx context.Context, op, query string) (out []string, err error) {
	q, err := e.acquire(ctx, op)
	if err != nil {
		return nil, err
	}
	defer closeHandle(q, &err)

	rs, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rs.Close()

	out = []string{}
	for rs.Next() {
		var s string
		if err := rs.Scan(&s); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, s)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func totalIncome(ctx context.Context, q Querier, username string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(i.income_after_tax + i.additional_income), 0)
		FROM income i
		JOIN users u ON u.id = i.user_id
		WHERE u.username = ?`, username).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("total income: %w", err)
	}
	return money(total), nil
}

// closeHandle releases q and reports a close failure only when nothing else failed.
func closeHandle(q Querier, err *error) {
	if cerr := q.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("release analytics handle: %w", cerr)
	}
}
