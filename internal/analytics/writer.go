package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// IncomeRecord is one Income row to load.
type IncomeRecord struct {
	Username         string
	Date             time.Time
	IncomeAfterTax   decimal.Decimal
	AdditionalIncome decimal.Decimal
	Household        string // optional household type
}

// ExpenseRecord is one UserExpense row to load. Actual stays NULL until realized.
type ExpenseRecord struct {
	Username string
	Category string
	Date     time.Time
	Budget   decimal.Decimal
	Actual   decimal.NullDecimal
}

// GoalRecord is one GoalProgress row to load.
type GoalRecord struct {
	Username string
	GoalType string
	Target   decimal.Decimal
	Current  decimal.Decimal
	Date     time.Time
}

// Writer loads rows into the snapshot. Month and year are always derived from the
// date here, never supplied by the caller.
type Writer struct {
	db *sql.DB
}

func (s *Store) Writer() *Writer {
	return &Writer{db: s.db}
}

func (w *Writer) EnsureUser(ctx context.Context, username string) (int64, error) {
	return w.ensureLookup(ctx, "users", "username", username)
}

func (w *Writer) EnsureHousehold(ctx context.Context, typ string) (int64, error) {
	return w.ensureLookup(ctx, "household", "type", typ)
}

func (w *Writer) EnsureGoalType(ctx context.Context, typ string) (int64, error) {
	return w.ensureLookup(ctx, "goal", "type", typ)
}

func (w *Writer) EnsureExpenseCategory(ctx context.Context, category string) (int64, error) {
	return w.ensureLookup(ctx, "expenses", "category", category)
}

// ensureLookup inserts value if missing and returns its id. table and column are
// package constants, never user input.
func (w *Writer) ensureLookup(ctx context.Context, table, column, value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty %s.%s", table, column)
	}
	if _, err := w.db.ExecContext(ctx,
		"INSERT INTO "+table+" ("+column+") VALUES (?) ON CONFLICT("+column+") DO NOTHING", value); err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	var id int64
	if err := w.db.QueryRowContext(ctx,
		"SELECT id FROM "+table+" WHERE "+column+" = ?", value).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup %s: %w", table, err)
	}
	return id, nil
}

func (w *Writer) AddIncome(ctx context.Context, r IncomeRecord) error {
	userID, err := w.EnsureUser(ctx, r.Username)
	if err != nil {
		return err
	}
	var householdID sql.NullInt64
	if strings.TrimSpace(r.Household) != "" {
		id, err := w.EnsureHousehold(ctx, r.Household)
		if err != nil {
			return err
		}
		householdID = sql.NullInt64{Int64: id, Valid: true}
	}
	_, err = w.db.ExecContext(ctx, `
		INSERT INTO income (user_id, date, month, year, income_after_tax, additional_income, household_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, r.Date.Format(dateLayout), int(r.Date.Month()), r.Date.Year(),
		r.IncomeAfterTax, r.AdditionalIncome, householdID)
	if err != nil {
		return fmt.Errorf("insert income (user=%s, date=%s): %w", r.Username, r.Date.Format(dateLayout), err)
	}
	return nil
}

func (w *Writer) AddUserExpense(ctx context.Context, r ExpenseRecord) error {
	userID, err := w.EnsureUser(ctx, r.Username)
	if err != nil {
		return err
	}
	categoryID, err := w.EnsureExpenseCategory(ctx, r.Category)
	if err != nil {
		return err
	}
	_, err = w.db.ExecContext(ctx, `
		INSERT INTO user_expenses (user_id, expenses_id, date, month, year, budget_amount, actual_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, categoryID, r.Date.Format(dateLayout), int(r.Date.Month()), r.Date.Year(),
		r.Budget, r.Actual)
	if err != nil {
		return fmt.Errorf("insert user expense (user=%s, category=%s): %w", r.Username, r.Category, err)
	}
	return nil
}

func (w *Writer) AddGoalProgress(ctx context.Context, r GoalRecord) error {
	userID, err := w.EnsureUser(ctx, r.Username)
	if err != nil {
		return err
	}
	goalID, err := w.EnsureGoalType(ctx, r.GoalType)
	if err != nil {
		return err
	}
	_, err = w.db.ExecContext(ctx, `
		INSERT INTO goal_progress (user_id, goal_id, goal_target, current_amount, date, month, year)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, goalID, r.Target, r.Current, r.Date.Format(dateLayout), int(r.Date.Month()), r.Date.Year())
	if err != nil {
		return fmt.Errorf("insert goal progress (user=%s, goal=%s): %w", r.Username, r.GoalType, err)
	}
	return nil
}

// DeleteUser removes a user; owned income, expense and goal rows cascade.
func (w *Writer) DeleteUser(ctx context.Context, username string) error {
	if _, err := w.db.ExecContext(ctx, "DELETE FROM users WHERE username = ?", username); err != nil {
		return fmt.Errorf("delete user %s: %w", username, err)
	}
	return nil
}
