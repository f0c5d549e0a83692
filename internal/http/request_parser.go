package http

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/upload"
)

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and month from the query. Missing or invalid
// values fall back to the defaults; a month outside 1-12 is ignored.
func ParseMonthParams(query url.Values, defaultYear, defaultMonth int) MonthParams {
	params := MonthParams{Year: defaultYear, Month: defaultMonth}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 0 {
			params.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			params.Month = m
		}
	}
	return params
}

// FieldError names the form field that failed to parse.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

var errRequired = errors.New("required")

// ParseTransactionForm builds a ledger transaction for ownerID from the entry form.
func ParseTransactionForm(form url.Values, ownerID int64) (core.Transaction, error) {
	t := core.Transaction{
		OwnerID:     ownerID,
		Category:    sanitizeInput(form.Get("category")),
		Description: sanitizeInput(form.Get("description")),
		IsRecurring: form.Get("is_recurring") != "",
	}

	var err error
	if t.Type, err = core.ParseTransactionType(form.Get("type")); err != nil {
		return core.Transaction{}, &FieldError{Field: "type", Err: err}
	}
	if t.Category == "" {
		return core.Transaction{}, &FieldError{Field: "category", Err: errRequired}
	}
	if t.Amount, err = upload.ParseAmount(form.Get("amount")); err != nil {
		return core.Transaction{}, &FieldError{Field: "amount", Err: err}
	}
	if t.Date, err = upload.ParseDate(form.Get("date")); err != nil {
		return core.Transaction{}, &FieldError{Field: "date", Err: err}
	}
	if t.Household, err = core.ParseHouseholdType(form.Get("household_type")); err != nil {
		return core.Transaction{}, &FieldError{Field: "household_type", Err: err}
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// sanitizeInput drops control characters except tab and newlines, then trims.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
