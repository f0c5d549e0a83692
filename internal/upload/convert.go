package upload

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"fintrack/internal/core"
)

// RowError points at the spreadsheet line that failed conversion.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2006-01-02 15:04:05", time.RFC3339}

// ParseDate accepts ISO dates, DD/MM/YYYY and Excel serial numbers.
func ParseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return core.Date{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseAmount reads a positive amount such as "12.50" or "12,50". Signs and
// exponents are rejected.
func ParseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "n":
		return false, nil
	case "1", "true", "yes", "y":
		return true, nil
	}
	return false, fmt.Errorf("not a yes/no value: %q", s)
}

// ToTransactions converts parsed rows for ownerID, tagging each with batchID.
// The type is lower-cased. Any invalid row fails the whole conversion.
func ToTransactions(rows []Row, ownerID int64, batchID string) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		t := core.Transaction{OwnerID: ownerID, BatchID: batchID, Category: r.Get("category")}

		typ, err := core.ParseTransactionType(r.Get("type"))
		if err != nil {
			return nil, &RowError{Line: r.Line, Column: "type", Err: err}
		}
		t.Type = typ

		if t.Amount, err = ParseAmount(r.Get("amount")); err != nil {
			return nil, &RowError{Line: r.Line, Column: "amount", Err: err}
		}
		if t.Date, err = ParseDate(r.Get("date")); err != nil {
			return nil, &RowError{Line: r.Line, Column: "date", Err: err}
		}

		t.Description = r.Get("note")
		if t.Description == "" {
			t.Description = r.Get("description")
		}
		if t.IsRecurring, err = parseBool(r.Get("is_recurring")); err != nil {
			return nil, &RowError{Line: r.Line, Column: "is_recurring", Err: err}
		}
		if t.Household, err = core.ParseHouseholdType(r.Get("household_type")); err != nil {
			return nil, &RowError{Line: r.Line, Column: "household_type", Err: err}
		}

		if err := t.Validate(); err != nil {
			return nil, &RowError{Line: r.Line, Column: "row", Err: err}
		}
		out = append(out, t)
	}
	return out, nil
}
