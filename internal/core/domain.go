package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TypeIncome     TransactionType = "income"
	TypeExpense    TransactionType = "expense"
	TypeSaving     TransactionType = "saving"
	TypeInvestment TransactionType = "investment"
	TypeDebt       TransactionType = "debt"
	TypeLoan       TransactionType = "loan"
)

const (
	HouseholdSingle HouseholdType = "single"
	HouseholdCouple HouseholdType = "couple"
	HouseholdFamily HouseholdType = "family"
)

type (
	TransactionType string

	HouseholdType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is one entry of the live, user-editable ledger.
	Transaction struct {
		ID          int64
		OwnerID     int64
		Type        TransactionType
		Category    string
		Amount      Money
		Description string
		Date        Date
		IsRecurring bool
		Household   HouseholdType
		BatchID     string // import batch, empty for manual entries
		CreatedAt   time.Time
	}

	// Account is a login of the web application. It owns ledger transactions.
	Account struct {
		ID           int64
		Username     string
		PasswordHash string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidHousehold = errors.New("invalid household type")
	ErrEmptyCategory    = errors.New("empty category")
	ErrMissingOwner     = errors.New("missing owner")
)

// TransactionTypes lists every ledger type in display order.
func TransactionTypes() []TransactionType {
	return []TransactionType{TypeIncome, TypeExpense, TypeSaving, TypeInvestment, TypeDebt, TypeLoan}
}

// ParseTransactionType lower-cases and validates a type name.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (t TransactionType) IsValid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeSaving, TypeInvestment, TypeDebt, TypeLoan:
		return true
	default:
		return false
	}
}

// ParseHouseholdType defaults to single when s is blank.
func ParseHouseholdType(s string) (HouseholdType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return HouseholdSingle, nil
	}
	h := HouseholdType(s)
	switch h {
	case HouseholdSingle, HouseholdCouple, HouseholdFamily:
		return h, nil
	default:
		return "", ErrInvalidHousehold
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// MonthKey formats the date as "2006-01", the ledger's monthly bucket.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.OwnerID <= 0 {
		return ErrMissingOwner
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Category) > 50 {
		return errors.New("category too long (max 50 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if _, err := ParseHouseholdType(string(t.Household)); err != nil {
		return err
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}
