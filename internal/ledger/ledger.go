// Package ledger defines the live transaction ledger and the login accounts that
// own it. It is a separate store from the analytics snapshot and the two are never
// reconciled.
package ledger

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateAccount = errors.New("username already taken")
	ErrEmptyImport      = errors.New("nothing to import")
)

// Store is implemented by every ledger backend.
type Store interface {
	CreateAccount(ctx context.Context, username, passwordHash string) (core.Account, error)
	AccountByUsername(ctx context.Context, username string) (core.Account, error)

	AddTransaction(ctx context.Context, t core.Transaction) (int64, error)
	// ImportTransactions inserts every transaction or none of them.
	ImportTransactions(ctx context.Context, ts []core.Transaction) ([]int64, error)
	Transaction(ctx context.Context, id int64) (core.Transaction, error)
	RecentTransactions(ctx context.Context, ownerID int64, limit int) ([]core.Transaction, error)

	TotalsByType(ctx context.Context, ownerID int64) (core.TypeTotals, error)
	CategoryTotals(ctx context.Context, ownerID int64, typ core.TransactionType) ([]core.CategoryAmount, error)
	MonthlyTypeTotals(ctx context.Context, ownerID int64, year int) ([]core.MonthTypeTotal, error)

	Ping(ctx context.Context) error
	Close() error
}

// Normalize validates t and fills defaults shared by every backend.
func Normalize(t core.Transaction) (core.Transaction, error) {
	if t.Household == "" {
		t.Household = core.HouseholdSingle
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// DefaultRecentLimit caps RecentTransactions when the caller passes a non-positive limit.
const DefaultRecentLimit = 20
