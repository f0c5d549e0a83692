// Package sqlstore is the SQLite ledger backend.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

// Open opens the ledger database at path and applies its migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := storage.RunMigrations(path, migrationsFS, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	slog.InfoContext(ctx, "SQLite ledger ready", "path", path)
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func (s *Store) CreateAccount(ctx context.Context, username, passwordHash string) (core.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return core.Account{}, errors.New("username is required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (username, password_hash, created_at) VALUES (?, ?, ?)",
		username, passwordHash, now.Format(timestampLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Account{}, ledger.ErrDuplicateAccount
		}
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account id: %w", err)
	}
	return core.Account{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (s *Store) AccountByUsername(ctx context.Context, username string) (core.Account, error) {
	var (
		a       core.Account
		created string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM accounts WHERE username = ?",
		strings.TrimSpace(username)).Scan(&a.ID, &a.Username, &a.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("query account: %w", err)
	}
	a.CreatedAt, _ = time.Parse(timestampLayout, created)
	return a, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertTransaction = `
	INSERT INTO transactions
		(owner_id, type, category, amount_cents, description, date, is_recurring, household, batch_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insert(ctx context.Context, db execer, t core.Transaction, now time.Time) (int64, error) {
	t, err := ledger.Normalize(t)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, insertTransaction,
		t.OwnerID, string(t.Type), strings.TrimSpace(t.Category), t.Amount.Cents,
		t.Description, t.Date.Format(dateLayout), t.IsRecurring, string(t.Household),
		t.BatchID, now.Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) AddTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	return insert(ctx, s.db, t, time.Now().UTC())
}

func (s *Store) ImportTransactions(ctx context.Context, ts []core.Transaction) (ids []int64, err error) {
	if len(ts) == 0 {
		return nil, ledger.ErrEmptyImport
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	ids = make([]int64, 0, len(ts))
	for i, t := range ts {
		id, err := insert(ctx, tx, t, now)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return ids, nil
}

const selectTransaction = `
	SELECT id, owner_id, type, category, amount_cents, description, date, is_recurring, household, batch_id, created_at
	FROM transactions`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t               core.Transaction
		typ, household  string
		date, createdAt string
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &typ, &t.Category, &t.Amount.Cents, &t.Description,
		&date, &t.IsRecurring, &household, &t.BatchID, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	t.Date = core.Date{Time: d}
	t.Type = core.TransactionType(typ)
	t.Household = core.HouseholdType(household)
	t.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	return t, nil
}

func (s *Store) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx, selectTransaction+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("query transaction %d: %w", id, err)
	}
	return t, nil
}

func (s *Store) RecentTransactions(ctx context.Context, ownerID int64, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = ledger.DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+" WHERE owner_id = ? ORDER BY date DESC, id DESC LIMIT ?", ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) TotalsByType(ctx context.Context, ownerID int64) (core.TypeTotals, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT type, SUM(amount_cents) FROM transactions WHERE owner_id = ? GROUP BY type", ownerID)
	if err != nil {
		return nil, fmt.Errorf("query totals by type: %w", err)
	}
	defer rows.Close()

	totals := core.NewTypeTotals()
	for rows.Next() {
		var (
			typ   string
			cents int64
		)
		if err := rows.Scan(&typ, &cents); err != nil {
			return nil, fmt.Errorf("scan totals by type: %w", err)
		}
		totals[core.TransactionType(typ)] = core.Money{Cents: cents}
	}
	return totals, rows.Err()
}

func (s *Store) CategoryTotals(ctx context.Context, ownerID int64, typ core.TransactionType) ([]core.CategoryAmount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, SUM(amount_cents)
		FROM transactions
		WHERE owner_id = ? AND type = ?
		GROUP BY category
		ORDER BY category`, ownerID, string(typ))
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var c core.CategoryAmount
		if err := rows.Scan(&c.Name, &c.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category totals: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) MonthlyTypeTotals(ctx context.Context, ownerID int64, year int) ([]core.MonthTypeTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(date, 1, 7) AS month, type, SUM(amount_cents)
		FROM transactions
		WHERE owner_id = ? AND substr(date, 1, 4) = ?
		GROUP BY month, type
		ORDER BY month, type`, ownerID, fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, fmt.Errorf("query monthly totals: %w", err)
	}
	defer rows.Close()

	var out []core.MonthTypeTotal
	for rows.Next() {
		var (
			m   core.MonthTypeTotal
			typ string
		)
		if err := rows.Scan(&m.Month, &typ, &m.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan monthly totals: %w", err)
		}
		m.Type = core.TransactionType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}
