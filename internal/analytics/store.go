// Package analytics is the analytical snapshot store: a single SQLite file holding
// users, household, goal, expenses, income, user_expenses and goal_progress.
//
// Readers never hold a long-lived connection. Each operation acquires a Handle,
// runs its queries and closes the handle on every exit path.
package analytics

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("analytics store closed")

type Store struct {
	db   *sql.DB
	path string
}

// Open opens the analytics database at path and applies the embedded schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := storage.RunMigrations(path, migrationsFS, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("analytics schema: %w", err)
	}

	slog.InfoContext(ctx, "Analytics store ready", "path", path)
	return &Store{db: db, path: path}, nil
}

// Handle is a single connection scoped to one operation.
type Handle struct {
	conn *sql.Conn
}

// Acquire checks a connection out of the pool. Callers must Close it.
func (s *Store) Acquire(ctx context.Context) (*Handle, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("acquire analytics connection: %w", err)
	}
	return &Handle{conn: conn}, nil
}

func (h *Handle) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return h.conn.QueryContext(ctx, query, args...)
}

func (h *Handle) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return h.conn.QueryRowContext(ctx, query, args...)
}

// Close returns the connection to the pool. Safe to call more than once.
func (h *Handle) Close() error {
	if h == nil || h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	if errors.Is(err, sql.ErrConnDone) {
		return nil
	}
	return err
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	h, err := s.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Close()
	var one int
	return h.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// InUse reports how many connections are currently checked out.
func (s *Store) InUse() int {
	return s.db.Stats().InUse
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
