package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/ledger/gormstore"
	"fintrack/internal/ledger/sqlstore"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateLedger implements Factory.CreateLedger
func (f *DefaultFactory) CreateLedger(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteLedger(ctx, config)
	case PostgresBackend:
		return f.createPostgresLedger(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteLedger(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := sqlstore.Open(ctx, config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite ledger: %w", err)
	}

	f.logger.Info("Initialized SQLite ledger", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Ledger:  store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createPostgresLedger(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := gormstore.Open(ctx, config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL ledger: %w", err)
	}

	f.logger.Info("Initialized PostgreSQL ledger")

	return &BackendResult{
		Ledger:  store,
		Cleanup: store.Close,
	}, nil
}
