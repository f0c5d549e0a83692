// Package gormstore is the PostgreSQL ledger backend, built on GORM.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

type Store struct {
	db *gorm.DB
}

var _ ledger.Store = (*Store)(nil)

// Open connects to PostgreSQL and migrates the ledger tables.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{db: db}

	if err := db.WithContext(ctx).AutoMigrate(&Account{}, &Transaction{}); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate ledger tables: %w", err)
	}

	slog.InfoContext(ctx, "PostgreSQL ledger ready")
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateAccount(ctx context.Context, username, passwordHash string) (core.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return core.Account{}, errors.New("username is required")
	}
	a := Account{Username: username, PasswordHash: passwordHash}
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return core.Account{}, ledger.ErrDuplicateAccount
		}
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return toAccount(a), nil
}

func (s *Store) AccountByUsername(ctx context.Context, username string) (core.Account, error) {
	var a Account
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Account{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("query account: %w", err)
	}
	return toAccount(a), nil
}

func toModel(t core.Transaction) (Transaction, error) {
	t, err := ledger.Normalize(t)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		OwnerID:     t.OwnerID,
		Type:        string(t.Type),
		Category:    strings.TrimSpace(t.Category),
		AmountCents: t.Amount.Cents,
		Description: t.Description,
		Date:        t.Date.Time,
		IsRecurring: t.IsRecurring,
		Household:   string(t.Household),
		BatchID:     t.BatchID,
	}, nil
}

func (s *Store) AddTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	m, err := toModel(t)
	if err != nil {
		return 0, err
	}
	if err := s.db.WithContext(ctx).Omit("Owner").Create(&m).Error; err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return m.ID, nil
}

func (s *Store) ImportTransactions(ctx context.Context, ts []core.Transaction) ([]int64, error) {
	if len(ts) == 0 {
		return nil, ledger.ErrEmptyImport
	}
	models := make([]Transaction, 0, len(ts))
	for i, t := range ts {
		m, err := toModel(t)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		models = append(models, m)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Owner").CreateInBatches(&models, 200).Error
	})
	if err != nil {
		return nil, fmt.Errorf("import transactions: %w", err)
	}

	ids := make([]int64, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	return ids, nil
}

func (s *Store) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	var m Transaction
	err := s.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("query transaction %d: %w", id, err)
	}
	return toTransaction(m), nil
}

func (s *Store) RecentTransactions(ctx context.Context, ownerID int64, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = ledger.DefaultRecentLimit
	}
	var ms []Transaction
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("date DESC, id DESC").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("query recent transactions: %w", err)
	}
	out := make([]core.Transaction, len(ms))
	for i, m := range ms {
		out[i] = toTransaction(m)
	}
	return out, nil
}

type typeTotal struct {
	Type  string
	Total int64
}

func (s *Store) TotalsByType(ctx context.Context, ownerID int64) (core.TypeTotals, error) {
	var rows []typeTotal
	err := s.db.WithContext(ctx).Model(&Transaction{}).
		Select("type, SUM(amount_cents) AS total").
		Where("owner_id = ?", ownerID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query totals by type: %w", err)
	}
	totals := core.NewTypeTotals()
	for _, r := range rows {
		totals[core.TransactionType(r.Type)] = core.Money{Cents: r.Total}
	}
	return totals, nil
}

type categoryTotal struct {
	Category string
	Total    int64
}

func (s *Store) CategoryTotals(ctx context.Context, ownerID int64, typ core.TransactionType) ([]core.CategoryAmount, error) {
	var rows []categoryTotal
	err := s.db.WithContext(ctx).Model(&Transaction{}).
		Select("category, SUM(amount_cents) AS total").
		Where("owner_id = ? AND type = ?", ownerID, string(typ)).
		Group("category").
		Order("category").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	out := make([]core.CategoryAmount, len(rows))
	for i, r := range rows {
		out[i] = core.CategoryAmount{Name: r.Category, Amount: core.Money{Cents: r.Total}}
	}
	return out, nil
}

type monthTotal struct {
	Month string
	Type  string
	Total int64
}

func (s *Store) MonthlyTypeTotals(ctx context.Context, ownerID int64, year int) ([]core.MonthTypeTotal, error) {
	var rows []monthTotal
	err := s.db.WithContext(ctx).Model(&Transaction{}).
		Select("to_char(date, 'YYYY-MM') AS month, type, SUM(amount_cents) AS total").
		Where("owner_id = ? AND EXTRACT(YEAR FROM date) = ?", ownerID, year).
		Group("month, type").
		Order("month, type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query monthly totals: %w", err)
	}
	out := make([]core.MonthTypeTotal, len(rows))
	for i, r := range rows {
		out[i] = core.MonthTypeTotal{Month: r.Month, Type: core.TransactionType(r.Type), Amount: core.Money{Cents: r.Total}}
	}
	return out, nil
}

func toAccount(a Account) core.Account {
	return core.Account{ID: a.ID, Username: a.Username, PasswordHash: a.PasswordHash, CreatedAt: a.CreatedAt}
}

func toTransaction(m Transaction) core.Transaction {
	d := m.Date
	return core.Transaction{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Type:        core.TransactionType(m.Type),
		Category:    m.Category,
		Amount:      core.Money{Cents: m.AmountCents},
		Description: m.Description,
		Date:        core.Date{Time: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)},
		IsRecurring: m.IsRecurring,
		Household:   core.HouseholdType(m.Household),
		BatchID:     m.BatchID,
		CreatedAt:   m.CreatedAt,
	}
}
