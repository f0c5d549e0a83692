package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// SyncPublisher is the outbound side of the AMQP client.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, msg *amqp.TransactionSyncMessage) error
	Close() error
}

// ImportResult reports a committed spreadsheet import.
type ImportResult struct {
	BatchID string
	IDs     []int64
}

// TransactionService orchestrates ledger writes and the optional export queue.
type TransactionService struct {
	ledger    ledger.Store
	publisher SyncPublisher
	events    *log.StructuredLogger
	newBatch  func() string
}

// NewTransactionService wires the ledger and an optional publisher (nil disables
// export messages).
func NewTransactionService(store ledger.Store, publisher SyncPublisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.FromSlog(slog.Default(), log.ComponentLedger)
	}
	return &TransactionService{
		ledger:    store,
		publisher: publisher,
		events:    log.NewStructuredLogger(logger),
		newBatch:  func() string { return uuid.NewString() },
	}
}

// AddTransaction saves a manual entry and queues it for export.
func (s *TransactionService) AddTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	t.BatchID = ""
	id, err := s.ledger.AddTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}

	s.events.LogTransactionCreated(ctx, id, string(t.Type), t.Category, t.Amount.Cents)
	s.publish(ctx, amqp.NewTransactionSyncMessage(id, t.OwnerID, ""))
	return id, nil
}

// Import stores every transaction under a fresh batch ID, or none of them.
func (s *TransactionService) Import(ctx context.Context, filename string, ts []core.Transaction) (ImportResult, error) {
	if len(ts) == 0 {
		return ImportResult{}, ledger.ErrEmptyImport
	}

	batch := s.newBatch()
	rows := make([]core.Transaction, len(ts))
	for i, t := range ts {
		t.BatchID = batch
		rows[i] = t
	}

	ids, err := s.ledger.ImportTransactions(ctx, rows)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import %s: %w", filename, err)
	}

	s.events.LogImport(ctx, batch, filename, len(ids))
	for i, id := range ids {
		s.publish(ctx, amqp.NewTransactionSyncMessage(id, rows[i].OwnerID, batch))
	}
	return ImportResult{BatchID: batch, IDs: ids}, nil
}

// Recent lists the newest entries of an account.
func (s *TransactionService) Recent(ctx context.Context, ownerID int64, limit int) ([]core.Transaction, error) {
	return s.ledger.RecentTransactions(ctx, ownerID, limit)
}

// publish never fails the caller: the transaction is already stored.
func (s *TransactionService) publish(ctx context.Context, msg *amqp.TransactionSyncMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, msg); err != nil {
		s.events.LogError(ctx, "Failed to publish sync message", err, log.OpSync,
			log.LogFields{log.FieldTxID: msg.ID})
	}
}

// Close closes the ledger and the publisher.
func (s *TransactionService) Close() error {
	var errs []error
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("ledger: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
