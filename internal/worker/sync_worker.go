package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/sheets"
)

// TransactionReader is the part of the ledger the worker needs.
type TransactionReader interface {
	Transaction(ctx context.Context, id int64) (core.Transaction, error)
}

// SyncWorker exports ledger transactions to Google Sheets.
type SyncWorker struct {
	ledger TransactionReader
	sheets sheets.TransactionWriter
}

func NewSyncWorker(ledger TransactionReader, sheets sheets.TransactionWriter) *SyncWorker {
	return &SyncWorker{ledger: ledger, sheets: sheets}
}

// HandleSyncMessage processes one message. A transaction that no longer exists
// is acknowledged and skipped; any other error requeues the message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "transaction_id", msg.ID, "batch_id", msg.BatchID)

	t, err := w.ledger.Transaction(ctx, msg.ID)
	if errors.Is(err, ledger.ErrNotFound) {
		slog.WarnContext(ctx, "Transaction no longer exists, skipping", "transaction_id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from ledger: %w", err)
	}
	if msg.OwnerID != 0 && t.OwnerID != msg.OwnerID {
		slog.WarnContext(ctx, "Owner mismatch, skipping",
			"transaction_id", msg.ID,
			"message_owner", msg.OwnerID,
			"ledger_owner", t.OwnerID)
		return nil
	}

	ref, err := w.sheets.AppendTransaction(ctx, t)
	if err != nil {
		return fmt.Errorf("append transaction to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Transaction exported", "transaction_id", msg.ID, "ref", ref)
	return nil
}
