package services

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

type fakeLedger struct {
	ledger.Store // unimplemented methods panic

	added     []core.Transaction
	imported  []core.Transaction
	importErr error
	closed    bool
}

func (f *fakeLedger) AddTransaction(_ context.Context, t core.Transaction) (int64, error) {
	f.added = append(f.added, t)
	return int64(len(f.added)), nil
}

func (f *fakeLedger) ImportTransactions(_ context.Context, ts []core.Transaction) ([]int64, error) {
	if f.importErr != nil {
		return nil, f.importErr
	}
	ids := make([]int64, len(ts))
	for i, t := range ts {
		f.imported = append(f.imported, t)
		ids[i] = int64(100 + i)
	}
	return ids, nil
}

func (f *fakeLedger) Close() error {
	f.closed = true
	return nil
}

type fakePublisher struct {
	msgs   []*amqp.TransactionSyncMessage
	err    error
	closed bool
}

func (p *fakePublisher) PublishTransactionSync(_ context.Context, msg *amqp.TransactionSyncMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return errors.New("already closed")
}

func sampleTx(category string) core.Transaction {
	return core.Transaction{
		OwnerID:  1,
		Type:     core.TypeExpense,
		Category: category,
		Amount:   core.Money{Cents: 1250},
		Date:     core.NewDate(2024, 3, 1),
		BatchID:  "ignored",
	}
}

func TestAddTransaction_PublishesAndClearsBatch(t *testing.T) {
	store := &fakeLedger{}
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub, nil)

	id, err := svc.AddTransaction(context.Background(), sampleTx("food"))
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}
	if store.added[0].BatchID != "" {
		t.Errorf("manual entry kept batch %q", store.added[0].BatchID)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].ID != 1 || pub.msgs[0].OwnerID != 1 {
		t.Errorf("published %+v", pub.msgs)
	}
}

func TestAddTransaction_PublishFailureIsNotFatal(t *testing.T) {
	svc := NewTransactionService(&fakeLedger{}, &fakePublisher{err: amqp.ErrCircuitOpen}, nil)
	if _, err := svc.AddTransaction(context.Background(), sampleTx("food")); err != nil {
		t.Fatalf("AddTransaction() error = %v, want nil", err)
	}
}

func TestAddTransaction_NoPublisher(t *testing.T) {
	svc := NewTransactionService(&fakeLedger{}, nil, nil)
	if _, err := svc.AddTransaction(context.Background(), sampleTx("food")); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
}

func TestImport_AssignsOneBatch(t *testing.T) {
	store := &fakeLedger{}
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub, nil)
	svc.newBatch = func() string { return "batch-1" }

	res, err := svc.Import(context.Background(), "march.xlsx", []core.Transaction{sampleTx("food"), sampleTx("rent")})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.BatchID != "batch-1" || len(res.IDs) != 2 {
		t.Fatalf("result = %+v", res)
	}
	for _, tx := range store.imported {
		if tx.BatchID != "batch-1" {
			t.Errorf("row %q has batch %q", tx.Category, tx.BatchID)
		}
	}
	if len(pub.msgs) != 2 || pub.msgs[1].ID != 101 || pub.msgs[1].BatchID != "batch-1" {
		t.Errorf("published %+v", pub.msgs)
	}
}

func TestImport_Errors(t *testing.T) {
	svc := NewTransactionService(&fakeLedger{}, nil, nil)
	if _, err := svc.Import(context.Background(), "empty.csv", nil); !errors.Is(err, ledger.ErrEmptyImport) {
		t.Errorf("empty import: err = %v", err)
	}

	boom := errors.New("disk full")
	pub := &fakePublisher{}
	svc = NewTransactionService(&fakeLedger{importErr: boom}, pub, nil)
	if _, err := svc.Import(context.Background(), "x.csv", []core.Transaction{sampleTx("food")}); !errors.Is(err, boom) {
		t.Errorf("failed import: err = %v", err)
	}
	if len(pub.msgs) != 0 {
		t.Errorf("failed import published %d messages", len(pub.msgs))
	}
}

func TestClose_ClosesBoth(t *testing.T) {
	store := &fakeLedger{}
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub, nil)

	err := svc.Close()
	if !store.closed || !pub.closed {
		t.Fatal("Close() should close ledger and publisher")
	}
	if err == nil {
		t.Fatal("Close() should report the publisher error")
	}
}
