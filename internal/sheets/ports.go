package sheets

import (
	"context"

	"fintrack/internal/core"
)

// TransactionWriter exports ledger transactions to a spreadsheet.
type TransactionWriter interface {
	AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
}
