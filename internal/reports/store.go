package reports

import (
	"context"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/ar"
)

// LedgerStore is the read side of the ledger consumed by the assemblers.
type LedgerStore interface {
	QueryAccounts(ctx context.Context, filter accounting.AccountFilter) ([]accounting.Account, error)
	QueryTransactions(ctx context.Context, filter accounting.TransactionFilter) ([]accounting.JournalEntry, error)
}

// AgingGenerator produces receivable aging reports.
type AgingGenerator interface {
	GenerateAgingReport(ctx context.Context, req ar.AgingRequest) (ar.AgingReport, error)
}

var countedStatuses = []accounting.JournalStatus{accounting.JournalStatusPosted, accounting.JournalStatusReconciled}
