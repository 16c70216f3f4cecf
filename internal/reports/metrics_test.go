package reports

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/money"
)

func TestReportMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, SetupMetrics(reg))
	require.NoError(t, SetupMetrics(reg))

	store := accounting.NewMemoryStore()
	cash := store.AddAccount(accounting.Account{CompanyID: company, Name: "Cash", Type: accounting.AccountTypeAsset, IsActive: true})
	store.AddEntry(accounting.JournalEntry{
		CompanyID: company,
		Date:      at(2024, 1, 1),
		Status:    accounting.JournalStatusPosted,
		Lines:     []accounting.JournalLine{{AccountID: cash.ID, Debit: money.MustParse("1")}},
	})
	before := testutil.ToFloat64(unbalancedTotal)
	_, err := NewService(store, nil, nil).GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: farFuture})
	require.NoError(t, err)
	require.Equal(t, before+1, testutil.ToFloat64(unbalancedTotal))

	failures := testutil.ToFloat64(errorCounter.WithLabelValues(ReportBalanceSheet, string(CodeQuery)))
	_, err = NewService(brokenLedger{}, nil, nil).GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: farFuture})
	require.Error(t, err)
	require.Equal(t, failures+1, testutil.ToFloat64(errorCounter.WithLabelValues(ReportBalanceSheet, string(CodeQuery))))

	count, err := testutil.GatherAndCount(reg, "ledgerbook_report_build_duration_seconds")
	require.NoError(t, err)
	require.Positive(t, count)
}
