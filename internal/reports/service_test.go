package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/money"
	_ "github.com/ledgerbook/ledgerbook/testing"
)

const company = int64(1)

type ledgerFixture struct {
	store *accounting.MemoryStore
	ids   map[string]int64
}

func newFixture() *ledgerFixture {
	return &ledgerFixture{store: accounting.NewMemoryStore(), ids: make(map[string]int64)}
}

func (f *ledgerFixture) account(key, number, name string, typ accounting.AccountType, parent string) int64 {
	acc := accounting.Account{CompanyID: company, Number: number, Name: name, Type: typ, IsActive: true}
	if parent != "" {
		id := f.ids[parent]
		acc.ParentID = &id
	}
	f.ids[key] = f.store.AddAccount(acc).ID
	return f.ids[key]
}

func (f *ledgerFixture) post(date time.Time, status accounting.JournalStatus, debit, credit, amount string) {
	f.store.AddEntry(accounting.JournalEntry{
		CompanyID: company,
		Date:      date,
		Status:    status,
		Lines: []accounting.JournalLine{
			{AccountID: f.ids[debit], Debit: money.MustParse(amount)},
			{AccountID: f.ids[credit], Credit: money.MustParse(amount)},
		},
	})
}

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

var farFuture = time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC)

func line(t *testing.T, section Section, id int64) LineItem {
	t.Helper()
	for _, l := range section.Lines {
		if l.AccountID == id {
			return l
		}
	}
	t.Fatalf("account %d not in section %s", id, section.Name)
	return LineItem{}
}

func hasLine(section Section, id int64) bool {
	for _, l := range section.Lines {
		if l.AccountID == id {
			return true
		}
	}
	return false
}

func TestBalanceSheetEndToEnd(t *testing.T) {
	f := newFixture()
	f.account("cash", "1000", "Cash", accounting.AccountTypeAsset, "")
	f.account("ar", "1100", "Accounts Receivable", accounting.AccountTypeAsset, "")
	f.account("loan", "2500", "Bank Loan", accounting.AccountTypeLiability, "")
	f.account("equity", "3000", "Owner Equity", accounting.AccountTypeEquity, "")
	f.account("revenue", "4000", "Sales", accounting.AccountTypeIncome, "")

	f.post(at(2024, 1, 1), accounting.JournalStatusPosted, "cash", "equity", "10000")
	f.post(at(2024, 1, 2), accounting.JournalStatusPosted, "cash", "loan", "5000")
	f.post(at(2024, 1, 3), accounting.JournalStatusPosted, "ar", "revenue", "3000")

	svc := NewService(f.store, nil, nil)
	bs, err := svc.GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: farFuture})
	require.NoError(t, err)

	require.Equal(t, 15000.0, line(t, bs.Assets, f.ids["cash"]).Balance)
	require.Equal(t, 3000.0, line(t, bs.Assets, f.ids["ar"]).Balance)
	require.Equal(t, 18000.0, bs.Totals.TotalAssets)
	require.Equal(t, 18000.0, bs.Totals.CurrentAssets)
	require.Equal(t, 5000.0, bs.Totals.TotalLiabilities)
	require.Equal(t, 5000.0, bs.Totals.LongTermLiabilities)
	require.Equal(t, 10000.0, bs.Totals.EquityAccounts)
	require.Equal(t, 3000.0, bs.Totals.NetIncome)
	require.Equal(t, 13000.0, bs.Totals.TotalEquity)
	require.Equal(t, 18000.0, bs.Totals.TotalLiabilitiesAndEquity)
	require.Equal(t, 0.0, bs.Totals.BalanceDifference)
	require.True(t, bs.Totals.IsBalanced)
	require.False(t, hasLine(bs.Equity, f.ids["revenue"]))
	require.Nil(t, bs.ComparisonTotals)
}

func TestBalanceSheetNetIncomeFold(t *testing.T) {
	f := newFixture()
	f.account("cash", "1000", "Cash", accounting.AccountTypeAsset, "")
	f.account("revenue", "4000", "Consulting", accounting.AccountTypeIncome, "")
	f.post(at(2024, 5, 1), accounting.JournalStatusPosted, "cash", "revenue", "5000")

	bs, err := NewService(f.store, nil, nil).GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: at(2024, 6, 1)})
	require.NoError(t, err)
	require.Equal(t, 5000.0, bs.Totals.NetIncome)
	require.Equal(t, 5000.0, bs.Totals.TotalEquity)
	require.Empty(t, bs.Equity.Lines)
	require.True(t, bs.Totals.IsBalanced)

	pl, err := NewService(f.store, nil, nil).GenerateProfitLoss(context.Background(), ProfitLossRequest{
		CompanyID: company,
		Period:    DateRange{Start: at(2000, 1, 1), End: at(2024, 6, 1)},
	})
	require.NoError(t, err)
	require.Equal(t, bs.Totals.NetIncome, pl.NetIncome.Amount)
}

func TestBalanceSheetTemporalAndStatusFiltering(t *testing.T) {
	f := newFixture()
	f.account("cash", "1000", "Cash", accounting.AccountTypeAsset, "")
	f.account("equity", "3000", "Capital", accounting.AccountTypeEquity, "")
	f.post(at(2024, 1, 1), accounting.JournalStatusPosted, "cash", "equity", "100")
	f.post(at(2024, 1, 1), accounting.JournalStatusReconciled, "cash", "equity", "50")
	f.post(at(2024, 1, 1), accounting.JournalStatusDraft, "cash", "equity", "1000")
	f.post(at(2024, 1, 1), accounting.JournalStatusVoid, "cash", "equity", "2000")
	f.post(at(2024, 3, 1), accounting.JournalStatusPosted, "cash", "equity", "25")

	svc := NewService(f.store, nil, nil)
	bs, err := svc.GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: at(2024, 2, 1)})
	require.NoError(t, err)
	require.Equal(t, 150.0, bs.Totals.TotalAssets)

	bs, err = svc.GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: at(2024, 3, 1)})
	require.NoError(t, err)
	require.Equal(t, 175.0, bs.Totals.TotalAssets)
}

func TestBalanceSheetRollUpAndZeroBalances(t *testing.T) {
	f := newFixture()
	f.account("bank", "1000", "Bank Accounts", accounting.AccountTypeAsset, "")
	f.account("checking", "1010", "Checking", accounting.AccountTypeAsset, "bank")
	f.account("savings", "1020", "Savings", accounting.AccountTypeAsset, "bank")
	f.account("petty", "1050", "Petty Cash", accounting.AccountTypeAsset, "")
	f.account("equity", "3000", "Capital", accounting.AccountTypeEquity, "")
	f.post(at(2024, 1, 1), accounting.JournalStatusPosted, "checking", "equity", "5000")
	f.post(at(2024, 1, 1), accounting.JournalStatusPosted, "savings", "equity", "3000")

	svc := NewService(f.store, nil, nil)
	bs, err := svc.GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: farFuture})
	require.NoError(t, err)
	require.Equal(t, 8000.0, line(t, bs.Assets, f.ids["bank"]).Balance)
	require.Equal(t, 5000.0, line(t, bs.Assets, f.ids["checking"]).Balance)
	require.Equal(t, 3000.0, line(t, bs.Assets, f.ids["savings"]).Balance)
	require.Equal(t, 8000.0, bs.Assets.Subtotal)
	require.False(t, hasLine(bs.Assets, f.ids["petty"]))
	require.True(t, bs.Totals.IsBalanced)

	bs, err = svc.GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: farFuture, IncludeZeroBalances: true})
	require.NoError(t, err)
	require.Equal(t, 0.0, line(t, bs.Assets, f.ids["petty"]).Balance)
	require.Equal(t, 8000.0, bs.Assets.Subtotal)
}

func TestBalanceSheetUnbalancedLedgerIsNotAnError(t *testing.T) {
	store := accounting.NewMemoryStore()
	cash := store.AddAccount(accounting.Account{CompanyID: company, Name: "Cash", Type: accounting.AccountTypeAsset, IsActive: true})
	store.AddEntry(accounting.JournalEntry{
		CompanyID: company,
		Date:      at(2024, 1, 1),
		Status:    accounting.JournalStatusPosted,
		Lines:     []accounting.JournalLine{{AccountID: cash.ID, Debit: money.MustParse("42.50")}},
	})
	bs, err := NewService(store, nil, nil).GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: farFuture})
	require.NoError(t, err)
	require.False(t, bs.Totals.IsBalanced)
	require.Equal(t, 42.5, bs.Totals.BalanceDifference)
}

func TestBalanceSheetComparison(t *testing.T) {
	f := newFixture()
	f.account("cash", "1000", "Cash", accounting.AccountTypeAsset, "")
	f.account("equity", "3000", "Capital", accounting.AccountTypeEquity, "")
	f.post(at(2023, 6, 1), accounting.JournalStatusPosted, "cash", "equity", "10000")
	f.post(at(2024, 6, 1), accounting.JournalStatusPosted, "cash", "equity", "2000")

	prior := at(2023, 12, 31)
	bs, err := NewService(f.store, nil, nil).GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: at(2024, 12, 31), CompareAsOf: &prior})
	require.NoError(t, err)
	cash := line(t, bs.Assets, f.ids["cash"])
	require.Equal(t, 12000.0, cash.Balance)
	require.Equal(t, 10000.0, *cash.ComparisonBalance)
	require.Equal(t, 2000.0, *cash.Variance)
	require.InDelta(t, 20.0, *cash.VariancePercentage, 0.001)
	require.NotNil(t, bs.ComparisonTotals)
	require.Equal(t, 10000.0, bs.ComparisonTotals.TotalAssets)
	require.True(t, bs.ComparisonTotals.IsBalanced)
}

func TestProfitLossDecimalExactness(t *testing.T) {
	f := newFixture()
	f.account("cash", "1000", "Cash", accounting.AccountTypeAsset, "")
	f.account("revenue", "4000", "Sales", accounting.AccountTypeIncome, "")
	f.post(at(2024, 1, 5), accounting.JournalStatusPosted, "cash", "revenue", "99.99")
	f.post(at(2024, 1, 6), accounting.JournalStatusPosted, "cash", "revenue", "0.01")

	pl, err := NewService(f.store, nil, nil).GenerateProfitLoss(context.Background(), ProfitLossRequest{
		CompanyID: company,
		Period:    DateRange{Start: at(2024, 1, 1), End: at(2024, 1, 31)},
	})
	require.NoError(t, err)
	require.Equal(t, 100.0, pl.Revenue.Subtotal)
	require.Equal(t, 100.0, pl.NetIncome.Amount)
	require.Equal(t, 100.0, pl.NetIncome.PercentOfRevenue)
	require.Equal(t, MethodAccrual, pl.AccountingMethod)
}

func TestProfitLossSectionsAndVariance(t *testing.T) {
	f := newFixture()
	f.account("cash", "1000", "Cash", accounting.AccountTypeAsset, "")
	f.account("revenue", "4000", "Sales", accounting.AccountTypeIncome, "")
	f.account("services", "4100", "Services", accounting.AccountTypeIncome, "")
	f.account("cogs", "5000", "Materials", accounting.AccountTypeCOGS, "")
	f.account("rent", "6000", "Rent", accounting.AccountTypeExpense, "")
	f.account("interest", "7000", "Interest Income", accounting.AccountTypeOtherIncome, "")
	f.account("fees", "8000", "Bank Fees", accounting.AccountTypeOtherExpense, "")

	// comparison period: 2023
	f.post(at(2023, 3, 1), accounting.JournalStatusPosted, "cash", "revenue", "10000")
	f.post(at(2023, 3, 2), accounting.JournalStatusPosted, "cash", "services", "10000")
	f.post(at(2023, 3, 3), accounting.JournalStatusPosted, "cogs", "cash", "4000")
	// current period: 2024
	f.post(at(2024, 3, 1), accounting.JournalStatusPosted, "cash", "revenue", "12000")
	f.post(at(2024, 3, 2), accounting.JournalStatusPosted, "cash", "services", "6000")
	f.post(at(2024, 3, 3), accounting.JournalStatusPosted, "cogs", "cash", "4500")
	f.post(at(2024, 3, 4), accounting.JournalStatusPosted, "rent", "cash", "1500")
	f.post(at(2024, 3, 5), accounting.JournalStatusPosted, "cash", "interest", "100")

	pl, err := NewService(f.store, nil, nil).GenerateProfitLoss(context.Background(), ProfitLossRequest{
		CompanyID:              company,
		Period:                 DateRange{Start: at(2024, 1, 1), End: at(2024, 12, 31)},
		ComparisonPeriod:       &DateRange{Start: at(2023, 1, 1), End: at(2023, 12, 31)},
		AccountingMethod:       MethodCash,
		ShowEducationalContent: true,
	})
	require.NoError(t, err)

	sales := line(t, pl.Revenue, f.ids["revenue"])
	require.Equal(t, 12000.0, sales.Balance)
	require.Equal(t, 10000.0, *sales.ComparisonBalance)
	require.Equal(t, 2000.0, *sales.Variance)
	require.InDelta(t, 20.0, *sales.VariancePercentage, 0.0001)

	services := line(t, pl.Revenue, f.ids["services"])
	require.Equal(t, -4000.0, *services.Variance)
	require.InDelta(t, -40.0, *services.VariancePercentage, 0.0001)

	rent := line(t, pl.OperatingExpenses, f.ids["rent"])
	require.Equal(t, 0.0, *rent.ComparisonBalance)
	require.Nil(t, rent.VariancePercentage)

	require.Equal(t, 18000.0, pl.Revenue.Subtotal)
	require.Equal(t, 20000.0, *pl.Revenue.ComparisonSubtotal)
	require.Equal(t, 13500.0, pl.GrossProfit.Amount)
	require.Equal(t, 75.0, pl.GrossProfit.PercentOfRevenue)
	require.Equal(t, 12000.0, pl.OperatingIncome.Amount)
	require.Equal(t, 12100.0, pl.NetIncome.Amount)
	require.Equal(t, 16000.0, *pl.NetIncome.ComparisonAmount)
	require.Equal(t, -3900.0, *pl.NetIncome.Variance)

	require.NotNil(t, pl.OtherIncome)
	require.Nil(t, pl.OtherExpenses)
	require.Equal(t, MethodCash, pl.AccountingMethod)
	require.Contains(t, pl.Education, "gross_profit")
}

func TestProfitLossDeclineStaysVisible(t *testing.T) {
	f := newFixture()
	f.account("cash", "1000", "Cash", accounting.AccountTypeAsset, "")
	f.account("legacy", "4500", "Legacy Product", accounting.AccountTypeIncome, "")
	f.post(at(2023, 2, 1), accounting.JournalStatusPosted, "cash", "legacy", "700")

	pl, err := NewService(f.store, nil, nil).GenerateProfitLoss(context.Background(), ProfitLossRequest{
		CompanyID:        company,
		Period:           DateRange{Start: at(2024, 1, 1), End: at(2024, 12, 31)},
		ComparisonPeriod: &DateRange{Start: at(2023, 1, 1), End: at(2023, 12, 31)},
	})
	require.NoError(t, err)
	legacy := line(t, pl.Revenue, f.ids["legacy"])
	require.Equal(t, 0.0, legacy.Balance)
	require.Equal(t, -700.0, *legacy.Variance)
	require.InDelta(t, -100.0, *legacy.VariancePercentage, 0.0001)
	require.Equal(t, 0.0, pl.NetIncome.PercentOfRevenue)
}

func TestProfitLossInvalidInput(t *testing.T) {
	svc := NewService(accounting.NewMemoryStore(), nil, nil)
	_, err := svc.GenerateProfitLoss(context.Background(), ProfitLossRequest{
		CompanyID: company,
		Period:    DateRange{Start: at(2024, 2, 1), End: at(2024, 1, 1)},
	})
	require.Equal(t, CodeInvalidInput, CodeOf(err))

	_, err = svc.GenerateProfitLoss(context.Background(), ProfitLossRequest{
		CompanyID:        company,
		Period:           DateRange{Start: at(2024, 1, 1), End: at(2024, 2, 1)},
		AccountingMethod: "modified",
	})
	require.Equal(t, CodeInvalidInput, CodeOf(err))

	_, err = svc.GenerateBalanceSheet(context.Background(), BalanceSheetRequest{AsOf: farFuture})
	require.Equal(t, CodeInvalidInput, CodeOf(err))
}

type brokenLedger struct{}

func (brokenLedger) QueryAccounts(context.Context, accounting.AccountFilter) ([]accounting.Account, error) {
	return nil, errors.New("db: connection refused")
}

func (brokenLedger) QueryTransactions(context.Context, accounting.TransactionFilter) ([]accounting.JournalEntry, error) {
	return nil, nil
}

func TestQueryFailureIsStructured(t *testing.T) {
	svc := NewService(brokenLedger{}, nil, nil)
	_, err := svc.GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: farFuture})
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, CodeQuery, rerr.Code)
	require.ErrorContains(t, err, "connection refused")

	_, err = svc.GenerateProfitLoss(context.Background(), ProfitLossRequest{CompanyID: company, Period: DateRange{Start: at(2024, 1, 1), End: at(2024, 2, 1)}})
	require.Equal(t, CodeQuery, CodeOf(err))

	_, err = svc.GenerateAgingReport(context.Background(), ar.AgingRequest{CompanyID: company, AsOf: farFuture})
	require.Equal(t, CodeQuery, CodeOf(err))
}

func TestRecoverCalculation(t *testing.T) {
	run := func() (err error) {
		defer recoverCalculation("test", &err)
		var m map[string]int
		m["boom"] = 1
		return nil
	}
	err := run()
	require.Equal(t, CodeCalculation, CodeOf(err))
}

func TestGenerateStatements(t *testing.T) {
	f := newFixture()
	f.account("cash", "1000", "Cash", accounting.AccountTypeAsset, "")
	f.account("revenue", "4000", "Sales", accounting.AccountTypeIncome, "")
	f.post(at(2024, 4, 1), accounting.JournalStatusPosted, "cash", "revenue", "250")

	receivables := ar.NewMemoryStore()
	acme := receivables.AddContact(ar.Contact{CompanyID: company, Name: "Acme"})
	receivables.AddInvoice(ar.Invoice{CompanyID: company, CustomerID: acme.ID, Number: "INV-1", DueDate: at(2024, 5, 1), Total: money.MustParse("250"), Status: ar.InvoiceStatusOpen})

	svc := NewService(f.store, ar.NewService(receivables, nil), nil)
	out := svc.GenerateStatements(context.Background(), StatementsRequest{CompanyID: company, AsOf: at(2024, 6, 30)})
	require.False(t, out.Failed())
	require.Equal(t, 250.0, out.BalanceSheet.Totals.NetIncome)
	require.True(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Equal(out.ProfitLoss.Period.Start))
	require.Equal(t, 250.0, out.ProfitLoss.NetIncome.Amount)
	require.Equal(t, 1, out.Aging.InvoiceCount)
}

func TestParseAsOf(t *testing.T) {
	got, err := ParseAsOf("2024-03-15")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 15, 23, 59, 59, 999999999, time.UTC), got)

	got, err = ParseAsOf("2024-03-15T08:00:00Z")
	require.NoError(t, err)
	require.Equal(t, 8, got.Hour())

	start, err := ParseStart("2024-03-01")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), start)

	_, err = ParseAsOf("15/03/2024")
	require.Error(t, err)
}
