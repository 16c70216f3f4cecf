package accounting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerbook/ledgerbook/internal/money"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func entry(id int64, date time.Time, status JournalStatus, lines ...JournalLine) JournalEntry {
	return JournalEntry{ID: id, CompanyID: 1, Date: date, Status: status, Lines: lines}
}

func dr(account int64, amount string) JournalLine {
	return JournalLine{AccountID: account, Debit: money.MustParse(amount)}
}

func cr(account int64, amount string) JournalLine {
	return JournalLine{AccountID: account, Credit: money.MustParse(amount)}
}

var balanceAccounts = []Account{
	{ID: 1, CompanyID: 1, Name: "Cash", Type: AccountTypeAsset},
	{ID: 2, CompanyID: 1, Name: "Sales", Type: AccountTypeIncome},
	{ID: 3, CompanyID: 1, Name: "Rent", Type: AccountTypeExpense},
}

func TestCalculateBalanceSignConvention(t *testing.T) {
	entries := []JournalEntry{
		entry(1, day(2024, 1, 5), JournalStatusPosted, dr(1, "500"), cr(2, "500")),
		entry(2, day(2024, 1, 6), JournalStatusReconciled, dr(3, "120"), cr(1, "120")),
	}
	asOf := day(2024, 12, 31)
	require.True(t, CalculateBalance(balanceAccounts, 1, asOf, entries).Equal(money.MustParse("380")))
	require.True(t, CalculateBalance(balanceAccounts, 2, asOf, entries).Equal(money.MustParse("500")))
	require.True(t, CalculateBalance(balanceAccounts, 3, asOf, entries).Equal(money.MustParse("120")))
}

func TestCalculateBalanceTemporalFilter(t *testing.T) {
	entries := []JournalEntry{
		entry(1, day(2024, 3, 1), JournalStatusPosted, dr(1, "100"), cr(2, "100")),
		entry(2, day(2024, 3, 2), JournalStatusPosted, dr(1, "40"), cr(2, "40")),
	}
	require.True(t, CalculateBalance(balanceAccounts, 1, day(2024, 3, 1), entries).Equal(money.MustParse("100")))
	require.True(t, CalculateBalance(balanceAccounts, 1, day(2024, 2, 28), entries).IsZero())
	// same instant counts
	require.True(t, CalculateBalance(balanceAccounts, 1, day(2024, 3, 2), entries).Equal(money.MustParse("140")))
}

func TestCalculateBalanceStatusFilter(t *testing.T) {
	entries := []JournalEntry{
		entry(1, day(2024, 1, 1), JournalStatusDraft, dr(1, "100"), cr(2, "100")),
		entry(2, day(2024, 1, 1), JournalStatusVoid, dr(1, "200"), cr(2, "200")),
	}
	require.True(t, CalculateBalance(balanceAccounts, 1, day(2030, 1, 1), entries).IsZero())
}

func TestCalculateBalanceUnknownAccountIsZero(t *testing.T) {
	entries := []JournalEntry{entry(1, day(2024, 1, 1), JournalStatusPosted, dr(99, "10"), cr(2, "10"))}
	require.True(t, CalculateBalance(balanceAccounts, 99, day(2030, 1, 1), entries).IsZero())
	require.True(t, CalculateBalance(balanceAccounts, 1, day(2030, 1, 1), nil).IsZero())
}

func TestLedgerDecimalExactness(t *testing.T) {
	entries := []JournalEntry{
		entry(1, day(2024, 1, 1), JournalStatusPosted, dr(1, "99.99"), cr(2, "99.99")),
		entry(2, day(2024, 1, 2), JournalStatusPosted, dr(1, "0.01"), cr(2, "0.01")),
	}
	ledger := NewLedger(balanceAccounts, entries)
	balances := ledger.BalancesAsOf(day(2024, 12, 31))
	require.Equal(t, "100", balances[2].String())
	require.True(t, balances[3].IsZero())
	require.True(t, ledger.BalanceAsOf(2, day(2024, 12, 31)).Equal(balances[2]))
}

func TestLedgerActivityWindow(t *testing.T) {
	entries := []JournalEntry{
		entry(1, day(2024, 1, 31), JournalStatusPosted, dr(1, "10"), cr(2, "10")),
		entry(2, day(2024, 2, 1), JournalStatusPosted, dr(1, "20"), cr(2, "20")),
		entry(3, day(2024, 2, 29), JournalStatusPosted, dr(1, "30"), cr(2, "30")),
		entry(4, day(2024, 3, 1), JournalStatusPosted, dr(1, "40"), cr(2, "40")),
	}
	ledger := NewLedger(balanceAccounts, entries)
	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)
	require.Equal(t, "50", ledger.Activity(2, from, to).String())
	require.Equal(t, "50", ledger.ActivityBetween(from, to)[2].String())
	require.True(t, ledger.Activity(42, from, to).IsZero())

	acc, ok := ledger.Account(3)
	require.True(t, ok)
	require.Equal(t, "Rent", acc.Name)
	require.Len(t, ledger.Accounts(), 3)
}
