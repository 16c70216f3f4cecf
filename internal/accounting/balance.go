package accounting

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculateBalance returns the signed balance of accountID as of asOf by
// scanning the whole log. Entries dated after asOf and entries that are not
// posted or reconciled are ignored. An account missing from accounts yields
// zero.
func CalculateBalance(accounts []Account, accountID int64, asOf time.Time, entries []JournalEntry) decimal.Decimal {
	var target *Account
	for i := range accounts {
		if accounts[i].ID == accountID {
			target = &accounts[i]
			break
		}
	}
	if target == nil {
		return decimal.Zero
	}
	debitNormal := IsDebitNormal(target.Type)
	balance := decimal.Zero
	for _, entry := range entries {
		if !entry.Status.CountsTowardBalance() || entry.Date.After(asOf) {
			continue
		}
		for _, line := range entry.Lines {
			if line.AccountID != accountID {
				continue
			}
			balance = balance.Add(signedAmount(line, debitNormal))
		}
	}
	return balance
}

func signedAmount(line JournalLine, debitNormal bool) decimal.Decimal {
	if debitNormal {
		return line.Debit.Sub(line.Credit)
	}
	return line.Credit.Sub(line.Debit)
}

// Ledger is an immutable snapshot of accounts and journal entries for one
// report computation.
type Ledger struct {
	accounts []Account
	byID     map[int64]Account
	entries  []JournalEntry
}

// NewLedger indexes the snapshot. The slices are not copied and must not be
// mutated afterwards.
func NewLedger(accounts []Account, entries []JournalEntry) *Ledger {
	byID := make(map[int64]Account, len(accounts))
	for _, acc := range accounts {
		byID[acc.ID] = acc
	}
	return &Ledger{accounts: accounts, byID: byID, entries: entries}
}

// Accounts returns the snapshot's chart of accounts.
func (l *Ledger) Accounts() []Account {
	return l.accounts
}

// Account looks up an account by id.
func (l *Ledger) Account(id int64) (Account, bool) {
	acc, ok := l.byID[id]
	return acc, ok
}

// BalanceAsOf is CalculateBalance against the snapshot.
func (l *Ledger) BalanceAsOf(accountID int64, asOf time.Time) decimal.Decimal {
	return l.Activity(accountID, time.Time{}, asOf)
}

// Activity sums signed movements on accountID for from <= date <= to. A zero
// from is unbounded.
func (l *Ledger) Activity(accountID int64, from, to time.Time) decimal.Decimal {
	acc, ok := l.byID[accountID]
	if !ok {
		return decimal.Zero
	}
	debitNormal := IsDebitNormal(acc.Type)
	total := decimal.Zero
	for _, entry := range l.entries {
		if !inWindow(entry, from, to) {
			continue
		}
		for _, line := range entry.Lines {
			if line.AccountID == accountID {
				total = total.Add(signedAmount(line, debitNormal))
			}
		}
	}
	return total
}

// BalancesAsOf computes every known account's balance in one pass over the log.
func (l *Ledger) BalancesAsOf(asOf time.Time) map[int64]decimal.Decimal {
	return l.ActivityBetween(time.Time{}, asOf)
}

// ActivityBetween computes every known account's movement for
// from <= date <= to in one pass over the log. Accounts without activity are
// present with a zero value.
func (l *Ledger) ActivityBetween(from, to time.Time) map[int64]decimal.Decimal {
	out := make(map[int64]decimal.Decimal, len(l.byID))
	for id := range l.byID {
		out[id] = decimal.Zero
	}
	for _, entry := range l.entries {
		if !inWindow(entry, from, to) {
			continue
		}
		for _, line := range entry.Lines {
			acc, ok := l.byID[line.AccountID]
			if !ok {
				continue
			}
			out[acc.ID] = out[acc.ID].Add(signedAmount(line, IsDebitNormal(acc.Type)))
		}
	}
	return out
}

func inWindow(entry JournalEntry, from, to time.Time) bool {
	if !entry.Status.CountsTowardBalance() {
		return false
	}
	if !from.IsZero() && entry.Date.Before(from) {
		return false
	}
	return !entry.Date.After(to)
}
