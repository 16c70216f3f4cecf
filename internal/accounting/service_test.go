package accounting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbook/ledgerbook/internal/money"
)

func TestServicePostJournal(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	cash, err := svc.CreateAccount(ctx, AccountInput{CompanyID: 1, Number: "1000", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
	equity, err := svc.CreateAccount(ctx, AccountInput{CompanyID: 1, Number: "3000", Name: "Owner Equity", Type: AccountTypeEquity})
	require.NoError(t, err)

	ref := uuid.New()
	entry, err := svc.PostJournal(ctx, PostingInput{
		CompanyID:    1,
		Date:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		SourceModule: "manual",
		SourceID:     ref,
		Lines: []PostingLineInput{
			{AccountID: cash.ID, Debit: money.MustParse("10000")},
			{AccountID: equity.ID, Credit: money.MustParse("10000")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, JournalStatusPosted, entry.Status)
	require.Len(t, entry.Lines, 2)

	entries, err := store.QueryTransactions(ctx, TransactionFilter{CompanyID: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Lines, 2)

	_, err = svc.PostJournal(ctx, PostingInput{
		CompanyID:    1,
		Date:         time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		SourceModule: "manual",
		SourceID:     ref,
		Lines: []PostingLineInput{
			{AccountID: cash.ID, Debit: money.MustParse("1")},
			{AccountID: equity.ID, Credit: money.MustParse("1")},
		},
	})
	require.ErrorIs(t, err, ErrSourceAlreadyLinked)
}

func TestServicePostJournalValidation(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()
	cash := store.AddAccount(Account{CompanyID: 1, Name: "Cash", Type: AccountTypeAsset, IsActive: true})
	foreign := store.AddAccount(Account{CompanyID: 2, Name: "Other", Type: AccountTypeEquity, IsActive: true})

	base := PostingInput{CompanyID: 1, Date: time.Now(), SourceModule: "manual"}

	in := base
	in.Lines = []PostingLineInput{{AccountID: cash.ID, Debit: money.MustParse("1")}}
	_, err := svc.PostJournal(ctx, in)
	require.ErrorIs(t, err, ErrTooFewLines)

	in.Lines = []PostingLineInput{
		{AccountID: cash.ID, Debit: money.MustParse("99.99")},
		{AccountID: foreign.ID, Credit: money.MustParse("99.98")},
	}
	_, err = svc.PostJournal(ctx, in)
	require.ErrorIs(t, err, ErrUnbalanced)

	in.Lines[1].Credit = money.MustParse("99.99")
	_, err = svc.PostJournal(ctx, in)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestServiceCreateAccountParentRules(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	parent, err := svc.CreateAccount(ctx, AccountInput{CompanyID: 1, Name: "Fixed Assets", Type: AccountTypeAsset})
	require.NoError(t, err)

	child, err := svc.CreateAccount(ctx, AccountInput{CompanyID: 1, Name: "Vehicles", Type: AccountTypeAsset, ParentID: &parent.ID})
	require.NoError(t, err)
	require.True(t, child.IsSubAccount())

	_, err = svc.CreateAccount(ctx, AccountInput{CompanyID: 1, Name: "Loan", Type: AccountTypeLiability, ParentID: &parent.ID})
	require.ErrorIs(t, err, ErrParentTypeMismatch)

	_, err = svc.CreateAccount(ctx, AccountInput{CompanyID: 2, Name: "Vans", Type: AccountTypeAsset, ParentID: &parent.ID})
	require.ErrorIs(t, err, ErrParentCompanyMismatch)

	_, err = svc.CreateAccount(ctx, AccountInput{CompanyID: 1, Name: "Bogus", Type: "STOCK"})
	require.Error(t, err)
}

func TestServiceCommitHooks(t *testing.T) {
	store := NewMemoryStore()
	var commits int
	svc := NewService(store, nil).
		OnCommit(func(context.Context) error { commits++; return nil }).
		OnCommit(func(context.Context) error { return errors.New("redis down") })
	ctx := context.Background()

	cash, err := svc.CreateAccount(ctx, AccountInput{CompanyID: 1, Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
	equity, err := svc.CreateAccount(ctx, AccountInput{CompanyID: 1, Name: "Capital", Type: AccountTypeEquity})
	require.NoError(t, err)
	require.Equal(t, 2, commits)

	in := PostingInput{CompanyID: 1, Date: time.Now(), SourceModule: "manual", Lines: []PostingLineInput{
		{AccountID: cash.ID, Debit: money.MustParse("5")},
		{AccountID: equity.ID, Credit: money.MustParse("5")},
	}}
	_, err = svc.PostJournal(ctx, in)
	require.NoError(t, err)
	require.Equal(t, 3, commits)

	in.Lines[1].Credit = money.MustParse("4")
	_, err = svc.PostJournal(ctx, in)
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Equal(t, 3, commits)
}
