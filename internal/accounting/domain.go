package accounting

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset        AccountType = "ASSET"
	AccountTypeLiability    AccountType = "LIABILITY"
	AccountTypeEquity       AccountType = "EQUITY"
	AccountTypeIncome       AccountType = "INCOME"
	AccountTypeExpense      AccountType = "EXPENSE"
	AccountTypeCOGS         AccountType = "COGS"
	AccountTypeOtherIncome  AccountType = "OTHER_INCOME"
	AccountTypeOtherExpense AccountType = "OTHER_EXPENSE"
)

// ParseAccountType normalises user or storage input into an AccountType.
func ParseAccountType(raw string) (AccountType, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "ASSET":
		return AccountTypeAsset, nil
	case "LIABILITY":
		return AccountTypeLiability, nil
	case "EQUITY":
		return AccountTypeEquity, nil
	case "INCOME", "REVENUE":
		return AccountTypeIncome, nil
	case "EXPENSE":
		return AccountTypeExpense, nil
	case "COGS", "COST_OF_GOODS_SOLD":
		return AccountTypeCOGS, nil
	case "OTHER_INCOME":
		return AccountTypeOtherIncome, nil
	case "OTHER_EXPENSE":
		return AccountTypeOtherExpense, nil
	}
	return "", fmt.Errorf("accounting: unknown account type %q", raw)
}

// IsIncomeLike reports whether balances of this type add to net income.
func (t AccountType) IsIncomeLike() bool {
	return t == AccountTypeIncome || t == AccountTypeOtherIncome
}

// IsExpenseLike reports whether balances of this type reduce net income.
func (t AccountType) IsExpenseLike() bool {
	return t == AccountTypeExpense || t == AccountTypeCOGS || t == AccountTypeOtherExpense
}

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft      JournalStatus = "DRAFT"
	JournalStatusPosted     JournalStatus = "POSTED"
	JournalStatusReconciled JournalStatus = "RECONCILED"
	JournalStatusVoid       JournalStatus = "VOID"
)

// CountsTowardBalance reports whether entries in this status affect balances.
func (s JournalStatus) CountsTowardBalance() bool {
	return s == JournalStatusPosted || s == JournalStatusReconciled
}

// Account models a chart of accounts node.
type Account struct {
	ID             int64
	CompanyID      int64
	Number         string
	Name           string
	Type           AccountType
	Subtype        string
	ParentID       *int64
	IsActive       bool
	Classification Classification
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsSubAccount reports whether the account has a parent.
func (a Account) IsSubAccount() bool {
	return a.ParentID != nil && *a.ParentID != 0
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID           int64
	CompanyID    int64
	Number       int64
	Date         time.Time
	Memo         string
	SourceModule string
	SourceID     uuid.UUID
	Status       JournalStatus
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []JournalLine
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID        int64
	JournalID int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// AccountFilter scopes chart of accounts queries.
type AccountFilter struct {
	CompanyID      int64
	IsActive       *bool
	IncludeDeleted bool
}

// TransactionFilter scopes journal entry queries. Zero dates are unbounded.
type TransactionFilter struct {
	CompanyID      int64
	AccountID      *int64
	Statuses       []JournalStatus
	FromDate       time.Time
	ToDate         time.Time
	IncludeDeleted bool
}

// Matches applies the filter to an entry already loaded in memory.
func (f TransactionFilter) Matches(entry JournalEntry) bool {
	if f.CompanyID != 0 && entry.CompanyID != f.CompanyID {
		return false
	}
	if !f.IncludeDeleted && entry.DeletedAt != nil {
		return false
	}
	if !f.FromDate.IsZero() && entry.Date.Before(f.FromDate) {
		return false
	}
	if !f.ToDate.IsZero() && entry.Date.After(f.ToDate) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if st == entry.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.AccountID != nil {
		for _, line := range entry.Lines {
			if line.AccountID == *f.AccountID {
				return true
			}
		}
		return false
	}
	return true
}

// Matches applies the filter to an account already loaded in memory.
func (f AccountFilter) Matches(acc Account) bool {
	if f.CompanyID != 0 && acc.CompanyID != f.CompanyID {
		return false
	}
	if !f.IncludeDeleted && acc.DeletedAt != nil {
		return false
	}
	if f.IsActive != nil && acc.IsActive != *f.IsActive {
		return false
	}
	return true
}

// PostingLineInput describes a journal line for posting request.
type PostingLineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	CompanyID    int64
	Date         time.Time
	SourceModule string
	SourceID     uuid.UUID
	Memo         string
	Status       JournalStatus
	Lines        []PostingLineInput
}

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrSourceAlreadyLinked indicates idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrAccountNotFound indicates a line references an unknown account.
	ErrAccountNotFound = errors.New("accounting: account not found")
)

// Validate ensures posting input meets minimum criteria.
func (in PostingInput) Validate() error {
	if in.CompanyID == 0 {
		return errors.New("accounting: company required")
	}
	if in.Date.IsZero() {
		return errors.New("accounting: date required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	switch in.Status {
	case "", JournalStatusDraft, JournalStatusPosted, JournalStatusReconciled, JournalStatusVoid:
	default:
		return fmt.Errorf("accounting: invalid status %q", in.Status)
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("accounting: line %d missing account", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("accounting: line %d negative amount", idx)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("accounting: line %d cannot be both debit and credit", idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return ErrUnbalanced
	}
	if in.SourceModule == "" {
		return errors.New("accounting: source module required")
	}
	return nil
}
