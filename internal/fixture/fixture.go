// Package fixture loads a company ledger described in YAML into any store that
// can take writes: Postgres for the seed script, SQLite for ledgerctl import.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/money"
)

// SourceModule marks journal entries created from fixtures.
const SourceModule = "fixture"

// sourceNamespace derives stable journal source ids so a re-import of the same
// file is rejected as already linked.
var sourceNamespace = uuid.MustParse("6f1c1f2e-3b7a-4d52-9a51-4c8f0b0d2a10")

// File is the root of a fixture document.
type File struct {
	Companies []Company `yaml:"companies" validate:"required,min=1,dive"`
}

// Company groups one company's chart, journals and receivables.
type Company struct {
	ID       int64     `yaml:"id" validate:"required,gt=0"`
	Name     string    `yaml:"name" validate:"required"`
	Accounts []Account `yaml:"accounts" validate:"dive"`
	Journals []Journal `yaml:"journals" validate:"dive"`
	Contacts []Contact `yaml:"contacts" validate:"dive"`
	Invoices []Invoice `yaml:"invoices" validate:"dive"`
}

// Account is a chart entry. Key is the handle journals and children use.
type Account struct {
	Key            string `yaml:"key" validate:"required"`
	Number         string `yaml:"number"`
	Name           string `yaml:"name" validate:"required"`
	Type           string `yaml:"type" validate:"required"`
	Subtype        string `yaml:"subtype"`
	Parent         string `yaml:"parent"`
	Classification string `yaml:"classification" validate:"omitempty,oneof=current long-term"`
}

// Journal is one entry; amounts are decimal strings.
type Journal struct {
	Date   string `yaml:"date" validate:"required"`
	Memo   string `yaml:"memo"`
	Status string `yaml:"status" validate:"omitempty,oneof=draft posted reconciled void DRAFT POSTED RECONCILED VOID"`
	Lines  []Line `yaml:"lines" validate:"required,min=2,dive"`
}

// Line is a journal line.
type Line struct {
	Account string `yaml:"account" validate:"required"`
	Debit   string `yaml:"debit"`
	Credit  string `yaml:"credit"`
	Memo    string `yaml:"memo"`
}

// Contact is a customer.
type Contact struct {
	Key   string `yaml:"key" validate:"required"`
	Name  string `yaml:"name" validate:"required"`
	Email string `yaml:"email" validate:"omitempty,email"`
}

// Invoice is a receivable against a contact key.
type Invoice struct {
	Number    string `yaml:"number" validate:"required"`
	Customer  string `yaml:"customer" validate:"required"`
	Status    string `yaml:"status" validate:"required"`
	IssueDate string `yaml:"issue_date" validate:"required"`
	DueDate   string `yaml:"due_date" validate:"required"`
	Total     string `yaml:"total" validate:"required"`
	Paid      string `yaml:"paid"`
}

// Target receives the non-ledger writes of an import.
type Target interface {
	EnsureCompany(ctx context.Context, id int64, name string) error
	InsertContact(ctx context.Context, c ar.Contact) (ar.Contact, error)
	InsertInvoice(ctx context.Context, inv ar.Invoice) (ar.Invoice, error)
}

// Summary counts what Apply wrote.
type Summary struct {
	Companies int
	Accounts  int
	Journals  int
	Contacts  int
	Invoices  int
}

// Load decodes and validates a fixture. Unknown keys are rejected.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("fixture: empty document")
		}
		return nil, fmt.Errorf("fixture: decode: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("fixture: %w", err)
	}
	return &f, nil
}

// Apply writes every company in order. Accounts must be listed after their
// parent. The first failure aborts; earlier writes are kept.
func (f *File) Apply(ctx context.Context, ledger *accounting.Service, target Target) (Summary, error) {
	var sum Summary
	for _, company := range f.Companies {
		if err := applyCompany(ctx, company, ledger, target, &sum); err != nil {
			return sum, fmt.Errorf("fixture: company %d: %w", company.ID, err)
		}
		sum.Companies++
	}
	return sum, nil
}

func applyCompany(ctx context.Context, c Company, ledger *accounting.Service, target Target, sum *Summary) error {
	if err := target.EnsureCompany(ctx, c.ID, c.Name); err != nil {
		return err
	}

	accounts := make(map[string]int64, len(c.Accounts))
	for _, acc := range c.Accounts {
		if _, dup := accounts[acc.Key]; dup {
			return fmt.Errorf("account %q defined twice", acc.Key)
		}
		typ, err := accounting.ParseAccountType(acc.Type)
		if err != nil {
			return err
		}
		in := accounting.AccountInput{
			CompanyID:      c.ID,
			Number:         acc.Number,
			Name:           acc.Name,
			Type:           typ,
			Subtype:        acc.Subtype,
			Classification: accounting.Classification(acc.Classification),
		}
		if acc.Parent != "" {
			parentID, ok := accounts[acc.Parent]
			if !ok {
				return fmt.Errorf("account %q: parent %q not defined before it", acc.Key, acc.Parent)
			}
			in.ParentID = &parentID
		}
		created, err := ledger.CreateAccount(ctx, in)
		if err != nil {
			return fmt.Errorf("account %q: %w", acc.Key, err)
		}
		accounts[acc.Key] = created.ID
		sum.Accounts++
	}

	for idx, j := range c.Journals {
		input, err := j.posting(c.ID, idx, accounts)
		if err != nil {
			return fmt.Errorf("journal %d: %w", idx, err)
		}
		if _, err := ledger.PostJournal(ctx, input); err != nil {
			return fmt.Errorf("journal %d: %w", idx, err)
		}
		sum.Journals++
	}

	contacts := make(map[string]int64, len(c.Contacts))
	for _, ct := range c.Contacts {
		created, err := target.InsertContact(ctx, ar.Contact{CompanyID: c.ID, Name: ct.Name, Email: ct.Email})
		if err != nil {
			return fmt.Errorf("contact %q: %w", ct.Key, err)
		}
		contacts[ct.Key] = created.ID
		sum.Contacts++
	}

	for _, inv := range c.Invoices {
		record, err := inv.invoice(c.ID, contacts)
		if err != nil {
			return fmt.Errorf("invoice %s: %w", inv.Number, err)
		}
		if _, err := target.InsertInvoice(ctx, record); err != nil {
			return fmt.Errorf("invoice %s: %w", inv.Number, err)
		}
		sum.Invoices++
	}
	return nil
}

func (j Journal) posting(companyID int64, idx int, accounts map[string]int64) (accounting.PostingInput, error) {
	date, err := parseDate(j.Date)
	if err != nil {
		return accounting.PostingInput{}, err
	}
	status := accounting.JournalStatus(strings.ToUpper(j.Status))
	if status == "" {
		status = accounting.JournalStatusPosted
	}
	in := accounting.PostingInput{
		CompanyID:    companyID,
		Date:         date,
		SourceModule: SourceModule,
		SourceID:     uuid.NewSHA1(sourceNamespace, []byte(fmt.Sprintf("%d/%d", companyID, idx))),
		Memo:         j.Memo,
		Status:       status,
	}
	for _, line := range j.Lines {
		accountID, ok := accounts[line.Account]
		if !ok {
			return accounting.PostingInput{}, fmt.Errorf("unknown account %q", line.Account)
		}
		debit, err := parseAmount(line.Debit)
		if err != nil {
			return accounting.PostingInput{}, err
		}
		credit, err := parseAmount(line.Credit)
		if err != nil {
			return accounting.PostingInput{}, err
		}
		in.Lines = append(in.Lines, accounting.PostingLineInput{AccountID: accountID, Debit: debit, Credit: credit, Memo: line.Memo})
	}
	return in, nil
}

func (inv Invoice) invoice(companyID int64, contacts map[string]int64) (ar.Invoice, error) {
	customerID, ok := contacts[inv.Customer]
	if !ok {
		return ar.Invoice{}, fmt.Errorf("unknown customer %q", inv.Customer)
	}
	issue, err := parseDate(inv.IssueDate)
	if err != nil {
		return ar.Invoice{}, err
	}
	due, err := parseDate(inv.DueDate)
	if err != nil {
		return ar.Invoice{}, err
	}
	total, err := parseAmount(inv.Total)
	if err != nil {
		return ar.Invoice{}, err
	}
	paid, err := parseAmount(inv.Paid)
	if err != nil {
		return ar.Invoice{}, err
	}
	status := ar.InvoiceStatus(strings.ToUpper(inv.Status))
	switch status {
	case ar.InvoiceStatusDraft, ar.InvoiceStatusOpen, ar.InvoiceStatusPartial, ar.InvoiceStatusPaid, ar.InvoiceStatusVoid:
	default:
		return ar.Invoice{}, fmt.Errorf("invalid status %q", inv.Status)
	}
	return ar.Invoice{
		CompanyID:  companyID,
		Number:     inv.Number,
		CustomerID: customerID,
		IssueDate:  issue,
		DueDate:    due,
		Total:      total,
		AmountPaid: paid,
		Status:     status,
	}, nil
}

// parseDate accepts a date, read as midday UTC, or an RFC 3339 instant.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return d.Add(12 * time.Hour), nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := money.Parse(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}
