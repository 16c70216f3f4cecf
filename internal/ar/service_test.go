package ar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerbook/ledgerbook/internal/money"
)

type failingStore struct{}

func (failingStore) QueryInvoices(context.Context, InvoiceFilter) ([]Invoice, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) QueryContacts(context.Context, ContactFilter) ([]Contact, error) {
	return nil, nil
}

func TestServiceGenerateAgingReport(t *testing.T) {
	store := NewMemoryStore()
	acme := store.AddContact(Contact{CompanyID: 1, Name: "Acme", Email: "ap@acme.test"})
	other := store.AddContact(Contact{CompanyID: 2, Name: "Other Co"})
	store.AddInvoice(Invoice{CompanyID: 1, CustomerID: acme.ID, Number: "INV-1", DueDate: dueDaysAgo(45), Total: money.MustParse("120"), Status: InvoiceStatusOpen})
	store.AddInvoice(Invoice{CompanyID: 1, CustomerID: acme.ID, Number: "INV-2", DueDate: dueDaysAgo(3), Total: money.MustParse("80"), Status: InvoiceStatusDraft})
	store.AddInvoice(Invoice{CompanyID: 2, CustomerID: other.ID, Number: "INV-3", DueDate: dueDaysAgo(3), Total: money.MustParse("99"), Status: InvoiceStatusOpen})

	svc := NewService(store, nil)
	fixed := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return fixed })

	report, err := svc.GenerateAgingReport(context.Background(), AgingRequest{CompanyID: 1, AsOf: agingAsOf})
	require.NoError(t, err)
	require.Equal(t, fixed, report.GeneratedAt)
	require.Equal(t, 1, report.InvoiceCount)
	require.Len(t, report.Customers, 1)
	require.Equal(t, "ap@acme.test", report.Customers[0].Email)
	bucket, ok := report.Bucket(Bucket31To60)
	require.True(t, ok)
	require.Equal(t, 120.0, bucket.Amount)
}

func TestServiceGenerateAgingReportCustomerFilter(t *testing.T) {
	store := NewMemoryStore()
	a := store.AddContact(Contact{CompanyID: 1, Name: "A"})
	b := store.AddContact(Contact{CompanyID: 1, Name: "B"})
	store.AddInvoice(Invoice{CompanyID: 1, CustomerID: a.ID, DueDate: dueDaysAgo(1), Total: money.MustParse("1"), Status: InvoiceStatusOpen})
	store.AddInvoice(Invoice{CompanyID: 1, CustomerID: b.ID, DueDate: dueDaysAgo(1), Total: money.MustParse("2"), Status: InvoiceStatusOpen})

	report, err := NewService(store, nil).GenerateAgingReport(context.Background(), AgingRequest{CompanyID: 1, AsOf: agingAsOf, CustomerID: &b.ID})
	require.NoError(t, err)
	require.Len(t, report.Customers, 1)
	require.Equal(t, b.ID, report.Customers[0].CustomerID)
}

func TestServiceGenerateAgingReportErrors(t *testing.T) {
	_, err := NewService(failingStore{}, nil).GenerateAgingReport(context.Background(), AgingRequest{CompanyID: 1, AsOf: agingAsOf})
	require.ErrorIs(t, err, ErrQuery)
	require.ErrorContains(t, err, "connection reset")

	_, err = NewService(NewMemoryStore(), nil).GenerateAgingReport(context.Background(), AgingRequest{CompanyID: 1})
	require.ErrorIs(t, err, ErrInvalidRequest)
}
