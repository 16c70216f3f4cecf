package ar

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates receivable invoice statuses.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "DRAFT"
	InvoiceStatusOpen    InvoiceStatus = "OPEN"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusVoid    InvoiceStatus = "VOID"
)

// Invoice is a customer invoice as read from the receivables store.
type Invoice struct {
	ID         int64
	CompanyID  int64
	Number     string
	CustomerID int64
	IssueDate  time.Time
	DueDate    time.Time
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	Status     InvoiceStatus
	DeletedAt  *time.Time
}

// AmountDue is the unpaid remainder.
func (i Invoice) AmountDue() decimal.Decimal {
	return i.Total.Sub(i.AmountPaid)
}

// Contact is a customer record.
type Contact struct {
	ID        int64
	CompanyID int64
	Name      string
	Email     string
	DeletedAt *time.Time
}

// InvoiceFilter scopes invoice queries.
type InvoiceFilter struct {
	CompanyID      int64
	CustomerID     *int64
	Statuses       []InvoiceStatus
	IncludeDeleted bool
}

// Matches applies the filter in memory.
func (f InvoiceFilter) Matches(inv Invoice) bool {
	if f.CompanyID != 0 && inv.CompanyID != f.CompanyID {
		return false
	}
	if f.CustomerID != nil && inv.CustomerID != *f.CustomerID {
		return false
	}
	if !f.IncludeDeleted && inv.DeletedAt != nil {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if st == inv.Status {
			return true
		}
	}
	return false
}

// ContactFilter scopes contact queries.
type ContactFilter struct {
	CompanyID      int64
	IDs            []int64
	IncludeDeleted bool
}

// Matches applies the filter in memory.
func (f ContactFilter) Matches(c Contact) bool {
	if f.CompanyID != 0 && c.CompanyID != f.CompanyID {
		return false
	}
	if !f.IncludeDeleted && c.DeletedAt != nil {
		return false
	}
	if len(f.IDs) == 0 {
		return true
	}
	for _, id := range f.IDs {
		if id == c.ID {
			return true
		}
	}
	return false
}

var (
	// ErrInvalidRequest indicates a malformed aging request.
	ErrInvalidRequest = errors.New("ar: invalid aging request")
	// ErrQuery marks failures returned by the receivables store.
	ErrQuery = errors.New("ar: query failed")
)
