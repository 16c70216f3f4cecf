package ar

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps invoices and contacts in process.
type MemoryStore struct {
	mu       sync.RWMutex
	invoices []Invoice
	contacts []Contact
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AddContact stores a contact, assigning an id when zero.
func (m *MemoryStore) AddContact(c Contact) Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = int64(len(m.contacts) + 1)
	}
	m.contacts = append(m.contacts, c)
	return c
}

// AddInvoice stores an invoice, assigning an id when zero.
func (m *MemoryStore) AddInvoice(inv Invoice) Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.ID == 0 {
		inv.ID = int64(len(m.invoices) + 1)
	}
	m.invoices = append(m.invoices, inv)
	return inv
}

// QueryInvoices implements ReceivablesStore.
func (m *MemoryStore) QueryInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Invoice
	for _, inv := range m.invoices {
		if filter.Matches(inv) {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

// QueryContacts implements ReceivablesStore.
func (m *MemoryStore) QueryContacts(ctx context.Context, filter ContactFilter) ([]Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Contact
	for _, c := range m.contacts {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// InsertContact is AddContact with the writer signature shared by the stores.
func (m *MemoryStore) InsertContact(ctx context.Context, c Contact) (Contact, error) {
	if err := ctx.Err(); err != nil {
		return Contact{}, err
	}
	return m.AddContact(c), nil
}

// InsertInvoice is AddInvoice with the writer signature shared by the stores.
func (m *MemoryStore) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	if err := ctx.Err(); err != nil {
		return Invoice{}, err
	}
	return m.AddInvoice(inv), nil
}
