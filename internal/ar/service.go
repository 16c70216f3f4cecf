package ar

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ReceivablesStore is the read side consumed by the aging report.
type ReceivablesStore interface {
	QueryInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	QueryContacts(ctx context.Context, filter ContactFilter) ([]Contact, error)
}

// Service builds receivable reports.
type Service struct {
	store  ReceivablesStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(store ReceivablesStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GenerateAgingReport buckets open invoices by days past due as of req.AsOf.
// Store failures are wrapped with ErrQuery, bad requests with ErrInvalidRequest.
func (s *Service) GenerateAgingReport(ctx context.Context, req AgingRequest) (AgingReport, error) {
	if err := req.Normalize(); err != nil {
		return AgingReport{}, err
	}
	filter := InvoiceFilter{
		CompanyID:  req.CompanyID,
		CustomerID: req.CustomerID,
		Statuses:   []InvoiceStatus{InvoiceStatusOpen, InvoiceStatusPartial},
	}
	if req.IncludeVoidedInvoices {
		filter.Statuses = append(filter.Statuses, InvoiceStatusVoid)
	}
	invoices, err := s.store.QueryInvoices(ctx, filter)
	if err != nil {
		return AgingReport{}, fmt.Errorf("%w: invoices: %w", ErrQuery, err)
	}

	seen := make(map[int64]struct{}, len(invoices))
	ids := make([]int64, 0, len(invoices))
	for _, inv := range invoices {
		if _, ok := seen[inv.CustomerID]; ok {
			continue
		}
		seen[inv.CustomerID] = struct{}{}
		ids = append(ids, inv.CustomerID)
	}
	var contacts []Contact
	if len(ids) > 0 {
		contacts, err = s.store.QueryContacts(ctx, ContactFilter{CompanyID: req.CompanyID, IDs: ids, IncludeDeleted: true})
		if err != nil {
			return AgingReport{}, fmt.Errorf("%w: contacts: %w", ErrQuery, err)
		}
	}

	report := BuildAgingReport(req, invoices, contacts, s.now().UTC())
	s.logger.Debug("aging report built",
		slog.Int64("company_id", req.CompanyID),
		slog.Int("invoices", report.InvoiceCount),
		slog.Int("customers", len(report.Customers)),
	)
	return report, nil
}
