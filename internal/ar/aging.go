package ar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerbook/ledgerbook/internal/money"
)

// BucketName identifies an aging bucket.
type BucketName string

const (
	BucketCurrent BucketName = "current"
	Bucket1To30   BucketName = "1-30"
	Bucket31To60  BucketName = "31-60"
	Bucket61To90  BucketName = "61-90"
	BucketOver90  BucketName = "90+"
)

const dayDuration = 24 * time.Hour

// Buckets lists bucket names in report order.
var Buckets = []BucketName{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90}

var bucketLabels = map[BucketName]string{
	BucketCurrent: "Current",
	Bucket1To30:   "1-30 days",
	Bucket31To60:  "31-60 days",
	Bucket61To90:  "61-90 days",
	BucketOver90:  "Over 90 days",
}

// Urgency ranks customers for collection follow-up.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// SortField selects the customer ordering.
type SortField string

const (
	SortByName   SortField = "name"
	SortByTotal  SortField = "total"
	SortByOldest SortField = "oldest"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// AgingRequest parameterises GenerateAgingReport.
type AgingRequest struct {
	CompanyID             int64
	AsOf                  time.Time
	IncludeVoidedInvoices bool
	CustomerID            *int64
	SortBy                SortField
	SortOrder             SortOrder
}

// Normalize fills defaults and validates the request.
func (r *AgingRequest) Normalize() error {
	if r.CompanyID <= 0 {
		return fmt.Errorf("%w: company id required", ErrInvalidRequest)
	}
	if r.AsOf.IsZero() {
		return fmt.Errorf("%w: as-of date required", ErrInvalidRequest)
	}
	switch r.SortBy {
	case "":
		r.SortBy = SortByTotal
	case SortByName, SortByTotal, SortByOldest:
	default:
		return fmt.Errorf("%w: unknown sort field %q", ErrInvalidRequest, r.SortBy)
	}
	switch r.SortOrder {
	case "":
		r.SortOrder = SortDesc
	case SortAsc, SortDesc:
	default:
		return fmt.Errorf("%w: unknown sort order %q", ErrInvalidRequest, r.SortOrder)
	}
	return nil
}

// AgingInvoice is one invoice placed in a bucket.
type AgingInvoice struct {
	InvoiceID    int64      `json:"invoice_id"`
	Number       string     `json:"number"`
	CustomerID   int64      `json:"customer_id"`
	CustomerName string     `json:"customer_name"`
	IssueDate    time.Time  `json:"issue_date"`
	DueDate      time.Time  `json:"due_date"`
	Total        float64    `json:"total"`
	AmountPaid   float64    `json:"amount_paid"`
	AmountDue    float64    `json:"amount_due"`
	DaysOverdue  int        `json:"days_overdue"`
	Bucket       BucketName `json:"bucket"`
	Status       string     `json:"status"`
}

// AgingBucket aggregates invoices falling in one day range.
type AgingBucket struct {
	Name     BucketName     `json:"name"`
	Label    string         `json:"label"`
	Amount   float64        `json:"amount"`
	Count    int            `json:"count"`
	Invoices []AgingInvoice `json:"invoices"`
}

// CustomerAging aggregates one customer's open invoices.
type CustomerAging struct {
	CustomerID         int64     `json:"customer_id"`
	CustomerName       string    `json:"customer_name"`
	Email              string    `json:"email,omitempty"`
	Current            float64   `json:"current"`
	Days1To30          float64   `json:"days_1_30"`
	Days31To60         float64   `json:"days_31_60"`
	Days61To90         float64   `json:"days_61_90"`
	Over90             float64   `json:"over_90"`
	Total              float64   `json:"total"`
	InvoiceCount       int       `json:"invoice_count"`
	OldestDueDate      time.Time `json:"oldest_due_date"`
	MaxDaysOverdue     int       `json:"max_days_overdue"`
	HasOverdueInvoices bool      `json:"has_overdue_invoices"`
	Urgency            Urgency   `json:"urgency"`
}

// AgingReport is the A/R aging output.
type AgingReport struct {
	CompanyID        int64           `json:"company_id"`
	AsOf             time.Time       `json:"as_of"`
	GeneratedAt      time.Time       `json:"generated_at"`
	Buckets          []AgingBucket   `json:"buckets"`
	Customers        []CustomerAging `json:"customers"`
	TotalOutstanding float64         `json:"total_outstanding"`
	TotalOverdue     float64         `json:"total_overdue"`
	InvoiceCount     int             `json:"invoice_count"`
	SortBy           SortField       `json:"sort_by"`
	SortOrder        SortOrder       `json:"sort_order"`
}

// Bucket returns the named bucket.
func (r AgingReport) Bucket(name BucketName) (AgingBucket, bool) {
	for _, b := range r.Buckets {
		if b.Name == name {
			return b, true
		}
	}
	return AgingBucket{}, false
}

// DaysOverdue is floor((asOf - due) / 1 day). Negative means not yet due.
func DaysOverdue(asOf, due time.Time) int {
	d := asOf.Sub(due)
	days := int(d / dayDuration)
	if d%dayDuration < 0 {
		days--
	}
	return days
}

// BucketFor maps days overdue to a bucket; upper edges are inclusive.
func BucketFor(daysOverdue int) BucketName {
	switch {
	case daysOverdue < 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket1To30
	case daysOverdue <= 60:
		return Bucket31To60
	case daysOverdue <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

// UrgencyFor ranks a customer by its oldest overdue invoice.
func UrgencyFor(maxDaysOverdue int) Urgency {
	switch {
	case maxDaysOverdue > 90:
		return UrgencyHigh
	case maxDaysOverdue >= 30:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// Included reports whether the invoice carries aging information. Drafts were
// never issued; paid invoices and anything with nothing left to collect are
// always dropped; voids only on request.
func Included(inv Invoice, includeVoided bool) bool {
	switch inv.Status {
	case InvoiceStatusDraft, InvoiceStatusPaid:
		return false
	case InvoiceStatusVoid:
		if !includeVoided {
			return false
		}
	}
	return inv.AmountDue().IsPositive()
}

type customerAcc struct {
	id      int64
	name    string
	email   string
	buckets map[BucketName]decimal.Decimal
	total   decimal.Decimal
	count   int
	oldest  time.Time
	maxDays int
	anyLate bool
}

// BuildAgingReport buckets invoices relative to req.AsOf. req must already be
// normalised.
func BuildAgingReport(req AgingRequest, invoices []Invoice, contacts []Contact, generatedAt time.Time) AgingReport {
	byContact := make(map[int64]Contact, len(contacts))
	for _, c := range contacts {
		byContact[c.ID] = c
	}

	bucketAmounts := make(map[BucketName]decimal.Decimal, len(Buckets))
	bucketInvoices := make(map[BucketName][]AgingInvoice, len(Buckets))
	customers := make(map[int64]*customerAcc)
	var order []int64
	outstanding := decimal.Zero
	overdue := decimal.Zero
	count := 0

	for _, inv := range invoices {
		if req.CustomerID != nil && inv.CustomerID != *req.CustomerID {
			continue
		}
		if !Included(inv, req.IncludeVoidedInvoices) {
			continue
		}
		due := inv.AmountDue()
		days := DaysOverdue(req.AsOf, inv.DueDate)
		bucket := BucketFor(days)

		contact, ok := byContact[inv.CustomerID]
		name := contact.Name
		if !ok || strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Customer #%d", inv.CustomerID)
		}

		bucketAmounts[bucket] = bucketAmounts[bucket].Add(due)
		bucketInvoices[bucket] = append(bucketInvoices[bucket], AgingInvoice{
			InvoiceID:    inv.ID,
			Number:       inv.Number,
			CustomerID:   inv.CustomerID,
			CustomerName: name,
			IssueDate:    inv.IssueDate,
			DueDate:      inv.DueDate,
			Total:        money.Float(inv.Total),
			AmountPaid:   money.Float(inv.AmountPaid),
			AmountDue:    money.Float(due),
			DaysOverdue:  days,
			Bucket:       bucket,
			Status:       string(inv.Status),
		})
		outstanding = outstanding.Add(due)
		count++

		acc := customers[inv.CustomerID]
		if acc == nil {
			acc = &customerAcc{id: inv.CustomerID, name: name, email: contact.Email, buckets: make(map[BucketName]decimal.Decimal)}
			customers[inv.CustomerID] = acc
			order = append(order, inv.CustomerID)
		}
		acc.buckets[bucket] = acc.buckets[bucket].Add(due)
		acc.total = acc.total.Add(due)
		acc.count++
		if acc.oldest.IsZero() || inv.DueDate.Before(acc.oldest) {
			acc.oldest = inv.DueDate
		}
		if bucket != BucketCurrent {
			overdue = overdue.Add(due)
			acc.anyLate = true
			if days > acc.maxDays {
				acc.maxDays = days
			}
		}
	}

	report := AgingReport{
		CompanyID:        req.CompanyID,
		AsOf:             req.AsOf,
		GeneratedAt:      generatedAt,
		Buckets:          make([]AgingBucket, 0, len(Buckets)),
		TotalOutstanding: money.Float(outstanding),
		TotalOverdue:     money.Float(overdue),
		InvoiceCount:     count,
		SortBy:           req.SortBy,
		SortOrder:        req.SortOrder,
	}
	for _, name := range Buckets {
		invs := bucketInvoices[name]
		sort.SliceStable(invs, func(i, j int) bool { return invs[i].DaysOverdue > invs[j].DaysOverdue })
		if invs == nil {
			invs = []AgingInvoice{}
		}
		report.Buckets = append(report.Buckets, AgingBucket{
			Name:     name,
			Label:    bucketLabels[name],
			Amount:   money.Float(bucketAmounts[name]),
			Count:    len(invs),
			Invoices: invs,
		})
	}

	report.Customers = make([]CustomerAging, 0, len(order))
	for _, id := range order {
		acc := customers[id]
		row := CustomerAging{
			CustomerID:         acc.id,
			CustomerName:       acc.name,
			Email:              acc.email,
			Current:            money.Float(acc.buckets[BucketCurrent]),
			Days1To30:          money.Float(acc.buckets[Bucket1To30]),
			Days31To60:         money.Float(acc.buckets[Bucket31To60]),
			Days61To90:         money.Float(acc.buckets[Bucket61To90]),
			Over90:             money.Float(acc.buckets[BucketOver90]),
			Total:              money.Float(acc.total),
			InvoiceCount:       acc.count,
			OldestDueDate:      acc.oldest,
			MaxDaysOverdue:     acc.maxDays,
			HasOverdueInvoices: acc.anyLate,
			Urgency:            UrgencyFor(acc.maxDays),
		}
		report.Customers = append(report.Customers, row)
	}
	SortCustomers(report.Customers, req.SortBy, req.SortOrder)
	return report
}

// SortCustomers orders rows in place. Ties fall back to customer name then id.
func SortCustomers(rows []CustomerAging, by SortField, order SortOrder) {
	less := func(a, b CustomerAging) int {
		switch by {
		case SortByName:
			return strings.Compare(strings.ToLower(a.CustomerName), strings.ToLower(b.CustomerName))
		case SortByOldest:
			return a.OldestDueDate.Compare(b.OldestDueDate)
		default:
			switch {
			case a.Total < b.Total:
				return -1
			case a.Total > b.Total:
				return 1
			}
			return 0
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := less(rows[i], rows[j])
		if order == SortDesc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		if rows[i].CustomerName != rows[j].CustomerName {
			return rows[i].CustomerName < rows[j].CustomerName
		}
		return rows[i].CustomerID < rows[j].CustomerID
	})
}
