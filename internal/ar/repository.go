package ar

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL backed reads for receivables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// QueryInvoices lists invoices matching filter ordered by due date.
func (r *Repository) QueryInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	query := `
		SELECT id, company_id, number, customer_id, issue_date, due_date,
			total, amount_paid, status, deleted_at
		FROM invoices
		WHERE 1=1`

	args := []any{}
	argNum := 1

	if filter.CompanyID != 0 {
		query += fmt.Sprintf(" AND company_id = $%d", argNum)
		args = append(args, filter.CompanyID)
		argNum++
	}
	if filter.CustomerID != nil {
		query += fmt.Sprintf(" AND customer_id = $%d", argNum)
		args = append(args, *filter.CustomerID)
		argNum++
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		query += fmt.Sprintf(" AND status = ANY($%d)", argNum)
		args = append(args, statuses)
	}
	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY due_date, id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		var status string
		var total, paid pgtype.Numeric
		var deletedAt pgtype.Timestamptz

		if err := rows.Scan(
			&inv.ID, &inv.CompanyID, &inv.Number, &inv.CustomerID, &inv.IssueDate, &inv.DueDate,
			&total, &paid, &status, &deletedAt,
		); err != nil {
			return nil, err
		}
		inv.Status = InvoiceStatus(status)
		if inv.Total, err = numericToDecimal(total); err != nil {
			return nil, fmt.Errorf("ar: invoice %d total: %w", inv.ID, err)
		}
		if inv.AmountPaid, err = numericToDecimal(paid); err != nil {
			return nil, fmt.Errorf("ar: invoice %d amount paid: %w", inv.ID, err)
		}
		if deletedAt.Valid {
			inv.DeletedAt = &deletedAt.Time
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// QueryContacts lists contacts matching filter.
func (r *Repository) QueryContacts(ctx context.Context, filter ContactFilter) ([]Contact, error) {
	query := `SELECT id, company_id, name, COALESCE(email, ''), deleted_at FROM contacts WHERE 1=1`
	args := []any{}
	argNum := 1
	if filter.CompanyID != 0 {
		query += fmt.Sprintf(" AND company_id = $%d", argNum)
		args = append(args, filter.CompanyID)
		argNum++
	}
	if len(filter.IDs) > 0 {
		query += fmt.Sprintf(" AND id = ANY($%d)", argNum)
		args = append(args, filter.IDs)
	}
	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY name, id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		var deletedAt pgtype.Timestamptz
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Email, &deletedAt); err != nil {
			return nil, err
		}
		if deletedAt.Valid {
			c.DeletedAt = &deletedAt.Time
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, errors.New("non-finite numeric")
	}
	if n.Int == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

// InsertContact stores a customer and returns it with its id.
func (r *Repository) InsertContact(ctx context.Context, c Contact) (Contact, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO contacts (company_id, name, email) VALUES ($1, $2, NULLIF($3, '')) RETURNING id`,
		c.CompanyID, c.Name, c.Email).Scan(&c.ID)
	if err != nil {
		return Contact{}, fmt.Errorf("ar: insert contact: %w", err)
	}
	return c, nil
}

// InsertInvoice stores an invoice and returns it with its id.
func (r *Repository) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO invoices (company_id, customer_id, number, status, issue_date, due_date, total, amount_paid)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric) RETURNING id`,
		inv.CompanyID, inv.CustomerID, inv.Number, string(inv.Status), inv.IssueDate, inv.DueDate,
		inv.Total.String(), inv.AmountPaid.String()).Scan(&inv.ID)
	if err != nil {
		return Invoice{}, fmt.Errorf("ar: insert invoice: %w", err)
	}
	return inv, nil
}
