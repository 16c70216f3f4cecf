// Package sqlitestore keeps a ledger and its receivables in a single SQLite
// file for local use by ledgerctl and the MCP server.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/money"
)

//go:embed schema.sql
var schema string

// timeLayout is fixed width so stored instants compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite backed ledger and receivables store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger file at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s", path)
	}
	if strings.Contains(dsn, "?") {
		dsn += "&_pragma=foreign_keys(1)"
	} else {
		dsn += "?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	// one connection: SQLite has a single writer and :memory: is per connection
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Parse(time.RFC3339Nano, raw)
	}
	return t, nil
}

func parseNullTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// EnsureCompany creates the company row when it does not exist.
func (s *Store) EnsureCompany(ctx context.Context, id int64, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO companies (id, name) VALUES (?, ?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name`, id, name)
	if err != nil {
		return fmt.Errorf("sqlitestore: ensure company: %w", err)
	}
	return nil
}

// ListCompanyIDs returns every company that owns at least one account.
func (s *Store) ListCompanyIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT company_id FROM accounts WHERE deleted_at IS NULL ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list companies: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const accountColumns = `id, company_id, number, name, type, subtype, parent_id, is_active, classification, deleted_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (accounting.Account, error) {
	var (
		acc                  accounting.Account
		typ, class           string
		parent               sql.NullInt64
		active               int
		deleted              sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&acc.ID, &acc.CompanyID, &acc.Number, &acc.Name, &typ, &acc.Subtype, &parent, &active,
		&class, &deleted, &createdAt, &updatedAt); err != nil {
		return accounting.Account{}, err
	}
	parsed, err := accounting.ParseAccountType(typ)
	if err != nil {
		return accounting.Account{}, err
	}
	acc.Type = parsed
	acc.Classification = accounting.Classification(class)
	acc.IsActive = active != 0
	if parent.Valid {
		id := parent.Int64
		acc.ParentID = &id
	}
	if acc.DeletedAt, err = parseNullTime(deleted); err != nil {
		return accounting.Account{}, err
	}
	if acc.CreatedAt, err = parseTime(createdAt); err != nil {
		return accounting.Account{}, err
	}
	if acc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return accounting.Account{}, err
	}
	return acc, nil
}

// QueryAccounts lists accounts matching filter ordered by id.
func (s *Store) QueryAccounts(ctx context.Context, filter accounting.AccountFilter) ([]accounting.Account, error) {
	var (
		where []string
		args  []any
	)
	if filter.CompanyID != 0 {
		where = append(where, "company_id = ?")
		args = append(args, filter.CompanyID)
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, *filter.IsActive)
	}
	if !filter.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query accounts: %w", err)
	}
	defer rows.Close()
	var accounts []accounting.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// QueryTransactions lists journal entries with their lines ordered by date.
func (s *Store) QueryTransactions(ctx context.Context, filter accounting.TransactionFilter) ([]accounting.JournalEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.CompanyID != 0 {
		where = append(where, "je.company_id = ?")
		args = append(args, filter.CompanyID)
	}
	if !filter.FromDate.IsZero() {
		where = append(where, "je.date >= ?")
		args = append(args, formatTime(filter.FromDate))
	}
	if !filter.ToDate.IsZero() {
		where = append(where, "je.date <= ?")
		args = append(args, formatTime(filter.ToDate))
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "je.status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.AccountID != nil {
		where = append(where, "EXISTS (SELECT 1 FROM journal_lines x WHERE x.je_id = je.id AND x.account_id = ?)")
		args = append(args, *filter.AccountID)
	}
	if !filter.IncludeDeleted {
		where = append(where, "je.deleted_at IS NULL")
	}
	query := `SELECT je.id, je.company_id, je.number, je.date, je.memo, je.source_module, je.source_id, je.status,
je.deleted_at, je.created_at, je.updated_at,
jl.id, jl.account_id, jl.debit, jl.credit, jl.memo
FROM journal_entries je
JOIN journal_lines jl ON jl.je_id = je.id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY je.date, je.id, jl.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query transactions: %w", err)
	}
	defer rows.Close()

	var entries []accounting.JournalEntry
	for rows.Next() {
		var (
			entry                  accounting.JournalEntry
			line                   accounting.JournalLine
			date, sourceID, status string
			deleted                sql.NullString
			createdAt, updatedAt   string
			debit, credit          string
		)
		if err := rows.Scan(&entry.ID, &entry.CompanyID, &entry.Number, &date, &entry.Memo, &entry.SourceModule, &sourceID,
			&status, &deleted, &createdAt, &updatedAt,
			&line.ID, &line.AccountID, &debit, &credit, &line.Memo); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan transaction: %w", err)
		}
		if line.Debit, err = money.Parse(debit); err != nil {
			return nil, err
		}
		if line.Credit, err = money.Parse(credit); err != nil {
			return nil, err
		}
		line.JournalID = entry.ID
		if n := len(entries); n > 0 && entries[n-1].ID == entry.ID {
			entries[n-1].Lines = append(entries[n-1].Lines, line)
			continue
		}
		if entry.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		if entry.SourceID, err = uuid.Parse(sourceID); err != nil {
			return nil, fmt.Errorf("sqlitestore: entry %d source id: %w", entry.ID, err)
		}
		if entry.DeletedAt, err = parseNullTime(deleted); err != nil {
			return nil, err
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		entry.Status = accounting.JournalStatus(status)
		entry.Lines = []accounting.JournalLine{line}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx, &txRepository{tx: tx, now: s.now})
}

type txRepository struct {
	tx  *sql.Tx
	now func() time.Time
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (accounting.Account, error) {
	acc, err := scanAccount(r.tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ? AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounting.Account{}, accounting.ErrAccountNotFound
		}
		return accounting.Account{}, err
	}
	return acc, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, in accounting.AccountInput) (accounting.Account, error) {
	now := formatTime(r.now())
	var parent any
	if in.ParentID != nil && *in.ParentID != 0 {
		parent = *in.ParentID
	}
	res, err := r.tx.ExecContext(ctx, `INSERT INTO accounts (company_id, number, name, type, subtype, parent_id, classification, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, in.CompanyID, in.Number, in.Name, string(in.Type), in.Subtype, parent, string(in.Classification), now, now)
	if err != nil {
		return accounting.Account{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return accounting.Account{}, err
	}
	return scanAccount(r.tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, in accounting.PostingInput) (accounting.JournalEntry, error) {
	now := r.now().UTC()
	var number int64
	if err := r.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM journal_entries WHERE company_id = ?`, in.CompanyID).Scan(&number); err != nil {
		return accounting.JournalEntry{}, err
	}
	res, err := r.tx.ExecContext(ctx, `INSERT INTO journal_entries (company_id, number, date, memo, source_module, source_id, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, in.CompanyID, number, formatTime(in.Date), in.Memo, in.SourceModule, in.SourceID.String(),
		string(in.Status), formatTime(now), formatTime(now))
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	return accounting.JournalEntry{
		ID:           id,
		CompanyID:    in.CompanyID,
		Number:       number,
		Date:         in.Date,
		Memo:         in.Memo,
		SourceModule: in.SourceModule,
		SourceID:     in.SourceID,
		Status:       in.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, entryID int64, lines []accounting.PostingLineInput) error {
	for _, line := range lines {
		if _, err := r.tx.ExecContext(ctx, `INSERT INTO journal_lines (je_id, account_id, debit, credit, memo) VALUES (?, ?, ?, ?, ?)`,
			entryID, line.AccountID, line.Debit.String(), line.Credit.String(), line.Memo); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.ExecContext(ctx, `INSERT INTO source_links (module, ref_id, je_id) VALUES (?, ?, ?)`, module, ref.String(), entryID)
	if err != nil {
		var serr *sqlite.Error
		if errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return accounting.ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

// InsertContact stores a customer and returns it with its id.
func (s *Store) InsertContact(ctx context.Context, c ar.Contact) (ar.Contact, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO contacts (company_id, name, email) VALUES (?, ?, ?)`, c.CompanyID, c.Name, c.Email)
	if err != nil {
		return ar.Contact{}, fmt.Errorf("sqlitestore: insert contact: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return ar.Contact{}, err
	}
	return c, nil
}

// InsertInvoice stores an invoice and returns it with its id.
func (s *Store) InsertInvoice(ctx context.Context, inv ar.Invoice) (ar.Invoice, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO invoices (company_id, customer_id, number, status, issue_date, due_date, total, amount_paid)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, inv.CompanyID, inv.CustomerID, inv.Number, string(inv.Status),
		formatTime(inv.IssueDate), formatTime(inv.DueDate), inv.Total.String(), inv.AmountPaid.String())
	if err != nil {
		return ar.Invoice{}, fmt.Errorf("sqlitestore: insert invoice: %w", err)
	}
	if inv.ID, err = res.LastInsertId(); err != nil {
		return ar.Invoice{}, err
	}
	return inv, nil
}

// QueryInvoices lists invoices matching filter ordered by due date.
func (s *Store) QueryInvoices(ctx context.Context, filter ar.InvoiceFilter) ([]ar.Invoice, error) {
	query := `SELECT id, company_id, number, customer_id, issue_date, due_date, total, amount_paid, status, deleted_at
FROM invoices WHERE 1=1`
	var args []any
	if filter.CompanyID != 0 {
		query += " AND company_id = ?"
		args = append(args, filter.CompanyID)
	}
	if filter.CustomerID != nil {
		query += " AND customer_id = ?"
		args = append(args, *filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		query += " AND status IN (" + placeholders(len(filter.Statuses)) + ")"
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY due_date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query invoices: %w", err)
	}
	defer rows.Close()
	var invoices []ar.Invoice
	for rows.Next() {
		var (
			inv                 ar.Invoice
			issue, due          string
			total, paid, status string
			deleted             sql.NullString
		)
		if err := rows.Scan(&inv.ID, &inv.CompanyID, &inv.Number, &inv.CustomerID, &issue, &due, &total, &paid, &status, &deleted); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan invoice: %w", err)
		}
		inv.Status = ar.InvoiceStatus(status)
		if inv.IssueDate, err = parseTime(issue); err != nil {
			return nil, err
		}
		if inv.DueDate, err = parseTime(due); err != nil {
			return nil, err
		}
		if inv.Total, err = money.Parse(total); err != nil {
			return nil, fmt.Errorf("sqlitestore: invoice %d total: %w", inv.ID, err)
		}
		if inv.AmountPaid, err = money.Parse(paid); err != nil {
			return nil, fmt.Errorf("sqlitestore: invoice %d amount paid: %w", inv.ID, err)
		}
		if inv.DeletedAt, err = parseNullTime(deleted); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// QueryContacts lists contacts matching filter.
func (s *Store) QueryContacts(ctx context.Context, filter ar.ContactFilter) ([]ar.Contact, error) {
	query := `SELECT id, company_id, name, email, deleted_at FROM contacts WHERE 1=1`
	var args []any
	if filter.CompanyID != 0 {
		query += " AND company_id = ?"
		args = append(args, filter.CompanyID)
	}
	if len(filter.IDs) > 0 {
		query += " AND id IN (" + placeholders(len(filter.IDs)) + ")"
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY name, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query contacts: %w", err)
	}
	defer rows.Close()
	var contacts []ar.Contact
	for rows.Next() {
		var (
			c       ar.Contact
			deleted sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Email, &deleted); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan contact: %w", err)
		}
		if c.DeletedAt, err = parseNullTime(deleted); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
