package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerbook/ledgerbook/internal/money"
	"github.com/ledgerbook/ledgerbook/internal/platform/db"
)

// Repository persists ledger entities in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounting: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const accountColumns = `id, company_id, COALESCE(number, ''), name, type, COALESCE(subtype, ''), parent_id, is_active,
COALESCE(classification, ''), deleted_at, created_at, updated_at`

// EnsureCompany creates the company row when it does not exist.
func (r *Repository) EnsureCompany(ctx context.Context, id int64, name string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO companies (id, name) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, id, name)
	if err != nil {
		return fmt.Errorf("accounting: ensure company: %w", err)
	}
	return nil
}

// ListCompanyIDs returns every company that owns at least one account.
func (r *Repository) ListCompanyIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT company_id FROM accounts WHERE deleted_at IS NULL ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("accounting: list companies: %w", err)
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

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc   Account
		typ   string
		class string
	)
	if err := row.Scan(&acc.ID, &acc.CompanyID, &acc.Number, &acc.Name, &typ, &acc.Subtype, &acc.ParentID, &acc.IsActive,
		&class, &acc.DeletedAt, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return Account{}, err
	}
	parsed, err := ParseAccountType(typ)
	if err != nil {
		return Account{}, err
	}
	acc.Type = parsed
	acc.Classification = Classification(class)
	return acc, nil
}

// QueryAccounts lists accounts matching filter ordered by id.
func (r *Repository) QueryAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	var (
		where []string
		args  []any
	)
	if filter.CompanyID != 0 {
		args = append(args, filter.CompanyID)
		where = append(where, fmt.Sprintf("company_id = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if !filter.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("accounting: query accounts: %w", err)
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("accounting: scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// QueryTransactions lists journal entries with their lines. Amounts travel as
// text so no precision is lost on the way out of NUMERIC columns.
func (r *Repository) QueryTransactions(ctx context.Context, filter TransactionFilter) ([]JournalEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.CompanyID != 0 {
		args = append(args, filter.CompanyID)
		where = append(where, fmt.Sprintf("je.company_id = $%d", len(args)))
	}
	if !filter.FromDate.IsZero() {
		args = append(args, filter.FromDate)
		where = append(where, fmt.Sprintf("je.date >= $%d", len(args)))
	}
	if !filter.ToDate.IsZero() {
		args = append(args, filter.ToDate)
		where = append(where, fmt.Sprintf("je.date <= $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("je.status = ANY($%d)", len(args)))
	}
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM journal_lines x WHERE x.je_id = je.id AND x.account_id = $%d)", len(args)))
	}
	if !filter.IncludeDeleted {
		where = append(where, "je.deleted_at IS NULL")
	}
	query := `SELECT je.id, je.company_id, je.number, je.date, COALESCE(je.memo, ''), je.source_module, je.source_id, je.status,
je.deleted_at, je.created_at, je.updated_at,
jl.id, jl.account_id, jl.debit::text, jl.credit::text, COALESCE(jl.memo, '')
FROM journal_entries je
JOIN journal_lines jl ON jl.je_id = je.id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY je.date, je.id, jl.id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("accounting: query transactions: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			entry         JournalEntry
			status        string
			line          JournalLine
			debit, credit string
		)
		if err := rows.Scan(&entry.ID, &entry.CompanyID, &entry.Number, &entry.Date, &entry.Memo, &entry.SourceModule, &entry.SourceID,
			&status, &entry.DeletedAt, &entry.CreatedAt, &entry.UpdatedAt,
			&line.ID, &line.AccountID, &debit, &credit, &line.Memo); err != nil {
			return nil, fmt.Errorf("accounting: scan transaction: %w", err)
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
		entry.Status = JournalStatus(status)
		entry.Lines = []JournalLine{line}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	acc, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, in AccountInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (company_id, number, name, type, subtype, parent_id, classification)
VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''))
RETURNING `+accountColumns, in.CompanyID, in.Number, in.Name, string(in.Type), in.Subtype, nullIntPtr(in.ParentID), string(in.Classification))
	return scanAccount(row)
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, date, source_module, source_id, memo, status)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, number, created_at, updated_at`,
		in.CompanyID, in.Date, in.SourceModule, in.SourceID, in.Memo, string(in.Status))
	entry := JournalEntry{
		CompanyID:    in.CompanyID,
		Date:         in.Date,
		SourceModule: in.SourceModule,
		SourceID:     in.SourceID,
		Memo:         in.Memo,
		Status:       in.Status,
	}
	if err := row.Scan(&entry.ID, &entry.Number, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, entryID int64, lines []PostingLineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (je_id, account_id, debit, credit, memo)
VALUES ($1,$2,$3::numeric,$4::numeric,NULLIF($5, ''))`, entryID, line.AccountID, line.Debit.String(), line.Credit.String(), line.Memo); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (module, ref_id, je_id) VALUES ($1,$2,$3)`, module, ref, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_source_links" {
			return ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

func nullIntPtr(val *int64) any {
	if val == nil || *val == 0 {
		return nil
	}
	return *val
}
