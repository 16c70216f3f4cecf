package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the writes available inside a transaction.
type TxRepository interface {
	GetAccount(ctx context.Context, id int64) (Account, error)
	InsertAccount(ctx context.Context, in AccountInput) (Account, error)
	InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error)
	InsertJournalLines(ctx context.Context, entryID int64, lines []PostingLineInput) error
	LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error
}

// AccountInput describes a chart of accounts node to create.
type AccountInput struct {
	CompanyID      int64
	Number         string
	Name           string
	Type           AccountType
	Subtype        string
	ParentID       *int64
	Classification Classification
}

var (
	// ErrParentTypeMismatch indicates a sub-account whose type differs from its parent.
	ErrParentTypeMismatch = errors.New("accounting: sub-account type must match parent type")
	// ErrParentCompanyMismatch indicates a sub-account under another company's account.
	ErrParentCompanyMismatch = errors.New("accounting: parent belongs to another company")
)

// Service maintains the chart of accounts and posts journal entries. Reports
// never go through it; they read the store directly.
type Service struct {
	repo     RepositoryPort
	logger   *slog.Logger
	now      func() time.Time
	onCommit []CommitHook
}

// CommitHook runs after an account or journal write has committed.
type CommitHook func(ctx context.Context) error

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// OnCommit registers fn to run after every committed write. Hook failures are
// logged and never undo the write.
func (s *Service) OnCommit(fn CommitHook) *Service {
	if fn != nil {
		s.onCommit = append(s.onCommit, fn)
	}
	return s
}

func (s *Service) committed(ctx context.Context, what string) {
	for _, fn := range s.onCommit {
		if err := fn(ctx); err != nil {
			s.logger.Warn("ledger commit hook failed", slog.String("write", what), slog.Any("error", err))
		}
	}
}

// CreateAccount validates and stores an account. Sub-accounts must share
// their parent's type and company.
func (s *Service) CreateAccount(ctx context.Context, in AccountInput) (Account, error) {
	if in.CompanyID == 0 {
		return Account{}, errors.New("accounting: company required")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Account{}, errors.New("accounting: account name required")
	}
	if _, err := ParseAccountType(string(in.Type)); err != nil {
		return Account{}, err
	}
	switch in.Classification {
	case "", ClassificationCurrent, ClassificationLongTerm:
	default:
		return Account{}, fmt.Errorf("accounting: invalid classification %q", in.Classification)
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if in.ParentID != nil && *in.ParentID != 0 {
			parent, err := tx.GetAccount(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			if parent.CompanyID != in.CompanyID {
				return ErrParentCompanyMismatch
			}
			if parent.Type != in.Type {
				return ErrParentTypeMismatch
			}
		}
		acc, err := tx.InsertAccount(ctx, in)
		if err != nil {
			return err
		}
		created = acc
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.committed(ctx, "account")
	s.logger.Debug("account created", slog.Int64("account_id", created.ID), slog.String("type", string(created.Type)))
	return created, nil
}

// PostJournal validates and persists a new journal entry. Status defaults to
// POSTED.
func (s *Service) PostJournal(ctx context.Context, input PostingInput) (JournalEntry, error) {
	if input.SourceID == uuid.Nil {
		input.SourceID = uuid.New()
	}
	if input.Status == "" {
		input.Status = JournalStatusPosted
	}
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for idx, line := range input.Lines {
			acc, err := tx.GetAccount(ctx, line.AccountID)
			if err != nil {
				return fmt.Errorf("accounting: line %d: %w", idx, err)
			}
			if acc.CompanyID != input.CompanyID {
				return fmt.Errorf("accounting: line %d: %w", idx, ErrAccountNotFound)
			}
		}
		inserted, err := tx.InsertJournalEntry(ctx, input)
		if err != nil {
			return err
		}
		if err := tx.InsertJournalLines(ctx, inserted.ID, input.Lines); err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, input.SourceModule, input.SourceID, inserted.ID); err != nil {
			return err
		}
		inserted.Lines = toJournalLines(inserted.ID, input.Lines)
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.committed(ctx, "journal")
	s.logger.Debug("journal posted",
		slog.Int64("journal_id", entry.ID),
		slog.Int64("number", entry.Number),
		slog.String("source_module", input.SourceModule),
		slog.String("source_id", input.SourceID.String()),
	)
	return entry, nil
}

func toJournalLines(entryID int64, lines []PostingLineInput) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			JournalID: entryID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		})
	}
	return out
}
