package accounting

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process ledger store used by tests and the seeded demo
// mode. It satisfies RepositoryPort and the read side consumed by reports.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts []Account
	entries  []JournalEntry
	sources  map[string]int64
	nextAcc  int64
	nextJrn  int64
	nextLine int64
	now      func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sources: make(map[string]int64), now: time.Now}
}

// AddAccount inserts an account verbatim, assigning an id when zero.
func (m *MemoryStore) AddAccount(acc Account) Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc.ID == 0 {
		m.nextAcc++
		acc.ID = m.nextAcc
	} else if acc.ID > m.nextAcc {
		m.nextAcc = acc.ID
	}
	m.accounts = append(m.accounts, acc)
	return acc
}

// AddEntry inserts a journal entry verbatim, assigning ids when zero.
func (m *MemoryStore) AddEntry(entry JournalEntry) JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID == 0 {
		m.nextJrn++
		entry.ID = m.nextJrn
	} else if entry.ID > m.nextJrn {
		m.nextJrn = entry.ID
	}
	if entry.Number == 0 {
		entry.Number = entry.ID
	}
	lines := make([]JournalLine, len(entry.Lines))
	for i, line := range entry.Lines {
		if line.ID == 0 {
			m.nextLine++
			line.ID = m.nextLine
		}
		line.JournalID = entry.ID
		lines[i] = line
	}
	entry.Lines = lines
	m.entries = append(m.entries, entry)
	return entry
}

// QueryAccounts returns accounts matching filter ordered by id.
func (m *MemoryStore) QueryAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		if filter.Matches(acc) {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListCompanyIDs returns the distinct companies owning accounts, ascending.
func (m *MemoryStore) ListCompanyIDs(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[int64]struct{})
	var ids []int64
	for _, acc := range m.accounts {
		if acc.DeletedAt != nil {
			continue
		}
		if _, ok := seen[acc.CompanyID]; !ok {
			seen[acc.CompanyID] = struct{}{}
			ids = append(ids, acc.CompanyID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// QueryTransactions returns entries matching filter ordered by date then id.
func (m *MemoryStore) QueryTransactions(ctx context.Context, filter TransactionFilter) ([]JournalEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]JournalEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		if filter.Matches(entry) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// WithTx runs fn while holding the write lock. Writes are not rolled back on
// error; callers validate before writing.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, memoryTx{m})
}

type memoryTx struct {
	m *MemoryStore
}

func (tx memoryTx) GetAccount(_ context.Context, id int64) (Account, error) {
	for _, acc := range tx.m.accounts {
		if acc.ID == id && acc.DeletedAt == nil {
			return acc, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (tx memoryTx) InsertAccount(_ context.Context, in AccountInput) (Account, error) {
	tx.m.nextAcc++
	now := tx.m.now()
	acc := Account{
		ID:             tx.m.nextAcc,
		CompanyID:      in.CompanyID,
		Number:         in.Number,
		Name:           in.Name,
		Type:           in.Type,
		Subtype:        in.Subtype,
		ParentID:       in.ParentID,
		IsActive:       true,
		Classification: in.Classification,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tx.m.accounts = append(tx.m.accounts, acc)
	return acc, nil
}

func (tx memoryTx) InsertJournalEntry(_ context.Context, in PostingInput) (JournalEntry, error) {
	if _, ok := tx.m.sources[sourceKey(in.SourceModule, in.SourceID)]; ok {
		return JournalEntry{}, ErrSourceAlreadyLinked
	}
	tx.m.nextJrn++
	now := tx.m.now()
	entry := JournalEntry{
		ID:           tx.m.nextJrn,
		CompanyID:    in.CompanyID,
		Number:       tx.m.nextJrn,
		Date:         in.Date,
		Memo:         in.Memo,
		SourceModule: in.SourceModule,
		SourceID:     in.SourceID,
		Status:       in.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx.m.entries = append(tx.m.entries, entry)
	return entry, nil
}

func (tx memoryTx) InsertJournalLines(_ context.Context, entryID int64, lines []PostingLineInput) error {
	for i := range tx.m.entries {
		if tx.m.entries[i].ID != entryID {
			continue
		}
		for _, line := range lines {
			tx.m.nextLine++
			tx.m.entries[i].Lines = append(tx.m.entries[i].Lines, JournalLine{
				ID:        tx.m.nextLine,
				JournalID: entryID,
				AccountID: line.AccountID,
				Debit:     line.Debit,
				Credit:    line.Credit,
				Memo:      line.Memo,
			})
		}
		return nil
	}
	return ErrJournalNotFound
}

func (tx memoryTx) LinkSource(_ context.Context, module string, ref uuid.UUID, entryID int64) error {
	key := sourceKey(module, ref)
	if _, ok := tx.m.sources[key]; ok {
		return ErrSourceAlreadyLinked
	}
	tx.m.sources[key] = entryID
	return nil
}

func sourceKey(module string, ref uuid.UUID) string {
	return module + "/" + ref.String()
}
