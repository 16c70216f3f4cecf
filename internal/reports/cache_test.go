package reports

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/money"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheVersionAndBump(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "balance_sheet", "1")
	require.NoError(t, err)
	require.Equal(t, "reports:balance_sheet:1:1", key)

	ver, err := cache.Bump(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), ver)

	key, err = cache.BuildKey(ctx, "balance_sheet", "1")
	require.NoError(t, err)
	require.Equal(t, "reports:balance_sheet:1:2", key)
}

func TestCacheFetchCollapsesConcurrentMisses(t *testing.T) {
	cache, mr := newTestCache(t)
	var calls int32
	release := make(chan struct{})
	loader := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte(`{"ok":true}`), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, _, err := cache.Fetch(context.Background(), "reports:k:1", loader)
			assert.NoError(t, err)
			assert.JSONEq(t, `{"ok":true}`, string(raw))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.True(t, mr.Exists("reports:k:1"))

	raw, hit, err := cache.Fetch(context.Background(), "reports:k:1", loader)
	require.NoError(t, err)
	require.True(t, hit)
	require.JSONEq(t, `{"ok":true}`, string(raw))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCacheFetchSurvivesCancelledWaiter(t *testing.T) {
	cache, mr := newTestCache(t)
	started := make(chan struct{})
	release := make(chan struct{})
	loader := func(ctx context.Context) ([]byte, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte(`{"ok":true}`), nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, _, err := cache.Fetch(ctxA, "reports:k:1", loader)
		errA <- err
	}()
	<-started

	type result struct {
		raw []byte
		err error
	}
	resB := make(chan result, 1)
	go func() {
		raw, _, err := cache.Fetch(context.Background(), "reports:k:1", loader)
		resB <- result{raw: raw, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	err := <-errA
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, CodeQuery, rerr.Code)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	require.JSONEq(t, `{"ok":true}`, string(b.raw))
	require.True(t, mr.Exists("reports:k:1"))
}

func TestCachedCancelledRequestReturnsReportError(t *testing.T) {
	f := newFixture()
	f.account("cash", "1000", "Cash", accounting.AccountTypeAsset, "")
	f.account("equity", "3000", "Capital", accounting.AccountTypeEquity, "")
	f.post(at(2024, 1, 1), accounting.JournalStatusPosted, "cash", "equity", "100")
	cache, _ := newTestCache(t)
	svc := NewService(f.store, nil, nil)
	svc.WithCache(cache)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.GenerateBalanceSheet(ctx, BalanceSheetRequest{CompanyID: company, AsOf: farFuture})
	require.Error(t, err)
	require.Equal(t, CodeQuery, CodeOf(err))
}

func TestCachedBalanceSheetInvalidatedByBump(t *testing.T) {
	f := newFixture()
	f.account("cash", "1000", "Cash", accounting.AccountTypeAsset, "")
	f.account("equity", "3000", "Capital", accounting.AccountTypeEquity, "")
	f.post(at(2024, 1, 1), accounting.JournalStatusPosted, "cash", "equity", "100")

	cache, _ := newTestCache(t)
	svc := NewService(f.store, nil, nil)
	svc.WithCache(cache)
	req := BalanceSheetRequest{CompanyID: company, AsOf: farFuture}
	ctx := context.Background()

	bs, err := svc.GenerateBalanceSheet(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 100.0, bs.Totals.TotalAssets)

	f.post(at(2024, 1, 2), accounting.JournalStatusPosted, "cash", "equity", "50")
	bs, err = svc.GenerateBalanceSheet(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 100.0, bs.Totals.TotalAssets)

	_, err = svc.Bump(ctx)
	require.NoError(t, err)
	bs, err = svc.GenerateBalanceSheet(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 150.0, bs.Totals.TotalAssets)
}

func TestLedgerWritesExpireCachedReports(t *testing.T) {
	f := newFixture()
	cash := f.account("cash", "1000", "Cash", accounting.AccountTypeAsset, "")
	equity := f.account("equity", "3000", "Capital", accounting.AccountTypeEquity, "")
	f.post(at(2024, 1, 1), accounting.JournalStatusPosted, "cash", "equity", "100")

	cache, _ := newTestCache(t)
	svc := NewService(f.store, nil, nil)
	svc.WithCache(cache)
	ledger := accounting.NewService(f.store, nil).OnCommit(cache.Invalidate)
	req := BalanceSheetRequest{CompanyID: company, AsOf: farFuture}
	ctx := context.Background()

	bs, err := svc.GenerateBalanceSheet(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 100.0, bs.Totals.TotalAssets)

	_, err = ledger.PostJournal(ctx, accounting.PostingInput{
		CompanyID:    company,
		Date:         at(2024, 1, 5),
		SourceModule: "manual",
		Lines: []accounting.PostingLineInput{
			{AccountID: cash, Debit: money.MustParse("40")},
			{AccountID: equity, Credit: money.MustParse("40")},
		},
	})
	require.NoError(t, err)

	bs, err = svc.GenerateBalanceSheet(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 140.0, bs.Totals.TotalAssets)
}

func TestCacheOutageFallsBackToDirectBuild(t *testing.T) {
	f := newFixture()
	f.account("cash", "1000", "Cash", accounting.AccountTypeAsset, "")
	f.account("equity", "3000", "Capital", accounting.AccountTypeEquity, "")
	f.post(at(2024, 1, 1), accounting.JournalStatusPosted, "cash", "equity", "75")

	cache, mr := newTestCache(t)
	mr.Close()
	svc := NewService(f.store, nil, nil)
	svc.WithCache(cache)

	bs, err := svc.GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: farFuture})
	require.NoError(t, err)
	require.Equal(t, 75.0, bs.Totals.TotalAssets)
}

func TestCachedErrorsAreNotStored(t *testing.T) {
	cache, mr := newTestCache(t)
	svc := NewService(brokenLedger{}, nil, nil)
	svc.WithCache(cache)

	_, err := svc.GenerateBalanceSheet(context.Background(), BalanceSheetRequest{CompanyID: company, AsOf: farFuture})
	require.Equal(t, CodeQuery, CodeOf(err))
	for _, key := range mr.Keys() {
		require.Equal(t, cacheVersionKey, key)
	}
}
