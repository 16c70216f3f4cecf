package reports

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/ar"
)

// Report names used for cache keys, metrics and logs.
const (
	ReportBalanceSheet = "balance_sheet"
	ReportProfitLoss   = "profit_loss"
	ReportAging        = "ar_aging"
)

// Service generates financial statements from a ledger snapshot.
type Service struct {
	ledger LedgerStore
	aging  AgingGenerator
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the report service. aging may be nil when receivables
// are not available; aging requests then fail with QUERY_ERROR.
func NewService(ledger LedgerStore, aging AgingGenerator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, aging: aging, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithCache enables result caching. A nil cache disables it.
func (s *Service) WithCache(cache *Cache) {
	s.cache = cache
}

// snapshot fetches active accounts and counted transactions concurrently.
func (s *Service) snapshot(ctx context.Context, companyID int64, from, to time.Time) (*accounting.Ledger, error) {
	var (
		accounts []accounting.Account
		entries  []accounting.JournalEntry
	)
	active := true
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.ledger.QueryAccounts(gctx, accounting.AccountFilter{CompanyID: companyID, IsActive: &active})
		if err != nil {
			return queryError("failed to load accounts", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		entries, err = s.ledger.QueryTransactions(gctx, accounting.TransactionFilter{
			CompanyID: companyID,
			Statuses:  countedStatuses,
			FromDate:  from,
			ToDate:    to,
		})
		if err != nil {
			return queryError("failed to load transactions", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return accounting.NewLedger(accounts, entries), nil
}

// cached runs build through the cache when one is configured. Cache
// infrastructure failures degrade to a direct build.
func (s *Service) cached(ctx context.Context, report string, parts []string, dest any, build func(context.Context) (any, error)) error {
	direct := func() error {
		value, err := build(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return &Error{Code: CodeCalculation, Message: "encode " + report, Err: err}
		}
		return json.Unmarshal(raw, dest)
	}
	if s.cache == nil {
		return direct()
	}
	key, err := s.cache.BuildKey(ctx, append([]string{report}, parts...)...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.String("report", report), slog.Any("error", err))
		return direct()
	}
	var buildErr *Error
	raw, hit, err := s.cache.Fetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		value, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	})
	if err != nil {
		if errors.As(err, &buildErr) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return queryError(report+" request cancelled", ctxErr)
		}
		s.logger.Warn("report cache fetch failed", slog.String("report", report), slog.Any("error", err))
		return direct()
	}
	if hit {
		recordCacheHit(report)
	} else {
		recordCacheMiss(report)
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates cached reports.
func (s *Service) Bump(ctx context.Context) (int64, error) {
	return s.cache.Bump(ctx)
}

// GenerateAgingReport builds the receivables aging report, mapping failures to
// the report error contract.
func (s *Service) GenerateAgingReport(ctx context.Context, req ar.AgingRequest) (report *ar.AgingReport, err error) {
	started := time.Now()
	defer func() { observeBuild(ReportAging, started, err) }()
	if s.aging == nil {
		return nil, queryError("receivables store not configured", nil)
	}
	if err := req.Normalize(); err != nil {
		return nil, &Error{Code: CodeInvalidInput, Message: err.Error(), Err: err}
	}
	parts := []string{itoa(req.CompanyID), req.AsOf.UTC().Format(time.RFC3339Nano), boolToken(req.IncludeVoidedInvoices), string(req.SortBy), string(req.SortOrder)}
	if req.CustomerID != nil {
		parts = append(parts, "customer", itoa(*req.CustomerID))
	}
	var out ar.AgingReport
	err = s.cached(ctx, ReportAging, parts, &out, func(ctx context.Context) (result any, err error) {
		defer recoverCalculation(ReportAging, &err)
		built, err := s.aging.GenerateAgingReport(ctx, req)
		if err != nil {
			switch {
			case errors.Is(err, ar.ErrInvalidRequest):
				return nil, &Error{Code: CodeInvalidInput, Message: err.Error(), Err: err}
			default:
				return nil, queryError("failed to load receivables", err)
			}
		}
		return built, nil
	})
	if err != nil {
		s.logger.Error("aging report failed", slog.Int64("company_id", req.CompanyID), slog.Any("error", err))
		return nil, err
	}
	return &out, nil
}

// StatementsRequest asks for the standard statement set of one company.
type StatementsRequest struct {
	CompanyID   int64
	AsOf        time.Time
	PeriodStart time.Time
}

// Statements holds each statement or the error that prevented it.
type Statements struct {
	BalanceSheet    *BalanceSheet
	BalanceSheetErr error
	ProfitLoss      *ProfitLossReport
	ProfitLossErr   error
	Aging           *ar.AgingReport
	AgingErr        error
}

// Failed reports whether any statement failed.
func (s Statements) Failed() bool {
	return s.BalanceSheetErr != nil || s.ProfitLossErr != nil || s.AgingErr != nil
}

// GenerateStatements builds the Balance Sheet as of req.AsOf, the P&L from
// req.PeriodStart (start of the as-of year when zero) through req.AsOf and the
// aging report concurrently. One failing statement does not cancel the others.
func (s *Service) GenerateStatements(ctx context.Context, req StatementsRequest) Statements {
	start := req.PeriodStart
	if start.IsZero() {
		start = time.Date(req.AsOf.UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	var out Statements
	var g errgroup.Group
	g.Go(func() error {
		out.BalanceSheet, out.BalanceSheetErr = s.GenerateBalanceSheet(ctx, BalanceSheetRequest{CompanyID: req.CompanyID, AsOf: req.AsOf})
		return nil
	})
	g.Go(func() error {
		out.ProfitLoss, out.ProfitLossErr = s.GenerateProfitLoss(ctx, ProfitLossRequest{
			CompanyID: req.CompanyID,
			Period:    DateRange{Start: start, End: req.AsOf},
		})
		return nil
	})
	g.Go(func() error {
		out.Aging, out.AgingErr = s.GenerateAgingReport(ctx, ar.AgingRequest{CompanyID: req.CompanyID, AsOf: req.AsOf})
		return nil
	})
	_ = g.Wait()
	return out
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func boolToken(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
