package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ledgerbook/ledgerbook/internal/jobs"
	"github.com/ledgerbook/ledgerbook/internal/reports"
)

// StatementGenerator produces the standard statement set for one company.
type StatementGenerator interface {
	GenerateStatements(ctx context.Context, req reports.StatementsRequest) reports.Statements
}

// CompanyLister enumerates companies with a ledger.
type CompanyLister interface {
	ListCompanyIDs(ctx context.Context) ([]int64, error)
}

// WarmupJob regenerates every company's statements so the report cache is
// populated before users ask for them.
type WarmupJob struct {
	Reports   StatementGenerator
	Companies CompanyLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewWarmupJob wires dependencies for the warm-up handler.
func NewWarmupJob(reportSvc StatementGenerator, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmupJob {
	return &WarmupJob{
		Reports:   reportSvc,
		Companies: companies,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes reports:warmup tasks. A company whose statements fail is
// logged and skipped; the run fails only when every company failed.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("reports warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.Metrics.Track(TaskReportsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger := j.logger()

	companies := payload.CompanyIDs
	if len(companies) == 0 {
		if j.Companies == nil {
			return errors.New("reports warmup: company lister not configured")
		}
		ids, err := j.Companies.ListCompanyIDs(ctx)
		if err != nil {
			logger.Error("list companies", slog.Any("error", err))
			return err
		}
		companies = ids
	}
	if len(companies) == 0 {
		logger.Info("no companies to warm")
		return nil
	}

	started := j.now()
	asOf := reports.EndOfDay(started)
	warmed, failed := 0, 0
	for _, companyID := range companies {
		scopeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		out := j.Reports.GenerateStatements(scopeCtx, reports.StatementsRequest{CompanyID: companyID, AsOf: asOf})
		cancel()
		if out.Failed() {
			failed++
			logger.Warn("warm company",
				slog.Int64("company_id", companyID),
				slog.Any("balance_sheet_error", out.BalanceSheetErr),
				slog.Any("profit_loss_error", out.ProfitLossErr),
				slog.Any("aging_error", out.AgingErr),
			)
			continue
		}
		warmed++
	}
	j.Metrics.AddReports(TaskReportsWarmup, "statements", warmed)
	logger.Info("completed reports warmup",
		slog.Int("companies", warmed),
		slog.Int("failed", failed),
		slog.Duration("duration", j.now().Sub(started)),
	)
	if warmed == 0 {
		return fmt.Errorf("reports warmup: all %d companies failed", failed)
	}
	return nil
}

func (j *WarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}

func (j *WarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
