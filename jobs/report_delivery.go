package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ledgerbook/ledgerbook/internal/ar"
	jobmetrics "github.com/ledgerbook/ledgerbook/internal/jobs"
	"github.com/ledgerbook/ledgerbook/internal/reports"
	"github.com/ledgerbook/ledgerbook/internal/reports/export"
)

// ReportGenerator is the report surface used by deliveries.
type ReportGenerator interface {
	GenerateBalanceSheet(ctx context.Context, req reports.BalanceSheetRequest) (*reports.BalanceSheet, error)
	GenerateProfitLoss(ctx context.Context, req reports.ProfitLossRequest) (*reports.ProfitLossReport, error)
	GenerateAgingReport(ctx context.Context, req ar.AgingRequest) (*ar.AgingReport, error)
}

// DeliverJob renders a report to CSV and mails it to the payload recipients.
type DeliverJob struct {
	Reports ReportGenerator
	Mailer  Mailer
	From    string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	printer *message.Printer
	clock   func() time.Time
}

// NewDeliverJob wires dependencies for the delivery handler.
func NewDeliverJob(reportSvc ReportGenerator, mailer Mailer, from string, logger *slog.Logger, metrics *jobmetrics.Metrics) *DeliverJob {
	return &DeliverJob{
		Reports: reportSvc,
		Mailer:  mailer,
		From:    from,
		Logger:  logger,
		Metrics: metrics,
		printer: message.NewPrinter(language.English),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes reports:deliver tasks. Malformed payloads and invalid
// report requests are not retried.
func (j *DeliverJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil || j.Mailer == nil {
		return errors.New("reports deliver: handler not configured")
	}
	var payload DeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("reports deliver: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := payload.validate(); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskReportsDeliver)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	deliveryID := uuid.New()
	logger := j.logger().With(
		slog.String("delivery_id", deliveryID.String()),
		slog.Int64("company_id", payload.CompanyID),
		slog.String("report", payload.Report),
	)

	asOf, err := j.resolveAsOf(payload.AsOf)
	if err != nil {
		return fmt.Errorf("reports deliver: %v: %w", err, asynq.SkipRetry)
	}
	msg, err := j.render(ctx, payload, asOf)
	if err != nil {
		logger.Error("render report", slog.Any("error", err))
		if reports.CodeOf(err) == reports.CodeInvalidInput {
			return fmt.Errorf("reports deliver: %v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	msg.From = j.From
	msg.To = payload.Recipients
	msg.Headers = map[string]string{"X-Ledgerbook-Delivery": deliveryID.String()}

	if err := j.Mailer.Send(ctx, msg); err != nil {
		logger.Error("send report", slog.Any("error", err))
		return fmt.Errorf("reports deliver: send: %w", err)
	}
	j.Metrics.AddReports(TaskReportsDeliver, payload.Report, 1)
	logger.Info("report delivered", slog.Int("recipients", len(payload.Recipients)))
	return nil
}

// resolveAsOf defaults to the last instant of the previous month.
func (j *DeliverJob) resolveAsOf(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) != "" {
		return reports.ParseAsOf(raw)
	}
	now := j.now()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return reports.EndOfDay(firstOfMonth.AddDate(0, 0, -1)), nil
}

func (j *DeliverJob) render(ctx context.Context, payload DeliverPayload, asOf time.Time) (Message, error) {
	var (
		buf     bytes.Buffer
		subject string
		summary []string
	)
	date := asOf.Format("2006-01-02")
	switch payload.Report {
	case reports.ReportBalanceSheet:
		bs, err := j.Reports.GenerateBalanceSheet(ctx, reports.BalanceSheetRequest{CompanyID: payload.CompanyID, AsOf: asOf})
		if err != nil {
			return Message{}, err
		}
		if err := export.BalanceSheetCSV(&buf, bs); err != nil {
			return Message{}, err
		}
		subject = fmt.Sprintf("Balance sheet as of %s", date)
		summary = []string{
			j.printer.Sprintf("Total assets: %.2f", bs.Totals.TotalAssets),
			j.printer.Sprintf("Total liabilities: %.2f", bs.Totals.TotalLiabilities),
			j.printer.Sprintf("Total equity: %.2f", bs.Totals.TotalEquity),
			fmt.Sprintf("Balanced: %s", yesNo(bs.Totals.IsBalanced)),
		}
	case reports.ReportProfitLoss:
		start := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
		pl, err := j.Reports.GenerateProfitLoss(ctx, reports.ProfitLossRequest{
			CompanyID: payload.CompanyID,
			Period:    reports.DateRange{Start: start, End: asOf},
		})
		if err != nil {
			return Message{}, err
		}
		if err := export.ProfitLossCSV(&buf, pl); err != nil {
			return Message{}, err
		}
		subject = fmt.Sprintf("Profit and loss %s to %s", start.Format("2006-01-02"), date)
		summary = []string{
			j.printer.Sprintf("Revenue: %.2f", pl.Revenue.Subtotal),
			j.printer.Sprintf("Gross profit: %.2f (%.1f%%)", pl.GrossProfit.Amount, pl.GrossProfit.PercentOfRevenue),
			j.printer.Sprintf("Net income: %.2f", pl.NetIncome.Amount),
		}
	case reports.ReportAging:
		aging, err := j.Reports.GenerateAgingReport(ctx, ar.AgingRequest{CompanyID: payload.CompanyID, AsOf: asOf})
		if err != nil {
			return Message{}, err
		}
		if err := export.AgingCSV(&buf, aging); err != nil {
			return Message{}, err
		}
		subject = fmt.Sprintf("Receivables aging as of %s", date)
		summary = []string{
			j.printer.Sprintf("Outstanding: %.2f across %d invoices", aging.TotalOutstanding, aging.InvoiceCount),
			j.printer.Sprintf("Overdue: %.2f", aging.TotalOverdue),
		}
	}
	body := fmt.Sprintf("Company %d\n\n%s\n\nThe full report is attached as CSV.\n", payload.CompanyID, strings.Join(summary, "\n"))
	return Message{
		Subject: subject,
		Body:    body,
		Attachments: []Attachment{{
			Filename:    fmt.Sprintf("%s-%d-%s.csv", strings.ReplaceAll(payload.Report, "_", "-"), payload.CompanyID, date),
			ContentType: "text/csv; charset=utf-8",
			Data:        buf.Bytes(),
		}},
	}, nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (j *DeliverJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsDeliver))
	}
	return slog.Default().With(slog.String("job", TaskReportsDeliver))
}

func (j *DeliverJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
