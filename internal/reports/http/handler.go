package reporthttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/platform/httpx"
	"github.com/ledgerbook/ledgerbook/internal/reports"
	"github.com/ledgerbook/ledgerbook/internal/reports/export"
)

// ReportService is the report contract used by the handler.
type ReportService interface {
	GenerateBalanceSheet(ctx context.Context, req reports.BalanceSheetRequest) (*reports.BalanceSheet, error)
	GenerateProfitLoss(ctx context.Context, req reports.ProfitLossRequest) (*reports.ProfitLossReport, error)
	GenerateAgingReport(ctx context.Context, req ar.AgingRequest) (*ar.AgingReport, error)
	Bump(ctx context.Context) (int64, error)
}

// Handler serves report endpoints as JSON or CSV.
type Handler struct {
	logger    *slog.Logger
	service   ReportService
	validator *validator.Validate
}

// NewHandler constructs the report HTTP handler.
func NewHandler(logger *slog.Logger, service ReportService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

type balanceSheetQuery struct {
	CompanyID   int64  `validate:"required,gt=0"`
	AsOf        string `validate:"required"`
	CompareAsOf string
	IncludeZero bool
	Format      string `validate:"omitempty,oneof=json csv"`
}

type profitLossQuery struct {
	CompanyID    int64  `validate:"required,gt=0"`
	Start        string `validate:"required"`
	End          string `validate:"required"`
	CompareStart string `validate:"required_with=CompareEnd"`
	CompareEnd   string `validate:"required_with=CompareStart"`
	Method       string `validate:"omitempty,oneof=accrual cash"`
	IncludeZero  bool
	Education    bool
	Format       string `validate:"omitempty,oneof=json csv"`
}

type agingQuery struct {
	CompanyID     int64  `validate:"required,gt=0"`
	AsOf          string `validate:"required"`
	CustomerID    int64  `validate:"gte=0"`
	IncludeVoided bool
	SortBy        string `validate:"omitempty,oneof=name total oldest"`
	SortOrder     string `validate:"omitempty,oneof=asc desc"`
	Format        string `validate:"omitempty,oneof=json csv"`
}

func (h *Handler) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	form := balanceSheetQuery{
		AsOf:        q.Get("as_of"),
		CompareAsOf: q.Get("compare_as_of"),
		IncludeZero: parseBool(q.Get("include_zero")),
		Format:      strings.ToLower(q.Get("format")),
	}
	errs := make(map[string]string)
	form.CompanyID = parseID(q.Get("company_id"), "company_id", errs)
	h.validate(form, errs)

	var req reports.BalanceSheetRequest
	if len(errs) == 0 {
		req = reports.BalanceSheetRequest{CompanyID: form.CompanyID, IncludeZeroBalances: form.IncludeZero}
		req.AsOf = parseDate(form.AsOf, "as_of", reports.ParseAsOf, errs)
		if form.CompareAsOf != "" {
			cmp := parseDate(form.CompareAsOf, "compare_as_of", reports.ParseAsOf, errs)
			req.CompareAsOf = &cmp
		}
	}
	if len(errs) > 0 {
		h.respondInvalid(w, errs)
		return
	}

	report, err := h.service.GenerateBalanceSheet(r.Context(), req)
	if err != nil {
		h.respondReportError(w, err)
		return
	}
	if form.Format == "csv" {
		h.respondCSV(w, fmt.Sprintf("balance-sheet-%d-%s.csv", req.CompanyID, req.AsOf.UTC().Format("2006-01-02")), func(out io.Writer) error {
			return export.BalanceSheetCSV(out, report)
		})
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleProfitLoss(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	form := profitLossQuery{
		Start:        q.Get("start"),
		End:          q.Get("end"),
		CompareStart: q.Get("compare_start"),
		CompareEnd:   q.Get("compare_end"),
		Method:       strings.ToLower(q.Get("method")),
		IncludeZero:  parseBool(q.Get("include_zero")),
		Education:    parseBool(q.Get("education")),
		Format:       strings.ToLower(q.Get("format")),
	}
	errs := make(map[string]string)
	form.CompanyID = parseID(q.Get("company_id"), "company_id", errs)
	h.validate(form, errs)

	var req reports.ProfitLossRequest
	if len(errs) == 0 {
		req = reports.ProfitLossRequest{
			CompanyID:              form.CompanyID,
			AccountingMethod:       reports.AccountingMethod(form.Method),
			IncludeZeroBalances:    form.IncludeZero,
			ShowEducationalContent: form.Education,
			Period: reports.DateRange{
				Start: parseDate(form.Start, "start", reports.ParseStart, errs),
				End:   parseDate(form.End, "end", reports.ParseAsOf, errs),
			},
		}
		if form.CompareStart != "" {
			req.ComparisonPeriod = &reports.DateRange{
				Start: parseDate(form.CompareStart, "compare_start", reports.ParseStart, errs),
				End:   parseDate(form.CompareEnd, "compare_end", reports.ParseAsOf, errs),
			}
		}
	}
	if len(errs) > 0 {
		h.respondInvalid(w, errs)
		return
	}

	report, err := h.service.GenerateProfitLoss(r.Context(), req)
	if err != nil {
		h.respondReportError(w, err)
		return
	}
	if form.Format == "csv" {
		name := fmt.Sprintf("profit-loss-%d-%s-%s.csv", req.CompanyID,
			req.Period.Start.UTC().Format("2006-01-02"), req.Period.End.UTC().Format("2006-01-02"))
		h.respondCSV(w, name, func(out io.Writer) error {
			return export.ProfitLossCSV(out, report)
		})
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleAging(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	form := agingQuery{
		AsOf:          q.Get("as_of"),
		IncludeVoided: parseBool(q.Get("include_voided")),
		SortBy:        strings.ToLower(q.Get("sort_by")),
		SortOrder:     strings.ToLower(q.Get("sort_order")),
		Format:        strings.ToLower(q.Get("format")),
	}
	errs := make(map[string]string)
	form.CompanyID = parseID(q.Get("company_id"), "company_id", errs)
	if raw := q.Get("customer_id"); raw != "" {
		form.CustomerID = parseID(raw, "customer_id", errs)
	}
	h.validate(form, errs)

	var req ar.AgingRequest
	if len(errs) == 0 {
		req = ar.AgingRequest{
			CompanyID:             form.CompanyID,
			IncludeVoidedInvoices: form.IncludeVoided,
			SortBy:                ar.SortField(form.SortBy),
			SortOrder:             ar.SortOrder(form.SortOrder),
		}
		req.AsOf = parseDate(form.AsOf, "as_of", reports.ParseAsOf, errs)
		if form.CustomerID > 0 {
			id := form.CustomerID
			req.CustomerID = &id
		}
	}
	if len(errs) > 0 {
		h.respondInvalid(w, errs)
		return
	}

	report, err := h.service.GenerateAgingReport(r.Context(), req)
	if err != nil {
		h.respondReportError(w, err)
		return
	}
	if form.Format == "csv" {
		h.respondCSV(w, fmt.Sprintf("ar-aging-%d-%s.csv", req.CompanyID, req.AsOf.UTC().Format("2006-01-02")), func(out io.Writer) error {
			return export.AgingCSV(out, report)
		})
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleBump(w http.ResponseWriter, r *http.Request) {
	version, err := h.service.Bump(r.Context())
	if err != nil {
		h.logger.Error("bump report cache", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnavailable, err), "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"version": version})
}

// respondCSV renders into a buffer first so a failed export can still answer
// with a problem response.
func (h *Handler) respondCSV(w http.ResponseWriter, filename string, write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		h.logger.Error("render report csv", slog.String("file", filename), slog.Any("error", err))
		httpx.RespondError(w, err, string(reports.CodeCalculation))
		return
	}
	if err := httpx.Attachment(w, "text/csv; charset=utf-8", filename, &buf); err != nil {
		h.logger.Warn("write report csv", slog.String("file", filename), slog.Any("error", err))
	}
}

func (h *Handler) validate(form any, errs map[string]string) {
	if len(errs) > 0 {
		return
	}
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			errs["general"] = err.Error()
			return
		}
		for _, fieldErr := range fieldErrs {
			errs[fieldErr.Field()] = fieldErr.Tag()
		}
	}
}

func (h *Handler) respondInvalid(w http.ResponseWriter, errs map[string]string) {
	parts := make([]string, 0, len(errs))
	for field, msg := range errs {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(parts, "; ")), string(reports.CodeInvalidInput))
}

func (h *Handler) respondReportError(w http.ResponseWriter, err error) {
	code := reports.CodeOf(err)
	switch code {
	case reports.CodeInvalidInput:
		err = fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	case reports.CodeQuery:
		err = fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", httpx.ErrUnavailable, err)
		}
	}
	httpx.RespondError(w, err, string(code))
}

func parseID(raw, field string, errs map[string]string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		errs[field] = "not a number"
		return 0
	}
	return id
}

func parseDate(raw, field string, parse func(string) (time.Time, error), errs map[string]string) time.Time {
	t, err := parse(raw)
	if err != nil {
		errs[field] = "expected YYYY-MM-DD or RFC 3339"
		return time.Time{}
	}
	return t
}

func parseBool(raw string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return v
}
