// Package mcptools exposes the financial reports as MCP tools.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/reports"
)

// ReportService is the report surface the tools call.
type ReportService interface {
	GenerateBalanceSheet(ctx context.Context, req reports.BalanceSheetRequest) (*reports.BalanceSheet, error)
	GenerateProfitLoss(ctx context.Context, req reports.ProfitLossRequest) (*reports.ProfitLossReport, error)
	GenerateAgingReport(ctx context.Context, req ar.AgingRequest) (*ar.AgingReport, error)
}

// CompanyLister lists the companies present in the ledger.
type CompanyLister interface {
	ListCompanyIDs(ctx context.Context) ([]int64, error)
}

// RegisterTools adds every report tool to the server.
func RegisterTools(s *server.MCPServer, svc ReportService, companies CompanyLister) {
	t := &toolset{svc: svc, companies: companies, now: time.Now}
	s.AddTool(listCompaniesTool, t.listCompanies)
	s.AddTool(balanceSheetTool, t.balanceSheet)
	s.AddTool(profitLossTool, t.profitLoss)
	s.AddTool(agingTool, t.aging)
}

type toolset struct {
	svc       ReportService
	companies CompanyLister
	now       func() time.Time
}

var companyParam = mcp.WithNumber("company_id",
	mcp.Required(),
	mcp.Description("Company id, see list_companies"),
)

var (
	listCompaniesTool = mcp.NewTool("list_companies",
		mcp.WithDescription("List the ids of companies that have a chart of accounts."),
	)
	balanceSheetTool = mcp.NewTool("balance_sheet",
		mcp.WithDescription("Balance sheet as of a date: assets, liabilities and equity by account with current and long-term subtotals. Net income since inception is folded into equity."),
		companyParam,
		mcp.WithString("as_of", mcp.Description("As-of date (YYYY-MM-DD or RFC 3339). Defaults to today.")),
		mcp.WithString("compare_as_of", mcp.Description("Optional second as-of date for comparison columns")),
		mcp.WithBoolean("include_zero_balances", mcp.Description("Show accounts with no balance")),
	)
	profitLossTool = mcp.NewTool("profit_loss",
		mcp.WithDescription("Profit and loss for a period: revenue, cost of goods sold, operating expenses, other income and expenses, with gross, operating and net income."),
		companyParam,
		mcp.WithString("start_date", mcp.Description("Period start (YYYY-MM-DD). Defaults to January 1 of the current year.")),
		mcp.WithString("end_date", mcp.Description("Period end (YYYY-MM-DD). Defaults to today.")),
		mcp.WithString("compare_start_date", mcp.Description("Comparison period start")),
		mcp.WithString("compare_end_date", mcp.Description("Comparison period end")),
		mcp.WithBoolean("include_zero_balances", mcp.Description("Show accounts with no activity")),
		mcp.WithString("accounting_method", mcp.Description("Basis recorded on the report. Defaults to accrual."), mcp.Enum("accrual", "cash")),
		mcp.WithBoolean("explain", mcp.Description("Add a short explanation of each figure")),
	)
	agingTool = mcp.NewTool("ar_aging",
		mcp.WithDescription("Accounts receivable aging: open invoices by customer in current, 1-30, 31-60, 61-90 and 90+ day buckets with a collection urgency."),
		companyParam,
		mcp.WithString("as_of", mcp.Description("As-of date (YYYY-MM-DD). Defaults to today.")),
		mcp.WithNumber("customer_id", mcp.Description("Only this customer's invoices")),
		mcp.WithString("sort_by", mcp.Description("Customer order"), mcp.Enum("name", "total", "oldest")),
		mcp.WithString("sort_order", mcp.Description("asc or desc"), mcp.Enum("asc", "desc")),
		mcp.WithBoolean("include_voided", mcp.Description("Include voided invoices")),
	)
)

func (t *toolset) listCompanies(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := t.companies.ListCompanyIDs(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ids == nil {
		ids = []int64{}
	}
	return jsonResult(map[string]any{"company_ids": ids})
}

func (t *toolset) balanceSheet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	companyID, err := requireCompany(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := reports.BalanceSheetRequest{
		CompanyID:           companyID,
		IncludeZeroBalances: request.GetBool("include_zero_balances", false),
	}
	if req.AsOf, err = reports.ParseAsOf(request.GetString("as_of", t.today())); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if raw := request.GetString("compare_as_of", ""); raw != "" {
		cmp, err := reports.ParseAsOf(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		req.CompareAsOf = &cmp
	}
	bs, err := t.svc.GenerateBalanceSheet(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(bs)
}

func (t *toolset) profitLoss(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	companyID, err := requireCompany(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := reports.ProfitLossRequest{
		CompanyID:              companyID,
		IncludeZeroBalances:    request.GetBool("include_zero_balances", false),
		ShowEducationalContent: request.GetBool("explain", false),
		AccountingMethod:       reports.AccountingMethod(request.GetString("accounting_method", "")),
	}
	start := request.GetString("start_date", t.now().UTC().Format("2006")+"-01-01")
	if req.Period.Start, err = reports.ParseStart(start); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.Period.End, err = reports.ParseAsOf(request.GetString("end_date", t.today())); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cmpStart, cmpEnd := request.GetString("compare_start_date", ""), request.GetString("compare_end_date", "")
	if (cmpStart == "") != (cmpEnd == "") {
		return mcp.NewToolResultError("compare_start_date and compare_end_date must be given together"), nil
	}
	if cmpStart != "" {
		var cmp reports.DateRange
		if cmp.Start, err = reports.ParseStart(cmpStart); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if cmp.End, err = reports.ParseAsOf(cmpEnd); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		req.ComparisonPeriod = &cmp
	}
	pl, err := t.svc.GenerateProfitLoss(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(pl)
}

func (t *toolset) aging(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	companyID, err := requireCompany(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := ar.AgingRequest{
		CompanyID:             companyID,
		IncludeVoidedInvoices: request.GetBool("include_voided", false),
		SortBy:                ar.SortField(request.GetString("sort_by", "")),
		SortOrder:             ar.SortOrder(request.GetString("sort_order", "")),
	}
	if id := request.GetInt("customer_id", 0); id != 0 {
		if id < 0 {
			return mcp.NewToolResultError("customer_id must be positive"), nil
		}
		customerID := int64(id)
		req.CustomerID = &customerID
	}
	if req.AsOf, err = reports.ParseAsOf(request.GetString("as_of", t.today())); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := t.svc.GenerateAgingReport(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

func (t *toolset) today() string {
	return t.now().UTC().Format("2006-01-02")
}

func requireCompany(request mcp.CallToolRequest) (int64, error) {
	id := request.GetInt("company_id", 0)
	if id <= 0 {
		return 0, errors.New("company_id is required")
	}
	return int64(id), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcptools: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
