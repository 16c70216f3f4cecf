package reports

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/money"
)

// AccountingMethod labels the basis of a P&L.
type AccountingMethod string

const (
	MethodAccrual AccountingMethod = "accrual"
	MethodCash    AccountingMethod = "cash"
)

// ProfitLossRequest parameterises GenerateProfitLoss.
type ProfitLossRequest struct {
	CompanyID int64
	Period    DateRange
	// ComparisonPeriod adds comparison amounts and variances everywhere.
	ComparisonPeriod *DateRange
	// AccountingMethod is recorded on the report. Both methods select
	// transactions by entry date; payment clearing dates are not tracked.
	AccountingMethod       AccountingMethod
	IncludeZeroBalances    bool
	ShowEducationalContent bool
}

// Metric is a derived P&L figure.
type Metric struct {
	Amount             float64  `json:"amount"`
	PercentOfRevenue   float64  `json:"percent_of_revenue"`
	ComparisonAmount   *float64 `json:"comparison_amount,omitempty"`
	Variance           *float64 `json:"variance,omitempty"`
	VariancePercentage *float64 `json:"variance_percentage,omitempty"`
}

// ProfitLossReport is the income statement for a period.
type ProfitLossReport struct {
	CompanyID         int64             `json:"company_id"`
	Period            DateRange         `json:"period"`
	ComparisonPeriod  *DateRange        `json:"comparison_period,omitempty"`
	AccountingMethod  AccountingMethod  `json:"accounting_method"`
	GeneratedAt       time.Time         `json:"generated_at"`
	Revenue           Section           `json:"revenue"`
	CostOfGoodsSold   Section           `json:"cost_of_goods_sold"`
	OperatingExpenses Section           `json:"operating_expenses"`
	OtherIncome       *Section          `json:"other_income,omitempty"`
	OtherExpenses     *Section          `json:"other_expenses,omitempty"`
	GrossProfit       Metric            `json:"gross_profit"`
	OperatingIncome   Metric            `json:"operating_income"`
	NetIncome         Metric            `json:"net_income"`
	Education         map[string]string `json:"education,omitempty"`
}

var educationalContent = map[string]string{
	"revenue":            "Revenue is income earned from selling goods or services during the period, before any costs are taken out.",
	"cost_of_goods_sold": "Cost of goods sold covers the direct costs of producing what was sold, such as materials and direct labour.",
	"gross_profit":       "Gross profit is revenue minus cost of goods sold. Its percentage of revenue is the gross margin.",
	"operating_expenses": "Operating expenses are the costs of running the business that are not tied to a specific sale, such as rent and salaries.",
	"operating_income":   "Operating income is gross profit minus operating expenses: what the core business earns.",
	"other":              "Other income and expenses come from outside normal operations, such as interest or the sale of an asset.",
	"net_income":         "Net income is the bottom line: everything earned minus everything spent in the period.",
}

func (r *ProfitLossRequest) normalize() error {
	if r.CompanyID <= 0 {
		return invalidInput("company id is required")
	}
	if err := r.Period.validate("period"); err != nil {
		return err
	}
	if r.ComparisonPeriod != nil {
		if err := r.ComparisonPeriod.validate("comparison period"); err != nil {
			return err
		}
	}
	switch AccountingMethod(strings.ToLower(string(r.AccountingMethod))) {
	case "", MethodAccrual:
		r.AccountingMethod = MethodAccrual
	case MethodCash:
		r.AccountingMethod = MethodCash
	default:
		return invalidInput("unknown accounting method %q", r.AccountingMethod)
	}
	return nil
}

func (r ProfitLossRequest) cacheParts() []string {
	parts := []string{itoa(r.CompanyID), r.Period.key(), string(r.AccountingMethod), boolToken(r.IncludeZeroBalances), boolToken(r.ShowEducationalContent)}
	if r.ComparisonPeriod != nil {
		parts = append(parts, "cmp", r.ComparisonPeriod.key())
	}
	return parts
}

// GenerateProfitLoss builds the P&L for req.Period. Transactions are fetched
// once over the union of the primary and comparison ranges.
func (s *Service) GenerateProfitLoss(ctx context.Context, req ProfitLossRequest) (report *ProfitLossReport, err error) {
	started := time.Now()
	defer func() { observeBuild(ReportProfitLoss, started, err) }()
	if err := req.normalize(); err != nil {
		return nil, err
	}
	var out ProfitLossReport
	err = s.cached(ctx, ReportProfitLoss, req.cacheParts(), &out, func(ctx context.Context) (any, error) {
		return s.buildProfitLoss(ctx, req)
	})
	if err != nil {
		s.logger.Error("profit and loss failed", slog.Int64("company_id", req.CompanyID), slog.Any("error", err))
		return nil, err
	}
	return &out, nil
}

func (s *Service) buildProfitLoss(ctx context.Context, req ProfitLossRequest) (*ProfitLossReport, error) {
	from, to := req.Period.Start, req.Period.End
	if cmp := req.ComparisonPeriod; cmp != nil {
		if cmp.Start.Before(from) {
			from = cmp.Start
		}
		if cmp.End.After(to) {
			to = cmp.End
		}
	}
	ledger, err := s.snapshot(ctx, req.CompanyID, from, to)
	if err != nil {
		return nil, err
	}
	report, err := assembleProfitLoss(ledger, req)
	if err != nil {
		return nil, err
	}
	report.GeneratedAt = s.now().UTC()
	return report, nil
}

// assembleProfitLoss is the pure part of the computation.
func assembleProfitLoss(ledger *accounting.Ledger, req ProfitLossRequest) (report *ProfitLossReport, err error) {
	defer recoverCalculation(ReportProfitLoss, &err)

	accounts := ledger.Accounts()
	activity := ledger.ActivityBetween(req.Period.Start, req.Period.End)
	var comparison map[int64]decimal.Decimal
	if req.ComparisonPeriod != nil {
		comparison = ledger.ActivityBetween(req.ComparisonPeriod.Start, req.ComparisonPeriod.End)
	}
	comparing := comparison != nil
	opts := accounting.TreeOptions{IncludeZeroBalances: req.IncludeZeroBalances, Comparison: comparison}
	section := func(name string, t accounting.AccountType) (Section, sectionTotals) {
		return buildSection(name, accounting.BuildTree(accountsOfType(accounts, t), activity, opts), comparing)
	}

	revenue, revenueT := section("Revenue", accounting.AccountTypeIncome)
	cogs, cogsT := section("Cost of Goods Sold", accounting.AccountTypeCOGS)
	opex, opexT := section("Operating Expenses", accounting.AccountTypeExpense)
	otherIncome, otherIncomeT := section("Other Income", accounting.AccountTypeOtherIncome)
	otherExpenses, otherExpensesT := section("Other Expenses", accounting.AccountTypeOtherExpense)

	gross := revenueT.subtotal.Sub(cogsT.subtotal)
	operating := gross.Sub(opexT.subtotal)
	net := operating.Add(otherIncomeT.subtotal).Sub(otherExpensesT.subtotal)

	report = &ProfitLossReport{
		CompanyID:         req.CompanyID,
		Period:            req.Period,
		ComparisonPeriod:  req.ComparisonPeriod,
		AccountingMethod:  req.AccountingMethod,
		Revenue:           revenue,
		CostOfGoodsSold:   cogs,
		OperatingExpenses: opex,
		GrossProfit:       metric(gross, revenueT.subtotal),
		OperatingIncome:   metric(operating, revenueT.subtotal),
		NetIncome:         metric(net, revenueT.subtotal),
	}
	if otherIncome.HasNonZeroLine() {
		report.OtherIncome = &otherIncome
	}
	if otherExpenses.HasNonZeroLine() {
		report.OtherExpenses = &otherExpenses
	}
	if comparing {
		cmpGross := revenueT.comparison.Sub(cogsT.comparison)
		cmpOperating := cmpGross.Sub(opexT.comparison)
		cmpNet := cmpOperating.Add(otherIncomeT.comparison).Sub(otherExpensesT.comparison)
		withComparison(&report.GrossProfit, gross, cmpGross)
		withComparison(&report.OperatingIncome, operating, cmpOperating)
		withComparison(&report.NetIncome, net, cmpNet)
	}
	if req.ShowEducationalContent {
		report.Education = make(map[string]string, len(educationalContent))
		for k, v := range educationalContent {
			report.Education[k] = v
		}
	}
	return report, nil
}

func metric(amount, revenue decimal.Decimal) Metric {
	return Metric{
		Amount:           money.Float(amount),
		PercentOfRevenue: money.Float(money.Percent(amount, revenue)),
	}
}

func withComparison(m *Metric, current, comparison decimal.Decimal) {
	cmp := compare(current, comparison)
	m.ComparisonAmount = cmp.Amount
	m.Variance = cmp.Variance
	m.VariancePercentage = cmp.VariancePc
}
