package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/money"
)

var balancedTolerance = decimal.New(1, -2)

// BalanceSheetRequest parameterises GenerateBalanceSheet.
type BalanceSheetRequest struct {
	CompanyID           int64
	AsOf                time.Time
	IncludeZeroBalances bool
	// CompareAsOf adds comparison columns computed as of a second date.
	CompareAsOf *time.Time
}

// BalanceSheetTotals carries the cross-section figures of one as-of date.
type BalanceSheetTotals struct {
	TotalAssets               float64 `json:"total_assets"`
	CurrentAssets             float64 `json:"current_assets"`
	LongTermAssets            float64 `json:"long_term_assets"`
	TotalLiabilities          float64 `json:"total_liabilities"`
	CurrentLiabilities        float64 `json:"current_liabilities"`
	LongTermLiabilities       float64 `json:"long_term_liabilities"`
	EquityAccounts            float64 `json:"equity_accounts"`
	NetIncome                 float64 `json:"net_income"`
	TotalEquity               float64 `json:"total_equity"`
	TotalLiabilitiesAndEquity float64 `json:"total_liabilities_and_equity"`
	BalanceDifference         float64 `json:"balance_difference"`
	IsBalanced                bool    `json:"is_balanced"`
}

// BalanceSheet is the statement of financial position.
type BalanceSheet struct {
	CompanyID           int64               `json:"company_id"`
	AsOf                time.Time           `json:"as_of"`
	CompareAsOf         *time.Time          `json:"compare_as_of,omitempty"`
	GeneratedAt         time.Time           `json:"generated_at"`
	IncludeZeroBalances bool                `json:"include_zero_balances"`
	Assets              Section             `json:"assets"`
	Liabilities         Section             `json:"liabilities"`
	Equity              Section             `json:"equity"`
	Totals              BalanceSheetTotals  `json:"totals"`
	ComparisonTotals    *BalanceSheetTotals `json:"comparison_totals,omitempty"`
}

func (r BalanceSheetRequest) validate() error {
	if r.CompanyID <= 0 {
		return invalidInput("company id is required")
	}
	if r.AsOf.IsZero() {
		return invalidInput("as-of date is required")
	}
	if r.CompareAsOf != nil && r.CompareAsOf.IsZero() {
		return invalidInput("comparison as-of date is empty")
	}
	return nil
}

func (r BalanceSheetRequest) cacheParts() []string {
	parts := []string{itoa(r.CompanyID), r.AsOf.UTC().Format(time.RFC3339Nano), boolToken(r.IncludeZeroBalances)}
	if r.CompareAsOf != nil {
		parts = append(parts, "cmp", r.CompareAsOf.UTC().Format(time.RFC3339Nano))
	}
	return parts
}

// GenerateBalanceSheet builds the balance sheet as of req.AsOf. Income and
// expense accounts are not listed; their net balance from inception through
// the as-of date is folded into equity as net income. An unbalanced ledger is
// reported through IsBalanced, not as an error.
func (s *Service) GenerateBalanceSheet(ctx context.Context, req BalanceSheetRequest) (report *BalanceSheet, err error) {
	started := time.Now()
	defer func() { observeBuild(ReportBalanceSheet, started, err) }()
	if err := req.validate(); err != nil {
		return nil, err
	}
	var out BalanceSheet
	err = s.cached(ctx, ReportBalanceSheet, req.cacheParts(), &out, func(ctx context.Context) (any, error) {
		return s.buildBalanceSheet(ctx, req)
	})
	if err != nil {
		s.logger.Error("balance sheet failed", slog.Int64("company_id", req.CompanyID), slog.Any("error", err))
		return nil, err
	}
	return &out, nil
}

func (s *Service) buildBalanceSheet(ctx context.Context, req BalanceSheetRequest) (*BalanceSheet, error) {
	to := req.AsOf
	if req.CompareAsOf != nil && req.CompareAsOf.After(to) {
		to = *req.CompareAsOf
	}
	ledger, err := s.snapshot(ctx, req.CompanyID, time.Time{}, to)
	if err != nil {
		return nil, err
	}
	report, err := assembleBalanceSheet(ledger, req)
	if err != nil {
		return nil, err
	}
	report.GeneratedAt = s.now().UTC()
	if !report.Totals.IsBalanced {
		recordUnbalanced()
		s.logger.Warn("balance sheet out of balance",
			slog.Int64("company_id", req.CompanyID),
			slog.Float64("difference", report.Totals.BalanceDifference),
		)
	}
	return report, nil
}

// assembleBalanceSheet is the pure part of the computation.
func assembleBalanceSheet(ledger *accounting.Ledger, req BalanceSheetRequest) (report *BalanceSheet, err error) {
	defer recoverCalculation(ReportBalanceSheet, &err)

	accounts := ledger.Accounts()
	balances := ledger.BalancesAsOf(req.AsOf)
	var comparison map[int64]decimal.Decimal
	if req.CompareAsOf != nil {
		comparison = ledger.BalancesAsOf(*req.CompareAsOf)
	}
	opts := accounting.TreeOptions{IncludeZeroBalances: req.IncludeZeroBalances, Comparison: comparison}
	comparing := comparison != nil

	assets, assetTotals := buildSection("Assets",
		accounting.BuildTree(accountsOfType(accounts, accounting.AccountTypeAsset), balances, opts), comparing)
	liabilities, liabilityTotals := buildSection("Liabilities",
		accounting.BuildTree(accountsOfType(accounts, accounting.AccountTypeLiability), balances, opts), comparing)
	equity, equityTotals := buildSection("Equity",
		accounting.BuildTree(accountsOfType(accounts, accounting.AccountTypeEquity), balances, opts), comparing)

	report = &BalanceSheet{
		CompanyID:           req.CompanyID,
		AsOf:                req.AsOf,
		CompareAsOf:         req.CompareAsOf,
		IncludeZeroBalances: req.IncludeZeroBalances,
		Assets:              assets,
		Liabilities:         liabilities,
		Equity:              equity,
		Totals: balanceTotals(
			assetTotals.subtotal, assetTotals.byClass,
			liabilityTotals.subtotal, liabilityTotals.byClass,
			equityTotals.subtotal, netIncome(accounts, balances),
		),
	}
	if comparing {
		cmp := balanceTotals(
			assetTotals.comparison, assetTotals.cmpByClass,
			liabilityTotals.comparison, liabilityTotals.cmpByClass,
			equityTotals.comparison, netIncome(accounts, comparison),
		)
		report.ComparisonTotals = &cmp
	}
	return report, nil
}

func balanceTotals(
	assets decimal.Decimal, assetClasses map[accounting.Classification]decimal.Decimal,
	liabilities decimal.Decimal, liabilityClasses map[accounting.Classification]decimal.Decimal,
	equityAccounts, netIncome decimal.Decimal,
) BalanceSheetTotals {
	totalEquity := equityAccounts.Add(netIncome)
	liabilitiesAndEquity := liabilities.Add(totalEquity)
	difference := assets.Sub(liabilitiesAndEquity)
	return BalanceSheetTotals{
		TotalAssets:               money.Float(assets),
		CurrentAssets:             money.Float(assetClasses[accounting.ClassificationCurrent]),
		LongTermAssets:            money.Float(assetClasses[accounting.ClassificationLongTerm]),
		TotalLiabilities:          money.Float(liabilities),
		CurrentLiabilities:        money.Float(liabilityClasses[accounting.ClassificationCurrent]),
		LongTermLiabilities:       money.Float(liabilityClasses[accounting.ClassificationLongTerm]),
		EquityAccounts:            money.Float(equityAccounts),
		NetIncome:                 money.Float(netIncome),
		TotalEquity:               money.Float(totalEquity),
		TotalLiabilitiesAndEquity: money.Float(liabilitiesAndEquity),
		BalanceDifference:         money.Float(difference),
		IsBalanced:                difference.Abs().LessThan(balancedTolerance),
	}
}

// netIncome is income-like minus expense-like balances over the whole log.
func netIncome(accounts []accounting.Account, balances map[int64]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, acc := range accounts {
		switch {
		case acc.Type.IsIncomeLike():
			total = total.Add(balances[acc.ID])
		case acc.Type.IsExpenseLike():
			total = total.Sub(balances[acc.ID])
		}
	}
	return total
}
