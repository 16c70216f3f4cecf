package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/reports"
	"github.com/ledgerbook/ledgerbook/internal/reports/export"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

var amounts = message.NewPrinter(language.English)

func validFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatCSV:
		return nil
	}
	return fmt.Errorf("unknown format %q (table, json or csv)", format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func amount(v float64) string {
	return amounts.Sprintf("%.2f", v)
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

func newBalanceSheetCommand(opts *options) *cobra.Command {
	var (
		companyID   int64
		asOf        string
		compareAsOf string
		includeZero bool
		format      string
	)
	cmd := &cobra.Command{
		Use:     "balance-sheet",
		Aliases: []string{"bs"},
		Short:   "Print the balance sheet as of a date",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			req := reports.BalanceSheetRequest{CompanyID: companyID, IncludeZeroBalances: includeZero}
			var err error
			if req.AsOf, err = reports.ParseAsOf(asOf); err != nil {
				return err
			}
			if compareAsOf != "" {
				cmp, err := reports.ParseAsOf(compareAsOf)
				if err != nil {
					return err
				}
				req.CompareAsOf = &cmp
			}

			store, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			bs, err := opts.reportService(store).GenerateBalanceSheet(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				return writeJSON(out, bs)
			case formatCSV:
				return export.BalanceSheetCSV(out, bs)
			}
			return printBalanceSheet(out, bs)
		},
	}
	cmd.Flags().Int64Var(&companyID, "company", 1, "company id")
	cmd.Flags().StringVar(&asOf, "as-of", today(), "as-of date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&compareAsOf, "compare-as-of", "", "comparison as-of date")
	cmd.Flags().BoolVar(&includeZero, "include-zero", false, "show accounts with zero balances")
	cmd.Flags().StringVar(&format, "format", formatTable, "output format: table, json or csv")
	return cmd
}

func newProfitLossCommand(opts *options) *cobra.Command {
	var (
		companyID    int64
		start, end   string
		compareStart string
		compareEnd   string
		includeZero  bool
		education    bool
		format       string
	)
	cmd := &cobra.Command{
		Use:     "profit-loss",
		Aliases: []string{"pl"},
		Short:   "Print the profit and loss statement for a period",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			req := reports.ProfitLossRequest{CompanyID: companyID, IncludeZeroBalances: includeZero, ShowEducationalContent: education}
			var err error
			if req.Period.Start, err = reports.ParseStart(start); err != nil {
				return err
			}
			if req.Period.End, err = reports.ParseAsOf(end); err != nil {
				return err
			}
			if (compareStart == "") != (compareEnd == "") {
				return fmt.Errorf("--compare-start and --compare-end go together")
			}
			if compareStart != "" {
				var cmp reports.DateRange
				if cmp.Start, err = reports.ParseStart(compareStart); err != nil {
					return err
				}
				if cmp.End, err = reports.ParseAsOf(compareEnd); err != nil {
					return err
				}
				req.ComparisonPeriod = &cmp
			}

			store, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			pl, err := opts.reportService(store).GenerateProfitLoss(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				return writeJSON(out, pl)
			case formatCSV:
				return export.ProfitLossCSV(out, pl)
			}
			return printProfitLoss(out, pl)
		},
	}
	year := time.Now().UTC().Format("2006")
	cmd.Flags().Int64Var(&companyID, "company", 1, "company id")
	cmd.Flags().StringVar(&start, "start", year+"-01-01", "period start")
	cmd.Flags().StringVar(&end, "end", today(), "period end")
	cmd.Flags().StringVar(&compareStart, "compare-start", "", "comparison period start")
	cmd.Flags().StringVar(&compareEnd, "compare-end", "", "comparison period end")
	cmd.Flags().BoolVar(&includeZero, "include-zero", false, "show accounts with zero balances")
	cmd.Flags().BoolVar(&education, "explain", false, "include short explanations of each figure")
	cmd.Flags().StringVar(&format, "format", formatTable, "output format: table, json or csv")
	return cmd
}

func newAgingCommand(opts *options) *cobra.Command {
	var (
		companyID    int64
		asOf         string
		sortBy       string
		sortOrder    string
		includeVoids bool
		format       string
	)
	cmd := &cobra.Command{
		Use:   "aging",
		Short: "Print the receivables aging report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			req := ar.AgingRequest{
				CompanyID:             companyID,
				IncludeVoidedInvoices: includeVoids,
				SortBy:                ar.SortField(sortBy),
				SortOrder:             ar.SortOrder(sortOrder),
			}
			var err error
			if req.AsOf, err = reports.ParseAsOf(asOf); err != nil {
				return err
			}

			store, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			report, err := opts.reportService(store).GenerateAgingReport(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				return writeJSON(out, report)
			case formatCSV:
				return export.AgingCSV(out, report)
			}
			return printAging(out, report)
		},
	}
	cmd.Flags().Int64Var(&companyID, "company", 1, "company id")
	cmd.Flags().StringVar(&asOf, "as-of", today(), "as-of date")
	cmd.Flags().StringVar(&sortBy, "sort-by", string(ar.SortByTotal), "customer order: name, total or oldest")
	cmd.Flags().StringVar(&sortOrder, "sort-order", string(ar.SortDesc), "asc or desc")
	cmd.Flags().BoolVar(&includeVoids, "include-void", false, "include voided invoices")
	cmd.Flags().StringVar(&format, "format", formatTable, "output format: table, json or csv")
	return cmd
}

func printSection(tw *tabwriter.Writer, s reports.Section) {
	fmt.Fprintf(tw, "%s\t\t\n", strings.ToUpper(s.Name))
	for _, line := range s.Lines {
		fmt.Fprintf(tw, "  %s%s %s\t%s\t\n", strings.Repeat("  ", line.Level), line.Number, line.Name, amount(line.Balance))
	}
	fmt.Fprintf(tw, "Total %s\t%s\t\n", s.Name, amount(s.Subtotal))
	fmt.Fprintln(tw, "\t\t")
}

func printBalanceSheet(w io.Writer, bs *reports.BalanceSheet) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Balance Sheet, company %d, as of %s\t\t\n\t\t\n", bs.CompanyID, bs.AsOf.Format("2006-01-02"))
	printSection(tw, bs.Assets)
	printSection(tw, bs.Liabilities)
	printSection(tw, bs.Equity)
	t := bs.Totals
	fmt.Fprintf(tw, "Net income\t%s\t\n", amount(t.NetIncome))
	fmt.Fprintf(tw, "Total liabilities and equity\t%s\t\n", amount(t.TotalLiabilitiesAndEquity))
	if !t.IsBalanced {
		fmt.Fprintf(tw, "OUT OF BALANCE BY\t%s\t\n", amount(t.BalanceDifference))
	}
	return tw.Flush()
}

func printProfitLoss(w io.Writer, pl *reports.ProfitLossReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Profit and Loss, company %d, %s to %s\t\t\n\t\t\n", pl.CompanyID,
		pl.Period.Start.Format("2006-01-02"), pl.Period.End.Format("2006-01-02"))
	printSection(tw, pl.Revenue)
	printSection(tw, pl.CostOfGoodsSold)
	fmt.Fprintf(tw, "Gross profit\t%s\t\n\t\t\n", amount(pl.GrossProfit.Amount))
	printSection(tw, pl.OperatingExpenses)
	fmt.Fprintf(tw, "Operating income\t%s\t\n\t\t\n", amount(pl.OperatingIncome.Amount))
	if pl.OtherIncome != nil {
		printSection(tw, *pl.OtherIncome)
	}
	if pl.OtherExpenses != nil {
		printSection(tw, *pl.OtherExpenses)
	}
	fmt.Fprintf(tw, "Net income\t%s\t\n", amount(pl.NetIncome.Amount))
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, key := range []string{"revenue", "cost_of_goods_sold", "gross_profit", "operating_expenses", "operating_income", "other", "net_income"} {
		if text, ok := pl.Education[key]; ok {
			fmt.Fprintf(w, "\n%s\n", text)
		}
	}
	return nil
}

func printAging(w io.Writer, report *ar.AgingReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Customer\tCurrent\t1-30\t31-60\t61-90\t90+\tTotal\tUrgency\t\n")
	for _, c := range report.Customers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n", c.CustomerName,
			amount(c.Current), amount(c.Days1To30), amount(c.Days31To60), amount(c.Days61To90), amount(c.Over90),
			amount(c.Total), c.Urgency)
	}
	fmt.Fprintf(tw, "Total\t\t\t\t\t\t%s\t\t\n", amount(report.TotalOutstanding))
	fmt.Fprintf(tw, "Overdue\t\t\t\t\t\t%s\t\t\n", amount(report.TotalOverdue))
	return tw.Flush()
}
