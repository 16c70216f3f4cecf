// Package export streams generated reports as CSV.
package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/reports"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

var errStreamerClosed = errors.New("export: csv streamer not initialised")

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return errStreamerClosed
	}
	// comments bypass the csv writer, so pending rows go first
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	line = strings.TrimRight(line, "\r\n") + "\r\n"
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row ...string) error {
	if s == nil || s.csv == nil {
		return errStreamerClosed
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) blank() error {
	return s.writeRow("")
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return errStreamerClosed
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// BalanceSheetCSV writes bs to w.
func BalanceSheetCSV(w io.Writer, bs *reports.BalanceSheet) error {
	s := newCSVStreamer(w)
	meta := fmt.Sprintf("# Company: %d | As of: %s", bs.CompanyID, formatDate(bs.AsOf))
	if bs.CompareAsOf != nil {
		meta += " | Compared to: " + formatDate(*bs.CompareAsOf)
	}
	if err := writeHeader(s, "Balance Sheet", meta); err != nil {
		return err
	}
	comparing := bs.ComparisonTotals != nil
	if err := s.writeRow(sectionColumns(comparing)...); err != nil {
		return err
	}
	for _, section := range []reports.Section{bs.Assets, bs.Liabilities, bs.Equity} {
		if err := writeSection(s, section, comparing); err != nil {
			return err
		}
	}
	if err := s.blank(); err != nil {
		return err
	}
	t := bs.Totals
	rows := [][2]string{
		{"Total Assets", formatAmount(t.TotalAssets)},
		{"Current Assets", formatAmount(t.CurrentAssets)},
		{"Long-term Assets", formatAmount(t.LongTermAssets)},
		{"Total Liabilities", formatAmount(t.TotalLiabilities)},
		{"Equity Accounts", formatAmount(t.EquityAccounts)},
		{"Net Income", formatAmount(t.NetIncome)},
		{"Total Equity", formatAmount(t.TotalEquity)},
		{"Total Liabilities + Equity", formatAmount(t.TotalLiabilitiesAndEquity)},
		{"Difference", formatAmount(t.BalanceDifference)},
		{"Balanced", strconv.FormatBool(t.IsBalanced)},
	}
	for _, row := range rows {
		if err := s.writeRow("Totals", "", row[0], "", row[1]); err != nil {
			return err
		}
	}
	return s.Flush()
}

// ProfitLossCSV writes pl to w.
func ProfitLossCSV(w io.Writer, pl *reports.ProfitLossReport) error {
	s := newCSVStreamer(w)
	meta := fmt.Sprintf("# Company: %d | Period: %s to %s | Method: %s",
		pl.CompanyID, formatDate(pl.Period.Start), formatDate(pl.Period.End), pl.AccountingMethod)
	if pl.ComparisonPeriod != nil {
		meta += fmt.Sprintf(" | Compared to: %s to %s", formatDate(pl.ComparisonPeriod.Start), formatDate(pl.ComparisonPeriod.End))
	}
	if err := writeHeader(s, "Profit and Loss", meta); err != nil {
		return err
	}
	comparing := pl.ComparisonPeriod != nil
	if err := s.writeRow(sectionColumns(comparing)...); err != nil {
		return err
	}
	sections := []reports.Section{pl.Revenue, pl.CostOfGoodsSold, pl.OperatingExpenses}
	if pl.OtherIncome != nil {
		sections = append(sections, *pl.OtherIncome)
	}
	if pl.OtherExpenses != nil {
		sections = append(sections, *pl.OtherExpenses)
	}
	for _, section := range sections {
		if err := writeSection(s, section, comparing); err != nil {
			return err
		}
	}
	if err := s.blank(); err != nil {
		return err
	}
	metrics := []struct {
		name string
		m    reports.Metric
	}{
		{"Gross Profit", pl.GrossProfit},
		{"Operating Income", pl.OperatingIncome},
		{"Net Income", pl.NetIncome},
	}
	for _, row := range metrics {
		cells := []string{"Totals", "", row.name, "", formatAmount(row.m.Amount), formatAmount(row.m.PercentOfRevenue) + "%"}
		if comparing {
			cells = append(cells, formatOptional(row.m.ComparisonAmount), formatOptional(row.m.Variance), formatOptional(row.m.VariancePercentage))
		}
		if err := s.writeRow(cells...); err != nil {
			return err
		}
	}
	return s.Flush()
}

// AgingCSV writes one row per customer followed by bucket totals.
func AgingCSV(w io.Writer, report *ar.AgingReport) error {
	s := newCSVStreamer(w)
	meta := fmt.Sprintf("# Company: %d | As of: %s | Invoices: %d", report.CompanyID, formatDate(report.AsOf), report.InvoiceCount)
	if err := writeHeader(s, "Receivables Aging", meta); err != nil {
		return err
	}
	if err := s.writeRow("Customer ID", "Customer", "Current", "1-30", "31-60", "61-90", "90+", "Total", "Invoices", "Oldest Due", "Max Days Overdue", "Urgency"); err != nil {
		return err
	}
	for _, c := range report.Customers {
		oldest := ""
		if !c.OldestDueDate.IsZero() {
			oldest = formatDate(c.OldestDueDate)
		}
		if err := s.writeRow(
			strconv.FormatInt(c.CustomerID, 10),
			c.CustomerName,
			formatAmount(c.Current),
			formatAmount(c.Days1To30),
			formatAmount(c.Days31To60),
			formatAmount(c.Days61To90),
			formatAmount(c.Over90),
			formatAmount(c.Total),
			strconv.Itoa(c.InvoiceCount),
			oldest,
			strconv.Itoa(c.MaxDaysOverdue),
			string(c.Urgency),
		); err != nil {
			return err
		}
	}
	if err := s.blank(); err != nil {
		return err
	}
	for _, bucket := range report.Buckets {
		if err := s.writeRow("Totals", bucket.Label, formatAmount(bucket.Amount), strconv.Itoa(bucket.Count)); err != nil {
			return err
		}
	}
	if err := s.writeRow("Totals", "Total Outstanding", formatAmount(report.TotalOutstanding)); err != nil {
		return err
	}
	if err := s.writeRow("Totals", "Total Overdue", formatAmount(report.TotalOverdue)); err != nil {
		return err
	}
	return s.Flush()
}

func writeHeader(s *csvStreamer, name, meta string) error {
	if err := s.writeComment("# Report: " + name); err != nil {
		return err
	}
	return s.writeComment(meta)
}

func sectionColumns(comparing bool) []string {
	cols := []string{"Section", "Account Number", "Account Name", "Level", "Balance"}
	if comparing {
		cols = append(cols, "Comparison", "Variance", "Variance %")
	}
	return cols
}

func writeSection(s *csvStreamer, section reports.Section, comparing bool) error {
	for _, line := range section.Lines {
		name := strings.Repeat("  ", line.Level) + line.Name
		cells := []string{section.Name, line.Number, name, strconv.Itoa(line.Level), formatAmount(line.Balance)}
		if comparing {
			cells = append(cells, formatOptional(line.ComparisonBalance), formatOptional(line.Variance), formatOptional(line.VariancePercentage))
		}
		if err := s.writeRow(cells...); err != nil {
			return err
		}
	}
	cells := []string{section.Name, "", "Total " + section.Name, "", formatAmount(section.Subtotal)}
	if comparing {
		cells = append(cells, formatOptional(section.ComparisonSubtotal), formatOptional(section.Variance), formatOptional(section.VariancePercentage))
	}
	return s.writeRow(cells...)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatAmount(*v)
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
