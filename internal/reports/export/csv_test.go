package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/reports"
)

func ptr(v float64) *float64 { return &v }

func TestCSVStreamerFlushInterval(t *testing.T) {
	var buf bytes.Buffer
	s := newCSVStreamer(&buf)
	for i := 0; i < csvFlushEvery; i++ {
		require.NoError(t, s.writeRow("row"))
	}
	require.Zero(t, s.pendingLines)
	require.Equal(t, strings.Repeat("row\r\n", csvFlushEvery), buf.String())

	require.NoError(t, s.writeRow("next"))
	require.Equal(t, 1, s.pendingLines)
	require.NoError(t, s.Flush())
	require.True(t, strings.HasSuffix(buf.String(), "next\r\n"))
}

func TestCommentsKeepRowOrder(t *testing.T) {
	var buf bytes.Buffer
	s := newCSVStreamer(&buf)
	require.NoError(t, s.writeRow("a", "b"))
	require.NoError(t, s.writeComment("# note\n"))
	require.NoError(t, s.writeRow("c"))
	require.NoError(t, s.Flush())
	require.Equal(t, "a,b\r\n# note\r\nc\r\n", buf.String())
}

func dataRows(t *testing.T, out string) [][]string {
	t.Helper()
	var body []string
	for _, line := range strings.Split(out, "\r\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		body = append(body, line)
	}
	r := csv.NewReader(strings.NewReader(strings.Join(body, "\n")))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestBalanceSheetCSV(t *testing.T) {
	bs := &reports.BalanceSheet{
		CompanyID: 7,
		AsOf:      time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
		Assets: reports.Section{
			Name: "Assets",
			Lines: []reports.LineItem{
				{AccountID: 1, Number: "1000", Name: "Bank", Level: 0, Balance: 8000},
				{AccountID: 2, Number: "1010", Name: "Checking, main", Level: 1, Balance: 5000},
			},
			Subtotal: 8000,
		},
		Liabilities: reports.Section{Name: "Liabilities"},
		Equity: reports.Section{
			Name:     "Equity",
			Lines:    []reports.LineItem{{AccountID: 3, Number: "3000", Name: "Capital", Balance: 8000}},
			Subtotal: 8000,
		},
		Totals: reports.BalanceSheetTotals{TotalAssets: 8000, TotalEquity: 8000, TotalLiabilitiesAndEquity: 8000, IsBalanced: true},
	}
	var buf bytes.Buffer
	require.NoError(t, BalanceSheetCSV(&buf, bs))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "# Report: Balance Sheet\r\n# Company: 7 | As of: 2024-12-31\r\n"))

	rows := dataRows(t, out)
	require.Equal(t, []string{"Section", "Account Number", "Account Name", "Level", "Balance"}, rows[0])
	require.Equal(t, []string{"Assets", "1010", "  Checking, main", "1", "5000.00"}, rows[2])
	require.Equal(t, []string{"Assets", "", "Total Assets", "", "8000.00"}, rows[3])
	require.Contains(t, rows, []string{"Totals", "", "Balanced", "", "true"})
}

func TestProfitLossCSVComparisonColumns(t *testing.T) {
	pl := &reports.ProfitLossReport{
		CompanyID:        1,
		Period:           reports.DateRange{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		ComparisonPeriod: &reports.DateRange{Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
		AccountingMethod: reports.MethodAccrual,
		Revenue: reports.Section{
			Name:               "Revenue",
			Lines:              []reports.LineItem{{AccountID: 1, Name: "Sales", Balance: 12000, ComparisonBalance: ptr(10000), Variance: ptr(2000), VariancePercentage: ptr(20)}},
			Subtotal:           12000,
			ComparisonSubtotal: ptr(10000),
			Variance:           ptr(2000),
			VariancePercentage: ptr(20),
		},
		NetIncome: reports.Metric{Amount: 12000, PercentOfRevenue: 100, ComparisonAmount: ptr(10000), Variance: ptr(2000), VariancePercentage: ptr(20)},
	}
	var buf bytes.Buffer
	require.NoError(t, ProfitLossCSV(&buf, pl))
	rows := dataRows(t, buf.String())
	require.Len(t, rows[0], 8)
	require.Equal(t, []string{"Revenue", "", "Sales", "0", "12000.00", "10000.00", "2000.00", "20.00"}, rows[1])
	require.Contains(t, rows, []string{"Totals", "", "Net Income", "", "12000.00", "100.00%", "10000.00", "2000.00", "20.00"})
	require.Contains(t, buf.String(), "Compared to: 2023-01-01 to 2023-12-31")
}

func TestAgingCSV(t *testing.T) {
	report := &ar.AgingReport{
		CompanyID:    1,
		AsOf:         time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		InvoiceCount: 1,
		Customers: []ar.CustomerAging{{
			CustomerID: 4, CustomerName: "Acme", Days31To60: 250, Total: 250, InvoiceCount: 1,
			OldestDueDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), MaxDaysOverdue: 60, Urgency: ar.UrgencyMedium,
		}},
		Buckets:          []ar.AgingBucket{{Name: ar.Bucket31To60, Label: "31-60 days", Amount: 250, Count: 1}},
		TotalOutstanding: 250,
		TotalOverdue:     250,
	}
	var buf bytes.Buffer
	require.NoError(t, AgingCSV(&buf, report))
	rows := dataRows(t, buf.String())
	require.Equal(t, []string{"4", "Acme", "0.00", "0.00", "250.00", "0.00", "0.00", "250.00", "1", "2024-05-01", "60", "medium"}, rows[1])
	require.Contains(t, rows, []string{"Totals", "31-60 days", "250.00", "1"})
	require.Contains(t, rows, []string{"Totals", "Total Overdue", "250.00"})
}
