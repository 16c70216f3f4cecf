package fixture

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/ar"
	"github.com/ledgerbook/ledgerbook/internal/reports"
	_ "github.com/ledgerbook/ledgerbook/testing"
)

type memoryTarget struct {
	*ar.MemoryStore
	companies map[int64]string
}

func (m *memoryTarget) EnsureCompany(_ context.Context, id int64, name string) error {
	m.companies[id] = name
	return nil
}

func loadFile(t *testing.T, path string) *File {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	f, err := Load(fh)
	require.NoError(t, err)
	return f
}

func TestApplyAcme(t *testing.T) {
	ctx := context.Background()
	ledgerStore := accounting.NewMemoryStore()
	target := &memoryTarget{MemoryStore: ar.NewMemoryStore(), companies: map[int64]string{}}

	sum, err := loadFile(t, "testdata/acme.yaml").Apply(ctx, accounting.NewService(ledgerStore, nil), target)
	require.NoError(t, err)
	require.Equal(t, Summary{Companies: 1, Accounts: 10, Journals: 7, Contacts: 2, Invoices: 3}, sum)
	require.Equal(t, "Acme Trading", target.companies[1])

	svc := reports.NewService(ledgerStore, ar.NewService(target, nil), nil)
	bs, err := svc.GenerateBalanceSheet(ctx, reports.BalanceSheetRequest{CompanyID: 1, AsOf: time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Equal(t, 46500.0, bs.Totals.TotalAssets)
	require.Equal(t, 14500.0, bs.Totals.TotalLiabilities)
	require.Equal(t, 12000.0, bs.Totals.NetIncome)
	require.True(t, bs.Totals.IsBalanced)

	aging, err := svc.GenerateAgingReport(ctx, ar.AgingRequest{CompanyID: 1, AsOf: time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Equal(t, 16000.0, aging.TotalOutstanding)
	require.Equal(t, 2, aging.InvoiceCount)
}

func TestReapplyIsRejected(t *testing.T) {
	ctx := context.Background()
	ledgerStore := accounting.NewMemoryStore()
	ledger := accounting.NewService(ledgerStore, nil)
	doc := `
companies:
  - id: 3
    name: Tiny
    accounts:
      - {key: cash, name: Cash, type: asset}
      - {key: capital, name: Capital, type: equity}
    journals:
      - date: "2024-05-01"
        lines:
          - {account: cash, debit: "10"}
          - {account: capital, credit: "10"}
`
	f, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	target := &memoryTarget{MemoryStore: ar.NewMemoryStore(), companies: map[int64]string{}}
	_, err = f.Apply(ctx, ledger, target)
	require.NoError(t, err)

	// same file, same derived source ids
	_, err = f.Apply(ctx, ledger, target)
	require.ErrorIs(t, err, accounting.ErrSourceAlreadyLinked)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": "companies:\n  - id: 1\n    name: A\n    colour: red\n",
		"no companies":  "companies: []\n",
		"missing name":  "companies:\n  - id: 1\n",
		"bad email":     "companies:\n  - id: 1\n    name: A\n    contacts:\n      - {key: x, name: X, email: nope}\n",
		"one line":      "companies:\n  - id: 1\n    name: A\n    journals:\n      - date: \"2024-01-01\"\n        lines:\n          - {account: cash, debit: \"1\"}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestApplyReportsBadReferences(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"parent after child": `
companies:
  - id: 1
    name: A
    accounts:
      - {key: petty, name: Petty, type: asset, parent: cash}
      - {key: cash, name: Cash, type: asset}
`,
		"unknown account": `
companies:
  - id: 1
    name: A
    accounts:
      - {key: cash, name: Cash, type: asset}
    journals:
      - date: "2024-01-01"
        lines:
          - {account: cash, debit: "1"}
          - {account: nowhere, credit: "1"}
`,
		"unbalanced": `
companies:
  - id: 1
    name: A
    accounts:
      - {key: cash, name: Cash, type: asset}
      - {key: capital, name: Capital, type: equity}
    journals:
      - date: "2024-01-01"
        lines:
          - {account: cash, debit: "2"}
          - {account: capital, credit: "1"}
`,
		"unknown customer": `
companies:
  - id: 1
    name: A
    invoices:
      - {number: I1, customer: ghost, status: open, issue_date: "2024-01-01", due_date: "2024-01-31", total: "5"}
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			f, err := Load(strings.NewReader(doc))
			require.NoError(t, err)
			target := &memoryTarget{MemoryStore: ar.NewMemoryStore(), companies: map[int64]string{}}
			_, err = f.Apply(ctx, accounting.NewService(accounting.NewMemoryStore(), nil), target)
			require.Error(t, err)
		})
	}
}
