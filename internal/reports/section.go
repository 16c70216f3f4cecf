package reports

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/money"
)

// LineItem is one account row of a report section.
type LineItem struct {
	AccountID          int64    `json:"account_id"`
	Number             string   `json:"number,omitempty"`
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	Level              int      `json:"level"`
	Classification     string   `json:"classification,omitempty"`
	IsSubAccount       bool     `json:"is_sub_account"`
	HasChildren        bool     `json:"has_children"`
	Balance            float64  `json:"balance"`
	ComparisonBalance  *float64 `json:"comparison_balance,omitempty"`
	Variance           *float64 `json:"variance,omitempty"`
	VariancePercentage *float64 `json:"variance_percentage,omitempty"`
}

// Section is a named group of line items with a subtotal.
type Section struct {
	Name               string     `json:"name"`
	Lines              []LineItem `json:"lines"`
	Subtotal           float64    `json:"subtotal"`
	ComparisonSubtotal *float64   `json:"comparison_subtotal,omitempty"`
	Variance           *float64   `json:"variance,omitempty"`
	VariancePercentage *float64   `json:"variance_percentage,omitempty"`
}

// HasNonZeroLine reports whether any line carries a nonzero current or
// comparison amount.
func (s Section) HasNonZeroLine() bool {
	for _, line := range s.Lines {
		if line.Balance != 0 {
			return true
		}
		if line.ComparisonBalance != nil && *line.ComparisonBalance != 0 {
			return true
		}
	}
	return false
}

// Comparison carries the three comparison fields shared by lines, sections and
// derived figures.
type Comparison struct {
	Amount     *float64
	Variance   *float64
	VariancePc *float64
}

func compare(current, comparison decimal.Decimal) Comparison {
	variance := current.Sub(comparison)
	out := Comparison{Amount: money.FloatPtr(comparison), Variance: money.FloatPtr(variance)}
	if pct, ok := money.VariancePercent(variance, comparison); ok {
		out.VariancePc = money.FloatPtr(pct)
	}
	return out
}

// sectionTotals holds the exact figures behind a Section.
type sectionTotals struct {
	subtotal      decimal.Decimal
	comparison    decimal.Decimal
	hasComparison bool
	byClass       map[accounting.Classification]decimal.Decimal
	cmpByClass    map[accounting.Classification]decimal.Decimal
}

// buildSection turns tree nodes into a Section. The subtotal is the sum of the
// reported balances of top-level lines, whose roll-up already covers their
// descendants.
func buildSection(name string, nodes []accounting.TreeNode, comparing bool) (Section, sectionTotals) {
	section := Section{Name: name, Lines: make([]LineItem, 0, len(nodes))}
	totals := sectionTotals{
		subtotal:      decimal.Zero,
		comparison:    decimal.Zero,
		hasComparison: comparing,
		byClass:       make(map[accounting.Classification]decimal.Decimal, 2),
		cmpByClass:    make(map[accounting.Classification]decimal.Decimal, 2),
	}
	for _, node := range nodes {
		line := LineItem{
			AccountID:      node.Account.ID,
			Number:         node.Account.Number,
			Name:           node.Account.Name,
			Type:           string(node.Account.Type),
			Level:          node.Level,
			Classification: string(node.Classification),
			IsSubAccount:   node.IsSubAccount,
			HasChildren:    node.HasChildren(),
			Balance:        money.Float(node.Balance),
		}
		if node.HasComparison {
			cmp := compare(node.Balance, node.Comparison)
			line.ComparisonBalance = cmp.Amount
			line.Variance = cmp.Variance
			line.VariancePercentage = cmp.VariancePc
		}
		section.Lines = append(section.Lines, line)

		if node.Level != 0 {
			continue
		}
		totals.subtotal = totals.subtotal.Add(node.Balance)
		totals.byClass[node.Classification] = totals.byClass[node.Classification].Add(node.Balance)
		if node.HasComparison {
			totals.comparison = totals.comparison.Add(node.Comparison)
			totals.cmpByClass[node.Classification] = totals.cmpByClass[node.Classification].Add(node.Comparison)
		}
	}
	section.Subtotal = money.Float(totals.subtotal)
	if totals.hasComparison {
		cmp := compare(totals.subtotal, totals.comparison)
		section.ComparisonSubtotal = cmp.Amount
		section.Variance = cmp.Variance
		section.VariancePercentage = cmp.VariancePc
	}
	return section, totals
}

func accountsOfType(accounts []accounting.Account, types ...accounting.AccountType) []accounting.Account {
	out := make([]accounting.Account, 0, len(accounts))
	for _, acc := range accounts {
		for _, t := range types {
			if acc.Type == t {
				out = append(out, acc)
				break
			}
		}
	}
	return out
}
