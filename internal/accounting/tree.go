package accounting

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TreeNode is one row of a depth-first flattened account hierarchy.
type TreeNode struct {
	Account        Account
	OwnBalance     decimal.Decimal
	Balance        decimal.Decimal
	HasComparison  bool
	OwnComparison  decimal.Decimal
	Comparison     decimal.Decimal
	Level          int
	ChildIDs       []int64
	Classification Classification
	IsSubAccount   bool
}

// HasChildren reports whether any account was emitted beneath this node.
func (n TreeNode) HasChildren() bool {
	return len(n.ChildIDs) > 0
}

// TreeOptions tunes BuildTree.
type TreeOptions struct {
	IncludeZeroBalances bool
	// Comparison, when non-nil, supplies a second set of balances rolled up
	// with the same rule and considered by zero-balance hiding.
	Comparison map[int64]decimal.Decimal
}

// BuildTree arranges accounts into a depth-first list. Accounts whose parent is
// not part of accounts are treated as roots. Top-level accounts with children
// report their own balance plus every descendant's; all other nodes report
// their own balance.
func BuildTree(accounts []Account, balances map[int64]decimal.Decimal, opts TreeOptions) []TreeNode {
	present := make(map[int64]struct{}, len(accounts))
	for _, acc := range accounts {
		present[acc.ID] = struct{}{}
	}

	var roots []Account
	children := make(map[int64][]Account)
	for _, acc := range accounts {
		if acc.IsSubAccount() {
			if _, ok := present[*acc.ParentID]; ok {
				children[*acc.ParentID] = append(children[*acc.ParentID], acc)
				continue
			}
		}
		roots = append(roots, acc)
	}
	sortSiblings(roots)
	for id := range children {
		sortSiblings(children[id])
	}

	b := treeBuilder{
		children:   children,
		balances:   balances,
		comparison: opts.Comparison,
		includeAll: opts.IncludeZeroBalances,
		nonZero:    make(map[int64]bool, len(accounts)),
	}
	for _, root := range roots {
		b.markNonZero(root, make(map[int64]bool))
	}

	out := make([]TreeNode, 0, len(accounts))
	for _, root := range roots {
		out = b.emit(out, root, 0, make(map[int64]bool))
	}
	return out
}

type treeBuilder struct {
	children   map[int64][]Account
	balances   map[int64]decimal.Decimal
	comparison map[int64]decimal.Decimal
	includeAll bool
	nonZero    map[int64]bool
}

// markNonZero records, per account, whether it or any descendant carries a
// nonzero current or comparison balance. seen guards against parent cycles in
// corrupt data.
func (b *treeBuilder) markNonZero(acc Account, seen map[int64]bool) bool {
	if seen[acc.ID] {
		return false
	}
	seen[acc.ID] = true
	found := !b.balances[acc.ID].IsZero()
	if b.comparison != nil && !b.comparison[acc.ID].IsZero() {
		found = true
	}
	for _, child := range b.children[acc.ID] {
		if b.markNonZero(child, seen) {
			found = true
		}
	}
	b.nonZero[acc.ID] = found
	return found
}

func (b *treeBuilder) descendantTotal(id int64, source map[int64]decimal.Decimal, seen map[int64]bool) decimal.Decimal {
	total := decimal.Zero
	for _, child := range b.children[id] {
		if seen[child.ID] {
			continue
		}
		seen[child.ID] = true
		total = total.Add(source[child.ID]).Add(b.descendantTotal(child.ID, source, seen))
	}
	return total
}

func (b *treeBuilder) emit(out []TreeNode, acc Account, level int, seen map[int64]bool) []TreeNode {
	if seen[acc.ID] {
		return out
	}
	seen[acc.ID] = true
	if !b.includeAll && !b.nonZero[acc.ID] {
		return out
	}

	node := TreeNode{
		Account:        acc,
		OwnBalance:     b.balances[acc.ID],
		Balance:        b.balances[acc.ID],
		Level:          level,
		Classification: Classify(acc),
		IsSubAccount:   acc.IsSubAccount(),
	}
	if b.comparison != nil {
		node.HasComparison = true
		node.OwnComparison = b.comparison[acc.ID]
		node.Comparison = node.OwnComparison
	}
	kids := b.children[acc.ID]
	if level == 0 && len(kids) > 0 {
		node.Balance = node.OwnBalance.Add(b.descendantTotal(acc.ID, b.balances, map[int64]bool{acc.ID: true}))
		if b.comparison != nil {
			node.Comparison = node.OwnComparison.Add(b.descendantTotal(acc.ID, b.comparison, map[int64]bool{acc.ID: true}))
		}
	}

	idx := len(out)
	out = append(out, node)
	for _, child := range kids {
		before := len(out)
		out = b.emit(out, child, level+1, seen)
		if len(out) > before {
			out[idx].ChildIDs = append(out[idx].ChildIDs, child.ID)
		}
	}
	return out
}

// sortSiblings orders by account number when both accounts carry one and by
// name otherwise.
func sortSiblings(accounts []Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		a, b := accounts[i], accounts[j]
		if a.Number != "" && b.Number != "" {
			if a.Number != b.Number {
				return a.Number < b.Number
			}
			return a.ID < b.ID
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}
