package accounting

import "strings"

// Classification splits balance sheet accounts by liquidity horizon.
type Classification string

const (
	ClassificationCurrent  Classification = "current"
	ClassificationLongTerm Classification = "long-term"
)

// IsDebitNormal reports whether balances of the type grow with debits.
func IsDebitNormal(t AccountType) bool {
	switch t {
	case AccountTypeAsset, AccountTypeExpense, AccountTypeCOGS:
		return true
	default:
		return false
	}
}

var (
	longTermKeywords = []string{
		"equipment", "loan", "mortgage", "long-term", "long term",
		"vehicle", "building", "property", "furniture", "depreciation",
		"investment", "note payable", "notes payable",
	}
	currentKeywords = []string{
		"cash", "bank", "receivable", "payable", "accrued",
		"inventory", "prepaid", "credit card",
	}
)

// Classify returns the explicit classification when set, falling back to
// SuggestClassification.
func Classify(acc Account) Classification {
	switch acc.Classification {
	case ClassificationCurrent, ClassificationLongTerm:
		return acc.Classification
	}
	class, _ := SuggestClassification(acc.Name, acc.Subtype)
	return class
}

// SuggestClassification is a keyword heuristic over the account name and
// subtype. It is best-effort: the bool is false when nothing matched and the
// result is only the current default.
func SuggestClassification(name, subtype string) (Classification, bool) {
	haystack := strings.ToLower(name + " " + subtype)
	for _, kw := range longTermKeywords {
		if strings.Contains(haystack, kw) {
			return ClassificationLongTerm, true
		}
	}
	for _, kw := range currentKeywords {
		if strings.Contains(haystack, kw) {
			return ClassificationCurrent, true
		}
	}
	return ClassificationCurrent, false
}
