// Package categorize assigns transactions to categories by keyword matching
// against the normalized match field.
package categorize

import (
	"strings"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

// Classify tests the transaction's match field against every category's
// keywords as case-insensitive substrings and sets the classification state:
// no hits leaves it unassigned, one distinct category categorizes it, two or
// more put it in conflict with the matched ids in first-matched order.
// Conflicts are never auto-resolved here; keyword length, match position and
// category order carry no weight.
func Classify(tx *domain.Transaction, categories []domain.Category) {
	var matched []string
	for _, cat := range categories {
		if matchesAny(tx.MatchField, cat.Keywords) {
			matched = append(matched, cat.ID)
		}
	}

	switch len(matched) {
	case 0:
		tx.Classification = domain.ClassificationUnassigned
		tx.CategoryID = nil
		tx.ConflictingCategories = nil
	case 1:
		tx.Classification = domain.ClassificationCategorized
		id := matched[0]
		tx.CategoryID = &id
		tx.ConflictingCategories = nil
	default:
		tx.Classification = domain.ClassificationConflict
		tx.CategoryID = nil
		tx.ConflictingCategories = matched
	}
}

// ClassifyAll classifies a batch in place.
func ClassifyAll(txs []domain.Transaction, categories []domain.Category) {
	for i := range txs {
		Classify(&txs[i], categories)
	}
}

func matchesAny(matchField string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(matchField, kw) {
			return true
		}
	}
	return false
}
