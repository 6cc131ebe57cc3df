// Package dedupe flags newly parsed transactions that exactly match an
// already-committed one.
package dedupe

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

// Key is the exact-match duplicate tuple.
type Key struct {
	Date       time.Time
	MatchField string
	NetAmount  decimal.Decimal
}

// String renders the canonical index key. Date is reduced to the calendar
// day and the amount to its normalized decimal string, so equal tuples
// always collide.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Date.Format("2006-01-02"), k.MatchField, k.NetAmount.String())
}

// KeyOf extracts the duplicate tuple from a transaction.
func KeyOf(tx domain.Transaction) Key {
	return Key{Date: tx.Date, MatchField: tx.MatchField, NetAmount: tx.NetAmount}
}

// Index is the caller-supplied set of committed transaction tuples.
type Index map[string]struct{}

// NewIndex builds an index from committed transactions.
func NewIndex(txs []domain.Transaction) Index {
	idx := make(Index, len(txs))
	for _, tx := range txs {
		idx.Add(tx)
	}
	return idx
}

func (idx Index) Add(tx domain.Transaction) {
	idx[KeyOf(tx).String()] = struct{}{}
}

func (idx Index) Contains(tx domain.Transaction) bool {
	_, ok := idx[KeyOf(tx).String()]
	return ok
}

// FindDuplicates returns the ids of new transactions whose (date,
// matchField, netAmount) tuple is present in the existing index. The match
// is exact; no fuzzy tolerance. New transactions are never compared against
// each other, so a legitimately repeated charge within one statement is not
// a duplicate of itself.
func FindDuplicates(newTxs []domain.Transaction, existing Index) map[string]struct{} {
	dups := make(map[string]struct{})
	for _, tx := range newTxs {
		if existing.Contains(tx) {
			dups[tx.ID] = struct{}{}
		}
	}
	return dups
}

// Flag marks duplicates in place with the default reversible action, skip.
func Flag(txs []domain.Transaction, existing Index) {
	for i := range txs {
		if existing.Contains(txs[i]) {
			txs[i].DuplicateFlag = domain.DuplicateFlaggedSkip
		} else {
			txs[i].DuplicateFlag = domain.DuplicateNone
		}
	}
}
