package dedupe

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

func committedTx(id, desc string, y int, m time.Month, d int, net string) domain.Transaction {
	return domain.Transaction{
		ID:         id,
		Date:       domain.NormalizeDate(y, m, d),
		MatchField: domain.NormalizeMatchField(desc),
		NetAmount:  decimal.RequireFromString(net),
	}
}

func TestFindDuplicates_ExactTupleMatch(t *testing.T) {
	existing := NewIndex([]domain.Transaction{
		committedTx("old-1", "STARBUCKS #123", 2024, 1, 5, "-4.75"),
	})

	newTxs := []domain.Transaction{
		committedTx("new-1", "STARBUCKS #123", 2024, 1, 5, "-4.75"),
		committedTx("new-2", "starbucks #123  ", 2024, 1, 5, "-4.75"),
	}

	dups := FindDuplicates(newTxs, existing)

	// Normalization makes the second row the same tuple.
	assert.Contains(t, dups, "new-1")
	assert.Contains(t, dups, "new-2")
}

func TestFindDuplicates_AnyFieldDifferenceClears(t *testing.T) {
	existing := NewIndex([]domain.Transaction{
		committedTx("old-1", "STARBUCKS #123", 2024, 1, 5, "-4.75"),
	})

	newTxs := []domain.Transaction{
		committedTx("date", "STARBUCKS #123", 2024, 1, 6, "-4.75"),
		committedTx("desc", "STARBUCKS #124", 2024, 1, 5, "-4.75"),
		committedTx("amount", "STARBUCKS #123", 2024, 1, 5, "-4.76"),
	}

	dups := FindDuplicates(newTxs, existing)

	assert.Empty(t, dups)
}

func TestFindDuplicates_NewTransactionsNotComparedToEachOther(t *testing.T) {
	// Two identical coffees in one statement are both real.
	newTxs := []domain.Transaction{
		committedTx("a", "STARBUCKS #123", 2024, 1, 5, "-4.75"),
		committedTx("b", "STARBUCKS #123", 2024, 1, 5, "-4.75"),
	}

	dups := FindDuplicates(newTxs, NewIndex(nil))

	assert.Empty(t, dups)
}

func TestFindDuplicates_AmountRepresentationDoesNotMatter(t *testing.T) {
	existing := NewIndex([]domain.Transaction{
		committedTx("old-1", "PAYROLL", 2024, 1, 15, "1500"),
	})

	newTxs := []domain.Transaction{
		committedTx("new-1", "PAYROLL", 2024, 1, 15, "1500.00"),
	}

	dups := FindDuplicates(newTxs, existing)

	assert.Contains(t, dups, "new-1")
}

func TestFlag_MarksSkipByDefault(t *testing.T) {
	existing := NewIndex([]domain.Transaction{
		committedTx("old-1", "STARBUCKS #123", 2024, 1, 5, "-4.75"),
	})

	txs := []domain.Transaction{
		committedTx("dup", "STARBUCKS #123", 2024, 1, 5, "-4.75"),
		committedTx("fresh", "LOBLAWS", 2024, 1, 6, "-88.12"),
	}

	Flag(txs, existing)

	assert.Equal(t, domain.DuplicateFlaggedSkip, txs[0].DuplicateFlag)
	assert.Equal(t, domain.DuplicateNone, txs[1].DuplicateFlag)
}

func TestIndex_AddThenContains(t *testing.T) {
	idx := NewIndex(nil)
	tx := committedTx("x", "SHELL 4411", 2024, 2, 1, "-60.00")

	assert.False(t, idx.Contains(tx))
	idx.Add(tx)
	assert.True(t, idx.Contains(tx))
}
