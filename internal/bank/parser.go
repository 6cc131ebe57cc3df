// Package bank holds the bank-specific statement parsers and the registry
// that detects, validates and dispatches them.
package bank

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

// Parser is one bank's statement format. Implementations declare detection
// signals, validate a file's structure and convert raw rows into canonical
// transactions.
type Parser interface {
	ID() string
	DisplayName() string

	// MatchFilename reports whether the file name matches this bank's
	// distinctive export naming. Used as the detection fast path.
	MatchFilename(name string) bool

	// ScoreContent inspects a bounded row prefix and scores how strongly it
	// resembles this bank's layout.
	ScoreContent(rows [][]string) domain.Confidence

	// Validate checks file structure. Returned ValidationErrors block
	// parsing; warnings are informational.
	Validate(rows [][]string, mapping *domain.ColumnMapping) ([]domain.ValidationError, []string)

	// ParseRows converts raw rows into transactions. Rows that fail
	// required-field extraction are skipped and reported as warnings.
	ParseRows(fileName string, rows [][]string, mapping *domain.ColumnMapping) ([]domain.Transaction, []domain.ParseWarning)
}

// newTransaction assembles a canonical transaction from extracted fields.
// Exactly one of out/in should be nonzero; callers enforce that before
// building.
func newTransaction(date time.Time, description string, out, in decimal.Decimal, bankID, fileName string) domain.Transaction {
	return domain.Transaction{
		ID:             uuid.New().String(),
		Date:           date,
		Description:    strings.TrimSpace(description),
		MatchField:     domain.NormalizeMatchField(description),
		AmountOut:      out,
		AmountIn:       in,
		NetAmount:      in.Sub(out),
		Source:         bankID,
		FileName:       fileName,
		Classification: domain.ClassificationUnassigned,
		DuplicateFlag:  domain.DuplicateNone,
	}
}

// splitSigned turns a signed amount into the out/in pair: negative means
// money out, positive means money in.
func splitSigned(amount decimal.Decimal) (out, in decimal.Decimal) {
	if amount.IsNegative() {
		return amount.Neg(), decimal.Zero
	}
	return decimal.Zero, amount
}

// normalizeDirection folds a negative sign back into direction for
// single-sided debit/credit columns: a negative debit is money in (a refund)
// and a negative credit is money out. Callers guarantee at most one side is
// nonzero; both sides leave non-negative.
func normalizeDirection(out, in decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	switch {
	case out.IsNegative():
		return decimal.Zero, out.Neg()
	case in.IsNegative():
		return in.Neg(), decimal.Zero
	}
	return out, in
}

// parseAmount parses a money cell, tolerating currency symbols, thousands
// separators and parenthesized negatives.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

// parseDate tries each layout in order and normalizes the result to noon UTC.
func parseDate(s string, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.NormalizeDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// cell returns the trimmed value at index i, or "" when the row is short.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// headerMatches compares a row against expected header names,
// case-insensitively, position by position.
func headerMatches(row []string, expected []string) bool {
	if len(row) < len(expected) {
		return false
	}
	for i, want := range expected {
		if !strings.EqualFold(cell(row, i), want) {
			return false
		}
	}
	return true
}
