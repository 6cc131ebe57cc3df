package bank

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

// TDParser parses TD Canada Trust account activity CSV exports. The file is
// headerless: date, description, debit, credit, running balance.
type TDParser struct{}

const (
	tdColDate    = 0
	tdColDesc    = 1
	tdColDebit   = 2
	tdColCredit  = 3
	tdColBalance = 4
	tdNumFields  = 5
	tdDateFmt    = "01/02/2006"
)

var tdFilePattern = regexp.MustCompile(`(?i)^accountactivity.*\.csv$`)

func (p *TDParser) ID() string          { return "td" }
func (p *TDParser) DisplayName() string { return "TD Canada Trust" }

func (p *TDParser) MatchFilename(name string) bool {
	return tdFilePattern.MatchString(name)
}

func (p *TDParser) ScoreContent(rows [][]string) domain.Confidence {
	if len(rows) == 0 {
		return domain.ConfidenceNone
	}

	matched := 0
	for _, row := range rows {
		if tdRowShape(row) {
			matched++
		}
	}

	switch {
	case matched == len(rows):
		// A headerless layout can never be high confidence.
		return domain.ConfidenceMedium
	case matched > 0:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceNone
	}
}

func tdRowShape(row []string) bool {
	if len(row) < tdNumFields {
		return false
	}
	if _, err := parseDate(cell(row, tdColDate), tdDateFmt); err != nil {
		return false
	}
	_, debitErr := parseAmount(cell(row, tdColDebit))
	_, creditErr := parseAmount(cell(row, tdColCredit))
	return debitErr == nil || creditErr == nil
}

func (p *TDParser) Validate(rows [][]string, _ *domain.ColumnMapping) ([]domain.ValidationError, []string) {
	var errs []domain.ValidationError
	var warnings []string

	if len(rows) == 0 {
		errs = append(errs, domain.ValidationError{Message: "file is empty"})
		return errs, nil
	}

	first := rows[0]
	if len(first) < tdNumFields {
		errs = append(errs, domain.ValidationError{
			Field:   "columns",
			Message: fmt.Sprintf("expected %d columns, got %d", tdNumFields, len(first)),
		})
	} else if _, err := parseDate(cell(first, tdColDate), tdDateFmt); err != nil {
		errs = append(errs, domain.ValidationError{
			Field:   "date",
			Message: "first column is not a MM/DD/YYYY date",
		})
	}

	if len(first) > tdNumFields {
		warnings = append(warnings, fmt.Sprintf("rows have %d extra columns", len(first)-tdNumFields))
	}

	return errs, warnings
}

func (p *TDParser) ParseRows(fileName string, rows [][]string, _ *domain.ColumnMapping) ([]domain.Transaction, []domain.ParseWarning) {
	var txs []domain.Transaction
	var warnings []domain.ParseWarning

	skip := func(row int, msg string) {
		warnings = append(warnings, domain.ParseWarning{FileName: fileName, Row: row, Message: msg})
	}

	for i, row := range rows {
		rowNum := i + 1

		date, err := parseDate(cell(row, tdColDate), tdDateFmt)
		if err != nil {
			skip(rowNum, err.Error())
			continue
		}

		desc := cell(row, tdColDesc)
		if desc == "" {
			skip(rowNum, "missing description")
			continue
		}

		out := decimal.Zero
		in := decimal.Zero
		if s := cell(row, tdColDebit); s != "" {
			if out, err = parseAmount(s); err != nil {
				skip(rowNum, err.Error())
				continue
			}
		}
		if s := cell(row, tdColCredit); s != "" {
			if in, err = parseAmount(s); err != nil {
				skip(rowNum, err.Error())
				continue
			}
		}

		if out.IsZero() == in.IsZero() {
			// Either both empty or both filled; the row is not a single
			// debit-or-credit movement.
			skip(rowNum, "row must have exactly one of debit or credit")
			continue
		}

		// A negatively signed debit is a refund: money in, not out.
		out, in = normalizeDirection(out, in)
		txs = append(txs, newTransaction(date, desc, out, in, p.ID(), fileName))
	}

	return txs, warnings
}
