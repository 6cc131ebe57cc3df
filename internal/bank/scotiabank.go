package bank

import (
	"fmt"
	"regexp"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

// ScotiabankParser parses Scotiabank chequing CSV exports. Headerless three
// column layout: date, signed amount, description.
type ScotiabankParser struct{}

const (
	scotiaColDate   = 0
	scotiaColAmount = 1
	scotiaColDesc   = 2
	scotiaNumFields = 3
	scotiaDateFmt   = "1/2/2006"
)

var scotiaFilePattern = regexp.MustCompile(`(?i)^(pca|sca|mca)\d*\.csv$`)

func (p *ScotiabankParser) ID() string          { return "scotiabank" }
func (p *ScotiabankParser) DisplayName() string { return "Scotiabank" }

func (p *ScotiabankParser) MatchFilename(name string) bool {
	return scotiaFilePattern.MatchString(name)
}

func (p *ScotiabankParser) ScoreContent(rows [][]string) domain.Confidence {
	if len(rows) == 0 {
		return domain.ConfidenceNone
	}

	matched := 0
	for _, row := range rows {
		if scotiaRowShape(row) {
			matched++
		}
	}

	switch {
	case matched == len(rows):
		return domain.ConfidenceMedium
	case matched > 0:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceNone
	}
}

func scotiaRowShape(row []string) bool {
	if len(row) != scotiaNumFields {
		return false
	}
	if _, err := parseDate(cell(row, scotiaColDate), scotiaDateFmt); err != nil {
		return false
	}
	_, err := parseAmount(cell(row, scotiaColAmount))
	return err == nil
}

func (p *ScotiabankParser) Validate(rows [][]string, _ *domain.ColumnMapping) ([]domain.ValidationError, []string) {
	var errs []domain.ValidationError

	if len(rows) == 0 {
		errs = append(errs, domain.ValidationError{Message: "file is empty"})
		return errs, nil
	}

	first := rows[0]
	if len(first) < scotiaNumFields {
		errs = append(errs, domain.ValidationError{
			Field:   "columns",
			Message: fmt.Sprintf("expected %d columns, got %d", scotiaNumFields, len(first)),
		})
		return errs, nil
	}

	if _, err := parseDate(cell(first, scotiaColDate), scotiaDateFmt); err != nil {
		errs = append(errs, domain.ValidationError{
			Field:   "date",
			Message: "first column is not a M/D/YYYY date",
		})
	}
	if _, err := parseAmount(cell(first, scotiaColAmount)); err != nil {
		errs = append(errs, domain.ValidationError{
			Field:   "amount",
			Message: "second column is not an amount",
		})
	}

	return errs, nil
}

func (p *ScotiabankParser) ParseRows(fileName string, rows [][]string, _ *domain.ColumnMapping) ([]domain.Transaction, []domain.ParseWarning) {
	var txs []domain.Transaction
	var warnings []domain.ParseWarning

	skip := func(row int, msg string) {
		warnings = append(warnings, domain.ParseWarning{FileName: fileName, Row: row, Message: msg})
	}

	for i, row := range rows {
		rowNum := i + 1

		date, err := parseDate(cell(row, scotiaColDate), scotiaDateFmt)
		if err != nil {
			skip(rowNum, err.Error())
			continue
		}

		desc := cell(row, scotiaColDesc)
		if desc == "" {
			skip(rowNum, "missing description")
			continue
		}

		amount, err := parseAmount(cell(row, scotiaColAmount))
		if err != nil {
			skip(rowNum, err.Error())
			continue
		}
		if amount.IsZero() {
			skip(rowNum, "zero amount")
			continue
		}

		out, in := splitSigned(amount)
		txs = append(txs, newTransaction(date, desc, out, in, p.ID(), fileName))
	}

	return txs, warnings
}
