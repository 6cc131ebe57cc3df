package bank

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

// AmexParser parses American Express activity exports (CSV or XLSX). Header
// row Date, Description, Amount; a positive amount is a charge.
type AmexParser struct{}

var amexHeader = []string{"Date", "Description", "Amount"}

const (
	amexColDate   = 0
	amexColDesc   = 1
	amexColAmount = 2
)

var amexDateFormats = []string{"02 Jan 2006", "01/02/2006", "2006-01-02"}

var amexFilePattern = regexp.MustCompile(`(?i)^(activity|summary).*\.(csv|xlsx?)$`)

func (p *AmexParser) ID() string          { return "amex" }
func (p *AmexParser) DisplayName() string { return "American Express" }

func (p *AmexParser) MatchFilename(name string) bool {
	return amexFilePattern.MatchString(name)
}

func (p *AmexParser) ScoreContent(rows [][]string) domain.Confidence {
	if len(rows) == 0 {
		return domain.ConfidenceNone
	}
	if headerMatches(rows[0], amexHeader) {
		return domain.ConfidenceHigh
	}
	return domain.ConfidenceNone
}

func (p *AmexParser) Validate(rows [][]string, _ *domain.ColumnMapping) ([]domain.ValidationError, []string) {
	var errs []domain.ValidationError
	var warnings []string

	if len(rows) == 0 {
		errs = append(errs, domain.ValidationError{Message: "file is empty"})
		return errs, nil
	}

	header := rows[0]
	if len(header) < len(amexHeader) {
		errs = append(errs, domain.ValidationError{
			Field:   "header",
			Message: fmt.Sprintf("expected at least %d columns, got %d", len(amexHeader), len(header)),
		})
		return errs, nil
	}

	for i, want := range amexHeader {
		if !strings.EqualFold(cell(header, i), want) {
			errs = append(errs, domain.ValidationError{
				Field:   "header",
				Message: fmt.Sprintf("column %d: expected %q, got %q", i, want, cell(header, i)),
			})
		}
	}

	if len(header) > len(amexHeader) {
		warnings = append(warnings, fmt.Sprintf("header has %d extra columns", len(header)-len(amexHeader)))
	}

	return errs, warnings
}

func (p *AmexParser) ParseRows(fileName string, rows [][]string, _ *domain.ColumnMapping) ([]domain.Transaction, []domain.ParseWarning) {
	var txs []domain.Transaction
	var warnings []domain.ParseWarning

	skip := func(row int, msg string) {
		warnings = append(warnings, domain.ParseWarning{FileName: fileName, Row: row, Message: msg})
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		rowNum := i + 1

		date, err := parseDate(cell(row, amexColDate), amexDateFormats...)
		if err != nil {
			skip(rowNum, err.Error())
			continue
		}

		desc := cell(row, amexColDesc)
		if desc == "" {
			skip(rowNum, "missing description")
			continue
		}

		amount, err := parseAmount(cell(row, amexColAmount))
		if err != nil {
			skip(rowNum, err.Error())
			continue
		}
		if amount.IsZero() {
			skip(rowNum, "zero amount")
			continue
		}

		// Charge card convention is inverted: positive means money out.
		out, in := splitSigned(amount.Neg())
		txs = append(txs, newTransaction(date, desc, out, in, p.ID(), fileName))
	}

	return txs, warnings
}
