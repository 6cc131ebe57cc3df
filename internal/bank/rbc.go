package bank

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

// RBCParser parses RBC chequing/savings CSV exports.
type RBCParser struct{}

var rbcHeader = []string{
	"Account Type", "Account Number", "Transaction Date", "Cheque Number",
	"Description 1", "Description 2", "CAD$", "USD$",
}

const (
	rbcColDate  = 2
	rbcColDesc1 = 4
	rbcColDesc2 = 5
	rbcColCAD   = 6
	rbcDateFmt  = "1/2/2006"
)

// RBC names its exports csv<digits>.csv.
var rbcFilePattern = regexp.MustCompile(`(?i)^csv\d+\.csv$`)

func (p *RBCParser) ID() string          { return "rbc" }
func (p *RBCParser) DisplayName() string { return "RBC Royal Bank" }

func (p *RBCParser) MatchFilename(name string) bool {
	return rbcFilePattern.MatchString(name)
}

func (p *RBCParser) ScoreContent(rows [][]string) domain.Confidence {
	if len(rows) == 0 {
		return domain.ConfidenceNone
	}
	if headerMatches(rows[0], rbcHeader) {
		return domain.ConfidenceHigh
	}
	// Header drifted but the two distinctive columns are present.
	first := rows[0]
	if containsFold(first, "Account Type") && containsFold(first, "CAD$") {
		return domain.ConfidenceMedium
	}
	return domain.ConfidenceNone
}

func (p *RBCParser) Validate(rows [][]string, _ *domain.ColumnMapping) ([]domain.ValidationError, []string) {
	var errs []domain.ValidationError
	var warnings []string

	if len(rows) == 0 {
		errs = append(errs, domain.ValidationError{Message: "file is empty"})
		return errs, nil
	}

	header := rows[0]
	if len(header) < len(rbcHeader) {
		errs = append(errs, domain.ValidationError{
			Field:   "header",
			Message: fmt.Sprintf("expected at least %d columns, got %d", len(rbcHeader), len(header)),
		})
		return errs, nil
	}

	for i, want := range rbcHeader {
		if !strings.EqualFold(cell(header, i), want) {
			errs = append(errs, domain.ValidationError{
				Field:   "header",
				Message: fmt.Sprintf("column %d: expected %q, got %q", i, want, cell(header, i)),
			})
		}
	}

	if len(header) > len(rbcHeader) {
		warnings = append(warnings, fmt.Sprintf("header has %d extra columns", len(header)-len(rbcHeader)))
	}

	return errs, warnings
}

func (p *RBCParser) ParseRows(fileName string, rows [][]string, _ *domain.ColumnMapping) ([]domain.Transaction, []domain.ParseWarning) {
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

		date, err := parseDate(cell(row, rbcColDate), rbcDateFmt)
		if err != nil {
			skip(rowNum, err.Error())
			continue
		}

		desc := strings.TrimSpace(cell(row, rbcColDesc1) + " " + cell(row, rbcColDesc2))
		if desc == "" {
			skip(rowNum, "missing description")
			continue
		}

		amount, err := parseAmount(cell(row, rbcColCAD))
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

func containsFold(row []string, want string) bool {
	for _, c := range row {
		if strings.EqualFold(strings.TrimSpace(c), want) {
			return true
		}
	}
	return false
}
