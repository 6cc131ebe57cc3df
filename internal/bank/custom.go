package bank

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

// CustomParser handles any layout the user describes with a ColumnMapping.
// It has no filename pattern and no content signature, so it never
// participates in detection; it is only ever selected explicitly.
type CustomParser struct{}

// CustomID is the registry id of the custom mapping parser.
const CustomID = "custom"

// Date layouts tried when the mapping does not pin one down.
var customDateFormats = []string{
	"2006-01-02", "01/02/2006", "1/2/2006", "02/01/2006",
	"Jan 2, 2006", "02 Jan 2006",
}

func (p *CustomParser) ID() string          { return CustomID }
func (p *CustomParser) DisplayName() string { return "Custom mapping" }

func (p *CustomParser) MatchFilename(string) bool { return false }

func (p *CustomParser) ScoreContent([][]string) domain.Confidence {
	return domain.ConfidenceNone
}

func (p *CustomParser) Validate(rows [][]string, mapping *domain.ColumnMapping) ([]domain.ValidationError, []string) {
	var errs []domain.ValidationError

	if len(rows) == 0 {
		errs = append(errs, domain.ValidationError{Message: "file is empty"})
		return errs, nil
	}

	if mapping == nil {
		errs = append(errs, domain.ValidationError{Field: "mapping", Message: "column mapping required"})
		return errs, nil
	}

	if mapping.DateCol < 0 {
		errs = append(errs, domain.ValidationError{Field: "date_col", Message: "date column required"})
	}
	if mapping.DescriptionCol < 0 {
		errs = append(errs, domain.ValidationError{Field: "description_col", Message: "description column required"})
	}

	hasSigned := mapping.AmountCol >= 0
	hasSplit := mapping.AmountOutCol >= 0 || mapping.AmountInCol >= 0
	switch {
	case !hasSigned && !hasSplit:
		errs = append(errs, domain.ValidationError{Field: "amount_col", Message: "an amount column required"})
	case hasSigned && hasSplit:
		errs = append(errs, domain.ValidationError{Field: "amount_col", Message: "use either a signed amount column or debit/credit columns, not both"})
	}

	width := len(rows[0])
	for _, col := range []struct {
		name string
		idx  int
	}{
		{"date_col", mapping.DateCol},
		{"description_col", mapping.DescriptionCol},
		{"amount_col", mapping.AmountCol},
		{"amount_out_col", mapping.AmountOutCol},
		{"amount_in_col", mapping.AmountInCol},
	} {
		if col.idx >= width {
			errs = append(errs, domain.ValidationError{
				Field:   col.name,
				Message: fmt.Sprintf("column %d out of range, file has %d columns", col.idx, width),
			})
		}
	}

	return errs, nil
}

func (p *CustomParser) ParseRows(fileName string, rows [][]string, mapping *domain.ColumnMapping) ([]domain.Transaction, []domain.ParseWarning) {
	var txs []domain.Transaction
	var warnings []domain.ParseWarning

	if mapping == nil {
		return nil, nil
	}

	skip := func(row int, msg string) {
		warnings = append(warnings, domain.ParseWarning{FileName: fileName, Row: row, Message: msg})
	}

	dateFormats := customDateFormats
	if mapping.DateFormat != "" {
		dateFormats = []string{mapping.DateFormat}
	}

	for i, row := range rows {
		if i == 0 && mapping.HasHeader {
			continue
		}
		rowNum := i + 1

		date, err := parseDate(cell(row, mapping.DateCol), dateFormats...)
		if err != nil {
			skip(rowNum, err.Error())
			continue
		}

		desc := cell(row, mapping.DescriptionCol)
		if desc == "" {
			skip(rowNum, "missing description")
			continue
		}

		out, in, err := p.extractAmounts(row, mapping)
		if err != nil {
			skip(rowNum, err.Error())
			continue
		}
		if out.IsZero() && in.IsZero() {
			skip(rowNum, "zero amount")
			continue
		}

		txs = append(txs, newTransaction(date, desc, out, in, p.ID(), fileName))
	}

	return txs, warnings
}

func (p *CustomParser) extractAmounts(row []string, mapping *domain.ColumnMapping) (out, in decimal.Decimal, err error) {
	if mapping.AmountCol >= 0 {
		amount, err := parseAmount(cell(row, mapping.AmountCol))
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		out, in = splitSigned(amount)
		return out, in, nil
	}

	out = decimal.Zero
	in = decimal.Zero
	if mapping.AmountOutCol >= 0 {
		if s := cell(row, mapping.AmountOutCol); s != "" {
			if out, err = parseAmount(s); err != nil {
				return decimal.Zero, decimal.Zero, err
			}
		}
	}
	if mapping.AmountInCol >= 0 {
		if s := cell(row, mapping.AmountInCol); s != "" {
			if in, err = parseAmount(s); err != nil {
				return decimal.Zero, decimal.Zero, err
			}
		}
	}
	if !out.IsZero() && !in.IsZero() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("row has both money out and money in")
	}
	out, in = normalizeDirection(out, in)
	return out, in, nil
}
