package bank

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "4.75", want: "4.75"},
		{name: "negative", input: "-12.99", want: "-12.99"},
		{name: "currency symbol", input: "$1,234.56", want: "1234.56"},
		{name: "parenthesized negative", input: "(45.00)", want: "-45"},
		{name: "spaces", input: " 10.00 ", want: "10"},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseDate_NormalizesToNoonUTC(t *testing.T) {
	d, err := parseDate("1/5/2024", "1/2/2006")
	require.NoError(t, err)

	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.January, d.Month())
	assert.Equal(t, 5, d.Day())
	assert.Equal(t, 12, d.Hour())
	assert.Equal(t, time.UTC, d.Location())
}

func TestNewTransaction_DerivedFields(t *testing.T) {
	date := domain.NormalizeDate(2024, time.January, 5)
	tx := newTransaction(date, "  Starbucks #123 ", decimal.RequireFromString("4.75"), decimal.Zero, "rbc", "csv123.csv")

	assert.Equal(t, "Starbucks #123", tx.Description)
	assert.Equal(t, "STARBUCKS #123", tx.MatchField)
	assert.Equal(t, "-4.75", tx.NetAmount.String())
	assert.Equal(t, domain.ClassificationUnassigned, tx.Classification)
	assert.Equal(t, domain.DuplicateNone, tx.DuplicateFlag)
	assert.NotEmpty(t, tx.ID)
}

func TestRBCParser_ParseRows(t *testing.T) {
	p := &RBCParser{}
	rows := [][]string{
		{"Account Type", "Account Number", "Transaction Date", "Cheque Number", "Description 1", "Description 2", "CAD$", "USD$"},
		{"Chequing", "012345", "1/5/2024", "", "STARBUCKS", "#123", "-4.75", ""},
		{"Chequing", "012345", "1/6/2024", "", "PAYROLL", "DEPOSIT", "1500.00", ""},
		{"Chequing", "012345", "not a date", "", "BROKEN", "", "-1.00", ""},
	}

	txs, warnings := p.ParseRows("csv123.csv", rows, nil)

	require.Len(t, txs, 2)
	assert.Equal(t, "STARBUCKS #123", txs[0].Description)
	assert.Equal(t, "4.75", txs[0].AmountOut.String())
	assert.True(t, txs[0].AmountIn.IsZero())
	assert.Equal(t, "1500", txs[1].AmountIn.String())
	assert.Equal(t, "rbc", txs[0].Source)

	require.Len(t, warnings, 1)
	assert.Equal(t, 4, warnings[0].Row)
}

func TestRBCParser_Validate(t *testing.T) {
	p := &RBCParser{}

	errs, _ := p.Validate([][]string{
		{"Account Type", "Account Number", "Transaction Date", "Cheque Number", "Description 1", "Description 2", "CAD$", "USD$"},
	}, nil)
	assert.Empty(t, errs)

	errs, _ = p.Validate([][]string{{"Date", "Description", "Amount"}}, nil)
	assert.NotEmpty(t, errs)

	errs, _ = p.Validate(nil, nil)
	assert.NotEmpty(t, errs)
}

func TestTDParser_ParseRows(t *testing.T) {
	p := &TDParser{}
	rows := [][]string{
		{"01/05/2024", "STARBUCKS #123", "4.75", "", "995.25"},
		{"01/06/2024", "PAYROLL DEPOSIT", "", "1500.00", "2495.25"},
		{"01/07/2024", "BOTH SIDES", "5.00", "5.00", "2495.25"},
		{"01/08/2024", "NO AMOUNTS", "", "", "2495.25"},
	}

	txs, warnings := p.ParseRows("accountactivity.csv", rows, nil)

	require.Len(t, txs, 2)
	assert.Equal(t, "4.75", txs[0].AmountOut.String())
	assert.Equal(t, "1500", txs[1].AmountIn.String())
	assert.Len(t, warnings, 2)
}

func TestTDParser_NegativeSidesFlipDirection(t *testing.T) {
	p := &TDParser{}
	rows := [][]string{
		{"01/05/2024", "REFUND", "-4.75", "", "995.25"},
		{"01/06/2024", "CHARGEBACK", "", "-10.00", "985.25"},
	}

	txs, warnings := p.ParseRows("accountactivity.csv", rows, nil)

	require.Len(t, txs, 2)
	assert.Empty(t, warnings)

	// Negative debit is money in.
	assert.True(t, txs[0].AmountOut.IsZero())
	assert.Equal(t, "4.75", txs[0].AmountIn.String())
	assert.Equal(t, "4.75", txs[0].NetAmount.String())

	// Negative credit is money out.
	assert.Equal(t, "10", txs[1].AmountOut.String())
	assert.True(t, txs[1].AmountIn.IsZero())
	assert.Equal(t, "-10", txs[1].NetAmount.String())
}

func TestScotiabankParser_ParseRows(t *testing.T) {
	p := &ScotiabankParser{}
	rows := [][]string{
		{"1/5/2024", "-4.75", "STARBUCKS #123"},
		{"1/6/2024", "1500.00", "PAYROLL DEPOSIT"},
		{"1/7/2024", "0.00", "ZERO ROW"},
	}

	txs, warnings := p.ParseRows("pca.csv", rows, nil)

	require.Len(t, txs, 2)
	assert.Equal(t, "4.75", txs[0].AmountOut.String())
	assert.Equal(t, "1500", txs[1].AmountIn.String())
	assert.Len(t, warnings, 1)
}

func TestAmexParser_ChargeConventionInverted(t *testing.T) {
	p := &AmexParser{}
	rows := [][]string{
		{"Date", "Description", "Amount"},
		{"05 Jan 2024", "STARBUCKS #123", "4.75"},
		{"06 Jan 2024", "PAYMENT RECEIVED", "-100.00"},
	}

	txs, warnings := p.ParseRows("activity.csv", rows, nil)

	require.Len(t, txs, 2)
	assert.Empty(t, warnings)
	// Positive amex amount is a charge: money out.
	assert.Equal(t, "4.75", txs[0].AmountOut.String())
	assert.Equal(t, "-4.75", txs[0].NetAmount.String())
	assert.Equal(t, "100", txs[1].AmountIn.String())
}

func TestCustomParser_MappedColumns(t *testing.T) {
	p := &CustomParser{}
	mapping := domain.DefaultColumnMapping()
	mapping.DateCol = 0
	mapping.DescriptionCol = 1
	mapping.AmountOutCol = 2

	rows := [][]string{
		{"2024-01-05", "STARBUCKS #123", "4.75"},
	}

	txs, warnings := p.ParseRows("export.csv", rows, &mapping)

	require.Len(t, txs, 1)
	assert.Empty(t, warnings)

	tx := txs[0]
	assert.Equal(t, domain.NormalizeDate(2024, time.January, 5), tx.Date)
	assert.Equal(t, "STARBUCKS #123", tx.Description)
	assert.Equal(t, "STARBUCKS #123", tx.MatchField)
	assert.Equal(t, "4.75", tx.AmountOut.String())
	assert.True(t, tx.AmountIn.IsZero())
	assert.Equal(t, "-4.75", tx.NetAmount.String())
}

func TestCustomParser_NegativeSplitColumnsFlipDirection(t *testing.T) {
	p := &CustomParser{}
	mapping := domain.DefaultColumnMapping()
	mapping.DateCol = 0
	mapping.DescriptionCol = 1
	mapping.AmountOutCol = 2
	mapping.AmountInCol = 3

	rows := [][]string{
		{"2024-01-05", "REFUND", "-4.75", ""},
		{"2024-01-06", "CHARGEBACK", "", "-10.00"},
	}

	txs, warnings := p.ParseRows("export.csv", rows, &mapping)

	require.Len(t, txs, 2)
	assert.Empty(t, warnings)

	assert.True(t, txs[0].AmountOut.IsZero())
	assert.Equal(t, "4.75", txs[0].AmountIn.String())

	assert.Equal(t, "10", txs[1].AmountOut.String())
	assert.True(t, txs[1].AmountIn.IsZero())
}

func TestCustomParser_SignedAmountColumn(t *testing.T) {
	p := &CustomParser{}
	mapping := domain.DefaultColumnMapping()
	mapping.DateCol = 0
	mapping.DescriptionCol = 1
	mapping.AmountCol = 2
	mapping.HasHeader = true

	rows := [][]string{
		{"date", "desc", "amount"},
		{"2024-01-05", "COFFEE", "-4.75"},
		{"2024-01-06", "SALARY", "1500.00"},
	}

	txs, warnings := p.ParseRows("export.csv", rows, &mapping)

	require.Len(t, txs, 2)
	assert.Empty(t, warnings)
	assert.Equal(t, "4.75", txs[0].AmountOut.String())
	assert.Equal(t, "1500", txs[1].AmountIn.String())
}

func TestCustomParser_ValidateMapping(t *testing.T) {
	p := &CustomParser{}
	rows := [][]string{{"2024-01-05", "COFFEE", "4.75"}}

	errs, _ := p.Validate(rows, nil)
	require.NotEmpty(t, errs)

	mapping := domain.DefaultColumnMapping()
	mapping.DateCol = 0
	mapping.DescriptionCol = 1
	mapping.AmountCol = 9 // out of range
	errs, _ = p.Validate(rows, &mapping)
	assert.NotEmpty(t, errs)

	mapping.AmountCol = 2
	errs, _ = p.Validate(rows, &mapping)
	assert.Empty(t, errs)
}
