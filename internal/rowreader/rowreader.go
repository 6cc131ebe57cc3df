// Package rowreader turns a statement file into an ordered sequence of raw
// rows. It knows delimited text and spreadsheet formats, nothing about banks.
package rowreader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

// Reader yields one row of cell values at a time. Next returns io.EOF after
// the last row.
type Reader interface {
	Next() ([]string, error)
	Close() error
}

// Open builds a Reader for the file content based on its extension. A file
// that cannot be decoded at all yields a domain.ReadError. Callers that need
// to restart simply call Open again; content is held in memory by the caller.
func Open(fileName string, content []byte) (Reader, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm", ".xls":
		return openXLSX(fileName, content)
	default:
		return openCSV(fileName, content), nil
	}
}

// ReadPrefix reads up to n rows then stops. Used by bank detection to keep
// latency bounded regardless of file size.
func ReadPrefix(fileName string, content []byte, n int) ([][]string, error) {
	r, err := Open(fileName, content)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var rows [][]string
	for len(rows) < n {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadAll reads every row in the file.
func ReadAll(fileName string, content []byte) ([][]string, error) {
	r, err := Open(fileName, content)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var rows [][]string
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type csvRowReader struct {
	fileName string
	reader   *csv.Reader
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func openCSV(fileName string, content []byte) *csvRowReader {
	content = bytes.TrimPrefix(content, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(content))
	cr.FieldsPerRecord = -1 // bank exports have ragged rows
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	return &csvRowReader{fileName: fileName, reader: cr}
}

func (r *csvRowReader) Next() ([]string, error) {
	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, &domain.ReadError{FileName: r.fileName, Err: err}
		}
		if isBlankRow(record) {
			continue
		}
		out := make([]string, len(record))
		copy(out, record)
		return out, nil
	}
}

func (r *csvRowReader) Close() error { return nil }

type xlsxRowReader struct {
	fileName string
	file     *excelize.File
	rows     *excelize.Rows
}

func openXLSX(fileName string, content []byte) (*xlsxRowReader, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, &domain.ReadError{FileName: fileName, Err: err}
	}

	sheet := f.GetSheetName(0)
	if sheet == "" {
		f.Close()
		return nil, &domain.ReadError{FileName: fileName, Err: errors.New("workbook has no sheets")}
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, &domain.ReadError{FileName: fileName, Err: err}
	}

	return &xlsxRowReader{fileName: fileName, file: f, rows: rows}, nil
}

func (r *xlsxRowReader) Next() ([]string, error) {
	for r.rows.Next() {
		cols, err := r.rows.Columns()
		if err != nil {
			return nil, &domain.ReadError{FileName: r.fileName, Err: err}
		}
		if isBlankRow(cols) {
			continue
		}
		return cols, nil
	}
	if err := r.rows.Error(); err != nil {
		return nil, &domain.ReadError{FileName: r.fileName, Err: err}
	}
	return nil, io.EOF
}

func (r *xlsxRowReader) Close() error {
	r.rows.Close()
	return r.file.Close()
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
