// Package workbook decodes spreadsheet files into rows of primitive cell values.
package workbook

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Rows is a decoded sheet: each cell is a string, float64 or bool.
// Rows may be ragged.
type Rows [][]any

// Options configures decoding.
type Options struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ErrUnsupportedFormat is returned for files that are neither XLSX nor CSV.
var ErrUnsupportedFormat = eris.New("workbook: unsupported file format")

// Decode reads the file at path, choosing the decoder from its extension.
func Decode(path string, opts Options) (Rows, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "workbook: read %s", path)
	}
	return DecodeBytes(filepath.Base(path), data, opts)
}

// DecodeBytes decodes an in-memory file; name is only used for its extension.
func DecodeBytes(name string, data []byte, opts Options) (Rows, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return DecodeXLSX(data, opts)
	case ".csv", ".txt":
		return DecodeCSV(bytes.NewReader(data))
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "workbook: %q", name)
	}
}

// DecodeXLSX decodes one sheet of an XLSX workbook. Numeric cells decode to
// float64, boolean cells to bool, everything else to its display string.
func DecodeXLSX(data []byte, opts Options) (Rows, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "workbook: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	rows := make(Rows, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, rowToValues(row))
	}
	return rows, nil
}

// DecodeCSV decodes a CSV stream. Every cell is a string; the normalizers
// coerce numbers themselves.
func DecodeCSV(r io.Reader) (Rows, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	var rows Rows
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "workbook: read csv row")
		}
		row := make([]any, len(record))
		for i, field := range record {
			row[i] = strings.TrimPrefix(field, "\ufeff")
		}
		rows = append(rows, row)
	}
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("workbook: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("workbook: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToValues(row *xlsx.Row) []any {
	cells := make([]any, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cellValue(cell)
	}
	return cells
}

func cellValue(cell *xlsx.Cell) any {
	if cell == nil {
		return ""
	}
	switch cell.Type() {
	case xlsx.CellTypeNumeric:
		if f, err := cell.Float(); err == nil {
			return f
		}
	case xlsx.CellTypeBool:
		return cell.Bool()
	}
	return cell.String()
}
