package workbook

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteXLSX writes rows as a single-sheet XLSX workbook. Strings, numbers,
// bools and times keep their cell types; nil leaves the cell blank.
func WriteXLSX(w io.Writer, sheetName string, rows Rows) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "workbook: add sheet %q", sheetName)
	}

	for _, values := range rows {
		row := sheet.AddRow()
		for _, v := range values {
			cell := row.AddCell()
			switch t := v.(type) {
			case nil:
			case string:
				cell.SetString(t)
			case float64:
				cell.SetFloat(t)
			case int:
				cell.SetInt(t)
			case bool:
				cell.SetBool(t)
			case time.Time:
				cell.SetDateTime(t)
			default:
				return eris.Errorf("workbook: unsupported cell value %T", v)
			}
		}
	}

	return eris.Wrap(f.Write(w), "workbook: write xlsx")
}
