package sheet

import (
	"strings"

	"github.com/sells-group/marketarea-cli/internal/workbook"
)

// Format is a known spreadsheet layout.
type Format string

// Supported layouts.
const (
	FormatStandard Format = "standard"
	FormatTemplate Format = "template"
)

const (
	detectScanRows   = 20
	templateTitle    = "Market Area Definitions"
	templateNameHdr  = "Full Market Area Name"
	templateTypeHdr  = "Definition Type"
	templateLabelCol = 1
)

// DetectFormat classifies rows as the fixed-row template or the header-row
// standard layout. Only the first 20 rows are inspected.
func DetectFormat(rows workbook.Rows) Format {
	for i := 0; i < len(rows) && i < detectScanRows; i++ {
		a := textAt(rows, i, 0)
		b := textAt(rows, i, templateLabelCol)
		if strings.EqualFold(a, templateTitle) ||
			strings.EqualFold(b, templateNameHdr) ||
			strings.EqualFold(b, templateTypeHdr) {
			return FormatTemplate
		}
	}
	return FormatStandard
}
