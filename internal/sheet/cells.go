package sheet

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/marketarea-cli/internal/workbook"
)

// cellAt returns the raw cell at (row, col), or nil when out of range.
func cellAt(rows workbook.Rows, row, col int) any {
	if row < 0 || row >= len(rows) || col < 0 || col >= len(rows[row]) {
		return nil
	}
	return rows[row][col]
}

// text renders a cell as trimmed text. Whole floats print without a decimal
// point so numeric ZIPs and FIPS codes survive the trip through a spreadsheet.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func textAt(rows workbook.Rows, row, col int) string {
	return text(cellAt(rows, row, col))
}

// number coerces a cell to a float. Strings are parsed after trimming.
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// isNumeric reports whether s parses as a plain number.
func isNumeric(s string) bool {
	_, ok := number(s)
	return ok
}

// splitValues splits a multi-value cell on commas, semicolons and newlines.
func splitValues(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func rowWidth(rows workbook.Rows, indices ...int) int {
	width := 0
	for _, i := range indices {
		if i >= 0 && i < len(rows) && len(rows[i]) > width {
			width = len(rows[i])
		}
	}
	return width
}
