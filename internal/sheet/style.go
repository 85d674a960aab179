package sheet

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/marketarea-cli/internal/model"
)

// StyleCells holds the raw style cells of one market area.
type StyleCells struct {
	FillColor    any
	Transparency any
	BorderColor  any
	BorderWeight any
}

var (
	firstNumberRe = regexp.MustCompile(`-?\d+(\.\d+)?`)
	percentRe     = regexp.MustCompile(`^-?\d+(\.\d+)?\s*%$`)
)

// isNoneToken reports whether a color cell means "no explicit color".
func isNoneToken(s string) bool {
	switch strings.ToUpper(strings.Join(strings.Fields(s), " ")) {
	case "NO FILL", "NO BORDER", "TEXT COLOR", "NONE":
		return true
	}
	return false
}

// isStyleToken reports whether s is style vocabulary rather than a geography value.
func isStyleToken(s string) bool {
	if isNoneToken(s) || percentRe.MatchString(strings.TrimSpace(s)) {
		return true
	}
	return hexColorRe.MatchString(strings.TrimSpace(s)) && strings.HasPrefix(strings.TrimSpace(s), "#")
}

// DecodeStyle parses free-text style cells into a normalized StyleSettings.
// Anything unparseable falls back to the default style value.
func DecodeStyle(c StyleCells) model.StyleSettings {
	s := model.DefaultStyle()
	var noFill, noBorder bool

	if v := text(c.FillColor); v != "" {
		if isNoneToken(v) {
			noFill = true
		} else if hex, ok := parseColor(v); ok {
			s.FillColor = hex
		}
	}

	if v := text(c.BorderColor); v != "" {
		if isNoneToken(v) {
			noBorder = true
		} else if hex, ok := parseColor(v); ok {
			s.BorderColor = hex
		}
	}

	if op, none := decodeOpacity(c.Transparency); none {
		noFill = true
	} else {
		s.FillOpacity = op
	}

	if w, none := decodeWeight(c.BorderWeight); none {
		noBorder = true
	} else {
		s.BorderWidth = w
	}

	if noFill {
		s.FillOpacity = 0
	}
	if noBorder {
		s.BorderWidth = 0
	}
	return s.Normalize()
}

// decodeOpacity returns the opacity for a transparency cell; none is true
// when the cell itself says there is no fill.
func decodeOpacity(v any) (opacity float64, none bool) {
	if f, ok := v.(float64); ok {
		return scaleOpacity(f), false
	}
	str := text(v)
	switch {
	case str == "" || str == "-":
		return model.DefaultFillOpacity, false
	case isNoneToken(str):
		return 0, true
	case strings.HasSuffix(str, "%"):
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(str, "%")), 64)
		if err != nil {
			return model.DefaultFillOpacity, false
		}
		return f / 100, false
	}
	f, ok := number(str)
	if !ok {
		return model.DefaultFillOpacity, false
	}
	return scaleOpacity(f), false
}

// scaleOpacity treats bare numbers above 1 as percentages.
func scaleOpacity(f float64) float64 {
	if f > 1 {
		return f / 100
	}
	return f
}

// decodeWeight parses a border weight cell. Text such as "2 or 3" uses the
// first number found.
func decodeWeight(v any) (width float64, none bool) {
	if f, ok := v.(float64); ok {
		return f, false
	}
	str := text(v)
	if str == "" {
		return model.DefaultBorderWidth, false
	}
	if isNoneToken(str) {
		return 0, true
	}
	if f, ok := number(str); ok {
		return f, false
	}
	m := firstNumberRe.FindString(str)
	if m == "" {
		return model.DefaultBorderWidth, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return model.DefaultBorderWidth, false
	}
	return f, false
}
