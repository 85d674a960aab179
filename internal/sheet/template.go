package sheet

import (
	"strings"

	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/workbook"
)

// Template layout: labels live in column B, each market area occupies a
// pair of columns starting at column D.
const (
	tplNameRow         = 2
	tplShortNameRow    = 3
	tplTypeRow         = 4
	tplStateRow        = 5
	tplCountyRow       = 6
	tplFillColorRow    = 7
	tplTransparencyRow = 8
	tplBorderColorRow  = 9
	tplBorderWeightRow = 10
	tplLatitudeRow     = 11
	tplLongitudeRow    = 12
	tplDurationRow     = 13
	tplValuesRow       = 14
	tplScanStartRow    = 15
	tplScanRows        = 50

	tplFirstColumn = 3
	tplColumnStep  = 2
)

// TemplateLabels are the column-B labels of the template rows, indexed by row.
var TemplateLabels = map[int]string{
	tplNameRow:         templateNameHdr,
	tplShortNameRow:    "Short Name",
	tplTypeRow:         templateTypeHdr,
	tplStateRow:        "State",
	tplCountyRow:       "County",
	tplFillColorRow:    "Fill Color",
	tplTransparencyRow: "Transparency",
	tplBorderColorRow:  "Border Color",
	tplBorderWeightRow: "Border Weight",
	tplLatitudeRow:     "Latitude",
	tplLongitudeRow:    "Longitude",
	tplDurationRow:     "Radius / Drive Time",
	tplValuesRow:       "Definition Values",
}

// TemplateColumn returns the first column index of the n-th market area.
func TemplateColumn(n int) int {
	return tplFirstColumn + n*tplColumnStep
}

// NormalizeTemplate converts a template-layout sheet to drafts. Columns that
// yield no definition values are dropped and reported as warnings.
func NormalizeTemplate(rows workbook.Rows, opts Options) ([]*model.MarketAreaDraft, []Warning) {
	opts = opts.withDefaults()

	var (
		drafts   []*model.MarketAreaDraft
		warnings []Warning
	)
	width := rowWidth(rows, tplNameRow, tplTypeRow)
	for col := tplFirstColumn; col < width; col += tplColumnStep {
		name := textAt(rows, tplNameRow, col)
		rawType := textAt(rows, tplTypeRow, col)
		if name == "" || rawType == "" {
			continue
		}

		d, warn := templateDraft(rows, col, name, rawType, opts)
		if warn != "" {
			warnings = append(warnings, Warning{Column: col, Name: name, Message: warn})
		}
		if d != nil {
			drafts = append(drafts, d)
		}
	}
	return drafts, warnings
}

func templateDraft(rows workbook.Rows, col int, name, rawType string, opts Options) (*model.MarketAreaDraft, string) {
	t := ResolveType(rawType)
	short := textAt(rows, tplShortNameRow, col)

	// Color cells sometimes pick up the header values when rows are shifted.
	spill := func(v any) any {
		s := text(v)
		if strings.EqualFold(s, name) || strings.EqualFold(s, short) || strings.EqualFold(s, rawType) {
			return nil
		}
		return v
	}
	style := DecodeStyle(StyleCells{
		FillColor:    spill(cellAt(rows, tplFillColorRow, col)),
		Transparency: cellAt(rows, tplTransparencyRow, col),
		BorderColor:  spill(cellAt(rows, tplBorderColorRow, col)),
		BorderWeight: cellAt(rows, tplBorderWeightRow, col),
	})

	var d *model.MarketAreaDraft
	switch t {
	case model.TypeRadius, model.TypeDriveTime:
		center, ok := templateCenter(rows, col)
		if !ok {
			center = opts.DefaultCenter
		}
		duration, ok := number(cellAt(rows, tplDurationRow, col))
		if t == model.TypeRadius {
			if !ok || duration <= 0 {
				duration = opts.DefaultRadiusMiles
			}
			d = model.NewRadiusDraft(name, []model.RadiusPoint{opts.radiusPoint(center, duration)})
		} else {
			if !ok || duration <= 0 {
				duration = opts.DefaultDriveMinutes
			}
			d = model.NewDriveTimeDraft(name, []model.DriveTimePoint{opts.driveTimePoint(center, duration)})
		}
	default:
		state := textAt(rows, tplStateRow, col)
		county := textAt(rows, tplCountyRow, col)
		values := templateValues(rows, col, t, []string{name, short, rawType, state, county})
		if len(values) == 0 && t == model.TypeCounty {
			values = []string{opts.DefaultCounty}
		}
		if len(values) == 0 {
			return nil, "no definition values found; column skipped"
		}
		if state == "" {
			state = opts.stateFor(t)
		}
		locs := make([]model.LocationDescriptor, len(values))
		for i, v := range values {
			locs[i] = model.LocationDescriptor{ID: v, Name: v, State: state}
		}
		d = model.NewLocationDraft(name, t, locs)
	}

	d.ShortName = short
	d.Style = style
	return d, ""
}

func templateCenter(rows workbook.Rows, col int) (model.Point, bool) {
	lat, ok := number(cellAt(rows, tplLatitudeRow, col))
	if !ok || lat < -90 || lat > 90 {
		return model.Point{}, false
	}
	lon, ok := number(cellAt(rows, tplLongitudeRow, col))
	if !ok || lon < -180 || lon > 180 {
		return model.Point{}, false
	}
	return model.Point{Latitude: lat, Longitude: lon}, true
}

// templateValues reads the definition-values row and, when that is empty,
// scans the rows below it across both columns of the pair.
func templateValues(rows workbook.Rows, col int, t model.MarketAreaType, exclude []string) []string {
	if vals := splitValues(textAt(rows, tplValuesRow, col)); len(vals) > 0 {
		return dedupe(vals)
	}

	var vals []string
	for r := tplScanStartRow; r < tplScanStartRow+tplScanRows && r < len(rows); r++ {
		for _, c := range []int{col, col + 1} {
			for _, v := range splitValues(textAt(rows, r, c)) {
				if keepValue(v, t, exclude) {
					vals = append(vals, v)
				}
			}
		}
	}
	return dedupe(vals)
}

func keepValue(v string, t model.MarketAreaType, exclude []string) bool {
	for _, x := range exclude {
		if x != "" && strings.EqualFold(v, x) {
			return false
		}
	}
	if isStyleToken(v) {
		return false
	}
	if isNumeric(v) && !t.IDKeyed() {
		return false
	}
	return true
}

func dedupe(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := vals[:0]
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
