package sheet

import (
	"strings"

	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/workbook"
)

// TemplateRows lays drafts out in the template format, one column pair per
// draft. With no drafts it yields the blank template. The result reads back
// through NormalizeTemplate.
func TemplateRows(drafts []*model.MarketAreaDraft) workbook.Rows {
	width := TemplateColumn(len(drafts))
	if width < TemplateColumn(1) {
		width = TemplateColumn(1)
	}
	rows := make(workbook.Rows, tplValuesRow+1)
	for i := range rows {
		rows[i] = make([]any, width)
	}

	rows[0][0] = templateTitle
	for r, label := range TemplateLabels {
		rows[r][templateLabelCol] = label
	}

	for i, d := range drafts {
		col := TemplateColumn(i)
		set := func(row int, v any) { rows[row][col] = v }

		set(tplNameRow, d.Name)
		set(tplShortNameRow, d.ShortName)
		set(tplTypeRow, string(d.Type))
		setStyle(set, d.Style)

		switch d.Type {
		case model.TypeRadius:
			if pts := d.RadiusPoints(); len(pts) > 0 {
				set(tplLatitudeRow, pts[0].Center.Latitude)
				set(tplLongitudeRow, pts[0].Center.Longitude)
				if len(pts[0].Radii) > 0 {
					set(tplDurationRow, pts[0].Radii[0])
				}
			}
		case model.TypeDriveTime:
			if pts := d.DriveTimePoints(); len(pts) > 0 {
				set(tplLatitudeRow, pts[0].Center.Latitude)
				set(tplLongitudeRow, pts[0].Center.Longitude)
				set(tplDurationRow, pts[0].TravelTimeMinutes)
			}
		default:
			locs := d.Locations()
			values := make([]string, len(locs))
			for j, loc := range locs {
				values[j] = loc.ID
				if values[j] == "" {
					values[j] = loc.Name
				}
			}
			if len(locs) > 0 {
				set(tplStateRow, locs[0].State)
			}
			set(tplValuesRow, strings.Join(values, ", "))
		}
	}
	return rows
}

func setStyle(set func(int, any), s model.StyleSettings) {
	set(tplFillColorRow, s.FillColor)
	set(tplBorderColorRow, s.BorderColor)
	if s.NoFill {
		set(tplTransparencyRow, "No Fill")
	} else {
		set(tplTransparencyRow, s.FillOpacity)
	}
	if s.NoBorder {
		set(tplBorderWeightRow, "No Border")
	} else {
		set(tplBorderWeightRow, s.BorderWidth)
	}
}
