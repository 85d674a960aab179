package sheet

import (
	"encoding/json"
	"strings"

	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/workbook"
)

type role int

const (
	roleName role = iota
	roleShortName
	roleType
	roleFillColor
	roleBorderColor
	roleBorderWidth
	roleOpacity
	roleLocations
	roleState
	roleDriveTimePoints
	roleRadiusPoints
	roleLatitude
	roleLongitude
	roleRadius
	roleMinutes
	roleDescription
)

// headerRules bind header text to column roles. Rules are tried in order and
// each header takes the first unbound role it matches.
var headerRules = []struct {
	role  role
	all   []string
	anyOf []string
}{
	{role: roleShortName, all: []string{"short"}},
	{role: roleDriveTimePoints, all: []string{"drive", "point"}},
	{role: roleRadiusPoints, all: []string{"radius", "point"}},
	{role: roleFillColor, all: []string{"fill", "color"}},
	{role: roleBorderColor, all: []string{"border", "color"}},
	{role: roleBorderWidth, all: []string{"border"}, anyOf: []string{"width", "weight"}},
	{role: roleOpacity, anyOf: []string{"opacity", "transparency"}},
	{role: roleName, anyOf: []string{"name"}},
	{role: roleType, anyOf: []string{"type", "definition"}},
	{role: roleLocations, anyOf: []string{"location"}},
	{role: roleState, anyOf: []string{"state"}},
	{role: roleLatitude, anyOf: []string{"latitude", "lat"}},
	{role: roleLongitude, anyOf: []string{"longitude", "lon", "lng"}},
	{role: roleRadius, anyOf: []string{"radius", "miles"}},
	{role: roleMinutes, anyOf: []string{"minute", "drive time", "time"}},
	{role: roleDescription, anyOf: []string{"description", "notes"}},
}

func headerMatches(header string, all, anyOf []string) bool {
	for _, s := range all {
		if !strings.Contains(header, s) {
			return false
		}
	}
	if len(anyOf) == 0 {
		return true
	}
	for _, s := range anyOf {
		if strings.Contains(header, s) {
			return true
		}
	}
	return false
}

// bindHeaders maps each role to the column index of the header that claims it.
func bindHeaders(header []any) map[role]int {
	cols := make(map[role]int)
	for i, cell := range header {
		h := strings.ToLower(text(cell))
		if h == "" {
			continue
		}
		for _, rule := range headerRules {
			if _, bound := cols[rule.role]; bound {
				continue
			}
			if headerMatches(h, rule.all, rule.anyOf) {
				cols[rule.role] = i
				break
			}
		}
	}
	return cols
}

type standardRow struct {
	cells []any
	cols  map[role]int
}

func (r standardRow) cell(ro role) any {
	i, ok := r.cols[ro]
	if !ok || i >= len(r.cells) {
		return nil
	}
	return r.cells[i]
}

func (r standardRow) text(ro role) string {
	return text(r.cell(ro))
}

// NormalizeStandard converts a header-row sheet to drafts. A missing name or
// type column is a *ParseError; rows lacking either value are skipped.
func NormalizeStandard(rows workbook.Rows, opts Options) ([]*model.MarketAreaDraft, error) {
	opts = opts.withDefaults()
	if len(rows) == 0 {
		return nil, &ParseError{Format: FormatStandard, Reason: "sheet is empty"}
	}

	cols := bindHeaders(rows[0])
	var missing []string
	if _, ok := cols[roleName]; !ok {
		missing = append(missing, "name")
	}
	if _, ok := cols[roleType]; !ok {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return nil, &ParseError{
			Format: FormatStandard,
			Reason: "missing required column(s): " + strings.Join(missing, ", "),
		}
	}

	var drafts []*model.MarketAreaDraft
	for _, cells := range rows[1:] {
		row := standardRow{cells: cells, cols: cols}
		name := row.text(roleName)
		rawType := row.text(roleType)
		if name == "" || rawType == "" {
			continue
		}
		drafts = append(drafts, standardDraft(row, name, ResolveType(rawType), opts))
	}
	return drafts, nil
}

func standardDraft(row standardRow, name string, t model.MarketAreaType, opts Options) *model.MarketAreaDraft {
	var d *model.MarketAreaDraft
	switch t {
	case model.TypeRadius:
		d = model.NewRadiusDraft(name, standardRadiusPoints(row, opts))
	case model.TypeDriveTime:
		d = model.NewDriveTimeDraft(name, standardDriveTimePoints(row, opts))
	default:
		state := row.text(roleState)
		if state == "" {
			state = opts.stateFor(t)
		}
		locs := parseLocations(row.cell(roleLocations))
		if len(locs) == 0 {
			locs = []model.LocationDescriptor{{ID: name, Name: name}}
		}
		for i := range locs {
			if locs[i].State == "" {
				locs[i].State = state
			}
		}
		d = model.NewLocationDraft(name, t, locs)
	}

	d.ShortName = row.text(roleShortName)
	d.Description = row.text(roleDescription)
	d.Style = DecodeStyle(StyleCells{
		FillColor:    row.cell(roleFillColor),
		Transparency: row.cell(roleOpacity),
		BorderColor:  row.cell(roleBorderColor),
		BorderWeight: row.cell(roleBorderWidth),
	})
	return d
}

// discreteCenter reads the latitude and longitude columns.
func discreteCenter(row standardRow) (model.Point, bool) {
	lat, ok := number(row.cell(roleLatitude))
	if !ok {
		return model.Point{}, false
	}
	lon, ok := number(row.cell(roleLongitude))
	if !ok {
		return model.Point{}, false
	}
	return model.Point{Latitude: lat, Longitude: lon}, true
}

// standardRadiusPoints prefers the JSON points column, then the discrete
// lat/long/radius columns, then the default center.
func standardRadiusPoints(row standardRow, opts Options) []model.RadiusPoint {
	var pts []model.RadiusPoint
	if s := row.text(roleRadiusPoints); s != "" && json.Unmarshal([]byte(s), &pts) == nil && len(pts) > 0 {
		for i := range pts {
			if len(pts[i].Radii) == 0 {
				pts[i].Radii = []float64{opts.DefaultRadiusMiles}
			}
			if pts[i].Units == "" {
				pts[i].Units = opts.DefaultRadiusUnits
			}
		}
		return pts
	}

	miles, ok := number(row.cell(roleRadius))
	if !ok || miles <= 0 {
		miles = opts.DefaultRadiusMiles
	}
	center, ok := discreteCenter(row)
	if !ok {
		center = opts.DefaultCenter
	}
	return []model.RadiusPoint{opts.radiusPoint(center, miles)}
}

func standardDriveTimePoints(row standardRow, opts Options) []model.DriveTimePoint {
	var pts []model.DriveTimePoint
	if s := row.text(roleDriveTimePoints); s != "" && json.Unmarshal([]byte(s), &pts) == nil && len(pts) > 0 {
		for i := range pts {
			p := &pts[i]
			if p.TravelTimeMinutes <= 0 && len(p.TimeRanges) > 0 {
				p.TravelTimeMinutes = p.TimeRanges[0]
			}
			if p.TravelTimeMinutes <= 0 {
				p.TravelTimeMinutes = opts.DefaultDriveMinutes
			}
			if len(p.TimeRanges) == 0 {
				p.TimeRanges = []float64{p.TravelTimeMinutes}
			}
			if p.Units == "" {
				p.Units = opts.DefaultDriveTimeUnit
			}
		}
		return pts
	}

	minutes, ok := number(row.cell(roleMinutes))
	if !ok || minutes <= 0 {
		minutes = opts.DefaultDriveMinutes
	}
	center, ok := discreteCenter(row)
	if !ok {
		center = opts.DefaultCenter
	}
	return []model.DriveTimePoint{opts.driveTimePoint(center, minutes)}
}

// parseLocations accepts a JSON array of strings, numbers or objects, a
// comma-separated list, a bare number, or an already decoded slice.
func parseLocations(v any) []model.LocationDescriptor {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return locationsFromJSON(t)
	case []string:
		out := make([]model.LocationDescriptor, 0, len(t))
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, model.LocationDescriptor{ID: s, Name: s})
			}
		}
		return out
	case float64, int, int64:
		s := text(t)
		return []model.LocationDescriptor{{ID: s, Name: s}}
	}

	s := text(v)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			return locationsFromJSON(arr)
		}
	}
	var out []model.LocationDescriptor
	for _, id := range splitValues(s) {
		out = append(out, model.LocationDescriptor{ID: id, Name: id})
	}
	return out
}

func locationsFromJSON(arr []any) []model.LocationDescriptor {
	out := make([]model.LocationDescriptor, 0, len(arr))
	for _, el := range arr {
		switch e := el.(type) {
		case map[string]any:
			loc := model.LocationDescriptor{
				ID:    text(e["id"]),
				Name:  text(e["name"]),
				State: text(e["state"]),
			}
			if loc.ID == "" {
				loc.ID = loc.Name
			}
			if loc.Name == "" {
				loc.Name = loc.ID
			}
			if loc.ID != "" {
				out = append(out, loc)
			}
		default:
			if s := text(e); s != "" {
				out = append(out, model.LocationDescriptor{ID: s, Name: s})
			}
		}
	}
	return out
}
