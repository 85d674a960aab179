package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/marketarea-cli/internal/featureservice"
	"github.com/sells-group/marketarea-cli/internal/model"
)

var (
	countySuffixRe = regexp.MustCompile(`(?i)\s*\bcounty$`)
	placeSuffixRe  = regexp.MustCompile(`(?i)\s+(city|town|village|borough|cdp)$`)
	digitsRe       = regexp.MustCompile(`^[0-9]+$`)
)

// zipLength is the width of a full ZCTA code.
const zipLength = 5

// quote escapes s as a SQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CountyName strips a trailing "County" from s.
func CountyName(s string) string {
	return strings.TrimSpace(countySuffixRe.ReplaceAllString(strings.TrimSpace(s), ""))
}

// PlaceName strips a trailing place-kind word (city, town, village, borough,
// CDP) from s.
func PlaceName(s string) string {
	return strings.TrimSpace(placeSuffixRe.ReplaceAllString(strings.TrimSpace(s), ""))
}

// idOf prefers the identifier; nameOf prefers the display name.
func idOf(loc model.LocationDescriptor) string {
	if v := strings.TrimSpace(loc.ID); v != "" {
		return v
	}
	return strings.TrimSpace(loc.Name)
}

func nameOf(loc model.LocationDescriptor) string {
	if v := strings.TrimSpace(loc.Name); v != "" {
		return v
	}
	return strings.TrimSpace(loc.ID)
}

type clauseFunc func(layer featureservice.Layer, loc model.LocationDescriptor) string

var clauseBuilders = map[model.MarketAreaType]clauseFunc{
	model.TypeZip:        zipClause,
	model.TypeCounty:     countyClause,
	model.TypePlace:      placeClause,
	model.TypeTract:      idClause,
	model.TypeBlockGroup: idClause,
	model.TypeBlock:      idClause,
	model.TypeCBSA:       areaClause,
	model.TypeMD:         areaClause,
	model.TypeState:      stateClause,
}

// BuildWhere renders the where clause selecting every location of a draft
// of type t. One clause per location, OR-joined.
func BuildWhere(t model.MarketAreaType, layer featureservice.Layer, locs []model.LocationDescriptor) string {
	build, ok := clauseBuilders[t]
	if !ok {
		build = genericClause
	}
	return joinClauses(layer, locs, build)
}

// PlaceFallbackWhere matches places on the first word of their name only,
// for names the service spells differently.
func PlaceFallbackWhere(layer featureservice.Layer, locs []model.LocationDescriptor) string {
	return joinClauses(layer, locs, func(layer featureservice.Layer, loc model.LocationDescriptor) string {
		words := strings.Fields(PlaceName(nameOf(loc)))
		if len(words) == 0 {
			return ""
		}
		clause := fmt.Sprintf("UPPER(%s) LIKE UPPER(%s)", nameField(layer), quote(words[0]+"%"))
		return withState(layer, loc, clause)
	})
}

func joinClauses(layer featureservice.Layer, locs []model.LocationDescriptor, build clauseFunc) string {
	seen := make(map[string]bool, len(locs))
	var clauses []string
	for _, loc := range locs {
		c := build(layer, loc)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		clauses = append(clauses, c)
	}
	switch len(clauses) {
	case 0:
		return "1=0"
	case 1:
		return clauses[0]
	default:
		return "(" + strings.Join(clauses, ") OR (") + ")"
	}
}

func nameField(layer featureservice.Layer) string {
	if layer.NameField != "" {
		return layer.NameField
	}
	return "NAME"
}

func idFields(layer featureservice.Layer) []string {
	if len(layer.IDFields) > 0 {
		return layer.IDFields
	}
	return []string{"GEOID"}
}

// withState ANDs a state filter onto clause when the location names a
// known state and the layer carries a state field.
func withState(layer featureservice.Layer, loc model.LocationDescriptor, clause string) string {
	if layer.StateField == "" {
		return clause
	}
	fips, ok := StateFIPS(loc.State)
	if !ok {
		return clause
	}
	return fmt.Sprintf("%s AND %s = %s", clause, layer.StateField, quote(fips))
}

func orEquals(fields []string, value string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s = %s", f, quote(value))
	}
	return strings.Join(parts, " OR ")
}

func zipClause(layer featureservice.Layer, loc model.LocationDescriptor) string {
	v := idOf(loc)
	if v == "" {
		return ""
	}
	field := idFields(layer)[0]
	if digitsRe.MatchString(v) && len(v) < zipLength {
		return fmt.Sprintf("%s LIKE %s", field, quote(v+"%"))
	}
	return fmt.Sprintf("%s = %s", field, quote(v))
}

func countyClause(layer featureservice.Layer, loc model.LocationDescriptor) string {
	if id := strings.TrimSpace(loc.ID); digitsRe.MatchString(id) && len(id) == 5 {
		return orEquals(idFields(layer), id)
	}
	name := CountyName(nameOf(loc))
	if name == "" {
		return ""
	}
	clause := fmt.Sprintf("UPPER(%s) LIKE UPPER(%s)", nameField(layer), quote("%"+name+"%"))
	return withState(layer, loc, clause)
}

func placeClause(layer featureservice.Layer, loc model.LocationDescriptor) string {
	name := PlaceName(nameOf(loc))
	if name == "" {
		return ""
	}
	clause := fmt.Sprintf("UPPER(%s) LIKE UPPER(%s)", nameField(layer), quote("%"+name+"%"))
	return withState(layer, loc, clause)
}

// idClause matches the location's code on the layer's id fields only. The
// service rejects queries naming fields a layer lacks, so wider candidate
// sets (FIPS, TRACT_FIPS) belong in the layer's id_fields; the matcher
// checks them regardless.
func idClause(layer featureservice.Layer, loc model.LocationDescriptor) string {
	v := idOf(loc)
	if v == "" {
		return ""
	}
	return orEquals(idFields(layer), v)
}

// areaClause covers CBSAs and metropolitan divisions: codes match on the
// id fields, anything else on the name and, when present, the base name.
func areaClause(layer featureservice.Layer, loc model.LocationDescriptor) string {
	if id := strings.TrimSpace(loc.ID); digitsRe.MatchString(id) {
		return orEquals(idFields(layer), id)
	}
	name := nameOf(loc)
	if name == "" {
		return ""
	}
	pattern := quote("%" + name + "%")
	clause := fmt.Sprintf("UPPER(%s) LIKE UPPER(%s)", nameField(layer), pattern)
	if layer.AltNameField != "" && layer.Type == model.TypeMD {
		clause += fmt.Sprintf(" OR UPPER(%s) LIKE UPPER(%s)", layer.AltNameField, pattern)
	}
	return clause
}

func stateClause(layer featureservice.Layer, loc model.LocationDescriptor) string {
	for _, v := range []string{loc.ID, loc.Name} {
		if fips, ok := StateFIPS(v); ok && layer.StateField != "" {
			return fmt.Sprintf("%s = %s", layer.StateField, quote(fips))
		}
	}
	name := nameOf(loc)
	if name == "" {
		return ""
	}
	return fmt.Sprintf("UPPER(%s) = UPPER(%s)", nameField(layer), quote(name))
}

func genericClause(_ featureservice.Layer, loc model.LocationDescriptor) string {
	v := idOf(loc)
	if v == "" {
		return ""
	}
	text := fmt.Sprintf("NAME = %s OR GEOID = %s", quote(v), quote(v))
	if digitsRe.MatchString(v) {
		return fmt.Sprintf("OBJECTID = %s OR FID = %s OR %s", v, v, text)
	}
	return text
}
