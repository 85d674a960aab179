package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/marketarea-cli/internal/featureservice"
	"github.com/sells-group/marketarea-cli/internal/model"
)

// Matcher picks the feature that represents loc, or nil.
type Matcher func(loc model.LocationDescriptor, layer featureservice.Layer, features []featureservice.Feature) *featureservice.Feature

// candidateIDFields are always consulted for ID-keyed types in addition to
// the layer's own id fields.
var candidateIDFields = []string{"GEOID", "FIPS", "TRACT_FIPS", "BLOCKGROUP_FIPS", "BLOCK_FIPS"}

var matchers = map[model.MarketAreaType]Matcher{
	model.TypeZip:        matchZip,
	model.TypeCounty:     matchNamed(CountyName),
	model.TypePlace:      matchNamed(PlaceName),
	model.TypeTract:      matchID,
	model.TypeBlockGroup: matchID,
	model.TypeBlock:      matchID,
	model.TypeState:      matchState,
}

// MatcherFor returns the matching strategy of t.
func MatcherFor(t model.MarketAreaType) Matcher {
	if m, ok := matchers[t]; ok {
		return m
	}
	return matchDefault
}

// fold normalizes a name for comparison: diacritics removed, upper case,
// single spaces.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.Join(strings.Fields(out), " "))
}

func featureNames(layer featureservice.Layer, f featureservice.Feature) []string {
	var names []string
	for _, field := range []string{nameField(layer), layer.AltNameField} {
		if field == "" {
			continue
		}
		if v := f.String(field); v != "" {
			names = append(names, v)
		}
	}
	return names
}

func matchZip(loc model.LocationDescriptor, layer featureservice.Layer, features []featureservice.Feature) *featureservice.Feature {
	want := idOf(loc)
	if want == "" {
		return nil
	}
	prefix := digitsRe.MatchString(want) && len(want) < zipLength
	fields := append(append([]string(nil), idFields(layer)...), nameField(layer))
	for i := range features {
		for _, field := range fields {
			got := features[i].String(field)
			if got == want || (prefix && got != "" && strings.HasPrefix(got, want)) {
				return &features[i]
			}
		}
	}
	return nil
}

// matchNamed prefers a feature whose name equals the location's after trim
// strips the type's suffix, then falls back to containment in either
// direction. Features from another state are rejected.
func matchNamed(trim func(string) string) Matcher {
	return func(loc model.LocationDescriptor, layer featureservice.Layer, features []featureservice.Feature) *featureservice.Feature {
		want := fold(trim(nameOf(loc)))
		if want == "" {
			return nil
		}
		fips, hasState := StateFIPS(loc.State)
		inState := func(f featureservice.Feature) bool {
			if !hasState || layer.StateField == "" {
				return true
			}
			got := f.String(layer.StateField)
			return got == "" || got == fips
		}

		exact := func(got string) bool { return got == want }
		contains := func(got string) bool { return strings.Contains(got, want) || strings.Contains(want, got) }
		for _, accept := range []func(string) bool{exact, contains} {
			for i := range features {
				if !inState(features[i]) {
					continue
				}
				for _, name := range featureNames(layer, features[i]) {
					if got := fold(trim(name)); got != "" && accept(got) {
						return &features[i]
					}
				}
			}
		}
		return nil
	}
}

func matchID(loc model.LocationDescriptor, layer featureservice.Layer, features []featureservice.Feature) *featureservice.Feature {
	want := idOf(loc)
	if want == "" {
		return nil
	}
	fields := append(append([]string(nil), idFields(layer)...), candidateIDFields...)
	for i := range features {
		for _, field := range fields {
			if features[i].String(field) == want {
				return &features[i]
			}
		}
	}
	return nil
}

func matchState(loc model.LocationDescriptor, layer featureservice.Layer, features []featureservice.Feature) *featureservice.Feature {
	for _, v := range []string{loc.ID, loc.Name} {
		info, ok := lookupState(v)
		if !ok {
			continue
		}
		for i := range features {
			f := features[i]
			if (layer.StateField != "" && f.String(layer.StateField) == info.FIPS) ||
				(layer.AbbrField != "" && strings.EqualFold(f.String(layer.AbbrField), info.Abbr)) ||
				strings.EqualFold(f.String(nameField(layer)), info.Name) {
				return &features[i]
			}
		}
	}
	return matchDefault(loc, layer, features)
}

// matchDefault accepts an exact identifier on any id field or a
// case-insensitive name containing the location's name.
func matchDefault(loc model.LocationDescriptor, layer featureservice.Layer, features []featureservice.Feature) *featureservice.Feature {
	id := strings.TrimSpace(loc.ID)
	name := fold(nameOf(loc))
	fields := append(append([]string(nil), idFields(layer)...), "OBJECTID", "FID")
	for i := range features {
		if id != "" {
			for _, field := range fields {
				if features[i].String(field) == id {
					return &features[i]
				}
			}
		}
		if name == "" {
			continue
		}
		for _, n := range featureNames(layer, features[i]) {
			if strings.Contains(fold(n), name) {
				return &features[i]
			}
		}
	}
	return nil
}
