// Package sheet turns decoded spreadsheet rows into market-area drafts.
package sheet

import (
	"strings"

	"github.com/sells-group/marketarea-cli/internal/model"
)

// typeAliases maps normalized definition-type text directly to a type.
var typeAliases = map[string]model.MarketAreaType{
	"ZIP":                   model.TypeZip,
	"ZIPS":                  model.TypeZip,
	"ZCTA":                  model.TypeZip,
	"ZIP CODE":              model.TypeZip,
	"ZIPCODE":               model.TypeZip,
	"ZIP CODES":             model.TypeZip,
	"COUNTY":                model.TypeCounty,
	"COUNTIES":              model.TypeCounty,
	"TRACT":                 model.TypeTract,
	"TRACTS":                model.TypeTract,
	"CENSUS TRACT":          model.TypeTract,
	"PLACE":                 model.TypePlace,
	"PLACES":                model.TypePlace,
	"CITY":                  model.TypePlace,
	"CBSA":                  model.TypeCBSA,
	"MSA":                   model.TypeCBSA,
	"STATE":                 model.TypeState,
	"STATES":                model.TypeState,
	"MD":                    model.TypeMD,
	"METRO DIVISION":        model.TypeMD,
	"METROPOLITAN DIVISION": model.TypeMD,
	"BLOCK":                 model.TypeBlock,
	"BLOCKS":                model.TypeBlock,
	"CENSUS BLOCK":          model.TypeBlock,
	"BLOCK GROUP":           model.TypeBlockGroup,
	"BLOCKGROUP":            model.TypeBlockGroup,
	"BLOCK GROUPS":          model.TypeBlockGroup,
	"CENSUS BLOCK GROUP":    model.TypeBlockGroup,
	"RADIUS":                model.TypeRadius,
	"DRIVE TIME":            model.TypeDriveTime,
	"DRIVE-TIME":            model.TypeDriveTime,
	"DRIVETIME":             model.TypeDriveTime,
}

// typeFallbacks is tested in order when the alias table misses.
// BLOCK+GROUP must come before bare BLOCK.
var typeFallbacks = []struct {
	all []string
	t   model.MarketAreaType
}{
	{[]string{"ZIP"}, model.TypeZip},
	{[]string{"ZCTA"}, model.TypeZip},
	{[]string{"COUNTY"}, model.TypeCounty},
	{[]string{"BLOCK", "GROUP"}, model.TypeBlockGroup},
	{[]string{"BLOCK"}, model.TypeBlock},
	{[]string{"TRACT"}, model.TypeTract},
	{[]string{"DRIVE"}, model.TypeDriveTime},
	{[]string{"RADIUS"}, model.TypeRadius},
	{[]string{"METRO", "DIV"}, model.TypeMD},
	{[]string{"CBSA"}, model.TypeCBSA},
	{[]string{"MSA"}, model.TypeCBSA},
	{[]string{"PLACE"}, model.TypePlace},
	{[]string{"CITY"}, model.TypePlace},
	{[]string{"STATE"}, model.TypeState},
}

// ResolveType maps free-text definition-type text to a market-area type.
// Unknown or empty input resolves to tract.
func ResolveType(s string) model.MarketAreaType {
	key := strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	if t, ok := typeAliases[key]; ok {
		return t
	}
	for _, fb := range typeFallbacks {
		if containsAll(key, fb.all) {
			return fb.t
		}
	}
	return model.TypeTract
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
