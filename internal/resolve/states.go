package resolve

import (
	"fmt"
	"strconv"
	"strings"
)

type stateInfo struct {
	Name string
	Abbr string
	FIPS string
}

var states = []stateInfo{
	{"Alabama", "AL", "01"},
	{"Alaska", "AK", "02"},
	{"Arizona", "AZ", "04"},
	{"Arkansas", "AR", "05"},
	{"California", "CA", "06"},
	{"Colorado", "CO", "08"},
	{"Connecticut", "CT", "09"},
	{"Delaware", "DE", "10"},
	{"District of Columbia", "DC", "11"},
	{"Florida", "FL", "12"},
	{"Georgia", "GA", "13"},
	{"Hawaii", "HI", "15"},
	{"Idaho", "ID", "16"},
	{"Illinois", "IL", "17"},
	{"Indiana", "IN", "18"},
	{"Iowa", "IA", "19"},
	{"Kansas", "KS", "20"},
	{"Kentucky", "KY", "21"},
	{"Louisiana", "LA", "22"},
	{"Maine", "ME", "23"},
	{"Maryland", "MD", "24"},
	{"Massachusetts", "MA", "25"},
	{"Michigan", "MI", "26"},
	{"Minnesota", "MN", "27"},
	{"Mississippi", "MS", "28"},
	{"Missouri", "MO", "29"},
	{"Montana", "MT", "30"},
	{"Nebraska", "NE", "31"},
	{"Nevada", "NV", "32"},
	{"New Hampshire", "NH", "33"},
	{"New Jersey", "NJ", "34"},
	{"New Mexico", "NM", "35"},
	{"New York", "NY", "36"},
	{"North Carolina", "NC", "37"},
	{"North Dakota", "ND", "38"},
	{"Ohio", "OH", "39"},
	{"Oklahoma", "OK", "40"},
	{"Oregon", "OR", "41"},
	{"Pennsylvania", "PA", "42"},
	{"Rhode Island", "RI", "44"},
	{"South Carolina", "SC", "45"},
	{"South Dakota", "SD", "46"},
	{"Tennessee", "TN", "47"},
	{"Texas", "TX", "48"},
	{"Utah", "UT", "49"},
	{"Vermont", "VT", "50"},
	{"Virginia", "VA", "51"},
	{"Washington", "WA", "53"},
	{"West Virginia", "WV", "54"},
	{"Wisconsin", "WI", "55"},
	{"Wyoming", "WY", "56"},
	{"Puerto Rico", "PR", "72"},
}

var stateIndex = func() map[string]stateInfo {
	m := make(map[string]stateInfo, len(states)*3)
	for _, s := range states {
		m[strings.ToUpper(s.Name)] = s
		m[s.Abbr] = s
		m[s.FIPS] = s
	}
	return m
}()

func lookupState(s string) (stateInfo, bool) {
	key := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	if key == "" {
		return stateInfo{}, false
	}
	if n, err := strconv.Atoi(key); err == nil && n > 0 && n < 100 {
		key = fmt.Sprintf("%02d", n)
	}
	info, ok := stateIndex[key]
	return info, ok
}

// StateFIPS maps a state name, USPS abbreviation or FIPS code to its
// two-digit FIPS code.
func StateFIPS(s string) (string, bool) {
	info, ok := lookupState(s)
	return info.FIPS, ok
}

// StateAbbr maps a state name, abbreviation or FIPS code to its USPS
// abbreviation.
func StateAbbr(s string) (string, bool) {
	info, ok := lookupState(s)
	return info.Abbr, ok
}
