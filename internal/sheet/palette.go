package sheet

import (
	"regexp"
	"strconv"
	"strings"
)

// PaletteColor is one entry of the numbered brand color key used in templates.
type PaletteColor struct {
	Key  int
	Name string
	Hex  string
}

// Palette is the numbered color key printed on the import template.
var Palette = []PaletteColor{
	{1, "TCG Red", "#FF0000"},
	{2, "TCG Blue", "#0066FF"},
	{3, "Carbon Gray Dark", "#3A3838"},
	{4, "TCG Red Dark", "#BF0000"},
	{5, "TCG Orange", "#FFAB65"},
	{6, "TCG Green", "#B3FFC4"},
	{7, "TCG Cyan", "#39FFFF"},
	{8, "TCG Purple", "#5C00B8"},
	{9, "Pink", "#FF47CF"},
	{10, "Forest Green", "#4C7A1D"},
	{11, "Astronaut Blue", "#054A63"},
	{12, "Brown", "#94703C"},
	{13, "Yellow", "#FFFF99"},
	{14, "Carbon Gray", "#757171"},
	{15, "Rust", "#8E2F00"},
	{16, "TCG Green Dark", "#00BF2C"},
	{17, "TCG Purple Dark", "#5C00B8"},
	{18, "TCG Blue Dark", "#003380"},
	{19, "TCG Cyan Dark", "#009B9B"},
	{20, "Rust Dark", "#5C1F00"},
	{21, "Carbon Gray Light", "#AEAAAA"},
	{22, "Gray Light", "#F2F2F2"},
	{23, "Black", "#000000"},
	{24, "White", "#FFFFFF"},
	{25, "TCG Orange Light", "#FFCCA2"},
	{26, "TCG Green Light", "#CCFFD8"},
	{27, "TCG Cyan Light", "#AEFFFF"},
	{28, "TCG Purple Light", "#9D3EFD"},
	{29, "Pink Light", "#FCB2EC"},
	{30, "Forest Green Light", "#6FB32B"},
	{31, "Astronaut Blue Light", "#087CA7"},
	{32, "Brown Light", "#D1B68F"},
	{33, "Yellow Light", "#FFFFD9"},
}

var (
	paletteByKey  = make(map[int]string, len(Palette))
	paletteByName = make(map[string]string, len(Palette))
)

func init() {
	for _, c := range Palette {
		paletteByKey[c.Key] = c.Hex
		paletteByName[strings.ToUpper(c.Name)] = c.Hex
	}
}

var hexColorRe = regexp.MustCompile(`^#?([0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})$`)

// parseColor accepts a palette key number, a hex color or a palette name.
func parseColor(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if hex, ok := paletteByKey[n]; ok {
			return hex, true
		}
	}
	if m := hexColorRe.FindStringSubmatch(s); m != nil {
		hex := strings.ToUpper(m[1])
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		return "#" + hex, true
	}
	if hex, ok := paletteByName[strings.ToUpper(strings.Join(strings.Fields(s), " "))]; ok {
		return hex, true
	}
	return "", false
}
