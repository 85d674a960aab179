package featureservice

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/marketarea-cli/internal/model"
)

// Layer describes where one market-area type lives in the map service and
// which attributes identify its features.
type Layer struct {
	Type  model.MarketAreaType `yaml:"-" json:"type"`
	Title string               `yaml:"title" json:"title"`

	// IDs are the sublayers to query, in order. Composite types such as
	// place (incorporated places, then CDPs) list more than one.
	IDs []int `yaml:"ids" json:"ids"`

	NameField    string   `yaml:"name_field" json:"name_field"`
	AltNameField string   `yaml:"alt_name_field" json:"alt_name_field,omitempty"`
	IDFields     []string `yaml:"id_fields" json:"id_fields"`
	StateField   string   `yaml:"state_field" json:"state_field,omitempty"`
	AbbrField    string   `yaml:"abbr_field" json:"abbr_field,omitempty"`
}

// Layers maps each location-based type to its layer.
type Layers map[model.MarketAreaType]Layer

// DefaultLayers returns the TIGERweb tigerWMS_ACS2024 layout.
func DefaultLayers() Layers {
	return Layers{
		model.TypeZip: {
			Title:     "2020 Census ZIP Code Tabulation Areas",
			IDs:       []int{2},
			NameField: "BASENAME",
			IDFields:  []string{"ZCTA5", "GEOID"},
		},
		model.TypeTract: {
			Title:      "Census Tracts",
			IDs:        []int{8},
			NameField:  "NAME",
			IDFields:   []string{"GEOID"},
			StateField: "STATE",
		},
		model.TypeBlockGroup: {
			Title:      "Census Block Groups",
			IDs:        []int{10},
			NameField:  "NAME",
			IDFields:   []string{"GEOID"},
			StateField: "STATE",
		},
		model.TypeBlock: {
			Title:      "Census Blocks",
			IDs:        []int{12},
			NameField:  "NAME",
			IDFields:   []string{"GEOID"},
			StateField: "STATE",
		},
		model.TypePlace: {
			Title:        "Incorporated Places and Census Designated Places",
			IDs:          []int{28, 30},
			NameField:    "NAME",
			AltNameField: "BASENAME",
			IDFields:     []string{"GEOID"},
			StateField:   "STATE",
		},
		model.TypeCounty: {
			Title:        "Counties",
			IDs:          []int{82},
			NameField:    "NAME",
			AltNameField: "BASENAME",
			IDFields:     []string{"GEOID"},
			StateField:   "STATE",
		},
		model.TypeState: {
			Title:      "States",
			IDs:        []int{80},
			NameField:  "NAME",
			IDFields:   []string{"GEOID"},
			StateField: "STATE",
			AbbrField:  "STUSAB",
		},
		model.TypeCBSA: {
			Title:        "Metropolitan and Micropolitan Statistical Areas",
			IDs:          []int{93, 91},
			NameField:    "NAME",
			AltNameField: "BASENAME",
			IDFields:     []string{"CBSA", "GEOID"},
		},
		model.TypeMD: {
			Title:        "Metropolitan Divisions",
			IDs:          []int{95},
			NameField:    "NAME",
			AltNameField: "BASENAME",
			IDFields:     []string{"METDIV", "GEOID"},
		},
	}
}

// For returns the layer of t and whether one is configured.
func (l Layers) For(t model.MarketAreaType) (Layer, bool) {
	layer, ok := l[t]
	if !ok || len(layer.IDs) == 0 {
		return Layer{}, false
	}
	layer.Type = t
	return layer, true
}

// Sorted returns the layers ordered by type name.
func (l Layers) Sorted() []Layer {
	out := make([]Layer, 0, len(l))
	for t := range l {
		if layer, ok := l.For(t); ok {
			out = append(out, layer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

type layersFile struct {
	Layers map[string]Layer `yaml:"layers"`
}

// LoadLayers reads layer overrides from a YAML file and merges them over
// DefaultLayers. Only the fields an override sets replace the default.
//
//	layers:
//	  tract:
//	    ids: [8]
//	    id_fields: [GEOID, TRACT_FIPS, FIPS]
func LoadLayers(path string) (Layers, error) {
	layers := DefaultLayers()
	if path == "" {
		return layers, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "featureservice: read layers file %s", path)
	}

	var f layersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "featureservice: parse layers file %s", path)
	}

	for name, override := range f.Layers {
		t := model.MarketAreaType(name)
		if !t.Valid() || !t.UsesLocations() {
			return nil, eris.Errorf("featureservice: layers file %s: %q is not a location type", path, name)
		}
		layers[t] = merge(layers[t], override)
	}
	return layers, nil
}

func merge(base, o Layer) Layer {
	if o.Title != "" {
		base.Title = o.Title
	}
	if len(o.IDs) > 0 {
		base.IDs = o.IDs
	}
	if o.NameField != "" {
		base.NameField = o.NameField
	}
	if o.AltNameField != "" {
		base.AltNameField = o.AltNameField
	}
	if len(o.IDFields) > 0 {
		base.IDFields = o.IDFields
	}
	if o.StateField != "" {
		base.StateField = o.StateField
	}
	if o.AbbrField != "" {
		base.AbbrField = o.AbbrField
	}
	return base
}
