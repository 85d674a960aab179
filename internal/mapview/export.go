package mapview

import (
	"encoding/json"
	"io"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// WriteGeoJSON writes every drawn shape as one GeoJSON FeatureCollection.
// Style settings become simplestyle properties.
func (c *Canvas) WriteGeoJSON(w io.Writer) error {
	features := c.Features()

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(features))}
	for _, f := range features {
		props := map[string]interface{}{
			"market_area_id": f.MarketAreaID,
			"order":          f.Order,
			"kind":           f.Kind,
			"ma_type":        string(f.Type),
			"label":          f.Label,
			"stroke":         f.Style.BorderColor,
			"stroke-width":   f.Style.BorderWidth,
			"fill":           f.Style.FillColor,
			"fill-opacity":   f.Style.FillOpacity,
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.MarketAreaID,
			Geometry:   f.Geom,
			Properties: props,
		})
	}

	enc := json.NewEncoder(w)
	return eris.Wrap(enc.Encode(fc), "mapview: encode geojson")
}

// shapefile attribute columns.
var shapeFields = []shp.Field{
	shp.StringField("MA_ID", 40),
	shp.NumberField("ORDER", 10),
	shp.StringField("KIND", 12),
	shp.StringField("MA_TYPE", 12),
	shp.StringField("LABEL", 80),
	shp.StringField("FILL", 9),
	shp.StringField("BORDER", 9),
}

// WriteShapefile writes every polygon on the canvas to path (.shp plus its
// .shx and .dbf siblings). Center markers are not polygons and are left out.
// It returns the number of shapes written.
func (c *Canvas) WriteShapefile(path string) (int, error) {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return 0, eris.Wrapf(err, "mapview: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields(shapeFields); err != nil {
		return 0, eris.Wrap(err, "mapview: set shapefile fields")
	}

	var n int
	for _, f := range c.Features() {
		poly := toShpPolygon(f.Geom)
		if poly == nil {
			continue
		}
		row := int(w.Write(poly))
		values := []interface{}{
			fit(f.MarketAreaID, 40), f.Order, f.Kind, string(f.Type), fit(f.Label, 80),
			fit(f.Style.FillColor, 9), fit(f.Style.BorderColor, 9),
		}
		for i, v := range values {
			if err := w.WriteAttribute(row, i, v); err != nil {
				return n, eris.Wrapf(err, "mapview: write attribute %d of shape %d", i, row)
			}
		}
		n++
	}
	return n, nil
}

// toShpPolygon flattens a go-geom polygon or multipolygon into shapefile
// parts. Other geometries yield nil.
func toShpPolygon(g geom.T) *shp.Polygon {
	var rings [][]shp.Point
	addPolygon := func(p *geom.Polygon) {
		for i := 0; i < p.NumLinearRings(); i++ {
			coords := p.LinearRing(i).Coords()
			ring := make([]shp.Point, len(coords))
			for j, c := range coords {
				ring[j] = shp.Point{X: c.X(), Y: c.Y()}
			}
			rings = append(rings, ring)
		}
	}

	switch t := g.(type) {
	case *geom.Polygon:
		addPolygon(t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			addPolygon(t.Polygon(i))
		}
	default:
		return nil
	}
	if len(rings) == 0 {
		return nil
	}
	p := shp.Polygon(*shp.NewPolyLine(rings))
	return &p
}

// fit truncates s to the byte width of a dbf column.
func fit(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width]
}
