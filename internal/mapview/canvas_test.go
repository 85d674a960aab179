package mapview

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/marketarea-cli/internal/model"
)

var irvine = model.Point{Latitude: 33.7175, Longitude: -117.8311}

func square() *model.Geometry {
	return model.PolygonGeometry([][]float64{{-118, 33}, {-117, 33}, {-117, 34}, {-118, 34}, {-118, 33}})
}

func TestCircle(t *testing.T) {
	poly := Circle(irvine, 8046.72) // 5 miles
	require.Equal(t, 1, poly.NumLinearRings())

	coords := poly.LinearRing(0).Coords()
	require.Len(t, coords, circleSegments+1)
	assert.Equal(t, coords[0], coords[len(coords)-1], "ring is closed")

	// Due north of the center is about 0.0724 degrees of latitude away.
	assert.InDelta(t, irvine.Longitude, coords[0].X(), 1e-9)
	assert.InDelta(t, irvine.Latitude+0.07237, coords[0].Y(), 1e-4)

	for _, c := range coords {
		dLat := (c.Y() - irvine.Latitude) * 111195
		dLon := (c.X() - irvine.Longitude) * 111195 * math.Cos(irvine.Latitude*math.Pi/180)
		assert.InDelta(t, 8046.72, math.Hypot(dLat, dLon), 30)
	}
}

func TestMetersPer(t *testing.T) {
	for units, want := range map[string]float64{"": 1609.344, "Miles": 1609.344, "km": 1000, "meters": 1, "ft": 0.3048} {
		got, err := metersPer(units)
		require.NoError(t, err, units)
		assert.Equal(t, want, got, units)
	}
	_, err := metersPer("furlongs")
	assert.Error(t, err)
}

func TestCanvas_DrawRadius(t *testing.T) {
	c := NewCanvas()
	ctx := context.Background()

	p := model.RadiusPoint{Center: irvine, Radii: []float64{3, 0, 5}, Units: "miles"}
	require.NoError(t, c.DrawRadius(ctx, p, model.DefaultStyle(), "a1", 2))

	features := c.Features()
	require.Len(t, features, 2, "non-positive radii are skipped")
	assert.Equal(t, "3 miles", features[0].Label)
	assert.Equal(t, KindRadius, features[0].Kind)
	assert.Equal(t, 2, features[1].Order)

	require.NoError(t, c.DrawRadius(ctx, model.RadiusPoint{Center: irvine}, model.DefaultStyle(), "a2", 3))
	assert.Len(t, c.Features(), 2)

	assert.Error(t, c.DrawRadius(ctx, model.RadiusPoint{Center: irvine, Radii: []float64{1}, Units: "leagues"}, model.DefaultStyle(), "a3", 4))
}

func TestCanvas_DrawDriveTimePolygon(t *testing.T) {
	c := NewCanvas()
	ctx := context.Background()

	withPolygon := model.DriveTimePoint{Center: irvine, TravelTimeMinutes: 15, Units: "minutes", Polygon: square()}
	require.NoError(t, c.DrawDriveTimePolygon(ctx, withPolygon, model.DefaultStyle(), "a1", 1))
	require.NoError(t, c.DrawDriveTimePolygon(ctx, model.DriveTimePoint{Center: irvine, TravelTimeMinutes: 10}, model.DefaultStyle(), "a2", 2))

	features := c.Features()
	require.Len(t, features, 2)
	assert.Equal(t, KindDriveTime, features[0].Kind)
	assert.IsType(t, &geom.Polygon{}, features[0].Geom)
	assert.Equal(t, KindCenter, features[1].Kind)
	assert.IsType(t, &geom.Point{}, features[1].Geom)
}

func TestCanvas_UpdateFeatureStylesRequiresActiveLayer(t *testing.T) {
	c := NewCanvas()
	ctx := context.Background()
	locs := []model.LocationDescriptor{{ID: "92618", Name: "92618", Geometry: square()}}

	err := c.UpdateFeatureStyles(ctx, "a1", 1, locs, model.DefaultStyle(), model.TypeZip, true)
	require.Error(t, err)

	require.NoError(t, c.AddActiveLayer(ctx, model.TypeZip))
	assert.Equal(t, model.TypeZip, c.ActiveLayer())
	require.NoError(t, c.UpdateFeatureStyles(ctx, "a1", 1, locs, model.DefaultStyle(), model.TypeZip, true))
	assert.Len(t, c.Features(), 1)

	assert.Error(t, c.AddActiveLayer(ctx, "bogus"))
}

func TestCanvas_FeaturesSortedByOrder(t *testing.T) {
	c := NewCanvas()
	ctx := context.Background()

	require.NoError(t, c.DrawRadius(ctx, model.RadiusPoint{Center: irvine, Radii: []float64{1}}, model.DefaultStyle(), "ring", 1))
	require.NoError(t, c.AddActiveLayer(ctx, model.TypeZip))
	locs := []model.LocationDescriptor{{ID: "92618", Name: "92618", Geometry: square()}}
	require.NoError(t, c.UpdateFeatureStyles(ctx, "zips", 2, locs, model.DefaultStyle(), model.TypeZip, true))

	features := c.Features()
	require.Len(t, features, 2)
	assert.Equal(t, "ring", features[0].MarketAreaID)
	assert.Equal(t, "zips", features[1].MarketAreaID)
	assert.Equal(t, 2, features[1].Order)
}

func TestCanvas_PendingFlushedOnZoom(t *testing.T) {
	c := NewCanvas()
	ctx := context.Background()
	require.NoError(t, c.AddActiveLayer(ctx, model.TypeCounty))

	locs := []model.LocationDescriptor{
		{ID: "Orange County", Name: "Orange County", Geometry: square()},
		{ID: "Nowhere", Name: "Nowhere"},
	}
	require.NoError(t, c.UpdateFeatureStyles(ctx, "a1", 1, locs, model.DefaultStyle(), model.TypeCounty, false))
	assert.Empty(t, c.Features(), "held until zoom")
	assert.Nil(t, c.View())

	require.NoError(t, c.ZoomToMarketArea(ctx, "a1"))
	require.Len(t, c.Features(), 1)
	view := c.View()
	require.NotNil(t, view)
	assert.Equal(t, -118.0, view.Min(0))
	assert.Equal(t, 33.0, view.Min(1))
	assert.Equal(t, -117.0, view.Max(0))
	assert.Equal(t, 34.0, view.Max(1))

	// Zooming to an area with no shapes keeps the view.
	require.NoError(t, c.ZoomToMarketArea(ctx, "missing"))
	assert.Equal(t, 34.0, c.View().Max(1))
}

func TestCanvas_CancelledContext(t *testing.T) {
	c := NewCanvas()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, c.AddActiveLayer(ctx, model.TypeZip))
	assert.Error(t, c.DrawRadius(ctx, model.RadiusPoint{Center: irvine, Radii: []float64{1}}, model.DefaultStyle(), "a", 1))
	assert.Error(t, c.ZoomToMarketArea(ctx, "a"))
	assert.Empty(t, c.Features())
}

func TestCanvas_WriteGeoJSON(t *testing.T) {
	c := NewCanvas()
	ctx := context.Background()
	style := model.StyleSettings{FillColor: "#FF0000", FillOpacity: 0.5, BorderColor: "#000000", BorderWidth: 1}
	require.NoError(t, c.DrawRadius(ctx, model.RadiusPoint{Center: irvine, Radii: []float64{5}}, style, "a1", 1))

	var buf bytes.Buffer
	require.NoError(t, c.WriteGeoJSON(&buf))

	var out struct {
		Type     string `json:"type"`
		Features []struct {
			ID         string         `json:"id"`
			Geometry   map[string]any `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "FeatureCollection", out.Type)
	require.Len(t, out.Features, 1)
	assert.Equal(t, "a1", out.Features[0].ID)
	assert.Equal(t, "Polygon", out.Features[0].Geometry["type"])
	assert.Equal(t, "#FF0000", out.Features[0].Properties["fill"])
	assert.Equal(t, "radius", out.Features[0].Properties["ma_type"])
}

func TestCanvas_WriteShapefile(t *testing.T) {
	c := NewCanvas()
	ctx := context.Background()
	require.NoError(t, c.DrawRadius(ctx, model.RadiusPoint{Center: irvine, Radii: []float64{1, 2}}, model.DefaultStyle(), "a1", 1))
	require.NoError(t, c.DrawDriveTimePolygon(ctx, model.DriveTimePoint{Center: irvine, TravelTimeMinutes: 10}, model.DefaultStyle(), "a2", 2))

	path := filepath.Join(t.TempDir(), "areas.shp")
	n, err := c.WriteShapefile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "center markers are not written")

	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		_, err := os.Stat(path[:len(path)-4] + ext)
		assert.NoError(t, err, ext)
	}

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	var rows int
	for r.Next() {
		_, shape := r.Shape()
		_, ok := shape.(*shp.Polygon)
		assert.True(t, ok)
		assert.Equal(t, "a1", strings.Trim(r.ReadAttribute(rows, 0), " \x00"))
		rows++
	}
	assert.Equal(t, 2, rows)
}

func TestCanvas_WriteShapefileMultiPart(t *testing.T) {
	c := NewCanvas()
	ctx := context.Background()
	require.NoError(t, c.AddActiveLayer(ctx, model.TypeCounty))

	islands := model.PolygonGeometry(
		[][]float64{{-118, 33}, {-118, 34}, {-117, 34}, {-117, 33}, {-118, 33}},
		[][]float64{{-118.6, 33.3}, {-118.6, 33.5}, {-118.3, 33.5}, {-118.3, 33.3}, {-118.6, 33.3}},
	)
	locs := []model.LocationDescriptor{{Name: "Los Angeles", Geometry: islands}}
	require.NoError(t, c.UpdateFeatureStyles(ctx, "la", 1, locs, model.DefaultStyle(), model.TypeCounty, true))
	assert.IsType(t, &geom.MultiPolygon{}, c.Features()[0].Geom)

	path := filepath.Join(t.TempDir(), "la.shp")
	n, err := c.WriteShapefile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.True(t, r.Next())
	_, shape := r.Shape()
	poly, ok := shape.(*shp.Polygon)
	require.True(t, ok)
	assert.Equal(t, int32(2), poly.NumParts)
}
