// Package mapview renders saved market areas onto an in-memory map canvas
// and exports it as GeoJSON or an ESRI shapefile.
package mapview

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/marketarea-cli/internal/model"
)

// Feature kinds drawn on the canvas.
const (
	KindLocation  = "location"
	KindRadius    = "radius"
	KindDriveTime = "drivetime"
	KindCenter    = "center"
)

// Feature is one styled shape on the canvas.
type Feature struct {
	MarketAreaID string
	Order        int
	Kind         string
	Type         model.MarketAreaType
	Label        string
	Style        model.StyleSettings
	Geom         geom.T
}

// Canvas collects the shapes of saved market areas. It is safe for
// concurrent use; the active layer is shared state.
type Canvas struct {
	mu       sync.Mutex
	active   model.MarketAreaType
	features []Feature
	pending  []Feature
	view     *geom.Bounds
	log      *zap.Logger
}

// NewCanvas returns an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{log: zap.L().With(zap.String("component", "mapview"))}
}

// AddActiveLayer makes t the layer that location styles are applied to.
func (c *Canvas) AddActiveLayer(ctx context.Context, t model.MarketAreaType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.Valid() {
		return eris.Errorf("mapview: unknown layer type %q", t)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = t
	return nil
}

// ActiveLayer returns the current layer type.
func (c *Canvas) ActiveLayer() model.MarketAreaType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// DrawRadius draws one ring per radius of p. A point without radii draws
// nothing.
func (c *Canvas) DrawRadius(ctx context.Context, p model.RadiusPoint, style model.StyleSettings, id string, order int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	perUnit, err := metersPer(p.Units)
	if err != nil {
		return err
	}

	var shapes []Feature
	for _, r := range p.Radii {
		if r <= 0 {
			continue
		}
		shapes = append(shapes, Feature{
			MarketAreaID: id,
			Order:        order,
			Kind:         KindRadius,
			Type:         model.TypeRadius,
			Label:        strconv.FormatFloat(r, 'f', -1, 64) + " " + unitsLabel(p.Units),
			Style:        style,
			Geom:         Circle(p.Center, r*perUnit),
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.features = append(c.features, shapes...)
	return nil
}

// DrawDriveTimePolygon draws the supplied drive-time polygon, or only the
// center marker when none was computed.
func (c *Canvas) DrawDriveTimePolygon(ctx context.Context, p model.DriveTimePoint, style model.StyleSettings, id string, order int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	label := strconv.FormatFloat(p.TravelTimeMinutes, 'f', -1, 64) + " " + unitsLabel(p.Units)

	f := Feature{
		MarketAreaID: id,
		Order:        order,
		Kind:         KindDriveTime,
		Type:         model.TypeDriveTime,
		Label:        label,
		Style:        style,
		Geom:         p.Polygon.ToGeom(),
	}
	if f.Geom == nil {
		f.Kind = KindCenter
		f.Geom = geom.NewPointFlat(geom.XY, []float64{p.Center.Longitude, p.Center.Latitude}).SetSRID(model.WGS84)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.features = append(c.features, f)
	return nil
}

// UpdateFeatureStyles styles the resolved locations of area id on the active
// layer, drawn at order. Locations without geometry are skipped. Unless
// immediate, the shapes are held until the next ZoomToMarketArea.
func (c *Canvas) UpdateFeatureStyles(ctx context.Context, id string, order int, locs []model.LocationDescriptor, style model.StyleSettings, t model.MarketAreaType, immediate bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != t {
		return eris.Errorf("mapview: layer %s is not active (active: %q)", t, c.active)
	}

	var skipped int
	for _, loc := range locs {
		g := loc.Geometry.ToGeom()
		if g == nil {
			skipped++
			continue
		}
		f := Feature{
			MarketAreaID: id,
			Order:        order,
			Kind:         KindLocation,
			Type:         t,
			Label:        loc.Name,
			Style:        style,
			Geom:         g,
		}
		if immediate {
			c.features = append(c.features, f)
		} else {
			c.pending = append(c.pending, f)
		}
	}
	if skipped > 0 {
		c.log.Debug("locations without geometry not drawn",
			zap.String("market_area_id", id),
			zap.Int("skipped", skipped),
		)
	}
	return nil
}

// ZoomToMarketArea flushes held shapes and moves the view to the extent of
// area id. An area with no drawn shapes leaves the view unchanged.
func (c *Canvas) ZoomToMarketArea(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.features = append(c.features, c.pending...)
	c.pending = nil

	var b *geom.Bounds
	for _, f := range c.features {
		if f.MarketAreaID != id || f.Geom == nil {
			continue
		}
		if b == nil {
			b = geom.NewBounds(geom.XY)
		}
		b.Extend(f.Geom)
	}
	if b == nil {
		return nil
	}
	c.view = b
	return nil
}

// View returns the current view extent, or nil before the first zoom.
func (c *Canvas) View() *geom.Bounds {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view == nil {
		return nil
	}
	return c.view.Clone()
}

// Features returns the drawn shapes ordered by market-area order.
func (c *Canvas) Features() []Feature {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]Feature(nil), c.features...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func unitsLabel(units string) string {
	if units == "" {
		return "miles"
	}
	return units
}
