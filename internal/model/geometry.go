package model

import (
	"github.com/twpayne/go-geom"
)

// WGS84 is the spatial reference of every geometry the pipeline produces.
const WGS84 = 4326

// SpatialReference identifies a coordinate system by well-known ID.
type SpatialReference struct {
	WKID int `json:"wkid"`
}

// Geometry is an ArcGIS JSON geometry as returned by a feature service:
// a polygon (Rings) or a point (X, Y).
type Geometry struct {
	Rings            [][][]float64     `json:"rings,omitempty"`
	X                *float64          `json:"x,omitempty"`
	Y                *float64          `json:"y,omitempty"`
	SpatialReference *SpatialReference `json:"spatialReference,omitempty"`
}

// WKID returns the geometry's spatial reference, defaulting to WGS84.
func (g *Geometry) WKID() int {
	if g == nil || g.SpatialReference == nil || g.SpatialReference.WKID == 0 {
		return WGS84
	}
	return g.SpatialReference.WKID
}

// IsEmpty reports whether the geometry carries no coordinates.
func (g *Geometry) IsEmpty() bool {
	return g == nil || (len(g.Rings) == 0 && (g.X == nil || g.Y == nil))
}

// Clone returns a deep copy. Nil clones to nil.
func (g *Geometry) Clone() *Geometry {
	if g == nil {
		return nil
	}
	out := &Geometry{}
	if g.Rings != nil {
		out.Rings = make([][][]float64, len(g.Rings))
		for i, ring := range g.Rings {
			r := make([][]float64, len(ring))
			for j, c := range ring {
				r[j] = append([]float64(nil), c...)
			}
			out.Rings[i] = r
		}
	}
	if g.X != nil {
		x := *g.X
		out.X = &x
	}
	if g.Y != nil {
		y := *g.Y
		out.Y = &y
	}
	if g.SpatialReference != nil {
		sr := *g.SpatialReference
		out.SpatialReference = &sr
	}
	return out
}

// ToGeom converts the geometry to a go-geom value. Ring sets become a
// Polygon, or a MultiPolygon when they hold more than one outer ring. Rings
// wound like the first ring start a new part; rings wound the other way are
// holes of the part before them (ArcGIS winds shells clockwise). Returns nil
// for empty geometries.
func (g *Geometry) ToGeom() geom.T {
	if g.IsEmpty() {
		return nil
	}
	if len(g.Rings) == 0 {
		return geom.NewPointFlat(geom.XY, []float64{*g.X, *g.Y}).SetSRID(g.WKID())
	}

	var (
		parts     []*geom.Polygon
		shellSign float64
	)
	for _, ring := range g.Rings {
		flat := make([]float64, 0, len(ring)*2)
		for _, c := range ring {
			if len(c) < 2 {
				continue
			}
			flat = append(flat, c[0], c[1])
		}
		if len(flat) < 8 {
			continue
		}
		area := signedArea(flat)
		if area == 0 {
			continue
		}
		lr := geom.NewLinearRingFlat(geom.XY, flat)
		if len(parts) == 0 || (area > 0) == (shellSign > 0) {
			if len(parts) == 0 {
				shellSign = area
			}
			parts = append(parts, geom.NewPolygon(geom.XY).SetSRID(g.WKID()))
		}
		if err := parts[len(parts)-1].Push(lr); err != nil {
			continue
		}
	}

	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(g.WKID())
	for _, p := range parts {
		if err := mp.Push(p); err != nil {
			continue
		}
	}
	return mp
}

// signedArea is the shoelace area of a closed flat XY ring: positive when
// counter-clockwise.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

// PolygonGeometry builds a WGS84 polygon geometry from lon/lat rings.
func PolygonGeometry(rings ...[][]float64) *Geometry {
	return &Geometry{Rings: rings, SpatialReference: &SpatialReference{WKID: WGS84}}
}

// GeometryFromGeom converts a go-geom Point, Polygon or MultiPolygon back to
// ArcGIS JSON form. Other kinds and nil yield nil.
func GeometryFromGeom(g geom.T) *Geometry {
	if g == nil {
		return nil
	}
	sr := &SpatialReference{WKID: WGS84}
	if g.SRID() != 0 {
		sr.WKID = g.SRID()
	}
	switch t := g.(type) {
	case *geom.Point:
		if len(t.FlatCoords()) < 2 {
			return nil
		}
		x, y := t.X(), t.Y()
		return &Geometry{X: &x, Y: &y, SpatialReference: sr}
	case *geom.Polygon:
		return &Geometry{Rings: polygonRings(t), SpatialReference: sr}
	case *geom.MultiPolygon:
		var rings [][][]float64
		for i := 0; i < t.NumPolygons(); i++ {
			rings = append(rings, polygonRings(t.Polygon(i))...)
		}
		return &Geometry{Rings: rings, SpatialReference: sr}
	}
	return nil
}

func polygonRings(p *geom.Polygon) [][][]float64 {
	rings := make([][][]float64, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		ring := make([][]float64, len(coords))
		for j, c := range coords {
			ring[j] = []float64{c.X(), c.Y()}
		}
		rings = append(rings, ring)
	}
	return rings
}
