package mapview

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/marketarea-cli/internal/model"
)

const (
	earthRadiusMeters = 6371008.8
	circleSegments    = 64
)

// metersPer converts a radius unit to meters. Blank units are miles.
func metersPer(units string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(units)) {
	case "", "mi", "mile", "miles":
		return 1609.344, nil
	case "km", "kilometer", "kilometers", "kilometre", "kilometres":
		return 1000, nil
	case "m", "meter", "meters", "metre", "metres":
		return 1, nil
	case "ft", "foot", "feet":
		return 0.3048, nil
	default:
		return 0, eris.Errorf("mapview: unknown radius units %q", units)
	}
}

// Circle approximates a geodesic circle of radiusMeters around center as a
// closed WGS84 polygon.
func Circle(center model.Point, radiusMeters float64) *geom.Polygon {
	lat1 := center.Latitude * math.Pi / 180
	lon1 := center.Longitude * math.Pi / 180
	d := radiusMeters / earthRadiusMeters

	flat := make([]float64, 0, (circleSegments+1)*2)
	for i := 0; i < circleSegments; i++ {
		bearing := 2 * math.Pi * float64(i) / circleSegments
		lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(bearing))
		lon2 := lon1 + math.Atan2(
			math.Sin(bearing)*math.Sin(d)*math.Cos(lat1),
			math.Cos(d)-math.Sin(lat1)*math.Sin(lat2),
		)
		flat = append(flat, normalizeLon(lon2*180/math.Pi), lat2*180/math.Pi)
	}
	flat = append(flat, flat[0], flat[1])

	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(model.WGS84)
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
