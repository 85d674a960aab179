package sheet

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/workbook"
)

// ErrNoData is returned when a sheet yields no market areas.
var ErrNoData = eris.New("sheet: no market areas found")

// ParseError is a fatal problem with the sheet as a whole.
type ParseError struct {
	Format Format
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sheet: parse %s sheet: %s", e.Format, e.Reason)
}

// Warning is a non-fatal condition found while normalizing, such as a
// template column that produced no definition values.
type Warning struct {
	Column  int    `json:"column"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Options carries the fallbacks used when a sheet leaves a field blank.
type Options struct {
	DefaultState         string
	DefaultBlockState    string
	DefaultCounty        string
	DefaultCenter        model.Point
	DefaultRadiusMiles   float64
	DefaultDriveMinutes  float64
	DefaultRadiusUnits   string
	DefaultDriveTimeUnit string
}

// DefaultOptions returns the fallbacks shipped with the import template.
func DefaultOptions() Options {
	return Options{
		DefaultState:         "CA",
		DefaultBlockState:    "06",
		DefaultCounty:        "Orange County",
		DefaultCenter:        model.Point{Latitude: 33.7175, Longitude: -117.8311},
		DefaultRadiusMiles:   5,
		DefaultDriveMinutes:  15,
		DefaultRadiusUnits:   "miles",
		DefaultDriveTimeUnit: "minutes",
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DefaultState == "" {
		o.DefaultState = d.DefaultState
	}
	if o.DefaultBlockState == "" {
		o.DefaultBlockState = d.DefaultBlockState
	}
	if o.DefaultCounty == "" {
		o.DefaultCounty = d.DefaultCounty
	}
	if o.DefaultCenter == (model.Point{}) {
		o.DefaultCenter = d.DefaultCenter
	}
	if o.DefaultRadiusMiles <= 0 {
		o.DefaultRadiusMiles = d.DefaultRadiusMiles
	}
	if o.DefaultDriveMinutes <= 0 {
		o.DefaultDriveMinutes = d.DefaultDriveMinutes
	}
	if o.DefaultRadiusUnits == "" {
		o.DefaultRadiusUnits = d.DefaultRadiusUnits
	}
	if o.DefaultDriveTimeUnit == "" {
		o.DefaultDriveTimeUnit = d.DefaultDriveTimeUnit
	}
	return o
}

// stateFor returns the fallback state for a type when the sheet has none.
func (o Options) stateFor(t model.MarketAreaType) string {
	if t == model.TypeBlock || t == model.TypeBlockGroup {
		return o.DefaultBlockState
	}
	return o.DefaultState
}

func (o Options) radiusPoint(center model.Point, miles float64) model.RadiusPoint {
	return model.RadiusPoint{Center: center, Radii: []float64{miles}, Units: o.DefaultRadiusUnits}
}

func (o Options) driveTimePoint(center model.Point, minutes float64) model.DriveTimePoint {
	return model.DriveTimePoint{
		Center:            center,
		TravelTimeMinutes: minutes,
		TimeRanges:        []float64{minutes},
		Units:             o.DefaultDriveTimeUnit,
	}
}

// Result is the output of Normalize.
type Result struct {
	Format   Format                   `json:"format"`
	Drafts   []*model.MarketAreaDraft `json:"drafts"`
	Warnings []Warning                `json:"warnings,omitempty"`
}

// Normalize detects the layout of rows and converts them to drafts.
// It returns a *ParseError for unusable sheets and ErrNoData when nothing
// was found.
func Normalize(rows workbook.Rows, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	format := DetectFormat(rows)

	res := &Result{Format: format}
	var err error
	switch format {
	case FormatTemplate:
		res.Drafts, res.Warnings = NormalizeTemplate(rows, opts)
	default:
		res.Drafts, err = NormalizeStandard(rows, opts)
		if err != nil {
			return nil, err
		}
	}

	for _, w := range res.Warnings {
		zap.L().Warn("sheet: normalize warning",
			zap.String("format", string(format)),
			zap.Int("column", w.Column),
			zap.String("name", w.Name),
			zap.String("message", w.Message),
		)
	}

	if len(res.Drafts) == 0 {
		return nil, eris.Wrapf(ErrNoData, "sheet: %s layout", format)
	}

	zap.L().Info("sheet: normalized",
		zap.String("format", string(format)),
		zap.Int("drafts", len(res.Drafts)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}
