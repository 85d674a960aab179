// Package model holds the canonical market-area types shared by the import pipeline.
package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// MarketAreaType tags how a market area's boundary is defined.
type MarketAreaType string

const (
	TypeZip        MarketAreaType = "zip"
	TypeCounty     MarketAreaType = "county"
	TypeTract      MarketAreaType = "tract"
	TypePlace      MarketAreaType = "place"
	TypeCBSA       MarketAreaType = "cbsa"
	TypeState      MarketAreaType = "state"
	TypeMD         MarketAreaType = "md" // metropolitan division
	TypeBlock      MarketAreaType = "block"
	TypeBlockGroup MarketAreaType = "blockgroup"
	TypeRadius     MarketAreaType = "radius"
	TypeDriveTime  MarketAreaType = "drivetime"
)

// AllTypes lists every market-area type in display order.
var AllTypes = []MarketAreaType{
	TypeZip, TypeCounty, TypeTract, TypePlace, TypeCBSA, TypeState,
	TypeMD, TypeBlock, TypeBlockGroup, TypeRadius, TypeDriveTime,
}

// Valid reports whether t is one of the known types.
func (t MarketAreaType) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// UsesLocations reports whether areas of this type are defined by named locations.
func (t MarketAreaType) UsesLocations() bool {
	return t.Valid() && t != TypeRadius && t != TypeDriveTime
}

// IDKeyed reports whether location values of this type are numeric identifiers
// rather than names.
func (t MarketAreaType) IDKeyed() bool {
	switch t {
	case TypeZip, TypeBlock, TypeBlockGroup, TypeTract:
		return true
	}
	return false
}

// Point is a WGS84 coordinate.
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// LocationDescriptor names one geography inside a market area. Geometry is nil
// until the resolver attaches it.
type LocationDescriptor struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	State    string    `json:"state"`
	Geometry *Geometry `json:"geometry,omitempty"`
}

// RadiusPoint is a ring-buffer center with one or more radii.
type RadiusPoint struct {
	Center Point     `json:"center"`
	Radii  []float64 `json:"radii"`
	Units  string    `json:"units"`
}

// DriveTimePoint is a drive-time center. Polygon is supplied by an external
// routing service when available.
type DriveTimePoint struct {
	Center            Point     `json:"center"`
	TravelTimeMinutes float64   `json:"travelTimeMinutes"`
	TimeRanges        []float64 `json:"timeRanges"`
	Units             string    `json:"units"`
	Polygon           *Geometry `json:"polygon,omitempty"`
}

// Geography is the type-specific payload of a draft. Exactly one of
// LocationSet, RadiusSet or DriveTimeSet.
type Geography interface {
	geography()
	Len() int
}

// LocationSet is the payload of named-location market areas.
type LocationSet []LocationDescriptor

// RadiusSet is the payload of radius market areas.
type RadiusSet []RadiusPoint

// DriveTimeSet is the payload of drive-time market areas.
type DriveTimeSet []DriveTimePoint

func (LocationSet) geography()  {}
func (RadiusSet) geography()    {}
func (DriveTimeSet) geography() {}

func (s LocationSet) Len() int  { return len(s) }
func (s RadiusSet) Len() int    { return len(s) }
func (s DriveTimeSet) Len() int { return len(s) }

// MarketAreaDraft is a normalized market area awaiting confirmation,
// geometry resolution and persistence.
type MarketAreaDraft struct {
	Name        string
	ShortName   string
	Type        MarketAreaType
	Style       StyleSettings
	Description string
	Geography   Geography
}

// NewLocationDraft builds a draft for a named-location type.
func NewLocationDraft(name string, t MarketAreaType, locs []LocationDescriptor) *MarketAreaDraft {
	return &MarketAreaDraft{Name: name, Type: t, Style: DefaultStyle(), Geography: LocationSet(locs)}
}

// NewRadiusDraft builds a radius draft.
func NewRadiusDraft(name string, points []RadiusPoint) *MarketAreaDraft {
	return &MarketAreaDraft{Name: name, Type: TypeRadius, Style: DefaultStyle(), Geography: RadiusSet(points)}
}

// NewDriveTimeDraft builds a drive-time draft.
func NewDriveTimeDraft(name string, points []DriveTimePoint) *MarketAreaDraft {
	return &MarketAreaDraft{Name: name, Type: TypeDriveTime, Style: DefaultStyle(), Geography: DriveTimeSet(points)}
}

// Locations returns the location payload, or nil for point-based drafts.
// The returned slice shares storage with the draft.
func (d *MarketAreaDraft) Locations() []LocationDescriptor {
	if s, ok := d.Geography.(LocationSet); ok {
		return s
	}
	return nil
}

// RadiusPoints returns the radius payload, or nil.
func (d *MarketAreaDraft) RadiusPoints() []RadiusPoint {
	if s, ok := d.Geography.(RadiusSet); ok {
		return s
	}
	return nil
}

// DriveTimePoints returns the drive-time payload, or nil.
func (d *MarketAreaDraft) DriveTimePoints() []DriveTimePoint {
	if s, ok := d.Geography.(DriveTimeSet); ok {
		return s
	}
	return nil
}

// Validate checks the type/payload pairing.
func (d *MarketAreaDraft) Validate() error {
	if !d.Type.Valid() {
		return eris.Errorf("model: unknown market area type %q", d.Type)
	}
	switch d.Geography.(type) {
	case LocationSet:
		if !d.Type.UsesLocations() {
			return eris.Errorf("model: %s area cannot carry locations", d.Type)
		}
	case RadiusSet:
		if d.Type != TypeRadius {
			return eris.Errorf("model: %s area cannot carry radius points", d.Type)
		}
	case DriveTimeSet:
		if d.Type != TypeDriveTime {
			return eris.Errorf("model: %s area cannot carry drive-time points", d.Type)
		}
	case nil:
		// Empty payloads are rejected by persistence, not here.
	}
	return nil
}

// Clone deep-copies the draft, including every attached geometry.
func (d *MarketAreaDraft) Clone() *MarketAreaDraft {
	out := *d
	switch g := d.Geography.(type) {
	case LocationSet:
		locs := make(LocationSet, len(g))
		for i, loc := range g {
			locs[i] = loc
			locs[i].Geometry = loc.Geometry.Clone()
		}
		out.Geography = locs
	case RadiusSet:
		pts := make(RadiusSet, len(g))
		for i, p := range g {
			pts[i] = p
			pts[i].Radii = append([]float64(nil), p.Radii...)
		}
		out.Geography = pts
	case DriveTimeSet:
		pts := make(DriveTimeSet, len(g))
		for i, p := range g {
			pts[i] = p
			pts[i].TimeRanges = append([]float64(nil), p.TimeRanges...)
			pts[i].Polygon = p.Polygon.Clone()
		}
		out.Geography = pts
	}
	return &out
}

type draftJSON struct {
	Name            string               `json:"name"`
	ShortName       string               `json:"short_name"`
	Type            MarketAreaType       `json:"ma_type"`
	Style           StyleSettings        `json:"style_settings"`
	Locations       []LocationDescriptor `json:"locations"`
	RadiusPoints    []RadiusPoint        `json:"radius_points"`
	DriveTimePoints []DriveTimePoint     `json:"drive_time_points"`
	Description     string               `json:"description"`
}

// MarshalJSON emits the flat wire form; unused payload arrays are empty.
func (d MarketAreaDraft) MarshalJSON() ([]byte, error) {
	w := draftJSON{
		Name:            d.Name,
		ShortName:       d.ShortName,
		Type:            d.Type,
		Style:           d.Style,
		Locations:       []LocationDescriptor{},
		RadiusPoints:    []RadiusPoint{},
		DriveTimePoints: []DriveTimePoint{},
		Description:     d.Description,
	}
	switch g := d.Geography.(type) {
	case LocationSet:
		w.Locations = g
	case RadiusSet:
		w.RadiusPoints = g
	case DriveTimeSet:
		w.DriveTimePoints = g
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the flat wire form and picks the payload from ma_type.
func (d *MarketAreaDraft) UnmarshalJSON(data []byte) error {
	var w draftJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	d.Name = w.Name
	d.ShortName = w.ShortName
	d.Type = w.Type
	d.Style = w.Style
	d.Description = w.Description
	switch w.Type {
	case TypeRadius:
		d.Geography = RadiusSet(w.RadiusPoints)
	case TypeDriveTime:
		d.Geography = DriveTimeSet(w.DriveTimePoints)
	default:
		d.Geography = LocationSet(w.Locations)
	}
	return nil
}

// SavedMarketArea is a persisted market area.
type SavedMarketArea struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Order     int             `json:"order"`
	CreatedAt time.Time       `json:"created_at"`
	Draft     MarketAreaDraft `json:"market_area"`
}
