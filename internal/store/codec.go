package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/marketarea-cli/internal/model"
)

const locationsTable = "market_area_locations"

var locationColumns = []string{"market_area_id", "position", "location_id", "name", "state", "geometry"}

// areaRecord is one market_areas row with its JSON columns still encoded.
type areaRecord struct {
	ID              string
	ProjectID       string
	Name            string
	ShortName       string
	Type            string
	Style           string
	Description     string
	RadiusPoints    string
	DriveTimePoints string
	Order           int
	CreatedAt       time.Time
}

func newAreaRecord(id, projectID string, order int, createdAt time.Time, d *model.MarketAreaDraft) (*areaRecord, error) {
	style, err := json.Marshal(d.Style)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal style")
	}
	radius, err := json.Marshal(nonNil(d.RadiusPoints()))
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal radius points")
	}
	drive, err := json.Marshal(nonNil(d.DriveTimePoints()))
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal drive-time points")
	}
	return &areaRecord{
		ID:              id,
		ProjectID:       projectID,
		Name:            d.Name,
		ShortName:       d.ShortName,
		Type:            string(d.Type),
		Style:           string(style),
		Description:     d.Description,
		RadiusPoints:    string(radius),
		DriveTimePoints: string(drive),
		Order:           order,
		CreatedAt:       createdAt,
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// saved decodes the record; locs are the area's locations in position order.
func (r *areaRecord) saved(locs []model.LocationDescriptor) (*model.SavedMarketArea, error) {
	d := model.MarketAreaDraft{
		Name:        r.Name,
		ShortName:   r.ShortName,
		Type:        model.MarketAreaType(r.Type),
		Description: r.Description,
	}
	if err := json.Unmarshal([]byte(r.Style), &d.Style); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal style of %s", r.ID)
	}

	switch d.Type {
	case model.TypeRadius:
		var pts []model.RadiusPoint
		if err := json.Unmarshal([]byte(r.RadiusPoints), &pts); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal radius points of %s", r.ID)
		}
		d.Geography = model.RadiusSet(pts)
	case model.TypeDriveTime:
		var pts []model.DriveTimePoint
		if err := json.Unmarshal([]byte(r.DriveTimePoints), &pts); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal drive-time points of %s", r.ID)
		}
		d.Geography = model.DriveTimeSet(pts)
	default:
		d.Geography = model.LocationSet(nonNil(locs))
	}

	return &model.SavedMarketArea{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Order:     r.Order,
		CreatedAt: r.CreatedAt,
		Draft:     d,
	}, nil
}

// locationRows renders the COPY/INSERT rows of an area's locations.
func locationRows(areaID string, locs []model.LocationDescriptor) ([][]any, error) {
	rows := make([][]any, len(locs))
	for i, loc := range locs {
		g, err := encodeGeometry(loc.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "store: encode geometry of %s", loc.ID)
		}
		rows[i] = []any{areaID, i, loc.ID, loc.Name, loc.State, g}
	}
	return rows, nil
}

// encodeGeometry stores geometry as EWKB. Empty geometry is NULL.
func encodeGeometry(g *model.Geometry) ([]byte, error) {
	t := g.ToGeom()
	if t == nil {
		return nil, nil
	}
	return ewkb.Marshal(t, binary.LittleEndian)
}

func decodeGeometry(b []byte) (*model.Geometry, error) {
	if len(b) == 0 {
		return nil, nil
	}
	t, err := ewkb.Unmarshal(b)
	if err != nil {
		return nil, eris.Wrap(err, "store: decode EWKB")
	}
	return model.GeometryFromGeom(t), nil
}

// locationGroups collects locations per area. Rows arrive ordered by area
// then position.
type locationGroups map[string][]model.LocationDescriptor

func (g locationGroups) add(areaID, id, name, state string, geometry []byte) error {
	geo, err := decodeGeometry(geometry)
	if err != nil {
		return eris.Wrapf(err, "store: location %s of %s", id, areaID)
	}
	g[areaID] = append(g[areaID], model.LocationDescriptor{ID: id, Name: name, State: state, Geometry: geo})
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanArea(row scannable, driver string) (*areaRecord, error) {
	var r areaRecord
	err := row.Scan(&r.ID, &r.ProjectID, &r.Name, &r.ShortName, &r.Type, &r.Style, &r.Description,
		&r.RadiusPoints, &r.DriveTimePoints, &r.Order, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "%s: get market area", driver)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: scan market area", driver)
	}
	return &r, nil
}
