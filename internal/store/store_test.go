package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketarea-cli/internal/config"
	"github.com/sells-group/marketarea-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func countyDraft(name string) *model.MarketAreaDraft {
	return model.NewLocationDraft(name, model.TypeCounty, []model.LocationDescriptor{
		{
			ID:       "Orange County",
			Name:     "Orange County",
			State:    "CA",
			Geometry: model.PolygonGeometry([][]float64{{-118, 33}, {-117, 33}, {-117, 34}, {-118, 33}}),
		},
		{ID: "Los Angeles County", Name: "Los Angeles County", State: "CA"},
	})
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("AddAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		d := countyDraft("SoCal")
		d.ShortName = "SC"
		d.Description = "Southern California counties"
		saved, err := s.AddMarketArea(ctx, "p1", d)
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, "p1", saved.ProjectID)
		assert.Equal(t, 1, saved.Order)
		assert.False(t, saved.CreatedAt.IsZero())

		got, err := s.GetMarketArea(ctx, "p1", saved.ID)
		require.NoError(t, err)
		assert.Equal(t, "SoCal", got.Draft.Name)
		assert.Equal(t, "SC", got.Draft.ShortName)
		assert.Equal(t, model.TypeCounty, got.Draft.Type)
		assert.Equal(t, "Southern California counties", got.Draft.Description)

		locs := got.Draft.Locations()
		require.Len(t, locs, 2)
		assert.Equal(t, "Orange County", locs[0].ID)
		assert.Equal(t, "CA", locs[0].State)
		require.NotNil(t, locs[0].Geometry)
		assert.Equal(t, d.Locations()[0].Geometry.Rings, locs[0].Geometry.Rings)
		assert.Nil(t, locs[1].Geometry)
	})

	t.Run("OrderIncrementsPerProject", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i, name := range []string{"A", "B", "C"} {
			saved, err := s.AddMarketArea(ctx, "p1", countyDraft(name))
			require.NoError(t, err)
			assert.Equal(t, i+1, saved.Order)
		}
		other, err := s.AddMarketArea(ctx, "p2", countyDraft("A"))
		require.NoError(t, err)
		assert.Equal(t, 1, other.Order)

		list, err := s.ListMarketAreas(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"A", "B", "C"}, []string{list[0].Draft.Name, list[1].Draft.Name, list[2].Draft.Name})
		assert.Len(t, list[1].Draft.Locations(), 2)
	})

	t.Run("DuplicateName", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.AddMarketArea(ctx, "p1", countyDraft("Dup"))
		require.NoError(t, err)
		_, err = s.AddMarketArea(ctx, "p1", countyDraft("Dup"))
		require.Error(t, err)

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "market area with this name already exists in this project", ve.Detail)
	})

	t.Run("DefaultStyle", func(t *testing.T) {
		s := newStore(t)
		d := countyDraft("Plain")
		d.Style = model.StyleSettings{}

		saved, err := s.AddMarketArea(context.Background(), "p1", d)
		require.NoError(t, err)
		assert.Equal(t, model.DefaultStyle(), saved.Draft.Style)
		assert.True(t, d.Style.IsZero(), "the caller's draft is not modified")
	})

	t.Run("RadiusRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		d := model.NewRadiusDraft("Ring", []model.RadiusPoint{
			{Center: model.Point{Latitude: 33.7175, Longitude: -117.8311}, Radii: []float64{3, 5}, Units: "miles"},
		})
		saved, err := s.AddMarketArea(ctx, "p1", d)
		require.NoError(t, err)

		got, err := s.GetMarketArea(ctx, "p1", saved.ID)
		require.NoError(t, err)
		require.Len(t, got.Draft.RadiusPoints(), 1)
		assert.Equal(t, []float64{3, 5}, got.Draft.RadiusPoints()[0].Radii)
		assert.Empty(t, got.Draft.Locations())
	})

	t.Run("Validation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.AddMarketArea(ctx, "p1", model.NewRadiusDraft("Empty ring", nil))
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "radius_points", ve.Field)

		_, err = s.AddMarketArea(ctx, "p1", model.NewLocationDraft("Nothing", model.TypeZip, nil))
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "locations", ve.Field)

		list, err := s.ListMarketAreas(ctx, "p1")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("DeleteAndNotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		saved, err := s.AddMarketArea(ctx, "p1", countyDraft("Gone"))
		require.NoError(t, err)

		err = s.DeleteMarketArea(ctx, "p2", saved.ID)
		assert.True(t, errors.Is(err, ErrNotFound), "delete is scoped to the project")

		require.NoError(t, s.DeleteMarketArea(ctx, "p1", saved.ID))
		_, err = s.GetMarketArea(ctx, "p1", saved.ID)
		assert.True(t, errors.Is(err, ErrNotFound))

		// The name is free again.
		_, err = s.AddMarketArea(ctx, "p1", countyDraft("Gone"))
		assert.NoError(t, err)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), config.StoreConfig{Driver: "api", APIBaseURL: "https://backend.test"})
	require.NoError(t, err)
	assert.IsType(t, &APIClient{}, s)

	_, err = Open(context.Background(), config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestPrepare(t *testing.T) {
	_, err := prepare(&model.MarketAreaDraft{Name: "  ", Type: model.TypeZip})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	_, err = prepare(&model.MarketAreaDraft{Name: "Mixed", Type: model.TypeRadius, Geography: model.LocationSet{{ID: "1"}}})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "ma_type", ve.Field)

	_, err = prepare(model.NewDriveTimeDraft("Drive", nil))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "drive_time_points", ve.Field)

	d := countyDraft(" Trimmed ")
	out, err := prepare(d)
	require.NoError(t, err)
	assert.Equal(t, "Trimmed", out.Name)
	assert.NotSame(t, d.Locations()[0].Geometry, out.Locations()[0].Geometry)
}

func TestDetail(t *testing.T) {
	detail, ok := Detail(duplicateName())
	assert.True(t, ok)
	assert.Equal(t, msgDuplicateName, detail)

	detail, ok = Detail(&APIError{StatusCode: 400, Detail: "Project not found"})
	assert.True(t, ok)
	assert.Equal(t, "Project not found", detail)

	_, ok = Detail(errors.New("boom"))
	assert.False(t, ok)
}
