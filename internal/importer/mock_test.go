package importer

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/resolve"
)

// --- Persister Mock ---

type mockPersister struct {
	mock.Mock
}

func (m *mockPersister) AddMarketArea(ctx context.Context, projectID string, d *model.MarketAreaDraft) (*model.SavedMarketArea, error) {
	args := m.Called(ctx, projectID, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SavedMarketArea), args.Error(1)
}

// --- Visualizer Mock ---

type mockVisualizer struct {
	mock.Mock
}

func (m *mockVisualizer) AddActiveLayer(ctx context.Context, t model.MarketAreaType) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockVisualizer) DrawRadius(ctx context.Context, p model.RadiusPoint, style model.StyleSettings, id string, order int) error {
	return m.Called(ctx, p, style, id, order).Error(0)
}

func (m *mockVisualizer) DrawDriveTimePolygon(ctx context.Context, p model.DriveTimePoint, style model.StyleSettings, id string, order int) error {
	return m.Called(ctx, p, style, id, order).Error(0)
}

func (m *mockVisualizer) UpdateFeatureStyles(ctx context.Context, id string, order int, locs []model.LocationDescriptor, style model.StyleSettings, t model.MarketAreaType, immediate bool) error {
	return m.Called(ctx, id, order, locs, style, t, immediate).Error(0)
}

func (m *mockVisualizer) ZoomToMarketArea(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// --- Resolver Fake ---

// fakeResolver attaches a unit square to every location and records the
// drafts it saw.
type fakeResolver struct {
	mu   sync.Mutex
	seen []string
}

func (f *fakeResolver) Resolve(_ context.Context, d *model.MarketAreaDraft) resolve.Report {
	f.mu.Lock()
	f.seen = append(f.seen, d.Name)
	f.mu.Unlock()

	locs := d.Locations()
	for i := range locs {
		locs[i].Geometry = model.PolygonGeometry([][]float64{{0, 0}, {1, 0}, {1, 1}, {0, 0}})
	}
	return resolve.Report{Draft: d.Name, Type: d.Type, Locations: len(locs), Matched: len(locs)}
}

// saved builds the persisted form of d.
func saved(id string, order int, d *model.MarketAreaDraft) *model.SavedMarketArea {
	return &model.SavedMarketArea{ID: id, ProjectID: "p1", Order: order, Draft: *d.Clone()}
}
