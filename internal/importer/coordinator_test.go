package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/monitoring"
	"github.com/sells-group/marketarea-cli/internal/sheet"
	"github.com/sells-group/marketarea-cli/internal/store"
	"github.com/sells-group/marketarea-cli/internal/workbook"
)

func zipDraft(name string, zips ...string) *model.MarketAreaDraft {
	locs := make([]model.LocationDescriptor, len(zips))
	for i, z := range zips {
		locs[i] = model.LocationDescriptor{ID: z, Name: z, State: "CA"}
	}
	return model.NewLocationDraft(name, model.TypeZip, locs)
}

func ringDraft(name string) *model.MarketAreaDraft {
	return model.NewRadiusDraft(name, []model.RadiusPoint{
		{Center: model.Point{Latitude: 33.7175, Longitude: -117.8311}, Radii: []float64{5}, Units: "miles"},
	})
}

func expectLocationDrawn(v *mockVisualizer, id string, t model.MarketAreaType) {
	v.On("AddActiveLayer", mock.Anything, t).Return(nil).Once()
	v.On("UpdateFeatureStyles", mock.Anything, id, mock.Anything, mock.Anything, mock.Anything, t, true).Return(nil).Once()
	v.On("ZoomToMarketArea", mock.Anything, id).Return(nil).Once()
}

func TestProcess_FaultIsolation(t *testing.T) {
	first, second, third := zipDraft("North", "92618"), zipDraft("Dup", "92602"), ringDraft("Ring")

	p := &mockPersister{}
	p.On("AddMarketArea", mock.Anything, "p1", first).Return(saved("a1", 1, first), nil)
	p.On("AddMarketArea", mock.Anything, "p1", second).
		Return(nil, &store.ValidationError{Field: "name", Detail: "market area with this name already exists in this project"})
	p.On("AddMarketArea", mock.Anything, "p1", third).Return(saved("a3", 2, third), nil)

	v := &mockVisualizer{}
	expectLocationDrawn(v, "a1", model.TypeZip)
	v.On("DrawRadius", mock.Anything, third.RadiusPoints()[0], third.Style, "a3", 2).Return(nil).Once()
	v.On("ZoomToMarketArea", mock.Anything, "a3").Return(nil).Once()

	r := &fakeResolver{}
	c := New(r, p, WithVisualizer(v))

	res, err := c.Process(context.Background(), "p1", []*model.MarketAreaDraft{first, second, third})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ImportedCount)
	assert.Equal(t, []string{"a1", "a3"}, res.CreatedIDs)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.ImportError{
		Stage:   model.StagePersist,
		Item:    "Dup",
		Kind:    model.KindPersist,
		Message: "market area with this name already exists in this project",
	}, res.Errors[0])
	assert.Equal(t, "Dup: market area with this name already exists in this project", res.Messages()[0])
	assert.Equal(t, model.OutcomePartial, res.Outcome())
	assert.Equal(t, StateCompleted, c.State())

	assert.Equal(t, []string{"North", "Dup"}, r.seen, "radius drafts are not resolved")
	assert.NotNil(t, first.Locations()[0].Geometry)
	assert.Len(t, c.Reports(), 2)

	p.AssertExpectations(t)
	v.AssertExpectations(t)
	v.AssertNotCalled(t, "ZoomToMarketArea", mock.Anything, "")
}

func TestProcess_NothingImported(t *testing.T) {
	d1, d2 := zipDraft("A", "1"), zipDraft("B", "2")

	p := &mockPersister{}
	p.On("AddMarketArea", mock.Anything, "p1", d1).Return(nil, errors.New("connection refused"))
	p.On("AddMarketArea", mock.Anything, "p1", d2).Return(nil, &store.APIError{StatusCode: 400, Detail: "Project not found"})

	c := New(nil, p)
	res, err := c.Process(context.Background(), "p1", []*model.MarketAreaDraft{d1, d2})

	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.Same(t, res, be.Result)
	assert.Equal(t, "importer: no market areas imported: A: connection refused", err.Error())
	assert.Equal(t, 0, res.ImportedCount)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "Project not found", res.Errors[1].Message)
	assert.Equal(t, model.OutcomeFailed, res.Outcome())
	assert.Equal(t, StateFailed, c.State())
}

func TestProcess_SkipsResolveWithoutLocations(t *testing.T) {
	empty := model.NewLocationDraft("Empty", model.TypeCounty, nil)

	p := &mockPersister{}
	p.On("AddMarketArea", mock.Anything, "p1", empty).Return(saved("a1", 1, empty), nil)

	r := &fakeResolver{}
	res, err := New(r, p).Process(context.Background(), "p1", []*model.MarketAreaDraft{empty})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedCount)
	assert.Empty(t, r.seen)
}

func TestProcess_VisualizationErrorsSwallowed(t *testing.T) {
	d := zipDraft("Z", "92618")

	p := &mockPersister{}
	p.On("AddMarketArea", mock.Anything, "p1", d).Return(saved("a1", 1, d), nil)

	v := &mockVisualizer{}
	v.On("AddActiveLayer", mock.Anything, model.TypeZip).Return(errors.New("map offline"))

	res, err := New(&fakeResolver{}, p, WithVisualizer(v)).Process(context.Background(), "p1", []*model.MarketAreaDraft{d})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedCount)
	assert.Empty(t, res.Errors)
	assert.Equal(t, model.OutcomeSuccess, res.Outcome())
	v.AssertNotCalled(t, "ZoomToMarketArea", mock.Anything, mock.Anything)
}

func TestProcess_RecoversPanics(t *testing.T) {
	bad, good := zipDraft("Bad", "1"), zipDraft("Good", "2")

	p := &mockPersister{}
	p.On("AddMarketArea", mock.Anything, "p1", bad).Run(func(mock.Arguments) { panic("boom") })
	p.On("AddMarketArea", mock.Anything, "p1", good).Return(saved("a2", 1, good), nil)

	res, err := New(nil, p).Process(context.Background(), "p1", []*model.MarketAreaDraft{bad, good})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Bad", res.Errors[0].Item)
	assert.Equal(t, model.StagePersist, res.Errors[0].Stage)
	assert.Equal(t, "boom", res.Errors[0].Message)
}

func TestProcess_DriveTime(t *testing.T) {
	d := model.NewDriveTimeDraft("Drive", []model.DriveTimePoint{
		{Center: model.Point{Latitude: 33.7, Longitude: -117.8}, TravelTimeMinutes: 15, TimeRanges: []float64{15}, Units: "minutes"},
	})

	p := &mockPersister{}
	p.On("AddMarketArea", mock.Anything, "p1", d).Return(saved("a1", 4, d), nil)

	v := &mockVisualizer{}
	v.On("DrawDriveTimePolygon", mock.Anything, mock.Anything, d.Style, "a1", 4).Return(nil).Once()
	v.On("ZoomToMarketArea", mock.Anything, "a1").Return(nil).Once()

	_, err := New(&fakeResolver{}, p, WithVisualizer(v)).Process(context.Background(), "p1", []*model.MarketAreaDraft{d})
	require.NoError(t, err)
	v.AssertExpectations(t)
}

func TestProcess_CancelledBeforeStart(t *testing.T) {
	p := &mockPersister{}
	c := New(nil, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.Process(ctx, "p1", []*model.MarketAreaDraft{zipDraft("A", "1")})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.Equal(t, StateCancelled, c.State())
	p.AssertNotCalled(t, "AddMarketArea", mock.Anything, mock.Anything, mock.Anything)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_StandardSheet(t *testing.T) {
	path := writeFile(t, "areas.csv", "Name,Type,Locations\nDowntown,zip,\"90210,90211\"\n")

	p := &mockPersister{}
	p.On("AddMarketArea", mock.Anything, "p1", mock.AnythingOfType("*model.MarketAreaDraft")).
		Return(&model.SavedMarketArea{ID: "a1", ProjectID: "p1", Order: 1}, nil)

	r := &fakeResolver{}
	c := New(r, p)

	var previewed *Preview
	confirm := ConfirmFunc(func(_ context.Context, pv *Preview) ([]*model.MarketAreaDraft, error) {
		previewed = pv
		return pv.Drafts, nil
	})

	res, err := c.Run(context.Background(), path, "p1", confirm)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedCount)

	require.NotNil(t, previewed)
	assert.Equal(t, "areas.csv", previewed.Source)
	assert.Equal(t, sheet.FormatStandard, previewed.Format)
	require.Len(t, previewed.Drafts, 1)
	d := previewed.Drafts[0]
	assert.Equal(t, model.TypeZip, d.Type)
	require.Len(t, d.Locations(), 2)
	assert.Equal(t, "CA", d.Locations()[1].State)
	assert.Equal(t, []string{"Downtown"}, r.seen)
}

func TestLoad_Errors(t *testing.T) {
	c := New(nil, &mockPersister{})

	_, err := c.Load(context.Background(), writeFile(t, "empty.csv", "Name,Type,Locations\n"))
	assert.True(t, errors.Is(err, sheet.ErrNoData))
	assert.Equal(t, StateFailed, c.State())

	_, err = c.Load(context.Background(), writeFile(t, "nocols.csv", "Foo,Bar\n1,2\n"))
	var pe *sheet.ParseError
	assert.ErrorAs(t, err, &pe)

	_, err = c.Load(context.Background(), writeFile(t, "areas.pdf", "%PDF"))
	assert.True(t, errors.Is(err, workbook.ErrUnsupportedFormat))

	_, err = c.Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestLoadBytes(t *testing.T) {
	c := New(nil, &mockPersister{})
	pv, err := c.LoadBytes(context.Background(), "upload.csv", []byte("Name,Type,Locations\nOC,county,Orange County\n"))
	require.NoError(t, err)
	assert.Equal(t, StatePreviewReady, c.State())
	require.Len(t, pv.Drafts, 1)
	assert.Equal(t, model.TypeCounty, pv.Drafts[0].Type)
}

func TestConfirm_Cancel(t *testing.T) {
	p := &mockPersister{}
	c := New(nil, p)
	path := writeFile(t, "areas.csv", "Name,Type,Locations\nDowntown,zip,90210\n")

	cancelled := ConfirmFunc(func(context.Context, *Preview) ([]*model.MarketAreaDraft, error) {
		return nil, ErrCancelled
	})
	res, err := c.Run(context.Background(), path, "p1", cancelled)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.Equal(t, StateCancelled, c.State())

	excludeAll := ConfirmFunc(func(context.Context, *Preview) ([]*model.MarketAreaDraft, error) {
		return nil, nil
	})
	_, err = c.Run(context.Background(), path, "p1", excludeAll)
	assert.True(t, errors.Is(err, ErrCancelled))

	failing := ConfirmFunc(func(context.Context, *Preview) ([]*model.MarketAreaDraft, error) {
		return nil, errors.New("ui closed")
	})
	_, err = c.Run(context.Background(), path, "p1", failing)
	require.Error(t, err)
	assert.Equal(t, StateFailed, c.State())

	p.AssertNotCalled(t, "AddMarketArea", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirm_EditsApply(t *testing.T) {
	path := writeFile(t, "areas.csv", "Name,Type,Locations\nKeep,zip,90210\nDrop,zip,90211\n")

	p := &mockPersister{}
	p.On("AddMarketArea", mock.Anything, "p1", mock.MatchedBy(func(d *model.MarketAreaDraft) bool {
		return d.Name == "Kept and renamed"
	})).Return(&model.SavedMarketArea{ID: "a1"}, nil).Once()

	edit := ConfirmFunc(func(_ context.Context, pv *Preview) ([]*model.MarketAreaDraft, error) {
		pv.Drafts[0].Name = "Kept and renamed"
		return pv.Drafts[:1], nil
	})

	res, err := New(nil, p).Run(context.Background(), path, "p1", edit)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedCount)
	p.AssertExpectations(t)
}

func TestProcess_RecordsBatch(t *testing.T) {
	d1, d2 := zipDraft("A", "1"), zipDraft("B", "2")

	p := &mockPersister{}
	p.On("AddMarketArea", mock.Anything, "p1", d1).Return(saved("a1", 1, d1), nil)
	p.On("AddMarketArea", mock.Anything, "p1", d2).Return(nil, errors.New("connection refused"))

	collector := monitoring.NewCollector(time.Hour)
	c := New(nil, p, WithRecorder(collector))

	_, err := c.Process(context.Background(), "p1", []*model.MarketAreaDraft{d1, d2})
	require.NoError(t, err)

	snap, err := collector.Collect(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.BatchTotal)
	assert.Equal(t, 1, snap.BatchPartial)
	assert.Equal(t, 1, snap.ItemsImported)
	assert.Equal(t, 1, snap.ErrorsByKind[string(model.KindPersist)])
}
