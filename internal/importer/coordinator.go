// Package importer runs a market-area import batch end to end: decode and
// normalize a spreadsheet, wait for confirmation, then resolve, persist and
// draw each confirmed draft in turn.
package importer

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/resolve"
	"github.com/sells-group/marketarea-cli/internal/sheet"
	"github.com/sells-group/marketarea-cli/internal/store"
	"github.com/sells-group/marketarea-cli/internal/workbook"
)

// State is the coordinator's position in the import lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateFileSelected State = "file_selected"
	StateParsing      State = "parsing"
	StatePreviewReady State = "preview_ready"
	StateResolving    State = "resolving"
	StatePersisting   State = "persisting"
	StateVisualizing  State = "visualizing"
	StateCompleted    State = "completed"
	StateCancelled    State = "cancelled"
	StateFailed       State = "failed"
)

// ErrCancelled is returned when the batch is abandoned before processing.
var ErrCancelled = eris.New("importer: import cancelled")

// GeometryResolver attaches boundary geometry to a draft's locations.
type GeometryResolver interface {
	Resolve(ctx context.Context, d *model.MarketAreaDraft) resolve.Report
}

// Persister saves confirmed drafts. store.Store satisfies it.
type Persister interface {
	AddMarketArea(ctx context.Context, projectID string, d *model.MarketAreaDraft) (*model.SavedMarketArea, error)
}

// Visualizer draws saved market areas. Every method must tolerate partial
// or missing geometry.
type Visualizer interface {
	AddActiveLayer(ctx context.Context, t model.MarketAreaType) error
	DrawRadius(ctx context.Context, p model.RadiusPoint, style model.StyleSettings, id string, order int) error
	DrawDriveTimePolygon(ctx context.Context, p model.DriveTimePoint, style model.StyleSettings, id string, order int) error
	UpdateFeatureStyles(ctx context.Context, id string, order int, locs []model.LocationDescriptor, style model.StyleSettings, t model.MarketAreaType, immediate bool) error
	ZoomToMarketArea(ctx context.Context, id string) error
}

// Recorder receives the result of every finished batch.
// monitoring.Collector satisfies it.
type Recorder interface {
	Record(projectID string, res *model.BatchResult)
}

// BatchError is returned by Process when no draft was imported.
type BatchError struct {
	Result *model.BatchResult
}

func (e *BatchError) Error() string {
	if first, ok := e.Result.FirstError(); ok {
		return "importer: no market areas imported: " + first.Error()
	}
	return "importer: no market areas imported"
}

// Coordinator drives import batches. Batches are serialized: a second
// Process call waits for the first to finish.
type Coordinator struct {
	resolver   GeometryResolver
	persister  Persister
	visualizer Visualizer
	recorder   Recorder
	sheetOpts  sheet.Options
	bookOpts   workbook.Options
	log        *zap.Logger

	batchMu sync.Mutex

	mu      sync.Mutex
	state   State
	reports []resolve.Report
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithVisualizer draws each saved area on v.
func WithVisualizer(v Visualizer) Option {
	return func(c *Coordinator) {
		c.visualizer = v
	}
}

// WithRecorder reports each finished batch to r.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// WithSheetOptions sets the fallbacks used while normalizing.
func WithSheetOptions(o sheet.Options) Option {
	return func(c *Coordinator) {
		c.sheetOpts = o
	}
}

// WithWorkbookOptions selects the sheet to decode.
func WithWorkbookOptions(o workbook.Options) Option {
	return func(c *Coordinator) {
		c.bookOpts = o
	}
}

// New creates a Coordinator. resolver may be nil when geometry resolution
// is not wanted.
func New(resolver GeometryResolver, persister Persister, opts ...Option) *Coordinator {
	c := &Coordinator{
		resolver:  resolver,
		persister: persister,
		sheetOpts: sheet.DefaultOptions(),
		log:       zap.L().With(zap.String("component", "importer")),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Reports returns the resolver reports of the last processed batch.
func (c *Coordinator) Reports() []resolve.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]resolve.Report(nil), c.reports...)
}

// Run loads path, asks confirmer to approve the drafts and processes the
// approved ones under projectID.
func (c *Coordinator) Run(ctx context.Context, path, projectID string, confirmer Confirmer) (*model.BatchResult, error) {
	preview, err := c.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	drafts, err := c.Confirm(ctx, preview, confirmer)
	if err != nil {
		return nil, err
	}
	return c.Process(ctx, projectID, drafts)
}

// Process resolves, persists and draws drafts one at a time. A failure in
// one draft is recorded in the result and never stops the batch. When
// nothing was imported the error is a *BatchError carrying the result.
func (c *Coordinator) Process(ctx context.Context, projectID string, drafts []*model.MarketAreaDraft) (*model.BatchResult, error) {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()

	if err := ctx.Err(); err != nil {
		c.setState(StateCancelled)
		return nil, eris.Wrap(ErrCancelled, err.Error())
	}

	c.mu.Lock()
	c.reports = nil
	c.mu.Unlock()

	res := &model.BatchResult{CreatedIDs: []string{}, Errors: []model.ImportError{}}
	log := c.log.With(zap.String("project_id", projectID), zap.Int("drafts", len(drafts)))
	log.Info("importer: processing batch")

	for i, d := range drafts {
		if err := ctx.Err(); err != nil {
			log.Warn("importer: batch interrupted", zap.Int("processed", i), zap.Error(err))
			for k, rest := range drafts[i:] {
				res.Errors = append(res.Errors, model.ImportError{
					Stage:   model.StagePersist,
					Item:    itemName(rest, i+k),
					Kind:    model.KindPersist,
					Message: "import interrupted: " + err.Error(),
				})
			}
			break
		}
		c.processItem(ctx, projectID, d, i, res)
	}

	outcome := res.Outcome()
	log.Info("importer: batch finished",
		zap.String("outcome", string(outcome)),
		zap.Int("imported", res.ImportedCount),
		zap.Int("errors", len(res.Errors)),
	)
	if c.recorder != nil {
		c.recorder.Record(projectID, res)
	}

	if outcome == model.OutcomeFailed {
		c.setState(StateFailed)
		return res, &BatchError{Result: res}
	}
	c.setState(StateCompleted)
	return res, nil
}

// processItem runs one draft through resolve, persist and visualize. Panics
// are recovered into an error for the item.
func (c *Coordinator) processItem(ctx context.Context, projectID string, d *model.MarketAreaDraft, idx int, res *model.BatchResult) {
	name := itemName(d, idx)
	stage := model.StageResolve
	log := c.log.With(zap.String("market_area", name))

	defer func() {
		if r := recover(); r != nil {
			log.Error("importer: item panicked", zap.String("stage", string(stage)), zap.Any("panic", r))
			if stage == model.StageVisualize {
				return
			}
			kind := model.KindPersist
			if stage == model.StageResolve {
				kind = model.KindQuery
			}
			res.Errors = append(res.Errors, model.ImportError{
				Stage:   stage,
				Item:    name,
				Kind:    kind,
				Message: fmt.Sprint(r),
			})
		}
	}()

	if d == nil {
		res.Errors = append(res.Errors, model.ImportError{
			Stage: model.StageParse, Item: name, Kind: model.KindParse, Message: "empty draft",
		})
		return
	}

	if c.resolver != nil && d.Type.UsesLocations() && len(d.Locations()) > 0 {
		c.setState(StateResolving)
		rep := c.resolver.Resolve(ctx, d)
		c.mu.Lock()
		c.reports = append(c.reports, rep)
		c.mu.Unlock()
		if len(rep.Unmatched) > 0 {
			log.Info("importer: locations without geometry", zap.Strings("unmatched", rep.Unmatched))
		}
		for _, qe := range rep.Errors {
			log.Warn("importer: geometry query failed", zap.String("item", qe.Item), zap.String("message", qe.Message))
		}
	}

	stage = model.StagePersist
	c.setState(StatePersisting)
	saved, err := c.persister.AddMarketArea(ctx, projectID, d)
	if err != nil {
		msg := err.Error()
		if detail, ok := store.Detail(err); ok {
			msg = detail
		}
		log.Warn("importer: persist failed", zap.Error(err))
		res.Errors = append(res.Errors, model.ImportError{
			Stage:   model.StagePersist,
			Item:    name,
			Kind:    model.KindPersist,
			Message: msg,
		})
		return
	}
	res.ImportedCount++
	res.CreatedIDs = append(res.CreatedIDs, saved.ID)

	stage = model.StageVisualize
	if err := c.visualize(ctx, saved); err != nil {
		log.Warn("importer: visualization failed", zap.String("market_area_id", saved.ID), zap.Error(err))
	}
}

// visualize draws a saved area. The saved record stands whatever happens here.
func (c *Coordinator) visualize(ctx context.Context, saved *model.SavedMarketArea) error {
	if c.visualizer == nil {
		return nil
	}
	c.setState(StateVisualizing)

	d := &saved.Draft
	switch d.Type {
	case model.TypeRadius:
		for _, p := range d.RadiusPoints() {
			if err := c.visualizer.DrawRadius(ctx, p, d.Style, saved.ID, saved.Order); err != nil {
				return eris.Wrap(err, "importer: draw radius")
			}
		}
	case model.TypeDriveTime:
		for _, p := range d.DriveTimePoints() {
			if err := c.visualizer.DrawDriveTimePolygon(ctx, p, d.Style, saved.ID, saved.Order); err != nil {
				return eris.Wrap(err, "importer: draw drive-time polygon")
			}
		}
	default:
		if err := c.visualizer.AddActiveLayer(ctx, d.Type); err != nil {
			return eris.Wrap(err, "importer: activate layer")
		}
		if err := c.visualizer.UpdateFeatureStyles(ctx, saved.ID, saved.Order, d.Locations(), d.Style, d.Type, true); err != nil {
			return eris.Wrap(err, "importer: style features")
		}
	}
	return eris.Wrap(c.visualizer.ZoomToMarketArea(ctx, saved.ID), "importer: zoom")
}

func itemName(d *model.MarketAreaDraft, idx int) string {
	if d == nil || d.Name == "" {
		return fmt.Sprintf("market area %d", idx+1)
	}
	return d.Name
}
