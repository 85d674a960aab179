// Package resolve attaches boundary geometry to the named locations of a
// market-area draft by querying a feature service.
package resolve

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/marketarea-cli/internal/featureservice"
	"github.com/sells-group/marketarea-cli/internal/model"
)

// Report describes one Resolve call.
type Report struct {
	Draft           string               `json:"draft"`
	Type            model.MarketAreaType `json:"type"`
	Locations       int                  `json:"locations"`
	Matched         int                  `json:"matched"`
	Unmatched       []string             `json:"unmatched,omitempty"`
	Queries         int                  `json:"queries"`
	DistinctRetries int                  `json:"distinct_retries"`
	UsedFallback    bool                 `json:"used_fallback"`
	Errors          []model.ImportError  `json:"errors,omitempty"`
}

// Resolved reports whether every location received geometry.
func (r Report) Resolved() bool {
	return r.Matched == r.Locations
}

// Resolver queries the feature service for the locations of a draft. One
// draft is resolved at a time; the active layer is shared state.
type Resolver struct {
	client     featureservice.Client
	layers     featureservice.Layers
	maxRecords int

	mu     sync.Mutex
	active featureservice.Layer
	// Every layer lives on one map service, so a rejection of distinct
	// values by any sublayer holds for all of them.
	noDistinct bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxRecordCount caps the features returned per query.
func WithMaxRecordCount(n int) Option {
	return func(r *Resolver) {
		r.maxRecords = n
	}
}

// New returns a Resolver over client. Nil layers mean the defaults.
func New(client featureservice.Client, layers featureservice.Layers, opts ...Option) *Resolver {
	if layers == nil {
		layers = featureservice.DefaultLayers()
	}
	r := &Resolver{
		client:     client,
		layers:     layers,
		maxRecords: 2000,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ActiveLayer returns the layer of the draft most recently resolved.
func (r *Resolver) ActiveLayer() featureservice.Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Resolve attaches geometry to d's locations in place. Query failures never
// abort: unmatched locations keep nil geometry and the failure is reported.
func (r *Resolver) Resolve(ctx context.Context, d *model.MarketAreaDraft) Report {
	rep := Report{Draft: d.Name, Type: d.Type}
	locs := d.Locations()
	rep.Locations = len(locs)
	if !d.Type.UsesLocations() || len(locs) == 0 {
		return rep
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	layer, ok := r.layers.For(d.Type)
	if !ok {
		rep.Errors = append(rep.Errors, queryError(d.Name, fmt.Sprintf("no layer configured for %s", d.Type)))
		rep.Unmatched = unmatchedAll(locs)
		return rep
	}
	r.active = layer

	features, err := r.queryLayer(ctx, layer, BuildWhere(d.Type, layer, locs), &rep)
	if d.Type == model.TypePlace && (err != nil || len(features) == 0) {
		rep.UsedFallback = true
		zap.L().Info("resolve: retrying places by first word",
			zap.String("draft", d.Name),
			zap.NamedError("primary_error", err),
		)
		features, err = r.queryLayer(ctx, layer, PlaceFallbackWhere(layer, locs), &rep)
	}
	if err != nil {
		rep.Errors = append(rep.Errors, queryError(d.Name, err.Error()))
		zap.L().Warn("resolve: query failed",
			zap.String("draft", d.Name),
			zap.String("type", string(d.Type)),
			zap.Error(err),
		)
	}

	match := MatcherFor(d.Type)
	for i := range locs {
		f := match(locs[i], layer, features)
		if f == nil || f.Geometry.IsEmpty() {
			rep.Unmatched = append(rep.Unmatched, label(locs[i]))
			continue
		}
		// Features can match several locations; each gets its own copy.
		locs[i].Geometry = f.Geometry.Clone()
		rep.Matched++
	}

	zap.L().Info("resolve: draft resolved",
		zap.String("draft", d.Name),
		zap.String("type", string(d.Type)),
		zap.Int("locations", rep.Locations),
		zap.Int("matched", rep.Matched),
		zap.Int("features", len(features)),
		zap.Int("queries", rep.Queries),
	)
	return rep
}

// queryLayer walks the layer's sublayers and returns the features of the
// first one with any. An error is returned only when every sublayer failed.
func (r *Resolver) queryLayer(ctx context.Context, layer featureservice.Layer, where string, rep *Report) ([]featureservice.Feature, error) {
	var lastErr error
	failed := 0
	for _, id := range layer.IDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		features, err := r.query(ctx, id, where, rep)
		if err != nil {
			lastErr = err
			failed++
			continue
		}
		if len(features) > 0 {
			return features, nil
		}
	}
	if failed == len(layer.IDs) {
		return nil, lastErr
	}
	return nil, nil
}

// query runs one sublayer query. A rejection of distinct values is retried
// once without them and remembered for the service.
func (r *Resolver) query(ctx context.Context, layerID int, where string, rep *Report) ([]featureservice.Feature, error) {
	q := featureservice.QuerySpec{
		Where:                where,
		OutFields:            []string{"*"},
		ReturnGeometry:       true,
		ReturnDistinctValues: !r.noDistinct,
		MaxRecordCount:       r.maxRecords,
	}
	rep.Queries++
	features, err := r.client.Query(ctx, layerID, q)
	if err == nil || !q.ReturnDistinctValues || !featureservice.IsDistinctUnsupported(err) {
		return features, err
	}

	zap.L().Debug("resolve: layer rejects distinct values, retrying without",
		zap.Int("layer", layerID),
		zap.Error(err),
	)
	r.noDistinct = true
	q.ReturnDistinctValues = false
	rep.Queries++
	rep.DistinctRetries++
	return r.client.Query(ctx, layerID, q)
}

func queryError(item, msg string) model.ImportError {
	return model.ImportError{
		Stage:   model.StageResolve,
		Item:    item,
		Kind:    model.KindQuery,
		Message: msg,
	}
}

func label(loc model.LocationDescriptor) string {
	if loc.ID != "" {
		return loc.ID
	}
	return loc.Name
}

func unmatchedAll(locs []model.LocationDescriptor) []string {
	out := make([]string, len(locs))
	for i, loc := range locs {
		out[i] = label(loc)
	}
	return out
}
