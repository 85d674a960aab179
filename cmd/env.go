package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketarea-cli/internal/config"
	"github.com/sells-group/marketarea-cli/internal/featureservice"
	"github.com/sells-group/marketarea-cli/internal/importer"
	"github.com/sells-group/marketarea-cli/internal/mapview"
	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/monitoring"
	"github.com/sells-group/marketarea-cli/internal/resilience"
	"github.com/sells-group/marketarea-cli/internal/resolve"
	"github.com/sells-group/marketarea-cli/internal/sheet"
	"github.com/sells-group/marketarea-cli/internal/store"
	"github.com/sells-group/marketarea-cli/internal/workbook"
)

// importEnv holds everything the import, serve and migrate commands need.
type importEnv struct {
	Store       store.Store
	Layers      featureservice.Layers
	Resolver    *resolve.Resolver
	Canvas      *mapview.Canvas
	Coordinator *importer.Coordinator
	Collector   *monitoring.Collector
}

// Close releases resources held by the environment.
func (e *importEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the configuration for mode, opens and migrates the
// store and wires the coordinator. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*importEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	layers, err := featureservice.LoadLayers(cfg.FeatureService.LayersFile)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	resolver := resolve.New(newFeatureClient(cfg.FeatureService), layers,
		resolve.WithMaxRecordCount(cfg.FeatureService.MaxRecordCount),
	)
	canvas := mapview.NewCanvas()
	collector := monitoring.NewCollector(time.Duration(cfg.Monitoring.LookbackWindowHours) * time.Hour)
	coord := importer.New(resolver, st,
		importer.WithVisualizer(canvas),
		importer.WithRecorder(collector),
		importer.WithSheetOptions(sheetOptions(cfg.Import)),
		importer.WithWorkbookOptions(workbook.Options{SheetName: importSheet}),
	)

	zap.L().Debug("import environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("featureservice", cfg.FeatureService.BaseURL),
		zap.Int("layers", len(layers)),
	)

	return &importEnv{
		Store:       st,
		Layers:      layers,
		Resolver:    resolver,
		Canvas:      canvas,
		Coordinator: coord,
		Collector:   collector,
	}, nil
}

func newFeatureClient(fc config.FeatureServiceConfig) featureservice.Client {
	opts := []featureservice.Option{
		featureservice.WithRetry(resilience.RetryFromConfig(fc.Retry)),
		featureservice.WithCircuit(resilience.CircuitFromConfig(fc.Circuit)),
	}
	if fc.TimeoutSecs > 0 {
		opts = append(opts, featureservice.WithTimeout(time.Duration(fc.TimeoutSecs)*time.Second))
	}
	if fc.RateLimit > 0 {
		opts = append(opts, featureservice.WithRateLimit(fc.RateLimit))
	}
	return featureservice.NewClient(fc.BaseURL, opts...)
}

// sheetOptions maps the import section onto normalizer fallbacks.
func sheetOptions(ic config.ImportConfig) sheet.Options {
	return sheet.Options{
		DefaultState:        ic.DefaultState,
		DefaultBlockState:   ic.DefaultBlockState,
		DefaultCounty:       ic.DefaultCounty,
		DefaultCenter:       model.Point{Latitude: ic.DefaultLatitude, Longitude: ic.DefaultLongitude},
		DefaultRadiusMiles:  ic.DefaultRadiusMiles,
		DefaultDriveMinutes: ic.DefaultDriveMinutes,
	}
}

// projectID returns the --project flag, falling back to import.project_id.
func projectID(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if cfg.Import.ProjectID != "" {
		return cfg.Import.ProjectID, nil
	}
	return "", eris.New("project is required (--project or MARKETAREA_IMPORT_PROJECT_ID)")
}
