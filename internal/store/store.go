// Package store persists imported market areas.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marketarea-cli/internal/config"
	"github.com/sells-group/marketarea-cli/internal/model"
)

// Store defines the persistence interface for market areas.
type Store interface {
	// AddMarketArea validates and saves one draft under projectID. Validation
	// failures are *ValidationError.
	AddMarketArea(ctx context.Context, projectID string, d *model.MarketAreaDraft) (*model.SavedMarketArea, error)
	ListMarketAreas(ctx context.Context, projectID string) ([]model.SavedMarketArea, error)
	GetMarketArea(ctx context.Context, projectID, id string) (*model.SavedMarketArea, error)
	DeleteMarketArea(ctx context.Context, projectID, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a market area does not exist.
var ErrNotFound = eris.New("market area not found")

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "api":
		return NewAPIClient(cfg.APIBaseURL, cfg.APIToken), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
