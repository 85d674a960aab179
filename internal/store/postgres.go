package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/marketarea-cli/internal/db"
	"github.com/sells-group/marketarea-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgAreaColumns = `id, project_id, name, short_name, ma_type, style_settings::text, description,
	radius_points::text, drive_time_points::text, sort_order, created_at`

	pgInsertArea = `INSERT INTO market_areas (id, project_id, name, short_name, ma_type, style_settings,
	description, radius_points, drive_time_points, sort_order, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"name_exists": `SELECT EXISTS (SELECT 1 FROM market_areas WHERE project_id = $1 AND name = $2)`,
	"next_order":  `SELECT COALESCE(MAX(sort_order), 0) + 1 FROM market_areas WHERE project_id = $1`,
	"insert_area": pgInsertArea,
	"get_area":    `SELECT ` + pgAreaColumns + ` FROM market_areas WHERE project_id = $1 AND id = $2`,
	"delete_area": `DELETE FROM market_areas WHERE project_id = $1 AND id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Statements are prepared lazily after Migrate creates the tables, so a
	// fresh database still connects.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		var ready bool
		if err := conn.QueryRow(ctx, `SELECT to_regclass('market_areas') IS NOT NULL`).Scan(&ready); err != nil || !ready {
			return nil
		}
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS market_areas (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id        TEXT NOT NULL,
	name              TEXT NOT NULL,
	short_name        TEXT NOT NULL DEFAULT '',
	ma_type           TEXT NOT NULL,
	style_settings    JSONB NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	radius_points     JSONB NOT NULL DEFAULT '[]',
	drive_time_points JSONB NOT NULL DEFAULT '[]',
	sort_order        INTEGER NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (project_id, name)
);

CREATE TABLE IF NOT EXISTS market_area_locations (
	market_area_id TEXT NOT NULL REFERENCES market_areas(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	location_id    TEXT NOT NULL,
	name           TEXT NOT NULL,
	state          TEXT NOT NULL DEFAULT '',
	geometry       BYTEA,
	PRIMARY KEY (market_area_id, position)
);

CREATE INDEX IF NOT EXISTS idx_market_areas_project ON market_areas(project_id, sort_order);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AddMarketArea(ctx context.Context, projectID string, d *model.MarketAreaDraft) (*model.SavedMarketArea, error) {
	draft, err := prepare(d)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serializes imports into one project so order numbers stay unique.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, projectID); err != nil {
		return nil, eris.Wrap(err, "postgres: lock project")
	}

	var exists bool
	if err := tx.QueryRow(ctx, preparedStatements["name_exists"], projectID, draft.Name).Scan(&exists); err != nil {
		return nil, eris.Wrap(err, "postgres: check name")
	}
	if exists {
		return nil, duplicateName()
	}

	var order int
	if err := tx.QueryRow(ctx, preparedStatements["next_order"], projectID).Scan(&order); err != nil {
		return nil, eris.Wrap(err, "postgres: next order")
	}

	rec, err := newAreaRecord(uuid.New().String(), projectID, order, time.Now().UTC(), draft)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, pgInsertArea,
		rec.ID, rec.ProjectID, rec.Name, rec.ShortName, rec.Type, rec.Style, rec.Description,
		rec.RadiusPoints, rec.DriveTimePoints, rec.Order, rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, duplicateName()
		}
		return nil, eris.Wrap(err, "postgres: insert market area")
	}

	rows, err := locationRows(rec.ID, draft.Locations())
	if err != nil {
		return nil, err
	}
	if _, err := db.CopyFrom(ctx, tx, locationsTable, locationColumns, rows); err != nil {
		return nil, eris.Wrap(err, "postgres: copy locations")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit")
	}
	return rec.saved(draft.Locations())
}

func (s *PostgresStore) ListMarketAreas(ctx context.Context, projectID string) ([]model.SavedMarketArea, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgAreaColumns+` FROM market_areas WHERE project_id = $1 ORDER BY sort_order`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list market areas")
	}

	var recs []*areaRecord
	for rows.Next() {
		rec, err := scanArea(rows, "postgres")
		if err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list market areas iterate")
	}

	groups, err := s.locations(ctx,
		`SELECT l.market_area_id, l.location_id, l.name, l.state, l.geometry
		 FROM market_area_locations l JOIN market_areas m ON m.id = l.market_area_id
		 WHERE m.project_id = $1 ORDER BY l.market_area_id, l.position`, projectID)
	if err != nil {
		return nil, err
	}

	out := make([]model.SavedMarketArea, 0, len(recs))
	for _, rec := range recs {
		saved, err := rec.saved(groups[rec.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, *saved)
	}
	return out, nil
}

func (s *PostgresStore) GetMarketArea(ctx context.Context, projectID, id string) (*model.SavedMarketArea, error) {
	rec, err := scanArea(s.pool.QueryRow(ctx, preparedStatements["get_area"], projectID, id), "postgres")
	if err != nil {
		return nil, err
	}

	groups, err := s.locations(ctx,
		`SELECT market_area_id, location_id, name, state, geometry
		 FROM market_area_locations WHERE market_area_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	return rec.saved(groups[id])
}

func (s *PostgresStore) DeleteMarketArea(ctx context.Context, projectID, id string) error {
	tag, err := s.pool.Exec(ctx, preparedStatements["delete_area"], projectID, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete market area %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "market area %s", id)
	}
	return nil
}

func (s *PostgresStore) locations(ctx context.Context, query string, args ...any) (locationGroups, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query locations")
	}
	defer rows.Close()

	groups := locationGroups{}
	for rows.Next() {
		var areaID, id, name, state string
		var geometry []byte
		if err := rows.Scan(&areaID, &id, &name, &state, &geometry); err != nil {
			return nil, eris.Wrap(err, "postgres: scan location")
		}
		if err := groups.add(areaID, id, name, state, geometry); err != nil {
			return nil, err
		}
	}
	return groups, eris.Wrap(rows.Err(), "postgres: query locations iterate")
}
