package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/marketarea-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// One writer; keeps the order counter and name check race-free.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS market_areas (
	id                TEXT PRIMARY KEY,
	project_id        TEXT NOT NULL,
	name              TEXT NOT NULL,
	short_name        TEXT NOT NULL DEFAULT '',
	ma_type           TEXT NOT NULL,
	style_settings    TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	radius_points     TEXT NOT NULL DEFAULT '[]',
	drive_time_points TEXT NOT NULL DEFAULT '[]',
	sort_order        INTEGER NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (project_id, name)
);

CREATE TABLE IF NOT EXISTS market_area_locations (
	market_area_id TEXT NOT NULL REFERENCES market_areas(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	location_id    TEXT NOT NULL,
	name           TEXT NOT NULL,
	state          TEXT NOT NULL DEFAULT '',
	geometry       BLOB,
	PRIMARY KEY (market_area_id, position)
);

CREATE INDEX IF NOT EXISTS idx_market_areas_project ON market_areas(project_id, sort_order);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AddMarketArea(ctx context.Context, projectID string, d *model.MarketAreaDraft) (*model.SavedMarketArea, error) {
	draft, err := prepare(d)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM market_areas WHERE project_id = ? AND name = ?`,
		projectID, draft.Name,
	).Scan(&exists); err != nil {
		return nil, eris.Wrap(err, "sqlite: check name")
	}
	if exists > 0 {
		return nil, duplicateName()
	}

	var order int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order), 0) + 1 FROM market_areas WHERE project_id = ?`,
		projectID,
	).Scan(&order); err != nil {
		return nil, eris.Wrap(err, "sqlite: next order")
	}

	rec, err := newAreaRecord(uuid.New().String(), projectID, order, time.Now().UTC(), draft)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO market_areas (id, project_id, name, short_name, ma_type, style_settings, description,
		 radius_points, drive_time_points, sort_order, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProjectID, rec.Name, rec.ShortName, rec.Type, rec.Style, rec.Description,
		rec.RadiusPoints, rec.DriveTimePoints, rec.Order, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert market area")
	}

	rows, err := locationRows(rec.ID, draft.Locations())
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO market_area_locations (market_area_id, position, location_id, name, state, geometry)
			 VALUES (?, ?, ?, ?, ?, ?)`, row...,
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert location %v", row[2])
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return rec.saved(draft.Locations())
}

const sqliteAreaColumns = `id, project_id, name, short_name, ma_type, style_settings, description,
	radius_points, drive_time_points, sort_order, created_at`

func (s *SQLiteStore) ListMarketAreas(ctx context.Context, projectID string) ([]model.SavedMarketArea, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteAreaColumns+` FROM market_areas WHERE project_id = ? ORDER BY sort_order`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list market areas")
	}
	defer rows.Close()

	var recs []*areaRecord
	for rows.Next() {
		rec, err := scanArea(rows, "sqlite")
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list market areas iterate")
	}

	groups, err := s.locations(ctx,
		`SELECT l.market_area_id, l.location_id, l.name, l.state, l.geometry
		 FROM market_area_locations l JOIN market_areas m ON m.id = l.market_area_id
		 WHERE m.project_id = ? ORDER BY l.market_area_id, l.position`, projectID)
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

func (s *SQLiteStore) GetMarketArea(ctx context.Context, projectID, id string) (*model.SavedMarketArea, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteAreaColumns+` FROM market_areas WHERE project_id = ? AND id = ?`,
		projectID, id,
	)
	rec, err := scanArea(row, "sqlite")
	if err != nil {
		return nil, err
	}

	groups, err := s.locations(ctx,
		`SELECT market_area_id, location_id, name, state, geometry
		 FROM market_area_locations WHERE market_area_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	return rec.saved(groups[id])
}

func (s *SQLiteStore) DeleteMarketArea(ctx context.Context, projectID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM market_area_locations WHERE market_area_id IN
		 (SELECT id FROM market_areas WHERE project_id = ? AND id = ?)`, projectID, id,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete locations of %s", id)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM market_areas WHERE project_id = ? AND id = ?`, projectID, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete market area %s", id)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) locations(ctx context.Context, query string, args ...any) (locationGroups, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query locations")
	}
	defer rows.Close()

	groups := locationGroups{}
	for rows.Next() {
		var areaID, id, name, state string
		var geometry []byte
		if err := rows.Scan(&areaID, &id, &name, &state, &geometry); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location")
		}
		if err := groups.add(areaID, id, name, state, geometry); err != nil {
			return nil, err
		}
	}
	return groups, eris.Wrap(rows.Err(), "sqlite: query locations iterate")
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "market area %s", id)
	}
	return nil
}
