// Package sqlite provides single-file storage with the same contracts as the postgres stores.
// Timestamps are stored as unix seconds.
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS apps (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	name               TEXT    NOT NULL,
	platform           TEXT    NOT NULL,
	app_store_id       TEXT,
	play_store_id      TEXT,
	app_store_country  TEXT    NOT NULL DEFAULT 'cn',
	play_store_country TEXT    NOT NULL DEFAULT 'cn',
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reviews (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	app_id      INTEGER NOT NULL REFERENCES apps (id),
	platform    TEXT    NOT NULL,
	rating      REAL    NOT NULL,
	content     TEXT    NOT NULL DEFAULT '',
	author      TEXT    NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	ingested_at INTEGER NOT NULL,
	UNIQUE (app_id, platform, author, created_at)
);

CREATE INDEX IF NOT EXISTS idx_reviews_app_created ON reviews (app_id, created_at DESC);

CREATE TABLE IF NOT EXISTS sync_state (
	app_id         INTEGER NOT NULL REFERENCES apps (id),
	platform       TEXT    NOT NULL,
	last_synced_at INTEGER,
	last_inserted  INTEGER NOT NULL DEFAULT 0,
	total_inserted INTEGER NOT NULL DEFAULT 0,
	last_error     TEXT,
	updated_at     INTEGER NOT NULL,
	PRIMARY KEY (app_id, platform)
);
`

// Open connects to the database at path (":memory:" for a private in-memory one) and applies the schema.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}

	return db, nil
}
