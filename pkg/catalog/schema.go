package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

// migration is one forward-only versioned schema change, tracked in
// schema_version the same way waddle's storage layer tracked its own
// migrations, generalized to this catalog's frame/segment schema.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "initial schema: segments, frames, processing_queue, regions, fts",
		SQL: `
CREATE TABLE IF NOT EXISTS segments (
	segment_id    INTEGER PRIMARY KEY,
	opened_at     INTEGER NOT NULL,
	closed_at     INTEGER,
	relative_path TEXT NOT NULL,
	width         INTEGER NOT NULL,
	height        INTEGER NOT NULL,
	frame_count   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS frames (
	frame_id               INTEGER PRIMARY KEY,
	captured_at            INTEGER NOT NULL,
	segment_id             INTEGER NOT NULL REFERENCES segments(segment_id),
	frame_index_in_segment INTEGER NOT NULL,
	app_bundle_id          TEXT,
	app_name               TEXT,
	window_title           TEXT,
	browser_url            TEXT,
	display_id             TEXT,
	processing_status      TEXT NOT NULL,
	source_kind            TEXT NOT NULL,
	UNIQUE(segment_id, frame_index_in_segment)
);
CREATE INDEX IF NOT EXISTS idx_frames_status ON frames(processing_status);
CREATE INDEX IF NOT EXISTS idx_frames_captured_at ON frames(captured_at);

CREATE TABLE IF NOT EXISTS processing_queue (
	queue_id    INTEGER PRIMARY KEY,
	frame_id    INTEGER NOT NULL UNIQUE REFERENCES frames(frame_id),
	enqueued_at INTEGER NOT NULL,
	priority    INTEGER NOT NULL DEFAULT 0,
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT
);
CREATE INDEX IF NOT EXISTS idx_queue_order ON processing_queue(priority DESC, enqueued_at ASC);

CREATE TABLE IF NOT EXISTS regions (
	frame_id     INTEGER NOT NULL REFERENCES frames(frame_id),
	text_offset  INTEGER NOT NULL,
	text_length  INTEGER NOT NULL,
	bounds_x     INTEGER NOT NULL,
	bounds_y     INTEGER NOT NULL,
	bounds_w     INTEGER NOT NULL,
	bounds_h     INTEGER NOT NULL,
	chrome_bit   INTEGER NOT NULL,
	window_index INTEGER
);
CREATE INDEX IF NOT EXISTS idx_regions_frame ON regions(frame_id);

CREATE VIRTUAL TABLE IF NOT EXISTS frames_fts USING fts5(
	full_text,
	chrome_text,
	frame_id UNINDEXED,
	segment_id UNINDEXED
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
	},
}

func (c *Catalog) applyMigrations() error {
	if _, err := c.db.Exec(`
CREATE TABLE IF NOT EXISTS schema_version (
	version     INTEGER PRIMARY KEY,
	applied_at  INTEGER NOT NULL,
	description TEXT
);`); err != nil {
		return fmt.Errorf("catalog: create schema_version: %w", err)
	}

	var current int
	row := c.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("catalog: read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := c.db.Begin()
		if err != nil {
			return fmt.Errorf("catalog: begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("catalog: apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_version (version, applied_at, description) VALUES (?, ?, ?)`,
			m.Version, time.Now().Unix(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("catalog: record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("catalog: commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// schemaVersion returns the highest applied migration version.
func schemaVersion(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	return v, err
}
