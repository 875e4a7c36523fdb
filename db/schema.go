package db

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_snapshots (
	username   TEXT PRIMARY KEY,
	fetched_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_events (
	username   TEXT NOT NULL REFERENCES event_snapshots(username) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	event_id   TEXT NOT NULL,
	type       TEXT NOT NULL,
	repo       TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL DEFAULT '',
	event_date TEXT NOT NULL,
	PRIMARY KEY (username, position)
);
`

// EnsureSchema creates the snapshot tables when they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
