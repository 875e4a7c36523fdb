package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ghactivity/logger"
	"ghactivity/models"
)

const (
	selectSnapshotQuery = `
		SELECT username, fetched_at
		FROM event_snapshots
		WHERE username = $1
	`

	selectSnapshotEventsQuery = `
		SELECT event_id, type, repo, title, url, event_date
		FROM snapshot_events
		WHERE username = $1
		ORDER BY position
	`
)

type eventRow struct {
	EventID string `db:"event_id"`
	Type    string `db:"type"`
	Repo    string `db:"repo"`
	Title   string `db:"title"`
	URL     string `db:"url"`
	Date    string `db:"event_date"`
}

// SaveSnapshot replaces the stored feed for snap.Username in one transaction.
func (db *DB) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	if snap.Username == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrInvalidInput)
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO event_snapshots (username, fetched_at)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET fetched_at = EXCLUDED.fetched_at
	`, snap.Username, snap.FetchedAt)
	if err != nil {
		return fmt.Errorf("failed to store snapshot for %s: %w", snap.Username, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_events WHERE username = $1`, snap.Username); err != nil {
		return fmt.Errorf("failed to clear snapshot events for %s: %w", snap.Username, err)
	}

	if len(snap.Events) > 0 {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO snapshot_events (username, position, event_id, type, repo, title, url, event_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare snapshot event insert: %w", err)
		}
		defer stmt.Close()

		for i, ev := range snap.Events {
			if _, err := stmt.ExecContext(ctx,
				snap.Username, i, ev.ID, ev.Type, ev.Repo, ev.Title, ev.URL, ev.Date,
			); err != nil {
				return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrTransactionFailed, err)
	}

	logger.Debug("Stored event snapshot",
		zap.String("username", snap.Username),
		zap.Int("events", len(snap.Events)))
	return nil
}

// LoadSnapshot returns the stored feed for username.
func (db *DB) LoadSnapshot(ctx context.Context, username string) (*models.Snapshot, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username cannot be empty", ErrInvalidInput)
	}

	stmt, err := db.getStmt(ctx, selectSnapshotQuery)
	if err != nil {
		return nil, err
	}

	var snap models.Snapshot
	if err := stmt.GetContext(ctx, &snap, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, username)
		}
		return nil, fmt.Errorf("failed to get snapshot for %s: %w", username, err)
	}

	stmt, err = db.getStmt(ctx, selectSnapshotEventsQuery)
	if err != nil {
		return nil, err
	}

	var rows []eventRow
	if err := stmt.SelectContext(ctx, &rows, username); err != nil {
		return nil, fmt.Errorf("failed to get snapshot events for %s: %w", username, err)
	}

	snap.Events = make([]models.GithubEvent, 0, len(rows))
	for _, r := range rows {
		snap.Events = append(snap.Events, models.GithubEvent{
			ID:    r.EventID,
			Type:  r.Type,
			Kind:  models.KindOf(r.Type),
			Repo:  r.Repo,
			Title: r.Title,
			URL:   r.URL,
			Date:  r.Date,
		})
	}

	return &snap, nil
}

// PruneSnapshots deletes snapshots fetched before olderThan and returns how
// many were removed. Their events go with them via ON DELETE CASCADE.
func (db *DB) PruneSnapshots(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM event_snapshots WHERE fetched_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned snapshots: %w", err)
	}
	return n, nil
}
