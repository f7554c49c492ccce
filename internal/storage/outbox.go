package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func enqueueVector(ctx context.Context, q querier, contentID int64, at time.Time) error {
	_, err := q.ExecContext(ctx, `
	INSERT INTO vector_outbox (content_id, attempts, last_error, next_attempt_at, created_at)
	VALUES (?, 0, '', ?, ?)
	ON CONFLICT(content_id) DO UPDATE SET
		attempts = 0,
		last_error = '',
		next_attempt_at = excluded.next_attempt_at`,
		contentID, toMillis(at), toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("enqueue vector: %w", err)
	}
	return nil
}

// EnqueueVector queues a vector write for contentID, resetting any existing entry.
func (d *DB) EnqueueVector(ctx context.Context, contentID int64, at time.Time) error {
	return enqueueVector(ctx, d.db, contentID, at)
}

// ListDueOutbox returns entries whose next attempt is at or before now.
func (d *DB) ListDueOutbox(ctx context.Context, now time.Time, limit int) ([]OutboxEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
	SELECT content_id, attempts, last_error, next_attempt_at, created_at
	FROM vector_outbox WHERE next_attempt_at <= ?
	ORDER BY next_attempt_at, content_id LIMIT ?`,
		toMillis(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var next, created int64
		if err := rows.Scan(&e.ContentID, &e.Attempts, &e.LastError, &next, &created); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.NextAttemptAt = fromMillis(next)
		e.CreatedAt = fromMillis(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetOutboxEntry returns the pending entry for contentID, or nil.
func (d *DB) GetOutboxEntry(ctx context.Context, contentID int64) (*OutboxEntry, error) {
	e := &OutboxEntry{}
	var next, created int64
	err := d.db.QueryRowContext(ctx, `
	SELECT content_id, attempts, last_error, next_attempt_at, created_at
	FROM vector_outbox WHERE content_id = ?`, contentID,
	).Scan(&e.ContentID, &e.Attempts, &e.LastError, &next, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get outbox entry: %w", err)
	}
	e.NextAttemptAt = fromMillis(next)
	e.CreatedAt = fromMillis(created)
	return e, nil
}

// CompleteOutbox deletes the entry and records the sync time on the content row.
func (d *DB) CompleteOutbox(ctx context.Context, contentID int64, at time.Time) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vector_outbox WHERE content_id = ?`, contentID); err != nil {
			return fmt.Errorf("delete outbox entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE contents SET vector_synced_at = ? WHERE id = ?`, toMillis(at), contentID,
		); err != nil {
			return fmt.Errorf("mark vector synced: %w", err)
		}
		return nil
	})
}

// FailOutbox records a failed attempt and schedules the next one.
func (d *DB) FailOutbox(ctx context.Context, contentID int64, lastError string, next time.Time) error {
	_, err := d.db.ExecContext(ctx, `
	UPDATE vector_outbox SET attempts = attempts + 1, last_error = ?, next_attempt_at = ?
	WHERE content_id = ?`,
		lastError, toMillis(next), contentID,
	)
	if err != nil {
		return fmt.Errorf("fail outbox entry: %w", err)
	}
	return nil
}

// DropOutbox removes an entry that can never be delivered.
func (d *DB) DropOutbox(ctx context.Context, contentID int64) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM vector_outbox WHERE content_id = ?`, contentID); err != nil {
		return fmt.Errorf("drop outbox entry: %w", err)
	}
	return nil
}

// ListUnindexedContentIDs returns contents that carry an embedding but are
// neither synced nor queued.
func (d *DB) ListUnindexedContentIDs(ctx context.Context, limit int) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, `
	SELECT c.id FROM contents c
	LEFT JOIN vector_outbox o ON o.content_id = c.id
	WHERE c.vector_synced_at IS NULL AND c.embedding IS NOT NULL AND o.content_id IS NULL
	ORDER BY c.id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unindexed contents: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountOutbox returns the number of pending vector writes
func (d *DB) CountOutbox(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vector_outbox").Scan(&count)
	return count, err
}
