package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AddRelations connects contentID to each topic, upserted by case-folded
// name, and to each related content row, in one transaction. Existing
// connections and self-relations are ignored.
func (d *DB) AddRelations(ctx context.Context, contentID int64, topics []string, relatedIDs []int64) error {
	now := toMillis(time.Now().UTC())
	return d.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range NormalizeTags(topics) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO topics (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name,
			); err != nil {
				return fmt.Errorf("upsert topic: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO content_topics (content_id, topic_id)
			SELECT ?, id FROM topics WHERE name = ?`, contentID, name,
			); err != nil {
				return fmt.Errorf("connect topic: %w", err)
			}
		}
		for _, id := range relatedIDs {
			if id == contentID {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO content_relations (from_id, to_id, created_at) VALUES (?, ?, ?)`,
				contentID, id, now,
			); err != nil {
				return fmt.Errorf("relate content: %w", err)
			}
		}
		return nil
	})
}

// ListTopics returns the topics attached to contentID, by name.
func (d *DB) ListTopics(ctx context.Context, contentID int64) ([]Topic, error) {
	rows, err := d.db.QueryContext(ctx, `
	SELECT t.id, t.name FROM content_topics ct JOIN topics t ON t.id = ct.topic_id
	WHERE ct.content_id = ? ORDER BY t.name`, contentID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	topics := []Topic{}
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// ListRelatedContents returns the rows related to contentID in either
// direction, newest first.
func (d *DB) ListRelatedContents(ctx context.Context, contentID int64) ([]*Content, error) {
	return d.queryContents(ctx, `
	SELECT `+contentColumns+` FROM contents
	WHERE id IN (
		SELECT to_id FROM content_relations WHERE from_id = ?
		UNION
		SELECT from_id FROM content_relations WHERE to_id = ?
	)
	ORDER BY created_at DESC, id DESC`, contentID, contentID)
}
