package storage

import (
	"context"
	"fmt"
	"time"
)

// CreateContext inserts cc and sets its ID.
func (d *DB) CreateContext(ctx context.Context, cc *ContentContext) error {
	if cc.CaptureTime.IsZero() {
		cc.CaptureTime = time.Now().UTC()
	}
	res, err := d.db.ExecContext(ctx, `
	INSERT INTO content_contexts (content_id, source_url, selected_text, page_context, user_thought, capture_time)
	VALUES (?, ?, ?, ?, ?, ?)`,
		cc.ContentID, cc.SourceURL, cc.SelectedText, cc.PageContext, cc.UserThought, toMillis(cc.CaptureTime),
	)
	if err != nil {
		return fmt.Errorf("insert context: %w", err)
	}
	cc.ID, err = res.LastInsertId()
	return err
}

// ListContexts returns the contexts captured for contentID, newest first.
func (d *DB) ListContexts(ctx context.Context, contentID int64) ([]*ContentContext, error) {
	rows, err := d.db.QueryContext(ctx, `
	SELECT id, content_id, source_url, selected_text, page_context, user_thought, capture_time
	FROM content_contexts WHERE content_id = ?
	ORDER BY capture_time DESC, id DESC`, contentID)
	if err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	defer rows.Close()

	contexts := []*ContentContext{}
	for rows.Next() {
		cc := &ContentContext{}
		var captured int64
		if err := rows.Scan(&cc.ID, &cc.ContentID, &cc.SourceURL, &cc.SelectedText,
			&cc.PageContext, &cc.UserThought, &captured); err != nil {
			return nil, fmt.Errorf("scan context: %w", err)
		}
		cc.CaptureTime = fromMillis(captured)
		contexts = append(contexts, cc)
	}
	return contexts, rows.Err()
}
