package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateLink inserts l and sets its ID. A hash collision returns ErrDuplicate.
func (d *DB) CreateLink(ctx context.Context, l *Link) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO links (hash, user_id, content_id, created_at) VALUES (?, ?, ?, ?)`,
		l.Hash, l.UserID, l.ContentID, toMillis(l.CreatedAt),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	l.ID, err = res.LastInsertId()
	return err
}

// GetLinkByHash retrieves a share link by its hash
func (d *DB) GetLinkByHash(ctx context.Context, hash string) (*Link, error) {
	l := &Link{}
	var created int64
	err := d.db.QueryRowContext(ctx,
		`SELECT id, hash, user_id, content_id, created_at FROM links WHERE hash = ?`, hash,
	).Scan(&l.ID, &l.Hash, &l.UserID, &l.ContentID, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	l.CreatedAt = fromMillis(created)
	return l, nil
}

// CountLinks returns the number of share links pointing at contentID.
func (d *DB) CountLinks(ctx context.Context, contentID int64) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM links WHERE content_id = ?", contentID).Scan(&count)
	return count, err
}
