package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/renderinc/learnshare/internal/embeddings"
)

const contentColumns = `id, user_id, link, type, title, extracted_text, keywords, metadata,
	author, duration, published_at, embedding, shared, vector_synced_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateContent inserts c, upserts and connects its tags, and enqueues the
// vector write, all in one transaction. c.ID and c.Tags are populated.
func (d *DB) CreateContent(ctx context.Context, c *Content, tags []string) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt

	keywords := c.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	metadata := c.Metadata
	if metadata == nil {
		metadata = Metadata{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	var embedding []byte
	if len(c.Embedding) > 0 {
		embedding = embeddings.SerializeEmbedding(c.Embedding)
	}

	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		INSERT INTO contents (
			user_id, link, type, title, extracted_text, keywords, metadata,
			author, duration, published_at, embedding, shared, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.UserID, c.Link, string(c.Type), c.Title, c.ExtractedText, string(keywordsJSON), string(metadataJSON),
			c.Author, c.Duration, nullMillis(c.PublishedAt), embedding, c.Shared,
			toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert content: %w", err)
		}
		if c.ID, err = res.LastInsertId(); err != nil {
			return err
		}

		c.Tags = []Tag{}
		for _, title := range NormalizeTags(tags) {
			tag, err := upsertTag(ctx, tx, title)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO content_tags (content_id, tag_id) VALUES (?, ?)`, c.ID, tag.ID,
			); err != nil {
				return fmt.Errorf("connect tag: %w", err)
			}
			c.Tags = append(c.Tags, tag)
		}

		return enqueueVector(ctx, tx, c.ID, now)
	})
}

func upsertTag(ctx context.Context, q querier, title string) (Tag, error) {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO tags (title) VALUES (?) ON CONFLICT(title) DO NOTHING`, title,
	); err != nil {
		return Tag{}, fmt.Errorf("upsert tag: %w", err)
	}
	tag := Tag{Title: title}
	if err := q.QueryRowContext(ctx, `SELECT id FROM tags WHERE title = ?`, title).Scan(&tag.ID); err != nil {
		return Tag{}, fmt.Errorf("select tag: %w", err)
	}
	return tag, nil
}

// GetContent retrieves a content row with its tags by ID
func (d *DB) GetContent(ctx context.Context, id int64) (*Content, error) {
	return d.getContent(ctx, `SELECT `+contentColumns+` FROM contents WHERE id = ?`, id)
}

// GetContentForUser retrieves a content row only if userID owns it.
func (d *DB) GetContentForUser(ctx context.Context, id, userID int64) (*Content, error) {
	return d.getContent(ctx, `SELECT `+contentColumns+` FROM contents WHERE id = ? AND user_id = ?`, id, userID)
}

// FindContentByTitleAndDescription finds the owner's row whose title matches and
// whose metadata description contains description.
func (d *DB) FindContentByTitleAndDescription(ctx context.Context, userID int64, title, description string) (*Content, error) {
	return d.getContent(ctx, `
	SELECT `+contentColumns+` FROM contents
	WHERE user_id = ? AND title = ?
	  AND instr(COALESCE(json_extract(metadata, '$.description'), ''), ?) > 0
	ORDER BY id DESC LIMIT 1`,
		userID, title, description,
	)
}

// FindPublicContentByLink finds shared content whose link equals link.
func (d *DB) FindPublicContentByLink(ctx context.Context, link string) (*Content, error) {
	return d.getContent(ctx, `SELECT `+contentColumns+` FROM contents WHERE link = ? AND shared = 1 ORDER BY id LIMIT 1`, link)
}

func (d *DB) getContent(ctx context.Context, query string, args ...any) (*Content, error) {
	c, err := scanContent(d.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tags, err := loadTags(ctx, d.db, []int64{c.ID})
	if err != nil {
		return nil, err
	}
	c.Tags = tags[c.ID]
	if c.Tags == nil {
		c.Tags = []Tag{}
	}
	return c, nil
}

// ListContents retrieves contents newest first. userID 0 lists every user's rows;
// limit <= 0 means no limit.
func (d *DB) ListContents(ctx context.Context, userID int64, limit int) ([]*Content, error) {
	query := `SELECT ` + contentColumns + ` FROM contents`
	var args []any
	if userID != 0 {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return d.queryContents(ctx, query, args...)
}

// queryContents scans every row of query and attaches tags.
func (d *DB) queryContents(ctx context.Context, query string, args ...any) ([]*Content, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contents: %w", err)
	}

	contents := []*Content{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		contents = append(contents, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate contents: %w", err)
	}
	rows.Close()

	// Tags are loaded after the cursor is closed; the pool holds a single connection.
	ids := make([]int64, len(contents))
	for i, c := range contents {
		ids[i] = c.ID
	}
	tags, err := loadTags(ctx, d.db, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range contents {
		c.Tags = tags[c.ID]
		if c.Tags == nil {
			c.Tags = []Tag{}
		}
	}
	return contents, nil
}

// UpdateMetadata replaces the metadata of content id.
func (d *DB) UpdateMetadata(ctx context.Context, id int64, meta Metadata) error {
	if meta == nil {
		meta = Metadata{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if _, err := d.db.ExecContext(ctx,
		`UPDATE contents SET metadata = ?, updated_at = ? WHERE id = ?`,
		string(data), toMillis(time.Now().UTC()), id,
	); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return nil
}

// SetContentShared marks the owner's content public. Reports whether a row matched.
func (d *DB) SetContentShared(ctx context.Context, id, userID int64) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE contents SET shared = 1, updated_at = ? WHERE id = ? AND user_id = ?`,
		toMillis(time.Now()), id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("share content: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UnshareContent marks the owner's content private and deletes every Link to
// it in the same transaction. Reports whether a row matched.
func (d *DB) UnshareContent(ctx context.Context, id, userID int64) (bool, error) {
	var found bool
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE contents SET shared = 0, updated_at = ? WHERE id = ? AND user_id = ?`,
			toMillis(time.Now()), id, userID,
		)
		if err != nil {
			return fmt.Errorf("unshare content: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		found = true
		if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE content_id = ?`, id); err != nil {
			return fmt.Errorf("delete links: %w", err)
		}
		return nil
	})
	return found, err
}

// UpdateEmbedding replaces the stored vector, clears vector_synced_at and
// re-enqueues the vector write.
func (d *DB) UpdateEmbedding(ctx context.Context, id int64, vec []float32) error {
	now := time.Now().UTC()
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE contents SET embedding = ?, vector_synced_at = NULL, updated_at = ? WHERE id = ?`,
			embeddings.SerializeEmbedding(vec), toMillis(now), id,
		); err != nil {
			return fmt.Errorf("update embedding: %w", err)
		}
		return enqueueVector(ctx, tx, id, now)
	})
}

// CountContents returns the total number of contents
func (d *DB) CountContents(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contents").Scan(&count)
	return count, err
}

// CountIndexedContents returns the number of contents whose vector is known to be in the index.
func (d *DB) CountIndexedContents(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contents WHERE vector_synced_at IS NOT NULL").Scan(&count)
	return count, err
}

func scanContent(row rowScanner) (*Content, error) {
	c := &Content{}
	var (
		contentType                 string
		keywordsJSON, metadataJSON  string
		embedding                   []byte
		publishedAt, vectorSyncedAt sql.NullInt64
		createdAt, updatedAt        int64
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.Link, &contentType, &c.Title, &c.ExtractedText, &keywordsJSON, &metadataJSON,
		&c.Author, &c.Duration, &publishedAt, &embedding, &c.Shared, &vectorSyncedAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}

	c.Type = ContentType(contentType)
	if err := json.Unmarshal([]byte(keywordsJSON), &c.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if c.Metadata == nil {
		c.Metadata = Metadata{}
	}
	c.Embedding = embeddings.DeserializeEmbedding(embedding)
	c.PublishedAt = timePtr(publishedAt)
	c.VectorSyncedAt = timePtr(vectorSyncedAt)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

// tagBatchSize bounds the ids bound into one IN clause, well under
// SQLite's host-parameter limit.
var tagBatchSize = 500

func loadTags(ctx context.Context, q querier, contentIDs []int64) (map[int64][]Tag, error) {
	result := make(map[int64][]Tag, len(contentIDs))
	for start := 0; start < len(contentIDs); start += tagBatchSize {
		end := min(start+tagBatchSize, len(contentIDs))
		if err := loadTagBatch(ctx, q, contentIDs[start:end], result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func loadTagBatch(ctx context.Context, q querier, contentIDs []int64, result map[int64][]Tag) error {
	args := make([]any, len(contentIDs))
	for i, id := range contentIDs {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, `
	SELECT ct.content_id, t.id, t.title
	FROM content_tags ct JOIN tags t ON t.id = ct.tag_id
	WHERE ct.content_id IN (`+placeholders(len(contentIDs))+`)
	ORDER BY t.id`, args...)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var contentID int64
		var tag Tag
		if err := rows.Scan(&contentID, &tag.ID, &tag.Title); err != nil {
			return fmt.Errorf("scan tag: %w", err)
		}
		result[contentID] = append(result[contentID], tag)
	}
	return rows.Err()
}
