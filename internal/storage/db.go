package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// DB wraps SQLite database operations
type DB struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens or creates a SQLite database. driver is "sqlite3" (cgo) or
// "sqlite" (pure Go).
func Open(driver, path string) (*DB, error) {
	if driver == "" {
		driver = "sqlite3"
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection keeps PRAGMAs in effect and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	storage := &DB{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return storage, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// initSchema creates tables if they don't exist
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		twitter_id TEXT,
		twitter_token TEXT,
		twitter_secret TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		link TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		extracted_text TEXT NOT NULL DEFAULT '',
		keywords TEXT NOT NULL DEFAULT '[]',
		metadata TEXT NOT NULL DEFAULT '{}',
		author TEXT NOT NULL DEFAULT '',
		duration INTEGER NOT NULL DEFAULT 0,
		published_at INTEGER,
		embedding BLOB,
		shared INTEGER NOT NULL DEFAULT 0,
		vector_synced_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contents_user ON contents(user_id);
	CREATE INDEX IF NOT EXISTS idx_contents_link ON contents(link);
	CREATE INDEX IF NOT EXISTS idx_contents_synced ON contents(vector_synced_at);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS content_tags (
		content_id INTEGER NOT NULL REFERENCES contents(id) ON DELETE CASCADE,
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (content_id, tag_id)
	);

	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL REFERENCES users(id),
		content_id INTEGER NOT NULL REFERENCES contents(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_links_content ON links(content_id);

	CREATE TABLE IF NOT EXISTS content_contexts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content_id INTEGER NOT NULL REFERENCES contents(id) ON DELETE CASCADE,
		source_url TEXT NOT NULL DEFAULT '',
		selected_text TEXT NOT NULL DEFAULT '',
		page_context TEXT NOT NULL DEFAULT '',
		user_thought TEXT NOT NULL DEFAULT '',
		capture_time INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contexts_content ON content_contexts(content_id, capture_time);

	CREATE TABLE IF NOT EXISTS topics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS content_topics (
		content_id INTEGER NOT NULL REFERENCES contents(id) ON DELETE CASCADE,
		topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		PRIMARY KEY (content_id, topic_id)
	);

	CREATE TABLE IF NOT EXISTS content_relations (
		from_id INTEGER NOT NULL REFERENCES contents(id) ON DELETE CASCADE,
		to_id INTEGER NOT NULL REFERENCES contents(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (from_id, to_id),
		CHECK (from_id <> to_id)
	);

	CREATE INDEX IF NOT EXISTS idx_relations_to ON content_relations(to_id);

	CREATE TABLE IF NOT EXISTS scheduled_tweets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		twitter_token TEXT NOT NULL DEFAULT '',
		twitter_secret TEXT NOT NULL DEFAULT '',
		scheduled_time INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		tweet_id TEXT NOT NULL DEFAULT '',
		claimed_at INTEGER,
		posted_at INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tweets_due ON scheduled_tweets(status, scheduled_time);

	CREATE TABLE IF NOT EXISTS oauth_states (
		state TEXT PRIMARY KEY,
		oauth_token TEXT NOT NULL UNIQUE,
		oauth_token_secret TEXT NOT NULL,
		user_id INTEGER,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vector_outbox (
		content_id INTEGER PRIMARY KEY REFERENCES contents(id) ON DELETE CASCADE,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		next_attempt_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_next ON vector_outbox(next_attempt_at);
	`

	_, err := d.db.Exec(schema)
	return err
}

// withTx runs fn inside a transaction, committing on success.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Times are stored as UTC unix milliseconds so both drivers compare them the same way.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return toMillis(*t)
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullString(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
