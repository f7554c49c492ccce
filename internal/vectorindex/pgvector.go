package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

var _ Index = (*PGVector)(nil)

// PGVector stores vectors in a Postgres table using the pgvector extension.
type PGVector struct {
	pool  *pgxpool.Pool
	table string
	dim   int
}

// OpenPGVector connects to dsn, creates the extension and table if missing,
// and returns the index.
func OpenPGVector(ctx context.Context, dsn, table string, dim int) (*PGVector, error) {
	if table == "" {
		table = "content_vectors"
	}

	// The extension must exist before the pool registers the vector type.
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect pgvector: %w", err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("create extension: %w", err)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	p := &PGVector{pool: pool, table: pgx.Identifier{table}.Sanitize(), dim: dim}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *PGVector) migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		embedding vector(%d) NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'
	)`, p.table, p.dim)
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}
	return nil
}

// Close releases the pool
func (p *PGVector) Close() {
	p.pool.Close()
}

func (p *PGVector) Upsert(ctx context.Context, vectors []Vector) error {
	batch := &pgx.Batch{}
	for _, v := range vectors {
		userID, _ := MetaInt64(v.Metadata, MetaUserID)
		meta, err := json.Marshal(compactMetadata(v.Metadata))
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		batch.Queue(fmt.Sprintf(`
		INSERT INTO %s (id, user_id, embedding, metadata) VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			embedding = excluded.embedding,
			metadata = excluded.metadata`, p.table),
			v.ID, userID, pgvector.NewVector(v.Values), string(meta),
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}

func (p *PGVector) Query(ctx context.Context, vec []float32, topK int, userID int64) ([]Match, error) {
	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
	SELECT id, 1 - (embedding <=> $1), metadata::text FROM %s
	WHERE user_id = $2
	ORDER BY embedding <=> $1
	LIMIT $3`, p.table),
		pgvector.NewVector(vec), userID, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var meta string
		if err := rows.Scan(&m.ID, &m.Score, &meta); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (p *PGVector) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, p.table), ids); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}
