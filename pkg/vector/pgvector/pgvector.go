// Package pgvector provides a PostgreSQL vector index using the pgvector
// extension.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/vector"
)

// DefaultTable is the table chunks are stored in when none is configured.
const DefaultTable = "document_chunks"

// Config holds configuration for the pgvector index.
type Config struct {
	// ConnString is a PostgreSQL connection URI or keyword/value string.
	ConnString string

	// Table is the chunk table name. Defaults to DefaultTable.
	Table string

	// Dimensions is the embedding length; it fixes the vector(N) column.
	Dimensions uint
}

// Index implements vector.Index on PostgreSQL + pgvector.
type Index struct {
	pool   *pgxpool.Pool
	table  string
	dims   uint
	logger *slog.Logger
}

// NewIndex connects to PostgreSQL, enables the vector extension, and
// creates the chunk table if needed.
func NewIndex(ctx context.Context, c Config, logger *slog.Logger) (*Index, error) {
	if c.ConnString == "" {
		return nil, errors.New("connection string is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("pgvector embedding dimensions cannot be 0, must be configured")
	}

	table := c.Table
	if table == "" {
		table = DefaultTable
	}

	pool, err := pgxpool.New(ctx, c.ConnString)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Store("pinging postgres", err)
	}

	idx := &Index{
		pool:   pool,
		table:  pgx.Identifier{table}.Sanitize(),
		dims:   c.Dimensions,
		logger: logger,
	}

	if err := idx.migrate(ctx, table); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("pgvector index initialized",
		"table", table,
		"dimensions", c.Dimensions,
	)

	return idx, nil
}

func (i *Index) migrate(ctx context.Context, table string) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			seq BIGSERIAL NOT NULL
		)`, i.table, i.dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (parent_id)`,
			pgx.Identifier{table + "_parent_idx"}.Sanitize(), i.table),
	}

	for _, stmt := range stmts {
		if _, err := i.pool.Exec(ctx, stmt); err != nil {
			return errs.Store("migrating pgvector schema", err)
		}
	}
	return nil
}

// Insert upserts chunks in a single batch. On conflict the row keeps its
// seq, so a replaced chunk keeps its tie-break position.
func (i *Index) Insert(ctx context.Context, chunks ...vector.Chunk) error {
	if err := vector.ValidateChunks(i.dims, chunks); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, parent_id, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5::vector)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
	`, i.table)

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(query, c.ID, c.ParentID, c.Index, c.Content, pgv.NewVector(c.Vector).String())
	}

	err := pgx.BeginFunc(ctx, i.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return errs.Store("inserting chunks", err)
	}

	i.logger.Debug("added chunks to pgvector", "count", len(chunks))
	return nil
}

// DeleteByParent removes a parent's chunks with a single statement.
func (i *Index) DeleteByParent(ctx context.Context, parentID string) error {
	tag, err := i.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE parent_id = $1`, i.table), parentID)
	if err != nil {
		return errs.Store("deleting chunks", err)
	}

	i.logger.Debug("deleted chunks from pgvector",
		"parent_id", parentID,
		"count", tag.RowsAffected(),
	)
	return nil
}

// Query orders by the <-> (L2) operator, then by seq.
func (i *Index) Query(ctx context.Context, vec []float32, k int) ([]vector.Result, error) {
	if err := vector.ValidateQuery(i.dims, vec, k); err != nil {
		return nil, err
	}

	rows, err := i.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, parent_id, chunk_index, content, embedding::text, embedding <-> $1::vector AS distance
		FROM %s
		ORDER BY distance ASC, seq ASC
		LIMIT $2
	`, i.table), pgv.NewVector(vec).String(), k)
	if err != nil {
		return nil, errs.Store("querying vectors", err)
	}
	defer rows.Close()

	results := []vector.Result{}
	for rows.Next() {
		var (
			r   vector.Result
			emb string
		)
		if err := rows.Scan(&r.ID, &r.ParentID, &r.Index, &r.Content, &emb, &r.Distance); err != nil {
			return nil, errs.Store("scanning query result", err)
		}

		var v pgv.Vector
		if err := v.Scan(emb); err != nil {
			return nil, errs.Store("decoding embedding", err)
		}
		r.Vector = v.Slice()

		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Store("iterating query results", err)
	}

	return results, nil
}

// Close releases the connection pool.
func (i *Index) Close() error {
	i.pool.Close()
	return nil
}

var _ vector.Index = (*Index)(nil)
