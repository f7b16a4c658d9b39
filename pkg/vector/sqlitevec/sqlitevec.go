// Package sqlitevec provides a SQLite-backed vector index using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/vector"
)

// Index implements vector.Index using SQLite with sqlite-vec.
type Index struct {
	db     *sql.DB
	dims   uint
	logger *slog.Logger
}

// Config holds configuration for the SQLite vec index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewIndex opens (or creates) a sqlite-vec backed index.
func NewIndex(c Config, logger *slog.Logger) (*Index, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	if c.Dimensions == 0 {
		return nil, errors.New("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers the way SQLite expects.
	db.SetMaxOpenConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so chunk metadata lives in a
	// regular table whose rowid doubles as the insertion sequence.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL UNIQUE,
			parent_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vec_chunks_parent ON vec_chunks(parent_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d])`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector index initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Index{
		db:     db,
		dims:   c.Dimensions,
		logger: logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Insert stores chunks with their embeddings in one transaction.
// If a chunk with the same ID already exists, it is replaced and keeps its
// rowid, and so its position in tie breaks.
func (d *Index) Insert(ctx context.Context, chunks ...vector.Chunk) error {
	if err := vector.ValidateChunks(d.dims, chunks); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Store("beginning transaction", err)
	}
	defer tx.Rollback()

	for _, c := range chunks {
		embBlob := serializeFloat32(c.Vector)

		var rowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_chunks WHERE chunk_id = ?`, c.ID,
		).Scan(&rowID)

		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_chunks SET parent_id = ?, chunk_index = ?, content = ? WHERE rowid = ?`,
				c.ParentID, c.Index, c.Content, rowID,
			); err != nil {
				return errs.Store(fmt.Sprintf("updating chunk %s", c.ID), err)
			}

			// vec0 does not support UPDATE
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
			); err != nil {
				return errs.Store(fmt.Sprintf("deleting old embedding for chunk %s", c.ID), err)
			}

		case errors.Is(err, sql.ErrNoRows):
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_chunks(chunk_id, parent_id, chunk_index, content) VALUES (?, ?, ?, ?)`,
				c.ID, c.ParentID, c.Index, c.Content,
			)
			if err != nil {
				return errs.Store(fmt.Sprintf("inserting chunk %s", c.ID), err)
			}

			rowID, err = result.LastInsertId()
			if err != nil {
				return errs.Store(fmt.Sprintf("getting rowid for chunk %s", c.ID), err)
			}

		default:
			return errs.Store(fmt.Sprintf("checking for existing chunk %s", c.ID), err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, embBlob,
		); err != nil {
			return errs.Store(fmt.Sprintf("inserting embedding for chunk %s", c.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Store("committing transaction", err)
	}

	d.logger.Debug("added chunks to sqlite-vec", "count", len(chunks))

	return nil
}

// DeleteByParent removes every chunk of parentID in a single transaction.
func (d *Index) DeleteByParent(ctx context.Context, parentID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Store("beginning transaction", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT rowid FROM vec_chunks WHERE parent_id = ?`, parentID)
	if err != nil {
		return errs.Store("querying rowids for deletion", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return errs.Store("scanning rowid", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errs.Store("iterating rowids", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return errs.Store(fmt.Sprintf("deleting embedding rowid %d", rowID), err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_chunks WHERE parent_id = ?`, parentID); err != nil {
		return errs.Store("deleting chunks", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.Store("committing transaction", err)
	}

	d.logger.Debug("deleted chunks from sqlite-vec",
		"parent_id", parentID,
		"count", len(rowIDs),
	)

	return nil
}

// Query returns the k closest chunks. It scans with vec_distance_l2 so that
// ties are broken by rowid, which is the insertion order.
func (d *Index) Query(ctx context.Context, vec []float32, k int) ([]vector.Result, error) {
	if err := vector.ValidateQuery(d.dims, vec, k); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT
			c.chunk_id,
			c.parent_id,
			c.chunk_index,
			c.content,
			ve.embedding,
			vec_distance_l2(ve.embedding, ?) AS distance
		FROM vec_embeddings ve
		INNER JOIN vec_chunks c ON c.rowid = ve.rowid
		ORDER BY distance ASC, c.rowid ASC
		LIMIT ?
	`, serializeFloat32(vec), k)
	if err != nil {
		return nil, errs.Store("querying vectors", err)
	}
	defer rows.Close()

	results := []vector.Result{}
	for rows.Next() {
		var (
			r       vector.Result
			embBlob []byte
		)
		if err := rows.Scan(&r.ID, &r.ParentID, &r.Index, &r.Content, &embBlob, &r.Distance); err != nil {
			return nil, errs.Store("scanning query result", err)
		}

		r.Vector, err = deserializeFloat32(embBlob)
		if err != nil {
			return nil, errs.Store("decoding embedding", err)
		}

		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Store("iterating query results", err)
	}

	d.logger.Debug("queried sqlite-vec", "results", len(results))

	return results, nil
}

// Close releases resources held by the index.
func (d *Index) Close() error {
	return d.db.Close()
}

var _ vector.Index = (*Index)(nil)
