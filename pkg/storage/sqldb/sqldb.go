// Package sqldb implements storage.Driver over database/sql. The sqlite and
// postgres packages open the connection and embed this driver.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/storage"
)

// Placeholder selects the bind parameter style of the SQL dialect.
type Placeholder int

const (
	// Question binds with "?" (SQLite).
	Question Placeholder = iota

	// Dollar binds with "$1", "$2", ... (PostgreSQL).
	Dollar
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	file_name     TEXT NOT NULL,
	mime_type     TEXT NOT NULL,
	uploaded_at   BIGINT NOT NULL,
	storage_key   TEXT NOT NULL,
	text_content  TEXT NOT NULL,
	status        TEXT NOT NULL,
	failed_chunks TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS documents_owner_idx ON documents (owner_id, uploaded_at);
`

const columns = "id, owner_id, file_name, mime_type, uploaded_at, storage_key, text_content, status, failed_chunks"

// Driver implements storage.Driver on a *sql.DB.
type Driver struct {
	DB          *sql.DB
	Placeholder Placeholder
}

// Migrate creates the documents table and its owner index.
func (d *Driver) Migrate(ctx context.Context) error {
	for stmt := range strings.SplitSeq(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// bind rewrites "?" placeholders for the driver's dialect.
func (d *Driver) bind(query string) string {
	if d.Placeholder != Dollar {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *Driver) Put(ctx context.Context, doc *storage.Document) error {
	if doc == nil {
		return errors.New("cannot store nil document")
	}

	failed, err := encodeFailed(doc.FailedChunks)
	if err != nil {
		return err
	}

	_, err = d.DB.ExecContext(ctx, d.bind(`
		INSERT INTO documents (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = excluded.owner_id,
			file_name = excluded.file_name,
			mime_type = excluded.mime_type,
			uploaded_at = excluded.uploaded_at,
			storage_key = excluded.storage_key,
			text_content = excluded.text_content,
			status = excluded.status,
			failed_chunks = excluded.failed_chunks`),
		doc.ID, doc.OwnerID, doc.FileName, doc.MimeType, doc.UploadedAt.UnixNano(),
		doc.StorageKey, doc.TextContent, string(doc.Status), failed,
	)
	if err != nil {
		return errs.Store("storing document", err)
	}
	return nil
}

func (d *Driver) Get(ctx context.Context, id string) (*storage.Document, error) {
	row := d.DB.QueryRowContext(ctx, d.bind(`SELECT `+columns+` FROM documents WHERE id = ?`), id)

	doc, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, errs.Store("reading document", err)
	}
	return doc, nil
}

func (d *Driver) ListByOwner(ctx context.Context, ownerID string) ([]*storage.Document, error) {
	rows, err := d.DB.QueryContext(ctx, d.bind(`
		SELECT `+columns+` FROM documents
		WHERE owner_id = ?
		ORDER BY uploaded_at DESC, id`), ownerID)
	if err != nil {
		return nil, errs.Store("listing documents", err)
	}
	defer rows.Close()

	result := []*storage.Document{}
	for rows.Next() {
		doc, err := scan(rows)
		if err != nil {
			return nil, errs.Store("scanning document", err)
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Store("listing documents", err)
	}
	return result, nil
}

func (d *Driver) UpdateStatus(ctx context.Context, id string, status storage.Status, failedChunks []int) error {
	failed, err := encodeFailed(failedChunks)
	if err != nil {
		return err
	}

	res, err := d.DB.ExecContext(ctx, d.bind(`UPDATE documents SET status = ?, failed_chunks = ? WHERE id = ?`),
		string(status), failed, id)
	if err != nil {
		return errs.Store("updating document status", err)
	}
	return requireRow(res, id)
}

func (d *Driver) Delete(ctx context.Context, id string) error {
	res, err := d.DB.ExecContext(ctx, d.bind(`DELETE FROM documents WHERE id = ?`), id)
	if err != nil {
		return errs.Store("deleting document", err)
	}
	return requireRow(res, id)
}

func (d *Driver) Close() error {
	return d.DB.Close()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Store("reading affected rows", err)
	}
	if n == 0 {
		return storage.NotFoundError{ID: id}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*storage.Document, error) {
	var (
		doc      storage.Document
		uploaded int64
		status   string
		failed   string
	)

	err := s.Scan(&doc.ID, &doc.OwnerID, &doc.FileName, &doc.MimeType, &uploaded,
		&doc.StorageKey, &doc.TextContent, &status, &failed)
	if err != nil {
		return nil, err
	}

	doc.UploadedAt = time.Unix(0, uploaded).UTC()
	doc.Status = storage.Status(status)
	if err := json.Unmarshal([]byte(failed), &doc.FailedChunks); err != nil {
		return nil, fmt.Errorf("decoding failed chunks: %w", err)
	}
	if len(doc.FailedChunks) == 0 {
		doc.FailedChunks = nil
	}
	return &doc, nil
}

func encodeFailed(failed []int) (string, error) {
	if len(failed) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(failed)
	if err != nil {
		return "", fmt.Errorf("encoding failed chunks: %w", err)
	}
	return string(b), nil
}

var _ storage.Driver = (*Driver)(nil)
