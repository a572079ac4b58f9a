package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/knoguchi/lexrag/internal/repository"
)

const documentColumns = `id, file_name, path, content_hash, size_bytes, chunk_count, status, error_message, created_at, updated_at`

// DocumentRepo implements repository.DocumentRepository on SQLite.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Create inserts doc, assigning an ID and timestamps when missing.
func (r *DocumentRepo) Create(ctx context.Context, doc *repository.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID.String(), doc.FileName, doc.Path, doc.ContentHash, doc.SizeBytes, doc.ChunkCount,
		doc.Status, doc.ErrorMessage, formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID gets a document by ID.
func (r *DocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Document, error) {
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id.String())
}

// GetByHash gets the oldest document with a content hash.
func (r *DocumentRepo) GetByHash(ctx context.Context, hash string) (*repository.Document, error) {
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE content_hash = ? ORDER BY created_at LIMIT 1`, hash)
}

func (r *DocumentRepo) getOne(ctx context.Context, query string, args ...any) (*repository.Document, error) {
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return doc, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*repository.Document, error) {
	var (
		doc                  repository.Document
		id, created, updated string
	)
	err := row.Scan(&id, &doc.FileName, &doc.Path, &doc.ContentHash, &doc.SizeBytes, &doc.ChunkCount,
		&doc.Status, &doc.ErrorMessage, &created, &updated)
	if err != nil {
		return nil, err
	}
	if doc.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad document id %q: %w", id, err)
	}
	if doc.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("bad created_at: %w", err)
	}
	if doc.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("bad updated_at: %w", err)
	}
	return &doc, nil
}

// List returns documents newest first.
func (r *DocumentRepo) List(ctx context.Context, status string, limit, offset int) ([]*repository.Document, int, error) {
	where, args := "", []any{}
	if status != "" {
		where, args = ` WHERE status = ?`, append(args, status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, max(offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*repository.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

// Update replaces a stored document.
func (r *DocumentRepo) Update(ctx context.Context, doc *repository.Document) error {
	doc.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET file_name = ?, path = ?, content_hash = ?, size_bytes = ?, chunk_count = ?,
		    status = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		doc.FileName, doc.Path, doc.ContentHash, doc.SizeBytes, doc.ChunkCount,
		doc.Status, doc.ErrorMessage, formatTime(doc.UpdatedAt), doc.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return affected(res)
}

// Delete removes a document.
func (r *DocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.DocumentRepository = (*DocumentRepo)(nil)
