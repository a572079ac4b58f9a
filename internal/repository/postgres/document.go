package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/knoguchi/lexrag/internal/repository"
)

const documentColumns = `id, file_name, path, content_hash, size_bytes, chunk_count, status, error_message, created_at, updated_at`

// DocumentRepo implements repository.DocumentRepository
type DocumentRepo struct {
	db *DB
}

// NewDocumentRepo creates a new document repository
func NewDocumentRepo(db *DB) *DocumentRepo {
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

	query := `INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Pool.Exec(ctx, query,
		doc.ID, doc.FileName, doc.Path, doc.ContentHash, doc.SizeBytes,
		doc.ChunkCount, doc.Status, doc.ErrorMessage, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document by ID
func (r *DocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetByHash retrieves the oldest document with a content hash
func (r *DocumentRepo) GetByHash(ctx context.Context, hash string) (*repository.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE content_hash = $1 ORDER BY created_at LIMIT 1`
	return r.scanOne(ctx, query, hash)
}

func (r *DocumentRepo) scanOne(ctx context.Context, query string, args ...any) (*repository.Document, error) {
	doc, err := scanDocument(r.db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func scanDocument(row pgx.Row) (*repository.Document, error) {
	var doc repository.Document
	err := row.Scan(&doc.ID, &doc.FileName, &doc.Path, &doc.ContentHash, &doc.SizeBytes,
		&doc.ChunkCount, &doc.Status, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List retrieves documents newest first with pagination
func (r *DocumentRepo) List(ctx context.Context, status string, limit, offset int) ([]*repository.Document, int, error) {
	countQuery := `SELECT COUNT(*) FROM documents`
	listQuery := `SELECT ` + documentColumns + ` FROM documents`
	var args []any

	if status != "" {
		countQuery += ` WHERE status = $1`
		listQuery += ` WHERE status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	listQuery += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		listQuery += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	args = append(args, max(offset, 0))
	listQuery += fmt.Sprintf(` OFFSET $%d`, len(args))

	rows, err := r.db.Pool.Query(ctx, listQuery, args...)
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
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, total, nil
}

// Update updates a document
func (r *DocumentRepo) Update(ctx context.Context, doc *repository.Document) error {
	query := `
		UPDATE documents
		SET file_name = $2, path = $3, content_hash = $4, size_bytes = $5, chunk_count = $6,
		    status = $7, error_message = $8, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query,
		doc.ID, doc.FileName, doc.Path, doc.ContentHash, doc.SizeBytes,
		doc.ChunkCount, doc.Status, doc.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete deletes a document
func (r *DocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.DocumentRepository = (*DocumentRepo)(nil)
