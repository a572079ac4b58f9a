// Package repository defines the records kept about uploaded case files and
// answered questions, and the interfaces to persist them.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Document statuses.
const (
	StatusUploaded = "uploaded"
	StatusIndexed  = "indexed"
	StatusFailed   = "failed"
)

// Document records one uploaded file.
type Document struct {
	ID           uuid.UUID
	FileName     string
	Path         string
	ContentHash  string
	SizeBytes    int64
	ChunkCount   int
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// QueryLog records one answered (or failed) question.
type QueryLog struct {
	ID        uuid.UUID
	SessionID string
	Question  string
	Tool      string
	Latency   time.Duration
	Error     string
	CreatedAt time.Time
}

// DocumentRepository defines operations for document persistence
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	GetByHash(ctx context.Context, hash string) (*Document, error)
	// List returns documents newest first, optionally filtered by status,
	// and the total number of matches.
	List(ctx context.Context, status string, limit, offset int) ([]*Document, int, error)
	Update(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// QueryLogRepository defines operations for query log persistence
type QueryLogRepository interface {
	Create(ctx context.Context, entry *QueryLog) error
	List(ctx context.Context, limit, offset int) ([]*QueryLog, int, error)
}
