// Package vectorstore provides interfaces and implementations for vector similarity search.
package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrCollectionNotFound is returned when searching or writing a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch is returned when a vector does not match the collection size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Point is a stored node with its embedding.
type Point struct {
	ID         string
	DocumentID string
	Content    string
	Vector     []float32
	Metadata   map[string]string
}

// SearchResult represents a search result from the vector store
type SearchResult struct {
	ID         string
	DocumentID string
	Content    string
	Score      float32
	Metadata   map[string]string
}

// VectorStore defines the interface for vector storage operations.
// Collections hold one corpus each.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist yet.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// DeleteCollection drops a collection. Missing collections are not an error.
	DeleteCollection(ctx context.Context, collection string) error

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to topK points by cosine similarity, best first.
	Search(ctx context.Context, collection string, vector []float32, topK int, minScore float32) ([]SearchResult, error)

	Close() error
}
