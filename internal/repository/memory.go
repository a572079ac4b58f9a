package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDocumentRepo is a process-local DocumentRepository.
type MemoryDocumentRepo struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]Document
}

// NewMemoryDocumentRepo returns an empty repository.
func NewMemoryDocumentRepo() *MemoryDocumentRepo {
	return &MemoryDocumentRepo{docs: make(map[uuid.UUID]Document)}
}

// Create stores doc, assigning an ID and timestamps when missing.
func (r *MemoryDocumentRepo) Create(ctx context.Context, doc *Document) error {
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

	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = *doc
	return nil
}

// GetByID returns a copy of the document with id.
func (r *MemoryDocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

// GetByHash returns the oldest document with the given content hash.
func (r *MemoryDocumentRepo) GetByHash(ctx context.Context, hash string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *Document
	for _, doc := range r.docs {
		if doc.ContentHash != hash {
			continue
		}
		if found == nil || doc.CreatedAt.Before(found.CreatedAt) {
			d := doc
			found = &d
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// List returns documents newest first.
func (r *MemoryDocumentRepo) List(ctx context.Context, status string, limit, offset int) ([]*Document, int, error) {
	r.mu.RLock()
	all := make([]*Document, 0, len(r.docs))
	for _, doc := range r.docs {
		if status != "" && doc.Status != status {
			continue
		}
		d := doc
		all = append(all, &d)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].FileName < all[j].FileName
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, limit, offset), len(all), nil
}

// Update replaces a stored document.
func (r *MemoryDocumentRepo) Update(ctx context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return ErrNotFound
	}
	doc.UpdatedAt = time.Now()
	r.docs[doc.ID] = *doc
	return nil
}

// Delete removes a document.
func (r *MemoryDocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

// MemoryQueryLogRepo is a process-local QueryLogRepository that keeps at most
// limit entries, dropping the oldest.
type MemoryQueryLogRepo struct {
	mu      sync.Mutex
	entries []QueryLog
	limit   int
}

// NewMemoryQueryLogRepo returns a log holding up to limit entries. A limit
// of zero or less keeps everything.
func NewMemoryQueryLogRepo(limit int) *MemoryQueryLogRepo {
	return &MemoryQueryLogRepo{limit: limit}
}

// Create appends entry.
func (r *MemoryQueryLogRepo) Create(ctx context.Context, entry *QueryLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	if r.limit > 0 && len(r.entries) > r.limit {
		r.entries = r.entries[len(r.entries)-r.limit:]
	}
	return nil
}

// List returns entries newest first.
func (r *MemoryQueryLogRepo) List(ctx context.Context, limit, offset int) ([]*QueryLog, int, error) {
	r.mu.Lock()
	all := make([]*QueryLog, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		all = append(all, &e)
	}
	r.mu.Unlock()
	return page(all, limit, offset), len(all), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var (
	_ DocumentRepository = (*MemoryDocumentRepo)(nil)
	_ QueryLogRepository = (*MemoryQueryLogRepo)(nil)
)
