package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memCollection struct {
	dimension int
	points    []Point
	byID      map[string]int
}

// MemoryStore keeps vectors in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// EnsureCollection creates the collection if it does not exist yet.
func (s *MemoryStore) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[collection]; ok {
		if c.dimension != dimension {
			return fmt.Errorf("%w: collection %s has %d, requested %d", ErrDimensionMismatch, collection, c.dimension, dimension)
		}
		return nil
	}
	s.collections[collection] = &memCollection{dimension: dimension, byID: make(map[string]int)}
	return nil
}

// DeleteCollection drops a collection.
func (s *MemoryStore) DeleteCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

// Upsert inserts or replaces points by ID. Vectors are copied.
func (s *MemoryStore) Upsert(ctx context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	for _, p := range points {
		if len(p.Vector) != c.dimension {
			return fmt.Errorf("%w: point %s has %d, collection has %d", ErrDimensionMismatch, p.ID, len(p.Vector), c.dimension)
		}
	}
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		if i, ok := c.byID[p.ID]; ok {
			c.points[i] = p
			continue
		}
		c.byID[p.ID] = len(c.points)
		c.points = append(c.points, p)
	}
	return nil
}

// Search scores every point by cosine similarity. Ties keep insertion order.
func (s *MemoryStore) Search(ctx context.Context, collection string, vector []float32, topK int, minScore float32) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", ErrDimensionMismatch, len(vector), c.dimension)
	}

	results := make([]SearchResult, 0, len(c.points))
	for _, p := range c.points {
		score := cosine(vector, p.Vector)
		if score < minScore {
			continue
		}
		results = append(results, SearchResult{
			ID:         p.ID,
			DocumentID: p.DocumentID,
			Content:    p.Content,
			Score:      score,
			Metadata:   p.Metadata,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ VectorStore = (*MemoryStore)(nil)
