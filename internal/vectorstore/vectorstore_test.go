package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func TestMemoryStore_Search(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.EnsureCollection(ctx, "cases", 2); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}

	err := s.Upsert(ctx, "cases", []Point{
		{ID: "a", Content: "east", Vector: []float32{1, 0}},
		{ID: "b", Content: "north", Vector: []float32{0, 1}},
		{ID: "c", Content: "north-east", Vector: []float32{1, 1}},
		{ID: "d", Content: "also east", Vector: []float32{2, 0}},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	results, err := s.Search(ctx, "cases", []float32{1, 0}, 3, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []string{"a", "d", "c"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, id := range want {
		if results[i].ID != id {
			t.Errorf("result %d = %s, want %s", i, results[i].ID, id)
		}
	}
	if results[0].Score < 0.999 {
		t.Errorf("expected score ~1, got %f", results[0].Score)
	}
}

func TestMemoryStore_MinScoreAndReplace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.EnsureCollection(ctx, "cases", 2)
	_ = s.Upsert(ctx, "cases", []Point{{ID: "a", Content: "old", Vector: []float32{0, 1}}})
	_ = s.Upsert(ctx, "cases", []Point{{ID: "a", Content: "new", Vector: []float32{1, 0}}})

	results, err := s.Search(ctx, "cases", []float32{1, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Content != "new" {
		t.Fatalf("expected replaced point, got %+v", results)
	}

	results, _ = s.Search(ctx, "cases", []float32{0, 1}, 10, 0.5)
	if len(results) != 0 {
		t.Errorf("expected min score to filter, got %+v", results)
	}
}

func TestMemoryStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Search(ctx, "missing", []float32{1}, 1, 0); !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("expected ErrCollectionNotFound, got %v", err)
	}
	_ = s.EnsureCollection(ctx, "cases", 2)
	if err := s.EnsureCollection(ctx, "cases", 3); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on re-create, got %v", err)
	}
	if err := s.Upsert(ctx, "cases", []Point{{ID: "x", Vector: []float32{1}}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on upsert, got %v", err)
	}
	if err := s.DeleteCollection(ctx, "cases"); err != nil {
		t.Fatalf("DeleteCollection() error = %v", err)
	}
	if err := s.Upsert(ctx, "cases", nil); !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("expected ErrCollectionNotFound after delete, got %v", err)
	}
}

func TestCollectionName(t *testing.T) {
	tests := []struct {
		prefix, collection, want string
	}{
		{"legal_cases", "vector", "legal_cases_vector"},
		{"", "uploads", "uploads"},
		{"lc", "my corpus/1", "lc_my_corpus_1"},
	}
	for _, tt := range tests {
		if got := collectionName(tt.prefix, tt.collection); got != tt.want {
			t.Errorf("collectionName(%q, %q) = %q, want %q", tt.prefix, tt.collection, got, tt.want)
		}
	}
}

func TestFromPayload(t *testing.T) {
	got := fromPayload("id-1", 0.7, map[string]*qdrant.Value{
		payloadDocumentID: qdrant.NewValueString("doc"),
		payloadContent:    qdrant.NewValueString("text"),
		"file_name":       qdrant.NewValueString("case1.txt"),
	})
	if got.ID != "id-1" || got.DocumentID != "doc" || got.Content != "text" || got.Score != 0.7 {
		t.Errorf("unexpected result %+v", got)
	}
	if len(got.Metadata) != 1 || got.Metadata["file_name"] != "case1.txt" {
		t.Errorf("unexpected metadata %v", got.Metadata)
	}
}
