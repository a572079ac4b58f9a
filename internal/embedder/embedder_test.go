package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestNewOllamaEmbedder_Defaults(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{})

	if e.ModelName() != DefaultOllamaModel {
		t.Errorf("expected default model %s, got %s", DefaultOllamaModel, e.ModelName())
	}
	if e.Dimension() != 384 {
		t.Errorf("expected all-minilm dimension 384, got %d", e.Dimension())
	}
}

func TestOllamaEmbedder_EmbedBatchKeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		// encode the prompt length so the caller can check ordering
		_ = json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float64{float64(len(req.Prompt)), 1}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, BatchConcurrency: 2})
	texts := []string{"a", "bbb", "cc", "dddd"}

	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	for i, text := range texts {
		if int(vecs[i][0]) != len(text) {
			t.Errorf("vector %d out of order: got %v for %q", i, vecs[i], text)
		}
	}
}

func TestOllamaEmbedder_EmbedBatchError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float64{1}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, BatchConcurrency: 1})
	_, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected batch failure, got %v", err)
	}
}

func TestOllamaEmbedder_EmptyEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[]}`))
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL}).Embed(context.Background(), "x")
	if err != ErrEmptyEmbedding {
		t.Fatalf("expected ErrEmptyEmbedding, got %v", err)
	}
}

type fakeClient struct{}

func (fakeClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestGeminiEmbedder(t *testing.T) {
	e, err := NewGeminiEmbedder(fakeClient{}, "text-embedding-004")
	if err != nil {
		t.Fatalf("NewGeminiEmbedder() error = %v", err)
	}
	if e.Dimension() != 768 {
		t.Errorf("expected dimension 768, got %d", e.Dimension())
	}

	vecs, err := e.EmbedBatch(context.Background(), []string{"ab", "abcd"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vecs) != 2 || vecs[1][0] != 4 {
		t.Errorf("unexpected vectors %v", vecs)
	}

	q, err := e.Embed(context.Background(), "abc")
	if err != nil || q[0] != 3 {
		t.Errorf("Embed() = %v, %v", q, err)
	}
}
