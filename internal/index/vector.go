package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knoguchi/lexrag/internal/vectorstore"
)

// DefaultVectorTopK is the number of nodes the vector retriever returns.
const DefaultVectorTopK = 2

const embedBatchSize = 32

// Embedder produces dense vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorIndex stores node embeddings in a vector store collection.
type VectorIndex struct {
	store      vectorstore.VectorStore
	embedder   Embedder
	collection string
	size       int
}

// NewVectorIndex embeds nodes and writes them to a fresh collection,
// replacing whatever the collection held before.
func NewVectorIndex(ctx context.Context, store vectorstore.VectorStore, embedder Embedder, collection string, nodes []Node) (*VectorIndex, error) {
	if err := store.DeleteCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("reset collection %s: %w", collection, err)
	}
	if err := store.EnsureCollection(ctx, collection, embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", collection, err)
	}

	for start := 0; start < len(nodes); start += embedBatchSize {
		end := min(start+embedBatchSize, len(nodes))
		batch := nodes[start:end]

		texts := make([]string, len(batch))
		for i, n := range batch {
			texts[i] = n.Text
		}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed nodes %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d nodes", len(vectors), len(batch))
		}

		points := make([]vectorstore.Point, len(batch))
		for i, n := range batch {
			points[i] = vectorstore.Point{
				ID:         n.ID,
				DocumentID: n.DocumentID,
				Content:    n.Text,
				Vector:     vectors[i],
				Metadata:   n.Metadata,
			}
		}
		if err := store.Upsert(ctx, collection, points); err != nil {
			return nil, fmt.Errorf("upsert nodes %d-%d: %w", start, end, err)
		}
	}

	slog.Debug("vector index built", "collection", collection, "nodes", len(nodes))
	return &VectorIndex{store: store, embedder: embedder, collection: collection, size: len(nodes)}, nil
}

// Len returns the number of indexed nodes.
func (v *VectorIndex) Len() int { return v.size }

// Retriever returns a retriever yielding the topK most similar nodes.
func (v *VectorIndex) Retriever(topK int) Retriever {
	if topK <= 0 {
		topK = DefaultVectorTopK
	}
	return RetrieverFunc(func(ctx context.Context, query string) ([]NodeWithScore, error) {
		vec, err := v.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		// cosine is in [-1, 1]; keep everything and let topK cut
		results, err := v.store.Search(ctx, v.collection, vec, topK, -1)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		out := make([]NodeWithScore, len(results))
		for i, r := range results {
			out[i] = NodeWithScore{
				Node: Node{
					ID:         r.ID,
					DocumentID: r.DocumentID,
					Text:       r.Content,
					Metadata:   r.Metadata,
				},
				Score: r.Score,
			}
		}
		return out, nil
	})
}
