package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
)

// GeminiEmbedder adapts a langchaingo embedder (normally backed by the
// Google AI client) to Embedder.
type GeminiEmbedder struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
	logger    *slog.Logger
}

// NewGeminiEmbedder wraps client, which is usually a *googleai.GoogleAI.
func NewGeminiEmbedder(client embeddings.EmbedderClient, model string) (*GeminiEmbedder, error) {
	emb, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &GeminiEmbedder{
		embedder:  emb,
		model:     model,
		dimension: DimensionFor(model, 768),
		logger:    slog.Default().With("component", "gemini-embedder"),
	}, nil
}

// Embed embeds a query text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vec) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vec, nil
}

// EmbedBatch embeds document texts in one provider call.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("embedding documents", "count", len(texts))

	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding documents: got %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

// Dimension returns the dimensionality of the embedding vectors.
func (e *GeminiEmbedder) Dimension() int { return e.dimension }

// ModelName returns the name of the embedding model being used.
func (e *GeminiEmbedder) ModelName() string { return e.model }

var _ Embedder = (*GeminiEmbedder)(nil)
