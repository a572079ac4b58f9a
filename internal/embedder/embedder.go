// Package embedder provides interfaces and implementations for text embedding.
package embedder

import "context"

// Embedder defines the interface for text embedding services.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple text inputs.
	// Returns a slice of embeddings in the same order as the input texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// knownDimensions maps embedding model names to their output size.
var knownDimensions = map[string]int{
	"all-minilm":         384, // sentence-transformers/all-MiniLM-L6-v2
	"nomic-embed-text":   768,
	"mxbai-embed-large":  1024,
	"text-embedding-004": 768,
	"embedding-001":      768,
}

// DimensionFor returns the vector size of a known model, or fallback.
func DimensionFor(model string, fallback int) int {
	if d, ok := knownDimensions[model]; ok {
		return d
	}
	return fallback
}
