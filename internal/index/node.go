// Package index holds the retrieval structures built over chunked case text:
// a summary (list) index, a vector index and a keyword table index.
package index

import "context"

// Metadata keys attached to every node.
const (
	MetaFileName   = "file_name"
	MetaFilePath   = "file_path"
	MetaChunkIndex = "chunk_index"
)

// Node is one chunk of a source document.
type Node struct {
	ID         string
	DocumentID string
	Text       string
	Metadata   map[string]string
}

// NodeWithScore is a retrieval hit. Score semantics depend on the producer:
// cosine similarity, keyword match count, or reranker probability.
type NodeWithScore struct {
	Node  Node
	Score float32
}

// Retriever returns nodes relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]NodeWithScore, error)
}

// RetrieverFunc adapts a function to Retriever.
type RetrieverFunc func(ctx context.Context, query string) ([]NodeWithScore, error)

// Retrieve calls f.
func (f RetrieverFunc) Retrieve(ctx context.Context, query string) ([]NodeWithScore, error) {
	return f(ctx, query)
}

// Texts returns the node contents in order.
func Texts(nodes []NodeWithScore) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Node.Text
	}
	return out
}
