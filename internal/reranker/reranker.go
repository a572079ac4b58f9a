// Package reranker re-scores retrieved nodes against the query.
//
// Rerankers see the query and each candidate together, which separates
// candidates that embedding similarity scores about the same.
//
//   - CrossEncoder calls a sequence-classification model behind an HTTP
//     model server and uses the probability of the relevant label.
//   - LLMReranker asks a chat model for JSON scores.
package reranker

import (
	"context"
	"sort"

	"github.com/knoguchi/lexrag/internal/index"
)

// Reranker defines the interface for re-ranking retrieved nodes.
type Reranker interface {
	// Rerank returns nodes re-ordered by relevance with the reranker's score.
	// topK <= 0 keeps every node.
	Rerank(ctx context.Context, query string, nodes []index.NodeWithScore, topK int) ([]index.NodeWithScore, error)
}

// sortAndCut orders nodes by score descending, keeping input order on ties,
// and trims to topK when topK > 0.
func sortAndCut(nodes []index.NodeWithScore, topK int) []index.NodeWithScore {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Score > nodes[j].Score })
	if topK > 0 && len(nodes) > topK {
		nodes = nodes[:topK]
	}
	return nodes
}

// withScores copies nodes and replaces their scores.
func withScores(nodes []index.NodeWithScore, scores []float32) []index.NodeWithScore {
	out := make([]index.NodeWithScore, len(nodes))
	for i, n := range nodes {
		out[i] = index.NodeWithScore{Node: n.Node, Score: scores[i]}
	}
	return out
}
