package index

import "context"

// SummaryIndex is a list index: retrieval returns every node in insertion
// order, so the engine sees the whole document set.
type SummaryIndex struct {
	nodes []Node
}

// NewSummaryIndex builds a summary index over nodes.
func NewSummaryIndex(nodes []Node) *SummaryIndex {
	return &SummaryIndex{nodes: append([]Node(nil), nodes...)}
}

// Len returns the number of indexed nodes.
func (s *SummaryIndex) Len() int { return len(s.nodes) }

// Retrieve ignores the query and returns all nodes with score 0.
func (s *SummaryIndex) Retrieve(ctx context.Context, query string) ([]NodeWithScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]NodeWithScore, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = NodeWithScore{Node: n}
	}
	return out, nil
}
