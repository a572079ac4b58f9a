// Package retriever combines vector and keyword retrieval.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/knoguchi/lexrag/internal/index"
	"github.com/knoguchi/lexrag/internal/reranker"
)

// Combination modes.
const (
	ModeAnd = "AND"
	ModeOr  = "OR"
)

// ErrInvalidMode is returned for a mode other than AND or OR.
var ErrInvalidMode = errors.New("invalid mode: must be 'AND' or 'OR'")

// Hybrid runs a vector and a keyword retriever, combines their hits by node
// ID and orders the result with a reranker.
type Hybrid struct {
	vector   index.Retriever
	keyword  index.Retriever
	reranker reranker.Reranker
	mode     string
	logger   *slog.Logger
}

// NewHybrid creates a hybrid retriever. A nil reranker leaves candidates in
// combination order.
func NewHybrid(vector, keyword index.Retriever, rr reranker.Reranker, mode string) (*Hybrid, error) {
	if mode != ModeAnd && mode != ModeOr {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMode, mode)
	}
	if vector == nil || keyword == nil {
		return nil, errors.New("hybrid retriever needs both a vector and a keyword retriever")
	}
	return &Hybrid{
		vector:   vector,
		keyword:  keyword,
		reranker: rr,
		mode:     mode,
		logger:   slog.Default().With("component", "hybrid_retriever"),
	}, nil
}

// Retrieve returns the combined candidates, best first when a reranker is set.
// With AND only nodes found by both retrievers survive; with OR any hit does.
// For a node found by both, the keyword hit is kept.
func (h *Hybrid) Retrieve(ctx context.Context, query string) ([]index.NodeWithScore, error) {
	vectorNodes, err := h.vector.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vector retrieval: %w", err)
	}
	keywordNodes, err := h.keyword.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("keyword retrieval: %w", err)
	}

	vectorIDs := make(map[string]struct{}, len(vectorNodes))
	keywordIDs := make(map[string]struct{}, len(keywordNodes))
	combined := make(map[string]index.NodeWithScore, len(vectorNodes)+len(keywordNodes))
	var order []string

	for _, n := range vectorNodes {
		id := n.Node.ID
		if _, dup := combined[id]; !dup {
			order = append(order, id)
		}
		vectorIDs[id] = struct{}{}
		combined[id] = n
	}
	for _, n := range keywordNodes {
		id := n.Node.ID
		if _, dup := combined[id]; !dup {
			order = append(order, id)
		}
		keywordIDs[id] = struct{}{}
		combined[id] = n
	}

	candidates := make([]index.NodeWithScore, 0, len(order))
	for _, id := range order {
		_, inVector := vectorIDs[id]
		_, inKeyword := keywordIDs[id]
		if h.mode == ModeAnd && !(inVector && inKeyword) {
			continue
		}
		candidates = append(candidates, combined[id])
	}

	h.logger.Debug("combined retrieval",
		"mode", h.mode,
		"vector", len(vectorNodes),
		"keyword", len(keywordNodes),
		"candidates", len(candidates),
	)

	if h.reranker == nil || len(candidates) == 0 {
		return candidates, nil
	}
	reranked, err := h.reranker.Rerank(ctx, query, candidates, 0)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	return reranked, nil
}

var _ index.Retriever = (*Hybrid)(nil)
