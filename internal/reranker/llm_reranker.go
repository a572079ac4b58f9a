package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knoguchi/lexrag/internal/index"
	"github.com/knoguchi/lexrag/internal/llm"
)

// passagePreviewChars bounds how much of each passage goes into the prompt.
const passagePreviewChars = 800

// LLMReranker uses an LLM to re-score query-passage pairs.
type LLMReranker struct {
	llmClient llm.LLM
	model     string
}

// LLMRerankerOption is a functional option for configuring LLMReranker.
type LLMRerankerOption func(*LLMReranker)

// WithModel sets the model to use for reranking.
func WithModel(model string) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.model = model
	}
}

// NewLLMReranker creates a new LLM-based reranker.
func NewLLMReranker(llmClient llm.LLM, opts ...LLMRerankerOption) *LLMReranker {
	r := &LLMReranker{llmClient: llmClient}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type relevanceScore struct {
	DocIndex int     `json:"doc_index"`
	Score    float32 `json:"score"`
}

type rerankResponse struct {
	Scores []relevanceScore `json:"scores"`
}

// Rerank asks the LLM to score each passage. An unparsable reply keeps the
// incoming order and scores.
func (r *LLMReranker) Rerank(ctx context.Context, query string, nodes []index.NodeWithScore, topK int) ([]index.NodeWithScore, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	response, err := r.llmClient.Generate(ctx, buildRerankPrompt(query, nodes), llm.GenerateOptions{
		Model:       r.model,
		Temperature: 0,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("llm reranking failed: %w", err)
	}

	scores, err := parseRerankResponse(response, len(nodes))
	if err != nil {
		slog.Warn("falling back to retrieval order", "component", "reranker", "error", err)
		out := append([]index.NodeWithScore(nil), nodes...)
		if topK > 0 && len(out) > topK {
			out = out[:topK]
		}
		return out, nil
	}

	return sortAndCut(withScores(nodes, scores), topK), nil
}

func buildRerankPrompt(query string, nodes []index.NodeWithScore) string {
	var sb strings.Builder

	sb.WriteString("You are scoring passages from court judgments for relevance to a legal question.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nPassages:\n")
	for i, n := range nodes {
		content := n.Node.Text
		if len(content) > passagePreviewChars {
			content = content[:passagePreviewChars] + "..."
		}
		fmt.Fprintf(&sb, "[Doc %d]: %s\n\n", i, content)
	}

	sb.WriteString(`Score each passage from 0.0 to 1.0.
Output ONLY valid JSON in this exact format:
{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.3}]}

Irrelevant passages score below 0.3, partly relevant 0.3-0.7, directly relevant above 0.7.
Output only JSON, no explanation:`)

	return sb.String()
}

// parseRerankResponse returns one score per passage; missing entries get 0.5.
func parseRerankResponse(response string, numNodes int) ([]float32, error) {
	var parsed rerankResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(response)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse rerank response: %w", err)
	}

	scores := make([]float32, numNodes)
	for i := range scores {
		scores[i] = 0.5
	}
	for _, s := range parsed.Scores {
		if s.DocIndex < 0 || s.DocIndex >= numNodes {
			continue
		}
		scores[s.DocIndex] = min(max(s.Score, 0), 1)
	}
	return scores, nil
}

var _ Reranker = (*LLMReranker)(nil)
