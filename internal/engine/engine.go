// Package engine answers queries by filling a prompt template with
// retrieved context and making one LLM completion.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knoguchi/lexrag/internal/index"
	"github.com/knoguchi/lexrag/internal/llm"
)

// ErrEmptyQuery is returned for a blank query.
var ErrEmptyQuery = errors.New("query is required")

// Response is an engine answer with the nodes it was grounded on.
type Response struct {
	Answer         string
	Sources        []index.NodeWithScore
	RetrievalTime  time.Duration
	GenerationTime time.Duration
}

// QueryEngine answers a query.
type QueryEngine interface {
	Query(ctx context.Context, query string) (*Response, error)
}

// StreamingQueryEngine can also stream its answer.
type StreamingQueryEngine interface {
	QueryEngine
	QueryStream(ctx context.Context, query string) ([]index.NodeWithScore, <-chan llm.StreamChunk, error)
}

// PromptEngine retrieves nodes, joins their text into the template's
// context slot and sends the filled template to the LLM.
type PromptEngine struct {
	retriever      index.Retriever
	llmClient      llm.LLM
	template       string
	opts           llm.GenerateOptions
	dedupThreshold float64
}

// Option configures a PromptEngine.
type Option func(*PromptEngine)

// WithGenerateOptions sets the options passed to every completion.
func WithGenerateOptions(opts llm.GenerateOptions) Option {
	return func(e *PromptEngine) {
		e.opts = opts
	}
}

// WithDeduplication drops retrieved nodes whose word sets overlap an earlier
// node by at least threshold (Jaccard). Zero disables it.
func WithDeduplication(threshold float64) Option {
	return func(e *PromptEngine) {
		e.dedupThreshold = threshold
	}
}

// NewPromptEngine creates a PromptEngine.
func NewPromptEngine(retriever index.Retriever, llmClient llm.LLM, template string, opts ...Option) *PromptEngine {
	e := &PromptEngine{
		retriever: retriever,
		llmClient: llmClient,
		template:  template,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query retrieves context and generates the answer.
func (e *PromptEngine) Query(ctx context.Context, query string) (*Response, error) {
	start := time.Now()
	nodes, err := e.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	retrievalTime := time.Since(start)

	start = time.Now()
	answer, err := e.llmClient.Generate(ctx, e.Prompt(nodes, query), e.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	return &Response{
		Answer:         answer,
		Sources:        nodes,
		RetrievalTime:  retrievalTime,
		GenerationTime: time.Since(start),
	}, nil
}

// QueryStream retrieves context and streams the answer.
func (e *PromptEngine) QueryStream(ctx context.Context, query string) ([]index.NodeWithScore, <-chan llm.StreamChunk, error) {
	nodes, err := e.retrieve(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	chunks, err := e.llmClient.GenerateStream(ctx, e.Prompt(nodes, query), e.opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start streaming: %w", err)
	}
	return nodes, chunks, nil
}

// Prompt fills the template with the node texts, separated by blank lines, and the query.
func (e *PromptEngine) Prompt(nodes []index.NodeWithScore, query string) string {
	r := strings.NewReplacer(
		ContextPlaceholder, strings.Join(index.Texts(nodes), "\n\n"),
		QueryPlaceholder, query,
	)
	return r.Replace(e.template)
}

func (e *PromptEngine) retrieve(ctx context.Context, query string) ([]index.NodeWithScore, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	nodes, err := e.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	if e.dedupThreshold > 0 {
		nodes = deduplicate(nodes, e.dedupThreshold)
	}
	return nodes, nil
}

// deduplicate keeps the first of any pair of nodes whose word sets have a
// Jaccard similarity of at least threshold.
func deduplicate(nodes []index.NodeWithScore, threshold float64) []index.NodeWithScore {
	if len(nodes) <= 1 {
		return nodes
	}

	sets := make([]map[string]struct{}, len(nodes))
	for i, n := range nodes {
		sets[i] = wordSet(n.Node.Text)
	}

	out := make([]index.NodeWithScore, 0, len(nodes))
	var kept []int
	for i, n := range nodes {
		dup := false
		for _, k := range kept {
			if jaccard(sets[k], sets[i]) >= threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, i)
			out = append(out, n)
		}
	}
	return out
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()[]{}=<>")
		if len(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

var _ StreamingQueryEngine = (*PromptEngine)(nil)
