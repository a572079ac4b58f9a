// Package pipeline wires loading, splitting, indexing, query engines and the
// router into one queryable state that can be rebuilt at runtime.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/knoguchi/lexrag/internal/index"
	"github.com/knoguchi/lexrag/internal/ingestion"
	"github.com/knoguchi/lexrag/internal/llm"
	"github.com/knoguchi/lexrag/internal/loader"
	"github.com/knoguchi/lexrag/internal/reranker"
	"github.com/knoguchi/lexrag/internal/retriever"
	"github.com/knoguchi/lexrag/internal/router"
	"github.com/knoguchi/lexrag/internal/vectorstore"
)

// Tool names and descriptions shown to the router.
const (
	ToolCaseSummary  = "case_summary"
	ToolLegalContext = "legal_context"
	ToolCaseOutcome  = "case_outcome"

	caseSummaryDescription  = "Useful for summarization questions related to legal Case Files."
	legalContextDescription = "Useful for retrieving specific context from the legal cases provided. " +
		"Provides all the relevant Acts, Sections, and other legal information related to the query in the response."
	caseOutcomeDescription = "Useful for predicting outcome of a given case or scenario in the query " +
		"using the legal cases provided as context when explicitly asked for outcome or prediction."
)

// ErrNotReady is returned when querying before a successful build.
var ErrNotReady = errors.New("pipeline has not been built")

// Config holds pipeline settings.
type Config struct {
	Chunker        ingestion.ChunkerConfig
	VectorTopK     int
	KeywordTopK    int
	HybridMode     string
	Collection     string
	DedupThreshold float64
	Generate       llm.GenerateOptions
	RouterVerbose  bool
}

// Pipeline owns the current queryable state. Builds run outside the lock and
// replace the state in one step, so queries never see a half-built index.
type Pipeline struct {
	cfg      Config
	loader   *loader.Loader
	llm      llm.LLM
	embedder index.Embedder
	store    vectorstore.VectorStore
	reranker reranker.Reranker
	logger   *slog.Logger

	generation atomic.Uint64
	buildMu    sync.Mutex // serializes builds
	mu         sync.RWMutex
	current    *Build
	retired    *Build // previous build, kept for in-flight queries
}

// New creates an empty pipeline. rr may be nil to skip reranking.
func New(cfg Config, ld *loader.Loader, llmClient llm.LLM, emb index.Embedder, store vectorstore.VectorStore, rr reranker.Reranker, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HybridMode == "" {
		cfg.HybridMode = retriever.ModeAnd
	}
	if cfg.Collection == "" {
		cfg.Collection = "corpus"
	}
	return &Pipeline{
		cfg:      cfg,
		loader:   ld,
		llm:      llmClient,
		embedder: emb,
		store:    store,
		reranker: rr,
		logger:   logger.With("component", "pipeline"),
	}
}

// Ready reports whether a build has been committed.
func (p *Pipeline) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current != nil
}

// Current returns the committed build, or nil.
func (p *Pipeline) Current() *Build {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// NewBuild starts an empty build with its own vector collection. Run its
// stages in order, then Commit it.
func (p *Pipeline) NewBuild() *Build {
	gen := p.generation.Add(1)
	return &Build{p: p, collection: fmt.Sprintf("%s_%d", p.cfg.Collection, gen)}
}

// Commit makes b the state answering queries. The build before the previous
// one is dropped along with its vector collection.
func (p *Pipeline) Commit(ctx context.Context, b *Build) error {
	if b.Router == nil {
		return fmt.Errorf("commit: %w", router.ErrNoTools)
	}
	p.mu.Lock()
	stale := p.retired
	p.retired, p.current = p.current, b
	p.mu.Unlock()

	if stale != nil {
		stale.discard(ctx)
	}
	return nil
}

// Build runs every stage over inputDir (vector and keyword corpus) and
// inputFiles (summary corpus) and commits the result. Either may be empty.
func (p *Pipeline) Build(ctx context.Context, inputDir string, inputFiles []string) error {
	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	start := time.Now()
	b := p.NewBuild()
	stages := []struct {
		name string
		run  func() error
	}{
		{"load documents", func() error { return b.LoadDocuments(ctx, inputDir, inputFiles) }},
		{"split documents", func() error { return b.SplitDocuments(ctx) }},
		{"create indices", func() error { return b.CreateIndices(ctx) }},
		{"create query engines", b.CreateQueryEngines},
		{"create tools", b.CreateTools},
		{"create router", b.CreateRouter},
	}
	for _, stage := range stages {
		if err := stage.run(); err != nil {
			b.discard(ctx)
			return fmt.Errorf("%s: %w", stage.name, err)
		}
	}
	if err := p.Commit(ctx, b); err != nil {
		b.discard(ctx)
		return err
	}

	p.logger.Info("pipeline built",
		"input_dir", inputDir,
		"input_files", len(inputFiles),
		"nodes", len(b.Nodes),
		"summary_nodes", len(b.SingleNodes),
		"tools", len(b.Tools),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Query routes query through the committed build.
func (p *Pipeline) Query(ctx context.Context, query string) (*router.Result, error) {
	b := p.Current()
	if b == nil {
		return nil, ErrNotReady
	}
	return b.Router.Query(ctx, query)
}

// QueryStream routes query through the committed build and streams the answer.
func (p *Pipeline) QueryStream(ctx context.Context, query string) (*router.Selection, []index.NodeWithScore, <-chan llm.StreamChunk, error) {
	b := p.Current()
	if b == nil {
		return nil, nil, nil, ErrNotReady
	}
	return b.Router.QueryStream(ctx, query)
}

// ChunkCounts returns the per-file node counts of the committed build.
func (p *Pipeline) ChunkCounts() map[string]int {
	b := p.Current()
	if b == nil {
		return nil
	}
	return b.ChunkCounts()
}
