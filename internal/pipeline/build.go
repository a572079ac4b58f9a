package pipeline

import (
	"context"
	"fmt"

	"github.com/knoguchi/lexrag/internal/engine"
	"github.com/knoguchi/lexrag/internal/index"
	"github.com/knoguchi/lexrag/internal/ingestion"
	"github.com/knoguchi/lexrag/internal/loader"
	"github.com/knoguchi/lexrag/internal/retriever"
	"github.com/knoguchi/lexrag/internal/router"
)

// Build is one pass through the pipeline stages. Fields stay nil when the
// inputs for them were absent.
type Build struct {
	p          *Pipeline
	collection string

	Documents       []loader.Document
	SingleDocuments []loader.Document
	Nodes           []index.Node
	SingleNodes     []index.Node

	SummaryIndex *index.SummaryIndex
	VectorIndex  *index.VectorIndex
	KeywordIndex *index.KeywordTableIndex

	SummaryEngine engine.QueryEngine
	VectorEngine  engine.QueryEngine

	Tools  []*router.Tool
	Router *router.Router
}

// LoadDocuments reads the directory corpus and the explicit summary files.
func (b *Build) LoadDocuments(ctx context.Context, inputDir string, inputFiles []string) error {
	if inputDir != "" {
		docs, err := b.p.loader.LoadDir(ctx, inputDir)
		if err != nil {
			return err
		}
		b.Documents = docs
	}
	if len(inputFiles) > 0 {
		docs, err := b.p.loader.LoadFiles(ctx, inputFiles)
		if err != nil {
			return err
		}
		b.SingleDocuments = docs
	}
	return nil
}

// SplitDocuments chunks both document sets into nodes.
func (b *Build) SplitDocuments(ctx context.Context) error {
	splitter := ingestion.NewSplitter(b.p.cfg.Chunker)
	if len(b.Documents) > 0 {
		nodes, stats, err := splitter.Split(ctx, b.Documents)
		if err != nil {
			return err
		}
		b.Nodes = nodes
		b.p.logger.Debug("split corpus", "documents", stats.Documents, "nodes", stats.Nodes, "avg_words", stats.AvgNodeWords)
	}
	if len(b.SingleDocuments) > 0 {
		nodes, _, err := splitter.Split(ctx, b.SingleDocuments)
		if err != nil {
			return err
		}
		b.SingleNodes = nodes
	}
	return nil
}

// CreateIndices builds the summary index over the explicit files and the
// vector and keyword indices over the directory corpus.
func (b *Build) CreateIndices(ctx context.Context) error {
	if len(b.SingleNodes) > 0 {
		b.SummaryIndex = index.NewSummaryIndex(b.SingleNodes)
	}
	if len(b.Nodes) > 0 {
		vi, err := index.NewVectorIndex(ctx, b.p.store, b.p.embedder, b.collection, b.Nodes)
		if err != nil {
			return err
		}
		b.VectorIndex = vi
		b.KeywordIndex = index.NewKeywordTableIndex(b.Nodes, index.DefaultMaxKeywordsPerNode)
	}
	return nil
}

// CreateQueryEngines builds the summary engine and the hybrid-retrieval QA engine.
func (b *Build) CreateQueryEngines() error {
	cfg := b.p.cfg
	if b.SummaryIndex != nil {
		b.SummaryEngine = engine.NewPromptEngine(b.SummaryIndex, b.p.llm, engine.CaseSummaryTemplate,
			engine.WithGenerateOptions(cfg.Generate))
	}
	if b.VectorIndex != nil && b.KeywordIndex != nil {
		hybrid, err := retriever.NewHybrid(
			b.VectorIndex.Retriever(cfg.VectorTopK),
			b.KeywordIndex.Retriever(cfg.KeywordTopK),
			b.p.reranker,
			cfg.HybridMode,
		)
		if err != nil {
			return err
		}
		b.VectorEngine = engine.NewPromptEngine(hybrid, b.p.llm, engine.LegalQATemplate,
			engine.WithGenerateOptions(cfg.Generate),
			engine.WithDeduplication(cfg.DedupThreshold))
	}
	return nil
}

// CreateTools wraps the engines as router tools. The outcome tool shares the QA engine.
func (b *Build) CreateTools() error {
	b.Tools = nil
	if b.SummaryEngine != nil {
		b.Tools = append(b.Tools, &router.Tool{Name: ToolCaseSummary, Description: caseSummaryDescription, Engine: b.SummaryEngine})
	}
	if b.VectorEngine != nil {
		b.Tools = append(b.Tools,
			&router.Tool{Name: ToolLegalContext, Description: legalContextDescription, Engine: b.VectorEngine},
			&router.Tool{Name: ToolCaseOutcome, Description: caseOutcomeDescription, Engine: b.VectorEngine},
		)
	}
	return nil
}

// CreateRouter builds the selector over the tools.
func (b *Build) CreateRouter() error {
	r, err := router.New(b.p.llm, b.Tools,
		router.WithVerbose(b.p.cfg.RouterVerbose),
		router.WithGenerateOptions(b.p.cfg.Generate))
	if err != nil {
		return fmt.Errorf("no documents to answer from: %w", err)
	}
	b.Router = r
	return nil
}

// Collection returns the vector collection this build writes to.
func (b *Build) Collection() string { return b.collection }

// discard drops the build's vector collection. Errors are only logged.
func (b *Build) discard(ctx context.Context) {
	if err := b.p.store.DeleteCollection(context.WithoutCancel(ctx), b.collection); err != nil {
		b.p.logger.Warn("failed to drop vector collection", "collection", b.collection, "error", err)
	}
}

// ChunkCounts returns the number of corpus nodes per source file path.
func (b *Build) ChunkCounts() map[string]int {
	counts := make(map[string]int)
	for _, n := range b.Nodes {
		counts[n.Metadata[index.MetaFilePath]]++
	}
	return counts
}
