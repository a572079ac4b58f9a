// Package app builds the configured providers shared by the commands.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/knoguchi/lexrag/internal/config"
	"github.com/knoguchi/lexrag/internal/embedder"
	"github.com/knoguchi/lexrag/internal/ingestion"
	"github.com/knoguchi/lexrag/internal/llm"
	"github.com/knoguchi/lexrag/internal/pipeline"
	"github.com/knoguchi/lexrag/internal/reranker"
	"github.com/knoguchi/lexrag/internal/vectorstore"
)

// NewLogger returns a JSON or text slog logger at the configured level.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// NewLLM returns the configured completion client.
func NewLLM(ctx context.Context, cfg *config.Config) (llm.LLM, error) {
	switch cfg.LLMProvider {
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Temperature: cfg.LLMTemperature,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini llm: %w", err)
		}
		return client, nil
	case "ollama":
		return llm.NewOllamaClient(
			llm.WithBaseURL(cfg.OllamaURL),
			llm.WithModel(cfg.OllamaLLMModel),
		), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

// NewEmbedder returns the configured embedder.
func NewEmbedder(ctx context.Context, cfg *config.Config) (embedder.Embedder, error) {
	switch cfg.EmbedderProvider {
	case "gemini":
		client, err := llm.NewGoogleAI(ctx, llm.GeminiConfig{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.GeminiModel,
			EmbeddingModel: cfg.GeminiEmbeddingModel,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embedder: %w", err)
		}
		return embedder.NewGeminiEmbedder(client, cfg.GeminiEmbeddingModel)
	case "ollama":
		return embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaEmbeddingModel,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.EmbedderProvider)
	}
}

// NewVectorStore returns the configured vector backend.
func NewVectorStore(ctx context.Context, cfg *config.Config) (vectorstore.VectorStore, error) {
	switch cfg.VectorBackend {
	case "memory":
		return vectorstore.NewMemoryStore(), nil
	case "qdrant":
		store, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection)
		if err != nil {
			return nil, fmt.Errorf("qdrant: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// NewReranker returns the configured reranker, or nil for "none".
func NewReranker(cfg *config.Config, llmClient llm.LLM) (reranker.Reranker, error) {
	switch cfg.Reranker {
	case "cross-encoder":
		return reranker.NewCrossEncoder(reranker.CrossEncoderConfig{
			BaseURL:       cfg.CrossEncoderURL,
			MaxLength:     cfg.CrossEncoderMaxLen,
			RelevantLabel: cfg.CrossEncoderLabel,
			Timeout:       cfg.CrossEncoderTimeout,
		}), nil
	case "llm":
		return reranker.NewLLMReranker(llmClient), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown reranker %q", cfg.Reranker)
	}
}

// PipelineConfig maps service settings onto the pipeline.
func PipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Chunker: ingestion.ChunkerConfig{
			Method:    cfg.ChunkMethod,
			ChunkSize: cfg.ChunkSize,
			Overlap:   cfg.ChunkOverlap,
		},
		VectorTopK:     cfg.VectorTopK,
		KeywordTopK:    cfg.KeywordTopK,
		HybridMode:     cfg.HybridMode,
		DedupThreshold: cfg.DedupThreshold,
		Generate:       llm.GenerateOptions{Temperature: cfg.LLMTemperature},
		RouterVerbose:  cfg.RouterVerbose,
	}
}
