package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("expected default HTTPPort 8080, got %d", cfg.HTTPPort)
	}
	if cfg.HybridMode != "AND" {
		t.Errorf("expected default HybridMode AND, got %s", cfg.HybridMode)
	}
	if cfg.VectorTopK != 2 || cfg.KeywordTopK != 10 {
		t.Errorf("expected top-k 2/10, got %d/%d", cfg.VectorTopK, cfg.KeywordTopK)
	}
	if cfg.ChunkSize != 8192 {
		t.Errorf("expected default ChunkSize 8192, got %d", cfg.ChunkSize)
	}
	if cfg.UploadDir != "uploads" || cfg.DefaultCorpusDir != "summaries" {
		t.Errorf("unexpected dirs: %s, %s", cfg.UploadDir, cfg.DefaultCorpusDir)
	}
	if len(cfg.SupportedExtensions) != 3 {
		t.Errorf("expected 3 supported extensions, got %v", cfg.SupportedExtensions)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("EMBEDDER_PROVIDER", "ollama")
	t.Setenv("HYBRID_MODE", "OR")
	t.Setenv("HTTP_PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HybridMode != "OR" {
		t.Errorf("expected HybridMode OR, got %s", cfg.HybridMode)
	}
	if cfg.HTTPPort != 9000 {
		t.Errorf("expected HTTPPort 9000, got %d", cfg.HTTPPort)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			HybridMode:       "AND",
			LLMProvider:      "ollama",
			EmbedderProvider: "ollama",
			VectorBackend:    "memory",
			Reranker:         "none",
			ChunkMethod:      "sentence",
			ChunkSize:        100,
			ChunkOverlap:     10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "lowercase mode", mutate: func(c *Config) { c.HybridMode = "and" }, wantErr: "HYBRID_MODE"},
		{name: "bad backend", mutate: func(c *Config) { c.VectorBackend = "faiss" }, wantErr: "VECTOR_BACKEND"},
		{name: "bad reranker", mutate: func(c *Config) { c.Reranker = "bert" }, wantErr: "RERANKER"},
		{name: "overlap too big", mutate: func(c *Config) { c.ChunkOverlap = 100 }, wantErr: "CHUNK_OVERLAP"},
		{name: "bad chunk method", mutate: func(c *Config) { c.ChunkMethod = "semantic" }, wantErr: "invalid chunking method"},
		{name: "zero chunk size", mutate: func(c *Config) { c.ChunkSize = 0 }, wantErr: "CHUNK_SIZE"},
		{name: "gemini without key", mutate: func(c *Config) { c.LLMProvider = "gemini" }, wantErr: "GEMINI_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestIsSupported(t *testing.T) {
	cfg := &Config{SupportedExtensions: []string{".txt", ".pdf", ".docx"}}

	for name, want := range map[string]bool{
		"case1.txt":    true,
		"Judgment.PDF": true,
		"brief.docx":   true,
		"notes.doc":    false,
		"image.png":    false,
	} {
		if got := cfg.IsSupported(name); got != want {
			t.Errorf("IsSupported(%q) = %v, want %v", name, got, want)
		}
	}
}
