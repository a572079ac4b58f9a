// Package config loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/knoguchi/lexrag/internal/ingestion"
)

// Config holds all configuration for the legal RAG service
type Config struct {
	// Server
	HTTPPort       int      `env:"HTTP_PORT" envDefault:"8080"`
	Environment    string   `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string   `env:"LOG_FORMAT" envDefault:"json"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Corpus
	UploadDir           string   `env:"UPLOAD_DIR" envDefault:"uploads"`
	DefaultCorpusDir    string   `env:"DEFAULT_CORPUS_DIR" envDefault:"summaries"`
	SupportedExtensions []string `env:"SUPPORTED_EXTENSIONS" envSeparator:"," envDefault:".txt,.pdf,.docx"`
	MaxUploadBytes      int64    `env:"MAX_UPLOAD_BYTES" envDefault:"104857600"`

	// Splitting
	ChunkMethod  string `env:"CHUNK_METHOD" envDefault:"sentence"`
	ChunkSize    int    `env:"CHUNK_SIZE" envDefault:"8192"`
	ChunkOverlap int    `env:"CHUNK_OVERLAP" envDefault:"200"`

	// Retrieval
	VectorTopK     int     `env:"VECTOR_TOP_K" envDefault:"2"`
	KeywordTopK    int     `env:"KEYWORD_TOP_K" envDefault:"10"`
	HybridMode     string  `env:"HYBRID_MODE" envDefault:"AND"`
	DedupThreshold float64 `env:"DEDUP_THRESHOLD" envDefault:"0"`

	// LLM
	LLMProvider    string  `env:"LLM_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey   string  `env:"GEMINI_API_KEY"`
	GeminiModel    string  `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	OllamaURL      string  `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaLLMModel string  `env:"OLLAMA_LLM_MODEL" envDefault:"llama3.2"`
	LLMTemperature float32 `env:"LLM_TEMPERATURE" envDefault:"0.3"`
	RouterVerbose  bool    `env:"ROUTER_VERBOSE" envDefault:"true"`

	// Embeddings
	EmbedderProvider     string `env:"EMBEDDER_PROVIDER" envDefault:"ollama"`
	OllamaEmbeddingModel string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"all-minilm"`
	GeminiEmbeddingModel string `env:"GEMINI_EMBEDDING_MODEL" envDefault:"text-embedding-004"`

	// Vector store
	VectorBackend    string `env:"VECTOR_BACKEND" envDefault:"memory"`
	QdrantGRPCURL    string `env:"QDRANT_GRPC_URL" envDefault:"localhost:6334"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"legal_cases"`

	// Reranker
	Reranker            string        `env:"RERANKER" envDefault:"cross-encoder"`
	CrossEncoderURL     string        `env:"CROSS_ENCODER_URL" envDefault:"http://localhost:8081"`
	CrossEncoderMaxLen  int           `env:"CROSS_ENCODER_MAX_LENGTH" envDefault:"512"`
	CrossEncoderLabel   int           `env:"CROSS_ENCODER_RELEVANT_LABEL" envDefault:"1"`
	CrossEncoderTimeout time.Duration `env:"CROSS_ENCODER_TIMEOUT" envDefault:"60s"`

	// Persistence (optional). DATABASE_URL takes precedence over SQLITE_PATH.
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH"`

	// Auth (optional)
	APIKey    string        `env:"API_KEY"`
	JWTSecret string        `env:"JWT_SECRET"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	// Conversation memory
	SessionMaxMessages int           `env:"SESSION_MAX_MESSAGES" envDefault:"20"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"1h"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown enum values and nonsensical sizes.
func (c *Config) Validate() error {
	if c.HybridMode != "AND" && c.HybridMode != "OR" {
		return fmt.Errorf("HYBRID_MODE must be AND or OR, got %q", c.HybridMode)
	}
	if err := oneOf("LLM_PROVIDER", c.LLMProvider, "gemini", "ollama"); err != nil {
		return err
	}
	if err := oneOf("EMBEDDER_PROVIDER", c.EmbedderProvider, "gemini", "ollama"); err != nil {
		return err
	}
	if err := oneOf("VECTOR_BACKEND", c.VectorBackend, "memory", "qdrant"); err != nil {
		return err
	}
	if err := oneOf("RERANKER", c.Reranker, "cross-encoder", "llm", "none"); err != nil {
		return err
	}
	if c.DedupThreshold < 0 || c.DedupThreshold > 1 {
		return fmt.Errorf("DEDUP_THRESHOLD must be in [0, 1], got %v", c.DedupThreshold)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive")
	}
	if err := ingestion.ValidateChunkerConfig(ingestion.ChunkerConfig{
		Method:    c.ChunkMethod,
		ChunkSize: c.ChunkSize,
		Overlap:   c.ChunkOverlap,
	}); err != nil {
		return fmt.Errorf("CHUNK_METHOD/CHUNK_SIZE/CHUNK_OVERLAP: %w", err)
	}
	if (c.LLMProvider == "gemini" || c.EmbedderProvider == "gemini") && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
	}
	return nil
}

// IsSupported reports whether a file name carries one of the supported extensions.
func (c *Config) IsSupported(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range c.SupportedExtensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}
