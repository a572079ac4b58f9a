package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knoguchi/lexrag/internal/app"
	"github.com/knoguchi/lexrag/internal/auth"
	"github.com/knoguchi/lexrag/internal/config"
	"github.com/knoguchi/lexrag/internal/loader"
	"github.com/knoguchi/lexrag/internal/memory"
	"github.com/knoguchi/lexrag/internal/pipeline"
	"github.com/knoguchi/lexrag/internal/repository"
	"github.com/knoguchi/lexrag/internal/repository/postgres"
	"github.com/knoguchi/lexrag/internal/repository/sqlite"
	"github.com/knoguchi/lexrag/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := app.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting lexrag",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"embedder_provider", cfg.EmbedderProvider,
		"vector_backend", cfg.VectorBackend,
		"reranker", cfg.Reranker,
		"hybrid_mode", cfg.HybridMode,
	)

	if err := server.PrepareUploadDir(cfg.UploadDir); err != nil {
		return err
	}

	llmClient, err := app.NewLLM(ctx, cfg)
	if err != nil {
		return err
	}
	emb, err := app.NewEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Info("initialized embedder", "model", emb.ModelName(), "dimension", emb.Dimension())

	store, err := app.NewVectorStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rr, err := app.NewReranker(cfg, llmClient)
	if err != nil {
		return err
	}

	var (
		docs    repository.DocumentRepository
		queries repository.QueryLogRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		docs, queries = postgres.NewDocumentRepo(db), postgres.NewQueryLogRepo(db)
		slog.Info("connected to PostgreSQL")
	} else if cfg.SQLitePath != "" {
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		docs, queries = sqlite.NewDocumentRepo(db), sqlite.NewQueryLogRepo(db)
		slog.Info("opened SQLite database", "path", cfg.SQLitePath)
	} else {
		docs, queries = repository.NewMemoryDocumentRepo(), repository.NewMemoryQueryLogRepo(1000)
	}

	sessions := memory.NewStore(cfg.SessionMaxMessages, cfg.SessionTTL)
	go sessions.Run(ctx, 5*time.Minute)

	var authn *auth.Authenticator
	if cfg.APIKey != "" || cfg.JWTSecret != "" {
		var jwtManager *auth.JWTManager
		if cfg.JWTSecret != "" {
			jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
			jwtCfg.Expiry = cfg.JWTExpiry
			jwtManager = auth.NewJWTManager(jwtCfg)
		}
		authn = auth.NewAuthenticator(cfg.APIKey, jwtManager, logger)
		slog.Info("authentication enabled", "api_key", cfg.APIKey != "", "jwt", jwtManager != nil)
	}

	p := pipeline.New(app.PipelineConfig(cfg), loader.New(logger), llmClient, emb, store, rr, logger)

	api := server.NewAPI(server.APIConfig{
		UploadDir:        cfg.UploadDir,
		DefaultCorpusDir: cfg.DefaultCorpusDir,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		IsSupported:      cfg.IsSupported,
		Auth:             authn,
	}, p, docs, queries, sessions, logger)

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	}, api)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
