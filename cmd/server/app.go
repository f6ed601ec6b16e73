package main

import (
	"context"
	"fmt"
	"time"

	"docchat.dev/pdf-rag/internal/auth"
	"docchat.dev/pdf-rag/internal/blob"
	"docchat.dev/pdf-rag/internal/config"
	"docchat.dev/pdf-rag/internal/core"
	"docchat.dev/pdf-rag/internal/extract"
	"docchat.dev/pdf-rag/internal/llm"
	"docchat.dev/pdf-rag/internal/llm/gemini"
	"docchat.dev/pdf-rag/internal/llm/openai"
	"docchat.dev/pdf-rag/internal/llm/ollama"
	"docchat.dev/pdf-rag/internal/logger"
	"docchat.dev/pdf-rag/internal/store"
)

const queryCacheTTL = 24 * time.Hour

// application holds the process-wide clients, built once and shared by every
// request.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *store.Store
	provider llm.Provider
	auth     *auth.Authenticator
	chats    *core.ChatService
	ingestor *core.Ingestor
	closers  []func() error
}

func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	app := &application{cfg: cfg, log: log}
	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *application) wire(ctx context.Context) error {
	cfg := a.cfg

	dialect := store.DialectSQLite
	if cfg.DatabaseDriver == config.DriverPostgres {
		dialect = store.DialectPostgres
	}
	db, err := store.Open(ctx, dialect, cfg.DatabaseURL, cfg.EmbeddingDimensions)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.store = db
	a.closers = append(a.closers, db.Close)

	provider, err := newProvider(ctx, cfg, a.log)
	if err != nil {
		return err
	}
	a.provider = provider
	a.closers = append(a.closers, provider.Close)

	blobs, err := newBlobStore(ctx, cfg, a.log)
	if err != nil {
		return err
	}
	if c, ok := blobs.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	authenticator, err := auth.NewAuthenticator(cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		return err
	}
	a.auth = authenticator

	var queryEmbedder llm.Embedder = provider
	if cfg.RedisURL != "" {
		cache, err := llm.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, cache.Close)
		queryEmbedder = llm.NewCachedEmbedder(provider, cache, cfg.LLMProvider+":"+embedModelName(cfg), queryCacheTTL, a.log)
		a.log.Info("Query embedding cache enabled")
	}

	t := cfg.Tuning
	rag := core.NewRAGService(db, queryEmbedder, provider, t.RetrievalK, a.log)
	a.chats = core.NewChatService(db, rag, a.log)
	a.ingestor = core.NewIngestor(
		db,
		blobs,
		extract.NewPDFExtractor(),
		core.NewChunkEmbedder(provider, db, t.EmbedBatchSize, t.EmbedPause, a.log),
		core.NewTitleGenerator(provider, a.log),
		core.IngestOptions{ChunkSize: t.ChunkSize, ChunkOverlap: t.ChunkOverlap, Timeout: t.IngestTimeout},
		a.log,
	)
	return nil
}

func newProvider(ctx context.Context, cfg *config.Config, log *logger.Logger) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			ChatModel:  cfg.Gemini.ChatModel,
			EmbedModel: cfg.Gemini.EmbedModel,
		}, log)
	case config.ProviderOllama:
		return ollama.NewClient(ollama.Config{
			ChatModel:  cfg.Ollama.ChatModel,
			EmbedModel: cfg.Ollama.EmbedModel,
		})
	default:
		return openai.NewClient(openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			ChatModel:  cfg.OpenAI.ChatModel,
			EmbedModel: cfg.OpenAI.EmbedModel,
			Dimensions: cfg.EmbeddingDimensions,
			MaxRetries: 2,
		}, log)
	}
}

func embedModelName(cfg *config.Config) string {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return cfg.Gemini.EmbedModel
	case config.ProviderOllama:
		return cfg.Ollama.EmbedModel
	default:
		return cfg.OpenAI.EmbedModel
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (core.BlobStore, error) {
	if cfg.Storage.Backend == config.StorageGCS {
		gcs, err := blob.NewGCSStore(ctx, cfg.Storage.GCSBucket, cfg.Storage.GCSPublicBase, log)
		if err != nil {
			return nil, err
		}
		return gcs, nil
	}
	return blob.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.LocalBaseURL)
}

// Close releases clients in reverse order of creation.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("Error while closing client", "error", err)
		}
	}
	a.log.Sync()
}
