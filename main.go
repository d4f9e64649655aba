package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github/itish2003/pdfchat/config"
	"github/itish2003/pdfchat/controller"
	"github/itish2003/pdfchat/logger"
	"github/itish2003/pdfchat/services"
	"github/itish2003/pdfchat/tracer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	zl := logger.New(cfg.Log.Debug, cfg.Log.File)
	defer func() { _ = zl.Sync() }()
	if !cfg.Log.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := tracer.Init(ctx, cfg.Tracing.Enabled, cfg.Tracing.Endpoint, zl)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			zl.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	if cfg.Provider.Name != config.ProviderOffline && cfg.APIKey() == "" {
		zl.Warn("API key for the configured provider is not set; uploads and chats will fail",
			zap.String("provider", cfg.Provider.Name))
	}

	ragService, closeStore, err := buildService(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to build rag service", zap.Error(err))
	}
	defer closeStore()

	if cfg.Server.InboxDir != "" {
		actions, err := services.NewInboxActions(cfg.Server.InboxDir)
		if err != nil {
			zl.Fatal("failed to prepare inbox", zap.Error(err))
		}
		watcher := services.NewInboxWatcher(actions, ragService, 0, zl)
		go func() {
			watcher.ScanDirectory(ctx)
			if err := watcher.WatchDirectory(ctx); err != nil {
				zl.Error("inbox watcher failed", zap.Error(err))
			}
		}()
	}

	ragController := controller.NewRAGController(ragService, int64(cfg.Server.MaxUploadMB)<<20, zl)
	router := controller.NewRouter(ragController, zl)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zl.Info("server starting",
		zap.String("addr", "http://localhost:"+cfg.Server.Port),
		zap.String("provider", cfg.Provider.Name),
		zap.String("vector_store", cfg.Retrieval.VectorStore))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Fatal("server failed", zap.Error(err))
	}
	zl.Info("server stopped")
}

// buildService wires providers, ingestion and the vector store into a
// RAGService. The returned func releases the vector store client.
func buildService(ctx context.Context, cfg *config.Config, zl *zap.Logger) (services.RAGService, func(), error) {
	closeStore := func() {}

	embedder, generator, err := buildProviders(ctx, cfg, zl)
	if err != nil {
		return nil, closeStore, fmt.Errorf("create provider: %w", err)
	}
	if cfg.Provider.QueryCacheTTL > 0 {
		embedder = services.NewCachedEmbedder(embedder, cfg.Provider.QueryCacheTTL)
	}

	extractor, err := services.NewPDFExtractor(cfg.Ingest.PDFBackend, cfg.Ingest.UnidocLicenseKey, zl)
	if err != nil {
		return nil, closeStore, fmt.Errorf("create pdf extractor: %w", err)
	}
	chunker, err := services.NewChunker(cfg.Ingest.ChunkStrategy, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		return nil, closeStore, fmt.Errorf("create chunker: %w", err)
	}

	var builder services.IndexBuilder = services.MemoryIndexBuilder{}
	if cfg.Retrieval.VectorStore == config.VectorStoreChroma {
		chromaClient, err := chromago.NewHTTPClient()
		if err != nil {
			return nil, closeStore, fmt.Errorf("create chroma client: %w", err)
		}
		closeStore = func() {
			if err := chromaClient.Close(); err != nil {
				zl.Warn("failed to close chroma client", zap.Error(err))
			}
		}
		collection, err := services.OpenChromaCollection(ctx, chromaClient, cfg.Retrieval.ChromaCollection, zl)
		if err != nil {
			return nil, closeStore, err
		}
		builder = services.NewChromaIndexBuilder(collection, zl)
	}

	return services.NewRAGService(services.RAGDependencies{
		Ingestor:  extractor,
		Chunker:   chunker,
		Embedder:  embedder,
		Builder:   builder,
		Generator: generator,
		Logger:    zl,
		TopK:      cfg.Retrieval.TopK,
		Timeout:   cfg.Provider.Timeout,
	}), closeStore, nil
}

func buildProviders(ctx context.Context, cfg *config.Config, zl *zap.Logger) (services.Embedder, services.AnswerGenerator, error) {
	p := cfg.Provider
	if p.Name != config.ProviderOffline && cfg.APIKey() == "" {
		missing := services.MissingKeyProvider{Provider: p.Name}
		return missing, missing, nil
	}
	switch p.Name {
	case config.ProviderGemini:
		gemini, err := services.NewGeminiProvider(ctx, p.GoogleAPIKey, p.EmbeddingModel, p.ChatModel, p.MaxOutputTokens, zl)
		if err != nil {
			return nil, nil, err
		}
		return gemini, gemini, nil
	case config.ProviderOpenAI:
		openai := services.NewOpenAIProvider(p.OpenAIAPIKey, p.OpenAIBaseURL, p.EmbeddingModel, p.ChatModel, p.MaxOutputTokens, zl)
		return openai, openai, nil
	case config.ProviderOffline:
		return services.NewHashingEmbedder(0), services.ExtractiveGenerator{}, nil
	}
	return nil, nil, fmt.Errorf("unknown provider: %s", p.Name)
}
