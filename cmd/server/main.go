package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"educrm.io/ai-agent/internal/api"
	"educrm.io/ai-agent/internal/auth"
	"educrm.io/ai-agent/internal/config"
	"educrm.io/ai-agent/internal/core"
	"educrm.io/ai-agent/internal/crm"
	"educrm.io/ai-agent/internal/llm"
	"educrm.io/ai-agent/internal/logger"
	"educrm.io/ai-agent/internal/store"
	"educrm.io/ai-agent/internal/vectorstore"
)

func main() {
	// Command line flag for re-embedding every stored conversation
	reindexFlag := flag.Bool("reindex", false, "Re-embed every conversation into the vector store and exit")
	flag.Parse()

	cfg, loadedDotEnv, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if !loadedDotEnv {
		log.Info("No .env file found, using process environment")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	// Initialize database store
	dbStore, err := store.Open(startCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}
	defer dbStore.Close()

	// Initialize model clients
	llmClient, err := llm.New(startCtx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize LLM client", "provider", cfg.LLMProvider, "error", err)
	}
	defer llmClient.Close()

	vectors := newVectorStore(startCtx, cfg, log)
	gateway := newCRMGateway(cfg, log)

	syncQueue := core.NewSyncQueue(dbStore, llmClient, vectors, gateway, log, core.SyncOptions{
		Workers:     cfg.SyncWorkers,
		QueueSize:   cfg.SyncQueueSize,
		MaxAttempts: cfg.SyncMaxAttempts,
		CRMTimeout:  cfg.CRMTimeout,
	})
	syncQueue.Start()

	// Handle reindexing if flag is set
	if *reindexFlag {
		code := runReindex(syncQueue, log)
		// os.Exit skips the defers above
		llmClient.Close()
		dbStore.Close()
		log.Sync()
		os.Exit(code)
	}

	registry, err := core.NewRegistry(dbStore, llmClient, cfg.ChatTemperature, cfg.SessionCacheSize)
	if err != nil {
		log.Fatal("Failed to initialize session registry", "error", err)
	}
	mirror := core.NewCRMMirror(gateway, log.With("service", "CRMMirror"), cfg.CRMTimeout)

	userService := core.NewUserService(dbStore, auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL), mirror, log)
	conversationService := core.NewConversationService(dbStore, registry, syncQueue, vectors, llmClient, log)
	courseService := core.NewCourseService(dbStore, mirror, log)
	recommender := core.NewRecommender(dbStore, gateway, core.NewCrewOrchestrator(llmClient, cfg.ChatTemperature, log), log)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(userService, conversationService, courseService, recommender, log)
	router := api.NewRouter(apiHandler, log, cfg.CORSOrigins)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 30*time.Second, // Recommendations chain three model calls
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting server", "addr", serverAddr, "llm_provider", cfg.LLMProvider,
			"vector_store", vectors.Enabled(), "crm", cfg.CRMEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Could not listen", "addr", serverAddr, "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := syncQueue.Close(ctx); err != nil {
		log.Warn("Embedding sync queue did not drain", "error", err)
	}
	mirror.Wait()

	stats := syncQueue.Stats()
	log.Info("Server exiting gracefully", "sync_succeeded", stats.Succeeded, "sync_failed", stats.Failed, "sync_dropped", stats.Dropped)
}

func newVectorStore(ctx context.Context, cfg config.Config, log *logger.Logger) vectorstore.Store {
	if !cfg.VectorStoreEnabled() {
		log.Warn("QDRANT_URL not set, conversation embeddings are disabled")
		return vectorstore.Noop{}
	}
	q, err := vectorstore.NewQdrant(vectorstore.Options{
		URL:        cfg.QdrantURL,
		Collection: cfg.QdrantCollection,
		APIKey:     cfg.QdrantAPIKey,
		VectorDim:  cfg.EmbeddingDim,
		Timeout:    cfg.QdrantTimeout,
	})
	if err != nil {
		log.Fatal("Failed to initialize vector store", "error", err)
	}
	if err := q.EnsureCollection(ctx); err != nil {
		// Reindex retries the creation.
		log.Error("Failed to ensure vector collection", "collection", cfg.QdrantCollection, "error", err)
	}
	return q
}

func newCRMGateway(cfg config.Config, log *logger.Logger) crm.Gateway {
	if !cfg.CRMEnabled() {
		log.Warn("CRM_BASE_URL not set, CRM enrichment and mirroring are disabled")
		return crm.Noop{}
	}
	return crm.New(cfg.CRMBaseURL, cfg.CRMAPIKey, cfg.CRMTimeout)
}

func runReindex(q *core.SyncQueue, log *logger.Logger) int {
	log.Info("Starting conversation reindex...")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := q.Reindex(ctx)
	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = q.Close(closeCtx)
	if err != nil {
		log.Error("Reindex failed", "scheduled", n, "error", err)
		return 1
	}
	stats := q.Stats()
	log.Info("Reindex complete", "conversations", n, "succeeded", stats.Succeeded, "failed", stats.Failed)
	return 0
}
