package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/pulseline-ai/agent-backend/internal/breaker"
	"github.com/pulseline-ai/agent-backend/internal/cache"
	"github.com/pulseline-ai/agent-backend/internal/character"
	"github.com/pulseline-ai/agent-backend/internal/config"
	"github.com/pulseline-ai/agent-backend/internal/domain"
	"github.com/pulseline-ai/agent-backend/internal/handler"
	"github.com/pulseline-ai/agent-backend/internal/memory"
	"github.com/pulseline-ai/agent-backend/internal/middleware"
	"github.com/pulseline-ai/agent-backend/internal/openaiclient"
	"github.com/pulseline-ai/agent-backend/internal/ratelimit"
	"github.com/pulseline-ai/agent-backend/internal/repository"
	"github.com/pulseline-ai/agent-backend/internal/router"
	"github.com/pulseline-ai/agent-backend/internal/search"
	"github.com/pulseline-ai/agent-backend/internal/service"
)

const Version = "0.1.0"

func run() error {
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	table, err := config.LoadDomains(cfg.DomainsFile)
	if err != nil {
		return err
	}
	persona, err := character.Load(cfg.CharacterCard)
	if err != nil {
		return err
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	llmClient := openaiclient.New(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.EmbeddingModel)

	var embCache repository.EmbeddingCache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		embCache = cache.NewEmbeddingCache(redis.NewClient(opts), cache.DefaultEmbeddingTTL)
	}

	knowledge := repository.NewKnowledgeRepo(pool, llmClient, embCache)
	if err := knowledge.Migrate(ctx, cfg.EmbeddingDims); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.MemoryDBPath), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	mem, err := memory.Open(cfg.MemoryDBPath, cfg.MaxTurns)
	if err != nil {
		return err
	}
	defer mem.Close()
	mem.StartReaper(time.Hour)

	breakers := breaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown)
	limiter := ratelimit.New(cfg.RateLimitInterval)
	defer limiter.Stop()

	reg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(reg)

	providers := []service.SearchProvider{
		search.NewWikipediaProvider(nil, ""),
		search.NewDuckDuckGoProvider(nil, ""),
	}

	orchestrator := service.NewOrchestrator(service.OrchestratorDeps{
		Limiter:         limiter,
		Memory:          mem,
		Classifier:      domain.NewClassifier(table),
		Contexts:        domain.NewContextStore(),
		Retriever:       service.NewRetrieverService(knowledge, breakers, table),
		Web:             service.NewWebSearchService(providers, breakers, cfg.WebSearchTimeout, cfg.ProviderTimeout),
		Prompts:         service.NewPromptBuilder(persona, table, cfg.PromptCap),
		LLM:             service.NewLLMService(llmClient, breakers, cfg.LLMTimeout),
		Breakers:        breakers,
		Persona:         persona,
		Observer:        metrics,
		MaxResponseTime: cfg.MaxResponseTime,
	})

	mux := router.New(router.Dependencies{
		Chat:       handler.NewChatHandler(orchestrator),
		Health:     handler.NewHealthHandler(breakers, Version),
		Memory:     handler.NewMemoryHandler(mem),
		Metrics:    metrics,
		MetricsReg: reg,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.MaxResponseTime + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("agent-backend starting", "version", Version, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
