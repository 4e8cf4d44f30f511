// Package config loads application configuration from environment variables
// and the optional domain declaration file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment
// variables. It is immutable after Load() returns.
type Config struct {
	Port        int
	Environment string

	DatabaseURL      string
	DatabaseMaxConns int
	EmbeddingDims    int
	RedisURL         string

	LLMAPIKey     string
	LLMBaseURL    string
	LLMModel      string
	EmbeddingModel string

	MemoryDBPath  string
	MaxTurns      int
	CharacterCard string
	DomainsFile   string

	MaxResponseTime   time.Duration
	LLMTimeout        time.Duration
	WebSearchTimeout  time.Duration
	ProviderTimeout   time.Duration
	RateLimitInterval time.Duration
	BreakerThreshold  int
	BreakerCooldown   time.Duration
	PromptCap         int
}

// Load reads configuration from environment variables. Required variables
// (DATABASE_URL, LLM_API_KEY) cause an error if missing; optional variables
// use sensible defaults.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("config.Load: LLM_API_KEY is required")
	}

	cfg := &Config{
		Port:        envInt("PORT", 8080),
		Environment: envStr("ENVIRONMENT", "development"),

		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),
		EmbeddingDims:    envInt("EMBEDDING_DIMENSIONS", 1536),
		RedisURL:         envStr("REDIS_URL", ""),

		LLMAPIKey:      apiKey,
		LLMBaseURL:     envStr("LLM_BASE_URL", ""),
		LLMModel:       envStr("LLM_MODEL", "gpt-4o-mini"),
		EmbeddingModel: envStr("EMBEDDING_MODEL", "text-embedding-3-small"),

		MemoryDBPath:  envStr("MEMORY_DB_PATH", "./data/memory.db"),
		MaxTurns:      envInt("MAX_SESSION_TURNS", 50),
		CharacterCard: envStr("CHARACTER_CARD_PATH", ""),
		DomainsFile:   envStr("DOMAINS_FILE", ""),

		MaxResponseTime:   envDuration("MAX_RESPONSE_TIME", 45*time.Second),
		LLMTimeout:        envDuration("LLM_TIMEOUT", 30*time.Second),
		WebSearchTimeout:  envDuration("WEB_SEARCH_TIMEOUT", 15*time.Second),
		ProviderTimeout:   envDuration("HTTP_REQUEST_TIMEOUT", 10*time.Second),
		RateLimitInterval: envDuration("RATE_LIMIT_INTERVAL", 2*time.Second),
		BreakerThreshold:  envInt("CIRCUIT_BREAKER_THRESHOLD", 5),
		BreakerCooldown:   envDuration("CIRCUIT_BREAKER_COOLDOWN", 300*time.Second),
		PromptCap:         envInt("PROMPT_SIZE_CAP", 16384),
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	// Accept plain seconds as well as Go duration syntax.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
