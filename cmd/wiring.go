package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/ai"
	"github.com/spigell/sahara/internal/ai/gemini"
	"github.com/spigell/sahara/internal/cache"
	"github.com/spigell/sahara/internal/catalog"
	"github.com/spigell/sahara/internal/keyword"
	"github.com/spigell/sahara/internal/matching"
	"github.com/spigell/sahara/internal/metrics"
	"github.com/spigell/sahara/internal/secrets"
	"github.com/spigell/sahara/internal/session"
)

const (
	backendMemory = "memory"
	backendRedis  = "redis"
	backendSQLite = "sqlite"
)

// components is everything a command needs, built once from the config.
type components struct {
	catalog      *catalog.Catalog
	orchestrator *matching.Orchestrator
	recorder     *session.Recorder
	metrics      *metrics.Metrics
	redis        redis.UniversalClient
}

func buildComponents(ctx context.Context, config *Config, reg prometheus.Registerer, logger *zap.Logger) (*components, error) {
	c := &components{metrics: metrics.New(reg)}

	cat, err := catalog.LoadFile(config.Catalog.File)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	c.catalog = cat
	logger.Info("benefit catalog loaded", zap.Int("programs", cat.Len()))

	kwConfig, err := keyword.LoadConfigFile(config.Keywords.File)
	if err != nil {
		return nil, fmt.Errorf("loading keyword config: %w", err)
	}
	keywords, err := keyword.New(cat, kwConfig)
	if err != nil {
		return nil, fmt.Errorf("building keyword matcher: %w", err)
	}

	if usesRedis(config) {
		c.redis, err = newRedisClient(ctx, config.Redis)
		if err != nil {
			return nil, err
		}
	}

	resultCache, err := newCache(config, c.redis)
	if err != nil {
		c.Close()
		return nil, err
	}

	matcher, err := newAIMatcher(ctx, config.AI, cat, logger)
	if err != nil {
		// Keyword matching keeps the service useful without a model.
		logger.Warn("AI matching disabled, using keyword matching only", zap.Error(err))
		matcher = nil
	}

	deps := matching.Deps{
		Catalog:  cat,
		Keywords: keywords,
		Cache:    resultCache,
		Metrics:  c.metrics,
		Logger:   logger,
	}
	if matcher != nil {
		deps.AI = matcher
	}

	c.orchestrator, err = matching.New(deps, matching.Options{BatchDelay: config.Matching.BatchDelay})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("building orchestrator: %w", err)
	}

	store, err := newSessionStore(config, c.redis)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.recorder, err = session.NewRecorder(store, logger, c.metrics, session.Options{
		RecentLimit:  config.Sessions.RecentLimit,
		WriteTimeout: config.Sessions.WriteTimeout,
	})
	if err != nil {
		_ = store.Close()
		c.Close()
		return nil, fmt.Errorf("building session recorder: %w", err)
	}

	return c, nil
}

func (c *components) Close() error {
	var errs []error
	if c.recorder != nil {
		errs = append(errs, c.recorder.Close())
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	return errors.Join(errs...)
}

func usesRedis(config *Config) bool {
	return strings.EqualFold(config.Cache.Backend, backendRedis) ||
		strings.EqualFold(config.Sessions.Backend, backendRedis)
}

func newRedisClient(ctx context.Context, cfg *RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}

	return client, nil
}

func newCache(config *Config, client redis.UniversalClient) (cache.Cache, error) {
	switch strings.ToLower(config.Cache.Backend) {
	case "", backendMemory:
		return cache.NewMemory(config.Cache.TTL, config.Cache.MaxEntries), nil
	case backendRedis:
		return cache.NewRedis(client, config.Redis.Prefix+"match:", config.Cache.TTL)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", config.Cache.Backend)
	}
}

func newSessionStore(config *Config, client redis.UniversalClient) (session.Store, error) {
	switch strings.ToLower(config.Sessions.Backend) {
	case "", backendMemory:
		return session.NewMemoryStore(), nil
	case backendRedis:
		return session.NewRedisStore(client, config.Redis.Prefix+"session:")
	case backendSQLite:
		return session.NewSQLiteStore(config.Sessions.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported sessions backend: %s", config.Sessions.Backend)
	}
}

func newAIMatcher(ctx context.Context, cfg *AIConfig, cat *catalog.Catalog, logger *zap.Logger) (ai.Matcher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("ai matching is disabled in the configuration")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, SAHARA_AI_GEMINI_API_KEY or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, gemini.GeneratorOptions{
		Model:           cfg.Gemini.Model,
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		Timeout:         cfg.Gemini.Timeout,
	})
	if err != nil {
		return nil, err
	}

	minScore := cfg.MinScore
	if minScore < 0 {
		minScore = 0
	}

	return gemini.NewMatcher(generator, cat, logger, gemini.MatcherOptions{
		MaxLogLength: cfg.Gemini.MaxLogLength,
		MinScore:     minScore,
	})
}
