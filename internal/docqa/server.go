// Package docqa provides the document QA service implementation.
package docqa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/imezh/RAG-agent/internal/docqa/biz"
	"github.com/imezh/RAG-agent/internal/docqa/handler"
	"github.com/imezh/RAG-agent/internal/docqa/router"
	"github.com/imezh/RAG-agent/internal/docqa/store"
	"github.com/imezh/RAG-agent/pkg/llm"

	// Register LLM providers.
	_ "github.com/imezh/RAG-agent/pkg/llm/gigachat"
	_ "github.com/imezh/RAG-agent/pkg/llm/yandexgpt"
)

// Name is the name of the application.
const Name = "docqa"

// RedisConfig holds Redis connection settings for the query cache.
type RedisConfig struct {
	Addr         string
	Password     string
	Database     int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	Enabled   bool
	TTL       time.Duration
	KeyPrefix string
	Redis     *RedisConfig
}

// Config contains everything needed to assemble the QA service.
type Config struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	StorePath  string
	Collection string

	EmbeddingProvider string
	EmbeddingConfig   map[string]any
	ChatProvider      string
	ChatConfig        map[string]any

	ServiceConfig *biz.ServiceConfig
	Cache         *CacheConfig
}

// Server represents the QA HTTP server.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	closers         []func()
}

// NewService assembles the QA service from the configuration. The
// returned close function releases the vector store and the Redis
// connection when one was opened.
func (cfg *Config) NewService(ctx context.Context) (biz.Service, func(), error) {
	vectorStore, err := store.NewSQLiteStore(cfg.StorePath, cfg.Collection)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	closers := []func(){func() { _ = vectorStore.Close() }}
	logger.Infow("Vector store initialized", "path", cfg.StorePath, "collection", cfg.Collection)

	queryCache := cfg.newQueryCache(ctx, &closers)

	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingProvider, cfg.EmbeddingConfig)
	if err != nil {
		runClosers(closers)
		return nil, nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingProvider,
		"dimension", embedProvider.Dimension(),
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatProvider, cfg.ChatConfig)
	if err != nil {
		runClosers(closers)
		return nil, nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized", "provider", cfg.ChatProvider)

	service := biz.NewQAService(vectorStore, embedProvider, chatProvider, queryCache, cfg.ServiceConfig)
	logger.Infow("QA service initialized", "cache.enabled", cfg.Cache != nil && cfg.Cache.Enabled)

	return service, func() { runClosers(closers) }, nil
}

// newQueryCache connects to Redis when caching is enabled. A Redis that
// cannot be reached disables the cache instead of failing startup.
func (cfg *Config) newQueryCache(ctx context.Context, closers *[]func()) *biz.QueryCache {
	if cfg.Cache == nil || !cfg.Cache.Enabled {
		logger.Info("Query cache is disabled")
		return nil
	}
	if cfg.Cache.Redis == nil {
		logger.Warn("Query cache is enabled but no Redis configuration provided")
		return nil
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Cache.Redis.Addr,
		Password:     cfg.Cache.Redis.Password,
		DB:           cfg.Cache.Redis.Database,
		MaxRetries:   cfg.Cache.Redis.MaxRetries,
		PoolSize:     cfg.Cache.Redis.PoolSize,
		MinIdleConns: cfg.Cache.Redis.MinIdleConns,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, query cache will be disabled", "error", err.Error())
		_ = redisClient.Close()
		return nil
	}

	*closers = append(*closers, func() { _ = redisClient.Close() })
	logger.Infow("Redis query cache initialized",
		"addr", cfg.Cache.Redis.Addr,
		"ttl", cfg.Cache.TTL,
	)

	return biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
		Enabled:   true,
		TTL:       cfg.Cache.TTL,
		KeyPrefix: cfg.Cache.KeyPrefix,
	})
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	service, closeService, err := cfg.NewService(ctx)
	if err != nil {
		return nil, err
	}

	qaHandler := handler.NewQAHandler(service)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	router.Register(engine, qaHandler)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("QA service is ready")
	return &Server{
		httpServer:      httpServer,
		shutdownTimeout: cfg.ShutdownTimeout,
		closers:         []func(){closeService},
	}, nil
}

// Run starts the server and blocks until ctx is cancelled or the
// listener fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer func() { runClosers(s.closers) }()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func runClosers(closers []func()) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
