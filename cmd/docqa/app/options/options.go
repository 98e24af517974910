// Package options contains flags and options for initializing the QA server.
package options

import (
	"fmt"
	"time"

	"github.com/kart-io/logger"
	logopt "github.com/kart-io/logger/option"
	"github.com/spf13/pflag"

	"github.com/imezh/RAG-agent/internal/chunker"
	"github.com/imezh/RAG-agent/internal/docqa"
	"github.com/imezh/RAG-agent/internal/docqa/biz"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTP contains HTTP server configuration.
	HTTP *HTTPOptions `json:"http" mapstructure:"http"`

	// Log contains logger configuration.
	Log *LogOptions `json:"log" mapstructure:"log"`

	// Store contains vector store configuration.
	Store *StoreOptions `json:"store" mapstructure:"store"`

	// Embedding contains embedding provider configuration.
	Embedding *LLMProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration.
	Chat *LLMProviderOptions `json:"chat" mapstructure:"chat"`

	// QA contains pipeline configuration.
	QA *QAOptions `json:"qa" mapstructure:"qa"`

	// Cache contains query cache configuration.
	Cache *CacheOptions `json:"cache" mapstructure:"cache"`
}

// HTTPOptions contains HTTP server configuration.
type HTTPOptions struct {
	// Addr is the listen address.
	Addr string `json:"addr" mapstructure:"addr"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// LogOptions contains logger configuration.
type LogOptions struct {
	// Level is the minimum log level (DEBUG, INFO, WARN, ERROR).
	Level string `json:"level" mapstructure:"level"`

	// Format is the output format (json or console).
	Format string `json:"format" mapstructure:"format"`
}

// Init configures the global logger.
func (o *LogOptions) Init(serviceName string) error {
	l, err := logger.New(&logopt.LogOption{
		Engine:      "slog",
		Level:       o.Level,
		Format:      o.Format,
		OutputPaths: []string{"stdout"},
		InitialFields: map[string]interface{}{
			"service.name": serviceName,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(l)
	return nil
}

// StoreOptions contains vector store configuration.
type StoreOptions struct {
	// Path is the SQLite database file path.
	Path string `json:"path" mapstructure:"path"`

	// Collection is the logical collection name inside the store.
	Collection string `json:"collection" mapstructure:"collection"`
}

// LLMProviderOptions defines an LLM provider configuration.
type LLMProviderOptions struct {
	// Provider is the provider name (yandexgpt, gigachat).
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL overrides the provider API base URL when non-empty.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey is the provider API key.
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// FolderID is the Yandex Cloud folder ID (yandexgpt only).
	FolderID string `json:"folder-id" mapstructure:"folder-id"`

	// Scope is the OAuth scope (gigachat only).
	Scope string `json:"scope" mapstructure:"scope"`

	// Model is the model name.
	Model string `json:"model" mapstructure:"model"`

	// EmbedDimension is the embedding vector dimension.
	EmbedDimension int `json:"embed-dimension" mapstructure:"embed-dimension"`

	// Temperature is the sampling temperature for chat completion.
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens is the completion token limit.
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the retry count for transient failures.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

// ToConfigMap converts the options into a provider factory config map.
func (o *LLMProviderOptions) ToConfigMap() map[string]any {
	m := map[string]any{
		"api_key":     o.APIKey,
		"max_retries": o.MaxRetries,
	}
	if o.BaseURL != "" {
		m["base_url"] = o.BaseURL
	}
	if o.FolderID != "" {
		m["folder_id"] = o.FolderID
	}
	if o.Scope != "" {
		m["scope"] = o.Scope
	}
	if o.Model != "" {
		m["chat_model"] = o.Model
		m["embed_model"] = o.Model
	}
	if o.EmbedDimension > 0 {
		m["embed_dimension"] = o.EmbedDimension
	}
	if o.Temperature > 0 {
		m["temperature"] = o.Temperature
	}
	if o.MaxTokens > 0 {
		m["max_tokens"] = o.MaxTokens
	}
	if o.Timeout > 0 {
		m["timeout"] = o.Timeout
	}
	return m
}

// QAOptions contains pipeline configuration.
type QAOptions struct {
	// ChunkSize is the maximum chunk length in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between adjacent chunks in runes.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// EmbedBatchSize is the number of chunks embedded per API call.
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// Workers is the number of files indexed concurrently.
	Workers int `json:"workers" mapstructure:"workers"`

	// TopK is the number of candidates fetched from the store.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// RelevanceThreshold drops candidates below this similarity.
	RelevanceThreshold float64 `json:"relevance-threshold" mapstructure:"relevance-threshold"`

	// Rerank enables lexical reranking of retrieved chunks.
	Rerank bool `json:"rerank" mapstructure:"rerank"`

	// SystemPrompt overrides the default system prompt when non-empty.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`
}

// CacheOptions contains query cache configuration.
type CacheOptions struct {
	// Enabled turns the Redis query cache on.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL is the cache entry lifetime.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix is the cache key prefix.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis contains Redis connection configuration.
	Redis *RedisOptions `json:"redis" mapstructure:"redis"`
}

// RedisOptions contains Redis connection configuration.
type RedisOptions struct {
	// Addr is the host:port of the Redis server.
	Addr string `json:"addr" mapstructure:"addr"`

	// Password is the Redis password.
	Password string `json:"password" mapstructure:"password"`

	// Database is the Redis database number.
	Database int `json:"database" mapstructure:"database"`

	// MaxRetries is the command retry count.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// PoolSize is the connection pool size.
	PoolSize int `json:"pool-size" mapstructure:"pool-size"`

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int `json:"min-idle-conns" mapstructure:"min-idle-conns"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTP: &HTTPOptions{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: &LogOptions{
			Level:  "INFO",
			Format: "json",
		},
		Store: &StoreOptions{
			Path:       "data/docqa.db",
			Collection: "documents",
		},
		Embedding: &LLMProviderOptions{
			Provider:   "yandexgpt",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
		},
		Chat: &LLMProviderOptions{
			Provider:    "yandexgpt",
			Temperature: 0.3,
			MaxTokens:   2000,
			Timeout:     60 * time.Second,
			MaxRetries:  3,
		},
		QA: &QAOptions{
			ChunkSize:          500,
			ChunkOverlap:       100,
			EmbedBatchSize:     32,
			Workers:            4,
			TopK:               5,
			RelevanceThreshold: 0.7,
		},
		Cache: &CacheOptions{
			Enabled:   false,
			TTL:       time.Hour,
			KeyPrefix: "docqa:query:",
			Redis: &RedisOptions{
				Addr:         "localhost:6379",
				MaxRetries:   3,
				PoolSize:     10,
				MinIdleConns: 5,
			},
		},
	}
}

// AddFlags adds flags to the flagset.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.HTTP.Addr, "http.addr", o.HTTP.Addr, "HTTP listen address")
	fs.DurationVar(&o.HTTP.ReadTimeout, "http.read-timeout", o.HTTP.ReadTimeout, "HTTP read timeout")
	fs.DurationVar(&o.HTTP.WriteTimeout, "http.write-timeout", o.HTTP.WriteTimeout, "HTTP write timeout")
	fs.DurationVar(&o.HTTP.ShutdownTimeout, "http.shutdown-timeout", o.HTTP.ShutdownTimeout, "Graceful shutdown timeout")

	fs.StringVar(&o.Log.Level, "log.level", o.Log.Level, "Log level (DEBUG, INFO, WARN, ERROR)")
	fs.StringVar(&o.Log.Format, "log.format", o.Log.Format, "Log format (json, console)")

	fs.StringVar(&o.Store.Path, "store.path", o.Store.Path, "SQLite database file path")
	fs.StringVar(&o.Store.Collection, "store.collection", o.Store.Collection, "Vector store collection name")

	o.addProviderFlags(fs, o.Embedding, "embedding")
	o.addProviderFlags(fs, o.Chat, "chat")

	fs.IntVar(&o.QA.ChunkSize, "qa.chunk-size", o.QA.ChunkSize, "Chunk size in runes")
	fs.IntVar(&o.QA.ChunkOverlap, "qa.chunk-overlap", o.QA.ChunkOverlap, "Chunk overlap in runes")
	fs.IntVar(&o.QA.EmbedBatchSize, "qa.embed-batch-size", o.QA.EmbedBatchSize, "Chunks embedded per API call")
	fs.IntVar(&o.QA.Workers, "qa.workers", o.QA.Workers, "Concurrent indexing workers")
	fs.IntVar(&o.QA.TopK, "qa.top-k", o.QA.TopK, "Number of results from similarity search")
	fs.Float64Var(&o.QA.RelevanceThreshold, "qa.relevance-threshold", o.QA.RelevanceThreshold, "Minimum similarity for retrieved chunks")
	fs.BoolVar(&o.QA.Rerank, "qa.rerank", o.QA.Rerank, "Enable lexical reranking")
	fs.StringVar(&o.QA.SystemPrompt, "qa.system-prompt", o.QA.SystemPrompt, "System prompt override")

	fs.BoolVar(&o.Cache.Enabled, "cache.enabled", o.Cache.Enabled, "Enable query result cache")
	fs.DurationVar(&o.Cache.TTL, "cache.ttl", o.Cache.TTL, "Cache TTL duration")
	fs.StringVar(&o.Cache.KeyPrefix, "cache.key-prefix", o.Cache.KeyPrefix, "Cache key prefix")
	fs.StringVar(&o.Cache.Redis.Addr, "cache.redis.addr", o.Cache.Redis.Addr, "Redis address (host:port)")
	fs.StringVar(&o.Cache.Redis.Password, "cache.redis.password", o.Cache.Redis.Password, "Redis password")
	fs.IntVar(&o.Cache.Redis.Database, "cache.redis.database", o.Cache.Redis.Database, "Redis database number")
	fs.IntVar(&o.Cache.Redis.MaxRetries, "cache.redis.max-retries", o.Cache.Redis.MaxRetries, "Redis max retries")
	fs.IntVar(&o.Cache.Redis.PoolSize, "cache.redis.pool-size", o.Cache.Redis.PoolSize, "Redis connection pool size")
	fs.IntVar(&o.Cache.Redis.MinIdleConns, "cache.redis.min-idle-conns", o.Cache.Redis.MinIdleConns, "Redis minimum idle connections")
}

func (o *ServerOptions) addProviderFlags(fs *pflag.FlagSet, p *LLMProviderOptions, prefix string) {
	fs.StringVar(&p.Provider, prefix+".provider", p.Provider, "Provider name (yandexgpt, gigachat)")
	fs.StringVar(&p.BaseURL, prefix+".base-url", p.BaseURL, "Provider API base URL")
	fs.StringVar(&p.APIKey, prefix+".api-key", p.APIKey, "Provider API key")
	fs.StringVar(&p.FolderID, prefix+".folder-id", p.FolderID, "Yandex Cloud folder ID")
	fs.StringVar(&p.Scope, prefix+".scope", p.Scope, "GigaChat OAuth scope")
	fs.StringVar(&p.Model, prefix+".model", p.Model, "Model name")
	fs.IntVar(&p.EmbedDimension, prefix+".embed-dimension", p.EmbedDimension, "Embedding vector dimension")
	fs.Float64Var(&p.Temperature, prefix+".temperature", p.Temperature, "Sampling temperature")
	fs.IntVar(&p.MaxTokens, prefix+".max-tokens", p.MaxTokens, "Completion token limit")
	fs.DurationVar(&p.Timeout, prefix+".timeout", p.Timeout, "Request timeout")
	fs.IntVar(&p.MaxRetries, prefix+".max-retries", p.MaxRetries, "Max retries")
}

// Validate validates the options.
func (o *ServerOptions) Validate() error {
	if o.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if o.Store.Collection == "" {
		return fmt.Errorf("store.collection is required")
	}
	chunkingCfg := o.chunkingConfig()
	if err := chunkingCfg.Validate(); err != nil {
		return fmt.Errorf("qa: %w", err)
	}
	if o.QA.TopK <= 0 {
		return fmt.Errorf("qa.top-k must be positive")
	}
	if o.QA.RelevanceThreshold < 0 || o.QA.RelevanceThreshold > 1 {
		return fmt.Errorf("qa.relevance-threshold must be in [0, 1]")
	}
	if err := o.validateProvider(o.Embedding, "embedding"); err != nil {
		return err
	}
	return o.validateProvider(o.Chat, "chat")
}

func (o *ServerOptions) validateProvider(p *LLMProviderOptions, prefix string) error {
	switch p.Provider {
	case "yandexgpt":
		if p.APIKey == "" {
			return fmt.Errorf("%s.api-key is required for yandexgpt provider", prefix)
		}
		if p.FolderID == "" {
			return fmt.Errorf("%s.folder-id is required for yandexgpt provider", prefix)
		}
	case "gigachat":
		if p.APIKey == "" {
			return fmt.Errorf("%s.api-key is required for gigachat provider", prefix)
		}
	case "":
		return fmt.Errorf("%s.provider is required", prefix)
	default:
		return fmt.Errorf("%s.provider %q is not supported", prefix, p.Provider)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be positive", prefix)
	}
	return nil
}

func (o *ServerOptions) chunkingConfig() chunker.Config {
	return chunker.Config{
		ChunkSize:    o.QA.ChunkSize,
		ChunkOverlap: o.QA.ChunkOverlap,
	}
}

// Config builds the service configuration from the validated options.
func (o *ServerOptions) Config() (*docqa.Config, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	cfg := &docqa.Config{
		HTTPAddr:        o.HTTP.Addr,
		ReadTimeout:     o.HTTP.ReadTimeout,
		WriteTimeout:    o.HTTP.WriteTimeout,
		ShutdownTimeout: o.HTTP.ShutdownTimeout,

		StorePath:  o.Store.Path,
		Collection: o.Store.Collection,

		EmbeddingProvider: o.Embedding.Provider,
		EmbeddingConfig:   o.Embedding.ToConfigMap(),
		ChatProvider:      o.Chat.Provider,
		ChatConfig:        o.Chat.ToConfigMap(),

		ServiceConfig: &biz.ServiceConfig{
			IndexerConfig: &biz.IndexerConfig{
				Chunking:       o.chunkingConfig(),
				EmbedBatchSize: o.QA.EmbedBatchSize,
				Workers:        o.QA.Workers,
			},
			RetrieverConfig: &biz.RetrieverConfig{
				TopK:               o.QA.TopK,
				RelevanceThreshold: float32(o.QA.RelevanceThreshold),
				Rerank:             o.QA.Rerank,
			},
			GeneratorConfig: &biz.GeneratorConfig{
				SystemPrompt: o.QA.SystemPrompt,
			},
		},
	}

	if o.Cache.Enabled {
		cfg.Cache = &docqa.CacheConfig{
			Enabled:   true,
			TTL:       o.Cache.TTL,
			KeyPrefix: o.Cache.KeyPrefix,
			Redis: &docqa.RedisConfig{
				Addr:         o.Cache.Redis.Addr,
				Password:     o.Cache.Redis.Password,
				Database:     o.Cache.Redis.Database,
				MaxRetries:   o.Cache.Redis.MaxRetries,
				PoolSize:     o.Cache.Redis.PoolSize,
				MinIdleConns: o.Cache.Redis.MinIdleConns,
			},
		}
	}

	return cfg, nil
}
