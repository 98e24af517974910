package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOptions() *ServerOptions {
	opts := NewServerOptions()
	opts.Embedding.APIKey = "key"
	opts.Embedding.FolderID = "folder"
	opts.Chat.APIKey = "key"
	opts.Chat.FolderID = "folder"
	return opts
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerOptions)
		wantErr string
	}{
		{
			name:   "valid defaults with credentials",
			mutate: func(*ServerOptions) {},
		},
		{
			name:    "missing store path",
			mutate:  func(o *ServerOptions) { o.Store.Path = "" },
			wantErr: "store.path",
		},
		{
			name:    "overlap not smaller than chunk size",
			mutate:  func(o *ServerOptions) { o.QA.ChunkOverlap = o.QA.ChunkSize },
			wantErr: "overlap",
		},
		{
			name:    "zero top-k",
			mutate:  func(o *ServerOptions) { o.QA.TopK = 0 },
			wantErr: "top-k",
		},
		{
			name:    "threshold above one",
			mutate:  func(o *ServerOptions) { o.QA.RelevanceThreshold = 1.5 },
			wantErr: "relevance-threshold",
		},
		{
			name:    "yandexgpt without folder id",
			mutate:  func(o *ServerOptions) { o.Embedding.FolderID = "" },
			wantErr: "embedding.folder-id",
		},
		{
			name: "gigachat without api key",
			mutate: func(o *ServerOptions) {
				o.Chat.Provider = "gigachat"
				o.Chat.APIKey = ""
			},
			wantErr: "chat.api-key",
		},
		{
			name:    "unknown provider",
			mutate:  func(o *ServerOptions) { o.Chat.Provider = "openai" },
			wantErr: "not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions()
			tt.mutate(opts)

			err := opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToConfigMap(t *testing.T) {
	p := &LLMProviderOptions{
		Provider:       "yandexgpt",
		APIKey:         "secret",
		FolderID:       "b1g...",
		Model:          "yandexgpt-lite",
		EmbedDimension: 256,
		Temperature:    0.3,
		MaxTokens:      2000,
		Timeout:        30 * time.Second,
		MaxRetries:     2,
	}

	m := p.ToConfigMap()
	assert.Equal(t, "secret", m["api_key"])
	assert.Equal(t, "b1g...", m["folder_id"])
	assert.Equal(t, "yandexgpt-lite", m["chat_model"])
	assert.Equal(t, "yandexgpt-lite", m["embed_model"])
	assert.Equal(t, 256, m["embed_dimension"])
	assert.Equal(t, 2000, m["max_tokens"])
	assert.Equal(t, 30*time.Second, m["timeout"])

	// Unset optional values must stay absent so provider defaults apply.
	empty := (&LLMProviderOptions{APIKey: "k"}).ToConfigMap()
	assert.NotContains(t, empty, "base_url")
	assert.NotContains(t, empty, "chat_model")
	assert.NotContains(t, empty, "temperature")
}

func TestConfigBuildsServiceConfig(t *testing.T) {
	opts := validOptions()
	opts.QA.Rerank = true
	opts.Cache.Enabled = true

	cfg, err := opts.Config()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "documents", cfg.Collection)
	assert.Equal(t, 500, cfg.ServiceConfig.IndexerConfig.Chunking.ChunkSize)
	assert.Equal(t, 100, cfg.ServiceConfig.IndexerConfig.Chunking.ChunkOverlap)
	assert.InDelta(t, 0.7, float64(cfg.ServiceConfig.RetrieverConfig.RelevanceThreshold), 1e-6)
	assert.True(t, cfg.ServiceConfig.RetrieverConfig.Rerank)
	require.NotNil(t, cfg.Cache)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
}

func TestConfigRejectsInvalidOptions(t *testing.T) {
	opts := validOptions()
	opts.QA.ChunkSize = 0

	_, err := opts.Config()
	require.Error(t, err)
}
