package yandexgpt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imezh/RAG-agent/pkg/llm"
	"github.com/imezh/RAG-agent/pkg/utils/json"
)

func newTestProvider(baseURL string) *Provider {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.APIKey = "test-key"
	cfg.FolderID = "test-folder"
	cfg.MaxRetries = 0
	return NewProviderWithConfig(cfg)
}

func TestNewProviderRequiresCredentials(t *testing.T) {
	_, err := NewProvider(map[string]any{"folder_id": "f"})
	assert.Error(t, err)

	_, err = NewProvider(map[string]any{"api_key": "k"})
	assert.Error(t, err)

	p, err := NewProvider(map[string]any{"api_key": "k", "folder_id": "f"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())
	assert.Equal(t, 256, p.Dimension())
}

func TestEmbedSingle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/textEmbedding", r.URL.Path)
		assert.Equal(t, "Api-Key test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "emb://test-folder/text-search-doc/latest", req.ModelURI)
		assert.Equal(t, "отпуск", req.Text)

		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3],"numTokens":"2","modelVersion":"1"}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	embedding, err := p.EmbedSingle(context.Background(), "отпуск")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embedding)
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	var call int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		if call == 1 {
			_, _ = w.Write([]byte(`{"embedding":[1,0]}`))
		} else {
			_, _ = w.Write([]byte(`{"embedding":[0,1]}`))
		}
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	embeddings, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{1, 0}, embeddings[0])
	assert.Equal(t, []float32{0, 1}, embeddings[1])
}

func TestEmbedErrorWrapsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.EmbedSingle(context.Background(), "text")
	assert.True(t, errors.Is(err, llm.ErrEmbedding))
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/completion", r.URL.Path)

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt://test-folder/yandexgpt-lite/latest", req.ModelURI)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.InDelta(t, 0.3, req.CompletionOptions.Temperature, 1e-9)

		_, _ = w.Write([]byte(`{"result":{"alternatives":[{"message":{"role":"assistant","text":"Ответ готов"},"status":"ALTERNATIVE_STATUS_FINAL"}],"usage":{"inputTextTokens":"10","completionTokens":"5","totalTokens":"15"}}}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	resp, err := p.Generate(context.Background(), "Вопрос", "Вы - помощник")
	require.NoError(t, err)
	assert.Equal(t, "Ответ готов", resp.Content)
	require.NotNil(t, resp.TokenUsage)
	assert.Equal(t, 15, resp.TokenUsage.TotalTokens)
}

func TestGenerateNoAlternatives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"alternatives":[]}}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Generate(context.Background(), "prompt", "")
	assert.True(t, errors.Is(err, llm.ErrInvocation))
}

func TestRegisteredInRegistry(t *testing.T) {
	assert.Contains(t, llm.ListProviders(), ProviderName)
}
