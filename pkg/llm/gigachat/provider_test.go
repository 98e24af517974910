package gigachat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imezh/RAG-agent/pkg/llm"
	"github.com/imezh/RAG-agent/pkg/utils/json"
)

// testEnv wires an auth server and an API server for provider tests.
type testEnv struct {
	provider  *Provider
	authCalls *int32
}

func newTestEnv(t *testing.T, apiHandler http.HandlerFunc) *testEnv {
	t.Helper()

	var authCalls int32
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&authCalls, 1)
		assert.Equal(t, "Bearer auth-key", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("RqUID"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "GIGACHAT_API_PERS", r.PostForm.Get("scope"))

		_, _ = w.Write([]byte(`{"access_token":"token-1","expires_at":9999999999999}`))
	}))
	t.Cleanup(authSrv.Close)

	apiSrv := httptest.NewServer(apiHandler)
	t.Cleanup(apiSrv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = apiSrv.URL
	cfg.AuthURL = authSrv.URL
	cfg.APIKey = "auth-key"
	cfg.MaxRetries = 0
	cfg.InsecureSkipVerify = false

	return &testEnv{provider: NewProviderWithConfig(cfg), authCalls: &authCalls}
}

func TestNewProviderRequiresKey(t *testing.T) {
	_, err := NewProvider(map[string]any{})
	assert.Error(t, err)

	p, err := NewProvider(map[string]any{"api_key": "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())
	assert.Equal(t, 1024, p.Dimension())
}

func TestGenerate(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "GigaChat", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Ответ"},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`))
	})

	resp, err := env.provider.Generate(context.Background(), "Вопрос", "Вы - помощник")
	require.NoError(t, err)
	assert.Equal(t, "Ответ", resp.Content)
	assert.Equal(t, 10, resp.TokenUsage.TotalTokens)
	assert.EqualValues(t, 1, atomic.LoadInt32(env.authCalls))
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := env.provider.Generate(ctx, "prompt", "")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(env.authCalls))
}

func TestTokenRefreshedOnUnauthorized(t *testing.T) {
	var apiCalls int32
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&apiCalls, 1) == 1 {
			http.Error(w, "token expired", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"после обновления"}}]}`))
	})

	resp, err := env.provider.Generate(context.Background(), "prompt", "")
	require.NoError(t, err)
	assert.Equal(t, "после обновления", resp.Content)
	assert.EqualValues(t, 2, atomic.LoadInt32(&apiCalls))
	assert.EqualValues(t, 2, atomic.LoadInt32(env.authCalls))
}

func TestEmbed(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Embeddings", req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)

		// Out-of-order indices are re-sorted by the provider.
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0,1],"index":1},{"embedding":[1,0],"index":0}]}`))
	})

	embeddings, err := env.provider.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{1, 0}, embeddings[0])
	assert.Equal(t, []float32{0, 1}, embeddings[1])
}

func TestRegisteredInRegistry(t *testing.T) {
	assert.Contains(t, llm.ListProviders(), ProviderName)
}
