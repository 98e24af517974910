// Package gigachat provides the GigaChat LLM provider.
//
// The API requires a short-lived access token obtained through OAuth with
// the long-lived authorization key. The provider fetches and refreshes the
// token transparently.
//
// Usage:
//
//	import _ "github.com/imezh/RAG-agent/pkg/llm/gigachat"
//	import "github.com/imezh/RAG-agent/pkg/llm"
//
//	provider, err := llm.NewProvider("gigachat", map[string]any{
//	    "api_key": "your-authorization-key",
//	})
package gigachat

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imezh/RAG-agent/pkg/llm"
	"github.com/imezh/RAG-agent/pkg/utils/httpclient"
	"github.com/imezh/RAG-agent/pkg/utils/json"
)

// ProviderName identifies the GigaChat provider.
const ProviderName = "gigachat"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config holds GigaChat provider settings.
type Config struct {
	// BaseURL is the GigaChat API base address.
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// AuthURL is the OAuth token endpoint.
	AuthURL string `json:"auth_url" mapstructure:"auth_url"`

	// APIKey is the long-lived authorization key exchanged for access tokens.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// Scope selects the API tier, GIGACHAT_API_PERS for personal accounts.
	Scope string `json:"scope" mapstructure:"scope"`

	// ChatModel is the completion model.
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// EmbedModel is the embeddings model.
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// EmbedDimension is the vector length EmbedModel produces.
	EmbedDimension int `json:"embed_dimension" mapstructure:"embed_dimension"`

	// Temperature controls sampling randomness.
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens caps generated tokens per completion.
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`

	// Timeout bounds each API request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries bounds retries on transport and server errors.
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// InsecureSkipVerify disables TLS certificate verification. The API
	// endpoints serve certificates from the Russian Trusted Root CA, which
	// most systems do not carry.
	InsecureSkipVerify bool `json:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://gigachat.devices.sberbank.ru/api/v1",
		AuthURL:            "https://ngw.devices.sberbank.ru:9443/api/v2/oauth",
		Scope:              "GIGACHAT_API_PERS",
		ChatModel:          "GigaChat",
		EmbedModel:         "Embeddings",
		EmbedDimension:     1024,
		Temperature:        0.3,
		MaxTokens:          2000,
		Timeout:            60 * time.Second,
		MaxRetries:         3,
		InsecureSkipVerify: true,
	}
}

// Provider implements llm.Provider against the GigaChat API.
type Provider struct {
	config *Config
	client *httpclient.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewProvider creates a GigaChat provider from a config map.
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["auth_url"].(string); ok && v != "" {
		cfg.AuthURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["scope"].(string); ok && v != "" {
		cfg.Scope = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["embed_dimension"].(int); ok && v > 0 {
		cfg.EmbedDimension = v
	}
	if v, ok := configMap["temperature"].(float64); ok {
		cfg.Temperature = v
	}
	if v, ok := configMap["max_tokens"].(int); ok && v > 0 {
		cfg.MaxTokens = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v > 0 {
		cfg.MaxRetries = v
	}
	if v, ok := configMap["insecure_skip_verify"].(bool); ok {
		cfg.InsecureSkipVerify = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gigachat: api_key is required")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig creates a GigaChat provider from a structured config.
func NewProviderWithConfig(cfg *Config) *Provider {
	var client *httpclient.Client
	if cfg.InsecureSkipVerify {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		client = httpclient.NewClientWithTransport(cfg.Timeout, cfg.MaxRetries, transport)
	} else {
		client = httpclient.NewClient(cfg.Timeout, cfg.MaxRetries)
	}
	return &Provider{
		config: cfg,
		client: client,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return ProviderName
}

// Dimension returns the embedding vector length.
func (p *Provider) Dimension() int {
	return p.config.EmbedDimension
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	// ExpiresAt is Unix milliseconds.
	ExpiresAt int64 `json:"expires_at"`
}

// token returns a valid access token, fetching a new one when the cached
// token is missing or about to expire.
func (p *Provider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.expiresAt.Add(-time.Minute)) {
		return p.accessToken, nil
	}
	return p.refreshTokenLocked(ctx)
}

// invalidateAndRefresh drops the cached token and fetches a fresh one.
// Called when the API rejects a token before its reported expiry.
func (p *Provider) invalidateAndRefresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessToken = ""
	return p.refreshTokenLocked(ctx)
}

func (p *Provider) refreshTokenLocked(ctx context.Context) (string, error) {
	form := url.Values{"scope": {p.config.Scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.AuthURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	req.Header.Set("RqUID", uuid.NewString())

	var tok tokenResponse
	if err := p.client.DoJSON(req, &tok); err != nil {
		return "", fmt.Errorf("fetching access token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("empty access token in auth response")
	}

	p.accessToken = tok.AccessToken
	p.expiresAt = time.UnixMilli(tok.ExpiresAt)
	return p.accessToken, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed generates embeddings for a batch of texts.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{
		Model: p.config.EmbedModel,
		Input: texts,
	}

	var embedResp embeddingResponse
	if err := p.doAuthorizedJSON(ctx, p.config.BaseURL+"/embeddings", reqBody, &embedResp); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrEmbedding, err)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embedResp.Data {
		if data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}
	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("%w: missing embedding for input %d", llm.ErrEmbedding, i)
		}
	}

	return embeddings, nil
}

// EmbedSingle generates a vector embedding for one text.
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", llm.ErrEmbedding)
	}
	return embeddings[0], nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat runs a multi-turn conversation.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	resp, err := p.complete(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Generate produces text for a single prompt with an optional system prompt.
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (*llm.GenerateResponse, error) {
	messages := []llm.Message{}
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	return p.complete(ctx, messages)
}

func (p *Provider) complete(ctx context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	chatMessages := make([]chatMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	reqBody := chatRequest{
		Model:       p.config.ChatModel,
		Messages:    chatMessages,
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}

	var chatResp chatResponse
	if err := p.doAuthorizedJSON(ctx, p.config.BaseURL+"/chat/completions", reqBody, &chatResp); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrInvocation, err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", llm.ErrInvocation)
	}

	return &llm.GenerateResponse{
		Content: chatResp.Choices[0].Message.Content,
		TokenUsage: &llm.TokenUsage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// doAuthorizedJSON posts a JSON body with a bearer token, refreshing the
// token and replaying the request once if the API answers 401.
func (p *Provider) doAuthorizedJSON(ctx context.Context, endpoint string, reqBody any, v any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	err = p.postJSON(ctx, endpoint, body, token, v)
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		token, err = p.invalidateAndRefresh(ctx)
		if err != nil {
			return err
		}
		return p.postJSON(ctx, endpoint, body, token, v)
	}
	return err
}

func (p *Provider) postJSON(ctx context.Context, endpoint string, body []byte, token string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return p.client.DoJSON(req, v)
}

var _ llm.Provider = (*Provider)(nil)
