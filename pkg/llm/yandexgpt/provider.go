// Package yandexgpt provides the YandexGPT LLM provider.
//
// Usage:
//
//	import _ "github.com/imezh/RAG-agent/pkg/llm/yandexgpt"
//	import "github.com/imezh/RAG-agent/pkg/llm"
//
//	provider, err := llm.NewProvider("yandexgpt", map[string]any{
//	    "api_key":   "your-api-key",
//	    "folder_id": "your-folder-id",
//	})
package yandexgpt

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/imezh/RAG-agent/pkg/llm"
	"github.com/imezh/RAG-agent/pkg/utils/httpclient"
	"github.com/imezh/RAG-agent/pkg/utils/json"
)

// ProviderName identifies the YandexGPT provider.
const ProviderName = "yandexgpt"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config holds YandexGPT provider settings.
type Config struct {
	// BaseURL is the Foundation Models API base address.
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey is the Yandex Cloud API key.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// FolderID is the Yandex Cloud folder the models are billed to.
	FolderID string `json:"folder_id" mapstructure:"folder_id"`

	// ChatModel is the completion model, yandexgpt-lite or yandexgpt.
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// EmbedModel is the text embedding model.
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
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://llm.api.cloud.yandex.net/foundationModels/v1",
		ChatModel:      "yandexgpt-lite",
		EmbedModel:     "text-search-doc",
		EmbedDimension: 256,
		Temperature:    0.3,
		MaxTokens:      2000,
		Timeout:        60 * time.Second,
		MaxRetries:     3,
	}
}

// Provider implements llm.Provider against the YandexGPT API.
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider creates a YandexGPT provider from a config map.
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["folder_id"].(string); ok && v != "" {
		cfg.FolderID = v
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

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("yandexgpt: api_key is required")
	}
	if cfg.FolderID == "" {
		return nil, fmt.Errorf("yandexgpt: folder_id is required")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig creates a YandexGPT provider from a structured config.
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
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

type embeddingRequest struct {
	ModelURI string `json:"modelUri"`
	Text     string `json:"text"`
}

type embeddingResponse struct {
	Embedding    []float32 `json:"embedding"`
	NumTokens    string    `json:"numTokens"`
	ModelVersion string    `json:"modelVersion"`
}

// Embed generates embeddings. The API embeds one text per request, so the
// batch is issued sequentially in input order.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := p.EmbedSingle(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// EmbedSingle generates a vector embedding for one text.
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	reqBody := embeddingRequest{
		ModelURI: fmt.Sprintf("emb://%s/%s/latest", p.config.FolderID, p.config.EmbedModel),
		Text:     text,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", llm.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/textEmbedding", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", llm.ErrEmbedding, err)
	}
	p.setHeaders(req)

	var embedResp embeddingResponse
	if err := p.client.DoJSON(req, &embedResp); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrEmbedding, err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding in response", llm.ErrEmbedding)
	}

	return embedResp.Embedding, nil
}

type completionRequest struct {
	ModelURI          string              `json:"modelUri"`
	CompletionOptions completionOptions   `json:"completionOptions"`
	Messages          []completionMessage `json:"messages"`
}

type completionOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type completionMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message completionMessage `json:"message"`
			Status  string            `json:"status"`
		} `json:"alternatives"`
		Usage struct {
			InputTextTokens  string `json:"inputTextTokens"`
			CompletionTokens string `json:"completionTokens"`
			TotalTokens      string `json:"totalTokens"`
		} `json:"usage"`
		ModelVersion string `json:"modelVersion"`
	} `json:"result"`
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
	completionMessages := make([]completionMessage, len(messages))
	for i, msg := range messages {
		completionMessages[i] = completionMessage{
			Role: string(msg.Role),
			Text: msg.Content,
		}
	}

	reqBody := completionRequest{
		ModelURI: fmt.Sprintf("gpt://%s/%s/latest", p.config.FolderID, p.config.ChatModel),
		CompletionOptions: completionOptions{
			Temperature: p.config.Temperature,
			MaxTokens:   p.config.MaxTokens,
		},
		Messages: completionMessages,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", llm.ErrInvocation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", llm.ErrInvocation, err)
	}
	p.setHeaders(req)

	var completionResp completionResponse
	if err := p.client.DoJSON(req, &completionResp); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrInvocation, err)
	}

	if len(completionResp.Result.Alternatives) == 0 {
		return nil, fmt.Errorf("%w: no alternatives in response", llm.ErrInvocation)
	}

	return &llm.GenerateResponse{
		Content: completionResp.Result.Alternatives[0].Message.Text,
		TokenUsage: &llm.TokenUsage{
			PromptTokens:     atoiSafe(completionResp.Result.Usage.InputTextTokens),
			CompletionTokens: atoiSafe(completionResp.Result.Usage.CompletionTokens),
			TotalTokens:      atoiSafe(completionResp.Result.Usage.TotalTokens),
		},
	}, nil
}

// setHeaders sets auth and content headers.
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+p.config.APIKey)
	req.Header.Set("x-folder-id", p.config.FolderID)
}

// atoiSafe parses the string-typed token counts the API returns, zero on
// anything unparsable.
func atoiSafe(s string) int {
	var n int
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}

var _ llm.Provider = (*Provider)(nil)
