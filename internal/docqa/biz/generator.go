package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/imezh/RAG-agent/internal/docqa/store"
	"github.com/imezh/RAG-agent/pkg/llm"
)

// NoContextAnswer is returned when no relevant chunks were found. The LLM
// is not invoked in that case, so the behavior is deterministic and free.
const NoContextAnswer = "К сожалению, я не нашел релевантных документов для ответа на ваш вопрос."

// defaultSystemPrompt frames the assistant as a помощник over internal
// regulatory documents.
const defaultSystemPrompt = `Вы - помощник по работе с внутренними нормативными документами организации.
Ваша задача - отвечать на вопросы пользователей, используя только информацию из предоставленных документов.

Правила работы:
- Будьте точны и используйте только факты из документов
- Структурируйте ответы для лучшей читаемости
- Если в документах есть противоречия, укажите на них
- Если информации недостаточно, честно сообщите об этом
- При упоминании данных из таблиц или формул, представляйте их четко
- Всегда указывайте источники информации`

// promptTemplate lays out the retrieved context and the question.
// {{context}} and {{question}} are substituted before the call.
const promptTemplate = `На основе предоставленных документов ответьте на вопрос пользователя.

КОНТЕКСТ:
{{context}}

ВОПРОС: {{question}}

ИНСТРУКЦИИ:
1. Используйте только информацию из предоставленных документов
2. Если информации недостаточно для полного ответа, укажите это
3. Цитируйте источники, упоминая номера документов
4. Отвечайте четко и структурированно
5. Если в документах есть таблицы или формулы, используйте их в ответе

ОТВЕТ:`

// GeneratorConfig holds generator settings.
type GeneratorConfig struct {
	// SystemPrompt overrides the default system prompt when non-empty.
	SystemPrompt string
}

// Generator produces answers from retrieved context.
type Generator struct {
	chatProvider llm.ChatProvider
	config       *GeneratorConfig
}

// NewGenerator creates a generator instance.
func NewGenerator(chatProvider llm.ChatProvider, config *GeneratorConfig) *Generator {
	if config == nil {
		config = &GeneratorConfig{}
	}
	return &Generator{
		chatProvider: chatProvider,
		config:       config,
	}
}

// GenerateAnswer builds a context-grounded prompt from the retrieved chunks
// and asks the chat model. With no chunks it returns the canned no-context
// answer without calling the model at all.
func (g *Generator) GenerateAnswer(ctx context.Context, question string, results []store.SearchResult) (*llm.GenerateResponse, error) {
	if len(results) == 0 {
		logger.Infof("No relevant context for question, skipping LLM call")
		return &llm.GenerateResponse{
			Content:    NoContextAnswer,
			TokenUsage: nil,
		}, nil
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("context cancelled before generation: %w", ctx.Err())
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{context}}", buildContext(results))
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)

	systemPrompt := g.config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	logger.Info("Calling LLM to generate answer...")
	resp, err := g.chatProvider.Generate(ctx, prompt, systemPrompt)
	if err != nil {
		logger.Errorf("LLM generation failed: %v", err)
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	if resp.TokenUsage != nil {
		logger.Infof("LLM answer generated (length: %d, tokens: %d)",
			len(resp.Content), resp.TokenUsage.TotalTokens)
	} else {
		logger.Infof("LLM answer generated (length: %d)", len(resp.Content))
	}

	return resp, nil
}

// buildContext renders retrieved chunks as numbered documents with source
// attribution the model can cite.
func buildContext(results []store.SearchResult) string {
	var sb strings.Builder
	for i, result := range results {
		sb.WriteString(fmt.Sprintf("[Документ %d] (Источник: %s", i+1, result.DocumentName))
		if result.Page > 0 {
			sb.WriteString(fmt.Sprintf(", Страница: %d", result.Page))
		}
		sb.WriteString(")\n")
		sb.WriteString(result.Content)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
