package biz

import (
	"context"
	"time"

	"github.com/imezh/RAG-agent/internal/docqa/metrics"
	"github.com/imezh/RAG-agent/internal/docqa/store"
	"github.com/imezh/RAG-agent/internal/model"
	"github.com/imezh/RAG-agent/pkg/llm"
)

// previewRunes caps how much chunk text a source carries back to the caller.
const previewRunes = 200

// Service defines the document QA service.
type Service interface {
	// IndexDirectory indexes all supported documents under dir.
	IndexDirectory(ctx context.Context, dir string, clear bool) (*model.IndexReport, error)
	// Query answers a question from the indexed documents.
	Query(ctx context.Context, question string) (*model.QueryResult, error)
	// Stats returns knowledge base statistics.
	Stats(ctx context.Context) (map[string]any, error)
}

// QAService composes the Indexer, Retriever and Generator into the full
// question answering pipeline.
type QAService struct {
	indexer       *Indexer
	retriever     *Retriever
	generator     *Generator
	cache         *QueryCache
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	metrics       *metrics.QAMetrics
}

// ServiceConfig bundles per-component configuration.
type ServiceConfig struct {
	IndexerConfig   *IndexerConfig
	RetrieverConfig *RetrieverConfig
	GeneratorConfig *GeneratorConfig
}

// NewQAService creates a QA service instance.
func NewQAService(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	cache *QueryCache,
	config *ServiceConfig,
) *QAService {
	return &QAService{
		indexer:       NewIndexer(vectorStore, embedProvider, config.IndexerConfig),
		retriever:     NewRetriever(vectorStore, embedProvider, config.RetrieverConfig),
		generator:     NewGenerator(chatProvider, config.GeneratorConfig),
		cache:         cache,
		store:         vectorStore,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		metrics:       metrics.GetQAMetrics(),
	}
}

// IndexDirectory indexes all supported documents under dir.
func (s *QAService) IndexDirectory(ctx context.Context, dir string, clear bool) (*model.IndexReport, error) {
	report, err := s.indexer.IndexDirectory(ctx, dir, clear)
	if err != nil {
		s.metrics.RecordIndexing(0, 0, err)
		return nil, err
	}
	s.metrics.RecordIndexing(report.FilesIndexed, report.ChunksAdded, nil)
	return report, nil
}

// Query answers a question. Results are served from the cache when
// possible; otherwise the question is embedded, relevant chunks retrieved,
// and an answer generated and cached.
func (s *QAService) Query(ctx context.Context, question string) (*model.QueryResult, error) {
	var queryErr error
	defer func() {
		if queryErr != nil {
			s.metrics.RecordQuery(false, queryErr)
		}
	}()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, question)
		if err == nil && cached != nil {
			s.metrics.RecordQuery(true, nil)
			return cached, nil
		}
	}

	retrievalStart := time.Now()
	retrieval, err := s.retriever.Retrieve(ctx, question)
	s.metrics.RecordRetrieval(time.Since(retrievalStart), err)
	if err != nil {
		queryErr = err
		return nil, err
	}

	var resp *llm.GenerateResponse
	if len(retrieval.Results) == 0 {
		s.metrics.RecordNoContext()
		resp, err = s.generator.GenerateAnswer(ctx, question, nil)
	} else {
		llmStart := time.Now()
		resp, err = s.generator.GenerateAnswer(ctx, question, retrieval.Results)

		promptTokens, completionTokens := 0, 0
		if resp != nil && resp.TokenUsage != nil {
			promptTokens = resp.TokenUsage.PromptTokens
			completionTokens = resp.TokenUsage.CompletionTokens
		}
		s.metrics.RecordLLMCall(time.Since(llmStart), promptTokens, completionTokens, err)
	}
	if err != nil {
		queryErr = err
		return nil, err
	}

	sources := collectSources(retrieval.Results)

	queryResult := &model.QueryResult{
		Answer:     resp.Content,
		Sources:    sources,
		NumSources: len(sources),
	}

	if s.cache != nil {
		// Cache write failures never fail the query.
		_ = s.cache.Set(ctx, question, queryResult)
	}

	s.metrics.RecordQuery(false, nil)
	return queryResult, nil
}

// Stats returns knowledge base statistics.
func (s *QAService) Stats(ctx context.Context) (map[string]any, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := map[string]any{
		"collection":      s.store.Collection(),
		"chunk_count":     count,
		"embed_provider":  s.embedProvider.Name(),
		"embed_dimension": s.embedProvider.Dimension(),
		"chat_provider":   s.chatProvider.Name(),
	}

	if s.cache != nil {
		if cacheStats, err := s.cache.GetStats(ctx); err == nil {
			stats["cache"] = cacheStats
		}
	}

	stats["metrics"] = s.metrics.Stats()
	return stats, nil
}

// collectSources deduplicates the retrieved chunks into one source per
// document, in first-appearance order. Each source carries the preview
// and the highest score among that document's chunks.
func collectSources(results []store.SearchResult) []model.Source {
	sources := make([]model.Source, 0, len(results))
	byDocument := make(map[string]int, len(results))

	for _, result := range results {
		idx, seen := byDocument[result.DocumentID]
		if !seen {
			byDocument[result.DocumentID] = len(sources)
			sources = append(sources, model.Source{
				DocumentID:   result.DocumentID,
				DocumentName: result.DocumentName,
				Page:         result.Page,
				Preview:      preview(result.Content),
				Score:        result.Score,
			})
			continue
		}
		if result.Score > sources[idx].Score {
			sources[idx].Score = result.Score
			sources[idx].Page = result.Page
			sources[idx].Preview = preview(result.Content)
		}
	}

	return sources
}

// preview truncates chunk content for the source listing.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "..."
}

var _ Service = (*QAService)(nil)
