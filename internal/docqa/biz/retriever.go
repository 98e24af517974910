package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/logger"

	"github.com/imezh/RAG-agent/internal/docqa/store"
	"github.com/imezh/RAG-agent/pkg/llm"
)

// RetrieverConfig holds retriever settings.
type RetrieverConfig struct {
	// TopK is the number of candidates fetched from the store.
	TopK int
	// RelevanceThreshold drops candidates whose similarity is below it.
	RelevanceThreshold float32
	// Rerank enables lexical reranking of the filtered candidates.
	Rerank bool
}

// RetrievalResult is the outcome of a retrieval.
type RetrievalResult struct {
	// Question is the original question.
	Question string
	// Results are the relevant chunks, best first. Empty when nothing
	// cleared the relevance threshold.
	Results []store.SearchResult
}

// Reranker reorders retrieved chunks for a question.
type Reranker interface {
	Rerank(question string, results []store.SearchResult) []store.SearchResult
}

// Retriever finds chunks relevant to a question.
type Retriever struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	reranker      Reranker
	config        *RetrieverConfig
}

// NewRetriever creates a retriever instance.
func NewRetriever(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	var reranker Reranker
	if config.Rerank {
		reranker = &lexicalReranker{}
	}
	return &Retriever{
		store:         vectorStore,
		embedProvider: embedProvider,
		reranker:      reranker,
		config:        config,
	}
}

// Retrieve embeds the question, searches the store and filters by the
// relevance threshold. Finding nothing relevant is a valid empty result,
// not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string) (*RetrievalResult, error) {
	embedding, err := r.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	candidates, err := r.store.Query(ctx, embedding, r.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search store: %w", err)
	}

	relevant := make([]store.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= r.config.RelevanceThreshold {
			relevant = append(relevant, c)
		}
	}
	logger.Infof("Retrieved %d relevant chunks (of %d candidates)", len(relevant), len(candidates))

	if r.reranker != nil && len(relevant) > 1 {
		relevant = r.reranker.Rerank(question, relevant)
	}

	return &RetrievalResult{
		Question: question,
		Results:  relevant,
	}, nil
}

// lexicalReranker reorders chunks by blending the vector score with token
// overlap between the question and the chunk text. It needs no extra model
// calls and helps when embeddings rank near-duplicates equally.
type lexicalReranker struct{}

func (lr *lexicalReranker) Rerank(question string, results []store.SearchResult) []store.SearchResult {
	queryTokens := tokenize(question)
	if len(queryTokens) == 0 {
		return results
	}

	type scored struct {
		result store.SearchResult
		score  float64
	}
	scoredResults := make([]scored, len(results))
	for i, res := range results {
		overlap := tokenOverlap(queryTokens, tokenize(res.Content))
		scoredResults[i] = scored{
			result: res,
			score:  float64(res.Score) + 0.1*overlap,
		}
	}

	sort.SliceStable(scoredResults, func(i, j int) bool {
		return scoredResults[i].score > scoredResults[j].score
	})

	reranked := make([]store.SearchResult, len(results))
	for i, sr := range scoredResults {
		reranked[i] = sr.result
	}
	return reranked
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,!?;:()[]\"'«»")
		if len([]rune(token)) > 2 {
			tokens[token] = true
		}
	}
	return tokens
}

// tokenOverlap returns the fraction of query tokens present in the chunk.
func tokenOverlap(query, chunk map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for token := range query {
		if chunk[token] {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}
