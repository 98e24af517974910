package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imezh/RAG-agent/internal/docqa/store"
	"github.com/imezh/RAG-agent/internal/model"
)

// stubStore returns canned results regardless of the embedding.
type stubStore struct {
	results []store.SearchResult
}

func (s *stubStore) Add(context.Context, []model.Chunk) error { return nil }

func (s *stubStore) Query(_ context.Context, _ []float32, topK int) ([]store.SearchResult, error) {
	if len(s.results) > topK {
		return s.results[:topK], nil
	}
	return s.results, nil
}

func (s *stubStore) Count(context.Context) (int64, error) { return int64(len(s.results)), nil }
func (s *stubStore) Collection() string                   { return "documents" }
func (s *stubStore) Clear(context.Context) error          { return nil }
func (s *stubStore) Close() error                         { return nil }

func TestRetrieveFiltersByThreshold(t *testing.T) {
	st := &stubStore{results: []store.SearchResult{
		{ID: "a", Content: "высокий", Score: 0.95},
		{ID: "b", Content: "средний", Score: 0.72},
		{ID: "c", Content: "низкий", Score: 0.4},
	}}
	r := NewRetriever(st, &fakeEmbedder{}, &RetrieverConfig{TopK: 5, RelevanceThreshold: 0.7})

	result, err := r.Retrieve(context.Background(), "вопрос")
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "a", result.Results[0].ID)
	assert.Equal(t, "b", result.Results[1].ID)
}

func TestRetrieveNothingRelevant(t *testing.T) {
	st := &stubStore{results: []store.SearchResult{
		{ID: "a", Score: 0.2},
	}}
	r := NewRetriever(st, &fakeEmbedder{}, &RetrieverConfig{TopK: 5, RelevanceThreshold: 0.7})

	result, err := r.Retrieve(context.Background(), "вопрос")
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.Equal(t, "вопрос", result.Question)
}

func TestLexicalRerankerPrefersTokenOverlap(t *testing.T) {
	results := []store.SearchResult{
		{ID: "generic", Content: "Общие положения организации труда", Score: 0.80},
		{ID: "match", Content: "Отпуск оформляется заранее через заявление", Score: 0.79},
	}

	lr := &lexicalReranker{}
	reranked := lr.Rerank("Как оформляется отпуск", results)
	require.Len(t, reranked, 2)
	assert.Equal(t, "match", reranked[0].ID, "token overlap should outweigh a tiny score gap")
}

func TestLexicalRerankerStableWithoutOverlap(t *testing.T) {
	results := []store.SearchResult{
		{ID: "first", Content: "альфа", Score: 0.9},
		{ID: "second", Content: "бета", Score: 0.9},
	}

	lr := &lexicalReranker{}
	reranked := lr.Rerank("вопрос без совпадений", results)
	assert.Equal(t, "first", reranked[0].ID)
	assert.Equal(t, "second", reranked[1].ID)
}

func TestRetrieveWithRerankEnabled(t *testing.T) {
	st := &stubStore{results: []store.SearchResult{
		{ID: "generic", Content: "Общие положения", Score: 0.80},
		{ID: "match", Content: "Отпуск оформляется заранее", Score: 0.79},
	}}
	r := NewRetriever(st, &fakeEmbedder{}, &RetrieverConfig{TopK: 5, RelevanceThreshold: 0.7, Rerank: true})

	result, err := r.Retrieve(context.Background(), "Как оформляется отпуск")
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "match", result.Results[0].ID)
}
