package biz

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/imezh/RAG-agent/internal/chunker"
	"github.com/imezh/RAG-agent/internal/docqa/store"
	"github.com/imezh/RAG-agent/internal/model"
	"github.com/imezh/RAG-agent/internal/parser"
	"github.com/imezh/RAG-agent/pkg/llm"
)

// IndexerConfig holds indexer settings.
type IndexerConfig struct {
	// Chunking controls how document text is split.
	Chunking chunker.Config
	// EmbedBatchSize is the number of chunk texts sent per embedding call.
	EmbedBatchSize int
	// Workers is the number of files processed concurrently.
	Workers int
}

// Indexer parses, chunks, embeds and stores documents.
type Indexer struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	splitter      *chunker.Splitter
	config        *IndexerConfig

	// writeMu serializes store writes; parsing and embedding stay
	// concurrent across workers.
	writeMu sync.Mutex
}

// NewIndexer creates an indexer instance.
func NewIndexer(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, config *IndexerConfig) *Indexer {
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = 32
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	return &Indexer{
		store:         vectorStore,
		embedProvider: embedProvider,
		splitter:      chunker.NewSplitter(config.Chunking),
		config:        config,
	}
}

// IndexDirectory indexes every supported file under dir. Files are
// processed concurrently; one file failing to parse or embed is recorded
// in the report and does not stop the rest. With clear set, the store is
// emptied first.
func (i *Indexer) IndexDirectory(ctx context.Context, dir string, clear bool) (*model.IndexReport, error) {
	logger.Infof("Indexing documents from: %s", dir)

	if clear {
		if err := i.store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear store: %w", err)
		}
	}

	files, err := findSupportedFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}
	logger.Infof("Found %d supported files", len(files))

	report := &model.IndexReport{FilesFound: len(files)}
	if len(files) == 0 {
		return report, nil
	}

	pool, err := ants.NewPool(i.config.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, file := range files {
		file := file
		wg.Add(1)
		task := func() {
			defer wg.Done()
			added, err := i.IndexFile(ctx, file)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warnf("Failed to index %s: %v", file, err)
				report.FilesFailed++
				report.Failed = append(report.Failed, fmt.Sprintf("%s: %v", filepath.Base(file), err))
				return
			}
			report.FilesIndexed++
			report.ChunksAdded += added
		}
		if err := pool.Submit(task); err != nil {
			// Pool rejected the task, run it inline.
			task()
		}
	}
	wg.Wait()

	logger.Infow("Indexing completed",
		"files_found", report.FilesFound,
		"files_indexed", report.FilesIndexed,
		"files_failed", report.FilesFailed,
		"chunks_added", report.ChunksAdded,
	)
	return report, nil
}

// IndexFile parses, chunks, embeds and stores a single file. It returns
// the number of chunks added.
func (i *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	p, err := parser.ForFile(path)
	if err != nil {
		return 0, err
	}

	docs, err := p.Parse(path)
	if err != nil {
		return 0, fmt.Errorf("parsing: %w", err)
	}

	chunks := i.splitter.Split(docs)
	if len(chunks) == 0 {
		logger.Warnf("No chunks produced for %s", path)
		return 0, nil
	}

	if err := i.embedChunks(ctx, chunks); err != nil {
		return 0, err
	}

	i.writeMu.Lock()
	err = i.store.Add(ctx, chunks)
	i.writeMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("storing: %w", err)
	}
	return len(chunks), nil
}

// embedChunks fills in embeddings batch by batch.
func (i *Indexer) embedChunks(ctx context.Context, chunks []model.Chunk) error {
	for start := 0; start < len(chunks); start += i.config.EmbedBatchSize {
		end := start + i.config.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for j := start; j < end; j++ {
			texts[j-start] = chunks[j].Content
		}

		embeddings, err := i.embedProvider.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding: %w", err)
		}
		if len(embeddings) != len(texts) {
			return fmt.Errorf("embedding: got %d embeddings for %d texts", len(embeddings), len(texts))
		}
		for j := start; j < end; j++ {
			chunks[j].Embedding = embeddings[j-start]
		}
	}
	return nil
}

// findSupportedFiles walks dir and returns paths of parseable files in
// lexical order.
func findSupportedFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if parser.Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
