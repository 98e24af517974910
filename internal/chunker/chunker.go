// Package chunker splits parsed documents into overlapping text chunks
// sized for embedding.
package chunker

import (
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/imezh/RAG-agent/internal/model"
)

// Config controls chunk sizing. All sizes are in runes so multi-byte
// alphabets chunk the same as ASCII.
type Config struct {
	// ChunkSize is the maximum chunk length.
	ChunkSize int
	// ChunkOverlap is the number of runes repeated at the start of each
	// subsequent chunk from the same document.
	ChunkOverlap int
	// MinChunkSize is the smallest length allowed for a document's final
	// chunk when the document produced more than one. A shorter tail is
	// re-anchored backwards so it ends at the text end with this length.
	// Zero defaults to ChunkOverlap.
	MinChunkSize int
}

// Validate rejects configurations that cannot make progress.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.MinChunkSize < 0 || c.MinChunkSize > c.ChunkSize {
		return fmt.Errorf("min chunk size %d must be within [0, chunk size]", c.MinChunkSize)
	}
	return nil
}

// Splitter splits document text into overlapping chunks. It is stateless
// and deterministic: the same input and config always produce the same
// chunk sequence.
type Splitter struct {
	cfg Config
}

// NewSplitter creates a Splitter. The config must already be validated.
func NewSplitter(cfg Config) *Splitter {
	if cfg.MinChunkSize == 0 {
		cfg.MinChunkSize = cfg.ChunkOverlap
	}
	return &Splitter{cfg: cfg}
}

// Split chunks every document and tags each chunk with its source metadata.
func (s *Splitter) Split(docs []model.Document) []model.Chunk {
	var chunks []model.Chunk
	for _, doc := range docs {
		pieces := s.SplitText(doc.Text)
		for i, piece := range pieces {
			chunks = append(chunks, model.Chunk{
				DocumentID:   doc.ID,
				DocumentName: doc.Name,
				Page:         doc.Page,
				Position:     i,
				Content:      piece,
			})
		}
	}
	logger.Infof("Split %d documents into %d chunks", len(docs), len(chunks))
	return chunks
}

// SplitText splits text into chunks of at most ChunkSize runes. Consecutive
// chunks share exactly ChunkOverlap runes: each next chunk starts at the
// previous end minus the overlap. Within a window the split prefers a
// paragraph break, then a sentence break, so chunks tend to end on natural
// boundaries. The final fragment is re-anchored when it would fall below
// MinChunkSize, so only the last chunk's overlap may differ.
func (s *Splitter) SplitText(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.cfg.ChunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.cfg.ChunkSize
		if end >= len(runes) {
			end = len(runes)
			if end-start < s.cfg.MinChunkSize {
				// Too small to stand alone: slide back so the final chunk
				// ends at the text end with the minimum viable length.
				start = end - s.cfg.MinChunkSize
			}
			chunks = append(chunks, string(runes[start:end]))
			break
		}

		if cut := boundaryBefore(runes, start, end); cut > start+s.cfg.ChunkOverlap {
			end = cut
		}

		chunks = append(chunks, string(runes[start:end]))
		start = end - s.cfg.ChunkOverlap
	}

	return chunks
}

// sentenceBreaks are probed in order after the paragraph break.
var sentenceBreaks = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// boundaryBefore returns the position just after the last natural break in
// runes[from:to), or -1 when there is none.
func boundaryBefore(runes []rune, from, to int) int {
	window := string(runes[from:to])

	if idx := strings.LastIndex(window, "\n\n"); idx >= 0 {
		return from + runeLen(window[:idx]) + 2
	}
	for _, br := range sentenceBreaks {
		if idx := strings.LastIndex(window, br); idx >= 0 {
			return from + runeLen(window[:idx]) + runeLen(br)
		}
	}
	return -1
}

func runeLen(s string) int {
	return len([]rune(s))
}
