package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imezh/RAG-agent/internal/model"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{ChunkSize: 500, ChunkOverlap: 100}, false},
		{"zero size", Config{ChunkSize: 0, ChunkOverlap: 0}, true},
		{"negative overlap", Config{ChunkSize: 500, ChunkOverlap: -1}, true},
		{"overlap equals size", Config{ChunkSize: 100, ChunkOverlap: 100}, true},
		{"overlap exceeds size", Config{ChunkSize: 100, ChunkOverlap: 150}, true},
		{"min chunk too large", Config{ChunkSize: 100, ChunkOverlap: 10, MinChunkSize: 200}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitTextShortInput(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 100, ChunkOverlap: 20})
	chunks := s.SplitText("short text")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestSplitTextEmptyInput(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 100, ChunkOverlap: 20})
	assert.Empty(t, s.SplitText(""))
}

func TestSplitTextMaxLength(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 50, ChunkOverlap: 10})
	text := strings.Repeat("x", 500)
	for _, c := range s.SplitText(text) {
		assert.LessOrEqual(t, len([]rune(c)), 50)
	}
}

func TestSplitTextExactOverlap(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 60, ChunkOverlap: 15})
	text := "First sentence here. Second sentence follows. Third one too. " +
		"Fourth sentence now. Fifth closes the paragraph out nicely."
	chunks := s.SplitText(text)
	require.Greater(t, len(chunks), 1)
	// Every adjacent pair except possibly the last shares exactly the
	// configured overlap.
	for i := 0; i+2 < len(chunks); i++ {
		prev := []rune(chunks[i])
		next := []rune(chunks[i+1])
		assert.Equal(t, string(prev[len(prev)-15:]), string(next[:15]),
			"chunks %d and %d", i, i+1)
	}
}

func TestSplitTextPrefersParagraphBreak(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 80, ChunkOverlap: 10})
	text := "Alpha paragraph with some words in it.\n\nBeta paragraph continues with more words after the break."
	chunks := s.SplitText(text)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n"),
		"first chunk should end at the paragraph break, got %q", chunks[0])
}

func TestSplitTextPrefersSentenceBreak(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 60, ChunkOverlap: 10})
	text := "One full sentence sits right here. Another sentence follows it with extra words to force a split."
	chunks := s.SplitText(text)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0], ". "),
		"first chunk should end after a sentence, got %q", chunks[0])
}

func TestSplitTextFinalChunkReanchored(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 50, ChunkOverlap: 10, MinChunkSize: 25})
	text := strings.Repeat("a", 45) + strings.Repeat("b", 60)
	chunks := s.SplitText(text)
	require.Greater(t, len(chunks), 1)
	last := []rune(chunks[len(chunks)-1])
	assert.GreaterOrEqual(t, len(last), 25)
	assert.True(t, strings.HasSuffix(text, string(last)))
}

func TestSplitTextDeterministic(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 70, ChunkOverlap: 20})
	text := "Политика отпусков компании. Отпуск оформляется за 14 дней. " +
		"Заявление подается руководителю. Руководитель согласует даты."
	first := s.SplitText(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.SplitText(text))
	}
}

func TestSplitTextCyrillicRuneSizing(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 30, ChunkOverlap: 5})
	text := strings.Repeat("щ", 100)
	chunks := s.SplitText(text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 30)
	}
}

func TestSplitTagsChunks(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 40, ChunkOverlap: 8})
	docs := []model.Document{
		{ID: "d1", Name: "policy.txt", Text: "Первое предложение тут. Второе предложение следует. Третье завершает."},
		{ID: "d2", Name: "guide.pdf", Page: 3, Text: "short"},
	}
	chunks := s.Split(docs)
	require.NotEmpty(t, chunks)

	var d1, d2 int
	for _, c := range chunks {
		switch c.DocumentID {
		case "d1":
			assert.Equal(t, "policy.txt", c.DocumentName)
			assert.Equal(t, d1, c.Position)
			d1++
		case "d2":
			assert.Equal(t, 3, c.Page)
			assert.Equal(t, "short", c.Content)
			d2++
		default:
			t.Fatalf("unexpected document id %q", c.DocumentID)
		}
	}
	assert.Greater(t, d1, 1)
	assert.Equal(t, 1, d2)
}
