package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kart-io/logger"

	"github.com/imezh/RAG-agent/internal/model"
)

// TextParser reads plain text files.
type TextParser struct{}

// Format returns the handled format.
func (p *TextParser) Format() model.Format { return model.FormatText }

// Parse reads a text file and returns a single Document.
func (p *TextParser) Parse(path string) ([]model.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file %s: %w", path, err)
	}

	text := cleanText(string(raw))
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text file %s is empty", path)
	}

	name := filepath.Base(path)
	logger.Infof("Parsed text document: %s", name)
	return []model.Document{{
		ID:     documentID(path),
		Name:   name,
		Path:   path,
		Format: model.FormatText,
		Text:   text,
	}}, nil
}
