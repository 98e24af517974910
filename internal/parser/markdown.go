package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kart-io/logger"

	"github.com/imezh/RAG-agent/internal/model"
)

// MarkdownParser reads Markdown files and strips formatting down to plain
// text before chunking.
type MarkdownParser struct{}

// Format returns the handled format.
func (p *MarkdownParser) Format() model.Format { return model.FormatMarkdown }

// Parse reads a Markdown file and returns a single Document.
func (p *MarkdownParser) Parse(path string) ([]model.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading markdown %s: %w", path, err)
	}

	text := cleanText(stripMarkdown(string(raw)))
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("markdown %s contains no text", path)
	}

	name := filepath.Base(path)
	logger.Infof("Parsed markdown document: %s", name)
	return []model.Document{{
		ID:     documentID(path),
		Name:   name,
		Path:   path,
		Format: model.FormatMarkdown,
		Text:   text,
	}}, nil
}

var (
	mdCodeBlock    = regexp.MustCompile("(?s)```[^`]*```")
	mdInlineCode   = regexp.MustCompile("`([^`]+)`")
	mdImages       = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLinks        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeadings     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBlockquote   = regexp.MustCompile(`(?m)^>\s*`)
	mdHorizRule    = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	mdListMarkers  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdNumberedList = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
)

// stripMarkdown removes common markdown formatting, keeping the text. Inline
// code and link text survive; code blocks and images do not.
func stripMarkdown(content string) string {
	content = mdCodeBlock.ReplaceAllString(content, "")
	content = mdInlineCode.ReplaceAllString(content, "$1")
	content = mdImages.ReplaceAllString(content, "")
	content = mdLinks.ReplaceAllString(content, "$1")
	content = mdHeadings.ReplaceAllString(content, "")
	content = mdBlockquote.ReplaceAllString(content, "")
	content = mdHorizRule.ReplaceAllString(content, "")
	content = mdListMarkers.ReplaceAllString(content, "")
	content = mdNumberedList.ReplaceAllString(content, "")
	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	return strings.TrimSpace(content)
}
