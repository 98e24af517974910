// Package parser converts source files into parsed documents.
//
// Each supported format implements the Parser interface; ForFile selects the
// implementation from the file extension. Parsers return cleaned text plus
// per-unit metadata (file name, page number where the format has pages).
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/imezh/RAG-agent/internal/model"
)

// ErrUnsupportedFormat is returned by ForFile when the file extension has no
// registered parser.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Parser parses one source file into documents.
type Parser interface {
	// Parse reads the file at path and returns its parsed units. Paginated
	// formats return one Document per page, others a single Document.
	Parse(path string) ([]model.Document, error)

	// Format returns the format this parser handles.
	Format() model.Format
}

// ForFile returns the parser for the file's extension.
func ForFile(path string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx", ".doc":
		return &DOCXParser{}, nil
	case ".md", ".mdx":
		return &MarkdownParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Supported reports whether the file extension has a registered parser.
func Supported(path string) bool {
	_, err := ForFile(path)
	return err == nil
}

// documentID derives a stable document identifier from the source path.
func documentID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}

// cleanText collapses runs of spaces and drops blank lines, preserving
// paragraph breaks as single newlines.
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
