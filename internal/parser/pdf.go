package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"

	"github.com/imezh/RAG-agent/internal/model"
)

// PDFParser extracts text from PDF files, one document per page.
type PDFParser struct{}

// Format returns the handled format.
func (p *PDFParser) Format() model.Format { return model.FormatPDF }

// Parse reads a PDF file and returns one Document per non-empty page.
// Pages whose text cannot be extracted are skipped with a warning rather
// than failing the whole file.
func (p *PDFParser) Parse(path string) ([]model.Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	docID := documentID(path)
	name := filepath.Base(path)
	total := reader.NumPage()

	docs := make([]model.Document, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warnf("Failed to extract text from page %d of %s: %v", pageNum, name, err)
			continue
		}

		text = cleanText(text)
		if strings.TrimSpace(text) == "" {
			logger.Warnf("Page %d of %s is empty", pageNum, name)
			continue
		}

		docs = append(docs, model.Document{
			ID:         docID,
			Name:       name,
			Path:       path,
			Format:     model.FormatPDF,
			Text:       text,
			Page:       pageNum,
			TotalPages: total,
		})
	}

	logger.Infof("Parsed %d pages from %s", len(docs), name)
	return docs, nil
}
