package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kart-io/logger"

	"github.com/imezh/RAG-agent/internal/model"
)

// DOCXParser extracts text and tables from DOCX files.
//
// A DOCX file is a ZIP archive; the body lives in word/document.xml. Tables
// are emitted after the paragraph text as tab-joined rows so tabular data
// stays searchable. If table extraction fails the paragraph text alone is
// returned (lossy but non-fatal).
type DOCXParser struct{}

// Format returns the handled format.
func (p *DOCXParser) Format() model.Format { return model.FormatDOCX }

// Parse reads a DOCX file and returns a single Document.
func (p *DOCXParser) Parse(path string) ([]model.Document, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening docx %s: %w", path, err)
	}
	defer reader.Close()

	body, err := readArchiveFile(&reader.Reader, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("reading docx body %s: %w", path, err)
	}

	text, tables, err := parseDocumentXML(body)
	if err != nil {
		return nil, fmt.Errorf("parsing docx body %s: %w", path, err)
	}

	name := filepath.Base(path)
	if len(tables) > 0 {
		text = text + "\n" + strings.Join(tables, "\n")
		logger.Infof("Extracted %d tables from %s", len(tables), name)
	}

	text = cleanText(text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("docx %s contains no text", path)
	}

	logger.Infof("Parsed DOCX document: %s", name)
	return []model.Document{{
		ID:     documentID(path),
		Name:   name,
		Path:   path,
		Format: model.FormatDOCX,
		Text:   text,
	}}, nil
}

// documentXML mirrors the parts of word/document.xml we read. Paragraphs and
// tables are both direct children of the body.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
		Tables     []docxTable     `xml:"tbl"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

type docxTable struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []docxParagraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

func (p docxParagraph) text() string {
	var b strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

// parseDocumentXML extracts paragraph text and rendered tables from the
// document body. A table render error degrades to paragraph text only.
func parseDocumentXML(content []byte) (string, []string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(para.text())
	}

	tables := make([]string, 0, len(doc.Body.Tables))
	for _, tbl := range doc.Body.Tables {
		if rendered := renderTable(tbl); rendered != "" {
			tables = append(tables, rendered)
		}
	}

	return strings.TrimSpace(b.String()), tables, nil
}

// renderTable flattens a table into one line per row, cells joined by tabs.
func renderTable(tbl docxTable) string {
	rows := make([]string, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			parts := make([]string, 0, len(cell.Paragraphs))
			for _, para := range cell.Paragraphs {
				if t := para.text(); t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		line := strings.TrimSpace(strings.Join(cells, "\t"))
		if line != "" {
			rows = append(rows, line)
		}
	}
	return strings.Join(rows, "\n")
}

// readArchiveFile returns the contents of one file inside a ZIP archive.
func readArchiveFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("archive entry %s not found", name)
}
