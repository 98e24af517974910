package parser

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imezh/RAG-agent/internal/model"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		path   string
		format model.Format
	}{
		{"doc.pdf", model.FormatPDF},
		{"doc.PDF", model.FormatPDF},
		{"doc.docx", model.FormatDOCX},
		{"doc.doc", model.FormatDOCX},
		{"notes.md", model.FormatMarkdown},
		{"notes.mdx", model.FormatMarkdown},
		{"readme.txt", model.FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := ForFile(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.format, p.Format())
		})
	}
}

func TestForFileUnsupported(t *testing.T) {
	_, err := ForFile("archive.xyz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	assert.False(t, Supported("archive.xyz"))
	assert.True(t, Supported("doc.pdf"))
}

func TestCleanText(t *testing.T) {
	cleaned := cleanText("  Multiple   spaces   \n\n\n  Multiple newlines  ")
	assert.NotContains(t, cleaned, "  ")
	assert.NotContains(t, cleaned, "\n\n")
	assert.Equal(t, "Multiple spaces\nMultiple newlines", cleaned)
}

func TestTextParserParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("Отпуск оформляется за 14 дней.\n\nЗаявление подаётся руководителю."), 0o644))

	docs, err := (&TextParser{}).Parse(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "policy.txt", doc.Name)
	assert.Equal(t, model.FormatText, doc.Format)
	assert.Contains(t, doc.Text, "Отпуск оформляется за 14 дней.")
	assert.NotEmpty(t, doc.ID)
	assert.Zero(t, doc.Page)
}

func TestTextParserEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n  \n"), 0o644))

	_, err := (&TextParser{}).Parse(path)
	assert.Error(t, err)
}

func TestMarkdownParserParse(t *testing.T) {
	content := "# Регламент отпусков\n\n" +
		"Отпуск оформляется **за 14 дней** до начала.\n\n" +
		"- подать [заявление](http://intranet/forms)\n" +
		"- получить `визу` руководителя\n\n" +
		"```\ncode that should vanish\n```\n"
	path := filepath.Join(t.TempDir(), "vacation.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	docs, err := (&MarkdownParser{}).Parse(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	text := docs[0].Text
	assert.Contains(t, text, "Регламент отпусков")
	assert.Contains(t, text, "за 14 дней")
	assert.Contains(t, text, "заявление")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "http://intranet/forms")
	assert.NotContains(t, text, "code that should vanish")
}

func TestDocumentIDStable(t *testing.T) {
	assert.Equal(t, documentID("/docs/a.pdf"), documentID("/docs/a.pdf"))
	assert.NotEqual(t, documentID("/docs/a.pdf"), documentID("/docs/b.pdf"))
}

// writeDOCX builds a minimal DOCX archive with the given document.xml body.
func writeDOCX(t *testing.T, dir, name, documentXML string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return path
}

func TestDOCXParserParse(t *testing.T) {
	body := `<?xml version="1.0"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><r><t>Командировки согласуются заранее.</t></r></p>
    <p><r><t>Срок согласования - пять рабочих дней.</t></r></p>
    <tbl>
      <tr><tc><p><r><t>Город</t></r></p></tc><tc><p><r><t>Лимит</t></r></p></tc></tr>
      <tr><tc><p><r><t>Москва</t></r></p></tc><tc><p><r><t>5000</t></r></p></tc></tr>
    </tbl>
  </body>
</document>`

	path := writeDOCX(t, t.TempDir(), "trips.docx", body)

	docs, err := (&DOCXParser{}).Parse(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	text := docs[0].Text
	assert.Contains(t, text, "Командировки согласуются заранее.")
	assert.Contains(t, text, "Срок согласования - пять рабочих дней.")
	// Table rows survive as tab-joined lines.
	assert.Contains(t, text, "Город\tЛимит")
	assert.Contains(t, text, "Москва\t5000")
}

func TestDOCXParserMissingBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = (&DOCXParser{}).Parse(path)
	assert.Error(t, err)
}
