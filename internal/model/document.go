// Package model provides shared data models for the Document QA agent.
package model

// Format identifies a supported source document format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// Document is one parsed unit of a source file. PDF files produce one
// Document per page; other formats produce a single Document per file.
// Documents are transient: they exist between parsing and chunking.
type Document struct {
	// ID is derived from the source path, stable across re-indexing.
	ID string `json:"id"`
	// Name is the base file name, shown to users in citations.
	Name string `json:"name"`
	// Path is the source path.
	Path string `json:"path"`
	// Format is the detected document format.
	Format Format `json:"format"`
	// Text is the cleaned text content of this unit.
	Text string `json:"text"`
	// Page is the 1-based page number for paginated formats, 0 otherwise.
	Page int `json:"page,omitempty"`
	// TotalPages is the page count of the source file, 0 when not paginated.
	TotalPages int `json:"total_pages,omitempty"`
}

// Chunk is a bounded span of document text, the retrieval unit.
type Chunk struct {
	// ID is a content hash assigned by the vector store on Add.
	ID string `json:"id"`
	// DocumentID identifies the source document.
	DocumentID string `json:"document_id"`
	// DocumentName is the source file name.
	DocumentName string `json:"document_name"`
	// Page is the source page number, 0 when not paginated.
	Page int `json:"page,omitempty"`
	// Position is the 0-based chunk index within the document unit.
	Position int `json:"position"`
	// Content is the chunk text.
	Content string `json:"content"`
	// Embedding is the vector for Content, filled in before Add.
	Embedding []float32 `json:"-"`
}

// QueryResult is the structured answer to one question.
type QueryResult struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	NumSources int      `json:"num_sources"`
}

// Source describes one distinct document the answer draws on, ordered by
// first appearance in the ranked retrieval results.
type Source struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	Page         int    `json:"page,omitempty"`
	// Preview is a truncated excerpt of the best-scoring chunk.
	Preview string `json:"preview"`
	// Score is the highest similarity score among this document's chunks.
	Score float32 `json:"score"`
}

// IndexReport summarises one ingestion run.
type IndexReport struct {
	FilesFound   int      `json:"files_found"`
	FilesIndexed int      `json:"files_indexed"`
	FilesFailed  int      `json:"files_failed"`
	ChunksAdded  int      `json:"chunks_added"`
	Failed       []string `json:"failed,omitempty"`
}
