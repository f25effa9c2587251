// Package models defines core data structures for documents, chunks, permissions, and search results.
package models

// Well-known metadata keys.
const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaID     = "id"
)

// Metadata is the open provenance mapping carried by documents and chunks.
type Metadata map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty, non-nil map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Document is a unit of loaded text, typically one page of a PDF.
type Document struct {
	Content  string   `json:"page_content"`
	Metadata Metadata `json:"metadata"`
}

// Chunk is a bounded-length slice of a Document's text. ID is empty until assigned.
type Chunk struct {
	ID       string   `json:"id"`
	Content  string   `json:"page_content"`
	Metadata Metadata `json:"metadata"`
}
