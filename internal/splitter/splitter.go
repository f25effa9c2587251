// Package splitter breaks documents into overlapping, bounded-length chunks of text.
//
// Text is cut on the coarsest separator present ("\n\n", then "\n", then " ", then
// between characters) and the pieces are greedily merged back into windows of at most
// size characters, carrying up to overlap characters of context into the next window.
// Lengths count runes.
package splitter

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/ragindex/internal/apperr"
	"github.com/hyperjump/ragindex/internal/models"
)

// DefaultSeparators are tried in order, coarsest first. The empty separator splits between runes.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter is a recursive character splitter. It is safe for concurrent use.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSeparators replaces DefaultSeparators.
func WithSeparators(separators ...string) Option {
	return func(s *Splitter) {
		if len(separators) > 0 {
			s.separators = append([]string(nil), separators...)
		}
	}
}

// New validates size and overlap and returns a Splitter. It fails with a configuration
// error when size <= 0, overlap < 0, or overlap >= size.
func New(size, overlap int, opts ...Option) (*Splitter, error) {
	if size <= 0 {
		return nil, apperr.Configuration("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, apperr.Configuration("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, apperr.Configuration("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	s := &Splitter{size: size, overlap: overlap, separators: DefaultSeparators}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Size returns the maximum chunk length in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the maximum carried-over context in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// SplitDocuments splits every document in order. Each chunk gets its own copy of the
// source document's metadata; IDs are left empty.
func (s *Splitter) SplitDocuments(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		for _, text := range s.SplitText(doc.Content) {
			chunks = append(chunks, models.Chunk{
				Content:  text,
				Metadata: doc.Metadata.Clone(),
			})
		}
	}
	return chunks
}

// SplitText splits text into trimmed, non-empty chunks.
func (s *Splitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var out, pending []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < s.size {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			out = append(out, s.merge(pending)...)
			pending = nil
		}
		if len(finer) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				out = append(out, trimmed)
			}
			continue
		}
		out = append(out, s.split(piece, finer)...)
	}
	if len(pending) > 0 {
		out = append(out, s.merge(pending)...)
	}
	return out
}

// merge joins adjacent pieces into windows of at most s.size runes. Pieces already carry
// their leading separator, so they are concatenated as-is.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		total   int
	)
	flush := func() {
		if text := strings.TrimSpace(strings.Join(current, "")); text != "" {
			chunks = append(chunks, text)
		}
	}
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.size && len(current) > 0 {
			flush()
			// Drop from the front until what remains fits the overlap and leaves room for piece.
			for total > s.overlap || (total+n > s.size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	flush()
	return chunks
}

// splitKeepSeparator splits text on sep and re-attaches sep to the start of every piece after the first.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
