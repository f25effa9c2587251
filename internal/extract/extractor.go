// Package extract loads documents from disk as page-level text with provenance metadata.
package extract

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/models"
	"github.com/hyperjump/ragindex/pkg/utils"
)

// NoPage marks a Section from a format without pages.
const NoPage = -1

// Section is a unit of extracted text: one PDF page, one sheet, or a whole unpaginated file.
type Section struct {
	Page int
	Text string
}

// DefaultExtensions are the file types LoadDirectory picks up.
var DefaultExtensions = []string{".pdf", ".docx", ".xlsx", ".txt", ".md", ".rst"}

// Extractor extracts text from document files.
type Extractor struct {
	extensions map[string]bool
	logger     *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithExtensions restricts LoadDirectory to the given extensions (leading dot, any case).
func WithExtensions(exts ...string) Option {
	return func(e *Extractor) {
		if len(exts) == 0 {
			return
		}
		e.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			e.extensions[normalizeExt(ext)] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	WithExtensions(DefaultExtensions...)(e)
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// Supports reports whether files with ext are loaded.
func (e *Extractor) Supports(ext string) bool {
	ext = normalizeExt(ext)
	return e.extensions[ext] && knownExt(ext)
}

// Extensions returns the enabled extensions in order.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.extensions))
	for ext := range e.extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and returns its sections.
func (e *Extractor) Extract(path string) ([]Section, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts sections from content based on ext, which includes the leading dot.
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]Section, error) {
	switch normalizeExt(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".xlsx":
		return extractExcel(content)
	case ".docx":
		text, err := extractDOCX(content)
		if err != nil {
			return nil, err
		}
		return []Section{{Page: NoPage, Text: text}}, nil
	case ".txt", ".md", ".rst":
		return []Section{{Page: NoPage, Text: extractPlain(content)}}, nil
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

// LoadFile extracts path into Documents carrying source and, for paginated formats, page metadata.
func (e *Extractor) LoadFile(path string) ([]models.Document, error) {
	sections, err := e.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	docs := make([]models.Document, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		meta := models.Metadata{models.MetaSource: path}
		if s.Page != NoPage {
			meta[models.MetaPage] = s.Page
		}
		docs = append(docs, models.Document{Content: s.Text, Metadata: meta})
	}
	return docs, nil
}

// LoadDirectory walks dir in lexical order and loads every supported file. Hidden files
// and directories are skipped. Any file that fails to parse fails the whole load.
func (e *Extractor) LoadDirectory(ctx context.Context, dir string) ([]models.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("load directory: %s is not a directory", dir)
	}

	var docs []models.Document
	files := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !e.Supports(filepath.Ext(path)) {
			return nil
		}
		loaded, err := e.LoadFile(path)
		if err != nil {
			return err
		}
		files++
		e.logger.Debug("loaded file", zap.String("path", path), zap.Int("documents", len(loaded)))
		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("loaded directory",
		zap.String("dir", dir),
		zap.Int("files", files),
		zap.Int("documents", len(docs)))
	return docs, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func knownExt(ext string) bool {
	for _, known := range DefaultExtensions {
		if ext == known {
			return true
		}
	}
	return false
}
