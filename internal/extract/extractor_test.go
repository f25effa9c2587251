package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/ragindex/internal/models"
)

// minimalPDF builds a PDF with one page per entry of pages, each drawing its text in Helvetica.
func minimalPDF(pages ...string) []byte {
	n := len(pages)
	fontObj := 3 + 2*n
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
	}
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	objs = append(objs, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// minimalDocx returns .docx bytes with word/document.xml holding text in one run.
func minimalDocx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func minimalDocxAt(text, docPath string, reversed bool) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	override := `<Override PartName="/` + docPath + `" ContentType="` + docxMainType + `"/>`
	if reversed {
		override = `<Override ContentType="` + docxMainType + `" PartName="/` + docPath + `"/>`
	}
	ct, _ := w.Create("[Content_Types].xml")
	_, _ = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` + override + `</Types>`))
	fw, _ := w.Create(docPath)
	_, _ = fw.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

// minimalXLSX returns a workbook whose sheets each hold one row: the given value and "x".
func minimalXLSX(t *testing.T, first, second string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.NewSheet("Prices"); err != nil {
		t.Fatal(err)
	}
	for sheet, v := range map[string]string{"Sheet1": first, "Prices": second} {
		if err := f.SetSheetRow(sheet, "A1", &[]any{v, "x"}); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.Bytes()
}

func TestExtractBytes_pdfPages(t *testing.T) {
	e := NewExtractor()
	sections, err := e.ExtractBytes(minimalPDF("First page text", "Second page text"), ".pdf")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(sections))
	}
	for i, want := range []string{"First page text", "Second page text"} {
		if sections[i].Page != i {
			t.Errorf("section %d: page %d", i, sections[i].Page)
		}
		if !strings.Contains(sections[i].Text, want) {
			t.Errorf("section %d: got %q, want it to contain %q", i, sections[i].Text, want)
		}
	}
}

func TestExtractBytes_pdfInvalid(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("not a pdf"), ".PDF"); err == nil {
		t.Error("expected error for invalid PDF")
	}
}

func TestExtractBytes_plain(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		content string
		want    string
	}{
		{"txt", ".txt", "Hello world\nLine 2", "Hello world\nLine 2"},
		{"md utf8", ".md", "caf\xc3\xa9", "café"},
		{"rst invalid utf8", ".rst", "hello\x80world", "hello\uFFFDworld"},
		{"upper-case ext", ".TXT", "shout", "shout"},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes([]byte(tt.content), tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if len(got) != 1 || got[0].Page != NoPage || got[0].Text != tt.want {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestExtractBytes_unsupported(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("raw"), ".xyz"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestExtractBytes_excelSheets(t *testing.T) {
	content := minimalXLSX(t, "Title", "Coffee")
	sections, err := NewExtractor().ExtractBytes(content, ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("expected one section per sheet, got %+v", sections)
	}
	if sections[0].Page != 0 || sections[0].Text != "Title\tx" {
		t.Errorf("sheet 0: %+v", sections[0])
	}
	if sections[1].Page != 1 || sections[1].Text != "Coffee\tx" {
		t.Errorf("sheet 1: %+v", sections[1])
	}
}

func TestExtractBytes_docx(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{"default body", minimalDocx("Searchable docx content"), "Searchable docx content"},
		{"content types", minimalDocxAt("From document2", "word/document2.xml", false), "From document2"},
		{"reversed attributes", minimalDocxAt("Reversed order", "word/document3.xml", true), "Reversed order"},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.content, ".docx")
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if len(got) != 1 || got[0].Text != tt.want || got[0].Page != NoPage {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestExtractBytes_docxErrors(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("plain bytes"), ".docx"); err == nil {
		t.Error("expected error for non-zip docx")
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, _ = w.Create("other.xml")
	_ = w.Close()
	if _, err := e.ExtractBytes(buf.Bytes(), ".docx"); err == nil {
		t.Error("expected error when the document body is missing")
	}
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.pdf"), minimalPDF("Bravo one", "Bravo two"))
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("Alpha notes"))
	writeFile(t, filepath.Join(dir, "sub", "c.md"), []byte("Charlie"))
	writeFile(t, filepath.Join(dir, "empty.txt"), []byte("  \n"))
	writeFile(t, filepath.Join(dir, "image.png"), []byte{0x89, 'P', 'N', 'G'})
	writeFile(t, filepath.Join(dir, ".hidden", "d.txt"), []byte("hidden"))

	docs, err := NewExtractor().LoadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	var got []string
	for _, d := range docs {
		rel, _ := filepath.Rel(dir, d.Metadata[models.MetaSource].(string))
		page := "-"
		if p, ok := d.Metadata[models.MetaPage]; ok {
			page = fmt.Sprint(p)
		}
		got = append(got, rel+"#"+page)
	}
	want := []string{"a.txt#-", "b.pdf#0", "b.pdf#1", filepath.Join("sub", "c.md") + "#-"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
	if !strings.HasPrefix(docs[0].Metadata[models.MetaSource].(string), dir) {
		t.Errorf("source should be joined with the directory: %v", docs[0].Metadata)
	}
}

func TestLoadDirectory_extensionFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("Alpha"))
	writeFile(t, filepath.Join(dir, "b.pdf"), minimalPDF("Bravo"))

	docs, err := NewExtractor(WithExtensions("pdf")).LoadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Metadata[models.MetaPage] != 0 {
		t.Errorf("expected only the pdf page, got %+v", docs)
	}
}

func TestLoadDirectory_errors(t *testing.T) {
	e := NewExtractor()
	_, err := e.LoadDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.pdf"), []byte("%PDF-1.4 truncated"))
	if _, err := e.LoadDirectory(context.Background(), dir); err == nil {
		t.Error("a file that fails to parse should fail the load")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.LoadDirectory(ctx, t.TempDir()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSupports(t *testing.T) {
	e := NewExtractor(WithExtensions(".PDF", "txt", ".exe"))
	if !e.Supports(".pdf") || !e.Supports("TXT") {
		t.Error("configured extensions should be supported")
	}
	if e.Supports(".exe") || e.Supports(".md") {
		t.Error("unknown or disabled extensions should not be supported")
	}
	if got := strings.Join(e.Extensions(), ","); got != ".exe,.pdf,.txt" {
		t.Errorf("Extensions: %s", got)
	}
}
