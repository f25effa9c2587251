package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	docxDefaultBody  = "word/document.xml"
	docxContentTypes = "[Content_Types].xml"
	docxMainType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// <w:t>text</w:t>, with or without attributes such as xml:space.
	docxTextRun = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// Override elements naming the main part, in either attribute order.
	docxPartName = []*regexp.Regexp{
		regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainType) + `"`),
		regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainType) + `"[^>]+PartName="([^"]+)"`),
	}
)

// extractDOCX joins the text runs of the main document part with single spaces.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	body := docxDefaultBody
	if types, err := readZipEntry(zr, docxContentTypes); err == nil && types != nil {
		for _, re := range docxPartName {
			if m := re.FindSubmatch(types); len(m) > 1 {
				body = strings.TrimPrefix(string(m[1]), "/")
				break
			}
		}
	}

	xml, err := readZipEntry(zr, body)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", body)
	}

	runs := docxTextRun.FindAllSubmatch(xml, -1)
	parts := make([]string, 0, len(runs))
	for _, r := range runs {
		if t := strings.TrimSpace(string(r[1])); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// readZipEntry returns the named entry's bytes, or nil if the archive has no such entry.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}
