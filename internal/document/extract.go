package document

import (
	"fmt"
	"strings"
)

// Page is the plain text of one PDF page. Number is zero-based, matching
// the page metadata the backend attaches to chunks.
type Page struct {
	Number int
	Text   string
}

// ExtractPages returns the non-empty pages of a PDF as plain text.
func ExtractPages(data []byte) (pages []Page, err error) {
	r, err := openPDF(data)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("%w: %v", ErrInvalidPDF, rec)
		}
	}()

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i - 1, Text: text})
	}
	return pages, nil
}

// Chunk splits text into windows of size runes, each overlapping the
// previous one by overlap runes.
func Chunk(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 || len(runes) <= size {
		return []string{string(runes)}
	}

	step := size - overlap
	if step <= 0 {
		step = size
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
