// Package document loads local files for upload: PDFs are validated and
// sent as bytes, plain-text notes are read as text.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Kind is the upload route a document takes.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindText Kind = "text"
)

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrEmpty       = errors.New("document is empty")
	ErrInvalidPDF  = errors.New("not a readable PDF")
)

// MaxSize bounds files read by Load.
const MaxSize = 64 << 20

var kinds = map[string]Kind{
	".pdf": KindPDF,
	".txt": KindText,
	".md":  KindText,
}

// Extensions returns the file extensions Load accepts.
func Extensions() []string {
	return []string{".pdf", ".txt", ".md"}
}

// KindOf returns the kind for path by extension.
func KindOf(path string) (Kind, bool) {
	k, ok := kinds[strings.ToLower(filepath.Ext(path))]
	return k, ok
}

// Supported reports whether Load would accept path by its extension.
func Supported(path string) bool {
	_, ok := KindOf(path)
	return ok
}

// Source is a loaded document ready to upload.
type Source struct {
	Name  string
	Kind  Kind
	Data  []byte // PDF bytes
	Text  string // text content
	Pages int
}

// Load reads path and validates it for its kind.
func Load(path string) (*Source, error) {
	kind, ok := KindOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxSize {
		return nil, fmt.Errorf("%s: file too large (%d bytes)", filepath.Base(path), info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(filepath.Base(path), kind, data)
}

// Parse validates already-read content.
func Parse(name string, kind Kind, data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}

	src := &Source{Name: name, Kind: kind}
	switch kind {
	case KindPDF:
		n, err := PageCount(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		src.Data = data
		src.Pages = n
	case KindText:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%s: text is not valid UTF-8", name)
		}
		text := string(data)
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
		}
		src.Text = text
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupported)
	}
	return src, nil
}

// PageCount opens data as a PDF and returns its number of pages.
func PageCount(data []byte) (n int, err error) {
	r, err := openPDF(data)
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// openPDF wraps pdf.NewReader, which panics on some malformed input.
func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("%w: %v", ErrInvalidPDF, rec)
		}
	}()
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrInvalidPDF
	}
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return r, nil
}
