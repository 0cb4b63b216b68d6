package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/smartnotes/internal/document/doctest"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		path string
		want Kind
		ok   bool
	}{
		{"notes.pdf", KindPDF, true},
		{"NOTES.PDF", KindPDF, true},
		{"todo.md", KindText, true},
		{"a/b/c.txt", KindText, true},
		{"image.png", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		got, ok := KindOf(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KindOf(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
		if Supported(tt.path) != tt.ok {
			t.Errorf("Supported(%q) = %v", tt.path, !tt.ok)
		}
	}
}

func TestLoad_PDF(t *testing.T) {
	path := writeFile(t, "notes.pdf", doctest.PDF("first page", "second page"))

	src, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src.Name != "notes.pdf" || src.Kind != KindPDF {
		t.Errorf("src = %q/%q", src.Name, src.Kind)
	}
	if src.Pages != 2 {
		t.Errorf("Pages = %d, want 2", src.Pages)
	}
	if len(src.Data) == 0 || src.Text != "" {
		t.Error("PDF source should carry bytes only")
	}
}

func TestLoad_InvalidPDF(t *testing.T) {
	for name, data := range map[string][]byte{
		"text.pdf":      []byte("just some text"),
		"truncated.pdf": []byte("%PDF-1.4\n1 0 obj\n<<"),
	} {
		_, err := Load(writeFile(t, name, data))
		if !errors.Is(err, ErrInvalidPDF) {
			t.Errorf("%s: err = %v, want ErrInvalidPDF", name, err)
		}
	}
}

func TestLoad_Text(t *testing.T) {
	path := writeFile(t, "todo.md", []byte("# Todo\n- buy milk\n"))

	src, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src.Kind != KindText || src.Text != "# Todo\n- buy milk\n" {
		t.Errorf("src = %+v", src)
	}
}

func TestLoad_Rejections(t *testing.T) {
	if _, err := Load(writeFile(t, "photo.png", []byte{1, 2, 3})); !errors.Is(err, ErrUnsupported) {
		t.Errorf("png err = %v, want ErrUnsupported", err)
	}
	if _, err := Load(writeFile(t, "empty.txt", nil)); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty err = %v, want ErrEmpty", err)
	}
	if _, err := Load(writeFile(t, "blank.txt", []byte("  \n\t"))); !errors.Is(err, ErrEmpty) {
		t.Errorf("blank err = %v, want ErrEmpty", err)
	}
	if _, err := Load(writeFile(t, "bin.txt", []byte{0xff, 0xfe, 0xfd})); err == nil {
		t.Error("invalid UTF-8 should be rejected")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.pdf")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing err = %v, want not exist", err)
	}
}

func TestExtractPages(t *testing.T) {
	pages, err := ExtractPages(doctest.PDF("Hello page one", "", "Hello page three"))
	if err != nil {
		t.Fatalf("ExtractPages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2 (blank page skipped)", len(pages))
	}
	if pages[0].Number != 0 || !strings.Contains(pages[0].Text, "page one") {
		t.Errorf("page 0 = %+v", pages[0])
	}
	if pages[1].Number != 2 || !strings.Contains(pages[1].Text, "page three") {
		t.Errorf("page 1 = %+v", pages[1])
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		size, overlap int
		want          []string
	}{
		{"empty", "   ", 10, 2, nil},
		{"short", "abc", 10, 2, []string{"abc"}},
		{"overlap", "abcdefghij", 4, 2, []string{"abcd", "cdef", "efgh", "ghij"}},
		{"no overlap", "abcdefg", 3, 0, []string{"abc", "def", "g"}},
		{"overlap too large", "abcdef", 3, 5, []string{"abc", "def"}},
		{"runes", "ééééé", 2, 0, []string{"éé", "éé", "é"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.text, tt.size, tt.overlap)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("Chunk = %q, want %q", got, tt.want)
			}
		})
	}
}
