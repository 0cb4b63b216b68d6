package api

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/kalambet/smartnotes/internal/document"
)

// Chunking parameters used for every stored document.
const (
	ChunkSize    = 1200
	ChunkOverlap = 300
)

const excerptLen = 300

// Chunk is one stored piece of a document.
type Chunk struct {
	Content string
	Source  string
	Page    *int
}

// Corpus is the in-memory document store of the stub backend.
type Corpus struct {
	mu     sync.RWMutex
	hashes map[string]string
	chunks []Chunk
}

// NewCorpus returns an empty Corpus.
func NewCorpus() *Corpus {
	return &Corpus{hashes: make(map[string]string)}
}

// HasPDF reports whether a PDF with identical content was stored before.
func (c *Corpus) HasPDF(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.hashes[hashOf(data)]
	return ok
}

// AddPDF chunks the pages of a PDF and stores them under name. It returns
// the number of chunks stored, or false if the content was already stored.
func (c *Corpus) AddPDF(name string, data []byte) (int, bool, error) {
	pages, err := document.ExtractPages(data)
	if err != nil {
		return 0, false, err
	}

	var chunks []Chunk
	for _, p := range pages {
		page := p.Number
		for _, text := range document.Chunk(p.Text, ChunkSize, ChunkOverlap) {
			chunks = append(chunks, Chunk{Content: text, Source: name, Page: &page})
		}
	}

	h := hashOf(data)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.hashes[h]; ok {
		return 0, false, nil
	}
	c.hashes[h] = name
	c.chunks = append(c.chunks, chunks...)
	return len(chunks), true, nil
}

// AddText chunks text and stores it under source.
func (c *Corpus) AddText(text, source string) int {
	parts := document.Chunk(text, ChunkSize, ChunkOverlap)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range parts {
		c.chunks = append(c.chunks, Chunk{Content: p, Source: source})
	}
	return len(parts)
}

// Len returns the number of stored chunks.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks)
}

// Search returns up to k chunks sharing the most terms with query, best
// first. Chunks sharing no term are never returned.
func (c *Corpus) Search(query string, k int) []Chunk {
	terms := termsOf(query)
	if len(terms) == 0 || k <= 0 {
		return nil
	}

	type scored struct {
		chunk Chunk
		score int
		order int
	}

	c.mu.RLock()
	var hits []scored
	for i, ch := range c.chunks {
		words := termsOf(ch.Content)
		score := 0
		for t := range terms {
			if words[t] {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{chunk: ch, score: score, order: i})
		}
	}
	c.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].order < hits[j].order
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Chunk, len(hits))
	for i, h := range hits {
		out[i] = h.chunk
	}
	return out
}

func termsOf(s string) map[string]bool {
	terms := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if utf8.RuneCountInString(f) >= 3 {
			terms[f] = true
		}
	}
	return terms
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func excerpt(s string) string {
	if utf8.RuneCountInString(s) <= excerptLen {
		return s
	}
	return string([]rune(s)[:excerptLen])
}
