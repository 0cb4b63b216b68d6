package gateway

import (
	"fmt"
	"strings"
)

// Provider names the LLM backend the answering service should use.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Providers lists every accepted provider in display order.
var Providers = []Provider{ProviderOpenAI, ProviderAnthropic}

// Valid reports whether p is one of the enumerated providers.
func (p Provider) Valid() bool {
	for _, v := range Providers {
		if p == v {
			return true
		}
	}
	return false
}

// Label is the human-facing name for the provider.
func (p Provider) Label() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Claude"
	default:
		return string(p)
	}
}

// ParseProvider converts a user-supplied string into a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q (want openai or anthropic)", s)
	}
	return p, nil
}

// QueryRequest is the JSON body for POST /api/query.
type QueryRequest struct {
	Question string   `json:"question"`
	Provider Provider `json:"provider"`
}

// SourceDocument is one retrieved chunk cited by an answer.
// Page is zero-based and nil when the origin has no pages.
type SourceDocument struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    *int   `json:"page"`
}

// Answer is the success payload of POST /api/query. Provider and Model are
// what the backend actually used, which may differ from the request.
type Answer struct {
	Answer   string           `json:"answer"`
	Provider string           `json:"provider"`
	Model    string           `json:"model"`
	Sources  []SourceDocument `json:"sources"`
}

// TextUploadRequest is the JSON body for POST /api/documents/text.
// Source names the origin of the text; the backend stores and cites chunks
// under it and falls back to its own default when it is empty.
type TextUploadRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// UploadResult is the shared success payload of both document endpoints.
type UploadResult struct {
	Filename       string `json:"filename"`
	ChunksStored   int    `json:"chunks_stored"`
	AlreadyExisted bool   `json:"already_existed"`
	Message        string `json:"message"`
}

type errorBody struct {
	Error any `json:"error"`
}
