package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/smartnotes/internal/gateway"
)

const maxUploadSize = 32 << 20 // 32MB
const maxRequestBodySize = 1 << 20

const searchTopK = 4

const noContextAnswer = "I don't know based on the provided context. Please upload relevant documents first."

// Models reported for each provider.
var providerModels = map[gateway.Provider]string{
	gateway.ProviderOpenAI:    "gpt-4o-mini",
	gateway.ProviderAnthropic: "claude-3-5-sonnet-20241022",
}

// StubDeps configures the stub backend.
type StubDeps struct {
	Corpus *Corpus
	Token  string // optional; when set, every route but health requires it
	Logger *slog.Logger
}

// NewStubHandler returns an http.Handler serving the answering service API
// from an in-memory corpus. Answers quote the best-matching stored chunks
// instead of calling a model.
func NewStubHandler(deps StubDeps) http.Handler {
	if deps.Corpus == nil {
		deps.Corpus = NewCorpus()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/api/health", handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/api/query", handleQuery(deps))
		r.Post("/api/documents/upload", handleUploadPDF(deps))
		r.Post("/api/documents/text", handleUploadText(deps))
	})
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type validationDetail struct {
	Loc []string `json:"loc"`
	Msg string   `json:"msg"`
}

func handleQuery(deps StubDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req gateway.QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			httpError(w, http.StatusBadRequest, "Invalid JSON body: %v", err)
			return
		}
		if req.Provider == "" {
			req.Provider = gateway.ProviderOpenAI
		}

		var details []validationDetail
		if req.Question == "" {
			details = append(details, validationDetail{Loc: []string{"question"}, Msg: "String should have at least 1 character"})
		}
		if !req.Provider.Valid() {
			details = append(details, validationDetail{Loc: []string{"provider"}, Msg: "Input should be 'openai' or 'anthropic'"})
		}
		if len(details) > 0 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "Validation error",
				"detail": details,
			})
			return
		}

		hits := deps.Corpus.Search(req.Question, searchTopK)
		ans := gateway.Answer{
			Provider: string(req.Provider),
			Model:    providerModels[req.Provider],
			Sources:  make([]gateway.SourceDocument, len(hits)),
		}
		for i, h := range hits {
			ans.Sources[i] = gateway.SourceDocument{Content: excerpt(h.Content), Source: h.Source, Page: h.Page}
		}
		if len(hits) == 0 {
			ans.Answer = noContextAnswer
		} else {
			ans.Answer = fmt.Sprintf("From %s: %s", hits[0].Source, excerpt(hits[0].Content))
		}

		deps.Logger.Info("stub query", "provider", req.Provider, "sources", len(hits))
		writeJSON(w, http.StatusOK, ans)
	}
}

func handleUploadPDF(deps StubDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "No file provided. Use form field 'file'.")
			return
		}
		defer file.Close()

		name := filepath.Base(header.Filename)
		if name == "" || name == "." || name == "/" {
			httpError(w, http.StatusBadRequest, "Empty filename.")
			return
		}
		if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			httpError(w, http.StatusBadRequest, "Only PDF files are supported.")
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "Failed to read upload: %v", err)
			return
		}

		if deps.Corpus.HasPDF(data) {
			deps.Logger.Info("stub upload already stored", "filename", name)
			writeJSON(w, http.StatusOK, gateway.UploadResult{
				Filename:       name,
				AlreadyExisted: true,
				Message:        fmt.Sprintf("'%s' has already been uploaded.", name),
			})
			return
		}

		n, added, err := deps.Corpus.AddPDF(name, data)
		if err != nil {
			httpError(w, http.StatusBadRequest, "Could not read PDF: %v", err)
			return
		}
		if !added {
			writeJSON(w, http.StatusOK, gateway.UploadResult{
				Filename:       name,
				AlreadyExisted: true,
				Message:        fmt.Sprintf("'%s' has already been uploaded.", name),
			})
			return
		}

		deps.Logger.Info("stub upload stored", "filename", name, "chunks", n)
		writeJSON(w, http.StatusCreated, gateway.UploadResult{
			Filename:     name,
			ChunksStored: n,
			Message:      fmt.Sprintf("Successfully processed '%s'.", name),
		})
	}
}

type textUpload struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func handleUploadText(deps StubDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		var req textUpload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			httpError(w, http.StatusBadRequest, "Invalid JSON body: %v", err)
			return
		}
		text := strings.TrimSpace(req.Text)
		if text == "" {
			httpError(w, http.StatusBadRequest, "No text provided.")
			return
		}
		source := req.Source
		if source == "" {
			source = "user_input"
		}

		n := deps.Corpus.AddText(text, source)
		deps.Logger.Info("stub text stored", "source", source, "chunks", n)
		writeJSON(w, http.StatusCreated, gateway.UploadResult{
			Filename:     source,
			ChunksStored: n,
			Message:      fmt.Sprintf("Stored %d chunk(s) from plain text.", n),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"error": fmt.Sprintf(format, args...)})
}
