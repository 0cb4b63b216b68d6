package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/smartnotes/internal/document/doctest"
	"github.com/kalambet/smartnotes/internal/gateway"
)

const testToken = "test-token-12345"

func setupStub(t *testing.T, token string) (http.Handler, *Corpus) {
	t.Helper()
	corpus := NewCorpus()
	return NewStubHandler(StubDeps{Corpus: corpus, Token: token}), corpus
}

func authReq(method, url string, body io.Reader, token string) *http.Request {
	req := httptest.NewRequest(method, url, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func jsonReq(method, url, body, token string) *http.Request {
	req := authReq(method, url, strings.NewReader(body), token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func pdfReq(t *testing.T, filename string, data []byte, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(data)
	mw.Close()

	req := authReq(http.MethodPost, "/api/documents/upload", &buf, token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]any](t, rec)
	msg, _ := body["error"].(string)
	return msg
}

func TestStub_Health(t *testing.T) {
	h, _ := setupStub(t, testToken)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestStub_UploadPDF(t *testing.T) {
	h, corpus := setupStub(t, "")
	data := doctest.PDF("Quarterly revenue grew by twelve percent", "Headcount stayed flat")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pdfReq(t, "report.pdf", data, ""))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first upload status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	res := decode[gateway.UploadResult](t, rec)
	if res.Filename != "report.pdf" || res.ChunksStored != 2 || res.AlreadyExisted {
		t.Errorf("result = %+v", res)
	}
	if res.Message != "Successfully processed 'report.pdf'." {
		t.Errorf("message = %q", res.Message)
	}
	if corpus.Len() != 2 {
		t.Errorf("corpus has %d chunks, want 2", corpus.Len())
	}

	// Same bytes under another name are recognised by content.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, pdfReq(t, "copy.pdf", data, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate upload status = %d, want 200", rec.Code)
	}
	res = decode[gateway.UploadResult](t, rec)
	if !res.AlreadyExisted || res.ChunksStored != 0 || res.Message != "'copy.pdf' has already been uploaded." {
		t.Errorf("duplicate result = %+v", res)
	}
	if corpus.Len() != 2 {
		t.Errorf("duplicate upload changed the corpus: %d chunks", corpus.Len())
	}
}

func TestStub_UploadPDF_Rejections(t *testing.T) {
	h, _ := setupStub(t, "")

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name:     "not a pdf name",
			req:      pdfReq(t, "notes.txt", []byte("hello"), ""),
			wantCode: http.StatusBadRequest,
			wantErr:  "Only PDF files are supported.",
		},
		{
			name:     "missing file field",
			req:      jsonReq(http.MethodPost, "/api/documents/upload", `{}`, ""),
			wantCode: http.StatusBadRequest,
			wantErr:  "No file provided. Use form field 'file'.",
		},
		{
			name:     "unreadable pdf",
			req:      pdfReq(t, "broken.pdf", []byte("garbage"), ""),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			msg := errorOf(t, rec)
			if tt.wantErr != "" && msg != tt.wantErr {
				t.Errorf("error = %q, want %q", msg, tt.wantErr)
			}
			if msg == "" {
				t.Error("error body missing")
			}
		})
	}
}

func TestStub_UploadText(t *testing.T) {
	h, corpus := setupStub(t, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonReq(http.MethodPost, "/api/documents/text", `{"text":"Remember the milk"}`, ""))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	res := decode[gateway.UploadResult](t, rec)
	if res.Filename != "user_input" || res.ChunksStored != 1 || res.Message != "Stored 1 chunk(s) from plain text." {
		t.Errorf("result = %+v", res)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, jsonReq(http.MethodPost, "/api/documents/text", `{"text":"x","source":"todo.md"}`, ""))
	if res := decode[gateway.UploadResult](t, rec); res.Filename != "todo.md" {
		t.Errorf("filename = %q, want todo.md", res.Filename)
	}
	if corpus.Len() != 2 {
		t.Errorf("corpus = %d chunks, want 2", corpus.Len())
	}
}

func TestStub_UploadText_Empty(t *testing.T) {
	h, _ := setupStub(t, "")
	for _, body := range []string{`{"text":""}`, `{"text":"   "}`, `{}`, ``} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, jsonReq(http.MethodPost, "/api/documents/text", body, ""))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
			continue
		}
		if msg := errorOf(t, rec); msg != "No text provided." {
			t.Errorf("body %q: error = %q", body, msg)
		}
	}
}

func TestStub_Query(t *testing.T) {
	h, corpus := setupStub(t, "")
	if _, _, err := corpus.AddPDF("report.pdf", doctest.PDF("Revenue grew twelve percent", "Headcount stayed flat")); err != nil {
		t.Fatalf("AddPDF: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonReq(http.MethodPost, "/api/query", `{"question":"How did headcount change?","provider":"anthropic"}`, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	ans := decode[gateway.Answer](t, rec)
	if ans.Provider != "anthropic" || ans.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("provider/model = %s/%s", ans.Provider, ans.Model)
	}
	if len(ans.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(ans.Sources))
	}
	src := ans.Sources[0]
	if src.Source != "report.pdf" || src.Page == nil || *src.Page != 1 {
		t.Errorf("source = %+v, want report.pdf page 1", src)
	}
	if !strings.Contains(ans.Answer, "Headcount") {
		t.Errorf("answer = %q", ans.Answer)
	}
}

func TestStub_Query_NoContext(t *testing.T) {
	h, _ := setupStub(t, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonReq(http.MethodPost, "/api/query", `{"question":"anything there?"}`, ""))
	ans := decode[gateway.Answer](t, rec)
	if ans.Answer != noContextAnswer || len(ans.Sources) != 0 {
		t.Errorf("answer = %+v", ans)
	}
	if ans.Provider != "openai" || ans.Model != "gpt-4o-mini" {
		t.Errorf("default provider = %s/%s", ans.Provider, ans.Model)
	}
}

func TestStub_Query_Validation(t *testing.T) {
	h, _ := setupStub(t, "")
	for _, body := range []string{`{"question":""}`, `{"question":"hi","provider":"gemini"}`} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, jsonReq(http.MethodPost, "/api/query", body, ""))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("body %s: status = %d, want 422", body, rec.Code)
			continue
		}
		if msg := errorOf(t, rec); msg != "Validation error" {
			t.Errorf("body %s: error = %q", body, msg)
		}
	}
}

func TestStub_Auth(t *testing.T) {
	h, _ := setupStub(t, testToken)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonReq(http.MethodPost, "/api/query", `{"question":"q"}`, ""))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, jsonReq(http.MethodPost, "/api/query", `{"question":"q"}`, "wrong"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, jsonReq(http.MethodPost, "/api/query", `{"question":"q"}`, testToken))
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}
}

// The gateway client and the stub agree on the wire format.
func TestStub_GatewayRoundTrip(t *testing.T) {
	h, _ := setupStub(t, testToken)
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := gateway.New(srv.URL, gateway.WithToken(testToken))
	ctx := t.Context()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}
	res, err := c.UploadPDF(ctx, "deck.pdf", bytes.NewReader(doctest.PDF("Launch date is March")))
	if err != nil {
		t.Fatalf("UploadPDF: %v", err)
	}
	if res.ChunksStored != 1 {
		t.Errorf("chunks = %d", res.ChunksStored)
	}
	ans, err := c.Ask(ctx, "When is the launch date?", gateway.ProviderOpenAI)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].Source != "deck.pdf" {
		t.Errorf("sources = %+v", ans.Sources)
	}

	_, err = c.UploadPDF(ctx, "notes.txt", strings.NewReader("x"))
	if err == nil || err.Error() != "Only PDF files are supported." {
		t.Errorf("UploadPDF(.txt) err = %v", err)
	}
	if gateway.StatusOf(err) != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", gateway.StatusOf(err))
	}
}

func TestCorpus_Search(t *testing.T) {
	c := NewCorpus()
	c.AddText("apples and oranges", "fruit.md")
	c.AddText("oranges only", "citrus.md")
	c.AddText("nothing relevant", "other.md")

	hits := c.Search("Apples, oranges?", 5)
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].Source != "fruit.md" || hits[1].Source != "citrus.md" {
		t.Errorf("order = %s, %s", hits[0].Source, hits[1].Source)
	}
	if got := c.Search("a an", 5); got != nil {
		t.Errorf("short terms matched %v", got)
	}
	if got := c.Search("oranges", 1); len(got) != 1 {
		t.Errorf("k=1 returned %d", len(got))
	}
}
