// Package gateway issues the outbound calls of the Q&A backend contract and
// normalizes every outcome into a typed payload or a *Error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	pathQuery      = "/api/query"
	pathUploadPDF  = "/api/documents/upload"
	pathUploadText = "/api/documents/text"
	pathHealth     = "/api/health"

	// maxErrorBodySize bounds how much of a failed response is read while
	// looking for an error message.
	maxErrorBodySize = 64 << 10
)

// Client talks to the document Q&A backend over HTTP. It never retries: each
// call returns as soon as the outcome is known.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken makes the client send "Authorization: Bearer <token>".
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client targeting baseURL. An empty baseURL issues
// host-relative paths, which only works with a custom transport.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the backend address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ask submits a question to be answered by the given provider.
func (c *Client) Ask(ctx context.Context, question string, provider Provider) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, opAsk.validation("question must not be empty")
	}
	if !provider.Valid() {
		return nil, opAsk.validation(fmt.Sprintf("unknown provider %q", provider))
	}

	body, err := json.Marshal(QueryRequest{Question: question, Provider: provider})
	if err != nil {
		return nil, opAsk.validation(fmt.Sprintf("encoding request: %v", err))
	}

	var ans Answer
	if err := c.roundTrip(ctx, opAsk, pathQuery, "application/json", bytes.NewReader(body), &ans); err != nil {
		return nil, err
	}
	if ans.Sources == nil {
		ans.Sources = []SourceDocument{}
	}
	return &ans, nil
}

// UploadPDF sends binary PDF content as the multipart field "file".
func (c *Client) UploadPDF(ctx context.Context, filename string, content io.Reader) (*UploadResult, error) {
	if filename == "" || content == nil {
		return nil, opUploadPDF.validation("no file provided")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, opUploadPDF.validation(fmt.Sprintf("building form: %v", err))
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, opUploadPDF.validation(fmt.Sprintf("reading file: %v", err))
	}
	if err := mw.Close(); err != nil {
		return nil, opUploadPDF.validation(fmt.Sprintf("building form: %v", err))
	}

	var res UploadResult
	if err := c.roundTrip(ctx, opUploadPDF, pathUploadPDF, mw.FormDataContentType(), &buf, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UploadText sends plain text for ingestion. source names where the text came
// from, for example a file name; pasted text leaves it empty.
func (c *Client) UploadText(ctx context.Context, text, source string) (*UploadResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, opUploadText.validation("text must not be empty")
	}

	body, err := json.Marshal(TextUploadRequest{Text: text, Source: source})
	if err != nil {
		return nil, opUploadText.validation(fmt.Sprintf("encoding request: %v", err))
	}

	var res UploadResult
	if err := c.roundTrip(ctx, opUploadText, pathUploadText, "application/json", bytes.NewReader(body), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Health probes GET /api/health and returns nil on any 2xx status.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathHealth, nil)
	if err != nil {
		return opHealth.transportErr(err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return opHealth.transportErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return opHealth.serverErr(resp.StatusCode, serverMessage(resp.Body))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// roundTrip POSTs body to path and decodes a 2xx JSON reply into out.
func (c *Client) roundTrip(ctx context.Context, op operation, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return op.transportErr(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	c.logger.Debug("gateway request", "op", op.name, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("gateway transport failure", "op", op.name, "error", err)
		return op.transportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gerr := op.serverErr(resp.StatusCode, serverMessage(resp.Body))
		c.logger.Debug("gateway server failure", "op", op.name, "status", resp.StatusCode, "message", gerr.Message)
		return gerr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return op.decodeErr(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// serverMessage extracts a string "error" field from a failed response body.
// Bodies that are not JSON, or whose error field is not a string, yield "".
// An empty string is returned as is; the caller then reports the status
// instead, so {"error":""} reads the same as a body without the field.
func serverMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil || len(data) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err != nil {
		return ""
	}
	if s, ok := eb.Error.(string); ok {
		return s
	}
	return ""
}
