package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/smartnotes/internal/conversation"
	"github.com/kalambet/smartnotes/internal/document"
	"github.com/kalambet/smartnotes/internal/gateway"
	"github.com/kalambet/smartnotes/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Session *session.Session
	Version string
}

// NewMCPServer creates an MCP server exposing one session as tools and
// resources.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	s := server.NewMCPServer(
		"smartnotes",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("smartnotes: ask questions about uploaded PDFs and notes, and upload new ones."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("ask_question",
			mcp.WithDescription("Ask a question answered from the uploaded documents. Returns the answer and its cited sources."),
			mcp.WithString("question", mcp.Description("The question"), mcp.Required()),
			mcp.WithString("provider", mcp.Description("LLM provider: openai or anthropic for this question only (default: current selection)")),
		),
		mcpAskQuestion(deps),
	)

	s.AddTool(
		mcp.NewTool("upload_text",
			mcp.WithDescription("Store plain text in the knowledge base."),
			mcp.WithString("text", mcp.Description("The text to store"), mcp.Required()),
			mcp.WithString("name", mcp.Description("Name shown in the recent uploads list")),
		),
		mcpUploadText(deps),
	)

	s.AddTool(
		mcp.NewTool("upload_file",
			mcp.WithDescription("Upload a local .pdf, .txt or .md file."),
			mcp.WithString("path", mcp.Description("Path of the file on this machine"), mcp.Required()),
		),
		mcpUploadFile(deps),
	)

	s.AddTool(
		mcp.NewTool("set_provider",
			mcp.WithDescription("Select the LLM provider used for later questions."),
			mcp.WithString("provider", mcp.Description("openai or anthropic"), mcp.Required()),
		),
		mcpSetProvider(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"session://conversation",
			"Conversation",
			mcp.WithResourceDescription("Every turn of the session transcript"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceConversation(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"session://uploads",
			"Recent Uploads",
			mcp.WithResourceDescription("Uploaded documents, most recent first, and the current upload message"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceUploads(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"session://status",
			"Session Status",
			mcp.WithResourceDescription("Selected provider and the state of the question and upload surfaces"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStatus(deps),
	)

	return s
}

func mcpAskQuestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return mcpError("question is required"), nil
		}

		provider := deps.Session.Provider()
		if p := req.GetString("provider", ""); p != "" {
			if provider, err = gateway.ParseProvider(p); err != nil {
				return mcpError(err.Error()), nil
			}
		}

		turn, err := deps.Session.AskWith(ctx, question, provider)
		if errors.Is(err, session.ErrBusy) {
			return mcpError("a question is already being answered, try again shortly"), nil
		}
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(formatAnswer(turn)), nil
	}
}

func formatAnswer(turn conversation.Turn) string {
	var b strings.Builder
	b.WriteString(turn.Content)
	fmt.Fprintf(&b, "\n\n(%s, %s)", turn.ProviderUsed, turn.ModelUsed)
	if len(turn.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for _, src := range turn.Sources {
			b.WriteString("\n- ")
			b.WriteString(src.SourceName)
			if label := src.PageLabel(); label != "" {
				b.WriteString(" (" + label + ")")
			}
		}
	}
	return b.String()
}

func mcpUploadText(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			return mcpError("text is required"), nil
		}

		var res *gateway.UploadResult
		if name := req.GetString("name", ""); name != "" {
			res, err = deps.Session.UploadTextAs(ctx, name, text)
		} else {
			res, err = deps.Session.UploadText(ctx, text)
		}
		if err != nil {
			return mcpUploadError(err), nil
		}
		return mcpText(res.Message), nil
	}
}

func mcpUploadFile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil || path == "" {
			return mcpError("path is required"), nil
		}

		src, err := document.Load(path)
		if err != nil {
			return mcpError(fmt.Sprintf("cannot upload %s: %v", path, err)), nil
		}

		var res *gateway.UploadResult
		if src.Kind == document.KindPDF {
			res, err = deps.Session.UploadFile(ctx, src.Name, src.Data)
		} else {
			res, err = deps.Session.UploadTextAs(ctx, src.Name, src.Text)
		}
		if err != nil {
			return mcpUploadError(err), nil
		}
		return mcpText(res.Message), nil
	}
}

func mcpUploadError(err error) *mcp.CallToolResult {
	if errors.Is(err, session.ErrBusy) {
		return mcpError("an upload is already in progress, try again shortly")
	}
	return mcpError(err.Error())
}

func mcpSetProvider(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := req.RequireString("provider")
		if err != nil {
			return mcpError("provider is required"), nil
		}
		provider, err := gateway.ParseProvider(p)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if err := deps.Session.SetProvider(provider); err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fmt.Sprintf("Provider set to %s", provider.Label())), nil
	}
}

type turnView struct {
	ID        string       `json:"id"`
	Role      string       `json:"role"`
	Content   string       `json:"content"`
	Timestamp string       `json:"timestamp"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model,omitempty"`
	Sources   []sourceView `json:"sources,omitempty"`
}

type sourceView struct {
	Source  string `json:"source"`
	Page    *int   `json:"page,omitempty"`
	Content string `json:"content"`
}

func mcpResourceConversation(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		turns := deps.Session.Turns()
		views := make([]turnView, len(turns))
		for i, t := range turns {
			views[i] = turnView{
				ID:        t.ID,
				Role:      string(t.Role),
				Content:   t.Content,
				Timestamp: t.Timestamp.Format(time.RFC3339),
				Provider:  t.ProviderUsed,
				Model:     t.ModelUsed,
			}
			for _, s := range t.Sources {
				views[i].Sources = append(views[i].Sources, sourceView{Source: s.SourceName, Page: s.Page, Content: s.Content})
			}
		}
		return jsonResource(req.Params.URI, views)
	}
}

func mcpResourceUploads(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type uploadView struct {
			Name       string `json:"name"`
			UploadedAt string `json:"uploaded_at"`
		}
		recent := deps.Session.RecentUploads()
		out := struct {
			Recent  []uploadView `json:"recent"`
			Message string       `json:"message,omitempty"`
		}{Recent: make([]uploadView, len(recent))}
		for i, r := range recent {
			out.Recent[i] = uploadView{Name: r.Name, UploadedAt: r.UploadedAt.Format(time.RFC3339)}
		}
		out.Message, _ = deps.Session.Message()
		return jsonResource(req.Params.URI, out)
	}
}

func mcpResourceStatus(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type surface struct {
			Busy      bool   `json:"busy"`
			LastError string `json:"last_error,omitempty"`
		}
		q, u := deps.Session.QueryState(), deps.Session.UploadState()
		return jsonResource(req.Params.URI, struct {
			Provider string  `json:"provider"`
			Query    surface `json:"query"`
			Upload   surface `json:"upload"`
			Turns    int     `json:"turns"`
		}{
			Provider: string(deps.Session.Provider()),
			Query:    surface{Busy: q.Busy, LastError: q.LastError},
			Upload:   surface{Busy: u.Busy, LastError: u.LastError},
			Turns:    len(deps.Session.Turns()),
		})
	}
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
