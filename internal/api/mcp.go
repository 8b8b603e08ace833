package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nishan052/folio/internal/composer"
	"github.com/nishan052/folio/internal/llm"
	"github.com/nishan052/folio/internal/retrieval"
)

// MCPRetriever abstracts semantic search for the MCP layer.
type MCPRetriever interface {
	Retrieve(ctx context.Context, query string) ([]retrieval.Chunk, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Retriever MCPRetriever
	Responder Responder
	Facts     composer.Facts
}

// NewMCPServer creates an MCP server exposing the portfolio over tools and
// resources, for use by agent clients alongside the HTTP API.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"folio",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("folio exposes Nishan Poojary's portfolio: semantic search over resume chunks and full question answering."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_portfolio",
			mcp.WithDescription("Semantically search the portfolio index and return relevant text chunks with scores."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
		),
		mcpSearchPortfolio(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_portfolio",
			mcp.WithDescription("Ask a question about the portfolio and get a complete generated answer."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("lang", mcp.Description("Response language: en or de (default en)")),
		),
		mcpAskPortfolio(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"portfolio://facts",
			"Portfolio Facts",
			mcp.WithResourceDescription("Static biography facts as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceFacts(deps),
	)

	return s
}

func mcpSearchPortfolio(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		chunks, err := deps.Retriever.Retrieve(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(chunks) == 0 {
			return mcpText("[]"), nil
		}

		type chunkResult struct {
			Text   string  `json:"text"`
			Source string  `json:"source"`
			Type   string  `json:"type"`
			Score  float32 `json:"score"`
		}
		results := make([]chunkResult, len(chunks))
		for i, c := range chunks {
			results[i] = chunkResult{Text: c.Text, Source: c.Source, Type: c.Type, Score: c.Score}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAskPortfolio(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		lang := req.GetString("lang", "en")
		if lang != "en" && lang != "de" {
			lang = "en"
		}

		stream, _, err := deps.Responder.Respond(ctx, question, nil, lang)
		if err != nil {
			return mcpError(fmt.Sprintf("generation unavailable: %v", err)), nil
		}
		defer stream.Close()

		answer, err := collectStream(stream)
		if err != nil {
			return mcpError(fmt.Sprintf("stream failed: %v", err)), nil
		}
		if answer == "" {
			return mcpError("empty answer from generation backend"), nil
		}
		return mcpText(answer), nil
	}
}

// collectStream drains an upstream token stream into the full answer text.
func collectStream(rc io.Reader) (string, error) {
	var full strings.Builder
	scanner := &llm.DeltaScanner{}
	buf := make([]byte, 4096)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			for _, ev := range scanner.Write(buf[:n]) {
				if ev.Done {
					return full.String(), nil
				}
				full.WriteString(ev.Content)
			}
		}
		if err != nil {
			if err == io.EOF {
				for _, ev := range scanner.Flush() {
					if !ev.Done {
						full.WriteString(ev.Content)
					}
				}
				return full.String(), nil
			}
			return "", err
		}
	}
}

func mcpResourceFacts(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Facts)
		if err != nil {
			return nil, fmt.Errorf("marshalling facts: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
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
