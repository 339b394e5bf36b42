package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/cloudbot/internal/storage"
)

// NewMCPServer exposes the status endpoints as MCP tools.
func NewMCPServer(deps StatusDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"cloudbot",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithInstructions("cloudbot: word-cloud reply bot. Read its loop counters and publication history."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("stats",
			mcp.WithDescription("Polling loop counters, processed-ID set size and publication counts per mode."),
		),
		mcpStats(deps),
	)

	s.AddTool(
		mcp.NewTool("list_publications",
			mcp.WithDescription("Most recent word-cloud replies, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20, max 100)")),
		),
		mcpListPublications(deps),
	)

	s.AddTool(
		mcp.NewTool("get_publication",
			mcp.WithDescription("One publication by its id."),
			mcp.WithString("id", mcp.Description("Publication id"), mcp.Required()),
		),
		mcpGetPublication(deps),
	)

	return s
}

// newMCPHandler serves the MCP server over streamable HTTP without sessions.
func newMCPHandler(deps StatusDeps) http.Handler {
	return server.NewStreamableHTTPServer(NewMCPServer(deps), server.WithStateLess(true))
}

func mcpStats(deps StatusDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := collectStatus(deps)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to count publications: %v", err)), nil
		}
		return mcpJSON(resp)
	}
}

func mcpListPublications(deps StatusDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		pubs, err := deps.History.ListPublications(limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list publications: %v", err)), nil
		}
		if pubs == nil {
			pubs = []storage.Publication{}
		}
		return mcpJSON(pubs)
	}
}

func mcpGetPublication(deps StatusDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		pub, err := deps.History.GetPublication(id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("publication %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get publication: %v", err)), nil
		}
		return mcpJSON(pub)
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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
