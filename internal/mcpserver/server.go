// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Algiz archival tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/algiz/internal/archiver"
	"github.com/starford/algiz/internal/ledger"
	"github.com/starford/algiz/internal/models"
	"github.com/starford/algiz/internal/wayback"
)

// Server wraps the MCP server with Algiz tools.
type Server struct {
	mcp    *server.MCPServer
	arch   *archiver.Service
	rec    ledger.Recorder
	client wayback.Archiver
}

// New creates a new MCP server with all Algiz tools registered.
func New(arch *archiver.Service, rec ledger.Recorder, client wayback.Archiver) *Server {
	s := &Server{arch: arch, rec: rec, client: client}

	s.mcp = server.NewMCPServer(
		"Algiz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("archive_document",
		mcp.WithDescription("Archive every external link in a Markdown document and "+
			"annotate each one with an archived-copy link."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. folder/page.md)")),
		mcp.WithBoolean("force", mcp.Description("Re-archive links that already carry a fresh annotation")),
	), s.archiveDocument)

	s.mcp.AddTool(mcp.NewTool("archive_url",
		mcp.WithDescription("Submit a single URL to the archiving service and return "+
			"the resulting archive URL."),
		mcp.WithString("url", mcp.Required(), mcp.Description("The http(s) URL to archive")),
	), s.archiveURL)

	s.mcp.AddTool(mcp.NewTool("list_failures",
		mcp.WithDescription("List all links whose archival failed, with retry counts."),
	), s.listFailures)

	s.mcp.AddTool(mcp.NewTool("retry_failures",
		mcp.WithDescription("Re-attempt every failed archival recorded in the ledger."),
		mcp.WithBoolean("force", mcp.Description("Retry even links whose documents already carry a fresh annotation")),
	), s.retryFailures)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) archiveDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	force := req.GetBool("force", false)

	sum, err := s.arch.ArchiveDocument(ctx, path, force)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(sum, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) archiveURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := s.client.Archive(ctx, url)
	if res.Status == models.StatusFailed {
		return mcp.NewToolResultError(fmt.Sprintf("archival failed: %s", res.Detail)), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listFailures(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.rec.All()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no failures recorded"), nil
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) retryFailures(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	force := req.GetBool("force", false)

	sum, err := s.arch.RetryFailures(ctx, archiver.RetryOptions{Force: force})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(sum, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
