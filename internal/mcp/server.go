package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/pdf-rag/internal/rag"
)

// Querier is the subset of the query pipeline the tools need.
type Querier interface {
	Retrieve(ctx context.Context, query string, k int) (*rag.Retrieval, error)
	Answer(ctx context.Context, query string, k int) (*rag.Answer, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Querier Querier
	// Version is reported to clients during initialization.
	Version string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}

	impl := &mcp.Implementation{
		Name:    "pdf-rag",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_docs",
		Description: "Search the indexed documents semantically. Returns the closest text chunks with source, page and similarity score.",
	}, makeSearchHandler(cfg.Querier))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_docs",
		Description: "Answer a question using only the indexed documents. Returns the answer and the chunks it cites.",
	}, makeAskHandler(cfg.Querier))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
