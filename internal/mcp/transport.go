package mcp

import (
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewHTTPHandler serves the tools over Streamable HTTP. rag-server mounts it
// at /mcp next to the query API. Stateless mode skips session tracking,
// which is enough since the tools never call back into the client.
func NewHTTPHandler(server *Server, stateless bool, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{Stateless: stateless})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("MCP request", "method", r.Method, "session", r.Header.Get("Mcp-Session-Id"))
		h.ServeHTTP(w, r)
	})
}
