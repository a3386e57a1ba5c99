// Package mcp exposes document search and question answering as MCP tools.
package mcp

import "github.com/bull/pdf-rag/internal/rag"

// SearchDocsInput defines the input parameters for the search_docs tool.
type SearchDocsInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"The semantic search query"`
	// K is the number of chunks to return.
	K int `json:"k,omitempty" jsonschema:"Number of chunks to return (default 4)"`
}

// SearchDocsOutput contains the search results.
type SearchDocsOutput struct {
	Results []rag.Document `json:"results"`
	// Message provides informational context (e.g., "No matching documents found").
	Message string `json:"message,omitempty"`
}

// AskDocsInput defines the input parameters for the ask_docs tool.
type AskDocsInput struct {
	Query string `json:"query" jsonschema:"The question to answer from the indexed documents"`
	K     int    `json:"k,omitempty" jsonschema:"Number of chunks used as context (default 4)"`
}

// AskDocsOutput contains a grounded answer and the chunks it was built from.
type AskDocsOutput struct {
	Answer  string         `json:"answer"`
	Results []rag.Document `json:"results"`
}
