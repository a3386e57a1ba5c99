package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/pdf-rag/internal/rag"
)

const noResultsMessage = "No matching documents found. Try broader search terms."

// makeSearchHandler creates the search_docs tool handler. It runs the
// retrieve mode of the query pipeline.
func makeSearchHandler(q Querier) func(
	context.Context, *mcp.CallToolRequest, SearchDocsInput,
) (*mcp.CallToolResult, SearchDocsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchDocsInput) (
		*mcp.CallToolResult, SearchDocsOutput, error,
	) {
		res, err := q.Retrieve(ctx, input.Query, input.K)
		if err != nil {
			return nil, SearchDocsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		if len(res.Results) == 0 {
			return nil, SearchDocsOutput{
				Results: []rag.Document{},
				Message: noResultsMessage,
			}, nil
		}

		return nil, SearchDocsOutput{Results: res.Results}, nil
	}
}

// makeAskHandler creates the ask_docs tool handler. It runs the generate
// mode, so an empty index yields the fallback answer.
func makeAskHandler(q Querier) func(
	context.Context, *mcp.CallToolRequest, AskDocsInput,
) (*mcp.CallToolResult, AskDocsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskDocsInput) (
		*mcp.CallToolResult, AskDocsOutput, error,
	) {
		res, err := q.Answer(ctx, input.Query, input.K)
		if err != nil {
			return nil, AskDocsOutput{}, fmt.Errorf("answer failed: %w", err)
		}

		results := res.Results
		if results == nil {
			results = []rag.Document{}
		}
		return nil, AskDocsOutput{Answer: res.Answer, Results: results}, nil
	}
}
