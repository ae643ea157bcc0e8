package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/retrieval"
)

var (
	retrieveToolName    = "retrieve"
	retrieveDescription = "Retrieve the document chunks most similar to the query text from the indexed data folder. Returns each chunk with its source file and distance, closest first."

	statsToolName    = "stats"
	statsDescription = "Report the index synchronizer phase and the number of indexed documents and chunks."
)

// RetrieveInput represents the input arguments for the retrieve tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"the text to find similar document chunks for"`
	K     int    `json:"k,omitempty" jsonschema:"number of chunks to return (default: 3)"`
}

// RetrieveOutput represents the output of the retrieve tool.
type RetrieveOutput struct {
	Query   string             `json:"query"`
	Results []retrieval.Result `json:"results"`
	Count   int                `json:"count"`
}

// StatsInput is empty: the stats tool takes no arguments.
type StatsInput struct{}

// StatsOutput represents the output of the stats tool.
type StatsOutput struct {
	Phase            string `json:"phase"`
	IndexedDocuments int    `json:"indexed_documents"`
	TotalChunks      int    `json:"total_chunks"`
	IndexSize        int    `json:"index_size"`
}

func (s *Server) handleRetrieve(ctx context.Context, _ *mcp.CallToolRequest, input RetrieveInput) (*mcp.CallToolResult, RetrieveOutput, error) {
	logger := s.config.Logger

	if input.Query == "" {
		return errorResult("query is required"), RetrieveOutput{}, nil
	}

	k := input.K
	if k <= 0 {
		k = s.config.DefaultTopK
	}

	logger.Debug("MCP retrieve request", "query", input.Query, "k", k)

	results, err := s.config.Searcher.Search(ctx, input.Query, k)
	if err != nil {
		logger.Error("MCP retrieve failed", "error", err)
		return errorResult(fmt.Sprintf("Retrieval failed: %v", err)), RetrieveOutput{}, nil
	}

	output := RetrieveOutput{
		Query:   input.Query,
		Results: results,
		Count:   len(results),
	}
	return jsonResult(output)
}

func (s *Server) handleStats(_ context.Context, _ *mcp.CallToolRequest, _ StatsInput) (*mcp.CallToolResult, StatsOutput, error) {
	stats := s.config.Status.Stats()
	output := StatsOutput{
		Phase:            string(s.config.Status.Phase()),
		IndexedDocuments: stats.IndexedDocuments,
		TotalChunks:      stats.TotalChunks,
		IndexSize:        stats.IndexSize,
	}
	return jsonResult(output)
}

// jsonResult mirrors structured output as a JSON text block for clients
// that do not read structured content.
func jsonResult[T any](output T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		var zero T
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err)), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
