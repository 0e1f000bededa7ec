package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tmoller/specdex/internal/config"
	"github.com/tmoller/specdex/internal/errors"
	"github.com/tmoller/specdex/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg}
}

// Request types for each tool

// SearchRequest represents the arguments for catalog_search.
type SearchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// GetRequest represents the arguments for catalog_get.
type GetRequest struct {
	ID       string `json:"id,omitempty"`
	Category string `json:"category,omitempty"`
	SourceID string `json:"source_id,omitempty"`
}

// FieldsRequest represents the arguments for catalog_fields.
type FieldsRequest struct {
	Category string `json:"category"`
}

// DiscoverRequest represents the arguments for catalog_discover.
type DiscoverRequest struct {
	Category     string  `json:"category"`
	MinFrequency float64 `json:"min_frequency,omitempty"`
	SampleLimit  int     `json:"sample_limit,omitempty"`
	Persist      bool    `json:"persist,omitempty"`
}

// BackfillRequest represents the arguments for catalog_backfill.
type BackfillRequest struct {
	Categories   []string `json:"categories,omitempty"`
	MinFrequency float64  `json:"min_frequency,omitempty"`
}

// Handler implementations

// HandleSearch handles the catalog_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Search(h.db, ops.SearchInput{
		Query:    input.Query,
		Category: input.Category,
		Limit:    input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGet handles the catalog_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Get(h.db, ops.GetInput{
		ID:       input.ID,
		Category: input.Category,
		SourceID: input.SourceID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCategories handles the catalog_categories tool call.
func (h *Handlers) HandleCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Categories(h.db)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFields handles the catalog_fields tool call.
func (h *Handlers) HandleFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FieldsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fields(h.db, ops.FieldsInput{Category: input.Category})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDiscover handles the catalog_discover tool call.
func (h *Handlers) HandleDiscover(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DiscoverRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Discover(h.db, h.cfg, ops.DiscoverInput{
		Category:     input.Category,
		MinFrequency: input.MinFrequency,
		SampleLimit:  input.SampleLimit,
		Persist:      input.Persist,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBackfill handles the catalog_backfill tool call.
func (h *Handlers) HandleBackfill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BackfillRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Backfill(h.db, h.cfg, ops.BackfillInput{
		Categories:   input.Categories,
		MinFrequency: input.MinFrequency,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if opErr, ok := err.(*errors.Error); ok {
		errorObj := map[string]any{
			"code":    opErr.Code,
			"message": opErr.Message,
			"status":  opErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if opErr.Code != errors.ErrInternal && opErr.Code != errors.ErrStorage && opErr.Details != nil {
			errorObj["details"] = opErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
