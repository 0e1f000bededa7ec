package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool definitions for the catalog MCP surface. Keep the descriptions
// model-facing: short, concrete, and explicit about defaults.

var searchToolDef = mcp.NewTool("catalog_search",
	mcp.WithDescription("Search products by name (case-insensitive substring). Returns product summaries with id, category and spec count."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Substring to match against product names"),
	),
	mcp.WithString("category",
		mcp.Description("Restrict the search to one category"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum results to return (default 20, max 50)"),
	),
)

var getToolDef = mcp.NewTool("catalog_get",
	mcp.WithDescription("Get one product with its raw and normalized specs. Identify it by id, or by category plus source_id."),
	mcp.WithString("id",
		mcp.Description("Product id (ULID)"),
	),
	mcp.WithString("category",
		mcp.Description("Category, used together with source_id"),
	),
	mcp.WithString("source_id",
		mcp.Description("Scraper-assigned product id, used together with category"),
	),
)

var categoriesToolDef = mcp.NewTool("catalog_categories",
	mcp.WithDescription("List all product categories with product and discovered-field counts."),
)

var fieldsToolDef = mcp.NewTool("catalog_fields",
	mcp.WithDescription("List the discovered spec fields for a category, ordered by descending frequency. Each field carries its original labels and sample values."),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("Category to list fields for"),
	),
)

var discoverToolDef = mcp.NewTool("catalog_discover",
	mcp.WithDescription("Run spec field discovery for one category from stored raw specs. By default a preview: nothing is written unless persist is true."),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("Category to discover fields for"),
	),
	mcp.WithNumber("min_frequency",
		mcp.Description("Minimum share of products a field must appear on, in (0, 1] (default from config, 0.3)"),
	),
	mcp.WithNumber("sample_limit",
		mcp.Description("Cap on products sampled for discovery (default 0 = all)"),
	),
	mcp.WithBoolean("persist",
		mcp.Description("Write the discovered schema and normalized specs (default false)"),
	),
)

var backfillToolDef = mcp.NewTool("catalog_backfill",
	mcp.WithDescription("Run discovery and spec normalization over all categories (or a subset) and record the run. A failing category is reported but does not abort the run."),
	mcp.WithArray("categories",
		mcp.Description("Categories to process (default all)"),
		mcp.WithStringItems(),
	),
	mcp.WithNumber("min_frequency",
		mcp.Description("Minimum share of products a field must appear on, in (0, 1] (default from config, 0.3)"),
	),
)
