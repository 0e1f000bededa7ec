package catalog

// Product represents one scraped catalog product.
type Product struct {
	// ID is a ULID that uniquely identifies this product
	ID string `json:"id"`

	// SourceID is the retailer's own identifier, unique per category
	SourceID string `json:"source_id"`

	// Category is the product taxonomy key ("saddles", "cassettes", ...)
	Category string `json:"category"`

	// Name is the product display name
	Name string `json:"name"`

	// URL points at the scraped detail page
	URL string `json:"url,omitempty"`

	// Price is the scraped price text, kept verbatim
	Price string `json:"price,omitempty"`

	// Description is the product description in Markdown
	Description string `json:"description,omitempty"`

	// RawSpecs is the scraped label→value map for this product
	RawSpecs RawSpec `json:"raw_specs,omitempty"`

	// NormalizedSpecs is the field_name→value map computed against the
	// category's discovered schema; nil when not loaded
	NormalizedSpecs NormalizedSpec `json:"normalized_specs,omitempty"`

	// CreatedAt is the Unix timestamp when the product was imported
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix timestamp of the last import or backfill touch
	UpdatedAt int64 `json:"updated_at"`
}

// Summary is the listing shape for a product, without spec payloads.
type Summary struct {
	ID        string `json:"id"`
	SourceID  string `json:"source_id"`
	Category  string `json:"category"`
	Name      string `json:"name"`
	Price     string `json:"price,omitempty"`
	SpecCount int    `json:"spec_count"`
	UpdatedAt int64  `json:"updated_at"`
}

// CategoryInfo summarizes one category of the catalog.
type CategoryInfo struct {
	Category     string `json:"category"`
	ProductCount int    `json:"product_count"`
	FieldCount   int    `json:"field_count"`
}
