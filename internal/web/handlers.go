package web

import (
	"database/sql"
	"net/http"
	"sort"
	"strconv"

	"github.com/tmoller/specdex/internal/catalog"
	"github.com/tmoller/specdex/internal/config"
	"github.com/tmoller/specdex/internal/errors"
	"github.com/tmoller/specdex/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleCategories handles GET /categories — list all categories.
func (h *Handlers) HandleCategories(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Categories(h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "categories", CategoriesPageData{
		PageData: PageData{
			Title:   "Categories",
			Version: h.renderer.version,
			Nav:     "categories",
		},
		Categories: result.Categories,
	})
}

// HandleCategory handles GET /categories/{category} — discovered field
// schema plus a paginated product list.
func (h *Handlers) HandleCategory(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	if category == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("category is required"))
		return
	}

	query := r.URL.Query().Get("q")
	products, err := ops.List(h.db, ops.ListInput{
		Category: category,
		Query:    query,
		Limit:    parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:   parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// An empty schema just renders an empty fields table; NOT_FOUND
	// here means the category itself is unknown.
	fields, err := ops.Fields(h.db, ops.FieldsInput{Category: category})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	var discovered []catalog.DiscoveredField
	if fields != nil {
		discovered = fields.Fields
	}

	h.renderer.renderPage(w, r, "category", CategoryPageData{
		PageData: PageData{
			Title:   products.Category,
			Version: h.renderer.version,
			Nav:     "categories",
		},
		Category:   products.Category,
		Fields:     discovered,
		Products:   products.Products,
		Pagination: products.Pagination,
		Query:      query,
	})
}

// HandleDetail handles GET /products/{id} — view a single product.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("product ID is required"))
		return
	}

	result, err := ops.Get(h.db, ops.GetInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	product := result.Product

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   product.Name,
			Version: h.renderer.version,
			Nav:     "categories",
		},
		Product:         product,
		DescriptionHTML: renderMarkdown(product.Description),
		RawSpecs:        specRows(product.RawSpecs),
		NormalizedSpecs: specRows(product.NormalizedSpecs),
	})
}

// specRows sorts a spec map into display rows.
func specRows[M ~map[string]string](specs M) []SpecRow {
	rows := make([]SpecRow, 0, len(specs))
	for label, value := range specs {
		rows = append(rows, SpecRow{Label: label, Value: value})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Label < rows[j].Label })
	return rows
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
