package web

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tmoller/specdex/internal/catalog"
	"github.com/tmoller/specdex/internal/config"
	"github.com/tmoller/specdex/internal/db"
	"github.com/tmoller/specdex/internal/ops"
)

func setupTest(t *testing.T) *Handlers {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}
	renderer := NewRenderer(templateSub, "test")

	return &Handlers{
		db:       database,
		cfg:      cfg,
		renderer: renderer,
	}
}

// seedProduct stores a product and returns its ID.
func seedProduct(t *testing.T, h *Handlers, category, sourceID, name string, specs catalog.RawSpec) string {
	t.Helper()
	now := time.Now().Unix()
	p := &catalog.Product{
		ID:          "01WEB" + sourceID + strings.Repeat("0", 21-len(sourceID)),
		SourceID:    sourceID,
		Category:    category,
		Name:        name,
		Description: "A **comfortable** saddle.",
		RawSpecs:    specs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.InsertProduct(h.db, p); err != nil {
		t.Fatalf("seed product %q: %v", sourceID, err)
	}
	return p.ID
}

// backfillCatalog builds the schema so pages have normalized specs.
func backfillCatalog(t *testing.T, h *Handlers) {
	t.Helper()
	if _, err := ops.Backfill(h.db, h.cfg, ops.BackfillInput{}); err != nil {
		t.Fatalf("backfill: %v", err)
	}
}

// --- HandleCategories ---

func TestHandleCategories(t *testing.T) {
	h := setupTest(t)
	seedProduct(t, h, "saddles", "s1", "Comfort Pro", catalog.RawSpec{"Width": "143mm"})
	seedProduct(t, h, "forks", "f1", "Air Fork", nil)

	req := httptest.NewRequest("GET", "/categories", nil)
	rec := httptest.NewRecorder()
	h.HandleCategories(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"saddles", "forks", `href="/categories/saddles"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestHandleCategories_Empty(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/categories", nil)
	rec := httptest.NewRecorder()
	h.HandleCategories(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No products yet") {
		t.Error("empty state message missing")
	}
}

// --- HandleCategory ---

func TestHandleCategory(t *testing.T) {
	h := setupTest(t)
	id := seedProduct(t, h, "saddles", "s1", "Comfort Pro", catalog.RawSpec{"Width": "143mm"})
	seedProduct(t, h, "saddles", "s2", "Race Lite", catalog.RawSpec{"Width": "130mm"})
	backfillCatalog(t, h)

	req := httptest.NewRequest("GET", "/categories/saddles", nil)
	req.SetPathValue("category", "saddles")
	rec := httptest.NewRecorder()
	h.HandleCategory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"width", "100%", "Comfort Pro", "Race Lite", "/products/" + id} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestHandleCategory_NameFilter(t *testing.T) {
	h := setupTest(t)
	seedProduct(t, h, "saddles", "s1", "Comfort Pro", nil)
	seedProduct(t, h, "saddles", "s2", "Race Lite", nil)

	req := httptest.NewRequest("GET", "/categories/saddles?q=race", nil)
	req.SetPathValue("category", "saddles")
	rec := httptest.NewRecorder()
	h.HandleCategory(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "Race Lite") {
		t.Error("filtered product missing")
	}
	if strings.Contains(body, "Comfort Pro") {
		t.Error("filter should exclude Comfort Pro")
	}
}

func TestHandleCategory_Unknown(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/categories/nope", nil)
	req.SetPathValue("category", "nope")
	rec := httptest.NewRecorder()
	h.HandleCategory(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// --- HandleDetail ---

func TestHandleDetail(t *testing.T) {
	h := setupTest(t)
	id := seedProduct(t, h, "saddles", "s1", "Comfort Pro", catalog.RawSpec{"Width": "143mm"})
	backfillCatalog(t, h)

	req := httptest.NewRequest("GET", "/products/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Comfort Pro") {
		t.Error("product name missing")
	}
	// Markdown description is rendered to HTML.
	if !strings.Contains(body, "<strong>comfortable</strong>") {
		t.Error("rendered markdown missing")
	}
	// Normalized and raw spec tables.
	if !strings.Contains(body, "width") || !strings.Contains(body, "143mm") {
		t.Error("spec tables missing")
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/products/nope", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDetail_JSONError(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/products/nope", nil)
	req.SetPathValue("id", "nope")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(rec.Body.String(), "NOT_FOUND") {
		t.Error("error code missing from JSON body")
	}
}

// --- Server wiring ---

func TestServerRoutesAndHeaders(t *testing.T) {
	h := setupTest(t)
	seedProduct(t, h, "saddles", "s1", "Comfort Pro", nil)

	srv := NewServer(h.db, h.cfg, "test", "127.0.0.1", 0)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/categories" {
		t.Errorf("root: status %d location %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}

	req = httptest.NewRequest("GET", "/categories/saddles", nil)
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("category route status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest("GET", "/static/style.css", nil)
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("static route status = %d, want 200", rec.Code)
	}
}
