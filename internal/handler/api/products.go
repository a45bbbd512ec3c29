package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/calebmartin/sif/internal/domain"
	"github.com/calebmartin/sif/internal/router"
)

// ProductHandler exposes catalog reads to the storefront.
type ProductHandler struct {
	catalog domain.CatalogReader
}

// NewProductHandler creates a new product handler
func NewProductHandler(catalog domain.CatalogReader) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// RegisterRoutes registers product routes on the router.
func (h *ProductHandler) RegisterRoutes(r *router.Router) {
	r.Get("/api/products", h.List)
	r.Get("/api/products/{slug}", h.Get)
}

type productResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	SKU         string          `json:"sku,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	InStock     bool            `json:"inStock"`
	StockCount  int32           `json:"stockCount"`
}

func toProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Slug:        p.Slug,
		SKU:         p.SKU,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		InStock:     p.IsInStock(),
		StockCount:  p.StockCount,
	}
}

// List handles GET /api/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListActiveProducts(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = toProductResponse(&products[i])
	}
	respondData(w, http.StatusOK, out)
}

// Get handles GET /api/products/{slug}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.FindProductBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toProductResponse(product))
}
