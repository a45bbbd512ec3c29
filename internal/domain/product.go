package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product domain errors.
var (
	ErrProductNotFound = &Error{Code: ENOTFOUND, Message: "Product not found"}
	ErrProductInactive = &Error{Code: EGONE, Message: "Product is not available"}
)

// Product is the catalog's view of a sellable item.
// The cart and order core treat the catalog as read-only; pricing captured
// into carts and orders is snapshotted, never re-derived from this type.
type Product struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	SKU         string
	Price       decimal.Decimal
	ImageURL    string
	StockCount  int32
	IsActive    bool
	IsFeatured  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Description string
}

// IsInStock reports whether the product can be sold at all.
func (p *Product) IsInStock() bool {
	return p.StockCount > 0 && p.IsActive
}

// CanPurchase reports whether the requested quantity is currently available.
func (p *Product) CanPurchase(quantity int32) bool {
	return p.IsActive && p.StockCount >= quantity
}

// CatalogReader is the read port the cart and order core use to consult
// live product state. It is injected explicitly; the core never reaches
// for a package-level catalog.
type CatalogReader interface {
	// FindProductByID returns the product or ErrProductNotFound.
	FindProductByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindProductBySlug returns the product or ErrProductNotFound.
	FindProductBySlug(ctx context.Context, slug string) (*Product, error)

	// ListActiveProducts returns all active products for the storefront.
	ListActiveProducts(ctx context.Context) ([]Product, error)
}
