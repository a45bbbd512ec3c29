package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calebmartin/sif/internal/domain"
)

// Catalog implements domain.CatalogReader using PostgreSQL.
type Catalog struct {
	pool *pgxpool.Pool
}

// Compile-time check that Catalog implements domain.CatalogReader.
var _ domain.CatalogReader = (*Catalog)(nil)

// NewCatalog creates a new PostgreSQL-backed catalog reader.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

const productColumns = `id, name, slug, sku, description, price, image_url, stock_count, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.SKU,
		&p.Description,
		&p.Price,
		&p.ImageURL,
		&p.StockCount,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindProductByID returns the product or ErrProductNotFound.
func (c *Catalog) FindProductByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.Internal(err, "catalog.find_by_id", "failed to get product")
	}
	return p, nil
}

// FindProductBySlug returns the product or ErrProductNotFound.
func (c *Catalog) FindProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.Internal(err, "catalog.find_by_slug", "failed to get product")
	}
	return p, nil
}

// ListActiveProducts returns all active products, ordered by name.
func (c *Catalog) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := c.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, domain.Internal(err, "catalog.list_active", "failed to list products")
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, domain.Internal(err, "catalog.list_active", "failed to scan product")
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "catalog.list_active", "failed to read products")
	}

	return products, nil
}
