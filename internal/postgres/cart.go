package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/calebmartin/sif/internal/domain"
)

// CartStore implements domain.CartStore using PostgreSQL.
// Every mutation re-reads the cart so callers see the effect of their write.
type CartStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that CartStore implements domain.CartStore.
var _ domain.CartStore = (*CartStore)(nil)

// NewCartStore creates a new PostgreSQL-backed cart store.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// FindByUserID returns the user's cart with items, or ErrCartNotFound.
func (s *CartStore) FindByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.findCartBy(ctx, `user_id = $1`, userID, "cart.find_by_user")
}

// FindBySessionID returns the session's cart with items, or ErrCartNotFound.
func (s *CartStore) FindBySessionID(ctx context.Context, sessionID string) (*domain.Cart, error) {
	return s.findCartBy(ctx, `session_id = $1`, sessionID, "cart.find_by_session")
}

func (s *CartStore) findCartBy(ctx context.Context, where string, arg any, op string) (*domain.Cart, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, session_id, created_at, updated_at FROM carts WHERE `+where, arg)

	cart, err := scanCart(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCartNotFound
		}
		return nil, domain.Internal(err, op, "failed to get cart")
	}

	if err := s.loadItems(ctx, cart); err != nil {
		return nil, domain.Internal(err, op, "failed to load cart items")
	}
	return cart, nil
}

func scanCart(row pgx.Row) (*domain.Cart, error) {
	var (
		cart      domain.Cart
		userID    pgtype.Text
		sessionID pgtype.Text
	)
	err := row.Scan(&cart.ID, &userID, &sessionID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cart.UserID = textString(userID)
	cart.SessionID = textString(sessionID)
	return &cart, nil
}

func (s *CartStore) loadItems(ctx context.Context, cart *domain.Cart) error {
	rows, err := s.pool.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, p.name, p.slug, p.image_url,
		       ci.quantity, ci.unit_price, ci.created_at, ci.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at`, cart.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	cart.Items = nil
	for rows.Next() {
		var item domain.CartItem
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductSlug,
			&item.ProductImageURL,
			&item.Quantity,
			&item.UnitPrice,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return err
		}
		cart.Items = append(cart.Items, item)
	}
	return rows.Err()
}

func (s *CartStore) findCartByID(ctx context.Context, cartID uuid.UUID, op string) (*domain.Cart, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, session_id, created_at, updated_at FROM carts WHERE id = $1`, cartID)

	cart, err := scanCart(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCartNotFound
		}
		return nil, domain.Internal(err, op, "failed to get cart")
	}

	if err := s.loadItems(ctx, cart); err != nil {
		return nil, domain.Internal(err, op, "failed to load cart items")
	}
	return cart, nil
}

// Create inserts a cart bound to the given identity. Concurrent creates for
// the same new identity hit the partial unique indexes on carts; the loser
// resolves to the existing row instead of failing.
func (s *CartStore) Create(ctx context.Context, userID, sessionID string) (*domain.Cart, error) {
	const op = "cart.create"
	if userID == "" && sessionID == "" {
		return nil, domain.ErrIdentityRequired
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO carts (user_id, session_id)
		VALUES ($1, $2)
		RETURNING id, user_id, session_id, created_at, updated_at`,
		pgText(userID), pgText(sessionID))

	cart, err := scanCart(row)
	if err != nil {
		if isUniqueViolation(err) {
			if userID != "" {
				return s.FindByUserID(ctx, userID)
			}
			return s.FindBySessionID(ctx, sessionID)
		}
		return nil, domain.Internal(err, op, "failed to create cart")
	}
	return cart, nil
}

// AddItem upserts a line: a new product inserts a row at unitPrice, while an
// existing product has quantity added onto its current line at its captured
// price.
func (s *CartStore) AddItem(ctx context.Context, cartID, productID uuid.UUID, quantity int32, unitPrice decimal.Decimal) (*domain.Cart, error) {
	const op = "cart.add_item"

	total := unitPrice.Mul(decimal.NewFromInt32(quantity))
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET
			quantity    = cart_items.quantity + EXCLUDED.quantity,
			total_price = cart_items.unit_price * (cart_items.quantity + EXCLUDED.quantity),
			updated_at  = now()`,
		cartID, productID, quantity, unitPrice, total)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to add cart item")
	}

	if err := s.touchCart(ctx, cartID); err != nil {
		return nil, domain.Internal(err, op, "failed to touch cart")
	}
	return s.findCartByID(ctx, cartID, op)
}

// UpdateItemQuantity sets a line's quantity directly. Quantity <= 0 removes
// the line.
func (s *CartStore) UpdateItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int32) (*domain.Cart, error) {
	const op = "cart.update_item_quantity"

	if quantity <= 0 {
		return s.RemoveItem(ctx, cartID, productID)
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE cart_items SET
			quantity    = $3,
			total_price = unit_price * $3,
			updated_at  = now()
		WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID, quantity)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update cart item")
	}

	if err := s.touchCart(ctx, cartID); err != nil {
		return nil, domain.Internal(err, op, "failed to touch cart")
	}
	return s.findCartByID(ctx, cartID, op)
}

// UpdateItemPrice re-captures a line's unit price after price drift.
func (s *CartStore) UpdateItemPrice(ctx context.Context, cartID, productID uuid.UUID, unitPrice decimal.Decimal) (*domain.Cart, error) {
	const op = "cart.update_item_price"

	_, err := s.pool.Exec(ctx, `
		UPDATE cart_items SET
			unit_price  = $3,
			total_price = $3 * quantity,
			updated_at  = now()
		WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID, unitPrice)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update cart item price")
	}

	if err := s.touchCart(ctx, cartID); err != nil {
		return nil, domain.Internal(err, op, "failed to touch cart")
	}
	return s.findCartByID(ctx, cartID, op)
}

// RemoveItem deletes a line; deleting an absent line is a no-op.
func (s *CartStore) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (*domain.Cart, error) {
	const op = "cart.remove_item"

	_, err := s.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to remove cart item")
	}

	if err := s.touchCart(ctx, cartID); err != nil {
		return nil, domain.Internal(err, op, "failed to touch cart")
	}
	return s.findCartByID(ctx, cartID, op)
}

// Clear removes every line but keeps the cart row.
func (s *CartStore) Clear(ctx context.Context, cartID uuid.UUID) (*domain.Cart, error) {
	const op = "cart.clear"

	_, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to clear cart")
	}

	if err := s.touchCart(ctx, cartID); err != nil {
		return nil, domain.Internal(err, op, "failed to touch cart")
	}
	return s.findCartByID(ctx, cartID, op)
}

// Delete drops the cart; items cascade.
func (s *CartStore) Delete(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return domain.Internal(err, "cart.delete", "failed to delete cart")
	}
	return nil
}

// DeleteAbandonedGuestCarts drops session-bound carts untouched since the
// cutoff. User carts are kept regardless of age.
func (s *CartStore) DeleteAbandonedGuestCarts(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM carts
		WHERE user_id IS NULL AND updated_at < $1`,
		cutoff)
	if err != nil {
		return 0, domain.Internal(err, "cart.sweep", "failed to delete abandoned carts")
	}
	return tag.RowsAffected(), nil
}

// MergeCarts folds the guest cart's lines into the user cart and deletes the
// guest cart in one transaction. Quantities sum for shared products; the user
// cart's captured prices win on conflict.
func (s *CartStore) MergeCarts(ctx context.Context, guestCartID, userCartID uuid.UUID) (*domain.Cart, error) {
	const op = "cart.merge"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, total_price)
		SELECT $2, product_id, quantity, unit_price, total_price
		FROM cart_items
		WHERE cart_id = $1
		ON CONFLICT (cart_id, product_id) DO UPDATE SET
			quantity    = cart_items.quantity + EXCLUDED.quantity,
			total_price = cart_items.unit_price * (cart_items.quantity + EXCLUDED.quantity),
			updated_at  = now()`,
		guestCartID, userCartID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to merge cart items")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, guestCartID); err != nil {
		return nil, domain.Internal(err, op, "failed to delete guest cart")
	}

	if _, err := tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, userCartID); err != nil {
		return nil, domain.Internal(err, op, "failed to touch user cart")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, op, "failed to commit merge")
	}

	return s.findCartByID(ctx, userCartID, op)
}

func (s *CartStore) touchCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
	return err
}
