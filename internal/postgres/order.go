package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calebmartin/sif/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that OrderStore implements domain.OrderStore.
var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a new PostgreSQL-backed order store.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id, order_number, user_id, status, payment_status,
	subtotal, tax_amount, shipping_amount, discount_amount, total_amount,
	currency, payment_method, customer_name, customer_email, customer_phone,
	shipping_address, billing_address, notes, tracking_number, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		userID pgtype.Text
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&userID,
		&o.Status,
		&o.PaymentStatus,
		&o.Subtotal,
		&o.TaxAmount,
		&o.ShippingAmount,
		&o.DiscountAmount,
		&o.TotalAmount,
		&o.Currency,
		&o.PaymentMethod,
		&o.CustomerInfo.Name,
		&o.CustomerInfo.Email,
		&o.CustomerInfo.Phone,
		&o.ShippingAddress,
		&o.BillingAddress,
		&o.Notes,
		&o.TrackingNumber,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.UserID = textString(userID)
	return &o, nil
}

// Create materializes the payload into an order inside a single transaction:
// header insert, per-item display-field resolution and snapshot insert,
// conditional stock decrement, and the initial status event. Any failure
// rolls back the whole order.
func (s *OrderStore) Create(ctx context.Context, payload *domain.OrderPayload) (*domain.Order, error) {
	const op = "order.create"

	orderNumber, err := domain.GenerateOrderNumber()
	if err != nil {
		return nil, domain.Internal(err, op, "failed to generate order number")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var orderID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, user_id, status, payment_status,
			subtotal, tax_amount, shipping_amount, discount_amount, total_amount,
			currency, payment_method, customer_name, customer_email, customer_phone,
			shipping_address, billing_address, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		orderNumber,
		pgText(payload.UserID),
		payload.Status,
		payload.PaymentStatus,
		payload.Subtotal,
		payload.TaxAmount,
		payload.ShippingAmount,
		payload.DiscountAmount,
		payload.TotalAmount,
		payload.Currency,
		payload.PaymentMethod,
		payload.CustomerInfo.Name,
		payload.CustomerInfo.Email,
		payload.CustomerInfo.Phone,
		payload.ShippingAddress,
		payload.BillingAddress,
		payload.Notes,
	).Scan(&orderID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to insert order")
	}

	for _, item := range payload.Items {
		name, slug, imageURL := item.ProductName, item.ProductSlug, item.ProductImageURL
		if name == "" || slug == "" {
			err := tx.QueryRow(ctx,
				`SELECT name, slug, image_url FROM products WHERE id = $1`, item.ProductID).
				Scan(&name, &slug, &imageURL)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, domain.ErrProductNotFound
				}
				return nil, domain.Internal(err, op, "failed to resolve product")
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, product_slug,
				product_image_url, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			orderID, item.ProductID, name, slug, imageURL,
			item.Quantity, item.UnitPrice, item.TotalPrice)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to insert order item")
		}

		// Conditional decrement: no row affected means someone got there first.
		tag, err := tx.Exec(ctx, `
			UPDATE products
			SET stock_count = stock_count - $2, updated_at = now()
			WHERE id = $1 AND stock_count >= $2`,
			item.ProductID, item.Quantity)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to reserve stock")
		}
		if tag.RowsAffected() == 0 {
			var available int32
			if err := tx.QueryRow(ctx,
				`SELECT stock_count FROM products WHERE id = $1`, item.ProductID).
				Scan(&available); err != nil {
				return nil, domain.ErrInsufficientStock
			}
			return nil, domain.Errorf(domain.ECONFLICT, op,
				"Insufficient stock for %s. Available: %d", name, available)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_events (order_id, status, description)
		VALUES ($1, $2, $3)`,
		orderID, payload.Status, "Order placed")
	if err != nil {
		return nil, domain.Internal(err, op, "failed to record status event")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, op, "failed to commit order")
	}

	return s.FindByID(ctx, orderID)
}

// FindByID returns the order with items, or ErrOrderNotFound.
func (s *OrderStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.findOrderBy(ctx, `id = $1`, id, "order.find_by_id")
}

// FindByNumber returns the order with items, or ErrOrderNotFound.
func (s *OrderStore) FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.findOrderBy(ctx, `order_number = $1`, orderNumber, "order.find_by_number")
}

func (s *OrderStore) findOrderBy(ctx context.Context, where string, arg any, op string) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, op, "failed to get order")
	}

	items, err := s.loadItems(ctx, order.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load order items")
	}
	order.Items = items
	return order, nil
}

func (s *OrderStore) loadItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, product_name, product_slug, product_image_url,
		       quantity, unit_price, total_price, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductSlug,
			&item.ProductImageURL,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// FindAll returns orders matching the filter, newest first, along with the
// total match count for pagination.
func (s *OrderStore) FindAll(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	const op = "order.find_all"

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		conds = append(conds, `status = `+arg(filter.Status))
	}
	if filter.UserID != "" {
		conds = append(conds, `user_id = `+arg(filter.UserID))
	}
	if filter.StartDate != nil {
		conds = append(conds, `created_at >= `+arg(*filter.StartDate))
	}
	if filter.EndDate != nil {
		conds = append(conds, `created_at <= `+arg(*filter.EndDate))
	}

	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, domain.Internal(err, op, "failed to count orders")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}
	query := `SELECT ` + orderColumns + ` FROM orders` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg((page-1)*limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, domain.Internal(err, op, "failed to list orders")
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, domain.Internal(err, op, "failed to scan order")
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.Internal(err, op, "failed to read orders")
	}

	for i := range orders {
		items, err := s.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, domain.Internal(err, op, "failed to load order items")
		}
		orders[i].Items = items
	}

	return orders, total, nil
}

// UpdateStatus sets the fulfillment status and appends a status event in one
// transaction.
func (s *OrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, description string) (*domain.Order, error) {
	const op = "order.update_status"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update order status")
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrOrderNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_events (order_id, status, description)
		VALUES ($1, $2, $3)`, id, status, description)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to record status event")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, op, "failed to commit status update")
	}

	return s.FindByID(ctx, id)
}

// UpdatePaymentStatus sets the payment status.
func (s *OrderStore) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (*domain.Order, error) {
	const op = "order.update_payment_status"

	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update payment status")
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrOrderNotFound
	}

	return s.FindByID(ctx, id)
}

// SetTrackingNumber records the carrier tracking number.
func (s *OrderStore) SetTrackingNumber(ctx context.Context, id uuid.UUID, trackingNumber string) (*domain.Order, error) {
	const op = "order.set_tracking_number"

	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET tracking_number = $2, updated_at = now() WHERE id = $1`, id, trackingNumber)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to set tracking number")
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrOrderNotFound
	}

	return s.FindByID(ctx, id)
}

// Cancel sets the status to cancelled, restocks every line item, and appends
// the status event, all in one transaction.
func (s *OrderStore) Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error) {
	const op = "order.cancel"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		id, domain.OrderStatusCancelled)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to cancel order")
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrOrderNotFound
	}

	_, err = tx.Exec(ctx, `
		UPDATE products p
		SET stock_count = p.stock_count + oi.quantity, updated_at = now()
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id`, id)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to restock items")
	}

	description := reason
	if description == "" {
		description = "Order cancelled"
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_events (order_id, status, description)
		VALUES ($1, $2, $3)`, id, domain.OrderStatusCancelled, description)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to record status event")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, op, "failed to commit cancel")
	}

	return s.FindByID(ctx, id)
}

// StatusEvents returns the order's status log, oldest first.
func (s *OrderStore) StatusEvents(ctx context.Context, orderID uuid.UUID) ([]domain.OrderStatusEvent, error) {
	const op = "order.status_events"

	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, status, description, created_at
		FROM order_status_events
		WHERE order_id = $1
		ORDER BY created_at`, orderID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list status events")
	}
	defer rows.Close()

	var events []domain.OrderStatusEvent
	for rows.Next() {
		var ev domain.OrderStatusEvent
		if err := rows.Scan(&ev.ID, &ev.OrderID, &ev.Status, &ev.Description, &ev.CreatedAt); err != nil {
			return nil, domain.Internal(err, op, "failed to scan status event")
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read status events")
	}

	return events, nil
}

// Delete removes the order; items and events cascade.
func (s *OrderStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, "order.delete", "failed to delete order")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
