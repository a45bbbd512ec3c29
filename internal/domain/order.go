package domain

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order domain errors.
var (
	ErrOrderNotFound           = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrOrderNotCancellable     = &Error{Code: ECONFLICT, Message: "Order can no longer be cancelled"}
	ErrInvalidStatusTransition = &Error{Code: ECONFLICT, Message: "Order status transition not permitted"}
	ErrInsufficientStock       = &Error{Code: ECONFLICT, Message: "Insufficient stock for one or more items"}
	ErrTransactionFailed       = &Error{Code: EINTERNAL, Message: "Order transaction failed"}
)

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus is the payment state of an order, independent of fulfillment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// orderTransitions is the fulfillment state machine. Refunds are additionally
// gated on payment status; see Order.CanTransitionTo.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:  {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:     {PaymentStatusRefunded},
	PaymentStatusFailed:   {},
	PaymentStatusRefunded: {},
}

// ValidOrderStatus reports whether s names a known status.
func ValidOrderStatus(s OrderStatus) bool {
	_, ok := orderTransitions[s]
	return ok
}

// ValidPaymentStatus reports whether s names a known payment status.
func ValidPaymentStatus(s PaymentStatus) bool {
	_, ok := paymentTransitions[s]
	return ok
}

// Address is a structured postal snapshot stored on the order, not a
// reference into any address book.
type Address struct {
	FullName   string `json:"fullName,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// CustomerInfo is the contact snapshot captured at checkout.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Order is an immutable record of a completed checkout. Monetary fields are
// stored as computed at creation and never re-derived; only status, payment
// status and tracking may change afterwards.
type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	UserID          string
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	Subtotal        decimal.Decimal
	TaxAmount       decimal.Decimal
	ShippingAmount  decimal.Decimal
	DiscountAmount  decimal.Decimal
	TotalAmount     decimal.Decimal
	Currency        string
	PaymentMethod   string
	CustomerInfo    CustomerInfo
	ShippingAddress Address
	BillingAddress  Address
	Notes           string
	TrackingNumber  string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is a denormalized snapshot of a product line at order-creation
// time, independent of later catalog changes.
type OrderItem struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	ProductID       uuid.UUID
	ProductName     string
	ProductSlug     string
	ProductImageURL string
	Quantity        int32
	UnitPrice       decimal.Decimal
	TotalPrice      decimal.Decimal
	CreatedAt       time.Time
}

// maxOrderItemQuantity bounds a single line.
const maxOrderItemQuantity = 1000

// priceTolerance is the accepted rounding drift on line totals.
var priceTolerance = decimal.NewFromFloat(0.01)

// Validate enforces the line-item invariants: positive bounded quantity,
// non-negative prices, and totalPrice == quantity x unitPrice within a
// 0.01 rounding tolerance.
func (oi *OrderItem) Validate() error {
	if oi.ProductID == uuid.Nil {
		return Invalid("order_item.validate", "Product ID is required")
	}
	if oi.Quantity <= 0 {
		return Invalid("order_item.validate", "Quantity must be greater than 0")
	}
	if oi.Quantity > maxOrderItemQuantity {
		return Invalid("order_item.validate", fmt.Sprintf("Quantity cannot exceed %d", maxOrderItemQuantity))
	}
	if oi.UnitPrice.IsNegative() {
		return Invalid("order_item.validate", "Unit price must be greater than or equal to 0")
	}
	if oi.TotalPrice.IsNegative() {
		return Invalid("order_item.validate", "Total price must be greater than or equal to 0")
	}

	expected := oi.UnitPrice.Mul(decimal.NewFromInt32(oi.Quantity)).Round(2)
	if expected.Sub(oi.TotalPrice.Round(2)).Abs().GreaterThan(priceTolerance) {
		return Invalid("order_item.validate", "Total price does not match quantity x unit price")
	}

	return nil
}

// CanCancel reports whether the order may still be cancelled.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}

// CanRefund reports whether the order qualifies for a refund.
func (o *Order) CanRefund() bool {
	return o.Status == OrderStatusDelivered && o.PaymentStatus == PaymentStatusPaid
}

// CanTransitionTo reports whether the fulfillment status may move to next.
// A transition to refunded additionally requires the payment to have been
// captured.
func (o *Order) CanTransitionTo(next OrderStatus) bool {
	if next == OrderStatusRefunded && o.PaymentStatus != PaymentStatusPaid {
		return false
	}
	for _, allowed := range orderTransitions[o.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanTransitionPaymentTo reports whether the payment status may move to next.
func (o *Order) CanTransitionPaymentTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[o.PaymentStatus] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TotalItems returns the sum of line quantities.
func (o *Order) TotalItems() int32 {
	var total int32
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// EstimatedDelivery returns the projected delivery date: order date plus a
// fixed handling window. This is an estimate, not a carrier commitment.
func (o *Order) EstimatedDelivery() time.Time {
	return o.CreatedAt.AddDate(0, 0, 3)
}

// ValidateTotals enforces totalAmount == subtotal + tax + shipping - discount
// within the rounding tolerance.
func (o *Order) ValidateTotals() error {
	expected := o.Subtotal.Add(o.TaxAmount).Add(o.ShippingAmount).Sub(o.DiscountAmount).Round(2)
	if expected.Sub(o.TotalAmount.Round(2)).Abs().GreaterThan(priceTolerance) {
		return Invalid("order.validate", "Total amount does not match subtotal + tax + shipping - discount")
	}
	return nil
}

const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderNumber produces a human-facing, collision-resistant order
// number: GB-<unix millis>-<6 random chars>. Numbers are generated once at
// creation and never reused; uniqueness is additionally backed by a store
// constraint.
func GenerateOrderNumber() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate order number suffix: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("GB-%d-%s", time.Now().UnixMilli(), buf), nil
}

// OrderStatusEvent is one row of the append-only status log.
type OrderStatusEvent struct {
	ID          uuid.UUID   `json:"-"`
	OrderID     uuid.UUID   `json:"-"`
	Status      OrderStatus `json:"status"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"timestamp"`
}

// OrderTracking is the shopper-facing tracking view derived from the order
// header and its status log.
type OrderTracking struct {
	OrderID           uuid.UUID          `json:"orderId"`
	OrderNumber       string             `json:"orderNumber"`
	Status            OrderStatus        `json:"status"`
	TrackingNumber    string             `json:"trackingNumber,omitempty"`
	OrderDate         time.Time          `json:"orderDate"`
	EstimatedDelivery time.Time          `json:"estimatedDelivery"`
	StatusHistory     []OrderStatusEvent `json:"statusHistory"`
}

// OrderPayload is the input to order creation: a validated snapshot of what
// to persist. Items may arrive with display fields unset; the store resolves
// them from the catalog inside the creation transaction.
type OrderPayload struct {
	UserID          string
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	Subtotal        decimal.Decimal
	TaxAmount       decimal.Decimal
	ShippingAmount  decimal.Decimal
	DiscountAmount  decimal.Decimal
	TotalAmount     decimal.Decimal
	Currency        string
	PaymentMethod   string
	CustomerInfo    CustomerInfo
	ShippingAddress Address
	BillingAddress  Address
	Notes           string
	Items           []OrderItemPayload
}

// OrderItemPayload is one line of an order payload.
type OrderItemPayload struct {
	ProductID       uuid.UUID
	ProductName     string
	ProductSlug     string
	ProductImageURL string
	Quantity        int32
	UnitPrice       decimal.Decimal
	TotalPrice      decimal.Decimal
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status    OrderStatus
	UserID    string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// OrderPage is a paginated order listing.
type OrderPage struct {
	Orders     []Order `json:"orders"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	Total      int     `json:"total"`
	TotalPages int     `json:"totalPages"`
}

// OrderStore persists orders and their line items.
type OrderStore interface {
	// Create materializes the payload into an order inside a single
	// transaction: header insert, per-item display-field resolution and
	// snapshot insert, conditional stock decrement, and the initial status
	// event. Any failure rolls back the whole order.
	Create(ctx context.Context, payload *OrderPayload) (*Order, error)

	// FindByID returns the order with items, or ErrOrderNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByNumber returns the order with items, or ErrOrderNotFound.
	FindByNumber(ctx context.Context, orderNumber string) (*Order, error)

	// FindAll returns orders matching the filter, newest first, with items.
	FindAll(ctx context.Context, filter OrderFilter) ([]Order, int, error)

	// UpdateStatus sets the fulfillment status and appends a status event in
	// one transaction. Transition legality is the caller's responsibility.
	UpdateStatus(ctx context.Context, id uuid.UUID, status OrderStatus, description string) (*Order, error)

	// UpdatePaymentStatus sets the payment status.
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) (*Order, error)

	// SetTrackingNumber records the carrier tracking number.
	SetTrackingNumber(ctx context.Context, id uuid.UUID, trackingNumber string) (*Order, error)

	// Cancel sets the status to cancelled, restocks every line item, and
	// appends the status event, all in one transaction.
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*Order, error)

	// StatusEvents returns the order's status log, oldest first.
	StatusEvents(ctx context.Context, orderID uuid.UUID) ([]OrderStatusEvent, error)

	// Delete removes the order and its items.
	Delete(ctx context.Context, id uuid.UUID) error
}
