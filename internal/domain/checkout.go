package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidPromoCode rejects codes not in the promo table. Subtotal-minimum
// failures carry the minimum in the message and are built per code.
var ErrInvalidPromoCode = &Error{Code: EINVALID, Message: "Invalid promo code"}

// Identity carries the two possible owners of a cart. User identity takes
// precedence over session identity whenever both are present.
type Identity struct {
	UserID    string
	SessionID string
}

// IsZero reports whether neither identity is supplied.
func (id Identity) IsZero() bool {
	return id.UserID == "" && id.SessionID == ""
}

// PromoQuote is the informational result of applying a promo code to the
// current cart. Quoting does not mutate anything; the discount becomes real
// only at checkout.
type PromoQuote struct {
	Code        string          `json:"code"`
	Type        string          `json:"type"`
	Discount    decimal.Decimal `json:"discount"`
	Description string          `json:"description"`
}

// ShippingOption is one quotable delivery method.
type ShippingOption struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	EstimatedDays int             `json:"estimatedDays"`
}

// CartService orchestrates identity resolution, stock-aware cart mutation,
// and guest-cart reconciliation.
type CartService interface {
	// GetOrCreateCart resolves the identity (user first, then session) and
	// returns the existing cart or lazily creates one. Idempotent: repeated
	// calls with the same identity never create duplicate carts.
	GetOrCreateCart(ctx context.Context, identity Identity) (*Cart, error)

	// AddItemToCart re-fetches the product and checks availability against
	// live catalog state before mutating.
	AddItemToCart(ctx context.Context, identity Identity, productID uuid.UUID, quantity int32) (*Cart, error)

	// UpdateItemQuantity sets a line quantity. Zero removes the line;
	// negative quantities are rejected.
	UpdateItemQuantity(ctx context.Context, identity Identity, productID uuid.UUID, quantity int32) (*Cart, error)

	// RemoveItemFromCart deletes a line.
	RemoveItemFromCart(ctx context.Context, identity Identity, productID uuid.UUID) (*Cart, error)

	// ClearCart empties the cart.
	ClearCart(ctx context.Context, identity Identity) (*Cart, error)

	// GetCartSummary returns derived totals.
	GetCartSummary(ctx context.Context, identity Identity) (*CartSummary, error)

	// ValidateCart validates contents against the live catalog, auto-
	// correcting price drift (reported as warnings, not errors).
	ValidateCart(ctx context.Context, identity Identity) (*CartValidation, error)

	// IsProductInCart reports whether the product has a line in the cart.
	IsProductInCart(ctx context.Context, identity Identity, productID uuid.UUID) (bool, error)

	// GetItemQuantity returns the line quantity for the product, zero if absent.
	GetItemQuantity(ctx context.Context, identity Identity, productID uuid.UUID) (int32, error)

	// MergeGuestCartWithUserCart folds a guest cart into the user's cart on
	// login. Returns nil (no error) when there is nothing to merge.
	MergeGuestCartWithUserCart(ctx context.Context, guestSessionID, userID string) (*Cart, error)

	// ApplyPromoCode quotes a discount for the cart. Informational only.
	ApplyPromoCode(ctx context.Context, identity Identity, code string) (*PromoQuote, error)

	// ShippingOptions quotes available delivery methods for the cart.
	ShippingOptions(ctx context.Context, identity Identity) ([]ShippingOption, error)
}

// CheckoutParams is the input to cart checkout.
type CheckoutParams struct {
	Identity        Identity
	CustomerInfo    CustomerInfo
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
	Notes           string
	PromoCode       string
}

// OrderService converts carts and raw payloads into persisted orders and
// manages their lifecycle.
type OrderService interface {
	// CreateOrderFromCart re-validates the cart, snapshots prices and items,
	// persists the order atomically, and clears the cart.
	CreateOrderFromCart(ctx context.Context, params CheckoutParams) (*Order, error)

	// CreateOrder persists a raw shipping+items payload as an order,
	// resolving missing display fields from the catalog.
	CreateOrder(ctx context.Context, payload *OrderPayload) (*Order, error)

	// GetOrder returns the order with items.
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)

	// GetOrderByNumber returns the order with items.
	GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error)

	// GetOrders returns a filtered, paginated listing.
	GetOrders(ctx context.Context, filter OrderFilter) (*OrderPage, error)

	// UpdateOrderStatus applies a fulfillment transition, enforcing the
	// state machine.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus, notes string) (*Order, error)

	// UpdatePaymentStatus applies a payment transition.
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) (*Order, error)

	// AddTrackingNumber records tracking; an order in processing advances to
	// shipped.
	AddTrackingNumber(ctx context.Context, id uuid.UUID, trackingNumber string) (*Order, error)

	// CancelOrder cancels while CanCancel holds, restocking the items.
	CancelOrder(ctx context.Context, id uuid.UUID, reason string) (*Order, error)

	// GetOrderTracking returns the tracking view with the status timeline.
	GetOrderTracking(ctx context.Context, id uuid.UUID) (*OrderTracking, error)
}
