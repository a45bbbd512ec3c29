package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart domain errors.
var (
	ErrCartNotFound     = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrCartEmpty        = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrIdentityRequired = &Error{Code: EINVALID, Message: "A user or session identity is required"}
)

// Default checkout knobs. Services may override these from configuration.
var (
	DefaultTaxRate               = decimal.NewFromFloat(0.08)
	DefaultFreeShippingThreshold = decimal.NewFromInt(75)
	DefaultStandardShippingFee   = decimal.NewFromFloat(9.99)
)

// Cart is one shopper's in-progress selection. Exactly one of UserID or
// SessionID is set; a cart with neither is invalid.
type Cart struct {
	ID        uuid.UUID
	UserID    string
	SessionID string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem is a priced line in a cart. UnitPrice is captured at the moment
// the product was added and is not re-fetched from the catalog on reads.
type CartItem struct {
	ID              uuid.UUID
	CartID          uuid.UUID
	ProductID       uuid.UUID
	ProductName     string
	ProductSlug     string
	ProductImageURL string
	Quantity        int32
	UnitPrice       decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TotalPrice returns quantity x captured unit price.
func (ci *CartItem) TotalPrice() decimal.Decimal {
	return ci.UnitPrice.Mul(decimal.NewFromInt32(ci.Quantity))
}

// CartSummary is the derived totals view of a cart. Monetary values are
// rounded to 2 decimals, half up.
type CartSummary struct {
	ItemCount             int32           `json:"itemCount"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	Tax                   decimal.Decimal `json:"tax"`
	Shipping              decimal.Decimal `json:"shipping"`
	Total                 decimal.Decimal `json:"total"`
	FreeShippingEligible  bool            `json:"freeShippingEligible"`
	FreeShippingRemaining decimal.Decimal `json:"freeShippingRemaining"`
}

// CartValidation is the soft result of validating cart contents against the
// live catalog. Business-rule violations are collected, never thrown.
type CartValidation struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

// AddItem puts quantity units of product into the cart at price. If the
// product is already present the quantities are summed onto the existing
// line; a second row is never created. A zero price means "use the product's
// current catalog price".
func (c *Cart) AddItem(product *Product, quantity int32, price decimal.Decimal) error {
	itemPrice := price
	if itemPrice.IsZero() {
		itemPrice = product.Price
	}

	for i := range c.Items {
		if c.Items[i].ProductID == product.ID {
			next := c.Items[i].Quantity + quantity
			if next < 1 {
				return ErrInvalidQuantity
			}
			c.Items[i].Quantity = next
			return nil
		}
	}

	if quantity < 1 {
		return ErrInvalidQuantity
	}

	c.Items = append(c.Items, CartItem{
		CartID:          c.ID,
		ProductID:       product.ID,
		ProductName:     product.Name,
		ProductSlug:     product.Slug,
		ProductImageURL: product.ImageURL,
		Quantity:        quantity,
		UnitPrice:       itemPrice,
	})
	return nil
}

// RemoveItem deletes the line for productID. Removing an absent product is a
// no-op, not an error.
func (c *Cart) RemoveItem(productID uuid.UUID) {
	items := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID != productID {
			items = append(items, item)
		}
	}
	c.Items = items
}

// UpdateItemQuantity sets the line quantity directly (it does not add to the
// existing quantity). A quantity of zero or less removes the line.
func (c *Cart) UpdateItemQuantity(productID uuid.UUID, quantity int32) {
	if quantity <= 0 {
		c.RemoveItem(productID)
		return
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			return
		}
	}
}

// Item returns the line for productID, or nil if absent.
func (c *Cart) Item(productID uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// Clear drops all lines.
func (c *Cart) Clear() {
	c.Items = nil
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// TotalItems returns the sum of line quantities.
func (c *Cart) TotalItems() int32 {
	var total int32
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Subtotal sums line totals using each line's captured price, not the live
// catalog price.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.TotalPrice())
	}
	return total
}

// CalculateTax returns subtotal x rate.
func (c *Cart) CalculateTax(rate decimal.Decimal) decimal.Decimal {
	return c.Subtotal().Mul(rate)
}

// CalculateShipping returns zero when the subtotal meets freeThreshold, else
// the flat fee.
func (c *Cart) CalculateShipping(freeThreshold, flatFee decimal.Decimal) decimal.Decimal {
	if c.Subtotal().GreaterThanOrEqual(freeThreshold) {
		return decimal.Zero
	}
	return flatFee
}

// Summary derives the totals view. All monetary values are rounded to
// 2 decimals half up.
func (c *Cart) Summary(taxRate, freeThreshold, flatFee decimal.Decimal) CartSummary {
	subtotal := c.Subtotal()
	tax := c.CalculateTax(taxRate)
	shipping := c.CalculateShipping(freeThreshold, flatFee)
	total := subtotal.Add(tax).Add(shipping)

	remaining := decimal.Zero
	if shipping.IsPositive() {
		remaining = freeThreshold.Sub(subtotal).Round(2)
	}

	return CartSummary{
		ItemCount:             c.TotalItems(),
		Subtotal:              subtotal.Round(2),
		Tax:                   tax.Round(2),
		Shipping:              shipping.Round(2),
		Total:                 total.Round(2),
		FreeShippingEligible:  shipping.IsZero(),
		FreeShippingRemaining: remaining,
	}
}

// Validate checks every line against the supplied catalog snapshot and
// collects error strings rather than failing fast. An empty cart is invalid
// with the single error "Cart is empty". Products absent from the map are
// reported as no longer existing.
func (c *Cart) Validate(products map[uuid.UUID]*Product) CartValidation {
	if c.IsEmpty() {
		return CartValidation{IsValid: false, Errors: []string{"Cart is empty"}}
	}

	var errs []string
	for _, item := range c.Items {
		product, ok := products[item.ProductID]
		if !ok || product == nil {
			errs = append(errs, fmt.Sprintf("Product %s no longer exists", item.ProductName))
			continue
		}
		if !product.IsActive {
			errs = append(errs, fmt.Sprintf("%s is no longer available", product.Name))
			continue
		}
		if !product.IsInStock() {
			errs = append(errs, fmt.Sprintf("%s is out of stock", product.Name))
			continue
		}
		if product.StockCount < item.Quantity {
			errs = append(errs, fmt.Sprintf("Insufficient stock for %s. Available: %d", product.Name, product.StockCount))
		}
	}

	return CartValidation{IsValid: len(errs) == 0, Errors: errs}
}

// CartStore persists one cart per identity along with its items.
// Mutations return the full re-read cart so callers always see totals that
// reflect the write they just made.
type CartStore interface {
	// FindByUserID returns the user's cart with items, or ErrCartNotFound.
	FindByUserID(ctx context.Context, userID string) (*Cart, error)

	// FindBySessionID returns the session's cart with items, or ErrCartNotFound.
	FindBySessionID(ctx context.Context, sessionID string) (*Cart, error)

	// Create inserts a cart bound to the given identity. At most one of
	// userID and sessionID may be empty. Concurrent creates for the same new
	// identity resolve to the existing row rather than failing.
	Create(ctx context.Context, userID, sessionID string) (*Cart, error)

	// AddItem upserts a line: a new product inserts a row at unitPrice, an
	// existing product has quantity added onto its current line.
	AddItem(ctx context.Context, cartID, productID uuid.UUID, quantity int32, unitPrice decimal.Decimal) (*Cart, error)

	// UpdateItemQuantity sets a line's quantity directly. Quantity <= 0
	// removes the line.
	UpdateItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int32) (*Cart, error)

	// UpdateItemPrice re-captures a line's unit price (price-drift correction).
	UpdateItemPrice(ctx context.Context, cartID, productID uuid.UUID, unitPrice decimal.Decimal) (*Cart, error)

	// RemoveItem deletes a line; absent lines are a no-op.
	RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (*Cart, error)

	// Clear removes every line but keeps the cart row.
	Clear(ctx context.Context, cartID uuid.UUID) (*Cart, error)

	// Delete drops the cart and its lines.
	Delete(ctx context.Context, cartID uuid.UUID) error

	// MergeCarts folds the guest cart's lines into the user cart (quantities
	// summed for shared products, captured prices kept otherwise) and deletes
	// the guest cart, all within a single transaction.
	MergeCarts(ctx context.Context, guestCartID, userCartID uuid.UUID) (*Cart, error)
}
