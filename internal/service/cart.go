package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/calebmartin/sif/internal/domain"
	"github.com/calebmartin/sif/internal/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutRates are the pricing knobs applied when deriving cart totals.
type CheckoutRates struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	StandardShippingFee   decimal.Decimal
}

// DefaultCheckoutRates returns the stock configuration: 8% tax, free
// shipping at $75, $9.99 flat fee below it.
func DefaultCheckoutRates() CheckoutRates {
	return CheckoutRates{
		TaxRate:               domain.DefaultTaxRate,
		FreeShippingThreshold: domain.DefaultFreeShippingThreshold,
		StandardShippingFee:   domain.DefaultStandardShippingFee,
	}
}

type cartService struct {
	carts   domain.CartStore
	catalog domain.CatalogReader
	rates   CheckoutRates
	metrics *telemetry.BusinessMetrics
}

// Compile-time check that cartService implements domain.CartService.
var _ domain.CartService = (*cartService)(nil)

// NewCartService creates a CartService backed by the given stores.
// metrics may be nil.
func NewCartService(carts domain.CartStore, catalog domain.CatalogReader, rates CheckoutRates, metrics *telemetry.BusinessMetrics) domain.CartService {
	return &cartService{
		carts:   carts,
		catalog: catalog,
		rates:   rates,
		metrics: metrics,
	}
}

// GetOrCreateCart resolves the identity and returns the existing cart or
// creates one lazily. User identity wins over session identity: a logged-in
// shopper carrying a stale guest cookie always resolves to their user cart.
func (s *cartService) GetOrCreateCart(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	if identity.IsZero() {
		return nil, domain.ErrIdentityRequired
	}

	var (
		cart *domain.Cart
		err  error
	)

	if identity.UserID != "" {
		cart, err = s.carts.FindByUserID(ctx, identity.UserID)
	} else {
		cart, err = s.carts.FindBySessionID(ctx, identity.SessionID)
	}

	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return nil, fmt.Errorf("failed to look up cart: %w", err)
	}

	// User identity takes precedence when both are present: the new cart is
	// bound to the user, not the stale session.
	userID, sessionID := identity.UserID, identity.SessionID
	if userID != "" {
		sessionID = ""
	}

	cart, err = s.carts.Create(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return cart, nil
}

// AddItemToCart checks the product against live catalog state before any
// mutation: existence, active flag, and available stock. The price captured
// into the line is the product's price at this moment.
func (s *cartService) AddItemToCart(ctx context.Context, identity domain.Identity, productID uuid.UUID, quantity int32) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	cart, err := s.GetOrCreateCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	product, err := s.catalog.FindProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, domain.ErrProductInactive
	}
	if !product.CanPurchase(quantity) {
		return nil, domain.Errorf(domain.ECONFLICT, "cart.add_item",
			"Insufficient stock. Available: %d", product.StockCount)
	}

	updated, err := s.carts.AddItem(ctx, cart.ID, productID, quantity, product.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to add item to cart: %w", err)
	}

	if s.metrics != nil {
		s.metrics.CartItemsAdded.Add(float64(quantity))
	}

	return updated, nil
}

// UpdateItemQuantity sets a line quantity directly. Zero is treated as
// removal; negative quantities are rejected; positive quantities are checked
// against live stock.
func (s *cartService) UpdateItemQuantity(ctx context.Context, identity domain.Identity, productID uuid.UUID, quantity int32) (*domain.Cart, error) {
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.RemoveItemFromCart(ctx, identity, productID)
	}

	cart, err := s.GetOrCreateCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	product, err := s.catalog.FindProductByID(ctx, productID)
	if err != nil && !errors.Is(err, domain.ErrProductNotFound) {
		return nil, err
	}
	if product != nil && !product.CanPurchase(quantity) {
		return nil, domain.Errorf(domain.ECONFLICT, "cart.update_quantity",
			"Insufficient stock. Available: %d", product.StockCount)
	}

	updated, err := s.carts.UpdateItemQuantity(ctx, cart.ID, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to update item quantity: %w", err)
	}

	return updated, nil
}

// RemoveItemFromCart deletes a line. Absent lines are a no-op.
func (s *cartService) RemoveItemFromCart(ctx context.Context, identity domain.Identity, productID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.GetOrCreateCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	updated, err := s.carts.RemoveItem(ctx, cart.ID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove item from cart: %w", err)
	}

	return updated, nil
}

// ClearCart empties the cart but keeps the cart row.
func (s *cartService) ClearCart(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	cart, err := s.GetOrCreateCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	updated, err := s.carts.Clear(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	return updated, nil
}

// GetCartSummary returns the derived totals for the resolved cart.
func (s *cartService) GetCartSummary(ctx context.Context, identity domain.Identity) (*domain.CartSummary, error) {
	cart, err := s.GetOrCreateCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	summary := cart.Summary(s.rates.TaxRate, s.rates.FreeShippingThreshold, s.rates.StandardShippingFee)
	return &summary, nil
}

// ValidateCart checks every line against live catalog state. Availability
// problems are collected as errors; price drift is reconciled in place — the
// line's captured price is re-captured at the live value and reported as a
// warning so checkout is not blocked by a stale price.
func (s *cartService) ValidateCart(ctx context.Context, identity domain.Identity) (*domain.CartValidation, error) {
	cart, err := s.GetOrCreateCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	if cart.IsEmpty() {
		return &domain.CartValidation{IsValid: false, Errors: []string{"Cart is empty"}}, nil
	}

	products := make(map[uuid.UUID]*domain.Product, len(cart.Items))
	for _, item := range cart.Items {
		product, err := s.catalog.FindProductByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to look up product %s: %w", item.ProductID, err)
		}
		products[item.ProductID] = product
	}

	validation := cart.Validate(products)

	var warnings []string
	for _, item := range cart.Items {
		product, ok := products[item.ProductID]
		if !ok || !product.IsActive {
			continue
		}
		if !product.Price.Equal(item.UnitPrice) {
			if _, err := s.carts.UpdateItemPrice(ctx, cart.ID, item.ProductID, product.Price); err != nil {
				return nil, fmt.Errorf("failed to reconcile price for product %s: %w", item.ProductID, err)
			}
			warnings = append(warnings, fmt.Sprintf("Price of %s has changed from $%s to $%s",
				product.Name, item.UnitPrice.StringFixed(2), product.Price.StringFixed(2)))
		}
	}
	validation.Warnings = warnings

	return &validation, nil
}

// IsProductInCart reports whether the product has a line in the cart.
func (s *cartService) IsProductInCart(ctx context.Context, identity domain.Identity, productID uuid.UUID) (bool, error) {
	cart, err := s.GetOrCreateCart(ctx, identity)
	if err != nil {
		return false, err
	}
	return cart.Item(productID) != nil, nil
}

// GetItemQuantity returns the line quantity for the product, zero if absent.
func (s *cartService) GetItemQuantity(ctx context.Context, identity domain.Identity, productID uuid.UUID) (int32, error) {
	cart, err := s.GetOrCreateCart(ctx, identity)
	if err != nil {
		return 0, err
	}
	if item := cart.Item(productID); item != nil {
		return item.Quantity, nil
	}
	return 0, nil
}

// MergeGuestCartWithUserCart folds the guest session's cart into the user's
// cart on login: shared products have their quantities summed, everything
// else is copied at its captured price, and the guest cart is deleted. The
// store performs the merge in a single transaction. Returns nil when the
// guest cart is absent or empty.
func (s *cartService) MergeGuestCartWithUserCart(ctx context.Context, guestSessionID, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrIdentityRequired
	}

	guestCart, err := s.carts.FindBySessionID(ctx, guestSessionID)
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up guest cart: %w", err)
	}
	if guestCart.IsEmpty() {
		return nil, nil
	}

	userCart, err := s.carts.FindByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrCartNotFound) {
			return nil, fmt.Errorf("failed to look up user cart: %w", err)
		}
		userCart, err = s.carts.Create(ctx, userID, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create user cart: %w", err)
		}
	}

	merged, err := s.carts.MergeCarts(ctx, guestCart.ID, userCart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to merge carts: %w", err)
	}

	if s.metrics != nil {
		s.metrics.CartMerges.Inc()
	}

	return merged, nil
}

// ApplyPromoCode quotes a discount against the cart's current totals. The
// quote is informational until checkout.
func (s *cartService) ApplyPromoCode(ctx context.Context, identity domain.Identity, code string) (*domain.PromoQuote, error) {
	summary, err := s.GetCartSummary(ctx, identity)
	if err != nil {
		return nil, err
	}

	quote, err := quotePromo(code, *summary)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PromoQuotes.WithLabelValues(quote.Code).Inc()
	}

	return quote, nil
}

// ShippingOptions quotes the flat delivery methods for the cart's subtotal.
func (s *cartService) ShippingOptions(ctx context.Context, identity domain.Identity) ([]domain.ShippingOption, error) {
	summary, err := s.GetCartSummary(ctx, identity)
	if err != nil {
		return nil, err
	}

	standard := s.rates.StandardShippingFee
	if summary.Subtotal.GreaterThanOrEqual(s.rates.FreeShippingThreshold) {
		standard = decimal.Zero
	}

	express := decimal.NewFromFloat(19.99)
	if summary.Subtotal.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		express = decimal.NewFromFloat(15.99)
	}

	return []domain.ShippingOption{
		{ID: "standard", Name: "Standard Shipping", Description: "5-7 business days", Price: standard, EstimatedDays: 7},
		{ID: "express", Name: "Express Shipping", Description: "2-3 business days", Price: express, EstimatedDays: 3},
		{ID: "overnight", Name: "Overnight Shipping", Description: "Next business day", Price: decimal.NewFromFloat(29.99), EstimatedDays: 1},
	}, nil
}
