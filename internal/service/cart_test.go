package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmartin/sif/internal/domain"
	"github.com/calebmartin/sif/internal/service"
)

func newCatalogProduct(name, price string, stock int32) *domain.Product {
	return &domain.Product{
		ID:         uuid.New(),
		Name:       name,
		Slug:       name,
		Price:      decimal.RequireFromString(price),
		StockCount: stock,
		IsActive:   true,
	}
}

func newCartService(carts domain.CartStore, catalog domain.CatalogReader) domain.CartService {
	return service.NewCartService(carts, catalog, service.DefaultCheckoutRates(), nil)
}

func TestCartService_GetOrCreateCart(t *testing.T) {
	ctx := context.Background()

	t.Run("requires an identity", func(t *testing.T) {
		svc := newCartService(newMemCartStore(), newMemCatalog())

		_, err := svc.GetOrCreateCart(ctx, domain.Identity{})
		assert.ErrorIs(t, err, domain.ErrIdentityRequired)
	})

	t.Run("creates lazily and is idempotent", func(t *testing.T) {
		carts := newMemCartStore()
		svc := newCartService(carts, newMemCatalog())
		identity := domain.Identity{SessionID: "sess-1"}

		first, err := svc.GetOrCreateCart(ctx, identity)
		require.NoError(t, err)

		second, err := svc.GetOrCreateCart(ctx, identity)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Len(t, carts.carts, 1)
	})

	t.Run("user identity wins over session identity", func(t *testing.T) {
		carts := newMemCartStore()
		svc := newCartService(carts, newMemCatalog())

		userCart, err := svc.GetOrCreateCart(ctx, domain.Identity{UserID: "user-1"})
		require.NoError(t, err)

		resolved, err := svc.GetOrCreateCart(ctx, domain.Identity{UserID: "user-1", SessionID: "sess-1"})
		require.NoError(t, err)

		assert.Equal(t, userCart.ID, resolved.ID)
		assert.Equal(t, "user-1", resolved.UserID)
	})

	t.Run("new cart with both identities binds to the user", func(t *testing.T) {
		carts := newMemCartStore()
		svc := newCartService(carts, newMemCatalog())

		cart, err := svc.GetOrCreateCart(ctx, domain.Identity{UserID: "user-1", SessionID: "sess-1"})
		require.NoError(t, err)

		assert.Equal(t, "user-1", cart.UserID)
		assert.Empty(t, cart.SessionID)
	})
}

func TestCartService_AddItemToCart(t *testing.T) {
	ctx := context.Background()
	identity := domain.Identity{SessionID: "sess-1"}

	t.Run("captures the catalog price at add time", func(t *testing.T) {
		bear := newCatalogProduct("classic-bear", "29.99", 10)
		svc := newCartService(newMemCartStore(), newMemCatalog(bear))

		cart, err := svc.AddItemToCart(ctx, identity, bear.ID, 2)
		require.NoError(t, err)

		require.Len(t, cart.Items, 1)
		assert.True(t, cart.Items[0].UnitPrice.Equal(decimal.RequireFromString("29.99")))
		assert.Equal(t, int32(2), cart.Items[0].Quantity)
	})

	t.Run("adding the same product sums the line", func(t *testing.T) {
		bear := newCatalogProduct("classic-bear", "29.99", 10)
		svc := newCartService(newMemCartStore(), newMemCatalog(bear))

		_, err := svc.AddItemToCart(ctx, identity, bear.ID, 2)
		require.NoError(t, err)

		cart, err := svc.AddItemToCart(ctx, identity, bear.ID, 3)
		require.NoError(t, err)

		require.Len(t, cart.Items, 1)
		assert.Equal(t, int32(5), cart.Items[0].Quantity)
	})

	t.Run("rejects quantity below one", func(t *testing.T) {
		bear := newCatalogProduct("classic-bear", "29.99", 10)
		svc := newCartService(newMemCartStore(), newMemCatalog(bear))

		_, err := svc.AddItemToCart(ctx, identity, bear.ID, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	})

	t.Run("rejects an unknown product", func(t *testing.T) {
		svc := newCartService(newMemCartStore(), newMemCatalog())

		_, err := svc.AddItemToCart(ctx, identity, uuid.New(), 1)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("rejects an inactive product", func(t *testing.T) {
		retired := newCatalogProduct("retired-bear", "19.99", 5)
		retired.IsActive = false
		svc := newCartService(newMemCartStore(), newMemCatalog(retired))

		_, err := svc.AddItemToCart(ctx, identity, retired.ID, 1)
		assert.ErrorIs(t, err, domain.ErrProductInactive)
	})

	t.Run("rejects when stock is insufficient", func(t *testing.T) {
		scarce := newCatalogProduct("scarce-bear", "49.99", 1)
		svc := newCartService(newMemCartStore(), newMemCatalog(scarce))

		_, err := svc.AddItemToCart(ctx, identity, scarce.ID, 2)
		require.Error(t, err)
		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
		assert.Equal(t, "Insufficient stock. Available: 1", domain.ErrorMessage(err))
	})
}

func TestCartService_UpdateItemQuantity(t *testing.T) {
	ctx := context.Background()
	identity := domain.Identity{SessionID: "sess-1"}

	t.Run("sets the quantity directly", func(t *testing.T) {
		bear := newCatalogProduct("classic-bear", "29.99", 10)
		svc := newCartService(newMemCartStore(), newMemCatalog(bear))

		_, err := svc.AddItemToCart(ctx, identity, bear.ID, 5)
		require.NoError(t, err)

		cart, err := svc.UpdateItemQuantity(ctx, identity, bear.ID, 2)
		require.NoError(t, err)

		require.Len(t, cart.Items, 1)
		assert.Equal(t, int32(2), cart.Items[0].Quantity)
	})

	t.Run("zero removes the line", func(t *testing.T) {
		bear := newCatalogProduct("classic-bear", "29.99", 10)
		svc := newCartService(newMemCartStore(), newMemCatalog(bear))

		_, err := svc.AddItemToCart(ctx, identity, bear.ID, 2)
		require.NoError(t, err)

		cart, err := svc.UpdateItemQuantity(ctx, identity, bear.ID, 0)
		require.NoError(t, err)

		assert.Empty(t, cart.Items)
	})

	t.Run("rejects negative quantities", func(t *testing.T) {
		bear := newCatalogProduct("classic-bear", "29.99", 10)
		svc := newCartService(newMemCartStore(), newMemCatalog(bear))

		_, err := svc.UpdateItemQuantity(ctx, identity, bear.ID, -1)
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	})

	t.Run("rejects quantities above live stock", func(t *testing.T) {
		scarce := newCatalogProduct("scarce-bear", "49.99", 3)
		svc := newCartService(newMemCartStore(), newMemCatalog(scarce))

		_, err := svc.AddItemToCart(ctx, identity, scarce.ID, 2)
		require.NoError(t, err)

		_, err = svc.UpdateItemQuantity(ctx, identity, scarce.ID, 4)
		require.Error(t, err)
		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	})
}

func TestCartService_ClearCart(t *testing.T) {
	ctx := context.Background()
	identity := domain.Identity{SessionID: "sess-1"}

	bear := newCatalogProduct("classic-bear", "29.99", 10)
	svc := newCartService(newMemCartStore(), newMemCatalog(bear))

	_, err := svc.AddItemToCart(ctx, identity, bear.ID, 2)
	require.NoError(t, err)

	cart, err := svc.ClearCart(ctx, identity)
	require.NoError(t, err)

	assert.Empty(t, cart.Items)
	assert.True(t, cart.IsEmpty())
}

func TestCartService_GetCartSummary(t *testing.T) {
	ctx := context.Background()
	identity := domain.Identity{SessionID: "sess-1"}

	bear := newCatalogProduct("classic-bear", "29.99", 10)
	svc := newCartService(newMemCartStore(), newMemCatalog(bear))

	_, err := svc.AddItemToCart(ctx, identity, bear.ID, 2)
	require.NoError(t, err)

	summary, err := svc.GetCartSummary(ctx, identity)
	require.NoError(t, err)

	assert.Equal(t, "59.98", summary.Subtotal.StringFixed(2))
	assert.Equal(t, "4.80", summary.Tax.StringFixed(2))
	assert.Equal(t, "9.99", summary.Shipping.StringFixed(2))
	assert.Equal(t, "74.77", summary.Total.StringFixed(2))
	assert.Equal(t, int32(2), summary.ItemCount)
}

func TestCartService_ValidateCart_ReconcilesPriceDrift(t *testing.T) {
	ctx := context.Background()
	identity := domain.Identity{SessionID: "sess-1"}

	bear := newCatalogProduct("Classic Bear", "29.99", 10)
	catalog := newMemCatalog(bear)
	carts := newMemCartStore()
	svc := newCartService(carts, catalog)

	_, err := svc.AddItemToCart(ctx, identity, bear.ID, 1)
	require.NoError(t, err)

	// Catalog price moves after the line was captured.
	bear.Price = decimal.RequireFromString("34.99")

	validation, err := svc.ValidateCart(ctx, identity)
	require.NoError(t, err)

	assert.True(t, validation.IsValid)
	require.Len(t, validation.Warnings, 1)
	assert.Equal(t, "Price of Classic Bear has changed from $29.99 to $34.99", validation.Warnings[0])

	// The line price was re-captured at the live value.
	cart, err := svc.GetOrCreateCart(ctx, identity)
	require.NoError(t, err)
	assert.True(t, cart.Items[0].UnitPrice.Equal(decimal.RequireFromString("34.99")))
}

func TestCartService_ValidateCart_EmptyCart(t *testing.T) {
	ctx := context.Background()
	svc := newCartService(newMemCartStore(), newMemCatalog())

	validation, err := svc.ValidateCart(ctx, domain.Identity{SessionID: "sess-1"})
	require.NoError(t, err)

	assert.False(t, validation.IsValid)
	assert.Equal(t, []string{"Cart is empty"}, validation.Errors)
}

func TestCartService_MergeGuestCartWithUserCart(t *testing.T) {
	ctx := context.Background()

	t.Run("sums shared lines and copies the rest", func(t *testing.T) {
		bear := newCatalogProduct("classic-bear", "29.99", 10)
		bouquet := newCatalogProduct("bear-bouquet", "59.99", 10)
		catalog := newMemCatalog(bear, bouquet)
		carts := newMemCartStore()
		svc := newCartService(carts, catalog)

		_, err := svc.AddItemToCart(ctx, domain.Identity{UserID: "user-1"}, bear.ID, 1)
		require.NoError(t, err)

		guest := domain.Identity{SessionID: "sess-1"}
		_, err = svc.AddItemToCart(ctx, guest, bear.ID, 2)
		require.NoError(t, err)
		_, err = svc.AddItemToCart(ctx, guest, bouquet.ID, 1)
		require.NoError(t, err)

		merged, err := svc.MergeGuestCartWithUserCart(ctx, "sess-1", "user-1")
		require.NoError(t, err)
		require.NotNil(t, merged)

		quantities := make(map[uuid.UUID]int32, len(merged.Items))
		for _, item := range merged.Items {
			quantities[item.ProductID] = item.Quantity
		}
		assert.Equal(t, int32(3), quantities[bear.ID])
		assert.Equal(t, int32(1), quantities[bouquet.ID])

		// The guest cart is gone.
		_, err = carts.FindBySessionID(ctx, "sess-1")
		assert.ErrorIs(t, err, domain.ErrCartNotFound)
	})

	t.Run("no guest cart is a no-op", func(t *testing.T) {
		svc := newCartService(newMemCartStore(), newMemCatalog())

		merged, err := svc.MergeGuestCartWithUserCart(ctx, "sess-missing", "user-1")
		require.NoError(t, err)
		assert.Nil(t, merged)
	})

	t.Run("empty guest cart is a no-op", func(t *testing.T) {
		carts := newMemCartStore()
		svc := newCartService(carts, newMemCatalog())

		_, err := svc.GetOrCreateCart(ctx, domain.Identity{SessionID: "sess-1"})
		require.NoError(t, err)

		merged, err := svc.MergeGuestCartWithUserCart(ctx, "sess-1", "user-1")
		require.NoError(t, err)
		assert.Nil(t, merged)
	})

	t.Run("creates the user cart when absent", func(t *testing.T) {
		bear := newCatalogProduct("classic-bear", "29.99", 10)
		carts := newMemCartStore()
		svc := newCartService(carts, newMemCatalog(bear))

		_, err := svc.AddItemToCart(ctx, domain.Identity{SessionID: "sess-1"}, bear.ID, 2)
		require.NoError(t, err)

		merged, err := svc.MergeGuestCartWithUserCart(ctx, "sess-1", "user-1")
		require.NoError(t, err)
		require.NotNil(t, merged)

		assert.Equal(t, "user-1", merged.UserID)
		require.Len(t, merged.Items, 1)
		assert.Equal(t, int32(2), merged.Items[0].Quantity)
	})

	t.Run("requires a user id", func(t *testing.T) {
		svc := newCartService(newMemCartStore(), newMemCatalog())

		_, err := svc.MergeGuestCartWithUserCart(ctx, "sess-1", "")
		assert.ErrorIs(t, err, domain.ErrIdentityRequired)
	})
}

func TestCartService_ApplyPromoCode(t *testing.T) {
	ctx := context.Background()
	identity := domain.Identity{SessionID: "sess-1"}

	setup := func(t *testing.T, price string, quantity int32) domain.CartService {
		t.Helper()
		bear := newCatalogProduct("classic-bear", price, 100)
		svc := newCartService(newMemCartStore(), newMemCatalog(bear))
		_, err := svc.AddItemToCart(ctx, identity, bear.ID, quantity)
		require.NoError(t, err)
		return svc
	}

	t.Run("percentage discount", func(t *testing.T) {
		svc := setup(t, "50.00", 2) // $100 subtotal

		quote, err := svc.ApplyPromoCode(ctx, identity, "welcome10")
		require.NoError(t, err)

		assert.Equal(t, "WELCOME10", quote.Code)
		assert.Equal(t, "percentage", quote.Type)
		assert.Equal(t, "10.00", quote.Discount.StringFixed(2))
		assert.Equal(t, "10% off your order", quote.Description)
	})

	t.Run("fixed discount", func(t *testing.T) {
		svc := setup(t, "40.00", 2) // $80 subtotal

		quote, err := svc.ApplyPromoCode(ctx, identity, "GRAD2024")
		require.NoError(t, err)

		assert.Equal(t, "fixed", quote.Type)
		assert.Equal(t, "15.00", quote.Discount.StringFixed(2))
	})

	t.Run("free shipping discount equals the shipping amount", func(t *testing.T) {
		svc := setup(t, "30.00", 1) // $30 subtotal, below the free threshold

		quote, err := svc.ApplyPromoCode(ctx, identity, "FREESHIP")
		require.NoError(t, err)

		assert.Equal(t, "free_shipping", quote.Type)
		assert.Equal(t, "9.99", quote.Discount.StringFixed(2))
	})

	t.Run("below the minimum order amount", func(t *testing.T) {
		svc := setup(t, "30.00", 1) // $30 subtotal, WELCOME10 needs $50

		_, err := svc.ApplyPromoCode(ctx, identity, "WELCOME10")
		require.Error(t, err)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		assert.Equal(t, "Minimum order amount of $50 required for this promo code", domain.ErrorMessage(err))
	})

	t.Run("unknown code", func(t *testing.T) {
		svc := setup(t, "50.00", 2)

		_, err := svc.ApplyPromoCode(ctx, identity, "BOGUS")
		assert.ErrorIs(t, err, domain.ErrInvalidPromoCode)
	})
}

func TestCartService_ShippingOptions(t *testing.T) {
	ctx := context.Background()
	identity := domain.Identity{SessionID: "sess-1"}

	t.Run("below the free shipping threshold", func(t *testing.T) {
		bear := newCatalogProduct("classic-bear", "30.00", 10)
		svc := newCartService(newMemCartStore(), newMemCatalog(bear))
		_, err := svc.AddItemToCart(ctx, identity, bear.ID, 1)
		require.NoError(t, err)

		options, err := svc.ShippingOptions(ctx, identity)
		require.NoError(t, err)
		require.Len(t, options, 3)

		assert.Equal(t, "standard", options[0].ID)
		assert.Equal(t, "9.99", options[0].Price.StringFixed(2))
		assert.Equal(t, "19.99", options[1].Price.StringFixed(2))
		assert.Equal(t, "29.99", options[2].Price.StringFixed(2))
	})

	t.Run("free standard and discounted express on large carts", func(t *testing.T) {
		bear := newCatalogProduct("deluxe-bear", "60.00", 10)
		svc := newCartService(newMemCartStore(), newMemCatalog(bear))
		_, err := svc.AddItemToCart(ctx, identity, bear.ID, 2) // $120 subtotal
		require.NoError(t, err)

		options, err := svc.ShippingOptions(ctx, identity)
		require.NoError(t, err)

		assert.True(t, options[0].Price.IsZero())
		assert.Equal(t, "15.99", options[1].Price.StringFixed(2))
	})
}
