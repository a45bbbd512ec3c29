package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmartin/sif/internal/domain"
)

func newProduct(name string, price string, stock int32) *domain.Product {
	return &domain.Product{
		ID:         uuid.New(),
		Name:       name,
		Slug:       name,
		Price:      decimal.RequireFromString(price),
		StockCount: stock,
		IsActive:   true,
	}
}

func Test_Cart_AddItem_SumsQuantitiesOntoExistingLine(t *testing.T) {
	cart := &domain.Cart{ID: uuid.New()}
	bear := newProduct("classic-bear", "29.99", 100)

	require.NoError(t, cart.AddItem(bear, 1, decimal.Zero))
	require.NoError(t, cart.AddItem(bear, 2, decimal.Zero))

	assert.Len(t, cart.Items, 1, "adding the same product twice must not create a second line")
	assert.Equal(t, int32(3), cart.Items[0].Quantity)
	assert.Equal(t, int32(3), cart.TotalItems())
}

func Test_Cart_AddItem_CapturesPriceAtAdd(t *testing.T) {
	cart := &domain.Cart{ID: uuid.New()}
	bear := newProduct("classic-bear", "29.99", 100)

	require.NoError(t, cart.AddItem(bear, 2, decimal.Zero))

	// A later catalog price change must not affect the captured line price.
	bear.Price = decimal.RequireFromString("39.99")

	assert.Equal(t, "59.98", cart.Subtotal().StringFixed(2))
	assert.Equal(t, "29.99", cart.Items[0].UnitPrice.StringFixed(2))
}

func Test_Cart_AddItem_ExplicitPriceOverridesProductPrice(t *testing.T) {
	cart := &domain.Cart{ID: uuid.New()}
	bear := newProduct("classic-bear", "29.99", 100)

	require.NoError(t, cart.AddItem(bear, 1, decimal.RequireFromString("24.99")))

	assert.Equal(t, "24.99", cart.Items[0].UnitPrice.StringFixed(2))
}

func Test_Cart_AddItem_RejectsQuantityBelowOne(t *testing.T) {
	cart := &domain.Cart{ID: uuid.New()}
	bear := newProduct("classic-bear", "29.99", 100)

	err := cart.AddItem(bear, 0, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.True(t, cart.IsEmpty())
}

func Test_Cart_UpdateItemQuantity_SetsDirectly(t *testing.T) {
	cart := &domain.Cart{ID: uuid.New()}
	bear := newProduct("classic-bear", "29.99", 100)
	require.NoError(t, cart.AddItem(bear, 5, decimal.Zero))

	cart.UpdateItemQuantity(bear.ID, 2)

	assert.Equal(t, int32(2), cart.Items[0].Quantity, "update sets the quantity, it does not add")
}

func Test_Cart_UpdateItemQuantity_ZeroRemovesLine(t *testing.T) {
	cart := &domain.Cart{ID: uuid.New()}
	bear := newProduct("classic-bear", "29.99", 100)
	require.NoError(t, cart.AddItem(bear, 5, decimal.Zero))

	cart.UpdateItemQuantity(bear.ID, 0)

	assert.True(t, cart.IsEmpty())
}

func Test_Cart_RemoveItem_AbsentProductIsNoOp(t *testing.T) {
	cart := &domain.Cart{ID: uuid.New()}
	bear := newProduct("classic-bear", "29.99", 100)
	require.NoError(t, cart.AddItem(bear, 1, decimal.Zero))

	cart.RemoveItem(uuid.New())

	assert.Len(t, cart.Items, 1)
}

func Test_Cart_Summary_FreeShippingBoundary(t *testing.T) {
	tests := []struct {
		name          string
		unitPrice     string
		wantShipping  string
		wantEligible  bool
		wantRemaining string
	}{
		{
			name:          "exactly at threshold ships free",
			unitPrice:     "75.00",
			wantShipping:  "0.00",
			wantEligible:  true,
			wantRemaining: "0.00",
		},
		{
			name:          "one cent below threshold pays flat fee",
			unitPrice:     "74.99",
			wantShipping:  "9.99",
			wantEligible:  false,
			wantRemaining: "0.01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := &domain.Cart{ID: uuid.New()}
			p := newProduct("bear", tt.unitPrice, 10)
			require.NoError(t, cart.AddItem(p, 1, decimal.Zero))

			s := cart.Summary(domain.DefaultTaxRate, domain.DefaultFreeShippingThreshold, domain.DefaultStandardShippingFee)

			assert.Equal(t, tt.wantShipping, s.Shipping.StringFixed(2))
			assert.Equal(t, tt.wantEligible, s.FreeShippingEligible)
			assert.Equal(t, tt.wantRemaining, s.FreeShippingRemaining.StringFixed(2))
		})
	}
}

func Test_Cart_Summary_RoundsHalfUp(t *testing.T) {
	cart := &domain.Cart{ID: uuid.New()}
	// 3 x 10.99 = 32.97; tax 32.97 * 0.08 = 2.6376 -> 2.64
	p := newProduct("bear", "10.99", 10)
	require.NoError(t, cart.AddItem(p, 3, decimal.Zero))

	s := cart.Summary(domain.DefaultTaxRate, domain.DefaultFreeShippingThreshold, domain.DefaultStandardShippingFee)

	assert.Equal(t, "32.97", s.Subtotal.StringFixed(2))
	assert.Equal(t, "2.64", s.Tax.StringFixed(2))
	assert.Equal(t, "9.99", s.Shipping.StringFixed(2))
	assert.Equal(t, "45.60", s.Total.StringFixed(2))
	assert.Equal(t, int32(3), s.ItemCount)
}

func Test_Cart_Validate_EmptyCart(t *testing.T) {
	cart := &domain.Cart{ID: uuid.New()}

	v := cart.Validate(nil)

	assert.False(t, v.IsValid)
	assert.Equal(t, []string{"Cart is empty"}, v.Errors)
}

func Test_Cart_Validate_CollectsAllProblems(t *testing.T) {
	cart := &domain.Cart{ID: uuid.New()}

	gone := newProduct("gone-bear", "10.00", 5)
	inactive := newProduct("retired-bear", "10.00", 5)
	lowStock := newProduct("popular-bear", "10.00", 1)
	fine := newProduct("classic-bear", "10.00", 50)

	require.NoError(t, cart.AddItem(gone, 1, decimal.Zero))
	require.NoError(t, cart.AddItem(inactive, 1, decimal.Zero))
	require.NoError(t, cart.AddItem(lowStock, 3, decimal.Zero))
	require.NoError(t, cart.AddItem(fine, 2, decimal.Zero))

	inactive.IsActive = false
	catalog := map[uuid.UUID]*domain.Product{
		inactive.ID: inactive,
		lowStock.ID: lowStock,
		fine.ID:     fine,
		// gone intentionally absent
	}

	v := cart.Validate(catalog)

	require.False(t, v.IsValid)
	assert.Contains(t, v.Errors, "Product gone-bear no longer exists")
	assert.Contains(t, v.Errors, "retired-bear is no longer available")
	assert.Contains(t, v.Errors, "Insufficient stock for popular-bear. Available: 1")
	assert.Len(t, v.Errors, 3, "validation must collect every problem, not fail fast")
}

func Test_Cart_AddThenRemove_RestoresEmpty(t *testing.T) {
	cart := &domain.Cart{ID: uuid.New()}
	bear := newProduct("classic-bear", "29.99", 100)
	mini := newProduct("mini-bear", "14.99", 100)

	require.NoError(t, cart.AddItem(bear, 2, decimal.Zero))
	require.NoError(t, cart.AddItem(mini, 1, decimal.Zero))
	cart.RemoveItem(bear.ID)
	cart.RemoveItem(mini.ID)

	assert.True(t, cart.IsEmpty())
	assert.Equal(t, "0.00", cart.Subtotal().StringFixed(2))
}
