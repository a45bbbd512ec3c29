package service

import (
	"fmt"
	"strings"

	"github.com/calebmartin/sif/internal/domain"
	"github.com/shopspring/decimal"
)

// Promo discount kinds.
const (
	PromoTypePercentage   = "percentage"
	PromoTypeFixed        = "fixed"
	PromoTypeFreeShipping = "free_shipping"
)

// promoCode is one row of the flat promo lookup table. There is no rule
// engine behind this; codes are matched by name and gated on a subtotal
// minimum only.
type promoCode struct {
	Type      string
	Value     decimal.Decimal
	MinAmount decimal.Decimal
}

var promoCodes = map[string]promoCode{
	"WELCOME10": {Type: PromoTypePercentage, Value: decimal.NewFromInt(10), MinAmount: decimal.NewFromInt(50)},
	"GRAD2024":  {Type: PromoTypeFixed, Value: decimal.NewFromInt(15), MinAmount: decimal.NewFromInt(75)},
	"FREESHIP":  {Type: PromoTypeFreeShipping, Value: decimal.Zero, MinAmount: decimal.NewFromInt(25)},
}

// quotePromo computes the discount a code would grant against the given cart
// summary. The quote is informational; nothing is persisted.
func quotePromo(code string, summary domain.CartSummary) (*domain.PromoQuote, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	promo, ok := promoCodes[normalized]
	if !ok {
		return nil, domain.ErrInvalidPromoCode
	}

	if summary.Subtotal.LessThan(promo.MinAmount) {
		return nil, domain.Errorf(domain.EINVALID, "cart.apply_promo",
			"Minimum order amount of $%s required for this promo code", promo.MinAmount.StringFixed(0))
	}

	var discount decimal.Decimal
	switch promo.Type {
	case PromoTypePercentage:
		discount = summary.Subtotal.Mul(promo.Value).Div(decimal.NewFromInt(100))
	case PromoTypeFixed:
		// A fixed discount never exceeds the subtotal.
		discount = decimal.Min(promo.Value, summary.Subtotal)
	case PromoTypeFreeShipping:
		discount = summary.Shipping
	}

	return &domain.PromoQuote{
		Code:        normalized,
		Type:        promo.Type,
		Discount:    discount.Round(2),
		Description: promoDescription(promo),
	}, nil
}

func promoDescription(promo promoCode) string {
	switch promo.Type {
	case PromoTypePercentage:
		return fmt.Sprintf("%s%% off your order", promo.Value.StringFixed(0))
	case PromoTypeFixed:
		return fmt.Sprintf("$%s off your order", promo.Value.StringFixed(0))
	case PromoTypeFreeShipping:
		return "Free shipping on your order"
	default:
		return "Discount applied"
	}
}
