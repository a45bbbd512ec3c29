package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/calebmartin/sif/internal/domain"
	"github.com/calebmartin/sif/internal/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type orderService struct {
	orders  domain.OrderStore
	carts   domain.CartStore
	catalog domain.CatalogReader
	cartSvc domain.CartService
	rates   CheckoutRates
	metrics *telemetry.BusinessMetrics
}

// Compile-time check that orderService implements domain.OrderService.
var _ domain.OrderService = (*orderService)(nil)

// NewOrderService creates an OrderService. metrics may be nil.
func NewOrderService(
	orders domain.OrderStore,
	carts domain.CartStore,
	catalog domain.CatalogReader,
	cartSvc domain.CartService,
	rates CheckoutRates,
	metrics *telemetry.BusinessMetrics,
) domain.OrderService {
	return &orderService{
		orders:  orders,
		carts:   carts,
		catalog: catalog,
		cartSvc: cartSvc,
		rates:   rates,
		metrics: metrics,
	}
}

// CreateOrderFromCart converts the shopper's cart into a persisted order.
//
// Flow: resolve the cart, re-validate it against live catalog state (price
// drift is reconciled rather than blocking), derive totals including any
// promo discount, snapshot every line, and hand the payload to the store,
// which persists header, items, stock decrements and the initial status
// event in one transaction. The cart is cleared only after the order commit.
func (s *orderService) CreateOrderFromCart(ctx context.Context, params domain.CheckoutParams) (*domain.Order, error) {
	cart, err := s.cartSvc.GetOrCreateCart(ctx, params.Identity)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.ErrCartEmpty
	}

	validation, err := s.cartSvc.ValidateCart(ctx, params.Identity)
	if err != nil {
		return nil, err
	}
	if !validation.IsValid {
		return nil, domain.Errorf(domain.EINVALID, "order.checkout",
			"Cart validation failed: %s", strings.Join(validation.Errors, "; "))
	}

	// ValidateCart may have re-captured drifted prices; read the cart back so
	// the snapshot reflects the reconciled lines.
	cart, err = s.cartSvc.GetOrCreateCart(ctx, params.Identity)
	if err != nil {
		return nil, err
	}

	summary := cart.Summary(s.rates.TaxRate, s.rates.FreeShippingThreshold, s.rates.StandardShippingFee)

	discount := decimal.Zero
	if params.PromoCode != "" {
		quote, err := quotePromo(params.PromoCode, summary)
		if err != nil {
			return nil, err
		}
		discount = quote.Discount
	}

	items := make([]domain.OrderItemPayload, len(cart.Items))
	for i, line := range cart.Items {
		items[i] = domain.OrderItemPayload{
			ProductID:       line.ProductID,
			ProductName:     line.ProductName,
			ProductSlug:     line.ProductSlug,
			ProductImageURL: line.ProductImageURL,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			TotalPrice:      line.TotalPrice().Round(2),
		}
	}

	payload := &domain.OrderPayload{
		UserID:          cart.UserID,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		Subtotal:        summary.Subtotal,
		TaxAmount:       summary.Tax,
		ShippingAmount:  summary.Shipping,
		DiscountAmount:  discount,
		TotalAmount:     summary.Subtotal.Add(summary.Tax).Add(summary.Shipping).Sub(discount).Round(2),
		Currency:        "USD",
		PaymentMethod:   params.PaymentMethod,
		CustomerInfo:    params.CustomerInfo,
		ShippingAddress: params.ShippingAddress,
		BillingAddress:  params.BillingAddress,
		Notes:           params.Notes,
		Items:           items,
	}

	order, err := s.createValidated(ctx, payload)
	if err != nil {
		return nil, err
	}

	if _, err := s.carts.Clear(ctx, cart.ID); err != nil {
		// The order is committed; a surviving cart must not fail the checkout.
		slog.Default().Warn("order created but cart not cleared",
			slog.String("order_number", order.OrderNumber), slog.Any("error", err))
	}

	return order, nil
}

// CreateOrder persists a raw shipping+items payload. Missing line totals and
// header totals are derived before validation; missing display fields are
// resolved from the catalog by the store inside the creation transaction.
func (s *orderService) CreateOrder(ctx context.Context, payload *domain.OrderPayload) (*domain.Order, error) {
	if len(payload.Items) == 0 {
		return nil, domain.ErrCartEmpty
	}

	if payload.Status == "" {
		payload.Status = domain.OrderStatusPending
	}
	if payload.PaymentStatus == "" {
		payload.PaymentStatus = domain.PaymentStatusPending
	}
	if payload.Currency == "" {
		payload.Currency = "USD"
	}

	subtotal := decimal.Zero
	for i := range payload.Items {
		item := &payload.Items[i]
		if item.TotalPrice.IsZero() {
			item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)).Round(2)
		}
		subtotal = subtotal.Add(item.TotalPrice)
	}
	if payload.Subtotal.IsZero() {
		payload.Subtotal = subtotal.Round(2)
	}
	if payload.TotalAmount.IsZero() {
		payload.TotalAmount = payload.Subtotal.
			Add(payload.TaxAmount).
			Add(payload.ShippingAmount).
			Sub(payload.DiscountAmount).
			Round(2)
	}

	return s.createValidated(ctx, payload)
}

// createValidated enforces the payload invariants and delegates to the store.
func (s *orderService) createValidated(ctx context.Context, payload *domain.OrderPayload) (*domain.Order, error) {
	for i := range payload.Items {
		item := domain.OrderItem{
			ProductID:  payload.Items[i].ProductID,
			Quantity:   payload.Items[i].Quantity,
			UnitPrice:  payload.Items[i].UnitPrice,
			TotalPrice: payload.Items[i].TotalPrice,
		}
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}

	header := domain.Order{
		Subtotal:       payload.Subtotal,
		TaxAmount:      payload.TaxAmount,
		ShippingAmount: payload.ShippingAmount,
		DiscountAmount: payload.DiscountAmount,
		TotalAmount:    payload.TotalAmount,
	}
	if err := header.ValidateTotals(); err != nil {
		return nil, err
	}

	order, err := s.orders.Create(ctx, payload)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
		total, _ := order.TotalAmount.Float64()
		s.metrics.OrderValue.Observe(total)
		s.metrics.OrderItemCount.Observe(float64(len(order.Items)))
	}

	return order, nil
}

// GetOrder returns the order with items.
func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.orders.FindByID(ctx, id)
}

// GetOrderByNumber returns the order with items.
func (s *orderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.orders.FindByNumber(ctx, orderNumber)
}

// GetOrders returns a filtered, paginated listing.
func (s *orderService) GetOrders(ctx context.Context, filter domain.OrderFilter) (*domain.OrderPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	orders, total, err := s.orders.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	totalPages := (total + filter.Limit - 1) / filter.Limit

	return &domain.OrderPage{
		Orders:     orders,
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// UpdateOrderStatus applies a fulfillment transition after checking the
// state machine.
func (s *orderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, notes string) (*domain.Order, error) {
	if !domain.ValidOrderStatus(status) {
		return nil, domain.Invalid("order.update_status", fmt.Sprintf("Invalid status: %s", status))
	}

	// Cancellation must restock the line items; route it through the cancel
	// path rather than writing the status directly.
	if status == domain.OrderStatusCancelled {
		return s.CancelOrder(ctx, id, notes)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.CanTransitionTo(status) {
		return nil, domain.Errorf(domain.ECONFLICT, "order.update_status",
			"Cannot transition order from %s to %s", order.Status, status)
	}

	description := notes
	if description == "" {
		description = statusDescription(status)
	}

	return s.orders.UpdateStatus(ctx, id, status, description)
}

// UpdatePaymentStatus applies a payment transition.
func (s *orderService) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (*domain.Order, error) {
	if !domain.ValidPaymentStatus(status) {
		return nil, domain.Invalid("order.update_payment", fmt.Sprintf("Invalid payment status: %s", status))
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.CanTransitionPaymentTo(status) {
		return nil, domain.Errorf(domain.ECONFLICT, "order.update_payment",
			"Cannot transition payment from %s to %s", order.PaymentStatus, status)
	}

	return s.orders.UpdatePaymentStatus(ctx, id, status)
}

// AddTrackingNumber records the tracking number. An order still in
// processing is advanced to shipped, since tracking implies a handoff to the
// carrier.
func (s *orderService) AddTrackingNumber(ctx context.Context, id uuid.UUID, trackingNumber string) (*domain.Order, error) {
	if trackingNumber == "" {
		return nil, domain.Invalid("order.add_tracking", "Tracking number is required")
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.orders.SetTrackingNumber(ctx, id, trackingNumber)
	if err != nil {
		return nil, err
	}

	if order.Status == domain.OrderStatusProcessing {
		return s.orders.UpdateStatus(ctx, id, domain.OrderStatusShipped, statusDescription(domain.OrderStatusShipped))
	}

	return updated, nil
}

// CancelOrder cancels the order while cancellation is still permitted. The
// store restocks every line item in the same transaction as the status
// change, keeping inventory consistent with the decrement made at creation.
func (s *orderService) CancelOrder(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.CanCancel() {
		return nil, domain.ErrOrderNotCancellable
	}

	if reason == "" {
		reason = statusDescription(domain.OrderStatusCancelled)
	}

	cancelled, err := s.orders.Cancel(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCancelled.Inc()
	}

	return cancelled, nil
}

// GetOrderTracking returns the tracking view backed by the append-only
// status log.
func (s *orderService) GetOrderTracking(ctx context.Context, id uuid.UUID) (*domain.OrderTracking, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	events, err := s.orders.StatusEvents(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.OrderTracking{
		OrderID:           order.ID,
		OrderNumber:       order.OrderNumber,
		Status:            order.Status,
		TrackingNumber:    order.TrackingNumber,
		OrderDate:         order.CreatedAt,
		EstimatedDelivery: order.EstimatedDelivery(),
		StatusHistory:     events,
	}, nil
}

// statusDescription maps statuses to shopper-facing timeline text.
func statusDescription(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusPending:
		return "Order placed and awaiting confirmation"
	case domain.OrderStatusConfirmed:
		return "Order confirmed and being prepared"
	case domain.OrderStatusProcessing:
		return "Order is being processed"
	case domain.OrderStatusShipped:
		return "Order has been shipped"
	case domain.OrderStatusDelivered:
		return "Order has been delivered"
	case domain.OrderStatusCancelled:
		return "Order has been cancelled"
	case domain.OrderStatusRefunded:
		return "Order has been refunded"
	default:
		return "Status updated"
	}
}
