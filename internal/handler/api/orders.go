package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/calebmartin/sif/internal/domain"
	"github.com/calebmartin/sif/internal/middleware"
	"github.com/calebmartin/sif/internal/router"
)

// OrderHandler exposes checkout and order lifecycle over JSON.
type OrderHandler struct {
	orderService domain.OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService domain.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// RegisterRoutes registers order routes on the router.
func (h *OrderHandler) RegisterRoutes(r *router.Router) {
	r.Post("/api/orders", h.Checkout)
	r.Get("/api/orders", h.List)
	r.Get("/api/orders/{id}", h.Get)
	r.Get("/api/orders/number/{orderNumber}", h.GetByNumber)
	r.Get("/api/orders/{id}/tracking", h.Tracking)
	r.Put("/api/orders/{id}/status", h.UpdateStatus)
	r.Put("/api/orders/{id}/payment", h.UpdatePayment)
	r.Put("/api/orders/{id}/shipping", h.AddTracking)
	r.Post("/api/orders/{id}/cancel", h.Cancel)
}

type orderItemResponse struct {
	ProductID  string          `json:"productId"`
	Name       string          `json:"name"`
	Slug       string          `json:"slug"`
	ImageURL   string          `json:"imageUrl,omitempty"`
	Quantity   int32           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type orderResponse struct {
	ID                string               `json:"id"`
	OrderNumber       string               `json:"orderNumber"`
	UserID            string               `json:"userId,omitempty"`
	Status            domain.OrderStatus   `json:"status"`
	PaymentStatus     domain.PaymentStatus `json:"paymentStatus"`
	Subtotal          decimal.Decimal      `json:"subtotal"`
	TaxAmount         decimal.Decimal      `json:"taxAmount"`
	ShippingAmount    decimal.Decimal      `json:"shippingAmount"`
	DiscountAmount    decimal.Decimal      `json:"discountAmount"`
	TotalAmount       decimal.Decimal      `json:"totalAmount"`
	Currency          string               `json:"currency"`
	PaymentMethod     string               `json:"paymentMethod,omitempty"`
	Customer          domain.CustomerInfo  `json:"customer"`
	ShippingAddress   domain.Address       `json:"shippingAddress"`
	BillingAddress    domain.Address       `json:"billingAddress"`
	Notes             string               `json:"notes,omitempty"`
	TrackingNumber    string               `json:"trackingNumber,omitempty"`
	Items             []orderItemResponse  `json:"items"`
	EstimatedDelivery time.Time            `json:"estimatedDelivery"`
	CreatedAt         time.Time            `json:"createdAt"`
}

func toOrderResponse(order *domain.Order) orderResponse {
	items := make([]orderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemResponse{
			ProductID:  item.ProductID.String(),
			Name:       item.ProductName,
			Slug:       item.ProductSlug,
			ImageURL:   item.ProductImageURL,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		}
	}
	return orderResponse{
		ID:                order.ID.String(),
		OrderNumber:       order.OrderNumber,
		UserID:            order.UserID,
		Status:            order.Status,
		PaymentStatus:     order.PaymentStatus,
		Subtotal:          order.Subtotal,
		TaxAmount:         order.TaxAmount,
		ShippingAmount:    order.ShippingAmount,
		DiscountAmount:    order.DiscountAmount,
		TotalAmount:       order.TotalAmount,
		Currency:          order.Currency,
		PaymentMethod:     order.PaymentMethod,
		Customer:          order.CustomerInfo,
		ShippingAddress:   order.ShippingAddress,
		BillingAddress:    order.BillingAddress,
		Notes:             order.Notes,
		TrackingNumber:    order.TrackingNumber,
		Items:             items,
		EstimatedDelivery: order.EstimatedDelivery(),
		CreatedAt:         order.CreatedAt,
	}
}

func orderIDFromPath(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, domain.Invalid("api.orders", "Invalid order ID")
	}
	return id, nil
}

// Checkout handles POST /api/orders: creates an order from the current cart.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Customer        domain.CustomerInfo `json:"customer"`
		ShippingAddress domain.Address      `json:"shippingAddress"`
		BillingAddress  domain.Address      `json:"billingAddress"`
		PaymentMethod   string              `json:"paymentMethod"`
		Notes           string              `json:"notes"`
		PromoCode       string              `json:"promoCode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	order, err := h.orderService.CreateOrderFromCart(r.Context(), domain.CheckoutParams{
		Identity:        middleware.GetIdentity(r.Context()),
		CustomerInfo:    req.Customer,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		PromoCode:       req.PromoCode,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, toOrderResponse(order))
}

// List handles GET /api/orders with status/date filters and pagination.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.OrderFilter{
		Status: domain.OrderStatus(q.Get("status")),
		UserID: q.Get("userId"),
	}
	if filter.UserID == "" {
		filter.UserID = middleware.GetIdentity(r.Context()).UserID
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if start, err := time.Parse(time.RFC3339, q.Get("startDate")); err == nil {
		filter.StartDate = &start
	}
	if end, err := time.Parse(time.RFC3339, q.Get("endDate")); err == nil {
		filter.EndDate = &end
	}

	page, err := h.orderService.GetOrders(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	orders := make([]orderResponse, len(page.Orders))
	for i := range page.Orders {
		orders[i] = toOrderResponse(&page.Orders[i])
	}
	respondData(w, http.StatusOK, map[string]any{
		"orders":     orders,
		"page":       page.Page,
		"limit":      page.Limit,
		"total":      page.Total,
		"totalPages": page.TotalPages,
	})
}

// Get handles GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDFromPath(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toOrderResponse(order))
}

// GetByNumber handles GET /api/orders/number/{orderNumber}
func (h *OrderHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrderByNumber(r.Context(), r.PathValue("orderNumber"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toOrderResponse(order))
}

// Tracking handles GET /api/orders/{id}/tracking
func (h *OrderHandler) Tracking(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDFromPath(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	tracking, err := h.orderService.GetOrderTracking(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, tracking)
}

// UpdateStatus handles PUT /api/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDFromPath(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req struct {
		Status domain.OrderStatus `json:"status"`
		Notes  string             `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	order, err := h.orderService.UpdateOrderStatus(r.Context(), id, req.Status, req.Notes)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toOrderResponse(order))
}

// UpdatePayment handles PUT /api/orders/{id}/payment
func (h *OrderHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDFromPath(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req struct {
		PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	order, err := h.orderService.UpdatePaymentStatus(r.Context(), id, req.PaymentStatus)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toOrderResponse(order))
}

// AddTracking handles PUT /api/orders/{id}/shipping
func (h *OrderHandler) AddTracking(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDFromPath(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req struct {
		TrackingNumber string `json:"trackingNumber"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	order, err := h.orderService.AddTrackingNumber(r.Context(), id, req.TrackingNumber)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toOrderResponse(order))
}

// Cancel handles POST /api/orders/{id}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDFromPath(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	order, err := h.orderService.CancelOrder(r.Context(), id, req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toOrderResponse(order))
}
