package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/calebmartin/sif/internal/domain"
	"github.com/calebmartin/sif/internal/middleware"
	"github.com/calebmartin/sif/internal/router"
)

// CartHandler exposes the shopper cart over JSON.
type CartHandler struct {
	cartService domain.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService domain.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

// RegisterRoutes registers cart routes on the router.
func (h *CartHandler) RegisterRoutes(r *router.Router) {
	r.Get("/api/cart", h.View)
	r.Delete("/api/cart", h.Clear)
	r.Get("/api/cart/summary", h.Summary)
	r.Get("/api/cart/validate", h.Validate)
	r.Get("/api/cart/shipping-options", h.ShippingOptions)
	r.Post("/api/cart/items", h.AddItem)
	r.Put("/api/cart/items/{productId}", h.UpdateItem)
	r.Delete("/api/cart/items/{productId}", h.RemoveItem)
	r.Post("/api/cart/promo", h.ApplyPromo)
	r.Post("/api/cart/merge", h.Merge)
}

type cartItemResponse struct {
	ProductID  string          `json:"productId"`
	Name       string          `json:"name"`
	Slug       string          `json:"slug"`
	ImageURL   string          `json:"imageUrl,omitempty"`
	Quantity   int32           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type cartResponse struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId,omitempty"`
	SessionID string             `json:"sessionId,omitempty"`
	Items     []cartItemResponse `json:"items"`
	ItemCount int32              `json:"itemCount"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func toCartResponse(cart *domain.Cart) cartResponse {
	items := make([]cartItemResponse, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = cartItemResponse{
			ProductID:  item.ProductID.String(),
			Name:       item.ProductName,
			Slug:       item.ProductSlug,
			ImageURL:   item.ProductImageURL,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice(),
		}
	}
	return cartResponse{
		ID:        cart.ID.String(),
		UserID:    cart.UserID,
		SessionID: cart.SessionID,
		Items:     items,
		ItemCount: cart.TotalItems(),
		UpdatedAt: cart.UpdatedAt,
	}
}

// View handles GET /api/cart
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartService.GetOrCreateCart(r.Context(), middleware.GetIdentity(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toCartResponse(cart))
}

// AddItem handles POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
		Quantity  int32  `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		respondError(w, r, domain.Invalid("api.cart.add_item", "Invalid product ID"))
		return
	}

	cart, err := h.cartService.AddItemToCart(r.Context(), middleware.GetIdentity(r.Context()), productID, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toCartResponse(cart))
}

// UpdateItem handles PUT /api/cart/items/{productId}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(r.PathValue("productId"))
	if err != nil {
		respondError(w, r, domain.Invalid("api.cart.update_item", "Invalid product ID"))
		return
	}

	var req struct {
		Quantity int32 `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	cart, err := h.cartService.UpdateItemQuantity(r.Context(), middleware.GetIdentity(r.Context()), productID, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toCartResponse(cart))
}

// RemoveItem handles DELETE /api/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(r.PathValue("productId"))
	if err != nil {
		respondError(w, r, domain.Invalid("api.cart.remove_item", "Invalid product ID"))
		return
	}

	cart, err := h.cartService.RemoveItemFromCart(r.Context(), middleware.GetIdentity(r.Context()), productID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toCartResponse(cart))
}

// Clear handles DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartService.ClearCart(r.Context(), middleware.GetIdentity(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toCartResponse(cart))
}

// Summary handles GET /api/cart/summary
func (h *CartHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.cartService.GetCartSummary(r.Context(), middleware.GetIdentity(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, summary)
}

// Validate handles GET /api/cart/validate
func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	validation, err := h.cartService.ValidateCart(r.Context(), middleware.GetIdentity(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, validation)
}

// ShippingOptions handles GET /api/cart/shipping-options
func (h *CartHandler) ShippingOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.cartService.ShippingOptions(r.Context(), middleware.GetIdentity(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, options)
}

// ApplyPromo handles POST /api/cart/promo
func (h *CartHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	quote, err := h.cartService.ApplyPromoCode(r.Context(), middleware.GetIdentity(r.Context()), req.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, quote)
}

// Merge handles POST /api/cart/merge. It folds the guest session cart into
// the signed-in user's cart after login.
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity.UserID == "" || identity.SessionID == "" {
		respondError(w, r, domain.Invalid("api.cart.merge", "Both a user and a guest session are required to merge"))
		return
	}

	cart, err := h.cartService.MergeGuestCartWithUserCart(r.Context(), identity.SessionID, identity.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if cart == nil {
		respondJSON(w, http.StatusOK, envelope{Success: true, Message: "No guest cart to merge"})
		return
	}
	respondData(w, http.StatusOK, toCartResponse(cart))
}
