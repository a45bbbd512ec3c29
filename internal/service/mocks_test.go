package service_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/calebmartin/sif/internal/domain"
)

// memCartStore is an in-memory domain.CartStore mirroring the real store's
// contract, with error-injection hooks for failure paths.
type memCartStore struct {
	carts map[uuid.UUID]*domain.Cart

	createErr  error
	addItemErr error
	clearErr   error
	mergeErr   error

	createCalls int
	clearCalls  int
}

func newMemCartStore() *memCartStore {
	return &memCartStore{carts: make(map[uuid.UUID]*domain.Cart)}
}

func (s *memCartStore) FindByUserID(_ context.Context, userID string) (*domain.Cart, error) {
	for _, cart := range s.carts {
		if cart.UserID == userID && userID != "" {
			return cart, nil
		}
	}
	return nil, domain.ErrCartNotFound
}

func (s *memCartStore) FindBySessionID(_ context.Context, sessionID string) (*domain.Cart, error) {
	for _, cart := range s.carts {
		if cart.SessionID == sessionID && sessionID != "" {
			return cart, nil
		}
	}
	return nil, domain.ErrCartNotFound
}

func (s *memCartStore) Create(ctx context.Context, userID, sessionID string) (*domain.Cart, error) {
	s.createCalls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	if userID != "" {
		if existing, err := s.FindByUserID(ctx, userID); err == nil {
			return existing, nil
		}
	} else if existing, err := s.FindBySessionID(ctx, sessionID); err == nil {
		return existing, nil
	}
	cart := &domain.Cart{ID: uuid.New(), UserID: userID, SessionID: sessionID}
	s.carts[cart.ID] = cart
	return cart, nil
}

func (s *memCartStore) cart(cartID uuid.UUID) (*domain.Cart, error) {
	cart, ok := s.carts[cartID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return cart, nil
}

func (s *memCartStore) AddItem(_ context.Context, cartID, productID uuid.UUID, quantity int32, unitPrice decimal.Decimal) (*domain.Cart, error) {
	if s.addItemErr != nil {
		return nil, s.addItemErr
	}
	cart, err := s.cart(cartID)
	if err != nil {
		return nil, err
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity += quantity
			return cart, nil
		}
	}
	cart.Items = append(cart.Items, domain.CartItem{
		ID:        uuid.New(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	})
	return cart, nil
}

func (s *memCartStore) UpdateItemQuantity(_ context.Context, cartID, productID uuid.UUID, quantity int32) (*domain.Cart, error) {
	cart, err := s.cart(cartID)
	if err != nil {
		return nil, err
	}
	cart.UpdateItemQuantity(productID, quantity)
	return cart, nil
}

func (s *memCartStore) UpdateItemPrice(_ context.Context, cartID, productID uuid.UUID, unitPrice decimal.Decimal) (*domain.Cart, error) {
	cart, err := s.cart(cartID)
	if err != nil {
		return nil, err
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].UnitPrice = unitPrice
		}
	}
	return cart, nil
}

func (s *memCartStore) RemoveItem(_ context.Context, cartID, productID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.cart(cartID)
	if err != nil {
		return nil, err
	}
	cart.RemoveItem(productID)
	return cart, nil
}

func (s *memCartStore) Clear(_ context.Context, cartID uuid.UUID) (*domain.Cart, error) {
	s.clearCalls++
	if s.clearErr != nil {
		return nil, s.clearErr
	}
	cart, err := s.cart(cartID)
	if err != nil {
		return nil, err
	}
	cart.Clear()
	return cart, nil
}

func (s *memCartStore) Delete(_ context.Context, cartID uuid.UUID) error {
	delete(s.carts, cartID)
	return nil
}

func (s *memCartStore) MergeCarts(ctx context.Context, guestCartID, userCartID uuid.UUID) (*domain.Cart, error) {
	if s.mergeErr != nil {
		return nil, s.mergeErr
	}
	guest, err := s.cart(guestCartID)
	if err != nil {
		return nil, err
	}
	user, err := s.cart(userCartID)
	if err != nil {
		return nil, err
	}
	for _, item := range guest.Items {
		merged := false
		for i := range user.Items {
			if user.Items[i].ProductID == item.ProductID {
				user.Items[i].Quantity += item.Quantity
				merged = true
				break
			}
		}
		if !merged {
			item.CartID = userCartID
			user.Items = append(user.Items, item)
		}
	}
	delete(s.carts, guestCartID)
	return user, nil
}

// memCatalog is an in-memory domain.CatalogReader.
type memCatalog struct {
	products map[uuid.UUID]*domain.Product
}

func newMemCatalog(products ...*domain.Product) *memCatalog {
	c := &memCatalog{products: make(map[uuid.UUID]*domain.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *memCatalog) FindProductByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	if p, ok := c.products[id]; ok {
		return p, nil
	}
	return nil, domain.ErrProductNotFound
}

func (c *memCatalog) FindProductBySlug(_ context.Context, slug string) (*domain.Product, error) {
	for _, p := range c.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (c *memCatalog) ListActiveProducts(_ context.Context) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range c.products {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

// mockOrderStore is a domain.OrderStore with per-method function fields.
type mockOrderStore struct {
	createFunc              func(ctx context.Context, payload *domain.OrderPayload) (*domain.Order, error)
	findByIDFunc            func(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	findByNumberFunc        func(ctx context.Context, orderNumber string) (*domain.Order, error)
	findAllFunc             func(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error)
	updateStatusFunc        func(ctx context.Context, id uuid.UUID, status domain.OrderStatus, description string) (*domain.Order, error)
	updatePaymentStatusFunc func(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (*domain.Order, error)
	setTrackingNumberFunc   func(ctx context.Context, id uuid.UUID, trackingNumber string) (*domain.Order, error)
	cancelFunc              func(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error)
	statusEventsFunc        func(ctx context.Context, orderID uuid.UUID) ([]domain.OrderStatusEvent, error)
	deleteFunc              func(ctx context.Context, id uuid.UUID) error
}

func (m *mockOrderStore) Create(ctx context.Context, payload *domain.OrderPayload) (*domain.Order, error) {
	return m.createFunc(ctx, payload)
}

func (m *mockOrderStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockOrderStore) FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return m.findByNumberFunc(ctx, orderNumber)
}

func (m *mockOrderStore) FindAll(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	return m.findAllFunc(ctx, filter)
}

func (m *mockOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, description string) (*domain.Order, error) {
	return m.updateStatusFunc(ctx, id, status, description)
}

func (m *mockOrderStore) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (*domain.Order, error) {
	return m.updatePaymentStatusFunc(ctx, id, status)
}

func (m *mockOrderStore) SetTrackingNumber(ctx context.Context, id uuid.UUID, trackingNumber string) (*domain.Order, error) {
	return m.setTrackingNumberFunc(ctx, id, trackingNumber)
}

func (m *mockOrderStore) Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error) {
	return m.cancelFunc(ctx, id, reason)
}

func (m *mockOrderStore) StatusEvents(ctx context.Context, orderID uuid.UUID) ([]domain.OrderStatusEvent, error) {
	return m.statusEventsFunc(ctx, orderID)
}

func (m *mockOrderStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}
