// Package memory holds every storefront entity in process memory behind one mutex. It backs
// STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront-service/internal/cart"
	"storefront-service/internal/offers"
	"storefront-service/internal/orders"
	"storefront-service/internal/products"
	"storefront-service/internal/users"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	products map[string]products.Product
	users    map[string]users.User
	orders   map[string]orders.Order
	carts    map[string][]cart.CartItem
	offers   map[string]offers.Offer
}

func New() *Store {
	return &Store{
		products: map[string]products.Product{},
		users:    map[string]users.User{},
		orders:   map[string]orders.Order{},
		carts:    map[string][]cart.CartItem{},
		offers:   map[string]offers.Offer{},
	}
}

var (
	_ products.Store = (*Store)(nil)
	_ users.Store    = (*Store)(nil)
	_ orders.Store   = (*Store)(nil)
	_ cart.Store     = (*Store)(nil)
	_ offers.Store   = (*Store)(nil)
)

// PutProduct stores p as-is, keeping its id. Used for seeding.
func (s *Store) PutProduct(p products.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) InsertProduct(_ context.Context, np products.NewProduct) (products.Product, error) {
	now := time.Now().UTC()
	p := products.Product{
		ID:            uuid.NewString(),
		Name:          np.Name,
		NameSecondary: np.NameSecondary,
		Price:         np.Price,
		Stock:         np.Stock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.PutProduct(p)
	return p, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (products.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, id string, np products.NewProduct) (products.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	p.Name, p.NameSecondary, p.Price, p.Stock = np.Name, np.NameSecondary, np.Price, np.Stock
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return p, nil
}

func (s *Store) ListProducts(_ context.Context, f products.ListFilter) ([]products.Product, error) {
	s.mu.Lock()
	list := []products.Product{}
	for _, p := range s.products {
		if f.Name == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
			list = append(list, p)
		}
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	if f.Offset >= len(list) {
		return []products.Product{}, nil
	}
	list = list[f.Offset:]
	if f.Limit > 0 && f.Limit < len(list) {
		list = list[:f.Limit]
	}
	return list, nil
}

func (s *Store) DecrementStockIfAtLeast(_ context.Context, id string, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, fmt.Errorf("invalid quantity %d", quantity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	s.products[id] = p
	return true, nil
}

func (s *Store) IncrementStock(_ context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("invalid quantity %d", quantity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return products.ErrNotFound
	}
	p.Stock += quantity
	s.products[id] = p
	return nil
}

func (s *Store) InsertUser(_ context.Context, u users.User) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return users.User{}, users.ErrEmailTaken
		}
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}

func (s *Store) AddToCart(_ context.Context, userID, productID string, quantity, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			if items[i].Quantity+quantity > stock {
				return fmt.Errorf("%w: requested %d, available %d", cart.ErrInsufficientStock, items[i].Quantity+quantity, stock)
			}
			items[i].Quantity += quantity
			return nil
		}
	}
	if quantity > stock {
		return fmt.Errorf("%w: requested %d, available %d", cart.ErrInsufficientStock, quantity, stock)
	}
	s.carts[userID] = append(items, cart.CartItem{ProductID: productID, Quantity: quantity})
	return nil
}

func (s *Store) GetActiveCartItems(_ context.Context, userID string) (*cart.CartResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := slices.Clone(s.carts[userID])
	if items == nil {
		items = []cart.CartItem{}
	}
	return &cart.CartResponse{Items: items}, nil
}

func (s *Store) UpdateCartItem(_ context.Context, userID, productID string, quantity, stock int) error {
	if quantity > stock {
		return fmt.Errorf("%w: requested %d, available %d", cart.ErrInsufficientStock, quantity, stock)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
			return nil
		}
	}
	return cart.ErrItemNotFound
}

func (s *Store) RemoveFromCart(_ context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = slices.DeleteFunc(s.carts[userID], func(it cart.CartItem) bool {
		return it.ProductID == productID
	})
	return nil
}

func (s *Store) ClearCart(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

func (s *Store) InsertOffer(_ context.Context, no offers.NewOffer) (offers.Offer, error) {
	now := time.Now().UTC()
	o := offers.Offer{
		ID:          uuid.NewString(),
		Title:       no.Title,
		Description: no.Description,
		Discount:    no.Discount,
		Image:       no.Image,
		IsActive:    no.IsActive == nil || *no.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[o.ID] = o
	return o, nil
}

func (s *Store) ListOffers(_ context.Context, activeOnly bool) ([]offers.Offer, error) {
	s.mu.Lock()
	list := []offers.Offer{}
	for _, o := range s.offers {
		if !activeOnly || o.IsActive {
			list = append(list, o)
		}
	}
	s.mu.Unlock()
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *Store) UpdateOffer(_ context.Context, id string, no offers.NewOffer) (offers.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return offers.Offer{}, offers.ErrNotFound
	}
	o.Title, o.Description, o.Discount, o.Image = no.Title, no.Description, no.Discount, no.Image
	if no.IsActive != nil {
		o.IsActive = *no.IsActive
	}
	o.UpdatedAt = time.Now().UTC()
	s.offers[id] = o
	return o, nil
}

func (s *Store) DeleteOffer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[id]; !ok {
		return offers.ErrNotFound
	}
	delete(s.offers, id)
	return nil
}

func cloneOrder(o orders.Order) orders.Order {
	o.OrderItems = slices.Clone(o.OrderItems)
	if o.CancelledBy != nil {
		by := *o.CancelledBy
		o.CancelledBy = &by
	}
	return o
}

func (s *Store) InsertOrder(_ context.Context, o orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func newestFirst(list []orders.Order) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string) ([]orders.Order, error) {
	s.mu.Lock()
	list := []orders.Order{}
	for _, o := range s.orders {
		if o.UserID == userID {
			list = append(list, cloneOrder(o))
		}
	}
	s.mu.Unlock()
	newestFirst(list)
	return list, nil
}

func (s *Store) ListAllOrders(_ context.Context) ([]orders.AdminOrder, error) {
	s.mu.Lock()
	list := make([]orders.Order, 0, len(s.orders))
	for _, o := range s.orders {
		list = append(list, cloneOrder(o))
	}
	owners := make(map[string]users.Summary, len(s.users))
	for _, u := range s.users {
		owners[u.ID] = users.Summary{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	s.mu.Unlock()

	newestFirst(list)
	out := make([]orders.AdminOrder, 0, len(list))
	for _, o := range list {
		owner, ok := owners[o.UserID]
		if !ok {
			owner = users.Summary{ID: o.UserID}
		}
		out = append(out, orders.AdminOrder{Order: o, Owner: owner})
	}
	return out, nil
}

func (s *Store) CompareAndSetOrderStatus(_ context.Context, id string, from, to orders.OrderStatus, cancelledBy *orders.CancelledBy) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.OrderStatus != from {
		return false, nil
	}
	o.OrderStatus = to
	o.CancelledBy = nil
	if cancelledBy != nil {
		by := *cancelledBy
		o.CancelledBy = &by
	}
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o
	return true, nil
}

func (s *Store) UpdatePaymentStatus(_ context.Context, id string, status orders.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.PaymentStatus = status
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o
	return nil
}
