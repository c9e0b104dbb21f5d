package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront-service/internal/cart"
	"storefront-service/internal/offers"
	"storefront-service/internal/orders"
	"storefront-service/internal/products"
	"storefront-service/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecrementStockIfAtLeast_NeverOversells(t *testing.T) {
	s := New()
	s.PutProduct(products.Product{ID: "p-1", Name: "Tea", Stock: 10})

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.DecrementStockIfAtLeast(context.Background(), "p-1", 3)
			assert.NoError(t, err)
			if ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	p, err := s.GetProductByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), won.Load())
	assert.Equal(t, 1, p.Stock)
}

func TestStockAdjustments(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutProduct(products.Product{ID: "p-1", Name: "Tea", Stock: 2})

	ok, err := s.DecrementStockIfAtLeast(ctx, "missing", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.DecrementStockIfAtLeast(ctx, "p-1", 0)
	assert.Error(t, err)
	assert.Error(t, s.IncrementStock(ctx, "p-1", -1))
	assert.ErrorIs(t, s.IncrementStock(ctx, "missing", 1), products.ErrNotFound)

	require.NoError(t, s.IncrementStock(ctx, "p-1", 3))
	p, err := s.GetProductByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestCompareAndSetOrderStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertOrder(ctx, orders.Order{ID: "o-1", UserID: "u-1", OrderStatus: orders.StatusProcessing}))
	assert.Error(t, s.InsertOrder(ctx, orders.Order{ID: "o-1"}))

	by := orders.CancelledByUser
	changed, err := s.CompareAndSetOrderStatus(ctx, "o-1", orders.StatusProcessing, orders.StatusCancelled, &by)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.CompareAndSetOrderStatus(ctx, "o-1", orders.StatusProcessing, orders.StatusCancelled, &by)
	require.NoError(t, err)
	assert.False(t, changed)

	o, err := s.GetOrderByID(ctx, "o-1")
	require.NoError(t, err)
	require.NotNil(t, o.CancelledBy)
	assert.Equal(t, orders.CancelledByUser, *o.CancelledBy)

	changed, err = s.CompareAndSetOrderStatus(ctx, "o-1", orders.StatusCancelled, orders.StatusProcessing, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	o, err = s.GetOrderByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Nil(t, o.CancelledBy)

	_, err = s.GetOrderByID(ctx, "o-2")
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	assert.ErrorIs(t, s.UpdatePaymentStatus(ctx, "o-2", orders.PaymentApproved), orders.ErrOrderNotFound)
}

func TestGetOrderByID_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertOrder(ctx, orders.Order{
		ID:         "o-1",
		OrderItems: []orders.OrderItem{{ProductID: "p-1", Quantity: 1}},
	}))

	o, err := s.GetOrderByID(ctx, "o-1")
	require.NoError(t, err)
	o.OrderItems[0].Quantity = 99

	again, err := s.GetOrderByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.OrderItems[0].Quantity)
}

func TestListAllOrders_JoinsOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.InsertUser(ctx, users.User{ID: "u-1", Name: "Asha", Email: "asha@example.com"})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, s.InsertOrder(ctx, orders.Order{ID: "old", UserID: "u-1", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.InsertOrder(ctx, orders.Order{ID: "new", UserID: "gone", CreatedAt: now}))

	list, err := s.ListAllOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, users.Summary{ID: "gone"}, list[0].Owner)
	assert.Equal(t, users.Summary{ID: "u-1", Name: "Asha", Email: "asha@example.com"}, list[1].Owner)

	mine, err := s.ListOrdersByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "old", mine[0].ID)
}

func TestCartLines(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.AddToCart(ctx, "u-1", "p-1", 2, 5))
	require.NoError(t, s.AddToCart(ctx, "u-1", "p-2", 1, 5))

	require.NoError(t, s.UpdateCartItem(ctx, "u-1", "p-1", 4, 5))
	assert.ErrorIs(t, s.UpdateCartItem(ctx, "u-1", "p-1", 6, 5), cart.ErrInsufficientStock)
	assert.ErrorIs(t, s.UpdateCartItem(ctx, "u-1", "p-9", 1, 5), cart.ErrItemNotFound)

	require.NoError(t, s.RemoveFromCart(ctx, "u-1", "p-2"))
	require.NoError(t, s.RemoveFromCart(ctx, "u-1", "p-2"))
	resp, err := s.GetActiveCartItems(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []cart.CartItem{{ProductID: "p-1", Quantity: 4}}, resp.Items)

	require.NoError(t, s.ClearCart(ctx, "u-1"))
	resp, err = s.GetActiveCartItems(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}

func TestOffers(t *testing.T) {
	ctx := context.Background()
	s := New()
	off := false

	first, err := s.InsertOffer(ctx, offers.NewOffer{Title: "Monsoon", Discount: 10})
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	time.Sleep(time.Millisecond)
	hidden, err := s.InsertOffer(ctx, offers.NewOffer{Title: "Draft", Discount: 5, IsActive: &off})
	require.NoError(t, err)

	all, err := s.ListOffers(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, hidden.ID, all[0].ID)

	active, err := s.ListOffers(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)

	updated, err := s.UpdateOffer(ctx, first.ID, offers.NewOffer{Title: "Monsoon", Discount: 15})
	require.NoError(t, err)
	assert.Equal(t, 15, updated.Discount)
	assert.True(t, updated.IsActive)
	_, err = s.UpdateOffer(ctx, "missing", offers.NewOffer{Title: "x"})
	assert.ErrorIs(t, err, offers.ErrNotFound)

	require.NoError(t, s.DeleteOffer(ctx, first.ID))
	assert.ErrorIs(t, s.DeleteOffer(ctx, first.ID), offers.ErrNotFound)
}
