package orders

import (
	"context"
	"errors"
	"fmt"

	"storefront-service/internal/products"
)

// reservation is the unit of work behind placing an order: it remembers every stock decrement
// so they can be given back if a later step fails.
type reservation struct {
	inventory Inventory
	taken     []OrderItem
}

func newReservation(inv Inventory) *reservation {
	return &reservation{inventory: inv}
}

// reserve takes quantity units of a product and returns the line snapshot.
func (r *reservation) reserve(ctx context.Context, productID string, quantity int) (OrderItem, error) {
	p, err := r.inventory.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return OrderItem{}, &NotFoundError{Kind: "product", ID: productID}
		}
		return OrderItem{}, fmt.Errorf("failed to load product %s: %w", productID, err)
	}

	ok, err := r.inventory.DecrementStockIfAtLeast(ctx, productID, quantity)
	if err != nil {
		return OrderItem{}, err
	}
	if !ok {
		return OrderItem{}, &InsufficientStockError{ProductName: p.Name}
	}

	item := OrderItem{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: quantity}
	r.taken = append(r.taken, item)
	return item, nil
}

// release gives back everything reserved so far, newest first. It keeps going past failures,
// reports the units actually returned and joins the errors.
func (r *reservation) release(ctx context.Context) (int, error) {
	var (
		errs     []error
		restored int
	)
	for i := len(r.taken) - 1; i >= 0; i-- {
		it := r.taken[i]
		if err := r.inventory.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("restore %d units of %s: %w", it.Quantity, it.ProductID, err))
			continue
		}
		restored += it.Quantity
	}
	return restored, errors.Join(errs...)
}

// restoreItems returns the units of a cancelled order to stock.
func restoreItems(ctx context.Context, inv Inventory, items []OrderItem) (int, error) {
	var (
		errs     []error
		restored int
	)
	for _, it := range items {
		if err := inv.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("restore %d units of %s: %w", it.Quantity, it.ProductID, err))
			continue
		}
		restored += it.Quantity
	}
	return restored, errors.Join(errs...)
}
