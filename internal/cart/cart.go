package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Store interface {
	AddToCart(ctx context.Context, userID, productID string, quantity, stock int) error
	GetActiveCartItems(ctx context.Context, userID string) (*CartResponse, error)
	// UpdateCartItem sets the quantity of an existing line; stock caps it.
	UpdateCartItem(ctx context.Context, userID, productID string, quantity, stock int) error
	RemoveFromCart(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
}

// Conf is the Postgres implementation of Store.
type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// AddToCart adds quantity units of a product to the user's active cart, creating the cart on
// first use. The resulting line quantity may not exceed stock.
func (c *Conf) AddToCart(ctx context.Context, userID, productID string, quantity, stock int) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		// Query to find an active cart
		var cartID int64
		queryActiveCart := `
			SELECT id
			FROM cart
			WHERE user_id = $1 AND status = 'active'
			FOR UPDATE
		`
		err := tx.QueryRowContext(ctx, queryActiveCart, userID).Scan(&cartID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to query active cart: %w", err)
			}
			// No active cart yet, create one
			queryCreateCart := `
				INSERT INTO cart (user_id, status, created_at, updated_at)
				VALUES ($1, 'active', NOW(), NOW())
				RETURNING id
			`
			if err := tx.QueryRowContext(ctx, queryCreateCart, userID).Scan(&cartID); err != nil {
				return fmt.Errorf("failed to create new cart: %w", err)
			}
		}

		// Check whether the product is already in the cart
		var existing int
		queryCartItem := `
			SELECT quantity
			FROM cart_items
			WHERE cart_id = $1 AND product_id = $2
		`
		err = tx.QueryRowContext(ctx, queryCartItem, cartID, productID).Scan(&existing)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to query cart items: %w", err)
		}

		newQuantity := existing + quantity
		if newQuantity > stock {
			return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, newQuantity, stock)
		}

		// Insert the line or bump its quantity
		queryUpsert := `
			INSERT INTO cart_items (cart_id, product_id, quantity, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			ON CONFLICT (cart_id, product_id)
			DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
		`
		if _, err := tx.ExecContext(ctx, queryUpsert, cartID, productID, newQuantity); err != nil {
			return fmt.Errorf("failed to save cart item: %w", err)
		}
		return nil
	})
}

// GetActiveCartItems returns the lines of the user's active cart; a user without a cart gets an
// empty list.
func (c *Conf) GetActiveCartItems(ctx context.Context, userID string) (*CartResponse, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT ci.product_id, ci.quantity
		FROM cart_items ci
		JOIN cart c ON c.id = ci.cart_id
		WHERE c.user_id = $1 AND c.status = 'active'
		ORDER BY ci.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := []CartItem{}
	for rows.Next() {
		var item CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return &CartResponse{Items: items}, nil
}

func (c *Conf) UpdateCartItem(ctx context.Context, userID, productID string, quantity, stock int) error {
	if quantity > stock {
		return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, quantity, stock)
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE cart_items ci
		SET quantity = $3, updated_at = NOW()
		FROM cart c
		WHERE c.id = ci.cart_id AND c.user_id = $1 AND c.status = 'active' AND ci.product_id = $2`,
		userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// RemoveFromCart drops one line from the active cart. Removing an absent line is not an error.
func (c *Conf) RemoveFromCart(ctx context.Context, userID, productID string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM cart_items ci
		USING cart c
		WHERE c.id = ci.cart_id AND c.user_id = $1 AND c.status = 'active' AND ci.product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// ClearCart empties the active cart, typically after checkout.
func (c *Conf) ClearCart(ctx context.Context, userID string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM cart_items ci
		USING cart c
		WHERE c.id = ci.cart_id AND c.user_id = $1 AND c.status = 'active'`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if er := tx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", er)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}
