package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"storefront-service/internal/users"
)

// Store persists orders. Implementations return ErrOrderNotFound for unknown ids.
type Store interface {
	InsertOrder(ctx context.Context, o Order) error
	GetOrderByID(ctx context.Context, id string) (Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]Order, error)
	ListAllOrders(ctx context.Context) ([]AdminOrder, error)

	// CompareAndSetOrderStatus moves an order from `from` to `to` and overwrites cancelledBy, but
	// only while the stored status still equals `from`. It reports whether the row changed.
	CompareAndSetOrderStatus(ctx context.Context, id string, from, to OrderStatus, cancelledBy *CancelledBy) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus) error
}

// Conf is the Postgres implementation of Store. Order lines live in a jsonb column since they
// are never addressed on their own.
type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	return &Conf{db: db}, nil
}

const orderColumns = `o.id, o.user_id, o.name, o.mobile, o.shipping_address, o.order_items, o.total_amount,
	o.payment_method, o.payment_status, o.payment_screenshot, o.order_status, o.cancelled_by,
	o.created_at, o.updated_at`

func scanOrder(row interface{ Scan(...any) error }, extra ...any) (Order, error) {
	var (
		o           Order
		items       []byte
		cancelledBy sql.NullString
	)
	dest := []any{&o.ID, &o.UserID, &o.Name, &o.Mobile, &o.ShippingAddress, &items, &o.TotalAmount,
		&o.PaymentMethod, &o.PaymentStatus, &o.PaymentScreenshot, &o.OrderStatus, &cancelledBy,
		&o.CreatedAt, &o.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(items, &o.OrderItems); err != nil {
		return Order{}, fmt.Errorf("failed to decode order items of %s: %w", o.ID, err)
	}
	if cancelledBy.Valid {
		by := CancelledBy(cancelledBy.String)
		o.CancelledBy = &by
	}
	return o, nil
}

func nullCancelledBy(by *CancelledBy) sql.NullString {
	if by == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*by), Valid: true}
}

func (c *Conf) InsertOrder(ctx context.Context, o Order) error {
	items, err := json.Marshal(o.OrderItems)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, name, mobile, shipping_address, order_items, total_amount,
			payment_method, payment_status, payment_screenshot, order_status, cancelled_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.UserID, o.Name, o.Mobile, o.ShippingAddress, items, o.TotalAmount,
		o.PaymentMethod, string(o.PaymentStatus), o.PaymentScreenshot, string(o.OrderStatus),
		nullCancelledBy(o.CancelledBy), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (c *Conf) GetOrderByID(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(c.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("failed to query order %s: %w", id, err)
	}
	return o, nil
}

func (c *Conf) ListOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	list := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return list, nil
}

func (c *Conf) ListAllOrders(ctx context.Context) ([]AdminOrder, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+orderColumns+`, u.name, u.email
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	list := []AdminOrder{}
	for rows.Next() {
		var ownerName, ownerEmail sql.NullString
		o, err := scanOrder(rows, &ownerName, &ownerEmail)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, AdminOrder{
			Order: o,
			Owner: ownerSummary(o.UserID, ownerName.String, ownerEmail.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return list, nil
}

func (c *Conf) CompareAndSetOrderStatus(ctx context.Context, id string, from, to OrderStatus, cancelledBy *CancelledBy) (bool, error) {
	res, err := c.db.ExecContext(ctx, `
		UPDATE orders
		SET order_status = $3, cancelled_by = $4, updated_at = NOW()
		WHERE id = $1 AND order_status = $2`,
		id, string(from), string(to), nullCancelledBy(cancelledBy))
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (c *Conf) UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $2, updated_at = NOW()
		WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func ownerSummary(id, name, email string) users.Summary {
	return users.Summary{ID: id, Name: name, Email: email}
}
