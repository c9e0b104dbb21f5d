package kafka

import (
	"time"

	"storefront-service/internal/orders"
)

const DefaultTopic = `storefront.order-events`

// OrderEvent is the message published for every order change. The record key is the order id so
// that events of one order stay ordered within a partition.
type OrderEvent struct {
	ID            string               `json:"id"`
	Type          string               `json:"type"`
	OrderID       string               `json:"orderId"`
	UserID        string               `json:"userId"`
	OrderStatus   orders.OrderStatus   `json:"orderStatus"`
	PaymentStatus orders.PaymentStatus `json:"paymentStatus"`
	CancelledBy   *orders.CancelledBy  `json:"cancelledBy,omitempty"`
	Items         []orders.OrderItem   `json:"items"`
	TotalAmount   int64                `json:"totalAmount"`
	CreatedAt     time.Time            `json:"createdAt"`
}
