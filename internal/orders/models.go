package orders

import (
	"time"

	"storefront-service/internal/users"
)

type OrderStatus string

const (
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentApproved PaymentStatus = "Approved"
	PaymentRejected PaymentStatus = "Rejected"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentApproved, PaymentRejected:
		return true
	}
	return false
}

type CancelledBy string

const (
	CancelledByUser  CancelledBy = "User"
	CancelledByAdmin CancelledBy = "Admin"
)

// PaymentMethodUPI is the only payment method: a manual transfer proven by a screenshot.
const PaymentMethodUPI = "UPI"

// OrderItem is a snapshot of a product line taken when the order was placed.
type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

type Order struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user"`
	Name              string        `json:"name"`
	Mobile            string        `json:"mobile"`
	ShippingAddress   string        `json:"shippingAddress"`
	OrderItems        []OrderItem   `json:"orderItems"`
	TotalAmount       int64         `json:"totalAmount"`
	PaymentMethod     string        `json:"paymentMethod"`
	PaymentStatus     PaymentStatus `json:"paymentStatus"`
	PaymentScreenshot string        `json:"paymentScreenshot"`
	OrderStatus       OrderStatus   `json:"orderStatus"`
	CancelledBy       *CancelledBy  `json:"cancelledBy"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// ItemsTotal is the sum of price*quantity over the order lines.
func (o Order) ItemsTotal() int64 {
	var total int64
	for _, it := range o.OrderItems {
		total += it.Price * int64(it.Quantity)
	}
	return total
}

// AdminOrder is an order with its owner joined in, as listed to admins.
type AdminOrder struct {
	Order
	Owner users.Summary `json:"owner"`
}

type LineItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// PaymentProof is the uploaded payment screenshot.
type PaymentProof struct {
	Filename    string
	ContentType string
	Data        []byte
}

type PlaceOrderRequest struct {
	UserID          string
	Name            string
	Mobile          string
	ShippingAddress string
	Items           []LineItem
	TotalAmount     int64
	PaymentProof    *PaymentProof
}
