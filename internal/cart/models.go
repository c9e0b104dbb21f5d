package cart

import "errors"

var (
	// ErrInsufficientStock is returned when the cart line would exceed the product's stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemNotFound      = errors.New("item not in cart")
)

type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CartResponse struct {
	Items []CartItem `json:"items"`
}
