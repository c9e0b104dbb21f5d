package orders

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound is returned by Store implementations for unknown order ids.
var ErrOrderNotFound = errors.New("order not found")

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }

type InsufficientStockError struct {
	ProductName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s", e.ProductName)
}

type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

type InvalidStateError struct {
	Status OrderStatus
	Msg    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s (current status %s)", e.Msg, e.Status)
}
