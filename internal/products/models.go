package products

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("product not found")

// Product is a catalog entry. Price is in the smallest currency unit.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	NameSecondary string    `json:"nameSecondary,omitempty"` // localized display name
	Price         int64     `json:"price"`
	Stock         int       `json:"stock"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewProduct is the payload accepted when creating or editing a product.
type NewProduct struct {
	Name          string `json:"name" validate:"required"`
	NameSecondary string `json:"nameSecondary"`
	Price         int64  `json:"price" validate:"min=0"`
	Stock         int    `json:"stock" validate:"min=0"`
}

// ListFilter narrows ListProducts. Limit must be positive.
type ListFilter struct {
	Name   string
	Limit  int
	Offset int
}
