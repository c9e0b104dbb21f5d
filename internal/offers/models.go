package offers

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("offer not found")

// Offer is a promotional banner shown on the storefront. Discount is a percentage.
type Offer struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Discount    int       `json:"discount"`
	Image       string    `json:"image"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewOffer is the payload for creating or editing an offer. A nil IsActive means active on
// create and unchanged on update.
type NewOffer struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Discount    int    `json:"discount" validate:"min=0,max=100"`
	Image       string `json:"image" validate:"omitempty,url"`
	IsActive    *bool  `json:"isActive"`
}
