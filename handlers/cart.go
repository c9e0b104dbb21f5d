package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"storefront-service/internal/cart"
	"storefront-service/internal/products"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) AddToCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	userId := claims.Subject

	// Bind and validate the request body
	var request struct {
		ProductID string `json:"productId" validate:"required"`
		Quantity  int    `json:"quantity" validate:"min=1"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(request); err != nil {
		badRequest(c, "Product ID and quantity must be valid", err)
		return
	}

	// Fetch the product to learn its current stock
	p, ok := h.cartProduct(c, request.ProductID)
	if !ok {
		return
	}

	// The store checks the merged quantity against stock
	err := h.cart.AddToCart(c.Request.Context(), userId, request.ProductID, request.Quantity, p.Stock)
	if err != nil {
		if errors.Is(err, cart.ErrInsufficientStock) {
			slog.Warn("insufficient stock", slog.String(logkey.TraceID, traceId),
				slog.String("ProductID", request.ProductID), slog.Int("Requested", request.Quantity), slog.Int("Available", p.Stock))
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "Insufficient stock available"})
			return
		}
		slog.Error("error adding product to cart", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String("ProductID", request.ProductID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to add product to cart"})
		return
	}

	slog.Info("product added to cart", slog.String(logkey.TraceID, traceId),
		slog.String("ProductID", request.ProductID), slog.Int("Quantity", request.Quantity), slog.String(logkey.UserID, userId))
	c.JSON(http.StatusOK, gin.H{"message": "Product added to cart successfully"})
}

func (h *Handler) GetActiveCartItems(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}

	cartResponse, err := h.cart.GetActiveCartItems(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error fetching active cart items", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String(logkey.UserID, claims.Subject))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch cart items"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cartResponse.Items})
}

// cartProduct loads a product for a cart change, aborting with 404 or 500 on failure.
func (h *Handler) cartProduct(c *gin.Context, productID string) (products.Product, bool) {
	p, err := h.products.GetProductByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return p, false
		}
		slog.Error("error fetching product details", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch product details"})
		return p, false
	}
	return p, true
}

// respondWithCart writes the caller's cart after a change.
func (h *Handler) respondWithCart(c *gin.Context, userID string) {
	cartResponse, err := h.cart.GetActiveCartItems(c.Request.Context(), userID)
	if err != nil {
		slog.Error("error fetching active cart items", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)),
			slog.String(logkey.ERROR, err.Error()), slog.String(logkey.UserID, userID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch cart items"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cartResponse.Items})
}

// UpdateCartItem sets the quantity of a line already in the cart.
func (h *Handler) UpdateCartItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}

	var request struct {
		ProductID string `json:"productId" validate:"required"`
		Quantity  int    `json:"quantity" validate:"min=1"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(request); err != nil {
		badRequest(c, "Product ID and quantity must be valid", err)
		return
	}

	p, ok := h.cartProduct(c, request.ProductID)
	if !ok {
		return
	}

	err := h.cart.UpdateCartItem(c.Request.Context(), claims.Subject, request.ProductID, request.Quantity, p.Stock)
	switch {
	case errors.Is(err, cart.ErrInsufficientStock):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "Insufficient stock available"})
		return
	case errors.Is(err, cart.ErrItemNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Item not found in cart"})
		return
	case err != nil:
		slog.Error("error updating cart item", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String("ProductID", request.ProductID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to update cart item"})
		return
	}
	h.respondWithCart(c, claims.Subject)
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	productID := c.Param("productId")

	if err := h.cart.RemoveFromCart(c.Request.Context(), claims.Subject, productID); err != nil {
		slog.Error("error removing cart item", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String("ProductID", productID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to remove item from cart"})
		return
	}
	h.respondWithCart(c, claims.Subject)
}

func (h *Handler) ClearCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}

	if err := h.cart.ClearCart(c.Request.Context(), claims.Subject); err != nil {
		slog.Error("error clearing cart", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String(logkey.UserID, claims.Subject))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to clear cart"})
		return
	}
	h.respondWithCart(c, claims.Subject)
}
