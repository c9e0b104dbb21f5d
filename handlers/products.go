package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"storefront-service/internal/products"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

const maxProductBody = 5 * 1024

func (h *Handler) bindProduct(c *gin.Context) (products.NewProduct, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxProductBody)

	var np products.NewProduct
	if err := c.ShouldBindJSON(&np); err != nil {
		badRequest(c, "Invalid JSON payload", err)
		return np, false
	}
	if err := h.validate.Struct(np); err != nil {
		badRequest(c, validationMessage(err), err)
		return np, false
	}
	return np, true
}

func (h *Handler) CreateProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	np, ok := h.bindProduct(c)
	if !ok {
		return
	}
	p, err := h.products.InsertProduct(c.Request.Context(), np)
	if err != nil {
		slog.Error("error in inserting the product", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Product Creation Failed"})
		return
	}

	slog.Info("product created", slog.String(logkey.TraceID, traceId), slog.String("ProductID", p.ID))
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	productID := c.Param("id")

	p, err := h.products.GetProductByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		slog.Error("error in retrieving product", slog.String(logkey.TraceID, traceId),
			slog.String("ProductID", productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch product"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	productID := c.Param("id")

	np, ok := h.bindProduct(c)
	if !ok {
		return
	}
	p, err := h.products.UpdateProduct(c.Request.Context(), productID, np)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		slog.Error("error in updating the product", slog.String(logkey.TraceID, traceId),
			slog.String("ProductID", productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Product update failed"})
		return
	}

	slog.Info("product updated successfully", slog.String(logkey.TraceID, traceId), slog.String("ProductID", productID))
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProducts(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		badRequest(c, "Invalid limit parameter", err)
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		badRequest(c, "Invalid offset parameter", err)
		return
	}

	list, err := h.products.ListProducts(c.Request.Context(), products.ListFilter{
		Name:   c.Query("name"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		slog.Error("error in fetching products", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": list})
}
