package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"storefront-service/internal/idempotency"
	"storefront-service/internal/orders"
	"storefront-service/internal/stores/proofs"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

const (
	proofField = "paymentScreenshot"
	formMemory = 1 << 20
)

// CreateOrder accepts multipart/form-data with name, mobile, shippingAddress, totalAmount,
// orderItems (a JSON array of {productId, quantity}) and the paymentScreenshot file.
func (h *Handler) CreateOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// Parse the multipart form, capped at the proof size plus the text fields
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxProofBytes+formMemory)
	if err := c.Request.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			badRequest(c, "payment proof too large", err)
		case errors.Is(err, http.ErrNotMultipart):
			badRequest(c, "request must be multipart/form-data", err)
		default:
			badRequest(c, "Invalid form data", err)
		}
		return
	}

	req := orders.PlaceOrderRequest{
		UserID:          claims.Subject,
		Name:            c.PostForm("name"),
		Mobile:          c.PostForm("mobile"),
		ShippingAddress: c.PostForm("shippingAddress"),
	}

	// Read the payment screenshot
	proof, err := h.readProof(c)
	if err != nil {
		badRequest(c, err.Error(), err)
		return
	}
	req.PaymentProof = proof

	if raw := strings.TrimSpace(c.PostForm("orderItems")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Items); err != nil {
			badRequest(c, "orderItems must be a JSON array of {productId, quantity}", err)
			return
		}
	}

	// A missing proof or item list is reported by the service before the total
	total, err := strconv.ParseInt(strings.TrimSpace(c.PostForm("totalAmount")), 10, 64)
	if err != nil && req.PaymentProof != nil && len(req.PaymentProof.Data) > 0 && len(req.Items) > 0 {
		badRequest(c, "totalAmount must be a whole number", err)
		return
	}
	if err == nil {
		req.TotalAmount = total
	}

	// Replay or reserve the idempotency key
	key := idempotency.Key(c.Request)
	if key != "" && h.idem != nil {
		scoped := idempotency.OrderKey(claims.Subject, key)
		orderID, err := h.idem.Reserve(ctx, scoped)
		if err != nil {
			if errors.Is(err, idempotency.ErrInFlight) {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": err.Error()})
				return
			}
			slog.Error("idempotency reserve failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to create order"})
			return
		}
		// The key already produced an order, return it
		if orderID != "" {
			o, err := h.orders.GetOrder(ctx, orderID, claims.Subject, false)
			if err != nil {
				abortWithError(c, "Failed to fetch order", err)
				return
			}
			slog.Info("order create replayed", slog.String(logkey.TraceID, traceId), slog.String(logkey.OrderID, o.ID))
			c.JSON(http.StatusOK, o)
			return
		}

		o, err := h.orders.PlaceOrder(ctx, req)
		if err != nil {
			if rerr := h.idem.Release(ctx, scoped); rerr != nil {
				slog.Error("idempotency release failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, rerr.Error()))
			}
			abortWithError(c, "Failed to create order", err)
			return
		}
		if err := h.idem.Complete(ctx, scoped, o.ID); err != nil {
			slog.Error("idempotency complete failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		}
		c.JSON(http.StatusCreated, o)
		return
	}

	o, err := h.orders.PlaceOrder(ctx, req)
	if err != nil {
		abortWithError(c, "Failed to create order", err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// readProof returns nil, without error, when no file was sent.
func (h *Handler) readProof(c *gin.Context) (*orders.PaymentProof, error) {
	fh, err := c.FormFile(proofField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, errors.New("invalid payment proof upload")
	}
	if fh.Size > h.maxProofBytes {
		return nil, errors.New("payment proof too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("invalid payment proof upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxProofBytes+1))
	if err != nil {
		return nil, errors.New("invalid payment proof upload")
	}
	if int64(len(data)) > h.maxProofBytes {
		return nil, errors.New("payment proof too large")
	}
	return &orders.PaymentProof{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// GetPaymentProof streams a stored payment screenshot, or redirects to a presigned URL.
func (h *Handler) GetPaymentProof(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	uri := proofs.URIPrefix + c.Param("name")

	loc, err := h.proofs.Locate(c.Request.Context(), uri)
	if err != nil {
		if errors.Is(err, proofs.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Payment proof not found"})
			return
		}
		slog.Error("error locating payment proof", slog.String(logkey.TraceID, traceId),
			slog.String("URI", uri), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch payment proof"})
		return
	}

	c.Header("Cache-Control", "private, no-store")
	if loc.URL != "" {
		c.Redirect(http.StatusTemporaryRedirect, loc.URL)
		return
	}
	c.File(loc.Path)
}

func (h *Handler) ListMyOrders(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	list, err := h.orders.ListUserOrders(c.Request.Context(), claims.Subject)
	if err != nil {
		abortWithError(c, "Failed to fetch orders", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetOrder(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	o, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), claims.Subject, claims.IsAdmin())
	if err != nil {
		abortWithError(c, "Failed to fetch order", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	o, err := h.orders.CancelOrderByUser(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		abortWithError(c, "Failed to cancel order", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) ListAllOrders(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	list, err := h.orders.ListAllOrders(c.Request.Context(), claims.IsAdmin())
	if err != nil {
		abortWithError(c, "Failed to fetch orders", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) AdminCancelOrder(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	o, err := h.orders.CancelOrderByAdmin(c.Request.Context(), c.Param("id"), claims.IsAdmin())
	if err != nil {
		abortWithError(c, "Failed to cancel order", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) SetOrderStatus(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	var body struct {
		Status      string `json:"status"`
		OrderStatus string `json:"orderStatus"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	status := body.Status
	if status == "" {
		status = body.OrderStatus
	}

	o, err := h.orders.SetOrderStatus(c.Request.Context(), c.Param("id"), orders.OrderStatus(status), claims.IsAdmin())
	if err != nil {
		abortWithError(c, "Failed to update order status", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) SetPaymentStatus(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	var body struct {
		PaymentStatus string `json:"paymentStatus"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	o, err := h.orders.SetPaymentStatus(c.Request.Context(), c.Param("id"), orders.PaymentStatus(body.PaymentStatus), claims.IsAdmin())
	if err != nil {
		abortWithError(c, "Failed to update payment status", err)
		return
	}
	c.JSON(http.StatusOK, o)
}
