package handlers

import (
	"context"
	"errors"
	"net/http"

	"storefront-service/internal/auth"
	"storefront-service/internal/cart"
	"storefront-service/internal/idempotency"
	"storefront-service/internal/metrics"
	"storefront-service/internal/offers"
	"storefront-service/internal/orders"
	"storefront-service/internal/products"
	"storefront-service/internal/stores/proofs"
	"storefront-service/internal/users"
	"storefront-service/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ProofLocator resolves a stored payment proof URI for download.
type ProofLocator interface {
	Locate(ctx context.Context, uri string) (proofs.Location, error)
}

// Deps are the collaborators the HTTP layer needs. Idempotency and Metrics are optional.
type Deps struct {
	Products    products.Store
	Users       users.Store
	Cart        cart.Store
	Offers      offers.Store
	Orders      *orders.Service
	Proofs      ProofLocator
	Idempotency idempotency.Store
	Keys        *auth.Keys
	Metrics     *metrics.ServerMetrics

	// MaxProofBytes caps the payment screenshot upload.
	MaxProofBytes int64
}

type Handler struct {
	products      products.Store
	users         users.Store
	cart          cart.Store
	offers        offers.Store
	orders        *orders.Service
	proofs        ProofLocator
	idem          idempotency.Store
	keys          *auth.Keys
	validate      *validator.Validate
	maxProofBytes int64
}

func NewHandler(d Deps) (*Handler, error) {
	if d.Products == nil || d.Users == nil || d.Cart == nil || d.Offers == nil || d.Orders == nil || d.Proofs == nil || d.Keys == nil {
		return nil, errors.New("products, users, cart, offers, orders, proofs and auth keys are required")
	}
	if d.MaxProofBytes <= 0 {
		d.MaxProofBytes = 5 << 20
	}
	return &Handler{
		products:      d.Products,
		users:         d.Users,
		cart:          d.Cart,
		offers:        d.Offers,
		orders:        d.Orders,
		proofs:        d.Proofs,
		idem:          d.Idempotency,
		keys:          d.Keys,
		validate:      validator.New(),
		maxProofBytes: d.MaxProofBytes,
	}, nil
}

func API(mode, endpointPrefix string, d Deps) (*gin.Engine, error) {
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if mode == gin.TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	h, err := NewHandler(d)
	if err != nil {
		return nil, err
	}
	m, err := middleware.NewMid(d.Keys)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.Logger(), gin.Recovery())
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.GET("/ping", HealthCheck)
	r.GET(proofs.URIPrefix+":name", m.Authentication(), m.Authorize(h.GetPaymentProof, auth.RoleAdmin))

	v1 := r.Group(endpointPrefix)
	{
		u := v1.Group("/users")
		u.POST("/signup", h.Signup)
		u.POST("/login", h.Login)

		p := v1.Group("/products")
		p.GET("/list", h.ListProducts)
		p.GET("/view/:id", h.GetProduct)
		p.POST("/create", m.Authentication(), m.Authorize(h.CreateProduct, auth.RoleAdmin))
		p.PUT("/update/:id", m.Authentication(), m.Authorize(h.UpdateProduct, auth.RoleAdmin))

		c := v1.Group("/cart", m.Authentication())
		c.POST("/add-item", m.Authorize(h.AddToCart, auth.RoleUser))
		c.GET("/items", m.Authorize(h.GetActiveCartItems, auth.RoleUser))
		c.PUT("/update-item", m.Authorize(h.UpdateCartItem, auth.RoleUser))
		c.DELETE("/items/:productId", m.Authorize(h.RemoveFromCart, auth.RoleUser))
		c.DELETE("/items", m.Authorize(h.ClearCart, auth.RoleUser))

		of := v1.Group("/offers")
		of.GET("/active", h.ListActiveOffers)
		of.GET("/all", m.Authentication(), m.Authorize(h.ListAllOffers, auth.RoleAdmin))
		of.POST("/create", m.Authentication(), m.Authorize(h.CreateOffer, auth.RoleAdmin))
		of.PUT("/update/:id", m.Authentication(), m.Authorize(h.UpdateOffer, auth.RoleAdmin))
		of.DELETE("/delete/:id", m.Authentication(), m.Authorize(h.DeleteOffer, auth.RoleAdmin))

		o := v1.Group("/orders", m.Authentication())
		o.POST("/create", m.Authorize(h.CreateOrder, auth.RoleUser))
		o.GET("/my", m.Authorize(h.ListMyOrders, auth.RoleUser))
		o.GET("/view/:id", m.Authorize(h.GetOrder, auth.RoleUser))
		o.PUT("/cancel/:id", m.Authorize(h.CancelOrder, auth.RoleUser))

		a := o.Group("/admin")
		a.GET("/all", m.Authorize(h.ListAllOrders, auth.RoleAdmin))
		a.PUT("/cancel/:id", m.Authorize(h.AdminCancelOrder, auth.RoleAdmin))
		a.PUT("/status/:id", m.Authorize(h.SetOrderStatus, auth.RoleAdmin))
		a.PUT("/payment/:id", m.Authorize(h.SetPaymentStatus, auth.RoleAdmin))
	}
	return r, nil
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}
