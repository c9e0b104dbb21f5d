package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"storefront-service/internal/products"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Inventory is the part of the product store the order services touch.
type Inventory interface {
	GetProductByID(ctx context.Context, id string) (products.Product, error)
	DecrementStockIfAtLeast(ctx context.Context, id string, quantity int) (bool, error)
	IncrementStock(ctx context.Context, id string, quantity int) error
}

// ProofStore keeps uploaded payment screenshots and returns a URI for each.
type ProofStore interface {
	Save(ctx context.Context, proof PaymentProof) (string, error)
	Delete(ctx context.Context, uri string) error
}

// Notifier tells the shop admin about a new order.
type Notifier interface {
	NotifyAdminOfNewOrder(ctx context.Context, o Order) error
}

// Event types published on every order change.
const (
	EventOrderCreated        = "order.created"
	EventOrderCancelled      = "order.cancelled"
	EventOrderStatusChanged  = "order.status-changed"
	EventOrderPaymentChanged = "order.payment-changed"
)

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, eventType string, o Order) error
}

// Recorder receives order outcome counts.
type Recorder interface {
	OrderPlaced(o Order)
	OrderRejected(reason string)
	StockRestored(units int)
}

type Options struct {
	// VerifyTotal rejects orders whose declared total differs from the sum of their lines.
	VerifyTotal bool
	Notifier    Notifier
	Events      EventPublisher
	Recorder    Recorder

	// NotifyTimeout bounds each background notification; defaults to 30s.
	NotifyTimeout time.Duration
}

type Service struct {
	orders    Store
	inventory Inventory
	proofs    ProofStore
	opts      Options
	now       func() time.Time

	wg sync.WaitGroup
}

func NewService(orders Store, inventory Inventory, proofs ProofStore, opts Options) (*Service, error) {
	if orders == nil || inventory == nil || proofs == nil {
		return nil, errors.New("order store, inventory and proof store are required")
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 30 * time.Second
	}
	return &Service{
		orders:    orders,
		inventory: inventory,
		proofs:    proofs,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Wait blocks until every background notification started so far has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func validatePlaceOrder(req PlaceOrderRequest) error {
	if req.PaymentProof == nil || len(req.PaymentProof.Data) == 0 {
		return &ValidationError{Msg: "payment proof required"}
	}
	if len(req.Items) == 0 {
		return &ValidationError{Msg: "order items required"}
	}
	for _, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return &ValidationError{Msg: "each order item needs a productId"}
		}
		if it.Quantity <= 0 {
			return &ValidationError{Msg: "quantity must be a positive integer"}
		}
	}
	if strings.TrimSpace(req.UserID) == "" {
		return &ValidationError{Msg: "user required"}
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Mobile) == "" || strings.TrimSpace(req.ShippingAddress) == "" {
		return &ValidationError{Msg: "name, mobile and shipping address are required"}
	}
	if req.TotalAmount < 0 {
		return &ValidationError{Msg: "total amount must not be negative"}
	}
	mt := mimetype.Detect(req.PaymentProof.Data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return &ValidationError{Msg: "payment proof must be an image"}
	}
	req.PaymentProof.ContentType = mt.String()
	return nil
}

// PlaceOrder reserves stock for every line, stores the payment proof and persists the order in
// Processing/Pending state. Any failure after the first reservation gives back the reserved
// units and removes the stored proof before returning.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Order, error) {
	traceId := ctxmanage.TraceIdFromContext(ctx)

	if err := validatePlaceOrder(req); err != nil {
		s.rejected("validation")
		return Order{}, err
	}

	uri, err := s.proofs.Save(ctx, *req.PaymentProof)
	if err != nil {
		s.rejected("proof_storage")
		return Order{}, fmt.Errorf("failed to store payment proof: %w", err)
	}

	res := newReservation(s.inventory)
	fail := func(reason string, cause error) (Order, error) {
		s.rejected(reason)
		errs := []error{cause}
		restored, err := res.release(ctx)
		if err != nil {
			slog.Error("stock compensation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			errs = append(errs, err)
		}
		s.restored(restored)
		if err := s.proofs.Delete(ctx, uri); err != nil {
			slog.Warn("failed to remove payment proof", slog.String(logkey.TraceID, traceId), slog.String("URI", uri), slog.String(logkey.ERROR, err.Error()))
		}
		return Order{}, errors.Join(errs...)
	}

	items := make([]OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		item, err := res.reserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return fail(rejectReason(err), err)
		}
		items = append(items, item)
	}

	now := s.now()
	o := Order{
		ID:                uuid.NewString(),
		UserID:            req.UserID,
		Name:              strings.TrimSpace(req.Name),
		Mobile:            strings.TrimSpace(req.Mobile),
		ShippingAddress:   strings.TrimSpace(req.ShippingAddress),
		OrderItems:        items,
		TotalAmount:       req.TotalAmount,
		PaymentMethod:     PaymentMethodUPI,
		PaymentStatus:     PaymentPending,
		PaymentScreenshot: uri,
		OrderStatus:       StatusProcessing,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if s.opts.VerifyTotal && o.TotalAmount != o.ItemsTotal() {
		return fail("total_mismatch", &ValidationError{
			Msg: fmt.Sprintf("total amount mismatch: declared %d, items sum to %d", o.TotalAmount, o.ItemsTotal()),
		})
	}

	if err := s.orders.InsertOrder(ctx, o); err != nil {
		return fail("persistence", err)
	}

	if s.opts.Recorder != nil {
		s.opts.Recorder.OrderPlaced(o)
	}
	slog.Info("order placed", slog.String(logkey.TraceID, traceId), slog.String(logkey.OrderID, o.ID),
		slog.String(logkey.UserID, o.UserID), slog.Int("Items", len(o.OrderItems)), slog.Int64("Total", o.TotalAmount))

	s.dispatch(ctx, "notify admin", func(ctx context.Context) error {
		if s.opts.Notifier == nil {
			return nil
		}
		return s.opts.Notifier.NotifyAdminOfNewOrder(ctx, o)
	})
	s.publish(ctx, EventOrderCreated, o)

	return o, nil
}

func rejectReason(err error) string {
	var (
		nf *NotFoundError
		is *InsufficientStockError
	)
	switch {
	case errors.As(err, &nf):
		return "product_not_found"
	case errors.As(err, &is):
		return "insufficient_stock"
	}
	return "inventory"
}

func (s *Service) rejected(reason string) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.OrderRejected(reason)
	}
}

func (s *Service) restored(units int) {
	if s.opts.Recorder != nil && units > 0 {
		s.opts.Recorder.StockRestored(units)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, o Order) {
	if s.opts.Events == nil {
		return
	}
	s.dispatch(ctx, eventType, func(ctx context.Context) error {
		return s.opts.Events.PublishOrderEvent(ctx, eventType, o)
	})
}

// dispatch runs fn in the background, detached from the request's cancellation. Errors are
// only logged.
func (s *Service) dispatch(ctx context.Context, what string, fn func(context.Context) error) {
	traceId := ctxmanage.TraceIdFromContext(ctx)
	bg := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(bg, s.opts.NotifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Error("background "+what+" failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		}
	}()
}
