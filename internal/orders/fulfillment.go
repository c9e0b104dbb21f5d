package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"
)

func (s *Service) loadOrder(ctx context.Context, orderID string) (Order, error) {
	o, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return Order{}, &NotFoundError{Kind: "order", ID: orderID}
		}
		return Order{}, err
	}
	return o, nil
}

func requireAdmin(isAdmin bool) error {
	if !isAdmin {
		return &AuthorizationError{Msg: "admin access required"}
	}
	return nil
}

// GetOrder returns an order to its owner or to any admin.
func (s *Service) GetOrder(ctx context.Context, orderID, requesterID string, requesterIsAdmin bool) (Order, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != requesterID && !requesterIsAdmin {
		return Order{}, &AuthorizationError{Msg: "not authorized to view this order"}
	}
	return o, nil
}

// ListUserOrders returns the user's orders, newest first.
func (s *Service) ListUserOrders(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListOrdersByUser(ctx, userID)
}

// ListAllOrders returns every order with its owner, newest first. Admin only.
func (s *Service) ListAllOrders(ctx context.Context, requesterIsAdmin bool) ([]AdminOrder, error) {
	if err := requireAdmin(requesterIsAdmin); err != nil {
		return nil, err
	}
	return s.orders.ListAllOrders(ctx)
}

// CancelOrderByUser cancels the requester's own order while it is still Processing and returns
// its units to stock.
func (s *Service) CancelOrderByUser(ctx context.Context, orderID, requesterID string) (Order, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != requesterID {
		return Order{}, &AuthorizationError{Msg: "not authorized to cancel this order"}
	}
	return s.cancel(ctx, o, CancelledByUser)
}

// CancelOrderByAdmin is the admin variant of cancellation; the same Processing-only guard applies.
func (s *Service) CancelOrderByAdmin(ctx context.Context, orderID string, actorIsAdmin bool) (Order, error) {
	if err := requireAdmin(actorIsAdmin); err != nil {
		return Order{}, err
	}
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	return s.cancel(ctx, o, CancelledByAdmin)
}

func (s *Service) cancel(ctx context.Context, o Order, by CancelledBy) (Order, error) {
	if o.OrderStatus != StatusProcessing {
		return Order{}, &InvalidStateError{Status: o.OrderStatus, Msg: "only orders in Processing can be cancelled"}
	}
	return s.transition(ctx, o, StatusCancelled, &by)
}

// SetOrderStatus lets an admin move an order to any status. Entering Cancelled returns the
// units to stock; leaving Cancelled takes them again and fails if they are gone.
func (s *Service) SetOrderStatus(ctx context.Context, orderID string, newStatus OrderStatus, actorIsAdmin bool) (Order, error) {
	if err := requireAdmin(actorIsAdmin); err != nil {
		return Order{}, err
	}
	if !newStatus.Valid() {
		return Order{}, &ValidationError{Msg: fmt.Sprintf("invalid order status %q", newStatus)}
	}
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.OrderStatus == newStatus {
		return o, nil
	}

	switch {
	case newStatus == StatusCancelled:
		by := CancelledByAdmin
		return s.transition(ctx, o, StatusCancelled, &by)
	case o.OrderStatus == StatusCancelled:
		return s.reopen(ctx, o, newStatus)
	default:
		return s.transition(ctx, o, newStatus, nil)
	}
}

// transition compare-and-sets the status so that only one of several racing callers applies it,
// and restores stock when the order enters Cancelled.
func (s *Service) transition(ctx context.Context, o Order, to OrderStatus, by *CancelledBy) (Order, error) {
	traceId := ctxmanage.TraceIdFromContext(ctx)

	ok, err := s.orders.CompareAndSetOrderStatus(ctx, o.ID, o.OrderStatus, to, by)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, s.staleState(ctx, o.ID)
	}

	from := o.OrderStatus
	o.OrderStatus = to
	o.CancelledBy = by
	o.UpdatedAt = s.now()

	eventType := EventOrderStatusChanged
	if to == StatusCancelled {
		eventType = EventOrderCancelled
		restored, err := restoreItems(ctx, s.inventory, o.OrderItems)
		s.restored(restored)
		if err != nil {
			// The cancellation stands; stock needs manual reconciliation.
			slog.Error("stock restore after cancellation failed", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.OrderID, o.ID), slog.String(logkey.ERROR, err.Error()))
		}
	}

	slog.Info("order status changed", slog.String(logkey.TraceID, traceId), slog.String(logkey.OrderID, o.ID),
		slog.String("From", string(from)), slog.String("To", string(to)))
	s.publish(ctx, eventType, o)
	return o, nil
}

// reopen moves a cancelled order back into a live status, reserving its units again first.
func (s *Service) reopen(ctx context.Context, o Order, to OrderStatus) (Order, error) {
	res := newReservation(s.inventory)
	for _, it := range o.OrderItems {
		if _, err := res.reserve(ctx, it.ProductID, it.Quantity); err != nil {
			if _, rerr := res.release(ctx); rerr != nil {
				err = errors.Join(err, rerr)
			}
			return Order{}, err
		}
	}

	ok, err := s.orders.CompareAndSetOrderStatus(ctx, o.ID, StatusCancelled, to, nil)
	if err == nil && !ok {
		err = s.staleState(ctx, o.ID)
	}
	if err != nil {
		if _, rerr := res.release(ctx); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return Order{}, err
	}

	slog.Info("cancelled order reopened", slog.String(logkey.TraceID, ctxmanage.TraceIdFromContext(ctx)),
		slog.String(logkey.OrderID, o.ID), slog.String("To", string(to)))
	o.OrderStatus = to
	o.CancelledBy = nil
	o.UpdatedAt = s.now()
	s.publish(ctx, EventOrderStatusChanged, o)
	return o, nil
}

// staleState builds the error for a lost compare-and-set race.
func (s *Service) staleState(ctx context.Context, orderID string) error {
	current, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	return &InvalidStateError{Status: current.OrderStatus, Msg: "order status changed concurrently"}
}

// SetPaymentStatus records the admin's verdict on the payment proof. It does not depend on, or
// change, the order status.
func (s *Service) SetPaymentStatus(ctx context.Context, orderID string, newStatus PaymentStatus, actorIsAdmin bool) (Order, error) {
	if err := requireAdmin(actorIsAdmin); err != nil {
		return Order{}, err
	}
	if !newStatus.Valid() {
		return Order{}, &ValidationError{Msg: fmt.Sprintf("invalid payment status %q", newStatus)}
	}
	if err := s.orders.UpdatePaymentStatus(ctx, orderID, newStatus); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return Order{}, &NotFoundError{Kind: "order", ID: orderID}
		}
		return Order{}, err
	}
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	slog.Info("payment status changed", slog.String(logkey.TraceID, ctxmanage.TraceIdFromContext(ctx)),
		slog.String(logkey.OrderID, o.ID), slog.String("PaymentStatus", string(newStatus)))
	s.publish(ctx, EventOrderPaymentChanged, o)
	return o, nil
}
