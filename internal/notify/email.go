package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"storefront-service/internal/config"
	"storefront-service/internal/orders"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer emails the shop admin about every new order.
type Mailer struct {
	cfg  config.MailConfig
	send sendFunc
}

var _ orders.Notifier = (*Mailer)(nil)

func NewMailer(cfg config.MailConfig) (*Mailer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("SMTP_HOST and ADMIN_EMAIL are required to send mail")
	}
	return &Mailer{cfg: cfg, send: smtp.SendMail}, nil
}

func (m *Mailer) NotifyAdminOfNewOrder(ctx context.Context, o orders.Order) error {
	msg := buildOrderMail(m.cfg.From, m.cfg.AdminEmail, o)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	// net/smtp has no context support; run the send and give up waiting when ctx ends.
	done := make(chan error, 1)
	go func() {
		done <- m.send(m.cfg.Host+":"+m.cfg.Port, auth, m.cfg.From, []string{m.cfg.AdminEmail}, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send order mail: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("order mail not sent: %w", ctx.Err())
	}

	slog.Info("admin order email sent", slog.String(logkey.TraceID, ctxmanage.TraceIdFromContext(ctx)),
		slog.String(logkey.OrderID, o.ID))
	return nil
}

func buildOrderMail(from, to string, o orders.Order) []byte {
	var body strings.Builder
	fmt.Fprintf(&body, "New order %s received.\r\n\r\n", o.ID)
	fmt.Fprintf(&body, "Name: %s\r\nMobile: %s\r\nAddress: %s\r\n\r\n", o.Name, o.Mobile, o.ShippingAddress)
	body.WriteString("Items:\r\n")
	for _, it := range o.OrderItems {
		fmt.Fprintf(&body, "- %s x %d @ %d\r\n", it.Name, it.Quantity, it.Price)
	}
	fmt.Fprintf(&body, "\r\nTotal amount: %d\r\n", o.TotalAmount)
	fmt.Fprintf(&body, "Payment method: %s\r\nPayment screenshot: %s\r\n", o.PaymentMethod, o.PaymentScreenshot)

	return []byte("From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: New Order Received\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		body.String())
}
