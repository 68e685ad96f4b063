// Package mailer renders and sends customer-facing emails.
package mailer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
)

// Sender delivers a rendered email to a single recipient.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Mailer builds the storefront's transactional emails on top of a Sender
// and implements order.Notifier.
type Mailer struct {
	sender    Sender
	storeName string
	lg        *zap.Logger
}

var _ order.Notifier = (*Mailer)(nil)

// New creates a Mailer. storeName appears in subjects and signatures.
func New(sender Sender, storeName string, lg *zap.Logger) *Mailer {
	return &Mailer{sender: sender, storeName: storeName, lg: lg}
}

// OrderConfirmation emails the customer a summary of their placed order.
func (m *Mailer) OrderConfirmation(ctx context.Context, o *order.Order) error {
	to := o.Address.Email
	if to == "" {
		m.lg.Debug("order has no email address, skipping confirmation",
			zap.String("order_id", o.ID))
		return nil
	}

	var b strings.Builder
	b.WriteString("<h1>Thank you for your order!</h1>\n")
	fmt.Fprintf(&b, "<p>Your order #%s has been placed successfully.</p>\n", o.ID)
	fmt.Fprintf(&b, "<p>Total amount: EGP %s</p>\n", o.Total.StringFixed(2))
	b.WriteString("<p>Items:</p>\n<ul>\n")
	for _, item := range o.Items {
		fmt.Fprintf(&b, "<li>%s (x%d) - EGP %s each</li>\n",
			item.Name, item.Quantity, item.Price.StringFixed(2))
	}
	b.WriteString("</ul>\n")
	fmt.Fprintf(&b, "<p>Shipping Address: %s, %s, %s</p>\n",
		o.Address.Street, o.Address.City, o.Address.Governorate)
	fmt.Fprintf(&b, "<p>Shipping Cost: EGP %s</p>\n", o.ShippingCost.StringFixed(2))
	fmt.Fprintf(&b, "<p>Payment Method: %s</p>\n", o.PaymentMethod)
	fmt.Fprintf(&b, "<p>Current Status: %s</p>\n", o.Status)
	if o.CouponCode != "" {
		fmt.Fprintf(&b, "<p>Discount Applied: Coupon %q (-EGP %s)</p>\n",
			o.CouponCode, o.Discount.StringFixed(2))
	}
	if o.TrackingID != "" {
		fmt.Fprintf(&b, "<p>Tracking ID: %s</p>\n", o.TrackingID)
	}
	b.WriteString("<p>We will notify you when your order is shipped.</p>\n")
	fmt.Fprintf(&b, "<p>Best regards,<br>The %s Team</p>\n", m.storeName)

	subject := fmt.Sprintf("Order Confirmation - #%s", o.ID)
	return m.sender.SendEmail(ctx, to, subject, b.String())
}

// AbandonedCartReminder nudges a customer about a cart they walked away
// from.
func (m *Mailer) AbandonedCartReminder(ctx context.Context, c *cart.Cart) error {
	if c.OwnerEmail == "" {
		return nil
	}

	name := c.OwnerName
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Hi %s,</h1>\n", name)
	b.WriteString("<p>You left some items in your cart:</p>\n<ul>\n")
	for _, item := range c.Items {
		fmt.Fprintf(&b, "<li>%s (x%d)</li>\n", item.Name, item.Quantity)
	}
	b.WriteString("</ul>\n")
	b.WriteString("<p>They are still waiting for you. Complete your checkout before they sell out!</p>\n")
	fmt.Fprintf(&b, "<p>Best regards,<br>The %s Team</p>\n", m.storeName)

	subject := fmt.Sprintf("You left something behind at %s", m.storeName)
	return m.sender.SendEmail(ctx, c.OwnerEmail, subject, b.String())
}
