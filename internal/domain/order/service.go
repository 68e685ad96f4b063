package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
)

// PaymentIntent is the gateway's answer to a payment registration: where to
// send the customer and the gateway-side order id the webhook will echo.
type PaymentIntent struct {
	PaymobOrderID int64
	IframeURL     string
}

// PaymentGateway registers orders with the payment provider.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, o *Order) (*PaymentIntent, error)
}

// Shipment is the carrier's acknowledgement of a booked delivery.
type Shipment struct {
	TrackingID string
	Status     string
}

// ShippingGateway books deliveries with the carrier.
type ShippingGateway interface {
	CreateShipment(ctx context.Context, o *Order) (*Shipment, error)
}

// Notifier sends customer-facing order emails. Delivery failures must not
// fail the order; the service logs and moves on.
type Notifier interface {
	OrderConfirmation(ctx context.Context, o *Order) error
}

// CheckoutItem is one order line submitted directly in a checkout payload.
type CheckoutItem struct {
	ProductID string
	Quantity  int
	Selection []product.SelectedVariant
}

// CheckoutRequest holds the input for placing an order from the current cart.
type CheckoutRequest struct {
	Address      Address
	CouponCode   string
	ShippingCost *decimal.Decimal // client-displayed cost, cross-checked only

	// Items lets a guest check out without a persisted cart; every line is
	// re-resolved against live product data. Ignored for authenticated
	// callers, whose persisted cart is authoritative.
	Items []CheckoutItem
}

// CheckoutResult is the outcome of a checkout. For online payments the
// order is parked in Pending Payment and PaymentURL points at the hosted
// payment page.
type CheckoutResult struct {
	Order      *Order
	PaymentURL string
}

// Service encapsulates checkout and order lifecycle business logic.
type Service struct {
	products product.Repository
	carts    cart.Repository
	coupons  coupon.Validator
	usage    coupon.Repository
	orders   Repository
	payments PaymentGateway
	shipping ShippingGateway
	notifier Notifier
	lg       *zap.Logger
	now      func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(
	products product.Repository,
	carts cart.Repository,
	coupons coupon.Validator,
	usage coupon.Repository,
	orders Repository,
	payments PaymentGateway,
	shipping ShippingGateway,
	notifier Notifier,
	lg *zap.Logger,
) *Service {
	return &Service{
		products: products,
		carts:    carts,
		coupons:  coupons,
		usage:    usage,
		orders:   orders,
		payments: payments,
		shipping: shipping,
		notifier: notifier,
		lg:       lg,
		now:      time.Now,
	}
}

// Checkout places an order from the identity's cart. Prices, stock and
// shipping are all resolved server-side at this moment; the cart snapshots
// are only a starting point. Stock is reserved for both payment methods and
// released again if an online payment fails.
func (s *Service) Checkout(ctx context.Context, id auth.Identity, method PaymentMethod, req CheckoutRequest) (*CheckoutResult, error) {
	// Coupon codes are stored uppercased; normalise once so the usage
	// counter and the order snapshot see the canonical form.
	req.CouponCode = strings.ToUpper(strings.TrimSpace(req.CouponCode))

	shippingCost, err := ShippingRate(req.Address.Governorate)
	if err != nil {
		return nil, err
	}
	if req.ShippingCost != nil && !req.ShippingCost.Equal(shippingCost) {
		s.lg.Warn("client shipping cost mismatch, using server rate",
			zap.String("governorate", req.Address.Governorate),
			zap.String("client", req.ShippingCost.String()),
			zap.String("server", shippingCost.String()))
	}

	lines, fromPayload, err := s.checkoutLines(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	now := s.now()
	items := make([]Item, 0, len(lines))
	subtotal := decimal.Zero
	for _, line := range lines {
		p, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, errors.Wrapf(err, "get product %s", line.ProductID)
		}
		q, err := product.Resolve(p, line.Selection, now)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{
			ProductID: line.ProductID,
			Name:      p.Name,
			Price:     q.UnitPrice,
			ImageURL:  q.ImageURL,
			Quantity:  line.Quantity,
			Selection: line.Selection,
		})
		subtotal = subtotal.Add(q.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	subtotal = subtotal.Round(2)
	total := subtotal.Add(shippingCost)

	discount := decimal.Zero
	if req.CouponCode != "" {
		if !id.Authenticated() {
			return nil, ErrGuestCoupon
		}
		d, err := s.coupons.Validate(ctx, req.CouponCode, total)
		if err != nil {
			return nil, err
		}
		discount = d.Amount
		total = d.NewTotal
	}
	total = total.Round(2)

	o := &Order{
		ID:            uuid.New().String(),
		UserID:        id.UserID,
		GuestID:       id.GuestID,
		Items:         items,
		Address:       req.Address,
		Subtotal:      subtotal,
		ShippingCost:  shippingCost,
		Discount:      discount,
		CouponCode:    req.CouponCode,
		Total:         total,
		PaymentMethod: method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	switch method {
	case PaymentCOD:
		o.Status = StatusPending
	case PaymentOnline:
		o.Status = StatusPendingPayment
	default:
		return nil, errors.Errorf("unsupported payment method: %q", method)
	}

	// Reserve stock up front. The conditional decrement fails the whole
	// batch if any option dropped below the requested quantity.
	if err := s.products.DeductStock(ctx, o.StockAdjustments()); err != nil {
		return nil, err
	}

	result := &CheckoutResult{Order: o}
	if method == PaymentOnline {
		intent, err := s.payments.CreatePayment(ctx, o)
		if err != nil {
			s.releaseStock(ctx, o)
			return nil, errors.Wrap(err, "create payment")
		}
		o.PaymobOrderID = intent.PaymobOrderID
		result.PaymentURL = intent.IframeURL
	}

	if err := s.orders.Create(ctx, o); err != nil {
		s.releaseStock(ctx, o)
		return nil, errors.Wrap(err, "create order")
	}

	if req.CouponCode != "" {
		if err := s.usage.IncrementUses(ctx, req.CouponCode); err != nil {
			s.lg.Warn("increment coupon uses",
				zap.String("code", req.CouponCode), zap.Error(err))
		}
	}

	if !fromPayload {
		if err := s.clearCart(ctx, id); err != nil {
			s.lg.Warn("clear cart after checkout",
				zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	// COD orders are confirmed immediately: book the shipment and notify.
	// Online orders wait for the payment webhook.
	if method == PaymentCOD {
		s.bookShipment(ctx, o)
		s.sendConfirmation(ctx, o)
		if err := s.orders.Update(ctx, o); err != nil {
			return nil, errors.Wrap(err, "update order")
		}
	}
	return result, nil
}

// HandlePaymentResult applies a verified gateway transaction outcome to the
// matching order. A success confirms the order, books the shipment and
// sends the confirmation email; a failure cancels it and releases stock.
// Repeated webhooks for an already-settled order are acknowledged without
// changes.
func (s *Service) HandlePaymentResult(ctx context.Context, paymobOrderID, transactionID int64, success bool) (*Order, error) {
	o, err := s.orders.GetByPaymobOrderID(ctx, paymobOrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPendingPayment {
		s.lg.Info("payment webhook for settled order",
			zap.String("order_id", o.ID), zap.String("status", string(o.Status)))
		return o, nil
	}

	o.TransactionID = transactionID
	if !success {
		o.Status = StatusCancelled
		s.releaseStock(ctx, o)
		o.UpdatedAt = s.now()
		if err := s.orders.Update(ctx, o); err != nil {
			return nil, errors.Wrap(err, "update order")
		}
		return o, nil
	}

	s.bookShipment(ctx, o)
	s.sendConfirmation(ctx, o)
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// Cancel lets a customer withdraw their own order while it has not shipped.
func (s *Service) Cancel(ctx context.Context, id auth.Identity, orderID string) (*Order, error) {
	o, err := s.getOwned(ctx, id, orderID)
	if err != nil {
		return nil, err
	}
	// Pending Payment is deliberately excluded: cancelling while the
	// gateway is mid-flight would race the payment webhook.
	switch o.Status {
	case StatusPending, StatusProcessing, StatusShippingFailed:
	default:
		return nil, ErrNotCancellable
	}

	o.Status = StatusCancelled
	s.releaseStock(ctx, o)
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// UpdateStatus performs an admin status change, enforcing the transition
// table. Moving into Cancelled releases stock; moving out of Cancelled
// re-deducts it, which fails if stock has since been sold. Re-processing a
// failed shipment retries the carrier booking.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, errors.Errorf("unknown status: %q", to)
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == to {
		return o, nil
	}
	if !CanTransition(o.Status, to) {
		return nil, &InvalidTransitionError{From: o.Status, To: to}
	}

	from := o.Status
	switch {
	case to == StatusCancelled:
		s.releaseStock(ctx, o)
	case from == StatusCancelled:
		if err := s.products.DeductStock(ctx, o.StockAdjustments()); err != nil {
			return nil, errors.Wrap(err, "re-reserve stock")
		}
	}

	o.Status = to
	if from == StatusShippingFailed && to == StatusProcessing && o.TrackingID == "" {
		s.bookShipment(ctx, o)
	}
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// HandleCarrierStatus applies a carrier webhook to the order owning the
// tracking id. Unrecognised carrier states are acknowledged without
// touching the order.
func (s *Service) HandleCarrierStatus(ctx context.Context, trackingID, carrierStatus string) (*Order, error) {
	o, err := s.orders.GetByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	carrierStatus = strings.ToUpper(carrierStatus)
	to, ok := carrierStatusMap[carrierStatus]
	if !ok {
		s.lg.Info("unmapped carrier status",
			zap.String("order_id", o.ID), zap.String("carrier_status", carrierStatus))
		return o, nil
	}
	o.TrackingStatus = carrierStatus

	if CanTransition(o.Status, to) && o.Status != to {
		if to == StatusCancelled {
			s.releaseStock(ctx, o)
		}
		o.Status = to
	}
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// carrierStatusMap translates carrier webhook states into order statuses.
var carrierStatusMap = map[string]Status{
	"SHIPPED":          StatusShipped,
	"IN_TRANSIT":       StatusShipped,
	"OUT_FOR_DELIVERY": StatusShipped,
	"DELIVERED":        StatusDelivered,
	"CANCELLED":        StatusCancelled,
	"FAILED_DELIVERY":  StatusCancelled,
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// List returns all orders for the admin dashboard.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// Get returns an order visible to the given identity: its owner or an admin.
func (s *Service) Get(ctx context.Context, id auth.Identity, orderID string) (*Order, error) {
	if id.Admin {
		return s.orders.GetByID(ctx, orderID)
	}
	return s.getOwned(ctx, id, orderID)
}

func (s *Service) getOwned(ctx context.Context, id auth.Identity, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	owned := (id.Authenticated() && o.UserID == id.UserID) ||
		(id.Guest() && o.GuestID != "" && o.GuestID == id.GuestID)
	if !owned {
		// Hide existence from non-owners.
		return nil, ErrNotFound
	}
	return o, nil
}

// checkoutLines picks the order source. Guests may submit lines in the
// request body; everyone else checks out their persisted cart. The second
// return reports whether the payload was used, so the cart is left alone.
func (s *Service) checkoutLines(ctx context.Context, id auth.Identity, req CheckoutRequest) ([]CheckoutItem, bool, error) {
	if !id.Authenticated() && len(req.Items) > 0 {
		for _, it := range req.Items {
			if it.ProductID == "" || it.Quantity <= 0 {
				return nil, false, ErrInvalidItems
			}
		}
		return req.Items, true, nil
	}

	c, err := s.loadCart(ctx, id)
	if err != nil {
		// A caller with no cart at all checks out an empty one.
		if errors.Is(err, cart.ErrNotFound) {
			return nil, false, ErrEmptyCart
		}
		return nil, false, err
	}
	lines := make([]CheckoutItem, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, CheckoutItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Selection: item.Selection,
		})
	}
	return lines, false, nil
}

func (s *Service) loadCart(ctx context.Context, id auth.Identity) (*cart.Cart, error) {
	switch {
	case id.Authenticated():
		return s.carts.FindByUser(ctx, id.UserID)
	case id.Guest():
		return s.carts.FindByGuest(ctx, id.GuestID)
	default:
		return nil, cart.ErrNoIdentity
	}
}

func (s *Service) clearCart(ctx context.Context, id auth.Identity) error {
	if id.Authenticated() {
		return s.carts.ClearByUser(ctx, id.UserID)
	}
	return s.carts.DeleteByGuest(ctx, id.GuestID)
}

// bookShipment registers the order with the carrier. A booked shipment
// confirms the order into Processing; a carrier failure parks it in
// Pending (Shipping Failed) for an admin retry.
func (s *Service) bookShipment(ctx context.Context, o *Order) {
	shipment, err := s.shipping.CreateShipment(ctx, o)
	if err != nil {
		s.lg.Error("create shipment",
			zap.String("order_id", o.ID), zap.Error(err))
		o.Status = StatusShippingFailed
		return
	}
	o.TrackingID = shipment.TrackingID
	o.TrackingStatus = shipment.Status
	o.Status = StatusProcessing
}

func (s *Service) sendConfirmation(ctx context.Context, o *Order) {
	if err := s.notifier.OrderConfirmation(ctx, o); err != nil {
		s.lg.Warn("send order confirmation",
			zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	o.EmailSent = true
}

func (s *Service) releaseStock(ctx context.Context, o *Order) {
	if err := s.products.RestoreStock(ctx, o.StockAdjustments()); err != nil {
		s.lg.Error("restore stock",
			zap.String("order_id", o.ID), zap.Error(err))
	}
}
