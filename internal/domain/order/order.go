package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// PaymentMethod enumerates the supported payment flows.
type PaymentMethod string

const (
	// PaymentCOD is cash on delivery: the order is placed immediately.
	PaymentCOD PaymentMethod = "cod"
	// PaymentOnline is card payment through the hosted gateway iframe.
	PaymentOnline PaymentMethod = "online"
)

// Sentinel errors for order operations.
var (
	ErrNotFound       = errors.New("order not found")
	ErrEmptyCart      = errors.New("cart is empty")
	ErrGuestCoupon    = errors.New("coupons require an account")
	ErrNotCancellable = errors.New("order can no longer be cancelled")
	ErrInvalidItems   = errors.New("each item needs a product id and a positive quantity")
)

// UnknownGovernorateError indicates a shipping address naming a governorate
// outside the rate table.
type UnknownGovernorateError struct {
	Governorate string
}

func (e *UnknownGovernorateError) Error() string {
	return fmt.Sprintf("unknown governorate %q", e.Governorate)
}

// Address is the shipping destination captured at checkout.
type Address struct {
	FullName    string `json:"fullName"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Street      string `json:"street"`
	City        string `json:"city"`
	Governorate string `json:"governorate"`
}

// Item is a priced line snapshot frozen at placement time. Later catalog
// edits never change what the customer agreed to pay.
type Item struct {
	ProductID string                    `json:"productId"`
	Name      string                    `json:"name"`
	Price     decimal.Decimal           `json:"price"`
	ImageURL  string                    `json:"imageUrl,omitempty"`
	Quantity  int                       `json:"quantity"`
	Selection []product.SelectedVariant `json:"selectedVariants,omitempty"`
}

// Order is a placed order with its full pricing breakdown and fulfilment
// tracking state.
type Order struct {
	ID            string
	UserID        string
	GuestID       string
	Items         []Item
	Address       Address
	Subtotal      decimal.Decimal
	ShippingCost  decimal.Decimal
	Discount      decimal.Decimal
	CouponCode    string
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
	Status        Status

	PaymobOrderID int64
	TransactionID int64

	TrackingID     string
	TrackingStatus string

	EmailSent bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockAdjustments maps the order's lines into per-option stock deltas.
func (o *Order) StockAdjustments() []product.StockAdjustment {
	adj := make([]product.StockAdjustment, len(o.Items))
	for i, item := range o.Items {
		adj[i] = product.StockAdjustment{
			ProductID: item.ProductID,
			Selection: item.Selection,
			Quantity:  item.Quantity,
		}
	}
	return adj
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByPaymobOrderID(ctx context.Context, paymobID int64) (*Order, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context) ([]Order, error)
	Update(ctx context.Context, o *Order) error
}
