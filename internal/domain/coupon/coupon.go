package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the order total.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the order total.
	DiscountFixed DiscountType = "fixed_amount"
)

var (
	// ErrNotFound is returned when a coupon code does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when a coupon has been deactivated.
	ErrInactive = errors.New("coupon is not active")
	// ErrExpired is returned when a coupon is past its expiry date.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// MinOrderError is returned when the order total is below the coupon's
// minimum order amount.
type MinOrderError struct {
	Code     string
	Required decimal.Decimal
}

func (e *MinOrderError) Error() string {
	return fmt.Sprintf("coupon %s requires a minimum order of %s", e.Code, e.Required.StringFixed(2))
}

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	ID             string
	Code           string
	DiscountType   DiscountType
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxDiscount    *decimal.Decimal
	UsageLimit     int
	TimesUsed      int
	ExpiresAt      *time.Time
	Active         bool
	CreatedAt      time.Time
}

// Discount holds the computed discount and the total after applying it.
type Discount struct {
	Code     string
	Amount   decimal.Decimal
	NewTotal decimal.Decimal
}

// Repository provides lookup and mutation of coupon rules.
type Repository interface {
	List(ctx context.Context) ([]Rule, error)
	FindByCode(ctx context.Context, code string) (*Rule, error)
	Create(ctx context.Context, r *Rule) error
	Update(ctx context.Context, r *Rule) error
	Delete(ctx context.Context, id string) error
	// IncrementUses bumps the usage counter, failing with
	// ErrUsageLimitReached when the limit has been consumed concurrently.
	IncrementUses(ctx context.Context, code string) error
}
