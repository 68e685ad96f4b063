package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Stock is the
// scalar stock used when the product defines no variant groups; otherwise
// availability is derived per variant combination (see Resolve).
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	CategoryID  string
	Stock       int
	Variants    []VariantGroup
	FlashSale   FlashSale
	CreatedAt   time.Time
}

// VariantGroup is a named axis of product configuration (e.g. "Color") with
// its purchasable options.
type VariantGroup struct {
	Name    string
	Options []VariantOption
}

// VariantOption is one value of a variant group, carrying its own stock and
// an optional price adjustment and display image.
type VariantOption struct {
	Value           string
	PriceAdjustment decimal.Decimal
	Stock           int
	ImageURL        string
}

// FlashSale is a time-boxed override price. It discounts only while Active
// with a non-nil price and a future end date; expiry is checked at read
// time, never by a background job.
type FlashSale struct {
	Active bool
	Price  *decimal.Decimal
	EndsAt *time.Time
}

// ActiveAt reports whether the flash sale price applies at the given time.
func (f FlashSale) ActiveAt(now time.Time) bool {
	return f.Active && f.Price != nil && f.EndsAt != nil && f.EndsAt.After(now)
}

// SelectedVariant identifies one chosen option of a variant group.
type SelectedVariant struct {
	Group string `json:"name"`
	Value string `json:"value"`
}

// Validate checks the invariants a product must satisfy before it is
// written: a non-negative base price, non-negative stocks, and, when a
// flash sale is configured, an override price below the base price with an
// end date in the future.
func (p *Product) Validate(now time.Time) error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Price.IsNegative() {
		return errors.New("price cannot be negative")
	}
	if p.Stock < 0 {
		return errors.New("stock cannot be negative")
	}
	for _, g := range p.Variants {
		if g.Name == "" {
			return errors.New("variant group name is required")
		}
		if len(g.Options) == 0 {
			return errors.Errorf("variant group %q has no options", g.Name)
		}
		for _, o := range g.Options {
			if o.Value == "" {
				return errors.Errorf("variant group %q has an option without a value", g.Name)
			}
			if o.Stock < 0 {
				return errors.Errorf("variant option %s/%s stock cannot be negative", g.Name, o.Value)
			}
		}
	}
	if p.FlashSale.Active {
		if p.FlashSale.Price == nil {
			return errors.New("flash sale requires an override price")
		}
		if !p.FlashSale.Price.LessThan(p.Price) {
			return errors.New("flash sale price must be below the base price")
		}
		if p.FlashSale.EndsAt == nil || !p.FlashSale.EndsAt.After(now) {
			return errors.New("flash sale end date must be in the future")
		}
	}
	return nil
}

// StockAdjustment describes a quantity to deduct from (or restore to) the
// stock of one product, scoped to the selected variant options when the
// selection is non-empty.
type StockAdjustment struct {
	ProductID string
	Selection []SelectedVariant
	Quantity  int
}

// InsufficientStockError is returned by conditional stock deduction when a
// product (or one of its selected options) cannot cover the requested
// quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return "insufficient stock for product " + e.ProductID
}

// Repository defines persistence operations for the product catalog.
//
// DeductStock applies all adjustments in a single transaction using
// conditional decrements (stock = stock - q only where stock >= q); if any
// adjustment cannot be satisfied the whole batch rolls back and an
// *InsufficientStockError is returned. RestoreStock is its inverse and is
// unconditional.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	DeductStock(ctx context.Context, adjustments []StockAdjustment) error
	RestoreStock(ctx context.Context, adjustments []StockAdjustment) error
}
