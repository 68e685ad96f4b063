package cart

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

var (
	// ErrNotFound is returned when no cart exists for the given identity.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when no line item matches the requested
	// product + variant combination.
	ErrItemNotFound = errors.New("item not found in cart")
	// ErrNoIdentity is returned when an operation carries neither a user
	// nor a guest identity.
	ErrNoIdentity = errors.New("cart operation requires a user or guest identity")
)

// Cart holds the line items of exactly one owner: a user or a guest, never
// both. OwnerEmail/OwnerName are snapshots taken from the authenticated
// identity so the abandoned-cart reminder can address its mail without a
// user store.
type Cart struct {
	ID             string
	UserID         string
	GuestID        string
	OwnerEmail     string
	OwnerName      string
	Items          []LineItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ReminderSentAt *time.Time
}

// LineItem is one product + variant combination in a cart. Name, Price and
// ImageURL are denormalized snapshots refreshed on every mutating
// operation; live values are re-resolved on read.
type LineItem struct {
	ProductID       string                    `json:"productId"`
	Name            string                    `json:"name"`
	Price           decimal.Decimal           `json:"price"`
	ImageURL        string                    `json:"imageUrl"`
	Quantity        int                       `json:"quantity"`
	Selection       []product.SelectedVariant `json:"selectedVariants,omitempty"`
	PriceAdjustment decimal.Decimal           `json:"variantPriceAdjustment"`
}

// SelectionEqual reports whether two variant selections identify the same
// combination. Comparison is order-independent: both sides are sorted by
// (group, value) and compared positionally. Nil and empty are equal.
func SelectionEqual(a, b []product.SelectedVariant) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	as := sortedSelection(a)
	bs := sortedSelection(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func sortedSelection(sel []product.SelectedVariant) []product.SelectedVariant {
	out := make([]product.SelectedVariant, len(sel))
	copy(out, sel)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// findItem returns the index of the line matching productID + selection, or -1.
func (c *Cart) findItem(productID string, selection []product.SelectedVariant) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && SelectionEqual(c.Items[i].Selection, selection) {
			return i
		}
	}
	return -1
}

// removeItem deletes the line at index i preserving order.
func (c *Cart) removeItem(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// Repository defines persistence operations for carts.
//
// Save upserts the full cart document. ListAbandoned returns user-owned,
// non-empty carts untouched since lastActivityBefore whose reminder was
// either never sent or sent before reminderBefore. MarkReminded records the
// reminder timestamp and is safe to re-run.
type Repository interface {
	FindByUser(ctx context.Context, userID string) (*Cart, error)
	FindByGuest(ctx context.Context, guestID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	DeleteByGuest(ctx context.Context, guestID string) error
	ClearByUser(ctx context.Context, userID string) error
	ListAbandoned(ctx context.Context, lastActivityBefore, reminderBefore time.Time) ([]Cart, error)
	MarkReminded(ctx context.Context, cartID string, at time.Time) error
}
