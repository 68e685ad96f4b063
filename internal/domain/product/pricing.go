package product

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the resolved price and availability of one exact product +
// variant combination at a point in time. Every price-bearing path (cart
// read, cart add, cart update, merge, order placement, listings) goes
// through Resolve so the numbers cannot drift between call sites.
type Quote struct {
	// UnitPrice is the effective per-unit price: flash sale price when
	// active, base price otherwise, plus the selected options' adjustments.
	UnitPrice decimal.Decimal
	// OriginalPrice is the base price before any flash sale override,
	// retained for display.
	OriginalPrice decimal.Decimal
	// PriceAdjustment is the summed adjustment of the selected options.
	PriceAdjustment decimal.Decimal
	// Stock is the stock ceiling for this exact combination: the minimum
	// across the selected options, or the product's scalar stock when no
	// variants are involved.
	Stock int
	// ImageURL is the display image: the last selected option that defines
	// its own image wins, falling back to the product image.
	ImageURL string
	// OnFlashSale reports whether the flash sale price was applied.
	OnFlashSale bool
}

// UnknownVariantError indicates a selected {group, value} pair that does not
// exist on the product. Value is empty when the group itself is unknown.
type UnknownVariantError struct {
	ProductID string
	Group     string
	Value     string
}

func (e *UnknownVariantError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("variant group %q not found for product %s", e.Group, e.ProductID)
	}
	return fmt.Sprintf("variant option %q not found in group %q for product %s", e.Value, e.Group, e.ProductID)
}

// SelectionMismatchError indicates a selection that does not fit the
// product's shape: the product defines variant groups but none were
// selected, or options were selected on a product without variants.
type SelectionMismatchError struct {
	ProductID   string
	HasVariants bool
}

func (e *SelectionMismatchError) Error() string {
	if e.HasVariants {
		return fmt.Sprintf("product %s has variants; a variant selection is required", e.ProductID)
	}
	return fmt.Sprintf("product %s does not support variants; remove the variant selection", e.ProductID)
}

// Resolve computes the Quote for the given product and variant selection at
// time now. A selection that does not match the product's variant shape, or
// that references an unknown group or option, is a hard input error.
func Resolve(p *Product, selection []SelectedVariant, now time.Time) (Quote, error) {
	q := Quote{
		UnitPrice:     p.Price,
		OriginalPrice: p.Price,
		Stock:         p.Stock,
		ImageURL:      p.ImageURL,
	}

	if p.FlashSale.ActiveAt(now) {
		q.UnitPrice = *p.FlashSale.Price
		q.OnFlashSale = true
	}

	hasVariants := len(p.Variants) > 0
	hasSelection := len(selection) > 0

	switch {
	case hasVariants && !hasSelection:
		return Quote{}, &SelectionMismatchError{ProductID: p.ID, HasVariants: true}
	case !hasVariants && hasSelection:
		return Quote{}, &SelectionMismatchError{ProductID: p.ID}
	case !hasVariants:
		return q, nil
	}

	minStock := -1
	for _, sel := range selection {
		group := findGroup(p.Variants, sel.Group)
		if group == nil {
			return Quote{}, &UnknownVariantError{ProductID: p.ID, Group: sel.Group}
		}
		opt := findOption(group.Options, sel.Value)
		if opt == nil {
			return Quote{}, &UnknownVariantError{ProductID: p.ID, Group: sel.Group, Value: sel.Value}
		}

		q.PriceAdjustment = q.PriceAdjustment.Add(opt.PriceAdjustment)
		if opt.ImageURL != "" {
			q.ImageURL = opt.ImageURL
		}
		// A combination is only as available as its scarcest option.
		if minStock < 0 || opt.Stock < minStock {
			minStock = opt.Stock
		}
	}

	q.UnitPrice = q.UnitPrice.Add(q.PriceAdjustment)
	q.Stock = minStock
	return q, nil
}

func findGroup(groups []VariantGroup, name string) *VariantGroup {
	for i := range groups {
		if groups[i].Name == name {
			return &groups[i]
		}
	}
	return nil
}

func findOption(options []VariantOption, value string) *VariantOption {
	for i := range options {
		if options[i].Value == value {
			return &options[i]
		}
	}
	return nil
}
