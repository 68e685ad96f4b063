package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
)

// StockError indicates a requested quantity above the current stock ceiling
// of the exact product + variant combination.
type StockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("not enough stock for %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// ProductGoneError reports a line item whose product no longer exists. The
// orphaned line has already been pruned from the cart when this is returned.
type ProductGoneError struct {
	ProductID string
}

func (e *ProductGoneError) Error() string {
	return fmt.Sprintf("product %s no longer exists and was removed from the cart", e.ProductID)
}

// ResolvedItem pairs a stored line item with its live quote so readers see
// current pricing, flash-sale state and stock rather than stale snapshots.
type ResolvedItem struct {
	Item  LineItem
	Quote product.Quote
}

// View is a cart prepared for reading: every surviving line re-resolved
// against live product state. Lines whose products vanished are skipped.
type View struct {
	Cart  *Cart
	Items []ResolvedItem
}

// Service orchestrates cart mutations against the pricing resolver and the
// per-combination stock ceilings.
type Service struct {
	products product.Repository
	carts    Repository
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(products product.Repository, carts Repository) *Service {
	return &Service{
		products: products,
		carts:    carts,
		now:      time.Now,
	}
}

// Get returns the identity's cart resolved against live product state. A
// missing cart is returned as an empty view, not an error.
func (s *Service) Get(ctx context.Context, id auth.Identity) (*View, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &View{Cart: &Cart{}}, nil
		}
		return nil, err
	}

	now := s.now()
	view := &View{Cart: c, Items: make([]ResolvedItem, 0, len(c.Items))}
	for _, item := range c.Items {
		p, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				continue
			}
			return nil, errors.Wrapf(err, "get product %s", item.ProductID)
		}
		q, err := product.Resolve(p, item.Selection, now)
		if err != nil {
			// The stored selection no longer matches the product's variant
			// shape (admin edit); hide the line rather than fail the read.
			continue
		}
		view.Items = append(view.Items, ResolvedItem{Item: item, Quote: q})
	}
	return view, nil
}

// Add puts quantity units of the product + selection into the identity's
// cart, growing a matching line when one exists. The new line total must
// fit under the current stock ceiling or a *StockError is returned with no
// mutation. The cart document is created on first add.
func (s *Service) Add(ctx context.Context, id auth.Identity, productID string, quantity int, selection []product.SelectedVariant) (*Cart, error) {
	if quantity <= 0 {
		return nil, errors.New("quantity must be a positive number")
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	q, err := product.Resolve(p, selection, s.now())
	if err != nil {
		return nil, err
	}

	c, err := s.findOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}

	if i := c.findItem(productID, selection); i >= 0 {
		newTotal := c.Items[i].Quantity + quantity
		if newTotal > q.Stock {
			return nil, &StockError{
				ProductID:   productID,
				ProductName: p.Name,
				Available:   q.Stock,
				Requested:   newTotal,
			}
		}
		c.Items[i].Quantity = newTotal
		s.refreshSnapshot(&c.Items[i], p, q)
	} else {
		if quantity > q.Stock {
			return nil, &StockError{
				ProductID:   productID,
				ProductName: p.Name,
				Available:   q.Stock,
				Requested:   quantity,
			}
		}
		item := LineItem{
			ProductID: productID,
			Quantity:  quantity,
			Selection: selection,
		}
		s.refreshSnapshot(&item, p, q)
		c.Items = append(c.Items, item)
	}

	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Update overwrites the quantity of the matching line, re-validating
// against the current stock ceiling. Quantity 0 removes the line. When the
// underlying product no longer exists the orphaned line is pruned and a
// *ProductGoneError returned alongside the updated cart.
func (s *Service) Update(ctx context.Context, id auth.Identity, productID string, selection []product.SelectedVariant, quantity int) (*Cart, error) {
	if quantity < 0 {
		return nil, errors.New("quantity cannot be negative")
	}
	if quantity == 0 {
		return s.Remove(ctx, id, productID, selection)
	}

	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	i := c.findItem(productID, selection)
	if i < 0 {
		return nil, ErrItemNotFound
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			c.removeItem(i)
			c.UpdatedAt = s.now()
			if saveErr := s.carts.Save(ctx, c); saveErr != nil {
				return nil, errors.Wrap(saveErr, "save cart")
			}
			return c, &ProductGoneError{ProductID: productID}
		}
		return nil, err
	}

	q, err := product.Resolve(p, selection, s.now())
	if err != nil {
		return nil, err
	}
	// Stock may have shrunk since the item was added.
	if quantity > q.Stock {
		return nil, &StockError{
			ProductID:   productID,
			ProductName: p.Name,
			Available:   q.Stock,
			Requested:   quantity,
		}
	}

	c.Items[i].Quantity = quantity
	s.refreshSnapshot(&c.Items[i], p, q)
	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Remove deletes the matching line. A missing match is ErrItemNotFound, not
// a no-op.
func (s *Service) Remove(ctx context.Context, id auth.Identity, productID string, selection []product.SelectedVariant) (*Cart, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	i := c.findItem(productID, selection)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	c.removeItem(i)
	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Clear empties the authenticated user's cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoIdentity
	}
	return s.carts.ClearByUser(ctx, userID)
}

// Merge folds the guest cart into the user's cart: matching lines sum their
// quantities and refresh their snapshots from current product state,
// unmatched lines translate over. The guest cart is deleted afterward, so
// the guest identity becomes unusable. A missing guest cart is a no-op.
func (s *Service) Merge(ctx context.Context, guestID string, user auth.Identity) (*Cart, error) {
	if guestID == "" || !user.Authenticated() {
		return nil, ErrNoIdentity
	}

	guestCart, err := s.carts.FindByGuest(ctx, guestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.findOrCreate(ctx, user)
		}
		return nil, err
	}

	userCart, err := s.carts.FindByUser(ctx, user.UserID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		userCart = s.newCart(user)
	}

	now := s.now()
	for _, guestItem := range guestCart.Items {
		p, err := s.products.GetByID(ctx, guestItem.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				continue
			}
			return nil, errors.Wrapf(err, "get product %s", guestItem.ProductID)
		}
		q, err := product.Resolve(p, guestItem.Selection, now)
		if err != nil {
			continue
		}

		if i := userCart.findItem(guestItem.ProductID, guestItem.Selection); i >= 0 {
			userCart.Items[i].Quantity += guestItem.Quantity
			s.refreshSnapshot(&userCart.Items[i], p, q)
		} else {
			item := guestItem
			s.refreshSnapshot(&item, p, q)
			userCart.Items = append(userCart.Items, item)
		}
	}

	userCart.UpdatedAt = now
	if err := s.carts.Save(ctx, userCart); err != nil {
		return nil, errors.Wrap(err, "save user cart")
	}
	if err := s.carts.DeleteByGuest(ctx, guestID); err != nil {
		return nil, errors.Wrap(err, "delete guest cart")
	}
	return userCart, nil
}

func (s *Service) refreshSnapshot(item *LineItem, p *product.Product, q product.Quote) {
	item.Name = p.Name
	item.Price = q.UnitPrice
	item.ImageURL = q.ImageURL
	item.PriceAdjustment = q.PriceAdjustment
}

func (s *Service) find(ctx context.Context, id auth.Identity) (*Cart, error) {
	switch {
	case id.Authenticated():
		return s.carts.FindByUser(ctx, id.UserID)
	case id.Guest():
		return s.carts.FindByGuest(ctx, id.GuestID)
	default:
		return nil, ErrNoIdentity
	}
}

func (s *Service) findOrCreate(ctx context.Context, id auth.Identity) (*Cart, error) {
	c, err := s.find(ctx, id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.newCart(id), nil
}

func (s *Service) newCart(id auth.Identity) *Cart {
	now := s.now()
	c := &Cart{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if id.Authenticated() {
		c.UserID = id.UserID
		c.OwnerEmail = id.Email
		c.OwnerName = id.Name
	} else {
		c.GuestID = id.GuestID
	}
	return c
}
