package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	getCartByUserSQL = `SELECT id, user_id, guest_id, owner_email, owner_name, items,
			reminder_sent_at, created_at, updated_at
		FROM carts WHERE user_id = $1`

	getCartByGuestSQL = `SELECT id, user_id, guest_id, owner_email, owner_name, items,
			reminder_sent_at, created_at, updated_at
		FROM carts WHERE guest_id = $1`

	upsertCartSQL = `INSERT INTO carts
			(id, user_id, guest_id, owner_email, owner_name, items,
			 reminder_sent_at, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			owner_email = EXCLUDED.owner_email,
			owner_name = EXCLUDED.owner_name,
			items = EXCLUDED.items,
			reminder_sent_at = EXCLUDED.reminder_sent_at,
			updated_at = EXCLUDED.updated_at`

	deleteCartByGuestSQL = `DELETE FROM carts WHERE guest_id = $1`

	clearCartByUserSQL = `UPDATE carts SET items = '[]', updated_at = now() WHERE user_id = $1`

	listAbandonedCartsSQL = `SELECT id, user_id, guest_id, owner_email, owner_name, items,
			reminder_sent_at, created_at, updated_at
		FROM carts
		WHERE owner_email <> ''
		  AND jsonb_array_length(items) > 0
		  AND updated_at < $1
		  AND (reminder_sent_at IS NULL OR reminder_sent_at < $2)
		ORDER BY updated_at`

	markCartRemindedSQL = `UPDATE carts SET reminder_sent_at = $2 WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Line
// items are stored as a JSONB document since they are only ever read and
// written as a whole.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// FindByUser returns the authenticated user's cart.
func (r *CartRepository) FindByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	return r.findOne(ctx, getCartByUserSQL, userID)
}

// FindByGuest returns the guest device's cart.
func (r *CartRepository) FindByGuest(ctx context.Context, guestID string) (*cart.Cart, error) {
	return r.findOne(ctx, getCartByGuestSQL, guestID)
}

// Save upserts the cart document.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}
	_, err = r.pool.Exec(ctx, upsertCartSQL,
		c.ID, c.UserID, c.GuestID, c.OwnerEmail, c.OwnerName, items,
		c.ReminderSentAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving cart %q: %w", c.ID, err)
	}
	return nil
}

// DeleteByGuest removes a guest cart, typically after a merge.
func (r *CartRepository) DeleteByGuest(ctx context.Context, guestID string) error {
	_, err := r.pool.Exec(ctx, deleteCartByGuestSQL, guestID)
	if err != nil {
		return fmt.Errorf("deleting guest cart: %w", err)
	}
	return nil
}

// ClearByUser empties the user's cart without deleting the row.
func (r *CartRepository) ClearByUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, clearCartByUserSQL, userID)
	if err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}

// ListAbandoned returns carts with items and a known owner email whose last
// activity predates lastActivityBefore and whose last reminder (if any)
// predates reminderBefore.
func (r *CartRepository) ListAbandoned(ctx context.Context, lastActivityBefore, reminderBefore time.Time) ([]cart.Cart, error) {
	rows, err := r.pool.Query(ctx, listAbandonedCartsSQL, lastActivityBefore, reminderBefore)
	if err != nil {
		return nil, fmt.Errorf("listing abandoned carts: %w", err)
	}
	return pgx.CollectRows(rows, scanCart)
}

// MarkReminded records that a reminder email went out for the cart.
func (r *CartRepository) MarkReminded(ctx context.Context, cartID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, markCartRemindedSQL, cartID, at)
	if err != nil {
		return fmt.Errorf("marking cart reminded: %w", err)
	}
	return nil
}

func (r *CartRepository) findOne(ctx context.Context, sql, arg string) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting cart: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart: %w", err)
	}
	return &c, nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var (
		c       cart.Cart
		userID  *string
		guestID *string
		items   []byte
	)
	err := row.Scan(
		&c.ID, &userID, &guestID, &c.OwnerEmail, &c.OwnerName, &items,
		&c.ReminderSentAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return cart.Cart{}, err
	}
	if userID != nil {
		c.UserID = *userID
	}
	if guestID != nil {
		c.GuestID = *guestID
	}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return cart.Cart{}, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	return c, nil
}
