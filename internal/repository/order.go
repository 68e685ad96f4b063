package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, guest_id, items, address, subtotal, shipping_cost,
		discount, coupon_code, total, payment_method, status, paymob_order_id,
		transaction_id, tracking_id, tracking_status, email_sent, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders
			(id, user_id, guest_id, items, address, subtotal, shipping_cost,
			 discount, coupon_code, total, payment_method, status, paymob_order_id,
			 transaction_id, tracking_id, tracking_status, email_sent, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19)`

	updateOrderSQL = `UPDATE orders SET
			status = $2, paymob_order_id = $3, transaction_id = $4,
			tracking_id = $5, tracking_status = $6, email_sent = $7, updated_at = $8
		WHERE id = $1`
)

var (
	getOrderByIDSQL       = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderByPaymobSQL   = `SELECT ` + orderColumns + ` FROM orders WHERE paymob_order_id = $1`
	getOrderByTrackingSQL = `SELECT ` + orderColumns + ` FROM orders WHERE tracking_id = $1`
	listOrdersByUserSQL   = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	listOrdersSQL         = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items and the shipping address are immutable snapshots, stored as JSONB.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a freshly placed order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	address, err := json.Marshal(o.Address)
	if err != nil {
		return fmt.Errorf("marshaling order address: %w", err)
	}
	_, err = r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.GuestID, items, address, o.Subtotal, o.ShippingCost,
		o.Discount, o.CouponCode, o.Total, o.PaymentMethod, o.Status, o.PaymobOrderID,
		o.TransactionID, o.TrackingID, o.TrackingStatus, o.EmailSent, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

// GetByID returns one order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.findOne(ctx, getOrderByIDSQL, id)
}

// GetByPaymobOrderID returns the order registered under the gateway id.
func (r *OrderRepository) GetByPaymobOrderID(ctx context.Context, paymobID int64) (*order.Order, error) {
	return r.findOne(ctx, getOrderByPaymobSQL, paymobID)
}

// GetByTrackingID returns the order owning a carrier tracking id.
func (r *OrderRepository) GetByTrackingID(ctx context.Context, trackingID string) (*order.Order, error) {
	return r.findOne(ctx, getOrderByTrackingSQL, trackingID)
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Update persists the order's mutable lifecycle fields.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := r.pool.Exec(ctx, updateOrderSQL,
		o.ID, o.Status, o.PaymobOrderID, o.TransactionID,
		o.TrackingID, o.TrackingStatus, o.EmailSent, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) findOne(ctx context.Context, sql string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		userID  *string
		guestID *string
		items   []byte
		address []byte
	)
	err := row.Scan(
		&o.ID, &userID, &guestID, &items, &address, &o.Subtotal, &o.ShippingCost,
		&o.Discount, &o.CouponCode, &o.Total, &o.PaymentMethod, &o.Status, &o.PaymobOrderID,
		&o.TransactionID, &o.TrackingID, &o.TrackingStatus, &o.EmailSent, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}
	if userID != nil {
		o.UserID = *userID
	}
	if guestID != nil {
		o.GuestID = *guestID
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.Address); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order address: %w", err)
	}
	return o, nil
}
