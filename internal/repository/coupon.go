package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	listCouponsSQL = `SELECT id, code, discount_type, value, min_order_amount, max_discount,
			usage_limit, times_used, expires_at, active, created_at
		FROM coupons ORDER BY created_at DESC`

	getCouponByCodeSQL = `SELECT id, code, discount_type, value, min_order_amount, max_discount,
			usage_limit, times_used, expires_at, active, created_at
		FROM coupons WHERE code = $1`

	insertCouponSQL = `INSERT INTO coupons
			(id, code, discount_type, value, min_order_amount, max_discount,
			 usage_limit, times_used, expires_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateCouponSQL = `UPDATE coupons SET
			code = $2, discount_type = $3, value = $4, min_order_amount = $5,
			max_discount = $6, usage_limit = $7, expires_at = $8, active = $9
		WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	// The usage_limit guard makes concurrent placements race safely: the
	// last slot goes to exactly one of them.
	incrementCouponUsesSQL = `UPDATE coupons
		SET times_used = times_used + 1
		WHERE code = $1 AND (usage_limit = 0 OR times_used < usage_limit)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// List returns every coupon, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// FindByCode returns the coupon matching the exact code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %q: %w", code, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("getting coupon %q: %w", code, err)
	}
	return &c, nil
}

// Create inserts a new coupon rule.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Rule) error {
	_, err := r.pool.Exec(ctx, insertCouponSQL,
		c.ID, c.Code, c.DiscountType, c.Value, c.MinOrderAmount, c.MaxDiscount,
		c.UsageLimit, c.TimesUsed, c.ExpiresAt, c.Active, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting coupon: %w", err)
	}
	return nil
}

// Update overwrites the coupon's rule fields; times_used is only ever
// moved through IncrementUses.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Rule) error {
	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		c.ID, c.Code, c.DiscountType, c.Value, c.MinOrderAmount,
		c.MaxDiscount, c.UsageLimit, c.ExpiresAt, c.Active,
	)
	if err != nil {
		return fmt.Errorf("updating coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes a coupon.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// IncrementUses consumes one use, guarded against exceeding the limit.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, incrementCouponUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing coupon uses: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageLimitReached
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Rule, error) {
	var c coupon.Rule
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.Value, &c.MinOrderAmount, &c.MaxDiscount,
		&c.UsageLimit, &c.TimesUsed, &c.ExpiresAt, &c.Active, &c.CreatedAt,
	)
	return c, err
}
