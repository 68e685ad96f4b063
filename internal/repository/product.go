package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, description, price, image_url, category_id, stock,
			flash_sale_active, flash_sale_price, flash_sale_ends_at, created_at
		FROM products ORDER BY created_at DESC, id`

	getProductByIDSQL = `SELECT id, name, description, price, image_url, category_id, stock,
			flash_sale_active, flash_sale_price, flash_sale_ends_at, created_at
		FROM products WHERE id = $1`

	listVariantOptionsSQL = `SELECT group_name, value, price_adjustment, stock, image_url
		FROM product_variant_options WHERE product_id = $1
		ORDER BY group_name, position, value`

	insertProductSQL = `INSERT INTO products
			(id, name, description, price, image_url, category_id, stock,
			 flash_sale_active, flash_sale_price, flash_sale_ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, $7, $8, $9, $10, $11)`

	updateProductSQL = `UPDATE products SET
			name = $2, description = $3, price = $4, image_url = $5,
			category_id = NULLIF($6, '')::uuid, stock = $7,
			flash_sale_active = $8, flash_sale_price = $9, flash_sale_ends_at = $10
		WHERE id = $1`

	insertVariantOptionSQL = `INSERT INTO product_variant_options
			(product_id, group_name, value, price_adjustment, stock, image_url, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	deleteVariantOptionsSQL = `DELETE FROM product_variant_options WHERE product_id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	adjustProductStockSQL = `UPDATE products
		SET stock = stock + $2
		WHERE id = $1 AND stock + $2 >= 0`

	adjustOptionStockSQL = `UPDATE product_variant_options
		SET stock = stock + $4
		WHERE product_id = $1 AND group_name = $2 AND value = $3 AND stock + $4 >= 0`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
// Variant options live in their own table so stock mutations can be
// conditional single-row updates.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the whole catalog with variants attached, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	for i := range products {
		if err := r.loadVariants(ctx, &products[i]); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// GetByID returns a single product with its variant groups.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	if err := r.loadVariants(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts the product and its variant options in one transaction.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.ImageURL, p.CategoryID, p.Stock,
			p.FlashSale.Active, p.FlashSale.Price, p.FlashSale.EndsAt, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting product: %w", err)
		}
		return insertVariants(ctx, tx, p)
	})
}

// Update overwrites the product row and replaces its variant options.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.ImageURL, p.CategoryID, p.Stock,
			p.FlashSale.Active, p.FlashSale.Price, p.FlashSale.EndsAt,
		)
		if err != nil {
			return fmt.Errorf("updating product: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return product.ErrNotFound
		}
		if _, err := tx.Exec(ctx, deleteVariantOptionsSQL, p.ID); err != nil {
			return fmt.Errorf("clearing variant options: %w", err)
		}
		return insertVariants(ctx, tx, p)
	})
}

// Delete removes the product; variant options cascade.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// DeductStock applies the adjustments atomically. The conditional updates
// keep stock from ever crossing zero; any failure rolls the whole batch
// back and reports which product ran short.
func (r *ProductRepository) DeductStock(ctx context.Context, adjustments []product.StockAdjustment) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return applyStock(ctx, tx, adjustments, -1)
	})
}

// RestoreStock returns previously deducted stock, e.g. on cancellation.
func (r *ProductRepository) RestoreStock(ctx context.Context, adjustments []product.StockAdjustment) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return applyStock(ctx, tx, adjustments, 1)
	})
}

func applyStock(ctx context.Context, tx pgx.Tx, adjustments []product.StockAdjustment, sign int) error {
	for _, adj := range adjustments {
		delta := sign * adj.Quantity
		if len(adj.Selection) == 0 {
			tag, err := tx.Exec(ctx, adjustProductStockSQL, adj.ProductID, delta)
			if err != nil {
				return fmt.Errorf("adjusting product stock: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return &product.InsufficientStockError{ProductID: adj.ProductID, Requested: adj.Quantity}
			}
			continue
		}
		// Every selected option tracks its own stock; decrement all of them.
		for _, sel := range adj.Selection {
			tag, err := tx.Exec(ctx, adjustOptionStockSQL, adj.ProductID, sel.Group, sel.Value, delta)
			if err != nil {
				return fmt.Errorf("adjusting option stock: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return &product.InsufficientStockError{ProductID: adj.ProductID, Requested: adj.Quantity}
			}
		}
	}
	return nil
}

func insertVariants(ctx context.Context, tx pgx.Tx, p *product.Product) error {
	for _, group := range p.Variants {
		for pos, opt := range group.Options {
			_, err := tx.Exec(ctx, insertVariantOptionSQL,
				p.ID, group.Name, opt.Value, opt.PriceAdjustment, opt.Stock, opt.ImageURL, pos,
			)
			if err != nil {
				return fmt.Errorf("inserting variant option: %w", err)
			}
		}
	}
	return nil
}

func (r *ProductRepository) loadVariants(ctx context.Context, p *product.Product) error {
	rows, err := r.pool.Query(ctx, listVariantOptionsSQL, p.ID)
	if err != nil {
		return fmt.Errorf("listing variant options: %w", err)
	}
	defer rows.Close()

	var groups []product.VariantGroup
	for rows.Next() {
		var (
			groupName string
			opt       product.VariantOption
		)
		if err := rows.Scan(&groupName, &opt.Value, &opt.PriceAdjustment, &opt.Stock, &opt.ImageURL); err != nil {
			return fmt.Errorf("scanning variant option: %w", err)
		}
		if len(groups) == 0 || groups[len(groups)-1].Name != groupName {
			groups = append(groups, product.VariantGroup{Name: groupName})
		}
		last := &groups[len(groups)-1]
		last.Options = append(last.Options, opt)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading variant options: %w", err)
	}
	p.Variants = groups
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p          product.Product
		categoryID *string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &categoryID, &p.Stock,
		&p.FlashSale.Active, &p.FlashSale.Price, &p.FlashSale.EndsAt, &p.CreatedAt,
	)
	if categoryID != nil {
		p.CategoryID = *categoryID
	}
	return p, err
}
