package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/repository"
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	categories := repository.NewCategoryRepository(pool)
	products := repository.NewProductRepository(pool)
	coupons := repository.NewCouponRepository(pool)

	apparelID, err := seedCategories(ctx, categories)
	if err != nil {
		return errors.Wrap(err, "seed categories")
	}

	if err := seedProducts(ctx, products, apparelID); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedCategories(ctx context.Context, repo *repository.CategoryRepository) (string, error) {
	slog.Info("seeding categories")

	apparel := &product.Category{
		ID:          uuid.New().String(),
		Name:        "Apparel",
		Description: "T-shirts, hoodies and accessories",
		CreatedAt:   time.Now(),
	}

	existing, err := repo.ListCategories(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range existing {
		if c.Name == apparel.Name {
			slog.Info("category already present", slog.String("id", c.ID))
			return c.ID, nil
		}
	}

	if err := repo.CreateCategory(ctx, apparel); err != nil {
		return "", err
	}
	slog.Info("created category", slog.String("id", apparel.ID), slog.String("name", apparel.Name))
	return apparel.ID, nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, categoryID string) error {
	flashPrice := decimal.NewFromInt(199)
	flashEnds := time.Now().Add(7 * 24 * time.Hour)

	products := []*product.Product{
		{
			ID:          uuid.New().String(),
			Name:        "Classic Cotton T-Shirt",
			Description: "Soft 100% cotton tee, pre-shrunk",
			Price:       decimal.NewFromInt(250),
			ImageURL:    "https://cdn.example.com/images/tshirt.jpg",
			CategoryID:  categoryID,
			Variants: []product.VariantGroup{
				{
					Name: "Size",
					Options: []product.VariantOption{
						{Value: "S", Stock: 10},
						{Value: "M", Stock: 15},
						{Value: "L", Stock: 12},
						{Value: "XL", PriceAdjustment: decimal.NewFromInt(20), Stock: 8},
					},
				},
				{
					Name: "Color",
					Options: []product.VariantOption{
						{Value: "Black", Stock: 25, ImageURL: "https://cdn.example.com/images/tshirt-black.jpg"},
						{Value: "White", Stock: 20, ImageURL: "https://cdn.example.com/images/tshirt-white.jpg"},
					},
				},
			},
			FlashSale: product.FlashSale{Active: true, Price: &flashPrice, EndsAt: &flashEnds},
			CreatedAt: time.Now(),
		},
		{
			ID:          uuid.New().String(),
			Name:        "Zip Hoodie",
			Description: "Heavyweight fleece hoodie with front pockets",
			Price:       decimal.NewFromInt(550),
			ImageURL:    "https://cdn.example.com/images/hoodie.jpg",
			CategoryID:  categoryID,
			Stock:       30,
			CreatedAt:   time.Now(),
		},
		{
			ID:          uuid.New().String(),
			Name:        "Canvas Tote Bag",
			Description: "Durable everyday tote",
			Price:       decimal.NewFromInt(120),
			ImageURL:    "https://cdn.example.com/images/tote.jpg",
			CategoryID:  categoryID,
			Stock:       50,
			CreatedAt:   time.Now(),
		},
	}

	existing, err := repo.List(ctx)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(existing))
	for _, p := range existing {
		present[p.Name] = true
	}

	slog.Info("seeding products", slog.Int("count", len(products)))
	for _, p := range products {
		if present[p.Name] {
			slog.Info("product already present", slog.String("name", p.Name))
			continue
		}
		if err := repo.Create(ctx, p); err != nil {
			return errors.Wrapf(err, "create product %s", p.Name)
		}
		slog.Info("created product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding coupons")

	maxDiscount := decimal.NewFromInt(100)
	expires := time.Now().Add(30 * 24 * time.Hour)

	coupons := []*coupon.Rule{
		{
			ID:           uuid.New().String(),
			Code:         "WELCOME10",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			MaxDiscount:  &maxDiscount,
			UsageLimit:   1000,
			Active:       true,
			CreatedAt:    time.Now(),
		},
		{
			ID:             uuid.New().String(),
			Code:           "FLAT50",
			DiscountType:   coupon.DiscountFixed,
			Value:          decimal.NewFromInt(50),
			MinOrderAmount: decimal.NewFromInt(500),
			ExpiresAt:      &expires,
			Active:         true,
			CreatedAt:      time.Now(),
		},
	}

	for _, c := range coupons {
		if _, err := repo.FindByCode(ctx, c.Code); err == nil {
			slog.Info("coupon already present", slog.String("code", c.Code))
			continue
		}
		if err := repo.Create(ctx, c); err != nil {
			return errors.Wrapf(err, "create coupon %s", c.Code)
		}
		slog.Info("created coupon", slog.String("code", c.Code))
	}

	return nil
}
