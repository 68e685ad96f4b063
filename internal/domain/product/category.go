package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrCategoryNotFound is returned when a requested category does not exist.
var ErrCategoryNotFound = errors.New("category not found")

// Category groups products for browsing and filtering.
type Category struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id string) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) error
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id string) error
}
