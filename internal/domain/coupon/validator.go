package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator validates a coupon code against an order total and returns the
// computed discount. Validation never consumes a use; the usage counter is
// incremented by the caller once the order is actually placed.
type Validator interface {
	Validate(ctx context.Context, code string, total decimal.Decimal) (*Discount, error)
}

// RepoValidator implements Validator by looking up coupon rules from a
// Repository and applying them via the Apply function.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon rule for the given code, checks that it is
// active, unexpired and under its usage limit, and applies it to the total.
func (v *RepoValidator) Validate(ctx context.Context, code string, total decimal.Decimal) (*Discount, error) {
	rule, err := v.repo.FindByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !rule.Active {
		return nil, ErrInactive
	}
	if rule.ExpiresAt != nil && v.now().After(*rule.ExpiresAt) {
		return nil, ErrExpired
	}
	if rule.UsageLimit > 0 && rule.TimesUsed >= rule.UsageLimit {
		return nil, ErrUsageLimitReached
	}
	if rule.MinOrderAmount.IsPositive() && total.LessThan(rule.MinOrderAmount) {
		return nil, &MinOrderError{Code: rule.Code, Required: rule.MinOrderAmount}
	}

	d, err := Apply(rule, total)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
