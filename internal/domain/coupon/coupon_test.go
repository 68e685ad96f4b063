package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func dp(v string) *decimal.Decimal {
	dec := decimal.RequireFromString(v)
	return &dec
}

func TestApply(t *testing.T) {
	tests := []struct {
		name       string
		rule       *Rule
		total      decimal.Decimal
		wantAmount decimal.Decimal
		wantTotal  decimal.Decimal
		wantErr    string
	}{
		{
			name:       "percentage 10% off 250",
			rule:       &Rule{Code: "SAVE10", DiscountType: DiscountPercentage, Value: d("10")},
			total:      d("250"),
			wantAmount: d("25"),
			wantTotal:  d("225"),
		},
		{
			name: "percentage capped by max discount",
			rule: &Rule{
				Code:         "SAVE20",
				DiscountType: DiscountPercentage,
				Value:        d("20"),
				MaxDiscount:  dp("30"),
			},
			total:      d("500"),
			wantAmount: d("30"),
			wantTotal:  d("470"),
		},
		{
			name: "percentage under cap keeps computed amount",
			rule: &Rule{
				Code:         "SAVE20",
				DiscountType: DiscountPercentage,
				Value:        d("20"),
				MaxDiscount:  dp("30"),
			},
			total:      d("100"),
			wantAmount: d("20"),
			wantTotal:  d("80"),
		},
		{
			name:       "fixed 50 off 200",
			rule:       &Rule{Code: "FLAT50", DiscountType: DiscountFixed, Value: d("50")},
			total:      d("200"),
			wantAmount: d("50"),
			wantTotal:  d("150"),
		},
		{
			name:       "fixed larger than total floors at zero",
			rule:       &Rule{Code: "FLAT50", DiscountType: DiscountFixed, Value: d("50")},
			total:      d("30"),
			wantAmount: d("30"),
			wantTotal:  d("0"),
		},
		{
			name:       "percentage rounds to two places",
			rule:       &Rule{Code: "SAVE15", DiscountType: DiscountPercentage, Value: d("15")},
			total:      d("99.99"),
			wantAmount: d("15.00"),
			wantTotal:  d("84.99"),
		},
		{
			name:    "unsupported type",
			rule:    &Rule{Code: "WAT", DiscountType: "bogo"},
			total:   d("100"),
			wantErr: "unsupported discount type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.rule, tt.total)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantAmount.Equal(got.Amount),
				"amount = %s, want %s", got.Amount, tt.wantAmount)
			assert.True(t, tt.wantTotal.Equal(got.NewTotal),
				"new total = %s, want %s", got.NewTotal, tt.wantTotal)
		})
	}
}

type mockCouponRepo struct {
	rule *Rule
	err  error
}

func (m *mockCouponRepo) List(_ context.Context) ([]Rule, error) { return nil, nil }
func (m *mockCouponRepo) Create(_ context.Context, _ *Rule) error { return nil }
func (m *mockCouponRepo) Update(_ context.Context, _ *Rule) error { return nil }
func (m *mockCouponRepo) Delete(_ context.Context, _ string) error { return nil }
func (m *mockCouponRepo) IncrementUses(_ context.Context, _ string) error { return nil }

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}

func newValidatorAt(repo Repository, now time.Time) *RepoValidator {
	v := NewRepoValidator(repo)
	v.now = func() time.Time { return now }
	return v
}

func TestRepoValidator_Validate(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name       string
		rule       *Rule
		repoErr    error
		total      decimal.Decimal
		wantErr    error
		wantAmount decimal.Decimal
	}{
		{
			name:       "valid percentage coupon",
			rule:       &Rule{Code: "SAVE10", DiscountType: DiscountPercentage, Value: d("10"), Active: true},
			total:      d("100"),
			wantAmount: d("10"),
		},
		{
			name:    "unknown code",
			repoErr: ErrNotFound,
			total:   d("100"),
			wantErr: ErrNotFound,
		},
		{
			name:    "inactive coupon",
			rule:    &Rule{Code: "OFF", DiscountType: DiscountFixed, Value: d("5")},
			total:   d("100"),
			wantErr: ErrInactive,
		},
		{
			name: "expired coupon",
			rule: &Rule{
				Code: "OLD", DiscountType: DiscountFixed, Value: d("5"),
				Active: true, ExpiresAt: &past,
			},
			total:   d("100"),
			wantErr: ErrExpired,
		},
		{
			name: "not yet expired coupon passes",
			rule: &Rule{
				Code: "LIVE", DiscountType: DiscountFixed, Value: d("5"),
				Active: true, ExpiresAt: &future,
			},
			total:      d("100"),
			wantAmount: d("5"),
		},
		{
			name: "usage limit reached",
			rule: &Rule{
				Code: "LIM", DiscountType: DiscountFixed, Value: d("5"),
				Active: true, UsageLimit: 3, TimesUsed: 3,
			},
			total:   d("100"),
			wantErr: ErrUsageLimitReached,
		},
		{
			name: "unlimited usage when limit is zero",
			rule: &Rule{
				Code: "OPEN", DiscountType: DiscountFixed, Value: d("5"),
				Active: true, TimesUsed: 9000,
			},
			total:      d("100"),
			wantAmount: d("5"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidatorAt(&mockCouponRepo{rule: tt.rule, err: tt.repoErr}, now)

			got, err := v.Validate(context.Background(), "code", tt.total)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantAmount.Equal(got.Amount))
		})
	}
}

func TestRepoValidator_MinOrderAmount(t *testing.T) {
	rule := &Rule{
		Code:           "BIG",
		DiscountType:   DiscountPercentage,
		Value:          d("10"),
		MinOrderAmount: d("200"),
		Active:         true,
	}
	v := newValidatorAt(&mockCouponRepo{rule: rule}, time.Now())

	_, err := v.Validate(context.Background(), "BIG", d("150"))
	var minErr *MinOrderError
	require.ErrorAs(t, err, &minErr)
	assert.True(t, d("200").Equal(minErr.Required))

	got, err := v.Validate(context.Background(), "BIG", d("200"))
	require.NoError(t, err)
	assert.True(t, d("20").Equal(got.Amount))
}
