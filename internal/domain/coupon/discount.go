package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Apply calculates the discount the rule grants against the given order
// total (items plus shipping). Eligibility checks belong to the Validator;
// Apply assumes the rule is usable and only computes amounts.
func Apply(rule *Rule, total decimal.Decimal) (Discount, error) {
	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = total.Mul(rule.Value).Div(hundred)
		if rule.MaxDiscount != nil && amount.GreaterThan(*rule.MaxDiscount) {
			amount = *rule.MaxDiscount
		}
	case DiscountFixed:
		amount = decimal.Min(rule.Value, total)
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	amount = floorAtZero(amount).Round(2)

	return Discount{
		Code:     rule.Code,
		Amount:   amount,
		NewTotal: floorAtZero(total.Sub(amount)).Round(2),
	}, nil
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
