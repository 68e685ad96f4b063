package order

import "github.com/shopspring/decimal"

// shippingRates is the flat per-governorate delivery fee table. The server
// value is authoritative; client-supplied costs are only cross-checked.
var shippingRates = map[string]decimal.Decimal{
	"Cairo":    decimal.NewFromInt(50),
	"Giza":     decimal.NewFromInt(50),
	"Qalyubia": decimal.NewFromInt(50),

	"Alexandria":     decimal.NewFromInt(75),
	"Dakahlia":       decimal.NewFromInt(75),
	"Gharbia":        decimal.NewFromInt(75),
	"Menoufia":       decimal.NewFromInt(75),
	"Sharqia":        decimal.NewFromInt(75),
	"El-Beheira":     decimal.NewFromInt(75),
	"Damietta":       decimal.NewFromInt(75),
	"Ismailia":       decimal.NewFromInt(75),
	"Suez":           decimal.NewFromInt(75),
	"Port Said":      decimal.NewFromInt(75),
	"Kafr el-Sheikh": decimal.NewFromInt(75),

	"Beni Suef": decimal.NewFromInt(100),
	"Faiyum":    decimal.NewFromInt(100),
	"Minya":     decimal.NewFromInt(100),
	"Asyut":     decimal.NewFromInt(100),
	"Sohag":     decimal.NewFromInt(100),
	"Qena":      decimal.NewFromInt(100),
	"Luxor":     decimal.NewFromInt(100),
	"Aswan":     decimal.NewFromInt(100),

	"Red Sea":     decimal.NewFromInt(150),
	"Matrouh":     decimal.NewFromInt(150),
	"New Valley":  decimal.NewFromInt(150),
	"North Sinai": decimal.NewFromInt(150),
	"South Sinai": decimal.NewFromInt(150),
}

// ShippingRate returns the delivery fee for a governorate, or an
// *UnknownGovernorateError when it is not served.
func ShippingRate(governorate string) (decimal.Decimal, error) {
	rate, ok := shippingRates[governorate]
	if !ok {
		return decimal.Zero, &UnknownGovernorateError{Governorate: governorate}
	}
	return rate, nil
}

// Governorates lists the served governorates with their rates, for the
// checkout page rate table endpoint.
func Governorates() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(shippingRates))
	for k, v := range shippingRates {
		out[k] = v
	}
	return out
}
