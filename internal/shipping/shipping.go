package shipping

import (
	"github.com/shopspring/decimal"
	"github.com/vudinh158/laptop-NEW-sub001/internal/database"
)

// Destination is the immutable snapshot checkout records on the order.
type Destination struct {
	ProvinceCode string
	WardCode     string
	Name         string
	Phone        string
	Address      string
}

// Quoter prices delivery to a destination given the order subtotal.
type Quoter interface {
	Quote(dest Destination, subtotal decimal.Decimal) (decimal.Decimal, error)
}

// ProvinceRule captures the fee policy for one province: a base fee, optional
// per-ward surcharges, blanket free shipping, free shipping above a subtotal
// threshold, and an optional cap on the combined fee.
type ProvinceRule struct {
	BaseFee       decimal.Decimal
	WardSurcharge map[string]decimal.Decimal
	FreeShipping  bool
	FreeOver      decimal.Decimal // zero means no threshold
	MaxFee        decimal.Decimal // zero means no cap
}

// TableQuoter is a rule table keyed by province code.
type TableQuoter struct {
	Rules map[string]ProvinceRule
}

// DefaultQuoter mirrors the store's standing policy: 50,000 outside the metro
// areas, 30,000 in SG/HN, and free metro delivery from 1,000,000 up.
func DefaultQuoter() *TableQuoter {
	metro := ProvinceRule{
		BaseFee:  decimal.NewFromInt(30000),
		FreeOver: decimal.NewFromInt(1000000),
	}
	return &TableQuoter{
		Rules: map[string]ProvinceRule{
			"SG":      metro,
			"HN":      metro,
			"default": {BaseFee: decimal.NewFromInt(50000)},
		},
	}
}

func (q *TableQuoter) Quote(dest Destination, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if dest.ProvinceCode == "" || dest.Address == "" {
		return decimal.Zero, database.ErrInvalidDestination
	}

	rule, ok := q.Rules[dest.ProvinceCode]
	if !ok {
		rule, ok = q.Rules["default"]
		if !ok {
			return decimal.Zero, database.ErrInvalidDestination
		}
	}

	if rule.FreeShipping {
		return decimal.Zero, nil
	}
	if rule.FreeOver.IsPositive() && subtotal.GreaterThanOrEqual(rule.FreeOver) {
		return decimal.Zero, nil
	}

	fee := rule.BaseFee
	if surcharge, ok := rule.WardSurcharge[dest.WardCode]; ok {
		fee = fee.Add(surcharge)
	}
	if rule.MaxFee.IsPositive() && fee.GreaterThan(rule.MaxFee) {
		fee = rule.MaxFee
	}
	if fee.IsNegative() {
		fee = decimal.Zero
	}

	return fee, nil
}
