package shipping

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vudinh158/laptop-NEW-sub001/internal/database"
)

func dest(province, ward string) Destination {
	return Destination{
		ProvinceCode: province,
		WardCode:     ward,
		Name:         "Nguyen Van A",
		Phone:        "0900000000",
		Address:      "1 Le Loi",
	}
}

func TestDefaultQuoterFlatFee(t *testing.T) {
	q := DefaultQuoter()

	fee, err := q.Quote(dest("DN", ""), decimal.NewFromInt(2000000))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !fee.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("fee = %s, want 50000", fee)
	}
}

func TestDefaultQuoterMetroFreeOverThreshold(t *testing.T) {
	q := DefaultQuoter()

	fee, err := q.Quote(dest("SG", ""), decimal.NewFromInt(1500000))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !fee.IsZero() {
		t.Errorf("fee = %s, want 0 above free threshold", fee)
	}

	fee, err = q.Quote(dest("HN", ""), decimal.NewFromInt(999999))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !fee.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("fee = %s, want 30000 below threshold", fee)
	}
}

func TestQuoteInvalidDestination(t *testing.T) {
	q := DefaultQuoter()

	_, err := q.Quote(Destination{Address: "1 Le Loi"}, decimal.NewFromInt(100))
	if !errors.Is(err, database.ErrInvalidDestination) {
		t.Errorf("missing province: err = %v", err)
	}

	_, err = q.Quote(Destination{ProvinceCode: "SG"}, decimal.NewFromInt(100))
	if !errors.Is(err, database.ErrInvalidDestination) {
		t.Errorf("missing address: err = %v", err)
	}
}

func TestWardSurchargeAndCap(t *testing.T) {
	q := &TableQuoter{Rules: map[string]ProvinceRule{
		"XX": {
			BaseFee:       decimal.NewFromInt(40000),
			WardSurcharge: map[string]decimal.Decimal{"W1": decimal.NewFromInt(25000)},
			MaxFee:        decimal.NewFromInt(60000),
		},
	}}

	fee, err := q.Quote(dest("XX", "W1"), decimal.NewFromInt(100000))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !fee.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("fee = %s, want capped 60000", fee)
	}

	fee, err = q.Quote(dest("XX", "W2"), decimal.NewFromInt(100000))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !fee.Equal(decimal.NewFromInt(40000)) {
		t.Errorf("fee = %s, want base 40000", fee)
	}
}

func TestFreeShippingRule(t *testing.T) {
	q := &TableQuoter{Rules: map[string]ProvinceRule{
		"YY": {BaseFee: decimal.NewFromInt(70000), FreeShipping: true},
	}}

	fee, err := q.Quote(dest("YY", ""), decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !fee.IsZero() {
		t.Errorf("fee = %s, want 0", fee)
	}
}

func TestUnknownProvinceFallsBackToDefault(t *testing.T) {
	q := &TableQuoter{Rules: map[string]ProvinceRule{
		"ZZ": {BaseFee: decimal.NewFromInt(10000)},
	}}

	_, err := q.Quote(dest("QQ", ""), decimal.NewFromInt(1))
	if !errors.Is(err, database.ErrInvalidDestination) {
		t.Errorf("no default rule: err = %v", err)
	}
}
