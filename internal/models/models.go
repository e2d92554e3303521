package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryUnit is one sellable SKU. sellable_quantity is the single source
// of truth for how much stock can still be sold; it never goes negative.
type InventoryUnit struct {
	SKUID            int64           `json:"sku_id"`
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	DiscountPct      decimal.Decimal `json:"discount_pct"`
	SellableQuantity int             `json:"sellable_quantity"`
	IsListed         bool            `json:"is_listed"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type Order struct {
	OrderID           int64           `json:"order_id"`
	OrderCode         string          `json:"order_code"`
	UserID            int64           `json:"user_id"`
	Status            OrderStatus     `json:"status"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	ShippingFee       decimal.Decimal `json:"shipping_fee"`
	FinalAmount       decimal.Decimal `json:"final_amount"`
	ReservationExpiry *time.Time      `json:"reservation_expiry,omitempty"`
	ShippingName      string          `json:"shipping_name"`
	ShippingPhone     string          `json:"shipping_phone"`
	ShippingAddress   string          `json:"shipping_address"`
	Note              string          `json:"note,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Lines             []OrderLine     `json:"lines,omitempty"`
	Payment           *Payment        `json:"payment,omitempty"`
}

// OrderLine is immutable once created. Cancellation restores stock from the
// quantities recorded here, never from current catalog state.
type OrderLine struct {
	LineID       int64           `json:"line_id"`
	OrderID      int64           `json:"order_id"`
	SKUID        int64           `json:"sku_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineDiscount decimal.Decimal `json:"line_discount"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Payment struct {
	PaymentID     int64           `json:"payment_id"`
	OrderID       int64           `json:"order_id"`
	Method        PaymentMethod   `json:"method"`
	Status        PaymentStatus   `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	TxnRef        string          `json:"txn_ref,omitempty"`
	ProviderTxnID string          `json:"provider_txn_id,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type CartLine struct {
	SKUID    int64 `json:"sku_id"`
	Quantity int   `json:"quantity"`
}
