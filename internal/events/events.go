package events

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeOrderCreated     = "OrderCreated"
	TypeOrderCancelled   = "OrderCancelled"
	TypePaymentCompleted = "PaymentCompleted"
	TypePaymentFailed    = "PaymentFailed"
)

const (
	TopicOrderCreated     = "order.created"
	TopicOrderCancelled   = "order.cancelled"
	TopicPaymentCompleted = "order.payment.completed"
	TopicPaymentFailed    = "order.payment.failed"
)

type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	OrderID      int64           `json:"order_id"`
	Payload      json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID     int64           `json:"order_id"`
	OrderCode   string          `json:"order_code"`
	UserID      int64           `json:"user_id"`
	FinalAmount decimal.Decimal `json:"final_amount"`
	Status      string          `json:"status"`
}

type OrderCancelledPayload struct {
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"` // user_cancel | reservation_expired
}

type PaymentOutcomePayload struct {
	OrderID       int64           `json:"order_id"`
	TxnRef        string          `json:"txn_ref"`
	Amount        decimal.Decimal `json:"amount"`
	ProviderTxnID string          `json:"provider_txn_id,omitempty"`
}
