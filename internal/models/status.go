package models

type OrderStatus string

const (
	// OrderStatusPending is the entry state for cash-on-delivery orders.
	// They carry no reservation expiry and are never swept.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusAwaitingPayment is the entry state for electronic payments.
	// Stock is held until reservation_expiry; the reclaimer releases it.
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusConfirmed       OrderStatus = "confirmed"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusShipping        OrderStatus = "shipping"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:         {OrderStatusConfirmed: true, OrderStatusCancelled: true},
	OrderStatusAwaitingPayment: {OrderStatusProcessing: true, OrderStatusCancelled: true},
	OrderStatusConfirmed:       {OrderStatusProcessing: true, OrderStatusCancelled: true},
	OrderStatusProcessing:      {OrderStatusShipping: true},
	OrderStatusShipping:        {OrderStatusDelivered: true},
	OrderStatusDelivered:       {},
	OrderStatusCancelled:       {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Cancellable states are the only ones from which a user may cancel.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed || s == OrderStatusAwaitingPayment
}

type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodEWallet      PaymentMethod = "e_wallet"
)

// Electronic methods go through the gateway and reserve stock for a bounded
// window; cash on delivery does not.
func (m PaymentMethod) Electronic() bool {
	return m != PaymentMethodCOD
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodEWallet:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)
