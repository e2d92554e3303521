package models

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{OrderStatusPending, OrderStatusConfirmed},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusAwaitingPayment, OrderStatusProcessing},
		{OrderStatusAwaitingPayment, OrderStatusCancelled},
		{OrderStatusConfirmed, OrderStatusProcessing},
		{OrderStatusConfirmed, OrderStatusCancelled},
		{OrderStatusProcessing, OrderStatusShipping},
		{OrderStatusShipping, OrderStatusDelivered},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to OrderStatus }{
		{OrderStatusPending, OrderStatusDelivered},
		{OrderStatusPending, OrderStatusShipping},
		{OrderStatusAwaitingPayment, OrderStatusConfirmed},
		{OrderStatusProcessing, OrderStatusCancelled},
		{OrderStatusShipping, OrderStatusCancelled},
		{OrderStatusDelivered, OrderStatusShipping},
		{OrderStatusCancelled, OrderStatusPending},
		{OrderStatusDelivered, OrderStatusCancelled},
		{OrderStatusConfirmed, OrderStatusConfirmed},
	}
	for _, tc := range forbidden {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be rejected", tc.from, tc.to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending, OrderStatusAwaitingPayment, OrderStatusConfirmed,
		OrderStatusProcessing, OrderStatusShipping, OrderStatusDelivered, OrderStatusCancelled,
	}
	for _, terminal := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled} {
		if !terminal.IsTerminal() {
			t.Errorf("%s should be terminal", terminal)
		}
		for _, to := range all {
			if CanTransition(terminal, to) {
				t.Errorf("terminal %s allows exit to %s", terminal, to)
			}
		}
	}
}

func TestCancellable(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusAwaitingPayment} {
		if !s.Cancellable() {
			t.Errorf("%s should be cancellable", s)
		}
	}
	for _, s := range []OrderStatus{OrderStatusProcessing, OrderStatusShipping, OrderStatusDelivered, OrderStatusCancelled} {
		if s.Cancellable() {
			t.Errorf("%s should not be cancellable", s)
		}
	}
}

func TestPaymentMethod(t *testing.T) {
	if PaymentMethodCOD.Electronic() {
		t.Error("cod should not be electronic")
	}
	for _, m := range []PaymentMethod{PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodEWallet} {
		if !m.Electronic() {
			t.Errorf("%s should be electronic", m)
		}
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if PaymentMethod("paypal").Valid() {
		t.Error("unknown method should be invalid")
	}
}
