// Package checkout orchestrates order creation: cart read, re-pricing from
// the inventory ledger, stock reservation, payment record, and cart clear as
// one all-or-nothing unit of work.
package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vudinh158/laptop-NEW-sub001/internal/database"
	"github.com/vudinh158/laptop-NEW-sub001/internal/events"
	"github.com/vudinh158/laptop-NEW-sub001/internal/models"
	"github.com/vudinh158/laptop-NEW-sub001/internal/shipping"
	"github.com/vudinh158/laptop-NEW-sub001/internal/store"
	"github.com/vudinh158/laptop-NEW-sub001/internal/vnpay"
)

var ErrUnsupportedMethod = errors.New("unsupported payment method")

// InsufficientStockError names the SKU that aborted the checkout.
type InsufficientStockError struct {
	SKU string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s", e.SKU)
}

func (e *InsufficientStockError) Unwrap() error { return database.ErrInsufficientStock }

type Service struct {
	db                *sql.DB
	log               *slog.Logger
	quoter            shipping.Quoter
	gateway           *vnpay.Gateway
	producer          *events.Producer
	reservationWindow time.Duration
}

func NewService(db *sql.DB, log *slog.Logger, quoter shipping.Quoter, gateway *vnpay.Gateway, producer *events.Producer, reservationWindow time.Duration) *Service {
	return &Service{
		db:                db,
		log:               log,
		quoter:            quoter,
		gateway:           gateway,
		producer:          producer,
		reservationWindow: reservationWindow,
	}
}

type PlaceOrderInput struct {
	UserID      int64
	Method      models.PaymentMethod
	BankCode    string
	Destination shipping.Destination
	Note        string
	ClientIP    string
}

type Confirmation struct {
	OrderID        int64              `json:"order_id"`
	OrderCode      string             `json:"order_code"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	ShippingFee    decimal.Decimal    `json:"shipping_fee"`
	FinalAmount    decimal.Decimal    `json:"final_amount"`
	Status         models.OrderStatus `json:"status"`
	RedirectURL    string             `json:"redirect_url,omitempty"`
}

// PlaceOrder runs the checkout transaction. Prices and availability are
// re-read from the ledger under row locks; cart prices are never trusted.
// Any failure rolls back the whole sequence: inventory is never decremented
// without its order, and vice versa.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Confirmation, error) {
	if !in.Method.Valid() {
		return nil, ErrUnsupportedMethod
	}

	var conf *Confirmation

	err := database.WithRetry(ctx, s.db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		cartLines, err := store.CartLinesTx(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		if len(cartLines) == 0 {
			return database.ErrEmptyCart
		}

		type pricedLine struct {
			unit     *models.InventoryUnit
			quantity int
			subtotal decimal.Decimal
			discount decimal.Decimal
		}

		totalAmount := decimal.Zero
		discountAmount := decimal.Zero
		priced := make([]pricedLine, 0, len(cartLines))

		for _, cl := range cartLines {
			unit, err := store.LockUnit(ctx, tx, cl.SKUID)
			if err != nil {
				return err
			}
			if !unit.IsListed {
				return &InsufficientStockError{SKU: unit.SKU}
			}
			if unit.SellableQuantity < cl.Quantity {
				return &InsufficientStockError{SKU: unit.SKU}
			}

			qty := decimal.NewFromInt(int64(cl.Quantity))
			subtotal := unit.UnitPrice.Mul(qty)
			discount := subtotal.Mul(unit.DiscountPct).Div(decimal.NewFromInt(100))

			totalAmount = totalAmount.Add(subtotal)
			discountAmount = discountAmount.Add(discount)
			priced = append(priced, pricedLine{unit: unit, quantity: cl.Quantity, subtotal: subtotal, discount: discount})
		}

		shippingFee, err := s.quoter.Quote(in.Destination, totalAmount.Sub(discountAmount))
		if err != nil {
			return err
		}
		finalAmount := totalAmount.Sub(discountAmount).Add(shippingFee)

		now := time.Now().UTC()
		order := &models.Order{
			OrderCode:       store.GenerateOrderCode(),
			UserID:          in.UserID,
			Status:          models.OrderStatusPending,
			TotalAmount:     totalAmount,
			DiscountAmount:  discountAmount,
			ShippingFee:     shippingFee,
			FinalAmount:     finalAmount,
			ShippingName:    in.Destination.Name,
			ShippingPhone:   in.Destination.Phone,
			ShippingAddress: in.Destination.Address,
			Note:            in.Note,
		}
		if in.Method.Electronic() {
			expiry := now.Add(s.reservationWindow)
			order.Status = models.OrderStatusAwaitingPayment
			order.ReservationExpiry = &expiry
		}

		if err := store.InsertOrder(ctx, tx, order); err != nil {
			return err
		}

		for _, pl := range priced {
			line := &models.OrderLine{
				OrderID:      order.OrderID,
				SKUID:        pl.unit.SKUID,
				Quantity:     pl.quantity,
				UnitPrice:    pl.unit.UnitPrice,
				LineDiscount: pl.discount,
				LineSubtotal: pl.subtotal.Sub(pl.discount),
			}
			if err := store.InsertOrderLine(ctx, tx, line); err != nil {
				return err
			}
			if err := store.DecrementStock(ctx, tx, pl.unit.SKUID, pl.quantity); err != nil {
				if errors.Is(err, database.ErrInsufficientStock) {
					return &InsufficientStockError{SKU: pl.unit.SKU}
				}
				return err
			}
		}

		payment := &models.Payment{
			OrderID: order.OrderID,
			Method:  in.Method,
			Status:  models.PaymentStatusPending,
			Amount:  finalAmount,
		}
		if in.Method.Electronic() {
			payment.TxnRef = vnpay.NewTxnRef(order.OrderID, now)
		}
		if err := store.InsertPayment(ctx, tx, payment); err != nil {
			return err
		}

		if err := store.ClearCartTx(ctx, tx, in.UserID); err != nil {
			return err
		}

		conf = &Confirmation{
			OrderID:        order.OrderID,
			OrderCode:      order.OrderCode,
			TotalAmount:    totalAmount,
			DiscountAmount: discountAmount,
			ShippingFee:    shippingFee,
			FinalAmount:    finalAmount,
			Status:         order.Status,
		}

		// Redirect construction is pure computation; doing it before commit
		// means a misconfigured gateway aborts the order instead of stranding
		// an unpayable AWAITING_PAYMENT row.
		if in.Method.Electronic() {
			url, err := s.gateway.BuildRedirectURL(vnpay.PaymentRequest{
				TxnRef:    payment.TxnRef,
				Amount:    finalAmount,
				OrderInfo: "Thanh toan don hang " + order.OrderCode,
				IPAddr:    in.ClientIP,
				BankCode:  in.BankCode,
				Now:       now,
			})
			if err != nil {
				return err
			}
			conf.RedirectURL = url
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.producer != nil {
		s.producer.Emit(events.TopicOrderCreated, events.TypeOrderCreated, conf.OrderID, events.OrderCreatedPayload{
			OrderID:     conf.OrderID,
			OrderCode:   conf.OrderCode,
			UserID:      in.UserID,
			FinalAmount: conf.FinalAmount,
			Status:      string(conf.Status),
		})
	}

	s.log.Info("order placed",
		"order_id", conf.OrderID,
		"order_code", conf.OrderCode,
		"user_id", in.UserID,
		"status", conf.Status,
		"final_amount", conf.FinalAmount)

	return conf, nil
}

// Cancel is the user-initiated path: legal only from pending, confirmed, or
// AWAITING_PAYMENT. Restoration amounts come from the order's immutable
// lines, not from current catalog state.
func (s *Service) Cancel(ctx context.Context, orderID, userID int64) error {
	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return database.ErrOrderNotFound
		}
		if !order.Status.Cancellable() {
			return database.ErrInvalidTransition
		}

		lines, err := store.LinesForOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := store.LockUnit(ctx, tx, line.SKUID); err != nil {
				return err
			}
			if err := store.RestoreStock(ctx, tx, line.SKUID, line.Quantity); err != nil {
				return err
			}
		}

		payment, err := store.LockPaymentByOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		switch payment.Status {
		case models.PaymentStatusCompleted:
			if err := store.MarkPaymentRefunded(ctx, tx, orderID); err != nil {
				return err
			}
		case models.PaymentStatusPending:
			if _, err := store.MarkPaymentFailedIfPending(ctx, tx, orderID); err != nil {
				return err
			}
		}

		return store.TransitionOrder(ctx, tx, orderID, order.Status, models.OrderStatusCancelled, true)
	})
	if err != nil {
		return err
	}

	if s.producer != nil {
		s.producer.Emit(events.TopicOrderCancelled, events.TypeOrderCancelled, orderID, events.OrderCancelledPayload{
			OrderID: orderID,
			Reason:  "user_cancel",
		})
	}

	s.log.Info("order cancelled by user", "order_id", orderID, "user_id", userID)
	return nil
}

// AdvanceStatus applies an administrative fulfillment transition. Cancellation
// goes through Cancel so inventory restoration cannot be skipped.
func (s *Service) AdvanceStatus(ctx context.Context, orderID int64, to models.OrderStatus) error {
	if to == models.OrderStatusCancelled {
		return database.ErrInvalidTransition
	}

	return database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		return store.TransitionOrder(ctx, tx, orderID, order.Status, to, false)
	})
}
