// Package payments reconciles verified gateway callbacks against payment and
// order records. Signature verification happens upstream; everything here
// assumes an authentic callback and focuses on applying it exactly once.
package payments

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/vudinh158/laptop-NEW-sub001/internal/database"
	"github.com/vudinh158/laptop-NEW-sub001/internal/events"
	"github.com/vudinh158/laptop-NEW-sub001/internal/models"
	"github.com/vudinh158/laptop-NEW-sub001/internal/store"
	"github.com/vudinh158/laptop-NEW-sub001/internal/vnpay"
)

// Outcome tells the IPN handler which provider response code to answer with.
type Outcome int

const (
	// OutcomeApplied means the callback changed payment state.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicate means the payment was already terminal; the callback
	// was acknowledged without touching anything.
	OutcomeDuplicate
	// OutcomeAmountMismatch means a success callback carried the wrong
	// amount; the payment was failed and the order left for the sweeper.
	OutcomeAmountMismatch
	// OutcomeStale means the order had already left AWAITING_PAYMENT, so the
	// success could not be honored.
	OutcomeStale
	// OutcomeUnknownRef means the transaction reference resolved to no
	// payment record.
	OutcomeUnknownRef
)

type Reconciler struct {
	db       *sql.DB
	log      *slog.Logger
	producer *events.Producer
}

func NewReconciler(db *sql.DB, log *slog.Logger, producer *events.Producer) *Reconciler {
	return &Reconciler{db: db, log: log, producer: producer}
}

// Apply records the callback's outcome at most once. The row lock on the
// payment serializes concurrent deliveries of the same callback and races
// against the reservation sweeper; whichever transaction commits first wins,
// and the loser sees a non-pending record and backs off.
//
// Inventory is never touched here. A failed electronic payment leaves its
// order in AWAITING_PAYMENT holding stock until the sweeper reclaims it.
func (r *Reconciler) Apply(ctx context.Context, cb vnpay.Callback) (Outcome, error) {
	if !cb.Resolved {
		r.log.Warn("callback txn ref unresolvable", "txn_ref", cb.TxnRef)
		return OutcomeUnknownRef, nil
	}

	var (
		outcome Outcome
		payment *models.Payment
	)

	err := database.WithRetry(ctx, r.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		payment, err = store.LockPaymentByTxnRef(ctx, tx, cb.TxnRef)
		if err != nil {
			if errors.Is(err, database.ErrPaymentNotFound) {
				outcome = OutcomeUnknownRef
				return nil
			}
			return err
		}

		if payment.Status != models.PaymentStatusPending {
			outcome = OutcomeDuplicate
			return nil
		}

		order, err := store.LockOrder(ctx, tx, payment.OrderID)
		if err != nil {
			return err
		}

		if !cb.IsSuccess {
			if _, err := store.MarkPaymentFailedIfPending(ctx, tx, payment.OrderID); err != nil {
				return err
			}
			outcome = OutcomeApplied
			return nil
		}

		if !cb.Amount.Equal(payment.Amount) {
			r.log.Warn("callback amount mismatch",
				"txn_ref", cb.TxnRef,
				"expected", payment.Amount,
				"got", cb.Amount)
			if _, err := store.MarkPaymentFailedIfPending(ctx, tx, payment.OrderID); err != nil {
				return err
			}
			outcome = OutcomeAmountMismatch
			return nil
		}

		if order.Status != models.OrderStatusAwaitingPayment {
			if _, err := store.MarkPaymentFailedIfPending(ctx, tx, payment.OrderID); err != nil {
				return err
			}
			outcome = OutcomeStale
			return nil
		}

		if err := store.MarkPaymentCompleted(ctx, tx, payment.PaymentID, cb.ProviderTxnID, time.Now().UTC()); err != nil {
			return err
		}
		if err := store.TransitionOrder(ctx, tx, payment.OrderID, order.Status, models.OrderStatusProcessing, true); err != nil {
			return err
		}
		outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		return 0, err
	}

	if outcome == OutcomeApplied && r.producer != nil {
		payload := events.PaymentOutcomePayload{
			OrderID:       payment.OrderID,
			TxnRef:        cb.TxnRef,
			Amount:        cb.Amount,
			ProviderTxnID: cb.ProviderTxnID,
		}
		if cb.IsSuccess {
			r.producer.Emit(events.TopicPaymentCompleted, events.TypePaymentCompleted, payment.OrderID, payload)
		} else {
			r.producer.Emit(events.TopicPaymentFailed, events.TypePaymentFailed, payment.OrderID, payload)
		}
	}

	switch outcome {
	case OutcomeApplied:
		r.log.Info("callback applied",
			"txn_ref", cb.TxnRef,
			"order_id", payment.OrderID,
			"success", cb.IsSuccess,
			"response_code", cb.ResponseCode)
	case OutcomeDuplicate:
		r.log.Info("duplicate callback ignored", "txn_ref", cb.TxnRef, "order_id", payment.OrderID)
	case OutcomeStale:
		r.log.Warn("late callback for settled order", "txn_ref", cb.TxnRef, "order_id", payment.OrderID)
	}

	return outcome, nil
}
