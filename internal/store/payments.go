package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vudinh158/laptop-NEW-sub001/internal/database"
	"github.com/vudinh158/laptop-NEW-sub001/internal/models"
)

const paymentColumns = `payment_id, order_id, method, status, amount, txn_ref,
	COALESCE(provider_txn_id, ''), paid_at, created_at, updated_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	p := &models.Payment{}
	err := row.Scan(
		&p.PaymentID,
		&p.OrderID,
		&p.Method,
		&p.Status,
		&p.Amount,
		&p.TxnRef,
		&p.ProviderTxnID,
		&p.PaidAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// InsertPayment opens the order's single payment record inside the checkout
// transaction. order_id is unique, so a double insert fails loudly.
func InsertPayment(ctx context.Context, tx *sql.Tx, payment *models.Payment) error {
	query := `
		INSERT INTO payments (order_id, method, status, amount, txn_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING payment_id, created_at, updated_at`

	err := tx.QueryRowContext(ctx, query,
		payment.OrderID,
		payment.Method,
		payment.Status,
		payment.Amount,
		payment.TxnRef,
	).Scan(&payment.PaymentID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func GetPaymentByOrder(ctx context.Context, db *sql.DB, orderID int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`

	payment, err := scanPayment(db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

// LockPaymentByTxnRef is the reconciler's entry point: the callback carries
// the transaction reference, and the row lock serializes it against the
// reclaimer touching the same record.
func LockPaymentByTxnRef(ctx context.Context, tx *sql.Tx, txnRef string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE txn_ref = $1 FOR UPDATE`

	payment, err := scanPayment(tx.QueryRowContext(ctx, query, txnRef))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("lock payment by txn ref: %w", err)
	}
	return payment, nil
}

func LockPaymentByOrder(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 FOR UPDATE`

	payment, err := scanPayment(tx.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("lock payment by order: %w", err)
	}
	return payment, nil
}

// MarkPaymentCompleted moves the record to its terminal success state. The
// status guard keeps a replayed callback from rewriting paid_at.
func MarkPaymentCompleted(ctx context.Context, tx *sql.Tx, paymentID int64, providerTxnID string, paidAt time.Time) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE payments
		 SET status = $1, provider_txn_id = $2, paid_at = $3, updated_at = NOW()
		 WHERE payment_id = $4 AND status = $5`,
		models.PaymentStatusCompleted, providerTxnID, paidAt, paymentID, models.PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("mark payment completed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrPaymentNotFound
	}
	return nil
}

// MarkPaymentFailedIfPending is the guard the reclaimer relies on to lose
// gracefully against a just-completed callback: a completed record is never
// overwritten, and the false return tells the caller it lost the race.
func MarkPaymentFailedIfPending(ctx context.Context, tx *sql.Tx, orderID int64) (bool, error) {
	result, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = NOW()
		 WHERE order_id = $2 AND status = $3`,
		models.PaymentStatusFailed, orderID, models.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func MarkPaymentRefunded(ctx context.Context, tx *sql.Tx, orderID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = NOW()
		 WHERE order_id = $2 AND status = $3`,
		models.PaymentStatusRefunded, orderID, models.PaymentStatusCompleted)
	if err != nil {
		return fmt.Errorf("mark payment refunded: %w", err)
	}
	return nil
}
