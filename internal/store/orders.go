package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vudinh158/laptop-NEW-sub001/internal/database"
	"github.com/vudinh158/laptop-NEW-sub001/internal/models"
)

const orderColumns = `order_id, order_code, user_id, status, total_amount, discount_amount,
	shipping_fee, final_amount, reservation_expiry, shipping_name, shipping_phone,
	shipping_address, note, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.OrderID,
		&order.OrderCode,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&order.DiscountAmount,
		&order.ShippingFee,
		&order.FinalAmount,
		&order.ReservationExpiry,
		&order.ShippingName,
		&order.ShippingPhone,
		&order.ShippingAddress,
		&order.Note,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GenerateOrderCode produces a human-legible, globally unique code:
// ORD-<base36 millis>-<random>. The random tail disambiguates codes minted in
// the same millisecond.
func GenerateOrderCode() string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	rand := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("ORD-%s-%s", ts, rand)
}

// InsertOrder writes the order header inside the checkout transaction and
// fills the generated id and timestamps.
func InsertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (order_code, user_id, status, total_amount, discount_amount,
			shipping_fee, final_amount, reservation_expiry, shipping_name, shipping_phone,
			shipping_address, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING order_id, created_at, updated_at`

	err := tx.QueryRowContext(ctx, query,
		order.OrderCode,
		order.UserID,
		order.Status,
		order.TotalAmount,
		order.DiscountAmount,
		order.ShippingFee,
		order.FinalAmount,
		order.ReservationExpiry,
		order.ShippingName,
		order.ShippingPhone,
		order.ShippingAddress,
		order.Note,
	).Scan(&order.OrderID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func InsertOrderLine(ctx context.Context, tx *sql.Tx, line *models.OrderLine) error {
	query := `
		INSERT INTO order_lines (order_id, sku_id, quantity, unit_price, line_discount, line_subtotal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING line_id, created_at`

	err := tx.QueryRowContext(ctx, query,
		line.OrderID,
		line.SKUID,
		line.Quantity,
		line.UnitPrice,
		line.LineDiscount,
		line.LineSubtotal,
	).Scan(&line.LineID, &line.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order line: %w", err)
	}
	return nil
}

func GetOrder(ctx context.Context, db *sql.DB, orderID int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	order, err := scanOrder(db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	lines, err := linesForOrder(ctx, db, orderID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines

	payment, err := GetPaymentByOrder(ctx, db, orderID)
	if err != nil && err != database.ErrPaymentNotFound {
		return nil, err
	}
	order.Payment = payment

	return order, nil
}

// GetOrderByCode looks an order up by its human-legible code, the identifier
// shoppers quote to support.
func GetOrderByCode(ctx context.Context, db *sql.DB, code string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_code = $1`

	order, err := scanOrder(db.QueryRowContext(ctx, query, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by code: %w", err)
	}
	return GetOrder(ctx, db, order.OrderID)
}

// GetOrderForUser scopes the lookup to the owning user, the boundary the HTTP
// surface enforces.
func GetOrderForUser(ctx context.Context, db *sql.DB, orderID, userID int64) (*models.Order, error) {
	order, err := GetOrder(ctx, db, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, database.ErrOrderNotFound
	}
	return order, nil
}

// LockOrder takes the row-level exclusive lock every order mutation must hold.
func LockOrder(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1 FOR UPDATE`

	order, err := scanOrder(tx.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return order, nil
}

// TransitionOrder applies from->to with the previous status as the guard
// condition, so a racing writer that already moved the order makes this a
// no-op reported as ErrInvalidTransition. clearExpiry also nulls
// reservation_expiry, which is what makes the reclaimer idempotent.
func TransitionOrder(ctx context.Context, tx *sql.Tx, orderID int64, from, to models.OrderStatus, clearExpiry bool) error {
	if !models.CanTransition(from, to) {
		return database.ErrInvalidTransition
	}

	var query string
	if clearExpiry {
		query = `UPDATE orders SET status = $1, reservation_expiry = NULL, updated_at = NOW()
			 WHERE order_id = $2 AND status = $3`
	} else {
		query = `UPDATE orders SET status = $1, updated_at = NOW()
			 WHERE order_id = $2 AND status = $3`
	}

	result, err := tx.ExecContext(ctx, query, to, orderID, from)
	if err != nil {
		return fmt.Errorf("transition order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrInvalidTransition
	}

	return nil
}

// ExpiredReservationIDs lists candidates for reclamation. Plain read, no
// locks: each order is re-checked under lock in its own transaction.
func ExpiredReservationIDs(ctx context.Context, db *sql.DB, now time.Time, limit int) ([]int64, error) {
	query := `
		SELECT order_id FROM orders
		WHERE status = $1 AND reservation_expiry < $2
		ORDER BY reservation_expiry
		LIMIT $3`

	rows, err := db.QueryContext(ctx, query, models.OrderStatusAwaitingPayment, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LockExpiredOrder re-acquires the order under SKIP LOCKED semantics and
// re-checks the expiry predicates. A miss means another actor (a payment
// callback, a user cancel, a concurrent sweep) holds or already moved the
// row; the caller simply defers it.
func LockExpiredOrder(ctx context.Context, tx *sql.Tx, orderID int64, now time.Time) (*models.Order, bool, error) {
	query := `
		SELECT ` + orderColumns + ` FROM orders
		WHERE order_id = $1 AND status = $2 AND reservation_expiry < $3
		FOR UPDATE SKIP LOCKED`

	order, err := scanOrder(tx.QueryRowContext(ctx, query, orderID, models.OrderStatusAwaitingPayment, now))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lock expired order: %w", err)
	}
	return order, true, nil
}

func linesForOrder(ctx context.Context, db *sql.DB, orderID int64) ([]models.OrderLine, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT line_id, order_id, sku_id, quantity, unit_price, line_discount, line_subtotal, created_at
		 FROM order_lines WHERE order_id = $1 ORDER BY line_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()

	return collectLines(rows)
}

// LinesForOrderTx reads the immutable lines inside a mutation transaction;
// restoration amounts come from here, never from current catalog state.
func LinesForOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) ([]models.OrderLine, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT line_id, order_id, sku_id, quantity, unit_price, line_discount, line_subtotal, created_at
		 FROM order_lines WHERE order_id = $1 ORDER BY line_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()

	return collectLines(rows)
}

func collectLines(rows *sql.Rows) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	for rows.Next() {
		var line models.OrderLine
		err := rows.Scan(
			&line.LineID,
			&line.OrderID,
			&line.SKUID,
			&line.Quantity,
			&line.UnitPrice,
			&line.LineDiscount,
			&line.LineSubtotal,
			&line.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ListOrdersCursor pages a user's orders newest first with a keyset cursor.
func ListOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		  AND (created_at, order_id) < ($2, $3)
		ORDER BY created_at DESC, order_id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.OrderID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
