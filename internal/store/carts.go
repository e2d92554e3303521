package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vudinh158/laptop-NEW-sub001/internal/models"
)

// Cart persistence is a collaborator of the checkout transactor: lines are
// read and the cart cleared inside the checkout transaction so a committed
// order always leaves an empty cart behind.

func EnsureCart(ctx context.Context, db *sql.DB, userID int64) (int64, error) {
	var cartID int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO carts (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING cart_id`, userID).Scan(&cartID)
	if err != nil {
		return 0, fmt.Errorf("ensure cart: %w", err)
	}
	return cartID, nil
}

func UpsertCartLine(ctx context.Context, db *sql.DB, userID, skuID int64, quantity int) error {
	cartID, err := EnsureCart(ctx, db, userID)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO cart_items (cart_id, sku_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (cart_id, sku_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		cartID, skuID, quantity)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func CartLinesTx(ctx context.Context, tx *sql.Tx, userID int64) ([]models.CartLine, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT ci.sku_id, ci.quantity
		 FROM cart_items ci
		 JOIN carts c ON c.cart_id = ci.cart_id
		 WHERE c.user_id = $1
		 ORDER BY ci.sku_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart lines: %w", err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var line models.CartLine
		if err := rows.Scan(&line.SKUID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func ClearCartTx(ctx context.Context, tx *sql.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items
		 WHERE cart_id IN (SELECT cart_id FROM carts WHERE user_id = $1)`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
