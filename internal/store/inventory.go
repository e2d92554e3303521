package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vudinh158/laptop-NEW-sub001/internal/database"
	"github.com/vudinh158/laptop-NEW-sub001/internal/models"
)

const unitColumns = `sku_id, sku, name, unit_price, discount_pct, sellable_quantity, is_listed, created_at, updated_at`

func scanUnit(row *sql.Row) (*models.InventoryUnit, error) {
	unit := &models.InventoryUnit{}
	err := row.Scan(
		&unit.SKUID,
		&unit.SKU,
		&unit.Name,
		&unit.UnitPrice,
		&unit.DiscountPct,
		&unit.SellableQuantity,
		&unit.IsListed,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return unit, nil
}

func CreateUnit(ctx context.Context, db *sql.DB, sku, name string, price, discountPct decimal.Decimal, quantity int) (*models.InventoryUnit, error) {
	query := `
		INSERT INTO inventory_units (sku, name, unit_price, discount_pct, sellable_quantity, is_listed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		RETURNING ` + unitColumns

	unit, err := scanUnit(db.QueryRowContext(ctx, query, sku, name, price, discountPct, quantity))
	if err != nil {
		return nil, fmt.Errorf("create inventory unit: %w", err)
	}
	return unit, nil
}

func GetUnit(ctx context.Context, db *sql.DB, skuID int64) (*models.InventoryUnit, error) {
	query := `SELECT ` + unitColumns + ` FROM inventory_units WHERE sku_id = $1`

	unit, err := scanUnit(db.QueryRowContext(ctx, query, skuID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUnitNotFound
		}
		return nil, fmt.Errorf("get inventory unit: %w", err)
	}
	return unit, nil
}

func GetUnitBySKU(ctx context.Context, db *sql.DB, sku string) (*models.InventoryUnit, error) {
	query := `SELECT ` + unitColumns + ` FROM inventory_units WHERE sku = $1`

	unit, err := scanUnit(db.QueryRowContext(ctx, query, sku))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUnitNotFound
		}
		return nil, fmt.Errorf("get inventory unit by sku: %w", err)
	}
	return unit, nil
}

// LockUnit takes a row-level exclusive lock without waiting. A concurrent
// holder surfaces as ErrLockTimeout, which the tx retry helper classifies as
// transient.
func LockUnit(ctx context.Context, tx *sql.Tx, skuID int64) (*models.InventoryUnit, error) {
	query := `SELECT ` + unitColumns + ` FROM inventory_units WHERE sku_id = $1 FOR UPDATE NOWAIT`

	unit, err := scanUnit(tx.QueryRowContext(ctx, query, skuID))
	if err != nil {
		if database.IsLockNotAvailable(err) {
			return nil, database.ErrLockTimeout
		}
		if err == sql.ErrNoRows {
			return nil, database.ErrUnitNotFound
		}
		return nil, fmt.Errorf("lock inventory unit: %w", err)
	}
	return unit, nil
}

// DecrementStock subtracts quantity only if enough stock remains at the
// moment of the update. The condition lives in the statement itself so the
// floor of zero holds even without a prior lock.
func DecrementStock(ctx context.Context, tx *sql.Tx, skuID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE inventory_units
		 SET sellable_quantity = sellable_quantity - $1,
		     updated_at = NOW()
		 WHERE sku_id = $2
		   AND sellable_quantity >= $1`,
		quantity, skuID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

// RestoreStock returns previously decremented quantity to sale. Callers must
// hold the row lock (LockUnit) so restoration never interleaves with a
// concurrent checkout on the same SKU.
func RestoreStock(ctx context.Context, tx *sql.Tx, skuID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE inventory_units
		 SET sellable_quantity = sellable_quantity + $1,
		     updated_at = NOW()
		 WHERE sku_id = $2`,
		quantity, skuID)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrUnitNotFound
	}

	return nil
}

// SetListed re-lists or de-lists a SKU. Units are never deleted.
func SetListed(ctx context.Context, db *sql.DB, skuID int64, listed bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE inventory_units SET is_listed = $1, updated_at = NOW() WHERE sku_id = $2`,
		listed, skuID)
	if err != nil {
		return fmt.Errorf("set listed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrUnitNotFound
	}

	return nil
}
