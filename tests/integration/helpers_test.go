package integration

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vudinh158/laptop-NEW-sub001/internal/checkout"
	"github.com/vudinh158/laptop-NEW-sub001/internal/models"
	"github.com/vudinh158/laptop-NEW-sub001/internal/payments"
	"github.com/vudinh158/laptop-NEW-sub001/internal/reclaimer"
	"github.com/vudinh158/laptop-NEW-sub001/internal/shipping"
	"github.com/vudinh158/laptop-NEW-sub001/internal/store"
	"github.com/vudinh158/laptop-NEW-sub001/internal/vnpay"
)

const testReservationWindow = 15 * time.Minute

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGateway() *vnpay.Gateway {
	return vnpay.New(vnpay.Config{
		TmnCode:    "TESTTMN1",
		HashSecret: "integration-test-secret",
		PayURL:     "https://sandbox.example.com/paymentv2/vpcpay.html",
		ReturnURL:  "http://localhost:8080/payments/vnpay/return",
	})
}

func newCheckout(db *sql.DB) *checkout.Service {
	return checkout.NewService(db, testLogger(), shipping.DefaultQuoter(), testGateway(), nil, testReservationWindow)
}

func newReconciler(db *sql.DB) *payments.Reconciler {
	return payments.NewReconciler(db, testLogger(), nil)
}

func newSweeper(db *sql.DB, lockKey int64) *reclaimer.Reclaimer {
	return reclaimer.New(db, testLogger(), nil, lockKey, time.Minute)
}

func seedUnit(t *testing.T, db *sql.DB, sku string, price int64, discountPct int64, quantity int) *models.InventoryUnit {
	t.Helper()
	unit, err := store.CreateUnit(context.Background(), db, sku, "Laptop "+sku,
		decimal.NewFromInt(price), decimal.NewFromInt(discountPct), quantity)
	if err != nil {
		t.Fatalf("Seed unit %s: %v", sku, err)
	}
	return unit
}

func fillCart(t *testing.T, db *sql.DB, userID, skuID int64, quantity int) {
	t.Helper()
	if err := store.UpsertCartLine(context.Background(), db, userID, skuID, quantity); err != nil {
		t.Fatalf("Fill cart: %v", err)
	}
}

func testDestination() shipping.Destination {
	return shipping.Destination{
		ProvinceCode: "DN",
		Name:         "Nguyen Van A",
		Phone:        "0900000000",
		Address:      "1 Le Loi",
	}
}

func placeOrder(t *testing.T, db *sql.DB, svc *checkout.Service, userID int64, method models.PaymentMethod) *checkout.Confirmation {
	t.Helper()
	conf, err := svc.PlaceOrder(context.Background(), checkout.PlaceOrderInput{
		UserID:      userID,
		Method:      method,
		Destination: testDestination(),
		ClientIP:    "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}
	return conf
}

func stockOf(t *testing.T, db *sql.DB, skuID int64) int {
	t.Helper()
	unit, err := store.GetUnit(context.Background(), db, skuID)
	if err != nil {
		t.Fatalf("Get unit: %v", err)
	}
	return unit.SellableQuantity
}

func orderState(t *testing.T, db *sql.DB, orderID int64) *models.Order {
	t.Helper()
	order, err := store.GetOrder(context.Background(), db, orderID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	return order
}

func expireReservation(t *testing.T, db *sql.DB, orderID int64) {
	t.Helper()
	_, err := db.Exec(
		`UPDATE orders SET reservation_expiry = NOW() - INTERVAL '5 minutes' WHERE order_id = $1`,
		orderID)
	if err != nil {
		t.Fatalf("Expire reservation: %v", err)
	}
}
