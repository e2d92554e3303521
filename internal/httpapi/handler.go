package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/vudinh158/laptop-NEW-sub001/internal/checkout"
	"github.com/vudinh158/laptop-NEW-sub001/internal/database"
	"github.com/vudinh158/laptop-NEW-sub001/internal/models"
	"github.com/vudinh158/laptop-NEW-sub001/internal/payments"
	"github.com/vudinh158/laptop-NEW-sub001/internal/redisx"
	"github.com/vudinh158/laptop-NEW-sub001/internal/shipping"
	"github.com/vudinh158/laptop-NEW-sub001/internal/store"
	"github.com/vudinh158/laptop-NEW-sub001/internal/vnpay"
)

const headerUserID = "X-User-ID"

type Handler struct {
	db         *sql.DB
	log        *slog.Logger
	rdb        *redis.Client
	checkout   *checkout.Service
	reconciler *payments.Reconciler
	gateway    *vnpay.Gateway
	validate   *validator.Validate
}

func NewHandler(db *sql.DB, log *slog.Logger, rdb *redis.Client, svc *checkout.Service, rec *payments.Reconciler, gw *vnpay.Gateway) *Handler {
	return &Handler{
		db:         db,
		log:        log,
		rdb:        rdb,
		checkout:   svc,
		reconciler: rec,
		gateway:    gw,
		validate:   validator.New(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrMsg(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeError maps domain errors onto HTTP statuses. Anything unrecognized is
// logged and reported as a bare 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var stockErr *checkout.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "insufficient stock",
			"sku":   stockErr.SKU,
		})
	case errors.Is(err, database.ErrEmptyCart):
		writeErrMsg(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, database.ErrInvalidDestination):
		writeErrMsg(w, http.StatusBadRequest, "invalid shipping destination")
	case errors.Is(err, checkout.ErrUnsupportedMethod):
		writeErrMsg(w, http.StatusBadRequest, "unsupported payment method")
	case errors.Is(err, database.ErrInvalidCursor):
		writeErrMsg(w, http.StatusBadRequest, "invalid cursor")
	case errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrUnitNotFound),
		errors.Is(err, database.ErrPaymentNotFound):
		writeErrMsg(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrInvalidTransition):
		writeErrMsg(w, http.StatusConflict, "invalid status transition")
	case errors.Is(err, database.ErrLockTimeout), database.IsRetryable(err):
		writeErrMsg(w, http.StatusConflict, "resource busy, retry")
	default:
		h.log.Error("request failed", "err", err)
		writeErrMsg(w, http.StatusInternalServerError, "internal error")
	}
}

func userIDFrom(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(headerUserID), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type addCartItemRequest struct {
	SKUID    int64 `json:"sku_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrMsg(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := store.GetUnit(r.Context(), h.db, req.SKUID); err != nil {
		h.writeError(w, err)
		return
	}
	if err := store.UpsertCartLine(r.Context(), h.db, userID, req.SKUID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkoutShipping struct {
	ProvinceCode string `json:"province_code" validate:"required"`
	WardCode     string `json:"ward_code"`
	Name         string `json:"name" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	Address      string `json:"address" validate:"required"`
}

type checkoutRequest struct {
	Method   string           `json:"method" validate:"required,oneof=cod bank_transfer card e_wallet"`
	BankCode string           `json:"bank_code" validate:"omitempty,alphanum"`
	Shipping checkoutShipping `json:"shipping" validate:"required"`
	Note     string           `json:"note" validate:"max=500"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrMsg(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	// Fast-path idempotency: a replayed Idempotency-Key returns the order it
	// already created. The database stays the source of truth; losing the
	// Redis key only costs the shortcut, and the cleared cart makes a true
	// double submit land on an empty-cart error.
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		key := fmt.Sprintf(redisx.KeyIdemCheckout, userID, idemKey)
		if cached, ok := redisx.GetString(r.Context(), h.rdb, key); ok {
			if orderID, err := strconv.ParseInt(cached, 10, 64); err == nil {
				order, err := store.GetOrderForUser(r.Context(), h.db, orderID, userID)
				if err == nil {
					writeJSON(w, http.StatusOK, order)
					return
				}
			}
		}
	}

	conf, err := h.checkout.PlaceOrder(r.Context(), checkout.PlaceOrderInput{
		UserID:   userID,
		Method:   models.PaymentMethod(req.Method),
		BankCode: req.BankCode,
		Destination: shipping.Destination{
			ProvinceCode: req.Shipping.ProvinceCode,
			WardCode:     req.Shipping.WardCode,
			Name:         req.Shipping.Name,
			Phone:        req.Shipping.Phone,
			Address:      req.Shipping.Address,
		},
		Note:     req.Note,
		ClientIP: r.RemoteAddr,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	if idemKey != "" {
		key := fmt.Sprintf(redisx.KeyIdemCheckout, userID, idemKey)
		redisx.SetString(r.Context(), h.rdb, key, strconv.FormatInt(conf.OrderID, 10), redisx.TTLIdempotency)
	}
	redisx.SetString(r.Context(), h.rdb,
		fmt.Sprintf(redisx.KeyOrderStatus, conf.OrderID), string(conf.Status), redisx.TTLStatusCache)

	writeJSON(w, http.StatusCreated, conf)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrMsg(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	orderID, ok := pathID(r)
	if !ok {
		writeErrMsg(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := store.GetOrderForUser(r.Context(), h.db, orderID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) getOrderByCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrMsg(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	code := chi.URLParam(r, "code")
	if code == "" {
		writeErrMsg(w, http.StatusBadRequest, "missing order code")
		return
	}

	order, err := store.GetOrderByCode(r.Context(), h.db, code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if order.UserID != userID {
		writeErrMsg(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrMsg(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	orderID, ok := pathID(r)
	if !ok {
		writeErrMsg(w, http.StatusBadRequest, "invalid order id")
		return
	}

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if status, ok := redisx.GetString(r.Context(), h.rdb, key); ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
		return
	}

	order, err := store.GetOrderForUser(r.Context(), h.db, orderID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	redisx.SetString(r.Context(), h.rdb, key, string(order.Status), redisx.TTLStatusCache)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(order.Status)})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrMsg(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	page, err := store.ListOrdersCursor(r.Context(), h.db, userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrMsg(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	orderID, ok := pathID(r)
	if !ok {
		writeErrMsg(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.checkout.Cancel(r.Context(), orderID, userID); err != nil {
		h.writeError(w, err)
		return
	}
	redisx.SetString(r.Context(), h.rdb,
		fmt.Sprintf(redisx.KeyOrderStatus, orderID), string(models.OrderStatusCancelled), redisx.TTLStatusCache)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.OrderStatusCancelled)})
}

type advanceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed processing shipping delivered"`
}

func (h *Handler) advanceOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r)
	if !ok {
		writeErrMsg(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req advanceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	to := models.OrderStatus(req.Status)
	if err := h.checkout.AdvanceStatus(r.Context(), orderID, to); err != nil {
		h.writeError(w, err)
		return
	}
	redisx.SetString(r.Context(), h.rdb,
		fmt.Sprintf(redisx.KeyOrderStatus, orderID), string(to), redisx.TTLStatusCache)
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

type createUnitRequest struct {
	SKU         string          `json:"sku" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
}

func (h *Handler) createInventoryUnit(w http.ResponseWriter, r *http.Request) {
	var req createUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Price.IsNegative() || req.DiscountPct.IsNegative() {
		writeErrMsg(w, http.StatusBadRequest, "price and discount must be non-negative")
		return
	}

	unit, err := store.CreateUnit(r.Context(), h.db, req.SKU, req.Name, req.Price, req.DiscountPct, req.Quantity)
	if err != nil {
		if database.IsUniqueViolation(err) {
			writeErrMsg(w, http.StatusConflict, "sku already exists")
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, unit)
}

type setListingRequest struct {
	Listed *bool `json:"listed" validate:"required"`
}

func (h *Handler) setInventoryListing(w http.ResponseWriter, r *http.Request) {
	skuID, ok := pathID(r)
	if !ok {
		writeErrMsg(w, http.StatusBadRequest, "invalid sku id")
		return
	}

	var req setListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetListed(r.Context(), h.db, skuID, *req.Listed); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
