package httpapi

import (
	"fmt"
	"net/http"

	"github.com/vudinh158/laptop-NEW-sub001/internal/payments"
	"github.com/vudinh158/laptop-NEW-sub001/internal/redisx"
)

// ipnResponse is the acknowledgement shape the provider's IPN retry loop
// inspects. Anything other than RspCode "00" triggers redelivery.
type ipnResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

func flattenQuery(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.URL.Query()))
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

// vnpayIPN is the server-to-server callback. The provider retries until it
// reads RspCode "00", so duplicates answer success without reapplying.
func (h *Handler) vnpayIPN(w http.ResponseWriter, r *http.Request) {
	cb, err := h.gateway.VerifyCallback(flattenQuery(r))
	if err != nil {
		h.log.Warn("ipn signature rejected", "err", err)
		writeJSON(w, http.StatusOK, ipnResponse{RspCode: "97", Message: "Invalid signature"})
		return
	}

	outcome, err := h.reconciler.Apply(r.Context(), cb)
	if err != nil {
		h.log.Error("ipn apply failed", "txn_ref", cb.TxnRef, "err", err)
		writeJSON(w, http.StatusOK, ipnResponse{RspCode: "99", Message: "Unknown error"})
		return
	}

	switch outcome {
	case payments.OutcomeApplied:
		h.invalidateStatus(r, cb.OrderID)
		writeJSON(w, http.StatusOK, ipnResponse{RspCode: "00", Message: "Confirm Success"})
	case payments.OutcomeDuplicate, payments.OutcomeStale:
		writeJSON(w, http.StatusOK, ipnResponse{RspCode: "02", Message: "Order already confirmed"})
	case payments.OutcomeAmountMismatch:
		writeJSON(w, http.StatusOK, ipnResponse{RspCode: "04", Message: "Invalid amount"})
	case payments.OutcomeUnknownRef:
		writeJSON(w, http.StatusOK, ipnResponse{RspCode: "01", Message: "Order not found"})
	}
}

// vnpayReturn lands the shopper's browser after payment. It applies the
// callback too, so sandbox merchants without a reachable IPN endpoint still
// settle; Apply makes the double delivery harmless.
func (h *Handler) vnpayReturn(w http.ResponseWriter, r *http.Request) {
	cb, err := h.gateway.VerifyCallback(flattenQuery(r))
	if err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid signature")
		return
	}

	outcome, err := h.reconciler.Apply(r.Context(), cb)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if outcome == payments.OutcomeApplied {
		h.invalidateStatus(r, cb.OrderID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":      cb.OrderID,
		"txn_ref":       cb.TxnRef,
		"success":       cb.IsSuccess,
		"response_code": cb.ResponseCode,
	})
}

func (h *Handler) invalidateStatus(r *http.Request, orderID int64) {
	if h.rdb == nil || orderID == 0 {
		return
	}
	_ = h.rdb.Del(r.Context(), fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
}
