package vnpay

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testGateway() *Gateway {
	return New(Config{
		TmnCode:    "TESTTMN1",
		HashSecret: "secret-key-for-tests",
		PayURL:     "https://sandbox.example.com/paymentv2/vpcpay.html",
		ReturnURL:  "http://localhost:8080/payments/vnpay/return",
	})
}

func TestBuildRedirectURLSignsParams(t *testing.T) {
	gw := testGateway()

	raw, err := gw.BuildRedirectURL(PaymentRequest{
		TxnRef:    "42-1700000000000",
		Amount:    decimal.NewFromInt(1550000),
		OrderInfo: "Thanh toan don hang ORD-TEST",
		IPAddr:    "203.0.113.7",
		Now:       time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("BuildRedirectURL: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse redirect url: %v", err)
	}
	q := u.Query()

	if got := q.Get("vnp_Amount"); got != "155000000" {
		t.Errorf("vnp_Amount = %s, want 155000000", got)
	}
	if got := q.Get("vnp_TxnRef"); got != "42-1700000000000" {
		t.Errorf("vnp_TxnRef = %s", got)
	}
	if got := q.Get("vnp_CreateDate"); got != "20260102150405" {
		t.Errorf("vnp_CreateDate = %s", got)
	}
	if q.Get("vnp_SecureHash") == "" {
		t.Error("redirect url missing vnp_SecureHash")
	}

	// The redirect must verify under the same secret.
	params := map[string]string{}
	for k, vs := range q {
		params[k] = vs[0]
	}
	cb, err := gw.VerifyCallback(params)
	if err != nil {
		t.Fatalf("VerifyCallback on own redirect: %v", err)
	}
	if cb.TxnRef != "42-1700000000000" {
		t.Errorf("TxnRef = %s", cb.TxnRef)
	}
	if !cb.Resolved || cb.OrderID != 42 {
		t.Errorf("OrderID = %d resolved=%v, want 42 true", cb.OrderID, cb.Resolved)
	}
}

func TestBuildRedirectURLIncompleteConfig(t *testing.T) {
	gw := New(Config{TmnCode: "X"})
	_, err := gw.BuildRedirectURL(PaymentRequest{TxnRef: "1-1", Amount: decimal.NewFromInt(1)})
	if err == nil {
		t.Fatal("expected error for incomplete config")
	}
}

func callbackParams(gw *Gateway, overrides map[string]string) map[string]string {
	params := map[string]string{
		"vnp_TmnCode":           "TESTTMN1",
		"vnp_TxnRef":            "42-1700000000000",
		"vnp_Amount":            "155000000",
		"vnp_ResponseCode":      "00",
		"vnp_TransactionStatus": "00",
		"vnp_TransactionNo":     "14422574",
		"vnp_OrderInfo":         "Thanh toan don hang ORD-TEST",
	}
	for k, v := range overrides {
		params[k] = v
	}
	params[paramSecureHash] = gw.sign(canonicalQuery(params))
	return params
}

func TestVerifyCallbackSuccess(t *testing.T) {
	gw := testGateway()

	cb, err := gw.VerifyCallback(callbackParams(gw, nil))
	if err != nil {
		t.Fatalf("VerifyCallback: %v", err)
	}
	if !cb.IsSuccess {
		t.Error("expected success outcome")
	}
	if cb.OrderID != 42 || !cb.Resolved {
		t.Errorf("OrderID = %d resolved=%v", cb.OrderID, cb.Resolved)
	}
	if !cb.Amount.Equal(decimal.NewFromInt(1550000)) {
		t.Errorf("Amount = %s, want 1550000", cb.Amount)
	}
	if cb.ProviderTxnID != "14422574" {
		t.Errorf("ProviderTxnID = %s", cb.ProviderTxnID)
	}
}

func TestVerifyCallbackSuccessRequiresBothCodes(t *testing.T) {
	gw := testGateway()

	cb, err := gw.VerifyCallback(callbackParams(gw, map[string]string{
		"vnp_TransactionStatus": "02",
	}))
	if err != nil {
		t.Fatalf("VerifyCallback: %v", err)
	}
	if cb.IsSuccess {
		t.Error("success despite failed transaction status")
	}
}

func TestVerifyCallbackTamperedParam(t *testing.T) {
	gw := testGateway()

	params := callbackParams(gw, nil)
	params["vnp_Amount"] = "999900"

	_, err := gw.VerifyCallback(params)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("err = %v, want ErrVerificationFailed", err)
	}
}

func TestVerifyCallbackMissingSignature(t *testing.T) {
	gw := testGateway()

	params := callbackParams(gw, nil)
	delete(params, paramSecureHash)

	_, err := gw.VerifyCallback(params)
	if !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("err = %v, want ErrMissingSignature", err)
	}
}

func TestVerifyCallbackWrongSecret(t *testing.T) {
	gw := testGateway()
	other := New(Config{
		TmnCode:    "TESTTMN1",
		HashSecret: "different-secret",
		PayURL:     "https://sandbox.example.com/pay",
		ReturnURL:  "http://localhost/return",
	})

	_, err := other.VerifyCallback(callbackParams(gw, nil))
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("err = %v, want ErrVerificationFailed", err)
	}
}

func TestVerifyCallbackUnparseableRef(t *testing.T) {
	gw := testGateway()

	cb, err := gw.VerifyCallback(callbackParams(gw, map[string]string{
		"vnp_TxnRef": "garbage-ref",
	}))
	if err != nil {
		t.Fatalf("authentic callback should not error: %v", err)
	}
	if cb.Resolved {
		t.Error("garbage ref should not resolve")
	}
}

func TestResolveOrderID(t *testing.T) {
	cases := []struct {
		ref  string
		id   int64
		ok   bool
	}{
		{"42-1700000000000", 42, true},
		{"7", 7, true},
		{"0-123", 0, false},
		{"-5-123", 0, false},
		{"abc-123", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		id, ok := ResolveOrderID(tc.ref)
		if id != tc.id || ok != tc.ok {
			t.Errorf("ResolveOrderID(%q) = (%d, %v), want (%d, %v)", tc.ref, id, ok, tc.id, tc.ok)
		}
	}
}

func TestNewTxnRefUniquePerAttempt(t *testing.T) {
	t1 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	t2 := t1.Add(time.Millisecond)

	a := NewTxnRef(42, t1)
	b := NewTxnRef(42, t2)
	if a == b {
		t.Error("refs for distinct attempts collide")
	}
	if !strings.HasPrefix(a, "42-") {
		t.Errorf("ref %s missing order id prefix", a)
	}
}

func TestCanonicalQueryEncodesAndSorts(t *testing.T) {
	got := canonicalQuery(map[string]string{
		"b":             "two words",
		"a":             "1",
		"vnp_OrderInfo": "don hang #5",
	})
	want := "a=1&b=two+words&vnp_OrderInfo=don+hang+%235"
	if got != want {
		t.Errorf("canonicalQuery = %q, want %q", got, want)
	}
}

func TestSafeIPCoercesIPv6(t *testing.T) {
	if got := safeIP("::1"); got != "127.0.0.1" {
		t.Errorf("safeIP(::1) = %s", got)
	}
	if got := safeIP("203.0.113.7"); got != "203.0.113.7" {
		t.Errorf("safeIP kept = %s", got)
	}
	if got := safeIP(""); got != "127.0.0.1" {
		t.Errorf("safeIP(empty) = %s", got)
	}
}
