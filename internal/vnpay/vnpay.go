// Package vnpay builds signed redirect requests for the VNPay gateway and
// verifies its signed callbacks. All configuration is injected; nothing here
// reads ambient state.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	version = "2.1.0"
	command = "pay"

	paramSecureHash     = "vnp_SecureHash"
	paramSecureHashType = "vnp_SecureHashType"

	// Provider response code meaning success; both the response code and the
	// transaction status must carry it.
	codeSuccess = "00"
)

var (
	ErrMissingSignature   = errors.New("vnpay: callback missing signature")
	ErrVerificationFailed = errors.New("vnpay: signature verification failed")
)

type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	Locale     string
	CurrCode   string
}

type Gateway struct {
	cfg Config
}

func New(cfg Config) *Gateway {
	if cfg.Locale == "" {
		cfg.Locale = "vn"
	}
	if cfg.CurrCode == "" {
		cfg.CurrCode = "VND"
	}
	return &Gateway{cfg: cfg}
}

// NewTxnRef derives a transaction reference unique per payment attempt, so a
// retried payment for the same order never collides at the provider. The
// order id stays recoverable as the leading segment.
func NewTxnRef(orderID int64, now time.Time) string {
	return fmt.Sprintf("%d-%d", orderID, now.UnixMilli())
}

// ResolveOrderID recovers the order id from the leading segment of a
// transaction reference. ok is false for anything malformed.
func ResolveOrderID(txnRef string) (int64, bool) {
	head, _, found := strings.Cut(txnRef, "-")
	if !found {
		head = txnRef
	}
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type PaymentRequest struct {
	TxnRef    string
	Amount    decimal.Decimal
	OrderInfo string
	IPAddr    string
	BankCode  string
	Now       time.Time
}

// BuildRedirectURL constructs the provider redirect: parameters sorted
// lexicographically on their encoded keys, URL-encoded with space as '+',
// concatenated, HMAC-SHA512 signed, the signature appended last.
func (g *Gateway) BuildRedirectURL(req PaymentRequest) (string, error) {
	if g.cfg.TmnCode == "" || g.cfg.HashSecret == "" || g.cfg.PayURL == "" || g.cfg.ReturnURL == "" {
		return "", errors.New("vnpay: incomplete gateway configuration")
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	params := map[string]string{
		"vnp_Version":    version,
		"vnp_Command":    command,
		"vnp_TmnCode":    g.cfg.TmnCode,
		"vnp_Locale":     g.cfg.Locale,
		"vnp_CurrCode":   g.cfg.CurrCode,
		"vnp_TxnRef":     req.TxnRef,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  "other",
		"vnp_Amount":     strconv.FormatInt(toMinorUnits(req.Amount), 10),
		"vnp_ReturnUrl":  g.cfg.ReturnURL,
		"vnp_IpAddr":     safeIP(req.IPAddr),
		"vnp_CreateDate": now.Format("20060102150405"),
	}
	if req.OrderInfo == "" {
		params["vnp_OrderInfo"] = "Thanh toan don hang " + req.TxnRef
	}
	if req.BankCode != "" {
		params["vnp_BankCode"] = req.BankCode
	}

	signData := canonicalQuery(params)
	params[paramSecureHash] = g.sign(signData)

	return g.cfg.PayURL + "?" + canonicalQuery(params), nil
}

// Callback is the interpreted outcome of an inbound provider callback.
type Callback struct {
	IsSuccess     bool
	Resolved      bool
	OrderID       int64
	TxnRef        string
	Amount        decimal.Decimal
	ProviderTxnID string
	ResponseCode  string
	RawParams     map[string]string
}

// VerifyCallback authenticates and interprets the flat query-parameter map of
// an inbound callback. A bad or absent signature is an error and nothing else
// is inspected; an authentic callback whose transaction reference cannot be
// parsed comes back with Resolved=false for manual reconciliation.
func (g *Gateway) VerifyCallback(query map[string]string) (Callback, error) {
	provided, ok := query[paramSecureHash]
	if !ok || provided == "" {
		return Callback{}, ErrMissingSignature
	}

	params := make(map[string]string, len(query))
	for k, v := range query {
		if k == paramSecureHash || k == paramSecureHashType {
			continue
		}
		params[k] = v
	}

	expected := g.sign(canonicalQuery(params))
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return Callback{}, ErrVerificationFailed
	}

	cb := Callback{
		TxnRef:       query["vnp_TxnRef"],
		ResponseCode: query["vnp_ResponseCode"],
		RawParams:    query,
	}
	cb.IsSuccess = query["vnp_ResponseCode"] == codeSuccess &&
		query["vnp_TransactionStatus"] == codeSuccess
	cb.ProviderTxnID = query["vnp_TransactionNo"]
	cb.OrderID, cb.Resolved = ResolveOrderID(cb.TxnRef)

	if raw := query["vnp_Amount"]; raw != "" {
		if minor, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cb.Amount = decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
		}
	}

	return cb, nil
}

func (g *Gateway) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalQuery encodes keys and values, sorts on the encoded keys, and
// joins k=v pairs with '&'. Spaces encode as '+', matching the provider's
// reference implementation.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	encoded := make(map[string]string, len(params))
	for k, v := range params {
		ek := url.QueryEscape(k)
		keys = append(keys, ek)
		encoded[ek] = url.QueryEscape(v)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(encoded[k])
	}
	return b.String()
}

// toMinorUnits converts VND to the provider's x100 representation.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// safeIP coerces IPv6 callers to a loopback IPv4; the sandbox gateway signs
// differently when the IP contains ':'.
func safeIP(ip string) string {
	if ip == "" || strings.Contains(ip, ":") {
		return "127.0.0.1"
	}
	return ip
}
