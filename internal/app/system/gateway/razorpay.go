package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"go.uber.org/zap"
)

// MethodRazorpay is the payment method served by Razorpay.
const MethodRazorpay = "razorpay"

// RazorpayConfig holds API credentials.
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string // default https://api.razorpay.com
}

// Razorpay creates orders over the REST API and verifies checkout signatures.
type Razorpay struct {
	cfg    RazorpayConfig
	client *httpClient
	now    func() time.Time
}

// NewRazorpay returns a Razorpay gateway.
func NewRazorpay(cfg RazorpayConfig, timeout time.Duration, logger *zap.Logger) *Razorpay {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Razorpay{
		cfg:    cfg,
		client: newHTTPClient(MethodRazorpay, timeout, logger),
		now:    time.Now,
	}
}

func (g *Razorpay) Method() string { return MethodRazorpay }

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateOrder registers an order for amount (in whole units). Razorpay
// takes the smallest currency unit, so the amount is sent in paise.
func (g *Razorpay) CreateOrder(ctx context.Context, amount int64, currency string, meta map[string]string) (Order, error) {
	payload := map[string]any{
		"amount":   amount * 100,
		"currency": currency,
		"receipt":  fmt.Sprintf("receipt_%d", g.now().UnixMilli()),
	}
	if len(meta) > 0 {
		payload["notes"] = meta
	}

	var out razorpayOrder
	err := g.client.do(ctx, "create_order", func(ctx context.Context) (*http.Request, error) {
		body, err := jsonBody(payload)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/orders", body)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &out)
	if err != nil {
		return Order{}, err
	}
	if out.ID == "" {
		return Order{}, apperr.New(apperr.GatewayError, "payment gateway returned no order id")
	}
	return Order{OrderID: out.ID, Amount: amount, Currency: currency}, nil
}

// Confirm checks the checkout signature. No network call is made.
func (g *Razorpay) Confirm(ctx context.Context, p Proof) (Confirmation, error) {
	if p.OrderID == "" || p.PaymentID == "" || p.Signature == "" {
		return Confirmation{}, apperr.New(apperr.BadRequest, "order_id, payment_id and signature are required")
	}
	if !g.validSignature(p.OrderID, p.PaymentID, p.Signature) {
		return Confirmation{}, apperr.New(apperr.InvalidSignature, "")
	}
	return Confirmation{
		OrderID:       p.OrderID,
		TransactionID: p.PaymentID,
		Snapshot: map[string]string{
			"order_id":   p.OrderID,
			"payment_id": p.PaymentID,
			"signature":  p.Signature,
		},
	}, nil
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID".
func (g *Razorpay) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(g.cfg.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *Razorpay) validSignature(orderID, paymentID, sig string) bool {
	want := g.Sign(orderID, paymentID)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(sig)))
}
