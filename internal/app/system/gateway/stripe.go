package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"go.uber.org/zap"
)

// MethodStripe is the payment method served by Stripe.
const MethodStripe = "stripe"

const stripeSucceeded = "succeeded"

// StripeConfig holds API credentials.
type StripeConfig struct {
	SecretKey string
	BaseURL   string // default https://api.stripe.com
}

// Stripe creates payment intents and confirms them by retrieving their status.
type Stripe struct {
	cfg    StripeConfig
	client *httpClient
}

// NewStripe returns a Stripe gateway.
func NewStripe(cfg StripeConfig, timeout time.Duration, logger *zap.Logger) *Stripe {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Stripe{cfg: cfg, client: newHTTPClient(MethodStripe, timeout, logger)}
}

func (g *Stripe) Method() string { return MethodStripe }

type stripeIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// CreateOrder creates a payment intent. Amounts go out in the smallest unit.
func (g *Stripe) CreateOrder(ctx context.Context, amount int64, currency string, meta map[string]string) (Order, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount*100, 10))
	form.Set("currency", strings.ToLower(currency))
	for k, v := range meta {
		form.Set("metadata["+k+"]", v)
	}

	var out stripeIntent
	err := g.client.do(ctx, "create_intent", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			g.cfg.BaseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		g.authorize(req)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, &out)
	if err != nil {
		return Order{}, err
	}
	if out.ID == "" {
		return Order{}, apperr.New(apperr.GatewayError, "payment gateway returned no intent id")
	}
	return Order{OrderID: out.ID, ClientSecret: out.ClientSecret, Amount: amount, Currency: currency}, nil
}

// Confirm retrieves the intent and requires it to have succeeded.
func (g *Stripe) Confirm(ctx context.Context, p Proof) (Confirmation, error) {
	id := p.PaymentIntentID
	if id == "" {
		id = p.OrderID
	}
	if id == "" {
		return Confirmation{}, apperr.New(apperr.BadRequest, "payment_intent_id is required")
	}

	var out stripeIntent
	err := g.client.do(ctx, "retrieve_intent", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			g.cfg.BaseURL+"/v1/payment_intents/"+url.PathEscape(id), nil)
		if err != nil {
			return nil, err
		}
		g.authorize(req)
		return req, nil
	}, &out)
	if err != nil {
		return Confirmation{}, err
	}
	if out.Status != stripeSucceeded {
		return Confirmation{}, apperr.New(apperr.PaymentNotSuccessful, "")
	}
	return Confirmation{
		OrderID:       out.ID,
		TransactionID: out.ID,
		Snapshot: map[string]string{
			"payment_intent_id": out.ID,
			"status":            out.Status,
		},
	}, nil
}

func (g *Stripe) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
}
