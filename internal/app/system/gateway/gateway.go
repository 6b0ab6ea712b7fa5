// Package gateway talks to the online payment providers. Each provider
// creates an order (or intent) up front and later confirms that the charge
// succeeded: Razorpay by HMAC signature, Stripe by looking the intent up.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("libraryhub/gateway")

// Order is what a provider returns when a charge is set up.
type Order struct {
	OrderID      string `json:"order_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Proof is what the client sends back after paying.
type Proof struct {
	OrderID         string `json:"order_id"`
	PaymentID       string `json:"payment_id"`
	Signature       string `json:"signature"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// Confirmation is a verified charge.
type Confirmation struct {
	OrderID       string
	TransactionID string
	Snapshot      map[string]string
}

// Gateway is one online provider.
type Gateway interface {
	Method() string
	CreateOrder(ctx context.Context, amount int64, currency string, meta map[string]string) (Order, error)
	Confirm(ctx context.Context, proof Proof) (Confirmation, error)
}

// Set maps payment methods to configured gateways.
type Set map[string]Gateway

// Get returns the gateway for method.
func (s Set) Get(method string) (Gateway, bool) {
	g, ok := s[method]
	return g, ok
}

// errClient marks a 4xx reply. It does not count against the breaker.
var errClient = errors.New("gateway rejected request")

// httpClient is a JSON/form client behind a circuit breaker.
type httpClient struct {
	name    string
	hc      *http.Client
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	log     *zap.Logger
}

func newHTTPClient(name string, timeout time.Duration, logger *zap.Logger) *httpClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errClient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("gateway circuit state changed",
				zap.String("gateway", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &httpClient{
		name:    name,
		hc:      &http.Client{Timeout: timeout},
		cb:      gobreaker.NewCircuitBreaker(st),
		timeout: timeout,
		log:     logger,
	}
}

// do sends req and decodes a 2xx JSON body into out. The request's context
// is bounded by the client timeout. Failures come back as GatewayError.
func (c *httpClient) do(ctx context.Context, op string, build func(ctx context.Context) (*http.Request, error), out any) error {
	ctx, span := tracer.Start(ctx, "gateway."+op, trace.WithAttributes(attribute.String("gateway", c.name)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.cb.Execute(func() (interface{}, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		switch {
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%s %s: status %d", c.name, op, resp.StatusCode)
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("%w: %s %s: status %d: %s", errClient, c.name, op, resp.StatusCode, truncate(body, 200))
		}
		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return nil, fmt.Errorf("%s %s: decode: %w", c.name, op, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Warn("gateway call failed",
			zap.String("gateway", c.name),
			zap.String("op", op),
			zap.Error(err))
		return apperr.Wrap(apperr.GatewayError, "payment gateway error, please try again", err)
	}
	return nil
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
