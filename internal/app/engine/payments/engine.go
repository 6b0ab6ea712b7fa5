// Package payments reconciles online gateway payments and manual transfers.
//
// Online:  pending -> completed (gateway proof verified)
// Manual:  verifying -> completed | failed (staff decision)
//
// The transition into completed is the only place settlement happens, so a
// payment's effects on the payer (fines cleared, membership extended) apply
// exactly once however many times confirmation is retried.
package payments

import (
	"context"
	"errors"
	"time"

	borrowstore "github.com/dalemusser/libraryhub/internal/app/store/borrows"
	paymentstore "github.com/dalemusser/libraryhub/internal/app/store/payments"
	userstore "github.com/dalemusser/libraryhub/internal/app/store/users"
	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"github.com/dalemusser/libraryhub/internal/app/system/auditlog"
	"github.com/dalemusser/libraryhub/internal/app/system/gateway"
	"github.com/dalemusser/libraryhub/internal/app/system/notify"
	"github.com/dalemusser/libraryhub/internal/app/system/receipts"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("libraryhub/payments")

// Receipts generates and loads receipt documents. *receipts.Store satisfies it.
type Receipts interface {
	Generate(ctx context.Context, p models.Payment, payer models.User) (string, error)
	Exists(ref string) bool
	Load(ref string) (receipts.Document, error)
}

// TransferDetails are the accounts shown to payers choosing a manual method.
type TransferDetails struct {
	UPIID         string `json:"upi_id"`
	UPIName       string `json:"upi_name"`
	BankName      string `json:"bank_name"`
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
}

// Config holds settlement rules.
type Config struct {
	Currency       string
	MembershipDays int
	Transfer       TransferDetails
}

func (c Config) withDefaults() Config {
	if c.Currency == "" {
		c.Currency = "INR"
	}
	if c.MembershipDays <= 0 {
		c.MembershipDays = 365
	}
	return c
}

// Deps are the engine's collaborators. Audit, Notifier and Receipts may be nil.
type Deps struct {
	DB       *mongo.Database
	Gateways gateway.Set
	Receipts Receipts
	Audit    *auditlog.Logger
	Notifier notify.Notifier
	Log      *zap.Logger
}

// Engine executes payment operations.
type Engine struct {
	db       *mongo.Database
	users    *userstore.Store
	borrows  *borrowstore.Store
	payments *paymentstore.Store
	gateways gateway.Set
	receipts Receipts
	audit    *auditlog.Logger
	notifier notify.Notifier
	log      *zap.Logger
	cfg      Config
	now      func() time.Time

	settled metric.Int64Counter
}

// New creates an Engine.
func New(deps Deps, cfg Config) *Engine {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	counter, err := otel.Meter("libraryhub/payments").Int64Counter(
		"libraryhub.payment.settlements",
		metric.WithDescription("Payments moved into completed or failed"),
	)
	if err != nil {
		log.Warn("payment settlement counter unavailable", zap.Error(err))
	}
	gws := deps.Gateways
	if gws == nil {
		gws = gateway.Set{}
	}
	return &Engine{
		db:       deps.DB,
		users:    userstore.New(deps.DB),
		borrows:  borrowstore.New(deps.DB),
		payments: paymentstore.New(deps.DB),
		gateways: gws,
		receipts: deps.Receipts,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		log:      log,
		cfg:      cfg.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
		settled:  counter,
	}
}

// TransferDetails returns the configured manual payment accounts.
func (e *Engine) TransferDetails() TransferDetails { return e.cfg.Transfer }

func (e *Engine) count(ctx context.Context, p *models.Payment) {
	if e.settled == nil {
		return
	}
	e.settled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", p.Status),
		attribute.String("type", p.PaymentType),
		attribute.String("method", p.PaymentMethod),
	))
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "payments."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.Message(err))
	}
	span.End()
}

func classify(err error) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, paymentstore.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, "payment not found", err)
	case errors.Is(err, paymentstore.ErrDuplicateTransaction):
		return apperr.Wrap(apperr.DuplicateTransaction, "", err)
	case errors.Is(err, paymentstore.ErrWrongState):
		return apperr.Wrap(apperr.InvalidState, "", err)
	case errors.Is(err, userstore.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, "user not found", err)
	case errors.Is(err, borrowstore.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, "borrow record not found", err)
	}
	return err
}
