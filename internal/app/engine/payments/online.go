package payments

import (
	"context"
	"errors"
	"strings"

	paymentstore "github.com/dalemusser/libraryhub/internal/app/store/payments"
	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"github.com/dalemusser/libraryhub/internal/app/system/gateway"
	"github.com/dalemusser/libraryhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/libraryhub/internal/app/system/limits"
	"github.com/dalemusser/libraryhub/internal/app/system/txn"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Request describes a payment a user wants to make.
type Request struct {
	Amount        int64
	PaymentType   string
	Method        string
	BorrowID      *primitive.ObjectID
	Description   string
	TransactionID string // manual methods only
}

// validate checks the fields shared by online and manual payments.
func (e *Engine) validate(ctx context.Context, userID primitive.ObjectID, r *Request) error {
	if r.Amount <= 0 {
		return apperr.New(apperr.InvalidAmount, "")
	}
	if r.Amount > limits.MaxPaymentAmount {
		return apperr.New(apperr.InvalidAmount, "amount exceeds the per-payment maximum")
	}
	if !models.IsPaymentType(r.PaymentType) {
		return apperr.New(apperr.BadRequest, "payment type must be fine, membership or deposit")
	}
	if _, err := e.users.GetByID(ctx, userID); err != nil {
		return classify(err)
	}
	if r.BorrowID != nil {
		rec, err := e.borrows.GetByID(ctx, *r.BorrowID)
		if err != nil {
			return classify(err)
		}
		if rec.UserID != userID {
			return apperr.New(apperr.Forbidden, "not your borrow record")
		}
	}
	r.Description = htmlsanitize.Note(r.Description)
	return nil
}

// OrderResult is a created gateway order and the pending payment behind it.
type OrderResult struct {
	Payment models.Payment `json:"payment"`
	Order   gateway.Order  `json:"order"`
}

// CreateOnlineOrder registers an order with the gateway for method and
// records a pending payment against it.
func (e *Engine) CreateOnlineOrder(ctx context.Context, userID primitive.ObjectID, r Request) (res *OrderResult, err error) {
	ctx, span := e.startSpan(ctx, "create_order",
		attribute.String("user_id", userID.Hex()),
		attribute.String("method", r.Method))
	defer func() { endSpan(span, err) }()

	if err := e.validate(ctx, userID, &r); err != nil {
		return nil, err
	}
	gw, ok := e.gateways.Get(r.Method)
	if !ok {
		return nil, apperr.New(apperr.BadRequest, "unsupported online payment method")
	}

	order, err := gw.CreateOrder(ctx, r.Amount, e.cfg.Currency, map[string]string{
		"user_id":      userID.Hex(),
		"payment_type": r.PaymentType,
	})
	if err != nil {
		return nil, err
	}

	p, err := e.payments.Create(ctx, models.Payment{
		UserID:        userID,
		BorrowID:      r.BorrowID,
		Amount:        r.Amount,
		Currency:      e.cfg.Currency,
		PaymentType:   r.PaymentType,
		PaymentMethod: gw.Method(),
		Status:        models.PaymentPending,
		OrderID:       order.OrderID,
		Description:   r.Description,
	})
	if err != nil {
		return nil, classify(err)
	}

	e.audit.OrderCreated(ctx, userID, p.ID, order.OrderID, gw.Method(), r.Amount)
	e.log.Info("payment order created",
		zap.String("payment_id", p.ID.Hex()),
		zap.String("order_id", order.OrderID),
		zap.String("method", gw.Method()),
		zap.Int64("amount", r.Amount))
	return &OrderResult{Payment: p, Order: order}, nil
}

// ConfirmOnlinePayment verifies the gateway proof and completes the matching
// payment. A failed proof leaves the payment untouched. Confirming a payment
// that already completed with the same transaction returns it unchanged.
func (e *Engine) ConfirmOnlinePayment(ctx context.Context, method string, proof gateway.Proof) (p *models.Payment, err error) {
	ctx, span := e.startSpan(ctx, "confirm_online",
		attribute.String("method", method),
		attribute.String("order_id", proof.OrderID))
	defer func() { endSpan(span, err) }()

	gw, ok := e.gateways.Get(method)
	if !ok {
		return nil, apperr.New(apperr.BadRequest, "unsupported online payment method")
	}

	conf, err := gw.Confirm(ctx, proof)
	if err != nil {
		ref := proof.OrderID
		if ref == "" {
			ref = proof.PaymentIntentID
		}
		e.audit.OnlinePaymentDenied(ctx, ref, string(apperr.KindOf(err)))
		e.log.Warn("online payment not confirmed",
			zap.String("method", method),
			zap.String("order_id", ref),
			zap.Error(err))
		return nil, err
	}

	err = txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		done, err := e.payments.CompleteOnline(ctx, conf.OrderID, conf.TransactionID, conf.Snapshot, e.now())
		if err != nil {
			return err
		}
		if err := e.settle(ctx, done); err != nil {
			e.undo("reopen payment", e.payments.ReopenOnline(ctx, done.ID, done.TransactionID), done.ID)
			return err
		}
		p = done
		return nil
	})
	if errors.Is(err, paymentstore.ErrWrongState) {
		cur, gerr := e.payments.GetByOrderID(ctx, conf.OrderID)
		if gerr != nil {
			return nil, classify(gerr)
		}
		if cur.Status == models.PaymentCompleted && strings.EqualFold(cur.TransactionID, conf.TransactionID) {
			return cur, nil
		}
		return nil, apperr.Wrap(apperr.InvalidState, "payment can no longer be confirmed", err)
	}
	if err != nil {
		return nil, classify(err)
	}

	e.completed(ctx, p)
	e.audit.OnlinePaymentCompleted(ctx, p.UserID, p.ID, p.TransactionID)
	e.log.Info("online payment completed",
		zap.String("payment_id", p.ID.Hex()),
		zap.String("transaction_id", p.TransactionID))
	return p, nil
}
