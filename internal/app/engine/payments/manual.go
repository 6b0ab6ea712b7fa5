package payments

import (
	"context"
	"errors"
	"strings"

	paymentstore "github.com/dalemusser/libraryhub/internal/app/store/payments"
	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"github.com/dalemusser/libraryhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/libraryhub/internal/app/system/limits"
	"github.com/dalemusser/libraryhub/internal/app/system/mailer"
	"github.com/dalemusser/libraryhub/internal/app/system/txn"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SubmitManualPayment records a cash, UPI or bank transfer for staff to
// verify. The external transaction id is required and must be unique.
func (e *Engine) SubmitManualPayment(ctx context.Context, userID primitive.ObjectID, r Request) (p *models.Payment, err error) {
	ctx, span := e.startSpan(ctx, "submit_manual",
		attribute.String("user_id", userID.Hex()),
		attribute.String("method", r.Method))
	defer func() { endSpan(span, err) }()

	r.TransactionID = strings.TrimSpace(r.TransactionID)
	if r.Amount <= 0 || r.Amount > limits.MaxPaymentAmount {
		return nil, apperr.New(apperr.InvalidAmount, "")
	}
	if r.TransactionID == "" {
		return nil, apperr.New(apperr.MissingReference, "")
	}
	if len(r.TransactionID) > limits.MaxTransactionIDLength {
		return nil, apperr.New(apperr.BadRequest, "transaction id is too long")
	}
	if !models.IsManualMethod(r.Method) {
		return nil, apperr.New(apperr.BadRequest, "method must be cash, upi or bank_transfer")
	}
	if err := e.validate(ctx, userID, &r); err != nil {
		return nil, err
	}

	created, err := e.payments.Create(ctx, models.Payment{
		UserID:        userID,
		BorrowID:      r.BorrowID,
		Amount:        r.Amount,
		Currency:      e.cfg.Currency,
		PaymentType:   r.PaymentType,
		PaymentMethod: r.Method,
		Status:        models.PaymentVerifying,
		TransactionID: r.TransactionID,
		Description:   r.Description,
	})
	if err != nil {
		return nil, classify(err)
	}

	e.audit.ManualSubmitted(ctx, userID, created.ID, created.TransactionID)
	e.log.Info("manual payment submitted",
		zap.String("payment_id", created.ID.Hex()),
		zap.String("method", created.PaymentMethod),
		zap.Int64("amount", created.Amount))
	return &created, nil
}

// VerifyManualPayment applies a staff decision to a payment awaiting
// verification. decision is "completed" or "failed". Repeating the decision
// a payment already carries is a no-op; reversing it is refused.
func (e *Engine) VerifyManualPayment(ctx context.Context, paymentID, staffID primitive.ObjectID, decision, notes string) (p *models.Payment, err error) {
	ctx, span := e.startSpan(ctx, "verify_manual",
		attribute.String("payment_id", paymentID.Hex()),
		attribute.String("decision", decision))
	defer func() { endSpan(span, err) }()

	if decision != models.PaymentCompleted && decision != models.PaymentFailed {
		return nil, apperr.New(apperr.BadRequest, `status must be "completed" or "failed"`)
	}
	notes = htmlsanitize.Note(notes)

	err = txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		done, err := e.payments.Decide(ctx, paymentID, decision, staffID, notes, e.now())
		if err != nil {
			return err
		}
		if done.Status == models.PaymentCompleted {
			if err := e.settle(ctx, done); err != nil {
				e.undo("reopen payment", e.payments.ReopenManual(ctx, done.ID, staffID), done.ID)
				return err
			}
		}
		p = done
		return nil
	})
	if errors.Is(err, paymentstore.ErrWrongState) {
		cur, gerr := e.payments.GetByID(ctx, paymentID)
		if gerr != nil {
			return nil, classify(gerr)
		}
		if cur.Status == decision {
			return cur, nil
		}
		return nil, apperr.Wrap(apperr.InvalidState, "payment is not awaiting verification", err)
	}
	if err != nil {
		return nil, classify(err)
	}

	completed := p.Status == models.PaymentCompleted
	e.audit.ManualDecided(ctx, staffID, p.UserID, p.ID, completed)
	e.log.Info("manual payment verified",
		zap.String("payment_id", p.ID.Hex()),
		zap.String("staff_id", staffID.Hex()),
		zap.String("status", p.Status))

	if completed {
		e.completed(ctx, p)
		return p, nil
	}
	e.count(ctx, p)
	e.notifyPayer(ctx, p, mailer.BuildPaymentFailed)
	return p, nil
}
