package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/libraryhub/internal/app/system/mailer"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// settle applies a completed payment's effects on the payer. It runs in the
// same unit of work as the transition into completed. Without a transaction
// a failed step leaves nothing behind: earlier steps are undone here and
// the caller reopens the payment.
func (e *Engine) settle(ctx context.Context, p *models.Payment) error {
	switch p.PaymentType {
	case models.PaymentTypeFine:
		reduced, err := e.users.ReduceFines(ctx, p.UserID, p.Amount)
		if err != nil {
			return fmt.Errorf("reduce fines: %w", err)
		}
		if p.BorrowID != nil {
			if err := e.borrows.SetFinePaid(ctx, *p.BorrowID); err != nil {
				e.undo("restore fines", e.users.AddFine(ctx, p.UserID, reduced), p.ID)
				return fmt.Errorf("mark fine paid: %w", err)
			}
		}
	case models.PaymentTypeMembership:
		expiry := e.now().AddDate(0, 0, e.cfg.MembershipDays)
		if err := e.users.ActivateMembership(ctx, p.UserID, expiry); err != nil {
			return fmt.Errorf("activate membership: %w", err)
		}
	}
	return nil
}

func (e *Engine) undo(step string, err error, paymentID primitive.ObjectID) {
	if err != nil {
		e.log.Error("compensation failed",
			zap.String("step", step),
			zap.String("payment_id", paymentID.Hex()),
			zap.Error(err))
	}
}

// completed runs the best-effort follow-ups of a settlement. Failures are
// logged and never reach the caller.
func (e *Engine) completed(ctx context.Context, p *models.Payment) {
	e.count(ctx, p)
	if err := e.ensureReceipt(ctx, p); err != nil {
		e.log.Warn("receipt generation failed",
			zap.String("payment_id", p.ID.Hex()),
			zap.Error(err))
	}
	e.notifyPayer(ctx, p, mailer.BuildPaymentConfirmed)
}

var errNoReceipts = errors.New("receipt storage not configured")

// ensureReceipt makes sure p has a receipt document on disk, generating a
// new one when the reference is empty or its file has gone missing.
func (e *Engine) ensureReceipt(ctx context.Context, p *models.Payment) error {
	if e.receipts == nil {
		return errNoReceipts
	}
	if p.ReceiptURL != "" && e.receipts.Exists(p.ReceiptURL) {
		return nil
	}
	payer, err := e.users.GetByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	ref, err := e.receipts.Generate(ctx, *p, *payer)
	if err != nil {
		return err
	}
	if err := e.payments.SetReceipt(ctx, p.ID, ref); err != nil {
		return err
	}
	p.ReceiptURL = ref
	return nil
}

func paymentData(u *models.User, p *models.Payment) mailer.PaymentData {
	d := mailer.PaymentData{
		Name:          u.Name,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaymentType:   p.PaymentType,
		Method:        p.PaymentMethod,
		TransactionID: p.TransactionID,
		ReceiptURL:    p.ReceiptURL,
		Notes:         p.AdminNotes,
	}
	if p.PaidAt != nil {
		d.PaidAt = *p.PaidAt
	}
	return d
}

func (e *Engine) notifyPayer(ctx context.Context, p *models.Payment, build func(to string, d mailer.PaymentData) mailer.Email) {
	if e.notifier == nil {
		return
	}
	u, err := e.users.GetByID(ctx, p.UserID)
	if err != nil {
		e.log.Warn("notification skipped: payer lookup failed",
			zap.String("payment_id", p.ID.Hex()),
			zap.Error(err))
		return
	}
	if u.Email == "" {
		return
	}
	e.notifier.Notify(build(u.Email, paymentData(u, p)))
}
