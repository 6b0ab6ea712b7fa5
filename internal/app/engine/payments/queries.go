package payments

import (
	"context"
	"errors"

	paymentstore "github.com/dalemusser/libraryhub/internal/app/store/payments"
	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"github.com/dalemusser/libraryhub/internal/app/system/mailer"
	"github.com/dalemusser/libraryhub/internal/app/system/paging"
	"github.com/dalemusser/libraryhub/internal/app/system/receipts"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Viewer is who is asking. Staff see every payment; others only their own.
type Viewer struct {
	ID    primitive.ObjectID
	Staff bool
}

func (v Viewer) canSee(p *models.Payment) bool {
	return v.Staff || p.UserID == v.ID
}

// HistoryQuery selects a history page. A nil UserID lists everyone.
type HistoryQuery struct {
	UserID      *primitive.ObjectID
	Status      string
	PaymentType string
	Page        paging.Params
}

// History returns one page of payments, newest first.
func (e *Engine) History(ctx context.Context, q HistoryQuery) ([]models.Payment, paging.Meta, error) {
	q.Page = q.Page.Normalize()
	rows, total, err := e.payments.History(ctx, paymentstore.HistoryFilter{
		UserID:      q.UserID,
		Status:      q.Status,
		PaymentType: q.PaymentType,
	}, q.Page.Skip(), int64(q.Page.Limit))
	if err != nil {
		return nil, paging.Meta{}, err
	}
	return rows, paging.NewMeta(q.Page, total), nil
}

// Get loads one payment the viewer may see.
func (e *Engine) Get(ctx context.Context, id primitive.ObjectID, v Viewer) (*models.Payment, error) {
	p, err := e.payments.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	if !v.canSee(p) {
		return nil, apperr.New(apperr.Forbidden, "not your payment")
	}
	return p, nil
}

func (e *Engine) completedFor(ctx context.Context, id primitive.ObjectID, v Viewer) (*models.Payment, error) {
	p, err := e.Get(ctx, id, v)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PaymentCompleted {
		return nil, apperr.New(apperr.InvalidState, "receipts are only available for completed payments")
	}
	return p, nil
}

// loadReceipt returns p's receipt document, regenerating it when the file
// behind the stored reference is gone.
func (e *Engine) loadReceipt(ctx context.Context, p *models.Payment) (receipts.Document, error) {
	if err := e.ensureReceipt(ctx, p); err != nil {
		return receipts.Document{}, err
	}
	doc, err := e.receipts.Load(p.ReceiptURL)
	if errors.Is(err, receipts.ErrNotFound) {
		p.ReceiptURL = ""
		if err := e.ensureReceipt(ctx, p); err != nil {
			return receipts.Document{}, err
		}
		doc, err = e.receipts.Load(p.ReceiptURL)
	}
	return doc, err
}

// Receipt returns the receipt document for a completed payment.
func (e *Engine) Receipt(ctx context.Context, id primitive.ObjectID, v Viewer) (receipts.Document, error) {
	p, err := e.completedFor(ctx, id, v)
	if err != nil {
		return receipts.Document{}, err
	}
	return e.loadReceipt(ctx, p)
}

// SendReceipt queues the receipt of a completed payment to the payer's
// email and returns the address used.
func (e *Engine) SendReceipt(ctx context.Context, id, staffID primitive.ObjectID) (string, error) {
	p, err := e.completedFor(ctx, id, Viewer{ID: staffID, Staff: true})
	if err != nil {
		return "", err
	}
	doc, err := e.loadReceipt(ctx, p)
	if err != nil {
		return "", err
	}
	payer, err := e.users.GetByID(ctx, p.UserID)
	if err != nil {
		return "", classify(err)
	}
	if payer.Email == "" {
		return "", apperr.New(apperr.BadRequest, "payer has no email address")
	}
	if e.notifier == nil || !e.notifier.Notify(mailer.BuildReceipt(payer.Email, paymentData(payer, p), doc.Filename, doc.Data)) {
		return "", apperr.New(apperr.Internal, "receipt email could not be queued")
	}

	e.audit.ReceiptEmailed(ctx, staffID, p.ID, payer.Email)
	e.log.Info("receipt emailed",
		zap.String("payment_id", p.ID.Hex()),
		zap.String("to", payer.Email))
	return payer.Email, nil
}

// Stats summarizes completed revenue.
func (e *Engine) Stats(ctx context.Context) (paymentstore.Stats, error) {
	return e.payments.Stats(ctx)
}
