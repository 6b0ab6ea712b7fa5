package circulation

import (
	"context"
	"errors"

	bookstore "github.com/dalemusser/libraryhub/internal/app/store/books"
	borrowstore "github.com/dalemusser/libraryhub/internal/app/store/borrows"
	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"github.com/dalemusser/libraryhub/internal/app/system/fines"
	"github.com/dalemusser/libraryhub/internal/app/system/mailer"
	"github.com/dalemusser/libraryhub/internal/app/system/txn"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InitiateReturn marks a borrowed or overdue record as handed back. The
// borrower or any staff member may call it.
func (e *Engine) InitiateReturn(ctx context.Context, recordID, requestorID primitive.ObjectID, requestorRole string) (rec *models.BorrowRecord, err error) {
	ctx, span := e.startSpan(ctx, "initiate_return", attribute.String("record_id", recordID.Hex()))
	defer func() { endSpan(span, err) }()

	cur, err := e.borrows.GetByID(ctx, recordID)
	if err != nil {
		return nil, classify(err)
	}
	if cur.UserID != requestorID && !models.IsStaff(requestorRole) {
		return nil, apperr.New(apperr.Forbidden, "not your borrow record")
	}

	rec, err = e.borrows.MarkReturnPending(ctx, recordID, e.now())
	if err != nil {
		if errors.Is(err, borrowstore.ErrWrongState) {
			return nil, apperr.Wrap(apperr.InvalidState, "book is not currently borrowed", err)
		}
		return nil, classify(err)
	}

	e.count(ctx, models.BorrowReturnPending)
	e.audit.ReturnInitiated(ctx, requestorID, rec.UserID, rec.ID)
	e.log.Info("return initiated",
		zap.String("record_id", rec.ID.Hex()),
		zap.String("requestor_id", requestorID.Hex()))
	return rec, nil
}

// VerifyReturn closes a return_pending record. The fine for a late return
// is charged to the borrower, one copy goes back on the shelf and the book
// leaves the borrower's held books.
func (e *Engine) VerifyReturn(ctx context.Context, recordID, staffID primitive.ObjectID) (rec *models.BorrowRecord, err error) {
	ctx, span := e.startSpan(ctx, "verify_return", attribute.String("record_id", recordID.Hex()))
	defer func() { endSpan(span, err) }()

	cur, err := e.borrows.GetByID(ctx, recordID)
	if err != nil {
		return nil, classify(err)
	}
	if cur.Status != models.BorrowReturnPending || cur.ReturnDate == nil {
		return nil, apperr.New(apperr.InvalidState, "return has not been initiated")
	}
	fine := fines.Calculate(cur.DueDate, *cur.ReturnDate, e.cfg.FinePerDay)

	err = txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		done, err := e.borrows.CompleteReturn(ctx, recordID, staffID, fine)
		if err != nil {
			return err
		}
		// Each failure undoes the steps before it, newest first, and
		// reopens the record so the return can be verified again.
		reopen := func() {
			e.undo("reopen return", e.borrows.ReopenReturn(ctx, done.ID, staffID), done.ID)
		}
		if err := e.users.RemoveHeldBook(ctx, done.UserID, done.BookID); err != nil {
			reopen()
			return err
		}
		restocked := true
		if _, err := e.books.ReturnCopy(ctx, done.BookID); err != nil {
			if !errors.Is(err, bookstore.ErrAllCopiesIn) {
				e.undo("restore held book", e.users.AddHeldBook(ctx, done.UserID, done.BookID), done.ID)
				reopen()
				return err
			}
			restocked = false
			e.log.Warn("returned copy exceeds total; count left unchanged",
				zap.String("record_id", done.ID.Hex()),
				zap.String("book_id", done.BookID.Hex()))
		}
		if err := e.users.AddFine(ctx, done.UserID, fine); err != nil {
			if restocked {
				_, terr := e.books.TakeCopy(ctx, done.BookID)
				e.undo("take copy back", terr, done.ID)
			}
			e.undo("restore held book", e.users.AddHeldBook(ctx, done.UserID, done.BookID), done.ID)
			reopen()
			return err
		}
		rec = done
		return nil
	})
	if err != nil {
		if errors.Is(err, borrowstore.ErrWrongState) {
			return nil, apperr.Wrap(apperr.InvalidState, "return already verified", err)
		}
		return nil, classify(err)
	}

	span.SetAttributes(attribute.Int64("fine", fine))
	e.count(ctx, models.BorrowReturned)
	e.audit.ReturnVerified(ctx, staffID, rec.UserID, rec.ID, fine)
	e.log.Info("return verified",
		zap.String("record_id", rec.ID.Hex()),
		zap.String("staff_id", staffID.Hex()),
		zap.Int64("fine", fine))

	e.send(ctx, func(u *models.User, title string) mailer.Email {
		return mailer.BuildReturnVerified(u.Email, mailer.ReturnVerifiedData{
			Name: u.Name, BookTitle: title, Fine: fine, Currency: e.cfg.Currency,
		})
	}, rec.UserID, rec.BookID)
	return rec, nil
}

// SweepOverdue moves every borrowed record past its due date to overdue.
// Running it twice changes nothing the second time. No fines are charged.
func (e *Engine) SweepOverdue(ctx context.Context) (n int64, err error) {
	ctx, span := e.startSpan(ctx, "sweep_overdue")
	defer func() { endSpan(span, err) }()

	n, err = e.borrows.MarkOverdue(ctx, e.now())
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("count", n))
	if n > 0 {
		if e.transitions != nil {
			e.transitions.Add(ctx, n, metricStatus(models.BorrowOverdue))
		}
		e.audit.OverdueSweep(ctx, n)
		e.log.Info("marked records overdue", zap.Int64("count", n))
	}
	return n, nil
}
