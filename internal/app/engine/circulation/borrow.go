package circulation

import (
	"context"
	"errors"
	"time"

	borrowstore "github.com/dalemusser/libraryhub/internal/app/store/borrows"
	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"github.com/dalemusser/libraryhub/internal/app/system/fines"
	"github.com/dalemusser/libraryhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/libraryhub/internal/app/system/mailer"
	"github.com/dalemusser/libraryhub/internal/app/system/txn"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RequestBorrow opens a pending request for bookID. A nil due date uses the
// configured lending period. Copy counts are not touched until issue.
func (e *Engine) RequestBorrow(ctx context.Context, userID, bookID primitive.ObjectID, due *time.Time) (rec *models.BorrowRecord, err error) {
	ctx, span := e.startSpan(ctx, "request_borrow",
		attribute.String("user_id", userID.Hex()),
		attribute.String("book_id", bookID.Hex()))
	defer func() { endSpan(span, err) }()

	book, err := e.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, classify(err)
	}
	if !book.Available() {
		return nil, apperr.New(apperr.Unavailable, "")
	}

	held, err := e.borrows.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if held >= int64(e.cfg.MaxBooksPerUser) {
		return nil, apperr.New(apperr.BorrowLimitExceeded, "")
	}

	dup, err := e.borrows.ExistsActive(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, apperr.New(apperr.DuplicateBorrow, "")
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	if user.TotalFines > 0 {
		return nil, apperr.New(apperr.OutstandingFines, "")
	}

	now := e.now()
	dueDate := fines.DueDate(now, e.cfg.BorrowDays)
	if due != nil {
		if !due.After(now) {
			return nil, apperr.New(apperr.BadRequest, "due date must be in the future")
		}
		dueDate = due.UTC()
	}

	created, err := e.borrows.Create(ctx, models.BorrowRecord{
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    dueDate,
		Status:     models.BorrowPending,
	})
	if err != nil {
		return nil, err
	}

	e.count(ctx, models.BorrowPending)
	e.audit.BorrowRequested(ctx, userID, created.ID, bookID)
	e.log.Info("borrow requested",
		zap.String("record_id", created.ID.Hex()),
		zap.String("user_id", userID.Hex()),
		zap.String("book_id", bookID.Hex()))
	return &created, nil
}

// ApproveBorrow signs a pending request for the approver's role. When the
// second signature lands the book is issued: the record becomes borrowed,
// one copy is taken and the book joins the borrower's held books.
//
// Signing a slot that is already filled is a no-op. Only one caller can
// issue a record; concurrent finishers see the issued record.
func (e *Engine) ApproveBorrow(ctx context.Context, recordID primitive.ObjectID, role string, approverID primitive.ObjectID) (rec *models.BorrowRecord, err error) {
	ctx, span := e.startSpan(ctx, "approve_borrow",
		attribute.String("record_id", recordID.Hex()),
		attribute.String("role", role))
	defer func() { endSpan(span, err) }()

	if role != models.RoleAdmin && role != models.RoleLibrarian {
		return nil, apperr.New(apperr.Forbidden, "only an admin or librarian can approve")
	}

	rec, signed, err := e.borrows.SignApproval(ctx, recordID, role, approverID)
	if err != nil {
		if errors.Is(err, borrowstore.ErrWrongState) {
			return nil, apperr.Wrap(apperr.InvalidState, "borrow request is not pending", err)
		}
		return nil, classify(err)
	}
	if signed {
		e.audit.BorrowSigned(ctx, approverID, recordID, role)
		e.log.Info("borrow approval signed",
			zap.String("record_id", recordID.Hex()),
			zap.String("role", role),
			zap.String("approver_id", approverID.Hex()))
	}
	if !rec.FullyApproved() {
		return rec, nil
	}

	issued, err := e.issue(ctx, rec, approverID)
	if errors.Is(err, errLostClaim) {
		return e.borrows.GetByID(ctx, recordID)
	}
	if err != nil {
		return nil, classify(err)
	}

	e.count(ctx, models.BorrowBorrowed)
	e.audit.BorrowIssued(ctx, approverID, issued.UserID, issued.ID, issued.BookID)
	e.log.Info("book issued",
		zap.String("record_id", issued.ID.Hex()),
		zap.String("user_id", issued.UserID.Hex()),
		zap.String("book_id", issued.BookID.Hex()))

	e.send(ctx, func(u *models.User, title string) mailer.Email {
		return mailer.BuildBorrowApproved(u.Email, mailer.BorrowApprovedData{
			Name: u.Name, BookTitle: title, DueDate: issued.DueDate,
		})
	}, issued.UserID, issued.BookID)
	return issued, nil
}

var errLostClaim = errors.New("record already issued by another approver")

// issue claims a fully signed record and moves one copy to the borrower.
// Outside a transaction each step is undone when a later one fails.
func (e *Engine) issue(ctx context.Context, rec *models.BorrowRecord, issuedBy primitive.ObjectID) (*models.BorrowRecord, error) {
	var out *models.BorrowRecord
	err := txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		claimed, err := e.borrows.Activate(ctx, rec.ID, issuedBy, e.now())
		if errors.Is(err, borrowstore.ErrWrongState) {
			return errLostClaim
		}
		if err != nil {
			return err
		}

		if _, err := e.books.TakeCopy(ctx, claimed.BookID); err != nil {
			e.undo("revert activation", e.borrows.RevertActivation(ctx, claimed.ID), claimed.ID)
			return err
		}

		if err := e.users.AddHeldBook(ctx, claimed.UserID, claimed.BookID); err != nil {
			_, rerr := e.books.ReturnCopy(ctx, claimed.BookID)
			e.undo("return copy", rerr, claimed.ID)
			e.undo("revert activation", e.borrows.RevertActivation(ctx, claimed.ID), claimed.ID)
			return err
		}
		out = claimed
		return nil
	})
	return out, err
}

func (e *Engine) undo(step string, err error, recordID primitive.ObjectID) {
	if err != nil {
		e.log.Error("compensation failed",
			zap.String("step", step),
			zap.String("record_id", recordID.Hex()),
			zap.Error(err))
	}
}

// RejectBorrow closes a pending request.
func (e *Engine) RejectBorrow(ctx context.Context, recordID, staffID primitive.ObjectID, reason string) (rec *models.BorrowRecord, err error) {
	ctx, span := e.startSpan(ctx, "reject_borrow", attribute.String("record_id", recordID.Hex()))
	defer func() { endSpan(span, err) }()

	reason = htmlsanitize.Note(reason)
	rec, err = e.borrows.Reject(ctx, recordID, staffID, reason)
	if err != nil {
		if errors.Is(err, borrowstore.ErrWrongState) {
			return nil, apperr.Wrap(apperr.InvalidState, "only pending requests can be rejected", err)
		}
		return nil, classify(err)
	}

	e.count(ctx, models.BorrowRejected)
	e.audit.BorrowRejected(ctx, staffID, rec.UserID, rec.ID, reason)
	e.log.Info("borrow rejected",
		zap.String("record_id", rec.ID.Hex()),
		zap.String("staff_id", staffID.Hex()))

	e.send(ctx, func(u *models.User, title string) mailer.Email {
		return mailer.BuildBorrowRejected(u.Email, mailer.BorrowRejectedData{
			Name: u.Name, BookTitle: title, Reason: reason,
		})
	}, rec.UserID, rec.BookID)
	return rec, nil
}
