package circulation

import (
	"context"

	borrowstore "github.com/dalemusser/libraryhub/internal/app/store/borrows"
	"github.com/dalemusser/libraryhub/internal/app/system/paging"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecordView is a borrow record with its book title resolved.
type RecordView struct {
	models.BorrowRecord
	BookTitle string `json:"book_title"`
}

// openStates are the states shown on a student's own shelf.
var openStates = []string{
	models.BorrowPending,
	models.BorrowBorrowed,
	models.BorrowOverdue,
	models.BorrowReturnPending,
}

func (e *Engine) withTitles(ctx context.Context, recs []models.BorrowRecord) ([]RecordView, error) {
	ids := make([]primitive.ObjectID, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.BookID)
	}
	titles, err := e.books.TitlesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]RecordView, len(recs))
	for i, r := range recs {
		out[i] = RecordView{BorrowRecord: r, BookTitle: titles[r.BookID]}
	}
	return out, nil
}

// MyBorrows lists the user's open records, newest first.
func (e *Engine) MyBorrows(ctx context.Context, userID primitive.ObjectID) ([]RecordView, error) {
	recs, err := e.borrows.ListByUser(ctx, userID, openStates)
	if err != nil {
		return nil, err
	}
	return e.withTitles(ctx, recs)
}

// HistoryQuery selects a history page. A nil UserID lists everyone.
type HistoryQuery struct {
	UserID *primitive.ObjectID
	Status string
	Page   paging.Params
}

// History returns one page of records and its paging metadata.
func (e *Engine) History(ctx context.Context, q HistoryQuery) ([]RecordView, paging.Meta, error) {
	q.Page = q.Page.Normalize()
	recs, total, err := e.borrows.History(ctx,
		borrowstore.HistoryFilter{UserID: q.UserID, Status: q.Status},
		q.Page.Skip(), int64(q.Page.Limit))
	if err != nil {
		return nil, paging.Meta{}, err
	}
	views, err := e.withTitles(ctx, recs)
	if err != nil {
		return nil, paging.Meta{}, err
	}
	return views, paging.NewMeta(q.Page, total), nil
}

// ActiveBorrows lists borrowed and overdue records, earliest due first.
func (e *Engine) ActiveBorrows(ctx context.Context) ([]RecordView, error) {
	recs, err := e.borrows.ListByStatus(ctx, models.ActiveBorrowStates)
	if err != nil {
		return nil, err
	}
	return e.withTitles(ctx, recs)
}

// OverdueBorrows lists overdue records whose books are still out.
func (e *Engine) OverdueBorrows(ctx context.Context) ([]RecordView, error) {
	recs, err := e.borrows.ListOverdue(ctx)
	if err != nil {
		return nil, err
	}
	return e.withTitles(ctx, recs)
}
