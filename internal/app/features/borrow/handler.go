// internal/app/features/borrow/handler.go
package borrow

import (
	"net/http"

	"github.com/dalemusser/libraryhub/internal/app/engine/circulation"
	"github.com/dalemusser/libraryhub/internal/app/features/shared"
	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"github.com/dalemusser/libraryhub/internal/app/system/authz"
	"github.com/dalemusser/libraryhub/internal/app/system/paging"
	"github.com/dalemusser/libraryhub/internal/app/system/respond"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// Handler serves the /api/borrow endpoints on top of the circulation engine.
type Handler struct {
	Engine *circulation.Engine
	Log    *zap.Logger
}

// NewHandler constructs a borrow Handler.
func NewHandler(engine *circulation.Engine, logger *zap.Logger) *Handler {
	return &Handler{Engine: engine, Log: logger}
}

type requestBody struct {
	BookID  string `json:"bookId"`
	DueDate string `json:"dueDate"`
}

// HandleRequest handles POST /api/borrow.
func (h *Handler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	_, _, userID, _ := authz.UserCtx(r)

	var body requestBody
	if err := shared.DecodeJSON(w, r, &body); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	bookID, err := shared.ParseID(body.BookID, "bookId")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if bookID == nil {
		respond.Kind(w, apperr.BadRequest, "bookId is required")
		return
	}
	due, err := shared.ParseDate(body.DueDate, "dueDate")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	rec, err := h.Engine.RequestBorrow(r.Context(), userID, *bookID, due)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusCreated, "Borrow request submitted. Awaiting admin and librarian approval.", rec)
}

// HandleApprove handles PUT /api/borrow/approve/{id}. The caller's role
// decides which approval slot is signed.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	role, _, userID, _ := authz.UserCtx(r)
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	rec, err := h.Engine.ApproveBorrow(r.Context(), id, role, userID)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	msg := "Approval recorded. Waiting for the second approval."
	if rec.Status == models.BorrowBorrowed {
		msg = "Book issued successfully"
	}
	respond.OK(w, http.StatusOK, msg, rec)
}

type rejectBody struct {
	Reason string `json:"reason"`
}

// HandleReject handles PUT /api/borrow/reject/{id}.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	_, _, userID, _ := authz.UserCtx(r)
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	var body rejectBody
	if err := shared.DecodeJSON(w, r, &body); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	rec, err := h.Engine.RejectBorrow(r.Context(), id, userID, body.Reason)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "Borrow request rejected", rec)
}

// HandleReturn handles POST /api/borrow/return/{id}.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	role, _, userID, _ := authz.UserCtx(r)
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	rec, err := h.Engine.InitiateReturn(r.Context(), id, userID, role)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "Return request submitted. Awaiting librarian verification.", rec)
}

// HandleVerifyReturn handles PUT /api/borrow/verify-return/{id}.
func (h *Handler) HandleVerifyReturn(w http.ResponseWriter, r *http.Request) {
	_, _, userID, _ := authz.UserCtx(r)
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	rec, err := h.Engine.VerifyReturn(r.Context(), id, userID)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	msg := "Return verified successfully"
	if rec.Fine > 0 {
		msg = "Return verified. A late fine has been added to the borrower's account."
	}
	respond.OK(w, http.StatusOK, msg, rec)
}

// HandleSweepOverdue handles PUT /api/borrow/update-overdue.
func (h *Handler) HandleSweepOverdue(w http.ResponseWriter, r *http.Request) {
	n, err := h.Engine.SweepOverdue(r.Context())
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "Overdue records updated", map[string]int64{"updated": n})
}

// ServeMyBooks handles GET /api/borrow/my-books.
func (h *Handler) ServeMyBooks(w http.ResponseWriter, r *http.Request) {
	_, _, userID, _ := authz.UserCtx(r)
	rows, err := h.Engine.MyBorrows(r.Context(), userID)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "", rows)
}

type historyData struct {
	Records    []circulation.RecordView `json:"records"`
	Pagination paging.Meta              `json:"pagination"`
}

// ServeHistory handles GET /api/borrow/history. Students only see their own
// records; staff may narrow by ?userId=.
func (h *Handler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	role, _, userID, _ := authz.UserCtx(r)

	q := circulation.HistoryQuery{
		Status: query.Get(r, "status"),
		Page:   paging.Parse(r),
	}
	if models.IsStaff(role) {
		uid, err := shared.ParseID(query.Get(r, "userId"), "userId")
		if err != nil {
			respond.Error(w, h.Log, err)
			return
		}
		q.UserID = uid
	} else {
		q.UserID = &userID
	}

	rows, meta, err := h.Engine.History(r.Context(), q)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "", historyData{Records: rows, Pagination: meta})
}

// ServeActive handles GET /api/borrow/active.
func (h *Handler) ServeActive(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Engine.ActiveBorrows(r.Context())
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "", rows)
}

// ServeOverdue handles GET /api/borrow/overdue.
func (h *Handler) ServeOverdue(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Engine.OverdueBorrows(r.Context())
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "", rows)
}
