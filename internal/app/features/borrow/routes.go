// internal/app/features/borrow/routes.go
package borrow

import (
	"github.com/dalemusser/libraryhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the borrow endpoints (typically under "/api/borrow").
// Every route is gated on the capability table; ownership checks happen in
// the engine.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.With(authz.Require(authz.RequestBorrow)).Post("/", h.HandleRequest)
	r.With(authz.Require(authz.ApproveBorrow)).Put("/approve/{id}", h.HandleApprove)
	r.With(authz.Require(authz.RejectBorrow)).Put("/reject/{id}", h.HandleReject)
	r.With(authz.Require(authz.InitiateReturn)).Post("/return/{id}", h.HandleReturn)
	r.With(authz.Require(authz.VerifyReturn)).Put("/verify-return/{id}", h.HandleVerifyReturn)
	r.With(authz.Require(authz.OverdueSweep)).Put("/update-overdue", h.HandleSweepOverdue)

	// listings
	r.With(authz.Require(authz.ListMyBorrows)).Get("/my-books", h.ServeMyBooks)
	r.With(authz.Require(authz.BorrowHistory)).Get("/history", h.ServeHistory)
	r.With(authz.Require(authz.ListActiveBorrows)).Get("/active", h.ServeActive)
	r.With(authz.Require(authz.ListOverdue)).Get("/overdue", h.ServeOverdue)

	return r
}
